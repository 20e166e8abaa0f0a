package config

import "strings"

// ProviderName は固定プロバイダーの識別子。ルートパス /api/{name} に対応する。
type ProviderName string

const (
	// ProviderOpenAI はOpenAI Chat Completions API。
	ProviderOpenAI ProviderName = "openai"
	// ProviderClaude はAnthropic Messages API。
	ProviderClaude ProviderName = "claude"
	// ProviderGemini はGoogle Gemini generateContent API。
	ProviderGemini ProviderName = "gemini"
	// ProviderNews はNewsAPI。
	ProviderNews ProviderName = "news"
	// ProviderFinancial はAlpha Vantage API。
	ProviderFinancial ProviderName = "financial"
)

// Providers はステータス表示の順序で並べた固定プロバイダー一覧。
var Providers = []ProviderName{
	ProviderOpenAI,
	ProviderClaude,
	ProviderGemini,
	ProviderNews,
	ProviderFinancial,
}

// Provider は固定プロバイダーの接続設定。
type Provider struct {
	// Name はプロバイダー名。
	Name ProviderName
	// APIKey はプロバイダーのシークレット。
	APIKey string
	// BaseURL はAPIのベースURL（末尾のスラッシュなし）。
	BaseURL string
}

// Configured はAPIキーが設定されているかを返す。
func (p Provider) Configured() bool {
	return p.APIKey != ""
}

// providerEnv はプロバイダーごとの環境変数名とデフォルトのベースURL。
var providerEnv = map[ProviderName]struct {
	keyVar     string
	baseURLVar string
	baseURL    string
}{
	ProviderOpenAI:    {"OPENAI_API_KEY", "OPENAI_BASE_URL", "https://api.openai.com"},
	ProviderClaude:    {"CLAUDE_API_KEY", "CLAUDE_BASE_URL", "https://api.anthropic.com"},
	ProviderGemini:    {"GEMINI_API_KEY", "GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"},
	ProviderNews:      {"NEWS_API_KEY", "NEWS_BASE_URL", "https://newsapi.org"},
	ProviderFinancial: {"ALPHA_VANTAGE_KEY", "ALPHA_VANTAGE_BASE_URL", "https://www.alphavantage.co"},
}

func loadProviders(getenv func(string) string) map[ProviderName]Provider {
	providers := make(map[ProviderName]Provider, len(providerEnv))
	for name, e := range providerEnv {
		providers[name] = Provider{
			Name:    name,
			APIKey:  strings.TrimSpace(getenv(e.keyVar)),
			BaseURL: strings.TrimRight(getString(getenv, e.baseURLVar, e.baseURL), "/"),
		}
	}
	return providers
}
