package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/sovereign-node/internal/config"
	"github.com/nao1215/sovereign-node/pkg/httpclient"
)

const (
	defaultOpenAIModel       = "gpt-4"
	defaultOpenAITemperature = 0.7
	defaultClaudeModel       = "claude-3-opus-20240229"
	defaultClaudeMaxTokens   = 1000
	defaultGeminiModel       = "gemini-pro"
	defaultNewsSource        = "newsapi"
	defaultNewsCountry       = "us"
	defaultFinancialFunction = "GLOBAL_QUOTE"

	anthropicVersion = "2023-06-01"
)

// providerLabels はエラーメッセージに使うプロバイダーの表示名。
var providerLabels = map[config.ProviderName]string{
	config.ProviderOpenAI:    "OpenAI",
	config.ProviderClaude:    "Claude",
	config.ProviderGemini:    "Gemini",
	config.ProviderNews:      "News",
	config.ProviderFinancial: "Financial",
}

// openAIRequest はOpenAI Chat Completionsへのリクエストボディ。
type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    json.RawMessage `json:"messages,omitempty"`
	Temperature float64         `json:"temperature"`
}

// claudeRequest はAnthropic Messages APIへのリクエストボディ。
type claudeRequest struct {
	Model     string          `json:"model"`
	Messages  json.RawMessage `json:"messages,omitempty"`
	MaxTokens int             `json:"max_tokens"`
}

// geminiInput は /api/gemini の受信ボディ。
type geminiInput struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model"`
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

// geminiRequest はGemini generateContentへのリクエストボディ。
type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

// requireProvider はプロバイダーのAPIキーが設定されているかを確認する。
// 未設定の場合は400を返し、falseを返す。
func (s *Server) requireProvider(c *gin.Context, name config.ProviderName) (config.Provider, bool) {
	p := s.cfg.Provider(name)
	if !p.Configured() {
		c.JSON(http.StatusBadRequest, gin.H{"error": providerLabels[name] + " API key not configured"})
		return p, false
	}
	return p, true
}

// decodeInput は受信ボディをvに展開する。ボディが空の場合はvを変更しない。
func decodeInput(c *gin.Context, v any) bool {
	body, ok := readJSONBody(c)
	if !ok {
		return false
	}
	if body == nil {
		return true
	}
	if err := json.Unmarshal(body, v); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
		return false
	}
	return true
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		// 固定の構造体とjson.Valid検証済みのRawMessageのみを扱うため発生しない
		panic(fmt.Sprintf("リクエストボディのシリアライズに失敗: %v", err))
	}
	return b
}

// handleOpenAI はOpenAI Chat Completionsへのプロキシハンドラを返す。
func (s *Server) handleOpenAI() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := s.requireProvider(c, config.ProviderOpenAI)
		if !ok {
			return
		}
		in := openAIRequest{Model: defaultOpenAIModel, Temperature: defaultOpenAITemperature}
		if !decodeInput(c, &in) {
			return
		}

		s.forward(c, upstreamCall{
			label: providerLabels[config.ProviderOpenAI],
			request: httpclient.Request{
				Method: http.MethodPost,
				URL:    p.BaseURL + "/v1/chat/completions",
				Header: http.Header{
					"Authorization": {"Bearer " + p.APIKey},
					"Content-Type":  {"application/json"},
				},
				Body: mustMarshal(in),
			},
			relayUpstreamError: true,
		})
	}
}

// handleClaude はAnthropic Messages APIへのプロキシハンドラを返す。
func (s *Server) handleClaude() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := s.requireProvider(c, config.ProviderClaude)
		if !ok {
			return
		}
		in := claudeRequest{Model: defaultClaudeModel, MaxTokens: defaultClaudeMaxTokens}
		if !decodeInput(c, &in) {
			return
		}

		s.forward(c, upstreamCall{
			label: providerLabels[config.ProviderClaude],
			request: httpclient.Request{
				Method: http.MethodPost,
				URL:    p.BaseURL + "/v1/messages",
				Header: http.Header{
					"X-Api-Key":         {p.APIKey},
					"Anthropic-Version": {anthropicVersion},
					"Content-Type":      {"application/json"},
				},
				Body: mustMarshal(in),
			},
			relayUpstreamError: true,
		})
	}
}

// handleGemini はGemini generateContentへのプロキシハンドラを返す。
// Geminiはヘッダーではなくクエリパラメータ key でAPIキーを受け取る。
func (s *Server) handleGemini() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := s.requireProvider(c, config.ProviderGemini)
		if !ok {
			return
		}
		in := geminiInput{Model: defaultGeminiModel}
		if !decodeInput(c, &in) {
			return
		}

		payload := geminiRequest{
			Contents: []geminiContent{{Parts: []geminiPart{{Text: in.Prompt}}}},
		}
		s.forward(c, upstreamCall{
			label: providerLabels[config.ProviderGemini],
			request: httpclient.Request{
				Method: http.MethodPost,
				URL:    p.BaseURL + "/v1beta/models/" + url.PathEscape(in.Model) + ":generateContent",
				Query:  url.Values{"key": {p.APIKey}},
				Header: http.Header{"Content-Type": {"application/json"}},
				Body:   mustMarshal(payload),
			},
			relayUpstreamError: true,
		})
	}
}

// handleNews はNewsAPIのトップヘッドラインへのプロキシハンドラを返す。
func (s *Server) handleNews() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := s.requireProvider(c, config.ProviderNews)
		if !ok {
			return
		}

		source := c.DefaultQuery("source", defaultNewsSource)
		if source != defaultNewsSource {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("News source '%s' not supported", source)})
			return
		}

		query := url.Values{"apiKey": {p.APIKey}, "country": {defaultNewsCountry}}
		if q := c.Query("query"); q != "" {
			query.Set("q", q)
		}
		if category := c.Query("category"); category != "" {
			query.Set("category", category)
		}

		s.forward(c, upstreamCall{
			label: providerLabels[config.ProviderNews],
			request: httpclient.Request{
				Method: http.MethodGet,
				URL:    p.BaseURL + "/v2/top-headlines",
				Query:  query,
			},
		})
	}
}

// handleFinancial はAlpha Vantageへのプロキシハンドラを返す。
func (s *Server) handleFinancial() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := s.requireProvider(c, config.ProviderFinancial)
		if !ok {
			return
		}

		query := url.Values{
			"function": {c.DefaultQuery("function", defaultFinancialFunction)},
			"apikey":   {p.APIKey},
		}
		if symbol := c.Query("symbol"); symbol != "" {
			query.Set("symbol", symbol)
		}

		s.forward(c, upstreamCall{
			label: providerLabels[config.ProviderFinancial],
			request: httpclient.Request{
				Method: http.MethodGet,
				URL:    p.BaseURL + "/query",
				Query:  query,
			},
		})
	}
}
