package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	envPort            = "PORT"
	envAllowedOrigins  = "ALLOWED_ORIGINS"
	envRoutesFile      = "CUSTOM_ROUTES_FILE"
	envUpstreamTimeout = "UPSTREAM_TIMEOUT"
	envLogLevel        = "LOG_LEVEL"
	envLogFormat       = "LOG_FORMAT"

	defaultPort      = "3000"
	defaultLogLevel  = "info"
	defaultLogFormat = "json"

	// customPrefix はカスタムルート定義の環境変数プレフィックス。
	// CUSTOM_{NAME}_URL / CUSTOM_{NAME}_KEY / CUSTOM_{NAME}_HEADERS の形式で定義する。
	customPrefix    = "CUSTOM_"
	customURLSuffix = "_URL"
	customKeySuffix = "_KEY"
	customHdrSuffix = "_HEADERS"
)

// Config はゲートウェイの実行時設定。
// 起動時に構築された後は読み取り専用であり、複数のgoroutineから同時に参照してよい。
type Config struct {
	// Port はHTTPサーバーのリッスンポート。
	Port string
	// AllowedOrigins はCORSで許可するオリジン。空の場合は全オリジンを許可する。
	AllowedOrigins []string
	// UpstreamTimeout は上流API呼び出しのタイムアウト。0の場合はタイムアウトなし。
	UpstreamTimeout time.Duration
	// LogLevel はzerologのログレベル。
	LogLevel string
	// LogFormat はログ出力形式（json または console）。
	LogFormat string

	providers    map[ProviderName]Provider
	customRoutes map[string]CustomRoute
}

// Load はプロセスの環境変数から設定を読み込む。
func Load() (*Config, error) {
	return FromEnviron(os.Environ())
}

// FromEnviron は "KEY=VALUE" 形式の環境変数リストから設定を構築する。
func FromEnviron(environ []string) (*Config, error) {
	env := parseEnviron(environ)
	getenv := func(key string) string { return env[key] }

	timeout, err := parseTimeout(getenv(envUpstreamTimeout))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:            getString(getenv, envPort, defaultPort),
		AllowedOrigins:  splitList(getenv(envAllowedOrigins)),
		UpstreamTimeout: timeout,
		LogLevel:        strings.ToLower(getString(getenv, envLogLevel, defaultLogLevel)),
		LogFormat:       strings.ToLower(getString(getenv, envLogFormat, defaultLogFormat)),
		providers:       loadProviders(getenv),
		customRoutes:    make(map[string]CustomRoute),
	}

	if path := strings.TrimSpace(getenv(envRoutesFile)); path != "" {
		routes, err := ParseRoutesFile(path, getenv)
		if err != nil {
			return nil, err
		}
		for _, r := range routes {
			cfg.customRoutes[r.Name] = r
		}
	}

	// 環境変数で定義されたルートはファイル定義より優先する
	routes, err := customRoutesFromEnv(env)
	if err != nil {
		return nil, err
	}
	for _, r := range routes {
		cfg.customRoutes[r.Name] = r
	}

	return cfg, nil
}

// Provider は指定された固定プロバイダーの設定を返す。
func (c *Config) Provider(name ProviderName) Provider {
	if p, ok := c.providers[name]; ok {
		return p
	}
	return Provider{Name: name}
}

// CustomRoute は名前（大文字小文字を区別しない）でカスタムルートを検索する。
func (c *Config) CustomRoute(name string) (CustomRoute, bool) {
	r, ok := c.customRoutes[strings.ToLower(name)]
	return r, ok
}

// CustomRouteNames は登録済みのカスタムルート名を昇順で返す。
func (c *Config) CustomRouteNames() []string {
	names := make([]string, 0, len(c.customRoutes))
	for name := range c.customRoutes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// customRoutesFromEnv は CUSTOM_{NAME}_* 形式の環境変数からカスタムルートを構築する。
// {NAME} は大文字のみを受け付ける。小文字を含む変数は無視するため、
// 大文字小文字だけが異なる定義が同じルート名で衝突することはない。
// URLが設定されていない定義は利用できないため登録しない。
func customRoutesFromEnv(env map[string]string) ([]CustomRoute, error) {
	names := make(map[string]struct{})
	for key := range env {
		if !strings.HasPrefix(key, customPrefix) || key == envRoutesFile {
			continue
		}
		for _, suffix := range []string{customURLSuffix, customKeySuffix, customHdrSuffix} {
			name, ok := strings.CutSuffix(strings.TrimPrefix(key, customPrefix), suffix)
			if !ok || name == "" {
				continue
			}
			if name != strings.ToUpper(name) {
				log.Warn().Str("env", key).Msg("ルート名に小文字を含むためカスタムルートの変数を無視します")
				break
			}
			names[name] = struct{}{}
			break
		}
	}

	routes := make([]CustomRoute, 0, len(names))
	for name := range names {
		prefix := customPrefix + name
		rawURL := strings.TrimSpace(env[prefix+customURLSuffix])
		if rawURL == "" {
			log.Warn().Str("route", strings.ToLower(name)).Msgf("%s%s が未設定のためカスタムルートを無視します", prefix, customURLSuffix)
			continue
		}

		r := CustomRoute{
			Name:   strings.ToLower(name),
			URL:    rawURL,
			APIKey: strings.TrimSpace(env[prefix+customKeySuffix]),
		}
		if raw := strings.TrimSpace(env[prefix+customHdrSuffix]); raw != "" {
			headers, err := parseHeaders(raw)
			if err != nil {
				return nil, fmt.Errorf("%s%s の解析に失敗: %w", prefix, customHdrSuffix, err)
			}
			r.Headers = headers
		}
		if err := r.validate(); err != nil {
			return nil, err
		}
		routes = append(routes, r)
	}
	return routes, nil
}

// parseHeaders はJSONオブジェクト形式のヘッダー定義を解析する。
// 値が文字列でない場合はJSON表現をそのまま値とする。
func parseHeaders(raw string) (map[string]string, error) {
	var values map[string]any
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, err
	}
	headers := make(map[string]string, len(values))
	for k, v := range values {
		switch tv := v.(type) {
		case string:
			headers[k] = tv
		default:
			b, err := json.Marshal(tv)
			if err != nil {
				return nil, err
			}
			headers[k] = string(b)
		}
	}
	return headers, nil
}

func parseEnviron(environ []string) map[string]string {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			continue
		}
		env[key] = value
	}
	return env
}

func parseTimeout(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s が不正です: %w", envUpstreamTimeout, err)
	}
	if d < 0 {
		return 0, errors.New(envUpstreamTimeout + " は0以上である必要があります")
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// getString は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func getString(getenv func(string) string, key, fallback string) string {
	if v := strings.TrimSpace(getenv(key)); v != "" {
		return v
	}
	return fallback
}

func validateURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("カスタムルート '%s' のURLが不正です: %w", name, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("カスタムルート '%s' のURLは絶対URL（scheme://host）である必要があります", name)
	}
	return nil
}
