package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/net/http/httpguts"
	"gopkg.in/yaml.v3"
)

// CustomRoute はユーザー定義のプロキシ先（カスタムルート）。
type CustomRoute struct {
	// Name はルート名。常に小文字で保持する。
	Name string `yaml:"name"`
	// URL は転送先のURL。
	URL string `yaml:"url"`
	// APIKey はBearer認証に使うキー。空の場合はAuthorizationヘッダーを付与しない。
	APIKey string `yaml:"api_key"`
	// Headers は転送時に追加するヘッダー。
	Headers map[string]string `yaml:"headers"`
}

func (r CustomRoute) validate() error {
	if r.Name == "" {
		return fmt.Errorf("カスタムルート名が空です")
	}
	if strings.ContainsAny(r.Name, "/ ") {
		return fmt.Errorf("カスタムルート名 '%s' に使用できない文字が含まれています", r.Name)
	}
	if err := validateURL(r.Name, r.URL); err != nil {
		return err
	}
	return validateHeaders(r.Name, r.Headers)
}

// validateHeaders はHTTPとして送信できないヘッダー名・値を起動時に検出する。
func validateHeaders(route string, headers map[string]string) error {
	for name, value := range headers {
		if !httpguts.ValidHeaderFieldName(name) {
			return fmt.Errorf("カスタムルート '%s' のヘッダー名 %q が不正です", route, name)
		}
		if !httpguts.ValidHeaderFieldValue(value) {
			return fmt.Errorf("カスタムルート '%s' のヘッダー %s の値が不正です", route, name)
		}
	}
	return nil
}

// routesFile はカスタムルート定義ファイルの構造。
//
//	routes:
//	  - name: weather
//	    url: https://api.example.com/v1/weather
//	    api_key: ${WEATHER_KEY}
//	    headers:
//	      X-Client: sovereign-node
type routesFile struct {
	Routes []CustomRoute `yaml:"routes"`
}

// ParseRoutesFile はYAML形式のカスタムルート定義ファイルを読み込む。
// url, api_key, ヘッダー値に含まれる ${VAR} はgetenvで展開する。
// 波括弧のない $VAR や $$ は展開せずそのまま残す。
func ParseRoutesFile(path string, getenv func(string) string) ([]CustomRoute, error) {
	expanded := expandPath(path, getenv)
	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, fmt.Errorf("ルート定義ファイル '%s' の読み込みに失敗: %w", expanded, err)
	}
	return ParseRoutes(data, getenv)
}

// ParseRoutes はYAMLバイト列からカスタムルート定義を解析する。
func ParseRoutes(data []byte, getenv func(string) string) ([]CustomRoute, error) {
	var file routesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("ルート定義のYAML解析に失敗: %w", err)
	}

	seen := make(map[string]struct{}, len(file.Routes))
	routes := make([]CustomRoute, 0, len(file.Routes))
	for i, r := range file.Routes {
		r.Name = strings.ToLower(strings.TrimSpace(r.Name))
		r.URL = strings.TrimSpace(expandVars(r.URL, getenv))
		r.APIKey = strings.TrimSpace(expandVars(r.APIKey, getenv))
		for k, v := range r.Headers {
			r.Headers[k] = expandVars(v, getenv)
		}
		if err := r.validate(); err != nil {
			return nil, fmt.Errorf("routes[%d]: %w", i, err)
		}
		if _, dup := seen[r.Name]; dup {
			return nil, fmt.Errorf("routes[%d]: カスタムルート '%s' が重複しています", i, r.Name)
		}
		seen[r.Name] = struct{}{}
		routes = append(routes, r)
	}
	return routes, nil
}

// bracedVar は ${VAR} 形式の参照。
var bracedVar = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandVars は s 中の ${VAR} だけをgetenvの値で置き換える。
func expandVars(s string, getenv func(string) string) string {
	return bracedVar.ReplaceAllStringFunc(s, func(ref string) string {
		return getenv(ref[2 : len(ref)-1])
	})
}

// expandPath はパス中の環境変数とホームディレクトリを展開する。
func expandPath(path string, getenv func(string) string) string {
	expanded := expandVars(path, getenv)
	if strings.HasPrefix(expanded, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			expanded = filepath.Join(home, expanded[2:])
		}
	}
	return expanded
}
