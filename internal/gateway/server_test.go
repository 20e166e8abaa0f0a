package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/sovereign-node/internal/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newTestServer は指定された環境変数からテスト用のGatewayサーバーを生成する。
func newTestServer(t *testing.T, environ ...string) *Server {
	t.Helper()

	cfg, err := config.FromEnviron(environ)
	if err != nil {
		t.Fatalf("設定の読み込みに失敗: %v", err)
	}
	s, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("サーバーの生成に失敗: %v", err)
	}
	return s
}

// doRequest はサーバーにリクエストを送り、レスポンスを返す。
func doRequest(s *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

// decodeBody はレスポンスボディをmapにデコードする。
func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("レスポンスのパースに失敗: %v (%q)", err, w.Body.String())
	}
	return body
}

// TestNewServer はNewServer関数を検証する。
func TestNewServer(t *testing.T) {
	t.Parallel()

	t.Run("設定がnilの場合にエラーが返ること", func(t *testing.T) {
		t.Parallel()

		if _, err := NewServer(nil); err == nil {
			t.Fatal("NewServer()がエラーを返すべきだが、nilが返った")
		}
	})
}

// TestHandleStatus はステータスハンドラのテスト。
func TestHandleStatus(t *testing.T) {
	t.Parallel()

	t.Run("設定が空でも200と空のルート一覧を返す", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)
		w := doRequest(s, httptest.NewRequest(http.MethodGet, "/", nil))

		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
		}
		body := decodeBody(t, w)
		if body["status"] != "Sovereign Node Active" {
			t.Errorf("status: got %v", body["status"])
		}
		if body["message"] != "Your digital sovereignty gateway is running" {
			t.Errorf("message: got %v", body["message"])
		}
		endpoints, ok := body["endpoints"].([]any)
		if !ok {
			t.Fatalf("endpointsが配列ではない: %T", body["endpoints"])
		}
		if len(endpoints) != 0 {
			t.Errorf("endpoints: got %v, want empty", endpoints)
		}
	})

	t.Run("設定済みのプロバイダーとカスタムルートを一覧に含める", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t,
			"OPENAI_API_KEY=sk-test",
			"ALPHA_VANTAGE_KEY=av-test",
			"CUSTOM_WEATHER_URL=https://weather.example.com/v1",
			"CUSTOM_ALPHA_URL=https://alpha.example.com",
			"CUSTOM_ORPHAN_KEY=no-url",
		)
		w := doRequest(s, httptest.NewRequest(http.MethodGet, "/", nil))

		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
		}
		var body struct {
			Endpoints []string `json:"endpoints"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("レスポンスのパースに失敗: %v", err)
		}
		want := []string{"/api/openai", "/api/financial", "/api/custom/alpha", "/api/custom/weather"}
		if !reflect.DeepEqual(body.Endpoints, want) {
			t.Errorf("endpoints: got %v, want %v", body.Endpoints, want)
		}
	})
}

// TestNoRoute は未定義のパスのテスト。
func TestNoRoute(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	w := doRequest(s, httptest.NewRequest(http.MethodGet, "/api/unknown", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusNotFound)
	}
	if body := decodeBody(t, w); body["error"] != "Not found" {
		t.Errorf("error: got %v", body["error"])
	}
}

// TestCORSAllowedOrigins はALLOWED_ORIGINSの設定がCORSに反映されることのテスト。
func TestCORSAllowedOrigins(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, "ALLOWED_ORIGINS=https://app.example.com, https://admin.example.com")

	t.Run("許可されたオリジンにはヘッダーが設定される", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://admin.example.com")
		w := doRequest(s, req)

		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://admin.example.com" {
			t.Errorf("Access-Control-Allow-Origin: got %q", got)
		}
	})

	t.Run("許可されていないオリジンにはヘッダーが設定されない", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		w := doRequest(s, req)

		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("Access-Control-Allow-Origin: got %q, want empty", got)
		}
	})
}

// TestRun はRunがコンテキストのキャンセルで停止することのテスト。
func TestRun(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, "PORT=0")
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Run()でエラーが発生: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run()がキャンセル後に終了しなかった")
	}
}
