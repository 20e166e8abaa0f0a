package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client は上流API呼び出し用のHTTPクライアント。
// 複数のgoroutineから同時に使用してよい。
type Client struct {
	// httpClient は内部で使用するHTTPクライアント。
	httpClient *http.Client
}

// New は新しいHTTPクライアントを生成する。
// timeoutが0の場合はタイムアウトを設定しない。
func New(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Request は上流APIへのリクエスト。
type Request struct {
	// Method はHTTPメソッド。空の場合はGET。
	Method string
	// URL は転送先のURL。既存のクエリパラメータを含んでもよい。
	URL string
	// Query はURLのクエリに追加するパラメータ。
	Query url.Values
	// Header は送信するヘッダー。
	Header http.Header
	// Body はリクエストボディ。nilの場合はボディなしで送信する。
	Body []byte
}

// Response は上流APIからの応答。
type Response struct {
	// StatusCode はHTTPステータスコード。
	StatusCode int
	// Header はレスポンスヘッダー。
	Header http.Header
	// Body はレスポンスボディ。
	Body []byte
}

// UpstreamError は上流APIが2xx以外のステータスを返したことを表す。
type UpstreamError struct {
	// StatusCode は上流APIのステータスコード。
	StatusCode int
	// Body は上流APIのレスポンスボディ。
	Body []byte
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("HTTPエラー: status=%d, body=%s", e.StatusCode, string(e.Body))
}

// Do はリクエストを送信し、レスポンスを読み取って返す。
// 上流が2xx以外を返した場合は *UpstreamError を返す。送信自体に失敗した場合はそれ以外のエラーを返す。
func (c *Client) Do(ctx context.Context, r Request) (*Response, error) {
	target, err := buildURL(r.URL, r.Query)
	if err != nil {
		return nil, err
	}

	var bodyReader io.Reader
	if r.Body != nil {
		bodyReader = bytes.NewReader(r.Body)
	}

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗: %w", err)
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの送信に失敗: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("レスポンスの読み取りに失敗: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: body}
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// buildURL はrawURLにqueryをマージしたURLを返す。
func buildURL(rawURL string, query url.Values) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("URLの解析に失敗: %w", err)
	}
	if len(query) == 0 {
		return u.String(), nil
	}
	q := u.Query()
	for k, vs := range query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
