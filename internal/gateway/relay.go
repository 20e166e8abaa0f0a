package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/sovereign-node/pkg/httpclient"
	"github.com/nao1215/sovereign-node/pkg/middleware"
)

// upstreamCall は上流APIへの1回の呼び出し。
type upstreamCall struct {
	// label はエラーメッセージとログに使う上流APIの表示名（例: "OpenAI"）。
	label string
	// request は上流APIへのリクエスト。
	request httpclient.Request
	// relayUpstreamError がtrueの場合、上流のエラーレスポンスの error メンバーを呼び出し元に返す。
	relayUpstreamError bool
}

// forward は上流APIを呼び出し、結果を呼び出し元に中継する。
// 呼び出し元の切断は上流への呼び出しをキャンセルしない。
// リクエストIDはログとレスポンスヘッダーにのみ使い、上流には送らない。
func (s *Server) forward(c *gin.Context, call upstreamCall) {
	resp, err := s.client.Do(context.WithoutCancel(c.Request.Context()), call.request)
	if err != nil {
		s.fail(c, call, err)
		return
	}
	relay(c, resp)
}

// relay は上流の成功レスポンスをステータスコードとボディを変えずに返す。
// ボディがJSONでない場合はJSON文字列として返す。
func relay(c *gin.Context, resp *httpclient.Response) {
	if resp.StatusCode == http.StatusNoContent {
		c.Status(resp.StatusCode)
		return
	}
	if len(resp.Body) > 0 && json.Valid(resp.Body) {
		c.Data(resp.StatusCode, "application/json; charset=utf-8", resp.Body)
		return
	}
	c.JSON(resp.StatusCode, string(resp.Body))
}

// fail は上流呼び出しの失敗をログに記録し、エラーレスポンスを返す。
// 上流のステータスコードが得られた場合はそれを、得られなかった場合は500を返す。
func (s *Server) fail(c *gin.Context, call upstreamCall, err error) {
	status := http.StatusInternalServerError
	var message any = call.label + " API request failed"

	event := s.logger.Error().
		Err(err).
		Str("upstream", call.label).
		Str("method", call.request.Method).
		Str("request_id", middleware.GetRequestID(c))

	var upstreamErr *httpclient.UpstreamError
	if errors.As(err, &upstreamErr) {
		status = upstreamErr.StatusCode
		event = event.Int("status", upstreamErr.StatusCode)
		if json.Valid(upstreamErr.Body) {
			event = event.RawJSON("upstream_body", upstreamErr.Body)
		} else {
			event = event.Bytes("upstream_body", upstreamErr.Body)
		}
		if call.relayUpstreamError {
			if upstreamMessage, ok := upstreamErrorMember(upstreamErr.Body); ok {
				message = upstreamMessage
			}
		}
	}
	event.Msg("上流APIへのリクエストに失敗")

	c.JSON(status, gin.H{"error": message})
}

// upstreamErrorMember は上流のエラーボディから error メンバーを取り出す。
// メンバーが存在しないか、null・false・空文字列の場合はfalseを返す。
func upstreamErrorMember(body []byte) (json.RawMessage, bool) {
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, false
	}
	switch string(envelope.Error) {
	case "", "null", "false", `""`, "0":
		return nil, false
	}
	return envelope.Error, true
}

// readJSONBody は受信リクエストのボディを読み取る。
// ボディが空の場合はnilを返す。JSONとして不正な場合やサイズ上限を超える場合は
// エラーレスポンスを書き込み、falseを返す。
func readJSONBody(c *gin.Context) ([]byte, bool) {
	if c.Request.Body == nil {
		return nil, true
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Request body too large"})
			return nil, false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return nil, false
	}
	if len(body) == 0 {
		return nil, true
	}
	if !json.Valid(body) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
		return nil, false
	}
	return body, true
}
