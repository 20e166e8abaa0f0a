package gateway

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/sovereign-node/internal/config"
	"github.com/nao1215/sovereign-node/pkg/httpclient"
)

const customLabel = "Custom"

// handleCustom はカスタムルートへのプロキシハンドラを返す。
// メソッド、クエリ、ボディは変更せずに設定されたURLへ転送する。
func (s *Server) handleCustom() gin.HandlerFunc {
	return func(c *gin.Context) {
		name := strings.TrimPrefix(c.Param("name"), "/")
		route, ok := s.cfg.CustomRoute(name)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Custom endpoint '%s' not configured", name)})
			return
		}

		body, ok := readJSONBody(c)
		if !ok {
			return
		}

		s.forward(c, upstreamCall{
			label: customLabel,
			request: httpclient.Request{
				Method: c.Request.Method,
				URL:    route.URL,
				Query:  c.Request.URL.Query(),
				Header: customHeaders(route),
				Body:   body,
			},
		})
	}
}

// customHeaders はカスタムルートの転送ヘッダーを組み立てる。
// Content-Type、カスタムヘッダー、Authorizationの順に設定するため、
// カスタムヘッダーはContent-Typeを上書きできるがAuthorizationは上書きできない。
func customHeaders(route config.CustomRoute) http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	for k, v := range route.Headers {
		h.Set(k, v)
	}
	if route.APIKey != "" {
		h.Set("Authorization", "Bearer "+route.APIKey)
	}
	return h
}
