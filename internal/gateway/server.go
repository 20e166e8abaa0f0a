package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nao1215/sovereign-node/internal/config"
	"github.com/nao1215/sovereign-node/pkg/httpclient"
	"github.com/nao1215/sovereign-node/pkg/middleware"
)

const (
	statusActive  = "Sovereign Node Active"
	statusMessage = "Your digital sovereignty gateway is running"

	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// Server はAPI GatewayのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// cfg は起動時に構築された読み取り専用の設定。
	cfg *config.Config
	// client は上流API呼び出し用のHTTPクライアント。
	client *httpclient.Client
	// logger はゲートウェイのロガー。
	logger zerolog.Logger
}

// NewServer は新しいGatewayサーバーを生成する。
func NewServer(cfg *config.Config) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("設定がnilです")
	}

	router := gin.New()
	if err := router.SetTrustedProxies(nil); err != nil {
		return nil, fmt.Errorf("信頼するプロキシの設定に失敗: %w", err)
	}
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log.With().Str("component", "access").Logger()))
	router.Use(middleware.Recovery())
	router.Use(middleware.CORS(cfg.AllowedOrigins))
	router.Use(middleware.BodyLimit(middleware.DefaultBodyLimit))

	s := &Server{
		router: router,
		port:   cfg.Port,
		cfg:    cfg,
		client: httpclient.New(cfg.UpstreamTimeout),
		logger: log.With().Str("component", "gateway").Logger(),
	}
	s.setupRoutes()

	return s, nil
}

// Handler はゲートウェイのHTTPハンドラーを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run はHTTPサーバーを起動し、ctxがキャンセルされるとグレースフルシャットダウンする。
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", srv.Addr).Msg("Gatewayサービスを起動します")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTPサーバーの起動に失敗: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Gatewayサービスを停止します")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		if closeErr := srv.Close(); closeErr != nil {
			s.logger.Error().Err(closeErr).Msg("強制終了に失敗")
		}
		return fmt.Errorf("グレースフルシャットダウンに失敗: %w", err)
	}
	return nil
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	// ステータス
	s.router.GET("/", s.handleStatus())

	api := s.router.Group("/api")
	{
		// LLMプロバイダー
		api.POST("/openai", s.handleOpenAI())
		api.POST("/claude", s.handleClaude())
		api.POST("/gemini", s.handleGemini())

		// ニュース・金融データ
		api.GET("/news", s.handleNews())
		api.GET("/financial", s.handleFinancial())

		// カスタムルート（全メソッド）
		api.Any("/custom/*name", s.handleCustom())
	}

	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})
}

// handleStatus は設定済みのルート一覧を含むステータスを返すハンドラを返す。
func (s *Server) handleStatus() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    statusActive,
			"message":   statusMessage,
			"endpoints": s.endpoints(),
		})
	}
}

// endpoints は現在利用可能なルートのパスを返す。
// APIキーが設定された固定プロバイダー、カスタムルート（名前順）の順に並べる。
func (s *Server) endpoints() []string {
	endpoints := make([]string, 0, len(config.Providers))
	for _, name := range config.Providers {
		if s.cfg.Provider(name).Configured() {
			endpoints = append(endpoints, "/api/"+string(name))
		}
	}
	for _, name := range s.cfg.CustomRouteNames() {
		endpoints = append(endpoints, "/api/custom/"+name)
	}
	return endpoints
}
