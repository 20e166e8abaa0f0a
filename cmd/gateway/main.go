// API Gatewayサービスのエントリポイント。
// 環境変数（および .env ファイル）から設定を読み込み、
// 固定プロバイダーとカスタムルートへのプロキシを起動する。
package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nao1215/sovereign-node/internal/config"
	"github.com/nao1215/sovereign-node/internal/gateway"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	// 既に設定されている環境変数は上書きしない
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatal().Err(err).Msg(".envファイルの読み込みに失敗")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("設定の読み込みに失敗")
	}
	if err := setupLogger(cfg); err != nil {
		log.Fatal().Err(err).Str("log_level", cfg.LogLevel).Msg("ログ設定が不正です")
	}

	server, err := gateway.NewServer(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Gatewayサーバーの初期化に失敗")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("port", cfg.Port).
		Strs("custom_routes", cfg.CustomRouteNames()).
		Msg("Sovereign Nodeを起動します")
	if err := server.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("Gatewayサービスの起動に失敗")
	}
	log.Info().Msg("Sovereign Nodeを停止しました")
}

// setupLogger は設定に従ってグローバルロガーのレベルと出力形式を設定する。
func setupLogger(cfg *config.Config) error {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := zerolog.New(os.Stderr)
	if cfg.LogFormat == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	log.Logger = logger.Level(level).With().Timestamp().Logger()
	return nil
}
