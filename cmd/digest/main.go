package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/prometheus/client_golang/prometheus"

	"slack-digest-bot/internal/app"
	"slack-digest-bot/internal/domain"
	"slack-digest-bot/internal/infra/config"
	logger "slack-digest-bot/internal/infra/log"
	"slack-digest-bot/internal/infra/metrics"
)

// digest выполняет один запуск и завершается: 0 — дайджест опубликован, 1 — ошибка конфига или запуска.
func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.Load()
	log := logger.NewLogger(cfg.AppEnv, cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("digest: конфигурация некорректна")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.MustRegister(prometheus.DefaultRegisterer)
	if cfg.MetricsAddr != "" {
		metrics.StartServer(ctx, log, cfg.MetricsAddr)
	}

	application, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("digest: не удалось собрать приложение")
		return 1
	}
	defer application.Close()

	report, err := application.Digest.Run(ctx, domain.RunCauseManual)
	if err != nil {
		log.Error().Err(err).Str("run_id", report.RunID).Msg("digest: запуск завершился ошибкой")
		return 1
	}
	counts := report.Counts()
	log.Info().
		Str("run_id", report.RunID).
		Int("processed", counts.Processed).
		Int("failed", counts.Failed).
		Msg("digest: дайджест опубликован")
	return 0
}
