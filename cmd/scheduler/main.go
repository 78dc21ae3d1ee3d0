package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/prometheus/client_golang/prometheus"

	"slack-digest-bot/internal/app"
	"slack-digest-bot/internal/infra/config"
	httpinfra "slack-digest-bot/internal/infra/http"
	logger "slack-digest-bot/internal/infra/log"
	"slack-digest-bot/internal/infra/metrics"
	"slack-digest-bot/internal/usecase/schedule"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg := config.Load()
	log := logger.NewLogger(cfg.AppEnv, cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("scheduler: конфигурация некорректна")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.MustRegister(prometheus.DefaultRegisterer)

	application, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("scheduler: не удалось собрать приложение")
		os.Exit(1)
	}
	defer application.Close()

	scheduler, err := schedule.NewService(application.Digest, cfg.Digest.Cron, application.Location, log)
	if err != nil {
		log.Error().Err(err).Msg("scheduler: некорректное расписание")
		os.Exit(1)
	}
	if err := scheduler.Start(ctx); err != nil {
		log.Error().Err(err).Msg("scheduler: не удалось запустить cron")
		os.Exit(1)
	}

	server := httpinfra.NewServer(log)
	server.RegisterDigestRoutes(application.Digest, scheduler, func(err error) bool {
		return errors.Is(err, schedule.ErrRunInProgress)
	})
	go func() {
		if err := server.Start(cfg.HTTPAddr); err != nil {
			log.Error().Err(err).Msg("scheduler: HTTP сервер остановлен")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("scheduler: остановка")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("scheduler: ошибка остановки HTTP сервера")
	}
	if err := scheduler.Stop(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("scheduler: текущий запуск не успел завершиться")
	}
}
