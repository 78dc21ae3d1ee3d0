package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"slack-digest-bot/internal/adapters/repo"
	slackadapter "slack-digest-bot/internal/adapters/slack"
	"slack-digest-bot/internal/adapters/summarizer"
	"slack-digest-bot/internal/domain"
	"slack-digest-bot/internal/infra/cache"
	"slack-digest-bot/internal/infra/config"
	"slack-digest-bot/internal/infra/db"
	"slack-digest-bot/internal/infra/openai"
	"slack-digest-bot/internal/usecase/channels"
	"slack-digest-bot/internal/usecase/digest"
	"slack-digest-bot/internal/usecase/history"
	"slack-digest-bot/internal/usecase/schedule"
)

const breakerCooldown = time.Minute

// App собранный оркестратор и его окружение.
type App struct {
	Digest   *digest.Service
	Location *time.Location

	closers []func()
}

// Close освобождает подключения к Redis и Postgres.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// Build собирает оркестратор по конфигу. Конфиг должен пройти Validate.
// Redis и Postgres подключаются, только если заданы их адреса.
func Build(ctx context.Context, cfg config.AppConfig, logger zerolog.Logger) (*App, error) {
	loc, err := schedule.Location(cfg.TZ)
	if err != nil {
		return nil, fmt.Errorf("config: некорректный TZ %q: %w", cfg.TZ, err)
	}
	a := &App{Location: loc}

	var summaryCache domain.SummaryCache
	if cfg.RedisAddr != "" {
		client, err := cache.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			// без кэша дайджест всё равно строится
			logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("app: redis недоступен, кэш суммаризации отключён")
		} else {
			a.closers = append(a.closers, func() { _ = client.Close() })
			summaryCache = cache.NewRedis(client)
		}
	}

	var recorder domain.BusinessMetricRepo
	if cfg.PGDSN != "" {
		pool, err := db.Connect(ctx, cfg.PGDSN)
		if err != nil {
			logger.Warn().Err(err).Msg("app: postgres недоступен, события запусков не сохраняются")
		} else {
			a.closers = append(a.closers, pool.Close)
			pg := repo.NewPostgres(pool)
			if err := pg.EnsureSchema(ctx); err != nil {
				logger.Warn().Err(err).Msg("app: не удалось создать таблицу business_metrics")
			}
			recorder = pg
		}
	}

	gateway := slackadapter.NewGateway(
		slackadapter.NewClient(cfg.Slack.Token, logger, ""),
		logger,
		slackadapter.Options{
			GlobalRPS:   cfg.Slack.GlobalRPS,
			MaxAttempts: cfg.Slack.MaxAttempts,
			PageSize:    cfg.Slack.PageSize,
		},
	)

	a.Digest = digest.NewService(digest.Deps{
		Lister:     gateway,
		Poster:     gateway,
		Collector:  history.NewCollector(gateway, logger),
		Summarizer: newSummarizer(cfg, logger, summaryCache),
		Selector:   channels.NewSelector(cfg.Digest.Ignore, cfg.Digest.Channel),
		Recorder:   recorder,
		Logger:     logger,
	}, digest.Options{
		Title:       cfg.Digest.Title,
		Destination: cfg.Digest.Channel,
		Concurrency: cfg.Digest.Concurrency,
		RunTimeout:  cfg.Digest.RunTimeout,
		PostTimeout: cfg.Digest.PostTimeout,
		Location:    loc,
	})
	return a, nil
}

func newSummarizer(cfg config.AppConfig, logger zerolog.Logger, summaryCache domain.SummaryCache) domain.Summarizer {
	if cfg.Summary.Provider == config.SummarizerSimple {
		return summarizer.NewSimple(cfg.Summary.MaxBullets)
	}
	client := openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Timeout,
		openai.WithBreaker(cfg.OpenAI.BreakerFailures, breakerCooldown))
	return summarizer.NewOpenAI(client, logger, summarizer.Options{
		Model:       cfg.OpenAI.Model,
		Timeout:     cfg.OpenAI.Timeout,
		MaxAttempts: cfg.Summary.MaxAttempts,
		Backoff:     cfg.Summary.Backoff,
		MaxBullets:  cfg.Summary.MaxBullets,
		Cache:       summaryCache,
		CacheTTL:    cfg.Summary.CacheTTL,
	})
}
