package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"slack-digest-bot/internal/domain"
	"slack-digest-bot/internal/infra/metrics"
)

// execer подмножество pgxpool.Pool, нужное журналу событий.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Postgres сохраняет события запусков в таблицу business_metrics.
type Postgres struct {
	db execer
}

var _ domain.BusinessMetricRepo = (*Postgres)(nil)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{db: pool}
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS business_metrics (
    id          BIGSERIAL PRIMARY KEY,
    event       TEXT        NOT NULL,
    run_id      TEXT        NOT NULL,
    channel_id  TEXT,
    metadata    JSONB,
    occurred_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS business_metrics_run_idx ON business_metrics (run_id);
`

// EnsureSchema создаёт таблицу, если её ещё нет.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	ctx, cancel := connCtx(ctx)
	defer cancel()
	start := time.Now()
	_, err := p.db.Exec(ctx, schemaSQL)
	metrics.ObserveNetworkRequest("postgres", "ensure_schema", "business_metrics", start, err)
	return err
}

func connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// RecordBusinessMetric сохраняет бизнесовую метрику в БД.
func (p *Postgres) RecordBusinessMetric(ctx context.Context, metric domain.BusinessMetric) error {
	if metric.Event == "" {
		return nil
	}
	if metric.OccurredAt.IsZero() {
		metric.OccurredAt = time.Now().UTC()
	}

	ctx, cancel := connCtx(ctx)
	defer cancel()

	var channelID sql.NullString
	if metric.ChannelID != nil {
		channelID = sql.NullString{String: *metric.ChannelID, Valid: true}
	}

	var payload []byte
	if metric.Metadata != nil {
		if data, err := json.Marshal(metric.Metadata); err == nil {
			payload = data
		}
	}

	start := time.Now()
	_, err := p.db.Exec(ctx, `
INSERT INTO business_metrics (event, run_id, channel_id, metadata, occurred_at)
VALUES ($1, $2, $3, $4, $5)
`, metric.Event, metric.RunID, channelID, payload, metric.OccurredAt)
	metrics.ObserveNetworkRequest("postgres", "business_metrics_insert", "business_metrics", start, err)
	return err
}
