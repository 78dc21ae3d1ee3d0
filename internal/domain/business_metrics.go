package domain

import (
	"context"
	"time"
)

// BusinessMetric описывает событие запуска, которое сохраняется для последующего анализа.
// Текст сообщений сюда не попадает.
type BusinessMetric struct {
	Event      string
	RunID      string
	ChannelID  *string
	Metadata   map[string]any
	OccurredAt time.Time
}

const (
	// BusinessMetricEventDigestPosted фиксирует успешную доставку дайджеста.
	BusinessMetricEventDigestPosted = "digest_posted"
	// BusinessMetricEventDigestFailed фиксирует фатальную ошибку запуска.
	BusinessMetricEventDigestFailed = "digest_failed"
	// BusinessMetricEventChannelFailed фиксирует ошибку обработки отдельного канала.
	BusinessMetricEventChannelFailed = "channel_failed"
)

// BusinessMetricRepo сохраняет бизнесовые события.
type BusinessMetricRepo interface {
	RecordBusinessMetric(ctx context.Context, metric BusinessMetric) error
}
