package history

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"slack-digest-bot/internal/domain"
)

const (
	dailyLookback  = 24 * time.Hour
	mondayLookback = 72 * time.Hour
)

// WindowFor возвращает окно запуска: сутки назад, а в понедельник трое суток, чтобы захватить выходные.
// День недели берётся в локации runAt.
func WindowFor(runAt time.Time) domain.TimeWindow {
	lookback := dailyLookback
	if runAt.Weekday() == time.Monday {
		lookback = mondayLookback
	}
	return domain.TimeWindow{Start: runAt.Add(-lookback), End: runAt}
}

// Collector собирает транскрипт канала с развёрнутыми тредами.
type Collector struct {
	source domain.HistorySource
	log    zerolog.Logger
}

// NewCollector создаёт сборщик истории.
func NewCollector(source domain.HistorySource, logger zerolog.Logger) *Collector {
	return &Collector{source: source, log: logger.With().Str("component", "history").Logger()}
}

// Collect читает сообщения окна и вставляет ответы треда сразу после корня.
// Корни вне окна не догружаются: тред попадает в транскрипт, только если корень вернула выборка окна.
func (c *Collector) Collect(ctx context.Context, channel domain.ChannelRef, window domain.TimeWindow) (domain.Transcript, error) {
	var top []domain.Message
	for msg, err := range c.source.ListMessages(ctx, channel, window) {
		if err != nil {
			return domain.Transcript{}, fmt.Errorf("%w: %s: %w", domain.ErrHistoryFetch, channel.Name, err)
		}
		top = append(top, msg)
	}
	sortChronologically(top)

	roots := make(map[string]struct{})
	for _, msg := range top {
		if msg.HasReplies {
			roots[msg.ID] = struct{}{}
		}
	}

	out := make([]domain.Message, 0, len(top))
	seen := make(map[string]struct{}, len(top))
	threads := 0
	for _, msg := range top {
		// thread_broadcast виден и в канале, и в треде; оставляем копию из треда
		if _, ok := roots[msg.ThreadRootID]; ok && msg.IsReply() {
			continue
		}
		if _, dup := seen[msg.ID]; dup {
			continue
		}
		seen[msg.ID] = struct{}{}
		out = append(out, msg)
		if !msg.HasReplies {
			continue
		}
		replies, err := c.source.ListThreadReplies(ctx, channel, msg.ID)
		if err != nil {
			return domain.Transcript{}, fmt.Errorf("%w: %s: тред %s: %w", domain.ErrHistoryFetch, channel.Name, msg.ID, err)
		}
		sortChronologically(replies)
		for _, reply := range replies {
			if _, dup := seen[reply.ID]; dup {
				continue
			}
			seen[reply.ID] = struct{}{}
			if reply.ThreadRootID == "" {
				reply.ThreadRootID = msg.ID
			}
			out = append(out, reply)
		}
		threads++
	}

	c.log.Debug().
		Str("channel_id", channel.ID).
		Int("top_level", len(top)).
		Int("threads", threads).
		Int("messages", len(out)).
		Msg("history: transcript collected")
	return domain.Transcript{Channel: channel, Window: window, Messages: out}, nil
}

func sortChronologically(msgs []domain.Message) {
	slices.SortStableFunc(msgs, func(a, b domain.Message) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
