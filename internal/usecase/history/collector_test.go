package history

import (
	"context"
	"errors"
	"iter"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"slack-digest-bot/internal/domain"
)

type fakeSource struct {
	messages     []domain.Message
	listErr      error
	replies      map[string][]domain.Message
	repliesErr   error
	repliesCalls []string
}

func (f *fakeSource) ListMessages(ctx context.Context, ch domain.ChannelRef, w domain.TimeWindow) iter.Seq2[domain.Message, error] {
	return func(yield func(domain.Message, error) bool) {
		for _, m := range f.messages {
			if !yield(m, nil) {
				return
			}
		}
		if f.listErr != nil {
			yield(domain.Message{}, f.listErr)
		}
	}
}

func (f *fakeSource) ListThreadReplies(ctx context.Context, ch domain.ChannelRef, rootID string) ([]domain.Message, error) {
	f.repliesCalls = append(f.repliesCalls, rootID)
	if f.repliesErr != nil {
		return nil, f.repliesErr
	}
	return f.replies[rootID], nil
}

var base = time.Date(2024, 4, 9, 8, 0, 0, 0, time.UTC)

func msg(id string, offset time.Duration) domain.Message {
	return domain.Message{ID: id, Text: id, Timestamp: base.Add(offset)}
}

func texts(tr domain.Transcript) string {
	parts := make([]string, 0, len(tr.Messages))
	for _, m := range tr.Messages {
		parts = append(parts, m.Text)
	}
	return strings.Join(parts, ",")
}

func TestWindowFor(t *testing.T) {
	tests := []struct {
		name  string
		runAt time.Time
		want  time.Duration
	}{
		{name: "понедельник", runAt: time.Date(2024, 4, 8, 9, 0, 0, 0, time.UTC), want: 72 * time.Hour},
		{name: "вторник", runAt: time.Date(2024, 4, 9, 9, 0, 0, 0, time.UTC), want: 24 * time.Hour},
		{name: "воскресенье", runAt: time.Date(2024, 4, 7, 9, 0, 0, 0, time.UTC), want: 24 * time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := WindowFor(tt.runAt)
			if !w.End.Equal(tt.runAt) {
				t.Fatalf("конец окна должен совпадать с моментом запуска")
			}
			if got := w.End.Sub(w.Start); got != tt.want {
				t.Fatalf("ожидали %v, получили %v", tt.want, got)
			}
			if !w.Valid() {
				t.Fatalf("окно невалидно")
			}
		})
	}
}

func TestWindowForUsesRunLocation(t *testing.T) {
	// 2024-04-07 23:30 UTC это уже понедельник в UTC+3
	loc := time.FixedZone("MSK", 3*3600)
	runAt := time.Date(2024, 4, 7, 23, 30, 0, 0, time.UTC).In(loc)
	if got := WindowFor(runAt); got.End.Sub(got.Start) != 72*time.Hour {
		t.Fatalf("ожидали окно понедельника в локации запуска")
	}
}

func TestCollectInterleavesThreads(t *testing.T) {
	root := msg("root", time.Hour)
	root.HasReplies = true
	root.ThreadRootID = root.ID
	broadcast := msg("r2", 3*time.Hour)
	broadcast.ThreadRootID = root.ID
	broadcast.Subtype = "thread_broadcast"

	src := &fakeSource{
		messages: []domain.Message{msg("late", 4*time.Hour), broadcast, root, msg("early", 0)},
		replies: map[string][]domain.Message{
			root.ID: {broadcast, msg("r1", 2*time.Hour)},
		},
	}
	tr, err := NewCollector(src, zerolog.Nop()).Collect(context.Background(), domain.ChannelRef{ID: "C1"}, WindowFor(base.Add(24*time.Hour)))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if got := texts(tr); got != "early,root,r1,r2,late" {
		t.Fatalf("неожиданный порядок: %s", got)
	}
	if tr.Messages[2].ThreadRootID != root.ID {
		t.Fatalf("ответ должен ссылаться на корень")
	}
	if len(src.repliesCalls) != 1 {
		t.Fatalf("ожидали один запрос ответов, получили %d", len(src.repliesCalls))
	}
}

func TestCollectDoesNotBackfillOutOfWindowRoots(t *testing.T) {
	orphan := msg("orphan", time.Hour)
	orphan.ThreadRootID = "1.000000"
	src := &fakeSource{messages: []domain.Message{orphan}}
	tr, err := NewCollector(src, zerolog.Nop()).Collect(context.Background(), domain.ChannelRef{ID: "C1"}, WindowFor(base.Add(24*time.Hour)))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if texts(tr) != "orphan" || len(src.repliesCalls) != 0 {
		t.Fatalf("корень вне окна не должен догружаться: %s, вызовов %d", texts(tr), len(src.repliesCalls))
	}
}

func TestCollectWrapsFetchErrors(t *testing.T) {
	denied := errors.New("not_in_channel")
	root := msg("root", 0)
	root.HasReplies = true

	tests := []struct {
		name string
		src  *fakeSource
	}{
		{name: "история", src: &fakeSource{messages: []domain.Message{msg("a", 0)}, listErr: denied}},
		{name: "ответы", src: &fakeSource{messages: []domain.Message{root}, repliesErr: denied}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCollector(tt.src, zerolog.Nop()).Collect(context.Background(), domain.ChannelRef{ID: "C1", Name: "general"}, WindowFor(base))
			if !errors.Is(err, domain.ErrHistoryFetch) || !errors.Is(err, denied) {
				t.Fatalf("ожидали ErrHistoryFetch с причиной, получили %v", err)
			}
		})
	}
}
