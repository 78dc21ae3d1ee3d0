package digest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"slack-digest-bot/internal/domain"
	"slack-digest-bot/internal/infra/metrics"
	"slack-digest-bot/internal/usecase/filter"
	"slack-digest-bot/internal/usecase/history"
)

const (
	defaultPostTimeout   = 30 * time.Second
	recordTimeout        = 5 * time.Second
	defaultTitle         = "Customer Channel Summary"
	defaultConcurrency   = 1
	outcomeDone          = "done"
	outcomeFailed        = "failed"
	metadataErrorMaxRune = 500
)

// TranscriptCollector собирает транскрипт канала за окно.
type TranscriptCollector interface {
	Collect(ctx context.Context, channel domain.ChannelRef, window domain.TimeWindow) (domain.Transcript, error)
}

// ChannelSelector отбирает каналы для обработки.
type ChannelSelector interface {
	Select(all []domain.ChannelRef) []domain.ChannelRef
}

// Deps зависимости оркестратора. Recorder необязателен.
type Deps struct {
	Lister     domain.ChannelLister
	Poster     domain.Poster
	Collector  TranscriptCollector
	Summarizer domain.Summarizer
	Selector   ChannelSelector
	Recorder   domain.BusinessMetricRepo
	Logger     zerolog.Logger
}

// Options параметры запуска.
type Options struct {
	Title       string
	Destination string
	Concurrency int
	// RunTimeout ограничивает обработку каналов. 0 — без ограничения.
	RunTimeout  time.Duration
	PostTimeout time.Duration
	Location    *time.Location
}

// Service проводит один запуск: обнаружение, обработка каналов, сборка и отправка дайджеста.
type Service struct {
	deps  Deps
	opts  Options
	log   zerolog.Logger
	now   func() time.Time
	state atomic.Value
}

// NewService создаёт оркестратор.
func NewService(deps Deps, opts Options) *Service {
	if opts.Title == "" {
		opts.Title = defaultTitle
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.PostTimeout <= 0 {
		opts.PostTimeout = defaultPostTimeout
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	s := &Service{
		deps: deps,
		opts: opts,
		log:  deps.Logger.With().Str("component", "digest").Logger(),
		now:  time.Now,
	}
	s.state.Store(domain.RunStateIdle)
	return s
}

// State текущее состояние. Безопасно читать из других горутин.
func (s *Service) State() domain.RunState {
	return s.state.Load().(domain.RunState)
}

func (s *Service) setState(state domain.RunState) {
	s.state.Store(state)
}

// Run выполняет запуск. Ошибка возвращается только для фатальных стадий: обнаружение и отправка.
func (s *Service) Run(ctx context.Context, cause domain.RunCause) (domain.DigestReport, error) {
	runID := uuid.NewString()
	start := time.Now()
	log := s.log.With().Str("run_id", runID).Str("cause", string(cause)).Logger()
	runAt := s.now().In(s.opts.Location)
	window := history.WindowFor(runAt)

	log.Info().Time("window_start", window.Start).Time("window_end", window.End).Msg("digest: run started")

	s.setState(domain.RunStateDiscovering)
	all, err := s.deps.Lister.ListChannels(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrDiscovery) {
			err = fmt.Errorf("%w: %w", domain.ErrDiscovery, err)
		}
		return domain.DigestReport{}, s.fail(ctx, log, runID, start, err)
	}
	selected := s.deps.Selector.Select(all)
	log.Info().Int("discovered", len(all)).Int("selected", len(selected)).Msg("digest: channels selected")

	s.setState(domain.RunStateProcessing)
	procCtx, cancel := s.processingContext(ctx)
	results := s.processAll(procCtx, log, runID, selected, window)
	cancel()

	s.setState(domain.RunStateAssembling)
	report := Assemble(Header{RunID: runID, Title: s.opts.Title, RunAt: runAt, Window: window}, selected, results)
	text := FormatDigest(report)
	counts := report.Counts()

	s.setState(domain.RunStatePosting)
	// отчёт отправляется даже после таймаута обработки или отмены родителя
	postCtx, cancelPost := context.WithTimeout(context.WithoutCancel(ctx), s.opts.PostTimeout)
	err = s.deps.Poster.PostMessage(postCtx, s.opts.Destination, text)
	cancelPost()
	if err != nil {
		return report, s.fail(ctx, log, runID, start, fmt.Errorf("%w: %w", domain.ErrPost, err))
	}

	s.setState(domain.RunStateDone)
	metrics.ObserveRun(start, outcomeDone)
	s.record(ctx, domain.BusinessMetric{
		Event: domain.BusinessMetricEventDigestPosted,
		RunID: runID,
		Metadata: map[string]any{
			"cause":     string(cause),
			"processed": counts.Processed,
			"ok":        counts.OK,
			"skipped":   counts.Skipped,
			"failed":    counts.Failed,
		},
	})
	log.Info().
		Int("processed", counts.Processed).
		Int("ok", counts.OK).
		Int("skipped", counts.Skipped).
		Int("failed", counts.Failed).
		Dur("duration", time.Since(start)).
		Msg("digest: run done")
	return report, nil
}

func (s *Service) processingContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.RunTimeout > 0 {
		return context.WithTimeout(ctx, s.opts.RunTimeout)
	}
	return context.WithCancel(ctx)
}

type indexedSummary struct {
	idx     int
	summary domain.ChannelSummary
}

// processAll обрабатывает каналы параллельно под семафором. Результаты приходят по буферизованному
// каналу с индексом селектора, поэтому порядок завершения не влияет на порядок отчёта.
func (s *Service) processAll(ctx context.Context, log zerolog.Logger, runID string, selected []domain.ChannelRef, window domain.TimeWindow) map[int]domain.ChannelSummary {
	results := make(map[int]domain.ChannelSummary, len(selected))
	if len(selected) == 0 {
		return results
	}

	out := make(chan indexedSummary, len(selected))
	sem := semaphore.NewWeighted(int64(s.opts.Concurrency))
	var wg sync.WaitGroup
	for i, ch := range selected {
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Warn().Int("not_started", len(selected)-i).Msg("digest: processing budget exhausted")
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			out <- indexedSummary{idx: i, summary: s.processChannel(ctx, log, runID, ch, window)}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		// задачи в полёте брошены, их слоты заполнит Assemble
	}

	for {
		select {
		case r := <-out:
			results[r.idx] = r.summary
		default:
			return results
		}
	}
}

func (s *Service) processChannel(ctx context.Context, log zerolog.Logger, runID string, ch domain.ChannelRef, window domain.TimeWindow) (summary domain.ChannelSummary) {
	log = log.With().Str("channel_id", ch.ID).Str("channel", ch.Name).Logger()
	defer func() {
		if r := recover(); r != nil {
			summary = domain.FailedSummary(ch, fmt.Errorf("panic: %v", r))
		}
		s.observeChannel(ctx, log, runID, summary)
	}()

	if ctx.Err() != nil {
		return domain.SkippedSummary(ch, domain.ReasonRunTimeout)
	}
	transcript, err := s.deps.Collector.Collect(ctx, ch, window)
	if err != nil {
		return failure(ctx, ch, err)
	}
	raw := len(transcript.Messages)
	transcript = filter.Apply(transcript)
	log.Debug().Int("messages", raw).Int("kept", len(transcript.Messages)).Msg("digest: transcript filtered")
	if transcript.Empty() {
		return domain.SkippedSummary(ch, domain.ReasonNoContent)
	}
	bullets, err := s.deps.Summarizer.Summarize(ctx, ch, transcript)
	if err != nil {
		return failure(ctx, ch, err)
	}
	if len(bullets) == 0 {
		return domain.SkippedSummary(ch, domain.ReasonNoInsights)
	}
	return domain.OKSummary(ch, bullets)
}

// failure превращает ошибку канала в итог. Ошибка из-за исчерпанного бюджета запуска — это пропуск.
func failure(ctx context.Context, ch domain.ChannelRef, err error) domain.ChannelSummary {
	if ctx.Err() != nil {
		return domain.SkippedSummary(ch, domain.ReasonRunTimeout)
	}
	return domain.FailedSummary(ch, err)
}

func (s *Service) observeChannel(ctx context.Context, log zerolog.Logger, runID string, summary domain.ChannelSummary) {
	metrics.IncChannelOutcome(summary.Status.String())
	switch summary.Status {
	case domain.StatusOK:
		log.Info().Int("bullets", len(summary.Bullets)).Msg("digest: channel summarized")
	case domain.StatusSkipped:
		log.Info().Str("reason", summary.Reason).Msg("digest: channel skipped")
	case domain.StatusFailed:
		log.Error().Err(summary.Err).Msg("digest: channel failed")
		channelID := summary.Channel.ID
		s.record(ctx, domain.BusinessMetric{
			Event:     domain.BusinessMetricEventChannelFailed,
			RunID:     runID,
			ChannelID: &channelID,
			Metadata:  map[string]any{"error": clipError(summary.Err)},
		})
	}
}

func (s *Service) fail(ctx context.Context, log zerolog.Logger, runID string, start time.Time, err error) error {
	s.setState(domain.RunStateFailed)
	metrics.ObserveRun(start, outcomeFailed)
	log.Error().Err(err).Msg("digest: run failed")
	s.record(ctx, domain.BusinessMetric{
		Event:    domain.BusinessMetricEventDigestFailed,
		RunID:    runID,
		Metadata: map[string]any{"error": clipError(err)},
	})
	return err
}

// record пишет событие без влияния на исход запуска.
func (s *Service) record(ctx context.Context, metric domain.BusinessMetric) {
	if s.deps.Recorder == nil {
		return
	}
	if metric.OccurredAt.IsZero() {
		metric.OccurredAt = s.now().UTC()
	}
	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := s.deps.Recorder.RecordBusinessMetric(recCtx, metric); err != nil {
		s.log.Warn().Err(err).Str("event", metric.Event).Msg("digest: business metric not recorded")
	}
}

func clipError(err error) string {
	if err == nil {
		return ""
	}
	runes := []rune(err.Error())
	if len(runes) > metadataErrorMaxRune {
		runes = runes[:metadataErrorMaxRune]
	}
	return string(runes)
}
