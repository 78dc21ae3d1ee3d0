package schedule

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"slack-digest-bot/internal/domain"
)

var (
	// ErrInvalidTimezone возвращается, если указан некорректный часовой пояс.
	ErrInvalidTimezone = errors.New("invalid timezone")
	// ErrRunInProgress предыдущий запуск ещё не закончился.
	ErrRunInProgress = errors.New("запуск дайджеста уже выполняется")
)

// Runner выполняет один запуск дайджеста.
type Runner interface {
	Run(ctx context.Context, cause domain.RunCause) (domain.DigestReport, error)
}

// Service запускает дайджест по cron и вручную, не допуская параллельных запусков.
type Service struct {
	runner Runner
	spec   string
	cron   *cron.Cron
	log    zerolog.Logger

	running atomic.Bool
	wg      sync.WaitGroup

	mu      sync.Mutex
	baseCtx context.Context
}

// NewService создаёт планировщик. spec — стандартное cron-выражение из пяти полей или дескриптор (@daily).
func NewService(runner Runner, spec string, loc *time.Location, logger zerolog.Logger) (*Service, error) {
	if loc == nil {
		loc = time.UTC
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("разбор расписания %q: %w", spec, err)
	}
	return &Service{
		runner:  runner,
		spec:    spec,
		cron:    cron.New(cron.WithLocation(loc)),
		log:     logger.With().Str("component", "schedule").Logger(),
		baseCtx: context.Background(),
	}, nil
}

// Start регистрирует задачу и запускает cron. ctx служит родителем для всех запусков.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()
	_, err := s.cron.AddFunc(s.spec, func() {
		if _, err := s.Trigger(ctx, domain.RunCauseScheduled); errors.Is(err, ErrRunInProgress) {
			s.log.Warn().Msg("schedule: tick skipped, previous run still in progress")
		}
	})
	if err != nil {
		return fmt.Errorf("регистрация расписания: %w", err)
	}
	s.cron.Start()
	s.log.Info().Str("spec", s.spec).Time("next", s.Next()).Msg("schedule: started")
	return nil
}

// Stop останавливает cron и ждёт текущий запуск, пока ctx не истечёт.
func (s *Service) Stop(ctx context.Context) error {
	<-s.cron.Stop().Done()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Trigger выполняет запуск синхронно.
func (s *Service) Trigger(ctx context.Context, cause domain.RunCause) (domain.DigestReport, error) {
	if !s.running.CompareAndSwap(false, true) {
		return domain.DigestReport{}, ErrRunInProgress
	}
	s.wg.Add(1)
	defer s.wg.Done()
	defer s.running.Store(false)
	return s.run(ctx, cause)
}

// TriggerAsync запускает дайджест в фоне в контексте планировщика.
func (s *Service) TriggerAsync(cause domain.RunCause) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrRunInProgress
	}
	s.mu.Lock()
	ctx := s.baseCtx
	s.mu.Unlock()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)
		_, _ = s.run(ctx, cause)
	}()
	return nil
}

// Running сообщает, идёт ли сейчас запуск.
func (s *Service) Running() bool {
	return s.running.Load()
}

// Next время следующего запуска по расписанию. Нулевое, если cron не запущен.
func (s *Service) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (s *Service) run(ctx context.Context, cause domain.RunCause) (domain.DigestReport, error) {
	report, err := s.runner.Run(ctx, cause)
	if err != nil {
		s.log.Error().Err(err).Str("cause", string(cause)).Msg("schedule: run failed")
	}
	return report, err
}

// Location разбирает часовой пояс с нормализацией регистра.
func Location(raw string) (*time.Location, error) {
	name, err := NormalizeTimezone(raw)
	if err != nil {
		return nil, err
	}
	return time.LoadLocation(name)
}

// NormalizeTimezone приводит ввод вроде "europe/moscow" к имени IANA.
func NormalizeTimezone(raw string) (string, error) {
	candidate := strings.TrimSpace(raw)
	if candidate == "" {
		return "", ErrInvalidTimezone
	}
	candidate = strings.ReplaceAll(candidate, " ", "_")
	if _, err := time.LoadLocation(candidate); err == nil {
		return candidate, nil
	}

	lower := strings.ToLower(candidate)
	parts := strings.Split(lower, "/")
	for i, part := range parts {
		segments := strings.Split(part, "_")
		for j, segment := range segments {
			pieces := strings.Split(segment, "-")
			for k, piece := range pieces {
				if piece == "" {
					continue
				}
				pieces[k] = strings.ToUpper(piece[:1]) + piece[1:]
			}
			segments[j] = strings.Join(pieces, "-")
		}
		parts[i] = strings.Join(segments, "_")
	}
	normalized := strings.Join(parts, "/")
	if _, err := time.LoadLocation(normalized); err == nil {
		return normalized, nil
	}
	return "", ErrInvalidTimezone
}
