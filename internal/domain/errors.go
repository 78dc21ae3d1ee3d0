package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrDiscovery не удалось перечислить каналы, запуск прерывается.
	ErrDiscovery = errors.New("не удалось получить список каналов")
	// ErrHistoryFetch не удалось получить историю одного канала.
	ErrHistoryFetch = errors.New("не удалось получить историю канала")
	// ErrRateLimitExceeded исчерпаны попытки при ответах rate limited.
	ErrRateLimitExceeded = errors.New("превышен лимит запросов")
	// ErrSummarization модель не ответила после всех попыток.
	ErrSummarization = errors.New("не удалось получить сводку")
	// ErrPost дайджест не доставлен.
	ErrPost = errors.New("не удалось отправить дайджест")
	// ErrParse ответ внешнего сервиса не разобран.
	ErrParse = errors.New("неожиданный формат ответа")
)

// RateLimitError описывает исчерпание попыток для одной операции.
type RateLimitError struct {
	Op         string
	Attempts   int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: rate limited после %d попыток (retry after %s)", e.Op, e.Attempts, e.RetryAfter)
}

// Is позволяет сравнивать с ErrRateLimitExceeded.
func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimitExceeded
}
