package domain

import "time"

// ChannelKind различает публичные и приватные каналы.
type ChannelKind string

const (
	// ChannelPublic публичный канал рабочего пространства.
	ChannelPublic ChannelKind = "public"
	// ChannelPrivate приватный канал, видимый боту как участнику.
	ChannelPrivate ChannelKind = "private"
)

// ChannelRef снимок канала на момент обнаружения. Между запусками не хранится.
type ChannelRef struct {
	ID          string
	Name        string
	Kind        ChannelKind
	MemberCount int
}

// TimeWindow полуинтервал [Start, End).
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// Valid сообщает, что Start строго раньше End.
func (w TimeWindow) Valid() bool {
	return w.Start.Before(w.End)
}

// Contains проверяет попадание момента в окно.
func (w TimeWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Message сообщение канала или ответ в треде.
type Message struct {
	// ID — ts сообщения в мессенджере, уникален в пределах канала.
	ID           string
	AuthorID     string
	Text         string
	Timestamp    time.Time
	IsBotAuthor  bool
	ThreadRootID string
	HasReplies   bool
	Subtype      string
}

// IsReply сообщает, что сообщение является ответом в чужом треде.
func (m Message) IsReply() bool {
	return m.ThreadRootID != "" && m.ThreadRootID != m.ID
}

// Transcript упорядоченная лента сообщений канала за окно: ответы идут сразу после корня треда.
type Transcript struct {
	Channel  ChannelRef
	Window   TimeWindow
	Messages []Message
}

// Empty сообщает, что в транскрипте нет сообщений.
func (t Transcript) Empty() bool {
	return len(t.Messages) == 0
}

// SummaryStatus итог обработки канала.
type SummaryStatus int

const (
	// StatusOK канал дал хотя бы один пункт.
	StatusOK SummaryStatus = iota
	// StatusSkipped канал пропущен, причина в Reason.
	StatusSkipped
	// StatusFailed обработка канала завершилась ошибкой.
	StatusFailed
)

func (s SummaryStatus) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Причины пропуска канала.
const (
	ReasonNoContent  = "no content"
	ReasonNoInsights = "no insights"
	ReasonRunTimeout = "run timeout"
)

// ChannelSummary результат обработки одного выбранного канала.
type ChannelSummary struct {
	Channel ChannelRef
	Status  SummaryStatus
	Bullets []string
	Reason  string
	Err     error
}

// OKSummary строит успешный результат.
func OKSummary(ch ChannelRef, bullets []string) ChannelSummary {
	return ChannelSummary{Channel: ch, Status: StatusOK, Bullets: bullets}
}

// SkippedSummary строит пропущенный результат.
func SkippedSummary(ch ChannelRef, reason string) ChannelSummary {
	return ChannelSummary{Channel: ch, Status: StatusSkipped, Reason: reason}
}

// FailedSummary строит результат с ошибкой.
func FailedSummary(ch ChannelRef, err error) ChannelSummary {
	return ChannelSummary{Channel: ch, Status: StatusFailed, Err: err}
}

// DigestCounts сводные счётчики отчёта.
type DigestCounts struct {
	Processed int
	OK        int
	Skipped   int
	Failed    int
}

// DigestReport итоговый отчёт запуска. Порядок Summaries совпадает с порядком селектора.
type DigestReport struct {
	RunID         string
	Title         string
	RunAt         time.Time
	Window        TimeWindow
	Summaries     []ChannelSummary
	TotalChannels int
}

// Counts считает итоги по статусам.
func (r DigestReport) Counts() DigestCounts {
	counts := DigestCounts{Processed: r.TotalChannels}
	for _, s := range r.Summaries {
		switch s.Status {
		case StatusOK:
			counts.OK++
		case StatusSkipped:
			counts.Skipped++
		case StatusFailed:
			counts.Failed++
		}
	}
	return counts
}
