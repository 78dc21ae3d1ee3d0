package domain

import (
	"context"
	"iter"
	"time"
)

// ChannelLister перечисляет каналы, видимые боту.
type ChannelLister interface {
	ListChannels(ctx context.Context) ([]ChannelRef, error)
}

// HistorySource отдаёт историю канала.
type HistorySource interface {
	// ListMessages лениво обходит страницы истории. Повторный range начинает обход заново.
	ListMessages(ctx context.Context, channel ChannelRef, window TimeWindow) iter.Seq2[Message, error]
	// ListThreadReplies возвращает ответы треда без корневого сообщения.
	ListThreadReplies(ctx context.Context, channel ChannelRef, rootID string) ([]Message, error)
}

// Poster публикует сообщение. Реализация не должна молча повторять неоднозначные ошибки.
type Poster interface {
	PostMessage(ctx context.Context, channel, text string) error
}

// MessagingGateway полный контракт мессенджера.
type MessagingGateway interface {
	ChannelLister
	HistorySource
	Poster
}

// Summarizer превращает транскрипт канала в список пунктов.
// Пустой список без ошибки означает, что полезного в канале не нашлось.
type Summarizer interface {
	Summarize(ctx context.Context, channel ChannelRef, transcript Transcript) ([]string, error)
}

// SummaryCache хранит готовые пункты по ключу транскрипта.
type SummaryCache interface {
	GetSummary(ctx context.Context, key string) ([]string, bool, error)
	SetSummary(ctx context.Context, key string, bullets []string, ttl time.Duration) error
}
