package channels

import (
	"strings"

	"slack-digest-bot/internal/domain"
)

// Selector отбирает каналы для обработки.
type Selector struct {
	ignore      map[string]struct{}
	destination string
}

// NewSelector создаёт селектор. destination — id канала дайджеста или "#имя".
func NewSelector(ignoreIDs []string, destination string) *Selector {
	ids := NormalizeIDs(ignoreIDs)
	ignore := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		ignore[id] = struct{}{}
	}
	return &Selector{ignore: ignore, destination: strings.TrimSpace(destination)}
}

// Select убирает игнорируемые каналы и канал дайджеста, порядок обнаружения сохраняется.
func (s *Selector) Select(all []domain.ChannelRef) []domain.ChannelRef {
	out := make([]domain.ChannelRef, 0, len(all))
	for _, ch := range all {
		if _, skip := s.ignore[ch.ID]; skip {
			continue
		}
		if s.isDestination(ch) {
			continue
		}
		out = append(out, ch)
	}
	return out
}

// Ignored сообщает, исключён ли канал списком игнорирования.
func (s *Selector) Ignored(id string) bool {
	_, ok := s.ignore[id]
	return ok
}

func (s *Selector) isDestination(ch domain.ChannelRef) bool {
	if s.destination == "" {
		return false
	}
	if name, ok := strings.CutPrefix(s.destination, "#"); ok {
		return ch.Name == name
	}
	return ch.ID == s.destination
}

// NormalizeIDs чистит список id: пробелы, пустые значения и дубли. Регистр значим.
func NormalizeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	cleaned := make([]string, 0, len(ids))
	for _, id := range ids {
		trimmed := strings.TrimSpace(id)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		cleaned = append(cleaned, trimmed)
	}
	return cleaned
}
