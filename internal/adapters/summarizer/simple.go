package summarizer

import (
	"context"
	"strings"
	"unicode/utf8"

	"slack-digest-bot/internal/domain"
)

type category struct {
	label    string
	keywords []string
}

var categories = []category{
	{label: "Feature Request", keywords: []string{"feature", "would be nice", "wish", "please add", "could you add", "support for", "request"}},
	{label: "User Pain Point", keywords: []string{"bug", "broken", "error", "fails", "crash", "slow", "doesn't work", "can't", "cannot"}},
	{label: "UX Improvement", keywords: []string{"confusing", "hard to", "unclear", "ux", "ui"}},
	{label: "Product Win", keywords: []string{"love", "great", "awesome", "works well"}},
}

// SimpleSummarizer реализует domain.Summarizer эвристикой по ключевым словам, без внешних вызовов.
type SimpleSummarizer struct {
	maxBullets int
}

var _ domain.Summarizer = (*SimpleSummarizer)(nil)

// NewSimple создаёт Summarizer.
func NewSimple(maxBullets int) *SimpleSummarizer {
	if maxBullets <= 0 {
		maxBullets = defaultMaxBullets
	}
	return &SimpleSummarizer{maxBullets: maxBullets}
}

// Summarize берёт по первому сообщению на каждую категорию в порядке появления.
func (s *SimpleSummarizer) Summarize(_ context.Context, _ domain.ChannelRef, transcript domain.Transcript) ([]string, error) {
	used := make(map[string]struct{}, len(categories))
	var bullets []string
	for _, msg := range transcript.Messages {
		if len(bullets) >= s.maxBullets {
			break
		}
		text := strings.TrimSpace(msg.Text)
		if text == "" {
			continue
		}
		label, ok := match(strings.ToLower(text))
		if !ok {
			continue
		}
		if _, dup := used[label]; dup {
			continue
		}
		used[label] = struct{}{}
		bullets = append(bullets, "*"+label+"*: "+truncate(strings.Join(strings.Fields(text), " "), 160))
	}
	return bullets, nil
}

func match(lower string) (string, bool) {
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r == '\'')
	})
	wordSet := make(map[string]struct{}, len(words))
	for _, w := range words {
		wordSet[w] = struct{}{}
	}
	for _, c := range categories {
		for _, kw := range c.keywords {
			if strings.Contains(kw, " ") {
				if strings.Contains(lower, kw) {
					return c.label, true
				}
				continue
			}
			if _, ok := wordSet[kw]; ok {
				return c.label, true
			}
		}
	}
	return "", false
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + "…"
}
