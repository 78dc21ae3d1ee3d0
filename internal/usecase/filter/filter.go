package filter

import (
	"html"
	"regexp"
	"strings"

	"slack-digest-bot/internal/domain"
)

// Подтипы, которые считаются содержательными. Остальные (join, topic, pin и т.п.) — служебный шум.
var contentSubtypes = map[string]struct{}{
	"":                 {},
	"thread_broadcast": {},
}

var (
	mentionRe  = regexp.MustCompile(`<[@#!][^>]*>`)
	labeledRe  = regexp.MustCompile(`<([^<>|]+)\|([^<>]*)>`)
	linkRe     = regexp.MustCompile(`<([^<>]+)>`)
	emojiRe    = regexp.MustCompile(`:[\w+\-]*[a-zA-Z_+\-][\w+\-]*:`)
	emphasisRe = regexp.MustCompile(`[*~` + "`" + `]|\b_|_\b`)
	quoteRe    = regexp.MustCompile(`(?m)^\s*>+\s?`)
	spacesRe   = regexp.MustCompile(`[ \t]+`)
)

// Apply убирает сообщения ботов, служебные подтипы и пустые после очистки разметки.
// Порядок и ссылки на треды сохраняются, текст оставшихся сообщений очищается.
func Apply(tr domain.Transcript) domain.Transcript {
	kept := make([]domain.Message, 0, len(tr.Messages))
	for _, msg := range tr.Messages {
		if msg.IsBotAuthor {
			continue
		}
		if _, ok := contentSubtypes[msg.Subtype]; !ok {
			continue
		}
		text := StripMarkup(msg.Text)
		if text == "" {
			continue
		}
		msg.Text = text
		kept = append(kept, msg)
	}
	return domain.Transcript{Channel: tr.Channel, Window: tr.Window, Messages: kept}
}

// StripMarkup убирает разметку Slack: упоминания, ссылки (остаётся подпись или адрес), эмодзи и выделение.
func StripMarkup(text string) string {
	out := mentionRe.ReplaceAllString(text, "")
	out = labeledRe.ReplaceAllString(out, "$2")
	out = linkRe.ReplaceAllString(out, "$1")
	out = html.UnescapeString(out)
	out = quoteRe.ReplaceAllString(out, "")
	out = emojiRe.ReplaceAllString(out, "")
	out = emphasisRe.ReplaceAllString(out, "")

	lines := strings.Split(out, "\n")
	cleaned := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(spacesRe.ReplaceAllString(line, " "))
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}
