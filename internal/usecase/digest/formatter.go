package digest

import (
	"fmt"
	"strings"
	"time"

	"slack-digest-bot/internal/domain"
)

// EmptyDigestLine выводится, когда ни один канал не дал пунктов.
const EmptyDigestLine = "No significant product feedback or feature requests in any channels today."

const windowLayout = "Mon Jan 2 15:04"

// Header общие поля отчёта запуска.
type Header struct {
	RunID  string
	Title  string
	RunAt  time.Time
	Window domain.TimeWindow
}

// Assemble раскладывает результаты по порядку селектора.
// Канал без результата (не начат или брошен по таймауту) получает Skipped("run timeout").
func Assemble(h Header, selected []domain.ChannelRef, results map[int]domain.ChannelSummary) domain.DigestReport {
	summaries := make([]domain.ChannelSummary, len(selected))
	for i, ch := range selected {
		summary, ok := results[i]
		if !ok {
			summary = domain.SkippedSummary(ch, domain.ReasonRunTimeout)
		}
		summaries[i] = summary
	}
	return domain.DigestReport{
		RunID:         h.RunID,
		Title:         h.Title,
		RunAt:         h.RunAt,
		Window:        h.Window,
		Summaries:     summaries,
		TotalChannels: len(selected),
	}
}

// FormatDigest формирует mrkdwn текст дайджеста. Пропущенные и упавшие каналы видны только в счётчиках.
func FormatDigest(r domain.DigestReport) string {
	var sections []string

	header := "*" + escapeMrkdwn(strings.TrimSpace(r.Title)) + "*"
	if r.Window.Valid() {
		header += "\n_" + formatWindow(r.Window) + "_"
	}
	sections = append(sections, header)

	body := 0
	for _, s := range r.Summaries {
		if s.Status != domain.StatusOK {
			continue
		}
		bullets := filterNonEmptyStrings(s.Bullets)
		if len(bullets) == 0 {
			continue
		}
		var b strings.Builder
		b.WriteString("*Channel: " + escapeMrkdwn(channelLabel(s.Channel)) + "*")
		for _, bullet := range bullets {
			b.WriteString("\n• " + escapeMrkdwn(bullet))
		}
		sections = append(sections, b.String())
		body++
	}
	if body == 0 {
		sections = append(sections, EmptyDigestLine)
	}

	sections = append(sections, CountsLine(r.Counts()))
	return strings.Join(sections, "\n\n")
}

// CountsLine итоговая строка вида "3 processed, 0 skipped, 0 failed".
func CountsLine(c domain.DigestCounts) string {
	return fmt.Sprintf("%d processed, %d skipped, %d failed", c.Processed, c.Skipped, c.Failed)
}

func formatWindow(w domain.TimeWindow) string {
	return fmt.Sprintf("%s to %s (%s)", w.Start.Format(windowLayout), w.End.Format(windowLayout), w.End.Format("MST"))
}

func channelLabel(ch domain.ChannelRef) string {
	if name := strings.TrimSpace(ch.Name); name != "" {
		return name
	}
	return ch.ID
}

func filterNonEmptyStrings(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}

// escapeMrkdwn экранирует управляющие символы Slack. Звёздочки остаются, ими размечены категории.
func escapeMrkdwn(s string) string {
	return mrkdwnEscaper.Replace(s)
}

var mrkdwnEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
