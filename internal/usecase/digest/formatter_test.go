package digest

import (
	"errors"
	"strings"
	"testing"
	"time"

	"slack-digest-bot/internal/domain"
)

func TestAssembleKeepsSelectorOrder(t *testing.T) {
	selected := []domain.ChannelRef{{ID: "C1"}, {ID: "C2"}, {ID: "C3"}}
	results := map[int]domain.ChannelSummary{
		2: domain.OKSummary(selected[2], []string{"c"}),
		0: domain.FailedSummary(selected[0], errors.New("boom")),
	}
	report := Assemble(Header{Title: "T"}, selected, results)
	if len(report.Summaries) != 3 || report.TotalChannels != 3 {
		t.Fatalf("ожидали запись на каждый выбранный канал: %+v", report)
	}
	for i, s := range report.Summaries {
		if s.Channel.ID != selected[i].ID {
			t.Fatalf("нарушен порядок на позиции %d: %s", i, s.Channel.ID)
		}
	}
	if report.Summaries[1].Status != domain.StatusSkipped || report.Summaries[1].Reason != domain.ReasonRunTimeout {
		t.Fatalf("канал без результата должен быть пропущен по таймауту: %+v", report.Summaries[1])
	}
}

func TestFormatDigestSections(t *testing.T) {
	end := time.Date(2024, 4, 9, 9, 0, 0, 0, time.UTC)
	report := domain.DigestReport{
		Title:         "Customer Channel Summary",
		Window:        domain.TimeWindow{Start: end.Add(-24 * time.Hour), End: end},
		TotalChannels: 4,
		Summaries: []domain.ChannelSummary{
			domain.OKSummary(domain.ChannelRef{ID: "C1", Name: "acme"}, []string{"*Feature Request*: CSV export", "  "}),
			domain.SkippedSummary(domain.ChannelRef{ID: "C2", Name: "quiet"}, domain.ReasonNoContent),
			domain.FailedSummary(domain.ChannelRef{ID: "C3", Name: "locked"}, errors.New("not_in_channel")),
			domain.OKSummary(domain.ChannelRef{ID: "C4", Name: "globex"}, []string{"*User Pain Point*: SSO <fails> & retries"}),
		},
	}

	formatted := FormatDigest(report)

	mustContain(t, formatted, "*Customer Channel Summary*")
	mustContain(t, formatted, "_Mon Apr 8 09:00 to Tue Apr 9 09:00 (UTC)_")
	mustContain(t, formatted, "*Channel: acme*\n• *Feature Request*: CSV export")
	mustContain(t, formatted, "• *User Pain Point*: SSO &lt;fails&gt; &amp; retries")
	if !strings.HasSuffix(formatted, "4 processed, 1 skipped, 1 failed") {
		t.Fatalf("строка итогов должна быть последней: %q", formatted)
	}
	if strings.Contains(formatted, "quiet") || strings.Contains(formatted, "locked") {
		t.Fatalf("пропущенные и упавшие каналы не попадают в тело")
	}
	if strings.Index(formatted, "acme") > strings.Index(formatted, "globex") {
		t.Fatalf("нарушен порядок секций")
	}
	if strings.Contains(formatted, EmptyDigestLine) {
		t.Fatalf("заглушка не нужна, когда есть секции")
	}
	if strings.Count(formatted, "• ") != 2 {
		t.Fatalf("пустые пункты не должны выводиться")
	}
}

func TestFormatDigestWithoutSections(t *testing.T) {
	report := domain.DigestReport{
		Title:         "Digest",
		TotalChannels: 2,
		Summaries: []domain.ChannelSummary{
			domain.SkippedSummary(domain.ChannelRef{ID: "C1"}, domain.ReasonNoInsights),
			domain.SkippedSummary(domain.ChannelRef{ID: "C2"}, domain.ReasonNoContent),
		},
	}
	formatted := FormatDigest(report)
	mustContain(t, formatted, "*Digest*")
	mustContain(t, formatted, EmptyDigestLine)
	mustContain(t, formatted, "2 processed, 2 skipped, 0 failed")
	if strings.Contains(formatted, "Channel:") {
		t.Fatalf("секций быть не должно: %q", formatted)
	}
}

func mustContain(t *testing.T, text, substr string) {
	t.Helper()
	if !strings.Contains(text, substr) {
		t.Fatalf("ожидали, что %q содержит %q", text, substr)
	}
}
