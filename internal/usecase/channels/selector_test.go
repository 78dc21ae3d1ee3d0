package channels

import (
	"strings"
	"testing"

	"slack-digest-bot/internal/domain"
)

func refs(ids ...string) []domain.ChannelRef {
	out := make([]domain.ChannelRef, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.ChannelRef{ID: id, Name: strings.ToLower(id)})
	}
	return out
}

func ids(chs []domain.ChannelRef) string {
	parts := make([]string, 0, len(chs))
	for _, ch := range chs {
		parts = append(parts, ch.ID)
	}
	return strings.Join(parts, ",")
}

func TestSelectKeepsDiscoveryOrder(t *testing.T) {
	s := NewSelector(nil, "")
	got := s.Select(refs("C3", "C1", "C2"))
	if ids(got) != "C3,C1,C2" {
		t.Fatalf("порядок не должен меняться: %s", ids(got))
	}
}

func TestSelectExcludesIgnoredExactly(t *testing.T) {
	s := NewSelector([]string{" C2 ", "c3", ""}, "")
	got := s.Select(refs("C1", "C2", "C3"))
	if ids(got) != "C1,C3" {
		t.Fatalf("ожидали C1,C3, получили %s", ids(got))
	}
	if !s.Ignored("C2") || s.Ignored("C3") {
		t.Fatalf("сравнение id должно быть точным")
	}
}

func TestSelectExcludesDestination(t *testing.T) {
	tests := []struct {
		name        string
		destination string
		want        string
	}{
		{name: "по id", destination: "C2", want: "C1,C3"},
		{name: "по имени", destination: "#c3", want: "C1,C2"},
		{name: "нет совпадения", destination: "#digest", want: "C1,C2,C3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewSelector(nil, tt.destination).Select(refs("C1", "C2", "C3"))
			if ids(got) != tt.want {
				t.Fatalf("ожидали %s, получили %s", tt.want, ids(got))
			}
		})
	}
}

func TestSelectEmptyDiscovery(t *testing.T) {
	got := NewSelector([]string{"C1"}, "C0").Select(nil)
	if got == nil || len(got) != 0 {
		t.Fatalf("ожидали пустой срез, а не nil: %v", got)
	}
}

func TestNormalizeIDs(t *testing.T) {
	got := NormalizeIDs([]string{"C1", " C1", "", "c1", "C2 "})
	if strings.Join(got, ",") != "C1,c1,C2" {
		t.Fatalf("неожиданный результат: %v", got)
	}
}
