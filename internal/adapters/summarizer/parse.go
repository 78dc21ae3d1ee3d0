package summarizer

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"slack-digest-bot/internal/domain"
)

const excludeMarker = "<EXCLUDE>"

var (
	analysisRe     = regexp.MustCompile(`(?s)<analysis>.*?</analysis>`)
	bulletPrefixRe = regexp.MustCompile(`^(?:[-•]|\*\s|\d+[.)])\s*`)
	// "*Feature Request*: ..." без маркера списка
	categoryLineRe = regexp.MustCompile(`^\*[^*\s][^*]*\*:`)
)

type bulletsPayload struct {
	Bullets *[]string `json:"bullets"`
}

// parseBullets разбирает ответ модели: JSON {"bullets": [...]} или текст с пунктами.
// В тексте блок <analysis> отбрасывается, <EXCLUDE> означает отсутствие выводов.
func parseBullets(content string, limit int) ([]string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: пустой ответ модели", domain.ErrParse)
	}
	if strings.HasPrefix(content, "{") {
		var payload bulletsPayload
		if err := json.Unmarshal([]byte(content), &payload); err != nil {
			return nil, fmt.Errorf("%w: распаковка ответа LLM: %w", domain.ErrParse, err)
		}
		if payload.Bullets == nil {
			return nil, fmt.Errorf("%w: в ответе нет поля bullets", domain.ErrParse)
		}
		bullets := make([]string, 0, len(*payload.Bullets))
		for _, b := range filterValues(*payload.Bullets) {
			if b == excludeMarker {
				continue
			}
			bullets = append(bullets, trimBulletPrefix(b))
		}
		return capBullets(bullets, limit), nil
	}

	text := analysisRe.ReplaceAllString(content, "")
	if idx := strings.Index(text, "<analysis>"); idx >= 0 {
		text = text[:idx]
	}
	if strings.Contains(text, excludeMarker) {
		return nil, nil
	}
	var bullets []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if !bulletPrefixRe.MatchString(line) && !categoryLineRe.MatchString(line) {
			continue
		}
		if b := trimBulletPrefix(line); b != "" {
			bullets = append(bullets, b)
		}
	}
	if len(bullets) == 0 {
		return nil, fmt.Errorf("%w: в ответе нет пунктов", domain.ErrParse)
	}
	return capBullets(bullets, limit), nil
}

func trimBulletPrefix(line string) string {
	return strings.TrimSpace(bulletPrefixRe.ReplaceAllString(strings.TrimSpace(line), ""))
}

func capBullets(bullets []string, limit int) []string {
	if limit > 0 && len(bullets) > limit {
		return bullets[:limit]
	}
	return bullets
}
