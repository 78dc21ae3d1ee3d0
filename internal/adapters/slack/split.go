package slack

import "strings"

// SectionLimit предел текста одной section в Block Kit.
const SectionLimit = 3000

// SplitText режет текст на куски не длиннее limit рун, по возможности по переводам строк.
func SplitText(text string, limit int) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	if limit <= 0 {
		limit = SectionLimit
	}

	runes := []rune(trimmed)
	if len(runes) <= limit {
		return []string{trimmed}
	}

	var parts []string
	for start := 0; start < len(runes); {
		end := start + limit
		if end >= len(runes) {
			if chunk := strings.Trim(string(runes[start:]), "\n"); chunk != "" {
				parts = append(parts, chunk)
			}
			break
		}

		split := end
		for i := end; i > start; i-- {
			if runes[i-1] == '\n' {
				split = i
				break
			}
		}
		if split == end {
			split = entityBoundary(runes, start, split)
		}

		if chunk := strings.Trim(string(runes[start:split]), "\n"); chunk != "" {
			parts = append(parts, chunk)
		}
		start = split
		for start < len(runes) && runes[start] == '\n' {
			start++
		}
	}
	return parts
}

// экранированные символы mrkdwn, которые нельзя разрывать
var entities = []string{"&amp;", "&lt;", "&gt;"}

// entityBoundary сдвигает жёсткий разрез к началу сущности, если он попал внутрь неё.
func entityBoundary(runes []rune, start, split int) int {
	for i := split - 1; i > start && i >= split-4; i-- {
		switch runes[i] {
		case ';':
			return split
		case '&':
			for _, e := range entities {
				if i+len(e) > split && i+len(e) <= len(runes) && string(runes[i:i+len(e)]) == e {
					return i
				}
			}
			return split
		}
	}
	return split
}
