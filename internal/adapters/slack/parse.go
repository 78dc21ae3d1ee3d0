package slack

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"slack-digest-bot/internal/domain"
)

// ParseTimestamp разбирает ts вида "1712563200.000100".
func ParseTimestamp(ts string) (time.Time, error) {
	secPart, fracPart, _ := strings.Cut(ts, ".")
	sec, err := strconv.ParseInt(secPart, 10, 64)
	if err != nil || sec < 0 {
		return time.Time{}, fmt.Errorf("%w: ts %q", domain.ErrParse, ts)
	}
	var nanos int64
	if fracPart != "" {
		if len(fracPart) > 9 {
			fracPart = fracPart[:9]
		}
		fracPart += strings.Repeat("0", 9-len(fracPart))
		nanos, err = strconv.ParseInt(fracPart, 10, 64)
		if err != nil || nanos < 0 {
			return time.Time{}, fmt.Errorf("%w: ts %q", domain.ErrParse, ts)
		}
	}
	return time.Unix(sec, nanos).UTC(), nil
}

// FormatTimestamp форматирует момент в ts с точностью до микросекунд.
func FormatTimestamp(t time.Time) string {
	return fmt.Sprintf("%d.%06d", t.Unix(), t.Nanosecond()/1000)
}

func toMessage(raw slack.Message, botUserID string) (domain.Message, error) {
	at, err := ParseTimestamp(raw.Timestamp)
	if err != nil {
		return domain.Message{}, err
	}
	msg := domain.Message{
		ID:          raw.Timestamp,
		AuthorID:    raw.User,
		Text:        raw.Text,
		Timestamp:   at,
		Subtype:     raw.SubType,
		IsBotAuthor: raw.BotID != "" || raw.SubType == "bot_message" || (botUserID != "" && raw.User == botUserID),
	}
	switch {
	case raw.ThreadTimestamp == "":
	case raw.ThreadTimestamp == raw.Timestamp:
		msg.ThreadRootID = raw.Timestamp
		msg.HasReplies = raw.ReplyCount > 0
	default:
		msg.ThreadRootID = raw.ThreadTimestamp
	}
	if raw.ReplyCount > 0 && !msg.IsReply() {
		msg.ThreadRootID = raw.Timestamp
		msg.HasReplies = true
	}
	return msg, nil
}
