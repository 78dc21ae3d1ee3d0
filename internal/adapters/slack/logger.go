package slack

import (
	"strings"

	"github.com/rs/zerolog"
)

// logAdapter пишет внутренние логи slack-go в zerolog на уровне debug.
type logAdapter struct {
	logger zerolog.Logger
}

func (a *logAdapter) Output(_ int, s string) error {
	a.logger.Debug().Msg(strings.TrimRight(s, "\n"))
	return nil
}
