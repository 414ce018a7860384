// Package logging builds the process logger and emits audit events for
// privileged mutations.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// New returns a logger writing to w (stdout when nil). format is "json" or
// "console"; an unparseable level falls back to info.
func New(level, format string, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stdout
	}
	if strings.EqualFold(format, "console") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	} else {
		w = zerolog.SyncWriter(w)
	}

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// Audit records that actorID performed action. Audit events are always
// written at info level with event=audit so they can be filtered out of the
// stream.
func Audit(logger zerolog.Logger, actorID, action, details string) {
	logger.Info().
		Str("event", "audit").
		Str("user_id", actorID).
		Str("action", action).
		Str("details", details).
		Msg("AUDIT")
}
