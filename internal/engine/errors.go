package engine

import (
	"log/slog"

	"github.com/roach88/chatsync/internal/model"
)

// logEventError logs a failed event with enough context to find it in a
// trace. Parse errors are expected noise from the server and logged at warn.
func logEventError(log *slog.Logger, ev Event, err error) {
	attrs := []any{"type", ev.Type.String(), "error", err}
	switch ev.Type {
	case EventTypePush:
		attrs = append(attrs, "frame", truncate(string(ev.Frame), 256))
	case EventTypeLocal:
		if ev.Action != nil {
			attrs = append(attrs, "action", ev.Action.Kind, "target", ev.Action.Target)
		}
	}

	if model.IsParseError(err) {
		log.Warn("dropping malformed frame", attrs...)
		return
	}
	log.Error("event processing failed", attrs...)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
