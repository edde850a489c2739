package llm

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"
)

const previewRunes = 200

type loggingGateway struct {
	next   Gateway
	logger *slog.Logger
}

// WithLogging logs every call made through g.
func WithLogging(g Gateway, logger *slog.Logger) Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &loggingGateway{next: g, logger: logger}
}

func (l *loggingGateway) Name() string { return l.next.Name() }

func (l *loggingGateway) Send(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	reply, err := l.next.Send(ctx, req)
	attrs := []any{
		"provider", l.next.Name(),
		"capability", req.Capability,
		"user_id", req.UserID,
		"prompt_runes", utf8.RuneCountInString(req.Prompt),
		"duration", time.Since(start).Round(time.Millisecond),
	}
	if err != nil {
		l.logger.Error("model call failed", append(attrs, "error", err)...)
		return "", err
	}
	l.logger.Debug("model call",
		append(attrs,
			"reply_runes", utf8.RuneCountInString(reply),
			"prompt", TruncateForLog(req.Prompt, previewRunes),
			"reply", TruncateForLog(reply, previewRunes),
		)...)
	return reply, nil
}

// TruncateForLog shortens s to at most limit runes and collapses newlines.
func TruncateForLog(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + "..."
}
