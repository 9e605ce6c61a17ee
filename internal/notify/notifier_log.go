package notify

import (
	"context"
	"log/slog"
)

// LogNotifier writes alerts to the application log. It is the fallback when
// no Redis channel is configured and the default in tests.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, notification Notification) error {
	n.logger.InfoContext(ctx, "workflow notification",
		"kind", notification.Kind,
		"record_type", notification.RecordType,
		"record_id", notification.RecordID,
		"record_number", notification.RecordNumber,
		"message", notification.Message,
	)
	return nil
}
