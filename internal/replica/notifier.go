package replica

import (
	"context"

	"go.uber.org/zap"
)

// AuditSink receives diagnostic records of admissibility and ship
// decisions. A nil AuditSink disables recording entirely; it never
// affects replica control flow (spec §1 non-goal: durable persistence).
type AuditSink interface {
	RecordEvent(ctx context.Context, kind, neighbor, detail string)
}

// LogNotifier is the default Notifier: it simply logs the notification.
// Real deployments needing a different signal (webhook, message queue)
// provide their own Notifier; the engine only depends on the interface.
type LogNotifier struct {
	Logger *zap.Logger
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(target NotifyTarget) {
	logger := n.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("ship notification",
		zap.String("endpoint", string(target.Endpoint)),
		zap.String("message", target.Message),
	)
}
