package service

import (
	"context"

	"go.uber.org/zap"
)

// LogNotifier satisfies the Notifier port by recording the notification in
// the log. Real delivery (email, chat) is an external collaborator wired in
// at composition time.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With(zap.String("component", "notifier"))}
}

func (n *LogNotifier) Notify(ctx context.Context, userID, subject, body string) error {
	n.logger.Info("notification",
		zap.String("user_id", userID),
		zap.String("subject", subject),
		zap.String("body", body))
	return nil
}
