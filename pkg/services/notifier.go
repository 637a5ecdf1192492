package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/taskora-inc/taskora-engine/pkg/logging"
)

// Notifier delivers invitation emails. Delivery failures do not roll back
// the created invitation; an invitation whose email never arrived is still
// valid if the recipient learns the link by other means.
type Notifier interface {
	Notify(ctx context.Context, recipient, acceptURL string) error
}

// logNotifier is the local-development notifier: it logs the accept URL
// instead of sending mail, so the link can be followed from the console.
type logNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a Notifier that only logs deliveries.
func NewLogNotifier(logger *zap.Logger) Notifier {
	return &logNotifier{logger: logger}
}

func (n *logNotifier) Notify(ctx context.Context, recipient, acceptURL string) error {
	n.logger.Info("Invitation notification",
		zap.String("recipient", recipient),
		zap.String("accept_url", logging.SanitizeURL(acceptURL)))
	return nil
}

// Ensure logNotifier implements Notifier at compile time.
var _ Notifier = (*logNotifier)(nil)
