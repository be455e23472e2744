package notify

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pranavgnn/thirdeye/pkg/whatsapp"
)

// MaxMessageLength is the WhatsApp text message body limit we send within.
const MaxMessageLength = 4000

const genericFallback = "Your report was received but a reply could not be generated. An official will follow up if needed."

// Notifier delivers pipeline replies to reporters over WhatsApp. Sends are
// rate limited per Cloud API guidance and failures never propagate to the
// pipeline.
type Notifier struct {
	client  whatsapp.Client
	limiter *rate.Limiter
}

// New creates a Notifier. Sends are limited to a small steady rate with a
// burst to absorb multi-image submissions.
func New(client whatsapp.Client) *Notifier {
	return &Notifier{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(5), 10),
	}
}

// Send delivers text to the recipient, truncating to the message limit. When
// the send fails it retries once with a generic message, then gives up and
// logs. The reply is best effort; the report itself is already persisted.
func (n *Notifier) Send(ctx context.Context, to, text string) {
	if err := n.limiter.Wait(ctx); err != nil {
		zap.L().Warn("notify: rate limit wait aborted", zap.Error(err))
		return
	}

	if err := n.client.SendText(ctx, to, Truncate(text, MaxMessageLength)); err != nil {
		zap.L().Warn("notify: send failed, sending generic reply",
			zap.String("to", to), zap.Error(err))
		if err := n.client.SendText(ctx, to, genericFallback); err != nil {
			zap.L().Error("notify: generic reply failed",
				zap.String("to", to), zap.Error(err))
		}
	}
}

// Truncate shortens s to at most limit runes, appending an ellipsis when it
// had to cut.
func Truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	if limit <= 1 {
		return string(runes[:limit])
	}
	return string(runes[:limit-1]) + "…"
}
