// AngelaMos | 2026
// relay.go

package realtime

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/rzkfyn/ujikom-app-be/internal/core"
)

// Relay is the publishing side of the realtime channel. Domain services
// tell it what changed; it never blocks them on delivery.
type Relay struct {
	bus Bus
}

func NewRelay(bus Bus) *Relay {
	return &Relay{bus: bus}
}

func (r *Relay) NotificationChanged(ctx context.Context, userID string) {
	r.publish(ctx, Signal{Type: SignalNotificationChange, UserID: userID})
}

func (r *Relay) PresenceChanged(ctx context.Context, userID string) {
	r.publish(ctx, Signal{Type: SignalPresenceChange, UserID: userID})
}

func (r *Relay) PostStateChanged(ctx context.Context, postCode string) {
	r.publish(ctx, Signal{Type: SignalPostStateChange, PostCode: postCode})
}

func (r *Relay) publish(ctx context.Context, s Signal) {
	ctx, span := core.StartSpan(ctx, "realtime.publish", trace.SpanKindProducer,
		attribute.String("signal.type", string(s.Type)),
	)

	err := r.bus.Publish(ctx, s)
	if err != nil {
		slog.WarnContext(ctx, "realtime publish failed",
			"type", s.Type,
			"error", err,
		)
	}
	core.EndSpan(span, err)
}
