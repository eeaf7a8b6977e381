// AngelaMos | 2026
// nats_bus.go

package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/rzkfyn/ujikom-app-be/internal/config"
	"github.com/rzkfyn/ujikom-app-be/internal/core"
)

// NATSBus relays signals between instances over a NATS subject. The
// publisher's trace context travels in the message headers.
type NATSBus struct {
	conn    *nats.Conn
	subject string
}

func NewNATSBus(cfg config.NATSConfig, name string) (*NATSBus, error) {
	conn, err := nats.Connect(
		cfg.URL,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	return &NATSBus{conn: conn, subject: cfg.Subject}, nil
}

func (b *NATSBus) Publish(ctx context.Context, s Signal) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal signal: %w", err)
	}

	msg := &nats.Msg{
		Subject: b.subject,
		Data:    data,
		Header:  nats.Header{},
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(msg.Header))

	if err := b.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}

	return nil
}

func (b *NATSBus) Subscribe(ctx context.Context, fn Handler) error {
	sub, err := b.conn.Subscribe(b.subject, func(msg *nats.Msg) {
		msgCtx := otel.GetTextMapPropagator().Extract(
			context.Background(),
			propagation.HeaderCarrier(msg.Header),
		)

		msgCtx, span := core.StartSpan(msgCtx, "realtime.deliver", trace.SpanKindConsumer,
			attribute.String("messaging.destination", msg.Subject),
		)

		var s Signal
		if err := json.Unmarshal(msg.Data, &s); err != nil {
			slog.WarnContext(msgCtx, "discarding malformed signal",
				"subject", msg.Subject,
				"error", err,
			)
			core.EndSpan(span, err)
			return
		}
		fn(msgCtx, s)
		core.EndSpan(span, nil)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	go func() {
		<-ctx.Done()
		_ = sub.Unsubscribe() //nolint:errcheck // connection may already be draining
	}()

	return nil
}

// Ping round-trips to the server so a stale connection is noticed.
func (b *NATSBus) Ping(ctx context.Context) error {
	if !b.conn.IsConnected() {
		return fmt.Errorf("nats ping: %w", nats.ErrConnectionClosed)
	}
	if err := b.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("nats ping: %w", err)
	}
	return nil
}

func (b *NATSBus) Close() error {
	return b.conn.Drain()
}
