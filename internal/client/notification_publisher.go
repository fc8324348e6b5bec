package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"github.com/Rizwan0994/haul-connect-sub002/internal/domain/workflow"
)

// NotificationPublisher publishes workflow domain events to NATS JetStream for
// the notification service.
//
// Subject convention: notifications.workflow.<action>
// Actions: created, manager_approved, accounts_approved, rejected, disabled,
//          enabled, load_completed, commission_paid
//
// All publishes are non-fatal — errors are logged but never propagated, so a
// notification outage can never fail or roll back a committed transition.
type NotificationPublisher struct {
	conn *nats.Conn
	js   jetstream.JetStream
	log  zerolog.Logger
}

// NewNotificationPublisher connects to NATS and prepares the JetStream
// context.
func NewNotificationPublisher(natsURL string, log zerolog.Logger) (*NotificationPublisher, error) {
	conn, err := nats.Connect(natsURL, nats.Name("workflow-service"))
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}
	return &NotificationPublisher{conn: conn, js: js, log: log}, nil
}

// Close drains the connection.
func (p *NotificationPublisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	_ = p.conn.Drain()
}

// Emit publishes one domain event. Fire-and-forget: at-least-once on the NATS
// side, swallowed-and-logged on failure here. Calling Emit on a nil publisher
// (NATS not configured) is a no-op.
func (p *NotificationPublisher) Emit(ctx context.Context, event *workflow.Event) {
	if p == nil || p.js == nil {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.log.Warn().Err(err).Str("action", event.Action).Msg("notification: failed to marshal event")
		return
	}

	subject := fmt.Sprintf("notifications.workflow.%s", event.Action)
	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		p.log.Warn().Err(err).
			Str("subject", subject).
			Str("entity_id", event.EntityID).
			Msg("notification: failed to publish event (non-fatal)")
		return
	}

	p.log.Debug().
		Str("subject", subject).
		Str("entity_id", event.EntityID).
		Msg("notification: event published")
}
