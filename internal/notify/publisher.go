package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/amityadav/clipping/internal/store"
	"go.uber.org/zap"
)

// DefaultTopic receives one event per tenant per run with new articles.
const DefaultTopic = "new-alerts"

// TopicSender delivers a data message to a topic.
type TopicSender interface {
	SendToTopic(ctx context.Context, topic string, data map[string]string) error
}

// AlertFlagger persists the tenant's newAlerts flag.
type AlertFlagger interface {
	SetNewAlerts(ctx context.Context, tenantID string, value bool) error
}

// Event is the payload published for a tenant with new material.
type Event struct {
	TenantID   string
	TenantName string
	Timestamp  time.Time
}

func (e Event) Data() map[string]string {
	return map[string]string{
		"tenantId":   e.TenantID,
		"tenantName": e.TenantName,
		"timestamp":  e.Timestamp.UTC().Format(time.RFC3339),
	}
}

// Publisher raises the new-alerts signal. Delivery is at-least-once: a
// retried run may publish the same tenant twice.
type Publisher struct {
	flags  AlertFlagger
	sender TopicSender
	topic  string
	now    func() time.Time
	log    *zap.Logger
}

// NewPublisher builds a publisher. A nil sender still sets the flag but
// publishes nothing.
func NewPublisher(flags AlertFlagger, sender TopicSender, topic string, log *zap.Logger) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Publisher{
		flags:  flags,
		sender: sender,
		topic:  topic,
		now:    time.Now,
		log:    log.Named("notify"),
	}
}

// Notify sets newAlerts and publishes an event when hasNew is true. A
// failing flag write is returned. A failing publish is logged only and does
// not undo the flag. The bool reports whether the event went out.
func (p *Publisher) Notify(ctx context.Context, tenant store.Tenant, hasNew bool) (bool, error) {
	if !hasNew {
		return false, nil
	}
	if err := p.flags.SetNewAlerts(ctx, tenant.ID, true); err != nil {
		return false, fmt.Errorf("failed to flag new alerts: %w", err)
	}
	if p.sender == nil {
		p.log.Debug("no sender configured, flag set only", zap.String("tenant", tenant.ID))
		return false, nil
	}

	ev := Event{TenantID: tenant.ID, TenantName: tenant.Name, Timestamp: p.now()}
	if err := p.sender.SendToTopic(ctx, p.topic, ev.Data()); err != nil {
		p.log.Error("publish failed", zap.String("tenant", tenant.ID), zap.String("topic", p.topic), zap.Error(err))
		return false, nil
	}
	p.log.Info("new alerts published", zap.String("tenant", tenant.ID))
	return true, nil
}
