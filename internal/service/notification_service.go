package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/staff-service/internal/config"
	"github.com/spec-kit/staff-service/internal/events"
)

// WebhookQueue accepts events for asynchronous webhook delivery.
type WebhookQueue interface {
	Enqueue(event events.Event) bool
}

// NotificationService handles emitting notifications for domain events.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
	webhooks   WebhookQueue
}

// NewNotificationService creates the service. webhooks may be nil when no
// webhook endpoint is configured.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig, webhooks WebhookQueue) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
		webhooks:   webhooks,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for _, t := range events.AllEventTypes {
		n.dispatcher.Subscribe(t, n.handle)
	}
}

func (n *NotificationService) handle(ctx context.Context, event events.Event) error {
	n.logger.Info("domain event",
		zap.String("event_type", string(event.Type)),
		zap.String("staff_id", event.StaffID),
		zap.String("actor_id", event.ActorID),
		zap.Any("payload", event.Payload))

	switch event.Type {
	case events.EventAssignmentAdded, events.EventAssignmentUpdated:
		n.sendEmailNotificationStub(ctx, event)
	}
	n.sendWebhook(event)
	return nil
}

func (n *NotificationService) sendEmailNotificationStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("staff_id", event.StaffID),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhook(event events.Event) {
	if n.webhooks == nil || strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.webhooks.Enqueue(event)
}
