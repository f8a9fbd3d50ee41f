package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/academy-admin-api/internal/models"
	"github.com/noah-isme/academy-admin-api/pkg/events"
)

type eventPublisher interface {
	Publish(evt events.Event) error
}

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// EventService publishes lifecycle events after their state changes are committed.
type EventService struct {
	publisher eventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewEventService constructs an EventService. A nil publisher drops events.
func NewEventService(publisher eventPublisher, logger *zap.Logger) *EventService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventService{publisher: publisher, logger: logger, now: time.Now}
}

// Publish enqueues an event. Failures are logged and never surface to callers
// because the originating write has already been committed.
func (s *EventService) Publish(eventType, actorID, resourceID string, payload interface{}) {
	if s == nil || s.publisher == nil {
		return
	}
	evt := events.Event{
		Type:       eventType,
		ActorID:    actorID,
		ResourceID: resourceID,
		Payload:    payload,
		OccurredAt: s.now().UTC(),
	}
	if err := s.publisher.Publish(evt); err != nil {
		s.logger.Warn("failed to publish lifecycle event",
			zap.String("type", eventType),
			zap.String("resource_id", resourceID),
			zap.Error(err),
		)
	}
}

var auditActions = map[string]struct {
	action   string
	resource string
}{
	events.TypeCertificateIssued:       {models.AuditActionCertificateIssue, "certificate"},
	events.TypeCertificateRevoked:      {models.AuditActionCertificateRevoke, "certificate"},
	events.TypeEnrollmentCreated:       {models.AuditActionEnrollmentCreate, "enrollment"},
	events.TypeEnrollmentStatusChanged: {models.AuditActionEnrollmentStatus, "enrollment"},
	events.TypeEnrollmentProgress:      {models.AuditActionEnrollmentProgress, "enrollment"},
	events.TypeStudentStatusChanged:    {models.AuditActionStudentStatus, "student"},
	events.TypeStudentDeleted:          {models.AuditActionStudentDelete, "student"},
}

// NewAuditEventHandler returns the dispatcher handler that records every
// lifecycle event as an audit log row.
func NewAuditEventHandler(repo auditWriter, logger *zap.Logger) events.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, evt events.Event) error {
		mapping, ok := auditActions[evt.Type]
		if !ok {
			logger.Debug("ignoring event without audit mapping", zap.String("type", evt.Type))
			return nil
		}
		payload, err := json.Marshal(evt.Payload)
		if err != nil {
			return fmt.Errorf("marshal %s payload: %w", evt.Type, err)
		}
		entry := &models.AuditLog{
			Action:    mapping.action,
			Resource:  mapping.resource,
			NewValues: payload,
			CreatedAt: evt.OccurredAt,
		}
		if evt.ActorID != "" {
			actor := evt.ActorID
			entry.UserID = &actor
		}
		if evt.ResourceID != "" {
			resourceID := evt.ResourceID
			entry.ResourceID = &resourceID
		}
		if err := repo.CreateAuditLog(ctx, entry); err != nil {
			return fmt.Errorf("write audit log for %s: %w", evt.Type, err)
		}
		return nil
	}
}
