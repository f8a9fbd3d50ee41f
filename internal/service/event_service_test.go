package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/academy-admin-api/internal/models"
	"github.com/noah-isme/academy-admin-api/pkg/events"
)

type memoryAuditWriter struct {
	logs []*models.AuditLog
	err  error
}

func (w *memoryAuditWriter) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if w.err != nil {
		return w.err
	}
	w.logs = append(w.logs, log)
	return nil
}

func TestEventServicePublish(t *testing.T) {
	publisher := &recordingPublisher{}
	svc := NewEventService(publisher, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC) }

	svc.Publish(events.TypeCertificateRevoked, "admin-1", "cert-1", map[string]string{"reason": "MISUSE_VIOLATION"})
	require.Len(t, publisher.events, 1)
	evt := publisher.events[0]
	assert.Equal(t, "admin-1", evt.ActorID)
	assert.Equal(t, "cert-1", evt.ResourceID)
	assert.Equal(t, time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), evt.OccurredAt)

	publisher.err = errors.New("queue closed")
	assert.NotPanics(t, func() { svc.Publish(events.TypeStudentDeleted, "", "s1", nil) })

	var nilSvc *EventService
	assert.NotPanics(t, func() { nilSvc.Publish(events.TypeStudentDeleted, "", "s1", nil) })
}

func TestAuditEventHandler(t *testing.T) {
	writer := &memoryAuditWriter{}
	handler := NewAuditEventHandler(writer, zap.NewNop())
	occurred := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)

	err := handler(context.Background(), events.Event{
		Type:       events.TypeCertificateRevoked,
		ActorID:    "admin-1",
		ResourceID: "cert-1",
		Payload:    map[string]string{"reason": "ADMINISTRATIVE_ERROR"},
		OccurredAt: occurred,
	})
	require.NoError(t, err)
	require.Len(t, writer.logs, 1)
	entry := writer.logs[0]
	assert.Equal(t, models.AuditActionCertificateRevoke, entry.Action)
	assert.Equal(t, "certificate", entry.Resource)
	assert.Equal(t, "admin-1", *entry.UserID)
	assert.Equal(t, "cert-1", *entry.ResourceID)
	assert.Equal(t, occurred, entry.CreatedAt)
	var payload map[string]string
	require.NoError(t, json.Unmarshal(entry.NewValues, &payload))
	assert.Equal(t, "ADMINISTRATIVE_ERROR", payload["reason"])

	require.NoError(t, handler(context.Background(), events.Event{Type: "unknown.event"}))
	assert.Len(t, writer.logs, 1)

	writer.err = errors.New("db down")
	assert.Error(t, handler(context.Background(), events.Event{Type: events.TypeStudentDeleted, ResourceID: "s1"}))
}

func TestAuditEventHandlerThroughDispatcher(t *testing.T) {
	writer := &memoryAuditWriter{}
	done := make(chan struct{}, 1)
	handler := NewAuditEventHandler(writer, zap.NewNop())
	dispatcher := events.NewDispatcher(func(ctx context.Context, evt events.Event) error {
		err := handler(ctx, evt)
		done <- struct{}{}
		return err
	}, events.Config{Workers: 1})
	dispatcher.Start(context.Background())
	defer dispatcher.Stop()

	svc := NewEventService(dispatcher, zap.NewNop())
	svc.Publish(events.TypeEnrollmentCreated, "admin-1", "e1", map[string]int{"batch_number": 2})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("event was not handled")
	}
	require.Len(t, writer.logs, 1)
	assert.Equal(t, models.AuditActionEnrollmentCreate, writer.logs[0].Action)
}
