package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"modbot/internal/storage"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type memoryStore struct {
	logs []storage.AuditLog
	err  error
}

func (m *memoryStore) AddAuditLog(_ context.Context, log storage.AuditLog) error {
	if m.err != nil {
		return m.err
	}
	m.logs = append(m.logs, log)
	return nil
}

func TestLogPersistsAndNotifies(t *testing.T) {
	store := &memoryStore{}
	logger := NewLogger(store, zap.NewNop())
	fixed := time.Unix(1700000000, 0)
	logger.now = func() time.Time { return fixed }

	var notified []storage.AuditLog
	logger.SetNotifier(func(_ context.Context, entry storage.AuditLog) {
		notified = append(notified, entry)
	})

	logger.Log(context.Background(), LevelInfo, "M1", EventReportDenied, "report 3")

	require.Len(t, store.logs, 1)
	require.Equal(t, "M1", store.logs[0].ActorID)
	require.Equal(t, EventReportDenied, store.logs[0].Event)
	require.Equal(t, fixed, store.logs[0].CreatedAt)
	require.Len(t, notified, 1)
	require.Equal(t, "report 3", notified[0].Details)
}

func TestLogWarnsWhenPersistFails(t *testing.T) {
	core, recorded := observer.New(zap.WarnLevel)
	logger := NewLogger(&memoryStore{err: errors.New("disk full")}, zap.New(core))

	logger.Log(context.Background(), LevelWarn, "", EventReminderDelete, "reminder 1")

	require.Equal(t, 1, recorded.FilterMessage("audit persist failed").Len())
}

func TestLogWithoutStore(t *testing.T) {
	logger := NewLogger(nil, zap.NewNop())
	logger.Log(context.Background(), LevelInfo, "M1", EventSnippetSet, "rules/en")
}
