package audit

import (
	"context"
	"time"

	"modbot/internal/storage"

	"go.uber.org/zap"
)

const (
	LevelInfo = "INFO"
	LevelWarn = "WARN"
	LevelCrit = "CRIT"
)

const (
	EventReportCreated     = "suspicious_report_created"
	EventReportApproved    = "suspicious_report_approved"
	EventReportDenied      = "suspicious_report_denied"
	EventPlaceholderAdd    = "placeholder_add"
	EventPlaceholderEdit   = "placeholder_edit"
	EventPlaceholderDelete = "placeholder_delete"
	EventSnippetSet        = "snippet_set"
	EventSnippetDelete     = "snippet_delete"
	EventReminderAdd       = "reminder_add"
	EventReminderDelete    = "reminder_delete"
	EventTeamPoints        = "team_points"
)

type Store interface {
	AddAuditLog(ctx context.Context, log storage.AuditLog) error
}

// Logger records moderation events in the database, the process log and,
// once a notifier is set, the guild's log channel.
type Logger struct {
	store  Store
	logger *zap.Logger
	notify func(context.Context, storage.AuditLog)
	now    func() time.Time
}

func NewLogger(store Store, logger *zap.Logger) *Logger {
	return &Logger{store: store, logger: logger, now: time.Now}
}

func (l *Logger) SetNotifier(notify func(context.Context, storage.AuditLog)) {
	l.notify = notify
}

func (l *Logger) Log(ctx context.Context, level, actorID, event, details string) {
	if l == nil {
		return
	}
	entry := storage.AuditLog{
		ActorID:   actorID,
		Level:     level,
		Event:     event,
		Details:   details,
		CreatedAt: l.now(),
	}
	if l.store != nil {
		if err := l.store.AddAuditLog(ctx, entry); err != nil {
			l.logger.Warn("audit persist failed", zap.String("event", event), zap.Error(err))
		}
	}
	if l.notify != nil {
		l.notify(ctx, entry)
	}
	l.logger.Info("audit", zap.String("level", level), zap.String("actor_id", actorID), zap.String("event", event), zap.String("details", details))
}
