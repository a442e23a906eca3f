package storage

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
)

type AuditLog struct {
	ID        int64
	ActorID   string
	Level     string
	Event     string
	Details   string
	CreatedAt time.Time
}

func (s *Store) AddAuditLog(ctx context.Context, log AuditLog) error {
	_, err := s.exec(ctx, s.sq.Insert("audit_logs").
		Columns("actor_id", "level", "event", "details", "created_at").
		Values(log.ActorID, log.Level, log.Event, log.Details, log.CreatedAt.Unix()))
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, since time.Time) ([]AuditLog, error) {
	rows, err := s.query(ctx, s.sq.Select("id", "actor_id", "level", "event", "details", "created_at").
		From("audit_logs").
		Where(sq.GtOrEq{"created_at": since.Unix()}).
		OrderBy("created_at DESC", "id DESC"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []AuditLog
	for rows.Next() {
		var log AuditLog
		var created int64
		if err := rows.Scan(&log.ID, &log.ActorID, &log.Level, &log.Event, &log.Details, &created); err != nil {
			return nil, err
		}
		log.CreatedAt = time.Unix(created, 0)
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

func (s *Store) CleanupAuditLogs(ctx context.Context, retentionDays int) error {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	_, err := s.exec(ctx, s.sq.Delete("audit_logs").Where(sq.Lt{"created_at": cutoff.Unix()}))
	return err
}
