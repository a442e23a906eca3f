package storage

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
)

var ActionTypes = []string{"warn", "mute", "kick", "ban", "unmute", "unban"}

type ActionLog struct {
	ID           int64
	MemberID     string
	ModeratorID  string
	Action       string
	Reason       string
	Length       *time.Duration
	PunishmentID int64
	CreatedAt    time.Time
	DeletedAt    *time.Time
}

// Old reports cases older than three months, which /check marks separately.
func (l ActionLog) Old(now time.Time) bool {
	return now.Sub(l.CreatedAt) > 90*24*time.Hour
}

type TimedPunishment struct {
	ID        int64
	MemberID  string
	Type      string
	Length    time.Duration
	CreatedAt time.Time
}

func (p TimedPunishment) EndsAt() time.Time {
	return p.CreatedAt.Add(p.Length)
}

type ModerationNote struct {
	MemberID  string
	Body      string
	UpdatedAt time.Time
}

// ListActionLogs returns the member's active cases, or only the
// soft-deleted ones when deleted is set.
func (s *Store) ListActionLogs(ctx context.Context, memberID string, deleted bool) ([]ActionLog, error) {
	where := sq.And{sq.Eq{"member_id": memberID}}
	if deleted {
		where = append(where, sq.NotEq{"deleted_at": nil})
	} else {
		where = append(where, sq.Eq{"deleted_at": nil})
	}
	rows, err := s.query(ctx, s.sq.Select("id", "member_id", "moderator_id", "action", "reason", "length", "punishment_id", "created_at", "deleted_at").
		From("action_logs").
		Where(where).
		OrderBy("id"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []ActionLog
	for rows.Next() {
		var (
			log        ActionLog
			length     sql.NullInt64
			punishment sql.NullInt64
			created    int64
			deletedAt  sql.NullInt64
		)
		if err := rows.Scan(&log.ID, &log.MemberID, &log.ModeratorID, &log.Action, &log.Reason, &length, &punishment, &created, &deletedAt); err != nil {
			return nil, err
		}
		if length.Valid {
			d := time.Duration(length.Int64) * time.Millisecond
			log.Length = &d
		}
		log.PunishmentID = punishment.Int64
		log.CreatedAt = time.Unix(created, 0)
		log.DeletedAt = timePtr(deletedAt)
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

// CurrentPunishment returns the member's active timed punishment; a ban
// takes precedence over a mute.
func (s *Store) CurrentPunishment(ctx context.Context, memberID string) (TimedPunishment, error) {
	var (
		p       TimedPunishment
		length  int64
		created int64
	)
	err := s.queryRow(ctx, s.sq.Select("id", "member_id", "type", "length", "created_at").
		From("timed_punishments").
		Where(sq.Eq{"member_id": memberID}).
		OrderBy("type ASC", "id DESC").
		Limit(1),
		&p.ID, &p.MemberID, &p.Type, &length, &created)
	if err != nil {
		return TimedPunishment{}, err
	}
	p.Length = time.Duration(length) * time.Millisecond
	p.CreatedAt = time.Unix(created, 0)
	return p, nil
}

func (s *Store) GetModerationNote(ctx context.Context, memberID string) (ModerationNote, error) {
	var note ModerationNote
	var updated int64
	err := s.queryRow(ctx, s.sq.Select("member_id", "body", "updated_at").
		From("moderation_notes").
		Where(sq.Eq{"member_id": memberID}),
		&note.MemberID, &note.Body, &updated)
	if err != nil {
		return ModerationNote{}, err
	}
	note.UpdatedAt = time.Unix(updated, 0)
	return note, nil
}
