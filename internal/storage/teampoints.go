package storage

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
)

type TeamPointsLog struct {
	ID          int64
	CreatedAt   time.Time
	RoleID      string
	ActorID     string
	PointChange float64
	Reason      string
}

type TeamPointsFilter struct {
	RoleID    string
	ActorID   string
	Ascending bool
	MinDate   *time.Time
	MaxDate   *time.Time
	ExactDate *time.Time
	Count     uint64
}

func (s *Store) AddTeamPointsLog(ctx context.Context, log *TeamPointsLog) error {
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}
	id, err := s.insertReturningID(ctx, s.sq.Insert("teampoints_log").
		Columns("created_at", "role_id", "actor_id", "point_change", "reason").
		Values(log.CreatedAt.Unix(), log.RoleID, log.ActorID, log.PointChange, log.Reason))
	if err != nil {
		return err
	}
	log.ID = id
	return nil
}

func (s *Store) ListTeamPointsLogs(ctx context.Context, filter TeamPointsFilter) ([]TeamPointsLog, error) {
	builder := s.sq.Select("id", "created_at", "role_id", "actor_id", "point_change", "reason").From("teampoints_log")
	if filter.RoleID != "" {
		builder = builder.Where(sq.Eq{"role_id": filter.RoleID})
	}
	if filter.ActorID != "" {
		builder = builder.Where(sq.Eq{"actor_id": filter.ActorID})
	}
	switch {
	case filter.MinDate != nil && filter.MaxDate != nil:
		builder = builder.Where(sq.And{
			sq.GtOrEq{"created_at": filter.MinDate.Unix()},
			sq.LtOrEq{"created_at": filter.MaxDate.Unix()},
		})
	case filter.MaxDate != nil:
		builder = builder.Where(sq.Lt{"created_at": filter.MaxDate.Unix()})
	case filter.MinDate != nil:
		builder = builder.Where(sq.Gt{"created_at": filter.MinDate.Unix()})
	case filter.ExactDate != nil:
		builder = builder.Where(sq.Eq{"created_at": filter.ExactDate.Unix()})
	}
	if filter.Ascending {
		builder = builder.OrderBy("created_at ASC", "id ASC")
	} else {
		builder = builder.OrderBy("created_at DESC", "id DESC")
	}
	if filter.Count > 0 {
		builder = builder.Limit(filter.Count)
	}

	rows, err := s.query(ctx, builder)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []TeamPointsLog
	for rows.Next() {
		var log TeamPointsLog
		var created int64
		if err := rows.Scan(&log.ID, &created, &log.RoleID, &log.ActorID, &log.PointChange, &log.Reason); err != nil {
			return nil, err
		}
		log.CreatedAt = time.Unix(created, 0)
		logs = append(logs, log)
	}
	return logs, rows.Err()
}
