package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
)

type ReportState string

const (
	ReportPending  ReportState = "pending"
	ReportApproved ReportState = "approved"
	ReportDenied   ReportState = "denied"
)

func (s ReportState) Resolved() bool {
	return s == ReportApproved || s == ReportDenied
}

type SuspiciousReport struct {
	ID          int64
	UserID      string
	SubmitterID string
	ModeratorID string
	MessageID   string
	ThreadID    string
	Evidence    string
	Reason      string
	State       ReportState
	CreatedAt   time.Time
	DeletedAt   *time.Time
}

func (r SuspiciousReport) Approved() bool { return r.State == ReportApproved }

func (r SuspiciousReport) Denied() bool { return r.State == ReportDenied }

func (r SuspiciousReport) Complete() bool {
	return r.MessageID != "" && r.ThreadID != ""
}

var suspiciousColumns = []string{
	"id", "user_id", "submitter_id", "moderator_id", "message_id", "thread_id",
	"evidence", "reason", "state", "created_at", "deleted_at",
}

func (s *Store) CreateSuspiciousReport(ctx context.Context, report *SuspiciousReport) error {
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now()
	}
	report.State = ReportPending
	id, err := s.insertReturningID(ctx, s.sq.Insert("suspicious_users").
		Columns("user_id", "submitter_id", "message_id", "thread_id", "evidence", "state", "created_at").
		Values(report.UserID, report.SubmitterID, report.MessageID, report.ThreadID, report.Evidence, string(ReportPending), report.CreatedAt.Unix()))
	if err != nil {
		return err
	}
	report.ID = id
	return nil
}

func (s *Store) SetSuspiciousReportMessage(ctx context.Context, id int64, messageID string) error {
	return s.updateSuspiciousColumn(ctx, id, "message_id", messageID)
}

func (s *Store) SetSuspiciousReportThread(ctx context.Context, id int64, threadID string) error {
	return s.updateSuspiciousColumn(ctx, id, "thread_id", threadID)
}

func (s *Store) updateSuspiciousColumn(ctx context.Context, id int64, column, value string) error {
	result, err := s.exec(ctx, s.sq.Update("suspicious_users").
		Set(column, value).
		Where(sq.Eq{"id": id}))
	if err != nil {
		return err
	}
	ok, err := affectedOne(result)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// GetSuspiciousReport excludes soft-deleted (resolved) reports.
func (s *Store) GetSuspiciousReport(ctx context.Context, id int64) (SuspiciousReport, error) {
	return s.getSuspiciousReport(ctx, sq.And{sq.Eq{"id": id}, sq.Eq{"deleted_at": nil}})
}

func (s *Store) GetSuspiciousReportUnscoped(ctx context.Context, id int64) (SuspiciousReport, error) {
	return s.getSuspiciousReport(ctx, sq.Eq{"id": id})
}

func (s *Store) getSuspiciousReport(ctx context.Context, where sq.Sqlizer) (SuspiciousReport, error) {
	query, args, err := s.sq.Select(suspiciousColumns...).From("suspicious_users").Where(where).ToSql()
	if err != nil {
		return SuspiciousReport{}, err
	}
	report, err := scanSuspiciousReport(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return SuspiciousReport{}, ErrNotFound
	}
	return report, err
}

// ResolveSuspiciousReport moves a pending report to a terminal state in one
// conditional write. ErrConflict means the report was already resolved.
func (s *Store) ResolveSuspiciousReport(ctx context.Context, id int64, state ReportState, moderatorID, reason string) error {
	if !state.Resolved() {
		return errors.New("storage: resolve requires approved or denied")
	}
	result, err := s.exec(ctx, s.sq.Update("suspicious_users").
		Set("state", string(state)).
		Set("moderator_id", moderatorID).
		Set("reason", reason).
		Where(sq.Eq{"id": id, "state": string(ReportPending), "deleted_at": nil}))
	if err != nil {
		return err
	}
	ok, err := affectedOne(result)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if _, err := s.GetSuspiciousReportUnscoped(ctx, id); err != nil {
		return err
	}
	return ErrConflict
}

func (s *Store) SoftDeleteSuspiciousReport(ctx context.Context, id int64, at time.Time) error {
	_, err := s.exec(ctx, s.sq.Update("suspicious_users").
		Set("deleted_at", at.Unix()).
		Where(sq.Eq{"id": id, "deleted_at": nil}))
	return err
}

// ListIncompleteSuspiciousReports returns reports whose creation never
// finished posting the message or opening the thread.
func (s *Store) ListIncompleteSuspiciousReports(ctx context.Context) ([]SuspiciousReport, error) {
	rows, err := s.query(ctx, s.sq.Select(suspiciousColumns...).
		From("suspicious_users").
		Where(sq.And{
			sq.Eq{"deleted_at": nil},
			sq.Or{sq.Eq{"message_id": ""}, sq.Eq{"thread_id": ""}},
		}).
		OrderBy("id"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []SuspiciousReport
	for rows.Next() {
		report, err := scanSuspiciousReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSuspiciousReport(row rowScanner) (SuspiciousReport, error) {
	var (
		report    SuspiciousReport
		moderator sql.NullString
		reason    sql.NullString
		state     string
		created   int64
		deleted   sql.NullInt64
	)
	err := row.Scan(&report.ID, &report.UserID, &report.SubmitterID, &moderator, &report.MessageID,
		&report.ThreadID, &report.Evidence, &reason, &state, &created, &deleted)
	if err != nil {
		return SuspiciousReport{}, err
	}
	report.ModeratorID = moderator.String
	report.Reason = reason.String
	report.State = ReportState(state)
	report.CreatedAt = time.Unix(created, 0)
	report.DeletedAt = timePtr(deleted)
	return report, nil
}
