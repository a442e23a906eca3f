package suspicious

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"modbot/internal/audit"
	"modbot/internal/storage"

	"go.uber.org/zap"
)

var (
	ErrChannelUnavailable = errors.New("suspicious: reporting channel unavailable")
	ErrThreadUnavailable  = errors.New("suspicious: report thread unavailable")
	ErrAlreadyResolved    = errors.New("suspicious: report already resolved")
	ErrUnauthorized       = errors.New("suspicious: not permitted")
	ErrNotFound           = errors.New("suspicious: report not found")
	ErrEvidenceRequired   = errors.New("suspicious: evidence is required")
	ErrReasonRequired     = errors.New("suspicious: reason is required")
	ErrModeratorRequired  = errors.New("suspicious: moderator is required")
	ErrInvalidOutcome     = errors.New("suspicious: outcome must be approved or denied")
)

type Repository interface {
	CreateSuspiciousReport(ctx context.Context, report *storage.SuspiciousReport) error
	SetSuspiciousReportMessage(ctx context.Context, id int64, messageID string) error
	SetSuspiciousReportThread(ctx context.Context, id int64, threadID string) error
	GetSuspiciousReport(ctx context.Context, id int64) (storage.SuspiciousReport, error)
	GetSuspiciousReportUnscoped(ctx context.Context, id int64) (storage.SuspiciousReport, error)
	ResolveSuspiciousReport(ctx context.Context, id int64, state storage.ReportState, moderatorID, reason string) error
	SoftDeleteSuspiciousReport(ctx context.Context, id int64, at time.Time) error
	ListIncompleteSuspiciousReports(ctx context.Context) ([]storage.SuspiciousReport, error)
}

// Notifier posts to the reporting channel. Threads are addressed as
// channels, so Send also posts into a report thread.
type Notifier interface {
	Send(ctx context.Context, channelID string, msg Message) (string, error)
	Edit(ctx context.Context, channelID, messageID string, msg Message) error
	StartThread(ctx context.Context, channelID, messageID, name string) (string, error)
	CloseThread(ctx context.Context, threadID string) error
	DirectMessage(ctx context.Context, userID string, msg Message) error
}

// Members answers role membership in the main guild. A user who is not a
// member holds no roles.
type Members interface {
	HasAnyRole(ctx context.Context, guildID, userID string, roleIDs []string) (bool, error)
}

type Config struct {
	ChannelID      string
	GuildID        string
	ModeratorRoles []string
	Colors         Colors
}

type Colors struct {
	Info    int
	Success int
	Error   int
}

type Service struct {
	cfg      Config
	repo     Repository
	notifier Notifier
	members  Members
	audit    *audit.Logger
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(cfg Config, repo Repository, notifier Notifier, members Members, auditLogger *audit.Logger, logger *zap.Logger) *Service {
	return &Service{
		cfg:      cfg,
		repo:     repo,
		notifier: notifier,
		members:  members,
		audit:    auditLogger,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *Service) WithClock(now func() time.Time) {
	s.now = now
}

// Create records a pending report, posts its summary and opens the
// discussion thread. A failure after the row is written leaves it
// incomplete; Orphans lists such rows.
func (s *Service) Create(ctx context.Context, userID, submitterID, evidence string) (storage.SuspiciousReport, error) {
	evidence = strings.TrimSpace(evidence)
	if evidence == "" {
		return storage.SuspiciousReport{}, ErrEvidenceRequired
	}

	report := storage.SuspiciousReport{
		UserID:      userID,
		SubmitterID: submitterID,
		Evidence:    evidence,
		CreatedAt:   s.now(),
	}
	if err := s.repo.CreateSuspiciousReport(ctx, &report); err != nil {
		return storage.SuspiciousReport{}, fmt.Errorf("persist report: %w", err)
	}

	messageID, err := s.notifier.Send(ctx, s.cfg.ChannelID, s.Render(report))
	if err == nil && messageID == "" {
		err = errors.New("empty message id")
	}
	if err != nil {
		s.logger.Warn("suspicious report left incomplete", zap.Int64("report_id", report.ID), zap.Error(err))
		return storage.SuspiciousReport{}, fmt.Errorf("%w: %w", ErrChannelUnavailable, err)
	}
	if err := s.repo.SetSuspiciousReportMessage(ctx, report.ID, messageID); err != nil {
		return storage.SuspiciousReport{}, fmt.Errorf("persist message id: %w", err)
	}
	report.MessageID = messageID

	threadID, err := s.notifier.StartThread(ctx, s.cfg.ChannelID, messageID, threadName(report.ID))
	if err == nil && threadID == "" {
		err = errors.New("empty thread id")
	}
	if err != nil {
		s.logger.Warn("suspicious report left without thread", zap.Int64("report_id", report.ID), zap.String("message_id", messageID), zap.Error(err))
		return storage.SuspiciousReport{}, fmt.Errorf("%w: %w", ErrThreadUnavailable, err)
	}
	if err := s.repo.SetSuspiciousReportThread(ctx, report.ID, threadID); err != nil {
		return storage.SuspiciousReport{}, fmt.Errorf("persist thread id: %w", err)
	}
	report.ThreadID = threadID

	s.audit.Log(ctx, audit.LevelInfo, submitterID, audit.EventReportCreated,
		fmt.Sprintf("report %d against %s", report.ID, userID))
	return report, nil
}

// Resolve applies the moderator's decision. The state change is a single
// conditional write; the notifications that follow are best effort.
func (s *Service) Resolve(ctx context.Context, id int64, moderatorID, reason string, outcome storage.ReportState) (storage.SuspiciousReport, error) {
	if !outcome.Resolved() {
		return storage.SuspiciousReport{}, ErrInvalidOutcome
	}
	moderatorID = strings.TrimSpace(moderatorID)
	if moderatorID == "" {
		return storage.SuspiciousReport{}, ErrModeratorRequired
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return storage.SuspiciousReport{}, ErrReasonRequired
	}

	// Resolved reports are soft deleted, so the lookup includes them to
	// answer a repeat with ErrAlreadyResolved rather than ErrNotFound.
	report, err := s.repo.GetSuspiciousReportUnscoped(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.SuspiciousReport{}, ErrNotFound
	}
	if err != nil {
		return storage.SuspiciousReport{}, err
	}
	if report.State.Resolved() || report.DeletedAt != nil {
		return storage.SuspiciousReport{}, ErrAlreadyResolved
	}

	switch err := s.repo.ResolveSuspiciousReport(ctx, id, outcome, moderatorID, reason); {
	case errors.Is(err, storage.ErrConflict):
		return storage.SuspiciousReport{}, ErrAlreadyResolved
	case errors.Is(err, storage.ErrNotFound):
		return storage.SuspiciousReport{}, ErrNotFound
	case err != nil:
		return storage.SuspiciousReport{}, fmt.Errorf("resolve report: %w", err)
	}
	report.State = outcome
	report.ModeratorID = moderatorID
	report.Reason = reason

	log := s.logger.With(zap.Int64("report_id", id), zap.String("outcome", string(outcome)))
	if report.MessageID != "" {
		if err := s.notifier.Edit(ctx, s.cfg.ChannelID, report.MessageID, s.Render(report)); err != nil {
			log.Warn("report message edit failed", zap.Error(err))
		}
	}

	notice := s.outcomeNotice(report)
	if err := s.notifier.DirectMessage(ctx, report.SubmitterID, notice); err != nil {
		log.Warn("submitter dm failed", zap.String("submitter_id", report.SubmitterID), zap.Error(err))
	}
	if report.ThreadID != "" {
		if _, err := s.notifier.Send(ctx, report.ThreadID, notice); err != nil {
			log.Warn("thread notice failed", zap.Error(err))
		}
		if err := s.notifier.CloseThread(ctx, report.ThreadID); err != nil {
			log.Warn("thread close failed", zap.Error(err))
		}
	}

	deletedAt := s.now()
	if err := s.repo.SoftDeleteSuspiciousReport(ctx, id, deletedAt); err != nil {
		log.Error("report soft delete failed", zap.Error(err))
	} else {
		report.DeletedAt = &deletedAt
	}

	event := audit.EventReportApproved
	if outcome == storage.ReportDenied {
		event = audit.EventReportDenied
	}
	s.audit.Log(ctx, audit.LevelInfo, moderatorID, event, fmt.Sprintf("report %d: %s", id, reason))
	return report, nil
}

func (s *Service) Authorize(ctx context.Context, userID string) error {
	if len(s.cfg.ModeratorRoles) == 0 {
		return ErrUnauthorized
	}
	ok, err := s.members.HasAnyRole(ctx, s.cfg.GuildID, userID, s.cfg.ModeratorRoles)
	if err != nil {
		return fmt.Errorf("lookup member: %w", err)
	}
	if !ok {
		return ErrUnauthorized
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id int64) (storage.SuspiciousReport, error) {
	report, err := s.repo.GetSuspiciousReport(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.SuspiciousReport{}, ErrNotFound
	}
	if err != nil {
		return storage.SuspiciousReport{}, err
	}
	return report, nil
}

// BeginResolution runs the checks done when a moderator presses a button,
// before the reason is asked for.
func (s *Service) BeginResolution(ctx context.Context, actorID string, id int64, outcome storage.ReportState) (storage.SuspiciousReport, error) {
	if !outcome.Resolved() {
		return storage.SuspiciousReport{}, ErrInvalidOutcome
	}
	if err := s.Authorize(ctx, actorID); err != nil {
		return storage.SuspiciousReport{}, err
	}
	report, err := s.Get(ctx, id)
	if err != nil {
		return storage.SuspiciousReport{}, err
	}
	if report.State.Resolved() {
		return storage.SuspiciousReport{}, ErrAlreadyResolved
	}
	return report, nil
}

// ResolveAs is the submit side of the reason prompt. Roles may have changed
// since the prompt opened, so the actor is checked again.
func (s *Service) ResolveAs(ctx context.Context, actorID string, id int64, reason string, outcome storage.ReportState) (storage.SuspiciousReport, error) {
	if err := s.Authorize(ctx, actorID); err != nil {
		return storage.SuspiciousReport{}, err
	}
	return s.Resolve(ctx, id, actorID, reason, outcome)
}

func (s *Service) Orphans(ctx context.Context) ([]storage.SuspiciousReport, error) {
	return s.repo.ListIncompleteSuspiciousReports(ctx)
}

const buttonPrefix = "suspicious_user."

func ButtonID(id int64, outcome storage.ReportState) string {
	return buttonPrefix + strconv.FormatInt(id, 10) + "." + string(outcome)
}

func IsButtonID(customID string) bool {
	return strings.HasPrefix(customID, buttonPrefix)
}

func ParseButtonID(customID string) (int64, storage.ReportState, bool) {
	parts := strings.Split(customID, ".")
	if len(parts) != 3 || parts[0]+"." != buttonPrefix {
		return 0, "", false
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || id <= 0 {
		return 0, "", false
	}
	outcome := storage.ReportState(parts[2])
	if !outcome.Resolved() {
		return 0, "", false
	}
	return id, outcome, true
}

func threadName(id int64) string {
	return fmt.Sprintf("Suspicious User Report: %d", id)
}
