package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(store.Close)
	require.NoError(t, store.Migrate())
	return store
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	_, err := New("mysql", "whatever")
	require.Error(t, err)
}

func TestSuspiciousReportLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	report := SuspiciousReport{UserID: "U1", SubmitterID: "S1", Evidence: "saw them griefing"}
	require.NoError(t, store.CreateSuspiciousReport(ctx, &report))
	require.NotZero(t, report.ID)
	require.Equal(t, ReportPending, report.State)

	got, err := store.GetSuspiciousReport(ctx, report.ID)
	require.NoError(t, err)
	require.False(t, got.Complete())
	require.Empty(t, got.ModeratorID)

	require.NoError(t, store.SetSuspiciousReportMessage(ctx, report.ID, "msg-1"))
	require.NoError(t, store.SetSuspiciousReportThread(ctx, report.ID, "thread-1"))

	require.NoError(t, store.ResolveSuspiciousReport(ctx, report.ID, ReportDenied, "M1", "confirmed by logs"))
	got, err = store.GetSuspiciousReport(ctx, report.ID)
	require.NoError(t, err)
	require.True(t, got.Denied())
	require.Equal(t, "M1", got.ModeratorID)
	require.Equal(t, "confirmed by logs", got.Reason)
	require.True(t, got.Complete())

	err = store.ResolveSuspiciousReport(ctx, report.ID, ReportApproved, "M2", "other")
	require.ErrorIs(t, err, ErrConflict)

	require.NoError(t, store.SoftDeleteSuspiciousReport(ctx, report.ID, time.Now()))
	_, err = store.GetSuspiciousReport(ctx, report.ID)
	require.ErrorIs(t, err, ErrNotFound)

	got, err = store.GetSuspiciousReportUnscoped(ctx, report.ID)
	require.NoError(t, err)
	require.NotNil(t, got.DeletedAt)
	require.Equal(t, "M1", got.ModeratorID)
}

func TestResolveSuspiciousReportMissing(t *testing.T) {
	store := newTestStore(t)
	err := store.ResolveSuspiciousReport(context.Background(), 42, ReportApproved, "M1", "r")
	require.ErrorIs(t, err, ErrNotFound)

	err = store.ResolveSuspiciousReport(context.Background(), 42, ReportPending, "M1", "r")
	require.Error(t, err)
}

func TestResolveSuspiciousReportSingleWinner(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	report := SuspiciousReport{UserID: "U1", SubmitterID: "S1", Evidence: "e"}
	require.NoError(t, store.CreateSuspiciousReport(ctx, &report))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			state := ReportApproved
			if i%2 == 0 {
				state = ReportDenied
			}
			err := store.ResolveSuspiciousReport(ctx, report.ID, state, "M", "r")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrConflict):
				conflicts++
			}
		}(i)
	}
	wg.Wait()
	require.Equal(t, 1, wins)
	require.Equal(t, 7, conflicts)
}

func TestListIncompleteSuspiciousReports(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	noMessage := SuspiciousReport{UserID: "U1", SubmitterID: "S1", Evidence: "e"}
	require.NoError(t, store.CreateSuspiciousReport(ctx, &noMessage))

	noThread := SuspiciousReport{UserID: "U2", SubmitterID: "S1", Evidence: "e"}
	require.NoError(t, store.CreateSuspiciousReport(ctx, &noThread))
	require.NoError(t, store.SetSuspiciousReportMessage(ctx, noThread.ID, "m2"))

	complete := SuspiciousReport{UserID: "U3", SubmitterID: "S1", Evidence: "e"}
	require.NoError(t, store.CreateSuspiciousReport(ctx, &complete))
	require.NoError(t, store.SetSuspiciousReportMessage(ctx, complete.ID, "m3"))
	require.NoError(t, store.SetSuspiciousReportThread(ctx, complete.ID, "t3"))

	orphans, err := store.ListIncompleteSuspiciousReports(ctx)
	require.NoError(t, err)
	require.Len(t, orphans, 2)
	require.Equal(t, noMessage.ID, orphans[0].ID)
	require.Equal(t, noThread.ID, orphans[1].ID)
	require.Equal(t, "m2", orphans[1].MessageID)
}

func TestPlaceholders(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.AddPlaceholder(ctx, "discord", "en", "https://discord.gg/x"))
	require.NoError(t, store.AddPlaceholder(ctx, "discord", "de", "Tritt bei"))
	require.ErrorIs(t, store.AddPlaceholder(ctx, "discord", "en", "dup"), ErrConflict)

	require.NoError(t, store.EditPlaceholder(ctx, "discord", "en", "https://discord.gg/y"))
	got, err := store.GetPlaceholder(ctx, "discord", "en")
	require.NoError(t, err)
	require.Equal(t, "https://discord.gg/y", got.Body)

	require.ErrorIs(t, store.EditPlaceholder(ctx, "missing", "en", "x"), ErrNotFound)
	require.NoError(t, store.DeletePlaceholder(ctx, "discord", "de"))
	require.ErrorIs(t, store.DeletePlaceholder(ctx, "discord", "de"), ErrNotFound)

	all, err := store.ListPlaceholders(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	_, err = store.GetPlaceholder(ctx, "discord", "de")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFindSnippetByAlias(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.UpsertSnippet(ctx, Snippet{
		Name: "translation", Language: "en", Body: "Translation team", Type: SnippetTypeTeam,
		Aliases: []string{"Translators", " tl ", "bad,alias"},
	}))
	require.NoError(t, store.UpsertSnippet(ctx, Snippet{
		Name: "rule1", Language: "en", Body: "Be nice", Type: SnippetTypeRule,
	}))

	got, err := store.FindSnippet(ctx, "TL", "en", SnippetTypeTeam)
	require.NoError(t, err)
	require.Equal(t, "translation", got.Name)
	require.Equal(t, []string{"translators", "tl"}, got.Aliases)

	got, err = store.FindSnippet(ctx, "translation", "en", SnippetTypeTeam)
	require.NoError(t, err)
	require.Equal(t, "Translation team", got.Body)

	_, err = store.FindSnippet(ctx, "t", "en", SnippetTypeTeam)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = store.FindSnippet(ctx, "rule1", "en", SnippetTypeTeam)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.UpsertSnippet(ctx, Snippet{
		Name: "translation", Language: "en", Body: "Updated", Type: SnippetTypeTeam,
	}))
	teams, err := store.ListSnippets(ctx, SnippetTypeTeam)
	require.NoError(t, err)
	require.Len(t, teams, 1)
	require.Equal(t, "Updated", teams[0].Body)
	require.Empty(t, teams[0].Aliases)

	require.NoError(t, store.DeleteSnippet(ctx, "rule1", "en", SnippetTypeRule))
	require.ErrorIs(t, store.DeleteSnippet(ctx, "rule1", "en", SnippetTypeRule), ErrNotFound)
}

func TestReminders(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	next := time.Unix(1700000000, 0)
	reminder := Reminder{ChannelID: "c1", Message: "drink water", Schedule: "0 * * * *", NextFireDate: next}
	require.NoError(t, store.CreateReminder(ctx, &reminder))
	require.NotZero(t, reminder.ID)

	later := next.Add(time.Hour)
	require.NoError(t, store.UpdateReminderNextFire(ctx, reminder.ID, later))
	got, err := store.GetReminder(ctx, reminder.ID)
	require.NoError(t, err)
	require.Equal(t, later.Unix(), got.NextFireDate.Unix())

	all, err := store.ListReminders(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	require.NoError(t, store.DeleteReminder(ctx, reminder.ID))
	require.ErrorIs(t, store.DeleteReminder(ctx, reminder.ID), ErrNotFound)
}

func TestPunishmentHistory(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	now := time.Now()

	_, err := store.db.Exec(`INSERT INTO timed_punishments (id, member_id, type, length, created_at) VALUES
		(1, 'U1', 'mute', 3600000, ?), (2, 'U1', 'ban', 86400000, ?)`, now.Unix(), now.Unix())
	require.NoError(t, err)
	_, err = store.db.Exec(`INSERT INTO action_logs (member_id, moderator_id, action, reason, length, punishment_id, created_at, deleted_at) VALUES
		('U1', 'M1', 'warn', 'spam', NULL, NULL, ?, NULL),
		('U1', 'M1', 'ban', 'raid', 86400000, 2, ?, NULL),
		('U1', 'M2', 'kick', 'mistake', NULL, NULL, ?, ?)`,
		now.AddDate(0, -6, 0).Unix(), now.Unix(), now.Unix(), now.Unix())
	require.NoError(t, err)
	_, err = store.db.Exec(`INSERT INTO moderation_notes (member_id, body, updated_at) VALUES ('U1', 'watch closely', ?)`, now.Unix())
	require.NoError(t, err)

	active, err := store.ListActionLogs(ctx, "U1", false)
	require.NoError(t, err)
	require.Len(t, active, 2)
	require.True(t, active[0].Old(now))
	require.Nil(t, active[0].Length)
	require.Equal(t, 24*time.Hour, *active[1].Length)
	require.EqualValues(t, 2, active[1].PunishmentID)

	deleted, err := store.ListActionLogs(ctx, "U1", true)
	require.NoError(t, err)
	require.Len(t, deleted, 1)
	require.Equal(t, "kick", deleted[0].Action)

	current, err := store.CurrentPunishment(ctx, "U1")
	require.NoError(t, err)
	require.Equal(t, "ban", current.Type)
	require.Equal(t, now.Unix()+86400, current.EndsAt().Unix())

	_, err = store.CurrentPunishment(ctx, "U2")
	require.ErrorIs(t, err, ErrNotFound)

	note, err := store.GetModerationNote(ctx, "U1")
	require.NoError(t, err)
	require.Equal(t, "watch closely", note.Body)
}

func TestListTeamPointsLogs(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	base := time.Unix(1700000000, 0)

	for i, entry := range []TeamPointsLog{
		{RoleID: "r1", ActorID: "a1", PointChange: 5, Reason: "event"},
		{RoleID: "r1", ActorID: "a2", PointChange: -2, Reason: "penalty"},
		{RoleID: "r2", ActorID: "a1", PointChange: 1.5, Reason: "help"},
	} {
		entry.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, store.AddTeamPointsLog(ctx, &entry))
	}

	logs, err := store.ListTeamPointsLogs(ctx, TeamPointsFilter{})
	require.NoError(t, err)
	require.Len(t, logs, 3)
	require.Equal(t, "r2", logs[0].RoleID)

	logs, err = store.ListTeamPointsLogs(ctx, TeamPointsFilter{RoleID: "r1", Ascending: true})
	require.NoError(t, err)
	require.Len(t, logs, 2)
	require.Equal(t, "a1", logs[0].ActorID)

	logs, err = store.ListTeamPointsLogs(ctx, TeamPointsFilter{ActorID: "a1", Count: 1})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, 1.5, logs[0].PointChange)

	from, to := base, base.Add(time.Hour)
	logs, err = store.ListTeamPointsLogs(ctx, TeamPointsFilter{MinDate: &from, MaxDate: &to})
	require.NoError(t, err)
	require.Len(t, logs, 2)

	logs, err = store.ListTeamPointsLogs(ctx, TeamPointsFilter{MinDate: &from})
	require.NoError(t, err)
	require.Len(t, logs, 2)

	exact := base.Add(2 * time.Hour)
	logs, err = store.ListTeamPointsLogs(ctx, TeamPointsFilter{ExactDate: &exact})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, "help", logs[0].Reason)
}

func TestAuditLogRetention(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	now := time.Now()

	require.NoError(t, store.AddAuditLog(ctx, AuditLog{ActorID: "M1", Level: "INFO", Event: "old", CreatedAt: now.AddDate(0, 0, -40)}))
	require.NoError(t, store.AddAuditLog(ctx, AuditLog{ActorID: "M1", Level: "INFO", Event: "fresh", CreatedAt: now}))

	require.NoError(t, store.CleanupAuditLogs(ctx, 30))

	logs, err := store.ListAuditLogs(ctx, now.AddDate(0, 0, -365))
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, "fresh", logs[0].Event)
}
