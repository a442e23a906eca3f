package suspicious

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"modbot/internal/audit"
	"modbot/internal/storage"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const reportChannel = "reports"

type sentMessage struct {
	channelID string
	msg       Message
}

type fakeNotifier struct {
	mu        sync.Mutex
	seq       int
	sendErr   map[string]error
	threadErr error
	editErr   error
	dmErr     error
	closeErr  error
	sent      []sentMessage
	edits     []sentMessage
	threads   []string
	closed    []string
	dms       []string
}

func (n *fakeNotifier) nextID(prefix string) string {
	n.seq++
	return fmt.Sprintf("%s-%d", prefix, n.seq)
}

func (n *fakeNotifier) Send(_ context.Context, channelID string, msg Message) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.sendErr[channelID]; err != nil {
		return "", err
	}
	n.sent = append(n.sent, sentMessage{channelID: channelID, msg: msg})
	return n.nextID("msg"), nil
}

func (n *fakeNotifier) Edit(_ context.Context, channelID, _ string, msg Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.editErr != nil {
		return n.editErr
	}
	n.edits = append(n.edits, sentMessage{channelID: channelID, msg: msg})
	return nil
}

func (n *fakeNotifier) StartThread(_ context.Context, _, _, name string) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.threadErr != nil {
		return "", n.threadErr
	}
	n.threads = append(n.threads, name)
	return n.nextID("thread"), nil
}

func (n *fakeNotifier) CloseThread(_ context.Context, threadID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closeErr != nil {
		return n.closeErr
	}
	n.closed = append(n.closed, threadID)
	return nil
}

func (n *fakeNotifier) DirectMessage(_ context.Context, userID string, _ Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.dms = append(n.dms, userID)
	return n.dmErr
}

func (n *fakeNotifier) sentTo(channelID string) []Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []Message
	for _, s := range n.sent {
		if s.channelID == channelID {
			out = append(out, s.msg)
		}
	}
	return out
}

type fakeMembers map[string]bool

func (m fakeMembers) HasAnyRole(_ context.Context, _, userID string, _ []string) (bool, error) {
	return m[userID], nil
}

type harness struct {
	svc      *Service
	store    *storage.Store
	notifier *fakeNotifier
}

func newHarness(t *testing.T) harness {
	t.Helper()
	store, err := storage.New(storage.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(store.Close)
	require.NoError(t, store.Migrate())

	notifier := &fakeNotifier{sendErr: map[string]error{}}
	members := fakeMembers{"M1": true, "M2": true}
	cfg := Config{
		ChannelID:      reportChannel,
		GuildID:        "guild",
		ModeratorRoles: []string{"mod"},
		Colors:         Colors{Info: 1, Success: 2, Error: 3},
	}
	svc := NewService(cfg, store, notifier, members, audit.NewLogger(store, zap.NewNop()), zap.NewNop())
	return harness{svc: svc, store: store, notifier: notifier}
}

func buttonIDs(msg Message) []string {
	var ids []string
	for _, component := range msg.Components {
		row, ok := component.(discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, inner := range row.Components {
			if button, ok := inner.(discordgo.Button); ok {
				ids = append(ids, button.CustomID)
			}
		}
	}
	return ids
}

func TestCreateThenDeny(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	report, err := h.svc.Create(ctx, "U1", "S1", "saw them griefing")
	require.NoError(t, err)
	require.Equal(t, storage.ReportPending, report.State)
	require.NotEmpty(t, report.MessageID)
	require.NotEmpty(t, report.ThreadID)
	require.Equal(t, []string{fmt.Sprintf("Suspicious User Report: %d", report.ID)}, h.notifier.threads)

	posted := h.notifier.sentTo(reportChannel)
	require.Len(t, posted, 1)
	require.Equal(t, []string{ButtonID(report.ID, storage.ReportApproved), ButtonID(report.ID, storage.ReportDenied)}, buttonIDs(posted[0]))

	stored, err := h.store.GetSuspiciousReport(ctx, report.ID)
	require.NoError(t, err)
	require.Equal(t, report.MessageID, stored.MessageID)
	require.Equal(t, report.ThreadID, stored.ThreadID)

	resolved, err := h.svc.Resolve(ctx, report.ID, "M1", "confirmed by logs", storage.ReportDenied)
	require.NoError(t, err)
	require.True(t, resolved.Denied())

	stored, err = h.store.GetSuspiciousReportUnscoped(ctx, report.ID)
	require.NoError(t, err)
	require.Equal(t, storage.ReportDenied, stored.State)
	require.Equal(t, "M1", stored.ModeratorID)
	require.Equal(t, "confirmed by logs", stored.Reason)
	require.NotNil(t, stored.DeletedAt)

	require.Equal(t, []string{report.ThreadID}, h.notifier.closed)
	require.Equal(t, []string{"S1"}, h.notifier.dms)
	require.Len(t, h.notifier.sentTo(report.ThreadID), 1)

	require.Len(t, h.notifier.edits, 1)
	edited := h.notifier.edits[0].msg
	require.Empty(t, buttonIDs(edited))
	last := edited.Embed.Fields[len(edited.Embed.Fields)-1]
	require.Equal(t, "Denied", last.Name)
	require.Contains(t, last.Value, "confirmed by logs")
	require.Equal(t, 3, edited.Embed.Color)

	_, err = h.svc.Get(ctx, report.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestApproveSetsFlags(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	report, err := h.svc.Create(ctx, "U1", "S1", "alt account")
	require.NoError(t, err)
	_, err = h.svc.Resolve(ctx, report.ID, "M2", "banned", storage.ReportApproved)
	require.NoError(t, err)

	stored, err := h.store.GetSuspiciousReportUnscoped(ctx, report.ID)
	require.NoError(t, err)
	require.True(t, stored.Approved())
	require.False(t, stored.Denied())
	require.NotNil(t, stored.DeletedAt)
	require.Equal(t, "M2", stored.ModeratorID)
	require.Equal(t, "banned", stored.Reason)
}

func TestResolveTwice(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	report, err := h.svc.Create(ctx, "U1", "S1", "evidence")
	require.NoError(t, err)
	_, err = h.svc.Resolve(ctx, report.ID, "M1", "first", storage.ReportApproved)
	require.NoError(t, err)

	_, err = h.svc.Resolve(ctx, report.ID, "M2", "second", storage.ReportDenied)
	require.ErrorIs(t, err, ErrAlreadyResolved)

	stored, err := h.store.GetSuspiciousReportUnscoped(ctx, report.ID)
	require.NoError(t, err)
	require.Equal(t, storage.ReportApproved, stored.State)
	require.Equal(t, "M1", stored.ModeratorID)
	require.Equal(t, "first", stored.Reason)
}

func TestResolveTwiceBeforeSoftDelete(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	report, err := h.svc.Create(ctx, "U1", "S1", "evidence")
	require.NoError(t, err)
	require.NoError(t, h.store.ResolveSuspiciousReport(ctx, report.ID, storage.ReportApproved, "M1", "first"))

	_, err = h.svc.Resolve(ctx, report.ID, "M2", "second", storage.ReportDenied)
	require.ErrorIs(t, err, ErrAlreadyResolved)
}

func TestConcurrentResolveSingleWinner(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	report, err := h.svc.Create(ctx, "U1", "S1", "evidence")
	require.NoError(t, err)

	outcomes := []storage.ReportState{storage.ReportApproved, storage.ReportDenied}
	errs := make([]error, len(outcomes))
	var wg sync.WaitGroup
	for i, outcome := range outcomes {
		wg.Add(1)
		go func(i int, outcome storage.ReportState) {
			defer wg.Done()
			_, errs[i] = h.svc.Resolve(ctx, report.ID, fmt.Sprintf("M%d", i+1), "race", outcome)
		}(i, outcome)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.ErrorIs(t, err, ErrAlreadyResolved)
	}
	require.Equal(t, 1, succeeded)
	require.Len(t, h.notifier.dms, 1)
}

func TestCreateThreadFailureLeavesOrphan(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.notifier.threadErr = errors.New("missing permissions")

	_, err := h.svc.Create(ctx, "U1", "S1", "evidence")
	require.ErrorIs(t, err, ErrThreadUnavailable)

	orphans, err := h.svc.Orphans(ctx)
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	require.NotEmpty(t, orphans[0].MessageID)
	require.Empty(t, orphans[0].ThreadID)
	require.Equal(t, storage.ReportPending, orphans[0].State)
}

func TestCreateChannelFailureLeavesOrphan(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.notifier.sendErr[reportChannel] = errors.New("unknown channel")

	_, err := h.svc.Create(ctx, "U1", "S1", "evidence")
	require.ErrorIs(t, err, ErrChannelUnavailable)
	require.Empty(t, h.notifier.threads)

	orphans, err := h.svc.Orphans(ctx)
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	require.Empty(t, orphans[0].MessageID)
}

func TestCreateRequiresEvidence(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Create(context.Background(), "U1", "S1", "   ")
	require.ErrorIs(t, err, ErrEvidenceRequired)
	require.Empty(t, h.notifier.sent)
}

func TestResolveValidatesInput(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	report, err := h.svc.Create(ctx, "U1", "S1", "evidence")
	require.NoError(t, err)

	_, err = h.svc.Resolve(ctx, report.ID, "M1", "", storage.ReportApproved)
	require.ErrorIs(t, err, ErrReasonRequired)
	_, err = h.svc.Resolve(ctx, report.ID, "", "reason", storage.ReportApproved)
	require.ErrorIs(t, err, ErrModeratorRequired)
	_, err = h.svc.Resolve(ctx, report.ID, "  ", "reason", storage.ReportDenied)
	require.ErrorIs(t, err, ErrModeratorRequired)
	_, err = h.svc.Resolve(ctx, report.ID, "M1", "reason", storage.ReportPending)
	require.ErrorIs(t, err, ErrInvalidOutcome)
	_, err = h.svc.Resolve(ctx, 999, "M1", "reason", storage.ReportApproved)
	require.ErrorIs(t, err, ErrNotFound)

	stored, err := h.store.GetSuspiciousReport(ctx, report.ID)
	require.NoError(t, err)
	require.Equal(t, storage.ReportPending, stored.State)
	require.Empty(t, stored.ModeratorID)
	require.Empty(t, stored.Reason)
}

func TestNotificationFailuresDoNotBlockResolution(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	report, err := h.svc.Create(ctx, "U1", "S1", "evidence")
	require.NoError(t, err)

	h.notifier.editErr = errors.New("edit failed")
	h.notifier.dmErr = errors.New("dms closed")
	h.notifier.closeErr = errors.New("no permission")
	h.notifier.sendErr[report.ThreadID] = errors.New("thread gone")

	resolved, err := h.svc.Resolve(ctx, report.ID, "M1", "confirmed", storage.ReportDenied)
	require.NoError(t, err)
	require.NotNil(t, resolved.DeletedAt)

	stored, err := h.store.GetSuspiciousReportUnscoped(ctx, report.ID)
	require.NoError(t, err)
	require.True(t, stored.Denied())
	require.NotNil(t, stored.DeletedAt)
}

func TestUnauthorizedActorChangesNothing(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	report, err := h.svc.Create(ctx, "U1", "S1", "evidence")
	require.NoError(t, err)

	_, err = h.svc.BeginResolution(ctx, "S1", report.ID, storage.ReportApproved)
	require.ErrorIs(t, err, ErrUnauthorized)
	_, err = h.svc.ResolveAs(ctx, "S1", report.ID, "sneaky", storage.ReportApproved)
	require.ErrorIs(t, err, ErrUnauthorized)

	stored, err := h.store.GetSuspiciousReport(ctx, report.ID)
	require.NoError(t, err)
	require.Equal(t, storage.ReportPending, stored.State)
	require.Empty(t, stored.ModeratorID)
	require.Empty(t, stored.Reason)
	require.Empty(t, h.notifier.edits)
}

func TestBeginResolution(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	report, err := h.svc.Create(ctx, "U1", "S1", "evidence")
	require.NoError(t, err)

	got, err := h.svc.BeginResolution(ctx, "M1", report.ID, storage.ReportDenied)
	require.NoError(t, err)
	require.Equal(t, report.ID, got.ID)

	_, err = h.svc.BeginResolution(ctx, "M1", 999, storage.ReportDenied)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = h.svc.ResolveAs(ctx, "M1", report.ID, "ok", storage.ReportDenied)
	require.NoError(t, err)
	_, err = h.svc.BeginResolution(ctx, "M1", report.ID, storage.ReportApproved)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestParseButtonID(t *testing.T) {
	id, outcome, ok := ParseButtonID(ButtonID(12, storage.ReportDenied))
	require.True(t, ok)
	require.EqualValues(t, 12, id)
	require.Equal(t, storage.ReportDenied, outcome)

	for _, bad := range []string{
		"suspicious_user.12",
		"suspicious_user.x.approved",
		"suspicious_user.12.pending",
		"other.12.approved",
		"suspicious_user.-1.denied",
	} {
		_, _, ok := ParseButtonID(bad)
		require.False(t, ok, bad)
	}
}

func TestRenderResolvedHasNoButtons(t *testing.T) {
	h := newHarness(t)
	msg := h.svc.Render(storage.SuspiciousReport{
		ID: 4, UserID: "U1", SubmitterID: "S1", Evidence: "e",
		State: storage.ReportApproved, ModeratorID: "M1", Reason: "done",
	})
	require.Empty(t, buttonIDs(msg))
	require.Equal(t, 2, msg.Embed.Color)
	require.Equal(t, "Approved by <@M1> (M1) for reason: done", msg.Embed.Fields[3].Value)
	require.Equal(t, "<@U1> (U1)", msg.Embed.Fields[0].Value)
}

func TestClockDrivesTimestamps(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	fixed := time.Unix(1700000000, 0)
	h.svc.WithClock(func() time.Time { return fixed })

	report, err := h.svc.Create(ctx, "U1", "S1", "evidence")
	require.NoError(t, err)
	resolved, err := h.svc.Resolve(ctx, report.ID, "M1", "ok", storage.ReportApproved)
	require.NoError(t, err)
	require.Equal(t, fixed, *resolved.DeletedAt)

	stored, err := h.store.GetSuspiciousReportUnscoped(ctx, report.ID)
	require.NoError(t, err)
	require.Equal(t, fixed.Unix(), stored.CreatedAt.Unix())
	require.Equal(t, fixed.Unix(), stored.DeletedAt.Unix())
}
