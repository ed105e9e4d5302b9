package giveaway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/open-builders/giveaway-bot/internal/common/errors"
	dg "github.com/open-builders/giveaway-bot/internal/domain/giveaway"
	ds "github.com/open-builders/giveaway-bot/internal/domain/subscription"
	"github.com/open-builders/giveaway-bot/internal/repository/memory"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeAnnouncer struct {
	mu          sync.Mutex
	seq         int
	started     []string
	updated     int
	resolved    []*dg.Giveaway
	cancelled   []*dg.Giveaway
	rerolled    []*dg.Giveaway
	failResolve int
	failStart   bool

	// when set, Resolved signals entered and blocks until hold is closed
	entered chan struct{}
	hold    chan struct{}
}

func (a *fakeAnnouncer) Start(_ context.Context, g *dg.Giveaway) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failStart {
		return "", errors.New("discord unavailable")
	}
	a.seq++
	id := fmt.Sprintf("msg-%d", a.seq)
	a.started = append(a.started, id)
	return id, nil
}

func (a *fakeAnnouncer) Updated(context.Context, *dg.Giveaway) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.updated++
	return nil
}

func (a *fakeAnnouncer) Resolved(_ context.Context, g *dg.Giveaway) error {
	if a.hold != nil {
		a.entered <- struct{}{}
		<-a.hold
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failResolve > 0 {
		a.failResolve--
		return errors.New("rate limited")
	}
	a.resolved = append(a.resolved, g)
	return nil
}

func (a *fakeAnnouncer) Cancelled(_ context.Context, g *dg.Giveaway) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cancelled = append(a.cancelled, g)
	return nil
}

func (a *fakeAnnouncer) Rerolled(_ context.Context, g *dg.Giveaway) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rerolled = append(a.rerolled, g)
	return nil
}

func (a *fakeAnnouncer) resolvedCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.resolved)
}

type lockedGate struct{ locked map[ds.Feature]bool }

func (g lockedGate) CheckFeatureAccess(_ string, f ds.Feature) error {
	if g.locked[f] {
		return apperrors.New(apperrors.ErrCodeFeatureLocked, "pro only")
	}
	return nil
}

var admin = adminOf("guild")

func adminOf(guildID string) Actor {
	return Actor{UserID: "admin", GuildID: guildID, CanManage: true}
}

type fixture struct {
	svc     *Service
	exp     *ExpirationService
	reg     *memory.Registry
	clock   *fakeClock
	ann     *fakeAnnouncer
	changes atomic.Int32
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		reg:   memory.NewRegistry(),
		clock: newFakeClock(),
		ann:   &fakeAnnouncer{},
	}
	base := []Option{
		WithClock(f.clock.Now),
		WithLogger(zerolog.Nop()),
		WithChangeHook(func() { f.changes.Add(1) }),
	}
	f.svc = NewService(f.reg, f.ann, append(base, opts...)...)
	f.exp = NewExpirationService(f.svc, time.Second, 2)
	return f
}

func (f *fixture) create(t *testing.T, in CreateInput) *dg.Giveaway {
	t.Helper()
	if in.Prize == "" {
		in.Prize = "Nitro"
	}
	if in.GuildID == "" {
		in.GuildID = "guild"
	}
	g, err := f.svc.Create(context.Background(), admin, in)
	require.NoError(t, err)
	return g
}

func entrant(id string, roles ...string) dg.Entrant {
	return dg.Entrant{UserID: id, RoleIDs: roles}
}

func TestCreateValidation(t *testing.T) {
	tests := []struct {
		name  string
		actor Actor
		in    CreateInput
		code  apperrors.ErrorCode
	}{
		{"no permission", Actor{UserID: "u"}, CreateInput{Prize: "p", Duration: "1m"}, apperrors.ErrCodeForbidden},
		{"empty prize", admin, CreateInput{Prize: "  ", Duration: "1m"}, apperrors.ErrCodeValidation},
		{"bad duration", admin, CreateInput{Prize: "p", Duration: "soon"}, apperrors.ErrCodeParseFailure},
		{"zero duration", admin, CreateInput{Prize: "p", Duration: "0s"}, apperrors.ErrCodeValidation},
		{"negative winners", admin, CreateInput{Prize: "p", Duration: "1m", WinnerCount: -1}, apperrors.ErrCodeValidation},
		{"negative age", admin, CreateInput{Prize: "p", Duration: "1m", Requirements: dg.Requirements{MinAccountAgeDays: -1}}, apperrors.ErrCodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.Create(context.Background(), tt.actor, tt.in)
			require.Error(t, err)
			assert.Equal(t, tt.code, apperrors.CodeOf(err))
			assert.Empty(t, f.ann.started)
			assert.Empty(t, f.reg.List())
		})
	}
}

func TestCreateStoresUnderMessageID(t *testing.T) {
	f := newFixture(t)
	g := f.create(t, CreateInput{ChannelID: "chan", Duration: "1h", DonorName: " Alice "})

	assert.Equal(t, "msg-1", g.ID)
	assert.Equal(t, 1, g.WinnerCount)
	assert.Equal(t, "Alice", g.DonorName)
	assert.Equal(t, "admin", g.HostID)
	assert.Equal(t, f.clock.Now().Add(time.Hour), g.EndTime)
	assert.Equal(t, dg.GiveawayStatusActive, g.Status)
	assert.EqualValues(t, 1, f.changes.Load())

	stored, err := f.svc.Get(context.Background(), "msg-1")
	require.NoError(t, err)
	assert.Equal(t, g, stored)
}

func TestCreateAnnounceFailure(t *testing.T) {
	f := newFixture(t)
	f.ann.failStart = true

	_, err := f.svc.Create(context.Background(), admin, CreateInput{Prize: "p", Duration: "1m"})
	assert.Equal(t, apperrors.ErrCodeExternalAPI, apperrors.CodeOf(err))
	assert.Empty(t, f.reg.List())
}

func TestCreateFeatureGate(t *testing.T) {
	gate := lockedGate{locked: map[ds.Feature]bool{
		ds.FeatureRoleRequirement: true,
		ds.FeatureServerTime:      true,
	}}
	f := newFixture(t, WithFeatureGate(gate))

	_, err := f.svc.Create(context.Background(), admin, CreateInput{
		Prize: "p", Duration: "1m", Requirements: dg.Requirements{RequiredRoleID: "r"},
	})
	assert.Equal(t, apperrors.ErrCodeFeatureLocked, apperrors.CodeOf(err))

	_, err = f.svc.Create(context.Background(), admin, CreateInput{
		Prize: "p", Duration: "1m", Requirements: dg.Requirements{MinMembershipDays: 3},
	})
	assert.Equal(t, apperrors.ErrCodeFeatureLocked, apperrors.CodeOf(err))

	// account age is unlocked for this gate
	_, err = f.svc.Create(context.Background(), admin, CreateInput{
		Prize: "p", Duration: "1m", Requirements: dg.Requirements{MinAccountAgeDays: 3},
	})
	assert.NoError(t, err)
	assert.Len(t, f.ann.started, 1)
}

func TestResolveDrawsOneOfTwoJoiners(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.create(t, CreateInput{Duration: "10s", WinnerCount: 1})

	_, err := f.svc.Join(ctx, g.ID, entrant("alice"))
	require.NoError(t, err)
	_, err = f.svc.Join(ctx, g.ID, entrant("bob"))
	require.NoError(t, err)
	assert.Equal(t, 2, f.ann.updated)

	assert.Equal(t, 0, f.exp.ProcessExpired(ctx), "nothing is due before the end time")

	f.clock.Advance(11 * time.Second)
	assert.Equal(t, 1, f.exp.ProcessExpired(ctx))

	got, err := f.svc.Get(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, dg.GiveawayStatusEnded, got.Status)
	require.Len(t, got.WinnerIDs, 1)
	assert.Contains(t, []string{"alice", "bob"}, got.WinnerIDs[0])
	assert.True(t, got.ResultAnnounced)
	assert.Equal(t, f.clock.Now(), got.EndedAt)
	require.Equal(t, 1, f.ann.resolvedCount())
}

func TestResolveWithoutParticipants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.create(t, CreateInput{Duration: "1m"})

	f.clock.Advance(time.Minute)
	assert.Equal(t, 1, f.exp.ProcessExpired(ctx))

	got, err := f.svc.Get(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, dg.GiveawayStatusEnded, got.Status)
	assert.Empty(t, got.WinnerIDs)
	require.Len(t, f.ann.resolved, 1)
	assert.Empty(t, f.ann.resolved[0].WinnerIDs)
}

func TestJoinRequiresRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.create(t, CreateInput{Duration: "1h", Requirements: dg.Requirements{RequiredRoleID: "vip"}})

	_, err := f.svc.Join(ctx, g.ID, entrant("carol"))
	require.ErrorIs(t, err, ErrIneligible)
	assert.Equal(t, "role", apperrors.IneligibleReason(err))

	_, err = f.svc.Join(ctx, g.ID, entrant("carol", "vip"))
	require.NoError(t, err)

	got, _ := f.svc.Get(ctx, g.ID)
	assert.Equal(t, []string{"carol"}, got.Participants)
}

func TestCancelBeforeEndDrawsNoWinners(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.create(t, CreateInput{Duration: "1m"})
	_, err := f.svc.Join(ctx, g.ID, entrant("alice"))
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(ctx, g.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, dg.GiveawayStatusCancelled, cancelled.Status)
	assert.True(t, cancelled.ResultAnnounced)

	f.clock.Advance(2 * time.Minute)
	assert.Equal(t, 0, f.exp.ProcessExpired(ctx))
	assert.Equal(t, 0, f.exp.ProcessExpired(ctx))

	got, _ := f.svc.Get(ctx, g.ID)
	assert.Equal(t, dg.GiveawayStatusCancelled, got.Status)
	assert.Empty(t, got.WinnerIDs)
	assert.Equal(t, 0, f.ann.resolvedCount())
	assert.Len(t, f.ann.cancelled, 1)

	_, err = f.svc.Cancel(ctx, g.ID, admin)
	assert.ErrorIs(t, err, ErrNotActive)
}

func TestRerollRedrawsFromAllParticipants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.create(t, CreateInput{Duration: "1m", WinnerCount: 2})
	users := []string{"u1", "u2", "u3", "u4", "u5"}
	for _, u := range users {
		_, err := f.svc.Join(ctx, g.ID, entrant(u))
		require.NoError(t, err)
	}

	_, err := f.svc.Reroll(ctx, g.ID, admin)
	assert.ErrorIs(t, err, ErrNotEnded)

	f.clock.Advance(time.Minute)
	require.Equal(t, 1, f.exp.ProcessExpired(ctx))

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		got, err := f.svc.Reroll(ctx, g.ID, admin)
		require.NoError(t, err)
		require.Len(t, got.WinnerIDs, 2)
		assert.NotEqual(t, got.WinnerIDs[0], got.WinnerIDs[1])
		assert.Subset(t, users, got.WinnerIDs)
		assert.Equal(t, i+1, got.RerollCount)
		for _, w := range got.WinnerIDs {
			seen[w] = true
		}
	}
	assert.Len(t, seen, len(users), "every participant should be drawable on reroll")
	assert.Len(t, f.ann.rerolled, 50)
}

func TestRerollUsesPicker(t *testing.T) {
	var calls [][]string
	picker := func(p []string, k int) ([]string, error) {
		calls = append(calls, append([]string(nil), p...))
		return p[:k], nil
	}
	f := newFixture(t, WithPicker(picker))
	ctx := context.Background()
	g := f.create(t, CreateInput{Duration: "1m"})
	_, _ = f.svc.Join(ctx, g.ID, entrant("a"))
	_, _ = f.svc.Join(ctx, g.ID, entrant("b"))

	ended, err := f.svc.End(ctx, g.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ended.WinnerIDs)

	rerolled, err := f.svc.Reroll(ctx, g.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, rerolled.WinnerIDs, "previous winners are not excluded")
	assert.Equal(t, [][]string{{"a", "b"}, {"a", "b"}}, calls)
}

func TestJoinIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.create(t, CreateInput{Duration: "1m"})

	_, err := f.svc.Join(ctx, g.ID, entrant("alice"))
	require.NoError(t, err)
	_, err = f.svc.Join(ctx, g.ID, entrant("alice"))
	assert.ErrorIs(t, err, ErrAlreadyJoined)

	got, _ := f.svc.Get(ctx, g.ID)
	assert.Equal(t, []string{"alice"}, got.Participants)
}

func TestJoinOutcomes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.create(t, CreateInput{Duration: "1m"})

	_, err := f.svc.Join(ctx, "missing", entrant("alice"))
	assert.ErrorIs(t, err, ErrNotFound)

	// past the end time but not yet resolved
	f.clock.Advance(time.Minute)
	_, err = f.svc.Join(ctx, g.ID, entrant("alice"))
	assert.ErrorIs(t, err, ErrNotActive)

	f.exp.ProcessExpired(ctx)
	_, err = f.svc.Join(ctx, g.ID, entrant("alice"))
	assert.ErrorIs(t, err, ErrNotActive)
}

func TestJoinEligibilityOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := f.clock.Now()
	g := f.create(t, CreateInput{Duration: "1h", Requirements: dg.Requirements{
		RequiredRoleID:    "vip",
		MinAccountAgeDays: 30,
		MinMembershipDays: 7,
	}})

	tests := []struct {
		name   string
		e      dg.Entrant
		reason string
	}{
		{"role first", dg.Entrant{UserID: "a", AccountCreatedAt: now, JoinedGuildAt: now}, "role"},
		{"account age", dg.Entrant{UserID: "b", RoleIDs: []string{"vip"}, AccountCreatedAt: now.AddDate(0, 0, -5), JoinedGuildAt: now}, "account_age"},
		{"membership", dg.Entrant{UserID: "c", RoleIDs: []string{"vip"}, AccountCreatedAt: now.AddDate(-1, 0, 0), JoinedGuildAt: now.AddDate(0, 0, -1)}, "membership_age"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Join(ctx, g.ID, tt.e)
			require.ErrorIs(t, err, ErrIneligible)
			assert.Equal(t, tt.reason, apperrors.IneligibleReason(err))
		})
	}

	_, err := f.svc.Join(ctx, g.ID, dg.Entrant{
		UserID:           "d",
		RoleIDs:          []string{"vip"},
		AccountCreatedAt: now.AddDate(-1, 0, 0),
		JoinedGuildAt:    now.AddDate(0, -1, 0),
	})
	assert.NoError(t, err)
}

func TestJoinCooldownAcrossGiveaways(t *testing.T) {
	f := newFixture(t, WithJoinCooldown(10*time.Second))
	ctx := context.Background()
	g1 := f.create(t, CreateInput{Duration: "1h"})
	g2 := f.create(t, CreateInput{Duration: "1h"})

	_, err := f.svc.Join(ctx, g1.ID, entrant("alice"))
	require.NoError(t, err)

	// re-clicking the same giveaway still answers deterministically
	_, err = f.svc.Join(ctx, g1.ID, entrant("alice"))
	assert.ErrorIs(t, err, ErrAlreadyJoined)

	_, err = f.svc.Join(ctx, g2.ID, entrant("alice"))
	require.ErrorIs(t, err, ErrCooldown)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, 10, appErr.Details["retry_after"])

	_, err = f.svc.Join(ctx, g2.ID, entrant("bob"))
	assert.NoError(t, err, "cooldown is per user")

	f.clock.Advance(10 * time.Second)
	_, err = f.svc.Join(ctx, g2.ID, entrant("alice"))
	assert.NoError(t, err)
}

func TestAdminActionsRequirePermission(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.create(t, CreateInput{Duration: "1m"})
	member := Actor{UserID: "member"}

	_, err := f.svc.End(ctx, g.ID, member)
	assert.ErrorIs(t, err, ErrPermissionDenied)
	_, err = f.svc.Cancel(ctx, g.ID, member)
	assert.ErrorIs(t, err, ErrPermissionDenied)
	_, err = f.svc.Reroll(ctx, g.ID, member)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	// denied before any lookup
	_, err = f.svc.Cancel(ctx, "missing", member)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	got, _ := f.svc.Get(ctx, g.ID)
	assert.Equal(t, dg.GiveawayStatusActive, got.Status)
}

func TestEndNowIsResolvedOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.create(t, CreateInput{Duration: "1h"})
	_, _ = f.svc.Join(ctx, g.ID, entrant("alice"))

	ended, err := f.svc.End(ctx, g.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, dg.GiveawayStatusEnded, ended.Status)
	assert.Equal(t, []string{"alice"}, ended.WinnerIDs)

	_, err = f.svc.End(ctx, g.ID, admin)
	assert.ErrorIs(t, err, ErrNotActive)

	f.clock.Advance(2 * time.Hour)
	assert.Equal(t, 0, f.exp.ProcessExpired(ctx))
	assert.Equal(t, 1, f.ann.resolvedCount())
}

func TestWinnersInvariant(t *testing.T) {
	for _, tc := range []struct{ participants, winners int }{{0, 1}, {1, 3}, {3, 3}, {10, 4}} {
		t.Run(fmt.Sprintf("%d_of_%d", tc.winners, tc.participants), func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			g := f.create(t, CreateInput{Duration: "1m", WinnerCount: tc.winners})
			var users []string
			for i := 0; i < tc.participants; i++ {
				u := fmt.Sprintf("u%d", i)
				users = append(users, u)
				_, err := f.svc.Join(ctx, g.ID, entrant(u))
				require.NoError(t, err)
			}

			f.clock.Advance(time.Minute)
			f.exp.ProcessExpired(ctx)

			got, _ := f.svc.Get(ctx, g.ID)
			want := tc.winners
			if tc.participants < want {
				want = tc.participants
			}
			assert.Len(t, got.WinnerIDs, want)
			if want > 0 {
				assert.Subset(t, users, got.WinnerIDs)
			}
		})
	}
}

func TestAnnouncementRetry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.create(t, CreateInput{Duration: "1m"})
	f.ann.failResolve = 1

	f.clock.Advance(time.Minute)
	require.Equal(t, 1, f.exp.ProcessExpired(ctx))

	got, _ := f.svc.Get(ctx, g.ID)
	assert.Equal(t, dg.GiveawayStatusEnded, got.Status, "state transition survives a failed announcement")
	assert.False(t, got.ResultAnnounced)
	assert.Equal(t, 1, got.AnnounceAttempts)

	assert.Equal(t, 0, f.exp.ProcessExpired(ctx))
	got, _ = f.svc.Get(ctx, g.ID)
	assert.True(t, got.ResultAnnounced)
	assert.Equal(t, 1, f.ann.resolvedCount())
}

func TestAnnouncementRetryGivesUp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.create(t, CreateInput{Duration: "1m"})
	f.ann.failResolve = 100

	f.clock.Advance(time.Minute)
	for i := 0; i < 10; i++ {
		f.exp.ProcessExpired(ctx)
	}

	got, _ := f.svc.Get(ctx, g.ID)
	assert.False(t, got.ResultAnnounced)
	// one initial attempt plus maxRetries (2) retries
	assert.Equal(t, 3, got.AnnounceAttempts)
}

func TestCancelAfterEndTimeLosesToTick(t *testing.T) {
	for i := 0; i < 20; i++ {
		f := newFixture(t)
		ctx := context.Background()
		g := f.create(t, CreateInput{Duration: "1m"})
		_, _ = f.svc.Join(ctx, g.ID, entrant("alice"))
		f.clock.Advance(time.Minute)

		var wg sync.WaitGroup
		var cancelErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, cancelErr = f.svc.Cancel(ctx, g.ID, admin)
		}()
		go func() {
			defer wg.Done()
			f.exp.ProcessExpired(ctx)
		}()
		wg.Wait()

		got, _ := f.svc.Get(ctx, g.ID)
		assert.ErrorIs(t, cancelErr, ErrNotActive)
		assert.Equal(t, dg.GiveawayStatusEnded, got.Status)
		assert.Equal(t, []string{"alice"}, got.WinnerIDs)
		assert.Empty(t, f.ann.cancelled)
		assert.Equal(t, 1, f.ann.resolvedCount())
	}
}

func TestCancelRejectsExpiredGiveaway(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.create(t, CreateInput{Duration: "10s"})
	_, err := f.svc.Join(ctx, g.ID, entrant("alice"))
	require.NoError(t, err)

	f.clock.Advance(11 * time.Second)
	_, err = f.svc.Cancel(ctx, g.ID, admin)
	require.ErrorIs(t, err, ErrNotActive)

	got, _ := f.svc.Get(ctx, g.ID)
	assert.Equal(t, dg.GiveawayStatusActive, got.Status, "left for the tick to resolve")
	assert.Empty(t, f.ann.cancelled)

	assert.Equal(t, 1, f.exp.ProcessExpired(ctx))
	got, _ = f.svc.Get(ctx, g.ID)
	assert.Equal(t, dg.GiveawayStatusEnded, got.Status)
	assert.Equal(t, []string{"alice"}, got.WinnerIDs)
	assert.Equal(t, 1, f.ann.resolvedCount())
}

func TestAdminActionsAreGuildScoped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.create(t, CreateInput{Duration: "1m", GuildID: "g1"})
	_, err := f.svc.Join(ctx, g.ID, entrant("alice"))
	require.NoError(t, err)
	outsider := adminOf("g2")

	_, err = f.svc.End(ctx, g.ID, outsider)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.Cancel(ctx, g.ID, outsider)
	assert.ErrorIs(t, err, ErrNotFound)

	got, _ := f.svc.Get(ctx, g.ID)
	assert.Equal(t, dg.GiveawayStatusActive, got.Status)
	assert.Empty(t, f.ann.cancelled)
	assert.Equal(t, 0, f.ann.resolvedCount())

	_, err = f.svc.End(ctx, g.ID, adminOf("g1"))
	require.NoError(t, err)

	_, err = f.svc.Reroll(ctx, g.ID, outsider)
	assert.ErrorIs(t, err, ErrNotFound)
	got, _ = f.svc.Get(ctx, g.ID)
	assert.Equal(t, 0, got.RerollCount)
	assert.Empty(t, f.ann.rerolled)

	_, err = f.svc.Reroll(ctx, g.ID, adminOf("g1"))
	require.NoError(t, err)
}

func TestTickSkipsAnnouncementInFlight(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.create(t, CreateInput{Duration: "1h"})
	_, err := f.svc.Join(ctx, g.ID, entrant("alice"))
	require.NoError(t, err)

	f.ann.entered = make(chan struct{}, 2)
	f.ann.hold = make(chan struct{})

	endDone := make(chan struct{})
	go func() {
		defer close(endDone)
		_, endErr := f.svc.End(ctx, g.ID, admin)
		assert.NoError(t, endErr)
	}()
	<-f.ann.entered

	// ended and unannounced, so the tick sees it as pending
	got, _ := f.svc.Get(ctx, g.ID)
	require.Equal(t, dg.GiveawayStatusEnded, got.Status)
	require.False(t, got.ResultAnnounced)

	tickDone := make(chan struct{})
	go func() {
		defer close(tickDone)
		f.exp.ProcessExpired(ctx)
	}()
	select {
	case <-tickDone:
	case <-time.After(time.Second):
		t.Error("tick blocked on a second announcement")
	}
	close(f.ann.hold)
	<-endDone
	<-tickDone

	assert.Equal(t, 1, f.ann.resolvedCount())
	assert.Len(t, f.ann.entered, 0, "tick must not start a second announcement")
	got, _ = f.svc.Get(ctx, g.ID)
	assert.True(t, got.ResultAnnounced)
}

func TestListing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, CreateInput{Duration: "2h", GuildID: "g1"})
	b := f.create(t, CreateInput{Duration: "1h", GuildID: "g1"})
	c := f.create(t, CreateInput{Duration: "1h", GuildID: "g2"})
	_, _ = f.svc.Join(ctx, a.ID, entrant("alice"))
	_, _ = f.svc.Join(ctx, c.ID, entrant("alice"))

	active := f.svc.ListActive(ctx, "g1")
	require.Len(t, active, 2)
	assert.Equal(t, b.ID, active[0].ID)
	assert.Equal(t, a.ID, active[1].ID)

	entered := f.svc.ListEntered(ctx, "g1", "alice")
	require.Len(t, entered, 1)
	assert.Equal(t, a.ID, entered[0].ID)

	_, err := f.svc.Cancel(ctx, a.ID, adminOf("g1"))
	require.NoError(t, err)
	assert.Len(t, f.svc.ListActive(ctx, "g1"), 1)
	assert.Len(t, f.svc.ListActive(ctx, ""), 2)
}

func TestExpirationServiceStartStop(t *testing.T) {
	f := newFixture(t)
	g := f.create(t, CreateInput{Duration: "1s"})
	f.clock.Advance(time.Second)

	exp := NewExpirationService(f.svc, 10*time.Millisecond, 1)
	exp.Start(context.Background())
	exp.Start(context.Background()) // no-op

	require.Eventually(t, func() bool {
		got, err := f.svc.Get(context.Background(), g.ID)
		return err == nil && got.Status == dg.GiveawayStatusEnded
	}, time.Second, 5*time.Millisecond)

	exp.Stop()
	exp.Stop()
}
