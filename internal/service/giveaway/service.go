package giveaway

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	apperrors "github.com/open-builders/giveaway-bot/internal/common/errors"
	"github.com/open-builders/giveaway-bot/internal/common/logger"
	dg "github.com/open-builders/giveaway-bot/internal/domain/giveaway"
	ds "github.com/open-builders/giveaway-bot/internal/domain/subscription"
	"github.com/open-builders/giveaway-bot/internal/metrics"
	"github.com/open-builders/giveaway-bot/internal/repository/memory"
	"github.com/open-builders/giveaway-bot/internal/utils/duration"
	"github.com/open-builders/giveaway-bot/internal/utils/random"
)

// Announcer renders giveaway state on the chat platform. It is only called
// after the registry change it reports has been committed.
type Announcer interface {
	// Start posts the announcement and returns its message ID, which
	// becomes the giveaway ID.
	Start(ctx context.Context, g *dg.Giveaway) (string, error)
	Updated(ctx context.Context, g *dg.Giveaway) error
	Resolved(ctx context.Context, g *dg.Giveaway) error
	Cancelled(ctx context.Context, g *dg.Giveaway) error
	Rerolled(ctx context.Context, g *dg.Giveaway) error
}

// FeatureGate decides whether a guild may use a paid feature.
type FeatureGate interface {
	CheckFeatureAccess(guildID string, feature ds.Feature) error
}

// Picker draws k winners from participants.
type Picker func(participants []string, k int) ([]string, error)

// Actor is the user behind an administrative action. End, Cancel and
// Reroll only touch giveaways of the actor's guild.
type Actor struct {
	UserID    string
	GuildID   string
	CanManage bool
}

// CreateInput carries the options of the start command.
type CreateInput struct {
	GuildID      string
	ChannelID    string
	Prize        string
	Duration     string
	WinnerCount  int
	DonorName    string
	Requirements dg.Requirements
}

// Service contains business rules for giveaways.
type Service struct {
	registry  *memory.Registry
	announcer Announcer
	gate      FeatureGate
	cooldown  *cooldown
	pick      Picker
	now       func() time.Time
	onChange  func()
	logger    zerolog.Logger

	// ids with an announcement in flight
	announcingMu sync.Mutex
	announcing   map[string]struct{}
}

type Option func(*Service)

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func WithPicker(p Picker) Option { return func(s *Service) { s.pick = p } }

func WithFeatureGate(g FeatureGate) Option { return func(s *Service) { s.gate = g } }

func WithJoinCooldown(d time.Duration) Option {
	return func(s *Service) { s.cooldown = newCooldown(d) }
}

// WithChangeHook registers fn to run after every committed mutation.
func WithChangeHook(fn func()) Option { return func(s *Service) { s.onChange = fn } }

func WithLogger(l zerolog.Logger) Option { return func(s *Service) { s.logger = l } }

func NewService(reg *memory.Registry, announcer Announcer, opts ...Option) *Service {
	s := &Service{
		registry:  reg,
		announcer: announcer,
		pick:      random.Sample[string],
		now:       time.Now,
		onChange:   func() {},
		logger:     logger.Component("giveaway"),
		announcing: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates the command options, posts the announcement and stores
// the record under the announcement's message ID.
func (s *Service) Create(ctx context.Context, actor Actor, in CreateInput) (*dg.Giveaway, error) {
	if !actor.CanManage {
		return nil, ErrPermissionDenied
	}

	prize := strings.TrimSpace(in.Prize)
	if prize == "" {
		return nil, apperrors.NewValidationError("prize", "must not be empty")
	}
	d, err := duration.ParseDuration(in.Duration)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeParseFailure, ErrParseDuration.Message)
	}
	if d < time.Second {
		return nil, apperrors.NewValidationError("duration", "must be at least 1s")
	}
	winners := in.WinnerCount
	if winners == 0 {
		winners = 1
	}
	if winners < 0 {
		return nil, apperrors.NewValidationError("winners", "must be at least 1")
	}
	req := in.Requirements
	if req.MinAccountAgeDays < 0 {
		return nil, apperrors.NewValidationError("min_account_age", "must not be negative")
	}
	if req.MinMembershipDays < 0 {
		return nil, apperrors.NewValidationError("min_server_days", "must not be negative")
	}
	if err := s.checkFeatures(in.GuildID, req); err != nil {
		return nil, err
	}

	now := s.now()
	g := &dg.Giveaway{
		GuildID:      in.GuildID,
		ChannelID:    in.ChannelID,
		HostID:       actor.UserID,
		Prize:        prize,
		DonorName:    strings.TrimSpace(in.DonorName),
		WinnerCount:  winners,
		StartedAt:    now,
		EndTime:      now.Add(d),
		Status:       dg.GiveawayStatusActive,
		Requirements: req,
		Participants: []string{},
	}

	id, err := s.announcer.Start(ctx, g.Clone())
	if err != nil {
		metrics.RecordAnnounceFailure("start")
		return nil, apperrors.NewExternalAPIError("announce giveaway", err)
	}
	g.ID = id

	if err := s.registry.Create(g); err != nil {
		return nil, err
	}

	metrics.RecordCreated()
	s.committed()
	s.logger.Info().
		Str("giveaway_id", g.ID).
		Str("guild_id", g.GuildID).
		Str("host_id", g.HostID).
		Time("end_time", g.EndTime).
		Int("winners", g.WinnerCount).
		Msg("Giveaway started")
	return g.Clone(), nil
}

func (s *Service) checkFeatures(guildID string, req dg.Requirements) error {
	if s.gate == nil {
		return nil
	}
	if req.RequiredRoleID != "" {
		if err := s.gate.CheckFeatureAccess(guildID, ds.FeatureRoleRequirement); err != nil {
			return err
		}
	}
	if req.MinAccountAgeDays > 0 {
		if err := s.gate.CheckFeatureAccess(guildID, ds.FeatureAccountAge); err != nil {
			return err
		}
	}
	if req.MinMembershipDays > 0 {
		if err := s.gate.CheckFeatureAccess(guildID, ds.FeatureServerTime); err != nil {
			return err
		}
	}
	return nil
}

// Join enters a user. Outcomes are checked in order: not found, not active,
// already joined, cooldown, ineligible. All checks and the append happen in
// one registry mutation so a concurrent cancel or end cannot interleave.
func (s *Service) Join(ctx context.Context, id string, e dg.Entrant) (*dg.Giveaway, error) {
	now := s.now()
	result := "joined"

	g, err := s.registry.Update(id, func(g *dg.Giveaway) error {
		if !g.IsActive() || g.Expired(now) {
			result = "not_active"
			return ErrNotActive
		}
		if g.HasParticipant(e.UserID) {
			result = "already_joined"
			return ErrAlreadyJoined
		}
		if ok, wait := s.cooldown.allow(e.UserID, now); !ok {
			result = "cooldown"
			return apperrors.Derive(ErrCooldown).
				WithDetail("retry_after", int(math.Ceil(wait.Seconds())))
		}
		if reason := g.Requirements.Check(e, now); reason != "" {
			result = "ineligible"
			return apperrors.Derive(ErrIneligible).WithDetail("reason", string(reason))
		}
		g.AddParticipant(e.UserID)
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			result = "not_found"
		}
		metrics.RecordJoin(result)
		return nil, err
	}

	metrics.RecordJoin(result)
	s.committed()

	if err := s.announcer.Updated(ctx, g.Clone()); err != nil {
		metrics.RecordAnnounceFailure("update")
		s.logger.Warn().Err(err).
			Str("giveaway_id", g.ID).
			Str("user_id", e.UserID).
			Msg("Failed to refresh giveaway message")
	}
	return g, nil
}

// End resolves an active giveaway now instead of waiting for its end time.
func (s *Service) End(ctx context.Context, id string, actor Actor) (*dg.Giveaway, error) {
	if !actor.CanManage {
		return nil, ErrPermissionDenied
	}
	g, err := s.resolve(id, s.now(), true, &actor)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("giveaway_id", id).Str("user_id", actor.UserID).Msg("Giveaway ended early")
	return s.afterResolve(ctx, g), nil
}

// Cancel moves an active giveaway to Cancelled without drawing winners.
func (s *Service) Cancel(ctx context.Context, id string, actor Actor) (*dg.Giveaway, error) {
	if !actor.CanManage {
		return nil, ErrPermissionDenied
	}
	now := s.now()
	g, err := s.registry.Update(id, func(g *dg.Giveaway) error {
		if g.GuildID != actor.GuildID {
			return ErrNotFound
		}
		// past its end time the record belongs to the expiration tick
		if !g.IsActive() || g.Expired(now) {
			return ErrNotActive
		}
		g.Status = dg.GiveawayStatusCancelled
		g.EndedAt = now
		g.WinnerIDs = nil
		g.ResultAnnounced = false
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordCancelled()
	s.committed()
	s.logger.Info().Str("giveaway_id", id).Str("user_id", actor.UserID).Msg("Giveaway cancelled")
	return s.announce(ctx, g), nil
}

// Reroll draws a fresh set of winners for an ended giveaway. Previous
// winners are not excluded.
func (s *Service) Reroll(ctx context.Context, id string, actor Actor) (*dg.Giveaway, error) {
	if !actor.CanManage {
		return nil, ErrPermissionDenied
	}
	g, err := s.registry.Update(id, func(g *dg.Giveaway) error {
		if g.GuildID != actor.GuildID {
			return ErrNotFound
		}
		if g.Status != dg.GiveawayStatusEnded {
			return ErrNotEnded
		}
		winners, err := s.pick(g.Participants, g.WinnerCount)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeInternal, "select winners")
		}
		g.WinnerIDs = winners
		g.RerollCount++
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordReroll()
	s.committed()

	if err := s.announcer.Rerolled(ctx, g.Clone()); err != nil {
		metrics.RecordAnnounceFailure("reroll")
		s.logger.Warn().Err(err).Str("giveaway_id", id).Msg("Failed to announce reroll")
	}
	s.logger.Info().
		Str("giveaway_id", id).
		Str("user_id", actor.UserID).
		Strs("winners", g.WinnerIDs).
		Msg("Giveaway rerolled")
	return g, nil
}

// Get fetches a giveaway by id.
func (s *Service) Get(_ context.Context, id string) (*dg.Giveaway, error) {
	return s.registry.Get(id)
}

// ListActive returns the guild's running giveaways, soonest first.
func (s *Service) ListActive(_ context.Context, guildID string) []*dg.Giveaway {
	return s.registry.Filter(func(g *dg.Giveaway) bool {
		return g.IsActive() && (guildID == "" || g.GuildID == guildID)
	})
}

// ListEntered returns the guild's running giveaways the user has joined.
func (s *Service) ListEntered(_ context.Context, guildID, userID string) []*dg.Giveaway {
	return s.registry.Filter(func(g *dg.Giveaway) bool {
		return g.IsActive() && g.GuildID == guildID && g.HasParticipant(userID)
	})
}

var errNotDue = apperrors.New(apperrors.ErrCodeConflict, "giveaway not due")

// resolve performs the Active -> Ended transition and the draw as one
// mutation. Without force the record must also be past its end time. With
// an actor, records of other guilds are reported as not found.
func (s *Service) resolve(id string, now time.Time, force bool, actor *Actor) (*dg.Giveaway, error) {
	return s.registry.Update(id, func(g *dg.Giveaway) error {
		if actor != nil && g.GuildID != actor.GuildID {
			return ErrNotFound
		}
		if !g.IsActive() {
			return ErrNotActive
		}
		if !force && !g.Expired(now) {
			return errNotDue
		}
		winners, err := s.pick(g.Participants, g.WinnerCount)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeInternal, "select winners")
		}
		g.Status = dg.GiveawayStatusEnded
		g.EndedAt = now
		g.WinnerIDs = winners
		g.ResultAnnounced = false
		return nil
	})
}

func (s *Service) afterResolve(ctx context.Context, g *dg.Giveaway) *dg.Giveaway {
	outcome := "winners"
	if len(g.WinnerIDs) == 0 {
		outcome = "no_participants"
	}
	metrics.RecordResolved(outcome)
	s.committed()
	s.logger.Info().
		Str("giveaway_id", g.ID).
		Str("guild_id", g.GuildID).
		Int("participants", len(g.Participants)).
		Strs("winners", g.WinnerIDs).
		Msg("Giveaway resolved")
	return s.announce(ctx, g)
}

// announce delivers the result or cancellation notice and records the
// attempt. A failure leaves ResultAnnounced false for a later retry; the
// status itself is never rolled back. At most one announcement per record
// is in flight; a caller that loses the claim returns without sending.
func (s *Service) announce(ctx context.Context, g *dg.Giveaway) *dg.Giveaway {
	if !s.claimAnnounce(g.ID) {
		return g
	}
	defer s.releaseAnnounce(g.ID)

	cur, gerr := s.registry.Get(g.ID)
	if gerr != nil {
		return g
	}
	if cur.ResultAnnounced {
		return cur
	}
	g = cur

	var (
		err  error
		kind string
	)
	switch g.Status {
	case dg.GiveawayStatusEnded:
		kind = "resolve"
		err = s.announcer.Resolved(ctx, g.Clone())
	case dg.GiveawayStatusCancelled:
		kind = "cancel"
		err = s.announcer.Cancelled(ctx, g.Clone())
	default:
		return g
	}

	if err != nil {
		metrics.RecordAnnounceFailure(kind)
		s.logger.Warn().Err(err).
			Str("giveaway_id", g.ID).
			Int("attempt", g.AnnounceAttempts+1).
			Msg("Failed to announce giveaway result")
	}

	updated, uerr := s.registry.Update(g.ID, func(cur *dg.Giveaway) error {
		if err != nil {
			cur.AnnounceAttempts++
			return nil
		}
		cur.ResultAnnounced = true
		return nil
	})
	if uerr != nil {
		// removed in the meantime
		return g
	}
	s.onChange()
	return updated
}

func (s *Service) claimAnnounce(id string) bool {
	s.announcingMu.Lock()
	defer s.announcingMu.Unlock()
	if _, busy := s.announcing[id]; busy {
		return false
	}
	s.announcing[id] = struct{}{}
	return true
}

func (s *Service) releaseAnnounce(id string) {
	s.announcingMu.Lock()
	delete(s.announcing, id)
	s.announcingMu.Unlock()
}

func (s *Service) committed() {
	_, active := s.registry.Counts()
	metrics.SetActive(active)
	s.onChange()
}
