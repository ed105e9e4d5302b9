package giveaway

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	dg "github.com/open-builders/giveaway-bot/internal/domain/giveaway"
	"github.com/open-builders/giveaway-bot/internal/metrics"
)

// ExpirationService polls the registry and resolves giveaways whose end
// time has passed. It also retries result announcements that failed on an
// earlier tick.
type ExpirationService struct {
	svc        *Service
	interval   time.Duration
	maxRetries int
	logger     zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewExpirationService(svc *Service, interval time.Duration, maxRetries int) *ExpirationService {
	return &ExpirationService{
		svc:        svc,
		interval:   interval,
		maxRetries: maxRetries,
		logger:     svc.logger.With().Str("worker", "expiration").Logger(),
	}
}

// Start runs one tick immediately, so giveaways that expired while the
// process was down are resolved, then one per interval until Stop or ctx
// cancellation.
func (e *ExpirationService) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.logger.Info().Dur("interval", e.interval).Msg("Starting expiration service")

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()

		e.ProcessExpired(ctx)
		for {
			select {
			case <-ticker.C:
				e.ProcessExpired(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop cancels the loop and waits for an in-flight tick to finish.
func (e *ExpirationService) Stop() {
	e.mu.Lock()
	cancel := e.cancel
	e.cancel = nil
	e.mu.Unlock()

	if cancel == nil {
		return
	}
	e.logger.Info().Msg("Stopping expiration service")
	cancel()
	e.wg.Wait()
	e.logger.Info().Msg("Expiration service stopped")
}

// ProcessExpired runs a single tick and returns how many giveaways it resolved.
func (e *ExpirationService) ProcessExpired(ctx context.Context) int {
	start := time.Now()
	defer func() {
		metrics.ObserveResolution(time.Since(start).Seconds())
	}()

	// Collected before resolving so that this tick's fresh failures wait for the next one.
	pending := e.svc.registry.Filter(func(g *dg.Giveaway) bool {
		return !g.IsActive() && !g.ResultAnnounced && g.AnnounceAttempts <= e.maxRetries
	})

	now := e.svc.now()
	expired := e.svc.registry.Filter(func(g *dg.Giveaway) bool {
		return g.Expired(now)
	})

	resolved := 0
	for _, g := range expired {
		if ctx.Err() != nil {
			return resolved
		}
		ended, err := e.svc.resolve(g.ID, now, false, nil)
		if err != nil {
			// cancelled, ended early or removed since the scan
			if !errors.Is(err, ErrNotActive) && !errors.Is(err, ErrNotFound) && !errors.Is(err, errNotDue) {
				e.logger.Error().Err(err).Str("giveaway_id", g.ID).Msg("Failed to resolve giveaway")
			}
			continue
		}
		e.svc.afterResolve(ctx, ended)
		resolved++
	}

	for _, g := range pending {
		if ctx.Err() != nil {
			break
		}
		cur, err := e.svc.registry.Get(g.ID)
		if err != nil || cur.ResultAnnounced {
			continue
		}
		e.logger.Debug().
			Str("giveaway_id", cur.ID).
			Int("attempts", cur.AnnounceAttempts).
			Msg("Retrying giveaway announcement")
		e.svc.announce(ctx, cur)
	}

	return resolved
}
