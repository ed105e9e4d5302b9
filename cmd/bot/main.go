package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/open-builders/giveaway-bot/internal/bot"
	"github.com/open-builders/giveaway-bot/internal/common/logger"
	"github.com/open-builders/giveaway-bot/internal/config"
	apphttp "github.com/open-builders/giveaway-bot/internal/http"
	"github.com/open-builders/giveaway-bot/internal/metrics"
	"github.com/open-builders/giveaway-bot/internal/platform/paypal"
	redisplatform "github.com/open-builders/giveaway-bot/internal/platform/redis"
	"github.com/open-builders/giveaway-bot/internal/repository/memory"
	"github.com/open-builders/giveaway-bot/internal/repository/snapshot"
	gsvc "github.com/open-builders/giveaway-bot/internal/service/giveaway"
	subsvc "github.com/open-builders/giveaway-bot/internal/service/subscription"
	"github.com/open-builders/giveaway-bot/internal/workers"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load config")
	}
	logger.Init("giveaway-bot", cfg.Debug)

	backend, closeStorage, err := openBackend(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.Storage.Backend).Msg("Failed to open storage")
	}
	defer closeStorage()

	doc, err := backend.Load(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load snapshot")
	}
	registry := memory.NewRegistry()
	subscriptions := memory.NewSubscriptionStore()
	snapshot.Restore(doc, registry, subscriptions)
	total, active := registry.Counts()
	logger.Info().
		Str("backend", cfg.Storage.Backend).
		Int("giveaways", total).
		Int("active", active).
		Int("subscriptions", len(doc.Subscriptions)).
		Msg("State restored")

	flusher := workers.NewSnapshotFlusher(backend, func(now time.Time) *snapshot.Document {
		return snapshot.Capture(registry, subscriptions, now)
	}, cfg.FlushInterval())

	session, err := bot.NewSession(cfg.Discord.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create Discord session")
	}

	var subs *subsvc.Service
	opts := []gsvc.Option{
		gsvc.WithJoinCooldown(cfg.JoinCooldown()),
		gsvc.WithChangeHook(flusher.MarkDirty),
	}
	if cfg.Subscriptions.Enabled {
		var provider subsvc.PaymentProvider
		subOpts := []subsvc.Option{subsvc.WithChangeHook(flusher.MarkDirty)}
		if cfg.PayPalConfigured() {
			client := paypal.NewClient(paypal.Config{
				BaseURL:      cfg.PayPal.BaseURL,
				ClientID:     cfg.PayPal.ClientID,
				ClientSecret: cfg.PayPal.ClientSecret,
				PlanID:       cfg.PayPal.PlanID,
				WebhookID:    cfg.PayPal.WebhookID,
				ReturnURL:    cfg.PayPal.ReturnURL,
				CancelURL:    cfg.PayPal.CancelURL,
			})
			provider = client
			if cfg.PayPal.WebhookID != "" {
				subOpts = append(subOpts, subsvc.WithWebhookVerifier(client))
			} else {
				logger.Warn().Msg("PAYPAL_WEBHOOK_ID missing, PayPal webhooks will be rejected")
			}
		} else {
			logger.Warn().Msg("PayPal credentials missing, /buy is unavailable")
		}
		subs = subsvc.NewService(subscriptions, provider, subOpts...)
		opts = append(opts, gsvc.WithFeatureGate(subs))
	}

	giveaways := gsvc.NewService(registry, bot.NewAnnouncer(session), opts...)
	metrics.SetActive(active)

	var subsHandler bot.SubscriptionService
	if subs != nil {
		subsHandler = subs
	}
	discord := bot.New(session, bot.NewHandler(giveaways, subsHandler), cfg.Discord.GuildID, cfg.Subscriptions.Enabled)
	if err := discord.Open(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to Discord")
	}

	expiration := gsvc.NewExpirationService(giveaways, cfg.ExpireInterval(), cfg.Giveaway.AnnounceMaxRetries)
	expiration.Start(ctx)
	flusher.Start(ctx)

	sweeper := workers.NewRetentionSweeper(registry, cfg.Retention(), cfg.Giveaway.CleanupSchedule, flusher.MarkDirty)
	if err := sweeper.Start(); err != nil {
		logger.Fatal().Err(err).Str("schedule", cfg.Giveaway.CleanupSchedule).Msg("Failed to schedule cleanup")
	}

	routerOpts := apphttp.Options{
		Debug:          cfg.Debug,
		AllowedOrigins: cfg.HTTP.CORSAllowedOrigins,
		Metrics:        metrics.Handler(),
		Stats:          registry.Counts,
	}
	if subs != nil {
		routerOpts.Webhook = subs
	}
	server := apphttp.NewServer(cfg.HTTP.Addr, apphttp.NewRouter(routerOpts))
	serverErr := server.Start()

	select {
	case <-ctx.Done():
		logger.Info().Msg("Shutting down...")
	case err := <-serverErr:
		logger.Error().Err(err).Msg("HTTP server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	sweeper.Stop()
	expiration.Stop()
	if err := discord.Close(); err != nil {
		logger.Warn().Err(err).Msg("Failed to close Discord session")
	}
	if err := flusher.Stop(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Final snapshot flush failed")
	}
	logger.Info().Msg("Bot stopped")
}

// openBackend selects the snapshot store named by STORAGE_BACKEND.
func openBackend(ctx context.Context, cfg *config.Config) (snapshot.Backend, func(), error) {
	switch cfg.Storage.Backend {
	case config.StorageMemory:
		logger.Warn().Msg("Using memory storage, state is lost on restart")
		return snapshot.NopBackend{}, func() {}, nil
	case config.StorageFile:
		return snapshot.NewFileBackend(cfg.Storage.File), func() {}, nil
	case config.StorageRedis:
		rdb, err := redisplatform.Open(ctx, redisplatform.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, nil, err
		}
		return snapshot.NewRedisBackend(rdb, snapshot.DefaultRedisKey, cfg.Storage.ChunkBytes), func() { _ = rdb.Close() }, nil
	case config.StorageSQLite:
		db, err := snapshot.OpenSQLite(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return db, func() { _ = db.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
}
