package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"petagenda/internal/api"
	"petagenda/internal/cache"
	"petagenda/internal/config"
	"petagenda/internal/database"
	"petagenda/internal/events"
	"petagenda/internal/metrics"
	"petagenda/internal/service"
	"petagenda/internal/slots"
	"petagenda/shared/access"
	"petagenda/shared/audit"
	"petagenda/shared/completion"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API with roster sync, backups and background jobs",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	slotCfg, err := cfg.SlotConfig()
	if err != nil {
		return err
	}
	db, loc, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	metrics.Register()
	bus := events.NewEventBus(logger)

	svc := service.NewBookingService(db, slots.NewGenerator(slotCfg), access.NewService(logger), loc, logger)
	svc.UseEvents(bus)

	ready := []api.Pinger{db}
	if cfg.Cache.Enabled && cfg.Redis.Address != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()

		c := cache.New(rdb, cfg.CacheTTL(), logger)
		c.Subscribe(bus)
		svc.UseCache(c)
		ready = append(ready, api.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() }))
	}

	err = config.WatchRoster(ctx, cfg.Roster.Path, cfg.RosterWatchInterval(), logger, func(rc *config.RosterConfig) {
		if err := db.SyncRoster(ctx, rc); err != nil {
			logger.Error().Err(err).Msg("roster sync failed")
			return
		}
		bus.Publish(events.Event{Type: events.RosterSynced})
	})
	if err != nil {
		return fmt.Errorf("load roster: %w", err)
	}

	if cfg.Backup.Enabled {
		backups := database.NewBackupService(db, database.BackupConfig{
			Dir:           cfg.Backup.Path,
			Interval:      cfg.BackupInterval(),
			RetentionDays: cfg.Backup.RetentionDays,
		}, logger)
		go backups.Start(ctx)
	}

	sweeper := completion.NewService(
		&completion.Config{Interval: cfg.CompletionSweepInterval()},
		db, bus, completion.NewMetrics("petagenda", prometheus.DefaultRegisterer), logger,
	)
	sweeper.Start()
	defer sweeper.Stop()

	if cfg.Audit.Enabled {
		exporter := audit.NewService(&audit.Config{Dir: cfg.Audit.ExportPath, ExportOnStart: cfg.Audit.ExportOnStart}, db, nil, loc, logger)
		exporter.Start()
		defer exporter.Stop()
	}

	srv := api.NewHTTPServer(api.Config{
		Port:      cfg.HTTPPort(),
		APIKeys:   cfg.HTTP.APIKeys,
		RateLimit: cfg.HTTP.RateLimit,
		Burst:     cfg.HTTP.Burst,
	}, svc, logger, ready...)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	logger.Info().Str("timezone", loc.String()).Msg("petagenda started")

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
