package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskdesk/core/internal/command"
	"taskdesk/core/internal/config"
	"taskdesk/core/internal/connectivity"
	"taskdesk/core/internal/db"
	"taskdesk/core/internal/device"
	recordrepo "taskdesk/core/internal/record/repository"
	"taskdesk/core/internal/session/registry"
	sessionrepo "taskdesk/core/internal/session/repository"
	syncengine "taskdesk/core/internal/sync"
	"taskdesk/core/internal/telemetry"
	otelsetup "taskdesk/core/internal/telemetry/otel"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := otelsetup.NewProviders(ctx, cfg.OTLPEndpoint, "taskdesk-core", cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = providers.Shutdown(shutdownCtx)
	}()
	sink, err := telemetry.NewSink(providers)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}

	localDB, err := db.OpenSQLite(cfg.SQLitePath)
	if err != nil {
		log.Fatalf("local store: %v", err)
	}
	defer localDB.Close()

	localRecords := recordrepo.NewSQLiteRepository(localDB)
	localSessions := sessionrepo.NewSQLiteRepository(localDB)

	var remoteRecords recordrepo.RemoteRepository
	var remoteSessions sessionrepo.Repository
	var prober connectivity.Prober
	if cfg.RemoteConfigured() {
		remoteDB, err := db.OpenPostgres(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("remote store: %v", err)
		}
		defer remoteDB.Close()
		remote := recordrepo.NewPostgresRepository(remoteDB)
		remoteRecords = remote
		remoteSessions = sessionrepo.NewPostgresRepository(remoteDB)
		prober = remote
	} else {
		log.Println("no remote endpoint configured; running local-only")
	}

	monitor := connectivity.New(prober, cfg.ProbeTimeoutDuration(), cfg.ProbeIntervalDuration())
	engine := syncengine.NewEngine(localRecords, remoteRecords, monitor, sink)
	reg := registry.NewRegistry(remoteSessions, localSessions, monitor, device.NewIdentity(), sink,
		cfg.MaxConcurrentSessions, cfg.SessionTTLDuration())
	svc := command.NewService(engine, reg)

	monitor.OnReconnect(func() {
		log.Println("remote store reachable; starting full sync")
		runFullSync(ctx, svc)
	})
	go monitor.Run(ctx)

	ticker := time.NewTicker(cfg.SyncIntervalDuration())
	defer ticker.Stop()

	log.Printf("taskdesk core running (sync every %s)", cfg.SyncIntervalDuration())
	for {
		select {
		case <-ctx.Done():
			log.Println("shutting down")
			return
		case <-ticker.C:
			runFullSync(ctx, svc)
		}
	}
}

func runFullSync(ctx context.Context, svc *command.Service) {
	res := svc.SyncFull(ctx)
	switch res.Kind {
	case command.KindAlreadyInProgress:
		log.Println("sync: already in progress; skipping")
	case command.KindNotConnected:
		log.Println("sync: remote not connected; skipping")
	case command.KindOK:
		log.Printf("sync: pushed %d (%d errors, %d pending), pulled %d",
			res.Synced, res.Errors, res.TotalPending, res.Pulled)
	default:
		log.Printf("sync: %s: %s", res.Kind, res.Detail)
	}
}
