// File: cmd/server/main.go
package main

import (
	"context"
	"flag"
	"log" // Standard log for startup/shutdown messages outside zap's lifetime
	"os"
	"os/signal"
	"syscall"

	"artify/internal/app"
	"artify/internal/config"
	"artify/internal/jobs"
	"artify/internal/platform/logger"

	"go.uber.org/zap"
)

func main() {
	purgeCmd := flag.NewFlagSet("purge-invitations", flag.ExitOnError)
	dryRun := purgeCmd.Bool("dry-run", false, "Only report how many invitations would be purged")

	if len(os.Args) > 1 && os.Args[1] == "purge-invitations" {
		_ = purgeCmd.Parse(os.Args[2:])
		if err := runInvitationPurge(*dryRun); err != nil {
			log.Fatalf("FATAL: Invitation purge failed: %v", err)
		}
		return
	}

	startServer()
}

func startServer() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	server, cleanup, err := initializeServer(cfg)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize server: %v", err)
	}
	defer cleanup()

	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("FATAL: Server failed to start or crashed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Printf("INFO: Received signal '%s'. Shutting down server...", sig)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ServerTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("ERROR: Server forced to shutdown due to error: %v", err)
	} else {
		log.Println("INFO: Server shutdown complete.")
	}
}

// runInvitationPurge deletes expired unused invitations once, outside the
// scheduler.
func runInvitationPurge(dryRun bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	appLogger, err := logger.New(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = appLogger.Sync() }()

	db, cleanupDB, err := app.ProvideProfileDB(cfg, appLogger)
	if err != nil {
		return err
	}
	defer cleanupDB()

	svc := app.ProvideInvitationService(cfg, app.ProvideInvitationRepository(db), appLogger)
	ctx := context.Background()
	if dryRun {
		expired, err := svc.CountExpired(ctx)
		if err != nil {
			return err
		}
		appLogger.Info("Dry run: expired invitations found", zap.Int64("count", expired))
		return nil
	}
	return jobs.NewInvitationPurgeJob(svc, appLogger).Run(ctx)
}
