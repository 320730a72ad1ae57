package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/small-frappuccino/ctfchannels/pkg/config"
	"github.com/small-frappuccino/ctfchannels/pkg/discord/commands"
	"github.com/small-frappuccino/ctfchannels/pkg/discord/platform"
	"github.com/small-frappuccino/ctfchannels/pkg/log"
	"github.com/small-frappuccino/ctfchannels/pkg/server"
	"github.com/small-frappuccino/ctfchannels/pkg/storage"
	"github.com/small-frappuccino/ctfchannels/pkg/util"
)

// auditPruneInterval is how often expired audit records are deleted.
const auditPruneInterval = 6 * time.Hour

// Run bootstraps the interactions service and blocks until ctx is done or the
// process is interrupted. Configuration comes from the environment, an optional
// .env file and an optional YAML file (see pkg/config).
func Run(ctx context.Context) error {
	started := time.Now()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Logger first so subsequent steps can log meaningfully
	if err := setupLogging(cfg, nil); err != nil {
		return err
	}
	defer log.GlobalLogger.Sync()

	log.ApplicationLogger().Info(fmt.Sprintf("🚀 Starting %s %s...", Name, Version))

	key, err := cfg.PublicKey()
	if err != nil {
		return err
	}

	log.DiscordLogger().Info("Using bot token (value redacted)", "applicationID", cfg.Discord.ApplicationID)
	client, err := platform.New(cfg.Discord.Token)
	if err != nil {
		return err
	}

	var audit commands.AuditRecorder
	store, err := openAuditStore(cfg.Audit)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
		audit = store

		// Deferred after Close so it runs first.
		defer scheduleAuditPrune(store, auditPruneInterval, cfg.Audit.Retention).Stop()
	}

	dispatcher := commands.NewDispatcher(client, audit)
	srv := server.New(server.Options{
		Addr:              cfg.Server.Addr,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ShutdownTimeout:   cfg.Server.ShutdownTimeout,
		ApplicationID:     cfg.Discord.ApplicationID,
		PublicKey:         key,
	}, dispatcher, client)
	if err := srv.Start(); err != nil {
		return err
	}

	log.ApplicationLogger().Info(fmt.Sprintf("✅ %s ready in %s", Name, time.Since(started).Round(time.Millisecond)))

	util.WaitForInterrupt(ctx)
	log.ApplicationLogger().Info(fmt.Sprintf("🛑 Stopping %s...", Name))

	if err := srv.Stop(context.Background()); err != nil {
		log.ErrorLoggerRaw().Error("Graceful shutdown failed", "err", err)
		return err
	}
	log.ApplicationLogger().Info(fmt.Sprintf("🔌 %s stopped", Name))
	return nil
}

// Register publishes the five command descriptors once and writes Discord's
// answer to out.
func Register(ctx context.Context, out io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := setupLogging(cfg, os.Stderr); err != nil {
		return err
	}
	defer log.GlobalLogger.Sync()

	client, err := platform.New(cfg.Discord.Token)
	if err != nil {
		return err
	}
	return registerCommands(ctx, client, cfg.Discord.ApplicationID, out)
}

func registerCommands(ctx context.Context, registrar server.Registrar, appID string, out io.Writer) error {
	body, err := registrar.RegisterCommands(ctx, appID, commands.Descriptors())
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(out, "%s\n", body); err != nil {
		return fmt.Errorf("write registration result: %w", err)
	}
	return nil
}

// setupLogging installs the global logger. A non-nil console replaces stdout,
// which keeps one-shot commands' own output clean.
func setupLogging(cfg *config.Config, console io.Writer) error {
	if err := log.SetupLogger(log.Options{
		Dir:    cfg.Log.Dir,
		Level:  log.ParseLevel(cfg.Log.Level),
		Stdout: console,
	}); err != nil {
		return fmt.Errorf("configure logger: %w", err)
	}
	return nil
}

// openAuditStore returns nil when auditing is disabled.
func openAuditStore(cfg config.AuditConfig) (*storage.Store, error) {
	if cfg.DBPath == "" {
		return nil, nil
	}
	store := storage.NewStore(cfg.DBPath)
	if err := store.Init(); err != nil {
		return nil, fmt.Errorf("initialize audit store: %w", err)
	}
	log.ApplicationLogger().Info("Command audit enabled", "path", cfg.DBPath, "retention", cfg.Retention)
	return store, nil
}
