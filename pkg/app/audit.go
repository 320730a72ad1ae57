package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/small-frappuccino/ctfchannels/pkg/config"
	"github.com/small-frappuccino/ctfchannels/pkg/log"
	"github.com/small-frappuccino/ctfchannels/pkg/storage"
)

// Audit prints the most recent commands recorded for guildID, newest first.
func Audit(ctx context.Context, guildID string, limit int, out io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := setupLogging(cfg, os.Stderr); err != nil {
		return err
	}
	defer log.GlobalLogger.Sync()

	store, err := openAuditStore(cfg.Audit)
	if err != nil {
		return err
	}
	if store == nil {
		return fmt.Errorf("command audit is disabled; set %s", config.EnvAuditDBPath)
	}
	defer store.Close()

	return printAudit(ctx, store, guildID, limit, out)
}

type auditReader interface {
	RecentCommands(ctx context.Context, guildID string, limit int) ([]storage.AuditRecord, error)
}

func printAudit(ctx context.Context, store auditReader, guildID string, limit int, out io.Writer) error {
	if guildID == "" {
		return errors.New("guild id is required")
	}
	records, err := store.RecentCommands(ctx, guildID, limit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "AT\tCOMMAND\tOUTCOME\tCHANNEL\tDETAIL")
	for _, rec := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			rec.At.UTC().Format(time.RFC3339), rec.Command, rec.Outcome, rec.ChannelID, rec.Detail)
	}
	return w.Flush()
}
