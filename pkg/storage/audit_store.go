package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store wraps an embedded SQLite database holding the command audit trail.
// It uses modernc.org/sqlite for CGO-less builds. The trail is append-only and
// is never consulted when handling a command.
type Store struct {
	dbPath string
	db     *sql.DB
}

// AuditRecord is one dispatched command.
type AuditRecord struct {
	ID        string
	At        time.Time
	GuildID   string
	ChannelID string
	Command   string
	Outcome   string
	Detail    string
}

// NewStore creates a new Store pointing to dbPath. Call Init() before using it.
func NewStore(dbPath string) *Store {
	return &Store{dbPath: dbPath}
}

// Init opens the SQLite database, configures pragmas, and ensures the schema exists.
func (s *Store) Init() error {
	if s.db != nil {
		return nil
	}
	if s.dbPath == "" {
		return fmt.Errorf("db path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(s.dbPath), 0o755); err != nil {
		return fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", s.dbPath)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}

	for _, pragma := range []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA busy_timeout=5000;`,
		`PRAGMA synchronous=NORMAL;`,
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return fmt.Errorf("apply %s: %w", pragma, err)
		}
	}

	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordCommand appends rec to the audit trail, assigning an ID and timestamp
// when they are missing.
func (s *Store) RecordCommand(ctx context.Context, rec AuditRecord) error {
	if s.db == nil {
		return fmt.Errorf("store not initialized")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.At.IsZero() {
		rec.At = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO command_audit (id, at, guild_id, channel_id, command, outcome, detail)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.At.UTC(), rec.GuildID, rec.ChannelID, rec.Command, rec.Outcome, rec.Detail,
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

// RecentCommands returns up to limit records for guildID, newest first.
func (s *Store) RecentCommands(ctx context.Context, guildID string, limit int) ([]AuditRecord, error) {
	if s.db == nil {
		return nil, fmt.Errorf("store not initialized")
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, at, guild_id, channel_id, command, outcome, detail
         FROM command_audit
         WHERE guild_id=?
         ORDER BY at DESC, rowid DESC
         LIMIT ?`,
		guildID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	defer rows.Close()

	var out []AuditRecord
	for rows.Next() {
		var rec AuditRecord
		if err := rows.Scan(&rec.ID, &rec.At, &rec.GuildID, &rec.ChannelID, &rec.Command, &rec.Outcome, &rec.Detail); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// PruneBefore deletes records older than cutoff and returns how many were removed.
func (s *Store) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if s.db == nil {
		return 0, fmt.Errorf("store not initialized")
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM command_audit WHERE at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune audit records: %w", err)
	}
	return res.RowsAffected()
}

func ensureSchema(db *sql.DB) error {
	const createAudit = `
CREATE TABLE IF NOT EXISTS command_audit (
  id         TEXT PRIMARY KEY,
  at         TIMESTAMP NOT NULL,
  guild_id   TEXT NOT NULL,
  channel_id TEXT NOT NULL,
  command    TEXT NOT NULL,
  outcome    TEXT NOT NULL,
  detail     TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_command_audit_guild_at ON command_audit(guild_id, at);`

	if _, err := db.Exec(createAudit); err != nil {
		return fmt.Errorf("create command_audit: %w", err)
	}
	return nil
}
