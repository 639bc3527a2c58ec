// Package storage is the optional audit archive. It is write-mostly: nothing
// in the bot reads it back to rebuild moderation state.
package storage

import (
	"context"
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Store struct {
	db *sqlx.DB
}

type AuditEntry struct {
	ID        string
	GuildID   string
	ActorID   string
	TargetID  string
	Action    string
	Reason    string
	Duration  time.Duration
	Detail    string
	CreatedAt time.Time
}

type auditRow struct {
	ID         string `db:"id"`
	GuildID    string `db:"guild_id"`
	ActorID    string `db:"actor_id"`
	TargetID   string `db:"target_id"`
	Action     string `db:"action"`
	Reason     string `db:"reason"`
	DurationNS int64  `db:"duration_ns"`
	Detail     string `db:"detail"`
	CreatedAt  int64  `db:"created_at"`
}

// Open connects to Postgres for postgres:// DSNs and treats anything else as
// a SQLite path.
func Open(dsn string) (*Store, error) {
	driver := "sqlite"
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		driver = "pgx"
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == "sqlite" {
		// one connection keeps :memory: databases alive and serializes writers
		db.SetMaxOpenConns(1)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Migrate(ctx context.Context) error {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return err
	}

	var files []string
	for _, entry := range entries {
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	for _, file := range files {
		content, err := migrations.ReadFile(path.Join("migrations", file))
		if err != nil {
			return err
		}
		for _, stmt := range strings.Split(string(content), ";") {
			if strings.TrimSpace(stmt) == "" {
				continue
			}
			if _, err := s.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("migration %s failed: %w", file, err)
			}
		}
	}
	return nil
}

// AddAuditEntry stores entry, assigning a ULID when it has no id yet.
func (s *Store) AddAuditEntry(ctx context.Context, entry AuditEntry) error {
	if entry.ID == "" {
		entry.ID = ulid.Make().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO audit_entries (id, guild_id, actor_id, target_id, action, reason, duration_ns, detail, created_at)
		VALUES (:id, :guild_id, :actor_id, :target_id, :action, :reason, :duration_ns, :detail, :created_at)
	`, toRow(entry))
	return err
}

// ListAuditEntries returns the guild's entries created at or after since,
// newest first.
func (s *Store) ListAuditEntries(ctx context.Context, guildID string, since time.Time) ([]AuditEntry, error) {
	var rows []auditRow
	query := s.db.Rebind(`
		SELECT id, guild_id, actor_id, target_id, action, reason, duration_ns, detail, created_at
		FROM audit_entries
		WHERE guild_id = ? AND created_at >= ?
		ORDER BY created_at DESC, id DESC
	`)
	if err := s.db.SelectContext(ctx, &rows, query, guildID, since.Unix()); err != nil {
		return nil, err
	}
	entries := make([]AuditEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, fromRow(row))
	}
	return entries, nil
}

// CleanupAuditEntries deletes entries older than retentionDays and reports
// how many went.
func (s *Store) CleanupAuditEntries(ctx context.Context, retentionDays int, now time.Time) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	cutoff := now.AddDate(0, 0, -retentionDays)
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM audit_entries WHERE created_at < ?`), cutoff.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func toRow(entry AuditEntry) auditRow {
	return auditRow{
		ID:         entry.ID,
		GuildID:    entry.GuildID,
		ActorID:    entry.ActorID,
		TargetID:   entry.TargetID,
		Action:     entry.Action,
		Reason:     entry.Reason,
		DurationNS: int64(entry.Duration),
		Detail:     entry.Detail,
		CreatedAt:  entry.CreatedAt.Unix(),
	}
}

func fromRow(row auditRow) AuditEntry {
	return AuditEntry{
		ID:        row.ID,
		GuildID:   row.GuildID,
		ActorID:   row.ActorID,
		TargetID:  row.TargetID,
		Action:    row.Action,
		Reason:    row.Reason,
		Duration:  time.Duration(row.DurationNS),
		Detail:    row.Detail,
		CreatedAt: time.Unix(row.CreatedAt, 0),
	}
}
