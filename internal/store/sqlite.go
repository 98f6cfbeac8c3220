package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/joescharf/qam/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite allows a single writer; concurrent qam invocations share the file.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	// Set busy timeout so concurrent writes wait instead of failing immediately
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// boolToInt converts a bool to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// newULID generates a new ULID string.
func newULID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	// Create migrations tracking table
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	// Sort by filename
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()

		// Check if already applied
		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// RecordAction inserts e, assigning an ID and timestamp when unset.
func (s *SQLiteStore) RecordAction(ctx context.Context, e *models.JournalEntry) error {
	if e.ID == "" {
		e.ID = newULID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	e.CreatedAt = e.CreatedAt.UTC()

	groupsJSON, err := json.Marshal(nonNil(e.Groups))
	if err != nil {
		return fmt.Errorf("encode groups: %w", err)
	}
	reasonsJSON, err := json.Marshal(nonNil(e.Reasons))
	if err != nil {
		return fmt.Errorf("encode reasons: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO journal (id, request_id, action, user, groups, reasons, message, dry_run, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.RequestID, string(e.Action), e.User,
		string(groupsJSON), string(reasonsJSON), e.Message,
		boolToInt(e.DryRun), e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record action: %w", err)
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

const journalColumns = `id, request_id, action, user, groups, reasons, message, dry_run, created_at`

// GetAction returns the entry with id, or the only entry whose id starts
// with it.
func (s *SQLiteStore) GetAction(ctx context.Context, id string) (*models.JournalEntry, error) {
	entries, err := s.scanActions(ctx,
		`SELECT `+journalColumns+` FROM journal WHERE id LIKE ? ORDER BY id LIMIT 2`,
		strings.ToUpper(id)+"%")
	if err != nil {
		return nil, err
	}
	switch len(entries) {
	case 0:
		return nil, fmt.Errorf("journal entry not found: %s", id)
	case 1:
		return entries[0], nil
	default:
		return nil, fmt.Errorf("ambiguous journal id %s", id)
	}
}

func (s *SQLiteStore) ListActions(ctx context.Context, filter JournalFilter) ([]*models.JournalEntry, error) {
	query := `SELECT ` + journalColumns + ` FROM journal`
	var conditions []string
	var args []any

	if filter.RequestID != "" {
		conditions = append(conditions, "request_id = ?")
		args = append(args, filter.RequestID)
	}
	if filter.User != "" {
		conditions = append(conditions, "user = ?")
		args = append(args, filter.User)
	}
	if filter.Action != "" {
		conditions = append(conditions, "action = ?")
		args = append(args, string(filter.Action))
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, filter.Since.UTC())
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	return s.scanActions(ctx, query, args...)
}

func (s *SQLiteStore) scanActions(ctx context.Context, query string, args ...any) ([]*models.JournalEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*models.JournalEntry
	for rows.Next() {
		e := &models.JournalEntry{}
		var action, groupsJSON, reasonsJSON string
		var dryRun int
		if err := rows.Scan(&e.ID, &e.RequestID, &action, &e.User,
			&groupsJSON, &reasonsJSON, &e.Message, &dryRun, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		e.Action = models.JournalAction(action)
		e.DryRun = dryRun != 0
		_ = json.Unmarshal([]byte(groupsJSON), &e.Groups)
		_ = json.Unmarshal([]byte(reasonsJSON), &e.Reasons)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// PruneActions deletes entries recorded before the given time.
func (s *SQLiteStore) PruneActions(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM journal WHERE created_at < ?", before.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune actions: %w", err)
	}
	return result.RowsAffected()
}
