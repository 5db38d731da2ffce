package directory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/a2alab/agentbridge/domain"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Directory backed by SQLite.
type SQLiteStore struct {
	db         *sql.DB
	staleAfter time.Duration
}

// NewSQLiteStore opens (or creates) the directory database at dsn and runs
// migrations. staleAfter of zero means records never go stale.
func NewSQLiteStore(dsn string, staleAfter time.Duration) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	s := &SQLiteStore{db: db, staleAfter: staleAfter}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS agents (
			agent_id TEXT PRIMARY KEY,
			endpoint TEXT NOT NULL,
			description TEXT,
			capabilities TEXT,
			registered_at DATETIME NOT NULL,
			last_seen DATETIME
		)`,
		`CREATE INDEX IF NOT EXISTS idx_agents_registered ON agents(registered_at)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Register creates or replaces the record for rec.AgentID. The upsert is a
// single statement so concurrent registrations serialize in the database.
func (s *SQLiteStore) Register(ctx context.Context, rec *domain.AgentRecord) error {
	if err := validate(rec); err != nil {
		return err
	}

	caps, _ := json.Marshal(rec.Capabilities)
	registeredAt := rec.RegisteredAt
	if registeredAt.IsZero() {
		registeredAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO agents (agent_id, endpoint, description, capabilities, registered_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(agent_id) DO UPDATE SET
			endpoint = excluded.endpoint,
			description = excluded.description,
			capabilities = excluded.capabilities`,
		rec.AgentID, rec.Endpoint, rec.Description, string(caps), registeredAt)
	return err
}

// Resolve implements Directory.
func (s *SQLiteStore) Resolve(ctx context.Context, token string) (*domain.AgentRecord, error) {
	cond, condArgs := s.activeCond()

	rec, err := s.queryOne(ctx,
		`SELECT agent_id, endpoint, description, capabilities, registered_at, last_seen
		 FROM agents WHERE agent_id = ?`+cond, append([]interface{}{token}, condArgs...)...)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		return rec, nil
	}

	rec, err = s.queryOne(ctx,
		`SELECT agent_id, endpoint, description, capabilities, registered_at, last_seen
		 FROM agents WHERE agent_id LIKE ? ESCAPE '\'`+cond+
			` ORDER BY registered_at DESC LIMIT 1`,
		append([]interface{}{escapeLike(token) + "%"}, condArgs...)...)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrNotFound
	}
	return rec, nil
}

// Heartbeat implements Directory.
func (s *SQLiteStore) Heartbeat(ctx context.Context, agentID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE agents SET last_seen = ? WHERE agent_id = ?`, time.Now(), agentID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListActive implements Directory.
func (s *SQLiteStore) ListActive(ctx context.Context) ([]domain.AgentRecord, error) {
	cond, condArgs := s.activeCond()
	rows, err := s.db.QueryContext(ctx,
		`SELECT agent_id, endpoint, description, capabilities, registered_at, last_seen
		 FROM agents WHERE 1=1`+cond+` ORDER BY registered_at`, condArgs...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AgentRecord
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// Count returns total and active record counts.
func (s *SQLiteStore) Count(ctx context.Context) (total, active int, err error) {
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM agents`).Scan(&total); err != nil {
		return 0, 0, err
	}
	cond, condArgs := s.activeCond()
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM agents WHERE 1=1`+cond, condArgs...).Scan(&active)
	return total, active, err
}

func (s *SQLiteStore) queryOne(ctx context.Context, query string, args ...interface{}) (*domain.AgentRecord, error) {
	row := s.db.QueryRowContext(ctx, query, args...)
	rec, err := scanRecord(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// activeCond restricts a query to non-stale records. The cutoff is bound as
// a query parameter so the driver formats it the same way it formats the
// stored timestamps; an inlined string literal would compare a UTC wall
// clock against local-time values.
func (s *SQLiteStore) activeCond() (string, []interface{}) {
	if s.staleAfter <= 0 {
		return "", nil
	}
	return " AND COALESCE(last_seen, registered_at) > ?",
		[]interface{}{time.Now().Add(-s.staleAfter)}
}

func scanRecord(scan func(dest ...interface{}) error) (*domain.AgentRecord, error) {
	var rec domain.AgentRecord
	var description, caps sql.NullString
	var lastSeen sql.NullTime
	if err := scan(&rec.AgentID, &rec.Endpoint, &description, &caps, &rec.RegisteredAt, &lastSeen); err != nil {
		return nil, err
	}
	rec.Description = description.String
	if caps.Valid && caps.String != "" && caps.String != "null" {
		_ = json.Unmarshal([]byte(caps.String), &rec.Capabilities)
	}
	if lastSeen.Valid {
		t := lastSeen.Time
		rec.LastSeen = &t
	}
	return &rec, nil
}

// escapeLike escapes LIKE metacharacters; identifier tokens may contain '_'.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
