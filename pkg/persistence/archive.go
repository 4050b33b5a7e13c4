// Package persistence provides SQLite-based storage for session snapshots.
// It is the durable mirror behind the in-memory session store: every
// published snapshot is upserted, and LoadAll restores sessions at startup.
package persistence

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"northstar/pkg/logx"
	"northstar/pkg/proposal"
)

// CurrentSchemaVersion defines the current schema version for migration
// support.
const CurrentSchemaVersion = 1

// Archive is a SQLite-backed snapshot store.
type Archive struct {
	db     *sql.DB
	logger *logx.Logger
}

// Open creates and initializes the SQLite database with the required schema.
// Safe to call on an existing database.
func Open(dbPath string) (*Archive, error) {
	// Open database connection with WAL mode and busy timeout.
	db, err := sql.Open("sqlite", fmt.Sprintf(
		"file:%s?_foreign_keys=ON&_journal_mode=WAL&_busy_timeout=5000",
		dbPath,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := initializeSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	archive := &Archive{
		db:     db,
		logger: logx.NewLogger("persistence"),
	}
	archive.logger.Info("📦 Session archive initialized: %s", dbPath)

	return archive, nil
}

func initializeSchema(db *sql.DB) error {
	version, err := getSchemaVersion(db)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	if version == CurrentSchemaVersion {
		return nil
	}
	if version > CurrentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported %d", version, CurrentSchemaVersion)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			session_id      TEXT PRIMARY KEY,
			current_step    TEXT NOT NULL,
			approval_status TEXT NOT NULL,
			client_name     TEXT NOT NULL DEFAULT '',
			updated_at      TEXT NOT NULL,
			snapshot        TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_sessions_step ON sessions(current_step);
	`); err != nil {
		return fmt.Errorf("failed to create sessions table: %w", err)
	}

	return setSchemaVersion(db, CurrentSchemaVersion)
}

func getSchemaVersion(db *sql.DB) (int, error) {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return 0, fmt.Errorf("failed to create schema_version table: %w", err)
	}

	var version int
	err := db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

func setSchemaVersion(db *sql.DB, version int) error {
	if _, err := db.Exec(`DELETE FROM schema_version`); err != nil {
		return fmt.Errorf("failed to clear schema version: %w", err)
	}
	if _, err := db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, version); err != nil {
		return fmt.Errorf("failed to set schema version: %w", err)
	}
	return nil
}

// Persist upserts a session snapshot. It implements state.SnapshotSink:
// failures are logged, never surfaced, so a broken disk cannot fail a
// transition that already happened in memory.
func (a *Archive) Persist(snapshot *proposal.State) {
	if err := a.Save(snapshot); err != nil {
		a.logger.Error("failed to persist session %s: %v", snapshot.SessionID, err)
	}
}

// Save upserts a session snapshot and returns any error.
func (a *Archive) Save(snapshot *proposal.State) error {
	if snapshot == nil || snapshot.SessionID == "" {
		return fmt.Errorf("snapshot session id cannot be empty")
	}

	blob, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot for %s: %w", snapshot.SessionID, err)
	}

	_, err = a.db.Exec(`
		INSERT INTO sessions (session_id, current_step, approval_status, client_name, updated_at, snapshot)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			current_step    = excluded.current_step,
			approval_status = excluded.approval_status,
			client_name     = excluded.client_name,
			updated_at      = excluded.updated_at,
			snapshot        = excluded.snapshot
	`,
		snapshot.SessionID,
		snapshot.CurrentStep.String(),
		snapshot.ApprovalStatus.String(),
		snapshot.CollectedFields[proposal.FieldClientName],
		snapshot.UpdatedAt.UTC().Format(time.RFC3339Nano),
		string(blob),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert session %s: %w", snapshot.SessionID, err)
	}

	return nil
}

// Load retrieves one session snapshot by id. Returns sql.ErrNoRows if absent.
func (a *Archive) Load(sessionID string) (*proposal.State, error) {
	var blob string
	err := a.db.QueryRow(`SELECT snapshot FROM sessions WHERE session_id = ?`, sessionID).Scan(&blob)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}

	var snapshot proposal.State
	if err := json.Unmarshal([]byte(blob), &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session %s: %w", sessionID, err)
	}
	return &snapshot, nil
}

// LoadAll returns every archived session snapshot, oldest first. Used at
// startup to repopulate the in-memory store.
func (a *Archive) LoadAll() ([]*proposal.State, error) {
	rows, err := a.db.Query(`SELECT snapshot FROM sessions ORDER BY updated_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var snapshots []*proposal.State
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}

		var snapshot proposal.State
		if err := json.Unmarshal([]byte(blob), &snapshot); err != nil {
			return nil, fmt.Errorf("failed to unmarshal archived session: %w", err)
		}
		snapshots = append(snapshots, &snapshot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}

	return snapshots, nil
}

// Close closes the database connection. Should be called during shutdown.
func (a *Archive) Close() error {
	if err := a.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}
