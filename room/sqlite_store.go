package room

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/kwv/roomscan/internal/logger"
)

// ErrProjectNotFound is returned by SQLiteStore lookups for unknown IDs.
var ErrProjectNotFound = errors.New("project not found")

const projectSchema = `
CREATE TABLE IF NOT EXISTS projects (
    id         TEXT PRIMARY KEY,
    user_id    TEXT NOT NULL,
    name       TEXT NOT NULL,
    payload    TEXT NOT NULL,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_projects_user ON projects (user_id, created_at);
`

// StoredProject is a project row read back from the store.
type StoredProject struct {
	ID        string         `json:"id"`
	UserID    string         `json:"userId"`
	CreatedAt time.Time      `json:"createdAt"`
	Payload   ProjectPayload `json:"project"`
}

// SQLiteStore keeps projects in a local SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLiteStore opens (and migrates) the database at dbPath.
func OpenSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, projectSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply migration: %w", err)
	}

	logger.Sugar.Infow("project store opened", "driver", "sqlite", "path", dbPath)
	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveProject inserts a new project and returns its generated ID.
func (s *SQLiteStore) SaveProject(ctx context.Context, userID string, p ProjectPayload) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("save project: user ID is empty")
	}

	payload, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("save project: marshaling payload: %w", err)
	}

	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO projects (id, user_id, name, payload, created_at)
        VALUES (?, ?, ?, ?, ?)
    `, id, userID, p.Name, string(payload), s.now().UnixMilli())
	if err != nil {
		return "", fmt.Errorf("save project: %w", err)
	}

	logger.Sugar.Infow("project saved", "user", userID, "name", p.Name, "id", id)
	return id, nil
}

// GetProject returns a project by ID.
func (s *SQLiteStore) GetProject(ctx context.Context, id string) (*StoredProject, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT id, user_id, payload, created_at
        FROM projects
        WHERE id = ?
    `, id)

	sp, err := scanProject(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("get project %s: %w", id, ErrProjectNotFound)
		}
		return nil, fmt.Errorf("get project %s: %w", id, err)
	}
	return sp, nil
}

// ListProjects returns a user's projects, oldest first.
func (s *SQLiteStore) ListProjects(ctx context.Context, userID string) ([]StoredProject, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, user_id, payload, created_at
        FROM projects
        WHERE user_id = ?
        ORDER BY created_at, id
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	projects := make([]StoredProject, 0)
	for rows.Next() {
		sp, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("list projects: %w", err)
		}
		projects = append(projects, *sp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*StoredProject, error) {
	var (
		sp        StoredProject
		payload   string
		createdAt int64
	)
	if err := row.Scan(&sp.ID, &sp.UserID, &payload, &createdAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(payload), &sp.Payload); err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}
	sp.CreatedAt = time.UnixMilli(createdAt)
	return &sp, nil
}
