package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/dealdesk/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS exports (
	id           TEXT PRIMARY KEY,
	export_id    TEXT NOT NULL UNIQUE,
	name         TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'IN_PROGRESS',
	download_url TEXT,
	error        TEXT,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_exports_status ON exports(status);
CREATE INDEX IF NOT EXISTS idx_exports_created_at ON exports(created_at);
`

// Migrate creates the exports table.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateExport records a newly started export in IN_PROGRESS state.
func (s *SQLiteStore) CreateExport(ctx context.Context, exportID, name string) (*model.ExportRecord, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO exports (id, export_id, name, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, exportID, name, string(model.ExportInProgress), now, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert export %s", exportID)
	}

	return &model.ExportRecord{
		ID:        id,
		ExportID:  exportID,
		Name:      name,
		Status:    model.ExportInProgress,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// UpdateExport sets the terminal state of an export.
func (s *SQLiteStore) UpdateExport(ctx context.Context, exportID string, status model.ExportState, downloadURL, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE exports SET status = ?, download_url = ?, error = ?, updated_at = ? WHERE export_id = ?`,
		string(status), nullString(downloadURL), nullString(errMsg), time.Now().UTC(), exportID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update export %s", exportID)
	}
	return checkRowsAffected(res, exportID)
}

// GetExport returns one export by its HubSpot export id.
func (s *SQLiteStore) GetExport(ctx context.Context, exportID string) (*model.ExportRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, export_id, name, status, download_url, error, created_at, updated_at FROM exports WHERE export_id = ?`,
		exportID,
	)
	rec, err := scanExport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get export %s", exportID)
	}
	return rec, nil
}

// ListExports returns exports newest first.
func (s *SQLiteStore) ListExports(ctx context.Context, filter ExportFilter) ([]model.ExportRecord, error) {
	query := `SELECT id, export_id, name, status, download_url, error, created_at, updated_at FROM exports WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list exports")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.ExportRecord
	for rows.Next() {
		rec, err := scanExport(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan export")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list exports iterate")
}

// helpers

func checkRowsAffected(res sql.Result, exportID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "export %s", exportID)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

type scannable interface {
	Scan(dest ...any) error
}

func scanExport(row scannable) (*model.ExportRecord, error) {
	var rec model.ExportRecord
	var status string
	var downloadURL, errMsg sql.NullString

	if err := row.Scan(&rec.ID, &rec.ExportID, &rec.Name, &status, &downloadURL, &errMsg, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	rec.Status = model.ExportState(status)
	rec.DownloadURL = downloadURL.String
	rec.Error = errMsg.String
	return &rec, nil
}
