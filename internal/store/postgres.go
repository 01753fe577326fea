package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/dealdesk/internal/model"
)

// Pool is the subset of pgxpool.Pool used by the store. pgxmock satisfies
// it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS exports (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	export_id    TEXT NOT NULL UNIQUE,
	name         TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'IN_PROGRESS',
	download_url TEXT,
	error        TEXT,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_exports_status ON exports(status);
CREATE INDEX IF NOT EXISTS idx_exports_created_at ON exports(created_at);
`

// Migrate creates the exports table.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// CreateExport records a newly started export in IN_PROGRESS state.
func (s *PostgresStore) CreateExport(ctx context.Context, exportID, name string) (*model.ExportRecord, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO exports (id, export_id, name, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, exportID, name, string(model.ExportInProgress), now, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert export %s", exportID)
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
func (s *PostgresStore) UpdateExport(ctx context.Context, exportID string, status model.ExportState, downloadURL, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE exports SET status = $1, download_url = NULLIF($2, ''), error = NULLIF($3, ''), updated_at = $4 WHERE export_id = $5`,
		string(status), downloadURL, errMsg, time.Now().UTC(), exportID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update export %s", exportID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "export %s", exportID)
	}
	return nil
}

// GetExport returns one export by its HubSpot export id.
func (s *PostgresStore) GetExport(ctx context.Context, exportID string) (*model.ExportRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, export_id, name, status, COALESCE(download_url, ''), COALESCE(error, ''), created_at, updated_at FROM exports WHERE export_id = $1`,
		exportID,
	)
	rec, err := scanPgExport(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get export %s", exportID)
	}
	return rec, nil
}

// ListExports returns exports newest first.
func (s *PostgresStore) ListExports(ctx context.Context, filter ExportFilter) ([]model.ExportRecord, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, export_id, name, status, COALESCE(download_url, ''), COALESCE(error, ''), created_at, updated_at FROM exports
		 WHERE ($1 = '' OR status = $1) ORDER BY created_at DESC LIMIT $2`,
		string(filter.Status), limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list exports")
	}
	defer rows.Close()

	var out []model.ExportRecord
	for rows.Next() {
		rec, err := scanPgExport(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan export")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list exports iterate")
}

func scanPgExport(row scannable) (*model.ExportRecord, error) {
	var rec model.ExportRecord
	var status string
	if err := row.Scan(&rec.ID, &rec.ExportID, &rec.Name, &status, &rec.DownloadURL, &rec.Error, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	rec.Status = model.ExportState(status)
	return &rec, nil
}
