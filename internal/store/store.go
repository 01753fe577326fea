// Package store persists the export-job ledger: one row per HubSpot export
// started through the service, updated as polling settles.
package store

import (
	"context"
	"errors"

	"github.com/sells-group/dealdesk/internal/model"
)

// ErrNotFound is returned when an export record does not exist.
var ErrNotFound = errors.New("store: export not found")

// ExportFilter specifies criteria for listing exports.
type ExportFilter struct {
	Status model.ExportState `json:"status,omitempty"`
	Limit  int               `json:"limit,omitempty"`
}

const defaultListLimit = 50

// Store defines the persistence interface for export jobs.
type Store interface {
	CreateExport(ctx context.Context, exportID, name string) (*model.ExportRecord, error)
	UpdateExport(ctx context.Context, exportID string, status model.ExportState, downloadURL, errMsg string) error
	GetExport(ctx context.Context, exportID string) (*model.ExportRecord, error)
	ListExports(ctx context.Context, filter ExportFilter) ([]model.ExportRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
