package model

import "time"

// ExportState is the lifecycle state of a CRM bulk export job.
type ExportState string

const (
	ExportInProgress ExportState = "IN_PROGRESS"
	ExportComplete   ExportState = "COMPLETE"
	ExportFailed     ExportState = "FAILED"
	// ExportTimedOut is recorded locally when the poller gives up; the
	// remote job may still finish.
	ExportTimedOut ExportState = "TIMED_OUT"
)

// ExportJob identifies a started export.
type ExportJob struct {
	ID        string `json:"id"`
	StatusURL string `json:"statusUrl"`
	Name      string `json:"name,omitempty"`
}

// ExportStatus is a single status poll result. Result holds the download
// URL once the job is complete.
type ExportStatus struct {
	Status      ExportState `json:"status"`
	Result      string      `json:"result,omitempty"`
	StartedAt   string      `json:"startedAt,omitempty"`
	CompletedAt string      `json:"completedAt,omitempty"`
}

// ExportRecord is the local ledger entry for an export job.
type ExportRecord struct {
	ID          string      `json:"id"`
	ExportID    string      `json:"export_id"`
	Name        string      `json:"name"`
	Status      ExportState `json:"status"`
	DownloadURL string      `json:"download_url,omitempty"`
	Error       string      `json:"error,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Terminal reports whether no further transitions are expected.
func (s ExportState) Terminal() bool {
	return s == ExportComplete || s == ExportFailed || s == ExportTimedOut
}
