package crm

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/dealdesk/internal/model"
	"github.com/sells-group/dealdesk/internal/store"
	"github.com/sells-group/dealdesk/pkg/hubspot"
)

const (
	msgExportFailed = "Export failed"
	msgNoDownload   = "Export completed but no download URL provided"
)

// ExportResult is a finished deal export.
type ExportResult struct {
	ExportID    string `json:"exportId"`
	StatusURL   string `json:"statusUrl"`
	DownloadURL string `json:"downloadUrl"`
}

// StartDealExport asks HubSpot to build an XLS export of all deals.
func (s *Service) StartDealExport(ctx context.Context) (model.ExportJob, error) {
	name := "deals-export-" + strconv.FormatInt(s.now().UnixMilli(), 10)
	req := hubspot.ExportRequest{
		ExportType:                  "VIEW",
		Format:                      "XLS",
		ExportName:                  name,
		ObjectProperties:            append([]string(nil), DealProperties...),
		ObjectType:                  "DEAL",
		Language:                    "EN",
		ExportInternalValuesOptions: []string{"NAMES"},
	}

	resp, err := s.client.StartExport(ctx, req)
	if err != nil {
		return model.ExportJob{}, &ExportError{
			Msg:   "Failed to start export: " + errorDetail(err),
			State: model.ExportFailed,
			Err:   err,
		}
	}

	id := resp.ID.String()
	statusURL := resp.Links["status"]
	if statusURL == "" {
		statusURL = hubspot.StatusURL(id)
	}
	return model.ExportJob{ID: id, StatusURL: statusURL, Name: name}, nil
}

// CheckExportStatus fetches the current state of an export job.
func (s *Service) CheckExportStatus(ctx context.Context, exportID string) (model.ExportStatus, error) {
	resp, err := s.client.GetExportStatus(ctx, exportID)
	if err != nil {
		return model.ExportStatus{}, &ExportError{
			Msg:   "Failed to check export status: " + errorDetail(err),
			State: model.ExportFailed,
			Err:   err,
		}
	}
	return model.ExportStatus{
		Status:      model.ExportState(resp.Status),
		Result:      resp.Result,
		StartedAt:   resp.StartedAt,
		CompletedAt: resp.CompletedAt,
	}, nil
}

// PollExportUntilComplete checks the job immediately, then after the
// initial delay, then at every interval until it completes, fails or the
// timeout elapses. It returns the download URL.
func (s *Service) PollExportUntilComplete(ctx context.Context, exportID string) (string, error) {
	start := s.now()
	poll := s.cfg.Poll

	status, err := s.CheckExportStatus(ctx, exportID)
	if err != nil {
		return "", err
	}
	if url, done, err := settle(status); done {
		return url, err
	}

	if err := s.sleep(ctx, poll.InitialDelay); err != nil {
		return "", err
	}

	for {
		if s.now().Sub(start) > poll.Timeout {
			return "", &ExportError{
				Msg:   "Export timed out after " + humanDuration(poll.Timeout),
				State: model.ExportTimedOut,
			}
		}

		status, err := s.CheckExportStatus(ctx, exportID)
		if err != nil {
			return "", err
		}
		if url, done, err := settle(status); done {
			return url, err
		}

		if err := s.sleep(ctx, poll.Interval); err != nil {
			return "", err
		}
	}
}

// settle maps a terminal status to its outcome. Any other status keeps
// the poller going.
func settle(status model.ExportStatus) (string, bool, error) {
	switch status.Status {
	case model.ExportComplete:
		if status.Result == "" {
			return "", true, &ExportError{Msg: msgNoDownload, State: model.ExportFailed}
		}
		return status.Result, true, nil
	case model.ExportFailed:
		return "", true, &ExportError{Msg: msgExportFailed, State: model.ExportFailed}
	default:
		return "", false, nil
	}
}

// ExportDeals starts an export, records it in the ledger and polls it to
// completion. Ledger failures are logged and never fail the export.
func (s *Service) ExportDeals(ctx context.Context) (ExportResult, error) {
	job, err := s.StartDealExport(ctx)
	if err != nil {
		return ExportResult{}, err
	}
	log := zap.L().With(zap.String("export_id", job.ID))
	log.Info("crm: export started", zap.String("status_url", job.StatusURL))

	s.recordExport(log, func(l store.Store) error {
		_, err := l.CreateExport(ctx, job.ID, job.Name)
		return err
	})

	url, err := s.PollExportUntilComplete(ctx, job.ID)
	if err != nil {
		state := model.ExportFailed
		var ee *ExportError
		if errors.As(err, &ee) {
			state = ee.State
		}
		s.recordExport(log, func(l store.Store) error {
			return l.UpdateExport(context.WithoutCancel(ctx), job.ID, state, "", err.Error())
		})
		return ExportResult{}, err
	}

	s.recordExport(log, func(l store.Store) error {
		return l.UpdateExport(ctx, job.ID, model.ExportComplete, url, "")
	})
	log.Info("crm: export complete")
	return ExportResult{ExportID: job.ID, StatusURL: job.StatusURL, DownloadURL: url}, nil
}

// Exports lists ledger entries newest first. Without a ledger the list is
// empty.
func (s *Service) Exports(ctx context.Context, filter store.ExportFilter) ([]model.ExportRecord, error) {
	if s.ledger == nil {
		return []model.ExportRecord{}, nil
	}
	recs, err := s.ledger.ListExports(ctx, filter)
	if err != nil {
		return nil, err
	}
	if recs == nil {
		recs = []model.ExportRecord{}
	}
	return recs, nil
}

func (s *Service) recordExport(log *zap.Logger, fn func(store.Store) error) {
	if s.ledger == nil {
		return
	}
	if err := fn(s.ledger); err != nil {
		log.Error("crm: export ledger write failed", zap.Error(err))
	}
}

// errorDetail is the API's own message when present, else the HTTP
// status text, else the error itself.
func errorDetail(err error) string {
	var apiErr *hubspot.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Detail()
	}
	return err.Error()
}

func humanDuration(d time.Duration) string {
	if d%time.Minute == 0 {
		m := int(d / time.Minute)
		if m == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", m)
	}
	if d%time.Second == 0 {
		return fmt.Sprintf("%d seconds", int(d/time.Second))
	}
	return d.String()
}
