package crm

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dealdesk/internal/model"
	"github.com/sells-group/dealdesk/pkg/hubspot"
)

const defaultSearchLimit = 100

// DealProperties are the deal properties requested by search and detail
// calls, and the only keys UpdateDeal accepts.
var DealProperties = []string{
	"dealname",
	"amount",
	"closedate",
	"dealstage",
	"pipeline",
	"hubspot_owner_id",
	"createdate",
	"notes",
}

// TicketProperties are the ticket properties requested by search and
// detail calls.
var TicketProperties = []string{
	"subject",
	"content",
	"hs_pipeline_stage",
	"hs_ticket_priority",
	"createdate",
	"hubspot_owner_id",
}

// DealSearchOptions selects and orders deals. Zero values use defaults:
// limit 100, newest close date first, every allow-listed pipeline.
type DealSearchOptions struct {
	Limit      int      `json:"limit,omitempty"`
	Sorts      []string `json:"sorts,omitempty"`
	PipelineID string   `json:"pipelineId,omitempty"`
}

// TicketSearchOptions selects and orders tickets.
type TicketSearchOptions struct {
	OwnerID string   `json:"ownerId,omitempty"`
	Limit   int      `json:"limit,omitempty"`
	Sorts   []string `json:"sorts,omitempty"`
}

// SearchDeals returns every deal matching the pipeline filter, following
// the result cursor until HubSpot reports no further page. A malformed
// page fails the whole search.
func (s *Service) SearchDeals(ctx context.Context, opts DealSearchOptions) ([]model.Record, error) {
	req := hubspot.SearchRequest{
		FilterGroups: s.pipelineFilterGroups(opts.PipelineID),
		Properties:   append([]string(nil), DealProperties...),
		Limit:        opts.Limit,
		Sorts:        opts.Sorts,
	}
	if req.Limit <= 0 {
		req.Limit = defaultSearchLimit
	}
	if len(req.Sorts) == 0 {
		req.Sorts = []string{"-closedate"}
	}

	records := []model.Record{}
	for {
		resp, err := s.searchDeals(ctx, req)
		if err != nil {
			return nil, err
		}
		page, err := toRecords(resp)
		if err != nil {
			return nil, eris.Wrap(err, "crm: search deals")
		}
		records = append(records, page...)

		req.After = resp.Paging.NextAfter()
		if req.After == "" {
			return records, nil
		}
	}
}

// pipelineFilterGroups ORs one equality group per pipeline.
func (s *Service) pipelineFilterGroups(pipelineID string) []hubspot.FilterGroup {
	ids := s.cfg.TargetPipelines
	if pipelineID != "" {
		ids = []string{pipelineID}
	}
	groups := make([]hubspot.FilterGroup, 0, len(ids))
	for _, id := range ids {
		groups = append(groups, hubspot.FilterGroup{
			Filters: []hubspot.Filter{{PropertyName: "pipeline", Operator: hubspot.OperatorEQ, Value: id}},
		})
	}
	return groups
}

// SearchTickets returns one page of tickets, optionally limited to an
// owner.
func (s *Service) SearchTickets(ctx context.Context, opts TicketSearchOptions) ([]model.Record, error) {
	req := hubspot.SearchRequest{
		FilterGroups: []hubspot.FilterGroup{},
		Properties:   append([]string(nil), TicketProperties...),
		Limit:        opts.Limit,
		Sorts:        opts.Sorts,
	}
	if req.Limit <= 0 {
		req.Limit = defaultSearchLimit
	}
	if len(req.Sorts) == 0 {
		req.Sorts = []string{"-createdate"}
	}
	if opts.OwnerID != "" {
		req.FilterGroups = append(req.FilterGroups, hubspot.FilterGroup{
			Filters: []hubspot.Filter{{PropertyName: "hubspot_owner_id", Operator: hubspot.OperatorEQ, Value: opts.OwnerID}},
		})
	}

	resp, err := s.searchTickets(ctx, req)
	if err != nil {
		return nil, err
	}
	records, err := toRecords(resp)
	if err != nil {
		return nil, eris.Wrap(err, "crm: search tickets")
	}
	return records, nil
}

func toRecords(resp *hubspot.SearchResponse) ([]model.Record, error) {
	if resp == nil {
		return nil, eris.New("empty search response")
	}
	out := make([]model.Record, 0, len(resp.Results))
	for i := range resp.Results {
		rec, err := toRecord(&resp.Results[i])
		if err != nil {
			return nil, eris.Wrapf(err, "result %d", i)
		}
		out = append(out, rec)
	}
	return out, nil
}

// toRecord flattens a search result: null properties become "", createdate
// is exposed as createdAt, and missing timestamps fall back to the epoch.
func toRecord(r *hubspot.SearchResult) (model.Record, error) {
	if r.ID == "" {
		return model.Record{}, eris.New("result has no id")
	}

	props := make(map[string]string, len(r.Properties))
	for k, v := range r.Properties {
		if k == "createdate" {
			k = "createdAt"
		}
		if v == nil {
			props[k] = ""
			continue
		}
		props[k] = *v
	}

	created, err := parseTimestamp(r.CreatedAt)
	if err != nil {
		return model.Record{}, eris.Wrapf(err, "record %s createdAt", r.ID)
	}
	updated, err := parseTimestamp(r.UpdatedAt)
	if err != nil {
		return model.Record{}, eris.Wrapf(err, "record %s updatedAt", r.ID)
	}

	return model.Record{ID: r.ID, Properties: props, CreatedAt: created, UpdatedAt: updated}, nil
}

func parseTimestamp(v string) (time.Time, error) {
	if v == "" {
		return model.EpochZero, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "parse timestamp %q", v)
	}
	return t.UTC(), nil
}
