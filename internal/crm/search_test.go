package crm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dealdesk/internal/model"
	"github.com/sells-group/dealdesk/pkg/hubspot"
)

func TestSearchDeals_FollowsCursor(t *testing.T) {
	var (
		mu   sync.Mutex
		reqs []hubspot.SearchRequest
	)
	pages := map[string]*hubspot.SearchResponse{
		"": {
			Results: []hubspot.SearchResult{{ID: "1"}, {ID: "2"}},
			Paging:  &hubspot.Paging{Next: &hubspot.PagingNext{After: "2"}},
		},
		"2": {
			Results: []hubspot.SearchResult{{ID: "3"}},
			Paging:  &hubspot.Paging{Next: &hubspot.PagingNext{After: "3"}},
		},
		"3": {Results: []hubspot.SearchResult{{ID: "4"}}},
	}
	client := &mockClient{searchObjects: func(_ context.Context, objectType string, req hubspot.SearchRequest) (*hubspot.SearchResponse, error) {
		assert.Equal(t, hubspot.ObjectDeals, objectType)
		mu.Lock()
		reqs = append(reqs, req)
		mu.Unlock()
		return pages[req.After], nil
	}}
	svc, _ := newTestService(t, client)

	records, err := svc.SearchDeals(context.Background(), DealSearchOptions{})
	require.NoError(t, err)

	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"1", "2", "3", "4"}, ids)

	require.Len(t, reqs, 3)
	assert.Equal(t, []string{"", "2", "3"}, []string{reqs[0].After, reqs[1].After, reqs[2].After})
	assert.Equal(t, 100, reqs[0].Limit)
	assert.Equal(t, []string{"-closedate"}, reqs[0].Sorts)
	assert.Equal(t, DealProperties, reqs[0].Properties)
}

func TestSearchDeals_FilterGroups(t *testing.T) {
	var got hubspot.SearchRequest
	client := &mockClient{searchObjects: func(_ context.Context, _ string, req hubspot.SearchRequest) (*hubspot.SearchResponse, error) {
		got = req
		return &hubspot.SearchResponse{}, nil
	}}
	svc, _ := newTestService(t, client)

	_, err := svc.SearchDeals(context.Background(), DealSearchOptions{})
	require.NoError(t, err)
	require.Len(t, got.FilterGroups, 3)
	for i, id := range DefaultTargetPipelines {
		assert.Equal(t, []hubspot.Filter{{PropertyName: "pipeline", Operator: "EQ", Value: id}}, got.FilterGroups[i].Filters)
	}

	_, err = svc.SearchDeals(context.Background(), DealSearchOptions{PipelineID: "42", Limit: 10, Sorts: []string{"amount"}})
	require.NoError(t, err)
	require.Len(t, got.FilterGroups, 1)
	assert.Equal(t, "42", got.FilterGroups[0].Filters[0].Value)
	assert.Equal(t, 10, got.Limit)
	assert.Equal(t, []string{"amount"}, got.Sorts)
}

func TestSearchDeals_FlattensProperties(t *testing.T) {
	client := &mockClient{searchObjects: func(context.Context, string, hubspot.SearchRequest) (*hubspot.SearchResponse, error) {
		return &hubspot.SearchResponse{Results: []hubspot.SearchResult{
			{
				ID: "7",
				Properties: map[string]*string{
					"dealname":   strPtr("Acme"),
					"amount":     nil,
					"createdate": strPtr("2024-01-02T03:04:05.678Z"),
				},
				CreatedAt: "2024-01-02T03:04:05.678Z",
				UpdatedAt: "2024-02-01T00:00:00Z",
			},
			{ID: "8", Properties: map[string]*string{}},
		}}, nil
	}}
	svc, _ := newTestService(t, client)

	records, err := svc.SearchDeals(context.Background(), DealSearchOptions{})
	require.NoError(t, err)
	require.Len(t, records, 2)

	r := records[0]
	assert.Equal(t, "Acme", r.Properties["dealname"])
	assert.Contains(t, r.Properties, "amount")
	assert.Equal(t, "", r.Properties["amount"])
	assert.Equal(t, "2024-01-02T03:04:05.678Z", r.Properties["createdAt"])
	assert.NotContains(t, r.Properties, "createdate")
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 678000000, time.UTC), r.CreatedAt)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), r.UpdatedAt)

	assert.Equal(t, model.EpochZero, records[1].CreatedAt)
	assert.Equal(t, model.EpochZero, records[1].UpdatedAt)
}

func TestSearchDeals_EmptyIsNotNil(t *testing.T) {
	client := &mockClient{searchObjects: func(context.Context, string, hubspot.SearchRequest) (*hubspot.SearchResponse, error) {
		return &hubspot.SearchResponse{}, nil
	}}
	svc, _ := newTestService(t, client)

	records, err := svc.SearchDeals(context.Background(), DealSearchOptions{})
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestSearchDeals_MalformedPageFails(t *testing.T) {
	tests := []struct {
		name string
		resp *hubspot.SearchResponse
	}{
		{"nil response", nil},
		{"missing id", &hubspot.SearchResponse{Results: []hubspot.SearchResult{{ID: ""}}}},
		{"bad timestamp", &hubspot.SearchResponse{Results: []hubspot.SearchResult{{ID: "1", CreatedAt: "yesterday"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &mockClient{searchObjects: func(context.Context, string, hubspot.SearchRequest) (*hubspot.SearchResponse, error) {
				return tt.resp, nil
			}}
			svc, _ := newTestService(t, client)

			_, err := svc.SearchDeals(context.Background(), DealSearchOptions{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "crm: search deals")
		})
	}
}

func TestSearchDeals_APIErrorReturnedAsIs(t *testing.T) {
	apiErr := notFound("gone")
	client := &mockClient{searchObjects: func(context.Context, string, hubspot.SearchRequest) (*hubspot.SearchResponse, error) {
		return nil, apiErr
	}}
	svc, _ := newTestService(t, client)

	_, err := svc.SearchDeals(context.Background(), DealSearchOptions{})
	assert.Same(t, apiErr, err)
}

func TestSearchDeals_SecondPageErrorFailsSearch(t *testing.T) {
	client := &mockClient{searchObjects: func(_ context.Context, _ string, req hubspot.SearchRequest) (*hubspot.SearchResponse, error) {
		if req.After == "" {
			return &hubspot.SearchResponse{
				Results: []hubspot.SearchResult{{ID: "1"}},
				Paging:  &hubspot.Paging{Next: &hubspot.PagingNext{After: "1"}},
			}, nil
		}
		return nil, errors.New("connection reset")
	}}
	svc, _ := newTestService(t, client)

	records, err := svc.SearchDeals(context.Background(), DealSearchOptions{})
	require.Error(t, err)
	assert.Nil(t, records)
}

func TestSearchTickets(t *testing.T) {
	var got hubspot.SearchRequest
	var calls int
	client := &mockClient{searchObjects: func(_ context.Context, objectType string, req hubspot.SearchRequest) (*hubspot.SearchResponse, error) {
		assert.Equal(t, hubspot.ObjectTickets, objectType)
		calls++
		got = req
		return &hubspot.SearchResponse{
			Results: []hubspot.SearchResult{{ID: "t1", Properties: map[string]*string{"subject": strPtr("Help")}}},
			Paging:  &hubspot.Paging{Next: &hubspot.PagingNext{After: "1"}},
		}, nil
	}}
	svc, _ := newTestService(t, client)

	records, err := svc.SearchTickets(context.Background(), TicketSearchOptions{OwnerID: "99"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Help", records[0].Properties["subject"])
	// Tickets are a single page even when a cursor is returned.
	assert.Equal(t, 1, calls)
	assert.Equal(t, []hubspot.FilterGroup{{Filters: []hubspot.Filter{
		{PropertyName: "hubspot_owner_id", Operator: "EQ", Value: "99"},
	}}}, got.FilterGroups)
	assert.Equal(t, []string{"-createdate"}, got.Sorts)
	assert.Equal(t, TicketProperties, got.Properties)

	_, err = svc.SearchTickets(context.Background(), TicketSearchOptions{})
	require.NoError(t, err)
	assert.NotNil(t, got.FilterGroups)
	assert.Empty(t, got.FilterGroups)
}
