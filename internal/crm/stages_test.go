package crm

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dealdesk/internal/model"
	"github.com/sells-group/dealdesk/pkg/hubspot"
)

func pipelinesStub(pipelines ...hubspot.Pipeline) func(context.Context, string) ([]hubspot.Pipeline, error) {
	return func(context.Context, string) ([]hubspot.Pipeline, error) {
		return pipelines, nil
	}
}

func TestDealStages_NormalizesAndSorts(t *testing.T) {
	client := &mockClient{getPipelines: pipelinesStub(hubspot.Pipeline{
		ID: "default",
		Stages: []hubspot.PipelineStage{
			{ID: "won", Label: "Won", DisplayOrder: intPtr(2), Metadata: map[string]string{"probability": "100"}},
			{ID: "new", Label: "New", DisplayOrder: intPtr(0), Metadata: map[string]string{"probability": "10"}},
			{ID: "demo", Label: "Demo", DisplayOrder: intPtr(1), Metadata: map[string]string{"probability": " 55.5 "}},
		},
	})}
	svc, _ := newTestService(t, client)

	stages := svc.DealStages(context.Background())
	require.Len(t, stages, 3)
	assert.Equal(t, []string{"new", "demo", "won"}, []string{stages[0].ID, stages[1].ID, stages[2].ID})
	assert.InDelta(t, 0.1, stages[0].Probability, 1e-9)
	assert.InDelta(t, 0.555, stages[1].Probability, 1e-9)
	assert.InDelta(t, 1.0, stages[2].Probability, 1e-9)
	assert.Equal(t, "Demo", stages[1].Label)
}

func TestDealStages_MissingOrderUsesIndex(t *testing.T) {
	client := &mockClient{getPipelines: pipelinesStub(hubspot.Pipeline{
		ID: "default",
		Stages: []hubspot.PipelineStage{
			{ID: "a", DisplayOrder: intPtr(5)},
			{ID: "b"},
			{ID: "c"},
		},
	})}
	svc, _ := newTestService(t, client)

	stages := svc.DealStages(context.Background())
	require.Len(t, stages, 3)
	assert.Equal(t, "b", stages[0].ID)
	assert.Equal(t, 1, stages[0].DisplayOrder)
	assert.Equal(t, "c", stages[1].ID)
	assert.Equal(t, "a", stages[2].ID)
	// Absent probability means zero.
	assert.Zero(t, stages[0].Probability)
}

func TestDealStages_Fallback(t *testing.T) {
	tests := []struct {
		name      string
		pipelines func(context.Context, string) ([]hubspot.Pipeline, error)
	}{
		{"fetch error", func(context.Context, string) ([]hubspot.Pipeline, error) {
			return nil, errors.New("boom")
		}},
		{"no pipelines", pipelinesStub()},
		{"no stages", pipelinesStub(hubspot.Pipeline{ID: "p"})},
		{"unparseable probability", pipelinesStub(hubspot.Pipeline{ID: "p", Stages: []hubspot.PipelineStage{
			{ID: "s", Metadata: map[string]string{"probability": "high"}},
		}})},
		{"NaN probability", pipelinesStub(hubspot.Pipeline{ID: "p", Stages: []hubspot.PipelineStage{
			{ID: "s", Metadata: map[string]string{"probability": "NaN"}},
		}})},
		{"probability above 100", pipelinesStub(hubspot.Pipeline{ID: "p", Stages: []hubspot.PipelineStage{
			{ID: "s", Metadata: map[string]string{"probability": "150"}},
		}})},
		{"negative display order", pipelinesStub(hubspot.Pipeline{ID: "p", Stages: []hubspot.PipelineStage{
			{ID: "s", DisplayOrder: intPtr(-1)},
		}})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t, &mockClient{getPipelines: tt.pipelines})
			assert.Equal(t, FallbackDealStages(), svc.DealStages(context.Background()))
		})
	}
}

func TestFallbackDealStages_ReturnsCopy(t *testing.T) {
	stages := FallbackDealStages()
	require.Len(t, stages, 7)
	assert.Equal(t, "appointmentscheduled", stages[0].ID)
	assert.Equal(t, "closedlost", stages[6].ID)

	stages[0].ID = "mutated"
	assert.Equal(t, "appointmentscheduled", FallbackDealStages()[0].ID)
}

func TestDealStages_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	client := &mockClient{getPipelines: func(context.Context, string) ([]hubspot.Pipeline, error) {
		if calls.Add(1) < 3 {
			return nil, rateLimited()
		}
		return []hubspot.Pipeline{{ID: "p", Stages: []hubspot.PipelineStage{{ID: "only"}}}}, nil
	}}
	svc, clock := newTestService(t, client)

	stages := svc.DealStages(context.Background())
	require.Len(t, stages, 1)
	assert.Equal(t, "only", stages[0].ID)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, clock.Sleeps())
}

func TestDealStages_RateLimitExhaustedFallsBack(t *testing.T) {
	var calls atomic.Int32
	client := &mockClient{getPipelines: func(context.Context, string) ([]hubspot.Pipeline, error) {
		calls.Add(1)
		return nil, rateLimited()
	}}
	svc, _ := newTestService(t, client)

	assert.Equal(t, FallbackDealStages(), svc.DealStages(context.Background()))
	assert.Equal(t, int32(4), calls.Load())
}

func TestTargetPipelines_FiltersAllowList(t *testing.T) {
	client := &mockClient{getPipelines: pipelinesStub(
		hubspot.Pipeline{ID: "859172223", Label: "Second", Stages: []hubspot.PipelineStage{
			{ID: "b2", DisplayOrder: intPtr(1)},
			{ID: "b1", DisplayOrder: intPtr(0), Metadata: map[string]string{"probability": "20"}},
		}},
		hubspot.Pipeline{ID: "other", Label: "Other"},
		hubspot.Pipeline{ID: "859017476", Label: "First"},
	)}
	svc, _ := newTestService(t, client)

	pipelines := svc.TargetPipelines(context.Background())
	require.Len(t, pipelines, 2)
	assert.Equal(t, "859172223", pipelines[0].ID)
	assert.Equal(t, "Second", pipelines[0].Label)
	assert.Equal(t, []model.Stage{
		{ID: "b1", DisplayOrder: 0, Probability: 0.2},
		{ID: "b2", DisplayOrder: 1},
	}, pipelines[0].Stages)
	assert.Equal(t, "859017476", pipelines[1].ID)
	assert.Empty(t, pipelines[1].Stages)
}

func TestTargetPipelines_FailureIsEmpty(t *testing.T) {
	client := &mockClient{getPipelines: func(context.Context, string) ([]hubspot.Pipeline, error) {
		return nil, notFound("nope")
	}}
	svc, _ := newTestService(t, client)

	pipelines := svc.TargetPipelines(context.Background())
	assert.NotNil(t, pipelines)
	assert.Empty(t, pipelines)
}

func TestTargetPipelines_InvalidStageIsEmpty(t *testing.T) {
	client := &mockClient{getPipelines: pipelinesStub(hubspot.Pipeline{
		ID:     "859017476",
		Stages: []hubspot.PipelineStage{{ID: "s", Metadata: map[string]string{"probability": "-5"}}},
	})}
	svc, _ := newTestService(t, client)

	assert.Empty(t, svc.TargetPipelines(context.Background()))
}

func TestTicketStages(t *testing.T) {
	var gotType string
	client := &mockClient{getPipelines: func(_ context.Context, objectType string) ([]hubspot.Pipeline, error) {
		gotType = objectType
		return []hubspot.Pipeline{{ID: "0", Stages: []hubspot.PipelineStage{
			{ID: "4", Label: "Closed", DisplayOrder: intPtr(3)},
			{ID: "1", Label: "New", DisplayOrder: intPtr(0)},
		}}}, nil
	}}
	svc, _ := newTestService(t, client)

	stages := svc.TicketStages(context.Background())
	assert.Equal(t, hubspot.ObjectTickets, gotType)
	assert.Equal(t, []model.Stage{
		{ID: "1", Label: "New", DisplayOrder: 0},
		{ID: "4", Label: "Closed", DisplayOrder: 3},
	}, stages)
}

func TestTicketStages_FailureIsEmpty(t *testing.T) {
	client := &mockClient{getPipelines: func(context.Context, string) ([]hubspot.Pipeline, error) {
		return nil, errors.New("boom")
	}}
	svc, _ := newTestService(t, client)

	stages := svc.TicketStages(context.Background())
	assert.NotNil(t, stages)
	assert.Empty(t, stages)
}
