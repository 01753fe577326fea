package crm

import (
	"context"
	"slices"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dealdesk/internal/model"
	"github.com/sells-group/dealdesk/pkg/hubspot"
)

// fallbackDealStages is HubSpot's default sales pipeline.
var fallbackDealStages = []model.Stage{
	{ID: "appointmentscheduled", Label: "Appointment Scheduled", DisplayOrder: 0, Probability: 0.2},
	{ID: "qualifiedtobuy", Label: "Qualified To Buy", DisplayOrder: 1, Probability: 0.4},
	{ID: "presentationscheduled", Label: "Presentation Scheduled", DisplayOrder: 2, Probability: 0.6},
	{ID: "decisionmakerboughtin", Label: "Decision Maker Bought-In", DisplayOrder: 3, Probability: 0.8},
	{ID: "contractsent", Label: "Contract Sent", DisplayOrder: 4, Probability: 0.9},
	{ID: "closedwon", Label: "Closed Won", DisplayOrder: 5, Probability: 1},
	{ID: "closedlost", Label: "Closed Lost", DisplayOrder: 6, Probability: 0},
}

// FallbackDealStages returns a copy of the static stage table used when
// the pipeline listing is unavailable.
func FallbackDealStages() []model.Stage {
	return slices.Clone(fallbackDealStages)
}

// DealStages returns the stages of the first deal pipeline, normalized and
// sorted by display order. It never fails: any fetch or validation problem
// is logged and the fallback table is returned instead.
func (s *Service) DealStages(ctx context.Context) []model.Stage {
	pipelines, err := s.dealPipelines(ctx, hubspot.ObjectDeals)
	if err != nil {
		zap.L().Error("crm: fetch deal stages", zap.Error(err))
		return FallbackDealStages()
	}
	if len(pipelines) == 0 || len(pipelines[0].Stages) == 0 {
		return FallbackDealStages()
	}

	stages, err := normalizeDealStages(pipelines[0].Stages)
	if err != nil {
		zap.L().Error("crm: normalize deal stages",
			zap.String("pipeline_id", pipelines[0].ID),
			zap.Error(err),
		)
		return FallbackDealStages()
	}
	return stages
}

// TargetPipelines returns the allow-listed deal pipelines in API order with
// normalized stages. Failures yield an empty list.
func (s *Service) TargetPipelines(ctx context.Context) []model.Pipeline {
	pipelines, err := s.dealPipelines(ctx, hubspot.ObjectDeals)
	if err != nil {
		zap.L().Error("crm: fetch target pipelines", zap.Error(err))
		return []model.Pipeline{}
	}

	out := []model.Pipeline{}
	for _, p := range pipelines {
		if _, ok := s.allowed[p.ID]; !ok {
			continue
		}
		stages, err := normalizeDealStages(p.Stages)
		if err != nil {
			zap.L().Error("crm: normalize pipeline stages",
				zap.String("pipeline_id", p.ID),
				zap.Error(err),
			)
			return []model.Pipeline{}
		}
		out = append(out, model.Pipeline{ID: p.ID, Label: p.Label, Stages: stages})
	}
	return out
}

// TicketStages returns the stages of the first ticket pipeline sorted by
// display order, or an empty list when none are available.
func (s *Service) TicketStages(ctx context.Context) []model.Stage {
	pipelines, err := s.ticketPipelines(ctx, hubspot.ObjectTickets)
	if err != nil {
		zap.L().Error("crm: fetch ticket stages", zap.Error(err))
		return []model.Stage{}
	}
	if len(pipelines) == 0 || len(pipelines[0].Stages) == 0 {
		return []model.Stage{}
	}

	stages := make([]model.Stage, 0, len(pipelines[0].Stages))
	for i, raw := range pipelines[0].Stages {
		stages = append(stages, model.Stage{
			ID:           raw.ID,
			Label:        raw.Label,
			DisplayOrder: displayOrder(raw, i),
		})
	}
	sortStages(stages)
	return stages
}

func normalizeDealStages(raw []hubspot.PipelineStage) ([]model.Stage, error) {
	stages := make([]model.Stage, 0, len(raw))
	for i, r := range raw {
		prob, err := parseProbability(r.Metadata["probability"])
		if err != nil {
			return nil, eris.Wrapf(err, "stage %s", r.ID)
		}
		stages = append(stages, model.Stage{
			ID:           r.ID,
			Label:        r.Label,
			DisplayOrder: displayOrder(r, i),
			Probability:  prob,
		})
	}
	sortStages(stages)

	for _, st := range stages {
		if err := validateStage(st); err != nil {
			return nil, err
		}
	}
	return stages, nil
}

// parseProbability converts HubSpot's 0-100 metadata string to [0,1].
// Absent or empty means 0.
func parseProbability(v string) (float64, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, eris.Wrapf(err, "probability %q", v)
	}
	return f / 100, nil
}

func displayOrder(r hubspot.PipelineStage, index int) int {
	if r.DisplayOrder != nil {
		return *r.DisplayOrder
	}
	return index
}

func sortStages(stages []model.Stage) {
	slices.SortStableFunc(stages, func(a, b model.Stage) int {
		return a.DisplayOrder - b.DisplayOrder
	})
}

func validateStage(st model.Stage) error {
	// NaN fails both comparisons.
	if !(st.Probability >= 0 && st.Probability <= 1) {
		return eris.Errorf("stage %s: probability %v outside [0,1]", st.ID, st.Probability)
	}
	if st.DisplayOrder < 0 {
		return eris.Errorf("stage %s: negative display order %d", st.ID, st.DisplayOrder)
	}
	return nil
}
