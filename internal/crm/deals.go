package crm

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/dealdesk/internal/model"
	"github.com/sells-group/dealdesk/pkg/hubspot"
)

var companyProperties = []string{"name", "createdate", "hs_object_id"}

var noteProperties = []string{"hs_note_body", "hs_timestamp", "hubspot_owner_id"}

// maxLookupConcurrency bounds parallel company and note fetches.
const maxLookupConcurrency = 5

// GetDeal returns a deal with its owner and associated companies. Owner and
// company lookups are best effort: failures are logged and skipped.
func (s *Service) GetDeal(ctx context.Context, dealID string) (*model.DealDetail, error) {
	if strings.TrimSpace(dealID) == "" {
		return nil, invalid("Deal ID is required")
	}

	obj, err := s.client.GetObject(ctx, hubspot.ObjectDeals, dealID, DealProperties)
	if err != nil {
		return nil, err
	}
	rec, err := toRecord(obj)
	if err != nil {
		return nil, err
	}
	detail := &model.DealDetail{
		Record:              rec,
		Archived:            obj.Archived,
		AssociatedCompanies: []model.Company{},
	}

	g, gctx := errgroup.WithContext(ctx)
	if ownerID := rec.Properties["hubspot_owner_id"]; ownerID != "" {
		g.Go(func() error {
			owner, err := s.client.GetOwner(gctx, ownerID)
			if err != nil {
				zap.L().Warn("crm: fetch deal owner", zap.String("deal_id", dealID), zap.String("owner_id", ownerID), zap.Error(err))
				return nil
			}
			detail.OwnerInfo = &model.Owner{
				ID:        owner.ID.String(),
				Email:     owner.Email,
				FirstName: owner.FirstName,
				LastName:  owner.LastName,
			}
			return nil
		})
	}
	g.Go(func() error {
		detail.AssociatedCompanies = s.dealCompanies(gctx, dealID)
		return nil
	})
	_ = g.Wait()

	return detail, nil
}

func (s *Service) dealCompanies(ctx context.Context, dealID string) []model.Company {
	assocs, err := s.client.ListAssociations(ctx, hubspot.ObjectDeals, dealID, hubspot.ObjectCompanies)
	if err != nil {
		zap.L().Warn("crm: fetch company associations", zap.String("deal_id", dealID), zap.Error(err))
		return []model.Company{}
	}

	companies := make([]*model.Company, len(assocs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxLookupConcurrency)
	for i, a := range assocs {
		companyID := a.ToObjectID.String()
		g.Go(func() error {
			obj, err := s.client.GetObject(gctx, hubspot.ObjectCompanies, companyID, companyProperties)
			if err != nil {
				zap.L().Warn("crm: fetch company", zap.String("company_id", companyID), zap.Error(err))
				return nil
			}
			companies[i] = &model.Company{ID: obj.ID, Properties: flatten(obj.Properties)}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]model.Company, 0, len(companies))
	for _, c := range companies {
		if c != nil {
			out = append(out, *c)
		}
	}
	return out
}

// UpdateDeal writes the known deal properties in props. Unknown keys are
// ignored; a dealstage must be one of the current deal stages, and an
// empty dealstage is left unchanged.
func (s *Service) UpdateDeal(ctx context.Context, dealID string, props map[string]string) (*model.Record, error) {
	if strings.TrimSpace(dealID) == "" {
		return nil, invalid("Deal ID is required")
	}

	update := make(map[string]string, len(props))
	for k, v := range props {
		if slices.Contains(DealProperties, k) {
			update[k] = v
		}
	}
	if len(update) == 0 {
		return nil, invalid("Request body must include at least one deal property")
	}

	if stage, ok := update["dealstage"]; ok {
		if stage == "" {
			delete(update, "dealstage")
		} else if _, valid := model.StageIDs(s.CachedDealStages(ctx))[stage]; !valid {
			return nil, invalid("Invalid dealstage: " + stage + " is not a valid stage ID")
		}
	}

	obj, err := s.client.UpdateObject(ctx, hubspot.ObjectDeals, dealID, update)
	if err != nil {
		return nil, err
	}
	if err := s.Invalidate(ctx, TagDeals); err != nil {
		zap.L().Warn("crm: invalidate deals cache", zap.Error(err))
	}
	rec, err := toRecord(obj)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListDealNotes returns the notes attached to a deal, newest first. Notes
// that fail to load are skipped.
func (s *Service) ListDealNotes(ctx context.Context, dealID string) ([]model.Record, error) {
	if strings.TrimSpace(dealID) == "" {
		return nil, invalid("Deal ID is required")
	}

	assocs, err := s.client.ListAssociations(ctx, hubspot.ObjectDeals, dealID, hubspot.ObjectNotes)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	notes := []model.Record{}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxLookupConcurrency)
	for _, a := range assocs {
		noteID := a.ToObjectID.String()
		g.Go(func() error {
			obj, err := s.client.GetObject(gctx, hubspot.ObjectNotes, noteID, noteProperties)
			if err != nil {
				zap.L().Warn("crm: fetch note", zap.String("note_id", noteID), zap.Error(err))
				return nil
			}
			rec, err := toRecord(obj)
			if err != nil {
				zap.L().Warn("crm: decode note", zap.String("note_id", noteID), zap.Error(err))
				return nil
			}
			mu.Lock()
			notes = append(notes, rec)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	slices.SortStableFunc(notes, func(a, b model.Record) int {
		return noteTime(b).Compare(noteTime(a))
	})
	return notes, nil
}

// noteTime is hs_timestamp, or the epoch when absent or unparseable.
func noteTime(r model.Record) time.Time {
	t, err := time.Parse(time.RFC3339Nano, r.Properties["hs_timestamp"])
	if err != nil {
		return model.EpochZero
	}
	return t
}

// AddDealNote creates a note and associates it with the deal. It returns
// the new note id.
func (s *Service) AddDealNote(ctx context.Context, dealID, body string) (string, error) {
	return s.addNote(ctx, hubspot.ObjectDeals, dealID, body, hubspot.AssociationTypeNoteToDeal)
}

func (s *Service) addNote(ctx context.Context, toType, toID, body string, assocType int) (string, error) {
	if strings.TrimSpace(toID) == "" {
		return "", invalid("Record ID is required")
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return "", invalid("Note body is required and cannot be empty")
	}

	note, err := s.client.CreateObject(ctx, hubspot.ObjectNotes, map[string]string{
		"hs_timestamp": s.now().UTC().Format(time.RFC3339Nano),
		"hs_note_body": body,
	})
	if err != nil {
		return "", err
	}

	err = s.client.CreateAssociation(ctx, hubspot.ObjectNotes, note.ID, toType, toID, []hubspot.AssociationSpec{
		{AssociationCategory: hubspot.CategoryHubSpotDefined, AssociationTypeID: assocType},
	})
	if err != nil {
		return "", err
	}
	return note.ID, nil
}

func flatten(props map[string]*string) map[string]string {
	out := make(map[string]string, len(props))
	for k, v := range props {
		if v != nil {
			out[k] = *v
		} else {
			out[k] = ""
		}
	}
	return out
}
