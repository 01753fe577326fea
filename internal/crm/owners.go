package crm

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"github.com/sells-group/dealdesk/internal/model"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Owners lists HubSpot owners, dropping entries with an empty id or a
// malformed email. Failures yield an empty list.
func (s *Service) Owners(ctx context.Context) []model.Owner {
	raw, err := s.listOwners(ctx, struct{}{})
	if err != nil {
		zap.L().Error("crm: fetch owners", zap.Error(err))
		return []model.Owner{}
	}

	owners := make([]model.Owner, 0, len(raw))
	for _, o := range raw {
		id := strings.TrimSpace(o.ID.String())
		if id == "" {
			zap.L().Warn("crm: skipping owner with empty id", zap.String("email", o.Email))
			continue
		}
		if o.Email != "" && !emailPattern.MatchString(o.Email) {
			zap.L().Warn("crm: skipping owner with invalid email",
				zap.String("owner_id", id),
				zap.String("email", o.Email),
			)
			continue
		}
		owners = append(owners, model.Owner{
			ID:        id,
			Email:     o.Email,
			FirstName: o.FirstName,
			LastName:  o.LastName,
			Archived:  o.Archived,
		})
	}
	return owners
}

// FindOwnerIDByEmail returns the id of the owner whose email matches
// case-insensitively, or "" when there is none.
func (s *Service) FindOwnerIDByEmail(ctx context.Context, email string) string {
	if email == "" {
		return ""
	}
	fold := cases.Fold()
	want := fold.String(email)
	for _, o := range s.CachedOwners(ctx) {
		if o.Email != "" && fold.String(o.Email) == want {
			return o.ID
		}
	}
	return ""
}
