package crm

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/dealdesk/internal/cache"
	"github.com/sells-group/dealdesk/internal/model"
)

func (s *Service) buildCachedAccessors() {
	ttl := s.cfg.CacheTTLs

	s.cachedDeals = cache.Memoize(s.cache,
		cache.Policy{Name: "deals-search", TTL: ttl.Deals, Tags: []string{TagDeals}},
		s.SearchDeals)

	s.cachedStages = cache.Memoize(s.cache,
		cache.Policy{Name: "deal-stages", TTL: ttl.Stages, Tags: []string{TagStages}},
		func(ctx context.Context, _ struct{}) ([]model.Stage, error) {
			return s.DealStages(ctx), nil
		})

	s.cachedPipelines = cache.Memoize(s.cache,
		cache.Policy{Name: "target-pipelines", TTL: ttl.Pipelines, Tags: []string{TagPipelines}},
		func(ctx context.Context, _ struct{}) ([]model.Pipeline, error) {
			return s.TargetPipelines(ctx), nil
		})

	s.cachedOwners = cache.Memoize(s.cache,
		cache.Policy{Name: "hubspot-owners", TTL: ttl.Owners, Tags: []string{TagOwners}},
		func(ctx context.Context, _ struct{}) ([]model.Owner, error) {
			return s.Owners(ctx), nil
		})
}

// CachedDeals is SearchDeals served from cache for up to the deals TTL.
func (s *Service) CachedDeals(ctx context.Context, opts DealSearchOptions) ([]model.Record, error) {
	return s.cachedDeals(ctx, opts)
}

// CachedDealStages is DealStages served from cache for up to the stages TTL.
func (s *Service) CachedDealStages(ctx context.Context) []model.Stage {
	stages, err := s.cachedStages(ctx, struct{}{})
	if err != nil {
		zap.L().Error("crm: cached deal stages", zap.Error(err))
		return FallbackDealStages()
	}
	return stages
}

// CachedTargetPipelines is TargetPipelines served from cache.
func (s *Service) CachedTargetPipelines(ctx context.Context) []model.Pipeline {
	pipelines, err := s.cachedPipelines(ctx, struct{}{})
	if err != nil {
		zap.L().Error("crm: cached target pipelines", zap.Error(err))
		return []model.Pipeline{}
	}
	return pipelines
}

// CachedOwners is Owners served from cache.
func (s *Service) CachedOwners(ctx context.Context) []model.Owner {
	owners, err := s.cachedOwners(ctx, struct{}{})
	if err != nil {
		zap.L().Error("crm: cached owners", zap.Error(err))
		return []model.Owner{}
	}
	return owners
}

// Invalidate drops every cached value stored under tag.
func (s *Service) Invalidate(ctx context.Context, tag string) error {
	return s.cache.InvalidateTag(ctx, tag)
}
