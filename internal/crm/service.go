// Package crm is the request-coordination and aggregation core over the
// HubSpot CRM: stage normalization, paginated search, cached accessors,
// record operations and the export poller.
package crm

import (
	"context"
	"time"

	"github.com/sells-group/dealdesk/internal/cache"
	"github.com/sells-group/dealdesk/internal/model"
	"github.com/sells-group/dealdesk/internal/resilience"
	"github.com/sells-group/dealdesk/internal/store"
	"github.com/sells-group/dealdesk/pkg/hubspot"
)

// Coordinator keys. Calls sharing a key while one is in flight receive that
// call's result, whatever their arguments.
const (
	KeyDealPipelines   = "get-all-pipelines"
	KeyTicketPipelines = "get-ticket-pipelines"
	KeySearchDeals     = "search-deals"
	KeySearchTickets   = "search-tickets"
	KeyOwners          = "get-owners-page"
)

// Cache tags.
const (
	TagDeals     = "hubspot-deals"
	TagStages    = "hubspot-stages"
	TagPipelines = "hubspot-pipelines"
	TagOwners    = "hubspot-owners"
)

// CacheTTLs sets how long each cached accessor serves a stored value.
type CacheTTLs struct {
	Deals     time.Duration
	Stages    time.Duration
	Pipelines time.Duration
	Owners    time.Duration
}

// PollConfig controls export status polling.
type PollConfig struct {
	InitialDelay time.Duration
	Interval     time.Duration
	Timeout      time.Duration
}

// Config holds service policy.
type Config struct {
	// TargetPipelines is the allow-list of deal pipeline ids.
	TargetPipelines []string
	// MaxRetries per coordinated call; negative uses the coordinator default.
	MaxRetries int
	CacheTTLs  CacheTTLs
	Poll       PollConfig
}

// DefaultTargetPipelines are the deal pipelines shown when none are configured.
var DefaultTargetPipelines = []string{"859017476", "859172223", "859283831"}

// DefaultConfig returns the production policy.
func DefaultConfig() Config {
	return Config{
		TargetPipelines: DefaultTargetPipelines,
		MaxRetries:      -1,
		CacheTTLs: CacheTTLs{
			Deals:     300 * time.Second,
			Stages:    3600 * time.Second,
			Pipelines: 300 * time.Second,
			Owners:    3600 * time.Second,
		},
		Poll: PollConfig{
			InitialDelay: 2 * time.Second,
			Interval:     3 * time.Second,
			Timeout:      5 * time.Minute,
		},
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if len(c.TargetPipelines) == 0 {
		c.TargetPipelines = d.TargetPipelines
	}
	if c.CacheTTLs.Deals <= 0 {
		c.CacheTTLs.Deals = d.CacheTTLs.Deals
	}
	if c.CacheTTLs.Stages <= 0 {
		c.CacheTTLs.Stages = d.CacheTTLs.Stages
	}
	if c.CacheTTLs.Pipelines <= 0 {
		c.CacheTTLs.Pipelines = d.CacheTTLs.Pipelines
	}
	if c.CacheTTLs.Owners <= 0 {
		c.CacheTTLs.Owners = d.CacheTTLs.Owners
	}
	if c.Poll.InitialDelay <= 0 {
		c.Poll.InitialDelay = d.Poll.InitialDelay
	}
	if c.Poll.Interval <= 0 {
		c.Poll.Interval = d.Poll.Interval
	}
	if c.Poll.Timeout <= 0 {
		c.Poll.Timeout = d.Poll.Timeout
	}
	return c
}

// Option configures a Service.
type Option func(*Service)

// WithCache sets the store behind the cached accessors. Defaults to an
// in-process cache.Memory.
func WithCache(st cache.Store) Option {
	return func(s *Service) {
		s.cache = st
	}
}

// WithLedger records started exports and their outcome.
func WithLedger(l store.Store) Option {
	return func(s *Service) {
		s.ledger = l
	}
}

// WithClock replaces the wall clock and sleep used by the export poller.
func WithClock(now func() time.Time, sleep resilience.SleepFunc) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
		if sleep != nil {
			s.sleep = sleep
		}
	}
}

// Service implements the CRM operations on top of a HubSpot client.
type Service struct {
	client hubspot.Client
	coord  *resilience.Coordinator
	cfg    Config
	cache  cache.Store
	ledger store.Store
	now    func() time.Time
	sleep  resilience.SleepFunc

	allowed map[string]struct{}

	dealPipelines   func(ctx context.Context, objectType string) ([]hubspot.Pipeline, error)
	ticketPipelines func(ctx context.Context, objectType string) ([]hubspot.Pipeline, error)
	searchDeals     func(ctx context.Context, req hubspot.SearchRequest) (*hubspot.SearchResponse, error)
	searchTickets   func(ctx context.Context, req hubspot.SearchRequest) (*hubspot.SearchResponse, error)
	listOwners      func(ctx context.Context, _ struct{}) ([]hubspot.Owner, error)

	cachedDeals     func(ctx context.Context, opts DealSearchOptions) ([]model.Record, error)
	cachedStages    func(ctx context.Context, _ struct{}) ([]model.Stage, error)
	cachedPipelines func(ctx context.Context, _ struct{}) ([]model.Pipeline, error)
	cachedOwners    func(ctx context.Context, _ struct{}) ([]model.Owner, error)
}

// NewService wires the client through the coordinator and builds the
// cached accessors.
func NewService(client hubspot.Client, coord *resilience.Coordinator, cfg Config, opts ...Option) *Service {
	cfg = cfg.withDefaults()
	s := &Service{
		client: client,
		coord:  coord,
		cfg:    cfg,
		now:    time.Now,
		sleep:  resilience.Sleep,
	}
	for _, o := range opts {
		o(s)
	}
	if s.cache == nil {
		s.cache = cache.NewMemory()
	}

	s.allowed = make(map[string]struct{}, len(cfg.TargetPipelines))
	for _, id := range cfg.TargetPipelines {
		s.allowed[id] = struct{}{}
	}

	s.dealPipelines = resilience.WithRetry(coord, KeyDealPipelines, cfg.MaxRetries, client.GetPipelines)
	s.ticketPipelines = resilience.WithRetry(coord, KeyTicketPipelines, cfg.MaxRetries, client.GetPipelines)
	s.searchDeals = resilience.WithRetry(coord, KeySearchDeals, cfg.MaxRetries,
		func(ctx context.Context, req hubspot.SearchRequest) (*hubspot.SearchResponse, error) {
			return client.SearchObjects(ctx, hubspot.ObjectDeals, req)
		})
	s.searchTickets = resilience.WithRetry(coord, KeySearchTickets, cfg.MaxRetries,
		func(ctx context.Context, req hubspot.SearchRequest) (*hubspot.SearchResponse, error) {
			return client.SearchObjects(ctx, hubspot.ObjectTickets, req)
		})
	s.listOwners = resilience.WithRetry(coord, KeyOwners, cfg.MaxRetries,
		func(ctx context.Context, _ struct{}) ([]hubspot.Owner, error) {
			return client.GetOwners(ctx)
		})

	s.buildCachedAccessors()
	return s
}

// Config returns the effective service configuration.
func (s *Service) Config() Config {
	return s.cfg
}
