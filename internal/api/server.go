// Package api exposes the CRM service over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/sells-group/dealdesk/internal/crm"
	"github.com/sells-group/dealdesk/internal/model"
	"github.com/sells-group/dealdesk/internal/store"
)

// CRM is the subset of *crm.Service the routes call.
type CRM interface {
	CachedDeals(ctx context.Context, opts crm.DealSearchOptions) ([]model.Record, error)
	CachedDealStages(ctx context.Context) []model.Stage
	CachedTargetPipelines(ctx context.Context) []model.Pipeline
	GetDeal(ctx context.Context, dealID string) (*model.DealDetail, error)
	UpdateDeal(ctx context.Context, dealID string, props map[string]string) (*model.Record, error)
	ListDealNotes(ctx context.Context, dealID string) ([]model.Record, error)
	AddDealNote(ctx context.Context, dealID, body string) (string, error)
	ExportDeals(ctx context.Context) (crm.ExportResult, error)
	Exports(ctx context.Context, filter store.ExportFilter) ([]model.ExportRecord, error)
	CachedOwners(ctx context.Context) []model.Owner
	SearchTickets(ctx context.Context, opts crm.TicketSearchOptions) ([]model.Record, error)
	TicketStages(ctx context.Context) []model.Stage
	GetTicket(ctx context.Context, ticketID string) (*model.Record, error)
	UpdateTicketStage(ctx context.Context, ticketID, stage string) (*model.Record, error)
	AddTicketNote(ctx context.Context, ticketID, body string) (string, error)
}

var _ CRM = (*crm.Service)(nil)

// RouterConfig configures NewRouter.
type RouterConfig struct {
	CORSOrigins []string
}

// NewRouter builds the HTTP handler for every /api route.
func NewRouter(svc CRM, cfg RouterConfig) http.Handler {
	h := &handler{svc: svc}

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(RequestID())
	r.Use(Logging())
	r.Use(Recovery())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{correlationHeader},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.health)

		r.Route("/deals", func(r chi.Router) {
			r.Get("/", h.listDeals)
			r.Get("/stages", h.dealStages)
			r.Get("/pipelines", h.dealPipelines)
			r.Post("/export", h.exportDeals)
			r.Get("/exports", h.listExports)
			r.Get("/{dealId}", h.getDeal)
			r.Patch("/{dealId}", h.updateDeal)
			r.Get("/{dealId}/notes", h.listDealNotes)
			r.Post("/{dealId}/notes", h.addDealNote)
		})

		r.Get("/owners", h.listOwners)

		r.Route("/tickets", func(r chi.Router) {
			r.Get("/", h.listTickets)
			r.Get("/stages", h.ticketStages)
			r.Get("/{ticketId}", h.getTicket)
			r.Patch("/{ticketId}", h.updateTicket)
			r.Post("/{ticketId}/notes", h.addTicketNote)
		})
	})

	return r
}

type handler struct {
	svc CRM
}
