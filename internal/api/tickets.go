package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/dealdesk/internal/crm"
)

func (h *handler) listOwners(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.CachedOwners(r.Context()))
}

// listTickets handles GET /api/tickets?ownerId=&limit=.
func (h *handler) listTickets(w http.ResponseWriter, r *http.Request) {
	opts := crm.TicketSearchOptions{OwnerID: r.URL.Query().Get("ownerId")}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeMessage(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		opts.Limit = n
	}

	tickets, err := h.svc.SearchTickets(r.Context(), opts)
	if err != nil {
		writeCRMError(w, r, err, failure{prefix: "Failed to fetch tickets: "})
		return
	}
	writeJSON(w, http.StatusOK, tickets)
}

func (h *handler) ticketStages(w http.ResponseWriter, r *http.Request) {
	stages := h.svc.TicketStages(r.Context())
	if len(stages) == 0 {
		writeMessage(w, http.StatusNotFound, "No ticket pipelines found.")
		return
	}
	writeJSON(w, http.StatusOK, stages)
}

func (h *handler) getTicket(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.svc.GetTicket(r.Context(), chi.URLParam(r, "ticketId"))
	if err != nil {
		writeCRMError(w, r, err, failure{notFound: "Ticket not found."})
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

type ticketStageRequest struct {
	Stage string `json:"hs_pipeline_stage"`
}

func (h *handler) updateTicket(w http.ResponseWriter, r *http.Request) {
	var req ticketStageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	ticket, err := h.svc.UpdateTicketStage(r.Context(), chi.URLParam(r, "ticketId"), req.Stage)
	if err != nil {
		writeCRMError(w, r, err, failure{notFound: "Ticket not found."})
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

func (h *handler) addTicketNote(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeNote(w, r)
	if !ok {
		return
	}
	id, err := h.svc.AddTicketNote(r.Context(), chi.URLParam(r, "ticketId"), body)
	if err != nil {
		writeCRMError(w, r, err, failure{
			notFound: "Could not create/associate note (Ticket or Note not found?).",
			prefix:   "Failed to add note: ",
		})
		return
	}
	writeJSON(w, http.StatusCreated, noteResponse{Message: "Note added successfully", NoteID: id})
}
