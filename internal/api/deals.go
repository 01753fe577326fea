package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/dealdesk/internal/crm"
	"github.com/sells-group/dealdesk/internal/model"
	"github.com/sells-group/dealdesk/internal/store"
)

const dealsPageLimit = 100

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// listDeals handles GET /api/deals?pipelineId=.
func (h *handler) listDeals(w http.ResponseWriter, r *http.Request) {
	deals, err := h.svc.CachedDeals(r.Context(), crm.DealSearchOptions{
		Limit:      dealsPageLimit,
		PipelineID: r.URL.Query().Get("pipelineId"),
	})
	if err != nil {
		writeErrorField(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, deals)
}

func (h *handler) dealStages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.CachedDealStages(r.Context()))
}

func (h *handler) dealPipelines(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.CachedTargetPipelines(r.Context()))
}

// exportDeals handles POST /api/deals/export. The request blocks until the
// export settles.
func (h *handler) exportDeals(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.ExportDeals(r.Context())
	if err != nil {
		writeErrorField(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// listExports handles GET /api/deals/exports?status=&limit=.
func (h *handler) listExports(w http.ResponseWriter, r *http.Request) {
	filter := store.ExportFilter{Status: model.ExportState(r.URL.Query().Get("status"))}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeMessage(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = n
	}

	recs, err := h.svc.Exports(r.Context(), filter)
	if err != nil {
		writeErrorField(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (h *handler) getDeal(w http.ResponseWriter, r *http.Request) {
	deal, err := h.svc.GetDeal(r.Context(), chi.URLParam(r, "dealId"))
	if err != nil {
		writeCRMError(w, r, err, failure{notFound: "Deal not found."})
		return
	}
	writeJSON(w, http.StatusOK, deal)
}

// updateDeal handles PATCH /api/deals/{dealId}. Only string values are
// considered.
func (h *handler) updateDeal(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body == nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	props := make(map[string]string, len(body))
	for k, v := range body {
		if s, ok := v.(string); ok {
			props[k] = s
		}
	}

	deal, err := h.svc.UpdateDeal(r.Context(), chi.URLParam(r, "dealId"), props)
	if err != nil {
		writeCRMError(w, r, err, failure{notFound: "Deal not found."})
		return
	}
	writeJSON(w, http.StatusOK, deal)
}

func (h *handler) listDealNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := h.svc.ListDealNotes(r.Context(), chi.URLParam(r, "dealId"))
	if err != nil {
		writeCRMError(w, r, err, failure{
			notFound: "Deal not found or no associated notes.",
			prefix:   "Failed to fetch notes: ",
		})
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

type noteRequest struct {
	NoteBody *string `json:"noteBody"`
}

type noteResponse struct {
	Message string `json:"message"`
	NoteID  string `json:"noteId"`
}

func (h *handler) addDealNote(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeNote(w, r)
	if !ok {
		return
	}
	id, err := h.svc.AddDealNote(r.Context(), chi.URLParam(r, "dealId"), body)
	if err != nil {
		writeCRMError(w, r, err, failure{
			notFound: "Could not create/associate note (Deal or Note not found?).",
			prefix:   "Failed to add note: ",
		})
		return
	}
	writeJSON(w, http.StatusCreated, noteResponse{Message: "Note added successfully", NoteID: id})
}

func decodeNote(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req noteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return "", false
	}
	if req.NoteBody == nil {
		writeMessage(w, http.StatusBadRequest, "Note body is required")
		return "", false
	}
	return *req.NoteBody, true
}
