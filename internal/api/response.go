package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/sells-group/dealdesk/internal/crm"
	"github.com/sells-group/dealdesk/pkg/hubspot"
)

const msgAuthError = "HubSpot authentication error. Check API key."

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("api: write response", zap.Error(err))
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

func writeErrorField(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// failure describes how a route reports a CRM error.
type failure struct {
	// notFound is used for a 404 without an API message.
	notFound string
	// prefix is prepended to unclassified error messages.
	prefix string
}

// writeCRMError maps err to a {"message"} response: validation errors are
// 400, HubSpot 404 and 401 keep their status, anything else is 500.
func writeCRMError(w http.ResponseWriter, r *http.Request, err error, f failure) {
	var ve *crm.ValidationError
	if errors.As(err, &ve) {
		writeMessage(w, http.StatusBadRequest, ve.Msg)
		return
	}

	zap.L().Error("api: crm call failed",
		zap.String("path", r.URL.Path),
		zap.String("correlation_id", CorrelationID(r.Context())),
		zap.Error(err),
	)

	var apiErr *hubspot.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusNotFound:
			writeMessage(w, http.StatusNotFound, orDefault(apiErr.Message, f.notFound))
			return
		case http.StatusUnauthorized:
			writeMessage(w, http.StatusUnauthorized, orDefault(apiErr.Message, msgAuthError))
			return
		}
	}
	writeMessage(w, http.StatusInternalServerError, f.prefix+err.Error())
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
