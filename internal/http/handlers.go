package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"advisor/internal/core"
	"advisor/internal/intent"
	applog "advisor/internal/log"
)

// errorResponse is the error payload for every non-2xx answer.
type errorResponse struct {
	Error string `json:"error"`

	// Clarification fields, set for missing-field errors so the
	// language interface can ask a targeted question instead of
	// guessing.
	Verdict      core.Verdict `json:"verdict,omitempty"`
	MissingField string       `json:"missing_field,omitempty"`
	IntentKind   string       `json:"intent_kind,omitempty"`
}

func (s *Server) handleIntent(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing user id"})
		return
	}

	var in intent.Intent
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed intent payload"})
		return
	}

	resp, err := s.router.Dispatch(r.Context(), userID, in)
	if err != nil {
		s.writeError(w, r, userID, in, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeError maps the engine's error taxonomy onto HTTP statuses:
// unknown kind 400, missing field 422 with a clarify payload,
// stale snapshot 409 for retry, configuration conflict 409.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, userID string, in intent.Intent, err error) {
	switch {
	case errors.Is(err, core.ErrInvalidIntent):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, core.ErrStaleState):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, core.ErrConfigConflict):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		if mf, ok := core.IsMissingField(err); ok {
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
				Error:        err.Error(),
				Verdict:      core.VerdictClarify,
				MissingField: mf.Field,
				IntentKind:   mf.Kind,
			})
			return
		}
		s.logger.ErrorContext(r.Context(), "Intent dispatch failed",
			applog.FieldUserID, userID,
			applog.FieldIntentKind, string(in.Kind),
			applog.FieldError, err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
