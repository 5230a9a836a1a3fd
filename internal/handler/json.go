package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/dukerupert/questwalk/internal/mission"
	"github.com/dukerupert/questwalk/internal/missionapi"
	"github.com/dukerupert/questwalk/internal/visit"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a request body into v and validates it. An empty body is
// allowed when allowEmpty is set.
func decodeJSON(r *http.Request, v any, allowEmpty bool) error {
	if r.ContentLength == 0 && allowEmpty {
		return validate.Struct(v)
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return validate.Struct(v)
		}
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := validate.Struct(v); err != nil {
		return err
	}
	return nil
}

type errorBody struct {
	Error  string `json:"error"`
	Locked bool   `json:"locked,omitempty"`
	Retry  bool   `json:"retry,omitempty"`
	View   any    `json:"view,omitempty"`
}

// writeError maps an operation error to a status code. Locks are reported
// separately from network failures so the client can choose its message.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var verrs validator.ValidationErrors
	switch {
	case errors.Is(err, context.Canceled):
		// Client went away; nothing to write to.
		logger.Debug("request canceled", "path", r.URL.Path)
	case errors.As(err, &verrs):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: verrs.Error()})
	case errors.Is(err, mission.ErrMissionLocked):
		writeJSON(w, http.StatusConflict, errorBody{Error: "mission is locked", Locked: true})
	case errors.Is(err, mission.ErrStateConflict), errors.Is(err, mission.ErrSuperseded):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	case errors.Is(err, mission.ErrBusy), errors.Is(err, visit.ErrInProgress):
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "operation in progress"})
	case errors.Is(err, mission.ErrNoActiveMission):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "no active mission"})
	case errors.Is(err, visit.ErrInvalidCode):
		writeJSON(w, http.StatusForbidden, errorBody{Error: "location code does not match"})
	case errors.Is(err, missionapi.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	case errors.Is(err, mission.ErrRejected), errors.Is(err, missionapi.ErrRejected):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error()})
	case errors.Is(err, mission.ErrNetworkFailure), errors.Is(err, missionapi.ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		logger.Warn("mission service failure", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "mission service unavailable", Retry: true})
	default:
		logger.Error("request failed", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}
