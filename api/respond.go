package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/nasermirzaei89/reelthread/authorization"
	"github.com/nasermirzaei89/reelthread/discuss"
	"github.com/nasermirzaei89/reelthread/notify"
	"github.com/nasermirzaei89/reelthread/profiles"
	"github.com/nasermirzaei89/reelthread/reactions"
	"github.com/nasermirzaei89/reelthread/replies"
)

const maxBodyBytes = 1 << 16

type errorResponse struct {
	Error string `json:"error"`
}

type BadRequestError struct {
	Reason string
}

func (err BadRequestError) Error() string {
	return "bad request: " + err.Reason
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()

	err := decoder.Decode(v)
	if err != nil {
		return &BadRequestError{Reason: fmt.Sprintf("invalid json body: %v", err)}
	}

	return nil
}

// writeError maps domain errors to status codes. Unknown errors are logged and hidden behind a 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		badRequestErr         *BadRequestError
		discussValidationErr  *discuss.ValidationError
		profilesValidationErr *profiles.ValidationError
		invalidParentErr      *discuss.InvalidParentError
		invalidTargetTypeErr  *reactions.InvalidTargetTypeError
		accessDeniedErr       *authorization.AccessDeniedError
		commentNotFoundErr    *discuss.CommentNotFoundError
		profileNotFoundErr    *profiles.ProfileNotFoundError
		notificationNotFound  *notify.NotificationNotFoundError
	)

	switch {
	case errors.As(err, &badRequestErr):
		writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: badRequestErr.Error()})
	case errors.As(err, &discussValidationErr):
		writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: discussValidationErr.Error()})
	case errors.As(err, &profilesValidationErr):
		writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: profilesValidationErr.Error()})
	case errors.As(err, &invalidParentErr):
		writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: invalidParentErr.Error()})
	case errors.As(err, &invalidTargetTypeErr):
		writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: invalidTargetTypeErr.Error()})
	case errors.Is(err, replies.ErrEmptyReply):
		writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: replies.ErrEmptyReply.Error()})
	case errors.As(err, &accessDeniedErr):
		writeJSON(w, r, http.StatusForbidden, errorResponse{Error: accessDeniedErr.Error()})
	case errors.As(err, &commentNotFoundErr):
		writeJSON(w, r, http.StatusNotFound, errorResponse{Error: commentNotFoundErr.Error()})
	case errors.As(err, &profileNotFoundErr):
		writeJSON(w, r, http.StatusNotFound, errorResponse{Error: profileNotFoundErr.Error()})
	case errors.As(err, &notificationNotFound):
		writeJSON(w, r, http.StatusNotFound, errorResponse{Error: notificationNotFound.Error()})
	default:
		slog.ErrorContext(r.Context(), "failed to handle request", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, r, http.StatusInternalServerError, errorResponse{Error: "internal error occurred"})
	}
}
