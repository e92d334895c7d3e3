// Maps storage errors to API errors and writes them.

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apierrors "github.com/maruel/postdb/internal/errors"
	"github.com/maruel/postdb/internal/storage"
)

// toAPIError converts a repository error into an APIError.
func toAPIError(err error, resource string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return apierrors.NotFound(resource).Wrap(err)
	case errors.Is(err, storage.ErrForbidden):
		return apierrors.Forbidden("Only the author can modify this " + resource).Wrap(err)
	case errors.Is(err, storage.ErrDuplicateEmail):
		return apierrors.DuplicateEmail().Wrap(err)
	case errors.Is(err, storage.ErrInvalidCredentials):
		return apierrors.InvalidCredentials().Wrap(err)
	case errors.Is(err, storage.ErrInvalidInput):
		return apierrors.BadRequest("Invalid input").Wrap(err)
	case errors.Is(err, storage.ErrCorruptStore), errors.Is(err, storage.ErrStoreUnavailable):
		return apierrors.StorageUnavailable().Wrap(err)
	case errors.Is(err, context.Canceled):
		return apierrors.RequestCanceled().Wrap(err)
	case errors.Is(err, context.DeadlineExceeded):
		return apierrors.StorageUnavailable().Wrap(err)
	default:
		return apierrors.InternalWithError("Internal error", err)
	}
}

// writeErrorResponse writes an APIError as a JSON response.
// Use this in raw http.HandlerFunc handlers that don't use server.Wrap.
func writeErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	statusCode := http.StatusInternalServerError
	errorCode := apierrors.ErrInternal
	message := "internal error"
	var details map[string]any

	var ewsErr apierrors.ErrorWithStatus
	if errors.As(err, &ewsErr) {
		statusCode = ewsErr.StatusCode()
		errorCode = ewsErr.Code()
		message = ewsErr.Error()
		details = ewsErr.Details()
	}
	slog.ErrorContext(r.Context(), "Handler error", "err", err, "cause", errors.Unwrap(err), "statusCode", statusCode, "code", errorCode)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	response := apierrors.ErrorResponse{
		Error:   apierrors.ErrorDetails{Code: errorCode, Message: message},
		Details: details,
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.ErrorContext(r.Context(), "Failed to encode error response", "err", err)
	}
}
