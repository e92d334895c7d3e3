// Adapts typed handler functions to http.Handler.

package server

import (
	"bytes"
	"context"
	"encoding"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"

	apierrors "github.com/maruel/postdb/internal/errors"
	"github.com/maruel/postdb/internal/models"
	"github.com/maruel/postdb/internal/server/handlers"
	"github.com/maruel/postdb/internal/server/ratelimit"
	"github.com/maruel/postdb/internal/server/reqctx"
	"github.com/maruel/postdb/internal/storage"
)

// Wrap wraps an unauthenticated handler function to work as an http.Handler.
// The function must have signature: func(context.Context, *In) (*Out, error)
// where In can be unmarshalled from JSON and Out is a struct.
// Path parameters can be extracted by tagging struct fields with `path:"name"`.
// *In must implement handlers.Validatable.
//
// Example:
//
//	type GetPostRequest struct {
//	    ID jsonldb.ID `path:"id"`
//	}
//
//	func (h *PostHandler) GetPost(ctx context.Context, req *GetPostRequest) (*models.PostView, error)
func Wrap[In any, PtrIn interface {
	*In
	handlers.Validatable
}, Out any](fn func(context.Context, PtrIn) (*Out, error), cfg *handlers.Config, limiters *ratelimit.Config) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := reqctx.WithClientIP(r.Context(), reqctx.GetClientIP(r))

		var ok bool
		if w, ok = checkRateLimit(w, limiters.MatchUnauth(r.Method, r.URL.Path), reqctx.ClientIP(ctx)); !ok {
			return
		}

		input := new(In)
		if !decodeRequest(ctx, w, r, PtrIn(input), cfg) {
			return
		}
		output, err := fn(ctx, PtrIn(input))
		writeJSONResponse(ctx, w, output, err)
	})
}

// WrapAuth wraps an authenticated handler function to work as an http.Handler.
// The function must have signature: func(context.Context, *models.User, *In) (*Out, error)
// *In must implement handlers.Validatable.
func WrapAuth[In any, PtrIn interface {
	*In
	handlers.Validatable
}, Out any](
	fn func(context.Context, *models.User, PtrIn) (*Out, error),
	svc *handlers.Services,
	cfg *handlers.Config,
	limiters *ratelimit.Config,
) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ctx, ok := authenticate(w, r, svc, cfg)
		if !ok {
			return
		}
		if w, ok = checkRateLimit(w, limiters.MatchAuth(r.Method, r.URL.Path), user.ID.String()); !ok {
			return
		}

		input := new(In)
		if !decodeRequest(ctx, w, r, PtrIn(input), cfg) {
			return
		}
		output, err := fn(ctx, user, PtrIn(input))
		writeJSONResponse(ctx, w, output, err)
	})
}

// WrapAuthRaw wraps a raw http.HandlerFunc with authentication.
// Use this for handlers that need to handle requests directly (e.g., multipart
// forms). The user is available through reqctx.User.
func WrapAuthRaw(fn http.HandlerFunc, svc *handlers.Services, cfg *handlers.Config, limiters *ratelimit.Config) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ctx, ok := authenticate(w, r, svc, cfg)
		if !ok {
			return
		}
		if w, ok = checkRateLimit(w, limiters.MatchAuth(r.Method, r.URL.Path), user.ID.String()); !ok {
			return
		}
		fn(w, r.WithContext(reqctx.WithUser(ctx, user)))
	})
}

// authenticate validates the bearer token. On failure the response has been
// written.
func authenticate(w http.ResponseWriter, r *http.Request, svc *handlers.Services, cfg *handlers.Config) (*models.User, context.Context, bool) {
	ctx := reqctx.WithClientIP(r.Context(), reqctx.GetClientIP(r))
	user, err := validateJWT(ctx, r, svc.Users, cfg.JWTSecret)
	if err != nil {
		if errors.Is(err, storage.ErrStoreUnavailable) || errors.Is(err, storage.ErrCorruptStore) {
			writeAPIError(ctx, w, apierrors.StorageUnavailable().Wrap(err))
			return nil, ctx, false
		}
		slog.InfoContext(ctx, "Rejected request", "err", err, "path", r.URL.Path)
		writeAPIError(ctx, w, apierrors.Unauthorized().Wrap(err))
		return nil, ctx, false
	}
	return user, reqctx.WithUser(ctx, user), true
}

// checkRateLimit checks the tier and wraps the response writer to carry the
// rate limit headers. Returns false if the request was refused and the 429
// response written.
func checkRateLimit(w http.ResponseWriter, tier *ratelimit.Tier, identifier string) (http.ResponseWriter, bool) {
	if tier == nil {
		return w, true
	}
	result := tier.Limiter.Allow(ratelimit.BuildKey(tier.Scope, identifier, tier.Name))
	w = ratelimit.NewResponseWriter(w, result)
	if !result.Allowed {
		apiErr := apierrors.RateLimitExceeded(int(result.RetryAfter.Seconds()))
		writeErrorResponseWithCode(w, apiErr.StatusCode(), apiErr.Code(), apiErr.Error(), apiErr.Details())
		return w, false
	}
	return w, true
}

// decodeRequest reads the size limited JSON body into input, fills path and
// query parameters and validates the result. Returns false if an error
// response was written.
func decodeRequest(ctx context.Context, w http.ResponseWriter, r *http.Request, input handlers.Validatable, cfg *handlers.Config) bool {
	if cfg.Quotas.MaxRequestBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, cfg.Quotas.MaxRequestBodyBytes)
	}
	body, err := io.ReadAll(r.Body)
	if err2 := r.Body.Close(); err == nil {
		err = err2
	}
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeAPIError(ctx, w, apierrors.PayloadTooLarge(maxBytesErr.Limit))
			return false
		}
		writeAPIError(ctx, w, apierrors.BadRequest("Failed to read request body").Wrap(err))
		return false
	}
	if len(bytes.TrimSpace(body)) > 0 {
		d := json.NewDecoder(bytes.NewReader(body))
		d.DisallowUnknownFields()
		if err := d.Decode(input); err != nil {
			writeAPIError(ctx, w, apierrors.BadRequest("Invalid request body").Wrap(err))
			return false
		}
	}

	if err := populatePathParams(r, input); err != nil {
		writeAPIError(ctx, w, err)
		return false
	}
	if err := populateQueryParams(r, input); err != nil {
		writeAPIError(ctx, w, err)
		return false
	}

	if err := input.Validate(); err != nil {
		writeAPIError(ctx, w, err)
		return false
	}
	return true
}

// writeJSONResponse writes a JSON response or error response.
func writeJSONResponse[Out any](ctx context.Context, w http.ResponseWriter, output *Out, err error) {
	if err != nil {
		writeAPIError(ctx, w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(output); err != nil {
		slog.ErrorContext(ctx, "Failed to encode response", "err", err)
	}
}

// writeAPIError writes err, using its status and code when it carries them.
func writeAPIError(ctx context.Context, w http.ResponseWriter, err error) {
	statusCode := http.StatusInternalServerError
	errorCode := apierrors.ErrInternal
	message := "Internal error"
	var details map[string]any

	var ewsErr apierrors.ErrorWithStatus
	if errors.As(err, &ewsErr) {
		statusCode = ewsErr.StatusCode()
		errorCode = ewsErr.Code()
		message = ewsErr.Error()
		details = ewsErr.Details()
	}

	level := slog.LevelInfo
	if statusCode >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	slog.Log(ctx, level, "Handler error", "err", err, "cause", errors.Unwrap(err), "statusCode", statusCode, "code", errorCode)
	writeErrorResponseWithCode(w, statusCode, errorCode, message, details)
}

// populatePathParams extracts path parameters from the request and populates
// struct fields tagged with `path:"paramName"`.
func populatePathParams(r *http.Request, input any) error {
	return populateTagged(input, "path", r.PathValue)
}

// populateQueryParams extracts query parameters from the request and populates
// struct fields tagged with `query:"paramName"`.
func populateQueryParams(r *http.Request, input any) error {
	query := r.URL.Query()
	return populateTagged(input, "query", query.Get)
}

// populateTagged sets string, int and encoding.TextUnmarshaler fields tagged
// with tag from lookup. A value that fails to parse is a 400 naming the
// parameter.
func populateTagged(input any, tag string, lookup func(string) string) error {
	val := reflect.ValueOf(input)
	if val.Kind() != reflect.Pointer {
		return nil
	}
	elem := val.Elem()
	if elem.Kind() != reflect.Struct {
		return nil
	}

	typ := elem.Type()
	for i := range typ.NumField() {
		name := typ.Field(i).Tag.Get(tag)
		if name == "" {
			continue
		}
		value := lookup(name)
		if value == "" {
			continue
		}
		field := elem.Field(i)
		if u, ok := field.Addr().Interface().(encoding.TextUnmarshaler); ok {
			if err := u.UnmarshalText([]byte(value)); err != nil {
				return invalidParam(tag, name, err)
			}
			continue
		}
		//nolint:exhaustive // Only string and int are supported.
		switch field.Kind() {
		case reflect.String:
			field.SetString(value)
		case reflect.Int:
			n, err := strconv.Atoi(value)
			if err != nil {
				return invalidParam(tag, name, err)
			}
			field.SetInt(int64(n))
		}
	}
	return nil
}

func invalidParam(tag, name string, err error) *apierrors.APIError {
	return apierrors.BadRequest(fmt.Sprintf("Invalid %s parameter: %s", tag, name)).WithDetail("param", name).Wrap(err)
}

// writeErrorResponseWithCode writes a detailed error response as JSON with code and details.
func writeErrorResponseWithCode(w http.ResponseWriter, statusCode int, code apierrors.ErrorCode, message string, details map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	response := apierrors.ErrorResponse{
		Error:   apierrors.ErrorDetails{Code: code, Message: message},
		Details: details,
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("Failed to encode error response", "err", err)
	}
}
