package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"conduit-registry/internal/registry"
)

var errBodyTooLarge = errors.New("request body too large")

type errorBody struct {
	Error string `json:"error"`
}

type itemsBody[T any] struct {
	Items []T `json:"items"`
}

type deletedBody struct {
	Deleted int64 `json:"deleted"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeItems[T any](w http.ResponseWriter, items []T) {
	if items == nil {
		items = []T{}
	}
	writeJSON(w, http.StatusOK, itemsBody[T]{Items: items})
}

// statusFor maps registry error kinds to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBodyTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, registry.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, registry.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, registry.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, registry.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, registry.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError reports err to the client. Store and internal failures are
// logged and replaced by a generic message.
func writeError(w http.ResponseWriter, logger registry.Logger, err error) {
	status := statusFor(err)
	msg := err.Error()
	switch status {
	case http.StatusServiceUnavailable:
		logger.Error("store unavailable", "error", err)
		msg = registry.ErrStoreUnavailable.Error()
	case http.StatusInternalServerError:
		logger.Error("internal error", "error", err)
		msg = "internal error"
	case http.StatusUnauthorized:
		msg = registry.ErrUnauthorized.Error()
	}
	writeJSON(w, status, errorBody{Error: msg})
}

// decodeJSON reads exactly one JSON object from the body, rejecting unknown
// fields and bodies over limit bytes.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("%w: limit is %d bytes", errBodyTooLarge, tooLarge.Limit)
		}
		return fmt.Errorf("%w: malformed JSON body: %v", registry.ErrInvalidInput, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: body must contain a single JSON object", registry.ErrInvalidInput)
	}
	return nil
}
