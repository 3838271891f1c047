package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/banshee-data/ecgscope/internal/monitoring"
)

// ErrBadBody is returned by DecodeJSON for unreadable or oversized bodies.
var ErrBadBody = errors.New("invalid request body")

// WriteJSON writes data as JSON with the given status.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		monitoring.Logf("failed to encode json response: %v", err)
	}
}

// WriteJSONError writes {"error": msg} with the given status.
func WriteJSONError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]string{"error": msg})
}

// MethodNotAllowed writes a 405 response listing the allowed method.
func MethodNotAllowed(w http.ResponseWriter, allow string) {
	if allow != "" {
		w.Header().Set("Allow", allow)
	}
	WriteJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// DecodeJSON reads at most limit bytes of r's body into v. Unknown fields
// are ignored.
func DecodeJSON(r *http.Request, limit int64, v any) error {
	if r.Body == nil {
		return fmt.Errorf("%w: empty body", ErrBadBody)
	}
	body := http.MaxBytesReader(nil, r.Body, limit)
	defer body.Close()

	if err := json.NewDecoder(body).Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		switch {
		case errors.As(err, &tooBig):
			return fmt.Errorf("%w: larger than %d bytes", ErrBadBody, tooBig.Limit)
		case errors.Is(err, io.EOF):
			return fmt.Errorf("%w: empty body", ErrBadBody)
		default:
			return fmt.Errorf("%w: %v", ErrBadBody, err)
		}
	}
	return nil
}
