package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	innosupps "github.com/simd-personal/Inno-Supps"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// handlerFunc is a route handler that reports failures as errors; the
// wrapper maps them to a status and an error body.
type handlerFunc func(w http.ResponseWriter, r *http.Request) error

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, innosupps.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, innosupps.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, innosupps.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, innosupps.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, innosupps.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, innosupps.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, innosupps.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		a.Logger.Error("request failed",
			slog.String("request_id", requestIDFrom(r.Context())),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		msg = "internal server error"
	}
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return innosupps.Invalid("malformed request body: %v", err)
	}
	return nil
}
