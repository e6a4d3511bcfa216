package response

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/corray333/backend-labs/pharmacy/internal/service/errs"
)

// Response is the envelope returned by every request-style handler.
// Body holds the already encoded JSON document.
type Response struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body"`
}

func defaultHeaders() map[string]string {
	return map[string]string{
		"Content-Type":                 "application/json",
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Headers": "Content-Type",
		"Access-Control-Allow-Methods": "GET, POST, PUT, DELETE, OPTIONS",
	}
}

// Success wraps data into a 200 envelope.
func Success(data any) (Response, error) {
	return WithStatus(http.StatusOK, data)
}

// WithStatus wraps data into an envelope with the given status code.
func WithStatus(statusCode int, data any) (Response, error) {
	body, err := encode(data)
	if err != nil {
		return Response{}, err
	}

	return Response{
		StatusCode: statusCode,
		Headers:    defaultHeaders(),
		Body:       body,
	}, nil
}

// Error builds an error envelope with body {"error": message}.
func Error(statusCode int, message string) Response {
	body, err := encode(map[string]string{"error": message})
	if err != nil {
		// a map of strings always encodes
		body = `{"error":"internal error"}`
	}

	return Response{
		StatusCode: statusCode,
		Headers:    defaultHeaders(),
		Body:       body,
	}
}

// FromError maps a handler error to an envelope. Validation and not-found
// errors keep their message, everything else collapses to fallback.
func FromError(err error, fallback string) Response {
	switch {
	case errors.Is(err, errs.ErrValidation):
		if msg, ok := errs.Message(err); ok {
			return Error(http.StatusBadRequest, msg)
		}

		return Error(http.StatusBadRequest, "invalid request")
	case errors.Is(err, errs.ErrNotFound):
		if msg, ok := errs.Message(err); ok {
			return Error(http.StatusNotFound, msg)
		}

		return Error(http.StatusNotFound, "not found")
	default:
		return Error(http.StatusInternalServerError, fallback)
	}
}

// HandlerFunc is a request handler that returns an envelope or an error.
type HandlerFunc func(r *http.Request) (Response, error)

// Handle adapts fn to http.HandlerFunc. Errors are logged and turned into
// envelopes through FromError, so no internal detail reaches the client.
func Handle(fallback string, fn HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := fn(r)
		if err != nil {
			code := errs.CodeOf(err)
			if code == errs.ErrValidation || code == errs.ErrNotFound {
				slog.Warn("Request rejected", "path", r.URL.Path, "error", err)
			} else {
				slog.Error("Request failed", "path", r.URL.Path, "error", err)
			}
			resp = FromError(err, fallback)
		}

		Write(w, resp)
	}
}

// Write copies the envelope onto w.
func Write(w http.ResponseWriter, resp Response) {
	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(resp.StatusCode)

	if _, err := w.Write([]byte(resp.Body)); err != nil {
		slog.Error("Error sending response", "error", err)
	}
}

func encode(data any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(data); err != nil {
		return "", err
	}

	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}
