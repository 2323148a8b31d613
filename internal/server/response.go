package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Sternrassler/rickmorty-gateway/pkg/gateway"
	"github.com/Sternrassler/rickmorty-gateway/pkg/origin"
)

const contentTypeJSON = "application/json; charset=utf-8"

type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: message})
}

// respond writes a resolver result: the payload as-is, or the mapped error.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, payload json.RawMessage, err error, notFound string) {
	if err == nil {
		w.Header().Set("Content-Type", contentTypeJSON)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(payload)
		return
	}

	status, message := classify(err)
	if status == http.StatusNotFound {
		message = notFound
	}

	event := s.logger.Warn()
	if status == http.StatusInternalServerError {
		event = s.logger.Error()
	}
	if status != http.StatusNotFound {
		event.Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Msg("Request failed")
	}

	body := errorBody{Error: message}
	if s.opts.ExposeErrors && status != http.StatusNotFound {
		body.Details = err.Error()
	}
	writeJSON(w, status, body)
}

// classify maps a resolver error to a status code and client message.
func classify(err error) (int, string) {
	var te *origin.TransportError
	switch {
	case errors.Is(err, gateway.ErrNotFound):
		return http.StatusNotFound, "Resource not found"
	case errors.Is(err, gateway.ErrInvalidRequest):
		return http.StatusBadRequest, "Validation Error"
	case errors.As(err, &te):
		if te.Timeout() {
			return http.StatusRequestTimeout, "Request timeout"
		}
		return http.StatusBadGateway, "Upstream service unavailable"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout, "Request timeout"
	default:
		return http.StatusInternalServerError, "Internal Server Error"
	}
}
