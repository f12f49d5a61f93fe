package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/picklepals/picklepals/internal/api"
)

// unknownEndpoint labels metrics for requests that did not match a handler.
const unknownEndpoint = "unknown"

func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	endpoint := unknownEndpoint
	if name, err := s.dispatcher.Route(r.URL.Path); err == nil && s.dispatcher.HasEndpoint(name) {
		endpoint = name
	}

	status, body := s.serveAPI(w, r)
	writeJSON(w, status, body)
	s.metrics.observe(endpoint, status, time.Since(start))
}

func (s *Server) serveAPI(w http.ResponseWriter, r *http.Request) (int, any) {
	params, err := decodeParams(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		return http.StatusBadRequest, errorBody(err.Error())
	}

	result, err := s.dispatcher.Handle(r.Context(), r.URL.Path, params, bearerToken(r))
	if err != nil {
		status := api.StatusOf(err)
		if status == http.StatusInternalServerError {
			return status, errorBody("internal server error")
		}
		return status, errorBody(err.Error())
	}
	return http.StatusOK, result
}

// decodeParams reads a JSON object. An empty body is an empty object.
func decodeParams(body io.Reader) (map[string]any, error) {
	dec := json.NewDecoder(body)
	dec.UseNumber()

	var params map[string]any
	if err := dec.Decode(&params); err != nil {
		if errors.Is(err, io.EOF) {
			return map[string]any{}, nil
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errors.New("request body too large")
		}
		return nil, errors.New("request body must be a JSON object")
	}
	if dec.More() {
		return nil, errors.New("request body must be a single JSON object")
	}
	if params == nil {
		params = map[string]any{}
	}
	return params, nil
}

func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats, err := s.coordinator.Stats()
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"executed": stats.Executed,
	})
}
