package query

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/wellsight/plunger-monitor/internal/store"
)

// Server exposes the event store read-only over HTTP: an ad-hoc
// SELECT endpoint plus event browsing by kind and id. Anything that is
// not a pure read is rejected.
type Server struct {
	store *store.Store
	mux   *http.ServeMux
}

// NewServer creates the query service over the given store.
func NewServer(s *store.Store) *Server {
	srv := &Server{store: s, mux: http.NewServeMux()}
	srv.mux.HandleFunc("/query", srv.handleQuery)
	srv.mux.HandleFunc("/events/", srv.handleEvents)
	return srv
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

type queryRequest struct {
	Query string `json:"query"`
}

// handleQuery runs one ad-hoc SELECT and returns the rows as JSON.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	rows, err := s.store.RunQuery(req.Query)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// handleEvents serves /events/{kind} and /events/{kind}/{id}.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET required")
		return
	}

	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/events/"), "/"), "/")
	switch len(parts) {
	case 1:
		s.listEvents(w, parts[0])
	case 2:
		id, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid event id")
			return
		}
		s.getEvent(w, parts[0], id)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) listEvents(w http.ResponseWriter, kind string) {
	events, err := s.store.FetchAll(kind)
	if err != nil {
		var schemaErr *store.SchemaError
		if errors.As(err, &schemaErr) {
			writeError(w, http.StatusNotFound, schemaErr.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if events == nil {
		events = []map[string]any{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) getEvent(w http.ResponseWriter, kind string, id int64) {
	fields, err := s.store.FetchByID(kind, id)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "event not found")
		default:
			var schemaErr *store.SchemaError
			if errors.As(err, &schemaErr) {
				writeError(w, http.StatusNotFound, schemaErr.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, fields)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		fmt.Printf("Failed to encode response: %v\n", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
