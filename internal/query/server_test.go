package query

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wellsight/plunger-monitor/internal/store"
)

func setupServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	s, err := store.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.CreateTables())
	return NewServer(s), s
}

func TestQueryEndpoint(t *testing.T) {
	srv, s := setupServer(t)

	_, err := s.Insert(store.KindGasVolume, map[string]any{"cycle_id": 3, "gas_volume": 12.5})
	require.NoError(t, err)

	body := strings.NewReader(`{"query": "SELECT cycle_id, gas_volume FROM gas_volume_produced_event"}`)
	req := httptest.NewRequest(http.MethodPost, "/query", body)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var rows []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, 12.5, rows[0]["gas_volume"])
}

func TestQueryEndpointRejectsWrites(t *testing.T) {
	srv, _ := setupServer(t)

	body := strings.NewReader(`{"query": "DELETE FROM cycle_record"}`)
	req := httptest.NewRequest(http.MethodPost, "/query", body)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "SELECT")
}

func TestEventsByKindAndID(t *testing.T) {
	srv, s := setupServer(t)

	id, err := s.Insert(store.KindArrivalVelocity, map[string]any{"cycle_id": 0, "arrival_speed": 1.9})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/events/plunger_arrival_velocity_event", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var events []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 1)

	req = httptest.NewRequest(http.MethodGet, "/events/plunger_arrival_velocity_event/1", nil)
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fields))
	assert.Equal(t, 1.9, fields["arrival_speed"])
	assert.Equal(t, float64(id), fields["_id"])
}

func TestEventsNotFound(t *testing.T) {
	srv, _ := setupServer(t)

	req := httptest.NewRequest(http.MethodGet, "/events/cycle_record/99", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/events/no_such_kind", nil)
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQueryRequiresPost(t *testing.T) {
	srv, _ := setupServer(t)

	req := httptest.NewRequest(http.MethodGet, "/query", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
