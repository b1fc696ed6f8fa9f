package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moto-yard/internal/logging"
	"moto-yard/internal/parking"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Meta    struct {
		RequestID string `json:"request_id"`
	} `json:"meta"`
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	logging.InitWithWriter(io.Discard, "moto-yard-test", "test")

	telemetry := parking.NewLocalTelemetryProvider("moto-yard-test")
	t.Cleanup(func() { _ = telemetry.Shutdown(context.Background()) })

	store := parking.NewMemoryStore(parking.GenerateSectors([]string{"A", "B"}, 3))
	ic, err := parking.NewInstrumentedCoordinator(parking.NewCoordinator(store, store), telemetry)
	require.NoError(t, err)

	return NewRouter(NewHandler(ic, "moto-yard-test"), ic, "moto-yard-test")
}

func do(t *testing.T, h http.Handler, method, path, actor string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if actor != "" {
		req.Header.Set(ActorHeader, actor)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestHealthCheck(t *testing.T) {
	h := newTestRouter(t)

	rec, _ := do(t, h, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestListSectors(t *testing.T) {
	h := newTestRouter(t)

	rec, env := do(t, h, http.MethodGet, "/api/sectors", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var sectors []SectorResponse
	require.NoError(t, json.Unmarshal(env.Data, &sectors))
	require.Len(t, sectors, 2)
	assert.Equal(t, "A", sectors[0].Prefix)
	assert.Equal(t, []string{"A1", "A2", "A3"}, sectors[0].Slots)
}

func TestRegisterAndOccupancy(t *testing.T) {
	h := newTestRouter(t)

	rec, env := do(t, h, http.MethodPost, "/api/placements", "user1", RegisterRequest{SlotCode: "a2", Plate: "abc1234"})
	require.Equal(t, http.StatusCreated, rec.Code, env.Error)

	var placement PlacementResponse
	require.NoError(t, json.Unmarshal(env.Data, &placement))
	assert.Equal(t, "A2", placement.SlotCode)
	assert.Equal(t, "ABC1234", placement.Plate)
	assert.Equal(t, "user1", placement.RecordedBy)

	rec, env = do(t, h, http.MethodPost, "/api/placements", "user2", RegisterRequest{SlotCode: "A3"})
	require.Equal(t, http.StatusCreated, rec.Code, env.Error)

	rec, env = do(t, h, http.MethodGet, "/api/sectors/a/slots", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var occ OccupancyResponse
	require.NoError(t, json.Unmarshal(env.Data, &occ))
	assert.Equal(t, 3, occ.Total)
	assert.Equal(t, []string{"A1"}, occ.Buckets[parking.StatusFree])
	assert.Equal(t, []string{"A2"}, occ.Buckets[parking.StatusOccupied])
	assert.Equal(t, []string{"A3"}, occ.Buckets[parking.StatusOccupiedNoPlate])
	require.Len(t, occ.Slots, 3)
	assert.Equal(t, "ABC1234", occ.Slots[1].Plate)
	assert.NotNil(t, occ.Slots[1].Since)
	assert.Nil(t, occ.Slots[0].Since)
}

func TestRegisterOccupiedSlotConflicts(t *testing.T) {
	h := newTestRouter(t)

	rec, _ := do(t, h, http.MethodPost, "/api/placements", "user1", RegisterRequest{SlotCode: "B1", Plate: "XYZ9876"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, env := do(t, h, http.MethodPost, "/api/placements", "user2", RegisterRequest{SlotCode: "B1", Plate: "ABC1234"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.False(t, env.Success)
}

func TestRegisterValidation(t *testing.T) {
	h := newTestRouter(t)

	tests := []struct {
		name   string
		actor  string
		body   any
		status int
	}{
		{"missing actor", "", RegisterRequest{SlotCode: "A1"}, http.StatusBadRequest},
		{"missing slot", "user1", RegisterRequest{Plate: "ABC1234"}, http.StatusBadRequest},
		{"unknown slot", "user1", RegisterRequest{SlotCode: "Z9"}, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := do(t, h, http.MethodPost, "/api/placements", tt.actor, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.NotEmpty(t, env.Error)
		})
	}
}

func TestDeparture(t *testing.T) {
	h := newTestRouter(t)

	rec, _ := do(t, h, http.MethodPost, "/api/departures", "user1", DepartRequest{SlotCode: "A1"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = do(t, h, http.MethodPost, "/api/placements", "user1", RegisterRequest{SlotCode: "A1", Plate: "ABC1234"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, env := do(t, h, http.MethodPost, "/api/departures", "user1", DepartRequest{SlotCode: "A1"})
	require.Equal(t, http.StatusCreated, rec.Code, env.Error)

	var placement PlacementResponse
	require.NoError(t, json.Unmarshal(env.Data, &placement))
	assert.Equal(t, parking.MovementExit, placement.Movement)

	rec, env = do(t, h, http.MethodGet, "/api/occupancy?sector=A", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var occ OccupancyResponse
	require.NoError(t, json.Unmarshal(env.Data, &occ))
	assert.Equal(t, 3, occ.Counts[parking.StatusFree])
}

func TestDashboardAndReport(t *testing.T) {
	h := newTestRouter(t)

	rec, _ := do(t, h, http.MethodPost, "/api/placements", "user1", RegisterRequest{SlotCode: "B2", Plate: "ABC1234"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, env := do(t, h, http.MethodGet, "/api/dashboard", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var summaries []parking.SectorSummary
	require.NoError(t, json.Unmarshal(env.Data, &summaries))
	require.Len(t, summaries, 2)
	assert.Equal(t, 1, summaries[1].Occupied)
	assert.Equal(t, 2, summaries[1].Free)

	rec, env = do(t, h, http.MethodGet, "/api/reports?sector=B&plate=abc", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var rows []parking.ReportRow
	require.NoError(t, json.Unmarshal(env.Data, &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "B2", rows[0].SlotCode)

	rec, _ = do(t, h, http.MethodGet, "/api/reports?day=yesterday", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsExposeOccupancy(t *testing.T) {
	h := newTestRouter(t)

	rec, _ := do(t, h, http.MethodPost, "/api/placements", "user1", RegisterRequest{SlotCode: "A1"})
	require.Equal(t, http.StatusCreated, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `moto_yard_slots{sector="A",status="occupied-no-plate"} 1`)
	assert.Contains(t, body, `moto_yard_slots{sector="B",status="free"} 3`)
	assert.Contains(t, body, "moto_yard_store_up 1")
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(parking.ErrNotFound))
	assert.Equal(t, http.StatusConflict, statusFor(parking.ErrLostRace))
	assert.Equal(t, http.StatusConflict, statusFor(parking.ErrSlotVacant))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(parking.ErrTransient))
	assert.Equal(t, http.StatusBadGateway, statusFor(parking.ErrIO))
	assert.Equal(t, http.StatusInternalServerError, statusFor(io.EOF))
	assert.Equal(t, http.StatusConflict, statusFor(parking.ErrSlotExists))
	assert.Equal(t, http.StatusBadRequest, statusFor(parking.ErrInvalidCode))
	assert.Equal(t, http.StatusNotImplemented, statusFor(parking.ErrUnsupported))
}

func TestCatalogAdmin(t *testing.T) {
	h := newTestRouter(t)

	rec, _ := do(t, h, http.MethodPost, "/api/sectors", "", map[string]string{"code": "C1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env := do(t, h, http.MethodPost, "/api/sectors", "RM555", map[string]string{"code": "c1"})
	require.Equal(t, http.StatusCreated, rec.Code, env.Error)
	var sector parking.Sector
	require.NoError(t, json.Unmarshal(env.Data, &sector))
	assert.Equal(t, "C1", sector.Code)

	rec, _ = do(t, h, http.MethodPost, "/api/sectors", "RM555", map[string]string{"code": "C1"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec, _ = do(t, h, http.MethodPost, "/api/sectors", "RM555", map[string]string{"code": "C"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/api/sectors/C/slots", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, h, http.MethodPost, "/api/placements", "RM555", map[string]string{"slot_code": "B2"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec, _ = do(t, h, http.MethodDelete, "/api/sectors/B2", "RM555", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = do(t, h, http.MethodDelete, "/api/sectors/c1", "RM555", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = do(t, h, http.MethodDelete, "/api/sectors/C1", "RM555", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequestIDFlowsIntoResponseMeta(t *testing.T) {
	h := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/sectors", nil)
	req.Header.Set("X-Request-ID", "req-7")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "req-7", rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "req-7", env.Meta.RequestID)
}

func TestServerAddress(t *testing.T) {
	logging.InitWithWriter(io.Discard, "moto-yard-test", "test")
	telemetry := parking.NewLocalTelemetryProvider("moto-yard-test")
	t.Cleanup(func() { _ = telemetry.Shutdown(context.Background()) })

	store := parking.NewMemoryStore(nil)
	ic, err := parking.NewInstrumentedCoordinator(parking.NewCoordinator(store, store), telemetry)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9090", NewServer("9090", "moto-yard-test", ic).GetAddress())
}
