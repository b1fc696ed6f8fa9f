package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	"moto-yard/internal/logging"
	"moto-yard/internal/parking"
)

type Meta struct {
	TraceID   string `json:"trace_id,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Meta    *Meta  `json:"meta,omitempty"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Meta    *Meta  `json:"meta,omitempty"`
}

type RegisterRequest struct {
	SlotCode string `json:"slot_code"`
	Plate    string `json:"plate"`
}

type DepartRequest struct {
	SlotCode string `json:"slot_code"`
}

type CreateSectorRequest struct {
	Code string `json:"code"`
}

type SectorResponse struct {
	Prefix string   `json:"sector"`
	Slots  []string `json:"slots"`
}

type SlotStatus struct {
	Code         string         `json:"code"`
	Status       parking.Status `json:"status"`
	Plate        string         `json:"plate,omitempty"`
	MotorcycleID string         `json:"motorcycle_id,omitempty"`
	Since        *time.Time     `json:"since,omitempty"`
}

type OccupancyResponse struct {
	Total   int                         `json:"total"`
	Counts  map[parking.Status]int      `json:"counts"`
	Buckets map[parking.Status][]string `json:"buckets"`
	Slots   []SlotStatus                `json:"slots"`
}

type PlacementResponse struct {
	ID           string           `json:"id"`
	MotorcycleID string           `json:"motorcycle_id"`
	SlotCode     string           `json:"slot_code"`
	Plate        string           `json:"plate,omitempty"`
	Movement     parking.Movement `json:"movement"`
	Timestamp    time.Time        `json:"timestamp"`
	RecordedBy   string           `json:"recorded_by"`
}

func newPlacementResponse(p parking.Placement) PlacementResponse {
	return PlacementResponse{
		ID:           p.ID,
		MotorcycleID: p.MotorcycleID,
		SlotCode:     p.SlotCode,
		Plate:        p.Plate,
		Movement:     p.Movement,
		Timestamp:    p.Timestamp,
		RecordedBy:   p.RecordedBy,
	}
}

func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func extractMeta(ctx context.Context) *Meta {
	meta := &Meta{}

	span := trace.SpanFromContext(ctx)
	if span.SpanContext().HasTraceID() {
		meta.TraceID = span.SpanContext().TraceID().String()
	}

	meta.RequestID = logging.RequestID(ctx)

	return meta
}

func WriteSuccess(ctx context.Context, w http.ResponseWriter, status int, message string, data any) {
	WriteJSON(w, status, Response{
		Success: true,
		Message: message,
		Data:    data,
		Meta:    extractMeta(ctx),
	})
}

func WriteError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, Response{
		Success: false,
		Error:   message,
		Meta:    extractMeta(ctx),
	})
}

// statusFor maps occupancy errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, parking.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, parking.ErrInvalidCode):
		return http.StatusBadRequest
	case errors.Is(err, parking.ErrUnsupported):
		return http.StatusNotImplemented
	case parking.IsRejected(err), errors.Is(err, parking.ErrSlotVacant), errors.Is(err, parking.ErrSlotExists):
		return http.StatusConflict
	case errors.Is(err, parking.ErrTransient):
		return http.StatusServiceUnavailable
	case errors.Is(err, parking.ErrIO):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
