package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"moto-yard/internal/logging"
	"moto-yard/internal/parking"
)

type Handler struct {
	coordinator *parking.InstrumentedCoordinator
	serviceName string
}

func NewHandler(coordinator *parking.InstrumentedCoordinator, serviceName string) *Handler {
	return &Handler{coordinator: coordinator, serviceName: serviceName}
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Service: h.serviceName,
		Meta:    extractMeta(r.Context()),
	})
}

func (h *Handler) ListSectors(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	catalog, err := h.coordinator.Catalog(ctx)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}

	sectors := make([]SectorResponse, 0)
	for _, prefix := range catalog.Prefixes() {
		sectors = append(sectors, SectorResponse{Prefix: prefix, Slots: catalog.ListSlots(prefix)})
	}
	WriteSuccess(ctx, w, http.StatusOK, "Sectors retrieved successfully", sectors)
}

func (h *Handler) CreateSector(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if actorFrom(ctx) == "" {
		WriteError(ctx, w, http.StatusBadRequest, ActorHeader+" header is required")
		return
	}
	var req CreateSectorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	sector, err := h.coordinator.CreateSector(ctx, req.Code)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	WriteSuccess(ctx, w, http.StatusCreated, "Slot created successfully", sector)
}

func (h *Handler) DeleteSector(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if actorFrom(ctx) == "" {
		WriteError(ctx, w, http.StatusBadRequest, ActorHeader+" header is required")
		return
	}
	if err := h.coordinator.DeleteSector(ctx, chi.URLParam(r, "code")); err != nil {
		h.writeFailure(w, r, err)
		return
	}
	WriteSuccess(ctx, w, http.StatusOK, "Slot deleted successfully", nil)
}

func (h *Handler) ListSectorSlots(w http.ResponseWriter, r *http.Request) {
	h.writeOccupancy(w, r, chi.URLParam(r, "prefix"), true)
}

func (h *Handler) GetOccupancy(w http.ResponseWriter, r *http.Request) {
	h.writeOccupancy(w, r, r.URL.Query().Get("sector"), false)
}

func (h *Handler) writeOccupancy(w http.ResponseWriter, r *http.Request, prefix string, requireKnown bool) {
	ctx := r.Context()
	catalog, idx, err := h.coordinator.Occupancy(ctx)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}

	codes := catalog.ListSlots(prefix)
	if requireKnown && len(codes) == 0 {
		WriteError(ctx, w, http.StatusNotFound, "Sector not found")
		return
	}

	resp := OccupancyResponse{
		Total: len(codes),
		Counts: map[parking.Status]int{
			parking.StatusFree:            0,
			parking.StatusOccupied:        0,
			parking.StatusOccupiedNoPlate: 0,
		},
		Buckets: map[parking.Status][]string{
			parking.StatusFree:            {},
			parking.StatusOccupied:        {},
			parking.StatusOccupiedNoPlate: {},
		},
		Slots: make([]SlotStatus, 0, len(codes)),
	}
	for _, code := range codes {
		slot := SlotStatus{Code: code, Status: idx.Status(code)}
		if p, ok := idx.Active(code); ok {
			slot.Plate = p.Plate
			slot.MotorcycleID = p.MotorcycleID
			since := p.Timestamp
			slot.Since = &since
		}
		resp.Counts[slot.Status]++
		resp.Buckets[slot.Status] = append(resp.Buckets[slot.Status], code)
		resp.Slots = append(resp.Slots, slot)
	}

	WriteSuccess(ctx, w, http.StatusOK, "Occupancy retrieved successfully", resp)
}

func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	catalog, idx, err := h.coordinator.Occupancy(ctx)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}

	summaries := parking.Summarize(catalog, idx)
	if summaries == nil {
		summaries = []parking.SectorSummary{}
	}
	WriteSuccess(ctx, w, http.StatusOK, "Dashboard retrieved successfully", summaries)
}

func (h *Handler) RegisterPlacement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := actorFrom(ctx)
	if actor == "" {
		WriteError(ctx, w, http.StatusBadRequest, ActorHeader+" header is required")
		return
	}

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.SlotCode) == "" {
		WriteError(ctx, w, http.StatusBadRequest, "slot_code is required")
		return
	}

	p, err := h.coordinator.Register(ctx, parking.RegisterRequest{
		SlotCode: req.SlotCode,
		Plate:    req.Plate,
		ActorID:  actor,
	})
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}

	WriteSuccess(ctx, w, http.StatusCreated, "Motorcycle registered successfully", newPlacementResponse(p))
}

func (h *Handler) RegisterDeparture(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := actorFrom(ctx)
	if actor == "" {
		WriteError(ctx, w, http.StatusBadRequest, ActorHeader+" header is required")
		return
	}

	var req DepartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.SlotCode) == "" {
		WriteError(ctx, w, http.StatusBadRequest, "slot_code is required")
		return
	}

	p, err := h.coordinator.Depart(ctx, parking.DepartRequest{SlotCode: req.SlotCode, ActorID: actor})
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}

	WriteSuccess(ctx, w, http.StatusCreated, "Slot released successfully", newPlacementResponse(p))
}

func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	filter := parking.ReportFilter{
		Prefix: query.Get("sector"),
		Plate:  query.Get("plate"),
	}
	if day := query.Get("day"); day != "" {
		parsed, err := time.Parse(time.DateOnly, day)
		if err != nil {
			WriteError(ctx, w, http.StatusBadRequest, "day must be formatted as yyyy-mm-dd")
			return
		}
		filter.Day = parsed
	}

	catalog, placements, err := h.coordinator.Snapshot(ctx)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}

	WriteSuccess(ctx, w, http.StatusOK, "Report generated successfully", parking.BuildReport(catalog, placements, filter))
}

func (h *Handler) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logging.Error(ctx, "occupancy operation failed", "error", err.Error())
	}
	WriteError(ctx, w, status, err.Error())
}
