package parking

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"moto-yard/internal/logging"
)

type InstrumentedCoordinator struct {
	*Coordinator
	telemetry *TelemetryProvider

	registrations     metric.Int64Counter
	departures        metric.Int64Counter
	recheckLosses     metric.Int64Counter
	operationDuration metric.Float64Histogram
}

func NewInstrumentedCoordinator(coordinator *Coordinator, telemetry *TelemetryProvider) (*InstrumentedCoordinator, error) {
	meter := telemetry.Meter()

	registrations, err := meter.Int64Counter("registrations_total",
		metric.WithDescription("Total number of slot registrations"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	departures, err := meter.Int64Counter("departures_total",
		metric.WithDescription("Total number of slot departures"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	recheckLosses, err := meter.Int64Counter("registration_rechecks_lost_total",
		metric.WithDescription("Registrations discarded after losing the slot to a concurrent writer"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	operationDuration, err := meter.Float64Histogram("operation_duration_seconds",
		metric.WithDescription("Duration of occupancy operations"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return &InstrumentedCoordinator{
		Coordinator:       coordinator,
		telemetry:         telemetry,
		registrations:     registrations,
		departures:        departures,
		recheckLosses:     recheckLosses,
		operationDuration: operationDuration,
	}, nil
}

func (ic *InstrumentedCoordinator) Register(ctx context.Context, req RegisterRequest) (Placement, error) {
	ctx = logging.WithActor(logging.WithSlot(ctx, NormalizeCode(req.SlotCode)), req.ActorID)
	ctx, span := ic.telemetry.Tracer().Start(ctx, "coordinator.register",
		trace.WithAttributes(
			attribute.String("slot.code", NormalizeCode(req.SlotCode)),
			attribute.String("actor.id", req.ActorID),
			attribute.Bool("vehicle.has_plate", NormalizePlate(req.Plate) != NoPlate),
		))
	defer span.End()

	start := time.Now()
	placement, err := ic.Coordinator.Register(ctx, req)
	duration := time.Since(start).Seconds()

	labels := []attribute.KeyValue{
		attribute.String("operation", "register"),
		attribute.String("sector", SectorPrefix(NormalizeCode(req.SlotCode))),
		attribute.String("status", outcome(err)),
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, ErrLostRace) {
			ic.recheckLosses.Add(ctx, 1, metric.WithAttributes(labels[1]))
			logging.Warn(ctx, "registration discarded after concurrent write", "error", err)
		} else if errors.Is(err, ErrTransient) {
			logging.Error(ctx, "registration failed", "error", err)
		}
	} else {
		span.SetAttributes(
			attribute.String("motorcycle.id", placement.MotorcycleID),
			attribute.Int64("placement.sequence", placement.Sequence),
		)
		span.AddEvent("slot_registered")
		logging.Info(ctx, "slot registered", "motorcycle_id", placement.MotorcycleID, "sequence", placement.Sequence)
	}

	ic.registrations.Add(ctx, 1, metric.WithAttributes(labels...))
	ic.operationDuration.Record(ctx, duration, metric.WithAttributes(labels...))

	return placement, err
}

func (ic *InstrumentedCoordinator) Depart(ctx context.Context, req DepartRequest) (Placement, error) {
	ctx = logging.WithActor(logging.WithSlot(ctx, NormalizeCode(req.SlotCode)), req.ActorID)
	ctx, span := ic.telemetry.Tracer().Start(ctx, "coordinator.depart",
		trace.WithAttributes(
			attribute.String("slot.code", NormalizeCode(req.SlotCode)),
			attribute.String("actor.id", req.ActorID),
		))
	defer span.End()

	start := time.Now()
	placement, err := ic.Coordinator.Depart(ctx, req)
	duration := time.Since(start).Seconds()

	labels := []attribute.KeyValue{
		attribute.String("operation", "depart"),
		attribute.String("sector", SectorPrefix(NormalizeCode(req.SlotCode))),
		attribute.String("status", outcome(err)),
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.String("motorcycle.id", placement.MotorcycleID))
		span.AddEvent("slot_released")
		logging.Info(ctx, "slot released", "motorcycle_id", placement.MotorcycleID)
	}

	ic.departures.Add(ctx, 1, metric.WithAttributes(labels...))
	ic.operationDuration.Record(ctx, duration, metric.WithAttributes(labels...))

	return placement, err
}

func (ic *InstrumentedCoordinator) Occupancy(ctx context.Context) (*Catalog, Index, error) {
	ctx, span := ic.telemetry.Tracer().Start(ctx, "coordinator.occupancy")
	defer span.End()

	start := time.Now()
	catalog, idx, err := ic.Coordinator.Occupancy(ctx)
	duration := time.Since(start).Seconds()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		counts := idx.Counts()
		span.SetAttributes(
			attribute.Int("slots.total", idx.Len()),
			attribute.Int("slots.free", counts[StatusFree]),
			attribute.Int("slots.occupied", counts[StatusOccupied]),
			attribute.Int("slots.no_plate", counts[StatusOccupiedNoPlate]),
		)
	}

	ic.operationDuration.Record(ctx, duration, metric.WithAttributes(
		attribute.String("operation", "occupancy"),
		attribute.String("status", outcome(err)),
	))

	return catalog, idx, err
}

func (ic *InstrumentedCoordinator) Snapshot(ctx context.Context) (*Catalog, []Placement, error) {
	ctx, span := ic.telemetry.Tracer().Start(ctx, "coordinator.snapshot")
	defer span.End()

	catalog, placements, err := ic.Coordinator.Snapshot(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.Int("placements.count", len(placements)))
	}
	return catalog, placements, err
}

func (ic *InstrumentedCoordinator) CreateSector(ctx context.Context, code string) (Sector, error) {
	ctx = logging.WithSlot(ctx, NormalizeCode(code))
	ctx, span := ic.telemetry.Tracer().Start(ctx, "coordinator.create_sector",
		trace.WithAttributes(attribute.String("slot.code", NormalizeCode(code))))
	defer span.End()

	sector, err := ic.Coordinator.CreateSector(ctx, code)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return sector, err
	}
	span.SetAttributes(attribute.String("sector.id", sector.ID))
	logging.Info(ctx, "slot added to catalog", "sector_id", sector.ID)
	return sector, nil
}

func (ic *InstrumentedCoordinator) DeleteSector(ctx context.Context, code string) error {
	ctx = logging.WithSlot(ctx, NormalizeCode(code))
	ctx, span := ic.telemetry.Tracer().Start(ctx, "coordinator.delete_sector",
		trace.WithAttributes(attribute.String("slot.code", NormalizeCode(code))))
	defer span.End()

	if err := ic.Coordinator.DeleteSector(ctx, code); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	logging.Info(ctx, "slot removed from catalog")
	return nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case IsRejected(err), errors.Is(err, ErrSlotVacant):
		return "rejected"
	case errors.Is(err, ErrTransient):
		return "transient"
	default:
		return "failed"
	}
}
