package parking

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"moto-yard/internal/logging"
)

func TestInstrumentedCoordinatorIntegration(t *testing.T) {
	telemetry := NewLocalTelemetryProvider("moto-yard-test")
	defer func() {
		if err := telemetry.Shutdown(context.Background()); err != nil {
			t.Errorf("Failed to shutdown telemetry: %v", err)
		}
	}()

	store := newYard()
	ic, err := NewInstrumentedCoordinator(NewCoordinator(store, store), telemetry)
	if err != nil {
		t.Fatalf("Failed to create instrumented coordinator: %v", err)
	}

	ctx := context.Background()

	p, err := ic.Register(ctx, RegisterRequest{SlotCode: "A1", Plate: "ABC1234", ActorID: "user1"})
	if err != nil {
		t.Errorf("Unexpected error: %s", err.Error())
	}
	if p.SlotCode != "A1" {
		t.Errorf("Expected slot A1, got %s", p.SlotCode)
	}

	_, err = ic.Register(ctx, RegisterRequest{SlotCode: "A1", ActorID: "user2"})
	if !errors.Is(err, ErrSlotOccupied) {
		t.Errorf("Expected ErrSlotOccupied, got %v", err)
	}

	_, idx, err := ic.Occupancy(ctx)
	if err != nil {
		t.Errorf("Unexpected error: %s", err.Error())
	}
	if idx.Status("A1") != StatusOccupied {
		t.Errorf("Expected A1 occupied, got %s", idx.Status("A1"))
	}

	if _, err := ic.Depart(ctx, DepartRequest{SlotCode: "A1", ActorID: "user1"}); err != nil {
		t.Errorf("Unexpected error: %s", err.Error())
	}

	_, placements, err := ic.Snapshot(ctx)
	if err != nil {
		t.Errorf("Unexpected error: %s", err.Error())
	}
	if len(placements) != 2 {
		t.Errorf("Expected 2 placements, got %d", len(placements))
	}
}

func TestOutcome(t *testing.T) {
	tests := map[string]error{
		"success":   nil,
		"not_found": ErrNotFound,
		"rejected":  ErrLostRace,
		"transient": ErrTransient,
		"failed":    ErrIO,
	}
	for expected, err := range tests {
		if got := outcome(err); got != expected {
			t.Errorf("Expected %s for %v, got %s", expected, err, got)
		}
	}
}

func TestInstrumentedCoordinatorLogsSlotAndActor(t *testing.T) {
	var buf bytes.Buffer
	logging.InitWithWriter(&buf, "moto-yard-test", "production")

	telemetry := NewLocalTelemetryProvider("moto-yard-test")
	defer telemetry.Shutdown(context.Background())

	store := newYard()
	ic, err := NewInstrumentedCoordinator(NewCoordinator(store, store), telemetry)
	if err != nil {
		t.Fatalf("Failed to create instrumented coordinator: %v", err)
	}

	if _, err := ic.Register(context.Background(), RegisterRequest{SlotCode: " b1 ", Plate: "ABC1234", ActorID: "RM555"}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("Expected one JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["slot"] != "B1" {
		t.Errorf("Expected slot B1 in log, got %v", entry["slot"])
	}
	if entry["actor"] != "RM555" {
		t.Errorf("Expected actor RM555 in log, got %v", entry["actor"])
	}
}
