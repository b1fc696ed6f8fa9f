package parking

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/fatih/color"
)

func runShell(t *testing.T, store *MemoryStore, script string) string {
	t.Helper()
	color.NoColor = true

	telemetry := NewLocalTelemetryProvider("moto-yard-test")
	ic, err := NewInstrumentedCoordinator(NewCoordinator(store, store), telemetry)
	if err != nil {
		t.Fatalf("Failed to create instrumented coordinator: %v", err)
	}

	var out bytes.Buffer
	NewShell(ic, telemetry, "RM123", strings.NewReader(script), &out).Run(context.Background())
	return out.String()
}

func TestShellRegisterAndStatus(t *testing.T) {
	out := runShell(t, newYard(), strings.Join([]string{
		"sectors",
		"slots A",
		"register A2 abc1234",
		"register A2 xyz9999",
		"register Z9",
		"status A",
		"depart A2",
		"depart A2",
		"summary",
		"bogus",
	}, "\n"))

	expected := []string{
		"A\t3 slots",
		"B\t1 slots",
		"A1 A2 A3",
		"in slot A2",
		"Sorry, slot is occupied. Pick another slot",
		"Slot not found",
		"A2\toccupied",
		"ABC1234",
		"Slot A2 is free",
		"Slot is already free",
		"A\t3\t3\t0",
		"Unknown command: bogus",
	}
	for _, want := range expected {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestShellReport(t *testing.T) {
	out := runShell(t, newYard(), "register A1\nreport A\nreport B\nreport - - not-a-date\n")

	if !strings.Contains(out, "entry\tA1\t-\tRM123") {
		t.Errorf("Expected report row for A1, got:\n%s", out)
	}
	if !strings.Contains(out, "No records") {
		t.Errorf("Expected empty report for sector B, got:\n%s", out)
	}
	if !strings.Contains(out, "Invalid date") {
		t.Errorf("Expected date validation, got:\n%s", out)
	}
}

func TestShellUsage(t *testing.T) {
	out := runShell(t, newYard(), "slots\nregister\ndepart\nstatus A B\n")

	for _, want := range []string{"Usage: slots", "Usage: register", "Usage: depart", "Usage: status"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q, got:\n%s", want, out)
		}
	}
}

func TestShellSlotAdmin(t *testing.T) {
	out := runShell(t, newYard(), strings.Join([]string{
		"add-slot b2",
		"add-slot B2",
		"add-slot 7",
		"slots B",
		"register B2",
		"remove-slot B2",
		"depart B2",
		"remove-slot B2",
		"remove-slot",
	}, "\n"))

	expected := []string{
		"Slot B2 added",
		"Slot already exists",
		"Slot codes are letters followed by a number",
		"B1 B2",
		"in slot B2",
		"Sorry, slot is occupied. Pick another slot",
		"Slot B2 is free",
		"Slot B2 removed",
		"Usage: remove-slot",
	}
	for _, want := range expected {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in output, got:\n%s", want, out)
		}
	}
}
