package parking

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Shell is the operator console: one command per line, answers on out.
type Shell struct {
	coordinator *InstrumentedCoordinator
	telemetry   *TelemetryProvider
	actorID     string
	scanner     *bufio.Scanner
	out         io.Writer

	ok   *color.Color
	warn *color.Color
	fail *color.Color
}

func NewShell(coordinator *InstrumentedCoordinator, telemetry *TelemetryProvider, actorID string, in io.Reader, out io.Writer) *Shell {
	return &Shell{
		coordinator: coordinator,
		telemetry:   telemetry,
		actorID:     actorID,
		scanner:     bufio.NewScanner(in),
		out:         out,
		ok:          color.New(color.FgGreen),
		warn:        color.New(color.FgYellow),
		fail:        color.New(color.FgRed),
	}
}

func (s *Shell) Run(ctx context.Context) {
	tracer := s.telemetry.Tracer()
	ctx, span := tracer.Start(ctx, "shell.run",
		trace.WithAttributes(attribute.String("actor.id", s.actorID)))
	defer span.End()

	span.AddEvent("shell_started")

	for ctx.Err() == nil && s.scanner.Scan() {
		input := strings.TrimSpace(s.scanner.Text())
		if input == "" {
			continue
		}

		cmdCtx, cmdSpan := tracer.Start(ctx, "shell.process_command",
			trace.WithAttributes(attribute.String("command.input", input)))
		s.processCommand(cmdCtx, input)
		cmdSpan.End()
	}

	span.AddEvent("shell_ended")
}

func (s *Shell) processCommand(ctx context.Context, input string) {
	parts := strings.Fields(input)
	command, args := parts[0], parts[1:]

	switch command {
	case "sectors":
		s.handleSectors(ctx)
	case "slots":
		s.handleSlots(ctx, args)
	case "status":
		s.handleStatus(ctx, args)
	case "register":
		s.handleRegister(ctx, args)
	case "depart":
		s.handleDepart(ctx, args)
	case "summary":
		s.handleSummary(ctx)
	case "report":
		s.handleReport(ctx, args)
	case "add-slot":
		s.handleAddSlot(ctx, args)
	case "remove-slot":
		s.handleRemoveSlot(ctx, args)
	default:
		fmt.Fprintf(s.out, "Unknown command: %s\n", command)
	}
}

func (s *Shell) handleSectors(ctx context.Context) {
	catalog, err := s.coordinator.Catalog(ctx)
	if err != nil {
		s.printError(err)
		return
	}
	for _, prefix := range catalog.Prefixes() {
		fmt.Fprintf(s.out, "%s\t%d slots\n", prefix, len(catalog.ListSlots(prefix)))
	}
}

func (s *Shell) handleSlots(ctx context.Context, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.out, "Usage: slots <sector>")
		return
	}

	catalog, err := s.coordinator.Catalog(ctx)
	if err != nil {
		s.printError(err)
		return
	}
	fmt.Fprintln(s.out, strings.Join(catalog.ListSlots(args[0]), " "))
}

func (s *Shell) handleStatus(ctx context.Context, args []string) {
	if len(args) > 1 {
		fmt.Fprintln(s.out, "Usage: status [sector]")
		return
	}
	prefix := ""
	if len(args) == 1 {
		prefix = args[0]
	}

	catalog, idx, err := s.coordinator.Occupancy(ctx)
	if err != nil {
		s.printError(err)
		return
	}

	fmt.Fprintln(s.out, "Slot\tStatus\t\tPlate")
	for _, code := range catalog.ListSlots(prefix) {
		status := idx.Status(code)
		plate := ""
		if p, ok := idx.Active(code); ok {
			plate = p.Plate
		}
		s.colorFor(status).Fprintf(s.out, "%s\t%-17s\t%s\n", code, status, plate)
	}
}

func (s *Shell) handleRegister(ctx context.Context, args []string) {
	if len(args) < 1 || len(args) > 2 {
		fmt.Fprintln(s.out, "Usage: register <slot> [plate]")
		return
	}
	req := RegisterRequest{SlotCode: args[0], ActorID: s.actorID}
	if len(args) == 2 {
		req.Plate = args[1]
	}

	p, err := s.coordinator.Register(ctx, req)
	if err != nil {
		s.printError(err)
		return
	}
	s.ok.Fprintf(s.out, "Registered motorcycle %s in slot %s\n", p.MotorcycleID, p.SlotCode)
}

func (s *Shell) handleDepart(ctx context.Context, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.out, "Usage: depart <slot>")
		return
	}

	p, err := s.coordinator.Depart(ctx, DepartRequest{SlotCode: args[0], ActorID: s.actorID})
	if err != nil {
		s.printError(err)
		return
	}
	s.ok.Fprintf(s.out, "Slot %s is free\n", p.SlotCode)
}

func (s *Shell) handleAddSlot(ctx context.Context, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.out, "Usage: add-slot <slot>")
		return
	}

	sector, err := s.coordinator.CreateSector(ctx, args[0])
	if err != nil {
		s.printError(err)
		return
	}
	s.ok.Fprintf(s.out, "Slot %s added\n", sector.Code)
}

func (s *Shell) handleRemoveSlot(ctx context.Context, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.out, "Usage: remove-slot <slot>")
		return
	}

	if err := s.coordinator.DeleteSector(ctx, args[0]); err != nil {
		s.printError(err)
		return
	}
	s.ok.Fprintf(s.out, "Slot %s removed\n", NormalizeCode(args[0]))
}

func (s *Shell) handleSummary(ctx context.Context) {
	catalog, idx, err := s.coordinator.Occupancy(ctx)
	if err != nil {
		s.printError(err)
		return
	}

	fmt.Fprintln(s.out, "Sector\tTotal\tFree\tOccupied\tNo plate")
	for _, sum := range Summarize(catalog, idx) {
		fmt.Fprintf(s.out, "%s\t%d\t%d\t%d\t\t%d\n", sum.Prefix, sum.Total, sum.Free, sum.Occupied, sum.NoPlate)
	}
}

func (s *Shell) handleReport(ctx context.Context, args []string) {
	if len(args) > 3 {
		fmt.Fprintln(s.out, "Usage: report [sector] [plate] [yyyy-mm-dd]")
		return
	}
	var filter ReportFilter
	if len(args) > 0 && args[0] != "-" {
		filter.Prefix = args[0]
	}
	if len(args) > 1 && args[1] != "-" {
		filter.Plate = args[1]
	}
	if len(args) > 2 {
		day, err := time.Parse(time.DateOnly, args[2])
		if err != nil {
			fmt.Fprintln(s.out, "Invalid date, expected yyyy-mm-dd")
			return
		}
		filter.Day = day
	}

	catalog, placements, err := s.coordinator.Snapshot(ctx)
	if err != nil {
		s.printError(err)
		return
	}

	rows := BuildReport(catalog, placements, filter)
	if len(rows) == 0 {
		fmt.Fprintln(s.out, "No records")
		return
	}
	for _, r := range rows {
		plate := r.Plate
		if plate == NoPlate {
			plate = "-"
		}
		fmt.Fprintf(s.out, "%s\t%s\t%s\t%s\t%s\n",
			r.Timestamp.Format(time.DateTime), r.Movement, r.SlotCode, plate, r.RecordedBy)
	}
}

func (s *Shell) colorFor(status Status) *color.Color {
	switch status {
	case StatusFree:
		return s.ok
	case StatusOccupiedNoPlate:
		return s.fail
	default:
		return s.warn
	}
}

func (s *Shell) printError(err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		s.fail.Fprintln(s.out, "Slot not found")
	case errors.Is(err, ErrSlotExists):
		s.warn.Fprintln(s.out, "Slot already exists")
	case IsRejected(err):
		s.warn.Fprintln(s.out, "Sorry, slot is occupied. Pick another slot")
	case errors.Is(err, ErrSlotVacant):
		s.warn.Fprintln(s.out, "Slot is already free")
	case errors.Is(err, ErrInvalidCode):
		s.fail.Fprintln(s.out, "Slot codes are letters followed by a number, like A12")
	default:
		s.fail.Fprintf(s.out, "Error: %s\n", err.Error())
	}
}
