package apistore

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"moto-yard/internal/parking"
)

type sectorDTO struct {
	ID       string `json:"id"`
	SectorID string `json:"sectorId"`
	Code     string `json:"code"`
}

type motorcycleDTO struct {
	ID           string  `json:"id,omitempty"`
	MotorcycleID string  `json:"motorcycleId"`
	SectorID     string  `json:"sectorId"`
	Plate        string  `json:"plate,omitempty"`
	Placa        string  `json:"placa,omitempty"`
	CreatedAt    apiTime `json:"createdAt"`
	RecordedBy   string  `json:"recordedBy,omitempty"`
}

type movementDTO struct {
	ID           string  `json:"id,omitempty"`
	MovementID   string  `json:"movementId,omitempty"`
	MotorcycleID string  `json:"motorcycleId"`
	SectorID     string  `json:"sectorId"`
	Type         string  `json:"type"`
	CreatedAt    apiTime `json:"createdAt"`
	RecordedBy   string  `json:"recordedBy,omitempty"`
}

func (c *Client) FetchSectors(ctx context.Context) ([]parking.Sector, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/Sectors", nil, &raw); err != nil {
		return nil, err
	}
	items, err := unwrapList(raw)
	if err != nil {
		return nil, fmt.Errorf("decode sectors: %w: %w", parking.ErrIO, err)
	}

	sectors := make([]parking.Sector, 0, len(items))
	for _, item := range items {
		var dto sectorDTO
		if err := json.Unmarshal(item, &dto); err != nil {
			return nil, fmt.Errorf("decode sector: %w: %w", parking.ErrIO, err)
		}
		id := dto.ID
		if id == "" {
			id = dto.SectorID
		}
		sectors = append(sectors, parking.Sector{ID: id, Code: dto.Code})
	}
	return sectors, nil
}

// CreateSector posts the slot code. The server may assign its own ID, which
// then replaces the proposed one.
func (c *Client) CreateSector(ctx context.Context, sec parking.Sector) (parking.Sector, error) {
	req := struct {
		ID   string `json:"id,omitempty"`
		Code string `json:"code"`
	}{ID: sec.ID, Code: parking.NormalizeCode(sec.Code)}
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/Sectors", req, &raw); err != nil {
		if errors.Is(err, parking.ErrConflict) {
			return parking.Sector{}, fmt.Errorf("%w: %s: %w", parking.ErrSlotExists, req.Code, err)
		}
		return parking.Sector{}, err
	}

	created := parking.Sector{ID: req.ID, Code: req.Code}
	if items, err := unwrapList(wrapObject(raw)); err == nil && len(items) == 1 {
		var dto sectorDTO
		if json.Unmarshal(items[0], &dto) == nil {
			if id := cmp.Or(dto.ID, dto.SectorID); id != "" {
				created.ID = id
			}
		}
	}
	return created, nil
}

func (c *Client) DeleteSector(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/Sectors/"+url.PathEscape(id), nil, nil)
}

// FetchPlacements merges motorcycle entries with exit movements. The API has
// no commit counter, so sequence follows record time, then the server's list
// order. The coordinator's re-check does not rely on this order being the
// commit order.
func (c *Client) FetchPlacements(ctx context.Context) ([]parking.Placement, error) {
	entries, err := c.listMotorcycles(ctx)
	if err != nil {
		return nil, err
	}
	exits, err := c.listExits(ctx)
	if err != nil {
		return nil, err
	}

	placements := append(entries, exits...)
	sort.SliceStable(placements, func(i, j int) bool {
		return placements[i].Timestamp.Before(placements[j].Timestamp)
	})
	for i := range placements {
		placements[i].Sequence = int64(i + 1)
	}
	return placements, nil
}

func (c *Client) listMotorcycles(ctx context.Context) ([]parking.Placement, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/Motorcycles", nil, &raw); err != nil {
		return nil, err
	}
	items, err := unwrapList(raw)
	if err != nil {
		return nil, fmt.Errorf("decode motorcycles: %w: %w", parking.ErrIO, err)
	}

	out := make([]parking.Placement, 0, len(items))
	for _, item := range items {
		var dto motorcycleDTO
		if err := json.Unmarshal(item, &dto); err != nil {
			return nil, fmt.Errorf("decode motorcycle: %w: %w", parking.ErrIO, err)
		}
		out = append(out, dto.toPlacement())
	}
	return out, nil
}

func (c *Client) listExits(ctx context.Context) ([]parking.Placement, error) {
	var raw json.RawMessage
	query := url.Values{"type": {string(parking.MovementExit)}}
	if err := c.do(ctx, http.MethodGet, "/movements?"+query.Encode(), nil, &raw); err != nil {
		return nil, err
	}
	items, err := unwrapList(raw)
	if err != nil {
		return nil, fmt.Errorf("decode movements: %w: %w", parking.ErrIO, err)
	}

	var out []parking.Placement
	for _, item := range items {
		var dto movementDTO
		if err := json.Unmarshal(item, &dto); err != nil {
			return nil, fmt.Errorf("decode movement: %w: %w", parking.ErrIO, err)
		}
		if !strings.EqualFold(dto.Type, string(parking.MovementExit)) {
			continue
		}
		out = append(out, dto.toPlacement())
	}
	return out, nil
}

// CreatePlacement posts entries as motorcycles and exits as movements. An
// entry is identified by its motorcycle ID on this API, so the committed
// record carries that as its ID.
func (c *Client) CreatePlacement(ctx context.Context, p parking.Placement) (parking.Placement, error) {
	if p.IsExit() {
		req := movementDTO{
			ID:           p.ID,
			MotorcycleID: p.MotorcycleID,
			SectorID:     p.SectorID,
			Type:         string(parking.MovementExit),
			CreatedAt:    apiTime{p.Timestamp},
			RecordedBy:   p.RecordedBy,
		}
		var resp movementDTO
		if err := c.do(ctx, http.MethodPost, "/movements", req, &resp); err != nil {
			return parking.Placement{}, err
		}
		return merge(p, resp.toPlacement()), nil
	}

	req := motorcycleDTO{
		MotorcycleID: p.MotorcycleID,
		SectorID:     p.SectorID,
		Plate:        p.Plate,
		CreatedAt:    apiTime{p.Timestamp},
		RecordedBy:   p.RecordedBy,
	}
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/Motorcycles", req, &raw); err != nil {
		return parking.Placement{}, err
	}

	committed := p
	committed.ID = p.MotorcycleID
	if items, err := unwrapList(wrapObject(raw)); err == nil && len(items) == 1 {
		var dto motorcycleDTO
		if json.Unmarshal(items[0], &dto) == nil {
			committed = merge(committed, dto.toPlacement())
		}
	}
	return committed, nil
}

// DiscardPlacement deletes an entry by its motorcycle ID, or an exit by its
// movement ID. A record the server never stored counts as discarded.
func (c *Client) DiscardPlacement(ctx context.Context, p parking.Placement) error {
	path := "/Motorcycles/" + url.PathEscape(p.MotorcycleID)
	if p.IsExit() {
		path = "/movements/" + url.PathEscape(p.ID)
	}
	err := c.do(ctx, http.MethodDelete, path, nil, nil)
	if errors.Is(err, parking.ErrNotFound) {
		return nil
	}
	return err
}

func (dto motorcycleDTO) toPlacement() parking.Placement {
	id := dto.MotorcycleID
	if id == "" {
		id = dto.ID
	}
	plate := dto.Plate
	if plate == "" {
		plate = dto.Placa
	}
	return parking.Placement{
		ID:           id,
		MotorcycleID: id,
		SectorID:     dto.SectorID,
		Plate:        parking.NormalizePlate(plate),
		Movement:     parking.MovementEntry,
		Timestamp:    dto.CreatedAt.UTC(),
		RecordedBy:   dto.RecordedBy,
	}
}

func (dto movementDTO) toPlacement() parking.Placement {
	id := dto.ID
	if id == "" {
		id = dto.MovementID
	}
	return parking.Placement{
		ID:           id,
		MotorcycleID: dto.MotorcycleID,
		SectorID:     dto.SectorID,
		Movement:     parking.MovementExit,
		Timestamp:    dto.CreatedAt.UTC(),
		RecordedBy:   dto.RecordedBy,
	}
}

// merge fills the server's view of a record with anything it left out.
func merge(sent, got parking.Placement) parking.Placement {
	if got.ID != "" {
		sent.ID = got.ID
	}
	if !got.Timestamp.IsZero() {
		sent.Timestamp = got.Timestamp
	}
	return sent
}

// wrapObject lets a single returned object go through unwrapList.
func wrapObject(raw json.RawMessage) json.RawMessage {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "{") && !strings.Contains(trimmed, `"items"`) {
		return json.RawMessage("[" + trimmed + "]")
	}
	return raw
}

// apiTime accepts RFC 3339 timestamps as well as zone-less ones, which the
// back-end emits for UTC values.
type apiTime struct {
	time.Time
}

var apiTimeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", time.DateTime}

func (t *apiTime) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range apiTimeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}

func (t apiTime) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.UTC().Format(time.RFC3339Nano))
}
