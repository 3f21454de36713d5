package aggregates

import (
	"encoding/json"

	"gentree/domain/core/entities"
	"gentree/domain/core/valueobjects"
)

// TreeSnapshot is the unit of persistence, export and import.
type TreeSnapshot struct {
	Persons   []entities.Person                `json:"persons"`
	Positions map[string]valueobjects.Position `json:"positions"`
}

// RawSnapshot is a decoded but not yet normalized snapshot.
type RawSnapshot struct {
	Persons   []entities.PartialPerson
	Positions map[string]valueobjects.Position
}

// Snapshot captures the persistent part of the state.
func (s TreeState) Snapshot() TreeSnapshot {
	return TreeSnapshot{
		Persons:   s.Persons(),
		Positions: s.Positions(),
	}
}

// EncodeSnapshot renders a snapshot as JSON indented by two spaces.
func EncodeSnapshot(snap TreeSnapshot) ([]byte, error) {
	if snap.Persons == nil {
		snap.Persons = []entities.Person{}
	}
	if snap.Positions == nil {
		snap.Positions = map[string]valueobjects.Position{}
	}
	return json.MarshalIndent(snap, "", "  ")
}

// DecodeSnapshot parses a stored or imported snapshot. It reports false when
// the document is not JSON or its persons field is not an array. Positions
// that are not {x, y} numbers are skipped.
func DecodeSnapshot(data []byte) (RawSnapshot, bool) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil || doc == nil {
		return RawSnapshot{}, false
	}

	var items []json.RawMessage
	if err := json.Unmarshal(doc["persons"], &items); err != nil || items == nil {
		return RawSnapshot{}, false
	}

	raw := RawSnapshot{
		Persons:   make([]entities.PartialPerson, 0, len(items)),
		Positions: map[string]valueobjects.Position{},
	}
	for _, item := range items {
		var pp entities.PartialPerson
		if err := json.Unmarshal(item, &pp); err != nil {
			continue
		}
		raw.Persons = append(raw.Persons, pp)
	}

	var positions map[string]json.RawMessage
	if err := json.Unmarshal(doc["positions"], &positions); err == nil {
		for id, item := range positions {
			if pos, ok := decodePosition(item); ok {
				raw.Positions[id] = pos
			}
		}
	}
	return raw, true
}

func decodePosition(data json.RawMessage) (valueobjects.Position, bool) {
	var fields struct {
		X *float64 `json:"x"`
		Y *float64 `json:"y"`
	}
	if err := json.Unmarshal(data, &fields); err != nil || fields.X == nil || fields.Y == nil {
		return valueobjects.Position{}, false
	}
	return valueobjects.Position{X: *fields.X, Y: *fields.Y}, true
}
