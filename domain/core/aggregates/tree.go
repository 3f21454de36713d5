package aggregates

import (
	"slices"
	"time"

	"gentree/domain/core/entities"
	"gentree/domain/core/valueobjects"
)

// Change records which parts of the tree a transition touched.
type Change uint8

const (
	ChangePersons Change = 1 << iota
	ChangePositions
	ChangeRoot
	ChangeOffsets

	ChangeNone Change = 0
)

// Has reports whether any of the given flags are set.
func (c Change) Has(flags Change) bool {
	return c&flags != 0
}

// Persistent reports whether the change alters the saved snapshot.
func (c Change) Persistent() bool {
	return c.Has(ChangePersons | ChangePositions)
}

// TreeState is an immutable value of the family graph. Every transition
// returns a new state and leaves the receiver untouched, so a state can be
// shared with readers without copying.
//
// Persons keep their insertion order. Root selection and node offsets are
// session-only and never part of a snapshot.
type TreeState struct {
	persons   map[string]entities.Person
	order     []string
	rootID    string
	positions map[string]valueobjects.Position
	offsets   map[string]float64
}

// NewTreeState returns an empty tree.
func NewTreeState() TreeState {
	return TreeState{
		persons:   map[string]entities.Person{},
		positions: map[string]valueobjects.Position{},
		offsets:   map[string]float64{},
	}
}

// Len returns the number of persons.
func (s TreeState) Len() int {
	return len(s.order)
}

// Person looks up a person by id.
func (s TreeState) Person(id string) (entities.Person, bool) {
	p, ok := s.persons[id]
	if !ok {
		return entities.Person{}, false
	}
	return p.Clone(), true
}

// Has reports whether a person exists.
func (s TreeState) Has(id string) bool {
	_, ok := s.persons[id]
	return ok
}

// Persons returns every person in insertion order.
func (s TreeState) Persons() []entities.Person {
	out := make([]entities.Person, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.persons[id].Clone())
	}
	return out
}

// PersonsByID returns a lookup map suitable for the selectors.
func (s TreeState) PersonsByID() map[string]entities.Person {
	out := make(map[string]entities.Person, len(s.persons))
	for id, p := range s.persons {
		out[id] = p.Clone()
	}
	return out
}

// RootID returns the selected root, or "" when none is selected.
func (s TreeState) RootID() string {
	return s.rootID
}

// Position returns the stored canvas position of a node.
func (s TreeState) Position(id string) (valueobjects.Position, bool) {
	p, ok := s.positions[id]
	return p, ok
}

// Positions returns a copy of all stored positions.
func (s TreeState) Positions() map[string]valueobjects.Position {
	out := make(map[string]valueobjects.Position, len(s.positions))
	for id, p := range s.positions {
		out[id] = p
	}
	return out
}

// Offset returns the drag-preview offset of a node.
func (s TreeState) Offset(id string) (float64, bool) {
	o, ok := s.offsets[id]
	return o, ok
}

// Offsets returns a copy of all drag-preview offsets.
func (s TreeState) Offsets() map[string]float64 {
	out := make(map[string]float64, len(s.offsets))
	for id, o := range s.offsets {
		out[id] = o
	}
	return out
}

// AddPerson inserts a new person under id, built from input with no
// relations and created at now. An id that is empty or already taken leaves
// the state unchanged.
func (s TreeState) AddPerson(id string, input entities.PartialPerson, now time.Time) (TreeState, Change) {
	if id == "" || s.Has(id) {
		return s, ChangeNone
	}

	input.ID = id
	input.ParentIDs = nil
	input.SpouseIDs = nil
	createdAt := now.UnixMilli()
	input.CreatedAt = &createdAt

	next := s.withPersons()
	next.persons[id] = entities.NormalizeAt(input, now)
	next.order = append(slices.Clip(s.order), id)
	return next, ChangePersons
}

// UpdatePerson replaces an existing person with its normalized form.
func (s TreeState) UpdatePerson(p entities.Person, now time.Time) (TreeState, Change) {
	current, ok := s.persons[p.ID]
	if !ok {
		return s, ChangeNone
	}

	normalized := entities.NormalizeAt(p.Partial(), now)
	if current.Equal(normalized) {
		return s, ChangeNone
	}

	next := s.withPersons()
	next.persons[p.ID] = normalized
	return next, ChangePersons
}

// RemovePerson deletes a person and every trace of it: parent links held by
// other persons, its position and offset, and the root selection.
func (s TreeState) RemovePerson(id string) (TreeState, Change) {
	if !s.Has(id) {
		return s, ChangeNone
	}

	change := ChangePersons
	next := s.withPersons()
	delete(next.persons, id)
	next.order = slices.DeleteFunc(slices.Clone(s.order), func(existing string) bool { return existing == id })

	for otherID, other := range next.persons {
		if other.HasParent(id) {
			other.ParentIDs = withoutID(other.ParentIDs, id)
			next.persons[otherID] = other
		}
	}

	if s.rootID == id {
		next.rootID = ""
		change |= ChangeRoot
	}
	if _, ok := s.positions[id]; ok {
		next.positions = s.Positions()
		delete(next.positions, id)
		change |= ChangePositions
	}
	if _, ok := s.offsets[id]; ok {
		next.offsets = s.Offsets()
		delete(next.offsets, id)
		change |= ChangeOffsets
	}
	return next, change
}

// LinkParentChild records parentID as a parent of childID. A child keeps at
// most its first two parents; a further link is dropped.
func (s TreeState) LinkParentChild(parentID, childID string) (TreeState, Change) {
	child, ok := s.persons[childID]
	if !ok || child.HasParent(parentID) {
		return s, ChangeNone
	}

	parents := appendID(child.ParentIDs, parentID)
	if len(parents) > entities.MaxParents {
		parents = parents[:entities.MaxParents]
	}
	if slices.Equal(parents, child.ParentIDs) {
		return s, ChangeNone
	}

	child.ParentIDs = parents
	next := s.withPersons()
	next.persons[childID] = child
	return next, ChangePersons
}

// UnlinkParentChild removes parentID from the parents of childID.
func (s TreeState) UnlinkParentChild(parentID, childID string) (TreeState, Change) {
	child, ok := s.persons[childID]
	if !ok || !child.HasParent(parentID) {
		return s, ChangeNone
	}

	child.ParentIDs = withoutID(child.ParentIDs, parentID)
	next := s.withPersons()
	next.persons[childID] = child
	return next, ChangePersons
}

// LinkSpouses records a and b as spouses of each other.
func (s TreeState) LinkSpouses(aID, bID string) (TreeState, Change) {
	a, okA := s.persons[aID]
	b, okB := s.persons[bID]
	if !okA || !okB || (a.HasSpouse(bID) && b.HasSpouse(aID)) {
		return s, ChangeNone
	}

	next := s.withPersons()
	if !a.HasSpouse(bID) {
		a.SpouseIDs = appendID(a.SpouseIDs, bID)
		next.persons[aID] = a
	}
	// a self link lands on the record updated above
	b = next.persons[bID]
	if !b.HasSpouse(aID) {
		b.SpouseIDs = appendID(b.SpouseIDs, aID)
		next.persons[bID] = b
	}
	return next, ChangePersons
}

// UnlinkSpouses removes a and b from each other's spouses.
func (s TreeState) UnlinkSpouses(aID, bID string) (TreeState, Change) {
	a, okA := s.persons[aID]
	b, okB := s.persons[bID]
	if !okA || !okB || (!a.HasSpouse(bID) && !b.HasSpouse(aID)) {
		return s, ChangeNone
	}

	next := s.withPersons()
	a.SpouseIDs = withoutID(a.SpouseIDs, bID)
	next.persons[aID] = a
	b = next.persons[bID]
	b.SpouseIDs = withoutID(b.SpouseIDs, aID)
	next.persons[bID] = b
	return next, ChangePersons
}

// SetRootID selects a root without checking that it exists. "" clears it.
func (s TreeState) SetRootID(id string) (TreeState, Change) {
	if s.rootID == id {
		return s, ChangeNone
	}
	next := s
	next.rootID = id
	return next, ChangeRoot
}

// SetNodePosition stores the canvas position of a node. Non-finite
// coordinates are ignored.
func (s TreeState) SetNodePosition(id string, pos valueobjects.Position) (TreeState, Change) {
	if !pos.IsValid() {
		return s, ChangeNone
	}
	if current, ok := s.positions[id]; ok && current.Equals(pos) {
		return s, ChangeNone
	}
	next := s
	next.positions = s.Positions()
	next.positions[id] = pos
	return next, ChangePositions
}

// SetNodeOffset stores a transient drag-preview offset.
func (s TreeState) SetNodeOffset(id string, offset float64) (TreeState, Change) {
	if current, ok := s.offsets[id]; ok && current == offset {
		return s, ChangeNone
	}
	next := s
	next.offsets = s.Offsets()
	next.offsets[id] = offset
	return next, ChangeOffsets
}

// ReplaceAll swaps in a whole new person set and positions, normalizing
// every record. Records without an id are dropped; for repeated ids the first
// position in the sequence and the last record win. Root and offsets reset.
func (s TreeState) ReplaceAll(raw []entities.PartialPerson, positions map[string]valueobjects.Position, now time.Time) (TreeState, Change) {
	next := NewTreeState()
	for _, r := range raw {
		if r.ID == "" {
			continue
		}
		if !next.Has(r.ID) {
			next.order = append(next.order, r.ID)
		}
		next.persons[r.ID] = entities.NormalizeAt(r, now)
	}
	for id, pos := range positions {
		next.positions[id] = pos
	}

	change := ChangePersons | ChangePositions
	if s.rootID != "" {
		change |= ChangeRoot
	}
	if len(s.offsets) > 0 {
		change |= ChangeOffsets
	}
	return next, change
}

// withPersons returns a shallow copy of s with a private persons map.
func (s TreeState) withPersons() TreeState {
	next := s
	next.persons = make(map[string]entities.Person, len(s.persons)+1)
	for id, p := range s.persons {
		next.persons[id] = p
	}
	return next
}

// appendID returns ids plus id in a fresh slice so states never share a
// backing array that a later append could overwrite.
func appendID(ids []string, id string) []string {
	out := make([]string, 0, len(ids)+1)
	out = append(out, ids...)
	return append(out, id)
}

func withoutID(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}
