package entities

import (
	"encoding/json"
	"slices"
)

// Person is a node of the family graph.
//
// ParentIDs holds at most two ids in the order they were linked. SpouseIDs is a
// set kept in insertion order; the tree keeps it symmetric. Ids in either list
// may dangle after a removal and are resolved lazily by readers.
type Person struct {
	ID           string   `json:"id"`
	FirstName    string   `json:"firstName"`
	LastName     string   `json:"lastName,omitempty"`
	Name         string   `json:"name,omitempty"` // legacy display string
	BirthDateISO string   `json:"birthDateISO,omitempty"`
	DeathDateISO string   `json:"deathDateISO,omitempty"`
	Comment      string   `json:"comment,omitempty"`
	PhotoURI     string   `json:"photoUri,omitempty"`
	ParentIDs    []string `json:"parentIds"`
	SpouseIDs    []string `json:"spouseIds"`
	CreatedAt    int64    `json:"createdAt"`
}

// HasParent reports whether id is one of the recorded parents.
func (p Person) HasParent(id string) bool {
	return containsID(p.ParentIDs, id)
}

// HasSpouse reports whether id is a recorded spouse.
func (p Person) HasSpouse(id string) bool {
	return containsID(p.SpouseIDs, id)
}

// IsRootCandidate reports whether the person has no recorded parents.
func (p Person) IsRootCandidate() bool {
	return len(p.ParentIDs) == 0
}

// Clone returns a copy that shares no slices with p.
func (p Person) Clone() Person {
	c := p
	c.ParentIDs = append([]string{}, p.ParentIDs...)
	c.SpouseIDs = append([]string{}, p.SpouseIDs...)
	return c
}

// Equal compares every field, including relation order.
func (p Person) Equal(other Person) bool {
	return p.ID == other.ID &&
		p.FirstName == other.FirstName &&
		p.LastName == other.LastName &&
		p.Name == other.Name &&
		p.BirthDateISO == other.BirthDateISO &&
		p.DeathDateISO == other.DeathDateISO &&
		p.Comment == other.Comment &&
		p.PhotoURI == other.PhotoURI &&
		p.CreatedAt == other.CreatedAt &&
		slices.Equal(p.ParentIDs, other.ParentIDs) &&
		slices.Equal(p.SpouseIDs, other.SpouseIDs)
}

// Partial converts a stored person back into raw input form. CreatedAt is
// always carried over, zero included, so normalization never restamps it.
func (p Person) Partial() PartialPerson {
	first := p.FirstName
	createdAt := p.CreatedAt
	raw := PartialPerson{
		ID:           p.ID,
		FirstName:    &first,
		LastName:     p.LastName,
		Name:         p.Name,
		BirthDateISO: p.BirthDateISO,
		DeathDateISO: p.DeathDateISO,
		Comment:      p.Comment,
		PhotoURI:     p.PhotoURI,
		ParentIDs:    p.ParentIDs,
		SpouseIDs:    p.SpouseIDs,
		CreatedAt:    &createdAt,
	}
	return raw
}

// PartialPerson is a person record as found in storage or import files:
// any field may be missing or carry the wrong type.
//
// A nil FirstName or CreatedAt means the field was absent. A nil slice means
// the field was absent or not an array.
type PartialPerson struct {
	ID           string
	FirstName    *string
	LastName     string
	Name         string
	BirthDateISO string
	DeathDateISO string
	Comment      string
	PhotoURI     string
	ParentIDs    []string
	SpouseIDs    []string
	CreatedAt    *int64
}

// UnmarshalJSON decodes leniently. Fields holding the wrong JSON type are
// dropped, and non-string entries of id arrays are skipped.
func (pp *PartialPerson) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	*pp = PartialPerson{}
	pp.ID, _ = decodeString(fields["id"])
	if first, ok := decodeString(fields["firstName"]); ok {
		pp.FirstName = &first
	}
	pp.LastName, _ = decodeString(fields["lastName"])
	pp.Name, _ = decodeString(fields["name"])
	pp.BirthDateISO, _ = decodeString(fields["birthDateISO"])
	pp.DeathDateISO, _ = decodeString(fields["deathDateISO"])
	pp.Comment, _ = decodeString(fields["comment"])
	pp.PhotoURI, _ = decodeString(fields["photoUri"])
	pp.ParentIDs = decodeIDList(fields["parentIds"])
	pp.SpouseIDs = decodeIDList(fields["spouseIds"])

	if raw, ok := fields["createdAt"]; ok {
		var ms float64
		if err := json.Unmarshal(raw, &ms); err == nil && string(raw) != "null" {
			createdAt := int64(ms)
			pp.CreatedAt = &createdAt
		}
	}
	return nil
}

func decodeString(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func decodeIDList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil || items == nil {
		return nil
	}
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if id, ok := decodeString(item); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

func containsID(ids []string, id string) bool {
	return slices.Contains(ids, id)
}
