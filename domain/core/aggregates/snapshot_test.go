package aggregates

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gentree/domain/core/valueobjects"
)

func TestSnapshot_RoundTrip(t *testing.T) {
	s := family(t)
	s, _ = s.LinkParentChild("A", "C")
	s, _ = s.LinkParentChild("B", "C")
	s, _ = s.LinkSpouses("A", "B")
	s, _ = s.SetNodePosition("A", valueobjects.Position{X: 0, Y: 600})
	s, _ = s.SetNodePosition("C", valueobjects.Position{X: 0, Y: 460})

	data, err := EncodeSnapshot(s.Snapshot())
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"persons\"")

	raw, ok := DecodeSnapshot(data)
	require.True(t, ok)

	restored, _ := NewTreeState().ReplaceAll(raw.Persons, raw.Positions, testNow)
	assert.Equal(t, s.Persons(), restored.Persons())
	assert.Equal(t, s.Positions(), restored.Positions())
}

func TestEncodeSnapshot_Empty(t *testing.T) {
	data, err := EncodeSnapshot(NewTreeState().Snapshot())
	require.NoError(t, err)
	assert.JSONEq(t, `{"persons":[],"positions":{}}`, string(data))

	data, err = EncodeSnapshot(TreeSnapshot{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"persons":[],"positions":{}}`, string(data))
}

func TestDecodeSnapshot(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantOK      bool
		wantPersons int
		wantPos     int
	}{
		{name: "persons not an array", input: `{"persons":"not array"}`},
		{name: "persons missing", input: `{"positions":{}}`},
		{name: "persons null", input: `{"persons":null}`},
		{name: "not json", input: `{{{`},
		{name: "top level array", input: `[1,2]`},
		{name: "empty persons", input: `{"persons":[]}`, wantOK: true},
		{
			name:        "bad entries skipped",
			input:       `{"persons":[{"id":"a"},"junk",7,{"id":"b","parentIds":"x"}],"positions":{"a":{"x":1,"y":2},"b":{"x":"no"},"c":{"x":3}}}`,
			wantOK:      true,
			wantPersons: 2,
			wantPos:     1,
		},
		{name: "positions wrong type", input: `{"persons":[{"id":"a"}],"positions":[]}`, wantOK: true, wantPersons: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, ok := DecodeSnapshot([]byte(tt.input))
			assert.Equal(t, tt.wantOK, ok)
			if !tt.wantOK {
				return
			}
			assert.Len(t, raw.Persons, tt.wantPersons)
			assert.Len(t, raw.Positions, tt.wantPos)
		})
	}
}

func TestSnapshot_LegacyRecordsNormalized(t *testing.T) {
	raw, ok := DecodeSnapshot([]byte(`{"persons":[{"id":"old","name":"Great Grandpa","parentIds":"broken"}]}`))
	require.True(t, ok)

	s, _ := NewTreeState().ReplaceAll(raw.Persons, raw.Positions, testNow)
	p, ok := s.Person("old")
	require.True(t, ok)
	assert.Equal(t, "Great Grandpa", p.FirstName)
	assert.Empty(t, p.ParentIDs)
	assert.Equal(t, testNow.UnixMilli(), p.CreatedAt)

	data, err := EncodeSnapshot(s.Snapshot())
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	persons := doc["persons"].([]any)
	assert.Equal(t, "Great Grandpa", persons[0].(map[string]any)["firstName"])
}

func TestEdgesAndStats(t *testing.T) {
	s := family(t)
	s, _ = s.LinkParentChild("A", "C")
	s, _ = s.LinkParentChild("B", "C")
	s, _ = s.LinkParentChild("ghost", "D")
	s, _ = s.LinkSpouses("A", "B")
	s, _ = s.SetNodePosition("A", valueobjects.Position{})
	s, _ = s.SetNodePosition("ghost", valueobjects.Position{})

	edges := s.Edges()
	assert.Equal(t, []Edge{
		{Type: EdgeTypeSpouse, From: "A", To: "B"},
		{Type: EdgeTypeParentChild, From: "A", To: "C"},
		{Type: EdgeTypeParentChild, From: "B", To: "C"},
	}, edges)

	assert.Equal(t, Stats{
		Persons:          4,
		Roots:            2,
		Positioned:       1,
		ParentChildEdges: 2,
		SpouseEdges:      1,
	}, s.Stats())
}
