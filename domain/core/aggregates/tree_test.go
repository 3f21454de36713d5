package aggregates

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gentree/domain/core/entities"
	"gentree/domain/core/valueobjects"
)

var testNow = time.UnixMilli(1_700_000_000_000)

func first(name string) entities.PartialPerson {
	return entities.PartialPerson{FirstName: &name}
}

func mustAdd(t *testing.T, s TreeState, id, name string) TreeState {
	t.Helper()
	next, change := s.AddPerson(id, first(name), testNow)
	require.True(t, change.Has(ChangePersons))
	return next
}

func family(t *testing.T) TreeState {
	s := NewTreeState()
	for _, p := range []struct{ id, name string }{{"A", "Anna"}, {"B", "Boris"}, {"C", "Carol"}, {"D", "Dave"}} {
		s = mustAdd(t, s, p.id, p.name)
	}
	return s
}

func TestAddPerson(t *testing.T) {
	s := NewTreeState()
	input := entities.PartialPerson{
		FirstName: func() *string { v := "Alice"; return &v }(),
		ParentIDs: []string{"X"},
		SpouseIDs: []string{"Y"},
		CreatedAt: func() *int64 { v := int64(1); return &v }(),
	}

	next, change := s.AddPerson("id-1", input, testNow)
	assert.Equal(t, ChangePersons, change)
	assert.Equal(t, 0, s.Len(), "receiver untouched")

	p, ok := next.Person("id-1")
	require.True(t, ok)
	assert.Equal(t, "Alice", p.FirstName)
	assert.Empty(t, p.ParentIDs)
	assert.Empty(t, p.SpouseIDs)
	assert.Equal(t, testNow.UnixMilli(), p.CreatedAt)

	again, change := next.AddPerson("id-1", first("Other"), testNow)
	assert.Equal(t, ChangeNone, change)
	assert.Equal(t, 1, again.Len())

	_, change = next.AddPerson("", first("Nobody"), testNow)
	assert.Equal(t, ChangeNone, change)
}

func TestPersons_InsertionOrder(t *testing.T) {
	s := NewTreeState()
	for _, id := range []string{"z", "a", "m"} {
		s = mustAdd(t, s, id, id)
	}
	var got []string
	for _, p := range s.Persons() {
		got = append(got, p.ID)
	}
	assert.Equal(t, []string{"z", "a", "m"}, got)
}

func TestUpdatePerson(t *testing.T) {
	s := family(t)
	p, _ := s.Person("A")
	p.LastName = "Smith"
	p.SpouseIDs = []string{"B", "B"}

	next, change := s.UpdatePerson(p, testNow)
	assert.Equal(t, ChangePersons, change)
	updated, _ := next.Person("A")
	assert.Equal(t, "Smith", updated.LastName)
	assert.Equal(t, []string{"B"}, updated.SpouseIDs)

	_, change = next.UpdatePerson(updated, testNow)
	assert.Equal(t, ChangeNone, change, "identical record is not a change")

	_, change = s.UpdatePerson(entities.Person{ID: "missing", FirstName: "X"}, testNow)
	assert.Equal(t, ChangeNone, change)
}

func TestUpdatePerson_KeepsZeroCreatedAt(t *testing.T) {
	zero := int64(0)
	s, _ := NewTreeState().ReplaceAll([]entities.PartialPerson{{ID: "a", CreatedAt: &zero}}, nil, testNow)
	p, ok := s.Person("a")
	require.True(t, ok)
	require.Zero(t, p.CreatedAt)

	next, change := s.UpdatePerson(p, time.UnixMilli(999999))
	assert.Equal(t, ChangeNone, change, "unchanged record is not restamped")
	stored, _ := next.Person("a")
	assert.Zero(t, stored.CreatedAt)

	p.Comment = "edited"
	next, change = s.UpdatePerson(p, time.UnixMilli(999999))
	assert.Equal(t, ChangePersons, change)
	stored, _ = next.Person("a")
	assert.Zero(t, stored.CreatedAt)
	assert.Equal(t, "edited", stored.Comment)
}

func TestLinkParentChild_AtMostTwoParents(t *testing.T) {
	s := family(t)
	s, _ = s.LinkParentChild("A", "D")
	s, _ = s.LinkParentChild("B", "D")

	next, change := s.LinkParentChild("C", "D")
	assert.Equal(t, ChangeNone, change, "third parent dropped")
	d, _ := next.Person("D")
	assert.Equal(t, []string{"A", "B"}, d.ParentIDs)

	for i := 0; i < 5; i++ {
		next, _ = next.LinkParentChild("A", "D")
	}
	d, _ = next.Person("D")
	assert.Len(t, d.ParentIDs, 2)

	_, change = s.LinkParentChild("A", "missing")
	assert.Equal(t, ChangeNone, change)
}

func TestLinkParentChild_DanglingParentTolerated(t *testing.T) {
	s := family(t)
	s, change := s.LinkParentChild("ghost", "C")
	assert.Equal(t, ChangePersons, change)
	c, _ := s.Person("C")
	assert.Equal(t, []string{"ghost"}, c.ParentIDs)
}

func TestUnlinkParentChild(t *testing.T) {
	s := family(t)
	s, _ = s.LinkParentChild("A", "C")
	s, _ = s.LinkParentChild("B", "C")

	s, change := s.UnlinkParentChild("A", "C")
	assert.Equal(t, ChangePersons, change)
	c, _ := s.Person("C")
	assert.Equal(t, []string{"B"}, c.ParentIDs)

	_, change = s.UnlinkParentChild("A", "C")
	assert.Equal(t, ChangeNone, change)
	_, change = s.UnlinkParentChild("A", "missing")
	assert.Equal(t, ChangeNone, change)
}

func TestLinkSpouses(t *testing.T) {
	s := family(t)
	before, _ := s.Person("A")

	linked, change := s.LinkSpouses("A", "B")
	assert.Equal(t, ChangePersons, change)
	a, _ := linked.Person("A")
	b, _ := linked.Person("B")
	assert.Equal(t, []string{"B"}, a.SpouseIDs)
	assert.Equal(t, []string{"A"}, b.SpouseIDs)

	again, change := linked.LinkSpouses("A", "B")
	assert.Equal(t, ChangeNone, change)
	a2, _ := again.Person("A")
	assert.Len(t, a2.SpouseIDs, 1)

	unlinked, change := linked.UnlinkSpouses("A", "B")
	assert.Equal(t, ChangePersons, change)
	a3, _ := unlinked.Person("A")
	b3, _ := unlinked.Person("B")
	assert.Equal(t, before.SpouseIDs, a3.SpouseIDs)
	assert.Empty(t, b3.SpouseIDs)

	_, change = s.LinkSpouses("A", "missing")
	assert.Equal(t, ChangeNone, change)
	_, change = s.UnlinkSpouses("missing", "A")
	assert.Equal(t, ChangeNone, change)
}

func TestLinkSpouses_RepairsAsymmetry(t *testing.T) {
	s := NewTreeState()
	s, _ = s.ReplaceAll([]entities.PartialPerson{
		{ID: "A", SpouseIDs: []string{"B"}},
		{ID: "B"},
	}, nil, testNow)

	s, change := s.LinkSpouses("A", "B")
	assert.Equal(t, ChangePersons, change)
	b, _ := s.Person("B")
	assert.Equal(t, []string{"A"}, b.SpouseIDs)
	a, _ := s.Person("A")
	assert.Equal(t, []string{"B"}, a.SpouseIDs)
}

func TestRemovePerson_Cascades(t *testing.T) {
	s := family(t)
	s, _ = s.LinkParentChild("A", "C")
	s, _ = s.LinkParentChild("B", "C")
	s, _ = s.LinkParentChild("A", "D")
	s, _ = s.SetRootID("A")
	s, _ = s.SetNodePosition("A", valueobjects.Position{X: 1, Y: 2})
	s, _ = s.SetNodeOffset("A", 12)

	next, change := s.RemovePerson("A")
	assert.True(t, change.Has(ChangePersons))
	assert.True(t, change.Has(ChangePositions))
	assert.True(t, change.Has(ChangeRoot))
	assert.True(t, change.Has(ChangeOffsets))

	assert.False(t, next.Has("A"))
	for _, p := range next.Persons() {
		assert.NotContains(t, p.ParentIDs, "A")
	}
	_, hasPos := next.Position("A")
	_, hasOffset := next.Offset("A")
	assert.False(t, hasPos)
	assert.False(t, hasOffset)
	assert.Empty(t, next.RootID())
	assert.Equal(t, 3, next.Len())

	assert.True(t, s.Has("A"), "previous state untouched")
	c, _ := s.Person("C")
	assert.Equal(t, []string{"A", "B"}, c.ParentIDs)

	_, change = next.RemovePerson("A")
	assert.Equal(t, ChangeNone, change)
}

func TestRemovePerson_KeepsSpouseReferences(t *testing.T) {
	s := family(t)
	s, _ = s.LinkSpouses("A", "B")
	s, _ = s.RemovePerson("A")

	b, _ := s.Person("B")
	assert.Equal(t, []string{"A"}, b.SpouseIDs, "spouse ids dangle and are resolved lazily")
	assert.Empty(t, s.Edges())
}

func TestSetRootAndPositions(t *testing.T) {
	s := NewTreeState()

	s, change := s.SetRootID("unknown")
	assert.Equal(t, ChangeRoot, change)
	assert.Equal(t, "unknown", s.RootID())

	_, change = s.SetRootID("unknown")
	assert.Equal(t, ChangeNone, change)

	s, change = s.SetNodePosition("n", valueobjects.Position{X: 3, Y: 4})
	assert.Equal(t, ChangePositions, change)
	_, change = s.SetNodePosition("n", valueobjects.Position{X: 3, Y: 4})
	assert.Equal(t, ChangeNone, change)
	_, change = s.SetNodePosition("n", valueobjects.Position{X: math.NaN(), Y: 4})
	assert.Equal(t, ChangeNone, change, "non-finite position ignored")
	_, change = s.SetNodePosition("m", valueobjects.Position{X: 0, Y: math.Inf(1)})
	assert.Equal(t, ChangeNone, change)

	s, change = s.SetNodeOffset("n", 7.5)
	assert.Equal(t, ChangeOffsets, change)
	assert.False(t, change.Persistent())
	o, ok := s.Offset("n")
	assert.True(t, ok)
	assert.Equal(t, 7.5, o)

	s, _ = s.SetRootID("")
	assert.Empty(t, s.RootID())
}

func TestReplaceAll(t *testing.T) {
	s := family(t)
	s, _ = s.SetRootID("A")
	s, _ = s.SetNodeOffset("A", 1)

	name := "Second"
	raw := []entities.PartialPerson{
		{ID: "x", Name: "Legacy"},
		{ID: ""},
		{ID: "y", ParentIDs: []string{"x", "q", "r"}},
		{ID: "x", FirstName: &name},
	}
	next, change := s.ReplaceAll(raw, map[string]valueobjects.Position{"x": {X: 5, Y: 6}}, testNow)

	assert.True(t, change.Persistent())
	assert.True(t, change.Has(ChangeRoot|ChangeOffsets))
	assert.Equal(t, 2, next.Len())
	persons := next.Persons()
	assert.Equal(t, "x", persons[0].ID)
	assert.Equal(t, "Second", persons[0].FirstName)
	assert.Equal(t, []string{"x", "q"}, persons[1].ParentIDs)
	assert.Empty(t, next.RootID())
	assert.Empty(t, next.Offsets())
	pos, _ := next.Position("x")
	assert.Equal(t, valueobjects.Position{X: 5, Y: 6}, pos)
}

func TestTreeState_ReadersCannotMutate(t *testing.T) {
	s := family(t)
	s, _ = s.LinkParentChild("A", "C")

	c, _ := s.Person("C")
	c.ParentIDs[0] = "hacked"
	for _, p := range s.Persons() {
		if p.ID == "C" {
			p.ParentIDs[0] = "hacked"
		}
	}
	s.PersonsByID()["C"].ParentIDs[0] = "hacked"

	fresh, _ := s.Person("C")
	assert.Equal(t, []string{"A"}, fresh.ParentIDs)
}
