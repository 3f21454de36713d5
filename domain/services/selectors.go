package services

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"gentree/domain/core/entities"
)

// PersonsByID is the lookup every selector reads from.
type PersonsByID map[string]entities.Person

// Selectors derives read-only views of the family graph. Missing ids are
// skipped, never reported.
type Selectors struct {
	locale language.Tag
}

// NewSelectors creates selectors that collate names for the given locale.
// language.Und selects the root collation order.
func NewSelectors(locale language.Tag) *Selectors {
	return &Selectors{locale: locale}
}

// DefaultSelectors uses the root collation order.
var DefaultSelectors = NewSelectors(language.Und)

// ChildrenOf returns every person listing parentID as a parent, by display name.
func (s *Selectors) ChildrenOf(persons PersonsByID, parentID string) []entities.Person {
	var result []entities.Person
	for _, p := range persons {
		if p.HasParent(parentID) {
			result = append(result, p)
		}
	}
	s.sortByDisplayName(result)
	return result
}

// ParentsOf resolves the recorded parents of childID in stored order.
func (s *Selectors) ParentsOf(persons PersonsByID, childID string) []entities.Person {
	child, ok := persons[childID]
	if !ok {
		return nil
	}
	var result []entities.Person
	for _, id := range child.ParentIDs {
		if parent, ok := persons[id]; ok {
			result = append(result, parent)
		}
	}
	return result
}

// SiblingsOf returns everyone sharing at least one parent with personID.
// Half-siblings are included.
func (s *Selectors) SiblingsOf(persons PersonsByID, personID string) []entities.Person {
	me, ok := persons[personID]
	if !ok || len(me.ParentIDs) == 0 {
		return nil
	}
	var result []entities.Person
	for _, p := range persons {
		if p.ID == personID {
			continue
		}
		for _, pid := range p.ParentIDs {
			if me.HasParent(pid) {
				result = append(result, p)
				break
			}
		}
	}
	s.sortByDisplayName(result)
	return result
}

// RootCandidates returns every person without recorded parents.
func (s *Selectors) RootCandidates(persons PersonsByID) []entities.Person {
	var result []entities.Person
	for _, p := range persons {
		if p.IsRootCandidate() {
			result = append(result, p)
		}
	}
	s.sortByDisplayName(result)
	return result
}

// FilterAndSortForSelector backs the "pick a parent or spouse" lists: a case
// insensitive substring match over all name fields, newest first.
func (s *Selectors) FilterAndSortForSelector(persons []entities.Person, query string) []entities.Person {
	folder := cases.Fold()
	q := folder.String(strings.TrimSpace(query))

	result := make([]entities.Person, 0, len(persons))
	for _, p := range persons {
		if strings.Contains(folder.String(entities.SearchText(p)), q) {
			result = append(result, p)
		}
	}

	col := s.collator()
	sort.SliceStable(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.CreatedAt != b.CreatedAt {
			return a.CreatedAt > b.CreatedAt
		}
		return col.CompareString(a.FirstName+" "+a.LastName, b.FirstName+" "+b.LastName) < 0
	})
	return result
}

// collate.Collator is not safe for concurrent use, so each call gets its own.
func (s *Selectors) collator() *collate.Collator {
	return collate.New(s.locale)
}

func (s *Selectors) sortByDisplayName(persons []entities.Person) {
	col := s.collator()
	sort.Slice(persons, func(i, j int) bool {
		return compareDisplayNames(col, persons[i], persons[j]) < 0
	})
}

func compareDisplayNames(col *collate.Collator, a, b entities.Person) int {
	if c := col.CompareString(entities.DisplayName(a), entities.DisplayName(b)); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

// ChildrenOf uses DefaultSelectors.
func ChildrenOf(persons PersonsByID, parentID string) []entities.Person {
	return DefaultSelectors.ChildrenOf(persons, parentID)
}

// ParentsOf uses DefaultSelectors.
func ParentsOf(persons PersonsByID, childID string) []entities.Person {
	return DefaultSelectors.ParentsOf(persons, childID)
}

// SiblingsOf uses DefaultSelectors.
func SiblingsOf(persons PersonsByID, personID string) []entities.Person {
	return DefaultSelectors.SiblingsOf(persons, personID)
}

// RootCandidates uses DefaultSelectors.
func RootCandidates(persons PersonsByID) []entities.Person {
	return DefaultSelectors.RootCandidates(persons)
}

// FilterAndSortForSelector uses DefaultSelectors.
func FilterAndSortForSelector(persons []entities.Person, query string) []entities.Person {
	return DefaultSelectors.FilterAndSortForSelector(persons, query)
}
