package aggregates

// EdgeType distinguishes the two relations drawn between nodes.
type EdgeType string

const (
	EdgeTypeParentChild EdgeType = "parent_child"
	EdgeTypeSpouse      EdgeType = "spouse"
)

// Edge is a relation between two existing persons. Parent-child edges point
// from parent to child.
type Edge struct {
	Type EdgeType `json:"type"`
	From string   `json:"from"`
	To   string   `json:"to"`
}

// Stats summarizes a tree.
type Stats struct {
	Persons          int `json:"persons"`
	Roots            int `json:"roots"`
	Positioned       int `json:"positioned"`
	ParentChildEdges int `json:"parentChildEdges"`
	SpouseEdges      int `json:"spouseEdges"`
}

// Edges lists the relations whose endpoints both exist, in person insertion
// order. Each spouse pair appears once.
func (s TreeState) Edges() []Edge {
	var edges []Edge
	seenSpouses := make(map[[2]string]struct{})

	for _, id := range s.order {
		p := s.persons[id]
		for _, parentID := range p.ParentIDs {
			if s.Has(parentID) {
				edges = append(edges, Edge{Type: EdgeTypeParentChild, From: parentID, To: id})
			}
		}
		for _, spouseID := range p.SpouseIDs {
			if !s.Has(spouseID) || spouseID == id {
				continue
			}
			key := [2]string{id, spouseID}
			if spouseID < id {
				key = [2]string{spouseID, id}
			}
			if _, dup := seenSpouses[key]; dup {
				continue
			}
			seenSpouses[key] = struct{}{}
			edges = append(edges, Edge{Type: EdgeTypeSpouse, From: id, To: spouseID})
		}
	}
	return edges
}

// Stats counts persons, roots, placed nodes and edges.
func (s TreeState) Stats() Stats {
	stats := Stats{Persons: len(s.order)}
	for _, p := range s.persons {
		if p.IsRootCandidate() {
			stats.Roots++
		}
		if _, ok := s.positions[p.ID]; ok {
			stats.Positioned++
		}
	}
	for _, e := range s.Edges() {
		switch e.Type {
		case EdgeTypeParentChild:
			stats.ParentChildEdges++
		case EdgeTypeSpouse:
			stats.SpouseEdges++
		}
	}
	return stats
}
