package services

import (
	"math"

	"gentree/domain/config"
	"gentree/domain/core/valueobjects"
)

// Placement computes the first-guess canvas position of a new node.
type Placement struct {
	cfg *config.DomainConfig
}

// NewPlacement creates a placement service; a nil config means defaults.
func NewPlacement(cfg *config.DomainConfig) *Placement {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return &Placement{cfg: cfg}
}

// InitialPosition places the very first node on the baseline, a child just
// above its placed parent, and anything else one column right of the rightmost
// node on the baseline.
func (pl *Placement) InitialPosition(positions map[string]valueobjects.Position, parentID string) valueobjects.Position {
	if len(positions) == 0 {
		return valueobjects.Position{X: pl.cfg.BaselineX, Y: pl.cfg.BaselineY}
	}

	if parentID != "" {
		if p, ok := positions[parentID]; ok {
			above := p.Translate(0, -pl.cfg.ParentGap)
			above.Y = math.Max(pl.cfg.MinY, above.Y)
			return above
		}
	}

	maxX := math.Inf(-1)
	for _, p := range positions {
		maxX = math.Max(maxX, p.X)
	}
	return valueobjects.Position{X: maxX + pl.cfg.ColumnSpacing, Y: pl.cfg.BaselineY}
}

// SiblingAwarePosition is InitialPosition with new children fanned out
// horizontally, centred on the parent, after the ones already placed.
func (pl *Placement) SiblingAwarePosition(positions map[string]valueobjects.Position, persons PersonsByID, parentID string) valueobjects.Position {
	pos := pl.InitialPosition(positions, parentID)
	parent, ok := positions[parentID]
	if parentID == "" || !ok {
		return pos
	}

	placed := 0
	for _, p := range persons {
		if !p.HasParent(parentID) {
			continue
		}
		if _, has := positions[p.ID]; has {
			placed++
		}
	}

	total := placed + 1
	if total < pl.cfg.MinSiblingColumns {
		total = pl.cfg.MinSiblingColumns
	}
	startX := parent.X - float64(total-1)*pl.cfg.SiblingSpacing/2
	pos.X = startX + float64(placed)*pl.cfg.SiblingSpacing
	return pos
}

var defaultPlacement = NewPlacement(nil)

// ComputeInitialPosition applies the default placement rules.
func ComputeInitialPosition(positions map[string]valueobjects.Position, parentID string) valueobjects.Position {
	return defaultPlacement.InitialPosition(positions, parentID)
}

// SiblingAwarePosition applies the default placement rules with sibling fan-out.
func SiblingAwarePosition(positions map[string]valueobjects.Position, persons PersonsByID, parentID string) valueobjects.Position {
	return defaultPlacement.SiblingAwarePosition(positions, persons, parentID)
}
