package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"gentree/domain/config"
	"gentree/domain/core/valueobjects"
)

type positions = map[string]valueobjects.Position

func TestComputeInitialPosition(t *testing.T) {
	tests := []struct {
		name      string
		positions positions
		parentID  string
		want      valueobjects.Position
	}{
		{"first node on baseline", positions{}, "", valueobjects.Position{X: 0, Y: 600}},
		{"first node ignores parent", nil, "A", valueobjects.Position{X: 0, Y: 600}},
		{"above placed parent", positions{"A": {X: 100, Y: 300}}, "A", valueobjects.Position{X: 100, Y: 160}},
		{"clamped at top", positions{"A": {X: 40, Y: 60}}, "A", valueobjects.Position{X: 40, Y: 0}},
		{"unplaced parent goes right", positions{"B": {X: 10, Y: 0}, "C": {X: 320, Y: 600}}, "A", valueobjects.Position{X: 480, Y: 600}},
		{"no parent goes right", positions{"B": {X: -500, Y: 600}}, "", valueobjects.Position{X: -340, Y: 600}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeInitialPosition(tt.positions, tt.parentID))
		})
	}
}

func TestSiblingAwarePosition(t *testing.T) {
	persons := PersonsByID{
		"P":  person("P", "Parent"),
		"c1": person("c1", "One", "P"),
		"c2": person("c2", "Two", "P"),
		"c3": person("c3", "Three", "P"),
	}

	t.Run("first child left of parent", func(t *testing.T) {
		pos := SiblingAwarePosition(positions{"P": {X: 400, Y: 500}}, persons, "P")
		assert.Equal(t, valueobjects.Position{X: 320, Y: 360}, pos)
	})

	t.Run("after two placed children", func(t *testing.T) {
		placed := positions{"P": {X: 400, Y: 500}, "c1": {X: 320, Y: 360}, "c2": {X: 400, Y: 360}}
		pos := SiblingAwarePosition(placed, persons, "P")
		assert.Equal(t, valueobjects.Position{X: 560, Y: 360}, pos)
	})

	t.Run("without parent falls back", func(t *testing.T) {
		placed := positions{"P": {X: 400, Y: 500}}
		assert.Equal(t, ComputeInitialPosition(placed, ""), SiblingAwarePosition(placed, persons, ""))
		assert.Equal(t, ComputeInitialPosition(placed, "ghost"), SiblingAwarePosition(placed, persons, "ghost"))
	})
}

func TestPlacement_CustomConfig(t *testing.T) {
	cfg := config.DefaultDomainConfig()
	cfg.BaselineY = 100
	cfg.ColumnSpacing = 50

	pl := NewPlacement(cfg)
	assert.Equal(t, valueobjects.Position{X: 0, Y: 100}, pl.InitialPosition(nil, ""))
	assert.Equal(t, valueobjects.Position{X: 60, Y: 100}, pl.InitialPosition(positions{"a": {X: 10, Y: 5}}, ""))
}
