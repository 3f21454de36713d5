package config

// DomainConfig holds the configurable rules of the family graph.
type DomainConfig struct {
	// Placement anchors, in canvas units
	BaselineX         float64
	BaselineY         float64
	ParentGap         float64 // vertical distance between a parent and a newly placed child
	ColumnSpacing     float64 // horizontal step for nodes placed without a parent
	SiblingSpacing    float64 // horizontal step between children fanned out around a parent
	MinY              float64
	MinSiblingColumns int
}

// DefaultDomainConfig returns the default domain configuration
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		BaselineX:         0,
		BaselineY:         600,
		ParentGap:         140,
		ColumnSpacing:     160,
		SiblingSpacing:    160,
		MinY:              0,
		MinSiblingColumns: 2,
	}
}
