package valueobjects

import (
	"encoding/json"
)

// ViewState is the canvas viewport persisted next to the tree.
type ViewState struct {
	Scale   float64 `json:"scale"`
	OffsetX float64 `json:"offsetX"`
	OffsetY float64 `json:"offsetY"`
}

// DefaultViewState is the viewport used when nothing was stored.
func DefaultViewState() ViewState {
	return ViewState{Scale: 1}
}

// ParseViewState decodes a stored viewport. Anything without a numeric
// scale is treated as absent.
func ParseViewState(data []byte) (ViewState, bool) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		return ViewState{}, false
	}

	var vs ViewState
	if err := json.Unmarshal(raw["scale"], &vs.Scale); err != nil {
		return ViewState{}, false
	}
	// offsets default to zero when missing or malformed
	_ = json.Unmarshal(raw["offsetX"], &vs.OffsetX)
	_ = json.Unmarshal(raw["offsetY"], &vs.OffsetY)

	return vs, true
}
