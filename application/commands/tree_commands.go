package commands

import (
	"math"

	"gentree/domain/core/valueobjects"
	pkgerrors "gentree/pkg/errors"
	"gentree/pkg/utils"
)

// SetRootCommand selects the displayed root. An empty id clears it.
type SetRootCommand struct {
	PersonID string `json:"personId"`
}

// Validate validates the command
func (c SetRootCommand) Validate() error {
	return nil
}

// SetPositionCommand moves a node on the canvas.
type SetPositionCommand struct {
	PersonID string  `json:"-" validate:"required"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

// Validate validates the command
func (c SetPositionCommand) Validate() error {
	if err := utils.ValidateStruct(c); err != nil {
		return err
	}
	_, err := valueobjects.NewPosition(c.X, c.Y)
	return err
}

// SetOffsetCommand stores a transient drag-preview offset.
type SetOffsetCommand struct {
	PersonID string  `json:"-" validate:"required"`
	Offset   float64 `json:"offset"`
}

// Validate validates the command
func (c SetOffsetCommand) Validate() error {
	if err := utils.ValidateStruct(c); err != nil {
		return err
	}
	return finite(c.Offset)
}

// ImportTreeCommand replaces the whole tree with a snapshot document.
type ImportTreeCommand struct {
	Data []byte `validate:"required"`
}

// Validate validates the command
func (c ImportTreeCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// UpdateViewStateCommand stores the canvas viewport.
type UpdateViewStateCommand struct {
	Scale   float64 `json:"scale" validate:"gt=0"`
	OffsetX float64 `json:"offsetX"`
	OffsetY float64 `json:"offsetY"`
}

// Validate validates the command
func (c UpdateViewStateCommand) Validate() error {
	if err := utils.ValidateStruct(c); err != nil {
		return err
	}
	return finite(c.Scale, c.OffsetX, c.OffsetY)
}

func finite(values ...float64) error {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return pkgerrors.NewValidationError("coordinates must be finite numbers")
		}
	}
	return nil
}
