package commands

import (
	"gentree/pkg/utils"
)

// LinkParentChildCommand records ParentID as a parent of ChildID.
type LinkParentChildCommand struct {
	ParentID string `json:"parentId" validate:"required,nefield=ChildID"`
	ChildID  string `json:"childId" validate:"required"`
}

// Validate validates the command
func (c LinkParentChildCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// UnlinkParentChildCommand removes ParentID from the parents of ChildID.
type UnlinkParentChildCommand struct {
	ParentID string `json:"parentId" validate:"required"`
	ChildID  string `json:"childId" validate:"required"`
}

// Validate validates the command
func (c UnlinkParentChildCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// LinkSpousesCommand links two persons as spouses.
type LinkSpousesCommand struct {
	PersonAID string `json:"personAId" validate:"required,nefield=PersonBID"`
	PersonBID string `json:"personBId" validate:"required"`
}

// Validate validates the command
func (c LinkSpousesCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// UnlinkSpousesCommand removes a spouse link on both sides.
type UnlinkSpousesCommand struct {
	PersonAID string `json:"personAId" validate:"required"`
	PersonBID string `json:"personBId" validate:"required"`
}

// Validate validates the command
func (c UnlinkSpousesCommand) Validate() error {
	return utils.ValidateStruct(c)
}
