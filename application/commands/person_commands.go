package commands

import (
	"gentree/domain/core/entities"
	"gentree/pkg/utils"
)

// PersonFields are the editable fields of a person.
type PersonFields struct {
	FirstName    string `json:"firstName" validate:"notblank,max=200"`
	LastName     string `json:"lastName" validate:"max=200"`
	BirthDateISO string `json:"birthDateISO"`
	DeathDateISO string `json:"deathDateISO"`
	Comment      string `json:"comment" validate:"max=5000"`
	PhotoURI     string `json:"photoUri"`
}

// Partial converts the fields into raw person input.
func (f PersonFields) Partial(id string) entities.PartialPerson {
	first := f.FirstName
	return entities.PartialPerson{
		ID:           id,
		FirstName:    &first,
		LastName:     f.LastName,
		BirthDateISO: f.BirthDateISO,
		DeathDateISO: f.DeathDateISO,
		Comment:      f.Comment,
		PhotoURI:     f.PhotoURI,
	}
}

// CreatePersonCommand adds a person, optionally linked to a parent and a
// spouse and placed on the canvas. PersonID is generated by the caller.
type CreatePersonCommand struct {
	PersonID string `json:"-" validate:"required"`
	PersonFields
	ParentID string `json:"parentId" validate:"omitempty,nefield=PersonID"`
	SpouseID string `json:"spouseId" validate:"omitempty,nefield=PersonID"`
	Place    bool   `json:"place"`
}

// Validate validates the command
func (c CreatePersonCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// UpdatePersonCommand changes the provided fields of a person. Nil fields
// keep their current value.
type UpdatePersonCommand struct {
	PersonID     string  `json:"-" validate:"required"`
	FirstName    *string `json:"firstName" validate:"omitempty,notblank,max=200"`
	LastName     *string `json:"lastName" validate:"omitempty,max=200"`
	BirthDateISO *string `json:"birthDateISO"`
	DeathDateISO *string `json:"deathDateISO"`
	Comment      *string `json:"comment" validate:"omitempty,max=5000"`
	PhotoURI     *string `json:"photoUri"`
}

// Validate validates the command
func (c UpdatePersonCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// Apply merges the provided fields into p.
func (c UpdatePersonCommand) Apply(p entities.Person) entities.Person {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&p.FirstName, c.FirstName)
	set(&p.LastName, c.LastName)
	set(&p.BirthDateISO, c.BirthDateISO)
	set(&p.DeathDateISO, c.DeathDateISO)
	set(&p.Comment, c.Comment)
	set(&p.PhotoURI, c.PhotoURI)
	return p
}

// DeletePersonCommand removes a person and its parent links.
type DeletePersonCommand struct {
	PersonID string `validate:"required"`
}

// Validate validates the command
func (c DeletePersonCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// EditRelationsCommand rewires the first parent and first spouse of a person.
// Empty ids remove the current link.
type EditRelationsCommand struct {
	PersonID string `json:"-" validate:"required"`
	ParentID string `json:"parentId" validate:"omitempty,nefield=PersonID"`
	SpouseID string `json:"spouseId" validate:"omitempty,nefield=PersonID"`
}

// Validate validates the command
func (c EditRelationsCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// AttachPhotoCommand copies a photo into application storage and records
// the stored reference on the person.
type AttachPhotoCommand struct {
	PersonID string `json:"-" validate:"required"`
	Source   string `json:"source" validate:"required"`
}

// Validate validates the command
func (c AttachPhotoCommand) Validate() error {
	return utils.ValidateStruct(c)
}
