package handlers

import (
	"context"

	"go.uber.org/zap"

	"gentree/application/commands"
	"gentree/application/commands/bus"
	"gentree/application/ports"
	"gentree/application/services"
	"gentree/domain/core/valueobjects"
	pkgerrors "gentree/pkg/errors"
)

// TreeCommandHandler executes tree commands against the TreeService.
//
// The engine treats missing persons as no-ops. These handlers sit at the
// request boundary and turn such references into NOT_FOUND errors instead.
type TreeCommandHandler struct {
	tree   *services.TreeService
	views  *services.ViewStateService
	photos ports.PhotoStore
	logger *zap.Logger
}

// NewTreeCommandHandler creates a new handler set
func NewTreeCommandHandler(
	tree *services.TreeService,
	views *services.ViewStateService,
	photos ports.PhotoStore,
	logger *zap.Logger,
) *TreeCommandHandler {
	return &TreeCommandHandler{
		tree:   tree,
		views:  views,
		photos: photos,
		logger: logger,
	}
}

// Register wires every command type to its handler on the bus.
func (h *TreeCommandHandler) Register(b *bus.CommandBus) error {
	registrations := []struct {
		cmd     bus.Command
		handler bus.CommandHandler
	}{
		{commands.CreatePersonCommand{}, bus.HandlerFor(h.CreatePerson)},
		{commands.UpdatePersonCommand{}, bus.HandlerFor(h.UpdatePerson)},
		{commands.DeletePersonCommand{}, bus.HandlerFor(h.DeletePerson)},
		{commands.EditRelationsCommand{}, bus.HandlerFor(h.EditRelations)},
		{commands.AttachPhotoCommand{}, bus.HandlerFor(h.AttachPhoto)},
		{commands.LinkParentChildCommand{}, bus.HandlerFor(h.LinkParentChild)},
		{commands.UnlinkParentChildCommand{}, bus.HandlerFor(h.UnlinkParentChild)},
		{commands.LinkSpousesCommand{}, bus.HandlerFor(h.LinkSpouses)},
		{commands.UnlinkSpousesCommand{}, bus.HandlerFor(h.UnlinkSpouses)},
		{commands.SetRootCommand{}, bus.HandlerFor(h.SetRoot)},
		{commands.SetPositionCommand{}, bus.HandlerFor(h.SetPosition)},
		{commands.SetOffsetCommand{}, bus.HandlerFor(h.SetOffset)},
		{commands.ImportTreeCommand{}, bus.HandlerFor(h.ImportTree)},
		{commands.UpdateViewStateCommand{}, bus.HandlerFor(h.UpdateViewState)},
	}

	for _, r := range registrations {
		if err := b.Register(r.cmd, r.handler); err != nil {
			return err
		}
	}
	return nil
}

// CreatePerson handles CreatePersonCommand
func (h *TreeCommandHandler) CreatePerson(ctx context.Context, cmd commands.CreatePersonCommand) error {
	if _, exists := h.tree.Person(cmd.PersonID); exists {
		return pkgerrors.NewConflictError("person " + cmd.PersonID + " already exists")
	}
	if err := h.requirePersons(cmd.ParentID, cmd.SpouseID); err != nil {
		return err
	}

	id := h.tree.AddPersonWithRelations(services.NewPersonRequest{
		ID:       cmd.PersonID,
		Person:   cmd.Partial(cmd.PersonID),
		ParentID: cmd.ParentID,
		SpouseID: cmd.SpouseID,
		Place:    cmd.Place,
	})
	h.logger.Info("Person created", zap.String("personID", id), zap.String("parentID", cmd.ParentID))
	return nil
}

// UpdatePerson handles UpdatePersonCommand
func (h *TreeCommandHandler) UpdatePerson(ctx context.Context, cmd commands.UpdatePersonCommand) error {
	current, ok := h.tree.Person(cmd.PersonID)
	if !ok {
		return pkgerrors.NewNotFoundError("person " + cmd.PersonID)
	}
	h.tree.UpdatePerson(cmd.Apply(current))
	return nil
}

// DeletePerson handles DeletePersonCommand
func (h *TreeCommandHandler) DeletePerson(ctx context.Context, cmd commands.DeletePersonCommand) error {
	if !h.tree.RemovePerson(cmd.PersonID) {
		return pkgerrors.NewNotFoundError("person " + cmd.PersonID)
	}
	h.logger.Info("Person removed", zap.String("personID", cmd.PersonID))
	return nil
}

// EditRelations handles EditRelationsCommand
func (h *TreeCommandHandler) EditRelations(ctx context.Context, cmd commands.EditRelationsCommand) error {
	if err := h.requirePersons(cmd.PersonID, cmd.ParentID, cmd.SpouseID); err != nil {
		return err
	}
	h.tree.EditRelations(cmd.PersonID, cmd.ParentID, cmd.SpouseID)
	return nil
}

// AttachPhoto handles AttachPhotoCommand
func (h *TreeCommandHandler) AttachPhoto(ctx context.Context, cmd commands.AttachPhotoCommand) error {
	person, ok := h.tree.Person(cmd.PersonID)
	if !ok {
		return pkgerrors.NewNotFoundError("person " + cmd.PersonID)
	}
	if h.photos == nil {
		return pkgerrors.NewUnavailableError("photo storage")
	}

	ref, err := h.photos.StorePhoto(ctx, cmd.PersonID, cmd.Source)
	if err != nil {
		return pkgerrors.Wrapf(err, "store photo for %s", cmd.PersonID)
	}
	person.PhotoURI = ref
	h.tree.UpdatePerson(person)
	return nil
}

// LinkParentChild handles LinkParentChildCommand
func (h *TreeCommandHandler) LinkParentChild(ctx context.Context, cmd commands.LinkParentChildCommand) error {
	if err := h.requirePersons(cmd.ParentID, cmd.ChildID); err != nil {
		return err
	}
	if h.tree.LinkParentChild(cmd.ParentID, cmd.ChildID) {
		return nil
	}

	child, _ := h.tree.Person(cmd.ChildID)
	if child.HasParent(cmd.ParentID) {
		return nil
	}
	return pkgerrors.NewConflictError("person " + cmd.ChildID + " already has two parents").
		WithCode("PARENT_LIMIT")
}

// UnlinkParentChild handles UnlinkParentChildCommand
func (h *TreeCommandHandler) UnlinkParentChild(ctx context.Context, cmd commands.UnlinkParentChildCommand) error {
	if err := h.requirePersons(cmd.ChildID); err != nil {
		return err
	}
	h.tree.UnlinkParentChild(cmd.ParentID, cmd.ChildID)
	return nil
}

// LinkSpouses handles LinkSpousesCommand
func (h *TreeCommandHandler) LinkSpouses(ctx context.Context, cmd commands.LinkSpousesCommand) error {
	if err := h.requirePersons(cmd.PersonAID, cmd.PersonBID); err != nil {
		return err
	}
	h.tree.LinkSpouses(cmd.PersonAID, cmd.PersonBID)
	return nil
}

// UnlinkSpouses handles UnlinkSpousesCommand
func (h *TreeCommandHandler) UnlinkSpouses(ctx context.Context, cmd commands.UnlinkSpousesCommand) error {
	if err := h.requirePersons(cmd.PersonAID, cmd.PersonBID); err != nil {
		return err
	}
	h.tree.UnlinkSpouses(cmd.PersonAID, cmd.PersonBID)
	return nil
}

// SetRoot handles SetRootCommand
func (h *TreeCommandHandler) SetRoot(ctx context.Context, cmd commands.SetRootCommand) error {
	if err := h.requirePersons(cmd.PersonID); err != nil {
		return err
	}
	h.tree.SetRootID(cmd.PersonID)
	return nil
}

// SetPosition handles SetPositionCommand
func (h *TreeCommandHandler) SetPosition(ctx context.Context, cmd commands.SetPositionCommand) error {
	if err := h.requirePersons(cmd.PersonID); err != nil {
		return err
	}
	h.tree.SetNodePosition(cmd.PersonID, cmd.X, cmd.Y)
	return nil
}

// SetOffset handles SetOffsetCommand
func (h *TreeCommandHandler) SetOffset(ctx context.Context, cmd commands.SetOffsetCommand) error {
	if err := h.requirePersons(cmd.PersonID); err != nil {
		return err
	}
	h.tree.SetNodeOffset(cmd.PersonID, cmd.Offset)
	return nil
}

// ImportTree handles ImportTreeCommand
func (h *TreeCommandHandler) ImportTree(ctx context.Context, cmd commands.ImportTreeCommand) error {
	if !h.tree.ImportSnapshot(cmd.Data) {
		return pkgerrors.NewValidationError("snapshot must be a JSON object with a persons array")
	}
	h.logger.Info("Tree imported", zap.Int("persons", h.tree.State().Len()))
	return nil
}

// UpdateViewState handles UpdateViewStateCommand
func (h *TreeCommandHandler) UpdateViewState(ctx context.Context, cmd commands.UpdateViewStateCommand) error {
	h.views.Save(valueobjects.ViewState{Scale: cmd.Scale, OffsetX: cmd.OffsetX, OffsetY: cmd.OffsetY})
	return nil
}

// requirePersons fails with NOT_FOUND for the first non-empty id that does
// not name an existing person.
func (h *TreeCommandHandler) requirePersons(ids ...string) error {
	st := h.tree.State()
	for _, id := range ids {
		if id != "" && !st.Has(id) {
			return pkgerrors.NewNotFoundError("person " + id).WithDetails(map[string]interface{}{"personId": id})
		}
	}
	return nil
}
