package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"gentree/application/commands"
	"gentree/application/commands/bus"
	"gentree/application/ports"
	"gentree/domain/core/aggregates"
	"gentree/domain/core/entities"
	"gentree/domain/core/valueobjects"
	"gentree/infrastructure/photos"
	"gentree/pkg/common"
	pkgerrors "gentree/pkg/errors"
)

// TreeReader is the read side of the tree used by the HTTP handlers.
type TreeReader interface {
	State() aggregates.TreeState
	Person(id string) (entities.Person, bool)
	Persons() []entities.Person
	SearchPersons(query string) []entities.Person
	ChildrenOf(parentID string) []entities.Person
	ParentsOf(childID string) []entities.Person
	SiblingsOf(personID string) []entities.Person
	RootCandidates() []entities.Person
	SuggestPosition(parentID string) valueobjects.Position
	Edges() []aggregates.Edge
	Stats() aggregates.Stats
	ExportSnapshot() ([]byte, error)
}

// PersonResponse is a person with its display strings and canvas position.
type PersonResponse struct {
	entities.Person
	DisplayName  string                 `json:"displayName"`
	DisplayDates string                 `json:"displayDates,omitempty"`
	Position     *valueobjects.Position `json:"position,omitempty"`
}

func toPersonResponse(st aggregates.TreeState, p entities.Person) PersonResponse {
	resp := PersonResponse{
		Person:       p,
		DisplayName:  entities.DisplayName(p),
		DisplayDates: entities.FormatDisplayDates(p.BirthDateISO, p.DeathDateISO),
	}
	if pos, ok := st.Position(p.ID); ok {
		resp.Position = &pos
	}
	return resp
}

func toPersonResponses(st aggregates.TreeState, persons []entities.Person) []PersonResponse {
	out := make([]PersonResponse, 0, len(persons))
	for _, p := range persons {
		out = append(out, toPersonResponse(st, p))
	}
	return out
}

// PersonHandler handles person-related HTTP requests
type PersonHandler struct {
	commandBus *bus.CommandBus
	tree       TreeReader
	photos     ports.PhotoStore
	logger     *zap.Logger
}

// NewPersonHandler creates a new person handler
func NewPersonHandler(commandBus *bus.CommandBus, tree TreeReader, photoStore ports.PhotoStore, logger *zap.Logger) *PersonHandler {
	return &PersonHandler{
		commandBus: commandBus,
		tree:       tree,
		photos:     photoStore,
		logger:     logger,
	}
}

// ListPersons handles GET /persons. With ?query= the result is filtered by
// name and ordered newest first.
func (h *PersonHandler) ListPersons(w http.ResponseWriter, r *http.Request) {
	var persons []entities.Person
	if q := r.URL.Query(); q.Has("query") {
		persons = h.tree.SearchPersons(q.Get("query"))
	} else {
		persons = h.tree.Persons()
	}
	common.RespondList(w, toPersonResponses(h.tree.State(), persons))
}

// CreatePerson handles POST /persons
func (h *PersonHandler) CreatePerson(w http.ResponseWriter, r *http.Request) {
	var cmd commands.CreatePersonCommand
	if err := decodeBody(w, r, &cmd); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	cmd.PersonID = valueobjects.NewPersonID()

	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	h.respondPerson(w, r, http.StatusCreated, cmd.PersonID)
}

// GetPerson handles GET /persons/{id}
func (h *PersonHandler) GetPerson(w http.ResponseWriter, r *http.Request) {
	h.respondPerson(w, r, http.StatusOK, chi.URLParam(r, "id"))
}

// UpdatePerson handles PUT /persons/{id}
func (h *PersonHandler) UpdatePerson(w http.ResponseWriter, r *http.Request) {
	var cmd commands.UpdatePersonCommand
	if err := decodeBody(w, r, &cmd); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	cmd.PersonID = chi.URLParam(r, "id")

	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	h.respondPerson(w, r, http.StatusOK, cmd.PersonID)
}

// DeletePerson handles DELETE /persons/{id}
func (h *PersonHandler) DeletePerson(w http.ResponseWriter, r *http.Request) {
	cmd := commands.DeletePersonCommand{PersonID: chi.URLParam(r, "id")}
	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetChildren handles GET /persons/{id}/children
func (h *PersonHandler) GetChildren(w http.ResponseWriter, r *http.Request) {
	h.respondRelatives(w, r, h.tree.ChildrenOf)
}

// GetParents handles GET /persons/{id}/parents
func (h *PersonHandler) GetParents(w http.ResponseWriter, r *http.Request) {
	h.respondRelatives(w, r, h.tree.ParentsOf)
}

// GetSiblings handles GET /persons/{id}/siblings
func (h *PersonHandler) GetSiblings(w http.ResponseWriter, r *http.Request) {
	h.respondRelatives(w, r, h.tree.SiblingsOf)
}

// EditRelations handles PUT /persons/{id}/relations. Empty ids remove the
// current first parent or first spouse.
func (h *PersonHandler) EditRelations(w http.ResponseWriter, r *http.Request) {
	var cmd commands.EditRelationsCommand
	if err := decodeBody(w, r, &cmd); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	cmd.PersonID = chi.URLParam(r, "id")

	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	h.respondPerson(w, r, http.StatusOK, cmd.PersonID)
}

// AttachPhoto handles POST /persons/{id}/photo. A JSON body names a source
// (data URI, file URI or path); a multipart body uploads the file itself in
// the "photo" field.
func (h *PersonHandler) AttachPhoto(w http.ResponseWriter, r *http.Request) {
	personID := chi.URLParam(r, "id")

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		h.uploadPhoto(w, r, personID)
		return
	}

	var cmd commands.AttachPhotoCommand
	if err := decodeBody(w, r, &cmd); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	cmd.PersonID = personID

	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	h.respondPerson(w, r, http.StatusOK, personID)
}

func (h *PersonHandler) uploadPhoto(w http.ResponseWriter, r *http.Request, personID string) {
	if _, ok := h.tree.Person(personID); !ok {
		respondError(w, r, h.logger, pkgerrors.NewNotFoundError("person "+personID))
		return
	}
	if h.photos == nil {
		respondError(w, r, h.logger, pkgerrors.NewUnavailableError("photo storage"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)
	if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
		respondError(w, r, h.logger, pkgerrors.NewValidationError("invalid multipart body: "+err.Error()))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("photo")
	if err != nil {
		respondError(w, r, h.logger, pkgerrors.NewValidationError("photo file is required"))
		return
	}
	defer file.Close()

	ref, err := h.photos.StorePhotoData(r.Context(), personID, photos.ExtensionFromURI(header.Filename), file)
	if err != nil {
		respondError(w, r, h.logger, pkgerrors.Wrap(err, "store photo"))
		return
	}

	cmd := commands.UpdatePersonCommand{PersonID: personID, PhotoURI: &ref}
	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	h.logger.Info("Photo uploaded", zap.String("personID", personID), zap.String("ref", ref))
	h.respondPerson(w, r, http.StatusOK, personID)
}

func (h *PersonHandler) respondPerson(w http.ResponseWriter, r *http.Request, status int, id string) {
	st := h.tree.State()
	p, ok := st.Person(id)
	if !ok {
		respondError(w, r, h.logger, pkgerrors.NewNotFoundError("person "+id))
		return
	}
	common.RespondJSON(w, status, toPersonResponse(st, p))
}

func (h *PersonHandler) respondRelatives(w http.ResponseWriter, r *http.Request, selector func(string) []entities.Person) {
	id := chi.URLParam(r, "id")
	if _, ok := h.tree.Person(id); !ok {
		respondError(w, r, h.logger, pkgerrors.NewNotFoundError("person "+id))
		return
	}
	common.RespondList(w, toPersonResponses(h.tree.State(), selector(id)))
}
