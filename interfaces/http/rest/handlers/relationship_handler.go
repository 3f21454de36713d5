package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"gentree/application/commands"
	"gentree/application/commands/bus"
	"gentree/domain/core/aggregates"
	"gentree/pkg/common"
)

// RelationshipHandler handles parent-child and spouse links
type RelationshipHandler struct {
	commandBus *bus.CommandBus
	logger     *zap.Logger
}

// NewRelationshipHandler creates a new relationship handler
func NewRelationshipHandler(commandBus *bus.CommandBus, logger *zap.Logger) *RelationshipHandler {
	return &RelationshipHandler{commandBus: commandBus, logger: logger}
}

// LinkParentChild handles POST /relationships/parent-child
func (h *RelationshipHandler) LinkParentChild(w http.ResponseWriter, r *http.Request) {
	var cmd commands.LinkParentChildCommand
	if !h.parse(w, r, &cmd) {
		return
	}
	h.send(w, r, cmd, http.StatusCreated, aggregates.Edge{Type: aggregates.EdgeTypeParentChild, From: cmd.ParentID, To: cmd.ChildID})
}

// UnlinkParentChild handles DELETE /relationships/parent-child. The ids may
// come from the body or from ?parentId=&childId=.
func (h *RelationshipHandler) UnlinkParentChild(w http.ResponseWriter, r *http.Request) {
	var cmd commands.UnlinkParentChildCommand
	if !h.parse(w, r, &cmd) {
		return
	}
	q := r.URL.Query()
	cmd.ParentID = firstNonEmpty(cmd.ParentID, q.Get("parentId"))
	cmd.ChildID = firstNonEmpty(cmd.ChildID, q.Get("childId"))
	h.send(w, r, cmd, http.StatusNoContent, nil)
}

// LinkSpouses handles POST /relationships/spouses
func (h *RelationshipHandler) LinkSpouses(w http.ResponseWriter, r *http.Request) {
	var cmd commands.LinkSpousesCommand
	if !h.parse(w, r, &cmd) {
		return
	}
	h.send(w, r, cmd, http.StatusCreated, aggregates.Edge{Type: aggregates.EdgeTypeSpouse, From: cmd.PersonAID, To: cmd.PersonBID})
}

// UnlinkSpouses handles DELETE /relationships/spouses
func (h *RelationshipHandler) UnlinkSpouses(w http.ResponseWriter, r *http.Request) {
	var cmd commands.UnlinkSpousesCommand
	if !h.parse(w, r, &cmd) {
		return
	}
	q := r.URL.Query()
	cmd.PersonAID = firstNonEmpty(cmd.PersonAID, q.Get("personAId"))
	cmd.PersonBID = firstNonEmpty(cmd.PersonBID, q.Get("personBId"))
	h.send(w, r, cmd, http.StatusNoContent, nil)
}

func (h *RelationshipHandler) parse(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := decodeBody(w, r, v); err != nil {
		respondError(w, r, h.logger, err)
		return false
	}
	return true
}

func (h *RelationshipHandler) send(w http.ResponseWriter, r *http.Request, cmd bus.Command, status int, body interface{}) {
	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if status == http.StatusNoContent {
		w.WriteHeader(status)
		return
	}
	common.RespondJSON(w, status, body)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
