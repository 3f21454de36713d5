package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"gentree/application/commands"
	"gentree/application/commands/bus"
	"gentree/domain/core/valueobjects"
	"gentree/pkg/common"
)

// ViewReader returns the current canvas viewport.
type ViewReader interface {
	Current() valueobjects.ViewState
}

// ViewHandler handles the canvas viewport
type ViewHandler struct {
	commandBus *bus.CommandBus
	views      ViewReader
	logger     *zap.Logger
}

// NewViewHandler creates a new view handler
func NewViewHandler(commandBus *bus.CommandBus, views ViewReader, logger *zap.Logger) *ViewHandler {
	return &ViewHandler{commandBus: commandBus, views: views, logger: logger}
}

// GetView handles GET /view
func (h *ViewHandler) GetView(w http.ResponseWriter, r *http.Request) {
	common.RespondJSON(w, http.StatusOK, h.views.Current())
}

// UpdateView handles PUT /view
func (h *ViewHandler) UpdateView(w http.ResponseWriter, r *http.Request) {
	var cmd commands.UpdateViewStateCommand
	if err := decodeBody(w, r, &cmd); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, h.views.Current())
}
