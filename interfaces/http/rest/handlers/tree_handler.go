package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"gentree/application/commands"
	"gentree/application/commands/bus"
	"gentree/domain/core/aggregates"
	"gentree/pkg/common"
	pkgerrors "gentree/pkg/errors"
)

// TreeResponse is the whole graph as a renderer needs it.
type TreeResponse struct {
	Persons []PersonResponse   `json:"persons"`
	RootID  string             `json:"rootId,omitempty"`
	Offsets map[string]float64 `json:"offsets,omitempty"`
	Stats   aggregates.Stats   `json:"stats"`
}

// TreeHandler handles tree-wide reads, layout and import/export
type TreeHandler struct {
	commandBus *bus.CommandBus
	tree       TreeReader
	logger     *zap.Logger
}

// NewTreeHandler creates a new tree handler
func NewTreeHandler(commandBus *bus.CommandBus, tree TreeReader, logger *zap.Logger) *TreeHandler {
	return &TreeHandler{commandBus: commandBus, tree: tree, logger: logger}
}

// GetTree handles GET /tree
func (h *TreeHandler) GetTree(w http.ResponseWriter, r *http.Request) {
	st := h.tree.State()
	common.RespondJSON(w, http.StatusOK, TreeResponse{
		Persons: toPersonResponses(st, st.Persons()),
		RootID:  st.RootID(),
		Offsets: st.Offsets(),
		Stats:   st.Stats(),
	})
}

// GetRoots handles GET /tree/roots
func (h *TreeHandler) GetRoots(w http.ResponseWriter, r *http.Request) {
	common.RespondList(w, toPersonResponses(h.tree.State(), h.tree.RootCandidates()))
}

// SetRoot handles PUT /tree/root. An empty personId clears the selection.
func (h *TreeHandler) SetRoot(w http.ResponseWriter, r *http.Request) {
	var cmd commands.SetRootCommand
	if err := decodeBody(w, r, &cmd); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]string{"rootId": h.tree.State().RootID()})
}

// GetEdges handles GET /tree/edges
func (h *TreeHandler) GetEdges(w http.ResponseWriter, r *http.Request) {
	common.RespondList(w, h.tree.Edges())
}

// GetStats handles GET /tree/stats
func (h *TreeHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	common.RespondJSON(w, http.StatusOK, h.tree.Stats())
}

// Export handles GET /tree/export. The body is the bare snapshot document,
// ready to be posted back to /tree/import.
func (h *TreeHandler) Export(w http.ResponseWriter, r *http.Request) {
	data, err := h.tree.ExportSnapshot()
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="family-tree.json"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Warn("Failed to write export", zap.Error(err))
	}
}

// Import handles POST /tree/import. The body is a snapshot document; it
// replaces the whole tree.
func (h *TreeHandler) Import(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, r, h.logger, pkgerrors.NewValidationError("snapshot too large"))
			return
		}
		respondError(w, r, h.logger, pkgerrors.NewValidationError("failed to read snapshot"))
		return
	}

	if err := h.commandBus.Send(r.Context(), commands.ImportTreeCommand{Data: data}); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, h.tree.Stats())
}

// GetPlacement handles GET /tree/placement?parentId=. It suggests where a
// new node would go without creating it.
func (h *TreeHandler) GetPlacement(w http.ResponseWriter, r *http.Request) {
	parentID := r.URL.Query().Get("parentId")
	if parentID != "" {
		if _, ok := h.tree.Person(parentID); !ok {
			respondError(w, r, h.logger, pkgerrors.NewNotFoundError("person "+parentID))
			return
		}
	}
	common.RespondJSON(w, http.StatusOK, h.tree.SuggestPosition(parentID))
}

// SetPosition handles PUT /tree/positions/{id}
func (h *TreeHandler) SetPosition(w http.ResponseWriter, r *http.Request) {
	var cmd commands.SetPositionCommand
	if err := decodeBody(w, r, &cmd); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	cmd.PersonID = chi.URLParam(r, "id")

	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	pos, _ := h.tree.State().Position(cmd.PersonID)
	common.RespondJSON(w, http.StatusOK, pos)
}

// SetOffset handles PUT /tree/offsets/{id}
func (h *TreeHandler) SetOffset(w http.ResponseWriter, r *http.Request) {
	var cmd commands.SetOffsetCommand
	if err := decodeBody(w, r, &cmd); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	cmd.PersonID = chi.URLParam(r, "id")

	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]float64{"offset": cmd.Offset})
}
