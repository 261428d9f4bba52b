// Package server exposes the engine over a small JSON API: completion
// triggers, undo requests, child-attribute edits and block reads. The
// gesture detection itself (checkbox observation) belongs to the host;
// this is the wire the detector posts into.
package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/mlava/better-tasks/internal/attrsync"
	"github.com/mlava/better-tasks/internal/config"
	"github.com/mlava/better-tasks/internal/graph"
	"github.com/mlava/better-tasks/internal/model"
	"github.com/mlava/better-tasks/internal/pipeline"
	"github.com/mlava/better-tasks/internal/series"
	"github.com/mlava/better-tasks/internal/undo"
)

type Handler struct {
	store  graph.Store
	coord  *pipeline.Coordinator
	syncer *attrsync.Syncer
	logger *log.Logger
}

func NewHandler(store graph.Store, coord *pipeline.Coordinator, syncer *attrsync.Syncer, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{store: store, coord: coord, syncer: syncer, logger: logger}
}

func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/triggers", h.handleTrigger)
	mux.HandleFunc("POST /api/undo", h.handleUndo)
	mux.HandleFunc("POST /api/edits", h.handleEdit)
	mux.HandleFunc("POST /api/edits/flush", h.handleEditFlush)
	mux.HandleFunc("POST /api/surface", h.handleSurface)
	mux.HandleFunc("GET /api/blocks/{id}", h.handleBlock)
	mux.HandleFunc("GET /api/blocks/{id}/history", h.handleHistory)
	return mux
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}

func decodeJSON(r *http.Request, out any) error {
	return json.NewDecoder(r.Body).Decode(out)
}

type triggerRequest struct {
	BlockID   model.BlockID `json:"blockId"`
	Completed bool          `json:"completed"`
}

func (h *Handler) handleTrigger(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if err := decodeJSON(r, &req); err != nil || req.BlockID == "" {
		writeErr(w, http.StatusBadRequest, "blockId required")
		return
	}
	res, err := h.coord.HandleTrigger(r.Context(), req.BlockID, req.Completed)
	if err != nil {
		if errors.Is(err, pipeline.ErrContainerUnavailable) {
			writeErr(w, http.StatusConflict, err.Error())
			return
		}
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type undoRequest struct {
	BlockID model.BlockID `json:"blockId"`
}

func (h *Handler) handleUndo(w http.ResponseWriter, r *http.Request) {
	var req undoRequest
	if err := decodeJSON(r, &req); err != nil || req.BlockID == "" {
		writeErr(w, http.StatusBadRequest, "blockId required")
		return
	}
	if err := h.coord.Undo(r.Context(), req.BlockID); err != nil {
		if errors.Is(err, undo.ErrNoRecord) {
			writeErr(w, http.StatusNotFound, "nothing to undo")
			return
		}
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"undone": true})
}

type editRequest struct {
	BlockID model.BlockID `json:"blockId"`
	Key     string        `json:"key"`
	Value   string        `json:"value"`
}

func (h *Handler) handleEdit(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	if err := decodeJSON(r, &req); err != nil || req.BlockID == "" || req.Key == "" {
		writeErr(w, http.StatusBadRequest, "blockId and key required")
		return
	}
	h.syncer.ChildEdited(req.BlockID, req.Key, req.Value)
	writeJSON(w, http.StatusAccepted, map[string]any{"queued": true})
}

func (h *Handler) handleEditFlush(w http.ResponseWriter, r *http.Request) {
	var req undoRequest
	if err := decodeJSON(r, &req); err != nil || req.BlockID == "" {
		writeErr(w, http.StatusBadRequest, "blockId required")
		return
	}
	h.syncer.SessionEnded(req.BlockID)
	writeJSON(w, http.StatusOK, map[string]any{"flushed": true})
}

type surfaceRequest struct {
	BlockID model.BlockID  `json:"blockId"`
	Surface config.Surface `json:"surface"`
}

// handleSurface re-projects a block's attributes after the configured
// surface changed: mirrors are created or stripped to match.
func (h *Handler) handleSurface(w http.ResponseWriter, r *http.Request) {
	var req surfaceRequest
	if err := decodeJSON(r, &req); err != nil || req.BlockID == "" {
		writeErr(w, http.StatusBadRequest, "blockId required")
		return
	}
	switch req.Surface {
	case config.SurfaceChild, config.SurfaceHidden:
	default:
		writeErr(w, http.StatusBadRequest, "surface must be child or hidden")
		return
	}
	if err := h.syncer.ApplySurface(r.Context(), req.BlockID, req.Surface); err != nil {
		if errors.Is(err, graph.ErrNotFound) {
			writeErr(w, http.StatusNotFound, "block not found")
			return
		}
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"applied": true})
}

func (h *Handler) handleBlock(w http.ResponseWriter, r *http.Request) {
	id := model.BlockID(r.PathValue("id"))
	b, err := h.store.ReadBlock(r.Context(), id)
	if errors.Is(err, graph.ErrNotFound) {
		writeErr(w, http.StatusNotFound, "block not found")
		return
	}
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := model.BlockID(r.PathValue("id"))
	blocks, err := series.History(r.Context(), h.store, id, 0)
	if errors.Is(err, graph.ErrNotFound) {
		writeErr(w, http.StatusNotFound, "block not found")
		return
	}
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, blocks)
}
