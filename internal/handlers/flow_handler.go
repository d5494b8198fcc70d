package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/koios/skylight-calendar/internal/integration"
	"github.com/koios/skylight-calendar/internal/setup"
	"github.com/koios/skylight-calendar/internal/store"
	"github.com/koios/skylight-calendar/pkg/models"
	"go.uber.org/zap"
)

// FlowHandler handles HTTP requests for pairing and entry management
type FlowHandler struct {
	flows  *setup.FlowManager
	hub    *integration.Hub
	logger *zap.Logger
}

// NewFlowHandler creates a new flow handler
func NewFlowHandler(flows *setup.FlowManager, hub *integration.Hub, logger *zap.Logger) *FlowHandler {
	return &FlowHandler{
		flows:  flows,
		hub:    hub,
		logger: logger,
	}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type frameSelectionRequest struct {
	FrameIDs []string `json:"frame_ids"`
}

type frameIDRequest struct {
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`
	FrameID  string `json:"frame_id"`
}

type flowResponse struct {
	FlowID           string                  `json:"flow_id,omitempty"`
	Step             setup.Step              `json:"step"`
	Errors           map[string]string       `json:"errors,omitempty"`
	ValidationErrors []setup.ValidationError `json:"validation_errors,omitempty"`
	Frames           []models.Frame          `json:"frames,omitempty"`
	Entry            *entryView              `json:"entry,omitempty"`
}

// RegisterRoutes registers the flow and entry routes
func (h *FlowHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/flows", h.handleStartFlow).Methods(http.MethodPost)
	r.HandleFunc("/flows/{id}", h.handleAbortFlow).Methods(http.MethodDelete)
	r.HandleFunc("/flows/{id}/credentials", h.handleCredentials).Methods(http.MethodPost)
	r.HandleFunc("/flows/{id}/frames", h.handleFrameSelection).Methods(http.MethodPost)
	r.HandleFunc("/flows/{id}/frame", h.handleFrameID).Methods(http.MethodPost)

	r.HandleFunc("/entries", h.handleListEntries).Methods(http.MethodGet)
	r.HandleFunc("/entries/{id}", h.handleDeleteEntry).Methods(http.MethodDelete)
	r.HandleFunc("/entries/{id}/frames", h.handleReselect).Methods(http.MethodPut)
	r.HandleFunc("/entries/{id}/frames", h.handleAddFrame).Methods(http.MethodPost)
}

// handleStartFlow handles POST /flows
func (h *FlowHandler) handleStartFlow(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, http.StatusCreated, h.flows.Start())
}

// handleAbortFlow handles DELETE /flows/{id}
func (h *FlowHandler) handleAbortFlow(w http.ResponseWriter, r *http.Request) {
	if !h.flows.Abort(mux.Vars(r)["id"]) {
		writeError(w, h.logger, http.StatusNotFound, "Flow not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCredentials handles POST /flows/{id}/credentials
func (h *FlowHandler) handleCredentials(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	result, err := h.flows.SubmitCredentials(r.Context(), mux.Vars(r)["id"], req.Email, req.Password)
	h.writeResult(w, result, err)
}

// handleFrameSelection handles POST /flows/{id}/frames
func (h *FlowHandler) handleFrameSelection(w http.ResponseWriter, r *http.Request) {
	var req frameSelectionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	result, err := h.flows.SubmitFrameSelection(r.Context(), mux.Vars(r)["id"], req.FrameIDs)
	h.writeResult(w, result, err)
}

// handleFrameID handles POST /flows/{id}/frame
func (h *FlowHandler) handleFrameID(w http.ResponseWriter, r *http.Request) {
	var req frameIDRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	result, err := h.flows.SubmitFrameID(r.Context(), mux.Vars(r)["id"], req.Email, req.Password, req.FrameID)
	h.writeResult(w, result, err)
}

// handleListEntries handles GET /entries
func (h *FlowHandler) handleListEntries(w http.ResponseWriter, r *http.Request) {
	entries := h.hub.Entries()
	views := make([]*entryView, 0, len(entries))
	for _, entry := range entries {
		views = append(views, newEntryView(entry))
	}
	writeJSON(w, h.logger, http.StatusOK, views)
}

// handleDeleteEntry handles DELETE /entries/{id}
func (h *FlowHandler) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	entryID := mux.Vars(r)["id"]
	if err := h.hub.Remove(r.Context(), entryID); err != nil {
		if errors.Is(err, store.ErrEntryNotFound) {
			writeError(w, h.logger, http.StatusNotFound, "Entry not found")
			return
		}
		h.logger.Error("Failed to remove entry", zap.String("entry_id", entryID), zap.Error(err))
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to remove entry")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleReselect handles PUT /entries/{id}/frames
func (h *FlowHandler) handleReselect(w http.ResponseWriter, r *http.Request) {
	var req frameSelectionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	result, err := h.flows.Reselect(r.Context(), mux.Vars(r)["id"], req.FrameIDs)
	h.writeResult(w, result, err)
}

// handleAddFrame handles POST /entries/{id}/frames
func (h *FlowHandler) handleAddFrame(w http.ResponseWriter, r *http.Request) {
	var req frameIDRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	result, err := h.flows.AddFrame(r.Context(), mux.Vars(r)["id"], req.FrameID)
	h.writeResult(w, result, err)
}

func (h *FlowHandler) writeResult(w http.ResponseWriter, result setup.Result, err error) {
	if err != nil {
		switch {
		case errors.Is(err, setup.ErrFlowNotFound):
			writeError(w, h.logger, http.StatusNotFound, "Flow not found")
		case errors.Is(err, setup.ErrEntryNotLoaded):
			writeError(w, h.logger, http.StatusNotFound, "Entry not found")
		case errors.Is(err, setup.ErrInvalidStep):
			writeError(w, h.logger, http.StatusConflict, err.Error())
		default:
			h.logger.Error("Flow step failed", zap.Error(err))
			writeError(w, h.logger, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	response := flowResponse{
		FlowID:           result.FlowID,
		Step:             result.Step,
		Errors:           result.Errors,
		ValidationErrors: result.ValidationErrors,
		Frames:           result.Frames,
		Entry:            newEntryView(result.Entry),
	}

	status := http.StatusOK
	switch {
	case result.Failed():
		status = http.StatusUnprocessableEntity
	case result.Step == setup.StepCreateEntry:
		status = http.StatusCreated
	}
	writeJSON(w, h.logger, status, response)
}
