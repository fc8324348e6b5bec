package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/Rizwan0994/haul-connect-sub002/internal/apperrors"
	"github.com/Rizwan0994/haul-connect-sub002/internal/domain/workflow"
	"github.com/Rizwan0994/haul-connect-sub002/internal/logger"
	"github.com/Rizwan0994/haul-connect-sub002/internal/service"
)

// HTTPHandler exposes the workflow operations over JSON HTTP.
type HTTPHandler struct {
	workflow   *service.WorkflowService
	commission *service.CommissionService
	log        *logger.Logger
}

// NewHTTPHandler creates a new HTTP handler.
func NewHTTPHandler(wf *service.WorkflowService, cm *service.CommissionService, log *logger.Logger) *HTTPHandler {
	return &HTTPHandler{workflow: wf, commission: cm, log: log}
}

// ── request/response shapes ───────────────────────────────────────────────────

type registerEntityRequest struct {
	EntityKind   string  `json:"entity_kind"`
	EntityID     string  `json:"entity_id"`
	CreatedBy    string  `json:"created_by"`
	SalesAgentID *string `json:"sales_agent_id"`
}

type transitionRequest struct {
	EntityID string  `json:"entity_id"`
	ActorID  string  `json:"actor_id"`
	Notes    *string `json:"notes"`
	Reason   string  `json:"reason"`
}

type transitionResponse struct {
	Entity         *entityResponse `json:"entity"`
	HistoryEntryID string          `json:"history_entry_id"`
}

type markPaidRequest struct {
	CarrierID string `json:"carrier_id"`
	ActorID   string `json:"actor_id"`
	Amount    string `json:"amount"`
}

type loadCompletedRequest struct {
	CarrierID string `json:"carrier_id"`
}

// ── workflow endpoints ────────────────────────────────────────────────────────

// RegisterEntity handles POST /api/v1/workflow/entities.
func (h *HTTPHandler) RegisterEntity(w http.ResponseWriter, r *http.Request) {
	var req registerEntityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	e, err := h.workflow.RegisterEntity(r.Context(),
		workflow.EntityKind(req.EntityKind), req.EntityID, req.CreatedBy, req.SalesAgentID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toEntityResponse(e))
}

// GetEntity handles GET /api/v1/workflow/entities/get?entity_id=.
func (h *HTTPHandler) GetEntity(w http.ResponseWriter, r *http.Request) {
	entityID := r.URL.Query().Get("entity_id")
	if entityID == "" {
		http.Error(w, "entity_id is required", http.StatusBadRequest)
		return
	}

	e, err := h.workflow.GetEntity(r.Context(), entityID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toEntityResponse(e))
}

// ApproveAsManager handles POST /api/v1/workflow/approve-manager.
func (h *HTTPHandler) ApproveAsManager(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, func(req *transitionRequest) (*service.TransitionResult, error) {
		return h.workflow.ApproveAsManager(r.Context(), req.EntityID, req.ActorID, req.Notes)
	})
}

// ApproveAsAccounts handles POST /api/v1/workflow/approve-accounts.
func (h *HTTPHandler) ApproveAsAccounts(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, func(req *transitionRequest) (*service.TransitionResult, error) {
		return h.workflow.ApproveAsAccounts(r.Context(), req.EntityID, req.ActorID, req.Notes)
	})
}

// Reject handles POST /api/v1/workflow/reject.
func (h *HTTPHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, func(req *transitionRequest) (*service.TransitionResult, error) {
		return h.workflow.Reject(r.Context(), req.EntityID, req.ActorID, req.Reason)
	})
}

// Disable handles POST /api/v1/workflow/disable.
func (h *HTTPHandler) Disable(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, func(req *transitionRequest) (*service.TransitionResult, error) {
		return h.workflow.Disable(r.Context(), req.EntityID, req.ActorID, req.Notes)
	})
}

// Enable handles POST /api/v1/workflow/enable.
func (h *HTTPHandler) Enable(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, func(req *transitionRequest) (*service.TransitionResult, error) {
		return h.workflow.Enable(r.Context(), req.EntityID, req.ActorID, req.Notes)
	})
}

// GetHistory handles GET /api/v1/workflow/history?entity_id=.
func (h *HTTPHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	entityID := r.URL.Query().Get("entity_id")
	if entityID == "" {
		http.Error(w, "entity_id is required", http.StatusBadRequest)
		return
	}

	entries, err := h.workflow.GetHistory(r.Context(), entityID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"history": toHistoryResponse(entries)})
}

// ── commission endpoints ──────────────────────────────────────────────────────

// LoadCompleted handles POST /api/v1/carriers/load-completed.
func (h *HTTPHandler) LoadCompleted(w http.ResponseWriter, r *http.Request) {
	var req loadCompletedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	e, err := h.commission.OnLoadCompleted(r.Context(), req.CarrierID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toEntityResponse(e))
}

// MarkPaid handles POST /api/v1/carriers/commission/paid.
func (h *HTTPHandler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	var req markPaidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		http.Error(w, "Invalid amount", http.StatusBadRequest)
		return
	}

	e, err := h.commission.MarkPaid(r.Context(), req.CarrierID, req.ActorID, amount)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toEntityResponse(e))
}

// ── helpers ───────────────────────────────────────────────────────────────────

func (h *HTTPHandler) runTransition(w http.ResponseWriter, r *http.Request, op func(*transitionRequest) (*service.TransitionResult, error)) {
	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.EntityID == "" || req.ActorID == "" {
		http.Error(w, "entity_id and actor_id are required", http.StatusBadRequest)
		return
	}

	res, err := op(&req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, &transitionResponse{
		Entity:         toEntityResponse(res.Entity),
		HistoryEntryID: res.HistoryEntryID,
	})
}

func (h *HTTPHandler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Warn().Err(err).Msg("Failed to encode response")
	}
}

// writeError maps the error taxonomy onto HTTP statuses. Anything uncoded is
// a persistence failure and surfaces as a generic storage error.
func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := apperrors.CodeStorage
	message := "storage failure, please resubmit"

	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		code = appErr.Code
		message = appErr.Message
		switch appErr.Code {
		case apperrors.CodeUnauthorized:
			status = http.StatusForbidden
		case apperrors.CodeInvalidTransition, apperrors.CodeConcurrentModification:
			status = http.StatusConflict
		case apperrors.CodeMissingReason, apperrors.CodeInvalidInput:
			status = http.StatusBadRequest
		case apperrors.CodeNotFound:
			status = http.StatusNotFound
		case apperrors.CodeStorage:
			status = http.StatusInternalServerError
			message = "storage failure, please resubmit"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"code":  string(code),
		"error": message,
	})
}
