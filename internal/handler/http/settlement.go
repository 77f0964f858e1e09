package http

import (
	"encoding/json"
	"net/http"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/settlement"
	"github.com/cmlabs-hris/payroll-engine/internal/handler/http/response"
	"github.com/go-chi/chi/v5"
)

type SettlementHandler interface {
	InitiateExit(w http.ResponseWriter, r *http.Request)
	ListExits(w http.ResponseWriter, r *http.Request)
	GetExit(w http.ResponseWriter, r *http.Request)
	Calculate(w http.ResponseWriter, r *http.Request)
	Approve(w http.ResponseWriter, r *http.Request)
	MarkPaid(w http.ResponseWriter, r *http.Request)
	Complete(w http.ResponseWriter, r *http.Request)
	Snapshot(w http.ResponseWriter, r *http.Request)
}

type settlementHandlerImpl struct {
	settlementService settlement.Service
	dispatcher        Dispatcher
}

func NewSettlementHandler(settlementService settlement.Service, dispatcher Dispatcher) SettlementHandler {
	return &settlementHandlerImpl{settlementService: settlementService, dispatcher: dispatcher}
}

func (h *settlementHandlerImpl) InitiateExit(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req settlement.InitiateExitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	req.CompanyID = actor.CompanyID
	req.ActorID = actor.UserID

	result, err := h.settlementService.InitiateExit(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Exit initiated", result)
}

func (h *settlementHandlerImpl) ListExits(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var status *string
	if s := r.URL.Query().Get("status"); s != "" {
		status = &s
	}

	result, err := h.settlementService.ListExits(r.Context(), actor.CompanyID, status)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *settlementHandlerImpl) GetExit(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	result, err := h.settlementService.GetExit(r.Context(), actor.CompanyID, chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *settlementHandlerImpl) Calculate(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	exitID := chi.URLParam(r, "id")

	if wantsAsync(r) && h.dispatcher != nil {
		taskID, err := h.dispatcher.EnqueueCalculateSettlement(r.Context(), actor.CompanyID, exitID)
		if err != nil {
			response.HandleError(w, err)
			return
		}
		response.Accepted(w, "Settlement calculation queued", map[string]string{"task_id": taskID, "exit_id": exitID})
		return
	}

	result, err := h.settlementService.CalculateSettlement(r.Context(), actor.CompanyID, exitID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Settlement calculated", result)
}

func (h *settlementHandlerImpl) Approve(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req settlement.ApproveSettlementRequest
	if err := decodeOptional(r, &req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	req.CompanyID = actor.CompanyID
	req.ExitID = chi.URLParam(r, "id")
	req.ActorID = actor.UserID

	result, err := h.settlementService.ApproveSettlement(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Settlement approved", result)
}

func (h *settlementHandlerImpl) MarkPaid(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req settlement.MarkSettlementPaidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}

	result, err := h.settlementService.MarkSettlementPaid(r.Context(), actor.CompanyID, chi.URLParam(r, "id"), req.PaymentReference)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Settlement marked as paid", result)
}

func (h *settlementHandlerImpl) Complete(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	result, err := h.settlementService.CompleteSettlement(r.Context(), actor.CompanyID, chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Settlement completed", result)
}

func (h *settlementHandlerImpl) Snapshot(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	result, err := h.settlementService.Snapshot(r.Context(), actor.CompanyID, chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}
