package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	apperrors "github.com/funding-ledger/internal/errors"
	"github.com/funding-ledger/internal/models"
	"github.com/funding-ledger/internal/storage"
	"github.com/funding-ledger/internal/types"
)

// handleCreateTransaction handles POST /api/transactions
func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AmountSats     int64                   `json:"amountSats"`
		FromEntityType types.EntityType        `json:"fromEntityType"`
		FromEntityID   string                  `json:"fromEntityId"`
		ToEntityType   types.EntityType        `json:"toEntityType"`
		ToEntityID     string                  `json:"toEntityId"`
		PaymentMethod  string                  `json:"paymentMethod,omitempty"`
		Status         types.TransactionStatus `json:"status,omitempty"`
		Memo           string                  `json:"memo,omitempty"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, apperrors.CodeValidation, "Invalid request body", nil)
		return
	}

	tx := &models.Transaction{
		AmountSats:     req.AmountSats,
		FromEntityType: req.FromEntityType,
		FromEntityID:   req.FromEntityID,
		ToEntityType:   req.ToEntityType,
		ToEntityID:     req.ToEntityID,
		PaymentMethod:  req.PaymentMethod,
		Status:         req.Status,
		Memo:           req.Memo,
	}

	created, err := s.ledgerService.CreateTransaction(r.Context(), tx, actorID(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, created)
}

// handleGetTransaction handles GET /api/transactions/{id}
func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	tx, err := s.ledgerService.GetTransaction(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, tx)
}

// handleUpdateTransactionStatus handles PUT /api/transactions/{id}/status
func (s *Server) handleUpdateTransactionStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req struct {
		Status types.TransactionStatus `json:"status"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, apperrors.CodeValidation, "Invalid request body", nil)
		return
	}

	tx, err := s.ledgerService.UpdateTransactionStatus(r.Context(), id, req.Status, actorID(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, tx)
}

// handleDeleteTransaction handles DELETE /api/transactions/{id}
func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := s.ledgerService.DeleteTransaction(r.Context(), id, actorID(r)); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusNoContent, nil)
}

// handleVerifyTransaction handles GET /api/transactions/{id}/verify
func (s *Server) handleVerifyTransaction(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	valid, err := s.ledgerService.VerifyTransaction(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"id": id, "valid": valid})
}

// handleListTransactionsByEntity handles GET /api/owners/{ownerType}/{ownerId}/transactions
func (s *Server) handleListTransactionsByEntity(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	entityType := types.EntityType(vars["ownerType"])
	entityID := vars["ownerId"]

	limit, offset := parsePaging(r)
	filters := &storage.TransactionFilters{Limit: limit, Offset: offset}

	if raw := r.URL.Query().Get("status"); raw != "" {
		status := types.TransactionStatus(raw)
		if !types.ValidTransactionStatus(status) {
			respondError(w, http.StatusBadRequest, apperrors.CodeValidation, "Unknown transaction status", nil)
			return
		}
		filters.Status = &status
	}
	if raw := r.URL.Query().Get("from"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			filters.DateFrom = &t
		}
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			filters.DateTo = &t
		}
	}

	transactions, err := s.ledgerService.ListTransactionsByEntity(r.Context(), entityType, entityID, filters)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"transactions": transactions})
}
