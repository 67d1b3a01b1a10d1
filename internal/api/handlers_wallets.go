package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	apperrors "github.com/funding-ledger/internal/errors"
	"github.com/funding-ledger/internal/models"
	"github.com/funding-ledger/internal/service"
	"github.com/funding-ledger/internal/types"
)

// handleCreateWallet handles POST /api/wallets
func (s *Server) handleCreateWallet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OwnerType        types.EntityType        `json:"ownerType"`
		OwnerID          string                  `json:"ownerId"`
		WalletType       types.WalletType        `json:"walletType"`
		Value            string                  `json:"value"`
		Label            string                  `json:"label,omitempty"`
		Category         string                  `json:"category,omitempty"`
		Icon             string                  `json:"icon,omitempty"`
		BehaviorType     types.BehaviorType      `json:"behaviorType"`
		GoalAmountSats   *int64                  `json:"goalAmountSats,omitempty"`
		GoalDeadline     *time.Time              `json:"goalDeadline,omitempty"`
		BudgetAmountSats *int64                  `json:"budgetAmountSats,omitempty"`
		BudgetPeriod     *types.BudgetPeriodType `json:"budgetPeriod,omitempty"`
		BudgetStartDay   *int                    `json:"budgetStartDay,omitempty"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, apperrors.CodeValidation, "Invalid request body", nil)
		return
	}

	if req.BehaviorType == "" {
		req.BehaviorType = types.BehaviorGeneral
	}

	wallet := &models.Wallet{
		WalletType:       req.WalletType,
		Value:            req.Value,
		Label:            req.Label,
		Category:         req.Category,
		Icon:             req.Icon,
		BehaviorType:     req.BehaviorType,
		GoalAmountSats:   req.GoalAmountSats,
		GoalDeadline:     req.GoalDeadline,
		BudgetAmountSats: req.BudgetAmountSats,
		BudgetPeriod:     req.BudgetPeriod,
		BudgetStartDay:   req.BudgetStartDay,
	}

	created, err := s.walletService.CreateWallet(r.Context(), wallet, req.OwnerType, req.OwnerID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, created)
}

// handleGetWallet handles GET /api/wallets/{id}
func (s *Server) handleGetWallet(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	wallet, err := s.walletService.GetWallet(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, wallet)
}

// handleUpdateWallet handles PUT /api/wallets/{id}
func (s *Server) handleUpdateWallet(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	wallet, err := s.walletService.GetWallet(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	var req struct {
		Label    *string `json:"label,omitempty"`
		Category *string `json:"category,omitempty"`
		Icon     *string `json:"icon,omitempty"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, apperrors.CodeValidation, "Invalid request body", nil)
		return
	}

	if req.Label != nil {
		wallet.Label = *req.Label
	}
	if req.Category != nil {
		wallet.Category = *req.Category
	}
	if req.Icon != nil {
		wallet.Icon = *req.Icon
	}

	if err := s.walletService.UpdateWallet(r.Context(), wallet); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, wallet)
}

// handleDeactivateWallet handles POST /api/wallets/{id}/deactivate
func (s *Server) handleDeactivateWallet(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := s.walletService.DeactivateWallet(r.Context(), id); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"id": id, "active": false})
}

// handleDeleteWallet handles DELETE /api/wallets/{id}
func (s *Server) handleDeleteWallet(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := s.walletService.DeleteWallet(r.Context(), id); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusNoContent, nil)
}

// handleListWalletsByOwner handles GET /api/owners/{ownerType}/{ownerId}/wallets
func (s *Server) handleListWalletsByOwner(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ownerType := types.EntityType(vars["ownerType"])
	ownerID := vars["ownerId"]

	wallets, err := s.walletService.ListWalletsByOwner(r.Context(), ownerType, ownerID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"wallets": wallets})
}

// handleRepointOwnership handles PUT /api/ownerships/{id}
func (s *Server) handleRepointOwnership(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req struct {
		OwnerType types.EntityType `json:"ownerType"`
		OwnerID   string           `json:"ownerId"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, apperrors.CodeValidation, "Invalid request body", nil)
		return
	}

	if err := s.walletService.RepointOwnership(r.Context(), id, req.OwnerType, req.OwnerID); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"id":        id,
		"ownerType": req.OwnerType,
		"ownerId":   req.OwnerID,
	})
}

// handleRecordBalance handles POST /api/wallets/{id}/balance
func (s *Server) handleRecordBalance(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req struct {
		BalanceBTC decimal.Decimal `json:"balanceBtc"`
		TxCount    int             `json:"txCount"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, apperrors.CodeValidation, "Invalid request body", nil)
		return
	}

	wallet, err := s.balanceService.RecordBalance(r.Context(), id, &service.BalanceResult{
		BalanceBTC: req.BalanceBTC,
		TxCount:    req.TxCount,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, wallet)
}

// handleRefreshBalance handles POST /api/wallets/{id}/balance/refresh
func (s *Server) handleRefreshBalance(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	wallet, err := s.balanceService.RefreshBalance(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, wallet)
}

// handleListBudgetPeriods handles GET /api/wallets/{id}/periods
func (s *Server) handleListBudgetPeriods(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	limit, _ := parsePaging(r)

	periods, err := s.budgetService.PeriodHistory(r.Context(), id, limit)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"periods": periods})
}

// handleListMilestones handles GET /api/wallets/{id}/milestones
func (s *Server) handleListMilestones(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	milestones, err := s.milestones.ListByWallet(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"milestones": milestones})
}

// handleSweepBudgetPeriods handles POST /api/budget/sweep
func (s *Server) handleSweepBudgetPeriods(w http.ResponseWriter, r *http.Request) {
	rolled, err := s.budgetService.SweepDuePeriods(r.Context(), time.Now())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"rolled": rolled})
}
