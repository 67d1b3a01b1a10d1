package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	apperrors "github.com/funding-ledger/internal/errors"
	"github.com/funding-ledger/internal/models"
)

// parsePaging extracts limit/offset query parameters with defaults.
func parsePaging(r *http.Request) (int, int) {
	limit := 50
	offset := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= 500 {
			limit = v
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			offset = v
		}
	}
	return limit, offset
}

// handleCreateProfile handles POST /api/profiles
func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID               string  `json:"id,omitempty"`
		Username         string  `json:"username"`
		DisplayName      string  `json:"displayName,omitempty"`
		BitcoinAddress   *string `json:"bitcoinAddress,omitempty"`
		LightningAddress *string `json:"lightningAddress,omitempty"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, apperrors.CodeValidation, "Invalid request body", nil)
		return
	}

	profile := &models.Profile{
		ID:               req.ID,
		Username:         req.Username,
		DisplayName:      req.DisplayName,
		BitcoinAddress:   req.BitcoinAddress,
		LightningAddress: req.LightningAddress,
	}

	created, err := s.profileService.CreateProfile(r.Context(), profile)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, created)
}

// handleGetProfile handles GET /api/profiles/{id}
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	profile, err := s.profileService.GetProfile(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, profile)
}

// handleGetProfileByUsername handles GET /api/profiles/username/{username}
func (s *Server) handleGetProfileByUsername(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]

	profile, err := s.profileService.GetProfileByUsername(r.Context(), username)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, profile)
}

// handleUpdateProfile handles PUT /api/profiles/{id}
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	profile, err := s.profileService.GetProfile(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	var req struct {
		Username         *string `json:"username,omitempty"`
		DisplayName      *string `json:"displayName,omitempty"`
		BitcoinAddress   *string `json:"bitcoinAddress,omitempty"`
		LightningAddress *string `json:"lightningAddress,omitempty"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, apperrors.CodeValidation, "Invalid request body", nil)
		return
	}

	if req.Username != nil {
		profile.Username = *req.Username
	}
	if req.DisplayName != nil {
		profile.DisplayName = *req.DisplayName
	}
	if req.BitcoinAddress != nil {
		profile.BitcoinAddress = req.BitcoinAddress
	}
	if req.LightningAddress != nil {
		profile.LightningAddress = req.LightningAddress
	}

	if err := s.profileService.UpdateProfile(r.Context(), profile); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, profile)
}

// handleRetireProfile handles POST /api/profiles/{id}/retire
func (s *Server) handleRetireProfile(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := s.profileService.RetireProfile(r.Context(), id); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "retired"})
}

// handleDeleteProfile handles DELETE /api/profiles/{id}
func (s *Server) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := s.profileService.DeleteProfile(r.Context(), id); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusNoContent, nil)
}

// handleListProfiles handles GET /api/profiles
func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePaging(r)

	profiles, err := s.profileService.ListProfiles(r.Context(), limit, offset)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"profiles": profiles})
}
