package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	apperrors "github.com/funding-ledger/internal/errors"
	"github.com/funding-ledger/internal/models"
)

// handleCreateProject handles POST /api/projects
func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OwnerProfileID string     `json:"ownerProfileId"`
		Slug           string     `json:"slug"`
		Title          string     `json:"title"`
		Description    string     `json:"description,omitempty"`
		GoalAmountSats *int64     `json:"goalAmountSats,omitempty"`
		Deadline       *time.Time `json:"deadline,omitempty"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, apperrors.CodeValidation, "Invalid request body", nil)
		return
	}

	project := &models.Project{
		OwnerProfileID: req.OwnerProfileID,
		Slug:           req.Slug,
		Title:          req.Title,
		Description:    req.Description,
		GoalAmountSats: req.GoalAmountSats,
		Deadline:       req.Deadline,
	}

	created, err := s.projectService.CreateProject(r.Context(), project)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, created)
}

// handleGetProject handles GET /api/projects/{id}
func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	project, err := s.projectService.GetProject(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, project)
}

// handleGetProjectBySlug handles GET /api/projects/slug/{slug}
func (s *Server) handleGetProjectBySlug(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]

	project, err := s.projectService.GetProjectBySlug(r.Context(), slug)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, project)
}

// handleUpdateProject handles PUT /api/projects/{id}
func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	project, err := s.projectService.GetProject(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	var req struct {
		Slug           *string    `json:"slug,omitempty"`
		Title          *string    `json:"title,omitempty"`
		Description    *string    `json:"description,omitempty"`
		GoalAmountSats *int64     `json:"goalAmountSats,omitempty"`
		Deadline       *time.Time `json:"deadline,omitempty"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, apperrors.CodeValidation, "Invalid request body", nil)
		return
	}

	if req.Slug != nil {
		project.Slug = *req.Slug
	}
	if req.Title != nil {
		project.Title = *req.Title
	}
	if req.Description != nil {
		project.Description = *req.Description
	}
	if req.GoalAmountSats != nil {
		project.GoalAmountSats = req.GoalAmountSats
	}
	if req.Deadline != nil {
		project.Deadline = req.Deadline
	}

	if err := s.projectService.UpdateProject(r.Context(), project); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, project)
}

// handleDeleteProject handles DELETE /api/projects/{id}
func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := s.projectService.DeleteProject(r.Context(), id); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusNoContent, nil)
}

// handleListProjects handles GET /api/projects
func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePaging(r)

	projects, err := s.projectService.ListProjects(r.Context(), limit, offset)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"projects": projects})
}

// handleListProjectsByOwner handles GET /api/profiles/{id}/projects
func (s *Server) handleListProjectsByOwner(w http.ResponseWriter, r *http.Request) {
	ownerID := mux.Vars(r)["id"]
	limit, offset := parsePaging(r)

	projects, err := s.projectService.ListProjectsByOwner(r.Context(), ownerID, limit, offset)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"projects": projects})
}

// handleGetProjectStats handles GET /api/projects/{id}/stats
func (s *Server) handleGetProjectStats(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	stats, err := s.statsService.GetProjectStats(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, stats)
}
