package api

import (
	"net/http"

	"github.com/gorilla/mux"

	apperrors "github.com/funding-ledger/internal/errors"
	"github.com/funding-ledger/internal/types"
)

// handleCreatePost handles POST /api/posts
func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AuthorProfileID string               `json:"authorProfileId,omitempty"`
		Content         string               `json:"content"`
		TimelineTypes   []types.TimelineType `json:"timelineTypes"`
		TimelineOwners  []*string            `json:"timelineOwnerIds"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, apperrors.CodeValidation, "Invalid request body", nil)
		return
	}

	author := req.AuthorProfileID
	if author == "" {
		author = actorID(r)
	}
	if author == "" {
		respondError(w, http.StatusBadRequest, apperrors.CodeValidation, "Author profile ID required", nil)
		return
	}

	post, err := s.postService.CreatePostWithVisibility(r.Context(), author, req.Content, req.TimelineTypes, req.TimelineOwners)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, post)
}

// handleGetPost handles GET /api/posts/{id}
func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	post, err := s.postService.GetPost(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, post)
}

// handleDeletePost handles DELETE /api/posts/{id}
func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := s.postService.DeletePost(r.Context(), id); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusNoContent, nil)
}

// handleListVisibilities handles GET /api/posts/{id}/visibilities
func (s *Server) handleListVisibilities(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	visibilities, err := s.postService.ListVisibilities(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"visibilities": visibilities})
}

// handleGetCommunityTimeline handles GET /api/timelines/community
func (s *Server) handleGetCommunityTimeline(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePaging(r)

	posts, err := s.postService.GetCommunityTimeline(r.Context(), limit, offset)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"posts": posts})
}

// handleGetTimeline handles GET /api/timelines/{type}/{ownerId}
func (s *Server) handleGetTimeline(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	timelineType := types.TimelineType(vars["type"])
	ownerID := vars["ownerId"]
	limit, offset := parsePaging(r)

	posts, err := s.postService.GetTimeline(r.Context(), timelineType, ownerID, limit, offset)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"posts": posts})
}
