package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"commute/internal/domain"
	"commute/internal/service"
)

const defaultHistoryLimit = 20

// UserHandler handles HTTP requests for per-user session state.
type UserHandler struct {
	sessionService *service.SessionService
	tripService    *service.TripSessionService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(sessionService *service.SessionService, tripService *service.TripSessionService) *UserHandler {
	return &UserHandler{
		sessionService: sessionService,
		tripService:    tripService,
	}
}

// UpdateProfileRequest is the HTTP request body for updating a profile.
type UpdateProfileRequest struct {
	DisplayName string `json:"display_name"`
	HomeAddress string `json:"home_address,omitempty"`
	WorkAddress string `json:"work_address,omitempty"`
}

// ProfileResponse is the HTTP response for profile data.
type ProfileResponse struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	HomeAddress string `json:"home_address,omitempty"`
	WorkAddress string `json:"work_address,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

// AddFavoriteRequest is the HTTP request body for saving a route.
type AddFavoriteRequest struct {
	Name        string `json:"name"`
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
}

// FavoriteResponse is a saved route.
type FavoriteResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	CreatedAt   string `json:"created_at"`
}

// HistoryEntry is one journaled trip attempt.
type HistoryEntry struct {
	SessionID        string            `json:"session_id"`
	RecommendationID string            `json:"recommendation_id"`
	TripID           string            `json:"trip_id,omitempty"`
	Phase            string            `json:"phase"`
	Origin           *LocationResponse `json:"origin"`
	Destination      *LocationResponse `json:"destination"`
	RewardSource     string            `json:"reward_source,omitempty"`
	RewardPoints     int               `json:"reward_points,omitempty"`
	Demo             bool              `json:"demo"`
	CreatedAt        string            `json:"created_at"`
	DepartedAt       string            `json:"departed_at,omitempty"`
	EndedAt          string            `json:"ended_at,omitempty"`
}

// DraftResponse is the last trip form the user submitted.
type DraftResponse struct {
	Origin           string `json:"origin"`
	Destination      string `json:"destination"`
	RecommendationID string `json:"recommendation_id"`
	SavedAt          string `json:"saved_at"`
}

// GetProfile handles GET /v1/users/:id/profile
func (h *UserHandler) GetProfile(c *gin.Context) {
	profile, err := h.sessionService.GetProfile(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toProfileResponse(profile))
}

// UpdateProfile handles PUT /v1/users/:id/profile
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	profile, err := h.sessionService.UpdateProfile(c.Request.Context(), service.UpdateProfileRequest{
		UserID:      c.Param("id"),
		DisplayName: req.DisplayName,
		HomeAddress: req.HomeAddress,
		WorkAddress: req.WorkAddress,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toProfileResponse(profile))
}

// ListFavorites handles GET /v1/users/:id/favorites
func (h *UserHandler) ListFavorites(c *gin.Context) {
	favorites, err := h.sessionService.ListFavorites(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]FavoriteResponse, 0, len(favorites))
	for _, f := range favorites {
		response = append(response, toFavoriteResponse(f))
	}
	c.JSON(http.StatusOK, response)
}

// AddFavorite handles POST /v1/users/:id/favorites
func (h *UserHandler) AddFavorite(c *gin.Context) {
	var req AddFavoriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	fav, err := h.sessionService.AddFavorite(c.Request.Context(), service.AddFavoriteRequest{
		UserID:      c.Param("id"),
		Name:        req.Name,
		Origin:      req.Origin,
		Destination: req.Destination,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, toFavoriteResponse(*fav))
}

// RemoveFavorite handles DELETE /v1/users/:id/favorites/:fav
func (h *UserHandler) RemoveFavorite(c *gin.Context) {
	if err := h.sessionService.RemoveFavorite(c.Request.Context(), c.Param("id"), c.Param("fav")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetDraft handles GET /v1/users/:id/draft
func (h *UserHandler) GetDraft(c *gin.Context) {
	draft, err := h.sessionService.LastDraft(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if draft == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no draft saved"})
		return
	}
	respondJSON(c, http.StatusOK, DraftResponse{
		Origin:           draft.Origin,
		Destination:      draft.Destination,
		RecommendationID: draft.RecommendationID,
		SavedAt:          formatTime(draft.SavedAt),
	})
}

// ClearDraft handles DELETE /v1/users/:id/draft
func (h *UserHandler) ClearDraft(c *gin.Context) {
	if err := h.sessionService.ClearDraft(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// History handles GET /v1/users/:id/trips
func (h *UserHandler) History(c *gin.Context) {
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}

	records, err := h.tripService.History(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]HistoryEntry, 0, len(records))
	for _, r := range records {
		response = append(response, HistoryEntry{
			SessionID:        r.ID,
			RecommendationID: r.RecommendationID,
			TripID:           r.TripID,
			Phase:            string(r.Phase),
			Origin:           toLocationResponse(&r.Origin),
			Destination:      toLocationResponse(&r.Destination),
			RewardSource:     string(r.RewardSource),
			RewardPoints:     r.RewardPoints,
			Demo:             r.Demo,
			CreatedAt:        formatTime(r.CreatedAt),
			DepartedAt:       formatTime(r.DepartedAt),
			EndedAt:          formatTime(r.EndedAt),
		})
	}
	c.JSON(http.StatusOK, response)
}

func toProfileResponse(p *domain.UserProfile) ProfileResponse {
	return ProfileResponse{
		UserID:      p.UserID,
		DisplayName: p.DisplayName,
		HomeAddress: p.HomeAddress,
		WorkAddress: p.WorkAddress,
		UpdatedAt:   formatTime(p.UpdatedAt),
	}
}

func toFavoriteResponse(f domain.FavoriteRoute) FavoriteResponse {
	return FavoriteResponse{
		ID:          f.ID,
		Name:        f.Name,
		Origin:      f.Origin,
		Destination: f.Destination,
		CreatedAt:   formatTime(f.CreatedAt),
	}
}
