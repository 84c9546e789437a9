package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"commute/internal/domain"
	"commute/internal/monitor"
	"commute/internal/service"
)

// TripHandler handles HTTP requests for trips.
type TripHandler struct {
	tripService *service.TripSessionService
}

// NewTripHandler creates a new TripHandler.
func NewTripHandler(tripService *service.TripSessionService) *TripHandler {
	return &TripHandler{tripService: tripService}
}

// CoordinateBody is a lat/lng pair in a request body. Both fields are
// required; a missing one must not read as zero.
type CoordinateBody struct {
	Lat *float64 `json:"lat" binding:"required"`
	Lng *float64 `json:"lng" binding:"required"`
}

// RecommendationBody is the recommendation the user committed to.
type RecommendationBody struct {
	ID              string    `json:"id"`
	DepartAt        time.Time `json:"depart_at"`
	EstimatedReward int       `json:"estimated_reward"`
	Polyline        string    `json:"polyline,omitempty"`
}

// CreateTripRequest is the HTTP request body for creating a trip.
type CreateTripRequest struct {
	UserID             string             `json:"user_id"`
	Recommendation     RecommendationBody `json:"recommendation"`
	OriginAddress      string             `json:"origin_address"`
	DestinationAddress string             `json:"destination_address"`
	Origin             *CoordinateBody    `json:"origin,omitempty"`
	Destination        *CoordinateBody    `json:"destination,omitempty"`
	Demo               bool               `json:"demo,omitempty"`
}

// ReportPositionRequest is a client geolocation fix.
type ReportPositionRequest struct {
	Lat            *float64   `json:"lat" binding:"required"`
	Lng            *float64   `json:"lng" binding:"required"`
	AccuracyMeters float64    `json:"accuracy_m"`
	Timestamp      *time.Time `json:"timestamp,omitempty"`
}

// ReportPositionErrorRequest is a client geolocation failure.
type ReportPositionErrorRequest struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// LocationResponse is a resolved trip endpoint.
type LocationResponse struct {
	Lat           float64 `json:"lat"`
	Lng           float64 `json:"lng"`
	Address       string  `json:"address"`
	Source        string  `json:"source"`
	LowConfidence bool    `json:"low_confidence"`
}

// PositionResponse is the last known position of a trip.
type PositionResponse struct {
	Lat            float64 `json:"lat"`
	Lng            float64 `json:"lng"`
	AccuracyMeters float64 `json:"accuracy_m"`
	Timestamp      string  `json:"timestamp"`
}

// RewardResponse is the reward of a completed trip.
type RewardResponse struct {
	Source    string         `json:"source"`
	Points    int            `json:"points"`
	Confirmed bool           `json:"confirmed"`
	Reason    string         `json:"reason,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// TripResponse is the HTTP response for trip operations.
type TripResponse struct {
	SessionID         string            `json:"session_id"`
	UserID            string            `json:"user_id"`
	RecommendationID  string            `json:"recommendation_id"`
	Phase             string            `json:"phase"`
	TripID            string            `json:"trip_id,omitempty"`
	Origin            *LocationResponse `json:"origin,omitempty"`
	Destination       *LocationResponse `json:"destination,omitempty"`
	LastKnownPosition *PositionResponse `json:"last_known_position,omitempty"`
	Watching          bool              `json:"watching"`
	StartFailed       bool              `json:"start_failed,omitempty"`
	Reward            *RewardResponse   `json:"reward,omitempty"`
	DepartedAt        string            `json:"departed_at,omitempty"`
	EndedAt           string            `json:"ended_at,omitempty"`
}

// CreateTrip handles POST /v1/trips
func (h *TripHandler) CreateTrip(c *gin.Context) {
	var req CreateTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	snap, err := h.tripService.CreateTrip(c.Request.Context(), service.CreateTripRequest{
		UserID: req.UserID,
		Recommendation: domain.Recommendation{
			ID:              req.Recommendation.ID,
			DepartAt:        req.Recommendation.DepartAt,
			EstimatedReward: req.Recommendation.EstimatedReward,
			Polyline:        req.Recommendation.Polyline,
		},
		OriginAddress:      req.OriginAddress,
		DestinationAddress: req.DestinationAddress,
		Origin:             toCoordinate(req.Origin),
		Destination:        toCoordinate(req.Destination),
		Demo:               req.Demo,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toTripResponse(snap))
}

// GetTrip handles GET /v1/trips/:id
func (h *TripHandler) GetTrip(c *gin.Context) {
	snap, err := h.tripService.Snapshot(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toTripResponse(snap))
}

// BeginMonitoring handles POST /v1/trips/:id/begin
func (h *TripHandler) BeginMonitoring(c *gin.Context) {
	h.transition(c, h.tripService.BeginMonitoring)
}

// RestartWatch handles POST /v1/trips/:id/watch
func (h *TripHandler) RestartWatch(c *gin.Context) {
	h.transition(c, h.tripService.RestartWatch)
}

// Cancel handles POST /v1/trips/:id/cancel
func (h *TripHandler) Cancel(c *gin.Context) {
	h.transition(c, h.tripService.Cancel)
}

// Acknowledge handles POST /v1/trips/:id/ack
func (h *TripHandler) Acknowledge(c *gin.Context) {
	h.transition(c, h.tripService.Acknowledge)
}

func (h *TripHandler) transition(c *gin.Context, op func(ctx context.Context, sessionID string) (monitor.Snapshot, error)) {
	snap, err := op(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toTripResponse(snap))
}

// ReportPosition handles POST /v1/trips/:id/positions
func (h *TripHandler) ReportPosition(c *gin.Context) {
	var req ReportPositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "lat and lng are required"})
		return
	}

	fix := domain.Fix{
		Coordinate:     domain.Coordinate{Lat: *req.Lat, Lng: *req.Lng},
		AccuracyMeters: req.AccuracyMeters,
	}
	if req.Timestamp != nil {
		fix.Timestamp = *req.Timestamp
	}

	if err := h.tripService.ReportPosition(c.Request.Context(), c.Param("id"), fix); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// ReportPositionError handles POST /v1/trips/:id/position-errors
func (h *TripHandler) ReportPositionError(c *gin.Context) {
	var req ReportPositionErrorRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Code == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "code is required"})
		return
	}

	if err := h.tripService.ReportPositionError(c.Request.Context(), c.Param("id"), req.Code, req.Message); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

func toCoordinate(b *CoordinateBody) *domain.Coordinate {
	if b == nil {
		return nil
	}
	return &domain.Coordinate{Lat: *b.Lat, Lng: *b.Lng}
}

func toLocationResponse(loc *domain.NamedLocation) *LocationResponse {
	if loc == nil {
		return nil
	}
	return &LocationResponse{
		Lat:           loc.Lat,
		Lng:           loc.Lng,
		Address:       loc.Address,
		Source:        string(loc.Source),
		LowConfidence: loc.LowConfidence,
	}
}

func toRewardResponse(r *domain.Reward) *RewardResponse {
	if r == nil {
		return nil
	}
	resp := &RewardResponse{
		Source:    string(r.Source),
		Points:    r.Points,
		Confirmed: r.Confirmed(),
		Reason:    r.Reason,
	}
	if len(r.Payload) > 0 {
		var payload map[string]any
		if err := json.Unmarshal(r.Payload, &payload); err == nil {
			resp.Payload = payload
		}
	}
	return resp
}

func toTripResponse(snap monitor.Snapshot) TripResponse {
	resp := TripResponse{
		SessionID:        snap.SessionID,
		UserID:           snap.UserID,
		RecommendationID: snap.RecommendationID,
		Phase:            string(snap.Phase),
		TripID:           snap.TripID,
		Origin:           toLocationResponse(snap.Origin),
		Destination:      toLocationResponse(snap.Destination),
		Watching:         snap.Watching,
		StartFailed:      snap.StartFailed,
		Reward:           toRewardResponse(snap.Reward),
		DepartedAt:       formatTime(snap.DepartedAt),
		EndedAt:          formatTime(snap.EndedAt),
	}
	if fix := snap.LastKnownPosition; fix != nil {
		resp.LastKnownPosition = &PositionResponse{
			Lat:            fix.Lat,
			Lng:            fix.Lng,
			AccuracyMeters: fix.AccuracyMeters,
			Timestamp:      formatTime(fix.Timestamp),
		}
	}
	return resp
}
