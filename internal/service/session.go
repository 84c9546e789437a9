package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"commute/internal/domain"
	internalRedis "commute/internal/redis"
)

// SessionService manages per-user client state.
type SessionService struct {
	store internalRedis.SessionStoreInterface
}

// NewSessionService creates a new SessionService.
func NewSessionService(store internalRedis.SessionStoreInterface) *SessionService {
	return &SessionService{store: store}
}

// GetProfile returns the user's profile. A user without a stored profile
// gets an empty one.
func (s *SessionService) GetProfile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidUserID
	}
	profile, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return &domain.UserProfile{UserID: userID}, nil
	}
	return profile, nil
}

// UpdateProfileRequest contains the editable profile fields.
type UpdateProfileRequest struct {
	UserID      string
	DisplayName string
	HomeAddress string
	WorkAddress string
}

// UpdateProfile replaces the user's profile.
func (s *SessionService) UpdateProfile(ctx context.Context, req UpdateProfileRequest) (*domain.UserProfile, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, ErrInvalidUserID
	}
	profile := &domain.UserProfile{
		UserID:      req.UserID,
		DisplayName: strings.TrimSpace(req.DisplayName),
		HomeAddress: strings.TrimSpace(req.HomeAddress),
		WorkAddress: strings.TrimSpace(req.WorkAddress),
		UpdatedAt:   time.Now(),
	}
	if err := s.store.SaveProfile(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// ListFavorites returns the user's saved routes, oldest first.
func (s *SessionService) ListFavorites(ctx context.Context, userID string) ([]domain.FavoriteRoute, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidUserID
	}
	return s.store.ListFavorites(ctx, userID)
}

// AddFavoriteRequest contains the parameters for saving a route.
type AddFavoriteRequest struct {
	UserID      string
	Name        string
	Origin      string
	Destination string
}

// AddFavorite saves a new route.
func (s *SessionService) AddFavorite(ctx context.Context, req AddFavoriteRequest) (*domain.FavoriteRoute, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, ErrInvalidUserID
	}
	fav := domain.FavoriteRoute{
		ID:          uuid.New().String(),
		Name:        strings.TrimSpace(req.Name),
		Origin:      strings.TrimSpace(req.Origin),
		Destination: strings.TrimSpace(req.Destination),
		CreatedAt:   time.Now(),
	}
	if fav.Name == "" || fav.Origin == "" || fav.Destination == "" {
		return nil, ErrInvalidFavorite
	}
	if err := s.store.AddFavorite(ctx, req.UserID, fav); err != nil {
		return nil, err
	}
	return &fav, nil
}

// RemoveFavorite deletes a saved route.
func (s *SessionService) RemoveFavorite(ctx context.Context, userID, favoriteID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrInvalidUserID
	}
	removed, err := s.store.RemoveFavorite(ctx, userID, favoriteID)
	if err != nil {
		return err
	}
	if !removed {
		return ErrFavoriteNotFound
	}
	return nil
}

// LastDraft returns the last submitted trip form, or nil.
func (s *SessionService) LastDraft(ctx context.Context, userID string) (*domain.TripDraft, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidUserID
	}
	return s.store.GetDraft(ctx, userID)
}

// ClearDraft forgets the last submitted trip form.
func (s *SessionService) ClearDraft(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrInvalidUserID
	}
	return s.store.ClearDraft(ctx, userID)
}
