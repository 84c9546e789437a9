package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"commute/internal/domain"
)

// SessionStore keeps per-user client state: profile, favorite routes and the
// last trip draft.
type SessionStore struct {
	client *redis.Client
}

// NewSessionStore creates a new SessionStore.
func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{client: client}
}

func profileKey(userID string) string   { return fmt.Sprintf("session:%s:profile", userID) }
func favoritesKey(userID string) string { return fmt.Sprintf("session:%s:favorites", userID) }
func draftKey(userID string) string     { return fmt.Sprintf("session:%s:draft", userID) }

// GetProfile returns the stored profile, or nil if none exists.
func (s *SessionStore) GetProfile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	var p domain.UserProfile
	ok, err := s.getJSON(ctx, profileKey(userID), &p)
	if err != nil || !ok {
		return nil, err
	}
	return &p, nil
}

// SaveProfile stores the profile.
func (s *SessionStore) SaveProfile(ctx context.Context, profile *domain.UserProfile) error {
	return s.setJSON(ctx, profileKey(profile.UserID), profile)
}

// ListFavorites returns favorite routes ordered by creation time.
func (s *SessionStore) ListFavorites(ctx context.Context, userID string) ([]domain.FavoriteRoute, error) {
	values, err := s.client.HGetAll(ctx, favoritesKey(userID)).Result()
	if err != nil {
		return nil, err
	}

	favorites := make([]domain.FavoriteRoute, 0, len(values))
	for _, raw := range values {
		var fav domain.FavoriteRoute
		if err := json.Unmarshal([]byte(raw), &fav); err != nil {
			continue // Skip invalid entries
		}
		favorites = append(favorites, fav)
	}
	sort.Slice(favorites, func(i, j int) bool {
		return favorites[i].CreatedAt.Before(favorites[j].CreatedAt)
	})
	return favorites, nil
}

// AddFavorite stores or replaces a favorite route.
func (s *SessionStore) AddFavorite(ctx context.Context, userID string, fav domain.FavoriteRoute) error {
	data, err := json.Marshal(fav)
	if err != nil {
		return err
	}
	return s.client.HSet(ctx, favoritesKey(userID), fav.ID, data).Err()
}

// RemoveFavorite deletes a favorite route. Returns false if it did not exist.
func (s *SessionStore) RemoveFavorite(ctx context.Context, userID, favoriteID string) (bool, error) {
	n, err := s.client.HDel(ctx, favoritesKey(userID), favoriteID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetDraft returns the last trip draft, or nil if none exists.
func (s *SessionStore) GetDraft(ctx context.Context, userID string) (*domain.TripDraft, error) {
	var d domain.TripDraft
	ok, err := s.getJSON(ctx, draftKey(userID), &d)
	if err != nil || !ok {
		return nil, err
	}
	return &d, nil
}

// SaveDraft stores the trip draft.
func (s *SessionStore) SaveDraft(ctx context.Context, userID string, draft *domain.TripDraft) error {
	return s.setJSON(ctx, draftKey(userID), draft)
}

// ClearDraft removes the trip draft.
func (s *SessionStore) ClearDraft(ctx context.Context, userID string) error {
	return s.client.Del(ctx, draftKey(userID)).Err()
}

func (s *SessionStore) getJSON(ctx context.Context, key string, v any) (bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, err
	}
	return true, nil
}

func (s *SessionStore) setJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, data, 0).Err()
}
