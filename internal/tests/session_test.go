package tests

import (
	"context"
	"errors"
	"testing"
	"time"

	"commute/internal/domain"
	"commute/internal/monitor"
	"commute/internal/service"
)

// ──────────────────────────────────────────────
// 1. PROFILE
// ──────────────────────────────────────────────

func TestSession_ProfileRoundTrip(t *testing.T) {
	t.Parallel()

	svc := service.NewSessionService(NewMockSessionStore())
	ctx := context.Background()

	profile, err := svc.GetProfile(ctx, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if profile.UserID != "user-1" || profile.DisplayName != "" {
		t.Errorf("expected empty profile, got %+v", profile)
	}

	_, err = svc.UpdateProfile(ctx, service.UpdateProfileRequest{
		UserID:      "user-1",
		DisplayName: "  Jimin ",
		HomeAddress: "Mapo-gu",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	profile, _ = svc.GetProfile(ctx, "user-1")
	if profile.DisplayName != "Jimin" || profile.HomeAddress != "Mapo-gu" {
		t.Errorf("profile not stored: %+v", profile)
	}

	if _, err := svc.GetProfile(ctx, ""); !errors.Is(err, service.ErrInvalidUserID) {
		t.Errorf("expected ErrInvalidUserID, got %v", err)
	}
}

// ──────────────────────────────────────────────
// 2. FAVORITES
// ──────────────────────────────────────────────

func TestSession_Favorites(t *testing.T) {
	t.Parallel()

	svc := service.NewSessionService(NewMockSessionStore())
	ctx := context.Background()

	home, err := svc.AddFavorite(ctx, service.AddFavoriteRequest{
		UserID:      "user-1",
		Name:        "Work",
		Origin:      "Hongdae",
		Destination: "Gangnam Station",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if home.ID == "" {
		t.Error("expected generated favorite id")
	}

	_, err = svc.AddFavorite(ctx, service.AddFavoriteRequest{UserID: "user-1", Name: "Gym", Origin: "Hongdae"})
	if !errors.Is(err, service.ErrInvalidFavorite) {
		t.Errorf("expected ErrInvalidFavorite, got %v", err)
	}

	favorites, _ := svc.ListFavorites(ctx, "user-1")
	if len(favorites) != 1 || favorites[0].Name != "Work" {
		t.Fatalf("unexpected favorites: %+v", favorites)
	}

	if err := svc.RemoveFavorite(ctx, "user-1", home.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.RemoveFavorite(ctx, "user-1", home.ID); !errors.Is(err, service.ErrFavoriteNotFound) {
		t.Errorf("expected ErrFavoriteNotFound, got %v", err)
	}
}

func TestSession_DraftClears(t *testing.T) {
	t.Parallel()

	store := NewMockSessionStore()
	svc := service.NewSessionService(store)
	ctx := context.Background()

	_ = store.SaveDraft(ctx, "user-1", &domain.TripDraft{Origin: "Hongdae", Destination: "Gangnam", SavedAt: time.Now()})

	draft, err := svc.LastDraft(ctx, "user-1")
	if err != nil || draft == nil {
		t.Fatalf("expected draft, got %+v (%v)", draft, err)
	}

	if err := svc.ClearDraft(ctx, "user-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	draft, _ = svc.LastDraft(ctx, "user-1")
	if draft != nil {
		t.Errorf("expected no draft, got %+v", draft)
	}
}

// ──────────────────────────────────────────────
// 3. NOTIFICATIONS
// ──────────────────────────────────────────────

func TestNotification_PublishFailureStillPushes(t *testing.T) {
	t.Parallel()

	records := NewMockTripRecordRepository()
	records.AddRecord(&domain.TripRecord{ID: "s1", UserID: "user-1", Phase: domain.PhaseWaiting})
	publisher := NewMockPublisher()
	publisher.PublishError = errors.New("broker down")
	clients := NewMockBroadcaster()

	svc := service.NewNotificationService(records, publisher, clients, nil)
	svc.PhaseChanged(context.Background(), monitor.Snapshot{SessionID: "s1", UserID: "user-1", Phase: domain.PhaseMonitoring})

	if got := records.GetRecord("s1").Phase; got != domain.PhaseMonitoring {
		t.Errorf("expected journal MONITORING, got %s", got)
	}
	types := clients.Types("s1")
	if len(types) != 1 || types[0] != service.NotificationPhaseChanged {
		t.Errorf("unexpected notifications: %v", types)
	}
}

func TestNotification_RewardEventCarriesReward(t *testing.T) {
	t.Parallel()

	records := NewMockTripRecordRepository()
	records.AddRecord(&domain.TripRecord{ID: "s1", UserID: "user-1", Phase: domain.PhaseCompleted})
	publisher := NewMockPublisher()

	svc := service.NewNotificationService(records, publisher, nil, nil)
	reward := domain.Reward{Source: domain.RewardConfirmed, Points: 42}
	svc.RewardReady(context.Background(), monitor.Snapshot{
		SessionID: "s1",
		UserID:    "user-1",
		Phase:     domain.PhaseCompleted,
		TripID:    "trip-9",
		Reward:    &reward,
	}, reward)

	evs := publisher.Events()
	if len(evs) != 1 {
		t.Fatalf("expected one event, got %d", len(evs))
	}
	if publisher.RoutingKeys()[0] != "trip.reward" {
		t.Errorf("expected trip.reward, got %s", publisher.RoutingKeys()[0])
	}
	if evs[0].Reward == nil || evs[0].Reward.Points != 42 || evs[0].TripID != "trip-9" {
		t.Errorf("unexpected event: %+v", evs[0])
	}

	record := records.GetRecord("s1")
	if record.RewardPoints != 42 || record.TripID != "trip-9" {
		t.Errorf("journal not updated: %+v", record)
	}
}

func TestNotification_WarningDoesNotTouchJournal(t *testing.T) {
	t.Parallel()

	records := NewMockTripRecordRepository()
	clients := NewMockBroadcaster()
	svc := service.NewNotificationService(records, nil, clients, nil)

	svc.Warn(context.Background(), monitor.Snapshot{SessionID: "s1"}, monitor.ErrPositionStream)

	if records.UpdateCallCount != 0 {
		t.Error("warnings must not be journaled")
	}
	if types := clients.Types("s1"); len(types) != 1 || types[0] != service.NotificationWarning {
		t.Errorf("unexpected notifications: %v", types)
	}
}
