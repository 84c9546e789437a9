package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"commute/internal/domain"
)

// ──── MOCK CHANNEL ────

type MockChannel struct {
	mock.Mock
}

func (m *MockChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error {
	args := m.Called(ctx, exchange, key, mandatory, immediate, msg)
	return args.Error(0)
}

func TestRoutingKeyForPhase(t *testing.T) {
	tests := []struct {
		phase domain.Phase
		want  string
	}{
		{domain.PhaseMonitoring, "trip.monitoring"},
		{domain.PhaseTraveling, "trip.traveling"},
		{domain.PhaseCompleted, "trip.completed"},
		{domain.PhaseCancelled, "trip.cancelled"},
	}

	for _, tt := range tests {
		t.Run(string(tt.phase), func(t *testing.T) {
			assert.Equal(t, tt.want, RoutingKeyForPhase(tt.phase))
		})
	}
}

func TestRabbitPublisher_Publish(t *testing.T) {
	ch := new(MockChannel)
	p := NewRabbitPublisher(ch, "trip_events", nil)

	event := NewTripEvent("session-1", "user-1", "rec-1", domain.PhaseCompleted)
	event.TripID = "trip-1"
	event.Reward = &domain.Reward{Source: domain.RewardConfirmed, Points: 120}

	var published amqp091.Publishing
	ch.On("PublishWithContext", mock.Anything, "trip_events", RoutingKeyReward, false, false, mock.AnythingOfType("amqp091.Publishing")).
		Run(func(args mock.Arguments) {
			published = args.Get(5).(amqp091.Publishing)
		}).
		Return(nil)

	require.NoError(t, p.Publish(context.Background(), RoutingKeyReward, event))
	ch.AssertExpectations(t)

	assert.Equal(t, "application/json", published.ContentType)
	assert.Equal(t, event.EventID, published.MessageId)

	var decoded TripEvent
	require.NoError(t, json.Unmarshal(published.Body, &decoded))
	assert.Equal(t, "session-1", decoded.SessionID)
	assert.Equal(t, domain.PhaseCompleted, decoded.Phase)
	require.NotNil(t, decoded.Reward)
	assert.Equal(t, 120, decoded.Reward.Points)
}

func TestRabbitPublisher_PublishError(t *testing.T) {
	ch := new(MockChannel)
	p := NewRabbitPublisher(ch, "trip_events", nil)

	ch.On("PublishWithContext", mock.Anything, "trip_events", "trip.cancelled", false, false, mock.Anything).
		Return(errors.New("channel closed"))

	err := p.Publish(context.Background(), "trip.cancelled", NewTripEvent("s", "u", "r", domain.PhaseCancelled))
	assert.ErrorContains(t, err, "channel closed")
}

func TestNewTripEvent_UniqueIDs(t *testing.T) {
	a := NewTripEvent("s", "u", "r", domain.PhaseMonitoring)
	b := NewTripEvent("s", "u", "r", domain.PhaseMonitoring)
	assert.NotEqual(t, a.EventID, b.EventID)
	assert.False(t, a.OccurredAt.IsZero())
}

func TestNopPublisher(t *testing.T) {
	assert.NoError(t, NopPublisher{}.Publish(context.Background(), "trip.completed", TripEvent{}))
}
