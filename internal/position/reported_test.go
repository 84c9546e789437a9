package position

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commute/internal/domain"
	"commute/internal/monitor"
)

type collector struct {
	mu     sync.Mutex
	fixes  []domain.Fix
	errors []error
}

func (c *collector) update(f domain.Fix) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fixes = append(c.fixes, f)
}

func (c *collector) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors = append(c.errors, err)
}

func (c *collector) Fixes() []domain.Fix {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Fix(nil), c.fixes...)
}

func (c *collector) Errors() []error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]error(nil), c.errors...)
}

func newTestSource(now time.Time) *ReportedSource {
	s := NewReportedSource(DefaultReportedConfig(), nil)
	s.now = func() time.Time { return now }
	return s
}

var t0 = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func fixAt(lat float64, ts time.Time) domain.Fix {
	return domain.Fix{Coordinate: domain.Coordinate{Lat: lat, Lng: 127}, Timestamp: ts}
}

func TestReported_CurrentPositionUsesFreshCache(t *testing.T) {
	t.Parallel()

	s := newTestSource(t0)
	require.NoError(t, s.Report(fixAt(37.5, t0.Add(-59*time.Second))))

	fix, err := s.CurrentPosition(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 37.5, fix.Lat)
}

func TestReported_CurrentPositionTimesOut(t *testing.T) {
	t.Parallel()

	s := newTestSource(t0)
	// Too old for the one-shot tolerance.
	require.NoError(t, s.Report(fixAt(37.5, t0.Add(-2*time.Minute))))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := s.CurrentPosition(ctx)
	assert.ErrorIs(t, err, monitor.ErrPositionUnavailable)
}

func TestReported_CurrentPositionWaitsForNextReport(t *testing.T) {
	t.Parallel()

	s := newTestSource(t0)

	done := make(chan domain.Fix, 1)
	go func() {
		fix, err := s.CurrentPosition(context.Background())
		assert.NoError(t, err)
		done <- fix
	}()

	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return len(s.waiters) == 1
	}, time.Second, time.Millisecond)

	require.NoError(t, s.Report(fixAt(37.6, t0)))
	assert.Equal(t, 37.6, (<-done).Lat)
}

func TestReported_FatalFailureFailsPendingOneShot(t *testing.T) {
	t.Parallel()

	s := newTestSource(t0)

	errCh := make(chan error, 1)
	go func() {
		_, err := s.CurrentPosition(context.Background())
		errCh <- err
	}()

	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return len(s.waiters) == 1
	}, time.Second, time.Millisecond)

	s.Fail(errors.New("permission denied"))
	assert.ErrorIs(t, <-errCh, monitor.ErrPositionUnavailable)
}

func TestReported_RejectsInvalidFix(t *testing.T) {
	t.Parallel()

	s := newTestSource(t0)
	err := s.Report(domain.Fix{Coordinate: domain.Coordinate{Lat: 120, Lng: 0}})
	assert.ErrorIs(t, err, ErrInvalidFix)
}

func TestReported_WatchDeliversInTimestampOrder(t *testing.T) {
	t.Parallel()

	s := newTestSource(t0)
	c := &collector{}
	sub, err := s.Watch(c.update, c.fail)
	require.NoError(t, err)
	defer sub.Cancel()

	require.NoError(t, s.Report(fixAt(1, t0.Add(-3*time.Second))))
	require.NoError(t, s.Report(fixAt(2, t0.Add(-1*time.Second))))
	require.NoError(t, s.Report(fixAt(3, t0.Add(-2*time.Second)))) // Older than the previous one.
	require.NoError(t, s.Report(fixAt(4, t0)))

	require.Eventually(t, func() bool { return len(c.Fixes()) == 3 }, time.Second, time.Millisecond)
	fixes := c.Fixes()
	assert.Equal(t, []float64{1, 2, 4}, []float64{fixes[0].Lat, fixes[1].Lat, fixes[2].Lat})
}

func TestReported_WatchDropsStaleFixes(t *testing.T) {
	t.Parallel()

	s := newTestSource(t0)
	c := &collector{}
	sub, err := s.Watch(c.update, c.fail)
	require.NoError(t, err)
	defer sub.Cancel()

	require.NoError(t, s.Report(fixAt(1, t0.Add(-45*time.Second))))
	require.NoError(t, s.Report(fixAt(2, t0)))

	require.Eventually(t, func() bool { return len(c.Fixes()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, 2.0, c.Fixes()[0].Lat)
	assert.Empty(t, c.Errors())
}

func TestReported_TransientErrorKeepsWatchAlive(t *testing.T) {
	t.Parallel()

	s := newTestSource(t0)
	c := &collector{}
	sub, err := s.Watch(c.update, c.fail)
	require.NoError(t, err)
	defer sub.Cancel()

	s.Fail(fmt.Errorf("signal lost: %w", monitor.ErrTransientPosition))
	require.NoError(t, s.Report(fixAt(1, t0)))

	require.Eventually(t, func() bool { return len(c.Fixes()) == 1 }, time.Second, time.Millisecond)
	assert.Len(t, c.Errors(), 1)
	assert.Equal(t, 1, s.ActiveWatches())
}

func TestReported_FatalErrorEndsWatch(t *testing.T) {
	t.Parallel()

	s := newTestSource(t0)
	c := &collector{}
	_, err := s.Watch(c.update, c.fail)
	require.NoError(t, err)

	s.Fail(errors.New("permission denied"))
	require.Eventually(t, func() bool { return len(c.Errors()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, 0, s.ActiveWatches())

	require.NoError(t, s.Report(fixAt(1, t0)))
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, c.Fixes())
}

func TestReported_CancelIsIdempotentAndStopsDelivery(t *testing.T) {
	t.Parallel()

	s := newTestSource(t0)
	c := &collector{}
	sub, err := s.Watch(c.update, c.fail)
	require.NoError(t, err)

	sub.Cancel()
	sub.Cancel()
	assert.Equal(t, 0, s.ActiveWatches())

	require.NoError(t, s.Report(fixAt(1, t0)))
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, c.Fixes())

	// Cancel after the source closed is still safe.
	s.Close()
	sub.Cancel()
}

func TestReported_CloseEndsEverything(t *testing.T) {
	t.Parallel()

	s := newTestSource(t0)
	c := &collector{}
	_, err := s.Watch(c.update, c.fail)
	require.NoError(t, err)

	s.Close()
	assert.Equal(t, 0, s.ActiveWatches())

	_, err = s.CurrentPosition(context.Background())
	assert.ErrorIs(t, err, monitor.ErrPositionUnavailable)

	_, err = s.Watch(c.update, c.fail)
	assert.Error(t, err)
}
