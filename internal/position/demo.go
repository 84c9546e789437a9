package position

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"commute/internal/domain"
	"commute/internal/geo"
	"commute/internal/metrics"
	"commute/internal/monitor"
)

// DemoConfig controls simulated travel.
type DemoConfig struct {
	Interval time.Duration
	Steps    int
}

// DefaultDemoConfig emits one fix per second over 30 steps.
func DefaultDemoConfig() DemoConfig {
	return DemoConfig{Interval: time.Second, Steps: 30}
}

// DemoSource replays a simulated trip from origin to destination on a timer.
// It follows the recommendation polyline when one is available and a straight
// line otherwise.
type DemoSource struct {
	path     []domain.Coordinate
	interval time.Duration
	log      *zap.Logger
	now      func() time.Time
}

// NewDemoSource builds the replay path.
func NewDemoSource(origin, dest domain.Coordinate, encodedPolyline string, cfg DemoConfig, log *zap.Logger) *DemoSource {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultDemoConfig().Interval
	}
	if cfg.Steps <= 0 {
		cfg.Steps = DefaultDemoConfig().Steps
	}
	if log == nil {
		log = zap.NewNop()
	}

	route := []domain.Coordinate{origin, dest}
	if encodedPolyline != "" {
		decoded, err := geo.DecodePath(encodedPolyline)
		if err != nil {
			log.Warn("demo route polyline unusable, using straight line", zap.Error(err))
		} else {
			route = append([]domain.Coordinate{origin}, decoded...)
			route = append(route, dest)
		}
	}

	path, err := geo.Resample(route, cfg.Steps)
	if err != nil {
		path = route
	}

	return &DemoSource{
		path:     path,
		interval: cfg.Interval,
		log:      log,
		now:      time.Now,
	}
}

// Path returns the replay samples.
func (s *DemoSource) Path() []domain.Coordinate {
	return append([]domain.Coordinate(nil), s.path...)
}

// CurrentPosition returns the start of the route.
func (s *DemoSource) CurrentPosition(ctx context.Context) (domain.Fix, error) {
	if err := ctx.Err(); err != nil {
		return domain.Fix{}, err
	}
	return domain.Fix{Coordinate: s.path[0], AccuracyMeters: 5, Timestamp: s.now()}, nil
}

// Watch emits the route samples one per interval and then goes quiet.
func (s *DemoSource) Watch(onUpdate func(domain.Fix), onError func(error)) (monitor.Subscription, error) {
	sub := &demoSubscription{done: make(chan struct{})}

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for i := 1; i < len(s.path); i++ {
			select {
			case <-sub.done:
				return
			case <-ticker.C:
			}
			if sub.stopped() {
				return
			}
			metrics.PositionUpdatesTotal.WithLabelValues("demo").Inc()
			onUpdate(domain.Fix{Coordinate: s.path[i], AccuracyMeters: 5, Timestamp: s.now()})
		}
		s.log.Debug("demo route finished")
	}()

	return sub, nil
}

type demoSubscription struct {
	done chan struct{}
	once sync.Once
}

func (d *demoSubscription) Cancel() {
	d.once.Do(func() { close(d.done) })
}

func (d *demoSubscription) stopped() bool {
	select {
	case <-d.done:
		return true
	default:
		return false
	}
}

var _ monitor.PositionSource = (*DemoSource)(nil)
