package position

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"commute/internal/domain"
	"commute/internal/monitor"
)

// ErrInvalidFix is returned when a reported fix has out-of-range coordinates.
var ErrInvalidFix = errors.New("invalid fix coordinates")

// ReportedConfig controls cache tolerance for client-reported positions.
type ReportedConfig struct {
	// OneShotMaxAge is how old the cached fix may be for CurrentPosition.
	OneShotMaxAge time.Duration
	// WatchMaxAge drops fixes older than this on the watch. Zero disables it.
	WatchMaxAge time.Duration
	// Buffer is the per-watch queue length.
	Buffer int
}

// DefaultReportedConfig returns 60s one-shot and 30s watch tolerances.
func DefaultReportedConfig() ReportedConfig {
	return ReportedConfig{
		OneShotMaxAge: 60 * time.Second,
		WatchMaxAge:   30 * time.Second,
		Buffer:        32,
	}
}

type event struct {
	fix domain.Fix
	err error
}

type oneShot struct {
	fix domain.Fix
	err error
}

// ReportedSource is a monitor.PositionSource fed by positions the client
// pushes over the API.
type ReportedSource struct {
	cfg ReportedConfig
	log *zap.Logger
	now func() time.Time

	mu       sync.Mutex
	latest   *domain.Fix
	waiters  map[uint64]chan oneShot
	watchers map[uint64]*watcher
	nextID   uint64
	closed   bool
}

// NewReportedSource creates a ReportedSource.
func NewReportedSource(cfg ReportedConfig, log *zap.Logger) *ReportedSource {
	if cfg.Buffer <= 0 {
		cfg.Buffer = DefaultReportedConfig().Buffer
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ReportedSource{
		cfg:      cfg,
		log:      log,
		now:      time.Now,
		waiters:  make(map[uint64]chan oneShot),
		watchers: make(map[uint64]*watcher),
	}
}

// Report records a client fix and forwards it to every active watch.
func (s *ReportedSource) Report(fix domain.Fix) error {
	if !fix.Valid() {
		return ErrInvalidFix
	}
	if fix.Timestamp.IsZero() {
		fix.Timestamp = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}

	if s.latest == nil || !fix.Timestamp.Before(s.latest.Timestamp) {
		latest := fix
		s.latest = &latest
	}
	for id, ch := range s.waiters {
		ch <- oneShot{fix: fix}
		delete(s.waiters, id)
	}
	for _, w := range s.watchers {
		w.push(event{fix: fix}, s.log)
	}
	return nil
}

// Fail reports a platform error. Errors wrapping monitor.ErrTransientPosition
// are passed to watches without ending them. Any other error ends every
// active watch and fails pending one-shot requests.
func (s *ReportedSource) Fail(err error) {
	if err == nil {
		return
	}
	transient := errors.Is(err, monitor.ErrTransientPosition)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	if !transient {
		for id, ch := range s.waiters {
			ch <- oneShot{err: fmt.Errorf("%w: %v", monitor.ErrPositionUnavailable, err)}
			delete(s.waiters, id)
		}
	}
	for id, w := range s.watchers {
		w.push(event{err: err}, s.log)
		if !transient {
			delete(s.watchers, id)
		}
	}
}

// CurrentPosition returns the latest fix if it is fresh enough, otherwise
// waits for the next report until ctx is done.
func (s *ReportedSource) CurrentPosition(ctx context.Context) (domain.Fix, error) {
	s.mu.Lock()
	if s.latest != nil && s.now().Sub(s.latest.Timestamp) <= s.cfg.OneShotMaxAge {
		fix := *s.latest
		s.mu.Unlock()
		return fix, nil
	}
	if s.closed {
		s.mu.Unlock()
		return domain.Fix{}, fmt.Errorf("%w: source closed", monitor.ErrPositionUnavailable)
	}
	s.nextID++
	id := s.nextID
	ch := make(chan oneShot, 1)
	s.waiters[id] = ch
	s.mu.Unlock()

	select {
	case res := <-ch:
		return res.fix, res.err
	case <-ctx.Done():
		s.mu.Lock()
		delete(s.waiters, id)
		s.mu.Unlock()
		// A report may have raced the deadline.
		select {
		case res := <-ch:
			return res.fix, res.err
		default:
		}
		return domain.Fix{}, fmt.Errorf("%w: %v", monitor.ErrPositionUnavailable, ctx.Err())
	}
}

// Watch starts delivering reported fixes in timestamp order.
func (s *ReportedSource) Watch(onUpdate func(domain.Fix), onError func(error)) (monitor.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errors.New("position source closed")
	}

	s.nextID++
	w := &watcher{
		id:       s.nextID,
		src:      s,
		events:   make(chan event, s.cfg.Buffer),
		done:     make(chan struct{}),
		onUpdate: onUpdate,
		onError:  onError,
		maxAge:   s.cfg.WatchMaxAge,
		now:      s.now,
		log:      s.log,
	}
	s.watchers[w.id] = w
	go w.run()
	return w, nil
}

// Close ends every watch and pending one-shot request.
func (s *ReportedSource) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	watchers := make([]*watcher, 0, len(s.watchers))
	for id, w := range s.watchers {
		watchers = append(watchers, w)
		delete(s.watchers, id)
	}
	for id, ch := range s.waiters {
		ch <- oneShot{err: fmt.Errorf("%w: source closed", monitor.ErrPositionUnavailable)}
		delete(s.waiters, id)
	}
	s.mu.Unlock()

	for _, w := range watchers {
		w.stop()
	}
}

// ActiveWatches returns the number of live watches.
func (s *ReportedSource) ActiveWatches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watchers)
}

func (s *ReportedSource) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.watchers, id)
}

type watcher struct {
	id       uint64
	src      *ReportedSource
	events   chan event
	done     chan struct{}
	once     sync.Once
	onUpdate func(domain.Fix)
	onError  func(error)
	maxAge   time.Duration
	now      func() time.Time
	log      *zap.Logger

	last time.Time
}

// push enqueues without blocking. A full queue drops the event.
func (w *watcher) push(ev event, log *zap.Logger) {
	select {
	case w.events <- ev:
	default:
		log.Warn("position watch queue full, dropping event", zap.Uint64("watch_id", w.id))
	}
}

func (w *watcher) run() {
	for {
		select {
		case <-w.done:
			return
		case ev := <-w.events:
			if w.stopped() {
				return
			}
			if ev.err != nil {
				w.onError(ev.err)
				if !errors.Is(ev.err, monitor.ErrTransientPosition) {
					w.stop()
					return
				}
				continue
			}
			if w.maxAge > 0 && w.now().Sub(ev.fix.Timestamp) > w.maxAge {
				w.log.Debug("dropping stale fix", zap.Time("timestamp", ev.fix.Timestamp))
				continue
			}
			if ev.fix.Timestamp.Before(w.last) {
				continue
			}
			w.last = ev.fix.Timestamp
			w.onUpdate(ev.fix)
		}
	}
}

func (w *watcher) stopped() bool {
	select {
	case <-w.done:
		return true
	default:
		return false
	}
}

func (w *watcher) stop() {
	w.once.Do(func() { close(w.done) })
}

// Cancel stops delivery. Safe to call repeatedly and after the watch ended.
func (w *watcher) Cancel() {
	w.stop()
	w.src.remove(w.id)
}

var _ monitor.PositionSource = (*ReportedSource)(nil)
