package connectivity

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/crewkeeper/internal/logging"
	"github.com/jonboulle/clockwork"
)

// ErrOffline is returned by callers that refuse to start a network call
// while the gate reports Disconnected.
var ErrOffline = errors.New("no network connection")

type State int

const (
	Unknown State = iota
	Connected
	Disconnected
)

func (s State) String() string {
	switch s {
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Snapshot is one observation of the connection.
type Snapshot struct {
	State State
	// ConnectionType is what the checker reported, e.g. "http"; empty when
	// disconnected or not yet checked.
	ConnectionType string
	CheckedAt      time.Time
	// LastChange is when State last differed from the previous snapshot.
	LastChange time.Time
}

// Checker performs one reachability check.
type Checker interface {
	Check(ctx context.Context) (connectionType string, err error)
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context) (string, error)

func (f CheckerFunc) Check(ctx context.Context) (string, error) { return f(ctx) }

// Pinger is satisfied by the backend gateway.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingChecker treats any answer from p as a connection of type "http".
func PingChecker(p Pinger) Checker {
	return CheckerFunc(func(ctx context.Context) (string, error) {
		if err := p.Ping(ctx); err != nil {
			return "", err
		}
		return "http", nil
	})
}

type listener struct {
	id int
	fn func(Snapshot)
}

// Gate publishes connectivity snapshots. The zero value is not usable; call New.
type Gate struct {
	checker      Checker
	clock        clockwork.Clock
	interval     time.Duration
	checkTimeout time.Duration
	logger       logging.Logger

	// deliver serializes update+fan-out so listeners observe transitions in order.
	deliver sync.Mutex

	mu        sync.Mutex
	snap      Snapshot
	emitted   bool
	listeners []listener
	nextID    int
}

type Option func(*Gate)

func WithClock(c clockwork.Clock) Option {
	return func(g *Gate) { g.clock = c }
}

func WithInterval(d time.Duration) Option {
	return func(g *Gate) {
		if d > 0 {
			g.interval = d
		}
	}
}

// WithCheckTimeout bounds a single check.
func WithCheckTimeout(d time.Duration) Option {
	return func(g *Gate) {
		if d > 0 {
			g.checkTimeout = d
		}
	}
}

func WithLogger(l logging.Logger) Option {
	return func(g *Gate) {
		if l != nil {
			g.logger = l
		}
	}
}

func New(p Checker, opts ...Option) *Gate {
	g := &Gate{
		checker:      p,
		clock:        clockwork.NewRealClock(),
		interval:     10 * time.Second,
		checkTimeout: 3 * time.Second,
		logger:       logging.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gate) Current() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snap.State
}

func (g *Gate) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snap
}

// Subscribe registers fn and returns a function that removes it. fn runs on
// the goroutine that produced the change and must not call Refresh, Resume
// or Notify synchronously.
func (g *Gate) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.nextID++
	id := g.nextID
	g.listeners = append(g.listeners, listener{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			defer g.mu.Unlock()
			for i, l := range g.listeners {
				if l.id == id {
					g.listeners = append(g.listeners[:i:i], g.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// Refresh checks once and publishes the result. A check cut short by the
// caller's ctx publishes nothing and returns the current state.
func (g *Gate) Refresh(ctx context.Context) State {
	checkCtx, cancel := context.WithTimeout(ctx, g.checkTimeout)
	defer cancel()

	connType, err := g.checker.Check(checkCtx)
	if err != nil {
		if ctx.Err() != nil {
			return g.Current()
		}
		g.logger.Debug(ctx, "connectivity check failed", "error", err)
		g.Notify(Disconnected, "")
		return Disconnected
	}
	g.Notify(Connected, connType)
	return Connected
}

// Resume forces a fresh check, for use when the process comes back from a
// suspended state and the last snapshot may be stale.
func (g *Gate) Resume(ctx context.Context) State {
	g.logger.Debug(ctx, "connectivity resume, re-probing")
	return g.Refresh(ctx)
}

// Notify publishes a pushed observation. Listeners are called only when the
// state or connection type changes, except for the very first observation,
// which is always emitted.
func (g *Gate) Notify(state State, connectionType string) {
	g.deliver.Lock()
	defer g.deliver.Unlock()

	now := g.clock.Now()

	g.mu.Lock()
	prev := g.snap
	first := !g.emitted
	next := Snapshot{
		State:          state,
		ConnectionType: connectionType,
		CheckedAt:      now,
		LastChange:     prev.LastChange,
	}
	if first || prev.State != state {
		next.LastChange = now
	}
	g.snap = next
	g.emitted = true
	changed := first || prev.State != state || prev.ConnectionType != connectionType
	var ls []listener
	if changed {
		ls = append(ls, g.listeners...)
	}
	g.mu.Unlock()

	if !changed {
		return
	}
	if prev.State != state {
		g.logger.Info(context.Background(), "connectivity changed", "from", prev.State.String(), "to", state.String())
	}
	for _, l := range ls {
		l.fn(next)
	}
}

// Run does the initial fetch and then re-checks every interval until ctx is
// done.
func (g *Gate) Run(ctx context.Context) {
	g.Refresh(ctx)

	ticker := g.clock.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			g.Refresh(ctx)
		}
	}
}
