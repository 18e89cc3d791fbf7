package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonwraymond/respcache/health"
)

// State is a breaker state.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures a Breaker.
type BreakerConfig struct {
	// MaxFailures consecutive failures open the breaker. Default: 5
	MaxFailures int

	// Cooldown is how long the breaker stays open before letting one probe
	// through. Default: 30s
	Cooldown time.Duration

	// OnStateChange is called with the breaker lock held; keep it short.
	OnStateChange func(from, to State)
}

// Breaker is a consecutive-failure circuit breaker.
type Breaker struct {
	config BreakerConfig
	now    func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

// NewBreaker creates a closed breaker.
func NewBreaker(config BreakerConfig) *Breaker {
	if config.MaxFailures <= 0 {
		config.MaxFailures = 5
	}
	if config.Cooldown <= 0 {
		config.Cooldown = 30 * time.Second
	}
	return &Breaker{config: config, now: time.Now}
}

// Execute runs op unless the breaker is open. While half-open only one call
// is admitted; its outcome closes or re-opens the breaker.
func (b *Breaker) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := op(ctx)
	b.record(err)
	return err
}

// State returns the current state, moving open to half-open once the
// cooldown has passed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateLocked()
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.stateLocked() {
	case StateOpen:
		return ErrCircuitOpen
	case StateHalfOpen:
		if b.probing {
			return ErrCircuitOpen
		}
		b.probing = true
	}
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.probing = false
		if err != nil {
			b.transition(StateOpen)
			return
		}
		b.failures = 0
		b.transition(StateClosed)
		return
	}

	if err == nil {
		b.failures = 0
		return
	}
	b.failures++
	if b.failures >= b.config.MaxFailures {
		b.transition(StateOpen)
	}
}

func (b *Breaker) stateLocked() State {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.config.Cooldown {
		b.transition(StateHalfOpen)
	}
	return b.state
}

func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if to == StateOpen {
		b.openedAt = b.now()
	}
	if b.config.OnStateChange != nil {
		b.config.OnStateChange(from, to)
	}
}

// Checker reports the breaker as a health component: open is degraded,
// since callers still get served from whatever they cached.
func (b *Breaker) Checker(name string) health.Checker {
	return health.NewCheckerFunc(name, func(context.Context) health.Result {
		state := b.State()
		details := map[string]any{"state": state.String()}
		if state == StateOpen {
			return health.Degraded(fmt.Sprintf("%s circuit open", name)).WithDetails(details)
		}
		return health.Healthy(fmt.Sprintf("%s circuit %s", name, state)).WithDetails(details)
	})
}

// Guard runs operations through a Breaker wrapping a Retry. Either may be nil.
type Guard struct {
	Breaker *Breaker
	Retry   *Retry
}

// Execute implements Executor.
func (g Guard) Execute(ctx context.Context, op func(context.Context) error) error {
	run := op
	if g.Retry != nil {
		inner := run
		run = func(ctx context.Context) error { return g.Retry.Execute(ctx, inner) }
	}
	if g.Breaker != nil {
		inner := run
		run = func(ctx context.Context) error { return g.Breaker.Execute(ctx, inner) }
	}
	return run(ctx)
}

var (
	_ Executor = (*Retry)(nil)
	_ Executor = (*Breaker)(nil)
	_ Executor = Guard{}
)
