package embed

import (
	"sync"
	"time"

	"github.com/dkeye/Meet/internal/core"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
)

type Readiness string

const (
	Loading Readiness = "loading"
	Ready   Readiness = "ready"
	// AssumedReady: nothing heard within the timeout; the surface stays mounted.
	AssumedReady Readiness = "assumed_ready"
)

const DefaultReadyTimeout = 60 * time.Second

type Tracker struct {
	clock   core.Clock
	timeout time.Duration

	mu       sync.Mutex
	state    Readiness
	gen      int
	stop     chan struct{}
	onChange func(Readiness)

	wg conc.WaitGroup
}

func NewTracker(clock core.Clock, timeout time.Duration, onChange func(Readiness)) *Tracker {
	if clock == nil {
		clock = core.SystemClock{}
	}
	if timeout <= 0 {
		timeout = DefaultReadyTimeout
	}
	if onChange == nil {
		onChange = func(Readiness) {}
	}
	return &Tracker{clock: clock, timeout: timeout, onChange: onChange}
}

// Start enters Loading and arms the timeout. Calling it again is a retry.
func (t *Tracker) Start() {
	t.mu.Lock()
	if t.stop != nil {
		close(t.stop)
	}
	t.gen++
	gen := t.gen
	stop := make(chan struct{})
	t.stop = stop
	t.state = Loading
	t.mu.Unlock()

	t.onChange(Loading)
	after := t.clock.After(t.timeout)
	t.wg.Go(func() {
		select {
		case <-stop:
		case <-after:
			t.settle(gen, AssumedReady)
		}
	})
}

// Observe records a message from the surface.
func (t *Tracker) Observe(Signal) {
	t.mu.Lock()
	gen := t.gen
	t.mu.Unlock()
	t.settle(gen, Ready)
}

func (t *Tracker) settle(gen int, to Readiness) {
	t.mu.Lock()
	if gen != t.gen || t.state == Ready || t.state == to || t.state == "" {
		t.mu.Unlock()
		return
	}
	t.state = to
	if to == Ready && t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
	t.mu.Unlock()

	log.Info().Str("module", "embed").Str("readiness", string(to)).Msg("surface readiness")
	t.onChange(to)
}

func (t *Tracker) State() Readiness {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Stop disarms the timeout and waits for the timer goroutine.
func (t *Tracker) Stop() {
	t.mu.Lock()
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
	t.gen++
	t.mu.Unlock()
	t.wg.Wait()
}
