package enhance

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"
)

// Progress estimator defaults.
const (
	DefaultTickInterval = 500 * time.Millisecond
	DefaultMaxStep      = 10.0

	// progressCeiling is the highest value the estimator reaches on its own;
	// 100 is reserved for the real result.
	progressCeiling = 99.0
)

// Estimator animates a progress percentage for a call that reports no
// progress of its own. While running it adds a random step every tick,
// capped at 99. Finish stops the ticking and writes 100.
type Estimator struct {
	interval time.Duration
	maxStep  float64

	mu       sync.Mutex
	rng      *rand.Rand
	state    ProgressState
	onUpdate func(ProgressState)
	stop     chan struct{}
	done     chan struct{}
}

// EstimatorOption customizes an Estimator.
type EstimatorOption func(*Estimator)

// WithTickInterval sets how often the estimate advances.
func WithTickInterval(d time.Duration) EstimatorOption {
	return func(e *Estimator) {
		if d > 0 {
			e.interval = d
		}
	}
}

// WithMaxStep bounds the random increment per tick.
func WithMaxStep(step float64) EstimatorOption {
	return func(e *Estimator) {
		if step > 0 {
			e.maxStep = step
		}
	}
}

// WithRandSource makes the increments reproducible.
func WithRandSource(src rand.Source) EstimatorOption {
	return func(e *Estimator) { e.rng = rand.New(src) }
}

// WithOnUpdate registers a callback invoked with every new state. It runs on
// the ticking goroutine, or on the caller's goroutine for Start and Finish.
func WithOnUpdate(fn func(ProgressState)) EstimatorOption {
	return func(e *Estimator) { e.onUpdate = fn }
}

// NewEstimator creates an idle estimator at 0%.
func NewEstimator(opts ...EstimatorOption) *Estimator {
	e := &Estimator{
		interval: DefaultTickInterval,
		maxStep:  DefaultMaxStep,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return e
}

// Start resets the estimate to 0 and begins ticking until Stop, Finish, or
// ctx is done. Starting a running estimator restarts it.
func (e *Estimator) Start(ctx context.Context, label string) {
	e.Stop()

	stop := make(chan struct{})
	done := make(chan struct{})

	e.mu.Lock()
	e.state = ProgressState{Percent: 0, Label: label}
	e.stop = stop
	e.done = done
	e.mu.Unlock()

	e.emit(ProgressState{Percent: 0, Label: label})

	go e.run(ctx, stop, done)
}

func (e *Estimator) run(ctx context.Context, stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s, changed := e.advance(); changed {
				e.emit(s)
			}
		}
	}
}

func (e *Estimator) advance() (ProgressState, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state.Percent >= progressCeiling {
		return e.state, false
	}
	next := math.Min(e.state.Percent+e.rng.Float64()*e.maxStep, progressCeiling)
	if next == e.state.Percent {
		return e.state, false
	}
	e.state.Percent = next
	return e.state, true
}

// Stop halts ticking and waits for the ticking goroutine to exit. The
// current percentage is left as is.
func (e *Estimator) Stop() {
	e.mu.Lock()
	stop, done := e.stop, e.done
	e.stop, e.done = nil, nil
	e.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// Finish stops ticking, then sets the estimate to exactly 100.
func (e *Estimator) Finish(label string) {
	e.Stop()

	e.mu.Lock()
	e.state = ProgressState{Percent: 100, Label: label}
	s := e.state
	e.mu.Unlock()

	e.emit(s)
}

// Reset stops ticking and returns the estimate to 0.
func (e *Estimator) Reset() {
	e.Stop()

	e.mu.Lock()
	e.state = ProgressState{}
	e.mu.Unlock()
}

// State returns the current estimate.
func (e *Estimator) State() ProgressState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Running reports whether the estimator is ticking.
func (e *Estimator) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stop != nil
}

func (e *Estimator) emit(s ProgressState) {
	if e.onUpdate != nil {
		e.onUpdate(s)
	}
}
