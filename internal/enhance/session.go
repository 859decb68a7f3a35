package enhance

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Processor is the part of Orchestrator a Session drives.
type Processor interface {
	Process(ctx context.Context, req FeatureRequest) ProcessResult
}

// Snapshot is a point-in-time view of a session.
type Snapshot struct {
	ID       string         `json:"id"`
	Feature  FeatureKind    `json:"feature,omitempty"`
	Busy     bool           `json:"busy"`
	Progress ProgressState  `json:"progress"`
	Result   *ProcessResult `json:"result,omitempty"`
}

// Session runs at most one request at a time and owns the progress estimate
// shown for it. A result that arrives after Reset or after a newer Submit is
// discarded.
type Session struct {
	id        string
	processor Processor
	estimator *Estimator

	// transition serializes Submit, Reset and resolution so estimator
	// updates from a stale call never land on a newer one. OnUpdate
	// callbacks run while it is held and must not call Submit or Reset.
	transition sync.Mutex

	mu         sync.Mutex
	generation uint64
	busy       bool
	feature    FeatureKind
	result     *ProcessResult
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewSession creates an idle session. The estimator options are passed to the
// session's own Estimator.
func NewSession(p Processor, opts ...EstimatorOption) *Session {
	return &Session{
		id:        uuid.New().String(),
		processor: p,
		estimator: NewEstimator(opts...),
	}
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

// Submit starts processing req in the background. It returns ErrBusy while
// an earlier call is still outstanding. The returned generation identifies
// this submission.
func (s *Session) Submit(ctx context.Context, req FeatureRequest) (uint64, error) {
	s.transition.Lock()
	defer s.transition.Unlock()

	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return 0, ErrBusy
	}
	s.generation++
	gen := s.generation
	callCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	s.busy = true
	s.feature = req.Kind
	s.result = nil
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	s.estimator.Start(callCtx, "Processing "+req.displayName())

	log.Debug().
		Str("session", s.id).
		Uint64("generation", gen).
		Str("feature", req.Kind.String()).
		Msg("Submitted request")

	go func() {
		defer close(done)
		defer cancel()

		result := s.processor.Process(callCtx, req)
		s.resolve(gen, result)
	}()

	return gen, nil
}

func (s *Session) resolve(gen uint64, result ProcessResult) {
	s.transition.Lock()
	defer s.transition.Unlock()

	s.mu.Lock()
	stale := gen != s.generation
	s.mu.Unlock()
	if stale {
		log.Debug().Str("session", s.id).Uint64("generation", gen).Msg("Dropping stale result")
		return
	}

	label := "Complete"
	if !result.OK() {
		label = "Failed"
	}
	s.estimator.Finish(label)

	s.mu.Lock()
	s.result = &result
	s.busy = false
	s.cancel = nil
	s.mu.Unlock()
}

// Wait blocks until the current submission resolves or ctx is done. It
// returns the stored result, or nil when nothing was submitted or the
// submission was discarded by Reset.
func (s *Session) Wait(ctx context.Context) (*ProcessResult, error) {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, nil
}

// Reset abandons any in-flight call and returns the session to idle.
func (s *Session) Reset() {
	s.transition.Lock()
	defer s.transition.Unlock()

	s.mu.Lock()
	s.generation++
	cancel := s.cancel
	s.cancel = nil
	s.busy = false
	s.feature = ""
	s.result = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.estimator.Reset()
}

// Snapshot returns the session's current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	snap := Snapshot{
		ID:      s.id,
		Feature: s.feature,
		Busy:    s.busy,
	}
	if s.result != nil {
		r := *s.result
		snap.Result = &r
	}
	s.mu.Unlock()

	snap.Progress = s.estimator.State()
	return snap
}
