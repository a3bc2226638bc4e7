// Package workflow drives the backend's long-running streaming workflows
// through the analyze → confirm → execute lifecycle. A Runner owns one
// workflow instance: it consumes the event stream, folds frames into the
// workflow's accumulator via its reducer, and never lets an error escape;
// all outcomes land in the runner's state.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sercano/qahub/api"
	"github.com/sercano/qahub/models"
	"github.com/sercano/qahub/stream"
	"github.com/sercano/qahub/utils"
)

// Phase is the lifecycle position of a workflow instance.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseAnalyzing Phase = "analyzing"
	PhaseReady     Phase = "ready"
	PhaseExecuting Phase = "executing"
	PhaseDone      Phase = "done"
	PhaseFailed    Phase = "failed"
)

// Distinguished failure reasons.
const (
	ReasonTimeout      = "timeout"
	ReasonPrematureEnd = "stream ended prematurely"
)

// DefaultTimeout is the wall clock governing each in-flight request.
const DefaultTimeout = 120 * time.Second

// Reducer folds event frames into a workflow-specific accumulator. The
// runner handles log lines, error frames and phase bookkeeping before a
// frame reaches the reducer. Reducer methods are only invoked while the
// runner holds its state lock, so implementations need no locking of
// their own.
type Reducer interface {
	// Apply folds one frame and reports whether it completes the phase.
	Apply(phase Phase, frame models.EventFrame) (done bool, err error)
	// ExecuteBody returns the request body for the execute phase,
	// carrying any server continuation token from the analyze result.
	ExecuteBody() (interface{}, error)
	// Snapshot returns a copy of the accumulator safe to hand to views.
	Snapshot() interface{}
	// Reset discards the accumulator.
	Reset()
}

// Definition describes one workflow: its endpoints and its reducer.
type Definition struct {
	Name        string
	AnalyzePath string
	ExecutePath string
	// SinglePhase workflows jump straight from analyzing to done.
	SinglePhase bool
	Reducer     Reducer
	// Finalize, when set, runs after the analyze stream completes and
	// before the phase advances. Product-Tree uses it to fetch the
	// cached payload on cacheReady.
	Finalize func(ctx context.Context) error
}

// Streamer issues streaming POSTs. *api.Client satisfies this.
type Streamer interface {
	Stream(ctx context.Context, path string, body interface{}) (io.ReadCloser, error)
}

// State is a point-in-time copy of a runner's observable state
type State struct {
	Phase   Phase
	Log     []string
	Partial interface{}
	Stats   map[string]interface{}
	Err     string
}

// Runner orchestrates one workflow instance
type Runner struct {
	def     Definition
	client  Streamer
	bus     *Bus
	timeout time.Duration
	logger  *utils.LoggerWithContext

	mu     sync.Mutex
	gen    int // bumped by Cancel/Reset; stale generations discard their frames
	phase  Phase
	log    []string
	stats  map[string]interface{}
	errMsg string
	cancel context.CancelFunc
}

// Option configures a Runner.
type Option func(*Runner)

// WithTimeout overrides the per-request wall clock
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) { r.timeout = d }
}

// NewRunner creates an idle runner for the given workflow definition
func NewRunner(client Streamer, def Definition, bus *Bus, opts ...Option) *Runner {
	if bus == nil {
		bus = NewBus()
	}
	r := &Runner{
		def:     def,
		client:  client,
		bus:     bus,
		timeout: DefaultTimeout,
		phase:   PhaseIdle,
		logger:  utils.GetLogger().WithSource("workflow:" + def.Name),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Bus returns the runner's update bus for live subscribers
func (r *Runner) Bus() *Bus {
	return r.bus
}

// State returns a copy of the current workflow state
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()

	logCopy := make([]string, len(r.log))
	copy(logCopy, r.log)

	var statsCopy map[string]interface{}
	if r.stats != nil {
		statsCopy = make(map[string]interface{}, len(r.stats))
		for k, v := range r.stats {
			statsCopy[k] = v
		}
	}

	return State{
		Phase:   r.phase,
		Log:     logCopy,
		Partial: r.def.Reducer.Snapshot(),
		Stats:   statsCopy,
		Err:     r.errMsg,
	}
}

// Start runs the analyze phase to completion. It blocks until the phase
// settles (ready, done, failed, or idle after a cancel); run it from its
// own goroutine when a live view is attached. The returned error reports
// precondition violations only; runtime failures surface in State.
func (r *Runner) Start(ctx context.Context, body interface{}) error {
	r.mu.Lock()
	if r.phase != PhaseIdle {
		r.mu.Unlock()
		return fmt.Errorf("workflow %s: start is only valid from idle, not %s", r.def.Name, r.phase)
	}
	gen := r.gen
	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	r.cancel = cancel
	r.setPhaseLocked(PhaseAnalyzing, "")
	r.mu.Unlock()

	defer cancel()
	r.consume(runCtx, gen, r.def.AnalyzePath, body, PhaseAnalyzing)
	return nil
}

// Execute runs the execute phase. Valid only from ready.
func (r *Runner) Execute(ctx context.Context) error {
	r.mu.Lock()
	if r.phase != PhaseReady {
		r.mu.Unlock()
		return fmt.Errorf("workflow %s: execute is only valid from ready, not %s", r.def.Name, r.phase)
	}
	if r.def.ExecutePath == "" {
		r.mu.Unlock()
		return fmt.Errorf("workflow %s has no execute phase", r.def.Name)
	}
	body, err := r.def.Reducer.ExecuteBody()
	if err != nil {
		r.mu.Unlock()
		return fmt.Errorf("workflow %s: building execute request: %w", r.def.Name, err)
	}
	gen := r.gen
	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	r.cancel = cancel
	r.setPhaseLocked(PhaseExecuting, "")
	r.mu.Unlock()

	defer cancel()
	r.consume(runCtx, gen, r.def.ExecutePath, body, PhaseExecuting)
	return nil
}

// Cancel aborts the in-flight request and returns the runner to idle,
// discarding applied log lines and partial results. After Cancel returns,
// no further reducer call occurs for the canceled run.
func (r *Runner) Cancel() {
	r.mu.Lock()
	if r.phase != PhaseAnalyzing && r.phase != PhaseExecuting {
		r.mu.Unlock()
		return
	}
	r.resetLocked()
	r.mu.Unlock()
}

// Reset returns the runner to idle from any phase and clears all state
func (r *Runner) Reset() {
	r.mu.Lock()
	r.resetLocked()
	r.mu.Unlock()
}

// resetLocked invalidates the current generation and clears state
func (r *Runner) resetLocked() {
	r.gen++
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.log = nil
	r.stats = nil
	r.errMsg = ""
	r.def.Reducer.Reset()
	r.setPhaseLocked(PhaseIdle, "")
}

// consume reads one event stream and applies it frame by frame
func (r *Runner) consume(ctx context.Context, gen int, path string, body interface{}, phase Phase) {
	rc, err := r.client.Stream(ctx, path, body)
	if err != nil {
		r.fail(ctx, gen, api.UserMessage(err))
		return
	}
	defer rc.Close()

	decoder := stream.NewDecoder(rc)
	for {
		frame, err := decoder.Next()
		if errors.Is(err, io.EOF) {
			// The server closed the stream without a terminal frame.
			r.fail(ctx, gen, ReasonPrematureEnd)
			return
		}
		if err != nil {
			r.fail(ctx, gen, api.UserMessage(err))
			return
		}

		outcome := r.apply(ctx, gen, phase, frame)
		if outcome != applyContinue {
			return
		}
	}
}

type applyOutcome int

const (
	applyContinue applyOutcome = iota
	applyStop
)

// apply folds one frame into runner state under the state lock. A stale
// generation (canceled or reset mid-flight) drops the frame.
func (r *Runner) apply(ctx context.Context, gen int, phase Phase, frame models.EventFrame) applyOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.gen != gen {
		return applyStop
	}

	if frame.Malformed {
		r.logger.Warn("Skipping malformed event frame", map[string]interface{}{
			"raw": frame.Raw,
		})
		return applyContinue
	}

	if frame.HasLog() {
		r.log = append(r.log, frame.Log)
		r.bus.publish(Update{Kind: UpdateLog, Line: frame.Log, Phase: r.phase})
	}

	// A bare error frame is fatal. An error paired with an explicit
	// success field is a per-item verdict (JiraGen create emits one per
	// test) and belongs to the reducer.
	if frame.IsError() && frame.Success == nil {
		r.failLocked(frame.Error)
		return applyStop
	}

	if stats := frame.StatsMap(); stats != nil {
		if r.stats == nil {
			r.stats = make(map[string]interface{})
		}
		for k, v := range stats {
			r.stats[k] = v
		}
	}

	done, err := r.def.Reducer.Apply(phase, frame)
	if err != nil {
		r.failLocked(err.Error())
		return applyStop
	}
	if !done {
		return applyContinue
	}

	if r.def.Finalize != nil && phase == PhaseAnalyzing {
		if err := r.def.Finalize(ctx); err != nil {
			r.failLocked(api.UserMessage(err))
			return applyStop
		}
	}

	switch {
	case phase == PhaseAnalyzing && r.def.SinglePhase:
		r.setPhaseLocked(PhaseDone, "")
	case phase == PhaseAnalyzing:
		r.setPhaseLocked(PhaseReady, "")
	default:
		r.setPhaseLocked(PhaseDone, "")
	}
	return applyStop
}

// fail transitions to failed unless the run was canceled; a deadline
// expiry is reported with the distinguished timeout reason.
func (r *Runner) fail(ctx context.Context, gen int, reason string) {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		reason = ReasonTimeout
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gen != gen {
		// Canceled or reset; state was already rolled back to idle.
		return
	}
	r.failLocked(reason)
}

// failLocked records a failure and publishes the transition
func (r *Runner) failLocked(reason string) {
	r.errMsg = reason
	r.setPhaseLocked(PhaseFailed, reason)
}

// setPhaseLocked updates the phase and notifies subscribers
func (r *Runner) setPhaseLocked(phase Phase, message string) {
	r.phase = phase
	r.bus.publish(Update{Kind: UpdatePhase, Phase: phase, Message: message})
}
