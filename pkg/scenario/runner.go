package scenario

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/expr-lang/expr/vm"

	"github.com/getmockd/wsmock/pkg/config"
	"github.com/getmockd/wsmock/pkg/connstate"
	"github.com/getmockd/wsmock/pkg/harness"
	"github.com/getmockd/wsmock/pkg/heartbeat"
	"github.com/getmockd/wsmock/pkg/logging"
	"github.com/getmockd/wsmock/pkg/socket"
)

// DefaultStepTimeout bounds connect, settle and reconnect steps without a timeout.
const DefaultStepTimeout = 5 * time.Second

// ErrAssertionFailed is reported by an assert step whose expression is false.
var ErrAssertionFailed = errors.New("assertion failed")

// Option configures Run.
type Option func(*runner)

// WithConfig sets the base configuration the scenario overrides.
func WithConfig(cfg *config.Config) Option {
	return func(r *runner) {
		r.cfg = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *runner) {
		r.logger = logger
	}
}

// WithStepTimeout sets the timeout for steps that wait and name none.
func WithStepTimeout(d time.Duration) Option {
	return func(r *runner) {
		r.stepTimeout = d
	}
}

// WithRegistry shares a heartbeat registry with the run.
func WithRegistry(reg *heartbeat.Registry) Option {
	return func(r *runner) {
		r.registry = reg
	}
}

// Result is the outcome of a run.
type Result struct {
	Name     string                 `json:"name"`
	Path     string                 `json:"path,omitempty"`
	Passed   bool                   `json:"passed"`
	Steps    []StepResult           `json:"steps"`
	Duration time.Duration          `json:"duration"`
	States   []connstate.Transition `json:"states"`
	History  []harness.HistoryEntry `json:"history"`
}

// Failed returns the first failed step, if any.
func (r *Result) Failed() (StepResult, bool) {
	for _, s := range r.Steps {
		if !s.Passed {
			return s, true
		}
	}
	return StepResult{}, false
}

// StepResult is the outcome of one step.
type StepResult struct {
	Index    int           `json:"index"`
	Action   string        `json:"action"`
	Name     string        `json:"name"`
	Passed   bool          `json:"passed"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

type runner struct {
	cfg         *config.Config
	logger      *slog.Logger
	stepTimeout time.Duration
	registry    *heartbeat.Registry

	m          *harness.Manager
	heartbeats []*heartbeat.Manager
	assertions map[int]*vm.Program
}

// Run replays sc against a fresh harness. Step failures stop the run and are
// reported in the result; the error is only for scenarios that cannot run.
func Run(ctx context.Context, sc *Scenario, opts ...Option) (*Result, error) {
	r := &runner{cfg: config.Default(), stepTimeout: DefaultStepTimeout}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.Component(r.logger, "scenario").With("scenario", sc.Name)

	r.assertions = make(map[int]*vm.Program)
	for i, step := range sc.Steps {
		if step.Action != ActionAssert {
			continue
		}
		program, err := compileAssertion(step.Expect)
		if err != nil {
			return nil, fmt.Errorf("%w: steps.%d: %w", ErrInvalidScenario, i, err)
		}
		r.assertions[i] = program
	}

	cfg := sc.Apply(r.cfg)
	hopts := []harness.Option{
		harness.FromConfig(cfg),
		harness.WithLogger(r.logger),
		harness.WithConnectTimeout(r.stepTimeout),
	}
	if r.registry != nil {
		hopts = append(hopts, harness.WithRegistry(r.registry))
	}
	r.m = harness.New(hopts...)
	defer r.m.Cleanup()

	start := time.Now()
	res := &Result{Name: sc.Name, Path: sc.Path, Passed: true}
	for i, step := range sc.Steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		stepStart := time.Now()
		err := r.runStep(ctx, i, step)
		if step.ExpectError {
			if err == nil {
				err = fmt.Errorf("expected %s to fail", step.Action)
			} else {
				r.logger.Debug("step failed as expected", "step", i, "error", err)
				err = nil
			}
		}

		sr := StepResult{
			Index:    i,
			Action:   step.Action,
			Name:     step.Label(),
			Passed:   err == nil,
			Duration: time.Since(stepStart),
		}
		if err != nil {
			sr.Error = err.Error()
			res.Passed = false
		}
		res.Steps = append(res.Steps, sr)
		r.logger.Debug("step finished", "step", i, "action", step.Action, "passed", sr.Passed)
		if err != nil {
			break
		}
	}

	settleCtx, cancel := context.WithTimeout(ctx, r.stepTimeout)
	_ = r.m.Settle(settleCtx)
	cancel()

	res.Duration = time.Since(start)
	res.States = r.m.StateHistory()
	res.History = r.m.ConnectionHistory()
	r.logger.Info("scenario finished", "passed", res.Passed, "duration", res.Duration)
	return res, nil
}

func (r *runner) timeout(d config.Duration) time.Duration {
	if d > 0 {
		return d.Duration()
	}
	return r.stepTimeout
}

func (r *runner) runStep(ctx context.Context, i int, step Step) error {
	m := r.m
	switch step.Action {
	case ActionConnect:
		if err := m.Setup(); err != nil {
			return err
		}
		return r.awaitConnect(ctx, r.timeout(step.Timeout))

	case ActionSend:
		return m.SendMessage(step.Data)

	case ActionReceive:
		return m.SimulateIncomingMessage(step.Data)

	case ActionError:
		var err error
		if step.Error != "" {
			err = errors.New(step.Error)
		}
		return m.SimulateError(err)

	case ActionClose:
		return m.Close(socket.CloseCode(step.Code), step.Reason)

	case ActionReconnect:
		if step.MaxAttempts > 0 {
			_, err := m.ReconnectWithBackoff(ctx, step.MaxAttempts)
			return err
		}
		if err := m.SimulateReconnect(); err != nil {
			return err
		}
		if step.Timeout > 0 {
			return m.WaitForConnection(ctx, step.Timeout.Duration())
		}
		return nil

	case ActionWait:
		select {
		case <-time.After(step.Duration.Duration()):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}

	case ActionSettle:
		settleCtx, cancel := context.WithTimeout(ctx, r.timeout(step.Timeout))
		defer cancel()
		return m.Settle(settleCtx)

	case ActionHeartbeat:
		cfg := m.HeartbeatConfig()
		cfg.Enabled = true
		if step.Interval > 0 {
			cfg.Interval = step.Interval.Duration()
		}
		key := step.Key
		if key == "" {
			key = fmt.Sprintf("step-%d", i)
		}
		hb, err := m.StartHeartbeat(key, cfg)
		if err != nil {
			return err
		}
		r.heartbeats = append(r.heartbeats, hb)
		return nil

	case ActionAssert:
		return r.assert(ctx, i, step)

	default:
		return fmt.Errorf("unknown action %q", step.Action)
	}
}

// awaitConnect waits for the connected state and fails early when the
// connection attempt ends in error or disconnected.
func (r *runner) awaitConnect(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	for {
		switch st := r.m.ConnectionState(); st {
		case connstate.Connected:
			return nil
		case connstate.Disconnected, connstate.Error:
			return fmt.Errorf("%w: state %s", socket.ErrConnectFailed, st)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w after %s", harness.ErrConnectionTimeout, timeout)
		case <-time.After(time.Millisecond):
		}
	}
}

func (r *runner) beats() int {
	n := 0
	for _, hb := range r.heartbeats {
		n += int(hb.Stats().TotalBeats)
	}
	return n
}

// assert settles pending events and evaluates the step expression. With a
// timeout the expression is retried until it holds or the timeout elapses.
func (r *runner) assert(ctx context.Context, i int, step Step) error {
	program := r.assertions[i]
	deadline := time.Now().Add(step.Timeout.Duration())

	for {
		settleCtx, cancel := context.WithTimeout(ctx, r.stepTimeout)
		err := r.m.Settle(settleCtx)
		cancel()
		if err != nil {
			return err
		}

		ok, err := evalAssertion(program, snapshot(r.m, r.beats()))
		if err != nil {
			return fmt.Errorf("eval %q: %w", step.Expect, err)
		}
		if ok {
			return nil
		}
		if !time.Now().Before(deadline) {
			if step.Message != "" {
				return fmt.Errorf("%w: %s", ErrAssertionFailed, step.Message)
			}
			return fmt.Errorf("%w: %s", ErrAssertionFailed, step.Expect)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}
}
