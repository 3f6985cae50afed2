// Package dispatcher executes an ExecutionPlan against the worker registry.
// It runs independent steps concurrently under a bounded semaphore, honors
// dependency edges, isolates failures to the dependent subgraph, and records
// every request/response exchange on the audit trail.
package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	contractx "github.com/witthaya/deskflow/agent/contract"
	sessionx "github.com/witthaya/deskflow/agent/session"
)

const (
	// DefaultConcurrency bounds how many steps run at once.
	DefaultConcurrency = 4

	senderName = "dispatcher"
)

type Dispatcher struct {
	registry    contractx.Registry
	sink        contractx.AuditSink
	concurrency int
	now         func() time.Time
	newID       func() string
}

type Option func(*Dispatcher)

func WithConcurrency(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

// WithClock and WithIDSource exist for tests.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

func WithIDSource(newID func() string) Option {
	return func(d *Dispatcher) { d.newID = newID }
}

func New(registry contractx.Registry, sink contractx.AuditSink, opts ...Option) (*Dispatcher, error) {
	if registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if sink == nil {
		return nil, fmt.Errorf("audit sink is required")
	}
	d := &Dispatcher{
		registry:    registry,
		sink:        sink,
		concurrency: DefaultConcurrency,
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Execute runs the plan to quiescence. The result set is keyed by step id
// and holds exactly one StepResult per dispatched step, fan-out expansions
// included, whatever each step's outcome. The map carries no order; dispatch
// order is plan.Steps order (detail steps follow their candidate order) and
// the audit trail records the order exchanges actually happened in. An
// unknown capability anywhere in the plan is fatal: nothing is dispatched
// and the error is returned.
func (d *Dispatcher) Execute(ctx context.Context, sessionID string, plan *contractx.ExecutionPlan, sess *sessionx.Context) (map[string]contractx.StepResult, error) {
	if err := d.preflight(plan); err != nil {
		return nil, err
	}

	run := &planRun{
		d:         d,
		sessionID: sessionID,
		plan:      plan,
		sess:      sess,
		results:   make(map[string]contractx.StepResult, len(plan.Steps)),
		pending:   append([]contractx.Step(nil), plan.Steps...),
	}
	run.execute(ctx)
	return run.results, nil
}

// preflight resolves every capability the plan can reach before anything is
// dispatched, so a planner/registry mismatch fails the whole query instead
// of a random subset of steps.
func (d *Dispatcher) preflight(plan *contractx.ExecutionPlan) error {
	for _, step := range plan.Steps {
		if _, err := d.registry.Resolve(step.Capability); err != nil {
			return err
		}
	}
	if plan.FanOut != nil {
		if _, err := d.registry.Resolve(plan.FanOut.Capability); err != nil {
			return err
		}
	}
	return nil
}

// planRun is the mutable state of one Execute call. Steps are dispatched in
// waves: each wave runs every currently-ready step concurrently, then the
// completed wave unlocks dependents (and, possibly, the fan-out expansion).
type planRun struct {
	d         *Dispatcher
	sessionID string
	plan      *contractx.ExecutionPlan
	sess      *sessionx.Context

	mu      sync.Mutex
	results map[string]contractx.StepResult
	pending []contractx.Step
}

func (r *planRun) execute(ctx context.Context) {
	for len(r.pending) > 0 {
		if ctx.Err() != nil {
			r.cancelPending()
			return
		}

		ready, blocked := r.partition()
		if len(ready) == 0 {
			// Remaining steps all have a non-successful dependency.
			r.skipAll(blocked)
			return
		}
		r.pending = blocked
		r.runWave(ctx, ready)
	}
}

// partition splits pending steps into those whose dependencies have all
// succeeded and the rest. Steps with a terminally failed dependency are
// skipped immediately rather than left to starve.
func (r *planRun) partition() (ready, blocked []contractx.Step) {
	for _, step := range r.pending {
		switch r.depState(step) {
		case depsReady:
			ready = append(ready, step)
		case depsDead:
			r.skip(step)
		default:
			blocked = append(blocked, step)
		}
	}
	return ready, blocked
}

type depState int

const (
	depsReady depState = iota
	depsWaiting
	depsDead
)

func (r *planRun) depState(step contractx.Step) depState {
	for _, dep := range step.DependsOn {
		res, done := r.results[dep]
		if !done {
			return depsWaiting
		}
		if res.Outcome != contractx.StepSuccess {
			return depsDead
		}
	}
	return depsReady
}

// runWave executes one batch of ready steps under the concurrency bound.
// Started steps run to completion even if the context expires mid-wave; a
// step still queued behind the semaphore when the deadline elapses is
// cancelled without ever reaching a worker or the audit trail.
func (r *planRun) runWave(ctx context.Context, wave []contractx.Step) {
	workCtx := context.WithoutCancel(ctx)
	sem := make(chan struct{}, r.d.concurrency)
	var wg sync.WaitGroup

	for _, step := range wave {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			r.cancel(step)
			continue
		}
		// The semaphore send can win a race against an already-expired
		// context; re-check before committing the step.
		if ctx.Err() != nil {
			<-sem
			r.cancel(step)
			continue
		}
		wg.Add(1)
		go func(step contractx.Step) {
			defer wg.Done()
			defer func() { <-sem }()
			res := r.runStep(workCtx, step)
			r.record(step, res)
		}(step)
	}
	wg.Wait()
}

func (r *planRun) cancel(step contractx.Step) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[step.ID] = contractx.StepResult{
		StepID:  step.ID,
		Outcome: contractx.StepCancelled,
	}
}

// record stores the result and, when the fan-out source just succeeded,
// materializes the per-candidate detail steps into the pending set.
func (r *planRun) record(step contractx.Step, res contractx.StepResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.results[step.ID] = res
	if res.Outcome != contractx.StepSuccess {
		return
	}

	r.sess.SetStepOutput(step.ID, res.Payload)
	if c, ok := res.Payload.(*contractx.Customer); ok {
		r.sess.SetOnce("customer_name", c.Name)
		r.sess.SetOnce("customer_status", c.Status)
	}

	if fo := r.plan.FanOut; fo != nil && fo.FromStep == step.ID {
		candidates, ok := res.Payload.([]contractx.Customer)
		if !ok {
			log.Warn().Str("step", step.ID).Msg("fan-out source payload is not a customer set")
			return
		}
		r.pending = append(r.pending, r.plan.MaterializeFanOut(candidates)...)
	}
}

// runStep resolves inputs, invokes the worker, and audits both halves of the
// exchange. A conflict outcome is retried exactly once with a fresh
// correlation id so the retry reads a fresh record version.
func (r *planRun) runStep(ctx context.Context, step contractx.Step) contractx.StepResult {
	worker, err := r.d.registry.Resolve(step.Capability)
	if err != nil {
		// preflight makes this unreachable for a sealed registry
		return failureResult(step, contractx.ErrorKindOf(err), err.Error())
	}

	params, err := r.resolveInputs(step)
	if err != nil {
		return failureResult(step, contractx.KindValidation, err.Error())
	}

	resp := r.exchange(ctx, worker, step, params)
	if resp.Outcome == contractx.OutcomeFailure && resp.ErrorKind == contractx.KindConflict {
		log.Debug().Str("step", step.ID).Msg("conflict, retrying once")
		resp = r.exchange(ctx, worker, step, params)
	}

	if resp.Outcome == contractx.OutcomeFailure {
		return contractx.StepResult{
			StepID:       step.ID,
			Outcome:      contractx.StepFailure,
			ErrorKind:    resp.ErrorKind,
			ErrorMessage: resp.ErrorMessage,
		}
	}
	return contractx.StepResult{
		StepID:  step.ID,
		Outcome: contractx.StepSuccess,
		Payload: resp.Payload,
	}
}

// exchange performs one audited request/response round with a worker. The
// response is appended to the trail before the result is returned, so a
// reader of the trail never observes a delivered result whose response
// record is missing.
func (r *planRun) exchange(ctx context.Context, worker contractx.Worker, step contractx.Step, params map[string]any) contractx.Response {
	req := contractx.Request{
		Sender:        senderName,
		Receiver:      worker.Name(),
		Operation:     step.Operation,
		Parameters:    params,
		CorrelationID: r.d.newID(),
	}
	r.audit(ctx, contractx.AgentMessage{
		Kind:          contractx.MessageRequest,
		Sender:        req.Sender,
		Receiver:      req.Receiver,
		Operation:     req.Operation,
		Parameters:    req.Parameters,
		CorrelationID: req.CorrelationID,
		Timestamp:     r.d.now(),
	})

	resp := worker.Handle(ctx, req)
	resp.CorrelationID = req.CorrelationID

	r.audit(ctx, contractx.AgentMessage{
		Kind:          contractx.MessageResponse,
		Sender:        req.Receiver,
		Receiver:      req.Sender,
		Operation:     req.Operation,
		CorrelationID: req.CorrelationID,
		Timestamp:     r.d.now(),
		Outcome:       resp.Outcome,
		Payload:       resp.Payload,
		ErrorKind:     resp.ErrorKind,
		ErrorMessage:  resp.ErrorMessage,
	})
	return resp
}

func (r *planRun) audit(ctx context.Context, msg contractx.AgentMessage) {
	if err := r.d.sink.Append(ctx, r.sessionID, msg); err != nil {
		log.Error().Err(err).Str("session", r.sessionID).Msg("audit append failed")
	}
}

// resolveInputs turns the step's input template into concrete parameters.
// References read the producing step's recorded output; the dependency edge
// guarantees that output exists by the time this step is ready.
func (r *planRun) resolveInputs(step contractx.Step) (map[string]any, error) {
	if len(step.Inputs) == 0 {
		return map[string]any{}, nil
	}
	params := make(map[string]any, len(step.Inputs))
	for name, in := range step.Inputs {
		if !in.IsRef() {
			params[name] = in.Literal
			continue
		}
		payload, ok := r.sess.StepOutput(in.FromStep)
		if !ok {
			return nil, fmt.Errorf("input %q references step %q which produced no output", name, in.FromStep)
		}
		v, ok := fieldOf(payload, in.Field)
		if !ok {
			return nil, fmt.Errorf("input %q references unknown field %q of step %q", name, in.Field, in.FromStep)
		}
		params[name] = v
	}
	return params, nil
}

// fieldOf extracts a named field from a step payload. Customer records and
// generic maps are the only payloads steps reference today.
func fieldOf(payload any, field string) (any, bool) {
	switch p := payload.(type) {
	case *contractx.Customer:
		switch field {
		case "id":
			return p.ID, true
		case "name":
			return p.Name, true
		case "email":
			return p.Email, true
		case "phone":
			return p.Phone, true
		case "status":
			return p.Status, true
		}
	case map[string]any:
		v, ok := p[field]
		return v, ok
	}
	return nil, false
}

func (r *planRun) skip(step contractx.Step) {
	cause := ""
	for _, dep := range step.DependsOn {
		if res, ok := r.results[dep]; ok && res.Outcome != contractx.StepSuccess {
			cause = fmt.Sprintf("dependency %s %s", dep, res.Outcome)
			break
		}
	}
	r.results[step.ID] = contractx.StepResult{
		StepID:    step.ID,
		Outcome:   contractx.StepSkipped,
		SkipCause: cause,
	}
}

func (r *planRun) skipAll(steps []contractx.Step) {
	// Skipping may unlock further dead dependents, so drain to a fixpoint.
	remaining := steps
	for {
		var still []contractx.Step
		progressed := false
		for _, step := range remaining {
			if r.depState(step) == depsDead {
				r.skip(step)
				progressed = true
			} else {
				still = append(still, step)
			}
		}
		remaining = still
		if !progressed || len(remaining) == 0 {
			break
		}
	}
	for _, step := range remaining {
		// No dependency chain can ever complete these; treat as skipped
		// with the first unresolved dependency as cause.
		r.results[step.ID] = contractx.StepResult{
			StepID:    step.ID,
			Outcome:   contractx.StepSkipped,
			SkipCause: "unresolvable dependencies",
		}
	}
}

func (r *planRun) cancelPending() {
	for _, step := range r.pending {
		r.cancel(step)
	}
	r.pending = nil
}

func failureResult(step contractx.Step, kind, msg string) contractx.StepResult {
	return contractx.StepResult{
		StepID:       step.ID,
		Outcome:      contractx.StepFailure,
		ErrorKind:    kind,
		ErrorMessage: msg,
	}
}
