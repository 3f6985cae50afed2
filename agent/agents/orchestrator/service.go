// Package orchestrator owns the per-query pipeline: validate, classify,
// plan, dispatch, aggregate. The pipeline is compiled once as an eino graph
// and invoked per query; all per-query state lives in the graph state, so
// one Orchestrator serves concurrent queries.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	contractx "github.com/witthaya/deskflow/agent/contract"
	dispatcherx "github.com/witthaya/deskflow/agent/dispatcher"
	plannerx "github.com/witthaya/deskflow/agent/planner"
	sessionx "github.com/witthaya/deskflow/agent/session"
)

var ErrEmptyQuery = fmt.Errorf("%w: query text is empty", contractx.ErrValidation)

type Orchestrator struct {
	planner    *plannerx.Planner
	dispatcher *dispatcherx.Dispatcher
	sink       contractx.AuditSink

	graphRunner compose.Runnable[GraphInput, GraphOutput]

	now   func() time.Time
	newID func() string
}

type Option func(*Orchestrator)

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func WithIDSource(newID func() string) Option {
	return func(o *Orchestrator) { o.newID = newID }
}

func New(planner *plannerx.Planner, dispatcher *dispatcherx.Dispatcher, sink contractx.AuditSink, opts ...Option) (*Orchestrator, error) {
	if planner == nil {
		return nil, errors.New("planner is required")
	}
	if dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}
	if sink == nil {
		return nil, errors.New("audit sink is required")
	}

	o := &Orchestrator{
		planner:    planner,
		dispatcher: dispatcher,
		sink:       sink,
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}

	graphRunner, err := o.compileHandleQueryGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

// Result is the answer to one query plus the session id under which its
// audit trail was recorded.
type Result struct {
	SessionID string
	Response  contractx.QueryResponse
}

func (o *Orchestrator) HandleQuery(ctx context.Context, text string) (Result, error) {
	sessionID := o.newID()

	out, err := o.graphRunner.Invoke(ctx, GraphInput{
		SessionID: sessionID,
		Text:      text,
	})
	if err != nil {
		return Result{SessionID: sessionID}, err
	}

	log.Info().
		Str("session", sessionID).
		Str("complexity", string(out.Complexity)).
		Int("steps", len(out.Response.Outcomes)).
		Msg("query handled")

	return Result{SessionID: sessionID, Response: out.Response}, nil
}

// Trail returns the full audit trail recorded for one session.
func (o *Orchestrator) Trail(ctx context.Context, sessionID string) ([]contractx.AgentMessage, error) {
	return o.sink.Trail(ctx, sessionID)
}

// newSession exists so the graph nodes share one constructor for per-query
// state.
func newSession() *sessionx.Context { return sessionx.New() }
