package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"

	aggregatorx "github.com/witthaya/deskflow/agent/aggregator"
	classifierx "github.com/witthaya/deskflow/agent/classifier"
	contractx "github.com/witthaya/deskflow/agent/contract"
	sessionx "github.com/witthaya/deskflow/agent/session"
)

type GraphInput struct {
	SessionID string
	Text      string
}

type GraphOutput struct {
	Complexity contractx.Complexity
	Response   contractx.QueryResponse
}

// graphState is the per-query state threaded through the pipeline nodes.
type graphState struct {
	sessionID string
	query     contractx.Query
	cls       contractx.Classification
	plan      *contractx.ExecutionPlan
	sess      *sessionx.Context
	results   map[string]contractx.StepResult
}

func (o *Orchestrator) compileHandleQueryGraph(
	ctx context.Context,
) (compose.Runnable[GraphInput, GraphOutput], error) {
	graph := compose.NewGraph[GraphInput, GraphOutput]()

	if err := graph.AddLambdaNode("validate_query",
		compose.InvokableLambda(func(ctx context.Context, in GraphInput) (*graphState, error) {
			return o.validateQuery(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_query: %w", err)
	}

	if err := graph.AddLambdaNode("classify",
		compose.InvokableLambda(func(ctx context.Context, st *graphState) (*graphState, error) {
			st.cls = classifierx.Classify(st.query.Text)
			return st, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add node classify: %w", err)
	}

	if err := graph.AddLambdaNode("plan",
		compose.InvokableLambda(func(ctx context.Context, st *graphState) (*graphState, error) {
			st.plan = o.planner.Plan(st.query.Text, st.cls, st.sess)
			return st, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add node plan: %w", err)
	}

	if err := graph.AddLambdaNode("dispatch",
		compose.InvokableLambda(func(ctx context.Context, st *graphState) (*graphState, error) {
			results, err := o.dispatcher.Execute(ctx, st.sessionID, st.plan, st.sess)
			if err != nil {
				return nil, err
			}
			st.results = results
			return st, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add node dispatch: %w", err)
	}

	if err := graph.AddLambdaNode("aggregate",
		compose.InvokableLambda(func(ctx context.Context, st *graphState) (GraphOutput, error) {
			return GraphOutput{
				Complexity: st.plan.Complexity,
				Response:   aggregatorx.Aggregate(st.plan, st.results, st.sess),
			}, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add node aggregate: %w", err)
	}

	edges := [][2]string{
		{compose.START, "validate_query"},
		{"validate_query", "classify"},
		{"classify", "plan"},
		{"plan", "dispatch"},
		{"dispatch", "aggregate"},
		{"aggregate", compose.END},
	}

	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("orchestrator.handle_query"))
	if err != nil {
		return nil, fmt.Errorf("compile orchestrator graph: %w", err)
	}
	return runner, nil
}

func (o *Orchestrator) validateQuery(in GraphInput) (*graphState, error) {
	if strings.TrimSpace(in.Text) == "" {
		return nil, ErrEmptyQuery
	}
	return &graphState{
		sessionID: in.SessionID,
		query: contractx.Query{
			Text:       in.Text,
			ReceivedAt: o.now(),
		},
		sess: newSession(),
	}, nil
}
