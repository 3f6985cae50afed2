package supportagent

import (
	"context"
	"strings"
	"testing"

	contractx "github.com/witthaya/deskflow/agent/contract"
	gatewayx "github.com/witthaya/deskflow/agent/gateway"
)

type gatewayCall struct {
	op     string
	params map[string]any
}

type fakeGateway struct {
	payload any
	err     error
	calls   []gatewayCall
}

func (f *fakeGateway) Call(ctx context.Context, op string, params map[string]any) (any, error) {
	f.calls = append(f.calls, gatewayCall{op: op, params: params})
	if f.err != nil {
		return nil, f.err
	}
	return f.payload, nil
}

func respond(t *testing.T, params map[string]any) contractx.SupportReply {
	t.Helper()
	a, err := New(&fakeGateway{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	resp := a.Handle(context.Background(), contractx.Request{
		Operation:  OpRespond,
		Parameters: params,
	})
	if resp.Outcome != contractx.OutcomeSuccess {
		t.Fatalf("respond failed: %+v", resp)
	}
	reply, ok := resp.Payload.(contractx.SupportReply)
	if !ok {
		t.Fatalf("unexpected payload type %T", resp.Payload)
	}
	return reply
}

func TestRespondSolutionPerIntent(t *testing.T) {
	t.Parallel()

	cases := []struct {
		query string
		want  string
	}{
		{"question about my last invoice billing", "billing issues"},
		{"I want to upgrade to premium", "upgrade your account"},
		{"reset my password please", "assist you with your account"},
		{"something is broken, I need support", "investigate this issue"},
	}
	for _, tc := range cases {
		reply := respond(t, map[string]any{"query": tc.query})
		if !contains(reply.Solution, tc.want) {
			t.Fatalf("query %q: solution %q does not mention %q", tc.query, reply.Solution, tc.want)
		}
	}
}

func TestRespondFallback(t *testing.T) {
	t.Parallel()

	reply := respond(t, map[string]any{"query": "hello there"})
	if !contains(reply.Solution, "more details") {
		t.Fatalf("expected fallback solution, got %q", reply.Solution)
	}
	if reply.NeedsEscalation {
		t.Fatal("general low-priority query must not escalate")
	}
}

func TestRespondEscalation(t *testing.T) {
	t.Parallel()

	// High urgency alone escalates.
	reply := respond(t, map[string]any{"query": "urgent: my payment is broken"})
	if reply.Priority != contractx.PriorityHigh || !reply.NeedsEscalation {
		t.Fatalf("expected high-priority escalation, got %+v", reply)
	}

	// Multiple intents escalate even at low urgency.
	reply = respond(t, map[string]any{"query": "question about billing and my account profile"})
	if len(reply.Intents) < 2 || !reply.NeedsEscalation {
		t.Fatalf("expected multi-intent escalation, got %+v", reply)
	}
}

func TestRespondUsesSuppliedPriorityAndCustomer(t *testing.T) {
	t.Parallel()

	reply := respond(t, map[string]any{
		"query":           "billing question",
		"priority":        string(contractx.PriorityHigh),
		"customer_name":   "Carol White",
		"customer_status": contractx.CustomerActive,
	})
	if reply.Priority != contractx.PriorityHigh {
		t.Fatalf("supplied priority must win, got %s", reply.Priority)
	}
	if reply.CustomerName != "Carol White" || reply.CustomerStatus != contractx.CustomerActive {
		t.Fatalf("customer context lost: %+v", reply)
	}
}

func TestRespondPinnedIntent(t *testing.T) {
	t.Parallel()

	// The query mentions billing first, but a pinned intent overrides the
	// solution selection.
	reply := respond(t, map[string]any{
		"query":  "billing problem, also want to upgrade",
		"intent": string(contractx.IntentUpgrade),
	})
	if !contains(reply.Solution, "upgrade your account") {
		t.Fatalf("pinned intent must pick the solution, got %q", reply.Solution)
	}
}

func TestRespondRequiresQuery(t *testing.T) {
	t.Parallel()

	a, _ := New(&fakeGateway{})
	resp := a.Handle(context.Background(), contractx.Request{
		Operation:  OpRespond,
		Parameters: map[string]any{"query": "   "},
	})
	if resp.Outcome != contractx.OutcomeFailure || resp.ErrorKind != contractx.KindValidation {
		t.Fatalf("expected validation failure, got %+v", resp)
	}
}

func TestCreateTicketInfersPriority(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{payload: &contractx.Ticket{ID: 7}}
	a, _ := New(gw)

	resp := a.Handle(context.Background(), contractx.Request{
		Operation: OpCreateTicket,
		Parameters: map[string]any{
			"id":    int64(2),
			"issue": "I am locked out and it is urgent",
		},
	})
	if resp.Outcome != contractx.OutcomeSuccess {
		t.Fatalf("create-ticket failed: %+v", resp)
	}
	if len(gw.calls) != 1 || gw.calls[0].op != gatewayx.OpCreateRecord {
		t.Fatalf("unexpected gateway calls: %+v", gw.calls)
	}
	if got := gw.calls[0].params["priority"]; got != string(contractx.PriorityHigh) {
		t.Fatalf("expected inferred high priority, got %v", got)
	}
}

func TestCreateTicketExplicitPriorityWins(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{payload: &contractx.Ticket{ID: 8}}
	a, _ := New(gw)

	resp := a.Handle(context.Background(), contractx.Request{
		Operation: OpCreateTicket,
		Parameters: map[string]any{
			"id":       int64(2),
			"issue":    "this is urgent",
			"priority": string(contractx.PriorityLow),
		},
	})
	if resp.Outcome != contractx.OutcomeSuccess {
		t.Fatalf("create-ticket failed: %+v", resp)
	}
	if got := gw.calls[0].params["priority"]; got != string(contractx.PriorityLow) {
		t.Fatalf("explicit priority must win, got %v", got)
	}
}

func contains(s, sub string) bool {
	return strings.Contains(s, sub)
}
