package planner

import (
	"testing"

	supportx "github.com/witthaya/deskflow/agent/agents/supportagent"
	classifierx "github.com/witthaya/deskflow/agent/classifier"
	contractx "github.com/witthaya/deskflow/agent/contract"
	gatewayx "github.com/witthaya/deskflow/agent/gateway"
	sessionx "github.com/witthaya/deskflow/agent/session"
)

func plan(t *testing.T, query string, opts ...Option) *contractx.ExecutionPlan {
	t.Helper()
	p := New(opts...).Plan(query, classifierx.Classify(query), sessionx.New())
	if len(p.Steps) == 0 {
		t.Fatalf("plan for %q has no steps", query)
	}
	return p
}

func TestSimpleLookupPlan(t *testing.T) {
	t.Parallel()

	p := plan(t, "What is customer 1's information?")
	if p.Complexity != contractx.ComplexitySimple || len(p.Steps) != 1 {
		t.Fatalf("expected one-step simple plan, got %+v", p)
	}
	step := p.Steps[0]
	if step.Capability != contractx.CapCustomerLookup || step.Operation != gatewayx.OpLookupOne {
		t.Fatalf("unexpected step: %+v", step)
	}
	if step.Inputs["id"].Literal != int64(1) {
		t.Fatalf("expected id literal 1, got %v", step.Inputs["id"])
	}
}

func TestSimpleHistoryPlan(t *testing.T) {
	t.Parallel()

	p := plan(t, "Show me ticket history for customer 2")
	if len(p.Steps) != 1 || p.Steps[0].Capability != contractx.CapTicketHistory {
		t.Fatalf("expected single history step, got %+v", p.Steps)
	}
}

func TestSimpleRespondFallback(t *testing.T) {
	t.Parallel()

	p := plan(t, "hello")
	if len(p.Steps) != 1 || p.Steps[0].Capability != contractx.CapSupportResponse {
		t.Fatalf("expected respond fallback, got %+v", p.Steps)
	}
}

func TestSimpleUpdatePlan(t *testing.T) {
	t.Parallel()

	p := plan(t, "For customer 1, set the contact address to alice@new.example.com")
	if len(p.Steps) != 1 {
		t.Fatalf("expected one step, got %d", len(p.Steps))
	}
	step := p.Steps[0]
	if step.Capability != contractx.CapCustomerUpdate || step.Operation != gatewayx.OpUpdateFields {
		t.Fatalf("expected update step, got %+v", step)
	}
	fields := step.Inputs["fields"].Literal.(map[string]any)
	if fields["email"] != "alice@new.example.com" {
		t.Fatalf("expected email field, got %v", fields)
	}
}

func TestCoordinatedPlanWiring(t *testing.T) {
	t.Parallel()

	p := plan(t, "I'm being charged twice for customer 3 and need help with my billing issue")
	if p.Complexity != contractx.ComplexityCoordinated || len(p.Steps) != 2 {
		t.Fatalf("expected two-step coordinated plan, got %+v", p)
	}

	lookup, respond := p.Steps[0], p.Steps[1]
	if lookup.Capability != contractx.CapCustomerLookup {
		t.Fatalf("expected lookup first, got %+v", lookup)
	}
	if respond.Capability != contractx.CapSupportResponse {
		t.Fatalf("expected respond second, got %+v", respond)
	}
	if len(respond.DependsOn) != 1 || respond.DependsOn[0] != lookup.ID {
		t.Fatalf("respond must depend on lookup, got %v", respond.DependsOn)
	}
	ref := respond.Inputs["customer_name"]
	if !ref.IsRef() || ref.FromStep != lookup.ID || ref.Field != "name" {
		t.Fatalf("customer_name must reference the lookup output, got %+v", ref)
	}
}

func TestCoordinatedTicketCreation(t *testing.T) {
	t.Parallel()

	p := plan(t, "Please create a ticket for customer 2: the app is broken")
	if len(p.Steps) != 2 {
		t.Fatalf("expected lookup+create, got %+v", p.Steps)
	}
	create := p.Steps[1]
	if create.Capability != contractx.CapTicketCreate || create.Operation != supportx.OpCreateTicket {
		t.Fatalf("expected create step, got %+v", create)
	}
	if issue, _ := create.Inputs["issue"].Literal.(string); issue == "" {
		t.Fatal("create step must carry a non-empty issue")
	}
}

func TestMultiStepPlanTemplate(t *testing.T) {
	t.Parallel()

	p := plan(t, "Show me all active customers who have open tickets")
	if p.Complexity != contractx.ComplexityMultiStep {
		t.Fatalf("expected multi_step, got %s", p.Complexity)
	}
	if len(p.Steps) != 1 || p.Steps[0].ID != "candidates" {
		t.Fatalf("expected single candidate-set step, got %+v", p.Steps)
	}
	if p.Steps[0].Inputs["status"].Literal != contractx.CustomerActive {
		t.Fatalf("candidate set must filter active customers, got %v", p.Steps[0].Inputs)
	}
	if p.FanOut == nil || p.FanOut.FromStep != "candidates" {
		t.Fatalf("expected fan-out template, got %+v", p.FanOut)
	}
	if p.FanOut.Predicate.Status != contractx.TicketOpen {
		t.Fatalf("expected open-ticket predicate, got %+v", p.FanOut.Predicate)
	}
	if p.FanOut.Limit != DefaultFanOutLimit {
		t.Fatalf("expected default fan-out limit, got %d", p.FanOut.Limit)
	}
}

func TestMultiStepPriorityPredicate(t *testing.T) {
	t.Parallel()

	p := plan(t, "What is the status of all high-priority tickets?")
	if p.FanOut == nil || p.FanOut.Predicate.Priority != "high" {
		t.Fatalf("expected high-priority predicate, got %+v", p.FanOut)
	}
}

func TestFanOutLimitOptionAndTruncation(t *testing.T) {
	t.Parallel()

	p := plan(t, "Show me all active customers who have open tickets", WithFanOutLimit(2))
	if p.FanOut.Limit != 2 {
		t.Fatalf("expected limit 2, got %d", p.FanOut.Limit)
	}

	candidates := []contractx.Customer{
		{ID: 1, Name: "a"}, {ID: 2, Name: "b"}, {ID: 3, Name: "c"},
	}
	steps := p.MaterializeFanOut(candidates)
	if len(steps) != 2 {
		t.Fatalf("expected 2 materialized steps, got %d", len(steps))
	}
	if steps[0].ID != contractx.FanOutStepID(1) || steps[1].ID != contractx.FanOutStepID(2) {
		t.Fatalf("truncation must keep candidate order, got %v, %v", steps[0].ID, steps[1].ID)
	}
	if len(steps[0].DependsOn) != 1 || steps[0].DependsOn[0] != "candidates" {
		t.Fatalf("detail steps must depend on the candidate step, got %v", steps[0].DependsOn)
	}
}

func TestMultiIntentPlanOrderAndConcurrency(t *testing.T) {
	t.Parallel()

	p := plan(t, "I want to upgrade my account and also need help with a billing problem")
	if p.Complexity != contractx.ComplexityMultiIntent {
		t.Fatalf("expected multi_intent, got %s", p.Complexity)
	}
	if len(p.Steps) != 4 {
		t.Fatalf("expected one step per intent, got %d", len(p.Steps))
	}
	// No customer entity, so nothing touches a record and nothing is chained.
	for _, step := range p.Steps {
		if len(step.DependsOn) != 0 {
			t.Fatalf("expected concurrent steps, %s depends on %v", step.ID, step.DependsOn)
		}
	}
	// Intent attribution follows classification order.
	wantIntents := []contractx.Intent{
		contractx.IntentBilling,
		contractx.IntentUpgrade,
		contractx.IntentAccount,
		contractx.IntentSupport,
	}
	for i, step := range p.Steps {
		if step.Intent != wantIntents[i] {
			t.Fatalf("step %d: expected intent %s, got %s", i, wantIntents[i], step.Intent)
		}
	}
}

func TestMultiIntentChainsRecordSteps(t *testing.T) {
	t.Parallel()

	// Lookup (account+id) and ticket history (data-lookup+id) share the
	// record, so the later step must wait for the earlier one.
	p := plan(t, "Check the account profile and the ticket history of customer 2")
	if p.Complexity != contractx.ComplexityMultiIntent {
		t.Fatalf("expected multi_intent, got %s", p.Complexity)
	}
	var recordSteps []contractx.Step
	for _, step := range p.Steps {
		switch step.Capability {
		case contractx.CapCustomerLookup, contractx.CapTicketHistory, contractx.CapCustomerUpdate:
			recordSteps = append(recordSteps, step)
		}
	}
	if len(recordSteps) < 2 {
		t.Fatalf("expected at least two record steps, got %+v", p.Steps)
	}
	second := recordSteps[1]
	if len(second.DependsOn) != 1 || second.DependsOn[0] != recordSteps[0].ID {
		t.Fatalf("record steps must be chained, got %v", second.DependsOn)
	}
}
