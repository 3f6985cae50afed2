package aggregator

import (
	"strings"
	"testing"

	contractx "github.com/witthaya/deskflow/agent/contract"
	sessionx "github.com/witthaya/deskflow/agent/session"
)

func TestAggregateSimpleCustomer(t *testing.T) {
	t.Parallel()

	plan := &contractx.ExecutionPlan{
		Complexity: contractx.ComplexitySimple,
		Steps:      []contractx.Step{{ID: "lookup"}},
	}
	results := map[string]contractx.StepResult{
		"lookup": {
			StepID:  "lookup",
			Outcome: contractx.StepSuccess,
			Payload: &contractx.Customer{
				Name: "Alice Johnson", Email: "alice@example.com",
				Phone: "555-0101", Status: contractx.CustomerActive,
			},
		},
	}

	resp := Aggregate(plan, results, sessionx.New())
	for _, want := range []string{"Customer Information:", "Name: Alice Johnson", "Status: active"} {
		if !strings.Contains(resp.Text, want) {
			t.Fatalf("missing %q in:\n%s", want, resp.Text)
		}
	}
	if resp.Outcomes["lookup"] != contractx.StepSuccess {
		t.Fatalf("outcomes must mirror results, got %+v", resp.Outcomes)
	}
}

func TestAggregateSimpleFailure(t *testing.T) {
	t.Parallel()

	plan := &contractx.ExecutionPlan{
		Complexity: contractx.ComplexitySimple,
		Steps:      []contractx.Step{{ID: "lookup"}},
	}
	results := map[string]contractx.StepResult{
		"lookup": {
			StepID:       "lookup",
			Outcome:      contractx.StepFailure,
			ErrorKind:    contractx.KindNotFound,
			ErrorMessage: "customer 42 not found",
		},
	}

	resp := Aggregate(plan, results, sessionx.New())
	if !strings.Contains(resp.Text, "customer 42 not found") {
		t.Fatalf("failure message lost: %s", resp.Text)
	}
}

func TestAggregateCoordinatedReply(t *testing.T) {
	t.Parallel()

	plan := &contractx.ExecutionPlan{
		Complexity: contractx.ComplexityCoordinated,
		Steps:      []contractx.Step{{ID: "lookup"}, {ID: "respond", DependsOn: []string{"lookup"}}},
	}
	results := map[string]contractx.StepResult{
		"lookup": {StepID: "lookup", Outcome: contractx.StepSuccess, Payload: &contractx.Customer{Name: "Carol White"}},
		"respond": {
			StepID:  "respond",
			Outcome: contractx.StepSuccess,
			Payload: contractx.SupportReply{
				Solution:        "I can help you with billing issues.",
				Priority:        contractx.PriorityHigh,
				NeedsEscalation: true,
				CustomerName:    "Carol White",
			},
		},
	}

	resp := Aggregate(plan, results, sessionx.New())
	if !strings.Contains(resp.Text, "Hello Carol White!") {
		t.Fatalf("expected personalized greeting, got %s", resp.Text)
	}
	if !strings.Contains(resp.Text, "escalated") {
		t.Fatalf("escalation must be visible, got %s", resp.Text)
	}
}

func multiStepFixture(detailOutcomes map[int64]contractx.StepResult) (*contractx.ExecutionPlan, map[string]contractx.StepResult, *sessionx.Context) {
	plan := &contractx.ExecutionPlan{
		Complexity: contractx.ComplexityMultiStep,
		Steps:      []contractx.Step{{ID: "candidates"}},
		FanOut: &contractx.FanOut{
			FromStep:  "candidates",
			Limit:     10,
			Predicate: contractx.TicketFilter{Status: contractx.TicketOpen},
		},
	}
	candidates := []contractx.Customer{
		{ID: 1, Name: "Alice Johnson"},
		{ID: 2, Name: "Bob Smith"},
		{ID: 3, Name: "Carol White"},
	}
	results := map[string]contractx.StepResult{
		"candidates": {StepID: "candidates", Outcome: contractx.StepSuccess, Payload: candidates},
	}
	sess := sessionx.New()
	sess.SetStepOutput("candidates", candidates)
	for id, res := range detailOutcomes {
		results[contractx.FanOutStepID(id)] = res
	}
	return plan, results, sess
}

func TestAggregateMultiStepCounts(t *testing.T) {
	t.Parallel()

	plan, results, sess := multiStepFixture(map[int64]contractx.StepResult{
		1: {Outcome: contractx.StepSuccess, Payload: []contractx.Ticket{
			{ID: 1, CustomerID: 1, Status: contractx.TicketOpen},
			{ID: 2, CustomerID: 1, Status: contractx.TicketResolved},
		}},
		2: {Outcome: contractx.StepSuccess, Payload: []contractx.Ticket{}},
		3: {Outcome: contractx.StepSuccess, Payload: []contractx.Ticket{
			{ID: 4, CustomerID: 3, Status: contractx.TicketOpen},
			{ID: 5, CustomerID: 3, Status: contractx.TicketOpen},
		}},
	})

	resp := Aggregate(plan, results, sess)
	if resp.EvaluatedCount != 3 {
		t.Fatalf("expected 3 evaluated candidates, got %d", resp.EvaluatedCount)
	}
	for _, want := range []string{
		"Alice Johnson (customer 1): 1 matching ticket",
		"Bob Smith (customer 2): 0 matching tickets",
		"Carol White (customer 3): 2 matching tickets",
	} {
		if !strings.Contains(resp.Text, want) {
			t.Fatalf("missing %q in:\n%s", want, resp.Text)
		}
	}
}

// Candidates beyond the fan-out limit are never part of the report, even if a
// result under their detail id is present.
func TestAggregateMultiStepHonorsLimit(t *testing.T) {
	t.Parallel()

	open := []contractx.Ticket{{ID: 1, CustomerID: 1, Status: contractx.TicketOpen}}
	plan, results, sess := multiStepFixture(map[int64]contractx.StepResult{
		1: {Outcome: contractx.StepSuccess, Payload: open},
		2: {Outcome: contractx.StepSuccess, Payload: []contractx.Ticket{}},
		3: {Outcome: contractx.StepSuccess, Payload: open},
	})
	plan.FanOut.Limit = 2

	resp := Aggregate(plan, results, sess)
	if resp.EvaluatedCount != 2 {
		t.Fatalf("expected 2 evaluated candidates under the limit, got %d", resp.EvaluatedCount)
	}
	if !strings.Contains(resp.Text, "Alice Johnson") || !strings.Contains(resp.Text, "Bob Smith") {
		t.Fatalf("candidates under the limit must be reported:\n%s", resp.Text)
	}
	if strings.Contains(resp.Text, "Carol White") {
		t.Fatalf("candidate beyond the limit must not be reported:\n%s", resp.Text)
	}
}

func TestAggregateMultiStepExcludesFailedCandidates(t *testing.T) {
	t.Parallel()

	plan, results, sess := multiStepFixture(map[int64]contractx.StepResult{
		1: {Outcome: contractx.StepSuccess, Payload: []contractx.Ticket{
			{ID: 1, CustomerID: 1, Status: contractx.TicketOpen},
		}},
		2: {Outcome: contractx.StepFailure, ErrorKind: contractx.KindCommunication},
		3: {Outcome: contractx.StepSkipped, SkipCause: "dependency candidates failure"},
	})

	resp := Aggregate(plan, results, sess)
	if resp.EvaluatedCount != 1 {
		t.Fatalf("failed and skipped candidates must not count, got %d", resp.EvaluatedCount)
	}
	if strings.Contains(resp.Text, "Bob Smith") || strings.Contains(resp.Text, "Carol White") {
		t.Fatalf("unevaluated candidates must not be reported:\n%s", resp.Text)
	}
	// The failure stays visible through the outcomes map.
	if resp.Outcomes[contractx.FanOutStepID(2)] != contractx.StepFailure {
		t.Fatalf("outcomes must keep the failure, got %+v", resp.Outcomes)
	}
}

func TestAggregateMultiStepSourceFailure(t *testing.T) {
	t.Parallel()

	plan := &contractx.ExecutionPlan{
		Complexity: contractx.ComplexityMultiStep,
		Steps:      []contractx.Step{{ID: "candidates"}},
		FanOut:     &contractx.FanOut{FromStep: "candidates"},
	}
	results := map[string]contractx.StepResult{
		"candidates": {
			StepID:       "candidates",
			Outcome:      contractx.StepFailure,
			ErrorKind:    contractx.KindCommunication,
			ErrorMessage: "store unavailable",
		},
	}

	resp := Aggregate(plan, results, sessionx.New())
	if !strings.Contains(resp.Text, "store unavailable") {
		t.Fatalf("source failure must surface, got %s", resp.Text)
	}
	if resp.EvaluatedCount != 0 {
		t.Fatalf("expected 0 evaluated, got %d", resp.EvaluatedCount)
	}
}

func TestAggregateMultiIntentConcatenation(t *testing.T) {
	t.Parallel()

	plan := &contractx.ExecutionPlan{
		Complexity: contractx.ComplexityMultiIntent,
		Steps: []contractx.Step{
			{ID: "respond-1", Intent: contractx.IntentBilling},
			{ID: "respond-2", Intent: contractx.IntentUpgrade},
		},
	}
	results := map[string]contractx.StepResult{
		"respond-1": {
			Outcome: contractx.StepSuccess,
			Payload: contractx.SupportReply{Solution: "Billing looked into.", Priority: contractx.PriorityLow},
		},
		"respond-2": {
			Outcome:      contractx.StepFailure,
			ErrorKind:    contractx.KindCommunication,
			ErrorMessage: "worker timed out",
		},
	}

	resp := Aggregate(plan, results, sessionx.New())
	billingIdx := strings.Index(resp.Text, "[billing]")
	upgradeIdx := strings.Index(resp.Text, "[upgrade]")
	if billingIdx < 0 || upgradeIdx < 0 || billingIdx > upgradeIdx {
		t.Fatalf("parts must appear in plan order with intent attribution:\n%s", resp.Text)
	}
	if !strings.Contains(resp.Text, "worker timed out") {
		t.Fatalf("partial failure must stay visible:\n%s", resp.Text)
	}
}
