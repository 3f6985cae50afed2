// Package aggregator assembles the per-step results of an executed plan into
// one QueryResponse. Each complexity class has its own assembly policy; all
// of them account for every planned step in the Outcomes map.
package aggregator

import (
	"fmt"
	"strings"

	contractx "github.com/witthaya/deskflow/agent/contract"
	sessionx "github.com/witthaya/deskflow/agent/session"
)

// Aggregate builds the final answer for one executed plan. results must hold
// one entry per dispatched step id (fan-out expansions included).
func Aggregate(plan *contractx.ExecutionPlan, results map[string]contractx.StepResult, sess *sessionx.Context) contractx.QueryResponse {
	resp := contractx.QueryResponse{
		Outcomes: make(map[string]contractx.StepOutcome, len(results)),
	}
	for id, res := range results {
		resp.Outcomes[id] = res.Outcome
	}

	switch plan.Complexity {
	case contractx.ComplexityMultiStep:
		aggregateMultiStep(plan, results, sess, &resp)
	case contractx.ComplexityMultiIntent:
		resp.Text = aggregateMultiIntent(plan, results)
	default:
		resp.Text = aggregateLinear(plan, results)
	}
	return resp
}

// aggregateLinear serves simple and coordinated plans: render the terminal
// step's payload, or its failure if it did not succeed.
func aggregateLinear(plan *contractx.ExecutionPlan, results map[string]contractx.StepResult) string {
	last := plan.Steps[len(plan.Steps)-1]
	res := results[last.ID]
	if res.Outcome != contractx.StepSuccess {
		return renderFailure(last.ID, res)
	}
	return renderPayload(res.Payload)
}

// aggregateMultiStep renders one line per evaluated candidate with the count
// of its tickets matching the plan's predicate. Candidates whose detail step
// did not succeed are excluded from the report and from EvaluatedCount;
// candidates with zero matching tickets are reported with count 0.
func aggregateMultiStep(plan *contractx.ExecutionPlan, results map[string]contractx.StepResult, sess *sessionx.Context, resp *contractx.QueryResponse) {
	src := results[plan.FanOut.FromStep]
	if src.Outcome != contractx.StepSuccess {
		resp.Text = renderFailure(plan.FanOut.FromStep, src)
		return
	}

	payload, _ := sess.StepOutput(plan.FanOut.FromStep)
	candidates, _ := payload.([]contractx.Customer)

	var b strings.Builder
	b.WriteString(describeFilter(plan.FanOut.Predicate))
	// Re-materializing the fan-out yields the same detail steps the dispatcher
	// ran: same truncation under Limit, and the candidate's name on the label.
	for _, step := range plan.MaterializeFanOut(candidates) {
		res, ok := results[step.ID]
		if !ok || res.Outcome != contractx.StepSuccess {
			continue
		}
		tickets, _ := res.Payload.([]contractx.Ticket)
		n := 0
		for _, t := range tickets {
			if plan.FanOut.Predicate.Matches(t) {
				n++
			}
		}
		id, _ := step.Inputs["id"].Literal.(int64)
		fmt.Fprintf(&b, "- %s (customer %d): %d %s\n", step.Labels["customer_name"], id, n, pluralTickets(n))
		resp.EvaluatedCount++
	}
	if resp.EvaluatedCount == 0 {
		b.WriteString("No customers could be evaluated.\n")
	}
	resp.Text = strings.TrimRight(b.String(), "\n")
}

// aggregateMultiIntent concatenates per-step renderings in plan order, each
// attributed to its intent, so partial failure stays visible next to the
// results that did land.
func aggregateMultiIntent(plan *contractx.ExecutionPlan, results map[string]contractx.StepResult) string {
	var parts []string
	for _, step := range plan.Steps {
		res := results[step.ID]
		var body string
		switch res.Outcome {
		case contractx.StepSuccess:
			body = renderPayload(res.Payload)
		default:
			body = renderFailure(step.ID, res)
		}
		parts = append(parts, fmt.Sprintf("[%s] %s", step.Intent, body))
	}
	return strings.Join(parts, "\n\n")
}

func describeFilter(f contractx.TicketFilter) string {
	switch {
	case f.Status != "" && f.Priority != "":
		return fmt.Sprintf("Customers with %s %s-priority tickets:\n", f.Status, f.Priority)
	case f.Status != "":
		return fmt.Sprintf("Customers with %s tickets:\n", f.Status)
	case f.Priority != "":
		return fmt.Sprintf("Customers with %s-priority tickets:\n", f.Priority)
	default:
		return "Ticket counts per customer:\n"
	}
}

func renderFailure(stepID string, res contractx.StepResult) string {
	switch res.Outcome {
	case contractx.StepSkipped:
		return fmt.Sprintf("Step %s was skipped (%s).", stepID, res.SkipCause)
	case contractx.StepCancelled:
		return fmt.Sprintf("Step %s was cancelled before it could run.", stepID)
	default:
		return fmt.Sprintf("Sorry, that request could not be completed: %s.", res.ErrorMessage)
	}
}

func renderPayload(payload any) string {
	switch p := payload.(type) {
	case *contractx.Customer:
		return renderCustomer(p)
	case []contractx.Customer:
		return renderCustomerList(p)
	case []contractx.Ticket:
		return renderTickets(p)
	case *contractx.Ticket:
		return fmt.Sprintf("Created ticket #%d (%s priority): %s", p.ID, p.Priority, p.Issue)
	case contractx.SupportReply:
		return renderSupportReply(p)
	case string:
		return p
	default:
		return fmt.Sprintf("%v", p)
	}
}

func renderCustomer(c *contractx.Customer) string {
	return fmt.Sprintf(
		"Customer Information:\nName: %s\nEmail: %s\nPhone: %s\nStatus: %s",
		c.Name, c.Email, c.Phone, c.Status,
	)
}

func renderCustomerList(customers []contractx.Customer) string {
	if len(customers) == 0 {
		return "No customers matched."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d %s:\n", len(customers), pluralCustomers(len(customers)))
	for _, c := range customers {
		fmt.Fprintf(&b, "- %s (customer %d, %s)\n", c.Name, c.ID, c.Status)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderTickets(tickets []contractx.Ticket) string {
	if len(tickets) == 0 {
		return "No tickets on file."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Ticket History for Customer %d:\n", tickets[0].CustomerID)
	for _, t := range tickets {
		fmt.Fprintf(&b, "- #%d [%s/%s] %s\n", t.ID, t.Status, t.Priority, t.Issue)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderSupportReply(r contractx.SupportReply) string {
	var b strings.Builder
	if r.CustomerName != "" {
		fmt.Fprintf(&b, "Hello %s! ", r.CustomerName)
	}
	b.WriteString(r.Solution)
	fmt.Fprintf(&b, " (priority: %s", r.Priority)
	if r.NeedsEscalation {
		b.WriteString(", escalated")
	}
	b.WriteString(")")
	return b.String()
}

func pluralTickets(n int) string {
	if n == 1 {
		return "matching ticket"
	}
	return "matching tickets"
}

func pluralCustomers(n int) string {
	if n == 1 {
		return "customer"
	}
	return "customers"
}
