// Package planner turns a Classification into an ExecutionPlan. Planning is
// pure: it inspects the classification and session only, performs no I/O, and
// always yields at least one step.
package planner

import (
	"strconv"

	supportx "github.com/witthaya/deskflow/agent/agents/supportagent"
	contractx "github.com/witthaya/deskflow/agent/contract"
	gatewayx "github.com/witthaya/deskflow/agent/gateway"
	sessionx "github.com/witthaya/deskflow/agent/session"
)

// DefaultFanOutLimit bounds how many candidates a multi-step traversal will
// expand into detail steps.
const DefaultFanOutLimit = 10

type Planner struct {
	fanOutLimit int
}

type Option func(*Planner)

func WithFanOutLimit(n int) Option {
	return func(p *Planner) {
		if n > 0 {
			p.fanOutLimit = n
		}
	}
}

func New(opts ...Option) *Planner {
	p := &Planner{fanOutLimit: DefaultFanOutLimit}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan builds the step graph for one classified query. The session is read
// for values promoted by earlier steps (unused today for fresh sessions, but
// planning stays a pure function of its two arguments).
func (p *Planner) Plan(query string, cls contractx.Classification, sess *sessionx.Context) *contractx.ExecutionPlan {
	plan := &contractx.ExecutionPlan{
		Query:      query,
		Complexity: cls.Complexity,
	}

	switch cls.Complexity {
	case contractx.ComplexityMultiStep:
		p.planMultiStep(plan, cls)
	case contractx.ComplexityCoordinated:
		planCoordinated(plan, query, cls)
	case contractx.ComplexityMultiIntent:
		planMultiIntent(plan, query, cls)
	default:
		plan.Steps = []contractx.Step{simpleStep(query, cls)}
	}
	return plan
}

// simpleStep picks the single step a one-shot query needs. Ticket creation
// and history are checked before plain lookup so an id entity does not
// shadow them.
func simpleStep(query string, cls contractx.Classification) contractx.Step {
	id, hasID := cls.CustomerID()

	if _, ok := cls.Entities["create_ticket"]; ok && hasID {
		return ticketCreateStep("create", id, query, cls)
	}
	if _, ok := cls.Entities["history"]; ok && hasID {
		return contractx.Step{
			ID:         "history",
			Capability: contractx.CapTicketHistory,
			Operation:  gatewayx.OpListHistory,
			Inputs:     map[string]contractx.Input{"id": contractx.Lit(id)},
			Intent:     contractx.IntentDataLookup,
		}
	}
	if hasID && hasUpdatableField(cls) {
		return updateStep("update", id, cls)
	}
	if hasID {
		return lookupStep("lookup", id)
	}
	if _, ok := cls.Entities["list"]; ok {
		return listStep("list", cls, 0)
	}
	return respondStep("respond", query, cls, "")
}

// planCoordinated pairs a record lookup with the support action that needs
// it. A creation request yields a create step; anything else yields a
// personalized response fed by the looked-up record.
func planCoordinated(plan *contractx.ExecutionPlan, query string, cls contractx.Classification) {
	id, _ := cls.CustomerID()
	lookup := lookupStep("lookup", id)

	if _, ok := cls.Entities["create_ticket"]; ok {
		create := ticketCreateStep("create", id, query, cls)
		create.DependsOn = []string{"lookup"}
		plan.Steps = []contractx.Step{lookup, create}
		return
	}

	respond := respondStep("respond", query, cls, "lookup")
	respond.Inputs["customer_name"] = contractx.Ref("lookup", "name")
	respond.Inputs["customer_status"] = contractx.Ref("lookup", "status")
	plan.Steps = []contractx.Step{lookup, respond}
}

// planMultiStep emits the candidate-set step plus a fan-out template. The
// per-candidate detail steps are materialized by the dispatcher once the
// candidate set is known.
func (p *Planner) planMultiStep(plan *contractx.ExecutionPlan, cls contractx.Classification) {
	candidates := listStep("candidates", cls, p.fanOutLimit)
	if _, ok := candidates.Inputs["status"]; !ok {
		candidates.Inputs["status"] = contractx.Lit(contractx.CustomerActive)
	}

	filter := contractx.TicketFilter{}
	if v, ok := cls.Entities["status_filter"].(string); ok {
		filter.Status = v
	}
	if v, ok := cls.Entities["priority_filter"].(string); ok {
		filter.Priority = v
	}

	plan.Steps = []contractx.Step{candidates}
	plan.FanOut = &contractx.FanOut{
		FromStep:   "candidates",
		Capability: contractx.CapTicketHistory,
		Operation:  gatewayx.OpListHistory,
		Limit:      p.fanOutLimit,
		Predicate:  filter,
	}
}

// planMultiIntent emits one step per intent in declaration order. Steps that
// touch the same customer record are chained so their effects observe one
// another; unrelated steps stay concurrent.
func planMultiIntent(plan *contractx.ExecutionPlan, query string, cls contractx.Classification) {
	id, hasID := cls.CustomerID()
	lastRecordStep := ""

	for i, intent := range cls.Intents {
		var step contractx.Step
		suffix := strconv.Itoa(i + 1)

		switch intent {
		case contractx.IntentDataLookup:
			if !hasID {
				step = listStep("list-"+suffix, cls, 0)
				break
			}
			if _, ok := cls.Entities["history"]; ok {
				step = contractx.Step{
					ID:         "history-" + suffix,
					Capability: contractx.CapTicketHistory,
					Operation:  gatewayx.OpListHistory,
					Inputs:     map[string]contractx.Input{"id": contractx.Lit(id)},
					Intent:     intent,
				}
			} else {
				step = lookupStep("lookup-"+suffix, id)
			}
		case contractx.IntentAccount:
			if hasID && hasUpdatableField(cls) {
				step = updateStep("update-"+suffix, id, cls)
			} else if hasID {
				step = lookupStep("lookup-"+suffix, id)
			} else {
				step = respondStep("respond-"+suffix, query, cls, "")
				step.Inputs["intent"] = contractx.Lit(string(intent))
			}
		default:
			step = respondStep("respond-"+suffix, query, cls, "")
			step.Inputs["intent"] = contractx.Lit(string(intent))
		}
		step.Intent = intent

		if touchesRecord(step) {
			if lastRecordStep != "" {
				step.DependsOn = append(step.DependsOn, lastRecordStep)
			}
			lastRecordStep = step.ID
		}
		plan.Steps = append(plan.Steps, step)
	}
}

// touchesRecord reports whether a step reads or writes a customer record,
// the shared resource that forces sequencing between multi-intent steps.
func touchesRecord(s contractx.Step) bool {
	switch s.Capability {
	case contractx.CapCustomerLookup, contractx.CapCustomerUpdate,
		contractx.CapTicketHistory, contractx.CapTicketCreate:
		return true
	}
	return false
}

func hasUpdatableField(cls contractx.Classification) bool {
	_, hasEmail := cls.Entities["email"]
	_, hasPhone := cls.Entities["phone"]
	return hasEmail || hasPhone
}

func lookupStep(id string, customerID int64) contractx.Step {
	return contractx.Step{
		ID:         id,
		Capability: contractx.CapCustomerLookup,
		Operation:  gatewayx.OpLookupOne,
		Inputs:     map[string]contractx.Input{"id": contractx.Lit(customerID)},
		Intent:     contractx.IntentDataLookup,
	}
}

func listStep(id string, cls contractx.Classification, limit int) contractx.Step {
	inputs := map[string]contractx.Input{}
	if v, ok := cls.Entities["customer_status"].(string); ok {
		inputs["status"] = contractx.Lit(v)
	}
	if limit > 0 {
		inputs["limit"] = contractx.Lit(int64(limit))
	}
	return contractx.Step{
		ID:         id,
		Capability: contractx.CapCustomerList,
		Operation:  gatewayx.OpListWithFilter,
		Inputs:     inputs,
		Intent:     contractx.IntentDataLookup,
	}
}

func updateStep(id string, customerID int64, cls contractx.Classification) contractx.Step {
	fields := map[string]any{}
	if v, ok := cls.Entities["email"].(string); ok {
		fields["email"] = v
	}
	if v, ok := cls.Entities["phone"].(string); ok {
		fields["phone"] = v
	}
	return contractx.Step{
		ID:         id,
		Capability: contractx.CapCustomerUpdate,
		Operation:  gatewayx.OpUpdateFields,
		Inputs: map[string]contractx.Input{
			"id":     contractx.Lit(customerID),
			"fields": contractx.Lit(fields),
		},
		Intent: contractx.IntentAccount,
	}
}

func ticketCreateStep(id string, customerID int64, query string, cls contractx.Classification) contractx.Step {
	issue, _ := cls.Entities["issue"].(string)
	if issue == "" {
		issue = query
	}
	inputs := map[string]contractx.Input{
		"id":    contractx.Lit(customerID),
		"issue": contractx.Lit(issue),
	}
	return contractx.Step{
		ID:         id,
		Capability: contractx.CapTicketCreate,
		Operation:  supportx.OpCreateTicket,
		Inputs:     inputs,
		Intent:     contractx.IntentSupport,
	}
}

func respondStep(id, query string, cls contractx.Classification, dependsOn string) contractx.Step {
	step := contractx.Step{
		ID:         id,
		Capability: contractx.CapSupportResponse,
		Operation:  supportx.OpRespond,
		Inputs: map[string]contractx.Input{
			"query":    contractx.Lit(query),
			"priority": contractx.Lit(string(cls.Priority)),
		},
		Intent: contractx.IntentSupport,
	}
	if dependsOn != "" {
		step.DependsOn = []string{dependsOn}
	}
	return step
}
