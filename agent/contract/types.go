package contract

import (
	"strconv"
	"time"
)

// Intent is one recognized purpose of a customer query. A query may carry
// several intents at once.
type Intent string

const (
	IntentBilling    Intent = "billing"
	IntentAccount    Intent = "account"
	IntentUpgrade    Intent = "upgrade"
	IntentSupport    Intent = "support"
	IntentDataLookup Intent = "data-lookup"
	IntentGeneral    Intent = "general"
)

// Priority is totally ordered: high > medium > low.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

type Complexity string

const (
	ComplexitySimple      Complexity = "simple"
	ComplexityCoordinated Complexity = "coordinated"
	ComplexityMultiStep   Complexity = "multi_step"
	ComplexityMultiIntent Complexity = "multi_intent"
)

// Query is a raw customer request. Immutable once received.
type Query struct {
	Text       string    `json:"text"`
	ReceivedAt time.Time `json:"received_at"`
}

// Classification is derived deterministically from a Query and never mutated
// after creation.
type Classification struct {
	Intents    []Intent       `json:"intents"`
	Priority   Priority       `json:"priority"`
	Complexity Complexity     `json:"complexity"`
	Entities   map[string]any `json:"entities,omitempty"`
}

func (c Classification) HasIntent(in Intent) bool {
	for _, i := range c.Intents {
		if i == in {
			return true
		}
	}
	return false
}

// CustomerID returns the extracted customer id entity, if any.
func (c Classification) CustomerID() (int64, bool) {
	v, ok := c.Entities["customer_id"]
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}

// Capability is a named class of operation a Worker can perform.
type Capability string

const (
	CapCustomerLookup  Capability = "customer-lookup"
	CapCustomerList    Capability = "customer-list"
	CapCustomerUpdate  Capability = "customer-update"
	CapTicketHistory   Capability = "ticket-history"
	CapSupportResponse Capability = "support-response"
	CapTicketCreate    Capability = "ticket-create"
)

// Input is one bound value in a step's input template: either a literal or a
// reference to a field of an earlier step's output.
type Input struct {
	Literal  any    `json:"literal,omitempty"`
	FromStep string `json:"from_step,omitempty"`
	Field    string `json:"field,omitempty"`
}

func Lit(v any) Input              { return Input{Literal: v} }
func Ref(step, field string) Input { return Input{FromStep: step, Field: field} }

func (in Input) IsRef() bool { return in.FromStep != "" }

// Step is one planned unit of work targeting one capability. DependsOn is a
// subset of earlier step ids; the dependency graph is acyclic by construction
// (a step only ever references steps planned before it).
type Step struct {
	ID         string           `json:"id"`
	Capability Capability       `json:"capability"`
	Operation  string           `json:"operation"`
	Inputs     map[string]Input `json:"inputs,omitempty"`
	DependsOn  []string         `json:"depends_on,omitempty"`
	Intent     Intent           `json:"intent,omitempty"`
	Labels     map[string]string `json:"labels,omitempty"`
}

// TicketFilter is the declared predicate of a multi-step traversal plan.
// Empty fields match everything.
type TicketFilter struct {
	Status   string `json:"status,omitempty"`
	Priority string `json:"priority,omitempty"`
}

func (f TicketFilter) Matches(t Ticket) bool {
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.Priority != "" && t.Priority != f.Priority {
		return false
	}
	return true
}

// FanOut describes how to expand a candidate-set step into one independent
// detail step per candidate, bounded by Limit. Candidates are taken in the
// order the source step returned them (ascending id), so the truncated subset
// under Limit is deterministic.
type FanOut struct {
	FromStep   string       `json:"from_step"`
	Capability Capability   `json:"capability"`
	Operation  string       `json:"operation"`
	Limit      int          `json:"limit"`
	Predicate  TicketFilter `json:"predicate"`
}

// ExecutionPlan is the ordered, dependency-annotated set of steps derived
// from one Classification.
type ExecutionPlan struct {
	Query      string     `json:"query"`
	Complexity Complexity `json:"complexity"`
	Steps      []Step     `json:"steps"`
	FanOut     *FanOut    `json:"fan_out,omitempty"`
}

// MaterializeFanOut expands the plan's fan-out template for the given
// candidate set. Pure; the dispatcher calls it once the candidate-set step
// has succeeded.
func (p *ExecutionPlan) MaterializeFanOut(candidates []Customer) []Step {
	if p.FanOut == nil {
		return nil
	}
	limit := p.FanOut.Limit
	if limit <= 0 || limit > len(candidates) {
		limit = len(candidates)
	}
	steps := make([]Step, 0, limit)
	for _, c := range candidates[:limit] {
		steps = append(steps, Step{
			ID:         FanOutStepID(c.ID),
			Capability: p.FanOut.Capability,
			Operation:  p.FanOut.Operation,
			Inputs: map[string]Input{
				"id": Lit(c.ID),
			},
			DependsOn: []string{p.FanOut.FromStep},
			Labels: map[string]string{
				"customer_name": c.Name,
			},
		})
	}
	return steps
}

// FanOutStepID names the detail step materialized for one candidate, so
// consumers can find a candidate's result without scanning all step ids.
func FanOutStepID(customerID int64) string {
	return "detail-" + strconv.FormatInt(customerID, 10)
}

// Outcome of one request/response exchange.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

type MessageKind string

const (
	MessageRequest  MessageKind = "request"
	MessageResponse MessageKind = "response"
)

// AgentMessage is one half of a request/response exchange between the
// dispatcher and a worker. Immutable, append-only audit record; the request
// and its response share a correlation id.
type AgentMessage struct {
	Kind          MessageKind    `json:"kind"`
	Sender        string         `json:"sender"`
	Receiver      string         `json:"receiver"`
	Operation     string         `json:"operation"`
	Parameters    map[string]any `json:"parameters,omitempty"`
	CorrelationID string         `json:"correlation_id"`
	Timestamp     time.Time      `json:"timestamp"`
	Outcome       Outcome        `json:"outcome,omitempty"`
	Payload       any            `json:"payload,omitempty"`
	ErrorKind     string         `json:"error_kind,omitempty"`
	ErrorMessage  string         `json:"error_message,omitempty"`
}

// Request is an inter-agent call as a worker receives it.
type Request struct {
	Sender        string         `json:"sender"`
	Receiver      string         `json:"receiver"`
	Operation     string         `json:"operation"`
	Parameters    map[string]any `json:"parameters,omitempty"`
	CorrelationID string         `json:"correlation_id"`
}

// Response is the worker's reply, carrying the same correlation id.
type Response struct {
	CorrelationID string  `json:"correlation_id"`
	Outcome       Outcome `json:"outcome"`
	Payload       any     `json:"payload,omitempty"`
	ErrorKind     string  `json:"error_kind,omitempty"`
	ErrorMessage  string  `json:"error_message,omitempty"`
}

// StepOutcome is the terminal state of one dispatched step.
type StepOutcome string

const (
	StepSuccess   StepOutcome = "success"
	StepFailure   StepOutcome = "failure"
	StepSkipped   StepOutcome = "skipped"
	StepCancelled StepOutcome = "cancelled"
)

// StepResult is the dispatcher's record for one step. Every planned step id
// appears exactly once in the result set, whatever its outcome.
type StepResult struct {
	StepID       string      `json:"step_id"`
	Outcome      StepOutcome `json:"outcome"`
	Payload      any         `json:"payload,omitempty"`
	ErrorKind    string      `json:"error_kind,omitempty"`
	ErrorMessage string      `json:"error_message,omitempty"`
	SkipCause    string      `json:"skip_cause,omitempty"`
}

// QueryResponse is the aggregated answer handed back to the caller. Outcomes
// accounts for every step of the plan.
type QueryResponse struct {
	Text           string                 `json:"text"`
	Outcomes       map[string]StepOutcome `json:"outcomes"`
	EvaluatedCount int                    `json:"evaluated_count,omitempty"`
}

// SupportReply is the payload produced by the support-response capability.
type SupportReply struct {
	Solution        string   `json:"solution"`
	Priority        Priority `json:"priority"`
	Intents         []Intent `json:"intents,omitempty"`
	NeedsEscalation bool     `json:"needs_escalation"`
	CustomerName    string   `json:"customer_name,omitempty"`
	CustomerStatus  string   `json:"customer_status,omitempty"`
}

// Customer and Ticket are the persisted record shapes the core consumes but
// does not own.
type Customer struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Status    string    `json:"status"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Ticket struct {
	ID         int64     `json:"id"`
	CustomerID int64     `json:"customer_id"`
	Issue      string    `json:"issue"`
	Status     string    `json:"status"`
	Priority   string    `json:"priority"`
	CreatedAt  time.Time `json:"created_at"`
}

const (
	CustomerActive   = "active"
	CustomerDisabled = "disabled"

	TicketOpen       = "open"
	TicketInProgress = "in_progress"
	TicketResolved   = "resolved"
)
