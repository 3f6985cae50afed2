// Package supportagent provides the support-response and ticket-create
// capabilities. Responses are canned per primary intent; urgency is inferred
// from the issue text when the caller does not supply a priority.
package supportagent

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	classifierx "github.com/witthaya/deskflow/agent/classifier"
	contractx "github.com/witthaya/deskflow/agent/contract"
	gatewayx "github.com/witthaya/deskflow/agent/gateway"
)

const WorkerName = "support-agent"

const (
	OpRespond      = "respond"
	OpCreateTicket = "create-ticket"
)

type Agent struct {
	tools contractx.ToolGateway
}

func New(tools contractx.ToolGateway) (*Agent, error) {
	if tools == nil {
		return nil, errors.New("tool gateway is required")
	}
	return &Agent{tools: tools}, nil
}

func (a *Agent) Name() string { return WorkerName }

func (a *Agent) Capabilities() []contractx.Capability {
	return []contractx.Capability{
		contractx.CapSupportResponse,
		contractx.CapTicketCreate,
	}
}

func (a *Agent) Handle(ctx context.Context, req contractx.Request) contractx.Response {
	switch req.Operation {
	case OpRespond:
		return a.respond(req)
	case OpCreateTicket:
		return a.createTicket(ctx, req)
	default:
		return failure(req, contractx.KindValidation, "unsupported operation "+req.Operation)
	}
}

var solutions = map[contractx.Intent]string{
	contractx.IntentBilling: "I can help you with billing issues. Let me review your account and recent transactions.",
	contractx.IntentUpgrade: "I'd be happy to help you upgrade your account. Let me check your current plan and available options.",
	contractx.IntentAccount: "I can assist you with your account. Let me pull up your information.",
	contractx.IntentSupport: "I understand you're running into trouble. Let me investigate this issue for you.",
}

const fallbackSolution = "I'm here to help. Could you provide more details about your issue?"

func (a *Agent) respond(req contractx.Request) contractx.Response {
	query, _ := req.Parameters["query"].(string)
	if strings.TrimSpace(query) == "" {
		return failure(req, contractx.KindValidation, "respond: parameter \"query\" is required")
	}

	intents := classifierx.IntentsOf(query)
	priority := classifierx.PriorityOf(query)
	if raw, ok := req.Parameters["priority"].(string); ok && raw != "" {
		priority = contractx.Priority(raw)
	}

	reply := contractx.SupportReply{
		Priority:        priority,
		Intents:         intents,
		NeedsEscalation: len(intents) > 1 || priority == contractx.PriorityHigh,
		Solution:        fallbackSolution,
	}
	// A multi-intent plan pins each response to one intent; otherwise the
	// first detected intent picks the solution.
	key := intents[0]
	if raw, ok := req.Parameters["intent"].(string); ok && raw != "" {
		key = contractx.Intent(raw)
	}
	if s, ok := solutions[key]; ok {
		reply.Solution = s
	}
	if name, ok := req.Parameters["customer_name"].(string); ok {
		reply.CustomerName = name
	}
	if status, ok := req.Parameters["customer_status"].(string); ok {
		reply.CustomerStatus = status
	}

	log.Debug().
		Str("worker", WorkerName).
		Str("priority", string(priority)).
		Bool("escalation", reply.NeedsEscalation).
		Msg("support response built")

	return contractx.Response{
		CorrelationID: req.CorrelationID,
		Outcome:       contractx.OutcomeSuccess,
		Payload:       reply,
	}
}

// createTicket defaults the priority to the detected urgency of the issue
// text when none is supplied.
func (a *Agent) createTicket(ctx context.Context, req contractx.Request) contractx.Response {
	params := map[string]any{
		"id":    req.Parameters["id"],
		"issue": req.Parameters["issue"],
	}
	if raw, ok := req.Parameters["priority"].(string); ok && raw != "" {
		params["priority"] = raw
	} else if issue, ok := req.Parameters["issue"].(string); ok {
		params["priority"] = string(classifierx.PriorityOf(issue))
	}

	payload, err := a.tools.Call(ctx, gatewayx.OpCreateRecord, params)
	if err != nil {
		return failure(req, contractx.ErrorKindOf(err), err.Error())
	}
	return contractx.Response{
		CorrelationID: req.CorrelationID,
		Outcome:       contractx.OutcomeSuccess,
		Payload:       payload,
	}
}

func failure(req contractx.Request, kind, msg string) contractx.Response {
	return contractx.Response{
		CorrelationID: req.CorrelationID,
		Outcome:       contractx.OutcomeFailure,
		ErrorKind:     kind,
		ErrorMessage:  msg,
	}
}

var _ contractx.Worker = (*Agent)(nil)
