// Package dataagent provides the customer-data capabilities. Every operation
// is a pass-through to one validated tool-gateway call; the agent itself
// holds no state across queries.
package dataagent

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	contractx "github.com/witthaya/deskflow/agent/contract"
	gatewayx "github.com/witthaya/deskflow/agent/gateway"
)

const WorkerName = "customer-data-agent"

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
		contractx.CapCustomerLookup,
		contractx.CapCustomerList,
		contractx.CapCustomerUpdate,
		contractx.CapTicketHistory,
	}
}

// operations maps the step operation names onto gateway operations. The
// names are identical today; the indirection keeps unknown operations a
// validation failure instead of an accidental gateway call.
var operations = map[string]string{
	gatewayx.OpLookupOne:      gatewayx.OpLookupOne,
	gatewayx.OpListWithFilter: gatewayx.OpListWithFilter,
	gatewayx.OpUpdateFields:   gatewayx.OpUpdateFields,
	gatewayx.OpListHistory:    gatewayx.OpListHistory,
}

func (a *Agent) Handle(ctx context.Context, req contractx.Request) contractx.Response {
	op, ok := operations[req.Operation]
	if !ok {
		return failure(req, contractx.KindValidation, "unsupported operation "+req.Operation)
	}

	payload, err := a.tools.Call(ctx, op, req.Parameters)
	if err != nil {
		log.Debug().Str("worker", WorkerName).Str("op", op).Err(err).Msg("gateway call failed")
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
