// Package gateway mediates every data-affecting call a worker makes to the
// store. It exposes exactly five validated operations; storage errors never
// reach a caller raw — each is mapped onto the contract error taxonomy.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/witthaya/deskflow/agent/contract"
	storex "github.com/witthaya/deskflow/agent/store"
)

type Gateway struct {
	store storex.Store
}

func New(store storex.Store) (*Gateway, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	return &Gateway{store: store}, nil
}

const defaultListLimit = 10

func (g *Gateway) Call(ctx context.Context, op string, params map[string]any) (any, error) {
	if err := validate(op, params); err != nil {
		return nil, err
	}

	log.Debug().Str("op", op).Interface("params", params).Msg("gateway call")

	switch op {
	case OpLookupOne:
		return g.lookupOne(ctx, params)
	case OpListWithFilter:
		return g.listWithFilter(ctx, params)
	case OpUpdateFields:
		return g.updateFields(ctx, params)
	case OpCreateRecord:
		return g.createRecord(ctx, params)
	case OpListHistory:
		return g.listHistory(ctx, params)
	default:
		// validate already rejected unknown ops
		return nil, fmt.Errorf("%w: unknown operation %q", contractx.ErrValidation, op)
	}
}

func (g *Gateway) lookupOne(ctx context.Context, params map[string]any) (any, error) {
	id, _ := asInt64(params["id"])
	c, err := g.store.GetCustomer(ctx, id)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return c, nil
}

func (g *Gateway) listWithFilter(ctx context.Context, params map[string]any) (any, error) {
	status, _ := params["status"].(string)
	limit := defaultListLimit
	if raw, ok := params["limit"]; ok {
		v, _ := asInt64(raw)
		limit = int(v)
	}
	customers, err := g.store.ListCustomers(ctx, status, limit)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return customers, nil
}

// updateFields reads the current record to capture its version, then commits
// with that version as precondition. A racing writer between the read and the
// write surfaces as ErrConflict; the dispatcher retries the step once with a
// fresh read.
func (g *Gateway) updateFields(ctx context.Context, params map[string]any) (any, error) {
	id, _ := asInt64(params["id"])
	fields := params["fields"].(map[string]any)

	current, err := g.store.GetCustomer(ctx, id)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	updated, err := g.store.UpdateCustomer(ctx, id, fields, current.Version)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return updated, nil
}

func (g *Gateway) createRecord(ctx context.Context, params map[string]any) (any, error) {
	id, _ := asInt64(params["id"])
	issue := params["issue"].(string)
	priority := params["priority"].(string)

	t, err := g.store.CreateTicket(ctx, id, issue, priority)
	if err != nil {
		// A missing customer on create is a caller mistake, not a lookup miss.
		if errors.Is(err, storex.ErrNoRecord) {
			return nil, fmt.Errorf("%w: customer %d does not exist", contractx.ErrValidation, id)
		}
		return nil, mapStoreErr(err)
	}
	return t, nil
}

func (g *Gateway) listHistory(ctx context.Context, params map[string]any) (any, error) {
	id, _ := asInt64(params["id"])
	tickets, err := g.store.ListTickets(ctx, id)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return tickets, nil
}

func mapStoreErr(err error) error {
	switch {
	case errors.Is(err, storex.ErrNoRecord):
		return fmt.Errorf("%w: %v", contractx.ErrNotFound, err)
	case errors.Is(err, storex.ErrVersionMismatch):
		return fmt.Errorf("%w: %v", contractx.ErrConflict, err)
	default:
		return fmt.Errorf("%w: %v", contractx.ErrCommunication, err)
	}
}

var _ contractx.ToolGateway = (*Gateway)(nil)
