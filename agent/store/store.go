// Package store defines the persistence contract the tool gateway consumes.
// The core does not own the schema; it only reads and writes the record
// shapes in agent/contract through this interface.
package store

import (
	"context"
	"errors"

	contractx "github.com/witthaya/deskflow/agent/contract"
)

var (
	ErrNoRecord        = errors.New("no such record")
	ErrVersionMismatch = errors.New("record version mismatch")
)

// Store serializes updates to the same record (single-writer-per-record).
// UpdateCustomer takes the version the caller read; a mismatch at commit time
// returns ErrVersionMismatch instead of silently overwriting. Successful
// mutations are durably committed before the call returns.
type Store interface {
	GetCustomer(ctx context.Context, id int64) (*contractx.Customer, error)
	ListCustomers(ctx context.Context, status string, limit int) ([]contractx.Customer, error)
	UpdateCustomer(ctx context.Context, id int64, fields map[string]any, expectedVersion int64) (*contractx.Customer, error)
	CreateTicket(ctx context.Context, customerID int64, issue, priority string) (*contractx.Ticket, error)
	ListTickets(ctx context.Context, customerID int64) ([]contractx.Ticket, error)
}
