package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	contractx "github.com/witthaya/deskflow/agent/contract"
)

// MemoryStore is the in-process Store used by tests and the demo runner.
// A single mutex serializes all writes, which trivially satisfies the
// single-writer-per-record guarantee.
type MemoryStore struct {
	mu           sync.RWMutex
	customers    map[int64]contractx.Customer
	tickets      map[int64][]contractx.Ticket
	nextTicketID int64
	now          func() time.Time
}

type MemoryOption func(*MemoryStore)

// WithClock fixes the store's clock; tests use it for stable timestamps.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

func NewMemory(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		customers:    make(map[int64]contractx.Customer, 16),
		tickets:      make(map[int64][]contractx.Ticket, 16),
		nextTicketID: 1,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) GetCustomer(ctx context.Context, id int64) (*contractx.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.customers[id]
	if !ok {
		return nil, fmt.Errorf("%w: customer %d", ErrNoRecord, id)
	}
	return &c, nil
}

// ListCustomers returns customers in ascending id order; the planner relies
// on this order when truncating a fan-out candidate set.
func (s *MemoryStore) ListCustomers(ctx context.Context, status string, limit int) ([]contractx.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int64, 0, len(s.customers))
	for id := range s.customers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]contractx.Customer, 0, limit)
	for _, id := range ids {
		c := s.customers[id]
		if status != "" && c.Status != status {
			continue
		}
		out = append(out, c)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

var customerFieldSetters = map[string]func(*contractx.Customer, string){
	"name":   func(c *contractx.Customer, v string) { c.Name = v },
	"email":  func(c *contractx.Customer, v string) { c.Email = v },
	"phone":  func(c *contractx.Customer, v string) { c.Phone = v },
	"status": func(c *contractx.Customer, v string) { c.Status = v },
}

func (s *MemoryStore) UpdateCustomer(ctx context.Context, id int64, fields map[string]any, expectedVersion int64) (*contractx.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.customers[id]
	if !ok {
		return nil, fmt.Errorf("%w: customer %d", ErrNoRecord, id)
	}
	if c.Version != expectedVersion {
		return nil, fmt.Errorf("%w: customer %d at version %d, expected %d",
			ErrVersionMismatch, id, c.Version, expectedVersion)
	}

	for key, raw := range fields {
		set, ok := customerFieldSetters[key]
		if !ok {
			return nil, fmt.Errorf("field %q is not updatable", key)
		}
		v, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("field %q: expected string, got %T", key, raw)
		}
		set(&c, v)
	}
	c.Version++
	c.UpdatedAt = s.now().UTC()
	s.customers[id] = c
	return &c, nil
}

func (s *MemoryStore) CreateTicket(ctx context.Context, customerID int64, issue, priority string) (*contractx.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customers[customerID]; !ok {
		return nil, fmt.Errorf("%w: customer %d", ErrNoRecord, customerID)
	}

	t := contractx.Ticket{
		ID:         s.nextTicketID,
		CustomerID: customerID,
		Issue:      issue,
		Status:     contractx.TicketOpen,
		Priority:   priority,
		CreatedAt:  s.now().UTC(),
	}
	s.nextTicketID++
	s.tickets[customerID] = append(s.tickets[customerID], t)
	return &t, nil
}

// ListTickets returns the customer's tickets newest first.
func (s *MemoryStore) ListTickets(ctx context.Context, customerID int64) ([]contractx.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.customers[customerID]; !ok {
		return nil, fmt.Errorf("%w: customer %d", ErrNoRecord, customerID)
	}
	tickets := s.tickets[customerID]
	out := make([]contractx.Ticket, len(tickets))
	copy(out, tickets)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
