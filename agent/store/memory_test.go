package store

import (
	"context"
	"errors"
	"testing"
	"time"

	contractx "github.com/witthaya/deskflow/agent/contract"
)

func seededStore(t *testing.T) *MemoryStore {
	t.Helper()
	s := NewMemory(WithClock(func() time.Time {
		return time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)
	}))
	SeedMemory(s)
	return s
}

func TestGetCustomer(t *testing.T) {
	t.Parallel()

	s := seededStore(t)
	c, err := s.GetCustomer(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetCustomer() error = %v", err)
	}
	if c.Name != "Alice Johnson" || c.Version != 1 {
		t.Fatalf("unexpected customer: %+v", c)
	}

	_, err = s.GetCustomer(context.Background(), 99)
	if !errors.Is(err, ErrNoRecord) {
		t.Fatalf("expected ErrNoRecord, got %v", err)
	}
}

func TestListCustomersFilterAndOrder(t *testing.T) {
	t.Parallel()

	s := seededStore(t)
	active, err := s.ListCustomers(context.Background(), contractx.CustomerActive, 0)
	if err != nil {
		t.Fatalf("ListCustomers() error = %v", err)
	}
	wantIDs := []int64{1, 2, 3, 5}
	if len(active) != len(wantIDs) {
		t.Fatalf("expected %d active customers, got %d", len(wantIDs), len(active))
	}
	for i, c := range active {
		if c.ID != wantIDs[i] {
			t.Fatalf("expected ascending id order %v, got id %d at index %d", wantIDs, c.ID, i)
		}
	}

	limited, err := s.ListCustomers(context.Background(), contractx.CustomerActive, 2)
	if err != nil {
		t.Fatalf("ListCustomers(limit) error = %v", err)
	}
	if len(limited) != 2 || limited[0].ID != 1 || limited[1].ID != 2 {
		t.Fatalf("expected first two active customers, got %+v", limited)
	}
}

func TestUpdateCustomerVersioning(t *testing.T) {
	t.Parallel()

	s := seededStore(t)
	updated, err := s.UpdateCustomer(context.Background(), 2, map[string]any{"email": "bob@new.example.com"}, 1)
	if err != nil {
		t.Fatalf("UpdateCustomer() error = %v", err)
	}
	if updated.Email != "bob@new.example.com" || updated.Version != 2 {
		t.Fatalf("unexpected updated record: %+v", updated)
	}

	// Same expected version again must now conflict.
	_, err = s.UpdateCustomer(context.Background(), 2, map[string]any{"phone": "555-9999"}, 1)
	if !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got %v", err)
	}

	_, err = s.UpdateCustomer(context.Background(), 2, map[string]any{"shoe_size": "42"}, 2)
	if err == nil {
		t.Fatal("expected error for non-updatable field")
	}
}

func TestCreateTicketAssignsIDs(t *testing.T) {
	t.Parallel()

	s := seededStore(t)
	first, err := s.CreateTicket(context.Background(), 4, "cannot log in", string(contractx.PriorityHigh))
	if err != nil {
		t.Fatalf("CreateTicket() error = %v", err)
	}
	// Seed tops out at ticket 6.
	if first.ID != 7 || first.Status != contractx.TicketOpen {
		t.Fatalf("unexpected ticket: %+v", first)
	}

	second, err := s.CreateTicket(context.Background(), 4, "still cannot log in", string(contractx.PriorityHigh))
	if err != nil {
		t.Fatalf("CreateTicket() second error = %v", err)
	}
	if second.ID != 8 {
		t.Fatalf("expected monotonically increasing ids, got %d", second.ID)
	}

	_, err = s.CreateTicket(context.Background(), 99, "ghost", string(contractx.PriorityLow))
	if !errors.Is(err, ErrNoRecord) {
		t.Fatalf("expected ErrNoRecord for unknown customer, got %v", err)
	}
}

func TestListTicketsNewestFirst(t *testing.T) {
	t.Parallel()

	s := seededStore(t)
	tickets, err := s.ListTickets(context.Background(), 1)
	if err != nil {
		t.Fatalf("ListTickets() error = %v", err)
	}
	if len(tickets) != 2 {
		t.Fatalf("expected 2 tickets for customer 1, got %d", len(tickets))
	}
	if tickets[0].ID != 2 || tickets[1].ID != 1 {
		t.Fatalf("expected newest-first order, got %+v", tickets)
	}

	none, err := s.ListTickets(context.Background(), 4)
	if err != nil {
		t.Fatalf("ListTickets(4) error = %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no tickets for customer 4, got %d", len(none))
	}
}
