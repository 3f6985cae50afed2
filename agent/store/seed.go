package store

import (
	"time"

	contractx "github.com/witthaya/deskflow/agent/contract"
)

// Demo fixture set: five customers (one disabled) and a spread of tickets
// across priorities and statuses. The postgres seeder reuses the same
// fixtures so both backends answer the demo scenarios identically.

var seedBase = time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)

func SeedCustomers() []contractx.Customer {
	customers := []contractx.Customer{
		{ID: 1, Name: "Alice Johnson", Email: "alice@example.com", Phone: "555-0101", Status: contractx.CustomerActive},
		{ID: 2, Name: "Bob Smith", Email: "bob@example.com", Phone: "555-0102", Status: contractx.CustomerActive},
		{ID: 3, Name: "Carol White", Email: "carol@example.com", Phone: "555-0103", Status: contractx.CustomerActive},
		{ID: 4, Name: "David Brown", Email: "david@example.com", Phone: "555-0104", Status: contractx.CustomerDisabled},
		{ID: 5, Name: "Eve Davis", Email: "eve@example.com", Phone: "555-0105", Status: contractx.CustomerActive},
	}
	for i := range customers {
		customers[i].Version = 1
		customers[i].CreatedAt = seedBase.Add(time.Duration(i) * time.Hour)
		customers[i].UpdatedAt = customers[i].CreatedAt
	}
	return customers
}

func SeedTickets() []contractx.Ticket {
	tickets := []contractx.Ticket{
		{ID: 1, CustomerID: 1, Issue: "Cannot log into account", Status: contractx.TicketOpen, Priority: string(contractx.PriorityHigh)},
		{ID: 2, CustomerID: 1, Issue: "Billing question about last invoice", Status: contractx.TicketResolved, Priority: string(contractx.PriorityMedium)},
		{ID: 3, CustomerID: 2, Issue: "Feature request: dark mode", Status: contractx.TicketOpen, Priority: string(contractx.PriorityLow)},
		{ID: 4, CustomerID: 3, Issue: "Charged twice for subscription", Status: contractx.TicketOpen, Priority: string(contractx.PriorityHigh)},
		{ID: 5, CustomerID: 3, Issue: "How do I export my data?", Status: contractx.TicketResolved, Priority: string(contractx.PriorityLow)},
		{ID: 6, CustomerID: 5, Issue: "App crashes on startup", Status: contractx.TicketInProgress, Priority: string(contractx.PriorityMedium)},
	}
	for i := range tickets {
		tickets[i].CreatedAt = seedBase.Add(time.Duration(i+1) * 30 * time.Minute)
	}
	return tickets
}

// SeedMemory loads the fixtures into a memory store.
func SeedMemory(s *MemoryStore) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range SeedCustomers() {
		s.customers[c.ID] = c
	}
	for _, t := range SeedTickets() {
		s.tickets[t.CustomerID] = append(s.tickets[t.CustomerID], t)
		if t.ID >= s.nextTicketID {
			s.nextTicketID = t.ID + 1
		}
	}
}
