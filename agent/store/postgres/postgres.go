// Package postgres is the bun-backed Store implementation. The optimistic
// version column backs the gateway's update precondition: an UPDATE guarded
// by WHERE version = ? either commits atomically or reports a conflict.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	contractx "github.com/witthaya/deskflow/agent/contract"
	storex "github.com/witthaya/deskflow/agent/store"
)

type Config struct {
	DSN          string        `envconfig:"DSN" split_words:"true" required:"true"`
	DialTimeout  time.Duration `envconfig:"DIAL_TIMEOUT" split_words:"true" default:"5s"`
	MaxOpenConns int           `envconfig:"MAX_OPEN_CONNS" split_words:"true" default:"4"`
}

type customerModel struct {
	bun.BaseModel `bun:"table:customers,alias:c"`

	ID        int64     `bun:"id,pk"`
	Name      string    `bun:"name,notnull"`
	Email     string    `bun:"email,notnull"`
	Phone     string    `bun:"phone"`
	Status    string    `bun:"status,notnull"`
	Version   int64     `bun:"version,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

type ticketModel struct {
	bun.BaseModel `bun:"table:tickets,alias:t"`

	ID         int64     `bun:"id,pk,autoincrement"`
	CustomerID int64     `bun:"customer_id,notnull"`
	Issue      string    `bun:"issue,notnull"`
	Status     string    `bun:"status,notnull"`
	Priority   string    `bun:"priority,notnull"`
	CreatedAt  time.Time `bun:"created_at,notnull"`
}

type PostgresStore struct {
	db  *bun.DB
	now func() time.Time
}

func New(cfg Config) (*PostgresStore, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithDSN(cfg.DSN),
		pgdriver.WithDialTimeout(cfg.DialTimeout),
	))
	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)

	db := bun.NewDB(sqldb, pgdialect.New())
	return &PostgresStore{db: db, now: time.Now}, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Migrate creates the two tables if absent and loads the demo fixtures into
// an empty database.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	for _, model := range []any{(*customerModel)(nil), (*ticketModel)(nil)} {
		if _, err := s.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}

	count, err := s.db.NewSelect().Model((*customerModel)(nil)).Count(ctx)
	if err != nil {
		return fmt.Errorf("count customers: %w", err)
	}
	if count > 0 {
		return nil
	}

	customers := make([]customerModel, 0, 8)
	for _, c := range storex.SeedCustomers() {
		customers = append(customers, customerFromRecord(c))
	}
	if _, err := s.db.NewInsert().Model(&customers).Exec(ctx); err != nil {
		return fmt.Errorf("seed customers: %w", err)
	}

	tickets := make([]ticketModel, 0, 8)
	for _, t := range storex.SeedTickets() {
		tickets = append(tickets, ticketModel{
			ID:         t.ID,
			CustomerID: t.CustomerID,
			Issue:      t.Issue,
			Status:     t.Status,
			Priority:   t.Priority,
			CreatedAt:  t.CreatedAt,
		})
	}
	if _, err := s.db.NewInsert().Model(&tickets).Exec(ctx); err != nil {
		return fmt.Errorf("seed tickets: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetCustomer(ctx context.Context, id int64) (*contractx.Customer, error) {
	var m customerModel
	err := s.db.NewSelect().Model(&m).Where("c.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: customer %d", storex.ErrNoRecord, id)
	}
	if err != nil {
		return nil, fmt.Errorf("select customer: %w", err)
	}
	rec := m.record()
	return &rec, nil
}

func (s *PostgresStore) ListCustomers(ctx context.Context, status string, limit int) ([]contractx.Customer, error) {
	var models []customerModel
	q := s.db.NewSelect().Model(&models).Order("c.id ASC")
	if status != "" {
		q = q.Where("c.status = ?", status)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	out := make([]contractx.Customer, 0, len(models))
	for _, m := range models {
		out = append(out, m.record())
	}
	return out, nil
}

var updatableColumns = map[string]struct{}{
	"name": {}, "email": {}, "phone": {}, "status": {},
}

func (s *PostgresStore) UpdateCustomer(ctx context.Context, id int64, fields map[string]any, expectedVersion int64) (*contractx.Customer, error) {
	q := s.db.NewUpdate().Model((*customerModel)(nil)).
		Where("id = ?", id).
		Where("version = ?", expectedVersion).
		Set("version = version + 1").
		Set("updated_at = ?", s.now().UTC())
	for key, v := range fields {
		if _, ok := updatableColumns[key]; !ok {
			return nil, fmt.Errorf("field %q is not updatable", key)
		}
		q = q.Set("? = ?", bun.Ident(key), v)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("update customer: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update customer: %w", err)
	}
	if affected == 0 {
		// Distinguish absent record from stale version.
		if _, err := s.GetCustomer(ctx, id); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: customer %d, expected version %d",
			storex.ErrVersionMismatch, id, expectedVersion)
	}
	return s.GetCustomer(ctx, id)
}

func (s *PostgresStore) CreateTicket(ctx context.Context, customerID int64, issue, priority string) (*contractx.Ticket, error) {
	if _, err := s.GetCustomer(ctx, customerID); err != nil {
		return nil, err
	}
	m := ticketModel{
		CustomerID: customerID,
		Issue:      issue,
		Status:     contractx.TicketOpen,
		Priority:   priority,
		CreatedAt:  s.now().UTC(),
	}
	if _, err := s.db.NewInsert().Model(&m).Returning("id").Exec(ctx); err != nil {
		return nil, fmt.Errorf("insert ticket: %w", err)
	}
	t := m.record()
	return &t, nil
}

func (s *PostgresStore) ListTickets(ctx context.Context, customerID int64) ([]contractx.Ticket, error) {
	if _, err := s.GetCustomer(ctx, customerID); err != nil {
		return nil, err
	}
	var models []ticketModel
	err := s.db.NewSelect().Model(&models).
		Where("t.customer_id = ?", customerID).
		Order("t.created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	out := make([]contractx.Ticket, 0, len(models))
	for _, m := range models {
		out = append(out, m.record())
	}
	return out, nil
}

func (m customerModel) record() contractx.Customer {
	return contractx.Customer{
		ID:        m.ID,
		Name:      m.Name,
		Email:     m.Email,
		Phone:     m.Phone,
		Status:    m.Status,
		Version:   m.Version,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func customerFromRecord(c contractx.Customer) customerModel {
	return customerModel{
		ID:        c.ID,
		Name:      c.Name,
		Email:     c.Email,
		Phone:     c.Phone,
		Status:    c.Status,
		Version:   c.Version,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func (m ticketModel) record() contractx.Ticket {
	return contractx.Ticket{
		ID:         m.ID,
		CustomerID: m.CustomerID,
		Issue:      m.Issue,
		Status:     m.Status,
		Priority:   m.Priority,
		CreatedAt:  m.CreatedAt,
	}
}

var _ storex.Store = (*PostgresStore)(nil)
