package seeder

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/sultanlodh/Stream/internal/config"
	"github.com/sultanlodh/Stream/internal/database"
	"github.com/sultanlodh/Stream/internal/entity"
)

var accountPart = regexp.MustCompile(`^[A-Za-z0-9_.%-]{1,32}$`)

// Seeder performs database seeding for local/dev setups.
type Seeder struct {
	db     bun.IDB
	logger *zap.Logger
}

// Module provides the seeder to Fx.
var Module = fx.Provide(New)

// New constructs a Seeder backed by the primary database connection.
func New(conns *database.Connections, logger *zap.Logger) *Seeder {
	return &Seeder{db: conns.Writer, logger: logger}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SampleOrders returns the demonstration rows of table1.
func SampleOrders() []entity.Order {
	return []entity.Order{
		{OrderID: 1, OrderItem: entity.StringPtr("Laptop"), CustomerName: entity.StringPtr("Alice"), OrderDate: day(2024, time.May, 1)},
		{OrderID: 2, OrderItem: entity.StringPtr("Phone"), CustomerName: entity.StringPtr("Bob"), OrderDate: day(2024, time.May, 2)},
		{OrderID: 3, OrderItem: entity.StringPtr("Headphones"), CustomerName: entity.StringPtr("Carol"), OrderDate: day(2024, time.May, 3)},
	}
}

// SampleStatuses returns the demonstration status history of table2.
func SampleStatuses() []entity.OrderStatusEvent {
	return []entity.OrderStatusEvent{
		{ID: 1, OrderID: 1, OrderStatus: entity.StatusOrdered, AddDate: day(2024, time.May, 1)},
		{ID: 2, OrderID: 1, OrderStatus: entity.StatusProcessing, AddDate: day(2024, time.May, 2)},
		{ID: 3, OrderID: 2, OrderStatus: entity.StatusOrdered, AddDate: day(2024, time.May, 2)},
		{ID: 4, OrderID: 1, OrderStatus: entity.StatusShipped, AddDate: day(2024, time.May, 3)},
		{ID: 5, OrderID: 3, OrderStatus: entity.StatusOrdered, AddDate: day(2024, time.May, 3)},
	}
}

// Orders seeds example orders if they are missing.
func (s *Seeder) Orders(ctx context.Context) error {
	samples := SampleOrders()
	res, err := s.db.NewInsert().Model(&samples).Ignore().Exec(ctx)
	if err != nil {
		return fmt.Errorf("seed %s: %w", entity.OrdersTable, err)
	}
	s.logSeeded(entity.OrdersTable, res)
	return nil
}

// Statuses seeds the status history. Orders must be seeded first because of the foreign key.
func (s *Seeder) Statuses(ctx context.Context) error {
	samples := SampleStatuses()
	res, err := s.db.NewInsert().Model(&samples).Ignore().Exec(ctx)
	if err != nil {
		return fmt.Errorf("seed %s: %w", entity.OrderStatusTable, err)
	}
	s.logSeeded(entity.OrderStatusTable, res)
	return nil
}

// All seeds table1 then table2. table3 is left to the processor.
func (s *Seeder) All(ctx context.Context) error {
	if err := s.Orders(ctx); err != nil {
		return err
	}
	return s.Statuses(ctx)
}

// ReplicaUser creates the replication account. REPLICATION CLIENT is granted next to
// REPLICATION SLAVE so the account can read the master status.
func (s *Seeder) ReplicaUser(ctx context.Context, replica config.Replica) error {
	if !accountPart.MatchString(replica.User) {
		return fmt.Errorf("invalid replica user %q", replica.User)
	}
	if !accountPart.MatchString(replica.Host) {
		return fmt.Errorf("invalid replica host %q", replica.Host)
	}
	if replica.Password == "" {
		return fmt.Errorf("replica password must not be empty")
	}

	statements := []struct {
		query string
		args  []any
	}{
		{"CREATE USER IF NOT EXISTS ?@? IDENTIFIED BY ?", []any{replica.User, replica.Host, replica.Password}},
		{"GRANT REPLICATION SLAVE, REPLICATION CLIENT ON *.* TO ?@?", []any{replica.User, replica.Host}},
		{"FLUSH PRIVILEGES", nil},
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt.query, stmt.args...); err != nil {
			return fmt.Errorf("bootstrap replica user: %w", err)
		}
	}

	if s.logger != nil {
		s.logger.Info("replica user ready", zap.String("user", replica.User), zap.String("host", replica.Host))
	}
	return nil
}

func (s *Seeder) logSeeded(table string, res interface{ RowsAffected() (int64, error) }) {
	if s.logger == nil {
		return
	}
	n, _ := res.RowsAffected()
	s.logger.Info("seeded rows", zap.String("table", table), zap.Int64("inserted", n))
}
