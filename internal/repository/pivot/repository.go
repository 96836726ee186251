package pivot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sultanlodh/Stream/internal/database"
	"github.com/sultanlodh/Stream/internal/entity"
)

var repoTracer = otel.Tracer("github.com/sultanlodh/Stream/repository/pivot")

// ErrNotFound is returned when table3 has no row for the order.
var ErrNotFound = errors.New("pivot row not found")

// Repository writes the table3 projection. Write methods take a bun.IDB so they can run
// on the pool or inside a transaction started by RunInTx.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// RunInTx runs fn in a writer transaction, committing when fn returns nil.
func (r *Repository) RunInTx(ctx context.Context, fn func(ctx context.Context, tx bun.IDB) error) error {
	return r.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, tx)
	})
}

// UpsertOrders inserts pivot rows or refreshes the order attributes of existing ones.
// Status columns are never touched.
func (r *Repository) UpsertOrders(ctx context.Context, db bun.IDB, rows []entity.OrderPivot) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	ctx, span := repoTracer.Start(ctx, "PivotRepository.UpsertOrders", trace.WithAttributes(attribute.Int("rows", len(rows))))
	defer span.End()

	res, err := db.NewInsert().
		Model(&rows).
		Column("orderId", "orderItem", "customerName", "orderDate").
		On("DUPLICATE KEY UPDATE").
		Set("orderItem = VALUES(orderItem)").
		Set("customerName = VALUES(customerName)").
		Set("orderDate = VALUES(orderDate)").
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upsert failed")
		return 0, err
	}
	return rowsAffected(res)
}

// DeleteOrders removes the pivot rows of the given orders.
func (r *Repository) DeleteOrders(ctx context.Context, db bun.IDB, orderIDs []int64) (int64, error) {
	if len(orderIDs) == 0 {
		return 0, nil
	}
	ctx, span := repoTracer.Start(ctx, "PivotRepository.DeleteOrders", trace.WithAttributes(attribute.Int64Slice("order.ids", orderIDs)))
	defer span.End()

	res, err := db.NewDelete().
		Model((*entity.OrderPivot)(nil)).
		Where("? IN (?)", bun.Ident("orderId"), bun.In(orderIDs)).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		return 0, err
	}
	return rowsAffected(res)
}

// SetStatus writes the status name into its orderStatusN column. It returns the number
// of matched rows, so 0 means the pivot row does not exist yet.
func (r *Repository) SetStatus(ctx context.Context, db bun.IDB, orderID int64, status entity.Status) (int64, error) {
	if !status.Valid() {
		return 0, fmt.Errorf("unknown status %d", int(status))
	}
	ctx, span := repoTracer.Start(ctx, "PivotRepository.SetStatus", trace.WithAttributes(
		attribute.Int64("order.id", orderID),
		attribute.Int("order.status", int(status)),
	))
	defer span.End()

	res, err := db.NewUpdate().
		Model((*entity.OrderPivot)(nil)).
		Set("? = ?", bun.Ident(status.Column()), status.Name()).
		Where("? = ?", bun.Ident("orderId"), orderID).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return 0, err
	}
	return rowsAffected(res)
}

// Get fetches the pivot row of an order from the reader.
func (r *Repository) Get(ctx context.Context, orderID int64) (*entity.OrderPivot, error) {
	ctx, span := repoTracer.Start(ctx, "PivotRepository.Get", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	row := new(entity.OrderPivot)
	err := r.reader.NewSelect().Model(row).Where("? = ?", bun.Ident("orderId"), orderID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return row, nil
}

func rowsAffected(res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
