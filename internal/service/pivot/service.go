package pivot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/sultanlodh/Stream/internal/binlog"
	"github.com/sultanlodh/Stream/internal/cache"
	"github.com/sultanlodh/Stream/internal/config"
	"github.com/sultanlodh/Stream/internal/entity"
	"github.com/sultanlodh/Stream/internal/messaging"
	orderrepo "github.com/sultanlodh/Stream/internal/repository/order"
	pivotrepo "github.com/sultanlodh/Stream/internal/repository/pivot"
	"github.com/sultanlodh/Stream/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/sultanlodh/Stream/service/pivot")

// Repository is the table3 storage used by the service.
type Repository interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx bun.IDB) error) error
	UpsertOrders(ctx context.Context, db bun.IDB, rows []entity.OrderPivot) (int64, error)
	DeleteOrders(ctx context.Context, db bun.IDB, orderIDs []int64) (int64, error)
	SetStatus(ctx context.Context, db bun.IDB, orderID int64, status entity.Status) (int64, error)
	Get(ctx context.Context, orderID int64) (*entity.OrderPivot, error)
}

// OrderReader looks up source orders when a status arrives before its pivot row.
type OrderReader interface {
	GetByID(ctx context.Context, id int64) (*entity.Order, error)
}

// Result summarises one applied change.
type Result struct {
	Table    string
	Action   binlog.Action
	Handled  bool
	Affected int64
	Skipped  int
	Orders   []int64
}

// Service projects source table changes onto the pivot table.
type Service struct {
	repo      Repository
	orders    OrderReader
	cache     cache.Store
	cacheTTL  time.Duration
	publisher messaging.Client
	publish   bool
	logger    *zap.Logger
	now       func() time.Time
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository Repository
	Orders     OrderReader
	Cache      cache.Store
	Config     config.Config
	Logger     *zap.Logger
	Publisher  messaging.Client
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		repo:      p.Repository,
		orders:    p.Orders,
		cache:     p.Cache,
		cacheTTL:  p.Config.Cache.DefaultTTL,
		publisher: p.Publisher,
		publish:   p.Config.Messaging.Enabled,
		logger:    p.Logger,
		now:       time.Now,
	}
}

// Apply projects one change in a single transaction. Changes on tables other than
// table1 and table2, and status updates or deletes, are acknowledged without effect.
func (s *Service) Apply(ctx context.Context, change binlog.Change) (Result, error) {
	res := Result{Table: change.Table, Action: change.Action}

	ctx, span := serviceTracer.Start(ctx, "PivotService.Apply", trace.WithAttributes(
		attribute.String("db.table", change.Table),
		attribute.String("binlog.action", string(change.Action)),
		attribute.Int("binlog.rows", len(change.Rows)),
		attribute.String("binlog.position", change.Position.String()),
	))
	defer span.End()

	var (
		statuses map[int64]entity.Status
		err      error
	)
	switch {
	case strings.EqualFold(change.Table, entity.OrdersTable):
		res.Handled = true
		err = s.applyOrders(ctx, change, &res)
	case strings.EqualFold(change.Table, entity.OrderStatusTable) && change.Action == binlog.ActionInsert:
		res.Handled = true
		statuses, err = s.applyStatuses(ctx, change, &res)
	case strings.EqualFold(change.Table, entity.OrderStatusTable):
		s.logger.Info("ignoring status history change",
			zap.String("action", string(change.Action)),
			zap.Int("rows", len(change.Rows)),
		)
		return res, nil
	default:
		s.logger.Info("unhandled table", zap.String("schema", change.Schema), zap.String("table", change.Table))
		return res, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "apply failed")
		return res, err
	}

	s.invalidate(ctx, res.Orders)
	s.publishChanges(ctx, change, res.Orders, statuses)
	return res, nil
}

func (s *Service) applyOrders(ctx context.Context, change binlog.Change, res *Result) error {
	rows, ids, err := pivotsFromRows(change.Rows)
	if err != nil {
		return malformed(change, err)
	}

	// An update that rewrites orderId moves the pivot row to the new id.
	var moved []int64
	if change.Action == binlog.ActionUpdate {
		_, before, err := pivotsFromRows(change.Before)
		if err != nil {
			return malformed(change, fmt.Errorf("before image: %w", err))
		}
		for _, id := range before {
			if !slices.Contains(ids, id) {
				moved = append(moved, id)
			}
		}
	}
	res.Orders = append(slices.Clone(ids), moved...)

	return s.repo.RunInTx(ctx, func(ctx context.Context, tx bun.IDB) error {
		if change.Action == binlog.ActionDelete {
			n, err := s.repo.DeleteOrders(ctx, tx, ids)
			if err != nil {
				return err
			}
			res.Affected = n
			return nil
		}

		if len(moved) > 0 {
			n, err := s.repo.DeleteOrders(ctx, tx, moved)
			if err != nil {
				return err
			}
			res.Affected += n
			s.logger.Info("order id changed; dropped old pivot rows", zap.Int64s("order_ids", moved))
		}
		n, err := s.repo.UpsertOrders(ctx, tx, rows)
		if err != nil {
			return err
		}
		res.Affected += n
		return nil
	})
}

func (s *Service) applyStatuses(ctx context.Context, change binlog.Change, res *Result) (map[int64]entity.Status, error) {
	type statusRow struct {
		orderID int64
		status  entity.Status
	}
	pending := make([]statusRow, 0, len(change.Rows))
	for _, row := range change.Rows {
		orderID, err := row.Int64("orderId")
		if err != nil {
			return nil, malformed(change, err)
		}
		raw, err := row.Int64("orderStatus")
		if err != nil {
			return nil, malformed(change, err)
		}
		status := entity.Status(raw)
		if !status.Valid() {
			s.logger.Warn("skipping unknown order status", zap.Int64("order_id", orderID), zap.Int64("status", raw))
			res.Skipped++
			continue
		}
		pending = append(pending, statusRow{orderID: orderID, status: status})
	}

	applied := make(map[int64]entity.Status, len(pending))
	err := s.repo.RunInTx(ctx, func(ctx context.Context, tx bun.IDB) error {
		var affected int64
		skipped := 0
		for _, p := range pending {
			ok, err := s.setStatus(ctx, tx, p.orderID, p.status)
			if err != nil {
				return err
			}
			if !ok {
				skipped++
				continue
			}
			affected++
			applied[p.orderID] = p.status
		}
		res.Affected = affected
		res.Skipped += skipped
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, p := range pending {
		if _, ok := applied[p.orderID]; ok {
			res.Orders = appendUnique(res.Orders, p.orderID)
		}
	}
	return applied, nil
}

// setStatus writes one status, creating the pivot row from table1 when it is missing.
// It reports false when the order does not exist at all.
func (s *Service) setStatus(ctx context.Context, tx bun.IDB, orderID int64, status entity.Status) (bool, error) {
	n, err := s.repo.SetStatus(ctx, tx, orderID, status)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if errors.Is(err, orderrepo.ErrNotFound) {
		s.logger.Warn("status for unknown order skipped",
			zap.Int64("order_id", orderID),
			zap.String("status", status.Name()),
		)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("backfill order %d: %w", orderID, err)
	}

	if _, err := s.repo.UpsertOrders(ctx, tx, []entity.OrderPivot{entity.PivotFromOrder(*order)}); err != nil {
		return false, fmt.Errorf("backfill order %d: %w", orderID, err)
	}
	if _, err := s.repo.SetStatus(ctx, tx, orderID, status); err != nil {
		return false, err
	}
	s.logger.Info("backfilled pivot row", zap.Int64("order_id", orderID))
	return true, nil
}

// Get returns the pivot row of an order, consulting the cache first.
func (s *Service) Get(ctx context.Context, orderID int64) (*entity.OrderPivot, error) {
	ctx, span := serviceTracer.Start(ctx, "PivotService.Get", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	var cached entity.OrderPivot
	err := cache.GetJSON(ctx, s.cache, cacheKey(orderID), &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("pivot cache read failed", zap.Int64("order_id", orderID), zap.Error(err))
	}

	row, err := s.load(ctx, orderID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load failed")
		return nil, err
	}

	if err := cache.SetJSON(ctx, s.cache, cacheKey(orderID), row, s.cacheTTL); err != nil {
		s.logger.Warn("pivot cache write failed", zap.Int64("order_id", orderID), zap.Error(err))
	}
	return row, nil
}

// Refresh reloads the cached pivot row of an order, dropping it when the row is gone.
func (s *Service) Refresh(ctx context.Context, orderID int64) error {
	row, err := s.load(ctx, orderID)
	if errorbank.Is(err, errorbank.KindNotFound) {
		return s.cache.Delete(ctx, cacheKey(orderID))
	}
	if err != nil {
		return err
	}
	return cache.SetJSON(ctx, s.cache, cacheKey(orderID), row, s.cacheTTL)
}

func (s *Service) load(ctx context.Context, orderID int64) (*entity.OrderPivot, error) {
	row, err := s.repo.Get(ctx, orderID)
	if errors.Is(err, pivotrepo.ErrNotFound) {
		return nil, errorbank.NotFound("pivot row not found", errorbank.WithDetail("orderId", orderID))
	}
	if err != nil {
		return nil, errorbank.Internal("failed to load pivot row", errorbank.WithCause(err))
	}
	return row, nil
}

func (s *Service) invalidate(ctx context.Context, orderIDs []int64) {
	if len(orderIDs) == 0 {
		return
	}
	keys := make([]string, 0, len(orderIDs))
	for _, id := range orderIDs {
		keys = append(keys, cacheKey(id))
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.logger.Warn("pivot cache invalidation failed", zap.Int64s("order_ids", orderIDs), zap.Error(err))
	}
}

func (s *Service) publishChanges(ctx context.Context, change binlog.Change, orderIDs []int64, statuses map[int64]entity.Status) {
	if !s.publish || s.publisher == nil || len(orderIDs) == 0 {
		return
	}

	at := s.now().UTC()
	msgs := make([]messaging.Message, 0, len(orderIDs))
	for _, id := range orderIDs {
		event := PivotChangedEvent{
			OrderID:  id,
			Action:   string(change.Action),
			Source:   change.Table,
			Position: change.Position,
			At:       at,
		}
		if st, ok := statuses[id]; ok {
			event.Status = st.Name()
		}
		payload, err := json.Marshal(event)
		if err != nil {
			s.logger.Error("marshal pivot changed", zap.Error(err))
			return
		}
		msgs = append(msgs, messaging.Message{
			Key:     event.Key(),
			Value:   payload,
			Headers: map[string]string{"event": EventPivotChanged},
		})
	}

	if err := s.publisher.Publish(ctx, msgs...); err != nil {
		s.logger.Error("publish pivot changed", zap.Int("events", len(msgs)), zap.Error(err))
	}
}

// malformed reports a row image the projection cannot read.
func malformed(change binlog.Change, err error) error {
	return errorbank.Unprocessable("malformed row image",
		errorbank.WithCause(err),
		errorbank.WithDetail("table", change.Table),
		errorbank.WithDetail("action", string(change.Action)),
		errorbank.WithDetail("position", change.Position.String()),
	)
}

func cacheKey(orderID int64) string {
	return "pivot:" + strconv.FormatInt(orderID, 10)
}

func pivotsFromRows(rows []binlog.Row) ([]entity.OrderPivot, []int64, error) {
	pivots := make([]entity.OrderPivot, 0, len(rows))
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		id, err := row.Int64("orderId")
		if err != nil {
			return nil, nil, err
		}
		date, err := row.Date("orderDate")
		if err != nil {
			return nil, nil, err
		}
		pivots = append(pivots, entity.PivotFromOrder(entity.Order{
			OrderID:      id,
			OrderItem:    row.NullString("orderItem"),
			CustomerName: row.NullString("customerName"),
			OrderDate:    date,
		}))
		ids = appendUnique(ids, id)
	}
	return pivots, ids, nil
}

func appendUnique(ids []int64, id int64) []int64 {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
