package pivot

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/sultanlodh/Stream/internal/messaging"
	servicepivot "github.com/sultanlodh/Stream/internal/service/pivot"
	"github.com/sultanlodh/Stream/internal/worker"
)

// Refresher reloads the cached projection of one order.
type Refresher interface {
	Refresh(ctx context.Context, orderID int64) error
}

// Module registers the pivot.changed handler with the worker engine.
var Module = fx.Provide(
	fx.Annotate(
		NewRegistration,
		fx.ResultTags(`group:"worker.handlers"`),
	),
)

// NewRegistration builds the worker registration for pivot change events.
func NewRegistration(svc *servicepivot.Service, logger *zap.Logger) worker.HandlerRegistration {
	return worker.HandlerRegistration{
		Event:   servicepivot.EventPivotChanged,
		Handler: NewHandler(svc, logger),
	}
}

// NewHandler keeps the pivot cache warm: every change reloads the affected order.
func NewHandler(refresher Refresher, logger *zap.Logger) messaging.Handler {
	logger = logger.Named("worker.pivot")
	return func(ctx context.Context, msg messaging.Message) error {
		var event servicepivot.PivotChangedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			// Redelivering a malformed payload cannot succeed.
			logger.Error("discarding malformed pivot event", zap.ByteString("key", msg.Key), zap.Error(err))
			return nil
		}

		if err := refresher.Refresh(ctx, event.OrderID); err != nil {
			return fmt.Errorf("refresh order %d: %w", event.OrderID, err)
		}

		logger.Debug("pivot cache refreshed",
			zap.Int64("order_id", event.OrderID),
			zap.String("source", event.Source),
			zap.String("action", event.Action),
			zap.Bool("removed", event.Removed()),
		)
		return nil
	}
}
