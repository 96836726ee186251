package pivot

import (
	"context"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/sultanlodh/Stream/internal/dto"
	"github.com/sultanlodh/Stream/internal/entity"
	"github.com/sultanlodh/Stream/internal/presentation/http/response"
	"github.com/sultanlodh/Stream/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/sultanlodh/Stream/transport/http/pivot")

// Reader loads pivot rows.
type Reader interface {
	Get(ctx context.Context, orderID int64) (*entity.OrderPivot, error)
}

// Handler exposes pivot rows over HTTP.
type Handler struct {
	svc Reader
}

// NewHandler constructs a pivot Handler.
func NewHandler(svc Reader) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/pivots")
	g.GET("/:orderId", h.getByOrderID)
}

func (h *Handler) getByOrderID(c echo.Context) error {
	b := response.New(c)

	id, err := strconv.ParseInt(c.Param("orderId"), 10, 64)
	if err != nil || id <= 0 {
		return b.WithError(errorbank.BadRequest("invalid orderId", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "pivots.getByOrderID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	row, err := h.svc.Get(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.NewPivotResponse(row)).Build()
}
