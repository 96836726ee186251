package status

import (
	"github.com/labstack/echo/v4"

	"github.com/sultanlodh/Stream/internal/dto"
	"github.com/sultanlodh/Stream/internal/presentation/http/response"
	"github.com/sultanlodh/Stream/internal/processor"
	"github.com/sultanlodh/Stream/pkg/errorbank"
)

// StatusSource reports processor state.
type StatusSource interface {
	Status() processor.Status
}

// Handler serves readiness and checkpoint progress.
type Handler struct {
	src StatusSource
}

// NewHandler constructs a status Handler.
func NewHandler(src StatusSource) *Handler {
	return &Handler{src: src}
}

// Register routes with provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	e.GET("/ready", h.ready)
	e.GET("/checkpoint", h.checkpoint)
}

func (h *Handler) ready(c echo.Context) error {
	b := response.New(c)
	st := h.src.Status()
	if !st.Running {
		opts := []errorbank.Option{}
		if st.LastError != "" {
			opts = append(opts, errorbank.WithDetail("lastError", st.LastError))
		}
		return b.WithError(errorbank.Unavailable("processor is not running", opts...)).Build()
	}
	return b.WithData(map[string]string{"status": "ready"}).Build()
}

func (h *Handler) checkpoint(c echo.Context) error {
	st := h.src.Status()
	resp := dto.CheckpointResponse{
		Running:     st.Running,
		Position:    st.Position,
		LastError:   st.LastError,
		Applied:     st.Applied,
		Failed:      st.Failed,
		Checkpoints: st.Checkpoints,
	}
	if !st.Since.IsZero() {
		since := st.Since
		resp.Since = &since
	}
	if !st.LastCommit.IsZero() {
		last := st.LastCommit
		resp.LastCommit = &last
	}
	return response.New(c).WithData(resp).Build()
}
