package pivot

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sultanlodh/Stream/internal/dto"
	"github.com/sultanlodh/Stream/internal/entity"
	"github.com/sultanlodh/Stream/internal/presentation/http/response"
	"github.com/sultanlodh/Stream/pkg/errorbank"
)

type stubReader map[int64]*entity.OrderPivot

func (s stubReader) Get(_ context.Context, id int64) (*entity.OrderPivot, error) {
	if id == 500 {
		return nil, errors.New("connection refused")
	}
	row, ok := s[id]
	if !ok {
		return nil, errorbank.NotFound("pivot row not found")
	}
	return row, nil
}

func serve(t *testing.T, reader Reader, path string) (*httptest.ResponseRecorder, response.Envelope) {
	t.Helper()
	e := echo.New()
	Register(e, NewHandler(reader))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var env response.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func TestGetPivot(t *testing.T) {
	row := entity.PivotFromOrder(entity.Order{
		OrderID:      1,
		OrderItem:    entity.StringPtr("Laptop"),
		CustomerName: entity.StringPtr("Alice"),
		OrderDate:    time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	})
	row.OrderStatus1 = entity.StatusOrdered.Name()
	row.OrderStatus2 = entity.StatusProcessing.Name()

	rec, env := serve(t, stubReader{1: &row}, "/pivots/1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)

	raw, err := json.Marshal(env.Data)
	require.NoError(t, err)
	var got dto.PivotResponse
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, int64(1), got.OrderID)
	assert.Equal(t, "2024-05-01", got.OrderDate)
	assert.Equal(t, "ordered", got.OrderStatus1)
	assert.Equal(t, "0", got.OrderStatus3)
	assert.Equal(t, []string{"ordered", "Processing"}, got.Reached)
}

func TestGetPivotErrors(t *testing.T) {
	for _, tc := range []struct {
		path   string
		status int
		kind   errorbank.Kind
	}{
		{"/pivots/abc", http.StatusBadRequest, errorbank.KindBadRequest},
		{"/pivots/0", http.StatusBadRequest, errorbank.KindBadRequest},
		{"/pivots/2", http.StatusNotFound, errorbank.KindNotFound},
		{"/pivots/500", http.StatusInternalServerError, errorbank.KindInternal},
	} {
		rec, env := serve(t, stubReader{}, tc.path)
		assert.Equal(t, tc.status, rec.Code, tc.path)
		assert.False(t, env.Success)
		require.NotNil(t, env.Error, tc.path)
		assert.Equal(t, string(tc.kind), env.Error.Kind, tc.path)
	}
}
