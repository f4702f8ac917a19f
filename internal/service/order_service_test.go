package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"storefront/internal/apperr"
	"storefront/internal/models"
	"storefront/internal/redisclient"
)

const testTTL = time.Hour

func newOrderRequest(items ...models.LineItem) *models.NewOrder {
	return &models.NewOrder{
		UserID:          42,
		Items:           items,
		ShippingAddress: models.JSONValue(`{"full_name":"Ada"}`),
	}
}

func TestPlaceOrderRejectsInvalidLines(t *testing.T) {
	tests := []struct {
		name  string
		items []models.LineItem
		want  error
	}{
		{"no items", nil, apperr.ErrEmptyOrder},
		{"zero quantity", []models.LineItem{{ProductID: 1, Quantity: 0}}, apperr.ErrInvalidQuantity},
		{"negative quantity", []models.LineItem{{ProductID: 1, Quantity: 2}, {ProductID: 2, Quantity: -1}}, apperr.ErrInvalidQuantity},
		{"bad product id", []models.LineItem{{ProductID: 0, Quantity: 1}}, apperr.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := &mockOrderStore{}
			svc := NewOrderService(st, nil, nil, testRunner(), testTTL)

			_, err := svc.PlaceOrder(context.Background(), newOrderRequest(tt.items...), "")

			assert.ErrorIs(t, err, tt.want)
			st.AssertNotCalled(t, "PlaceOrder", mock.Anything, mock.Anything)
		})
	}
}

func TestPlaceOrderMergesDuplicateLines(t *testing.T) {
	st := &mockOrderStore{}
	placed := &models.Order{ID: 9, UserID: 42, TotalPrice: decimal.NewFromInt(30)}
	st.On("PlaceOrder", mock.Anything, mock.MatchedBy(func(in *models.NewOrder) bool {
		return len(in.Items) == 2 && in.Items[0].ProductID == 5 && in.Items[0].Quantity == 3
	})).Return(placed, nil).Once()

	svc := NewOrderService(st, nil, nil, testRunner(), testTTL)
	res, err := svc.PlaceOrder(context.Background(), newOrderRequest(
		models.LineItem{ProductID: 5, Quantity: 1},
		models.LineItem{ProductID: 7, Quantity: 1},
		models.LineItem{ProductID: 5, Quantity: 2},
	), "")

	require.NoError(t, err)
	assert.Equal(t, int64(9), res.Order.ID)
	assert.False(t, res.Replayed)
	st.AssertExpectations(t)
}

func TestPlaceOrderRequiresShippingAddress(t *testing.T) {
	svc := NewOrderService(&mockOrderStore{}, nil, nil, testRunner(), testTTL)
	in := newOrderRequest(models.LineItem{ProductID: 1, Quantity: 1})
	in.ShippingAddress = nil

	_, err := svc.PlaceOrder(context.Background(), in, "")

	assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))
}

func TestPlaceOrderReplaysCompletedKey(t *testing.T) {
	st := &mockOrderStore{}
	idem := &mockIdempotency{}
	original := &models.Order{ID: 7, UserID: 42}
	idem.On("ClaimIdempotencyKey", mock.Anything, "order:42", "k1", testTTL).
		Return(redisclient.Claim{ResultID: 7}, nil)
	st.On("GetOrder", mock.Anything, int64(7)).Return(original, nil)

	svc := NewOrderService(st, idem, nil, testRunner(), testTTL)
	res, err := svc.PlaceOrder(context.Background(), newOrderRequest(models.LineItem{ProductID: 1, Quantity: 1}), "k1")

	require.NoError(t, err)
	assert.True(t, res.Replayed)
	assert.Same(t, original, res.Order)
	st.AssertNotCalled(t, "PlaceOrder", mock.Anything, mock.Anything)
}

func TestPlaceOrderKeyInFlight(t *testing.T) {
	idem := &mockIdempotency{}
	idem.On("ClaimIdempotencyKey", mock.Anything, "order:42", "k1", testTTL).
		Return(redisclient.Claim{InFlight: true}, nil)

	svc := NewOrderService(&mockOrderStore{}, idem, nil, testRunner(), testTTL)
	_, err := svc.PlaceOrder(context.Background(), newOrderRequest(models.LineItem{ProductID: 1, Quantity: 1}), "k1")

	assert.ErrorIs(t, err, apperr.ErrRequestInFlight)
}

func TestPlaceOrderClaimFailureIsUnavailable(t *testing.T) {
	idem := &mockIdempotency{}
	idem.On("ClaimIdempotencyKey", mock.Anything, "order:42", "k1", testTTL).
		Return(redisclient.Claim{}, errors.New("dial tcp: refused"))

	svc := NewOrderService(&mockOrderStore{}, idem, nil, testRunner(), testTTL)
	_, err := svc.PlaceOrder(context.Background(), newOrderRequest(models.LineItem{ProductID: 1, Quantity: 1}), "k1")

	assert.Equal(t, apperr.KindUnavailable, apperr.KindOf(err))
}

func TestPlaceOrderFailureReleasesKeyWithoutRetry(t *testing.T) {
	st := &mockOrderStore{}
	idem := &mockIdempotency{}
	idem.On("ClaimIdempotencyKey", mock.Anything, "order:42", "k1", testTTL).
		Return(redisclient.Claim{Acquired: true}, nil)
	idem.On("ReleaseIdempotencyKey", mock.Anything, "order:42", "k1").Return(nil)
	st.On("PlaceOrder", mock.Anything, mock.Anything).
		Return(nil, apperr.ErrInsufficientStock.WithMessage("Insufficient stock for Mug"))

	svc := NewOrderService(st, idem, nil, testRunner(), testTTL)
	_, err := svc.PlaceOrder(context.Background(), newOrderRequest(models.LineItem{ProductID: 1, Quantity: 5}), "k1")

	assert.ErrorIs(t, err, apperr.ErrInsufficientStock)
	assert.EqualError(t, err, "Insufficient stock for Mug")
	st.AssertNumberOfCalls(t, "PlaceOrder", 1)
	idem.AssertCalled(t, "ReleaseIdempotencyKey", mock.Anything, "order:42", "k1")
	idem.AssertNotCalled(t, "CompleteIdempotencyKey", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPlaceOrderRetriesConflict(t *testing.T) {
	st := &mockOrderStore{}
	idem := &mockIdempotency{}
	pub := &mockPublisher{}
	placed := &models.Order{ID: 11, UserID: 42}

	idem.On("ClaimIdempotencyKey", mock.Anything, "order:42", "k1", testTTL).
		Return(redisclient.Claim{Acquired: true}, nil)
	idem.On("CompleteIdempotencyKey", mock.Anything, "order:42", "k1", int64(11), testTTL).Return(nil)
	st.On("PlaceOrder", mock.Anything, mock.Anything).Return(nil, apperr.ErrConflict).Once()
	st.On("PlaceOrder", mock.Anything, mock.Anything).Return(placed, nil).Once()
	pub.On("PublishOrderPlaced", mock.Anything, placed).Return(errors.New("broker down"))

	svc := NewOrderService(st, idem, pub, testRunner(), testTTL)
	res, err := svc.PlaceOrder(context.Background(), newOrderRequest(models.LineItem{ProductID: 1, Quantity: 1}), "k1")

	require.NoError(t, err)
	assert.Equal(t, int64(11), res.Order.ID)
	st.AssertNumberOfCalls(t, "PlaceOrder", 2)
	idem.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestPlaceOrderRetryAfterUnavailableReusesRequestID(t *testing.T) {
	st := &mockOrderStore{}
	placed := &models.Order{ID: 12, UserID: 42}
	var requestIDs []string
	record := func(args mock.Arguments) {
		requestIDs = append(requestIDs, args.Get(1).(*models.NewOrder).RequestID)
	}
	st.On("PlaceOrder", mock.Anything, mock.Anything).
		Return(nil, apperr.ErrUnavailable.Wrap(context.DeadlineExceeded)).Run(record).Once()
	st.On("PlaceOrder", mock.Anything, mock.Anything).Return(placed, nil).Run(record).Once()

	svc := NewOrderService(st, nil, nil, testRunner(), testTTL)
	res, err := svc.PlaceOrder(context.Background(), newOrderRequest(models.LineItem{ProductID: 1, Quantity: 1}), "")

	require.NoError(t, err)
	assert.Equal(t, int64(12), res.Order.ID)
	require.Len(t, requestIDs, 2)
	assert.NotEmpty(t, requestIDs[0])
	assert.Equal(t, requestIDs[0], requestIDs[1])
}

func TestPlaceOrderUsesFreshRequestIDPerCall(t *testing.T) {
	st := &mockOrderStore{}
	var requestIDs []string
	st.On("PlaceOrder", mock.Anything, mock.Anything).
		Return(&models.Order{ID: 1, UserID: 42}, nil).
		Run(func(args mock.Arguments) {
			requestIDs = append(requestIDs, args.Get(1).(*models.NewOrder).RequestID)
		})

	svc := NewOrderService(st, nil, nil, testRunner(), testTTL)
	for i := 0; i < 2; i++ {
		_, err := svc.PlaceOrder(context.Background(), newOrderRequest(models.LineItem{ProductID: 1, Quantity: 1}), "")
		require.NoError(t, err)
	}

	require.Len(t, requestIDs, 2)
	assert.NotEqual(t, requestIDs[0], requestIDs[1])
}

func TestPlaceOrderSurvivesCallerCancellation(t *testing.T) {
	st := &mockOrderStore{}
	placed := &models.Order{ID: 3, UserID: 42}
	st.On("PlaceOrder", mock.MatchedBy(func(ctx context.Context) bool {
		return ctx.Err() == nil
	}), mock.Anything).Return(placed, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := NewOrderService(st, nil, nil, testRunner(), testTTL)
	res, err := svc.PlaceOrder(ctx, newOrderRequest(models.LineItem{ProductID: 1, Quantity: 1}), "")

	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Order.ID)
}

func TestGetOrderChecksOwner(t *testing.T) {
	st := &mockOrderStore{}
	st.On("GetOrder", mock.Anything, int64(5)).Return(&models.Order{ID: 5, UserID: 1}, nil)
	svc := NewOrderService(st, nil, nil, testRunner(), testTTL)

	_, err := svc.GetOrder(context.Background(), 2, 5, false)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	order, err := svc.GetOrder(context.Background(), 2, 5, true)
	require.NoError(t, err)
	assert.Equal(t, int64(5), order.ID)
}

func TestUpdateStatus(t *testing.T) {
	t.Run("unknown status", func(t *testing.T) {
		st := &mockOrderStore{}
		svc := NewOrderService(st, nil, nil, testRunner(), testTTL)

		_, err := svc.UpdateStatus(context.Background(), 1, "Lost")

		assert.ErrorIs(t, err, apperr.ErrInvalidStatus)
		st.AssertNotCalled(t, "UpdateOrderStatus", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("change is published", func(t *testing.T) {
		st := &mockOrderStore{}
		pub := &mockPublisher{}
		order := &models.Order{ID: 1, Status: models.OrderStatusShipped}
		st.On("UpdateOrderStatus", mock.Anything, int64(1), models.OrderStatusShipped).Return(order, true, nil)
		pub.On("PublishOrderStatusChanged", mock.Anything, order).Return(nil)

		svc := NewOrderService(st, nil, pub, testRunner(), testTTL)
		got, err := svc.UpdateStatus(context.Background(), 1, models.OrderStatusShipped)

		require.NoError(t, err)
		assert.Equal(t, models.OrderStatusShipped, got.Status)
		pub.AssertExpectations(t)
	})

	t.Run("same status is silent", func(t *testing.T) {
		st := &mockOrderStore{}
		pub := &mockPublisher{}
		order := &models.Order{ID: 1, Status: models.OrderStatusShipped}
		st.On("UpdateOrderStatus", mock.Anything, int64(1), models.OrderStatusShipped).Return(order, false, nil)

		svc := NewOrderService(st, nil, pub, testRunner(), testTTL)
		_, err := svc.UpdateStatus(context.Background(), 1, models.OrderStatusShipped)

		require.NoError(t, err)
		pub.AssertNotCalled(t, "PublishOrderStatusChanged", mock.Anything, mock.Anything)
	})

	t.Run("backward transition", func(t *testing.T) {
		st := &mockOrderStore{}
		st.On("UpdateOrderStatus", mock.Anything, int64(1), models.OrderStatusPending).
			Return(nil, false, apperr.ErrInvalidStatusTransition)

		svc := NewOrderService(st, nil, nil, testRunner(), testTTL)
		_, err := svc.UpdateStatus(context.Background(), 1, models.OrderStatusPending)

		assert.ErrorIs(t, err, apperr.ErrInvalidStatusTransition)
		st.AssertNumberOfCalls(t, "UpdateOrderStatus", 1)
	})
}

func TestListRecentClampsLimit(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, DefaultRecentOrders},
		{-3, DefaultRecentOrders},
		{20, 20},
		{1000, MaxRecentOrders},
	}

	for _, tt := range tests {
		st := &mockOrderStore{}
		st.On("ListRecentOrders", mock.Anything, tt.want).Return([]models.AdminOrder{}, nil)
		svc := NewOrderService(st, nil, nil, testRunner(), testTTL)

		_, err := svc.ListRecent(context.Background(), tt.in)

		require.NoError(t, err)
		st.AssertExpectations(t)
	}
}
