package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storefront/internal/apperr"
	"storefront/internal/models"
	"storefront/internal/util"
)

// Bounds for the admin recent-orders listing
const (
	DefaultRecentOrders = 5
	MaxRecentOrders     = 100
)

// OrderService handles order business logic
type OrderService struct {
	store          OrderStore
	idempotency    IdempotencyStore
	eventPublisher OrderEventPublisher
	runner         *Runner
	idempotencyTTL time.Duration
	logger         *zap.Logger
}

// NewOrderService creates a new order service. idempotency and
// eventPublisher may be nil.
func NewOrderService(
	store OrderStore,
	idempotency IdempotencyStore,
	eventPublisher OrderEventPublisher,
	runner *Runner,
	idempotencyTTL time.Duration,
) *OrderService {
	return &OrderService{
		store:          store,
		idempotency:    idempotency,
		eventPublisher: eventPublisher,
		runner:         runner,
		idempotencyTTL: idempotencyTTL,
		logger:         util.GetLogger(),
	}
}

// PlaceOrderResult is the outcome of a placement request
type PlaceOrderResult struct {
	Order *models.Order
	// Replayed is set when the order was produced by an earlier request
	// carrying the same idempotency key
	Replayed bool
}

// PlaceOrder validates the lines, then decrements stock and records the
// order atomically. Once started, placement is not interrupted by the
// caller going away.
func (s *OrderService) PlaceOrder(ctx context.Context, in *models.NewOrder, idempotencyKey string) (*PlaceOrderResult, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.PlaceOrder")
	defer span.End()

	start := time.Now()
	defer func() {
		util.OrderPlacementLatency.Observe(time.Since(start).Seconds())
	}()

	items, err := normalizeLines(in.Items)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues(apperr.KindOf(err).String()).Inc()
		return nil, err
	}
	if len(in.ShippingAddress) == 0 {
		return nil, apperr.ErrInvalidInput.WithMessage("Shipping address is required")
	}

	req := *in
	req.Items = items
	// every retry below carries the same id, so a commit whose
	// acknowledgement was lost is found again rather than repeated
	req.RequestID = uuid.New().String()

	log := util.LoggerFromContext(ctx).With(zap.Int64("user_id", req.UserID))
	scope := fmt.Sprintf("order:%d", req.UserID)
	idempotencyKey = strings.TrimSpace(idempotencyKey)
	useKey := idempotencyKey != "" && s.idempotency != nil

	if useKey {
		claim, err := s.idempotency.ClaimIdempotencyKey(ctx, scope, idempotencyKey, s.idempotencyTTL)
		if err != nil {
			log.Error("Failed to claim idempotency key", zap.Error(err))
			return nil, apperr.ErrUnavailable.Wrap(err)
		}
		if claim.InFlight {
			return nil, apperr.ErrRequestInFlight
		}
		if !claim.Acquired {
			order, err := s.getOrder(ctx, claim.ResultID)
			if err != nil {
				return nil, err
			}
			util.IdempotentReplaysTotal.Inc()
			log.Info("Duplicate order request detected",
				zap.String("idempotency_key", idempotencyKey),
				zap.Int64("order_id", order.ID))
			return &PlaceOrderResult{Order: order, Replayed: true}, nil
		}
	}

	placeCtx := context.WithoutCancel(ctx)

	var order *models.Order
	err = s.runner.Do(placeCtx, "place_order", func(ctx context.Context) error {
		var err error
		order, err = s.store.PlaceOrder(ctx, &req)
		return err
	})
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues(apperr.KindOf(err).String()).Inc()
		if useKey {
			if rerr := s.idempotency.ReleaseIdempotencyKey(placeCtx, scope, idempotencyKey); rerr != nil {
				log.Warn("Failed to release idempotency key", zap.Error(rerr))
			}
		}
		if apperr.KindOf(err) == apperr.KindInternal {
			log.Error("Order placement failed", zap.Error(err))
		}
		return nil, err
	}

	util.OrdersPlacedTotal.Inc()
	log.Info("Order placed",
		zap.Int64("order_id", order.ID),
		zap.String("total_price", order.TotalPrice.String()))

	if useKey {
		if err := s.idempotency.CompleteIdempotencyKey(placeCtx, scope, idempotencyKey, order.ID, s.idempotencyTTL); err != nil {
			log.Warn("Failed to record idempotency result", zap.Int64("order_id", order.ID), zap.Error(err))
		}
	}

	if s.eventPublisher != nil {
		if err := s.eventPublisher.PublishOrderPlaced(placeCtx, order); err != nil {
			util.EventsPublishFailedTotal.WithLabelValues(models.EventTypeOrderPlaced).Inc()
			log.Error("Failed to publish OrderPlaced event", zap.Int64("order_id", order.ID), zap.Error(err))
		}
	}

	return &PlaceOrderResult{Order: order}, nil
}

// normalizeLines rejects empty or non-positive requests and merges repeated
// products into a single line.
func normalizeLines(lines []models.LineItem) ([]models.LineItem, error) {
	if len(lines) == 0 {
		return nil, apperr.ErrEmptyOrder
	}

	merged := make([]models.LineItem, 0, len(lines))
	index := make(map[int64]int, len(lines))
	for _, l := range lines {
		if l.Quantity < 1 {
			return nil, apperr.ErrInvalidQuantity
		}
		if l.ProductID <= 0 {
			return nil, apperr.ErrInvalidInput.WithMessage("Invalid product id %d", l.ProductID)
		}
		if i, ok := index[l.ProductID]; ok {
			merged[i].Quantity += l.Quantity
			continue
		}
		index[l.ProductID] = len(merged)
		merged = append(merged, l)
	}
	return merged, nil
}

// GetOrder returns an order visible to the caller
func (s *OrderService) GetOrder(ctx context.Context, userID, orderID int64, isAdmin bool) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrder")
	defer span.End()

	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && order.UserID != userID {
		return nil, apperr.ErrForbidden
	}
	return order, nil
}

func (s *OrderService) getOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	var order *models.Order
	err := s.runner.Do(ctx, "get_order", func(ctx context.Context) error {
		var err error
		order, err = s.store.GetOrder(ctx, orderID)
		return err
	})
	return order, err
}

// UpdateStatus moves an order forward through Pending, Shipped, Delivered
func (s *OrderService) UpdateStatus(ctx context.Context, orderID int64, status string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateStatus")
	defer span.End()

	if models.StatusRank(status) < 0 {
		return nil, apperr.ErrInvalidStatus
	}

	var (
		order   *models.Order
		changed bool
	)
	err := s.runner.Do(ctx, "update_order_status", func(ctx context.Context) error {
		var err error
		order, changed, err = s.store.UpdateOrderStatus(ctx, orderID, status)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		return order, nil
	}

	util.OrderStatusTransitionsTotal.WithLabelValues(status).Inc()
	s.logger.Info("Order status updated",
		zap.Int64("order_id", orderID),
		zap.String("status", status))

	if s.eventPublisher != nil {
		if err := s.eventPublisher.PublishOrderStatusChanged(ctx, order); err != nil {
			util.EventsPublishFailedTotal.WithLabelValues(models.EventTypeOrderStatusChanged).Inc()
			s.logger.Error("Failed to publish OrderStatusChanged event", zap.Int64("order_id", orderID), zap.Error(err))
		}
	}
	return order, nil
}

// ListForUser returns the user's orders, newest first
func (s *OrderService) ListForUser(ctx context.Context, userID int64) ([]models.UserOrder, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ListForUser")
	defer span.End()

	var orders []models.UserOrder
	err := s.runner.Do(ctx, "list_user_orders", func(ctx context.Context) error {
		var err error
		orders, err = s.store.ListOrdersByUser(ctx, userID)
		return err
	})
	return orders, err
}

// ListRecent returns the latest orders across all users
func (s *OrderService) ListRecent(ctx context.Context, limit int) ([]models.AdminOrder, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ListRecent")
	defer span.End()

	switch {
	case limit <= 0:
		limit = DefaultRecentOrders
	case limit > MaxRecentOrders:
		limit = MaxRecentOrders
	}

	var orders []models.AdminOrder
	err := s.runner.Do(ctx, "list_recent_orders", func(ctx context.Context) error {
		var err error
		orders, err = s.store.ListRecentOrders(ctx, limit)
		return err
	})
	return orders, err
}
