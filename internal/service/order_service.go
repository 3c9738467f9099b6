package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shop-service/internal/models"
	"shop-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrderRepository is the relational side of an order
type OrderRepository interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, error)
	UpdateOrderStatus(ctx context.Context, id int64, status models.OrderStatus, check func(*models.Order) error) (*models.Order, error)
	DeleteOrder(ctx context.Context, id int64) error
}

// OrderEventPublisher receives order lifecycle events
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event *models.OrderEvent) error
}

// OrderServiceConfig tunes the order engine
type OrderServiceConfig struct {
	// StrictTransitions rejects status changes outside the lifecycle graph
	StrictTransitions bool
	Pagination        Pagination
}

// CreateOrderRequest carries an already validated order
type CreateOrderRequest struct {
	Customer  models.CustomerInfo
	Delivery  models.DeliveryInfo
	Items     []models.OrderItem
	SessionID *string
}

// OrderService handles order business logic
type OrderService struct {
	repo      OrderRepository
	prices    PriceResolver
	publisher OrderEventPublisher
	cfg       OrderServiceConfig
	now       func() time.Time
	logger    *zap.Logger
}

// NewOrderService creates a new order service. A nil resolver prices every item at zero.
func NewOrderService(
	repo OrderRepository,
	prices PriceResolver,
	publisher OrderEventPublisher,
	cfg OrderServiceConfig,
) *OrderService {
	if prices == nil {
		prices = StaticPrices{}
	}
	return &OrderService{
		repo:      repo,
		prices:    prices,
		publisher: publisher,
		cfg:       cfg,
		now:       time.Now,
		logger:    util.GetLogger(),
	}
}

// CreateOrder validates the items and persists a new order in status created
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*models.OrderView, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	if err := models.ValidateItems(req.Items); err != nil {
		util.OrdersRejectedTotal.WithLabelValues("invalid_items").Inc()
		return nil, err
	}

	order := &models.Order{
		CustomerName:     req.Customer.Name,
		CustomerSurname:  req.Customer.Surname,
		CustomerEmail:    req.Customer.Email,
		CustomerPhone:    req.Customer.Phone,
		DeliveryCountry:  req.Delivery.Country,
		DeliveryCity:     req.Delivery.City,
		DeliveryStreet:   req.Delivery.Street,
		DeliveryBuilding: req.Delivery.Building,
		Items:            append(models.OrderItems(nil), req.Items...),
		Status:           models.OrderStatusCreated,
		SessionID:        req.SessionID,
		CreatedAt:        s.now().UTC(),
	}

	if err := s.repo.CreateOrder(ctx, order); err != nil {
		util.OrdersRejectedTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	util.OrdersCreatedTotal.Inc()
	view := s.view(order, s.resolve(ctx, order.Items.ProductIDs()))

	s.logger.Info("Order created",
		zap.Int64("order_id", order.ID),
		zap.Int("total_items", view.TotalItems),
		zap.String("total_amount", view.TotalAmount.String()))

	s.publish(ctx, models.EventTypeOrderCreated, view, "")
	return view, nil
}

// GetOrder returns one order with its derived totals
func (s *OrderService) GetOrder(ctx context.Context, id int64) (*models.OrderView, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrder")
	defer span.End()

	order, err := s.repo.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.view(order, s.resolve(ctx, order.Items.ProductIDs())), nil
}

// ListOrders returns a page of orders, newest first
func (s *OrderService) ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.OrderView, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ListOrders")
	defer span.End()

	offset, limit, err := s.cfg.Pagination.Normalize(filter.Offset, filter.Limit)
	if err != nil {
		return nil, err
	}
	filter.Offset, filter.Limit = offset, limit

	if filter.Status != nil && !filter.Status.Valid() {
		return nil, models.NewValidationError("status", "unknown status %q", *filter.Status)
	}

	orders, err := s.repo.ListOrders(ctx, filter)
	if err != nil {
		return nil, err
	}

	// one price lookup for the whole page
	var items models.OrderItems
	for _, o := range orders {
		items = append(items, o.Items...)
	}
	prices := s.resolve(ctx, items.ProductIDs())

	views := make([]models.OrderView, 0, len(orders))
	for i := range orders {
		views = append(views, *s.view(&orders[i], prices))
	}
	return views, nil
}

// UpdateStatus moves an order to status. Setting the current status again is accepted.
func (s *OrderService) UpdateStatus(ctx context.Context, id int64, status models.OrderStatus) (*models.OrderView, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateStatus")
	defer span.End()

	if !status.Valid() {
		return nil, models.NewValidationError("status", "unknown status %q", status)
	}

	var previous models.OrderStatus
	order, err := s.repo.UpdateOrderStatus(ctx, id, status, func(current *models.Order) error {
		previous = current.Status
		if s.cfg.StrictTransitions && !current.Status.CanTransitionTo(status) {
			return models.NewValidationError("status", "cannot change from %s to %s", current.Status, status)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, models.ErrValidation) {
			util.OrdersRejectedTotal.WithLabelValues("illegal_transition").Inc()
		}
		return nil, err
	}

	view := s.view(order, s.resolve(ctx, order.Items.ProductIDs()))
	if previous == status {
		return view, nil
	}

	util.OrderStatusTransitionsTotal.WithLabelValues(string(previous), string(status)).Inc()
	s.logger.Info("Order status changed",
		zap.Int64("order_id", id),
		zap.String("from", string(previous)),
		zap.String("to", string(status)))

	s.publish(ctx, models.EventTypeOrderStatusChanged, view, previous)
	return view, nil
}

// DeleteOrder hard-deletes an order
func (s *OrderService) DeleteOrder(ctx context.Context, id int64) error {
	ctx, span := util.StartSpan(ctx, "OrderService.DeleteOrder")
	defer span.End()

	if err := s.repo.DeleteOrder(ctx, id); err != nil {
		return err
	}

	util.OrdersDeletedTotal.Inc()
	s.logger.Info("Order deleted", zap.Int64("order_id", id))

	s.publish(ctx, models.EventTypeOrderDeleted, &models.OrderView{Order: models.Order{ID: id}}, "")
	return nil
}

// resolve never fails: without prices the amounts are zero
func (s *OrderService) resolve(ctx context.Context, ids []int64) map[int64]decimal.Decimal {
	prices, err := s.prices.ResolvePrices(ctx, ids)
	if err != nil {
		s.logger.Warn("Price resolution failed, pricing items at zero", zap.Error(err))
		return map[int64]decimal.Decimal{}
	}
	return prices
}

func (s *OrderService) view(order *models.Order, prices map[int64]decimal.Decimal) *models.OrderView {
	totalItems, totalAmount := models.ComputeTotals(order.Items, prices)
	return &models.OrderView{
		Order:       *order,
		TotalItems:  totalItems,
		TotalAmount: totalAmount,
	}
}

func (s *OrderService) publish(ctx context.Context, eventType string, v *models.OrderView, previous models.OrderStatus) {
	event := &models.OrderEvent{
		BaseEvent:      newBaseEvent(eventType),
		OrderID:        v.ID,
		Status:         v.Status,
		PreviousStatus: previous,
		TotalItems:     v.TotalItems,
		TotalAmount:    v.TotalAmount,
	}
	if v.SessionID != nil {
		event.SessionID = *v.SessionID
	}
	if err := s.publisher.PublishOrderEvent(ctx, event); err != nil {
		s.logger.Error("Failed to publish order event",
			zap.String("event_type", eventType),
			zap.Int64("order_id", v.ID),
			zap.Error(err))
	}
}
