package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go-ecommerce-delivery/cache"
	"go-ecommerce-delivery/lifecycle"
	"go-ecommerce-delivery/logger"
	"go-ecommerce-delivery/models"
	"go-ecommerce-delivery/store"
	"go-ecommerce-delivery/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const adminOrderPageSize = 20

// CancelInput is a customer cancellation
type CancelInput struct {
	Reason string `json:"reason" validate:"required"`
}

// StatusInput is an admin status update
type StatusInput struct {
	Status string `json:"status" validate:"required"`
	Reason string `json:"reason"`
}

// AssignInput attaches a delivery partner
type AssignInput struct {
	DeliveryPersonID string `json:"deliveryPersonId" validate:"required"`
	ETA              string `json:"eta"`
}

// OrderPage is one page of the admin order listing
type OrderPage struct {
	Orders []models.Order `json:"orders"`
	Page   int64          `json:"page"`
	Pages  int64          `json:"pages"`
	Total  int64          `json:"total"`
}

// CourierNotification is a decoded courier webhook payload.
type CourierNotification struct {
	TaskID        string
	VendorOrderID string
	StatusCode    string
	Message       string
}

type OrderService struct {
	orders    store.Orders
	users     store.Users
	idem      cache.IdempotencyStore
	metrics   Recorder
	dedupeTTL time.Duration
	now       func() time.Time
}

// lifecycleError translates state machine errors into client errors.
func lifecycleError(err error) error {
	var te *lifecycle.TransitionError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, lifecycle.ErrUnknownStatus):
		return utils.NewValidation("Invalid status")
	case errors.Is(err, lifecycle.ErrNotDeliveryPartner):
		return utils.NewValidation("Selected user is not a delivery partner")
	case errors.Is(err, lifecycle.ErrReasonRequired):
		return utils.NewValidation("Cancellation reason is required")
	case errors.Is(err, lifecycle.ErrNotAssigned):
		return utils.NewForbidden("You are not assigned to this order")
	case errors.Is(err, lifecycle.ErrNotOwner):
		return utils.NewForbidden("Not authorized to access this order")
	case errors.Is(err, lifecycle.ErrTerminal),
		errors.Is(err, lifecycle.ErrAlreadyDelivered),
		errors.Is(err, lifecycle.ErrAlreadyCancelled),
		errors.Is(err, lifecycle.ErrOutForDelivery),
		errors.As(err, &te):
		return utils.NewInvalidState(capitalize(err.Error()))
	}
	return err
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// transition loads the order, applies fn and saves it with a version check. It records a
// metric when the status changed.
func (s *OrderService) transition(ctx context.Context, id primitive.ObjectID, actor lifecycle.Actor, fn func(*models.Order) error) (*models.Order, error) {
	var before models.OrderStatus
	o, err := mutate(
		func() (*models.Order, error) { return s.orders.FindByID(ctx, id) },
		func(o *models.Order) error {
			before = o.Status
			return lifecycleError(fn(o))
		},
		func(o *models.Order) error { return s.orders.Save(ctx, o) },
	)
	if err != nil {
		return nil, storeErr(err, "Order not found")
	}
	if o.Status != before {
		s.metrics.OrderTransition(string(actor), string(o.Status))
		logger.FromContext(ctx).Info("order status changed",
			zap.String("order_id", o.ID.Hex()),
			zap.String("actor", string(actor)),
			zap.String("from", string(before)),
			zap.String("to", string(o.Status)),
		)
	}
	return o, nil
}

// ListForUser returns the customer's orders, newest first.
func (s *OrderService) ListForUser(ctx context.Context, userID primitive.ObjectID) ([]models.Order, error) {
	orders, err := s.orders.ListByUser(ctx, userID)
	return orders, storeErr(err, "")
}

// GetForUser returns one of the customer's orders.
func (s *OrderService) GetForUser(ctx context.Context, userID, orderID primitive.ObjectID) (*models.Order, error) {
	o, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, storeErr(err, "Order not found")
	}
	if o.UserID != userID {
		return nil, utils.NewForbidden("Not authorized to access this order")
	}
	return o, nil
}

// Cancel cancels the customer's own order before it leaves the store.
func (s *OrderService) Cancel(ctx context.Context, userID, orderID primitive.ObjectID, in CancelInput) (*models.Order, error) {
	return s.transition(ctx, orderID, lifecycle.ActorCustomer, func(o *models.Order) error {
		return lifecycle.CustomerCancel(o, userID, in.Reason, s.now())
	})
}

// AdminList pages through every order, optionally filtered by status.
func (s *OrderService) AdminList(ctx context.Context, status, page string) (*OrderPage, error) {
	filter := store.OrderFilter{Page: parsePage(page), PageSize: adminOrderPageSize}
	if status != "" {
		st := models.OrderStatus(status)
		if !st.Valid() {
			return nil, utils.NewValidation("Invalid status")
		}
		filter.Status = st
	}
	orders, total, err := s.orders.List(ctx, filter)
	if err != nil {
		return nil, storeErr(err, "")
	}
	return &OrderPage{
		Orders: orders,
		Page:   filter.Page,
		Pages:  (total + adminOrderPageSize - 1) / adminOrderPageSize,
		Total:  total,
	}, nil
}

func (s *OrderService) AdminGet(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	o, err := s.orders.FindByID(ctx, id)
	return o, storeErr(err, "Order not found")
}

// AdminSetStatus moves an order to any status the admin table allows.
func (s *OrderService) AdminSetStatus(ctx context.Context, adminID, orderID primitive.ObjectID, in StatusInput) (*models.Order, error) {
	target := models.OrderStatus(strings.TrimSpace(in.Status))
	return s.transition(ctx, orderID, lifecycle.ActorAdmin, func(o *models.Order) error {
		return lifecycle.AdminSetStatus(o, target, in.Reason, adminID, s.now())
	})
}

// AdminMarkDelivered is the admin shortcut for setting status delivered.
func (s *OrderService) AdminMarkDelivered(ctx context.Context, adminID, orderID primitive.ObjectID) (*models.Order, error) {
	return s.AdminSetStatus(ctx, adminID, orderID, StatusInput{Status: string(models.StatusDelivered)})
}

// AssignDelivery attaches a delivery partner with an ETA and confirms the order.
func (s *OrderService) AssignDelivery(ctx context.Context, adminID, orderID primitive.ObjectID, in AssignInput) (*models.Order, error) {
	partnerID, err := ParseID(in.DeliveryPersonID, "delivery person")
	if err != nil {
		return nil, err
	}
	partner, err := s.users.FindByID(ctx, partnerID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, utils.NewValidation("Selected user is not a delivery partner")
	}
	if err != nil {
		return nil, storeErr(err, "")
	}
	return s.transition(ctx, orderID, lifecycle.ActorAdmin, func(o *models.Order) error {
		return lifecycle.AssignDeliveryPerson(o, partner, in.ETA, adminID, s.now())
	})
}

// PartnerDeliver marks an assigned order as handed over.
func (s *OrderService) PartnerDeliver(ctx context.Context, partnerID, orderID primitive.ObjectID) (*models.Order, error) {
	return s.transition(ctx, orderID, lifecycle.ActorDelivery, func(o *models.Order) error {
		return lifecycle.MarkDelivered(o, partnerID, s.now())
	})
}

func courierKey(n CourierNotification) string {
	return strings.Join([]string{
		strings.TrimSpace(n.VendorOrderID),
		strings.ToUpper(strings.TrimSpace(n.StatusCode)),
		strings.TrimSpace(n.TaskID),
	}, "|")
}

// HandleCourierEvent reconciles a courier notification into its order. It never fails:
// the courier retries on anything but success, so problems are logged and counted instead.
// It returns the outcome recorded in metrics.
func (s *OrderService) HandleCourierEvent(ctx context.Context, n CourierNotification) string {
	log := logger.FromContext(ctx).With(
		zap.String("vendor_order_id", n.VendorOrderID),
		zap.String("status_code", n.StatusCode),
		zap.String("task_id", n.TaskID),
	)
	outcome := s.handleCourierEvent(ctx, log, n)
	s.metrics.CourierEvent(outcome)
	return outcome
}

func (s *OrderService) handleCourierEvent(ctx context.Context, log *zap.Logger, n CourierNotification) string {
	if strings.TrimSpace(n.VendorOrderID) == "" || strings.TrimSpace(n.StatusCode) == "" {
		log.Warn("courier event missing vendor_order_id or status_code")
		return "invalid"
	}

	key := courierKey(n)
	if s.idem != nil {
		first, err := s.idem.MarkProcessed(ctx, key, s.dedupeTTL)
		if err != nil {
			log.Warn("idempotency check failed, processing anyway", zap.Error(err))
		} else if !first {
			log.Debug("duplicate courier event")
			return "duplicate"
		}
	}

	o, err := s.resolveCourierOrder(ctx, n.VendorOrderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Warn("courier event for unknown order")
			return "unresolved"
		}
		s.forget(ctx, log, key)
		log.Error("failed to load order for courier event", zap.Error(err))
		return "error"
	}

	var outcome lifecycle.CourierOutcome
	var before models.OrderStatus
	ev := lifecycle.CourierEvent{
		TaskID:        n.TaskID,
		VendorOrderID: n.VendorOrderID,
		StatusCode:    n.StatusCode,
		Message:       n.Message,
	}
	saved, err := mutate(
		func() (*models.Order, error) { return s.orders.FindByID(ctx, o.ID) },
		func(o *models.Order) error {
			before = o.Status
			outcome = lifecycle.ApplyCourierEvent(o, ev, s.now())
			return nil
		},
		func(o *models.Order) error { return s.orders.Save(ctx, o) },
	)
	if err != nil {
		s.forget(ctx, log, key)
		log.Error("failed to apply courier event", zap.String("order_id", o.ID.Hex()), zap.Error(err))
		return "error"
	}

	if saved.Status != before {
		s.metrics.OrderTransition(string(lifecycle.ActorCourier), string(saved.Status))
	}
	log.Info("courier event processed",
		zap.String("order_id", saved.ID.Hex()),
		zap.String("outcome", string(outcome)),
		zap.String("status", string(saved.Status)),
	)
	return string(outcome)
}

// resolveCourierOrder accepts either our order id or the courier's vendor order id.
func (s *OrderService) resolveCourierOrder(ctx context.Context, vendorOrderID string) (*models.Order, error) {
	vendorOrderID = strings.TrimSpace(vendorOrderID)
	if id, err := primitive.ObjectIDFromHex(vendorOrderID); err == nil {
		o, err := s.orders.FindByID(ctx, id)
		if err == nil || !errors.Is(err, store.ErrNotFound) {
			return o, err
		}
	}
	return s.orders.FindByVendorOrderID(ctx, vendorOrderID)
}

func (s *OrderService) forget(ctx context.Context, log *zap.Logger, key string) {
	if s.idem == nil {
		return
	}
	if err := s.idem.Forget(ctx, key); err != nil {
		log.Warn("failed to release idempotency key", zap.Error(err))
	}
}
