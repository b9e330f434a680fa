package lifecycle

import (
	"strings"
	"time"

	"go-ecommerce-delivery/models"
)

// CourierEvent is one status notification from the courier.
type CourierEvent struct {
	TaskID        string
	VendorOrderID string
	StatusCode    string
	Message       string
}

// CourierOutcome describes what an event did to the order.
type CourierOutcome string

const (
	CourierApplied  CourierOutcome = "applied"
	CourierStale    CourierOutcome = "stale"
	CourierUnmapped CourierOutcome = "unmapped"
)

var courierStatuses = map[string]models.OrderStatus{
	"ACCEPTED":                models.StatusConfirmed,
	"ALLOTTED":                models.StatusOutForDelivery,
	"ARRIVED":                 models.StatusOutForDelivery,
	"DISPATCHED":              models.StatusOutForDelivery,
	"ARRIVED_AT_DOORSTEP":     models.StatusOutForDelivery,
	"RTO_INIT":                models.StatusOutForDelivery,
	"DELIVERED":               models.StatusDelivered,
	"RTO_COMPLETE":            models.StatusDelivered,
	"CANCELLED":               models.StatusCancelled,
	"SEARCHING_FOR_NEW_RIDER": models.StatusConfirmed,
}

// CourierStatus maps a courier status code to an order status.
func CourierStatus(code string) (models.OrderStatus, bool) {
	status, ok := courierStatuses[strings.ToUpper(strings.TrimSpace(code))]
	return status, ok
}

// ApplyCourierEvent reconciles a courier notification into the order. Courier metadata is
// always merged. Events arrive at least once and possibly out of order, so a mapped status is
// only applied when its rank is not lower than the current one; re-applying the same event
// leaves the status unchanged.
func ApplyCourierEvent(o *models.Order, ev CourierEvent, now time.Time) CourierOutcome {
	mergeCourier(o, ev, now)
	target, ok := CourierStatus(ev.StatusCode)
	if !ok {
		o.UpdatedAt = now
		return CourierUnmapped
	}
	if Rank(target) < Rank(o.Status) {
		o.UpdatedAt = now
		return CourierStale
	}

	switch target {
	case models.StatusDelivered:
		if o.DeliveredAt == nil {
			o.DeliveredAt = &now
		}
		o.CancelReason = ""
		o.CancelledAt = nil
	case models.StatusCancelled:
		if o.CancelReason == "" {
			o.CancelReason = courierCancelReason(ev)
		}
		if o.CancelledAt == nil {
			o.CancelledAt = &now
		}
	}

	record(o, target, ActorCourier, nil, "", now)
	return CourierApplied
}

func mergeCourier(o *models.Order, ev CourierEvent, now time.Time) {
	if o.UEngage == nil {
		o.UEngage = &models.CourierState{}
	}
	if ev.TaskID != "" {
		o.UEngage.TaskID = ev.TaskID
	}
	if ev.VendorOrderID != "" {
		o.UEngage.VendorOrderID = ev.VendorOrderID
	}
	if ev.StatusCode != "" {
		o.UEngage.StatusCode = strings.ToUpper(strings.TrimSpace(ev.StatusCode))
	}
	if ev.Message != "" {
		o.UEngage.Message = ev.Message
	}
	o.UEngage.UpdatedAt = now
}

func courierCancelReason(ev CourierEvent) string {
	if msg := strings.TrimSpace(ev.Message); msg != "" {
		return msg
	}
	return "Cancelled by courier"
}
