// Package lifecycle is the order state machine. Every function mutates the given order in
// memory only; persisting the result (with a version check) is the caller's job.
package lifecycle

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go-ecommerce-delivery/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Actor identifies who triggers a transition.
type Actor string

const (
	ActorAdmin    Actor = "admin"
	ActorDelivery Actor = "delivery"
	ActorCustomer Actor = "customer"
	ActorCourier  Actor = "courier"
)

var (
	ErrUnknownStatus      = errors.New("unknown order status")
	ErrTerminal           = errors.New("order is already delivered or cancelled")
	ErrNotDeliveryPartner = errors.New("user is not an approved delivery partner")
	ErrNotAssigned        = errors.New("you are not the assigned delivery partner for this order")
	ErrNotOwner           = errors.New("order does not belong to this user")
	ErrReasonRequired     = errors.New("cancellation reason is required")
	ErrAlreadyDelivered   = errors.New("delivered orders cannot be cancelled")
	ErrAlreadyCancelled   = errors.New("order is already cancelled")
	ErrOutForDelivery     = errors.New("order is out for delivery and can no longer be cancelled")
)

// Transition defines a valid status change and who can perform it
type Transition struct {
	From  models.OrderStatus
	To    models.OrderStatus
	Actor Actor
}

// validTransitions covers admin, delivery partner and customer actions. Courier events are
// governed by rank instead (see ApplyCourierEvent).
var validTransitions = []Transition{
	// Admin may move any open order forward, back to confirmed, or cancel it
	{From: models.StatusPlaced, To: models.StatusConfirmed, Actor: ActorAdmin},
	{From: models.StatusPlaced, To: models.StatusOutForDelivery, Actor: ActorAdmin},
	{From: models.StatusPlaced, To: models.StatusDelivered, Actor: ActorAdmin},
	{From: models.StatusPlaced, To: models.StatusCancelled, Actor: ActorAdmin},
	{From: models.StatusConfirmed, To: models.StatusConfirmed, Actor: ActorAdmin},
	{From: models.StatusConfirmed, To: models.StatusOutForDelivery, Actor: ActorAdmin},
	{From: models.StatusConfirmed, To: models.StatusDelivered, Actor: ActorAdmin},
	{From: models.StatusConfirmed, To: models.StatusCancelled, Actor: ActorAdmin},
	{From: models.StatusOutForDelivery, To: models.StatusConfirmed, Actor: ActorAdmin},
	{From: models.StatusOutForDelivery, To: models.StatusOutForDelivery, Actor: ActorAdmin},
	{From: models.StatusOutForDelivery, To: models.StatusDelivered, Actor: ActorAdmin},
	{From: models.StatusOutForDelivery, To: models.StatusCancelled, Actor: ActorAdmin},
	// Assigned delivery partner hands the order over
	{From: models.StatusConfirmed, To: models.StatusDelivered, Actor: ActorDelivery},
	{From: models.StatusOutForDelivery, To: models.StatusDelivered, Actor: ActorDelivery},
	// Customer may cancel until the order leaves the store
	{From: models.StatusPlaced, To: models.StatusCancelled, Actor: ActorCustomer},
	{From: models.StatusConfirmed, To: models.StatusCancelled, Actor: ActorCustomer},
}

type transitionKey struct {
	From  models.OrderStatus
	To    models.OrderStatus
	Actor Actor
}

var transitionMap = func() map[transitionKey]bool {
	m := make(map[transitionKey]bool, len(validTransitions))
	for _, t := range validTransitions {
		m[transitionKey{t.From, t.To, t.Actor}] = true
	}
	return m
}()

// TransitionError reports a status change the actor is not allowed to make.
type TransitionError struct {
	From  models.OrderStatus
	To    models.OrderStatus
	Actor Actor
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition: %s -> %s is not allowed for %s (valid next statuses: %s)",
		e.From, e.To, e.Actor, describeValidFrom(e.From, e.Actor))
}

// IsTerminal reports whether no further admin, customer or delivery transition is accepted.
func IsTerminal(status models.OrderStatus) bool {
	return status == models.StatusDelivered || status == models.StatusCancelled
}

// Rank orders statuses for courier reconciliation; an event never lowers the rank.
func Rank(status models.OrderStatus) int {
	switch status {
	case models.StatusPlaced:
		return 0
	case models.StatusConfirmed:
		return 1
	case models.StatusOutForDelivery:
		return 2
	case models.StatusCancelled:
		return 3
	case models.StatusDelivered:
		return 4
	}
	return -1
}

// ValidTransitionsFrom returns the statuses actor may move an order to from status.
func ValidTransitionsFrom(status models.OrderStatus, actor Actor) []models.OrderStatus {
	var nexts []models.OrderStatus
	for _, t := range validTransitions {
		if t.From == status && t.Actor == actor {
			nexts = append(nexts, t.To)
		}
	}
	return nexts
}

// CanTransition checks if actor can move an order from one status to another.
func CanTransition(from, to models.OrderStatus, actor Actor) error {
	if !to.Valid() {
		return ErrUnknownStatus
	}
	if IsTerminal(from) {
		return ErrTerminal
	}
	if transitionMap[transitionKey{from, to, actor}] {
		return nil
	}
	return &TransitionError{From: from, To: to, Actor: actor}
}

func describeValidFrom(status models.OrderStatus, actor Actor) string {
	nexts := ValidTransitionsFrom(status, actor)
	if len(nexts) == 0 {
		return "none"
	}
	names := make([]string, len(nexts))
	for i, s := range nexts {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

// AdminSetStatus applies an admin status update with its side effects.
func AdminSetStatus(o *models.Order, target models.OrderStatus, reason string, adminID primitive.ObjectID, now time.Time) error {
	if err := CanTransition(o.Status, target, ActorAdmin); err != nil {
		return err
	}

	switch target {
	case models.StatusConfirmed:
		if o.PaidAt == nil {
			o.PaidAt = &now
		}
	case models.StatusDelivered:
		o.DeliveredAt = &now
	case models.StatusCancelled:
		o.CancelReason = strings.TrimSpace(reason)
		o.CancelledAt = &now
		o.DeliveryPerson = nil
		o.ETA = ""
	}

	record(o, target, ActorAdmin, &adminID, strings.TrimSpace(reason), now)
	return nil
}

// AssignDeliveryPerson attaches a delivery partner and confirms the order.
func AssignDeliveryPerson(o *models.Order, partner *models.User, eta string, adminID primitive.ObjectID, now time.Time) error {
	if partner == nil || partner.Role != models.RoleDelivery {
		return ErrNotDeliveryPartner
	}
	if IsTerminal(o.Status) {
		return ErrTerminal
	}
	if o.Status != models.StatusPlaced && o.Status != models.StatusConfirmed {
		return &TransitionError{From: o.Status, To: models.StatusConfirmed, Actor: ActorAdmin}
	}

	id := partner.ID
	o.DeliveryPerson = &id
	o.ETA = strings.TrimSpace(eta)
	record(o, models.StatusConfirmed, ActorAdmin, &adminID, "assigned to "+partner.Username, now)
	return nil
}

// MarkDelivered is the assigned partner's hand-over.
func MarkDelivered(o *models.Order, partnerID primitive.ObjectID, now time.Time) error {
	if IsTerminal(o.Status) {
		return ErrTerminal
	}
	if o.DeliveryPerson == nil || *o.DeliveryPerson != partnerID {
		return ErrNotAssigned
	}
	if err := CanTransition(o.Status, models.StatusDelivered, ActorDelivery); err != nil {
		return err
	}

	o.DeliveredAt = &now
	record(o, models.StatusDelivered, ActorDelivery, &partnerID, "", now)
	return nil
}

// CustomerCancel cancels an order on behalf of its owner.
func CustomerCancel(o *models.Order, userID primitive.ObjectID, reason string, now time.Time) error {
	if o.UserID != userID {
		return ErrNotOwner
	}
	switch o.Status {
	case models.StatusDelivered:
		return ErrAlreadyDelivered
	case models.StatusCancelled:
		return ErrAlreadyCancelled
	case models.StatusOutForDelivery:
		return ErrOutForDelivery
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrReasonRequired
	}
	if err := CanTransition(o.Status, models.StatusCancelled, ActorCustomer); err != nil {
		return err
	}

	o.CancelReason = reason
	o.CancelledAt = &now
	record(o, models.StatusCancelled, ActorCustomer, &userID, reason, now)
	return nil
}

// record moves the order to status and appends to the audit trail unless nothing changed
// and there is nothing to note.
func record(o *models.Order, status models.OrderStatus, actor Actor, actorID *primitive.ObjectID, note string, now time.Time) {
	o.UpdatedAt = now
	if o.Status == status && note == "" {
		return
	}
	o.StatusHistory = append(o.StatusHistory, models.StatusChange{
		From:    o.Status,
		To:      status,
		Actor:   string(actor),
		ActorID: actorID,
		Note:    note,
		At:      now,
	})
	o.Status = status
}
