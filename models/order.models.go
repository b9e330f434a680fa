package models

import (
	"encoding/json"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OrderStatus is the canonical lifecycle state of an order
type OrderStatus string

const (
	StatusPlaced         OrderStatus = "placed"
	StatusConfirmed      OrderStatus = "confirmed"
	StatusOutForDelivery OrderStatus = "out_for_delivery"
	StatusDelivered      OrderStatus = "delivered"
	StatusCancelled      OrderStatus = "cancelled"
)

// OrderStatuses lists every status in lifecycle order.
var OrderStatuses = []OrderStatus{
	StatusPlaced,
	StatusConfirmed,
	StatusOutForDelivery,
	StatusDelivered,
	StatusCancelled,
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	for _, known := range OrderStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// OrderItem is a line of an order. Name, Price and Image are snapshots taken at checkout
// and are never re-synced with the product.
type OrderItem struct {
	ProductID primitive.ObjectID `bson:"product" json:"product"`
	Name      string             `bson:"name" json:"name"`
	Price     float64            `bson:"price" json:"price"`
	Image     string             `bson:"image,omitempty" json:"image,omitempty"`
	Quantity  int                `bson:"quantity" json:"quantity"`
	Variant   int                `bson:"variant" json:"variant"`
}

// ShippingAddress is the immutable delivery address of an order
type ShippingAddress struct {
	Address    string    `bson:"address" json:"address" validate:"required"`
	City       string    `bson:"city" json:"city" validate:"required"`
	PostalCode string    `bson:"postalCode" json:"postalCode" validate:"required"`
	Country    string    `bson:"country" json:"country"`
	Location   *GeoPoint `bson:"location,omitempty" json:"location,omitempty" validate:"omitempty"`
}

// CourierState mirrors what the external courier last reported for the order.
type CourierState struct {
	TaskID        string    `bson:"taskId,omitempty" json:"taskId,omitempty"`
	VendorOrderID string    `bson:"vendorOrderId,omitempty" json:"vendorOrderId,omitempty"`
	StatusCode    string    `bson:"statusCode,omitempty" json:"statusCode,omitempty"`
	Message       string    `bson:"message,omitempty" json:"message,omitempty"`
	UpdatedAt     time.Time `bson:"updatedAt" json:"updatedAt"`
}

// StatusChange is one entry of the order's audit trail
type StatusChange struct {
	From    OrderStatus         `bson:"from,omitempty" json:"from,omitempty"`
	To      OrderStatus         `bson:"to" json:"to"`
	Actor   string              `bson:"actor" json:"actor"`
	ActorID *primitive.ObjectID `bson:"actorId,omitempty" json:"actorId,omitempty"`
	Note    string              `bson:"note,omitempty" json:"note,omitempty"`
	At      time.Time           `bson:"at" json:"at"`
}

// Order represents a user's order
type Order struct {
	ID              primitive.ObjectID  `bson:"_id,omitempty" json:"id,omitempty"`
	UserID          primitive.ObjectID  `bson:"user" json:"user"`
	OrderItems      []OrderItem         `bson:"orderItems" json:"orderItems"`
	ShippingAddress ShippingAddress     `bson:"shippingAddress" json:"shippingAddress"`
	PaymentMethod   string              `bson:"paymentMethod" json:"paymentMethod"`
	PaymentResult   *PaymentResult      `bson:"paymentResult,omitempty" json:"paymentResult,omitempty"`
	TaxPrice        float64             `bson:"taxPrice" json:"taxPrice"`
	ShippingPrice   float64             `bson:"shippingPrice" json:"shippingPrice"`
	TotalPrice      float64             `bson:"totalPrice" json:"totalPrice"`
	Distance        *float64            `bson:"distance,omitempty" json:"distance,omitempty"`
	NearestStore    string              `bson:"nearestStore,omitempty" json:"nearestStore,omitempty"`
	Status          OrderStatus         `bson:"status" json:"status"`
	PaidAt          *time.Time          `bson:"paidAt,omitempty" json:"paidAt,omitempty"`
	DeliveredAt     *time.Time          `bson:"deliveredAt,omitempty" json:"deliveredAt,omitempty"`
	DeliveryPerson  *primitive.ObjectID `bson:"deliveryPerson,omitempty" json:"deliveryPerson,omitempty"`
	ETA             string              `bson:"eta,omitempty" json:"eta,omitempty"`
	CancelReason    string              `bson:"cancelReason,omitempty" json:"cancelReason,omitempty"`
	CancelledAt     *time.Time          `bson:"cancelledAt,omitempty" json:"cancelledAt,omitempty"`
	UEngage         *CourierState       `bson:"uengage,omitempty" json:"uengage,omitempty"`
	StatusHistory   []StatusChange      `bson:"statusHistory" json:"statusHistory"`
	Version         int64               `bson:"version" json:"-"`
	CreatedAt       time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// IsPaid is derived from the payment timestamp.
func (o *Order) IsPaid() bool {
	return o.PaidAt != nil
}

// IsDelivered is derived from the status.
func (o *Order) IsDelivered() bool {
	return o.Status == StatusDelivered
}

// MarshalJSON adds the derived isPaid/isDelivered flags to the stored fields.
func (o Order) MarshalJSON() ([]byte, error) {
	type stored Order
	return json.Marshal(struct {
		stored
		IsPaid      bool `json:"isPaid"`
		IsDelivered bool `json:"isDelivered"`
	}{stored(o), o.IsPaid(), o.IsDelivered()})
}

// ItemsSubtotal is the sum of price*quantity over the snapshot lines.
func (o *Order) ItemsSubtotal() float64 {
	var total float64
	for _, item := range o.OrderItems {
		total += item.Price * float64(item.Quantity)
	}
	return total
}
