package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role is the account role stored on a user.
type Role string

const (
	RoleUser            Role = "user"
	RoleAdmin           Role = "admin"
	RoleDelivery        Role = "delivery"
	RoleDeliveryPending Role = "delivery-pending"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleDelivery, RoleDeliveryPending:
		return true
	}
	return false
}

// Address represents a saved or shipping address
type Address struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Address    string             `bson:"address" json:"address" validate:"required"`
	City       string             `bson:"city" json:"city" validate:"required"`
	PostalCode string             `bson:"postalCode" json:"postalCode" validate:"required"`
	Country    string             `bson:"country" json:"country"`
	Location   *GeoPoint          `bson:"location,omitempty" json:"location,omitempty"`
	IsDefault  bool               `bson:"isDefault" json:"isDefault"`
}

// GeoPoint is a latitude/longitude pair.
type GeoPoint struct {
	Latitude  float64 `bson:"latitude" json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `bson:"longitude" json:"longitude" validate:"gte=-180,lte=180"`
}

// DeliveryApplicationStatus tracks the review state of a delivery partner application.
type DeliveryApplicationStatus string

const (
	ApplicationPending  DeliveryApplicationStatus = "pending"
	ApplicationApproved DeliveryApplicationStatus = "approved"
	ApplicationRejected DeliveryApplicationStatus = "rejected"
)

// DeliveryProfile is the embedded delivery partner application
type DeliveryProfile struct {
	VehicleType   string                    `bson:"vehicleType" json:"vehicleType"`
	LicenseNumber string                    `bson:"licenseNumber" json:"licenseNumber"`
	ServiceAreas  []string                  `bson:"serviceAreas" json:"serviceAreas"`
	Documents     []string                  `bson:"documents" json:"documents"`
	Status        DeliveryApplicationStatus `bson:"status" json:"status"`
	RejectReason  string                    `bson:"rejectReason,omitempty" json:"rejectReason,omitempty"`
	AppliedAt     time.Time                 `bson:"appliedAt" json:"appliedAt"`
	ReviewedAt    *time.Time                `bson:"reviewedAt,omitempty" json:"reviewedAt,omitempty"`
}

// User represents a user in the system
type User struct {
	ID              primitive.ObjectID   `bson:"_id,omitempty" json:"id,omitempty"`
	Username        string               `bson:"username" json:"username"`
	Email           string               `bson:"email" json:"email"`
	Phone           string               `bson:"phone" json:"phone"`
	PhoneVerified   bool                 `bson:"phoneVerified" json:"phoneVerified"`
	Password        string               `bson:"password,omitempty" json:"-"`
	Role            Role                 `bson:"role" json:"role"`
	Addresses       []Address            `bson:"addresses" json:"addresses"`
	Cart            []CartItem           `bson:"cart" json:"-"`
	Wishlist        []primitive.ObjectID `bson:"wishlist" json:"-"`
	DeliveryProfile *DeliveryProfile     `bson:"deliveryProfile,omitempty" json:"deliveryProfile,omitempty"`
	Version         int64                `bson:"version" json:"-"`
	CreatedAt       time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// IsAdmin is the legacy admin flag, derived from the role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// DefaultAddress returns the address flagged as default, if any.
func (u *User) DefaultAddress() *Address {
	for i := range u.Addresses {
		if u.Addresses[i].IsDefault {
			return &u.Addresses[i]
		}
	}
	return nil
}
