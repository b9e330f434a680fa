package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Otp is a one-time phone verification code. At most one live record exists per phone.
type Otp struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	Phone     string             `bson:"phone" json:"phone"`
	Code      string             `bson:"code" json:"-"`
	ExpiresAt time.Time          `bson:"expiresAt" json:"expiresAt"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// Live reports whether the code is still usable at now.
func (o *Otp) Live(now time.Time) bool {
	return now.Before(o.ExpiresAt)
}

// StoreLocation is a dispatch point used to quote delivery charges
type StoreLocation struct {
	Name     string   `bson:"name" json:"name" validate:"required"`
	Location GeoPoint `bson:"location" json:"location"`
	IsActive bool     `bson:"isActive" json:"isActive"`
}

// DeliverySettingsID is the fixed id of the delivery settings singleton.
const DeliverySettingsID = "delivery"

// DeliverySettings is the singleton delivery pricing configuration
type DeliverySettings struct {
	ID                    string          `bson:"_id" json:"-"`
	PricePerKm            float64         `bson:"pricePerKm" json:"pricePerKm"`
	BaseCharge            float64         `bson:"baseCharge" json:"baseCharge"`
	FreeDeliveryThreshold float64         `bson:"freeDeliveryThreshold" json:"freeDeliveryThreshold"`
	Stores                []StoreLocation `bson:"stores" json:"stores"`
	UpdatedAt             time.Time       `bson:"updatedAt" json:"updatedAt"`
}

// ActiveStores returns the stores that can currently dispatch.
func (s *DeliverySettings) ActiveStores() []StoreLocation {
	var active []StoreLocation
	for _, st := range s.Stores {
		if st.IsActive {
			active = append(active, st)
		}
	}
	return active
}
