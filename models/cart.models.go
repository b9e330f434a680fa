package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CartItem represents an item in the cart, unique per (product, variant)
type CartItem struct {
	ProductID primitive.ObjectID `bson:"product" json:"product"`
	Quantity  int                `bson:"quantity" json:"quantity"`
	Variant   int                `bson:"variant" json:"variant"`
}

// CartLine is a cart item joined with live product data for display.
type CartLine struct {
	CartItem  `bson:",inline"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Image     string  `json:"image,omitempty"`
	Available bool    `json:"available"`
}
