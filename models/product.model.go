package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Variant is a priced sub-option of a product, addressed by its index.
type Variant struct {
	Type  string  `bson:"type" json:"type" validate:"required"`
	Value string  `bson:"value" json:"value" validate:"required"`
	Price float64 `bson:"price" json:"price" validate:"gte=0"`
}

// Product is a catalog entry. Pricing is either the flat Price or OriginalPrice/OfferPrice,
// with optional per-variant prices taking precedence.
type Product struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Name          string             `bson:"name" json:"name"`
	Description   string             `bson:"description" json:"description"`
	Price         float64            `bson:"price" json:"price"`
	OriginalPrice float64            `bson:"originalPrice,omitempty" json:"originalPrice,omitempty"`
	OfferPrice    float64            `bson:"offerPrice,omitempty" json:"offerPrice,omitempty"`
	Variants      []Variant          `bson:"variants,omitempty" json:"variants,omitempty"`
	CountInStock  int                `bson:"countInStock" json:"countInStock"`
	Images        []string           `bson:"images" json:"images"`
	CategoryID    primitive.ObjectID `bson:"category" json:"category"`
	IsActive      bool               `bson:"isActive" json:"isActive"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
	// SortPrice is UnitPrice(0), kept by the store for price ordering.
	SortPrice float64 `bson:"sortPrice" json:"-"`
}

// HasVariant reports whether index addresses an existing variant. Products without variants
// accept only index 0.
func (p *Product) HasVariant(index int) bool {
	if len(p.Variants) == 0 {
		return index == 0
	}
	return index >= 0 && index < len(p.Variants)
}

// UnitPrice resolves the price for the given variant index.
func (p *Product) UnitPrice(variant int) float64 {
	if len(p.Variants) > 0 && variant >= 0 && variant < len(p.Variants) {
		return p.Variants[variant].Price
	}
	if p.OfferPrice > 0 {
		return p.OfferPrice
	}
	return p.Price
}

// SyncSortPrice refreshes SortPrice from the current pricing fields.
func (p *Product) SyncSortPrice() {
	p.SortPrice = p.UnitPrice(0)
}

// Thumbnail is the first image, or empty.
func (p *Product) Thumbnail() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// Subcategory is embedded in a category
type Subcategory struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Name     string             `bson:"name" json:"name" validate:"required"`
	IsActive bool               `bson:"isActive" json:"isActive"`
}

// Category groups products
type Category struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Name          string             `bson:"name" json:"name"`
	IsActive      bool               `bson:"isActive" json:"isActive"`
	Subcategories []Subcategory      `bson:"subcategories,omitempty" json:"subcategories,omitempty"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
}
