// Package store is the document persistence layer. Every entity has an interface with a
// MongoDB implementation and an in-memory implementation that behave the same way.
package store

import (
	"context"
	"errors"
	"time"

	"go-ecommerce-delivery/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound  = errors.New("document not found")
	ErrDuplicate = errors.New("duplicate key")
	// ErrConflict means the document changed since it was read.
	ErrConflict = errors.New("document was modified concurrently")
)

// Product listing sort keys.
const (
	SortNewest    = "newest"
	SortPriceLow  = "price-low"
	SortPriceHigh = "price-high"
	SortName      = "name"
)

// ProductQuery filters the product listing.
type ProductQuery struct {
	Keyword    string
	CategoryID *primitive.ObjectID
	ActiveOnly bool
	Sort       string
	Skip       int64
	Limit      int64
}

// OrderFilter filters the admin order listing. Zero values mean no filter.
type OrderFilter struct {
	Status   models.OrderStatus
	Page     int64
	PageSize int64
}

// BucketUnit is the truncation unit of a sales bucket.
type BucketUnit string

const (
	UnitDay   BucketUnit = "day"
	UnitWeek  BucketUnit = "week"
	UnitMonth BucketUnit = "month"
)

// SalesBucket aggregates paid orders created in [Start, next Start).
type SalesBucket struct {
	Start   time.Time
	Orders  int64
	Revenue float64
}

// Users persists accounts with their embedded cart, wishlist, addresses and delivery profile.
type Users interface {
	Create(ctx context.Context, u *models.User) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	// FindByLogin matches the identifier against email, username or phone.
	FindByLogin(ctx context.Context, identifier string) (*models.User, error)
	FindByPhone(ctx context.Context, phone string) (*models.User, error)
	// Save replaces the user if its version is unchanged and bumps the version.
	Save(ctx context.Context, u *models.User) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	ListByRole(ctx context.Context, role models.Role) ([]models.User, error)
	CountByRole(ctx context.Context, role models.Role) (int64, error)
	EachByRole(ctx context.Context, role models.Role, fn func(*models.User) error) error
}

type Products interface {
	Create(ctx context.Context, p *models.Product) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Product, error)
	Save(ctx context.Context, p *models.Product) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	List(ctx context.Context, q ProductQuery) ([]models.Product, int64, error)
	// Similar returns active products of the category other than excludeID.
	Similar(ctx context.Context, categoryID, excludeID primitive.ObjectID, limit int64) ([]models.Product, error)
	Each(ctx context.Context, fn func(*models.Product) error) error
}

type Categories interface {
	Create(ctx context.Context, c *models.Category) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Category, error)
	// FindByName is a case-insensitive exact match.
	FindByName(ctx context.Context, name string) (*models.Category, error)
	List(ctx context.Context, activeOnly bool) ([]models.Category, error)
	Save(ctx context.Context, c *models.Category) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type Orders interface {
	Create(ctx context.Context, o *models.Order) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error)
	FindByVendorOrderID(ctx context.Context, vendorOrderID string) (*models.Order, error)
	// Save replaces the order if its version is unchanged and bumps the version.
	Save(ctx context.Context, o *models.Order) error
	ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Order, error)
	ListByDeliveryPerson(ctx context.Context, partnerID primitive.ObjectID) ([]models.Order, error)
	List(ctx context.Context, f OrderFilter) ([]models.Order, int64, error)
	Count(ctx context.Context) (int64, error)
	// PaidRevenue sums totalPrice of paid orders created in [from, to).
	PaidRevenue(ctx context.Context, from, to time.Time) (float64, error)
	SalesBuckets(ctx context.Context, unit BucketUnit, from time.Time, loc *time.Location) ([]SalesBucket, error)
	Each(ctx context.Context, fn func(*models.Order) error) error
}

// Otps keeps at most one code per phone.
type Otps interface {
	// Replace upserts the code for otp.Phone, discarding any previous one.
	Replace(ctx context.Context, otp *models.Otp) error
	FindLive(ctx context.Context, phone string, now time.Time) (*models.Otp, error)
	Delete(ctx context.Context, phone string) error
}

type Settings interface {
	// Delivery returns the stored delivery settings or the defaults when none were saved.
	Delivery(ctx context.Context) (*models.DeliverySettings, error)
	SaveDelivery(ctx context.Context, s *models.DeliverySettings) error
}

// Store groups the entity stores.
type Store struct {
	Users      Users
	Products   Products
	Categories Categories
	Orders     Orders
	Otps       Otps
	Settings   Settings
}

// DefaultDeliverySettings is used until an admin saves settings.
func DefaultDeliverySettings() *models.DeliverySettings {
	return &models.DeliverySettings{
		ID:     models.DeliverySettingsID,
		Stores: []models.StoreLocation{},
	}
}

// Truncate floors t to the start of its day, Monday-based week or month in loc.
func Truncate(t time.Time, unit BucketUnit, loc *time.Location) time.Time {
	t = t.In(loc)
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	switch unit {
	case UnitWeek:
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case UnitMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
	default:
		return day
	}
}
