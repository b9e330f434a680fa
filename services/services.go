// Package services holds the application operations behind the HTTP handlers. Services
// load documents from the store, apply domain rules and save them back with a version
// check, retrying when another request got there first.
package services

import (
	"errors"
	"time"

	"go-ecommerce-delivery/cache"
	"go-ecommerce-delivery/storage"
	"go-ecommerce-delivery/store"
	"go-ecommerce-delivery/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// maxSaveAttempts bounds the read-modify-write loop on a version conflict.
const maxSaveAttempts = 3

// Recorder receives domain counters. *metrics.Metrics implements it.
type Recorder interface {
	OrderTransition(actor, status string)
	CourierEvent(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) OrderTransition(string, string) {}
func (nopRecorder) CourierEvent(string)            {}

// Deps are the collaborators shared by every service.
type Deps struct {
	Store       *store.Store
	Blobs       storage.BlobStorage
	Idempotency cache.IdempotencyStore
	Tokens      *utils.TokenManager
	Metrics     Recorder
	OtpSender   OtpSender
	Location    *time.Location
	DedupeTTL   time.Duration
	OtpTTL      time.Duration
	Now         func() time.Time
}

// Services groups the application services.
type Services struct {
	Auth      *AuthService
	Otp       *OtpService
	Catalog   *CatalogService
	Cart      *CartService
	Checkout  *CheckoutService
	Orders    *OrderService
	Delivery  *DeliveryService
	Customers *CustomerService
	Reports   *ReportService
	Settings  *SettingsService
}

// New wires every service from d, filling in defaults for optional dependencies.
func New(d Deps) *Services {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Metrics == nil {
		d.Metrics = nopRecorder{}
	}
	if d.Location == nil {
		d.Location = time.Local
	}
	if d.DedupeTTL <= 0 {
		d.DedupeTTL = 10 * time.Minute
	}
	if d.OtpTTL <= 0 {
		d.OtpTTL = 5 * time.Minute
	}
	if d.OtpSender == nil {
		d.OtpSender = LogOtpSender{}
	}

	return &Services{
		Auth:      &AuthService{users: d.Store.Users, tokens: d.Tokens, now: d.Now},
		Otp:       &OtpService{otps: d.Store.Otps, users: d.Store.Users, sender: d.OtpSender, ttl: d.OtpTTL, now: d.Now, newCode: randomCode},
		Catalog:   &CatalogService{products: d.Store.Products, categories: d.Store.Categories, blobs: d.Blobs, now: d.Now},
		Cart:      &CartService{users: d.Store.Users, products: d.Store.Products, now: d.Now},
		Checkout:  &CheckoutService{users: d.Store.Users, products: d.Store.Products, orders: d.Store.Orders, metrics: d.Metrics, now: d.Now},
		Orders:    &OrderService{orders: d.Store.Orders, users: d.Store.Users, idem: d.Idempotency, metrics: d.Metrics, dedupeTTL: d.DedupeTTL, now: d.Now},
		Delivery:  &DeliveryService{users: d.Store.Users, orders: d.Store.Orders, blobs: d.Blobs, now: d.Now},
		Customers: &CustomerService{users: d.Store.Users, now: d.Now},
		Reports:   &ReportService{orders: d.Store.Orders, users: d.Store.Users, products: d.Store.Products, loc: d.Location, now: d.Now},
		Settings:  &SettingsService{settings: d.Store.Settings, now: d.Now},
	}
}

// ParseID converts a hex id from the URL, naming the entity in the error.
func ParseID(hex, entity string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, utils.NewValidation("Invalid " + entity + " ID")
	}
	return id, nil
}

// storeErr maps store sentinels to client errors; anything else is internal.
func storeErr(err error, notFound string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return utils.NewNotFound(notFound)
	case errors.Is(err, store.ErrConflict):
		return utils.NewConflict("The record was modified by another request, please retry")
	case errors.Is(err, store.ErrDuplicate):
		return utils.NewConflict("A record with the same unique value already exists")
	}
	var appErr *utils.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return utils.NewInternal("Internal server error", err)
}

// mutate loads a document, applies fn and saves it, reloading and retrying on a version
// conflict. fn returning errSkipSave leaves the stored document untouched.
func mutate[T any](load func() (*T, error), fn func(*T) error, save func(*T) error) (*T, error) {
	var err error
	for attempt := 1; attempt <= maxSaveAttempts; attempt++ {
		var doc *T
		doc, err = load()
		if err != nil {
			return nil, err
		}
		if err = fn(doc); err != nil {
			if errors.Is(err, errSkipSave) {
				return doc, nil
			}
			return nil, err
		}
		err = save(doc)
		if err == nil {
			return doc, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return nil, err
		}
	}
	return nil, err
}

var errSkipSave = errors.New("nothing to save")
