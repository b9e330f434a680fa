package services

import (
	"context"
	"math"
	"strings"
	"time"

	"go-ecommerce-delivery/models"
	"go-ecommerce-delivery/store"
	"go-ecommerce-delivery/utils"

	"github.com/shopspring/decimal"
)

const earthRadiusKm = 6371.0

// DeliverySettingsInput replaces the delivery pricing configuration
type DeliverySettingsInput struct {
	PricePerKm            float64                `json:"pricePerKm" validate:"gte=0"`
	BaseCharge            float64                `json:"baseCharge" validate:"gte=0"`
	FreeDeliveryThreshold float64                `json:"freeDeliveryThreshold" validate:"gte=0"`
	Stores                []models.StoreLocation `json:"stores" validate:"required,min=1,dive"`
}

// QuoteInput asks for the delivery charge to a point
type QuoteInput struct {
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
	Subtotal  float64 `json:"subtotal" validate:"gte=0"`
}

// Quote is the delivery charge from the nearest active store
type Quote struct {
	NearestStore string  `json:"nearestStore"`
	Distance     float64 `json:"distance"`
	Charge       float64 `json:"charge"`
}

type SettingsService struct {
	settings store.Settings
	now      func() time.Time
}

func (s *SettingsService) Delivery(ctx context.Context) (*models.DeliverySettings, error) {
	ds, err := s.settings.Delivery(ctx)
	return ds, storeErr(err, "")
}

// UpdateDelivery replaces the settings. At least one store must stay active.
func (s *SettingsService) UpdateDelivery(ctx context.Context, in DeliverySettingsInput) (*models.DeliverySettings, error) {
	ds := &models.DeliverySettings{
		ID:                    models.DeliverySettingsID,
		PricePerKm:            in.PricePerKm,
		BaseCharge:            in.BaseCharge,
		FreeDeliveryThreshold: in.FreeDeliveryThreshold,
		Stores:                make([]models.StoreLocation, 0, len(in.Stores)),
		UpdatedAt:             s.now(),
	}
	for _, st := range in.Stores {
		st.Name = strings.TrimSpace(st.Name)
		ds.Stores = append(ds.Stores, st)
	}
	if len(ds.ActiveStores()) == 0 {
		return nil, utils.NewValidation("At least one store must be active")
	}
	if err := s.settings.SaveDelivery(ctx, ds); err != nil {
		return nil, storeErr(err, "")
	}
	return ds, nil
}

// Quote prices delivery to the given point from the nearest active store.
func (s *SettingsService) Quote(ctx context.Context, in QuoteInput) (*Quote, error) {
	ds, err := s.settings.Delivery(ctx)
	if err != nil {
		return nil, storeErr(err, "")
	}
	stores := ds.ActiveStores()
	if len(stores) == 0 {
		return nil, utils.NewInvalidState("Delivery is not configured")
	}

	to := models.GeoPoint{Latitude: in.Latitude, Longitude: in.Longitude}
	nearest := stores[0]
	best := haversineKm(nearest.Location, to)
	for _, st := range stores[1:] {
		if d := haversineKm(st.Location, to); d < best {
			nearest, best = st, d
		}
	}

	km := decimal.NewFromFloat(best).Round(2)
	charge := decimal.Zero
	if !(ds.FreeDeliveryThreshold > 0 && in.Subtotal >= ds.FreeDeliveryThreshold) {
		charge = decimal.NewFromFloat(ds.BaseCharge).
			Add(decimal.NewFromFloat(ds.PricePerKm).Mul(km)).
			Round(2)
	}
	return &Quote{
		NearestStore: nearest.Name,
		Distance:     km.InexactFloat64(),
		Charge:       charge.InexactFloat64(),
	}, nil
}

func haversineKm(a, b models.GeoPoint) float64 {
	rad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := rad(b.Latitude - a.Latitude)
	dLon := rad(b.Longitude - a.Longitude)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(a.Latitude))*math.Cos(rad(b.Latitude))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}
