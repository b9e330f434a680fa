package services

import (
	"context"
	"strings"
	"time"

	"go-ecommerce-delivery/lifecycle"
	"go-ecommerce-delivery/logger"
	"go-ecommerce-delivery/models"
	"go-ecommerce-delivery/store"
	"go-ecommerce-delivery/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// CheckoutInput places an order from the current cart. Totals are taken as sent.
type CheckoutInput struct {
	ShippingAddress models.ShippingAddress `json:"shippingAddress" validate:"required"`
	PaymentMethod   string                 `json:"paymentMethod" validate:"required"`
	TaxPrice        float64                `json:"taxPrice" validate:"gte=0"`
	ShippingPrice   float64                `json:"shippingPrice" validate:"gte=0"`
	TotalPrice      float64                `json:"totalPrice" validate:"gte=0"`
	Distance        *float64               `json:"distance" validate:"omitempty,gte=0"`
	NearestStore    string                 `json:"nearestStore"`
}

type CheckoutService struct {
	users    store.Users
	products store.Products
	orders   store.Orders
	metrics  Recorder
	now      func() time.Time
}

// Checkout snapshots the cart into a placed order and empties the cart.
func (s *CheckoutService) Checkout(ctx context.Context, userID primitive.ObjectID, in CheckoutInput) (*models.Order, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, storeErr(err, "User not found")
	}
	if len(user.Cart) == 0 {
		return nil, utils.NewValidation("Cart is empty")
	}

	items, err := s.snapshot(ctx, user.Cart)
	if err != nil {
		return nil, err
	}

	now := s.now()
	order := &models.Order{
		UserID:          userID,
		OrderItems:      items,
		ShippingAddress: in.ShippingAddress,
		PaymentMethod:   strings.TrimSpace(in.PaymentMethod),
		TaxPrice:        in.TaxPrice,
		ShippingPrice:   in.ShippingPrice,
		TotalPrice:      in.TotalPrice,
		Distance:        in.Distance,
		NearestStore:    strings.TrimSpace(in.NearestStore),
		Status:          models.StatusPlaced,
		StatusHistory: []models.StatusChange{{
			To:      models.StatusPlaced,
			Actor:   string(lifecycle.ActorCustomer),
			ActorID: &userID,
			At:      now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}

	log := logger.FromContext(ctx)
	if subtotal := order.ItemsSubtotal(); in.TotalPrice < subtotal {
		log.Warn("order total is below the items subtotal",
			zap.Float64("total", in.TotalPrice), zap.Float64("subtotal", subtotal))
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, storeErr(err, "")
	}
	s.metrics.OrderTransition(string(lifecycle.ActorCustomer), string(models.StatusPlaced))
	log.Info("order placed", zap.String("order_id", order.ID.Hex()), zap.Int("items", len(items)))

	// Only the lines that were ordered are removed; anything added meanwhile stays.
	_, err = mutate(
		func() (*models.User, error) { return s.users.FindByID(ctx, userID) },
		func(u *models.User) error {
			u.Cart = withoutOrdered(u.Cart, items)
			u.UpdatedAt = s.now()
			return nil
		},
		func(u *models.User) error { return s.users.Save(ctx, u) },
	)
	if err != nil {
		log.Error("failed to clear cart after checkout", zap.String("order_id", order.ID.Hex()), zap.Error(err))
	}
	return order, nil
}

func (s *CheckoutService) snapshot(ctx context.Context, cart []models.CartItem) ([]models.OrderItem, error) {
	ids := make([]primitive.ObjectID, len(cart))
	for i, item := range cart {
		ids[i] = item.ProductID
	}
	products, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, storeErr(err, "")
	}
	byID := make(map[primitive.ObjectID]*models.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	items := make([]models.OrderItem, 0, len(cart))
	for _, line := range cart {
		p, ok := byID[line.ProductID]
		if !ok || !p.IsActive {
			return nil, utils.NewValidation("Product " + line.ProductID.Hex() + " is no longer available")
		}
		if !p.HasVariant(line.Variant) {
			return nil, utils.NewValidation("Invalid variant for " + p.Name)
		}
		items = append(items, models.OrderItem{
			ProductID: p.ID,
			Name:      p.Name,
			Price:     p.UnitPrice(line.Variant),
			Image:     p.Thumbnail(),
			Quantity:  line.Quantity,
			Variant:   line.Variant,
		})
	}
	return items, nil
}

func withoutOrdered(cart []models.CartItem, ordered []models.OrderItem) []models.CartItem {
	kept := cart[:0]
	for _, line := range cart {
		drop := false
		for _, item := range ordered {
			if item.ProductID == line.ProductID && item.Variant == line.Variant {
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, line)
		}
	}
	return kept
}
