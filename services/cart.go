package services

import (
	"context"
	"errors"
	"time"

	"go-ecommerce-delivery/models"
	"go-ecommerce-delivery/store"
	"go-ecommerce-delivery/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CartUpdateInput sets the quantity of one (product, variant) line. A quantity of zero or
// less removes the line.
type CartUpdateInput struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity"`
	Variant   int    `json:"variant" validate:"gte=0"`
}

// WishlistInput toggles one product
type WishlistInput struct {
	ProductID string `json:"productId" validate:"required"`
}

// AddressInput saves a new address
type AddressInput struct {
	Address    string           `json:"address" validate:"required"`
	City       string           `json:"city" validate:"required"`
	PostalCode string           `json:"postalCode" validate:"required"`
	Country    string           `json:"country"`
	Location   *models.GeoPoint `json:"location"`
	IsDefault  bool             `json:"isDefault"`
}

type CartService struct {
	users    store.Users
	products store.Products
	now      func() time.Time
}

func (s *CartService) saveUser(ctx context.Context, userID primitive.ObjectID, fn func(*models.User) error) (*models.User, error) {
	u, err := mutate(
		func() (*models.User, error) { return s.users.FindByID(ctx, userID) },
		fn,
		func(u *models.User) error {
			u.UpdatedAt = s.now()
			return s.users.Save(ctx, u)
		},
	)
	return u, storeErr(err, "User not found")
}

func (s *CartService) activeProduct(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	p, err := s.products.FindByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, utils.NewNotFound("Product not found")
	}
	if err != nil {
		return nil, storeErr(err, "")
	}
	if !p.IsActive {
		return nil, utils.NewValidation("Product is not available")
	}
	return p, nil
}

func cartIndex(cart []models.CartItem, productID primitive.ObjectID, variant int) int {
	for i, item := range cart {
		if item.ProductID == productID && item.Variant == variant {
			return i
		}
	}
	return -1
}

// UpdateCart applies one line change and returns the resulting cart.
func (s *CartService) UpdateCart(ctx context.Context, userID primitive.ObjectID, in CartUpdateInput) ([]models.CartLine, error) {
	productID, err := ParseID(in.ProductID, "product")
	if err != nil {
		return nil, err
	}
	if in.Quantity > 0 {
		p, err := s.activeProduct(ctx, productID)
		if err != nil {
			return nil, err
		}
		if !p.HasVariant(in.Variant) {
			return nil, utils.NewValidation("Invalid variant")
		}
	}

	u, err := s.saveUser(ctx, userID, func(u *models.User) error {
		i := cartIndex(u.Cart, productID, in.Variant)
		switch {
		case in.Quantity > 0 && i >= 0:
			u.Cart[i].Quantity = in.Quantity
		case in.Quantity > 0:
			u.Cart = append(u.Cart, models.CartItem{ProductID: productID, Quantity: in.Quantity, Variant: in.Variant})
		case i >= 0:
			u.Cart = append(u.Cart[:i], u.Cart[i+1:]...)
		default:
			return errSkipSave
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.lines(ctx, u.Cart)
}

// Cart returns the user's cart joined with live product data.
func (s *CartService) Cart(ctx context.Context, userID primitive.ObjectID) ([]models.CartLine, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, storeErr(err, "User not found")
	}
	return s.lines(ctx, u.Cart)
}

func (s *CartService) lines(ctx context.Context, cart []models.CartItem) ([]models.CartLine, error) {
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

	out := make([]models.CartLine, 0, len(cart))
	for _, item := range cart {
		line := models.CartLine{CartItem: item}
		if p, ok := byID[item.ProductID]; ok {
			line.Name = p.Name
			line.Price = p.UnitPrice(item.Variant)
			line.Image = p.Thumbnail()
			line.Available = p.IsActive && p.HasVariant(item.Variant)
		}
		out = append(out, line)
	}
	return out, nil
}

// ToggleWishlist adds the product when absent and removes it when present. It returns
// whether the product is now on the wishlist.
func (s *CartService) ToggleWishlist(ctx context.Context, userID primitive.ObjectID, in WishlistInput) (bool, error) {
	productID, err := ParseID(in.ProductID, "product")
	if err != nil {
		return false, err
	}

	var added bool
	_, err = s.saveUser(ctx, userID, func(u *models.User) error {
		for i, id := range u.Wishlist {
			if id == productID {
				u.Wishlist = append(u.Wishlist[:i], u.Wishlist[i+1:]...)
				added = false
				return nil
			}
		}
		if _, err := s.products.FindByID(ctx, productID); err != nil {
			return storeErr(err, "Product not found")
		}
		u.Wishlist = append(u.Wishlist, productID)
		added = true
		return nil
	})
	return added, err
}

// Wishlist returns the wishlisted products that still exist.
func (s *CartService) Wishlist(ctx context.Context, userID primitive.ObjectID) ([]models.Product, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, storeErr(err, "User not found")
	}
	products, err := s.products.FindByIDs(ctx, u.Wishlist)
	return products, storeErr(err, "")
}

// Addresses returns the saved addresses.
func (s *CartService) Addresses(ctx context.Context, userID primitive.ObjectID) ([]models.Address, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, storeErr(err, "User not found")
	}
	if u.Addresses == nil {
		return []models.Address{}, nil
	}
	return u.Addresses, nil
}

// AddAddress saves an address. The first address always becomes the default.
func (s *CartService) AddAddress(ctx context.Context, userID primitive.ObjectID, in AddressInput) ([]models.Address, error) {
	u, err := s.saveUser(ctx, userID, func(u *models.User) error {
		addr := models.Address{
			ID:         primitive.NewObjectID(),
			Address:    in.Address,
			City:       in.City,
			PostalCode: in.PostalCode,
			Country:    in.Country,
			Location:   in.Location,
			IsDefault:  in.IsDefault || len(u.Addresses) == 0,
		}
		if addr.IsDefault {
			clearDefault(u.Addresses)
		}
		u.Addresses = append(u.Addresses, addr)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return u.Addresses, nil
}

// SetDefaultAddress makes addressID the only default address.
func (s *CartService) SetDefaultAddress(ctx context.Context, userID, addressID primitive.ObjectID) ([]models.Address, error) {
	u, err := s.saveUser(ctx, userID, func(u *models.User) error {
		i := addressIndex(u.Addresses, addressID)
		if i < 0 {
			return utils.NewNotFound("Address not found")
		}
		if u.Addresses[i].IsDefault {
			return errSkipSave
		}
		clearDefault(u.Addresses)
		u.Addresses[i].IsDefault = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return u.Addresses, nil
}

// DeleteAddress removes an address, promoting the first remaining one when the default goes.
func (s *CartService) DeleteAddress(ctx context.Context, userID, addressID primitive.ObjectID) ([]models.Address, error) {
	u, err := s.saveUser(ctx, userID, func(u *models.User) error {
		i := addressIndex(u.Addresses, addressID)
		if i < 0 {
			return utils.NewNotFound("Address not found")
		}
		wasDefault := u.Addresses[i].IsDefault
		u.Addresses = append(u.Addresses[:i], u.Addresses[i+1:]...)
		if wasDefault && len(u.Addresses) > 0 {
			u.Addresses[0].IsDefault = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return u.Addresses, nil
}

func addressIndex(addrs []models.Address, id primitive.ObjectID) int {
	for i := range addrs {
		if addrs[i].ID == id {
			return i
		}
	}
	return -1
}

func clearDefault(addrs []models.Address) {
	for i := range addrs {
		addrs[i].IsDefault = false
	}
}
