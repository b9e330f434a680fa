package controllers

import (
	"net/http"

	"go-ecommerce-delivery/services"
	"go-ecommerce-delivery/utils"
)

// CartController handles cart, wishlist and saved address requests
type CartController struct {
	Cart *services.CartService
}

// NewCartController creates a new CartController
func NewCartController(cart *services.CartService) *CartController {
	return &CartController{Cart: cart}
}

// GetCart returns the user's cart with live product data
func (cc *CartController) GetCart(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	lines, err := cc.Cart.Cart(ctx, user.ID)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]any{"cart": lines})
}

// UpdateCart sets, adds or removes one cart line
func (cc *CartController) UpdateCart(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var input services.CartUpdateInput
	if err := utils.DecodeJSON(r, &input); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	lines, err := cc.Cart.UpdateCart(ctx, user.ID, input)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]any{"message": "Cart updated", "cart": lines})
}

// GetWishlist returns the wishlisted products
func (cc *CartController) GetWishlist(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	products, err := cc.Cart.Wishlist(ctx, user.ID)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]any{"wishlist": products})
}

// ToggleWishlist adds or removes a product
func (cc *CartController) ToggleWishlist(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var input services.WishlistInput
	if err := utils.DecodeJSON(r, &input); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	added, err := cc.Cart.ToggleWishlist(ctx, user.ID, input)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	msg := "Removed from wishlist"
	if added {
		msg = "Added to wishlist"
	}
	utils.WriteJSON(w, http.StatusOK, map[string]any{"message": msg, "inWishlist": added})
}

func (cc *CartController) GetAddresses(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	addrs, err := cc.Cart.Addresses(ctx, user.ID)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, addrs)
}

func (cc *CartController) AddAddress(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var input services.AddressInput
	if err := utils.DecodeJSON(r, &input); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	addrs, err := cc.Cart.AddAddress(ctx, user.ID, input)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, addrs)
}

func (cc *CartController) SetDefaultAddress(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	addressID, err := pathID(r, "addressId", "address")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	addrs, err := cc.Cart.SetDefaultAddress(ctx, user.ID, addressID)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, addrs)
}

func (cc *CartController) DeleteAddress(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	addressID, err := pathID(r, "addressId", "address")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	addrs, err := cc.Cart.DeleteAddress(ctx, user.ID, addressID)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, addrs)
}
