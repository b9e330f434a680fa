package controllers

import (
	"net/http"

	"go-ecommerce-delivery/services"
	"go-ecommerce-delivery/utils"
)

// OrderController handles checkout and order lifecycle requests
type OrderController struct {
	Checkout *services.CheckoutService
	Orders   *services.OrderService
	Settings *services.SettingsService
}

// NewOrderController creates a new OrderController
func NewOrderController(checkout *services.CheckoutService, orders *services.OrderService, settings *services.SettingsService) *OrderController {
	return &OrderController{Checkout: checkout, Orders: orders, Settings: settings}
}

// CreateOrder creates a new order from the user's cart
func (oc *OrderController) CreateOrder(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var input services.CheckoutInput
	if err := utils.DecodeJSON(r, &input); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	order, err := oc.Checkout.Checkout(ctx, user.ID, input)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, order)
}

// DeliveryQuote prices delivery to a point
func (oc *OrderController) DeliveryQuote(w http.ResponseWriter, r *http.Request) {
	var input services.QuoteInput
	if err := utils.DecodeJSON(r, &input); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	quote, err := oc.Settings.Quote(ctx, input)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, quote)
}

// GetOrders retrieves all orders for the authenticated user
func (oc *OrderController) GetOrders(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	orders, err := oc.Orders.ListForUser(ctx, user.ID)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, orders)
}

// GetOrder returns one of the user's orders
func (oc *OrderController) GetOrder(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	orderID, err := pathID(r, "id", "order")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	order, err := oc.Orders.GetForUser(ctx, user.ID, orderID)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, order)
}

// CancelOrder cancels the user's own order with a reason
func (oc *OrderController) CancelOrder(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	orderID, err := pathID(r, "id", "order")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	var input services.CancelInput
	if err := utils.DecodeJSON(r, &input); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	order, err := oc.Orders.Cancel(ctx, user.ID, orderID, input)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]any{"message": "Order cancelled successfully", "order": order})
}

// AdminListOrders pages through all orders: ?status=&page=
func (oc *OrderController) AdminListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()
	page, err := oc.Orders.AdminList(ctx, r.URL.Query().Get("status"), r.URL.Query().Get("page"))
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, page)
}

func (oc *OrderController) AdminGetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "id", "order")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	order, err := oc.Orders.AdminGet(ctx, orderID)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, order)
}

// UpdateOrderStatus allows admin to move an order through its lifecycle
func (oc *OrderController) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	admin, ok := currentUser(w, r)
	if !ok {
		return
	}
	orderID, err := pathID(r, "id", "order")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	var input services.StatusInput
	if err := utils.DecodeJSON(r, &input); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	order, err := oc.Orders.AdminSetStatus(ctx, admin.ID, orderID, input)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, order)
}

// MarkDelivered is the admin shortcut for status delivered
func (oc *OrderController) MarkDelivered(w http.ResponseWriter, r *http.Request) {
	admin, ok := currentUser(w, r)
	if !ok {
		return
	}
	orderID, err := pathID(r, "id", "order")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	order, err := oc.Orders.AdminMarkDelivered(ctx, admin.ID, orderID)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, order)
}

// AssignDelivery attaches a delivery partner to an order
func (oc *OrderController) AssignDelivery(w http.ResponseWriter, r *http.Request) {
	admin, ok := currentUser(w, r)
	if !ok {
		return
	}
	orderID, err := pathID(r, "id", "order")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	var input services.AssignInput
	if err := utils.DecodeJSON(r, &input); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	order, err := oc.Orders.AssignDelivery(ctx, admin.ID, orderID, input)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, order)
}
