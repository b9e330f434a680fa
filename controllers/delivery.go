package controllers

import (
	"net/http"

	"go-ecommerce-delivery/services"
	"go-ecommerce-delivery/utils"
)

// DeliveryController handles partner onboarding and partner deliveries
type DeliveryController struct {
	Delivery *services.DeliveryService
	Orders   *services.OrderService
}

// NewDeliveryController creates a new DeliveryController
func NewDeliveryController(delivery *services.DeliveryService, orders *services.OrderService) *DeliveryController {
	return &DeliveryController{Delivery: delivery, Orders: orders}
}

// Apply submits a delivery partner application
func (dc *DeliveryController) Apply(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var input services.ApplyInput
	if err := utils.DecodeJSON(r, &input); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	updated, err := dc.Delivery.Apply(ctx, user.ID, input)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, map[string]any{
		"message": "Application submitted",
		"user":    updated,
	})
}

// UploadDocuments stores multipart "documents" files on the applicant's profile
func (dc *DeliveryController) UploadDocuments(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	files, err := formFiles(r, "documents")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}

	urls, err := dc.Delivery.UploadDocuments(r.Context(), user.ID, files)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]any{"documents": urls})
}

// Applications lists pending applications (Admin only)
func (dc *DeliveryController) Applications(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()
	users, err := dc.Delivery.ListPending(ctx)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, users)
}

// Partners lists approved delivery partners (Admin only)
func (dc *DeliveryController) Partners(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()
	users, err := dc.Delivery.Partners(ctx)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, users)
}

func (dc *DeliveryController) Approve(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "user")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	user, err := dc.Delivery.Approve(ctx, id)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, user)
}

func (dc *DeliveryController) Reject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "user")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	var input services.RejectInput
	if err := utils.DecodeJSON(r, &input); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	user, err := dc.Delivery.Reject(ctx, id, input)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, user)
}

// AssignedOrders lists the orders assigned to the calling partner
func (dc *DeliveryController) AssignedOrders(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	orders, err := dc.Delivery.AssignedOrders(ctx, user.ID)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, orders)
}

// Deliver marks an assigned order as delivered
func (dc *DeliveryController) Deliver(w http.ResponseWriter, r *http.Request) {
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
	order, err := dc.Orders.PartnerDeliver(ctx, user.ID, orderID)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, order)
}
