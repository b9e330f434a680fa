package controllers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go-ecommerce-delivery/logger"
	"go-ecommerce-delivery/services"
	"go-ecommerce-delivery/utils"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// exportTimeout bounds a full collection export, which can outlive requestTimeout.
const exportTimeout = 2 * time.Minute

// AdminController handles reporting, customer management and delivery settings
type AdminController struct {
	Reports   *services.ReportService
	Customers *services.CustomerService
	Settings  *services.SettingsService
	Now       func() time.Time
}

// NewAdminController creates a new AdminController
func NewAdminController(reports *services.ReportService, customers *services.CustomerService, settings *services.SettingsService) *AdminController {
	return &AdminController{Reports: reports, Customers: customers, Settings: settings, Now: time.Now}
}

// Summary returns the dashboard counters
func (ac *AdminController) Summary(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()
	summary, err := ac.Reports.Summary(ctx)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, summary)
}

// Sales returns the sales chart: ?period=daily|weekly|monthly
func (ac *AdminController) Sales(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()
	points, err := ac.Reports.Sales(ctx, r.URL.Query().Get("period"))
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, points)
}

// Export streams a collection as a JSON attachment
func (ac *AdminController) Export(w http.ResponseWriter, r *http.Request) {
	kind := mux.Vars(r)["kind"]
	if !services.ValidExportKind(kind) {
		utils.WriteError(w, r, utils.NewNotFound("Unknown export type"))
		return
	}

	filename := fmt.Sprintf("%s-%s.json", kind, ac.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)

	ctx, cancel := context.WithTimeout(r.Context(), exportTimeout)
	defer cancel()
	if err := ac.Reports.Export(ctx, kind, w); err != nil {
		// Headers are already sent; the truncated body is the only signal the client gets.
		logger.FromContext(r.Context()).Error("export failed", zap.String("kind", kind), zap.Error(err))
	}
}

// GetCustomers lists customer accounts
func (ac *AdminController) GetCustomers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()
	users, err := ac.Customers.List(ctx)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, users)
}

func (ac *AdminController) GetCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "user")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	user, err := ac.Customers.Get(ctx, id)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, user)
}

func (ac *AdminController) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "user")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	var input services.CustomerUpdate
	if err := utils.DecodeJSON(r, &input); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	user, err := ac.Customers.Update(ctx, id, input)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, user)
}

func (ac *AdminController) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "user")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	if err := ac.Customers.Delete(ctx, id); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteMessage(w, http.StatusOK, "User deleted successfully")
}

// GetDeliverySettings returns the delivery pricing configuration
func (ac *AdminController) GetDeliverySettings(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()
	settings, err := ac.Settings.Delivery(ctx)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, settings)
}

func (ac *AdminController) UpdateDeliverySettings(w http.ResponseWriter, r *http.Request) {
	var input services.DeliverySettingsInput
	if err := utils.DecodeJSON(r, &input); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	settings, err := ac.Settings.UpdateDelivery(ctx, input)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, settings)
}
