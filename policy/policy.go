// Package policy holds the role capability table consulted once per request.
package policy

import "go-ecommerce-delivery/models"

// Action is something a caller may be allowed to do.
type Action string

const (
	Shop            Action = "shop"
	ApplyDelivery   Action = "apply_delivery"
	ManageOrders    Action = "manage_orders"
	ManageCatalog   Action = "manage_catalog"
	ManageCustomers Action = "manage_customers"
	ReviewDelivery  Action = "review_delivery"
	ViewReports     Action = "view_reports"
	ManageSettings  Action = "manage_settings"
	DeliverOrders   Action = "deliver_orders"
)

var table = map[models.Role][]Action{
	models.RoleUser:            {Shop, ApplyDelivery},
	models.RoleDeliveryPending: {Shop, ApplyDelivery},
	models.RoleDelivery:        {Shop, ApplyDelivery, DeliverOrders},
	models.RoleAdmin: {
		Shop, ManageOrders, ManageCatalog, ManageCustomers,
		ReviewDelivery, ViewReports, ManageSettings,
	},
}

var lookup = func() map[models.Role]map[Action]bool {
	m := make(map[models.Role]map[Action]bool, len(table))
	for role, actions := range table {
		m[role] = make(map[Action]bool, len(actions))
		for _, a := range actions {
			m[role][a] = true
		}
	}
	return m
}()

// Can reports whether role may perform action.
func Can(role models.Role, action Action) bool {
	return lookup[role][action]
}

// Describe returns the message used when a role lacks an action.
func Describe(action Action) string {
	switch action {
	case ManageOrders, ManageCatalog, ManageCustomers, ReviewDelivery, ViewReports, ManageSettings:
		return "Forbidden: admins only"
	case DeliverOrders:
		return "Forbidden: delivery partners only"
	case ApplyDelivery:
		return "Forbidden: this account cannot apply as a delivery partner"
	default:
		return "Forbidden"
	}
}
