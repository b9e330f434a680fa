// routes/routes.go
package routes

import (
	"net/http"
	"net/url"
	"strings"

	"go-ecommerce-delivery/controllers"
	"go-ecommerce-delivery/metrics"
	"go-ecommerce-delivery/middleware"
	"go-ecommerce-delivery/policy"
	"go-ecommerce-delivery/services"
	"go-ecommerce-delivery/storage"
	"go-ecommerce-delivery/utils"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Controllers groups the HTTP handlers
type Controllers struct {
	User     *controllers.UserController
	Product  *controllers.ProductController
	Cart     *controllers.CartController
	Order    *controllers.OrderController
	Delivery *controllers.DeliveryController
	Admin    *controllers.AdminController
	Webhook  *controllers.WebhookController
}

// NewControllers builds every controller from the services
func NewControllers(svc *services.Services) *Controllers {
	return &Controllers{
		User:     controllers.NewUserController(svc.Auth, svc.Otp),
		Product:  controllers.NewProductController(svc.Catalog),
		Cart:     controllers.NewCartController(svc.Cart),
		Order:    controllers.NewOrderController(svc.Checkout, svc.Orders, svc.Settings),
		Delivery: controllers.NewDeliveryController(svc.Delivery, svc.Orders),
		Admin:    controllers.NewAdminController(svc.Reports, svc.Customers, svc.Settings),
		Webhook:  controllers.NewWebhookController(svc.Orders),
	}
}

// Options carries the cross-cutting pieces the router needs
type Options struct {
	Authenticator middleware.Authenticator
	Logger        *zap.Logger
	Metrics       *metrics.Metrics
	AuthLimiter   *middleware.RateLimiter
	// Uploads is set when files are stored on local disk and must be served by this process.
	Uploads *storage.LocalStorage
	// UploadsURL is the public base URL of local uploads; only its path is used.
	UploadsURL string
}

// NewRouter builds the application handler: access logging and panic recovery around
// every request, including unmatched ones.
func NewRouter(c *Controllers, opts Options) http.Handler {
	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteMessage(w, http.StatusNotFound, "Route not found")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteMessage(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
	if opts.Metrics != nil {
		router.Use(middleware.Metrics(opts.Metrics))
	}
	RegisterRoutes(router, c, opts)

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return middleware.RequestLogger(logger)(middleware.Recover(router))
}

// RegisterRoutes sets up all the routes for the application
func RegisterRoutes(router *mux.Router, c *Controllers, opts Options) {
	auth := middleware.Auth(opts.Authenticator)

	// Operational routes
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")
	if opts.Metrics != nil {
		router.Handle("/metrics", opts.Metrics.Handler()).Methods("GET")
	}
	if opts.Uploads != nil {
		prefix := uploadsPrefix(opts.UploadsURL)
		router.PathPrefix(prefix + "/").Handler(
			http.StripPrefix(prefix+"/", http.FileServer(http.Dir(opts.Uploads.Root()))),
		).Methods("GET")
	}

	// Courier webhook
	router.HandleFunc("/uEngage/callback", c.Webhook.CourierCallback).Methods("POST")

	// Auth routes
	authRoutes := router.PathPrefix("/auth").Subrouter()
	if opts.AuthLimiter != nil {
		authRoutes.Use(opts.AuthLimiter.Handler)
	}
	authRoutes.HandleFunc("/register", c.User.Register).Methods("POST")
	authRoutes.HandleFunc("/login", c.User.Login).Methods("POST")
	authRoutes.HandleFunc("/otp/send", c.User.SendOtp).Methods("POST")
	authRoutes.HandleFunc("/otp/verify", c.User.VerifyOtp).Methods("POST")
	profile := authRoutes.NewRoute().Subrouter()
	profile.Use(auth)
	profile.HandleFunc("/profile", c.User.GetProfile).Methods("GET")

	// Product routes
	router.HandleFunc("/products", c.Product.GetProducts).Methods("GET")
	router.HandleFunc("/products/categories", c.Product.GetCategories).Methods("GET")
	router.HandleFunc("/products/{id}", c.Product.GetProductByID).Methods("GET")

	// User routes
	user := router.PathPrefix("/user").Subrouter()
	user.Use(auth, middleware.Require(policy.Shop))
	user.HandleFunc("/cart", c.Cart.GetCart).Methods("GET")
	user.HandleFunc("/cart", c.Cart.UpdateCart).Methods("POST")
	user.HandleFunc("/wishlist", c.Cart.GetWishlist).Methods("GET")
	user.HandleFunc("/wishlist", c.Cart.ToggleWishlist).Methods("POST")
	user.HandleFunc("/addresses", c.Cart.GetAddresses).Methods("GET")
	user.HandleFunc("/addresses", c.Cart.AddAddress).Methods("POST")
	user.HandleFunc("/addresses/{addressId}/default", c.Cart.SetDefaultAddress).Methods("PUT")
	user.HandleFunc("/addresses/{addressId}", c.Cart.DeleteAddress).Methods("DELETE")
	user.HandleFunc("/checkout", c.Order.CreateOrder).Methods("POST")
	user.HandleFunc("/delivery-quote", c.Order.DeliveryQuote).Methods("POST")
	user.HandleFunc("/orders", c.Order.GetOrders).Methods("GET")
	user.HandleFunc("/orders/{id}", c.Order.GetOrder).Methods("GET")
	user.HandleFunc("/orders/{id}/cancel", c.Order.CancelOrder).Methods("PUT")

	// Delivery routes
	delivery := router.PathPrefix("/delivery").Subrouter()
	delivery.Use(auth)
	partner := delivery.NewRoute().Subrouter()
	partner.Use(middleware.Require(policy.DeliverOrders))
	partner.HandleFunc("/orders", c.Delivery.AssignedOrders).Methods("GET")
	partner.HandleFunc("/orders/{id}/deliver", c.Delivery.Deliver).Methods("PUT")
	applicant := delivery.NewRoute().Subrouter()
	applicant.Use(middleware.Require(policy.ApplyDelivery))
	applicant.HandleFunc("/apply", c.Delivery.Apply).Methods("POST")
	applicant.HandleFunc("/documents", c.Delivery.UploadDocuments).Methods("POST")
	review := delivery.NewRoute().Subrouter()
	review.Use(middleware.Require(policy.ReviewDelivery))
	review.HandleFunc("/applications", c.Delivery.Applications).Methods("GET")
	review.HandleFunc("/{id}/approve", c.Delivery.Approve).Methods("PUT")
	review.HandleFunc("/{id}/reject", c.Delivery.Reject).Methods("PUT")

	// Admin routes
	admin := router.PathPrefix("/admin").Subrouter()
	admin.Use(auth)

	orders := admin.NewRoute().Subrouter()
	orders.Use(middleware.Require(policy.ManageOrders))
	orders.HandleFunc("/orders", c.Order.AdminListOrders).Methods("GET")
	orders.HandleFunc("/orders/{id}", c.Order.AdminGetOrder).Methods("GET")
	orders.HandleFunc("/orders/{id}/status", c.Order.UpdateOrderStatus).Methods("PUT")
	orders.HandleFunc("/orders/{id}/delivery", c.Order.MarkDelivered).Methods("PUT")
	orders.HandleFunc("/orders/{id}/assign-delivery", c.Order.AssignDelivery).Methods("PUT")
	orders.HandleFunc("/delivery-partners", c.Delivery.Partners).Methods("GET")

	catalog := admin.NewRoute().Subrouter()
	catalog.Use(middleware.Require(policy.ManageCatalog))
	catalog.HandleFunc("/categories", c.Product.AdminCategories).Methods("GET")
	catalog.HandleFunc("/categories", c.Product.CreateCategory).Methods("POST")
	catalog.HandleFunc("/categories/{id}", c.Product.UpdateCategory).Methods("PUT")
	catalog.HandleFunc("/categories/{id}", c.Product.DeleteCategory).Methods("DELETE")
	catalog.HandleFunc("/products", c.Product.CreateProduct).Methods("POST")
	catalog.HandleFunc("/products/{id}", c.Product.UpdateProduct).Methods("PUT")
	catalog.HandleFunc("/products/{id}", c.Product.DeleteProduct).Methods("DELETE")
	catalog.HandleFunc("/products/{id}/images", c.Product.UploadImages).Methods("POST")

	customers := admin.NewRoute().Subrouter()
	customers.Use(middleware.Require(policy.ManageCustomers))
	customers.HandleFunc("/customers", c.Admin.GetCustomers).Methods("GET")
	customers.HandleFunc("/customers/{id}", c.Admin.GetCustomer).Methods("GET")
	customers.HandleFunc("/customers/{id}", c.Admin.UpdateCustomer).Methods("PUT")
	customers.HandleFunc("/customers/{id}", c.Admin.DeleteCustomer).Methods("DELETE")

	reports := admin.NewRoute().Subrouter()
	reports.Use(middleware.Require(policy.ViewReports))
	reports.HandleFunc("/export/{kind}", c.Admin.Export).Methods("GET")
	reports.HandleFunc("/stats/summary", c.Admin.Summary).Methods("GET")
	reports.HandleFunc("/stats/sales", c.Admin.Sales).Methods("GET")

	settings := admin.NewRoute().Subrouter()
	settings.Use(middleware.Require(policy.ManageSettings))
	settings.HandleFunc("/settings/delivery", c.Admin.GetDeliverySettings).Methods("GET")
	settings.HandleFunc("/settings/delivery", c.Admin.UpdateDeliverySettings).Methods("PUT")
}

// uploadsPrefix returns the URL path local uploads are served under.
func uploadsPrefix(base string) string {
	p := base
	if u, err := url.Parse(base); err == nil && u.Host != "" {
		p = u.Path
	}
	p = "/" + strings.Trim(p, "/")
	if p == "/" {
		return "/uploads"
	}
	return p
}
