package controllers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"go-ecommerce-delivery/logger"
	"go-ecommerce-delivery/services"
	"go-ecommerce-delivery/utils"

	"go.uber.org/zap"
)

const maxWebhookBody = 1 << 20

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// courierPayload accepts both snake_case and camelCase keys, optionally nested under data.
type courierPayload struct {
	TaskID             flexString      `json:"taskId"`
	TaskIDSnake        flexString      `json:"task_id"`
	VendorOrderID      flexString      `json:"vendorOrderId"`
	VendorOrderIDSnake flexString      `json:"vendor_order_id"`
	StatusCode         flexString      `json:"statusCode"`
	StatusCodeSnake    flexString      `json:"status_code"`
	Message            string          `json:"message"`
	Data               *courierPayload `json:"data"`
}

func firstOf(values ...flexString) string {
	for _, v := range values {
		if v != "" {
			return string(v)
		}
	}
	return ""
}

func (p *courierPayload) notification() services.CourierNotification {
	n := services.CourierNotification{
		TaskID:        firstOf(p.TaskID, p.TaskIDSnake),
		VendorOrderID: firstOf(p.VendorOrderID, p.VendorOrderIDSnake),
		StatusCode:    firstOf(p.StatusCode, p.StatusCodeSnake),
		Message:       p.Message,
	}
	if p.Data != nil {
		inner := p.Data.notification()
		if n.TaskID == "" {
			n.TaskID = inner.TaskID
		}
		if n.VendorOrderID == "" {
			n.VendorOrderID = inner.VendorOrderID
		}
		if n.StatusCode == "" {
			n.StatusCode = inner.StatusCode
		}
		if n.Message == "" {
			n.Message = inner.Message
		}
	}
	return n
}

// WebhookController receives courier status callbacks
type WebhookController struct {
	Orders *services.OrderService
}

// NewWebhookController creates a new WebhookController
func NewWebhookController(orders *services.OrderService) *WebhookController {
	return &WebhookController{Orders: orders}
}

// CourierCallback applies a courier status event. It always answers 200 so the courier
// does not retry; the outcome is logged and counted instead.
func (wc *WebhookController) CourierCallback(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		log.Warn("courier callback body unreadable", zap.Error(err))
		utils.WriteJSON(w, http.StatusOK, map[string]bool{"status": true})
		return
	}

	var payload courierPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Warn("courier callback payload malformed", zap.Error(err), zap.Int("body_size", len(body)))
		utils.WriteJSON(w, http.StatusOK, map[string]bool{"status": true})
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	outcome := wc.Orders.HandleCourierEvent(ctx, payload.notification())
	log.Debug("courier callback handled", zap.String("outcome", outcome))
	utils.WriteJSON(w, http.StatusOK, map[string]bool{"status": true})
}
