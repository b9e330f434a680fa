package utils

import (
	"encoding/json"
	"net/http"

	"go-ecommerce-delivery/logger"

	"go.uber.org/zap"
)

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

// WriteMessage writes {"message": msg}.
func WriteMessage(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]string{"message": msg})
}

// WriteError maps err to its status and writes {"message": ...}. Server-side failures are
// logged with their cause; the client only sees the message.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := AsAppError(err)
	status := appErr.StatusCode()
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed",
			zap.String("kind", string(appErr.Kind)),
			zap.Error(appErr.Unwrap()),
			zap.String("message", appErr.Message),
		)
	}
	WriteMessage(w, status, appErr.Message)
}
