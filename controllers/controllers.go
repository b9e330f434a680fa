// Package controllers holds the HTTP handlers. Handlers decode and validate the request,
// call one service and encode the result; domain rules live in services.
package controllers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"go-ecommerce-delivery/middleware"
	"go-ecommerce-delivery/models"
	"go-ecommerce-delivery/services"
	"go-ecommerce-delivery/utils"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	requestTimeout  = 10 * time.Second
	maxUploadMemory = 32 << 20
)

func requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), requestTimeout)
}

// currentUser returns the authenticated user, writing 401 when there is none.
func currentUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user, ok := middleware.CurrentUser(r.Context())
	if !ok {
		utils.WriteMessage(w, http.StatusUnauthorized, "Unauthorized")
		return nil, false
	}
	return user, true
}

func pathID(r *http.Request, key, entity string) (primitive.ObjectID, error) {
	return services.ParseID(mux.Vars(r)[key], entity)
}

// formFiles reads the multipart files under field.
func formFiles(r *http.Request, field string) ([]services.FileUpload, error) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, utils.NewValidation("Request must be multipart/form-data")
		}
		return nil, utils.NewValidation("Invalid multipart form")
	}
	headers := r.MultipartForm.File[field]
	files := make([]services.FileUpload, 0, len(headers))
	for _, fh := range headers {
		files = append(files, services.FileUpload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Open:        func() (io.ReadCloser, error) { return fh.Open() },
		})
	}
	return files, nil
}
