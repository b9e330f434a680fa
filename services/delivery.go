package services

import (
	"context"
	"strings"
	"time"

	"go-ecommerce-delivery/logger"
	"go-ecommerce-delivery/models"
	"go-ecommerce-delivery/storage"
	"go-ecommerce-delivery/store"
	"go-ecommerce-delivery/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// ApplyInput is a delivery partner application
type ApplyInput struct {
	VehicleType   string   `json:"vehicleType" validate:"required,oneof=bicycle motorcycle scooter car van"`
	LicenseNumber string   `json:"licenseNumber" validate:"required,max=50"`
	ServiceAreas  []string `json:"serviceAreas" validate:"required,min=1,dive,required"`
	Documents     []string `json:"documents" validate:"dive,url"`
}

// RejectInput carries the reason shown to the applicant
type RejectInput struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type DeliveryService struct {
	users  store.Users
	orders store.Orders
	blobs  storage.BlobStorage
	now    func() time.Time
}

func (s *DeliveryService) saveUser(ctx context.Context, userID primitive.ObjectID, fn func(*models.User) error) (*models.User, error) {
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

// Apply records an application and moves the user to delivery-pending.
func (s *DeliveryService) Apply(ctx context.Context, userID primitive.ObjectID, in ApplyInput) (*models.User, error) {
	u, err := s.saveUser(ctx, userID, func(u *models.User) error {
		switch u.Role {
		case models.RoleDelivery:
			return utils.NewConflict("You are already a delivery partner")
		case models.RoleDeliveryPending:
			return utils.NewConflict("Your application is already pending")
		case models.RoleAdmin:
			return utils.NewForbidden("Admins cannot apply as delivery partners")
		}
		var docs []string
		if u.DeliveryProfile != nil {
			docs = u.DeliveryProfile.Documents
		}
		docs = append(docs, in.Documents...)
		if docs == nil {
			docs = []string{}
		}
		areas := make([]string, 0, len(in.ServiceAreas))
		for _, a := range in.ServiceAreas {
			areas = append(areas, strings.TrimSpace(a))
		}

		u.Role = models.RoleDeliveryPending
		u.DeliveryProfile = &models.DeliveryProfile{
			VehicleType:   in.VehicleType,
			LicenseNumber: strings.TrimSpace(in.LicenseNumber),
			ServiceAreas:  areas,
			Documents:     docs,
			Status:        models.ApplicationPending,
			AppliedAt:     s.now(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("delivery application submitted", zap.String("user_id", userID.Hex()))
	return u, nil
}

// UploadDocuments stores KYC files and attaches their URLs to the user's profile. Files may
// be uploaded before or after applying.
func (s *DeliveryService) UploadDocuments(ctx context.Context, userID primitive.ObjectID, files []FileUpload) ([]string, error) {
	if err := checkFiles(files, isDocument); err != nil {
		return nil, err
	}
	urls, err := uploadAll(ctx, s.blobs, "kyc/"+userID.Hex(), files)
	if err != nil {
		return nil, err
	}
	_, err = s.saveUser(ctx, userID, func(u *models.User) error {
		if u.DeliveryProfile == nil {
			u.DeliveryProfile = &models.DeliveryProfile{ServiceAreas: []string{}}
		}
		u.DeliveryProfile.Documents = append(u.DeliveryProfile.Documents, urls...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return urls, nil
}

// ListPending returns users waiting for review.
func (s *DeliveryService) ListPending(ctx context.Context) ([]models.User, error) {
	users, err := s.users.ListByRole(ctx, models.RoleDeliveryPending)
	return users, storeErr(err, "")
}

// Partners returns the approved delivery partners.
func (s *DeliveryService) Partners(ctx context.Context) ([]models.User, error) {
	users, err := s.users.ListByRole(ctx, models.RoleDelivery)
	return users, storeErr(err, "")
}

func pendingApplication(u *models.User) error {
	if u.Role != models.RoleDeliveryPending || u.DeliveryProfile == nil || u.DeliveryProfile.Status != models.ApplicationPending {
		return utils.NewInvalidState("No pending application")
	}
	return nil
}

// Approve promotes a pending applicant to delivery partner.
func (s *DeliveryService) Approve(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	u, err := s.saveUser(ctx, userID, func(u *models.User) error {
		if err := pendingApplication(u); err != nil {
			return err
		}
		now := s.now()
		u.Role = models.RoleDelivery
		u.DeliveryProfile.Status = models.ApplicationApproved
		u.DeliveryProfile.RejectReason = ""
		u.DeliveryProfile.ReviewedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("delivery application approved", zap.String("user_id", userID.Hex()))
	return u, nil
}

// Reject returns a pending applicant to a regular customer account.
func (s *DeliveryService) Reject(ctx context.Context, userID primitive.ObjectID, in RejectInput) (*models.User, error) {
	u, err := s.saveUser(ctx, userID, func(u *models.User) error {
		if err := pendingApplication(u); err != nil {
			return err
		}
		now := s.now()
		u.Role = models.RoleUser
		u.DeliveryProfile.Status = models.ApplicationRejected
		u.DeliveryProfile.RejectReason = strings.TrimSpace(in.Reason)
		u.DeliveryProfile.ReviewedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("delivery application rejected", zap.String("user_id", userID.Hex()))
	return u, nil
}

// AssignedOrders lists the orders assigned to a partner.
func (s *DeliveryService) AssignedOrders(ctx context.Context, partnerID primitive.ObjectID) ([]models.Order, error) {
	orders, err := s.orders.ListByDeliveryPerson(ctx, partnerID)
	return orders, storeErr(err, "")
}
