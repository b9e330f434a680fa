package services

import (
	"context"
	"strings"
	"time"

	"go-ecommerce-delivery/logger"
	"go-ecommerce-delivery/models"
	"go-ecommerce-delivery/store"
	"go-ecommerce-delivery/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// CustomerUpdate edits a customer account. Empty fields are left unchanged.
type CustomerUpdate struct {
	Username string `json:"username" validate:"omitempty,min=3,max=50"`
	Email    string `json:"email" validate:"omitempty,email"`
	Phone    string `json:"phone" validate:"omitempty,min=6,max=20"`
	Role     string `json:"role" validate:"omitempty,oneof=user admin"`
}

type CustomerService struct {
	users store.Users
	now   func() time.Time
}

// List returns accounts with the customer role.
func (s *CustomerService) List(ctx context.Context) ([]models.User, error) {
	users, err := s.users.ListByRole(ctx, models.RoleUser)
	return users, storeErr(err, "")
}

func (s *CustomerService) Get(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	u, err := s.users.FindByID(ctx, id)
	return u, storeErr(err, "User not found")
}

// Update changes profile fields and, between user and admin only, the role. Delivery roles
// change only through onboarding.
func (s *CustomerService) Update(ctx context.Context, id primitive.ObjectID, in CustomerUpdate) (*models.User, error) {
	u, err := mutate(
		func() (*models.User, error) { return s.users.FindByID(ctx, id) },
		func(u *models.User) error {
			if v := strings.TrimSpace(in.Username); v != "" {
				u.Username = v
			}
			if v := strings.ToLower(strings.TrimSpace(in.Email)); v != "" {
				u.Email = v
			}
			if v := strings.TrimSpace(in.Phone); v != "" && v != u.Phone {
				u.Phone = v
				u.PhoneVerified = false
			}
			if in.Role != "" {
				if u.Role != models.RoleUser && u.Role != models.RoleAdmin {
					return utils.NewInvalidState("Delivery accounts change role through onboarding")
				}
				u.Role = models.Role(in.Role)
			}
			u.UpdatedAt = s.now()
			return nil
		},
		func(u *models.User) error { return s.users.Save(ctx, u) },
	)
	if err != nil {
		return nil, storeErr(err, "User not found")
	}
	return u, nil
}

func (s *CustomerService) Delete(ctx context.Context, id primitive.ObjectID) error {
	if err := s.users.Delete(ctx, id); err != nil {
		return storeErr(err, "User not found")
	}
	logger.FromContext(ctx).Info("user deleted", zap.String("user_id", id.Hex()))
	return nil
}
