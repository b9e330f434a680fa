package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go-ecommerce-delivery/logger"
	"go-ecommerce-delivery/models"
	"go-ecommerce-delivery/store"
	"go-ecommerce-delivery/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// RegisterInput is the sign-up request
type RegisterInput struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"required,min=6,max=20"`
	Password string `json:"password" validate:"required,min=6"`
}

// LoginInput accepts an email, username or phone as identifier
type LoginInput struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

// Session is returned after register and login
type Session struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

type AuthService struct {
	users  store.Users
	tokens *utils.TokenManager
	now    func() time.Time
}

// Register creates a customer account. Each of username, email and phone must be unused.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)

	for _, check := range []struct{ field, value string }{
		{"Username", in.Username}, {"Email", in.Email}, {"Phone", in.Phone},
	} {
		existing, err := s.users.FindByLogin(ctx, check.value)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, storeErr(err, "")
		}
		if existing != nil && fieldTaken(existing, check.field, check.value) {
			return nil, utils.NewConflict(check.field + " is already registered")
		}
	}

	hashed, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, utils.NewInternal("Error hashing password", err)
	}

	now := s.now()
	user := &models.User{
		Username:  in.Username,
		Email:     in.Email,
		Phone:     in.Phone,
		Password:  hashed,
		Role:      models.RoleUser,
		Addresses: []models.Address{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, utils.NewConflict("User already exists")
		}
		return nil, storeErr(err, "")
	}
	logger.FromContext(ctx).Info("user registered", zap.String("user_id", user.ID.Hex()))
	return s.session(user)
}

func fieldTaken(u *models.User, field, value string) bool {
	switch field {
	case "Username":
		return u.Username == value
	case "Email":
		return u.Email == value
	default:
		return u.Phone == value
	}
}

// Login checks the password and issues a token.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*Session, error) {
	identifier := strings.TrimSpace(in.Identifier)
	user, err := s.users.FindByLogin(ctx, identifier)
	if errors.Is(err, store.ErrNotFound) && strings.Contains(identifier, "@") {
		user, err = s.users.FindByLogin(ctx, strings.ToLower(identifier))
	}
	if errors.Is(err, store.ErrNotFound) {
		return nil, utils.NewUnauthorized("Invalid credentials")
	}
	if err != nil {
		return nil, storeErr(err, "")
	}
	if !utils.CheckPassword(user.Password, in.Password) {
		return nil, utils.NewUnauthorized("Invalid credentials")
	}
	return s.session(user)
}

func (s *AuthService) session(u *models.User) (*Session, error) {
	token, err := s.tokens.Generate(u.ID.Hex(), string(u.Role))
	if err != nil {
		return nil, utils.NewInternal("Error generating token", err)
	}
	return &Session{Token: token, User: u}, nil
}

// Authenticate resolves a bearer token to the current user. The user is loaded on every
// call so a role change takes effect without a new token.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, utils.NewUnauthorized("Invalid token")
	}
	id, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return nil, utils.NewUnauthorized("Invalid token")
	}
	user, err := s.users.FindByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, utils.NewUnauthorized("User no longer exists")
	}
	if err != nil {
		return nil, storeErr(err, "")
	}
	return user, nil
}

// Profile returns the stored user.
func (s *AuthService) Profile(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	return user, storeErr(err, "User not found")
}

// PromoteAdmin gives the account with email the admin role. Used to bootstrap the first admin.
func (s *AuthService) PromoteAdmin(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil
	}
	found, err := s.users.FindByLogin(ctx, email)
	if err != nil {
		return storeErr(err, "No user registered with "+email)
	}
	_, err = mutate(
		func() (*models.User, error) { return s.users.FindByID(ctx, found.ID) },
		func(u *models.User) error {
			if u.Role == models.RoleAdmin {
				return errSkipSave
			}
			u.Role = models.RoleAdmin
			u.UpdatedAt = s.now()
			return nil
		},
		func(u *models.User) error { return s.users.Save(ctx, u) },
	)
	return storeErr(err, "User not found")
}
