package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"go-ecommerce-delivery/logger"
	"go-ecommerce-delivery/models"
	"go-ecommerce-delivery/store"
	"go-ecommerce-delivery/utils"

	"go.uber.org/zap"
)

// OtpSender delivers a verification code to a phone.
type OtpSender interface {
	Send(ctx context.Context, phone, code string) error
}

// LogOtpSender writes the code to the request log instead of sending an SMS.
type LogOtpSender struct{}

func (LogOtpSender) Send(ctx context.Context, phone, code string) error {
	logger.FromContext(ctx).Info("otp issued", zap.String("phone", phone), zap.String("code", code))
	return nil
}

// SendOtpInput requests a code
type SendOtpInput struct {
	Phone string `json:"phone" validate:"required,min=6,max=20"`
}

// VerifyOtpInput checks a code
type VerifyOtpInput struct {
	Phone string `json:"phone" validate:"required,min=6,max=20"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

type OtpService struct {
	otps    store.Otps
	users   store.Users
	sender  OtpSender
	ttl     time.Duration
	now     func() time.Time
	newCode func() (string, error)
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// Send issues a fresh code, replacing any earlier one for the phone.
func (s *OtpService) Send(ctx context.Context, in SendOtpInput) (*models.Otp, error) {
	code, err := s.newCode()
	if err != nil {
		return nil, utils.NewInternal("Failed to generate OTP", err)
	}
	now := s.now()
	otp := &models.Otp{
		Phone:     strings.TrimSpace(in.Phone),
		Code:      code,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.otps.Replace(ctx, otp); err != nil {
		return nil, storeErr(err, "")
	}
	if err := s.sender.Send(ctx, otp.Phone, code); err != nil {
		return nil, utils.NewExternal("Failed to send OTP", err)
	}
	return otp, nil
}

// Verify consumes a live matching code and marks the phone's account as verified.
func (s *OtpService) Verify(ctx context.Context, in VerifyOtpInput) error {
	phone := strings.TrimSpace(in.Phone)
	otp, err := s.otps.FindLive(ctx, phone, s.now())
	if errors.Is(err, store.ErrNotFound) {
		return utils.NewValidation("Invalid or expired OTP")
	}
	if err != nil {
		return storeErr(err, "")
	}
	if subtle.ConstantTimeCompare([]byte(otp.Code), []byte(in.Code)) != 1 {
		return utils.NewValidation("Invalid or expired OTP")
	}
	if err := s.otps.Delete(ctx, phone); err != nil {
		return storeErr(err, "")
	}

	user, err := s.users.FindByPhone(ctx, phone)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return storeErr(err, "")
	}
	_, err = mutate(
		func() (*models.User, error) { return s.users.FindByID(ctx, user.ID) },
		func(u *models.User) error {
			if u.PhoneVerified {
				return errSkipSave
			}
			u.PhoneVerified = true
			u.UpdatedAt = s.now()
			return nil
		},
		func(u *models.User) error { return s.users.Save(ctx, u) },
	)
	return storeErr(err, "User not found")
}
