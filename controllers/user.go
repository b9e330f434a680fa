package controllers

import (
	"net/http"

	"go-ecommerce-delivery/services"
	"go-ecommerce-delivery/utils"
)

// UserController handles registration, login and phone verification
type UserController struct {
	Auth *services.AuthService
	Otp  *services.OtpService
}

// NewUserController creates a new UserController
func NewUserController(auth *services.AuthService, otp *services.OtpService) *UserController {
	return &UserController{Auth: auth, Otp: otp}
}

// Register creates a customer account and returns a token
func (uc *UserController) Register(w http.ResponseWriter, r *http.Request) {
	var input services.RegisterInput
	if err := utils.DecodeJSON(r, &input); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	session, err := uc.Auth.Register(ctx, input)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, session)
}

// Login authenticates with email, username or phone
func (uc *UserController) Login(w http.ResponseWriter, r *http.Request) {
	var input services.LoginInput
	if err := utils.DecodeJSON(r, &input); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	session, err := uc.Auth.Login(ctx, input)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, session)
}

// GetProfile returns the logged-in user
func (uc *UserController) GetProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	utils.WriteJSON(w, http.StatusOK, user)
}

// SendOtp issues a verification code for a phone
func (uc *UserController) SendOtp(w http.ResponseWriter, r *http.Request) {
	var input services.SendOtpInput
	if err := utils.DecodeJSON(r, &input); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	otp, err := uc.Otp.Send(ctx, input)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]any{
		"message":   "OTP sent",
		"expiresAt": otp.ExpiresAt,
	})
}

// VerifyOtp checks a code and marks the phone as verified
func (uc *UserController) VerifyOtp(w http.ResponseWriter, r *http.Request) {
	var input services.VerifyOtpInput
	if err := utils.DecodeJSON(r, &input); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	if err := uc.Otp.Verify(ctx, input); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteMessage(w, http.StatusOK, "Phone verified")
}
