package handlers

import (
	"net/http"
	"time"

	"github.com/creditsea/creditsea/internal/models"
	"github.com/creditsea/creditsea/internal/service"
	"github.com/creditsea/creditsea/internal/validation"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type AuthHandlers struct {
	responder
	otpService     *service.OTPService
	jwtService     *service.JWTService
	profileService *service.ProfileService
}

func NewAuthHandlers(
	otpService *service.OTPService,
	jwtService *service.JWTService,
	profileService *service.ProfileService,
	v *validation.Validator,
	logger *logrus.Logger,
) *AuthHandlers {
	return &AuthHandlers{
		responder:      responder{validator: v, logger: logger},
		otpService:     otpService,
		jwtService:     jwtService,
		profileService: profileService,
	}
}

type SendOTPRequest struct {
	PhoneNumber string `json:"phoneNumber" validate:"required"`
}

type SendOTPResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	OTP     string `json:"otp"`
	Note    string `json:"note"`
}

type VerifyOTPRequest struct {
	PhoneNumber string `json:"phoneNumber" validate:"required"`
	OTP         string `json:"otp" validate:"required"`
}

type VerifyOTPResponse struct {
	Success   bool            `json:"success"`
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expiresAt"`
	User      SessionUserView `json:"user"`
}

type SessionUserView struct {
	ID          string `json:"id"`
	PhoneNumber string `json:"phoneNumber"`
	Name        string `json:"name"`
	Email       string `json:"email"`
}

type GetOTPResponse struct {
	Success     bool   `json:"success"`
	PhoneNumber string `json:"phoneNumber"`
	OTP         string `json:"otp"`
}

type ProfileView struct {
	ID          string `json:"id"`
	PhoneNumber string `json:"phoneNumber"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	PAN         string `json:"pan"`
	DOB         string `json:"dob,omitempty"`
	Gender      string `json:"gender,omitempty"`
	CreditScore int    `json:"creditScore"`
	IsVerified  bool   `json:"isVerified"`
}

type ProfileResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	User    ProfileView `json:"user"`
}

func newProfileView(u *models.User) ProfileView {
	view := ProfileView{
		ID:          u.ID,
		PhoneNumber: u.PhoneNumber,
		Name:        u.Name,
		Email:       u.Email,
		PAN:         u.PAN,
		Gender:      string(u.Gender),
		CreditScore: u.CreditScore,
		IsVerified:  u.IsVerified,
	}
	if u.DOB != nil {
		view.DOB = u.DOB.Format(validation.DateLayout)
	}
	return view
}

func (h *AuthHandlers) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req SendOTPRequest
	if !h.decode(w, r, &req) {
		return
	}

	code, err := h.otpService.GenerateOTP(r.Context(), req.PhoneNumber)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	// No delivery channel: the code goes back to the caller.
	h.respondWithJSON(w, http.StatusOK, SendOTPResponse{
		Success: true,
		Message: "OTP sent successfully",
		OTP:     code,
		Note:    "For testing purposes - use this OTP",
	})
}

func (h *AuthHandlers) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req VerifyOTPRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.otpService.VerifyOTP(r.Context(), req.PhoneNumber, req.OTP)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	session, err := h.jwtService.GenerateToken(user)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	h.logger.WithField("user_id", user.ID).Info("User verified")
	h.respondWithJSON(w, http.StatusOK, VerifyOTPResponse{
		Success:   true,
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		User: SessionUserView{
			ID:          user.ID,
			PhoneNumber: user.PhoneNumber,
			Name:        user.Name,
			Email:       user.Email,
		},
	})
}

func (h *AuthHandlers) GetOTP(w http.ResponseWriter, r *http.Request) {
	phoneNumber := mux.Vars(r)["phoneNumber"]

	code, err := h.otpService.CurrentOTP(r.Context(), phoneNumber)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	normalized, _ := service.NormalizePhoneNumber(phoneNumber)
	h.respondWithJSON(w, http.StatusOK, GetOTPResponse{
		Success:     true,
		PhoneNumber: normalized,
		OTP:         code,
	})
}

func (h *AuthHandlers) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.identity(w, r)
	if !ok {
		return
	}

	user, err := h.profileService.Get(r.Context(), userID)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, ProfileResponse{Success: true, User: newProfileView(user)})
}

func (h *AuthHandlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.identity(w, r)
	if !ok {
		return
	}

	// Field validation happens in the service after normalisation.
	var req service.ProfileInput
	if !h.decodeJSON(w, r, &req) {
		return
	}

	user, err := h.profileService.Update(r.Context(), userID, req)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, ProfileResponse{
		Success: true,
		Message: "Profile updated successfully",
		User:    newProfileView(user),
	})
}
