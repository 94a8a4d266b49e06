package handlers

import (
	"net/http"

	"github.com/creditsea/creditsea/internal/apperrors"
	"github.com/creditsea/creditsea/internal/middleware"
	"github.com/creditsea/creditsea/internal/models"
	"github.com/creditsea/creditsea/internal/service"
	"github.com/creditsea/creditsea/internal/validation"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type LoanHandlers struct {
	responder
	applications *service.ApplicationService
}

func NewLoanHandlers(applications *service.ApplicationService, v *validation.Validator, logger *logrus.Logger) *LoanHandlers {
	return &LoanHandlers{
		responder:    responder{validator: v, logger: logger},
		applications: applications,
	}
}

type LoanRequest struct {
	LoanAmount   float64  `json:"loanAmount" validate:"gt=0"`
	Tenure       int      `json:"tenure" validate:"gt=0,lte=600"`
	InterestRate *float64 `json:"interestRate,omitempty" validate:"omitempty,gte=0"`
}

type EligibilityRequest struct {
	LoanAmount float64 `json:"loanAmount" validate:"gt=0"`
	Tenure     int     `json:"tenure" validate:"omitempty,gt=0,lte=600"`
}

type StatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type EMIResponse struct {
	Success bool `json:"success"`
	models.EMIResult
}

type EligibilityResponse struct {
	Success bool `json:"success"`
	models.Eligibility
}

type ApplicationResponse struct {
	Success     bool                    `json:"success"`
	Message     string                  `json:"message,omitempty"`
	Application *models.LoanApplication `json:"application"`
}

type ApplicationsResponse struct {
	Success      bool                     `json:"success"`
	Applications []models.LoanApplication `json:"applications"`
}

func (h *LoanHandlers) CalculateEMI(w http.ResponseWriter, r *http.Request) {
	var req LoanRequest
	if !h.decode(w, r, &req) {
		return
	}

	rate := models.DefaultInterestRate
	if req.InterestRate != nil {
		rate = *req.InterestRate
	}

	result, err := service.CalculateEMI(req.LoanAmount, req.Tenure, rate)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, EMIResponse{Success: true, EMIResult: result})
}

func (h *LoanHandlers) CheckEligibility(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.identity(w, r)
	if !ok {
		return
	}

	var req EligibilityRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.applications.CheckEligibility(r.Context(), userID, req.LoanAmount)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, EligibilityResponse{Success: true, Eligibility: result})
}

func (h *LoanHandlers) Apply(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.identity(w, r)
	if !ok {
		return
	}

	var req LoanRequest
	if !h.decode(w, r, &req) {
		return
	}

	app, err := h.applications.Apply(r.Context(), userID, service.ApplyInput{
		LoanAmount:   req.LoanAmount,
		Tenure:       req.Tenure,
		InterestRate: req.InterestRate,
	})
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, ApplicationResponse{
		Success:     true,
		Message:     "Loan application submitted successfully",
		Application: app,
	})
}

func (h *LoanHandlers) ListApplications(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.identity(w, r)
	if !ok {
		return
	}

	apps, err := h.applications.List(r.Context(), userID)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, ApplicationsResponse{Success: true, Applications: apps})
}

func (h *LoanHandlers) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		h.respondWithError(w, r, apperrors.Unauthorized("No token provided"))
		return
	}

	var req StatusRequest
	if !h.decode(w, r, &req) {
		return
	}

	app, err := h.applications.UpdateStatus(r.Context(), caller, mux.Vars(r)["id"], req.Status)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, ApplicationResponse{Success: true, Application: app})
}
