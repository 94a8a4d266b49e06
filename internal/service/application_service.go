package service

import (
	"context"
	"errors"
	"time"

	"github.com/creditsea/creditsea/internal/apperrors"
	"github.com/creditsea/creditsea/internal/models"
	"github.com/creditsea/creditsea/internal/repository"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type ApplyInput struct {
	LoanAmount   float64  `json:"loanAmount"`
	Tenure       int      `json:"tenure"`
	InterestRate *float64 `json:"interestRate,omitempty"`
}

func (in ApplyInput) rate() float64 {
	if in.InterestRate == nil {
		return models.DefaultInterestRate
	}
	return *in.InterestRate
}

// ApplicationService runs eligibility checks and the application lifecycle.
type ApplicationService struct {
	users  UserStore
	loans  LoanStore
	logger *logrus.Logger
	now    func() time.Time
	newID  func() string
}

func NewApplicationService(users UserStore, loans LoanStore, logger *logrus.Logger) *ApplicationService {
	return &ApplicationService{
		users:  users,
		loans:  loans,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

func (s *ApplicationService) loadUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if user == nil {
		return nil, apperrors.NotFound("User not found")
	}
	return user, nil
}

func (s *ApplicationService) CheckEligibility(ctx context.Context, userID string, amount float64) (models.Eligibility, error) {
	if amount <= 0 {
		return models.Eligibility{}, apperrors.Validation("loanAmount must be a positive number")
	}
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return models.Eligibility{}, err
	}
	return EvaluateEligibility(*user, amount), nil
}

// Apply evaluates eligibility against a single read of the user and, when
// eligible, stores a Submitted application with its EMI fixed.
func (s *ApplicationService) Apply(ctx context.Context, userID string, in ApplyInput) (*models.LoanApplication, error) {
	rate := in.rate()
	emi, err := CalculateEMI(in.LoanAmount, in.Tenure, rate)
	if err != nil {
		return nil, err
	}

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	verdict := EvaluateEligibility(*user, in.LoanAmount)
	if !verdict.Eligible {
		return nil, apperrors.Ineligible(verdict.Message)
	}

	now := s.now().UTC()
	app := &models.LoanApplication{
		ID:           s.newID(),
		UserID:       user.ID,
		LoanAmount:   in.LoanAmount,
		Tenure:       in.Tenure,
		Status:       models.StatusSubmitted,
		EMI:          emi.EMI,
		InterestRate: rate,
		AppliedDate:  now,
		UpdatedAt:    now,
	}
	if err := s.loans.Create(ctx, app); err != nil {
		return nil, apperrors.Internal(err)
	}

	s.logger.WithFields(logrus.Fields{
		"application_id": app.ID,
		"user_id":        app.UserID,
		"amount":         app.LoanAmount,
	}).Info("Loan application submitted")

	return app, nil
}

func (s *ApplicationService) List(ctx context.Context, userID string) ([]models.LoanApplication, error) {
	apps, err := s.loans.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return apps, nil
}

// UpdateStatus moves an application along the status graph. Only the owner
// or an admin may do so.
func (s *ApplicationService) UpdateStatus(ctx context.Context, caller models.Identity, applicationID, status string) (*models.LoanApplication, error) {
	next, err := models.ParseLoanStatus(status)
	if err != nil {
		return nil, apperrors.Validation("Invalid status")
	}

	app, err := s.loans.GetByID(ctx, applicationID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if app == nil {
		return nil, apperrors.NotFound("Application not found")
	}

	if app.UserID != caller.UserID && !caller.Admin {
		return nil, apperrors.Forbidden("Not allowed to update this application")
	}

	if !models.CanTransition(app.Status, next) {
		return nil, apperrors.Newf(apperrors.KindInvalidTransition,
			"Cannot move application from %s to %s", app.Status, next)
	}

	updated, err := s.loans.UpdateStatus(ctx, app.ID, app.Status, next, s.now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperrors.New(apperrors.KindInvalidTransition, "Application status changed concurrently")
		}
		return nil, apperrors.Internal(err)
	}

	s.logger.WithFields(logrus.Fields{
		"application_id": updated.ID,
		"from":           app.Status,
		"to":             updated.Status,
		"by":             caller.UserID,
	}).Info("Loan application status updated")

	return updated, nil
}
