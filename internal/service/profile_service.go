package service

import (
	"context"
	"errors"
	"strings"

	"github.com/creditsea/creditsea/internal/apperrors"
	"github.com/creditsea/creditsea/internal/models"
	"github.com/creditsea/creditsea/internal/repository"
	"github.com/creditsea/creditsea/internal/validation"
	"github.com/sirupsen/logrus"
)

// ProfileInput replaces the stored profile. Empty fields clear the value.
type ProfileInput struct {
	Name   string `json:"name" validate:"max=100"`
	Email  string `json:"email" validate:"omitempty,email"`
	PAN    string `json:"pan" validate:"omitempty,pan"`
	DOB    string `json:"dob" validate:"omitempty,dob"`
	Gender string `json:"gender" validate:"omitempty,gender"`
}

type ProfileService struct {
	users     UserStore
	validator *validation.Validator
	logger    *logrus.Logger
}

func NewProfileService(users UserStore, v *validation.Validator, logger *logrus.Logger) *ProfileService {
	return &ProfileService{users: users, validator: v, logger: logger}
}

func (s *ProfileService) Get(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if user == nil {
		return nil, apperrors.NotFound("User not found")
	}
	return user, nil
}

func (s *ProfileService) Update(ctx context.Context, userID string, in ProfileInput) (*models.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.PAN = strings.ToUpper(strings.TrimSpace(in.PAN))
	in.DOB = strings.TrimSpace(in.DOB)
	in.Gender = strings.TrimSpace(in.Gender)

	if err := s.validator.Validate(in); err != nil {
		return nil, apperrors.Validation(validation.Summary(err))
	}

	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	user.Name = in.Name
	user.Email = in.Email
	user.PAN = in.PAN
	user.Gender = models.Gender(in.Gender)
	user.DOB = nil
	if in.DOB != "" {
		dob, err := validation.ParseDate(in.DOB)
		if err != nil {
			return nil, apperrors.Validation("dob must be a past date in YYYY-MM-DD format")
		}
		user.DOB = &dob
	}

	if err := s.users.UpdateProfile(ctx, user); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("User not found")
		}
		return nil, apperrors.Internal(err)
	}

	s.logger.WithField("user_id", user.ID).Info("Profile updated")
	return user, nil
}
