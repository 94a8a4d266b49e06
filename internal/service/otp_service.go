package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/creditsea/creditsea/internal/apperrors"
	"github.com/creditsea/creditsea/internal/config"
	"github.com/creditsea/creditsea/internal/models"
	"github.com/creditsea/creditsea/internal/repository"
	"github.com/sirupsen/logrus"
)

// E.164: + followed by at most 15 digits.
var phonePattern = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)

// RateLimiter is satisfied by RedisRateLimiter.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
}

type OTPService struct {
	users   UserStore
	limiter RateLimiter
	cfg     *config.OTPConfig
	logger  *logrus.Logger
	now     func() time.Time
}

// NewOTPService builds the OTP flow. limiter may be nil.
func NewOTPService(users UserStore, limiter RateLimiter, cfg *config.OTPConfig, logger *logrus.Logger) *OTPService {
	return &OTPService{
		users:   users,
		limiter: limiter,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// NormalizePhoneNumber trims the number, adds a leading + and checks E.164.
func NormalizePhoneNumber(raw string) (string, error) {
	phoneNumber := strings.TrimSpace(raw)
	if phoneNumber == "" {
		return "", apperrors.Validation("phoneNumber is required")
	}
	if !strings.HasPrefix(phoneNumber, "+") {
		phoneNumber = "+" + phoneNumber
	}
	if !phonePattern.MatchString(phoneNumber) {
		return "", apperrors.Validation("Invalid phone number format")
	}
	return phoneNumber, nil
}

// GenerateOTP issues a new code for the number, creating the user on first
// contact. Any previously issued code stops being valid.
func (s *OTPService) GenerateOTP(ctx context.Context, rawPhone string) (string, error) {
	phoneNumber, err := NormalizePhoneNumber(rawPhone)
	if err != nil {
		return "", err
	}

	if s.limiter != nil {
		allowed, retryAfter, err := s.limiter.Allow(ctx, phoneNumber)
		if err != nil {
			s.logger.WithError(err).Warn("OTP rate limiter unavailable, allowing request")
		} else if !allowed {
			return "", apperrors.Newf(apperrors.KindRateLimited,
				"Too many OTP requests, try again in %d seconds", int(retryAfter.Round(time.Second).Seconds()))
		}
	}

	if _, err := s.users.GetOrCreate(ctx, phoneNumber); err != nil {
		return "", apperrors.Internal(err)
	}

	code, err := generateRandomOTP()
	if err != nil {
		return "", apperrors.Internal(fmt.Errorf("failed to generate OTP: %w", err))
	}

	otp := models.OTP{
		Code:      code,
		ExpiresAt: s.now().UTC().Add(s.cfg.Expiry),
	}
	if err := s.users.StoreOTP(ctx, phoneNumber, otp); err != nil {
		return "", apperrors.Internal(err)
	}

	s.logger.WithFields(logrus.Fields{
		"phone": phoneNumber,
		"otp":   code,
	}).Debug("OTP generated (logged for development)")

	return code, nil
}

// VerifyOTP consumes the outstanding code and returns the verified user.
func (s *OTPService) VerifyOTP(ctx context.Context, rawPhone, code string) (*models.User, error) {
	phoneNumber, err := NormalizePhoneNumber(rawPhone)
	if err != nil {
		return nil, err
	}
	code = strings.TrimSpace(code)

	user, err := s.users.GetByPhoneNumber(ctx, phoneNumber)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if user == nil || user.OTP == nil || code == "" {
		return nil, apperrors.InvalidCode("Invalid OTP")
	}
	if user.OTP.Expired(s.now()) {
		return nil, apperrors.InvalidCode("OTP expired")
	}
	if subtle.ConstantTimeCompare([]byte(user.OTP.Code), []byte(code)) != 1 {
		return nil, apperrors.InvalidCode("Invalid OTP")
	}

	if err := s.users.MarkVerified(ctx, phoneNumber, code); err != nil {
		// A newer code was issued between the read and the write.
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperrors.InvalidCode("Invalid OTP")
		}
		return nil, apperrors.Internal(err)
	}

	user.OTP = nil
	user.IsVerified = true
	return user, nil
}

// CurrentOTP returns the outstanding, unexpired code for the number.
func (s *OTPService) CurrentOTP(ctx context.Context, rawPhone string) (string, error) {
	phoneNumber, err := NormalizePhoneNumber(rawPhone)
	if err != nil {
		return "", err
	}

	user, err := s.users.GetByPhoneNumber(ctx, phoneNumber)
	if err != nil {
		return "", apperrors.Internal(err)
	}
	if user == nil || user.OTP == nil || user.OTP.Expired(s.now()) {
		return "", apperrors.NotFound("No OTP found for this number")
	}
	return user.OTP.Code, nil
}

// generateRandomOTP returns a 4 digit code in 1000-9999.
func generateRandomOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", n.Int64()+1000), nil
}
