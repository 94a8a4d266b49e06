package service

import (
	"context"
	"time"

	"github.com/creditsea/creditsea/internal/models"
)

// UserStore is implemented by repository.UserRepository and
// repository.MemoryUserRepository. Getters return nil, nil for a missing user.
type UserStore interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByPhoneNumber(ctx context.Context, phoneNumber string) (*models.User, error)
	GetOrCreate(ctx context.Context, phoneNumber string) (*models.User, error)
	UpdateProfile(ctx context.Context, user *models.User) error
	StoreOTP(ctx context.Context, phoneNumber string, otp models.OTP) error
	MarkVerified(ctx context.Context, phoneNumber, code string) error
}

// LoanStore is implemented by repository.LoanRepository and
// repository.MemoryLoanRepository.
type LoanStore interface {
	Create(ctx context.Context, app *models.LoanApplication) error
	GetByID(ctx context.Context, id string) (*models.LoanApplication, error)
	ListByUser(ctx context.Context, userID string) ([]models.LoanApplication, error)
	UpdateStatus(ctx context.Context, id string, from, to models.LoanStatus, at time.Time) (*models.LoanApplication, error)
}
