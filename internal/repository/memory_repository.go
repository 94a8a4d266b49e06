package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/creditsea/creditsea/internal/models"
	"github.com/google/uuid"
)

// MemoryUserRepository is a process-local user store for development and tests.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]models.User // keyed by phone number
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]models.User)}
}

func (r *MemoryUserRepository) GetByPhoneNumber(_ context.Context, phoneNumber string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[phoneNumber]
	if !ok {
		return nil, nil
	}
	return cloneUser(user), nil
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.users {
		if user.ID == id {
			return cloneUser(user), nil
		}
	}
	return nil, nil
}

func (r *MemoryUserRepository) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.users[user.PhoneNumber]; exists {
		return ErrConflict
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.UpdatedAt = user.CreatedAt
	r.users[user.PhoneNumber] = *cloneUser(*user)
	return nil
}

func (r *MemoryUserRepository) GetOrCreate(_ context.Context, phoneNumber string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user, ok := r.users[phoneNumber]; ok {
		return cloneUser(user), nil
	}
	user := models.NewUser(uuid.NewString(), phoneNumber, time.Now().UTC())
	r.users[phoneNumber] = *user
	return cloneUser(*user), nil
}

func (r *MemoryUserRepository) UpdateProfile(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.users[user.PhoneNumber]
	if !ok {
		return ErrNotFound
	}
	user.UpdatedAt = time.Now().UTC()
	stored.Name = user.Name
	stored.Email = user.Email
	stored.PAN = user.PAN
	stored.Gender = user.Gender
	stored.DOB = user.DOB
	stored.UpdatedAt = user.UpdatedAt
	r.users[user.PhoneNumber] = *cloneUser(stored)
	return nil
}

func (r *MemoryUserRepository) StoreOTP(_ context.Context, phoneNumber string, otp models.OTP) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[phoneNumber]
	if !ok {
		return ErrNotFound
	}
	user.OTP = &otp
	user.IsVerified = false
	user.UpdatedAt = time.Now().UTC()
	r.users[phoneNumber] = user
	return nil
}

func (r *MemoryUserRepository) MarkVerified(_ context.Context, phoneNumber, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[phoneNumber]
	if !ok || user.OTP == nil || user.OTP.Code != code {
		return ErrConflict
	}
	user.OTP = nil
	user.IsVerified = true
	user.UpdatedAt = time.Now().UTC()
	r.users[phoneNumber] = user
	return nil
}

func cloneUser(u models.User) *models.User {
	if u.OTP != nil {
		otp := *u.OTP
		u.OTP = &otp
	}
	if u.DOB != nil {
		dob := *u.DOB
		u.DOB = &dob
	}
	return &u
}

// MemoryLoanRepository is a process-local loan application store.
type MemoryLoanRepository struct {
	mu   sync.RWMutex
	apps map[string]models.LoanApplication
}

func NewMemoryLoanRepository() *MemoryLoanRepository {
	return &MemoryLoanRepository{apps: make(map[string]models.LoanApplication)}
}

func (r *MemoryLoanRepository) Create(_ context.Context, app *models.LoanApplication) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.apps[app.ID]; exists {
		return ErrConflict
	}
	r.apps[app.ID] = *app
	return nil
}

func (r *MemoryLoanRepository) GetByID(_ context.Context, id string) (*models.LoanApplication, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	app, ok := r.apps[id]
	if !ok {
		return nil, nil
	}
	return &app, nil
}

func (r *MemoryLoanRepository) ListByUser(_ context.Context, userID string) ([]models.LoanApplication, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	apps := []models.LoanApplication{}
	for _, app := range r.apps {
		if app.UserID == userID {
			apps = append(apps, app)
		}
	}
	sort.Slice(apps, func(i, j int) bool {
		if apps[i].AppliedDate.Equal(apps[j].AppliedDate) {
			return apps[i].ID > apps[j].ID
		}
		return apps[i].AppliedDate.After(apps[j].AppliedDate)
	})
	return apps, nil
}

func (r *MemoryLoanRepository) UpdateStatus(_ context.Context, id string, from, to models.LoanStatus, at time.Time) (*models.LoanApplication, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	app, ok := r.apps[id]
	if !ok || app.Status != from {
		return nil, ErrConflict
	}
	app.Status = to
	app.UpdatedAt = at
	r.apps[id] = app
	return &app, nil
}
