package service

import (
	"fmt"
	"time"

	"github.com/creditsea/creditsea/internal/apperrors"
	"github.com/creditsea/creditsea/internal/config"
	"github.com/creditsea/creditsea/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const sessionTokenType = "session"

type JWTService struct {
	secretKey []byte
	expiry    time.Duration
	admins    map[string]struct{}
	logger    *logrus.Logger
	now       func() time.Time
}

func NewJWTService(cfg *config.JWTConfig, logger *logrus.Logger) (*JWTService, error) {
	secretKey := []byte(cfg.SecretKey)
	if len(secretKey) < 32 {
		return nil, fmt.Errorf("secret key must be at least 32 bytes")
	}

	admins := make(map[string]struct{}, len(cfg.AdminPhoneNumbers))
	for _, phone := range cfg.AdminPhoneNumbers {
		admins[phone] = struct{}{}
	}

	return &JWTService{
		secretKey: secretKey,
		expiry:    cfg.Expiry,
		admins:    admins,
		logger:    logger,
		now:       time.Now,
	}, nil
}

type Claims struct {
	Phone string `json:"phone"`
	Admin bool   `json:"admin,omitempty"`
	Type  string `json:"type"`
	jwt.RegisteredClaims
}

// GenerateToken signs a session token bound to the user's id.
func (s *JWTService) GenerateToken(user *models.User) (*models.Session, error) {
	now := s.now()
	expiresAt := now.Add(s.expiry)
	_, admin := s.admins[user.PhoneNumber]

	claims := &Claims{
		Phone: user.PhoneNumber,
		Admin: admin,
		Type:  sessionTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secretKey)
	if err != nil {
		s.logger.WithError(err).Error("Failed to sign session token")
		return nil, fmt.Errorf("failed to sign session token: %w", err)
	}

	return &models.Session{Token: tokenString, ExpiresAt: expiresAt}, nil
}

func (s *JWTService) VerifyToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secretKey, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return claims, nil
}

// ValidateSession resolves a bearer token to the identity it was issued for.
func (s *JWTService) ValidateSession(tokenString string) (models.Identity, error) {
	claims, err := s.VerifyToken(tokenString)
	if err != nil {
		s.logger.WithError(err).Debug("Token verification failed")
		return models.Identity{}, apperrors.Unauthorized("Invalid token")
	}
	if claims.Type != sessionTokenType || claims.Subject == "" {
		return models.Identity{}, apperrors.Unauthorized("Invalid token")
	}

	return models.Identity{
		UserID: claims.Subject,
		Phone:  claims.Phone,
		Admin:  claims.Admin,
	}, nil
}
