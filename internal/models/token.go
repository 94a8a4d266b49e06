package models

import "time"

// Session is a signed bearer token handed to a verified user.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Identity is what a valid session token resolves to.
type Identity struct {
	UserID string
	Phone  string
	Admin  bool
}
