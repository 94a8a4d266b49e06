package models

import (
	"time"
)

const DefaultCreditScore = 500

type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
	GenderOther  Gender = "Other"
)

func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return true
	}
	return false
}

type User struct {
	ID          string     `json:"id" dynamodbav:"id"`
	PhoneNumber string     `json:"phoneNumber" dynamodbav:"phone_number"`
	Name        string     `json:"name,omitempty" dynamodbav:"name,omitempty"`
	DOB         *time.Time `json:"dob,omitempty" dynamodbav:"dob,omitempty"`
	Gender      Gender     `json:"gender,omitempty" dynamodbav:"gender,omitempty"`
	PAN         string     `json:"pan,omitempty" dynamodbav:"pan,omitempty"`
	Email       string     `json:"email,omitempty" dynamodbav:"email,omitempty"`
	OTP         *OTP       `json:"-" dynamodbav:"otp,omitempty"`
	IsVerified  bool       `json:"isVerified" dynamodbav:"is_verified"`
	CreditScore int        `json:"creditScore" dynamodbav:"credit_score"`
	CreatedAt   time.Time  `json:"createdAt" dynamodbav:"created_at"`
	UpdatedAt   time.Time  `json:"updatedAt" dynamodbav:"updated_at"`
}

// NewUser returns an unverified user with an empty profile.
func NewUser(id, phoneNumber string, now time.Time) *User {
	return &User{
		ID:          id,
		PhoneNumber: phoneNumber,
		CreditScore: DefaultCreditScore,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (u *User) GetPK() string {
	return "USER!" + u.PhoneNumber
}

func (u *User) GetSK() string {
	return "METADATA"
}

// ProfileComplete reports whether the fields needed for a loan are present.
func (u *User) ProfileComplete() bool {
	return u.Name != "" && u.PAN != "" && u.Email != ""
}
