package models

import (
	"fmt"
	"time"
)

const DefaultInterestRate = 12.5

type LoanStatus string

const (
	StatusSubmitted   LoanStatus = "Submitted"
	StatusUnderReview LoanStatus = "Under Review"
	StatusApproved    LoanStatus = "Approved"
	StatusRejected    LoanStatus = "Rejected"
	StatusDisbursed   LoanStatus = "Disbursed"
)

var loanTransitions = map[LoanStatus][]LoanStatus{
	StatusSubmitted:   {StatusUnderReview, StatusRejected},
	StatusUnderReview: {StatusApproved, StatusRejected},
	StatusApproved:    {StatusDisbursed},
}

func ParseLoanStatus(s string) (LoanStatus, error) {
	switch st := LoanStatus(s); st {
	case StatusSubmitted, StatusUnderReview, StatusApproved, StatusRejected, StatusDisbursed:
		return st, nil
	}
	return "", fmt.Errorf("unknown loan status %q", s)
}

// CanTransition reports whether an application may move from one status to another.
func CanTransition(from, to LoanStatus) bool {
	for _, next := range loanTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type LoanApplication struct {
	ID           string     `json:"id" dynamodbav:"id"`
	UserID       string     `json:"userId" dynamodbav:"user_id"`
	LoanAmount   float64    `json:"loanAmount" dynamodbav:"loan_amount"`
	Tenure       int        `json:"tenure" dynamodbav:"tenure"`
	Status       LoanStatus `json:"status" dynamodbav:"status"`
	EMI          float64    `json:"emi" dynamodbav:"emi"`
	InterestRate float64    `json:"interestRate" dynamodbav:"interest_rate"`
	AppliedDate  time.Time  `json:"appliedDate" dynamodbav:"applied_date"`
	UpdatedAt    time.Time  `json:"updatedAt" dynamodbav:"updated_at"`
}

func (a *LoanApplication) GetPK() string {
	return "LOAN#" + a.ID
}

func (a *LoanApplication) GetSK() string {
	return "METADATA"
}

// EMIResult holds amounts in whole currency units.
type EMIResult struct {
	EMI           float64 `json:"emi"`
	TotalPayment  float64 `json:"totalPayment"`
	TotalInterest float64 `json:"totalInterest"`
}

type Eligibility struct {
	Eligible          bool    `json:"eligible"`
	MaxEligibleAmount float64 `json:"maxEligibleAmount"`
	Message           string  `json:"message"`
	CreditScore       int     `json:"creditScore"`
}
