package service

import (
	"fmt"

	"github.com/creditsea/creditsea/internal/models"
)

// Credit-score tiers and the maximum loan amount each allows.
const (
	defaultMaxLoanAmount  = 50000
	midTierMinCreditScore = 600
	midTierMaxLoanAmount  = 100000
	topTierMinCreditScore = 750
	topTierMaxLoanAmount  = 200000
)

// EvaluateEligibility decides whether user may borrow requested. The first
// matching rule sets the verdict; a request above the tier maximum then
// overrides it. An incomplete profile keeps the default maximum.
func EvaluateEligibility(user models.User, requested float64) models.Eligibility {
	result := models.Eligibility{
		Eligible:          true,
		MaxEligibleAmount: defaultMaxLoanAmount,
		Message:           "Eligible for loan",
		CreditScore:       user.CreditScore,
	}

	switch {
	case !user.ProfileComplete():
		result.Eligible = false
		result.Message = "Complete your profile first"
	case user.CreditScore < midTierMinCreditScore:
		result.Eligible = false
		result.Message = "Low credit score"
		result.MaxEligibleAmount = 0
	case user.CreditScore < topTierMinCreditScore:
		result.MaxEligibleAmount = midTierMaxLoanAmount
	default:
		result.MaxEligibleAmount = topTierMaxLoanAmount
	}

	if requested > result.MaxEligibleAmount {
		result.Eligible = false
		result.Message = fmt.Sprintf("Loan amount exceeds maximum eligible amount of ₹%.0f", result.MaxEligibleAmount)
	}

	return result
}
