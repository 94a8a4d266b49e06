package service

import (
	"math"

	"github.com/creditsea/creditsea/internal/apperrors"
	"github.com/creditsea/creditsea/internal/models"
)

const (
	// MaxTenureMonths bounds tenure so amortisation stays finite.
	MaxTenureMonths = 600

	// Below this monthly rate interest is negligible and the annuity
	// formula loses precision, so repayment is linear.
	minPeriodicRate = 1e-9
)

// CalculateEMI computes the monthly installment for principal repaid over
// tenure months at annualRate percent per annum. Amounts are rounded to whole
// currency units; totalInterest is derived from the rounded total payment.
// A zero or negligible rate amortises linearly.
func CalculateEMI(principal float64, tenure int, annualRate float64) (models.EMIResult, error) {
	if math.IsNaN(principal) || math.IsInf(principal, 0) || principal <= 0 {
		return models.EMIResult{}, apperrors.Validation("loanAmount must be a positive number")
	}
	if tenure <= 0 {
		return models.EMIResult{}, apperrors.Validation("tenure must be a positive number of months")
	}
	if tenure > MaxTenureMonths {
		return models.EMIResult{}, apperrors.Newf(apperrors.KindValidation, "tenure must not exceed %d months", MaxTenureMonths)
	}
	if math.IsNaN(annualRate) || math.IsInf(annualRate, 0) || annualRate < 0 {
		return models.EMIResult{}, apperrors.Validation("interestRate must not be negative")
	}

	n := float64(tenure)
	i := annualRate / 12 / 100
	var emi float64
	switch growth := math.Pow(1+i, n); {
	case i < minPeriodicRate || growth == 1:
		emi = principal / n
	case math.IsInf(growth, 1):
		emi = principal * i
	default:
		emi = principal * i * growth / (growth - 1)
	}

	totalPayment := math.Round(emi * n)
	if math.IsNaN(totalPayment) || math.IsInf(totalPayment, 0) {
		return models.EMIResult{}, apperrors.Validation("loan terms are out of range")
	}
	return models.EMIResult{
		EMI:           math.Round(emi),
		TotalPayment:  totalPayment,
		TotalInterest: totalPayment - principal,
	}, nil
}
