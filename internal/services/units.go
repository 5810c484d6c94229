package services

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// formatUnits renders a smallest-unit integer as a human decimal.
func formatUnits(v *big.Int, decimals int32) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v, -decimals).String()
}

// parseUnits converts a human decimal into smallest units, rejecting
// non-positive values and excess precision.
func parseUnits(s string, decimals int32) (*big.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, &ValidationError{Field: "amount", Reason: "not a number"}
	}
	if !d.IsPositive() {
		return nil, &ValidationError{Field: "amount", Reason: "must be positive"}
	}
	shifted := d.Shift(decimals)
	if !shifted.IsInteger() {
		return nil, &ValidationError{Field: "amount", Reason: fmt.Sprintf("at most %d decimal places", decimals)}
	}
	return shifted.BigInt(), nil
}
