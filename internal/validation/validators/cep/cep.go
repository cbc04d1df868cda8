// Package cep validates Brazilian postal codes (CEP). A CEP is eight digits;
// assigned ranges map to a federative unit, which the validator reports as an
// enrichment finding.
package cep

import (
	"context"
	"fmt"
	"strings"

	"validbus/internal/validation"
)

// ufRange maps a block of CEPs to the federative unit it is assigned to.
// Ranges follow the national allocation; [lo, hi] bounds are inclusive and
// listed in ascending order.
type ufRange struct {
	lo, hi int
	uf     string
}

var ufRanges = []ufRange{
	{1000000, 19999999, "SP"},
	{20000000, 28999999, "RJ"},
	{29000000, 29999999, "ES"},
	{30000000, 39999999, "MG"},
	{40000000, 48999999, "BA"},
	{49000000, 49999999, "SE"},
	{50000000, 56999999, "PE"},
	{57000000, 57999999, "AL"},
	{58000000, 58999999, "PB"},
	{59000000, 59999999, "RN"},
	{60000000, 63999999, "CE"},
	{64000000, 64999999, "PI"},
	{65000000, 65999999, "MA"},
	{66000000, 68899999, "PA"},
	{68900000, 68999999, "AP"},
	{69000000, 69299999, "AM"},
	{69300000, 69399999, "RR"},
	{69400000, 69899999, "AM"},
	{69900000, 69999999, "AC"},
	{70000000, 73699999, "DF"},
	{73700000, 76799999, "GO"},
	{76800000, 76999999, "RO"},
	{77000000, 77999999, "TO"},
	{78000000, 78899999, "MT"},
	{79000000, 79999999, "MS"},
	{80000000, 87999999, "PR"},
	{88000000, 89999999, "SC"},
	{90000000, 99999999, "RS"},
}

// Validator implements validation.Validator for Brazilian postal codes.
type Validator struct{}

func New() *Validator {
	return &Validator{}
}

// Normalize strips formatting and requires exactly eight digits.
func (v *Validator) Normalize(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return "", fmt.Errorf("postal code contains no digits")
	}
	if len(digits) != 8 {
		return "", fmt.Errorf("postal code must have exactly 8 digits, got %d", len(digits))
	}
	return digits, nil
}

// Check rejects trivially fabricated codes (long repeated or sequential
// runs) and resolves the assigned federative unit.
func (v *Validator) Check(_ context.Context, normalized string) (validation.Outcome, error) {
	if hasTrivialPattern(normalized) {
		return validation.Outcome{
			IsValid: false,
			Message: "postal code has a repeated or sequential digit pattern",
			Details: map[string]any{"reason": "trivial_pattern"},
		}, nil
	}

	value := 0
	for _, r := range normalized {
		value = value*10 + int(r-'0')
	}
	uf := lookupUF(value)
	if uf == "" {
		return validation.Outcome{
			IsValid: false,
			Message: "postal code is outside every assigned range",
			Details: map[string]any{"reason": "unassigned_range"},
		}, nil
	}

	return validation.Outcome{
		IsValid: true,
		Message: "valid postal code",
		Details: map[string]any{
			"uf":        uf,
			"formatted": normalized[:5] + "-" + normalized[5:],
		},
	}, nil
}

func lookupUF(value int) string {
	for _, r := range ufRanges {
		if value >= r.lo && value <= r.hi {
			return r.uf
		}
	}
	return ""
}

// hasTrivialPattern reports whether any four consecutive digits are all equal
// or form a strictly ascending or descending run.
func hasTrivialPattern(digits string) bool {
	for i := 0; i+4 <= len(digits); i++ {
		d0, d1, d2, d3 := digits[i], digits[i+1], digits[i+2], digits[i+3]
		if d0 == d1 && d1 == d2 && d2 == d3 {
			return true
		}
		if d0+1 == d1 && d1+1 == d2 && d2+1 == d3 {
			return true
		}
		if d0 == d1+1 && d1 == d2+1 && d2 == d3+1 {
			return true
		}
	}
	return false
}
