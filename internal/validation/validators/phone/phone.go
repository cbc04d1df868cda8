// Package phone validates Brazilian telephone numbers against the national
// numbering plan: geographic mobile and landline numbers plus the 0n00
// non-geographic service ranges.
package phone

import (
	"context"
	"fmt"
	"strings"

	"validbus/internal/validation"
)

// Line types reported in the outcome details.
const (
	LineTypeMobile      = "mobile"
	LineTypeLandline    = "landline"
	LineTypeTollFree    = "toll_free"
	LineTypePremiumRate = "premium_rate"
)

// areaCodes is the set of assigned two-digit DDD codes.
var areaCodes = map[string]bool{
	"11": true, "12": true, "13": true, "14": true, "15": true,
	"16": true, "17": true, "18": true, "19": true,
	"21": true, "22": true, "24": true, "27": true, "28": true,
	"31": true, "32": true, "33": true, "34": true, "35": true,
	"37": true, "38": true,
	"41": true, "42": true, "43": true, "44": true, "45": true,
	"46": true, "47": true, "48": true, "49": true,
	"51": true, "53": true, "54": true, "55": true,
	"61": true, "62": true, "63": true, "64": true, "65": true,
	"66": true, "67": true, "68": true, "69": true,
	"71": true, "73": true, "74": true, "75": true, "77": true, "79": true,
	"81": true, "82": true, "83": true, "84": true, "85": true,
	"86": true, "87": true, "88": true, "89": true,
	"91": true, "92": true, "93": true, "94": true, "95": true,
	"96": true, "97": true, "98": true, "99": true,
}

// servicePrefixes maps non-geographic prefixes to their line type.
var servicePrefixes = map[string]string{
	"0800": LineTypeTollFree,
	"0300": LineTypePremiumRate,
	"0500": LineTypePremiumRate,
	"0900": LineTypePremiumRate,
}

// Validator implements validation.Validator for Brazilian phone numbers.
type Validator struct{}

func New() *Validator {
	return &Validator{}
}

// Normalize canonicalizes raw input to E.164 for geographic numbers
// (+55DDNNNNNNNNN) or to the bare digit string for non-geographic service
// numbers. It strips formatting, the 00 international prefix, the 55 country
// code, and the trunk zero.
func (v *Validator) Normalize(raw string) (string, error) {
	digits := keepDigits(raw)
	if digits == "" {
		return "", fmt.Errorf("phone number contains no digits")
	}

	// Service numbers keep their leading zero; they have no E.164 form.
	for prefix := range servicePrefixes {
		if strings.HasPrefix(digits, prefix) {
			if len(digits) != 10 && len(digits) != 11 {
				return "", fmt.Errorf("service number must have 10 or 11 digits, got %d", len(digits))
			}
			return digits, nil
		}
	}

	digits = strings.TrimPrefix(digits, "00")
	if len(digits) >= 12 && strings.HasPrefix(digits, "55") {
		digits = digits[2:]
	}
	if len(digits) == 11 && strings.HasPrefix(digits, "0") {
		// Trunk zero before the area code, e.g. 011 9....
		digits = digits[1:]
	}
	if len(digits) != 10 && len(digits) != 11 {
		return "", fmt.Errorf("phone number must have 10 or 11 national digits, got %d", len(digits))
	}
	return "+55" + digits, nil
}

// Check classifies the normalized number. Unknown area codes and subscriber
// numbers outside the plan's ranges are invalid data, never errors.
func (v *Validator) Check(_ context.Context, normalized string) (validation.Outcome, error) {
	if lineType, ok := serviceLineType(normalized); ok {
		return validation.Outcome{
			IsValid: true,
			Message: "valid non-geographic service number",
			Details: map[string]any{
				"line_type":       lineType,
				"national_number": normalized,
			},
		}, nil
	}

	national := strings.TrimPrefix(normalized, "+55")
	if national == normalized || (len(national) != 10 && len(national) != 11) {
		return validation.Outcome{
			IsValid: false,
			Message: "number is not in a recognized Brazilian format",
			Details: map[string]any{"reason": "unrecognized_format"},
		}, nil
	}

	ddd := national[:2]
	subscriber := national[2:]
	if !areaCodes[ddd] {
		return validation.Outcome{
			IsValid: false,
			Message: fmt.Sprintf("area code %s is not assigned", ddd),
			Details: map[string]any{"reason": "invalid_area_code", "area_code": ddd},
		}, nil
	}

	var lineType string
	switch {
	case len(subscriber) == 9 && subscriber[0] == '9' && subscriber[1] >= '6':
		lineType = LineTypeMobile
	case len(subscriber) == 8 && subscriber[0] >= '2' && subscriber[0] <= '5':
		lineType = LineTypeLandline
	default:
		return validation.Outcome{
			IsValid: false,
			Message: "subscriber number is outside the national plan's ranges",
			Details: map[string]any{"reason": "invalid_subscriber_range", "area_code": ddd},
		}, nil
	}

	return validation.Outcome{
		IsValid: true,
		Message: "valid Brazilian phone number",
		Details: map[string]any{
			"line_type": lineType,
			"area_code": ddd,
			"e164":      normalized,
		},
	}, nil
}

func serviceLineType(normalized string) (string, bool) {
	for prefix, lineType := range servicePrefixes {
		if strings.HasPrefix(normalized, prefix) {
			return lineType, true
		}
	}
	return "", false
}

func keepDigits(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		if r == '+' && b.Len() == 0 {
			continue
		}
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
