// Package email validates email addresses: RFC-shaped syntax checking plus a
// disposable-domain finding that downstream decision rules act on.
package email

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"validbus/internal/validation"
)

// addressPattern is a pragmatic syntax check, not a full RFC 5322 grammar.
var addressPattern = regexp.MustCompile(`^[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}$`)

// disposableDomains flags throwaway providers. The validator only reports the
// finding; whether a disposable address is acceptable is a decision rule.
var disposableDomains = map[string]bool{
	"mailinator.com":    true,
	"tempmail.com":      true,
	"yopmail.com":       true,
	"guerrillamail.com": true,
	"10minutemail.com":  true,
}

// Validator implements validation.Validator for email addresses.
type Validator struct {
	disposable map[string]bool
}

func New() *Validator {
	return &Validator{disposable: disposableDomains}
}

// Normalize trims whitespace and lowercases. Addresses are compared
// case-insensitively on the domain and, in practice, on the local part too.
func (v *Validator) Normalize(raw string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if normalized == "" {
		return "", fmt.Errorf("email address is empty")
	}
	return normalized, nil
}

func (v *Validator) Check(_ context.Context, normalized string) (validation.Outcome, error) {
	at := strings.LastIndexByte(normalized, '@')
	if at <= 0 || at == len(normalized)-1 {
		return validation.Outcome{
			IsValid: false,
			Message: "email address must have a local part and a domain",
			Details: map[string]any{"reason": "missing_at_sign"},
		}, nil
	}
	if !addressPattern.MatchString(normalized) {
		return validation.Outcome{
			IsValid: false,
			Message: "email address has an invalid format",
			Details: map[string]any{"reason": "invalid_format"},
		}, nil
	}

	localPart := normalized[:at]
	domain := normalized[at+1:]
	if strings.HasPrefix(localPart, ".") || strings.HasSuffix(localPart, ".") || strings.Contains(localPart, "..") {
		return validation.Outcome{
			IsValid: false,
			Message: "email local part has misplaced dots",
			Details: map[string]any{"reason": "invalid_local_part"},
		}, nil
	}
	if strings.HasPrefix(domain, ".") || strings.HasPrefix(domain, "-") || strings.Contains(domain, "..") {
		return validation.Outcome{
			IsValid: false,
			Message: "email domain is malformed",
			Details: map[string]any{"reason": "invalid_domain"},
		}, nil
	}

	return validation.Outcome{
		IsValid: true,
		Message: "valid email address",
		Details: map[string]any{
			"local_part": localPart,
			"domain":     domain,
			"disposable": v.disposable[domain],
		},
	}, nil
}
