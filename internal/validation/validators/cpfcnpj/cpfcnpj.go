// Package cpfcnpj validates Brazilian taxpayer documents. Eleven digits is a
// CPF (natural person), fourteen is a CNPJ (legal entity); both carry two
// check digits computed by weighted modulo-11 sums.
package cpfcnpj

import (
	"context"
	"fmt"
	"strings"

	"validbus/internal/validation"
)

// Document types reported in the outcome details.
const (
	TypeCPF  = "CPF"
	TypeCNPJ = "CNPJ"
)

var cnpjWeights1 = []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
var cnpjWeights2 = []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}

// Validator implements validation.Validator for CPF and CNPJ documents.
type Validator struct{}

func New() *Validator {
	return &Validator{}
}

// Normalize strips punctuation and requires a CPF or CNPJ digit count.
func (v *Validator) Normalize(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return "", fmt.Errorf("document contains no digits")
	}
	if len(digits) != 11 && len(digits) != 14 {
		return "", fmt.Errorf("document must have 11 (CPF) or 14 (CNPJ) digits, got %d", len(digits))
	}
	return digits, nil
}

func (v *Validator) Check(_ context.Context, normalized string) (validation.Outcome, error) {
	docType := TypeCPF
	if len(normalized) == 14 {
		docType = TypeCNPJ
	}

	if allSameDigit(normalized) {
		return validation.Outcome{
			IsValid: false,
			Message: fmt.Sprintf("%s is invalid: all digits are equal", docType),
			Details: map[string]any{"document_type": docType, "reason": "all_digits_same"},
		}, nil
	}

	var ok bool
	if docType == TypeCPF {
		ok = validCPFChecksum(normalized)
	} else {
		ok = validCNPJChecksum(normalized)
	}
	if !ok {
		return validation.Outcome{
			IsValid: false,
			Message: fmt.Sprintf("%s has invalid check digits", docType),
			Details: map[string]any{"document_type": docType, "reason": "invalid_checksum"},
		}, nil
	}

	return validation.Outcome{
		IsValid: true,
		Message: fmt.Sprintf("valid %s", docType),
		Details: map[string]any{
			"document_type": docType,
			"formatted":     format(normalized, docType),
		},
	}, nil
}

func allSameDigit(s string) bool {
	for i := 1; i < len(s); i++ {
		if s[i] != s[0] {
			return false
		}
	}
	return true
}

func validCPFChecksum(cpf string) bool {
	digit := func(part string, weightStart int) byte {
		sum := 0
		for i := 0; i < len(part); i++ {
			sum += int(part[i]-'0') * (weightStart - i)
		}
		remainder := sum % 11
		if remainder < 2 {
			return '0'
		}
		return byte('0' + 11 - remainder)
	}
	return digit(cpf[:9], 10) == cpf[9] && digit(cpf[:10], 11) == cpf[10]
}

func validCNPJChecksum(cnpj string) bool {
	digit := func(part string, weights []int) byte {
		sum := 0
		for i := 0; i < len(part); i++ {
			sum += int(part[i]-'0') * weights[i]
		}
		remainder := sum % 11
		if remainder < 2 {
			return '0'
		}
		return byte('0' + 11 - remainder)
	}
	return digit(cnpj[:12], cnpjWeights1) == cnpj[12] && digit(cnpj[:13], cnpjWeights2) == cnpj[13]
}

func format(digits, docType string) string {
	if docType == TypeCPF {
		return digits[:3] + "." + digits[3:6] + "." + digits[6:9] + "-" + digits[9:]
	}
	return digits[:2] + "." + digits[2:5] + "." + digits[5:8] + "/" + digits[8:12] + "-" + digits[12:]
}
