// Package domain holds the identifier and identity types shared across the
// validation bus. Keeping them here lets stores, services, and transport agree
// on types without importing each other.
package domain

import (
	"github.com/google/uuid"

	dErrors "validbus/pkg/domain-errors"
)

// RecordID identifies a validation record.
type RecordID uuid.UUID

// NewRecordID generates a fresh record identifier.
func NewRecordID() RecordID {
	return RecordID(uuid.New())
}

// ParseRecordID parses a string form of a record identifier.
func ParseRecordID(s string) (RecordID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return RecordID{}, dErrors.New(dErrors.CodeBadRequest, "invalid record id")
	}
	return RecordID(u), nil
}

func (id RecordID) String() string {
	return uuid.UUID(id).String()
}

// IsNil reports whether the identifier is the zero value.
func (id RecordID) IsNil() bool {
	return uuid.UUID(id) == uuid.Nil
}

// ValidationType tags a validation request with the validator that should
// handle it (e.g. "phone", "email", "cep", "cpf_cnpj"). The set of known tags
// is whatever the registry was built with; the type itself is open-ended.
type ValidationType string

func (t ValidationType) String() string {
	return string(t)
}
