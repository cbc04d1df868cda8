package handler

import (
	dErrors "validbus/pkg/domain-errors"
)

// validateRequest is the body of POST /v1/validate.
type validateRequest struct {
	ValidationType   string `json:"validation_type"`
	Data             string `json:"data"`
	ClientIdentifier string `json:"client_identifier,omitempty"`
}

func (r validateRequest) validate() error {
	if r.ValidationType == "" {
		return dErrors.New(dErrors.CodeBadRequest, "validation_type is required")
	}
	if r.Data == "" {
		return dErrors.New(dErrors.CodeBadRequest, "data is required")
	}
	return nil
}

// goldenRequest is the body of PUT /v1/records/{id}/golden.
type goldenRequest struct {
	IsGoldenRecord bool `json:"is_golden_record"`
}
