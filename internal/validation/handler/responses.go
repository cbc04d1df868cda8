package handler

import (
	"time"

	"validbus/internal/validation"
)

// validateResponse is the body returned by POST /v1/validate.
type validateResponse struct {
	RecordID          string         `json:"record_id"`
	IsValid           bool           `json:"is_valid"`
	Message           string         `json:"message"`
	Details           map[string]any `json:"details,omitempty"`
	InputDataOriginal string         `json:"input_data_original"`
	InputDataCleaned  string         `json:"input_data_cleaned"`
	RuleCode          string         `json:"rule_code,omitempty"`
}

func newValidateResponse(result *validation.Result) validateResponse {
	return validateResponse{
		RecordID:          result.RecordID.String(),
		IsValid:           result.IsValid,
		Message:           result.Message,
		Details:           result.Details,
		InputDataOriginal: result.InputDataOriginal,
		InputDataCleaned:  result.InputDataCleaned,
		RuleCode:          result.RuleCode,
	}
}

// recordResponse is the full record shape returned by history and golden
// record lookups.
type recordResponse struct {
	ID               string         `json:"id"`
	ValidationType   string         `json:"validation_type"`
	OriginalData     string         `json:"input_data_original"`
	NormalizedData   string         `json:"input_data_cleaned"`
	IsValid          bool           `json:"is_valid"`
	Message          string         `json:"message"`
	Details          map[string]any `json:"details,omitempty"`
	RuleCode         string         `json:"rule_code,omitempty"`
	AppName          string         `json:"app_name"`
	ClientIdentifier string         `json:"client_identifier,omitempty"`
	IsGoldenRecord   bool           `json:"is_golden_record"`
	IsDeleted        bool           `json:"is_deleted"`
	ValidatedAt      time.Time      `json:"validated_at"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

func newRecordResponse(rec *validation.Record) recordResponse {
	return recordResponse{
		ID:               rec.ID.String(),
		ValidationType:   string(rec.ValidationType),
		OriginalData:     rec.OriginalData,
		NormalizedData:   rec.NormalizedData,
		IsValid:          rec.IsValid,
		Message:          rec.Message,
		Details:          rec.Details,
		RuleCode:         rec.RuleCode,
		AppName:          rec.AppName,
		ClientIdentifier: rec.ClientIdentifier,
		IsGoldenRecord:   rec.IsGoldenRecord,
		IsDeleted:        rec.IsDeleted,
		ValidatedAt:      rec.ValidatedAt,
		CreatedAt:        rec.CreatedAt,
		UpdatedAt:        rec.UpdatedAt,
	}
}

type historyResponse struct {
	Records []recordResponse `json:"records"`
	Count   int              `json:"count"`
}

func newHistoryResponse(records []*validation.Record) historyResponse {
	out := historyResponse{Records: make([]recordResponse, 0, len(records))}
	for _, rec := range records {
		out.Records = append(out.Records, newRecordResponse(rec))
	}
	out.Count = len(out.Records)
	return out
}

type typesResponse struct {
	ValidationTypes []string `json:"validation_types"`
}
