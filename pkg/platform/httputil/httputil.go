// Package httputil centralizes JSON encoding and domain-error translation for
// HTTP handlers so every endpoint returns the same envelope shape.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "validbus/pkg/domain-errors"
)

var statusByCode = map[dErrors.Code]int{
	dErrors.CodeBadRequest:      http.StatusBadRequest,
	dErrors.CodeValidation:      http.StatusUnprocessableEntity,
	dErrors.CodeUnauthorized:    http.StatusUnauthorized,
	dErrors.CodeForbidden:       http.StatusForbidden,
	dErrors.CodeNotFound:        http.StatusNotFound,
	dErrors.CodeConflict:        http.StatusConflict,
	dErrors.CodeUnsupportedType: http.StatusUnprocessableEntity,
	dErrors.CodeInternal:        http.StatusInternalServerError,
}

// WriteJSON encodes v as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps a domain error to an HTTP status and JSON envelope. Internal
// errors omit the description so storage detail never leaks to callers.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
		code = dErrors.CodeInternal
	}

	body := map[string]string{"error": string(code)}
	if code != dErrors.CodeInternal {
		var de *dErrors.Error
		if errors.As(err, &de) && de.Message != "" {
			body["error_description"] = de.Message
		}
	}
	WriteJSON(w, status, body)
}

// DecodeJSON decodes the request body into T, rejecting unknown fields.
func DecodeJSON[T any](r *http.Request) (T, error) {
	var v T
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		return v, dErrors.New(dErrors.CodeBadRequest, "malformed JSON body")
	}
	return v, nil
}
