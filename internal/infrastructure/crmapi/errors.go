package crmapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// Error codes returned by the CRM API.
const (
	CodeDuplicatedPurchase = "duplicated_purchase_number"
	CodeUserNotFound       = "user_not_found"
	CodeInternalError      = "internal_error"
)

// APIError is a structured error response from the CRM API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Errors     []string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return "crmapi: " + e.Code + ": " + e.Message
	}
	return "crmapi: " + http.StatusText(e.StatusCode)
}

// Text returns the error detail for run reports: internal errors carry
// their message verbatim, anything else joins the payload errors.
func (e *APIError) Text() string {
	if e.Code == CodeInternalError {
		return e.Message
	}
	if len(e.Errors) > 0 {
		return strings.Join(e.Errors, ";")
	}
	return e.Message
}

func parseAPIError(statusCode int, body []byte) error {
	apiErr := &APIError{StatusCode: statusCode}

	var envelope struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Payload struct {
			Errors []string `json:"errors"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		apiErr.Code = envelope.Code
		apiErr.Message = envelope.Message
		apiErr.Errors = envelope.Payload.Errors
	}
	return apiErr
}

// IsNotFound reports whether err is a 404 from the CRM API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsDuplicatedPurchase reports whether the CRM already has a purchase with
// the same invoice number.
func IsDuplicatedPurchase(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == CodeDuplicatedPurchase
}

// IsUserNotFound reports whether the CRM does not know the purchase's user.
func IsUserNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == CodeUserNotFound
}

// ErrorText extracts the reportable detail from any upload error.
func ErrorText(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Text()
	}
	return err.Error()
}
