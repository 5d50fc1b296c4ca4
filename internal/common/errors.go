// File: internal/common/errors.go
package common

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// APIError represents a standard structure for API errors.
type APIError struct {
	StatusCode int         `json:"-"`
	Code       string      `json:"code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("APIError: StatusCode=%d, Code=%s, Message=%s", e.StatusCode, e.Code, e.Message)
}

func NewAPIError(statusCode int, code, message string) *APIError {
	return &APIError{StatusCode: statusCode, Code: code, Message: message}
}

// WithDetails returns a copy of the error carrying details. Sentinels stay untouched.
func (e *APIError) WithDetails(details interface{}) *APIError {
	cp := *e
	cp.Details = details
	return &cp
}

// Is matches API errors by code so errors.Is works against sentinels after WithDetails.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.StatusCode == t.StatusCode
}

var (
	ErrBadRequest          = NewAPIError(http.StatusBadRequest, "BAD_REQUEST", "The request is invalid.")
	ErrUnauthorized        = NewAPIError(http.StatusUnauthorized, "UNAUTHORIZED", "Authentication is required and has failed or has not yet been provided.")
	ErrForbidden           = NewAPIError(http.StatusForbidden, "FORBIDDEN", "You do not have permission to access this resource.")
	ErrNotFound            = NewAPIError(http.StatusNotFound, "NOT_FOUND", "The requested resource could not be found.")
	ErrConflict            = NewAPIError(http.StatusConflict, "CONFLICT", "A conflict occurred with the current state of the resource.")
	ErrUnprocessableEntity = NewAPIError(http.StatusUnprocessableEntity, "UNPROCESSABLE_ENTITY", "The request was well-formed but was unable to be followed due to semantic errors.")
	ErrTooManyRequests     = NewAPIError(http.StatusTooManyRequests, "TOO_MANY_REQUESTS", "Too many requests. Please slow down.")
	ErrInternalServer      = NewAPIError(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "An unexpected error occurred on the server.")
	ErrServiceUnavailable  = NewAPIError(http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "The server is currently unable to handle the request.")
)

// Domain specific errors surfaced to clients.
var (
	ErrInvalidCredentials = NewAPIError(http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid login credentials.")
	ErrEmailNotConfirmed  = NewAPIError(http.StatusForbidden, "EMAIL_NOT_CONFIRMED", "Email not confirmed. Enter the code we sent to finish signing up.")
	ErrPhoneNotConfirmed  = NewAPIError(http.StatusForbidden, "PHONE_NOT_CONFIRMED", "Phone number not confirmed. Enter the code we sent to finish signing up.")
	ErrAccountInactive    = NewAPIError(http.StatusForbidden, "ACCOUNT_INACTIVE", "This account is not active.")
	ErrDuplicateIdentity  = NewAPIError(http.StatusConflict, "DUPLICATE_IDENTIFIER", "An account with this email or phone number already exists.")
	ErrInvalidCode        = NewAPIError(http.StatusUnprocessableEntity, "INVALID_CODE", "The verification code is invalid.")
	ErrCodeExpired        = NewAPIError(http.StatusGone, "CODE_EXPIRED", "The verification code has expired. Request a new one.")
	ErrTooManyAttempts    = NewAPIError(http.StatusTooManyRequests, "TOO_MANY_ATTEMPTS", "Too many wrong codes. Start the signup again.")
	ErrResendCooldown     = NewAPIError(http.StatusTooManyRequests, "RESEND_COOLDOWN", "Please wait before requesting another code.")
	ErrImageLimitExceeded = NewAPIError(http.StatusUnprocessableEntity, "IMAGE_LIMIT_EXCEEDED", "Too many images for this report.")
	ErrImageTooLarge      = NewAPIError(http.StatusUnprocessableEntity, "IMAGE_TOO_LARGE", "Image exceeds the maximum allowed size.")
	ErrImageTypeInvalid   = NewAPIError(http.StatusUnprocessableEntity, "IMAGE_TYPE_INVALID", "Only image files are accepted.")
	ErrInvalidTransition  = NewAPIError(http.StatusConflict, "INVALID_TRANSITION", "The requested status change is not allowed.")
)

func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

func NewValidationAPIError(details interface{}) *APIError {
	return &APIError{
		StatusCode: http.StatusUnprocessableEntity,
		Code:       "VALIDATION_ERROR",
		Message:    "Input validation failed.",
		Details:    details,
	}
}

// BindingError turns a gin binding error into an API error.
func BindingError(err error) *APIError {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return NewValidationAPIError(FormatValidationErrors(verrs))
	}
	return ErrBadRequest.WithDetails(err.Error())
}

// FormatValidationErrors converts validator.ValidationErrors into a map.
func FormatValidationErrors(errs validator.ValidationErrors) map[string]string {
	errorMap := make(map[string]string)
	for _, e := range errs {
		field := e.Field()
		name := strings.ToLower(field)
		var message string
		switch e.Tag() {
		case "required":
			message = fmt.Sprintf("The %s field is required.", name)
		case "required_without":
			message = fmt.Sprintf("The %s field is required when %s is not present.", name, strings.ToLower(e.Param()))
		case "email":
			message = fmt.Sprintf("The %s field must be a valid email address.", name)
		case "e164":
			message = fmt.Sprintf("The %s field must be a phone number in international format, e.g. +15551234567.", name)
		case "min":
			message = fmt.Sprintf("The %s field must be at least %s characters long.", name, e.Param())
		case "max":
			message = fmt.Sprintf("The %s field may not be greater than %s characters.", name, e.Param())
		case "len":
			message = fmt.Sprintf("The %s field must be exactly %s characters long.", name, e.Param())
		case "numeric":
			message = fmt.Sprintf("The %s field must contain digits only.", name)
		case "oneof":
			message = fmt.Sprintf("The %s field must be one of the following values: %s.", name, e.Param())
		case "uuid", "uuid4":
			message = fmt.Sprintf("The %s field must be a valid UUID.", name)
		case "datetime":
			message = fmt.Sprintf("The %s field must be a valid datetime in the format %s.", name, e.Param())
		default:
			message = fmt.Sprintf("Field validation for '%s' failed on the '%s' tag.", field, e.Tag())
		}
		errorMap[field] = message
	}
	return errorMap
}
