package errors

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrorTypeBadRequest          ErrorType = "BAD_REQUEST"
	ErrorTypeUnauthorized        ErrorType = "UNAUTHORIZED"
	ErrorTypeNotFound            ErrorType = "NOT_FOUND"
	ErrorTypeTooManyRequests     ErrorType = "TOO_MANY_REQUESTS"
	ErrorTypeServiceUnavailable  ErrorType = "SERVICE_UNAVAILABLE"
	ErrorTypeInternalServerError ErrorType = "INTERNAL_SERVER_ERROR"
)

// Machine-readable error codes returned to clients.
const (
	CodeAuthRequired      = "AUTH_REQUIRED"
	CodeAuthInvalid       = "AUTH_INVALID"
	CodeInvalidText       = "INVALID_TEXT"
	CodeTextTooLong       = "TEXT_TOO_LONG"
	CodeInvalidPrompt     = "INVALID_PROMPT"
	CodePromptTooLong     = "PROMPT_TOO_LONG"
	CodeInvalidPDF        = "INVALID_PDF"
	CodeQuotaExceeded     = "QUOTA_EXCEEDED"
	CodeProcessingFailed  = "PROCESSING_FAILED"
	CodeAIProcessingError = "AI_PROCESSING_ERROR"
	CodeNotFound          = "NOT_FOUND"
	CodeInternalError     = "INTERNAL_ERROR"
)

var verbose bool

// Init sets the detail gating for error responses. Outside production,
// internal error detail is included in the JSON body.
func Init(environment string) {
	verbose = environment != "production"
}

// CustomError represents a custom error with associated HTTP status code,
// type and client-facing code
type CustomError struct {
	Type       ErrorType
	Code       string
	Message    string
	StatusCode int
	Details    map[string]interface{}
	Internal   error
}

// Error implements the error interface
func (e *CustomError) Error() string {
	return e.Message
}

// newError creates a new CustomError
func newError(errType ErrorType, code, message string, statusCode int, internal error) *CustomError {
	return &CustomError{
		Type:       errType,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Internal:   internal,
	}
}

// New400Error creates a new bad request error
func New400Error(code, message string) *CustomError {
	return newError(ErrorTypeBadRequest, code, message, http.StatusBadRequest, nil)
}

// New401Error creates a new unauthorized error
func New401Error(code, message string) *CustomError {
	return newError(ErrorTypeUnauthorized, code, message, http.StatusUnauthorized, nil)
}

// New404Error creates a new not found error
func New404Error(message string) *CustomError {
	return newError(ErrorTypeNotFound, CodeNotFound, message, http.StatusNotFound, nil)
}

// New429Error creates a new quota error with optional extra response fields
func New429Error(code, message string, details map[string]interface{}) *CustomError {
	e := newError(ErrorTypeTooManyRequests, code, message, http.StatusTooManyRequests, nil)
	e.Details = details
	return e
}

// New500Error creates a new internal server error
func New500Error(code string, internal error) *CustomError {
	return newError(ErrorTypeInternalServerError, code, "An unexpected error occurred", http.StatusInternalServerError, internal)
}

// New503Error creates a new service unavailable error
func New503Error(code string, internal error) *CustomError {
	return newError(ErrorTypeServiceUnavailable, code, "Service temporarily unavailable", http.StatusServiceUnavailable, internal)
}

// WithMessage overrides the client-facing message
func (e *CustomError) WithMessage(message string) *CustomError {
	e.Message = message
	return e
}

// HandleError handles the custom error and sends an appropriate JSON response
func HandleError(c *gin.Context, err error) {
	var customErr *CustomError
	var ok bool

	if customErr, ok = err.(*CustomError); !ok {
		customErr = New500Error(CodeInternalError, err)
	}

	// Log internal server errors
	if customErr.Internal != nil {
		log.Error().
			Err(customErr.Internal).
			Str("code", customErr.Code).
			Str("url", c.Request.URL.String()).
			Msg("Request failed")
	}

	body := gin.H{
		"error": customErr.Message,
		"code":  customErr.Code,
	}
	for k, v := range customErr.Details {
		body[k] = v
	}
	if verbose && customErr.Internal != nil {
		body["detail"] = customErr.Internal.Error()
	}

	c.JSON(customErr.StatusCode, body)
}
