package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joherrer/stocks/internal/types"
	"github.com/rs/zerolog/log"
)

// Response represents a standardized API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// Error represents an error response
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes
const (
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeBadRequest        = "BAD_REQUEST"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeInternalError     = "INTERNAL_ERROR"
	ErrCodeValidationFailed  = "VALIDATION_FAILED"
	ErrCodeDuplicateResource = "DUPLICATE_RESOURCE"
	ErrCodeUnknownSymbol     = "UNKNOWN_SYMBOL"
	ErrCodePriceUnavailable  = "PRICE_UNAVAILABLE"
	ErrCodeInsufficientFunds = "INSUFFICIENT_FUNDS"
	ErrCodeInsufficientShare = "INSUFFICIENT_SHARES"
	ErrCodeRateLimited       = "RATE_LIMITED"
)

// Handle processes the error and returns appropriate response
func Handle(c *gin.Context, data interface{}, err error) {
	if err == nil {
		Success(c, data)
		return
	}

	switch {
	// quote failures match both symbol sentinels; unknown symbol wins
	case errors.Is(err, types.ErrUnknownSymbol):
		write(c, http.StatusBadRequest, ErrCodeUnknownSymbol, "Unknown or unpriceable symbol")
	case errors.Is(err, types.ErrPriceUnavailable):
		write(c, http.StatusServiceUnavailable, ErrCodePriceUnavailable, "Price currently unavailable")
	case errors.Is(err, types.ErrInvalidShareCount),
		errors.Is(err, types.ErrInvalidAmount),
		errors.Is(err, types.ErrInvalidInput):
		write(c, http.StatusBadRequest, ErrCodeValidationFailed, err.Error())
	case errors.Is(err, types.ErrInsufficientFunds):
		write(c, http.StatusUnprocessableEntity, ErrCodeInsufficientFunds, "Insufficient funds")
	case errors.Is(err, types.ErrInsufficientShares):
		write(c, http.StatusUnprocessableEntity, ErrCodeInsufficientShare, "Insufficient shares")
	case errors.Is(err, types.ErrNotFound):
		NotFound(c, "Resource not found")
	case errors.Is(err, types.ErrDuplicateUsername):
		Conflict(c, "Username already exists")
	case errors.Is(err, types.ErrInvalidCredentials):
		Unauthorized(c, "Invalid username or password")
	default:
		handleError(c, err)
	}
}

// Success sends a successful response
func Success(c *gin.Context, data interface{}) {
	status := http.StatusOK
	if c.Request.Method == "POST" {
		status = http.StatusCreated
	}

	c.JSON(status, Response{
		Success: true,
		Data:    data,
	})
}

// NotFound sends a 404 response
func NotFound(c *gin.Context, message string) {
	c.JSON(http.StatusNotFound, Response{
		Success: false,
		Error: &Error{
			Code:    ErrCodeNotFound,
			Message: message,
		},
	})
}

// BadRequest sends a 400 response
func BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Response{
		Success: false,
		Error: &Error{
			Code:    ErrCodeBadRequest,
			Message: message,
		},
	})
}

// Unauthorized sends a 401 response
func Unauthorized(c *gin.Context, message string) {
	c.JSON(http.StatusUnauthorized, Response{
		Success: false,
		Error: &Error{
			Code:    ErrCodeUnauthorized,
			Message: message,
		},
	})
}

// InternalError sends a 500 response
func InternalError(c *gin.Context, message string) {
	c.JSON(http.StatusInternalServerError, Response{
		Success: false,
		Error: &Error{
			Code:    ErrCodeInternalError,
			Message: message,
		},
	})
}

// Conflict sends a 409 response
func Conflict(c *gin.Context, message string) {
	c.JSON(http.StatusConflict, Response{
		Success: false,
		Error: &Error{
			Code:    ErrCodeDuplicateResource,
			Message: message,
		},
	})
}

// TooManyRequests sends a 429 response
func TooManyRequests(c *gin.Context, message string) {
	write(c, http.StatusTooManyRequests, ErrCodeRateLimited, message)
}

func write(c *gin.Context, status int, code, message string) {
	c.JSON(status, Response{
		Success: false,
		Error: &Error{
			Code:    code,
			Message: message,
		},
	})
}

// handleError reports anything unmapped, storage failures included, as a
// 500 without internal detail
func handleError(c *gin.Context, err error) {
	var storageErr *types.StorageError
	event := log.Error().Err(err).Str("path", c.Request.URL.Path)
	if errors.As(err, &storageErr) {
		event = event.Str("op", storageErr.Op).Bool("transient", storageErr.Transient)
	}
	event.Msg("request failed")

	InternalError(c, "An unexpected error occurred")
}
