package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/geocoder89/userservice/internal/domain/user"
	"github.com/geocoder89/userservice/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type APIError struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	RequestID string      `json:"requestId,omitempty"`
	Details   interface{} `json:"details,omitempty"`
}

type successBody struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
}

type errorBody struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Error   APIError `json:"error"`
}

func requestIDFrom(ctx *gin.Context) string {
	if s := ctx.GetString(middlewares.CtxRequestID); s != "" {
		return s
	}

	// fallback header
	return ctx.GetHeader("X-Request-Id")
}

func RespondOK(ctx *gin.Context, status int, data interface{}) {
	ctx.JSON(status, successBody{Success: true, Data: data})
}

// RespondOKWithETag serves reads and answers 304 when the caller already holds
// the current representation.
func RespondOKWithETag(ctx *gin.Context, data interface{}) {
	RespondJSONWithETag(ctx, http.StatusOK, successBody{Success: true, Data: data})
}

func RespondError(ctx *gin.Context, status int, code, message string, details interface{}) {
	ctx.JSON(status, errorBody{
		Success: false,
		Message: message,
		Error: APIError{
			Code:      code,
			Message:   message,
			RequestID: requestIDFrom(ctx),
			Details:   details,
		},
	})
}

func RespondBadRequest(ctx *gin.Context, message string, details interface{}) {
	RespondError(ctx, http.StatusBadRequest, "invalid_request", message, details)
}

func RespondNotFound(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusNotFound, "not_found", message, nil)
}

func RespondUnauthorized(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusUnauthorized, "unauthorized", message, nil)
}

func RespondForbidden(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusForbidden, "forbidden", message, nil)
}

func RespondInternal(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusInternalServerError, "internal_error", message, nil)
}

// RespondServiceError maps a user-domain error onto its HTTP status. Anything
// unrecognised is logged and reported as a generic 500.
func RespondServiceError(ctx *gin.Context, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, user.ErrDuplicateEmail):
		RespondError(ctx, http.StatusBadRequest, "email_taken", "User with this email already exists", nil)
	case errors.Is(err, user.ErrInvalidDate):
		RespondError(ctx, http.StatusBadRequest, "invalid_date", "Invalid date of birth", nil)
	case errors.Is(err, user.ErrPasswordTooLong):
		RespondBadRequest(ctx, "password must be at most 72 bytes long", gin.H{
			"fields": []FieldError{{Field: "password", Rule: "maxbytes", Param: "72", Message: "must be at most 72 bytes long"}},
		})
	case errors.Is(err, user.ErrInvalidCredentials):
		RespondError(ctx, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password", nil)
	case errors.Is(err, user.ErrAccountBlocked):
		RespondError(ctx, http.StatusForbidden, "account_blocked", "Account is blocked", nil)
	case errors.Is(err, user.ErrNotFound):
		RespondNotFound(ctx, "User not found")
	case errors.Is(err, user.ErrUnauthorized):
		RespondUnauthorized(ctx, "Unauthorized")
	case errors.Is(err, user.ErrForbidden):
		RespondForbidden(ctx, "Forbidden")
	case errors.Is(err, user.ErrUnavailable):
		log.ErrorContext(ctx.Request.Context(), "dependency unavailable", "err", err, "request_id", requestIDFrom(ctx))
		RespondError(ctx, http.StatusServiceUnavailable, "service_unavailable", "Service temporarily unavailable", nil)
	default:
		log.ErrorContext(ctx.Request.Context(), "request failed", "err", err, "request_id", requestIDFrom(ctx))
		RespondInternal(ctx, "Internal server error")
	}
}
