package middlewares

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/certy/internal/batch"
	"github.com/dmitrymomot/certy/internal/certificate"
	"github.com/dmitrymomot/certy/internal/roster"
	"github.com/dmitrymomot/certy/internal/server"
	"github.com/dmitrymomot/certy/pkg/htmx"
	"github.com/dmitrymomot/certy/pkg/storage"
	"github.com/dmitrymomot/certy/pkg/validator"
)

// Error codes carried in the JSON envelope.
const (
	CodeValidation      = "validation_failed"
	CodeInvalidRoster   = "invalid_roster"
	CodeInvalidFile     = "invalid_file"
	CodeInvalidTemplate = "invalid_template"
	CodeNotFound        = "not_found"
	CodeConflict        = "conflict"
	CodeTooLarge        = "request_too_large"
	CodeTimeout         = "timeout"
	CodeInternal        = "internal_error"
)

// ErrorResponse is the JSON body written for every handler error.
type ErrorResponse struct {
	Details   any    `json:"details,omitempty"`
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorHandlerOption configures ErrorHandler.
type ErrorHandlerOption func(*errorHandlerConfig)

type errorHandlerConfig struct {
	fragment func(message string) server.Component
	target   string
}

// WithErrorFragment renders HTMX errors with fn and swaps them into target.
func WithErrorFragment(target string, fn func(message string) server.Component) ErrorHandlerOption {
	return func(cfg *errorHandlerConfig) {
		cfg.target = target
		cfg.fragment = fn
	}
}

// ErrorHandler maps handler errors to an HTTP status and writes the
// {error, code, request_id} envelope. 5xx errors are logged with their
// cause; the cause is never sent to the client.
func ErrorHandler(opts ...ErrorHandlerOption) server.ErrorHandler {
	cfg := &errorHandlerConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(c server.Context, err error) error {
		he := classify(err)
		if he.Code >= http.StatusInternalServerError {
			c.LogError("request failed",
				slog.Int("status", he.Code),
				slog.String("method", c.Request().Method),
				slog.String("path", c.Request().URL.Path),
				slog.Any("error", err),
			)
		} else {
			c.LogDebug("request rejected", slog.Int("status", he.Code), slog.Any("error", err))
		}

		if c.IsHTMX() && cfg.fragment != nil {
			return c.Render(he.Code, cfg.fragment(he.Message),
				htmx.WithRetarget(cfg.target),
				htmx.WithReswap(htmx.SwapInnerHTML),
			)
		}
		return c.JSON(he.Code, ErrorResponse{
			Error:     he.Message,
			Code:      he.ErrorCode,
			Details:   he.Details,
			RequestID: GetRequestID(c),
		})
	}
}

// classify turns any error into an HTTPError with a client-safe message.
func classify(err error) *server.HTTPError {
	if he := server.AsHTTPError(err); he != nil {
		out := *he
		if out.ErrorCode == "" {
			out.ErrorCode = codeForStatus(out.Code)
		}
		return &out
	}

	var (
		verrs     validator.ValidationErrors
		rosterErr *roster.ValidationError
		fileErr   *storage.FileValidationError
		maxBytes  *http.MaxBytesError
		timeout   *TimeoutError
	)
	switch {
	case errors.As(err, &verrs):
		return server.ErrUnprocessable("validation failed",
			server.WithErrorCode(CodeValidation), server.WithDetails(verrs.Fields()))
	case errors.As(err, &rosterErr):
		return server.ErrUnprocessable(rosterErr.Error(), server.WithErrorCode(CodeInvalidRoster))
	case errors.Is(err, roster.ErrUnsupportedFormat), errors.Is(err, roster.ErrEmptyInput), errors.Is(err, roster.ErrRead):
		return server.ErrUnprocessable(err.Error(), server.WithErrorCode(CodeInvalidRoster))
	case errors.As(err, &fileErr):
		return server.ErrUnprocessable(fileErr.Message,
			server.WithErrorCode(CodeInvalidFile), server.WithDetails(map[string]string{fileErr.Field: fileErr.Code}))
	case errors.Is(err, certificate.ErrTemplateMissing), errors.Is(err, certificate.ErrTemplateCorrupt):
		return server.ErrUnprocessable("template file is missing or not a PDF/PNG/JPEG",
			server.WithErrorCode(CodeInvalidTemplate))
	case errors.Is(err, batch.ErrTaskNotFound):
		return server.ErrNotFound("task not found", server.WithErrorCode(CodeNotFound))
	case errors.Is(err, batch.ErrTaskActive):
		return server.ErrConflict("task is running", server.WithErrorCode(CodeConflict))
	case errors.Is(err, batch.ErrInvalidTransition):
		return server.ErrConflict("task is not in a state that allows this", server.WithErrorCode(CodeConflict))
	case errors.As(err, &maxBytes):
		return server.ErrRequestTooLarge("upload is too large", server.WithErrorCode(CodeTooLarge))
	case errors.As(err, &timeout):
		return server.NewHTTPError(http.StatusGatewayTimeout, "request timed out", server.WithErrorCode(CodeTimeout))
	default:
		return server.ErrInternal(http.StatusText(http.StatusInternalServerError), server.WithErrorCode(CodeInternal))
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusConflict:
		return CodeConflict
	case http.StatusUnprocessableEntity:
		return CodeValidation
	case http.StatusRequestEntityTooLarge:
		return CodeTooLarge
	}
	if status >= http.StatusInternalServerError {
		return CodeInternal
	}
	return "bad_request"
}
