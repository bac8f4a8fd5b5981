// Package response provides the unified JSON envelope of the HTTP API.
package response

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lazysoft/consultant/pkg/utils/errors"
)

// HeaderRequestID is the header carrying the request id.
const HeaderRequestID = "X-Request-ID"

// ContextKeyLanguage lets handlers pin the response language once the
// request body has been parsed.
const ContextKeyLanguage = "consultant.language"

// Response is the unified API response structure.
type Response struct {
	// Code is the business error code (0 = success)
	Code int `json:"code"`

	// HTTPCode is the HTTP status code (optional, for client convenience)
	HTTPCode int `json:"http_code,omitempty"`

	// Message is a human-readable message
	Message string `json:"message"`

	// Data contains the response payload (nil for errors)
	Data any `json:"data,omitempty"`

	// RequestID is the unique request identifier for tracing
	RequestID string `json:"request_id,omitempty"`

	// Timestamp is the response timestamp (Unix milliseconds)
	Timestamp int64 `json:"timestamp,omitempty"`
}

// Success creates a successful response with data.
func Success(data any) *Response {
	return &Response{
		Code:     0,
		HTTPCode: http.StatusOK,
		Message:  "success",
		Data:     data,
	}
}

// Err creates an error response from an Errno.
func Err(e *errors.Errno) *Response {
	return ErrWithLang(e, "en")
}

// ErrWithLang creates an error response with a localized message.
func ErrWithLang(e *errors.Errno, lang string) *Response {
	if e == nil {
		e = errors.ErrInternal
	}
	return &Response{
		Code:     e.Code,
		HTTPCode: e.HTTPStatus(),
		Message:  e.Message(lang),
	}
}

// WithRequestID sets the request ID.
func (r *Response) WithRequestID(requestID string) *Response {
	r.RequestID = requestID
	return r
}

// IsSuccess returns true if the response indicates success.
func (r *Response) IsSuccess() bool {
	return r.Code == 0
}

// HTTPStatus returns the HTTP status code for the response.
func (r *Response) HTTPStatus() int {
	if r.HTTPCode != 0 {
		return r.HTTPCode
	}
	if r.Code == 0 {
		return http.StatusOK
	}
	switch errors.GetCategory(r.Code) {
	case errors.CategoryRequest:
		return http.StatusBadRequest
	case errors.CategoryResource:
		return http.StatusNotFound
	case errors.CategoryConflict:
		return http.StatusConflict
	case errors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case errors.CategoryTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// OK writes a success envelope.
func OK(c *gin.Context, data any) {
	write(c, Success(data))
}

// Fail writes an error envelope. Non-Errno errors are reported as ErrInternal.
func Fail(c *gin.Context, err error) {
	write(c, ErrWithLang(errors.FromError(err), Language(c)))
}

// FailWithMessage writes an error envelope with a custom message.
func FailWithMessage(c *gin.Context, e *errors.Errno, msg string) {
	r := ErrWithLang(e, Language(c))
	r.Message = msg
	write(c, r)
}

// Language resolves the response language: pinned value, then Accept-Language.
func Language(c *gin.Context) string {
	if v, ok := c.Get(ContextKeyLanguage); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	al := c.GetHeader("Accept-Language")
	if al == "" {
		return "en"
	}
	first := strings.SplitN(al, ",", 2)[0]
	return strings.TrimSpace(strings.SplitN(first, ";", 2)[0])
}

func write(c *gin.Context, r *Response) {
	r.Timestamp = time.Now().UnixMilli()
	if rid := c.GetString("request_id"); rid != "" {
		r.RequestID = rid
	} else if rid := c.GetHeader(HeaderRequestID); rid != "" {
		r.RequestID = rid
	}
	c.JSON(r.HTTPStatus(), r)
}
