package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// User-presentable messages for failure classes the backend does not
// explain itself.
const (
	MsgUnreachable   = "Server unreachable; check your connection."
	MsgInvalidReq    = "Invalid request"
	MsgNotFound      = "Not found"
	MsgInvalidFormat = "Invalid data format"
	MsgServerError   = "Server error; please retry later."
	MsgGeneric       = "An error occurred"
)

// Error is a failed API call with a message suitable for direct display
type Error struct {
	StatusCode int    // 0 for transport-level failures
	Detail     string // server-supplied detail, when present
	Message    string // user-presentable message
	Err        error  // underlying transport error, when present
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("api: %s", e.Message)
	}
	return fmt.Sprintf("api: %d: %s", e.StatusCode, e.Message)
}

// Unwrap returns the underlying transport error, if any
func (e *Error) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether the error is an HTTP 404
func (e *Error) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// UserMessage extracts the user-presentable message from any error
func UserMessage(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	if err != nil {
		return MsgGeneric
	}
	return ""
}

// transportError wraps a request that never produced an HTTP response
func transportError(err error) *Error {
	return &Error{
		Message: MsgUnreachable,
		Err:     err,
	}
}

// statusError maps an HTTP status and response body to a user-presentable
// error. The 422 mapping is fixed regardless of any server detail.
func statusError(status int, body []byte) *Error {
	detail := extractDetail(body)

	e := &Error{StatusCode: status, Detail: detail}
	switch status {
	case http.StatusBadRequest:
		e.Message = detailOr(detail, MsgInvalidReq)
	case http.StatusNotFound:
		e.Message = detailOr(detail, MsgNotFound)
	case http.StatusUnprocessableEntity:
		e.Message = MsgInvalidFormat
	case http.StatusInternalServerError:
		e.Message = MsgServerError
	default:
		e.Message = detailOr(detail, MsgGeneric)
	}
	return e
}

// extractDetail pulls the backend's `detail` field out of an error body
func extractDetail(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return payload.Detail
}

// detailOr prefers the server detail over the fallback message
func detailOr(detail, fallback string) string {
	if detail != "" {
		return detail
	}
	return fallback
}
