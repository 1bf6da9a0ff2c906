package evidence

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknown is returned when the backend produced no usable response.
	ErrUnknown = errors.New("an unexpected error occurred")
	// ErrNotAuthenticated is returned on HTTP 401.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrNotAuthorized is returned on HTTP 403.
	ErrNotAuthorized = errors.New("not allowed to access this resource")
)

// ErrorResponse is the backend's error envelope.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e ErrorResponse) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("(%d) %s", e.Code, e.Message)
	}
	return e.Message
}
