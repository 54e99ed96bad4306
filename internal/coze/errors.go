package coze

import (
	"fmt"
	"net/http"
)

// APIError is returned when Coze answers with a non-2xx status or a non-zero
// business code.
type APIError struct {
	Op         string
	HTTPStatus int
	Code       int
	Msg        string
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("coze %s: code %d: %s", e.Op, e.Code, e.Msg)
	}
	return fmt.Sprintf("coze %s: status %d: %s", e.Op, e.HTTPStatus, e.Msg)
}

// Temporary reports whether retrying the call later could succeed.
func (e *APIError) Temporary() bool {
	return e.HTTPStatus == http.StatusTooManyRequests || e.HTTPStatus >= 500
}
