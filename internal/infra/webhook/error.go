package webhook

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusError is returned when the webhook answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	// Body is a truncated copy of the response body.
	Body string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("webhook returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// IsStatus reports whether err carries a webhook response with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}
