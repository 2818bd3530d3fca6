package resilience

import (
	"fmt"
	"net/http"
)

// StatusError reports a non-2xx HTTP response from an upstream service.
type StatusError struct {
	Service string
	Code    int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.Service, e.Code)
}

// Retryable reports whether the status is worth another attempt. Client
// errors other than 429 will not change on retry.
func (e *StatusError) Retryable() bool {
	if e.Code == http.StatusTooManyRequests {
		return true
	}
	return e.Code < 400 || e.Code >= 500
}

// CheckStatus returns nil for 2xx codes and a StatusError otherwise,
// marked Permanent when retrying cannot help.
func CheckStatus(service string, code int) error {
	if code >= 200 && code < 300 {
		return nil
	}
	err := &StatusError{Service: service, Code: code}
	if !err.Retryable() {
		return Permanent(err)
	}
	return err
}
