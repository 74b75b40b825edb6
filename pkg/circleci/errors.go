package circleci

import (
	"fmt"
	"net/http"
)

// StatusError is returned when the API responds with a non-2xx status code.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (err *StatusError) Error() string {
	if err.Body == "" {
		return fmt.Sprintf("GET %s: unexpected status %d %s",
			err.URL, err.StatusCode, http.StatusText(err.StatusCode))
	}
	return fmt.Sprintf("GET %s: unexpected status %d %s: %s",
		err.URL, err.StatusCode, http.StatusText(err.StatusCode), err.Body)
}
