// Package apierror holds the error type shared by the iDoklad and
// Fakturoid clients for non-success HTTP responses.
package apierror

import "fmt"

// RequestError is returned whenever an API call comes back with an
// unexpected status code. The response body is kept verbatim because
// both services put their diagnostics there.
type RequestError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s %s failed with code %d\n\n%s", e.Method, e.Path, e.StatusCode, e.Body)
}
