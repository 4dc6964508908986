// Package otaerr attaches HTTP status codes to errors.
package otaerr

import (
	"errors"
	"net/http"
)

// HTTPStatusCodeError attaches an HTTP status code to err. Codes
// outside of [100, 600) are replaced with 500. A nil err stays nil.
func HTTPStatusCodeError(err error, httpStatusCode int) error {
	if err == nil {
		return nil
	}

	if 600 <= httpStatusCode || httpStatusCode < 100 {
		httpStatusCode = http.StatusInternalServerError
	}

	return &httpStatusCodeError{
		err:            err,
		httpStatusCode: httpStatusCode,
	}
}

type httpStatusCodeError struct {
	err            error
	httpStatusCode int
}

func (e *httpStatusCodeError) Error() string {
	if e.err == nil {
		return ""
	}

	return e.err.Error()
}

func (e *httpStatusCodeError) Unwrap() error {
	return e.err
}

// Kind maps every error that wraps Err to HTTPStatusCode.
type Kind struct {
	Err            error
	HTTPStatusCode int
}

// HTTPStatusCode returns the status code attached to err by
// HTTPStatusCodeError. Failing that, it returns the code of the first of
// kinds that err wraps, else 500.
func HTTPStatusCode(err error, kinds ...Kind) int {
	if hscerr := new(httpStatusCodeError); errors.As(err, &hscerr) {
		return hscerr.httpStatusCode
	}

	for _, kind := range kinds {
		if errors.Is(err, kind.Err) {
			return kind.HTTPStatusCode
		}
	}

	return http.StatusInternalServerError
}
