package otaerr_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/frantjc/ota/internal/otaerr"
	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusCode(t *testing.T) {
	var (
		base = errors.New("base")
		err  = otaerr.HTTPStatusCodeError(base, http.StatusNotFound)
	)

	assert.Equal(t, http.StatusNotFound, otaerr.HTTPStatusCode(err))
	assert.Equal(t, http.StatusNotFound, otaerr.HTTPStatusCode(fmt.Errorf("wrapped: %w", err)))
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "base", err.Error())
}

func TestHTTPStatusCodeDefaults(t *testing.T) {
	assert.NoError(t, otaerr.HTTPStatusCodeError(nil, http.StatusBadRequest))
	assert.Equal(t, http.StatusInternalServerError, otaerr.HTTPStatusCode(errors.New("plain")))
	assert.Equal(t, http.StatusInternalServerError, otaerr.HTTPStatusCode(otaerr.HTTPStatusCodeError(errors.New("bad"), 99)))
	assert.Equal(t, http.StatusInternalServerError, otaerr.HTTPStatusCode(otaerr.HTTPStatusCodeError(errors.New("bad"), 600)))
}

func TestHTTPStatusCodeKinds(t *testing.T) {
	var (
		errMalformed = errors.New("malformed")
		errTooLarge  = errors.New("too large")
		kinds        = []otaerr.Kind{
			{Err: errMalformed, HTTPStatusCode: http.StatusBadRequest},
			{Err: errTooLarge, HTTPStatusCode: http.StatusRequestEntityTooLarge},
		}
	)

	assert.Equal(t, http.StatusBadRequest, otaerr.HTTPStatusCode(fmt.Errorf("%w: bad tag", errMalformed), kinds...))
	assert.Equal(t, http.StatusRequestEntityTooLarge, otaerr.HTTPStatusCode(fmt.Errorf("decode: %w", errTooLarge), kinds...))
	assert.Equal(t, http.StatusInternalServerError, otaerr.HTTPStatusCode(errors.New("other"), kinds...))

	// An attached code wins over the kind.
	assert.Equal(t, http.StatusConflict, otaerr.HTTPStatusCode(otaerr.HTTPStatusCodeError(errMalformed, http.StatusConflict), kinds...))
}
