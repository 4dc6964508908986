package otahttp

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/frantjc/ota"
	"github.com/frantjc/ota/internal/otaerr"
)

const (
	ContentTypeJSON = "application/json"
)

func encodeJSON(w io.Writer, a any, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}

	return enc.Encode(a)
}

func respondJSON(w http.ResponseWriter, r *http.Request, a any, statusCode int) error {
	if err := negotiate(w, r, ContentTypeJSON); err != nil {
		return err
	}

	w.WriteHeader(statusCode)

	return encodeJSON(w, a, wantsPretty(r))
}

func wantsPretty(r *http.Request) bool {
	pretty, _ := strconv.ParseBool(r.URL.Query().Get("pretty"))
	return pretty
}

var kinds = []otaerr.Kind{
	{Err: ota.ErrResourceLimitExceeded, HTTPStatusCode: http.StatusRequestEntityTooLarge},
	{Err: ota.ErrMalformedPackage, HTTPStatusCode: http.StatusBadRequest},
	{Err: ota.ErrMalformedPlist, HTTPStatusCode: http.StatusBadRequest},
	{Err: ota.ErrEntryNotFound, HTTPStatusCode: http.StatusNotFound},
}

func httpStatusCode(err error) int {
	return otaerr.HTTPStatusCode(err, kinds...)
}
