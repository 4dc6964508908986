package otahttp

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/frantjc/ota"
	"github.com/frantjc/ota/internal/otaerr"
	"github.com/frantjc/ota/internal/otaregexp"
)

// handleFile serves the stored object that key maps the requested file
// name to. Only names the server generated are looked up.
func (h *handler) handleFile(key func(string) string) func(http.ResponseWriter, *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		name := fileName(r)
		if !otaregexp.IsStoredFile(name) {
			return otaerr.HTTPStatusCodeError(fmt.Errorf("%s not found", name), http.StatusNotFound)
		}

		rc, err := h.Store.NewReader(r.Context(), key(name))
		if err != nil {
			return err
		}
		defer rc.Close()

		if err = negotiate(w, r, rc.ContentType()); err != nil {
			return err
		}

		w.Header().Set("Content-Length", strconv.FormatInt(rc.Size(), 10))
		w.Header().Set("Last-Modified", rc.ModTime().UTC().Format(http.TimeFormat))

		if _, err = io.Copy(w, rc); err != nil {
			ota.LoggerFrom(r.Context()).Error(err, "unable to finish serving "+name)
		}

		return nil
	}
}
