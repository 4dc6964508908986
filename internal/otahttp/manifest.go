package otahttp

import (
	"fmt"
	"net/http"
	"net/url"
	"path"

	"github.com/frantjc/ota"
	"github.com/frantjc/ota/internal/otablob"
	"github.com/frantjc/ota/ios"
)

func (h *handler) handleManifest(w http.ResponseWriter, r *http.Request) error {
	app, err := h.Registry.GetApp(r.Context(), appID(r))
	if err != nil {
		return err
	}

	base, err := h.baseURL(r)
	if err != nil {
		return err
	}

	if err = negotiate(w, r, ios.ContentTypePlist); err != nil {
		return err
	}

	indent := ""
	if wantsPretty(r) {
		indent = "  "
	}

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", ota.FileManifestPlist))

	return ios.EncodeManifest(w, ios.BuildManifest(metadata(app), otablob.PackagePath(app.FileName), base), indent)
}

func metadata(app *ota.App) *ios.Metadata {
	md := &ios.Metadata{
		Name:             app.Name,
		BundleID:         app.BundleID,
		Version:          app.Version,
		BuildVersion:     app.BuildVersion,
		MinimumOSVersion: app.MinimumOSVersion,
	}

	if app.Icon != "" {
		md.Icon = &ios.IconRef{
			Name: path.Base(app.Icon),
			Path: app.Icon,
		}
	}

	return md
}

// manifestURL is where the manifest of the app with id is served.
func manifestURL(base *url.URL, id string) *url.URL {
	return base.JoinPath("manifest", id)
}
