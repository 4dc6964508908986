// Package otahttp serves uploads, the app registry, install manifests and
// the files they point at.
package otahttp

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"

	"github.com/frantjc/ota"
	"github.com/frantjc/ota/internal/otablob"
	"github.com/frantjc/ota/internal/otaerr"
	"github.com/frantjc/ota/ios"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/timewasted/go-accept-headers"
	"gocloud.dev/pubsub"
)

// DefaultMaxUploadSize caps the body of an upload.
const DefaultMaxUploadSize = 500 << 20

// Registry stores the records of uploaded apps.
type Registry interface {
	ListApps(ctx context.Context) ([]ota.App, error)
	GetApp(ctx context.Context, id string) (*ota.App, error)
	InsertApp(ctx context.Context, app *ota.App) error
	DeleteApp(ctx context.Context, id string) (*ota.App, error)
}

type Opts struct {
	// Base is the URL the server is reachable at. If nil, it is derived
	// from each request's host, always with https.
	Base *url.URL
	// Topic, if set, is sent an event for each upload and delete.
	Topic         *pubsub.Topic
	MaxUploadSize int64
	ExtractOpts   *ios.ExtractOpts
}

type Opt interface {
	Apply(*Opts)
}

func (o *Opts) Apply(opts *Opts) {
	if o != nil {
		if opts != nil {
			if o.Base != nil {
				opts.Base = o.Base
			}
			if o.Topic != nil {
				opts.Topic = o.Topic
			}
			if o.MaxUploadSize > 0 {
				opts.MaxUploadSize = o.MaxUploadSize
			}
			if o.ExtractOpts != nil {
				opts.ExtractOpts = o.ExtractOpts
			}
		}
	}
}

func newOpts(opts ...Opt) *Opts {
	o := &Opts{
		MaxUploadSize: DefaultMaxUploadSize,
	}

	for _, opt := range opts {
		opt.Apply(o)
	}

	return o
}

type handler struct {
	*Opts
	Store    *otablob.Store
	Registry Registry
}

func NewHandler(store *otablob.Store, registry Registry, opts ...Opt) http.Handler {
	var (
		h = &handler{
			Opts:     newOpts(opts...),
			Store:    store,
			Registry: registry,
		}
		r = chi.NewRouter()
	)

	r.Use(middleware.RealIP)

	r.NotFound(handleErr(func(_ http.ResponseWriter, r *http.Request) error {
		return otaerr.HTTPStatusCodeError(fmt.Errorf("%s not found", path.Clean(r.URL.Path)), http.StatusNotFound)
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "ok")
	})

	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "ok")
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/upload", handleErr(h.handleUpload))

		r.Get("/apps", handleErr(h.handleListApps))

		r.Get(fmt.Sprintf("/apps/%s", paramID), handleErr(h.handleGetApp))

		r.Delete(fmt.Sprintf("/apps/%s", paramID), handleErr(h.handleDeleteApp))

		r.Get(fmt.Sprintf("/qrcode/%s", paramID), handleErr(h.handleQRCode))
	})

	r.Get(fmt.Sprintf("/manifest/%s", paramID), handleErr(h.handleManifest))

	r.Get(fmt.Sprintf("/%s/%s", otablob.DirUploads, paramFile), handleErr(h.handleFile(otablob.PackageKey)))

	r.Get(fmt.Sprintf("/%s/%s", otablob.DirIcons, paramFile), handleErr(h.handleFile(otablob.IconKey)))

	return r
}

func handleErr(handler func(w http.ResponseWriter, r *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := handler(w, r); err != nil {
			ota.LoggerFrom(r.Context()).V(1).Info(err.Error(), "method", r.Method, "path", r.URL.Path)

			if nErr := negotiate(w, r, ContentTypeJSON); nErr != nil {
				http.Error(w, err.Error(), httpStatusCode(err))
				return
			}

			w.WriteHeader(httpStatusCode(err))
			_ = encodeJSON(w, map[string]string{"error": err.Error()}, wantsPretty(r))
		}
	}
}

func negotiate(w http.ResponseWriter, r *http.Request, contentType string) error {
	if _, err := accept.Negotiate(r.Header.Get("Accept"), contentType); err != nil {
		w.Header().Set("Accept", contentType)
		return otaerr.HTTPStatusCodeError(err, http.StatusUnsupportedMediaType)
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Vary", "Accept")

	return nil
}
