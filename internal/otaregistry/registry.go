// Package otaregistry keeps the list of uploaded apps as one JSON document
// in a bucket, newest first.
package otaregistry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/frantjc/ota"
	"github.com/frantjc/ota/internal/otablob"
	"github.com/frantjc/ota/internal/otaerr"
	xslice "github.com/frantjc/x/slice"
	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
)

type Registry struct {
	Bucket *blob.Bucket
	// Key is where the document is kept, otablob.RegistryKey if empty.
	Key string

	mu sync.Mutex
}

func New(bucket *blob.Bucket) *Registry {
	return &Registry{Bucket: bucket, Key: otablob.RegistryKey}
}

func (r *Registry) key() string {
	if r.Key == "" {
		return otablob.RegistryKey
	}

	return r.Key
}

func (r *Registry) read(ctx context.Context) ([]ota.App, error) {
	b, err := r.Bucket.ReadAll(ctx, r.key())
	if gcerrors.Code(err) == gcerrors.NotFound {
		return []ota.App{}, nil
	} else if err != nil {
		return nil, err
	}

	apps := []ota.App{}
	if err = json.Unmarshal(b, &apps); err != nil {
		return nil, fmt.Errorf("decode %s: %w", r.key(), err)
	}

	return apps, nil
}

func (r *Registry) write(ctx context.Context, apps []ota.App) error {
	b, err := json.MarshalIndent(apps, "", "  ")
	if err != nil {
		return err
	}

	return r.Bucket.WriteAll(ctx, r.key(), b, &blob.WriterOptions{ContentType: "application/json"})
}

func notFound(id string) error {
	return otaerr.HTTPStatusCodeError(fmt.Errorf("app %s not found", id), http.StatusNotFound)
}

// ListApps returns every app, most recently uploaded first.
func (r *Registry) ListApps(ctx context.Context) ([]ota.App, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.read(ctx)
}

func (r *Registry) GetApp(ctx context.Context, id string) (*ota.App, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	apps, err := r.read(ctx)
	if err != nil {
		return nil, err
	}

	app := xslice.Find(apps, func(app ota.App, _ int) bool {
		return app.ID == id
	})
	if app.ID == "" {
		return nil, notFound(id)
	}

	return &app, nil
}

// InsertApp adds app ahead of every other app.
func (r *Registry) InsertApp(ctx context.Context, app *ota.App) error {
	if err := ota.ValidateApp(app); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	apps, err := r.read(ctx)
	if err != nil {
		return err
	}

	if xslice.Some(apps, func(a ota.App, _ int) bool {
		return a.ID == app.ID
	}) {
		return otaerr.HTTPStatusCodeError(fmt.Errorf("app %s already exists", app.ID), http.StatusConflict)
	}

	return r.write(ctx, append([]ota.App{*app}, apps...))
}

// DeleteApp removes the app with id and returns it.
func (r *Registry) DeleteApp(ctx context.Context, id string) (*ota.App, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	apps, err := r.read(ctx)
	if err != nil {
		return nil, err
	}

	app := xslice.Find(apps, func(app ota.App, _ int) bool {
		return app.ID == id
	})
	if app.ID == "" {
		return nil, notFound(id)
	}

	if err = r.write(ctx, xslice.Filter(apps, func(a ota.App, _ int) bool {
		return a.ID != id
	})); err != nil {
		return nil, err
	}

	return &app, nil
}
