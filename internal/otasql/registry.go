package otasql

import (
	"context"
	"database/sql"

	"github.com/frantjc/ota"
)

// Registry keeps apps in the app table of a Postgres database.
type Registry struct {
	DB *sql.DB
}

func (r *Registry) ListApps(ctx context.Context) ([]ota.App, error) {
	return SelectApps(ctx, r.DB, 0, 0)
}

func (r *Registry) GetApp(ctx context.Context, id string) (*ota.App, error) {
	app := &ota.App{ID: id}

	if err := SelectApp(ctx, r.DB, app); err != nil {
		return nil, err
	}

	return app, nil
}

func (r *Registry) InsertApp(ctx context.Context, app *ota.App) error {
	return InsertApp(ctx, r.DB, app)
}

func (r *Registry) DeleteApp(ctx context.Context, id string) (*ota.App, error) {
	app := &ota.App{ID: id}

	if err := DeleteApp(ctx, r.DB, app); err != nil {
		return nil, err
	}

	return app, nil
}
