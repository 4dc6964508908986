package otasql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/frantjc/ota"
	"github.com/frantjc/ota/internal/otaerr"
)

func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS app (
	id VARCHAR (36) PRIMARY KEY,
	name TEXT NOT NULL,
	bundle_id TEXT NOT NULL,
	version TEXT NOT NULL,
	build_version TEXT NOT NULL,
	minimum_os_version TEXT NOT NULL DEFAULT '',
	file_name TEXT NOT NULL,
	original_name TEXT NOT NULL DEFAULT '',
	size BIGINT NOT NULL DEFAULT 0,
	digest TEXT NOT NULL DEFAULT '',
	icon TEXT NOT NULL DEFAULT '',
	uploaded_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);`); err != nil {
		return err
	}

	return nil
}

const columns = "id, name, bundle_id, version, build_version, minimum_os_version, file_name, original_name, size, digest, icon, uploaded_at"

type scanner interface {
	Scan(dest ...any) error
}

func scanApp(s scanner, app *ota.App) error {
	return s.Scan(&app.ID, &app.Name, &app.BundleID, &app.Version, &app.BuildVersion, &app.MinimumOSVersion, &app.FileName, &app.OriginalName, &app.Size, &app.Digest, &app.Icon, &app.UploadedAt)
}

func SelectApp(ctx context.Context, db *sql.DB, app *ota.App) error {
	if app.ID == "" {
		return fmt.Errorf("unable to uniquely identify app")
	}

	if err := scanApp(db.QueryRowContext(ctx,
		"SELECT "+columns+" FROM app WHERE id = $1",
		app.ID,
	), app); errors.Is(err, sql.ErrNoRows) {
		return otaerr.HTTPStatusCodeError(fmt.Errorf("app %s not found", app.ID), http.StatusNotFound)
	} else if err != nil {
		return err
	}

	return nil
}

// SelectApps returns apps newest first. A limit of 0 means no limit.
func SelectApps(ctx context.Context, db *sql.DB, limit, offset int) ([]ota.App, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = db.QueryContext(ctx,
			"SELECT "+columns+" FROM app ORDER BY uploaded_at DESC LIMIT $1 OFFSET $2",
			limit, offset,
		)
	} else {
		rows, err = db.QueryContext(ctx,
			"SELECT "+columns+" FROM app ORDER BY uploaded_at DESC OFFSET $1",
			offset,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	apps := []ota.App{}
	for rows.Next() {
		app := ota.App{}

		if err = scanApp(rows, &app); err != nil {
			return nil, err
		}

		apps = append(apps, app)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return apps, nil
}

func InsertApp(ctx context.Context, db *sql.DB, app *ota.App) error {
	if err := ota.ValidateApp(app); err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx,
		"INSERT INTO app ("+columns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)",
		app.ID, app.Name, app.BundleID, app.Version, app.BuildVersion, app.MinimumOSVersion, app.FileName, app.OriginalName, app.Size, app.Digest, app.Icon, app.UploadedAt,
	); err != nil {
		return err
	}

	return nil
}

func DeleteApp(ctx context.Context, db *sql.DB, app *ota.App) error {
	if app.ID == "" {
		return fmt.Errorf("unable to uniquely identify app")
	}

	if err := scanApp(db.QueryRowContext(ctx,
		"DELETE FROM app WHERE id = $1 RETURNING "+columns,
		app.ID,
	), app); errors.Is(err, sql.ErrNoRows) {
		return otaerr.HTTPStatusCodeError(fmt.Errorf("app %s not found", app.ID), http.StatusNotFound)
	} else if err != nil {
		return err
	}

	return nil
}
