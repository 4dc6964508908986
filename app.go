package ota

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/frantjc/ota/internal/otaerr"
	"github.com/frantjc/ota/internal/otaregexp"
)

const (
	ExtIPA = ".ipa"
	ExtPNG = ".png"
)

const (
	FileManifestPlist = "manifest.plist"
)

// App is the registry record for an uploaded package.
type App struct {
	ID               string    `json:"id" yaml:"id"`
	Name             string    `json:"name" yaml:"name"`
	BundleID         string    `json:"bundleId" yaml:"bundleId"`
	Version          string    `json:"version" yaml:"version"`
	BuildVersion     string    `json:"buildVersion" yaml:"buildVersion"`
	MinimumOSVersion string    `json:"minimumOSVersion,omitempty" yaml:"minimumOSVersion,omitempty"`
	FileName         string    `json:"fileName" yaml:"fileName"`
	OriginalName     string    `json:"originalName,omitempty" yaml:"originalName,omitempty"`
	Size             int64     `json:"size" yaml:"size"`
	Digest           string    `json:"digest,omitempty" yaml:"digest,omitempty"`
	Icon             string    `json:"icon,omitempty" yaml:"icon,omitempty"`
	UploadedAt       time.Time `json:"uploadedAt" yaml:"uploadedAt"`
}

func ValidateApp(app *App) error {
	errs := []error{}

	if app.ID != "" && !otaregexp.IsUUID(app.ID) {
		errs = append(errs, fmt.Errorf("invalid app ID %s", app.ID))
	}

	if app.FileName != "" && !otaregexp.IsIPA(app.FileName) {
		errs = append(errs, fmt.Errorf("invalid app file name %s", app.FileName))
	}

	return otaerr.HTTPStatusCodeError(errors.Join(errs...), http.StatusBadRequest)
}
