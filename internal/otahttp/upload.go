package otahttp

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/frantjc/ota"
	"github.com/frantjc/ota/internal/otablob"
	"github.com/frantjc/ota/internal/otaerr"
	"github.com/frantjc/ota/internal/otapubsub"
	"github.com/frantjc/ota/ios"
	"github.com/google/uuid"
)

const (
	ContentTypeOctetStream = "application/octet-stream"
	ContentTypeMultipart   = "multipart/form-data"
)

// FormFieldFile is the multipart field an upload is read from.
const FormFieldFile = "file"

// Upload is the body of a successful upload response.
type Upload struct {
	Success bool     `json:"success"`
	App     *ota.App `json:"app"`
}

func (h *handler) handleUpload(w http.ResponseWriter, r *http.Request) error {
	var (
		ctx = r.Context()
		log = ota.LoggerFrom(ctx)
	)

	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadSize)

	body, originalName, err := uploadedFile(r)
	if err != nil {
		return uploadErr(err)
	}

	if !strings.EqualFold(path.Ext(originalName), ota.ExtIPA) {
		return otaerr.HTTPStatusCodeError(fmt.Errorf("only %s files are accepted, got %q", ota.ExtIPA, originalName), http.StatusBadRequest)
	}

	var (
		id       = uuid.NewString()
		fileName = id + ota.ExtIPA
		buf      = new(bytes.Buffer)
	)

	log.Info("storing upload " + originalName + " as " + fileName)

	size, dgst, err := h.Store.WritePackage(ctx, fileName, io.TeeReader(body, buf))
	if err != nil {
		return uploadErr(err)
	}

	md, err := ios.Extract(ctx, buf.Bytes(), h.Store, h.ExtractOpts)
	if err != nil {
		if dErr := h.Store.Delete(ctx, otablob.PackageKey(fileName)); dErr != nil {
			log.Error(dErr, "unable to delete upload "+fileName)
		}

		return fmt.Errorf("extract %s: %w", originalName, err)
	}

	app := &ota.App{
		ID:               id,
		Name:             md.Name,
		BundleID:         md.BundleID,
		Version:          md.Version,
		BuildVersion:     md.BuildVersion,
		MinimumOSVersion: md.MinimumOSVersion,
		FileName:         fileName,
		OriginalName:     path.Base(originalName),
		Size:             size,
		Digest:           dgst.String(),
		UploadedAt:       time.Now().UTC(),
	}
	if md.Icon != nil {
		app.Icon = md.Icon.Path
	}

	if err = h.Registry.InsertApp(ctx, app); err != nil {
		if dErr := h.Store.Delete(ctx, appKeys(app)...); dErr != nil {
			log.Error(dErr, "unable to delete upload "+fileName)
		}

		return err
	}

	log.Info("uploaded "+app.Name+" "+app.Version, "id", app.ID, "bundleId", app.BundleID, "size", humanize.Bytes(uint64(size)), "digest", app.Digest)

	if h.Topic != nil {
		if err = otapubsub.Publish(ctx, h.Topic, otapubsub.EventUploaded, app); err != nil {
			log.Error(err, "unable to publish upload of "+app.ID)
		}
	}

	return respondJSON(w, r, &Upload{Success: true, App: app}, http.StatusCreated)
}

// uploadedFile finds the package in r, either the multipart field
// FormFieldFile or, for any other Content-Type, the whole body named by
// the name query parameter.
func uploadedFile(r *http.Request) (io.Reader, string, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		mediaType = ContentTypeOctetStream
	}

	if mediaType != ContentTypeMultipart {
		return r.Body, r.URL.Query().Get("name"), nil
	}

	mr, err := r.MultipartReader()
	if err != nil {
		return nil, "", otaerr.HTTPStatusCodeError(err, http.StatusBadRequest)
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, "", otaerr.HTTPStatusCodeError(fmt.Errorf("no %s field in upload", FormFieldFile), http.StatusBadRequest)
		} else if err != nil {
			return nil, "", err
		}

		if part.FormName() == FormFieldFile {
			return part, part.FileName(), nil
		}
	}
}

func uploadErr(err error) error {
	if mbErr := new(http.MaxBytesError); errors.As(err, &mbErr) {
		return otaerr.HTTPStatusCodeError(fmt.Errorf("%w: upload exceeds %s", ota.ErrResourceLimitExceeded, humanize.Bytes(uint64(mbErr.Limit))), http.StatusRequestEntityTooLarge)
	}

	return err
}

// appKeys are the keys of every object stored for app.
func appKeys(app *ota.App) []string {
	keys := []string{otablob.PackageKey(app.FileName)}
	if app.Icon != "" {
		keys = append(keys, otablob.IconKey(path.Base(app.Icon)))
	}

	return keys
}
