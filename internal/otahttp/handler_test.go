package otahttp_test

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/frantjc/ota"
	"github.com/frantjc/ota/internal/otablob"
	"github.com/frantjc/ota/internal/otahttp"
	"github.com/frantjc/ota/internal/otapubsub"
	"github.com/frantjc/ota/internal/otaregistry"
	"github.com/frantjc/ota/ios"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocloud.dev/blob"
	"gocloud.dev/blob/memblob"
	"gocloud.dev/pubsub"
	"gocloud.dev/pubsub/mempubsub"
	"howett.net/plist"
)

var icon = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 13, 'I', 'H', 'D', 'R'}

func newIPA(t *testing.T, withIcon bool) []byte {
	t.Helper()

	info, err := plist.Marshal(map[string]any{
		"CFBundleDisplayName":        "Foo",
		"CFBundleIdentifier":         "com.example.foo",
		"CFBundleShortVersionString": "2.1",
		"CFBundleVersion":            "7",
		"MinimumOSVersion":           "15.0",
	}, plist.BinaryFormat)
	require.NoError(t, err)

	files := map[string][]byte{"Payload/Foo.app/Info.plist": info}
	if withIcon {
		files["Payload/Foo.app/AppIcon.png"] = icon
	}

	var (
		buf = new(bytes.Buffer)
		zw  = zip.NewWriter(buf)
	)

	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)

		_, err = w.Write(body)
		require.NoError(t, err)
	}

	require.NoError(t, zw.Close())

	return buf.Bytes()
}

type server struct {
	*httptest.Server
	bucket       *blob.Bucket
	subscription *pubsub.Subscription
}

func newServer(t *testing.T, opts ...otahttp.Opt) *server {
	t.Helper()

	var (
		bucket       = memblob.OpenBucket(nil)
		topic        = mempubsub.NewTopic()
		subscription = mempubsub.NewSubscription(topic, time.Minute)
	)

	base, err := url.Parse("https://ota.example.com")
	require.NoError(t, err)

	srv := httptest.NewServer(otahttp.NewHandler(
		&otablob.Store{Bucket: bucket},
		otaregistry.New(bucket),
		append([]otahttp.Opt{&otahttp.Opts{Base: base, Topic: topic}}, opts...)...,
	))

	t.Cleanup(func() {
		ctx := context.Background()
		srv.Close()
		_ = subscription.Shutdown(ctx)
		_ = topic.Shutdown(ctx)
		_ = bucket.Close()
	})

	return &server{Server: srv, bucket: bucket, subscription: subscription}
}

func (s *server) upload(t *testing.T, name string, b []byte) *http.Response {
	t.Helper()

	var (
		buf = new(bytes.Buffer)
		mw  = multipart.NewWriter(buf)
	)

	fw, err := mw.CreateFormFile(otahttp.FormFieldFile, name)
	require.NoError(t, err)

	_, err = fw.Write(b)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	res, err := http.Post(s.URL+"/api/upload", mw.FormDataContentType(), buf)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = res.Body.Close()
	})

	return res
}

func (s *server) get(t *testing.T, path string) *http.Response {
	t.Helper()

	res, err := http.Get(s.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = res.Body.Close()
	})

	return res
}

func (s *server) keys(t *testing.T) []string {
	t.Helper()

	var (
		ctx  = context.Background()
		iter = s.bucket.List(nil)
		keys = []string{}
	)

	for {
		obj, err := iter.Next(ctx)
		if errors.Is(err, io.EOF) {
			return keys
		}
		require.NoError(t, err)

		keys = append(keys, obj.Key)
	}
}

func decode[T any](t *testing.T, res *http.Response) T {
	t.Helper()

	var a T
	require.NoError(t, json.NewDecoder(res.Body).Decode(&a))

	return a
}

func TestUpload(t *testing.T) {
	var (
		srv = newServer(t)
		b   = newIPA(t, true)
		res = srv.upload(t, "Foo.ipa", b)
	)
	require.Equal(t, http.StatusCreated, res.StatusCode)
	assert.Equal(t, otahttp.ContentTypeJSON, res.Header.Get("Content-Type"))

	upload := decode[otahttp.Upload](t, res)
	require.True(t, upload.Success)

	app := upload.App
	require.NotNil(t, app)
	assert.Regexp(t, `^[0-9a-f-]{36}$`, app.ID)
	assert.Equal(t, app.ID+ota.ExtIPA, app.FileName)
	assert.Equal(t, "Foo.ipa", app.OriginalName)
	assert.Equal(t, "Foo", app.Name)
	assert.Equal(t, "com.example.foo", app.BundleID)
	assert.Equal(t, "2.1", app.Version)
	assert.Equal(t, "7", app.BuildVersion)
	assert.Equal(t, "15.0", app.MinimumOSVersion)
	assert.Equal(t, int64(len(b)), app.Size)
	assert.True(t, strings.HasPrefix(app.Digest, "sha256:"))
	assert.Regexp(t, `^/icons/icon_[0-9a-f-]{36}\.png$`, app.Icon)

	res = srv.get(t, "/api/apps")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, []ota.App{*app}, decode[[]ota.App](t, res))

	res = srv.get(t, "/api/apps/"+app.ID)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, *app, decode[ota.App](t, res))

	res = srv.get(t, "/uploads/"+app.FileName)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, ios.ContentTypeIPA, res.Header.Get("Content-Type"))
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Equal(t, b, body)

	res = srv.get(t, app.Icon)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, otablob.ContentTypePNG, res.Header.Get("Content-Type"))
	body, err = io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Equal(t, icon, body)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	msg, err := srv.subscription.Receive(ctx)
	require.NoError(t, err)
	msg.Ack()

	event := &otapubsub.Event{}
	require.NoError(t, json.Unmarshal(msg.Body, event))
	assert.Equal(t, otapubsub.EventUploaded, event.Type)
	assert.Equal(t, app.ID, event.App.ID)
}

func TestUploadRawBody(t *testing.T) {
	srv := newServer(t)

	res, err := http.Post(srv.URL+"/api/upload?name=Foo.ipa", otahttp.ContentTypeOctetStream, bytes.NewReader(newIPA(t, false)))
	require.NoError(t, err)
	defer res.Body.Close()

	require.Equal(t, http.StatusCreated, res.StatusCode)

	upload := decode[otahttp.Upload](t, res)
	assert.Equal(t, "com.example.foo", upload.App.BundleID)
	assert.Empty(t, upload.App.Icon)
	assert.Equal(t, []string{otablob.RegistryKey, otablob.PackageKey(upload.App.FileName)}, srv.keys(t))
}

func TestUploadRejectsNonIPA(t *testing.T) {
	srv := newServer(t)

	res := srv.upload(t, "Foo.apk", newIPA(t, false))
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Contains(t, decode[map[string]string](t, res)["error"], ".ipa")
	assert.Empty(t, srv.keys(t))
}

func TestUploadMalformed(t *testing.T) {
	srv := newServer(t)

	for _, b := range [][]byte{
		[]byte("not a zip"),
		func() []byte {
			buf := new(bytes.Buffer)
			zw := zip.NewWriter(buf)
			_, _ = zw.Create("Payload/Foo.app/Foo")
			_ = zw.Close()
			return buf.Bytes()
		}(),
	} {
		res := srv.upload(t, "Foo.ipa", b)
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)
		assert.NotEmpty(t, decode[map[string]string](t, res)["error"])
	}

	// Nothing is kept from a failed upload.
	assert.Empty(t, srv.keys(t))

	res := srv.get(t, "/api/apps")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Empty(t, decode[[]ota.App](t, res))
}

func TestUploadTooLarge(t *testing.T) {
	srv := newServer(t, &otahttp.Opts{MaxUploadSize: 256})

	res := srv.upload(t, "Foo.ipa", newIPA(t, true))
	assert.Equal(t, http.StatusRequestEntityTooLarge, res.StatusCode)
	assert.Empty(t, srv.keys(t))
}

func TestUploadEntryLimit(t *testing.T) {
	srv := newServer(t, &otahttp.Opts{
		ExtractOpts: &ios.ExtractOpts{PackageOpts: ios.PackageOpts{MaxEntries: 1}},
	})

	res := srv.upload(t, "Foo.ipa", newIPA(t, true))
	assert.Equal(t, http.StatusRequestEntityTooLarge, res.StatusCode)
	assert.Empty(t, srv.keys(t))
}

func TestManifest(t *testing.T) {
	srv := newServer(t)

	res := srv.upload(t, "Foo.ipa", newIPA(t, true))
	require.Equal(t, http.StatusCreated, res.StatusCode)
	app := decode[otahttp.Upload](t, res).App

	res = srv.get(t, "/manifest/"+app.ID)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, ios.ContentTypePlist, res.Header.Get("Content-Type"))
	assert.Equal(t, "no-store", res.Header.Get("Cache-Control"))

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	m := &ios.Manifest{}
	_, err = plist.Unmarshal(body, m)
	require.NoError(t, err)
	require.Len(t, m.Items, 1)

	assert.Equal(t, []ios.ManifestItemAsset{
		{Kind: ios.AssetKindSoftwarePackage, URL: "https://ota.example.com/uploads/" + app.FileName},
		{Kind: ios.AssetKindDisplayImage, URL: "https://ota.example.com" + app.Icon},
		{Kind: ios.AssetKindFullSizeImage, URL: "https://ota.example.com" + app.Icon},
	}, m.Items[0].Assets)
	assert.Equal(t, &ios.ManifestItemMetadata{
		BundleIdentifier: "com.example.foo",
		BundleVersion:    "2.1",
		Kind:             ios.MetadataKindSoftware,
		Title:            "Foo",
	}, m.Items[0].Metadata)
}

func TestManifestBaseFromRequest(t *testing.T) {
	var (
		bucket   = memblob.OpenBucket(nil)
		registry = otaregistry.New(bucket)
		app      = &ota.App{
			ID:       "5f0c1f3e-6ad5-4a5b-9a43-8f6d4f7b1a2c",
			Name:     "Foo",
			BundleID: "com.example.foo",
			Version:  "1.0",
			FileName: "5f0c1f3e-6ad5-4a5b-9a43-8f6d4f7b1a2c.ipa",
		}
	)
	defer bucket.Close()

	require.NoError(t, registry.InsertApp(context.Background(), app))

	var (
		h   = otahttp.NewHandler(&otablob.Store{Bucket: bucket}, registry)
		req = httptest.NewRequest(http.MethodGet, "/api/qrcode/"+app.ID, nil)
		rec = httptest.NewRecorder()
	)
	req.Host = "ota.internal:8080"
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	qrcode := &otahttp.QRCode{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(qrcode))
	assert.Equal(t, "itms-services://?action=download-manifest&url=https%3A%2F%2Fota.internal%3A8080%2Fmanifest%2F"+app.ID, qrcode.InstallURL)
	assert.True(t, strings.HasPrefix(qrcode.QRCode, "data:image/png;base64,"))

	req = httptest.NewRequest(http.MethodGet, "/manifest/"+app.ID, nil)
	req.Header.Set("X-Forwarded-Host", "ota.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "https://ota.example.com/uploads/"+app.FileName)
	assert.NotContains(t, rec.Body.String(), "display-image")
}

func TestQRCode(t *testing.T) {
	srv := newServer(t)

	res := srv.upload(t, "Foo.ipa", newIPA(t, false))
	require.Equal(t, http.StatusCreated, res.StatusCode)
	app := decode[otahttp.Upload](t, res).App

	res = srv.get(t, "/api/qrcode/"+app.ID)
	require.Equal(t, http.StatusOK, res.StatusCode)

	qrcode := decode[otahttp.QRCode](t, res)
	assert.Equal(t, "itms-services://?action=download-manifest&url=https%3A%2F%2Fota.example.com%2Fmanifest%2F"+app.ID, qrcode.InstallURL)
	assert.True(t, strings.HasPrefix(qrcode.QRCode, "data:image/png;base64,"))
}

func TestQRCodeSize(t *testing.T) {
	srv := newServer(t)

	res := srv.upload(t, "Foo.ipa", newIPA(t, false))
	require.Equal(t, http.StatusCreated, res.StatusCode)
	app := decode[otahttp.Upload](t, res).App

	for _, size := range []string{"100000", "1025", "-1", "big"} {
		res = srv.get(t, "/api/qrcode/"+app.ID+"?size="+size)
		assert.Equal(t, http.StatusBadRequest, res.StatusCode, size)
		assert.Contains(t, decode[map[string]string](t, res)["error"], "size", size)
	}

	res = srv.get(t, "/api/qrcode/"+app.ID+"?size=512")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.True(t, strings.HasPrefix(decode[otahttp.QRCode](t, res).QRCode, "data:image/png;base64,"))
}

func TestDeleteApp(t *testing.T) {
	srv := newServer(t)

	res := srv.upload(t, "Foo.ipa", newIPA(t, true))
	require.Equal(t, http.StatusCreated, res.StatusCode)
	app := decode[otahttp.Upload](t, res).App
	assert.Len(t, srv.keys(t), 3)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/apps/"+app.ID, nil)
	require.NoError(t, err)

	res, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, map[string]bool{"success": true}, decode[map[string]bool](t, res))

	// Only the now empty registry is left.
	assert.Equal(t, []string{otablob.RegistryKey}, srv.keys(t))

	for _, path := range []string{
		"/api/apps/" + app.ID,
		"/manifest/" + app.ID,
		"/api/qrcode/" + app.ID,
		"/uploads/" + app.FileName,
		app.Icon,
	} {
		assert.Equal(t, http.StatusNotFound, srv.get(t, path).StatusCode, path)
	}

	res, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestNotFound(t *testing.T) {
	srv := newServer(t)

	for _, path := range []string{
		"/api/apps/5f0c1f3e-6ad5-4a5b-9a43-8f6d4f7b1a2c",
		"/api/apps/not-a-uuid",
		"/manifest/not-a-uuid",
		"/uploads/..%2Fapps.json",
		"/uploads/apps.json",
		"/icons/icon.gif",
		"/nope",
	} {
		res := srv.get(t, path)
		assert.Equal(t, http.StatusNotFound, res.StatusCode, path)
		assert.NotEmpty(t, decode[map[string]string](t, res)["error"], path)
	}
}

func TestHealth(t *testing.T) {
	srv := newServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		res := srv.get(t, path)
		require.Equal(t, http.StatusOK, res.StatusCode)

		body, err := io.ReadAll(res.Body)
		require.NoError(t, err)
		assert.Equal(t, "ok", string(body))
	}
}
