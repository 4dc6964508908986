package command

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/frantjc/ota"
	"github.com/frantjc/ota/internal/otablob"
	"github.com/frantjc/ota/internal/otahttp"
	"github.com/frantjc/ota/internal/otaregistry"
	"github.com/frantjc/ota/ios"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocloud.dev/blob/memblob"
	"gopkg.in/yaml.v3"
	"howett.net/plist"
)

func writeIPA(t *testing.T) string {
	t.Helper()

	info, err := plist.Marshal(map[string]any{
		"CFBundleDisplayName": "Foo",
		"CFBundleIdentifier":  "com.example.foo",
		"CFBundleVersion":     "42",
	}, plist.BinaryFormat)
	require.NoError(t, err)

	var (
		buf = new(bytes.Buffer)
		zw  = zip.NewWriter(buf)
	)

	w, err := zw.Create("Payload/Foo.app/Info.plist")
	require.NoError(t, err)

	_, err = w.Write(info)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	name := filepath.Join(t.TempDir(), "Foo.ipa")
	require.NoError(t, os.WriteFile(name, buf.Bytes(), 0o600))

	return name
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var (
		cmd = NewOta()
		out = new(bytes.Buffer)
	)

	cmd.SetArgs(args)
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))

	err := cmd.ExecuteContext(context.Background())

	return out.String(), err
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()

	bucket := memblob.OpenBucket(nil)
	srv := httptest.NewServer(otahttp.NewHandler(&otablob.Store{Bucket: bucket}, otaregistry.New(bucket)))
	t.Cleanup(func() {
		srv.Close()
		_ = bucket.Close()
	})

	return srv
}

func TestInspect(t *testing.T) {
	out, err := execute(t, "inspect", writeIPA(t), "-o", OutputJSON)
	require.NoError(t, err)

	md := &ios.Metadata{}
	require.NoError(t, json.Unmarshal([]byte(out), md))
	assert.Equal(t, &ios.Metadata{
		Name:             "Foo",
		BundleID:         "com.example.foo",
		Version:          ios.DefaultVersion,
		BuildVersion:     "42",
		MinimumOSVersion: ios.DefaultMinimumOSVersion,
	}, md)

	out, err = execute(t, "inspect", writeIPA(t))
	require.NoError(t, err)

	md = &ios.Metadata{}
	require.NoError(t, yaml.Unmarshal([]byte(out), md))
	assert.Equal(t, "com.example.foo", md.BundleID)
}

func TestInspectMissingFile(t *testing.T) {
	_, err := execute(t, "inspect", filepath.Join(t.TempDir(), "Missing.ipa"))
	assert.Error(t, err)
}

func TestManifest(t *testing.T) {
	id := "5f0c1f3e-6ad5-4a5b-9a43-8f6d4f7b1a2c"

	out, err := execute(t, "manifest", writeIPA(t), "--url", "https://ota.example.com", "--id", id)
	require.NoError(t, err)

	m := &ios.Manifest{}
	_, err = plist.Unmarshal([]byte(out), m)
	require.NoError(t, err)
	require.Len(t, m.Items, 1)
	assert.Equal(t, "https://ota.example.com/uploads/"+id+ota.ExtIPA, m.Items[0].Assets[0].URL)

	_, err = execute(t, "manifest", writeIPA(t))
	assert.Error(t, err)
}

func TestUploadThenGet(t *testing.T) {
	srv := newServer(t)

	out, err := execute(t, "upload", writeIPA(t), "--url", srv.URL, "-o", OutputJSON)
	require.NoError(t, err)

	app := &ota.App{}
	require.NoError(t, json.Unmarshal([]byte(out), app))
	assert.Equal(t, "Foo.ipa", app.OriginalName)

	out, err = execute(t, "get", "apps", "--url", srv.URL, "-o", OutputJSON)
	require.NoError(t, err)

	apps := []ota.App{}
	require.NoError(t, json.Unmarshal([]byte(out), &apps))
	assert.Equal(t, []ota.App{*app}, apps)

	out, err = execute(t, "get", "app", app.ID, "--url", srv.URL, "--install-url")
	require.NoError(t, err)
	assert.Contains(t, out, "itms-services://?action=download-manifest")

	_, err = execute(t, "delete", app.ID, "--url", srv.URL)
	require.NoError(t, err)

	_, err = execute(t, "get", "app", app.ID, "--url", srv.URL)
	assert.ErrorContains(t, err, "404")
}

func TestApplyEnvAndConfig(t *testing.T) {
	config := filepath.Join(t.TempDir(), "ota.yaml")
	require.NoError(t, os.WriteFile(config, []byte("addr: :9090\nblob: file:///tmp/ota\ndb: postgres://config\n"), 0o600))

	t.Setenv("OTA_DB", "postgres://env")

	var (
		flags = pflag.NewFlagSet("ota", pflag.ContinueOnError)
		addr  = flags.String("addr", ":8080", "")
		blob  = flags.String("blob", "mem://", "")
		db    = flags.String("db", "", "")
	)
	require.NoError(t, flags.Parse([]string{"--blob", "mem://flag"}))

	require.NoError(t, applyEnv(flags))
	require.NoError(t, applyConfig(flags, config))

	assert.Equal(t, ":9090", *addr)
	assert.Equal(t, "mem://flag", *blob)
	assert.Equal(t, "postgres://env", *db)
}

func TestApplyConfigUnknownFlag(t *testing.T) {
	config := filepath.Join(t.TempDir(), "ota.yaml")
	require.NoError(t, os.WriteFile(config, []byte("nope: 1\n"), 0o600))

	assert.ErrorContains(t, applyConfig(pflag.NewFlagSet("ota", pflag.ContinueOnError), config), "unknown flag nope")
}

func TestAuthTransport(t *testing.T) {
	var authorization string
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		authorization = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	for _, tc := range []struct {
		transport *authTransport
		expected  string
	}{
		{transport: &authTransport{Token: "t"}, expected: "Bearer t"},
		{transport: &authTransport{Username: "u", Password: "p"}, expected: "Basic dTpw"},
		{transport: &authTransport{}, expected: ""},
	} {
		res, err := (&http.Client{Transport: tc.transport}).Get(srv.URL)
		require.NoError(t, err)
		_ = res.Body.Close()

		assert.Equal(t, tc.expected, authorization)
	}
}
