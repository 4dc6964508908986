package ota

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/frantjc/ota/internal/otaregexp"
)

// Client talks to an ota server.
type Client struct {
	HTTPClient *http.Client
	Base       *url.URL
}

func (c *Client) init() error {
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
	if c.Base == nil {
		var err error
		c.Base, err = url.Parse("http://localhost:8080/")
		return err
	}
	return nil
}

func (c *Client) do(req *http.Request, expectedStatusCode int, a any) error {
	res, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != expectedStatusCode {
		body := map[string]string{}
		if err = json.NewDecoder(res.Body).Decode(&body); err == nil {
			if body["error"] != "" {
				return fmt.Errorf("http status code %d: %s", res.StatusCode, body["error"])
			}
		}

		return fmt.Errorf("http status code %d", res.StatusCode)
	}

	if a == nil {
		return nil
	}

	return json.NewDecoder(res.Body).Decode(a)
}

func (c *Client) GetApp(ctx context.Context, id string) (*App, error) {
	if err := c.init(); err != nil {
		return nil, err
	}

	if !otaregexp.IsUUID(id) {
		return nil, fmt.Errorf("invalid app ID %s", id)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Base.JoinPath("/api/apps", id).String(), nil)
	if err != nil {
		return nil, err
	}

	app := &App{}
	if err = c.do(req, http.StatusOK, app); err != nil {
		return nil, err
	}

	return app, nil
}

func (c *Client) GetApps(ctx context.Context) ([]App, error) {
	if err := c.init(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Base.JoinPath("/api/apps").String(), nil)
	if err != nil {
		return nil, err
	}

	apps := []App{}
	if err = c.do(req, http.StatusOK, &apps); err != nil {
		return nil, err
	}

	return apps, nil
}

// UploadApp sends the .ipa read from body to the server under name,
// returning the App the server registered for it.
func (c *Client) UploadApp(ctx context.Context, name string, body io.Reader) (*App, error) {
	if err := c.init(); err != nil {
		return nil, err
	}

	u := c.Base.JoinPath("/api/upload")
	u.RawQuery = url.Values{"name": {name}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/octet-stream")

	upload := &struct {
		App *App `json:"app"`
	}{}
	if err = c.do(req, http.StatusCreated, upload); err != nil {
		return nil, err
	}

	if upload.App == nil {
		return nil, fmt.Errorf("no app in upload response")
	}

	return upload.App, nil
}

func (c *Client) DeleteApp(ctx context.Context, id string) error {
	if err := c.init(); err != nil {
		return err
	}

	if !otaregexp.IsUUID(id) {
		return fmt.Errorf("invalid app ID %s", id)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.Base.JoinPath("/api/apps", id).String(), nil)
	if err != nil {
		return err
	}

	return c.do(req, http.StatusOK, nil)
}

// GetInstallURL returns the itms-services URL that installs the app
// with id when opened on a device.
func (c *Client) GetInstallURL(ctx context.Context, id string) (string, error) {
	if err := c.init(); err != nil {
		return "", err
	}

	if !otaregexp.IsUUID(id) {
		return "", fmt.Errorf("invalid app ID %s", id)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Base.JoinPath("/api/qrcode", id).String(), nil)
	if err != nil {
		return "", err
	}

	qrcode := &struct {
		InstallURL string `json:"installUrl"`
	}{}
	if err = c.do(req, http.StatusOK, qrcode); err != nil {
		return "", err
	}

	return qrcode.InstallURL, nil
}

func (c *Client) Readyz(ctx context.Context) error {
	if err := c.init(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Base.JoinPath("/readyz").String(), nil)
	if err != nil {
		return err
	}

	return c.do(req, http.StatusOK, nil)
}

func (c *Client) Healthz(ctx context.Context) error {
	if err := c.init(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Base.JoinPath("/healthz").String(), nil)
	if err != nil {
		return err
	}

	return c.do(req, http.StatusOK, nil)
}
