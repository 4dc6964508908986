package command

import (
	"fmt"
	"net/http"
)

// authTransport authenticates each request to an ota server, for
// deployments that put one behind an authenticating proxy.
type authTransport struct {
	Token        string
	Username     string
	Password     string
	RoundTripper http.RoundTripper
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t == nil {
		return http.DefaultTransport.RoundTrip(req)
	}

	if t.RoundTripper == nil {
		t.RoundTripper = http.DefaultTransport
	}

	req = req.Clone(req.Context())

	if t.Token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", t.Token))
	} else if t.Username != "" && t.Password != "" {
		req.SetBasicAuth(t.Username, t.Password)
	}

	return t.RoundTripper.RoundTrip(req)
}
