package otahttp

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

func urlFromReq(r *http.Request) (*url.URL, error) {
	if origin := r.Header.Get("Origin"); origin != "" {
		return url.Parse(origin)
	}

	if forwarded := r.Header.Get("Forwarded"); forwarded != "" {
		var (
			params = strings.Split(forwarded, ";")
			scheme string
			host   string
		)
		for _, param := range params {
			parts := strings.SplitN(strings.TrimSpace(param), "=", 2)
			if len(parts) != 2 {
				continue
			}
			switch strings.ToLower(parts[0]) {
			case "proto":
				scheme = parts[1]
			case "host":
				host = parts[1]
			}
		}

		if scheme != "" && host != "" {
			return url.Parse(fmt.Sprintf("%s://%s", scheme, host))
		}
	}

	scheme := "http"
	if forwardedProto := r.Header.Get("X-Forwarded-Proto"); forwardedProto != "" {
		scheme = forwardedProto
	} else if r.TLS != nil {
		scheme = "https"
	}

	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}

	return url.Parse(fmt.Sprintf("%s://%s", scheme, host))
}

// baseURL is the URL that manifests and install links point at. Devices
// only install over https, so a URL derived from the request always uses it.
func (h *handler) baseURL(r *http.Request) (*url.URL, error) {
	if h.Base != nil {
		return h.Base, nil
	}

	base, err := urlFromReq(r)
	if err != nil {
		return nil, err
	}
	base.Scheme = "https"

	return base, nil
}
