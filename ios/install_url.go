package ios

import (
	"net/url"
)

// InstallURL returns the itms-services URL that prompts a device to fetch
// the manifest at manifestURL and install what it describes.
func InstallURL(manifestURL *url.URL) *url.URL {
	values := url.Values{}
	values.Add("action", "download-manifest")
	values.Add("url", manifestURL.String())

	return &url.URL{
		Scheme:   SchemeITMSServices,
		Opaque:   "//",
		RawQuery: values.Encode(),
	}
}
