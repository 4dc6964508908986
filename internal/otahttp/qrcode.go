package otahttp

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/frantjc/ota/internal/otaerr"
	"github.com/frantjc/ota/internal/otaqr"
	"github.com/frantjc/ota/ios"
)

// QRCode is the body of a QR code response.
type QRCode struct {
	QRCode     string `json:"qrcode"`
	InstallURL string `json:"installUrl"`
}

func (h *handler) handleQRCode(w http.ResponseWriter, r *http.Request) error {
	app, err := h.Registry.GetApp(r.Context(), appID(r))
	if err != nil {
		return err
	}

	base, err := h.baseURL(r)
	if err != nil {
		return err
	}

	size, err := qrCodeSize(r)
	if err != nil {
		return err
	}

	installURL := ios.InstallURL(manifestURL(base, app.ID)).String()

	dataURL, err := otaqr.DataURL(installURL, size)
	if err != nil {
		return err
	}

	return respondJSON(w, r, &QRCode{QRCode: dataURL, InstallURL: installURL}, http.StatusOK)
}

// qrCodeSize reads the optional size query parameter. Zero means the
// default size.
func qrCodeSize(r *http.Request) (int, error) {
	sizestr := r.URL.Query().Get("size")
	if sizestr == "" {
		return 0, nil
	}

	size, err := strconv.Atoi(sizestr)
	if err != nil || size < 0 || size > otaqr.MaxSize {
		return 0, otaerr.HTTPStatusCodeError(fmt.Errorf("size must be an integer from 0 to %d, got %q", otaqr.MaxSize, sizestr), http.StatusBadRequest)
	}

	return size, nil
}
