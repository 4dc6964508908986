package otahttp

import (
	"fmt"
	"net/http"

	"github.com/frantjc/ota/internal/otaregexp"
	"github.com/go-chi/chi"
)

var (
	paramID   = fmt.Sprintf("{id:%s}", otaregexp.UUID.String())
	paramFile = "{file}"
)

func appID(r *http.Request) string {
	return chi.URLParam(r, "id")
}

func fileName(r *http.Request) string {
	return chi.URLParam(r, "file")
}
