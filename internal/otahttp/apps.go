package otahttp

import (
	"net/http"

	"github.com/frantjc/ota"
	"github.com/frantjc/ota/internal/otapubsub"
)

func (h *handler) handleListApps(w http.ResponseWriter, r *http.Request) error {
	apps, err := h.Registry.ListApps(r.Context())
	if err != nil {
		return err
	}

	if apps == nil {
		apps = []ota.App{}
	}

	return respondJSON(w, r, apps, http.StatusOK)
}

func (h *handler) handleGetApp(w http.ResponseWriter, r *http.Request) error {
	app, err := h.Registry.GetApp(r.Context(), appID(r))
	if err != nil {
		return err
	}

	return respondJSON(w, r, app, http.StatusOK)
}

func (h *handler) handleDeleteApp(w http.ResponseWriter, r *http.Request) error {
	var (
		ctx = r.Context()
		log = ota.LoggerFrom(ctx)
	)

	app, err := h.Registry.DeleteApp(ctx, appID(r))
	if err != nil {
		return err
	}

	if err = h.Store.Delete(ctx, appKeys(app)...); err != nil {
		return err
	}

	log.Info("deleted "+app.Name+" "+app.Version, "id", app.ID)

	if h.Topic != nil {
		if err = otapubsub.Publish(ctx, h.Topic, otapubsub.EventDeleted, app); err != nil {
			log.Error(err, "unable to publish deletion of "+app.ID)
		}
	}

	return respondJSON(w, r, map[string]bool{"success": true}, http.StatusOK)
}
