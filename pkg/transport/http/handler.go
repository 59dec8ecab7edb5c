package http

import (
	"net/http"

	"github.com/pkg/errors"
	"github.com/samueltorres/hitcounter/pkg/counter"
	"github.com/samueltorres/hitcounter/pkg/pages"
	"github.com/sirupsen/logrus"
)

const contentTypeHTML = "text/html; charset=utf-8"

type pageHandler struct {
	counter  Counter
	settings SettingsProvider
	pages    *pages.Renderer
	logger   *logrus.Logger
}

func (h *pageHandler) handleLanding(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", contentTypeHTML)

	if err := h.pages.Landing(w, h.settings.Settings()); err != nil {
		h.requestLogger(r).WithError(err).Error("could not render landing page")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// handleCount increments the counter once and shows the value the store
// returned for that increment.
func (h *pageHandler) handleCount(w http.ResponseWriter, r *http.Request) {
	visits, err := h.counter.Increment(r.Context())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, counter.ErrStoreUnavailable) {
			status = http.StatusServiceUnavailable
		}

		h.requestLogger(r).WithError(err).Error("could not count visit")
		http.Error(w, http.StatusText(status), status)
		return
	}

	w.Header().Set("Content-Type", contentTypeHTML)
	w.Header().Set("Cache-Control", "no-store")

	page := pages.CountPage{Visits: visits}
	if err := h.pages.Count(w, page); err != nil {
		h.requestLogger(r).WithError(err).Error("could not render count page")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *pageHandler) requestLogger(r *http.Request) *logrus.Entry {
	return h.logger.WithField("request_id", RequestIDFromContext(r.Context()))
}
