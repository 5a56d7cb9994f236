package cohort

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Handler exposes the SCR API.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) SCR(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Compute(r.Context(), r.PathValue("artistID"))
	if err != nil {
		h.logger.Warnw("scr computation failed", "artist_id", r.PathValue("artistID"), "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "scr computation failed"})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// History lists daily aggregates. Query params from/to are YYYY-MM-DD and
// default to the trailing 30 days.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	to := h.svc.Now()
	from := to.AddDate(0, 0, -30)
	var err error
	if v := r.URL.Query().Get("from"); v != "" {
		if from, err = time.Parse(time.DateOnly, v); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid from date"})
			return
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if to, err = time.Parse(time.DateOnly, v); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid to date"})
			return
		}
	}
	rows, err := h.svc.History(r.Context(), r.PathValue("artistID"), from, to)
	if err != nil {
		h.logger.Warnw("history lookup failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "history lookup failed"})
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
