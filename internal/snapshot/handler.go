package snapshot

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// Handler lets an operator trigger the daily freeze for one tenant.
type Handler struct {
	sched  *Scheduler
	logger *zap.SugaredLogger
}

func NewHandler(sched *Scheduler, logger *zap.SugaredLogger) *Handler {
	return &Handler{sched: sched, logger: logger}
}

func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	rep, err := h.sched.RunTenant(r.Context(), r.PathValue("artistID"))
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		h.logger.Warnw("snapshot run failed", "artist_id", r.PathValue("artistID"), "err", err)
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "snapshot failed"})
		return
	}
	_ = json.NewEncoder(w).Encode(rep)
}
