package fan

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-fanscore-go/internal/fan/entity"
)

// Handler exposes HTTP endpoints for fan scoring.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// IngestRequest is one platform row pushed by the metrics provider.
type IngestRequest struct {
	FanID        string    `json:"fanId"`
	Platform     string    `json:"platform"`
	Streams      int64     `json:"streams"`
	PlaylistAdds int64     `json:"playlistAdds"`
	Saves        int64     `json:"saves"`
	Follows      bool      `json:"follows"`
	Likes        int64     `json:"likes"`
	Comments     int64     `json:"comments"`
	Shares       int64     `json:"shares"`
	Subscribed   bool      `json:"subscribed"`
	VideoViews   int64     `json:"videoViews"`
	WatchTimeSec int64     `json:"watchTimeSec"`
	EmailOpens   int64     `json:"emailOpens"`
	EmailClicks  int64     `json:"emailClicks"`
	FirstSeenAt  time.Time `json:"firstSeenAt"`
	LastActiveAt time.Time `json:"lastActiveAt"`
}

func (req IngestRequest) metric(artistID string) entity.PlatformMetric {
	return entity.PlatformMetric{
		FanID:        req.FanID,
		ArtistID:     artistID,
		Platform:     entity.Platform(req.Platform),
		Streams:      req.Streams,
		PlaylistAdds: req.PlaylistAdds,
		Saves:        req.Saves,
		Follows:      req.Follows,
		Likes:        req.Likes,
		Comments:     req.Comments,
		Shares:       req.Shares,
		Subscribed:   req.Subscribed,
		VideoViews:   req.VideoViews,
		WatchTimeSec: req.WatchTimeSec,
		EmailOpens:   req.EmailOpens,
		EmailClicks:  req.EmailClicks,
		FirstSeenAt:  req.FirstSeenAt,
		LastActiveAt: req.LastActiveAt,
	}
}

func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid ingest payload", "err", err)
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	res, err := h.svc.IngestMetric(r.Context(), req.metric(r.PathValue("artistID")))
	if err != nil {
		h.writeError(w, "ingest failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handler) Recalculate(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Recalculate(r.Context(), r.PathValue("artistID"), r.PathValue("fanID"))
	if err != nil {
		h.writeError(w, "recalculate failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// ScoreResponse is the current stored score of a fan.
type ScoreResponse struct {
	FanID      string                `json:"fanId"`
	Tier       entity.Tier           `json:"tier,omitempty"`
	StanScore  int                   `json:"stanScore"`
	Components entity.ScoreBreakdown `json:"components"`
	ScoredAt   *time.Time            `json:"scoredAt,omitempty"`
}

func (h *Handler) Score(w http.ResponseWriter, r *http.Request) {
	f, err := h.svc.Get(r.Context(), r.PathValue("artistID"), r.PathValue("fanID"))
	if err != nil {
		h.writeError(w, "score lookup failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, ScoreResponse{
		FanID:     f.ID,
		Tier:      f.Tier,
		StanScore: f.StanScore,
		Components: entity.ScoreBreakdown{
			Platform:   f.PlatformScore,
			Engagement: f.EngagementScore,
			Longevity:  f.LongevityScore,
			Recency:    f.RecencyScore,
			Total:      f.StanScore,
			Tier:       f.Tier,
		},
		ScoredAt: f.ScoredAt,
	})
}

func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	evs, err := h.svc.Events(r.Context(), r.PathValue("artistID"), r.PathValue("fanID"), limit)
	if err != nil {
		h.writeError(w, "event lookup failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, evs)
}

func (h *Handler) writeError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, entity.ErrFanNotFound):
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "fan not found"})
	case errors.Is(err, entity.ErrNotOwned):
		h.writeJSON(w, http.StatusForbidden, map[string]string{"error": "fan does not belong to artist"})
	case errors.Is(err, entity.ErrInvalidMetric):
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		h.logger.Warnw(msg, "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": msg})
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
