package verification

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	fanentity "github.com/ovaphlow/pitchfork/service-fanscore-go/internal/fan/entity"
)

const maxBody = 64 << 10

type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) Issue(w http.ResponseWriter, r *http.Request) {
	var req IssueRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(&req); err != nil || req.FanID == "" || req.ArtistID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "fanId and artistId are required"})
		return
	}
	out, err := h.svc.Issue(r.Context(), req)
	if err != nil {
		h.writeError(w, "issue failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

type revokeRequest struct {
	Token string `json:"token"`
	FanID string `json:"fanId"`
}

func (h *Handler) Revoke(w http.ResponseWriter, r *http.Request) {
	var req revokeRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(&req); err != nil || req.Token == "" || req.FanID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "token and fanId are required"})
		return
	}
	st, err := h.svc.Revoke(r.Context(), req.Token, req.FanID)
	if err != nil {
		h.writeError(w, "revoke failed", err)
		return
	}
	status := http.StatusOK
	if st == StatusNotFound {
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]Status{"status": st})
}

// Tokens lists a fan's tokens.
func (h *Handler) Tokens(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.Tokens(r.Context(), r.PathValue("artistID"), r.PathValue("fanID"))
	if err != nil {
		h.writeError(w, "list tokens failed", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type verifyRequest struct {
	Token    string `json:"token"`
	ArtistID string `json:"artistId"`
	Policy   Policy `json:"policy"`
}

// Verify is the public endpoint. Negative outcomes are ordinary 200 responses.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	out, err := h.svc.VerifyForEvent(r.Context(), req.Token, req.ArtistID, req.Policy)
	if err != nil {
		h.writeError(w, "verify failed", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type exportRequest struct {
	Token  string `json:"token"`
	Format string `json:"format"`
}

func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	f, err := ParseFormat(req.Format)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	doc, err := h.svc.Export(req.Token, f)
	if err != nil {
		h.writeError(w, "export failed", err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// VerifyExport accepts any export document; ?format= selects the parser.
func (h *Handler) VerifyExport(w http.ResponseWriter, r *http.Request) {
	f, err := ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	doc, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	res, err := h.svc.VerifyExport(r.Context(), f, doc)
	if err != nil {
		h.writeError(w, "verify export failed", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) QR(w http.ResponseWriter, r *http.Request) {
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	if size > 1024 {
		size = 1024
	}
	png, err := h.svc.QR(r.URL.Query().Get("token"), size)
	if err != nil {
		h.writeError(w, "qr failed", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(png)
}

func (h *Handler) writeError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, fanentity.ErrFanNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "fan not found"})
	case errors.Is(err, fanentity.ErrNotOwned):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	case errors.Is(err, ErrInvalidExpiry), errors.Is(err, ErrUnsignedToken), errors.Is(err, ErrUnknownFormat):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, ErrNotScored):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		h.logger.Warnw(msg, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": msg})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
