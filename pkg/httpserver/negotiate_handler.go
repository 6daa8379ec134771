package httpserver

import (
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/molbhav/molbhav/internal/negotiation"
	"github.com/molbhav/molbhav/pkg/types"
)

// maxBodyBytes caps negotiation request bodies.
const maxBodyBytes = 16 << 10

// sessionTokenHeader authenticates offer and status calls.
const sessionTokenHeader = "X-Session-Token"

// negotiateHandler serves the buyer-facing endpoints.
type negotiateHandler struct {
	svc    *negotiation.Service
	logger *zap.Logger
}

func newNegotiateHandler(svc *negotiation.Service, logger *zap.Logger) *negotiateHandler {
	return &negotiateHandler{svc: svc, logger: logger}
}

// start handles POST /negotiate/start.
func (h *negotiateHandler) start(w http.ResponseWriter, r *http.Request) {
	var req types.StartRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	resp, err := h.svc.Start(r.Context(), clientIP(r), &req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, resp)
}

// offer handles POST /negotiate/{sessionID}/offer.
func (h *negotiateHandler) offer(w http.ResponseWriter, r *http.Request) {
	var req types.OfferRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	resp, err := h.svc.Offer(r.Context(),
		chi.URLParam(r, "sessionID"),
		r.Header.Get(sessionTokenHeader),
		&req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, resp)
}

// status handles GET /negotiate/{sessionID}/status.
func (h *negotiateHandler) status(w http.ResponseWriter, r *http.Request) {
	resp, err := h.svc.Status(r.Context(),
		chi.URLParam(r, "sessionID"),
		r.Header.Get(sessionTokenHeader))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, resp)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return types.WrapE(types.KindBadInput, err, "malformed request body")
	}

	return nil
}

// clientIP feeds the start-rate limiter. RealIP middleware has already
// folded X-Forwarded-For into RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}
