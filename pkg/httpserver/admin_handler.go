package httpserver

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/molbhav/molbhav/internal/catalog"
	"github.com/molbhav/molbhav/internal/circuitbreaker"
	"github.com/molbhav/molbhav/internal/hotstore"
	"github.com/molbhav/molbhav/internal/negotiation"
	"github.com/molbhav/molbhav/internal/storage"
	"github.com/molbhav/molbhav/pkg/types"
)

// adminKeyHeader authenticates the admin surface.
const adminKeyHeader = "X-API-Key"

// adminHandler serves the key-gated operational endpoints.
type adminHandler struct {
	negotiations *negotiation.Service
	catalog      *catalog.Service
	hot          hotstore.Store
	durable      storage.Storage
	breaker      *circuitbreaker.FailureRateBreaker
	adminKey     string
	logger       *zap.Logger
}

func newAdminHandler(cfg *Config) *adminHandler {
	return &adminHandler{
		negotiations: cfg.Negotiations,
		catalog:      cfg.Catalog,
		hot:          cfg.Hot,
		durable:      cfg.Durable,
		breaker:      cfg.Breaker,
		adminKey:     cfg.AdminKey,
		logger:       cfg.Logger,
	}
}

// requireKey gates admin routes on the configured API key. An unset key
// disables the whole surface rather than leaving it open.
func (h *adminHandler) requireKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		supplied := r.Header.Get(adminKeyHeader)

		if h.adminKey == "" ||
			subtle.ConstantTimeCompare([]byte(supplied), []byte(h.adminKey)) != 1 {
			writeError(w, r, h.logger, types.E(types.KindBadToken, "invalid api key"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (h *adminHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.List(r.Context(), false)
	if err != nil {
		writeError(w, r, h.logger, types.WrapE(types.KindDegraded, err, "list products"))
		return
	}

	writeJSON(w, h.logger, http.StatusOK, products)
}

func (h *adminHandler) createProduct(w http.ResponseWriter, r *http.Request) {
	var p types.Product
	if err := decodeBody(w, r, &p); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.catalog.Create(r.Context(), &p); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusCreated, p)
}

func (h *adminHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.Get(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, r, h.logger, types.E(types.KindNoSession, "product not found"))
			return
		}

		writeError(w, r, h.logger, types.WrapE(types.KindDegraded, err, "load product"))
		return
	}

	writeJSON(w, h.logger, http.StatusOK, p)
}

func (h *adminHandler) updateProduct(w http.ResponseWriter, r *http.Request) {
	var p types.Product
	if err := decodeBody(w, r, &p); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	p.ID = chi.URLParam(r, "productID")

	if err := h.catalog.Update(r.Context(), &p); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, p)
}

func (h *adminHandler) deactivateProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.Deactivate(r.Context(), chi.URLParam(r, "productID")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// sessionHistoryResponse is the admin audit view of one session.
type sessionHistoryResponse struct {
	Events  []types.Offer         `json:"events"`
	Summary *types.SessionSummary `json:"summary,omitempty"`
}

func (h *adminHandler) sessionHistory(w http.ResponseWriter, r *http.Request) {
	events, summary, err := h.negotiations.History(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, sessionHistoryResponse{
		Events:  events,
		Summary: summary,
	})
}

// systemStatusResponse reports dependency health and the LLM breaker.
type systemStatusResponse struct {
	HotStore string                 `json:"hot_store"`
	Durable  string                 `json:"durable_store"`
	Breaker  *circuitbreaker.Status `json:"llm_breaker,omitempty"`
}

func (h *adminHandler) systemStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := systemStatusResponse{HotStore: "ok", Durable: "ok"}

	if err := h.hot.Ping(ctx); err != nil {
		resp.HotStore = err.Error()
	}
	if err := h.durable.Ping(ctx); err != nil {
		resp.Durable = err.Error()
	}
	if h.breaker != nil {
		st := h.breaker.GetStatus()
		resp.Breaker = &st
	}

	writeJSON(w, h.logger, http.StatusOK, resp)
}
