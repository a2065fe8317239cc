package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/monster-duel-backend/internal/hub"
	"github.com/DoyleJ11/monster-duel-backend/internal/store"
)

const requestTimeout = 2 * time.Second

// History is the read side of the battle store.
type History interface {
	Recent(ctx context.Context, limit int) ([]store.BattleRecord, error)
	Ping(ctx context.Context) error
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, struct {
		Error string `json:"error"`
	}{Error: msg})
}

// Healthz fails only when a configured store stops answering.
func Healthz(history History, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if history != nil {
			ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
			defer cancel()
			if err := history.Ping(ctx); err != nil {
				log.Warn("health check: store unreachable", zap.Error(err))
				writeError(w, http.StatusServiceUnavailable, "store unreachable")
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	}
}

func Stats(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()
		st, err := h.Stats(ctx)
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "hub unavailable")
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func Battles(history History, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if history == nil {
			writeError(w, http.StatusServiceUnavailable, "battle history disabled")
			return
		}

		limit := store.DefaultRecentLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				writeError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = n
		}

		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()
		recs, err := history.Recent(ctx, limit)
		if err != nil {
			log.Error("failed to list battles", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to list battles")
			return
		}
		if recs == nil {
			recs = []store.BattleRecord{}
		}
		writeJSON(w, http.StatusOK, recs)
	}
}
