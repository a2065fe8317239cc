package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DoyleJ11/monster-duel-backend/internal/hub"
	"github.com/DoyleJ11/monster-duel-backend/internal/ws"
)

type Deps struct {
	Hub     *hub.Hub
	History History // nil disables /battles
	WS      ws.Options
	Logger  *zap.Logger
}

func SetupRoutes(d Deps) http.Handler {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	d.WS.Logger = log

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", Healthz(d.History, log))
	r.Get("/stats", Stats(d.Hub))
	r.Get("/battles", Battles(d.History, log))
	r.Get("/ws", ws.Handler(d.Hub, d.WS))
	return r
}
