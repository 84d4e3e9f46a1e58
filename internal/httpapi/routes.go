package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DoyleJ11/spell-duel-backend/internal/hub"
	"github.com/DoyleJ11/spell-duel-backend/internal/session"
	"github.com/DoyleJ11/spell-duel-backend/internal/ws"
	"github.com/DoyleJ11/spell-duel-backend/pkg/metrics"
)

type Deps struct {
	Hub      *hub.Hub
	Sessions *session.Manager
	// Matches is nil when no history database is configured.
	Matches   MatchLister
	CORSAllow []string
	WS        ws.Options
	Log       *zap.Logger
}

func SetupRoutes(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(corsHandler(d.CORSAllow))

	// Public routes
	r.Get("/healthz", Healthz)
	r.Handle("/metrics", metrics.Handler())
	r.Get("/ws", ws.Handler(d.Sessions, d.WS, d.Log))

	r.Group(func(r chi.Router) {
		r.Use(requestLogger(d.Log.Named("http")))
		r.Get("/rooms", ListRooms(d.Hub))
		if d.Matches != nil {
			r.Get("/matches", ListMatches(d.Matches))
		}
	})
	return r
}
