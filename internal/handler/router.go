package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	identifyHandler "github.com/ovelo/moovy-go/internal/handler/identify"
	middlewarePkg "github.com/ovelo/moovy-go/internal/middleware"
	"github.com/ovelo/moovy-go/pkg/utils"
)

// NewRouter wires HTTP routes for the identification backend simulator.
func NewRouter(wsHandler *identifyHandler.WebSocketHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.RespondError(w, http.StatusNotFound, "resource not found")
	})

	r.Route("/v1", func(api chi.Router) {
		api.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		wsHandler.RegisterRoutes(api)
	})

	return r
}
