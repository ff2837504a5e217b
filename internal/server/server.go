package server

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"autoscapeAi/internal/designs"
)

// New constructs the HTTP server with routes and middleware.
func New(port string, designHandler designs.Handler) *http.Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	router.Route("/api", func(r chi.Router) {
		r.Route("/designs", func(r chi.Router) {
			r.Get("/", designHandler.List)
			r.Post("/", designHandler.Create)
			r.Route("/{shortID}", func(r chi.Router) {
				r.Get("/", designHandler.Get)
				r.Post("/video", designHandler.GenerateVideo)
				r.Delete("/", designHandler.Delete)
			})
		})
		r.Route("/credits", func(r chi.Router) {
			r.Post("/", designHandler.Grant)
			r.Get("/{userID}", designHandler.Balance)
		})
		r.Get("/catalog/health", designHandler.CatalogHealth)
		r.Get("/events", designHandler.StreamEvents)
	})

	srv := &http.Server{
		Addr:        ":" + port,
		Handler:     router,
		ReadTimeout: 10 * time.Second,
		// SSE connections stay open indefinitely; WriteTimeout would cut them.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	log.Println("server ready on", srv.Addr)
	return srv
}
