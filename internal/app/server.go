package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/sirupsen/logrus"

	"github.com/novaops/nova-control/internal/api/handlers"
	appMiddleware "github.com/novaops/nova-control/internal/api/middlewares"
	"github.com/novaops/nova-control/internal/config"
	"github.com/novaops/nova-control/internal/core"
	"github.com/novaops/nova-control/internal/services"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
	log        *logrus.Logger
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, store core.Store, billing *services.BillingService, stats *services.StatsService, llm core.LLMProvider, objects core.ObjectClient, log *logrus.Logger) *Server {
	authHandler := handlers.NewAuthHandler(store, cfg.JWTSecret)
	heartbeatHandler := handlers.NewHeartbeatHandler(store, store, store, billing, log)
	activityHandler := handlers.NewActivityHandler(store, store, log)
	profileHandler := handlers.NewProfileHandler(store, store)
	teamHandler := handlers.NewTeamHandler(store)
	billingHandler := handlers.NewBillingHandler(billing, store, store, log)
	statsHandler := handlers.NewStatsHandler(stats, store)
	templateHandler := handlers.NewTemplateHandler(store, store)
	mediaHandler := handlers.NewMediaHandler(objects, store, log)
	aiHandler := handlers.NewAIHandler(llm, store, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(httprate.LimitByIP(cfg.RateLimitPerMin, time.Minute))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
	}))

	r.Route("/api", func(api chi.Router) {
		// bot-facing endpoints authenticate by bot id, not JWT
		api.Post("/auth/login", authHandler.Login)
		api.Post("/bots/heartbeat", heartbeatHandler.Heartbeat)
		api.Post("/bot/heartbeat", heartbeatHandler.Heartbeat) // legacy alias
		api.Post("/message_sent", activityHandler.MessageSent)
		api.Post("/activity/log", activityHandler.LogActivity)
		api.Post("/activity/incoming_message", activityHandler.IncomingMessage)
		api.Post("/activity/activity_ping", activityHandler.ActivityPing)

		api.Group(func(protected chi.Router) {
			protected.Use(appMiddleware.JWTMiddleware(cfg.JWTSecret))

			protected.Get("/dashboard", statsHandler.Dashboard)
			protected.Get("/stats/worktime", statsHandler.WorkTime)
			protected.Get("/stats/profiles", statsHandler.ProfileStats)
			protected.Get("/bots", heartbeatHandler.ListBots)

			protected.Get("/profiles", profileHandler.List)
			protected.Post("/profiles", profileHandler.Save)
			protected.Get("/profiles/{id}", profileHandler.Get)
			protected.Delete("/profiles/{id}", profileHandler.Delete)

			protected.Get("/team", teamHandler.List)
			protected.Post("/team", teamHandler.Create)
			protected.Put("/team/{id}", teamHandler.Update)
			protected.Delete("/team/{id}", teamHandler.Delete)

			protected.Post("/billing/topup", billingHandler.Topup)
			protected.Post("/billing/pay", billingHandler.Pay)
			protected.Post("/billing/trial", billingHandler.Trial)
			protected.Get("/billing/status/{profileID}", billingHandler.Status)
			protected.Get("/billing/history", billingHandler.History)

			protected.Get("/favorite-templates", templateHandler.List)
			protected.Post("/favorite-templates", templateHandler.Create)
			protected.Delete("/favorite-templates/{id}", templateHandler.Delete)

			protected.Post("/media/upload", mediaHandler.Upload)
			protected.Post("/ai/generate", aiHandler.Generate)
		})
	})

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	return &Server{httpServer: httpSrv, log: log}
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	s.log.WithField("addr", s.httpServer.Addr).Info("http server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down http server")
	return s.httpServer.Shutdown(ctx)
}
