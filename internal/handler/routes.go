package handler

import (
	"github.com/Dan9191/loan-service/internal/config"
	"github.com/Dan9191/loan-service/internal/middleware"
	"github.com/Dan9191/loan-service/internal/models"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires every route with its middleware chain
func NewRouter(h *Handler, cfg *config.Config) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Logger(h.log))

	// Public routes
	r.HandleFunc("/register", h.Register).Methods("POST")
	r.HandleFunc("/login", h.Login).Methods("POST")
	r.HandleFunc("/healthz", h.Healthz).Methods("GET")
	r.HandleFunc("/income-barrier", h.IncomeBarrier).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Scheduler and partner routes
	cronRouter := r.PathPrefix("/internal").Subrouter()
	cronRouter.Use(middleware.CronSecret(cfg.CronSecret))
	cronRouter.HandleFunc("/rescore", h.ScheduledRescore).Methods("POST")

	partners := r.PathPrefix("/partners").Subrouter()
	partners.Use(middleware.PartnerSignature(cfg.PartnerSecret))
	partners.HandleFunc("/ingest", h.PartnerIngest).Methods("POST")

	// Protected routes
	authRouter := r.PathPrefix("/").Subrouter()
	authRouter.Use(middleware.AuthMiddleware(cfg))
	authRouter.HandleFunc("/applications", h.SubmitApplication).Methods("POST")
	authRouter.HandleFunc("/applications/{reference}", h.GetApplication).Methods("GET")

	admin := authRouter.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.RequireRole(models.RoleOfficer, models.RoleAdmin))
	admin.HandleFunc("/rescore", h.Rescore).Methods("POST")

	return r
}
