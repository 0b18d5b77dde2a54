package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"sejf-plikow/internal/access"
	"sejf-plikow/internal/config"
	"sejf-plikow/internal/database"
	"sejf-plikow/internal/service"
	"sejf-plikow/internal/websocket"
)

type Server struct {
	config   *config.Config
	store    *database.Store
	auths    *service.AuthService
	files    *service.FileService
	recorder service.AuditRecorder
	wsHub    *websocket.Hub
	logger   *zap.Logger
}

func NewServer(cfg *config.Config, store *database.Store, auths *service.AuthService, files *service.FileService, recorder service.AuditRecorder, wsHub *websocket.Hub, logger *zap.Logger) *Server {
	return &Server{
		config:   cfg,
		store:    store,
		auths:    auths,
		files:    files,
		recorder: recorder,
		wsHub:    wsHub,
		logger:   logger,
	}
}

func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(s.logger))
	r.Use(MetricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{s.config.AppHost},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "X-Encryption-Password"},
		AllowCredentials: true,
	}))

	r.Get("/health", s.HealthCheckHandler)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", s.ServeWsHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", s.RegisterHandler)
		r.Post("/auth/login", s.LoginHandler)
		r.Post("/auth/mfa/verify", s.VerifyMFAHandler)
		r.Get("/shared/{token}", s.ResolveShareHandler)

		r.Group(func(r chi.Router) {
			r.Use(s.AuthMiddleware)
			r.Post("/auth/logout", s.LogoutHandler)
			r.Get("/me", s.GetCurrentUserHandler)

			r.Post("/files", s.UploadFileHandler)
			r.Get("/files", s.ListFilesHandler)
			r.Get("/files/{fileID}/download", s.DownloadFileHandler)
			r.Post("/files/{fileID}/exchange", s.ExchangeDownloadHandler)
			r.Post("/files/{fileID}/share", s.ShareFileHandler)
			r.Delete("/files/{fileID}/share", s.UnshareFileHandler)
			r.Delete("/files/{fileID}", s.DeleteFileHandler)

			r.With(s.RequireResourceAccess(access.ResourceAudit, access.ActionRead)).
				Get("/admin/audit", s.ListAuditHandler)
			r.With(s.RequireResourceAccess(access.ResourceUsers, access.ActionWrite)).
				Patch("/admin/users/{userID}/role", s.UpdateUserRoleHandler)
		})
	})

	return r
}

// HealthCheckHandler reports liveness plus database reachability.
func (s *Server) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.store.GetPool().Ping(r.Context()); err != nil {
		s.logger.Error("health check database ping failed", zap.Error(err))
		respondError(w, http.StatusServiceUnavailable, "database unreachable")
		return
	}
	respondMessage(w, http.StatusOK, "ok")
}
