package api

import (
	"net/http"

	"github.com/Guychuk210/lullaby-sub000/internal/repositories"
	"github.com/Guychuk210/lullaby-sub000/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type Server struct {
	identity   *services.Identity
	hub        *services.Hub
	deviceRepo repositories.DeviceRepository
	logger     *zap.Logger
}

func NewServer(identity *services.Identity, hub *services.Hub, deviceRepo repositories.DeviceRepository, logger *zap.Logger) *Server {
	return &Server{
		identity:   identity,
		hub:        hub,
		deviceRepo: deviceRepo,
		logger:     logger,
	}
}

func (s *Server) Router() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	router.Group(func(r chi.Router) {
		r.Use(s.requireUser)

		r.Get("/events", s.handleListEvents)
		r.Post("/events/{eventID}/resolve", s.handleResolveEvent)
		r.Delete("/events/{eventID}", s.handleDeleteEvent)

		r.Get("/notifications", s.handleListNotifications)
		r.Get("/notifications/unread-count", s.handleUnreadCount)
		r.Post("/notifications/refresh", s.handleRefreshNotifications)
		r.Post("/notifications/read-all", s.handleMarkAllRead)
		r.Post("/notifications/{notificationID}/read", s.handleMarkRead)

		r.Get("/devices", s.handleListDevices)
		r.Post("/devices/refresh", s.handleRefreshDevices)
		r.Get("/devices/{deviceID}/activity", s.handleDeviceActivity)
	})

	return router
}
