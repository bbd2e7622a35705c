package routes

import (
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/AnshRaj112/coursely-backend/internal/handlers"
	"github.com/AnshRaj112/coursely-backend/internal/middleware"
	"github.com/AnshRaj112/coursely-backend/internal/models"
)

type Handlers struct {
	Gateway        *middleware.Gateway
	Auth           *handlers.AuthHandler
	Courses        *handlers.CourseHandler
	Progress       *handlers.ProgressHandler
	Devices        *handlers.DeviceHandler
	Payments       *handlers.PaymentHandler
	Admin          *handlers.AdminHandler
	ProgressSocket *handlers.ProgressSocketHandler
	Health         *handlers.HealthHandler

	// RequestTimeout bounds every /api request; the websocket route is exempt.
	RequestTimeout time.Duration
}

func SetupRoutes(r chi.Router, h Handlers) {
	gw := h.Gateway

	r.Method("GET", "/health", h.Health)
	r.Method("GET", "/ws/progress", h.ProgressSocket)

	r.Route("/api", func(api chi.Router) {
		if h.RequestTimeout > 0 {
			api.Use(chimw.Timeout(h.RequestTimeout))
		}
		api.Method("GET", "/health", h.Health)

		api.Route("/auth", func(auth chi.Router) {
			auth.Post("/register", h.Auth.Register)
			auth.Post("/login", h.Auth.Login)
			auth.With(gw.Authenticate).Post("/logout", h.Auth.Logout)
			auth.With(gw.Authenticate).Get("/me", h.Auth.Me)
		})

		api.Route("/courses", func(courses chi.Router) {
			courses.With(gw.OptionalAuth).Get("/", h.Courses.List)
			courses.Route("/{courseId}", func(course chi.Router) {
				course.With(gw.OptionalAuth).Get("/", h.Courses.Get)

				course.Group(func(authed chi.Router) {
					authed.Use(gw.Authenticate)
					authed.Get("/progress", h.Progress.GetCourseProgress)
					authed.Post("/lesson/{lessonId}/progress", h.Progress.UpdatePosition)
					authed.Post("/lesson/{lessonId}/complete", h.Progress.MarkCompleted)
					authed.With(gw.RequireSubscription(h.Courses.IsPremiumRequest)).
						Get("/lesson/{lessonId}/playback", h.Courses.Playback)
				})
			})
		})

		api.With(gw.Authenticate).Get("/me/progress", h.Progress.ListEnrollments)

		api.Route("/devices", func(devices chi.Router) {
			devices.Use(gw.Authenticate, gw.WithDevice)
			devices.Get("/", h.Devices.List)
			devices.Delete("/{deviceId}", h.Devices.Remove)
		})

		api.Route("/payments", func(payments chi.Router) {
			payments.Use(gw.Authenticate)
			payments.Get("/orders", h.Payments.ListOrders)
			payments.Post("/orders", h.Payments.CreateOrder)
			payments.Post("/verify", h.Payments.Verify)
		})

		api.Route("/admin", func(admin chi.Router) {
			admin.Use(gw.Authenticate, gw.RequireRole(models.RoleAdmin))
			admin.Get("/users", h.Admin.ListUsers)
			admin.Delete("/users/{userId}", h.Admin.DeleteUser)
			admin.Get("/users/{userId}/devices", h.Admin.ListUserDevices)
			admin.Delete("/users/{userId}/devices/{deviceId}", h.Admin.RevokeUserDevice)
			admin.Post("/media", h.Admin.UploadMedia)
			admin.Get("/system", h.Admin.System)
		})
	})
}
