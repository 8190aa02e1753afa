package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/notify-dispatch/internal/application/dispatch"
	"github.com/notify-dispatch/internal/application/feed"
	"github.com/notify-dispatch/internal/application/target"
	"github.com/notify-dispatch/internal/config"
	"github.com/notify-dispatch/internal/domain"
	"github.com/notify-dispatch/internal/infrastructure/dynamo"
	jwtinfra "github.com/notify-dispatch/internal/infrastructure/jwt"
	"github.com/notify-dispatch/internal/transport/http/handler"
	appmiddleware "github.com/notify-dispatch/internal/transport/http/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// Deps holds all dependencies for the router.
type Deps struct {
	TargetRepo       *dynamo.TargetRepo
	TemplateRepo     *dynamo.TemplateRepo
	NotificationRepo *dynamo.NotificationRepo
	SettingsRepo     *dynamo.SettingsRepo
	Resolver         target.Service
	Dispatch         dispatch.Service
	Hub              *feed.Hub
	JWTProvider      *jwtinfra.Provider
}

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	var authMw func(http.Handler) http.Handler
	if deps.JWTProvider != nil {
		authMw = appmiddleware.Auth(deps.JWTProvider)
	} else {
		authMw = func(next http.Handler) http.Handler { return next }
	}
	adminMw := appmiddleware.RequireAuthority(domain.AuthoritySysAdmin, domain.AuthorityTenantAdmin)

	// 10 requests/second with a burst of 20 on notification submission.
	submitRL := appmiddleware.NewRateLimiter(rate.Limit(10), 20)

	healthH := handler.NewHealthHandler()
	requestH := handler.NewRequestHandler(deps.Dispatch)
	targetH := handler.NewTargetHandler(deps.TargetRepo, deps.Resolver)
	templateH := handler.NewTemplateHandler(deps.TemplateRepo)
	notifH := handler.NewNotificationHandler(deps.NotificationRepo, deps.Hub)
	settingsH := handler.NewSettingsHandler(deps.SettingsRepo)
	feedH := handler.NewFeedHandler(deps.Hub, cfg.FeedPageSize)

	r.Route("/v1", func(r chi.Router) {
		// Public routes (no auth)
		r.Get("/health-check/{action}", healthH.Ping)
		r.Handle("/metrics", promhttp.Handler())

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			// Any authenticated user: their own notifications and preferences.
			r.Get("/notifications", notifH.List)
			r.Get("/notifications/unread", notifH.ListUnread)
			r.Get("/notifications/unread/count", notifH.UnreadCount)
			r.Get("/notifications/feed", feedH.Subscribe)
			r.Put("/notifications/read-all", notifH.MarkAllAsRead)
			r.Put("/notifications/{id}/read", notifH.MarkAsRead)
			r.Get("/notification/settings/user", settingsH.GetUserSettings)
			r.Put("/notification/settings/user", settingsH.PutUserSettings)

			// Admin-only: requests, targets, templates, tenant settings.
			r.Group(func(r chi.Router) {
				r.Use(adminMw)

				r.With(submitRL.Limit).Post("/notification/requests", requestH.Submit)
				r.Post("/notification/requests/preview", requestH.Preview)
				r.Get("/notification/requests", requestH.List)
				r.Get("/notification/requests/{id}/stats", requestH.GetStats)
				r.Delete("/notification/requests/{id}", requestH.Delete)
				r.Delete("/notification/requests", requestH.DeleteTenant)

				r.Post("/notification/targets", targetH.Create)
				r.Get("/notification/targets", targetH.List)
				r.Get("/notification/targets/{id}", targetH.Get)
				r.Get("/notification/targets/{id}/recipients", targetH.Recipients)
				r.Delete("/notification/targets/{id}", targetH.Delete)

				r.Post("/notification/templates", templateH.Create)
				r.Get("/notification/templates", templateH.List)
				r.Get("/notification/templates/{id}", templateH.Get)
				r.Put("/notification/templates/{id}", templateH.Update)
				r.Delete("/notification/templates/{id}", templateH.Delete)

				r.Get("/notification/settings/tenant", settingsH.GetTenantSettings)
				r.Put("/notification/settings/tenant", settingsH.PutTenantSettings)
			})
		})
	})

	return r
}
