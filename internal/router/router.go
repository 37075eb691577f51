package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/LuisNMHN/NetmarketHN-sub000/internal/auth"
	"github.com/LuisNMHN/NetmarketHN-sub000/internal/handler"
	"github.com/LuisNMHN/NetmarketHN-sub000/internal/handler/ws"
	"github.com/LuisNMHN/NetmarketHN-sub000/internal/observability"
)

func SetupRoutes(
	kycHandler *handler.KYCHandler,
	chatHandler *handler.ChatHandler,
	wsHandler *ws.Handler,
	metrics *observability.Metrics,
	rdb *redis.Client,
	jwtSecret string,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggerMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus scrape endpoint, off the authenticated tree.
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.RequireAuth(jwtSecret))
		r.Use(auth.RateLimiter(rdb, 120, time.Minute, 5*time.Minute, "rl:api"))

		// Realtime socket; token arrives as ?token= because browsers
		// cannot set headers on websocket upgrades.
		r.Get("/ws", wsHandler.Serve)

		r.Route("/kyc", func(r chi.Router) {
			r.Get("/overview", kycHandler.Overview)
			r.Get("/status", kycHandler.Status)
			r.Get("/submission", kycHandler.Submission)
			r.Post("/draft", kycHandler.SaveDraft)
			r.Post("/upload", kycHandler.UploadDocument)
			r.Delete("/documents/{docType}", kycHandler.RemoveDocument)
			r.Post("/declaration", kycHandler.AcceptDeclaration)
			r.Get("/wizard", kycHandler.WizardState)
			r.Post("/wizard", kycHandler.Navigate)
			r.Post("/submit", kycHandler.Submit)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireRole("admin", "compliance"))
				r.Post("/review/{kycID}", kycHandler.Review)
				r.Post("/revert/{kycID}", kycHandler.Revert)
				r.Get("/audit/{kycID}", kycHandler.AuditLogs)
			})
		})

		r.Route("/chat", func(r chi.Router) {
			r.Post("/threads", chatHandler.OpenThread)
			r.Get("/threads", chatHandler.ListThreads)

			r.Route("/threads/{threadID}", func(r chi.Router) {
				r.Get("/messages", chatHandler.ListMessages)
				r.Post("/messages", chatHandler.SendMessage)
				r.Delete("/messages/{messageID}", chatHandler.DeleteMessage)
				r.Post("/read", chatHandler.MarkRead)
				r.Get("/typing", chatHandler.Typing)
				r.Post("/support", chatHandler.RequestSupport)
				r.Post("/close", chatHandler.CloseThread)

				// Workflow actions are emitted by order/escrow services,
				// not end users.
				r.With(auth.RequireRole("admin", "service")).
					Post("/actions", chatHandler.EmitAction)
			})
		})
	})

	return r
}

// LoggerMiddleware logs HTTP requests.
func LoggerMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote_addr", r.RemoteAddr))
		})
	}
}
