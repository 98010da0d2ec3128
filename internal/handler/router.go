package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/gamerooms/internal/metrics"
	"github.com/hitoshi/gamerooms/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	TokenParser       middleware.TokenParser

	// 運用
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// サービス
	AuthService         AuthServiceInterface
	RoomService         RoomServiceInterface
	ModerationService   ModerationServiceInterface
	NotificationService NotificationServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → RealIP → Logging → Recovery → SecurityHeaders → CORS
//	  /api/auth/*: RateLimit(Auth, IP単位)
//	  その他の /api/*: Auth → RateLimit(General, ユーザー単位)
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.NewLoggingMiddleware(logger, deps.Metrics))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService)
	roomHandler := NewRoomHandler(deps.RoomService)
	modHandler := NewModerationHandler(deps.ModerationService)
	notifHandler := NewNotificationHandler(deps.NotificationService)

	// --- 認証不要のルート ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route("/api/auth", func(r chi.Router) {
		r.Use(deps.RateLimiter.AuthMiddleware())
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
	})

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.TokenParser))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/api/rooms", func(r chi.Router) {
			r.Get("/", roomHandler.ListAvailable)
			r.Post("/", roomHandler.Create)
			r.Get("/mine", roomHandler.ListMine)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", roomHandler.Get)
				r.Post("/join", roomHandler.Join)
				r.Post("/leave", roomHandler.Leave)
				r.Post("/kick/{userID}", roomHandler.Kick)
				r.Post("/transfer-ownership/{userID}", roomHandler.TransferOwnership)
				r.Put("/members/{userID}/role", roomHandler.UpdateRole)
				r.Post("/start", roomHandler.Start)
				r.Post("/end", roomHandler.End)
			})
		})

		r.Route("/api/moderation", func(r chi.Router) {
			r.Route("/rooms/{id}", func(r chi.Router) {
				r.Post("/warn", modHandler.Warn)
				r.Post("/mute", modHandler.Mute)
				r.Post("/kick", modHandler.Kick)
				r.Get("/activity", modHandler.RoomActivity)
			})
			r.Get("/users/{id}/activity", modHandler.UserActivity)
		})

		r.Route("/api/notifications", func(r chi.Router) {
			r.Get("/", notifHandler.List)
			r.Get("/unread", notifHandler.ListUnread)
			r.Get("/count", notifHandler.Count)
			r.Get("/rooms/{id}", notifHandler.ListRoom)
			r.Post("/{id}/read", notifHandler.MarkAsRead)
		})
	})

	return r
}
