// Package app はコマンドの解析と依存関係のワイヤリングを行う。
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/gamerooms/internal/auth"
	"github.com/hitoshi/gamerooms/internal/config"
	"github.com/hitoshi/gamerooms/internal/database"
	"github.com/hitoshi/gamerooms/internal/handler"
	"github.com/hitoshi/gamerooms/internal/logger"
	"github.com/hitoshi/gamerooms/internal/metrics"
	"github.com/hitoshi/gamerooms/internal/middleware"
	"github.com/hitoshi/gamerooms/internal/moderation"
	"github.com/hitoshi/gamerooms/internal/notification"
	"github.com/hitoshi/gamerooms/internal/realtime"
	"github.com/hitoshi/gamerooms/internal/repository"
	"github.com/hitoshi/gamerooms/internal/room"
	"github.com/hitoshi/gamerooms/internal/security"
	"github.com/hitoshi/gamerooms/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再初期化
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandPurgeLogs:
		return runPurgeLogs(cfg)
	default:
		return runServe(cfg)
	}
}

// services はserveとpurge-logsで共有するドメインサービス群。
type services struct {
	auth         *auth.Service
	room         *room.Service
	moderation   *moderation.Service
	notification *notification.Service
	metrics      *metrics.Collector
	registry     *prometheus.Registry
	redis        *redis.Client
}

// close は外部接続を閉じる。
func (s *services) close() {
	if s.redis != nil {
		s.redis.Close()
	}
}

// buildServices はリポジトリ、リアルタイム通知、メトリクスを組み立ててドメインサービスを生成する。
func buildServices(cfg *config.Config, db *sql.DB) (*services, error) {
	// 1. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 2. リポジトリとトランザクション
	userRepo := repository.NewPostgresUserRepo(db)
	roomRepo := repository.NewPostgresRoomRepo(db)
	logRepo := repository.NewPostgresModerationLogRepo(db)
	notificationRepo := repository.NewPostgresNotificationRepo(db)

	txManager := repository.NewPostgresTxManager(db, cfg.TxMaxAttempts)
	txManager.OnRetry = func(err error) {
		collector.RecordTxRetry()
		slog.Debug("retrying transaction", slog.String("error", err.Error()))
	}

	// 3. リアルタイム通知（REDIS_URL未設定時は送信しない）
	var (
		pusher      realtime.Pusher = realtime.NopPusher{}
		redisClient *redis.Client
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		redisClient = redis.NewClient(opts)

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			// 通知はベストエフォートのため起動は継続する
			slog.Warn("redis is unreachable; realtime push will fail until it recovers",
				slog.String("error", err.Error()),
			)
		}
		pusher = realtime.NewRedisPusher(redisClient, cfg.RealtimeChannelPrefix)
	} else {
		slog.Info("REDIS_URL is not set; realtime push disabled")
	}
	dispatcher := realtime.NewDispatcher(pusher, collector, slog.Default())

	// 4. ドメインサービス
	sanitizer := security.NewTextSanitizer()
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)

	return &services{
		auth: auth.NewService(userRepo, tokens, cfg.BcryptCost),
		room: room.NewService(userRepo, roomRepo, notificationRepo, txManager,
			dispatcher, sanitizer, collector),
		moderation: moderation.NewService(userRepo, roomRepo, logRepo, notificationRepo, txManager,
			dispatcher, sanitizer, collector),
		notification: notification.NewService(notificationRepo, roomRepo),
		metrics:      collector,
		registry:     registry,
		redis:        redisClient,
	}, nil
}

// openDB はDB接続を開き、疎通を確認する。
func openDB(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")
	return db, nil
}

// newRouter はサービス群からHTTPルーターを構築する。
func newRouter(cfg *config.Config, db *sql.DB, svc *services, rl *middleware.RateLimiter) http.Handler {
	return handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		Metrics:           svc.metrics,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rl,
		TokenParser:       svc.auth,

		HealthChecker:  db,
		MetricsHandler: metrics.Handler(svc.registry),

		AuthService:         svc.auth,
		RoomService:         svc.room,
		ModerationService:   svc.moderation,
		NotificationService: svc.notification,
	})
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	svc, err := buildServices(cfg, db)
	if err != nil {
		return err
	}
	defer svc.close()

	rateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig(cfg.RateLimitPerMinute))
	defer rateLimiter.Stop()

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      newRouter(cfg, db, svc, rateLimiter),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-serveErr:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runPurgeLogs は保持期間を超過したモデレーションログを削除する。
// 定期実行はせず、管理者が明示的に呼び出す。
func runPurgeLogs(cfg *config.Config) error {
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	svc, err := buildServices(cfg, db)
	if err != nil {
		return err
	}
	defer svc.close()

	job := cleanup.NewCleanupJob(svc.moderation, slog.Default())
	job.RetentionDays = cfg.ModerationRetentionDays

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if _, err := job.Run(ctx); err != nil {
		return fmt.Errorf("purge-logs failed: %w", err)
	}
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	endpoint := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(endpoint)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
// 解析できない場合は全体を伏せる。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
