// Package app はアプリケーションの初期化と起動を行う。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/assistchatbot-debug/DrAive/internal/bot"
	"github.com/assistchatbot-debug/DrAive/internal/cache"
	"github.com/assistchatbot-debug/DrAive/internal/company"
	"github.com/assistchatbot-debug/DrAive/internal/config"
	"github.com/assistchatbot-debug/DrAive/internal/database"
	"github.com/assistchatbot-debug/DrAive/internal/handler"
	"github.com/assistchatbot-debug/DrAive/internal/logger"
	"github.com/assistchatbot-debug/DrAive/internal/metrics"
	"github.com/assistchatbot-debug/DrAive/internal/repository"
	"github.com/assistchatbot-debug/DrAive/internal/session"
	"github.com/assistchatbot-debug/DrAive/internal/telegram"
	"github.com/assistchatbot-debug/DrAive/internal/worker/sweeper"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

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
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// storage はserveモードの永続層一式。
type storage struct {
	sessionRepo  repository.SessionRepository
	userRepo     repository.UserRepository
	companyRepo  repository.CompanyRepository
	positionRepo repository.PositionRepository
	kind         string // "postgres" または "memory"
	close        func()
}

// openStorage はDATABASE_URLの有無に応じて永続層を初期化する。
// 未設定の場合はインメモリ実装にフォールバックする（開発・デモ用途）。
func openStorage(cfg *config.Config) (*storage, error) {
	if cfg.DatabaseURL == "" {
		slog.Warn("DATABASE_URLが未設定のためインメモリストアで起動します。再起動でセッションは失われます")
		return &storage{
			sessionRepo:  repository.NewMemorySessionRepo(),
			userRepo:     repository.NewMemoryUserRepo(),
			companyRepo:  repository.NewMemoryCompanyRepo(),
			positionRepo: repository.NewMemoryPositionRepo(),
			kind:         "memory",
			close:        func() {},
		}, nil
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("database connection established")

	return &storage{
		sessionRepo:  repository.NewPostgresSessionRepo(db),
		userRepo:     repository.NewPostgresUserRepo(db),
		companyRepo:  repository.NewPostgresCompanyRepo(db),
		positionRepo: repository.NewPostgresPositionRepo(db),
		kind:         "postgres",
		close:        func() { db.Close() },
	}, nil
}

// openCache はREDIS_URLの有無と設定に応じてキャッシュ層を初期化する。
// 接続失敗はエラーにせず、キャッシュ無効のまま起動を継続する。
// 返り値がnilでない場合、呼び出し側がシャットダウン時にCloseする。
func openCache(ctx context.Context, cfg *config.Config) *cache.SessionCache {
	if cfg.RedisURL == "" || !cfg.EnableRedisCache {
		slog.Info("Redisキャッシュは無効です。永続ストア直行で動作します")
		return nil
	}

	c, err := cache.New(cfg.RedisURL, cfg.CacheOpTimeout, slog.Default())
	if err != nil {
		slog.Warn("Redis URLが不正なためキャッシュを無効化します",
			slog.String("error", err.Error()))
		return nil
	}
	// 接続失敗時もcは切断状態の安全なno-opとして動作する
	c.Connect(ctx)
	return c
}

// runServe はボットサーバーモードで起動する。
// 永続層・キャッシュ層・セッションマネージャー・ボットをワイヤリングし、
// HTTPサーバー（Webhook受け口と運用エンドポイント）を起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. 永続層
	store, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer store.close()

	// 2. キャッシュ層（型付きnilをCacheインターフェースに入れない）
	var sessionCache session.Cache
	if sc := openCache(ctx, cfg); sc != nil {
		sessionCache = sc
		defer sc.Close()
	}

	// 3. メトリクス
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. セッションマネージャー
	sessions := session.NewManager(store.sessionRepo, sessionCache, collector, slog.Default(), session.Config{
		TTL:          cfg.SessionTTL,
		MaxDataSize:  cfg.MaxSessionDataSize,
		StoreTimeout: cfg.DBCommandTimeout,
	})

	// 5. ドメインサービスとボット
	companyService := company.NewService(
		store.companyRepo, store.userRepo, store.positionRepo, slog.Default(),
	)

	tgClient := telegram.NewClient(
		cfg.TelegramBotToken, cfg.TelegramSendRate,
		&http.Client{Timeout: 30 * time.Second},
		slog.Default(),
	)
	tgClient.SetMetrics(collector)

	chatBot := bot.New(
		sessions, companyService, store.userRepo, tgClient,
		cfg.DefaultLanguage, slog.Default(),
	)

	if err := chatBot.RegisterCommands(ctx); err != nil {
		slog.Warn("コマンドメニューの登録に失敗しました", slog.String("error", err.Error()))
	}

	// 6. インメモリストアの場合は掃引ジョブを同一プロセスで動かす
	if store.kind == "memory" {
		job := sweeper.NewJob(sessions, slog.Default())
		go job.Start(ctx, cfg.SweepInterval)
	}

	// 7. ルーターの構築
	router := handler.NewRouter(&handler.RouterDeps{
		Bot:           chatBot,
		CacheStats:    sessions,
		StoreKind:     store.kind,
		WebhookSecret: cfg.WebhookSecret,
		Gatherer:      registry,
		Logger:        slog.Default(),
	})

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("bot server starting",
			slog.String("addr", server.Addr),
			slog.String("store", store.kind),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down bot server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("bot server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 期限切れセッションの掃引ジョブを定期実行する。
// 掃引対象は永続ストアのみのため、DATABASE_URLが必須。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("worker mode requires DATABASE_URL")
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("database connection established (worker)")

	sessionRepo := repository.NewPostgresSessionRepo(db)
	sessions := session.NewManager(sessionRepo, nil, nil, slog.Default(), session.Config{
		TTL:          cfg.SessionTTL,
		MaxDataSize:  cfg.MaxSessionDataSize,
		StoreTimeout: cfg.DBCommandTimeout,
	})
	job := sweeper.NewJob(sessions, slog.Default())

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("sweep_interval", cfg.SweepInterval),
	)

	// 掃引ジョブをメインgoroutineで実行（ブロッキング）
	job.Start(ctx, cfg.SweepInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("migrate requires DATABASE_URL")
	}

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
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
