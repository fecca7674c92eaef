package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/assistchatbot-debug/DrAive/internal/metrics"
	"github.com/assistchatbot-debug/DrAive/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Bot           UpdateHandler
	CacheStats    CacheStatsProvider
	StoreKind     string
	WebhookSecret string
	Gatherer      prometheus.Gatherer
	Logger        *slog.Logger
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RecoveryMiddleware → LoggingMiddleware
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))

	webhookHandler := NewWebhookHandler(deps.Bot, deps.WebhookSecret, deps.Logger)
	opsHandler := NewOpsHandler(deps.CacheStats, deps.StoreKind)

	// Telegram Webhook
	r.Post("/telegram/webhook", webhookHandler.Receive)

	// 運用系エンドポイント
	r.Get("/health", opsHandler.Health)
	r.Get("/stats/cache", opsHandler.CacheStats)
	r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))

	return r
}
