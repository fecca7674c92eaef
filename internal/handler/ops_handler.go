package handler

import (
	"encoding/json"
	"net/http"

	"github.com/assistchatbot-debug/DrAive/internal/cache"
)

// CacheStatsProvider はキャッシュ統計の取得インターフェース。
type CacheStatsProvider interface {
	CacheStats() cache.Stats
}

// OpsHandler はヘルスチェックと統計の運用エンドポイントを提供する。
type OpsHandler struct {
	stats     CacheStatsProvider
	storeKind string // "postgres" または "memory"
}

// NewOpsHandler はOpsHandlerの新しいインスタンスを生成する。
func NewOpsHandler(stats CacheStatsProvider, storeKind string) *OpsHandler {
	return &OpsHandler{stats: stats, storeKind: storeKind}
}

// healthResponse は/healthのレスポンスボディ。
type healthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
}

// Health はプロセスの生存確認を返す。
func (h *OpsHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(healthResponse{
		Status: "ok",
		Store:  h.storeKind,
	})
}

// CacheStats はキャッシュ層のヒット・ミス統計を返す。
func (h *OpsHandler) CacheStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.stats.CacheStats())
}
