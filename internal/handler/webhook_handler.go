// Package handler はHTTPエンドポイントを提供する。
// Telegram Webhookの受け口と運用系エンドポイントを含む。
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/assistchatbot-debug/DrAive/internal/middleware"
	"github.com/assistchatbot-debug/DrAive/internal/model"
	"github.com/assistchatbot-debug/DrAive/internal/telegram"
)

// secretTokenHeader はTelegramがWebhookに付与する検証ヘッダー。
const secretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// UpdateHandler は受信更新を処理するインターフェース。
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update *telegram.Update)
}

// WebhookHandler はTelegram Webhookの受け口。
// 更新を検証・デコードしてボットへ渡す。
type WebhookHandler struct {
	bot         UpdateHandler
	secretToken string // 空の場合は検証しない
	logger      *slog.Logger
}

// NewWebhookHandler はWebhookHandlerの新しいインスタンスを生成する。
func NewWebhookHandler(bot UpdateHandler, secretToken string, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		bot:         bot,
		secretToken: secretToken,
		logger:      logger,
	}
}

// Receive はPOSTされた更新を処理する。
// 秘密トークンが設定されている場合はヘッダーを検証する。
// 処理結果に関わらず200を返し、Telegram側の再送を抑止する。
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	if h.secretToken != "" && r.Header.Get(secretTokenHeader) != h.secretToken {
		h.logger.Warn("Webhookの秘密トークンが一致しません",
			slog.String("remote_addr", r.RemoteAddr))
		middleware.WriteErrorResponse(w, http.StatusForbidden, model.NewWebhookForbiddenError())
		return
	}

	var update telegram.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		h.logger.Warn("Webhookボディのデコードに失敗しました",
			slog.String("error", err.Error()))
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidUpdateError(err))
		return
	}

	h.bot.HandleUpdate(r.Context(), &update)
	w.WriteHeader(http.StatusOK)
}
