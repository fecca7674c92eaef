// Package telegram はTelegram Bot APIの薄いクライアントを提供する。
// メッセージ送信とコマンド登録のみを扱い、会話ロジックは持たない。
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"
)

// defaultEndpoint はTelegram Bot APIのベースURL。
const defaultEndpoint = "https://api.telegram.org"

// Metrics は送信結果の計測フック。
type Metrics interface {
	RecordTelegramSend(result string)
}

type noopMetrics struct{}

func (noopMetrics) RecordTelegramSend(string) {}

// Client はTelegram Bot APIのクライアント。
// 全チャット合算の送信レートリミッタを内蔵する。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	limiter    *rate.Limiter
	metrics    Metrics
	token      string
	endpoint   string // テスト用にエンドポイントを差し替え可能
}

// NewClient はClient の新しいインスタンスを生成する。
// sendRate は1秒あたりの送信上限（Telegramの全体上限は約30件/秒）。
func NewClient(token string, sendRate int, httpClient *http.Client, logger *slog.Logger) *Client {
	if sendRate <= 0 {
		sendRate = 25
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		limiter:    rate.NewLimiter(rate.Limit(sendRate), sendRate),
		metrics:    noopMetrics{},
		token:      token,
		endpoint:   defaultEndpoint,
	}
}

// SetMetrics は送信計測フックを設定する。
func (c *Client) SetMetrics(m Metrics) {
	if m != nil {
		c.metrics = m
	}
}

// apiResponse はBot APIの共通レスポンス外枠。
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Description string          `json:"description,omitempty"`
}

// SendMessage はHTMLモードでメッセージを送信する。
// レートリミッタで送信タイミングを平準化する。
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, keyboard *InlineKeyboardMarkup) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("送信レート待機が中断されました: %w", err)
	}

	req := SendMessageRequest{
		ChatID:      chatID,
		Text:        text,
		ParseMode:   "HTML",
		ReplyMarkup: keyboard,
	}
	if err := c.call(ctx, "sendMessage", req); err != nil {
		c.metrics.RecordTelegramSend("error")
		c.logger.Error("Telegramメッセージの送信に失敗しました",
			slog.Int64("chat_id", chatID),
			slog.String("error", err.Error()),
		)
		return err
	}
	c.metrics.RecordTelegramSend("ok")
	return nil
}

// AnswerCallbackQuery はインラインボタン押下の読み込み表示を解除する。
func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackID string) error {
	body := map[string]string{"callback_query_id": callbackID}
	return c.call(ctx, "answerCallbackQuery", body)
}

// SetMyCommands はボットのコマンドメニューを登録する。
func (c *Client) SetMyCommands(ctx context.Context, commands []BotCommand) error {
	body := map[string]any{"commands": commands}
	return c.call(ctx, "setMyCommands", body)
}

// call はBot APIの1メソッドをJSON POSTで呼び出す。
func (c *Client) call(ctx context.Context, method string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("リクエストボディのエンコードに失敗しました: %w", err)
	}

	reqURL := fmt.Sprintf("%s/bot%s/%s", c.endpoint, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram API %s の呼び出しに失敗しました: %w", method, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return fmt.Errorf("telegram API %s のレスポンスのパースに失敗しました: %w", method, err)
	}
	if !apiResp.OK {
		return fmt.Errorf("telegram API %s がエラーを返しました: %d %s", method, apiResp.ErrorCode, apiResp.Description)
	}
	return nil
}
