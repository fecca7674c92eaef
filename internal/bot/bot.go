package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/assistchatbot-debug/DrAive/internal/company"
	"github.com/assistchatbot-debug/DrAive/internal/model"
	"github.com/assistchatbot-debug/DrAive/internal/repository"
	"github.com/assistchatbot-debug/DrAive/internal/session"
	"github.com/assistchatbot-debug/DrAive/internal/telegram"
)

// Sender はメッセージ送信に必要なTelegramクライアントの操作。
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string, keyboard *telegram.InlineKeyboardMarkup) error
	AnswerCallbackQuery(ctx context.Context, callbackID string) error
	SetMyCommands(ctx context.Context, commands []telegram.BotCommand) error
}

// Bot はTelegram更新の振り分けを行う。
// 受信した更新ごとにセッションを取得し、状態に応じたハンドラーへ渡す。
type Bot struct {
	sessions    *session.Manager
	companies   *company.Service
	userRepo    repository.UserRepository
	client      Sender
	logger      *slog.Logger
	sanitizer   *bluemonday.Policy
	defaultLang string
}

// New はBotの新しいインスタンスを生成する。
func New(
	sessions *session.Manager,
	companies *company.Service,
	userRepo repository.UserRepository,
	client Sender,
	defaultLang string,
	logger *slog.Logger,
) *Bot {
	if defaultLang == "" {
		defaultLang = "ru"
	}
	return &Bot{
		sessions:    sessions,
		companies:   companies,
		userRepo:    userRepo,
		client:      client,
		logger:      logger,
		sanitizer:   bluemonday.StrictPolicy(),
		defaultLang: defaultLang,
	}
}

// RegisterCommands はボットのコマンドメニューをTelegramに登録する。
func (b *Bot) RegisterCommands(ctx context.Context) error {
	return b.client.SetMyCommands(ctx, []telegram.BotCommand{
		{Command: "start", Description: "🏠 Главное меню"},
		{Command: "menu", Description: "📋 Показать меню"},
	})
}

// HandleUpdate は受信した更新を種別ごとのハンドラーへ振り分ける。
// ハンドラー内のエラーはログに記録し、利用者には汎用エラーを返す。
func (b *Bot) HandleUpdate(ctx context.Context, update *telegram.Update) {
	switch {
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	default:
		b.logger.Debug("未対応の更新種別のためスキップします",
			slog.Int64("update_id", update.UpdateID))
	}
}

// userKeyOf は更新の送信者からセッションキーを導出する。
func userKeyOf(from *telegram.TgUser, chatID int64) string {
	if from != nil {
		return strconv.FormatInt(from.ID, 10)
	}
	return strconv.FormatInt(chatID, 10)
}

// langOf はセッションから選択言語を取り出す。
func (b *Bot) langOf(sess *model.Session) string {
	if v, ok := sess.Data["lang"].(string); ok && v != "" {
		return v
	}
	return b.defaultLang
}

func (b *Bot) handleMessage(ctx context.Context, msg *telegram.Message) {
	userKey := userKeyOf(msg.From, msg.Chat.ID)
	sess, err := b.sessions.GetOrCreate(ctx, userKey)
	if err != nil {
		b.logger.Error("セッションの取得に失敗しました",
			slog.String("user_key", userKey),
			slog.String("error", err.Error()),
		)
		b.send(ctx, msg.Chat.ID, getText(b.defaultLang, "error_generic"), nil)
		return
	}
	lang := b.langOf(sess)

	text := strings.TrimSpace(msg.Text)
	switch {
	case strings.HasPrefix(text, "/start"):
		b.handleStart(ctx, msg, sess, lang)
	case text == "/menu":
		b.showMenu(ctx, msg.Chat.ID, userKey, lang)
	default:
		b.handleStateInput(ctx, msg, sess, lang)
	}
}

// handleStart は/startコマンドを処理する。
// 登録済みユーザーにはメインメニュー、未登録ユーザーには登録導線を表示する。
func (b *Bot) handleStart(ctx context.Context, msg *telegram.Message, sess *model.Session, lang string) {
	userKey := sess.UserKey

	user, err := b.userRepo.FindByUserKey(ctx, userKey)
	if err != nil {
		b.logger.Error("ユーザーの検索に失敗しました",
			slog.String("user_key", userKey),
			slog.String("error", err.Error()),
		)
		b.send(ctx, msg.Chat.ID, getText(lang, "error_generic"), nil)
		return
	}

	state := model.StateMenu
	if user != nil {
		upd := &model.SessionUpdate{State: &state, UserID: &user.ID, CompanyID: user.CompanyID}
		if err := b.sessions.Update(ctx, userKey, upd); err != nil {
			b.logger.Error("セッションの更新に失敗しました", slog.String("error", err.Error()))
		}
		text := fmt.Sprintf("%s\n\n%s\n%s",
			getText(lang, "welcome"), getText(lang, "menu_title"), getText(lang, "menu_subtitle"))
		b.send(ctx, msg.Chat.ID, text, mainMenuKeyboard(lang))
		return
	}

	if err := b.sessions.Update(ctx, userKey, &model.SessionUpdate{State: &state}); err != nil {
		b.logger.Error("セッションの更新に失敗しました", slog.String("error", err.Error()))
	}
	text := fmt.Sprintf("%s\n\n%s", getText(lang, "welcome"), getText(lang, "intro"))
	b.send(ctx, msg.Chat.ID, text, registrationKeyboard(lang))
}

// handleStateInput は自由入力テキストをセッション状態に応じて処理する。
func (b *Bot) handleStateInput(ctx context.Context, msg *telegram.Message, sess *model.Session, lang string) {
	switch sess.State {
	case model.StateCompanyRegistration:
		b.processCompanyName(ctx, msg, sess, lang)
	case model.StateAwaitingInviteCode:
		// 招待コードの検証は未実装。メニューへ戻す。
		b.send(ctx, msg.Chat.ID, getText(lang, "under_dev"), backButtonKeyboard(lang))
	default:
		b.showMenu(ctx, msg.Chat.ID, sess.UserKey, lang)
	}
}

// processCompanyName は会社登録フローの会社名入力を処理する。
// 入力はHTMLタグを除去してから保存する。
func (b *Bot) processCompanyName(ctx context.Context, msg *telegram.Message, sess *model.Session, lang string) {
	name := strings.TrimSpace(b.sanitizer.Sanitize(msg.Text))

	var username, fullName string
	if msg.From != nil {
		username = msg.From.Username
		fullName = strings.TrimSpace(msg.From.FirstName + " " + msg.From.LastName)
	}

	result, err := b.companies.Register(ctx, company.RegistrationInput{
		UserKey:     sess.UserKey,
		CompanyName: name,
		Username:    username,
		FullName:    fullName,
		Language:    lang,
	})
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeEmptyCompanyName {
			b.send(ctx, msg.Chat.ID, getText(lang, "error_empty_name"), nil)
			return
		}
		b.logger.Error("会社登録に失敗しました",
			slog.String("user_key", sess.UserKey),
			slog.String("error", err.Error()),
		)
		b.send(ctx, msg.Chat.ID, getText(lang, "error_generic"), nil)
		return
	}

	state := model.StateMenu
	upd := &model.SessionUpdate{
		State:     &state,
		UserID:    &result.User.ID,
		CompanyID: &result.Company.ID,
	}
	if err := b.sessions.Update(ctx, sess.UserKey, upd); err != nil {
		b.logger.Error("登録後のセッション更新に失敗しました", slog.String("error", err.Error()))
	}

	success := fmt.Sprintf("%s\n\n%s",
		getText(lang, "company_created"), getText(lang, "company_next_steps"))
	b.send(ctx, msg.Chat.ID, success, nil)
	b.sendMenu(ctx, msg.Chat.ID, lang)
}

func (b *Bot) handleCallback(ctx context.Context, cb *telegram.CallbackQuery) {
	// 押下ボタンの読み込み表示を解除する
	if err := b.client.AnswerCallbackQuery(ctx, cb.ID); err != nil {
		b.logger.Warn("コールバック応答に失敗しました", slog.String("error", err.Error()))
	}
	if cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID
	userKey := userKeyOf(&cb.From, chatID)

	sess, err := b.sessions.GetOrCreate(ctx, userKey)
	if err != nil {
		b.logger.Error("セッションの取得に失敗しました",
			slog.String("user_key", userKey),
			slog.String("error", err.Error()),
		)
		b.send(ctx, chatID, getText(b.defaultLang, "error_generic"), nil)
		return
	}
	lang := b.langOf(sess)

	switch {
	case cb.Data == "back_to_menu":
		b.showMenu(ctx, chatID, userKey, lang)

	case cb.Data == "menu_settings":
		b.send(ctx, chatID, getText(lang, "choose_lang"), languageSelectorKeyboard())

	case strings.HasPrefix(cb.Data, "lang_"):
		b.switchLanguage(ctx, chatID, userKey, strings.TrimPrefix(cb.Data, "lang_"))

	case cb.Data == "create_company":
		b.startCompanyRegistration(ctx, chatID, userKey, sess, lang)

	case cb.Data == "have_invitation":
		state := model.StateAwaitingInviteCode
		if err := b.sessions.Update(ctx, userKey, &model.SessionUpdate{State: &state}); err != nil {
			b.logger.Error("セッションの更新に失敗しました", slog.String("error", err.Error()))
		}
		b.send(ctx, chatID, getText(lang, "invite_prompt"), nil)

	case cb.Data == "show_orgchart":
		b.showOrgChart(ctx, chatID, sess, lang)

	case strings.HasPrefix(cb.Data, "menu_"):
		b.send(ctx, chatID, getText(lang, "under_dev"), backButtonKeyboard(lang))

	default:
		b.logger.Debug("未知のコールバックデータです", slog.String("data", cb.Data))
	}
}

// startCompanyRegistration は会社登録フローを開始する。
func (b *Bot) startCompanyRegistration(ctx context.Context, chatID int64, userKey string, sess *model.Session, lang string) {
	state := model.StateCompanyRegistration
	data := make(model.SessionData, len(sess.Data)+1)
	for k, v := range sess.Data {
		data[k] = v
	}
	data["step"] = "company_name"

	upd := &model.SessionUpdate{State: &state, Data: &data}
	if err := b.sessions.Update(ctx, userKey, upd); err != nil {
		b.logger.Error("セッションの更新に失敗しました", slog.String("error", err.Error()))
		b.send(ctx, chatID, getText(lang, "error_generic"), nil)
		return
	}
	b.send(ctx, chatID, getText(lang, "company_welcome"), nil)
}

// switchLanguage は表示言語を切り替えてメニューを再表示する。
func (b *Bot) switchLanguage(ctx context.Context, chatID int64, userKey, newLang string) {
	if newLang != "ru" && newLang != "en" {
		newLang = b.defaultLang
	}
	if err := b.sessions.SetAttribute(ctx, userKey, "lang", newLang); err != nil {
		b.logger.Error("言語設定の保存に失敗しました", slog.String("error", err.Error()))
		b.send(ctx, chatID, getText(newLang, "error_generic"), nil)
		return
	}

	flag := "🇷🇺 Русский"
	if newLang == "en" {
		flag = "🇬🇧 English"
	}
	b.send(ctx, chatID, fmt.Sprintf("%s: %s", getText(newLang, "lang_set"), flag), nil)
	b.sendMenu(ctx, chatID, newLang)
}

// showOrgChart は組織図を表示する。会社未所属の場合はエラーメッセージを返す。
func (b *Bot) showOrgChart(ctx context.Context, chatID int64, sess *model.Session, lang string) {
	if sess.CompanyID == nil {
		b.send(ctx, chatID, getText(lang, "error_no_company"), backButtonKeyboard(lang))
		return
	}
	chart, err := b.companies.OrgChart(ctx, *sess.CompanyID, lang)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeCompanyNotFound {
			b.send(ctx, chatID, getText(lang, "error_no_company"), backButtonKeyboard(lang))
			return
		}
		b.logger.Error("組織図の取得に失敗しました", slog.String("error", err.Error()))
		b.send(ctx, chatID, getText(lang, "error_generic"), nil)
		return
	}
	b.send(ctx, chatID, chart, backButtonKeyboard(lang))
}

// showMenu は状態をMENUへ戻してメインメニューを表示する。
func (b *Bot) showMenu(ctx context.Context, chatID int64, userKey, lang string) {
	state := model.StateMenu
	if err := b.sessions.Update(ctx, userKey, &model.SessionUpdate{State: &state}); err != nil {
		b.logger.Error("セッションの更新に失敗しました", slog.String("error", err.Error()))
	}
	b.sendMenu(ctx, chatID, lang)
}

func (b *Bot) sendMenu(ctx context.Context, chatID int64, lang string) {
	text := fmt.Sprintf("%s\n%s", getText(lang, "menu_title"), getText(lang, "menu_subtitle"))
	b.send(ctx, chatID, text, mainMenuKeyboard(lang))
}

// send は送信エラーをログに落とすだけのヘルパー。
func (b *Bot) send(ctx context.Context, chatID int64, text string, keyboard *telegram.InlineKeyboardMarkup) {
	if err := b.client.SendMessage(ctx, chatID, text, keyboard); err != nil {
		b.logger.Error("メッセージ送信に失敗しました",
			slog.Int64("chat_id", chatID),
			slog.String("error", err.Error()),
		)
	}
}
