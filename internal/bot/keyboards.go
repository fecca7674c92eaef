package bot

import "github.com/assistchatbot-debug/DrAive/internal/telegram"

func button(text, data string) telegram.InlineKeyboardButton {
	return telegram.InlineKeyboardButton{Text: text, CallbackData: data}
}

// mainMenuKeyboard はメインメニューのインラインキーボードを返す。
func mainMenuKeyboard(lang string) *telegram.InlineKeyboardMarkup {
	if lang == "en" {
		return &telegram.InlineKeyboardMarkup{
			InlineKeyboard: [][]telegram.InlineKeyboardButton{
				{button("💡 Business Idea Analysis", "menu_analysis")},
				{button("📅 Planner", "menu_planner")},
				{button("🎯 Goal Management (in development)", "menu_admin")},
				{button("👥 Organizational Structure (in development)", "menu_org")},
				{button("💬 Communications (in development)", "menu_comms")},
				{button("📋 Work Documents (in development)", "menu_zrs")},
				{button("📚 Knowledge Base (in development)", "menu_training")},
				{button("⚙️ Настройки / Settings", "menu_settings")},
			},
		}
	}
	return &telegram.InlineKeyboardMarkup{
		InlineKeyboard: [][]telegram.InlineKeyboardButton{
			{button("💡 Анализ бизнес-идеи", "menu_analysis")},
			{button("📅 Планировщик", "menu_planner")},
			{button("🎯 Управление целями (в разработке)", "menu_admin")},
			{button("👥 Организационная структура (в разработке)", "menu_org")},
			{button("💬 Коммуникации (в разработке)", "menu_comms")},
			{button("📋 Рабочие документы (в разработке)", "menu_zrs")},
			{button("📚 База знаний (в разработке)", "menu_training")},
			{button("⚙️ Настройки / Settings", "menu_settings")},
		},
	}
}

// backButtonKeyboard はメインメニューへ戻るボタンだけのキーボードを返す。
func backButtonKeyboard(lang string) *telegram.InlineKeyboardMarkup {
	text := "◀️ Главное меню"
	if lang == "en" {
		text = "◀️ Main Menu"
	}
	return &telegram.InlineKeyboardMarkup{
		InlineKeyboard: [][]telegram.InlineKeyboardButton{
			{button(text, "back_to_menu")},
		},
	}
}

// languageSelectorKeyboard は言語選択キーボードを返す。
func languageSelectorKeyboard() *telegram.InlineKeyboardMarkup {
	return &telegram.InlineKeyboardMarkup{
		InlineKeyboard: [][]telegram.InlineKeyboardButton{
			{button("🇷🇺 Русский", "lang_ru")},
			{button("🇬🇧 English", "lang_en")},
			{button("◀️ Назад / Back", "back_to_menu")},
		},
	}
}

// registrationKeyboard は未登録ユーザー向けの登録開始キーボードを返す。
func registrationKeyboard(lang string) *telegram.InlineKeyboardMarkup {
	if lang == "en" {
		return &telegram.InlineKeyboardMarkup{
			InlineKeyboard: [][]telegram.InlineKeyboardButton{
				{button("🚀 Get Started", "create_company")},
				{button("📩 I have an invitation", "have_invitation")},
			},
		}
	}
	return &telegram.InlineKeyboardMarkup{
		InlineKeyboard: [][]telegram.InlineKeyboardButton{
			{button("🚀 Начать работу", "create_company")},
			{button("📩 У меня есть приглашение", "have_invitation")},
		},
	}
}
