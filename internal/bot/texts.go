// Package bot はTelegram更新の振り分けと会話フローを実装する。
// セッション状態に基づいてコマンド、コールバック、自由入力を処理する。
package bot

// texts は多言語テキストリソース。言語コード→キー→テキスト。
var texts = map[string]map[string]string{
	"ru": {
		"welcome": "👋 Добро пожаловать в AI Strategy Advisor!",
		"intro": "🤖 Я ваш специализированный ИИ-ассистент для бизнеса!\n\n" +
			"Помогу:\n" +
			"✅ Проанализировать идею и построить бизнес-план\n" +
			"✅ Рассчитать финансы и окупаемость\n" +
			"✅ Составить организационную структуру\n" +
			"✅ Автоматизировать рутинные задачи\n" +
			"✅ Устранить слабые и усилить сильные стороны\n" +
			"✅ Найти конкурентов и поставщиков",
		"menu_title":    "📋 Что будем делать?",
		"menu_subtitle": "Выберите раздел:",
		"under_dev":     "🚧 Раздел в разработке",
		"back_menu":     "◀️ Главное меню",

		"company_welcome": "🏢 Создаём вашу компанию\n\n" +
			"Вы становитесь владельцем компании и можете:\n" +
			"✅ Анализировать бизнес-идеи с помощью ИИ\n" +
			"✅ Получать готовые бизнес-планы с финансами\n" +
			"✅ Приглашать сотрудников и делегировать задачи\n" +
			"✅ Автоматизировать рутинные задачи\n\n" +
			"📝 Введите название вашей компании:",
		"company_created": "✅ Компания создана!",
		"company_next_steps": "🎯 Что дальше?\n\n" +
			"1️⃣ \"Анализ бизнес-идеи\" - получите бизнес-план с финансовой моделью\n" +
			"2️⃣ \"Организационная структура\" - пригласите сотрудников\n" +
			"3️⃣ \"Управление целями\" - стройте стратегию развития\n\n" +
			"👇 Рекомендую начать с \"Анализа бизнес-идеи\":",
		"invite_prompt": "📩 Введите код приглашения или отправьте ссылку-приглашение:",

		"choose_lang": "🌐 Выберите язык:",
		"lang_set":    "✅ Язык установлен",

		"error_generic":    "❌ Произошла ошибка. Попробуйте позже.",
		"error_no_company": "❌ Компания не найдена",
		"error_empty_name": "❌ Название компании не может быть пустым. Введите название:",
	},

	"en": {
		"welcome": "👋 Welcome to AI Strategy Advisor!",
		"intro": "🤖 I'm your specialized AI business assistant!\n\n" +
			"I can help you:\n" +
			"✅ Analyze your idea and build a business plan\n" +
			"✅ Calculate finances and ROI\n" +
			"✅ Create organizational structure\n" +
			"✅ Automate routine tasks\n" +
			"✅ Eliminate weaknesses and strengthen your business\n" +
			"✅ Find competitors and suppliers",
		"menu_title":    "📋 What would you like to do?",
		"menu_subtitle": "Choose a section:",
		"under_dev":     "🚧 Section under development",
		"back_menu":     "◀️ Main Menu",

		"company_welcome": "🏢 Creating your company\n\n" +
			"You become the company owner and can:\n" +
			"✅ Analyze business ideas with AI\n" +
			"✅ Get ready business plans with finances\n" +
			"✅ Invite employees and delegate tasks\n" +
			"✅ Automate routine tasks\n\n" +
			"📝 Enter your company name:",
		"company_created": "✅ Company created!",
		"company_next_steps": "🎯 What's next?\n\n" +
			"1️⃣ \"Business Idea Analysis\" - get a business plan with financial model\n" +
			"2️⃣ \"Organizational Structure\" - invite employees\n" +
			"3️⃣ \"Goal Management\" - build development strategy\n\n" +
			"👇 I recommend starting with \"Business Idea Analysis\":",
		"invite_prompt": "📩 Enter invitation code or send invitation link:",

		"choose_lang": "🌐 Choose your language:",
		"lang_set":    "✅ Language set",

		"error_generic":    "❌ An error occurred. Please try again later.",
		"error_no_company": "❌ Company not found",
		"error_empty_name": "❌ Company name cannot be empty. Enter a name:",
	},
}

// getText は言語とキーで表示テキストを返す。
// 未知の言語はロシア語へ、未知のキーはキー自身へフォールバックする。
func getText(lang, key string) string {
	m, ok := texts[lang]
	if !ok {
		m = texts["ru"]
	}
	if t, ok := m[key]; ok {
		return t
	}
	return key
}
