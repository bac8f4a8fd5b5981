package biz

import (
	"fmt"

	"github.com/lazysoft/consultant/internal/model"
)

// fallbackLang 缺少翻译时使用的语言。
const fallbackLang = "uk"

// localized 按语言存放的文本。
type localized map[string]string

func (l localized) get(lang string) string {
	if s, ok := l[lang]; ok {
		return s
	}
	return l[fallbackLang]
}

var languageNames = localized{
	"uk": "українська",
	"en": "English",
	"pl": "polski",
}

var personaIntros = localized{
	"uk": "Вітаю! Я %s, IT-консультантка компанії %s.",
	"en": "Hi! I'm %s, an IT consultant at %s.",
	"pl": "Dzień dobry! Jestem %s, konsultantka IT w firmie %s.",
}

func personaIntro(lang, name, company string) string {
	return fmt.Sprintf(personaIntros.get(lang), name, company)
}

var welcomeTexts = localized{
	"uk": "Вітаю! Я %s, IT-консультантка компанії %s. Розкажіть, яке завдання ви хочете вирішити?",
	"en": "Hi! I'm %s, an IT consultant at %s. What would you like to build or automate?",
	"pl": "Dzień dobry! Jestem %s, konsultantka IT w firmie %s. W czym mogę pomóc?",
}

var gdprNotices = localized{
	"uk": "Ми обробляємо ваші повідомлення лише для надання консультації відповідно до GDPR. Деталі у нашій Політиці конфіденційності.",
	"en": "We process your messages only to provide this consultation, in line with GDPR. See our Privacy Policy for details.",
	"pl": "Przetwarzamy Twoje wiadomości wyłącznie w celu konsultacji, zgodnie z RODO (GDPR). Szczegóły w Polityce prywatności.",
}

var pricesHeaders = localized{
	"uk": "Ціни (орієнтовно):",
	"en": "Prices (approximate):",
	"pl": "Ceny (orientacyjnie):",
}

var quoteAccepted = localized{
	"uk": "Запит отримано! Прорахунок буде відправлений на ваш email протягом 30 хвилин.",
	"en": "Request received! The estimate will be sent to your email within 30 minutes.",
	"pl": "Zapytanie przyjęte! Wycena zostanie wysłana na Twój e-mail w ciągu 30 minut.",
}

// QuoteAccepted returns the confirmation shown after a quote request is stored.
func QuoteAccepted(lang string) string {
	return quoteAccepted.get(lang)
}

// errorReply 供应商不可用时展示给用户的文本，同时被学习循环视为失败回复。
var errorReply = localized{
	"uk": "Вибачте, зараз я не можу обробити ваш запит. Спробуйте пізніше.",
	"en": "Sorry, I can't process your request right now. Please try again later.",
	"pl": "Przepraszam, nie mogę teraz obsłużyć zapytania. Spróbuj ponownie później.",
}

// ErrorReply returns the user facing text for a failed turn.
func ErrorReply(lang string) string {
	return errorReply.get(lang)
}

var fallbackReplies = map[string]localized{
	"uk": {
		model.IntentGreeting:     "Рада знайомству! Розкажіть, яке завдання стоїть перед вашим бізнесом, або запишіться на безкоштовну консультацію.",
		model.IntentPricing:      "Щоб дати точну ціну, мені потрібно більше деталей про ваш проєкт. Розкажіть, будь ласка, що саме вас цікавить, або обговорімо це на безкоштовній консультації.",
		model.IntentConsultation: "Я буду рада обговорити ваше питання на консультації. Коли вам буде зручно зустрітися?",
		model.IntentServices:     "Розкажіть більше про те, що вас цікавить, і я зможу запропонувати найкраще рішення. Також можна записатися на безкоштовну консультацію.",
		model.IntentPortfolio:    "Підберу для вас схожі кейси, якщо уточните галузь або тип рішення. Детально про наші проєкти можна поговорити на безкоштовній консультації.",
		model.IntentGeneral:      "Цікаве питання! Щоб дати максимально корисну відповідь, уточніть, будь ласка, деталі або запишіться на безкоштовну консультацію.",
	},
	"en": {
		model.IntentGreeting:     "Nice to meet you! Tell me what your business needs, or book a free consultation with our team.",
		model.IntentPricing:      "To give you an accurate price I need a few more details about your project. Tell me more, or let's discuss it during a free consultation.",
		model.IntentConsultation: "I'd be glad to discuss your question during a consultation. When would be a good time for you?",
		model.IntentServices:     "Tell me a bit more about what you need and I'll suggest the best solution. You can also book a free consultation.",
		model.IntentPortfolio:    "I can pick similar cases if you tell me your industry or the kind of solution. We can go through our projects in detail during a free consultation.",
		model.IntentGeneral:      "Good question! To give you the most useful answer, please share a few more details, or book a free consultation with our team.",
	},
	"pl": {
		model.IntentGreeting:     "Miło mi! Opowiedz, czego potrzebuje Twoja firma, albo umów się na bezpłatną konsultację.",
		model.IntentPricing:      "Aby podać dokładną cenę, potrzebuję więcej szczegółów o projekcie. Opowiedz więcej albo omówmy to podczas bezpłatnej konsultacji.",
		model.IntentConsultation: "Chętnie omówię Twoje pytanie podczas konsultacji. Kiedy będzie Ci wygodnie?",
		model.IntentServices:     "Opowiedz więcej o swoich potrzebach, a zaproponuję najlepsze rozwiązanie. Możesz też umówić się na bezpłatną konsultację.",
		model.IntentPortfolio:    "Dobiorę podobne realizacje, jeśli podasz branżę lub typ rozwiązania. O projektach możemy porozmawiać na bezpłatnej konsultacji.",
		model.IntentGeneral:      "Dobre pytanie! Aby odpowiedzieć jak najlepiej, podaj proszę więcej szczegółów albo umów się na bezpłatną konsultację.",
	},
}

func fallbackReply(lang, intent string) string {
	replies, ok := fallbackReplies[lang]
	if !ok {
		replies = fallbackReplies[fallbackLang]
	}
	if s, ok := replies[intent]; ok {
		return s
	}
	return replies[model.IntentGeneral]
}

var suggestionSets = map[string]map[string][]string{
	"uk": {
		model.IntentGreeting:     {"💼 Які послуги ви надаєте?", "💰 Скільки коштує розробка?", "📋 Переглянути портфоліо"},
		model.IntentPricing:      {"🧮 Отримати детальний прорахунок", "📅 Записатися на безкоштовну консультацію", "📋 Переглянути схожі проєкти"},
		model.IntentConsultation: {"📅 Обрати зручний час для зустрічі", "📝 Підготувати список питань", "💼 Розповісти про ваш бізнес"},
		model.IntentServices:     {"🔍 Дізнатися більше про цей сервіс", "💰 Переглянути пакети та ціни", "📞 Обговорити ваші потреби"},
		model.IntentPortfolio:    {"📊 Переглянути детальний кейс", "💡 Обговорити схоже рішення", "📈 Дізнатися про результати"},
		model.IntentGeneral:      {"❓ Поставити уточнювальне питання", "📞 Зв'язатися з консультантом", "🏠 Повернутися на головну"},
		"fallback":               {"💬 Уточнити питання", "📞 Зв'язатися з консультантом", "📋 Переглянути наші сервіси"},
	},
	"en": {
		model.IntentGreeting:     {"💼 What services do you offer?", "💰 How much does development cost?", "📋 See the portfolio"},
		model.IntentPricing:      {"🧮 Get a detailed estimate", "📅 Book a free consultation", "📋 See similar projects"},
		model.IntentConsultation: {"📅 Pick a convenient time", "📝 Prepare a list of questions", "💼 Tell us about your business"},
		model.IntentServices:     {"🔍 Learn more about this service", "💰 See packages and prices", "📞 Discuss your needs"},
		model.IntentPortfolio:    {"📊 See a detailed case", "💡 Discuss a similar solution", "📈 Learn about the results"},
		model.IntentGeneral:      {"❓ Ask a follow-up question", "📞 Contact a consultant", "🏠 Back to the home page"},
		"fallback":               {"💬 Clarify the question", "📞 Contact a consultant", "📋 Browse our services"},
	},
	"pl": {
		model.IntentGreeting:     {"💼 Jakie usługi oferujecie?", "💰 Ile kosztuje wdrożenie?", "📋 Zobacz portfolio"},
		model.IntentPricing:      {"🧮 Otrzymaj szczegółową wycenę", "📅 Umów bezpłatną konsultację", "📋 Zobacz podobne projekty"},
		model.IntentConsultation: {"📅 Wybierz dogodny termin", "📝 Przygotuj listę pytań", "💼 Opowiedz o swojej firmie"},
		model.IntentServices:     {"🔍 Dowiedz się więcej o usłudze", "💰 Zobacz pakiety i ceny", "📞 Omów swoje potrzeby"},
		model.IntentPortfolio:    {"📊 Zobacz szczegóły realizacji", "💡 Omów podobne rozwiązanie", "📈 Poznaj wyniki"},
		model.IntentGeneral:      {"❓ Zadaj pytanie doprecyzowujące", "📞 Skontaktuj się z konsultantem", "🏠 Wróć na stronę główną"},
		"fallback":               {"💬 Doprecyzuj pytanie", "📞 Skontaktuj się z konsultantem", "📋 Zobacz nasze usługi"},
	},
}

func suggestionsFor(lang, intent string) []string {
	sets, ok := suggestionSets[lang]
	if !ok {
		sets = suggestionSets[fallbackLang]
	}
	s, ok := sets[intent]
	if !ok {
		s = sets[model.IntentGeneral]
	}
	return append([]string(nil), s...)
}

// clarificationQuestions 模型没有给出编号问题时使用。
var clarificationQuestions = map[string][]string{
	"uk": {
		"Який тип бізнесу або проєкту у вас?",
		"Які ключові функції вам потрібні?",
		"Чи потрібні інтеграції (CRM, оплата, месенджери)?",
		"Скільки мов має підтримувати рішення?",
		"Які у вас терміни запуску?",
	},
	"en": {
		"What kind of business or project is it?",
		"Which key features do you need?",
		"Do you need integrations (CRM, payments, messengers)?",
		"How many languages should the solution support?",
		"What is your launch timeline?",
	},
	"pl": {
		"Jaki to rodzaj firmy lub projektu?",
		"Jakich kluczowych funkcji potrzebujesz?",
		"Czy potrzebne są integracje (CRM, płatności, komunikatory)?",
		"Ile języków ma obsługiwać rozwiązanie?",
		"Jaki jest planowany termin uruchomienia?",
	},
}

var clarificationLeads = localized{
	"uk": "Щоб підготувати точний прорахунок, уточніть, будь ласка:",
	"en": "To prepare an accurate estimate, please tell me:",
	"pl": "Aby przygotować dokładną wycenę, doprecyzuj proszę:",
}

type actionTexts struct {
	consultLong  string
	consultShort string
	quote        string
}

var actionLabels = map[string]actionTexts{
	"uk": {"📅 Записатися на консультацію (60 хв)", "📅 Записатися на консультацію (30 хв)", "🧮 Отримати детальний прорахунок у PDF"},
	"en": {"📅 Book a consultation (60 min)", "📅 Book a consultation (30 min)", "🧮 Get a detailed PDF quote"},
	"pl": {"📅 Umów konsultację (60 min)", "📅 Umów konsultację (30 min)", "🧮 Otrzymaj szczegółową wycenę w PDF"},
}

func actionLabel(lang string) actionTexts {
	if a, ok := actionLabels[lang]; ok {
		return a
	}
	return actionLabels[fallbackLang]
}

// fieldLabels 索引文本中的字段前缀。
type fieldLabels struct {
	service, audience, value        string
	project, task, solution, result string
	question, answer                string
	pkg, price, timeline, features  string
	mission, story                  string
	address, phone, email, hours    string
	weeks                           string
}

var labels = map[string]fieldLabels{
	"uk": {
		service: "Сервіс", audience: "Для кого", value: "Переваги",
		project: "Проєкт", task: "Завдання", solution: "Рішення", result: "Результат",
		question: "Питання", answer: "Відповідь",
		pkg: "Пакет", price: "Ціна", timeline: "Термін", features: "Можливості",
		mission: "Місія", story: "Історія",
		address: "Адреса", phone: "Телефон", email: "Email", hours: "Графік роботи",
		weeks: "тижнів",
	},
	"en": {
		service: "Service", audience: "For whom", value: "Benefits",
		project: "Project", task: "Task", solution: "Solution", result: "Result",
		question: "Question", answer: "Answer",
		pkg: "Package", price: "Price", timeline: "Timeline", features: "Features",
		mission: "Mission", story: "Story",
		address: "Address", phone: "Phone", email: "Email", hours: "Working hours",
		weeks: "weeks",
	},
	"pl": {
		service: "Usługa", audience: "Dla kogo", value: "Korzyści",
		project: "Projekt", task: "Zadanie", solution: "Rozwiązanie", result: "Rezultat",
		question: "Pytanie", answer: "Odpowiedź",
		pkg: "Pakiet", price: "Cena", timeline: "Termin", features: "Funkcje",
		mission: "Misja", story: "Historia",
		address: "Adres", phone: "Telefon", email: "Email", hours: "Godziny pracy",
		weeks: "tygodni",
	},
}

func labelsFor(lang string) fieldLabels {
	if l, ok := labels[lang]; ok {
		return l
	}
	return labels[fallbackLang]
}
