package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"

	"github.com/digkill/NumberHoldBot/internal/config"
	"github.com/digkill/NumberHoldBot/internal/models"
	"github.com/digkill/NumberHoldBot/internal/service"
)

const archivePageSize = 10

type Bot struct {
	cfg       config.Config
	api       *tgbotapi.BotAPI
	log       *slog.Logger
	users     *service.UserService
	numbers   *service.NumberService
	queue     *service.QueueService
	tariffs   *service.TariffService
	ledger    *service.LedgerService
	referrals *service.ReferralService
	durations *service.DurationService
	settings  *service.SettingsService
	state     *StateManager
}

func NewBot(cfg config.Config, api *tgbotapi.BotAPI, log *slog.Logger, users *service.UserService, numbers *service.NumberService, queue *service.QueueService, tariffs *service.TariffService, ledger *service.LedgerService, referrals *service.ReferralService, durations *service.DurationService, settings *service.SettingsService) *Bot {
	return &Bot{
		cfg:       cfg,
		api:       api,
		log:       log,
		users:     users,
		numbers:   numbers,
		queue:     queue,
		tariffs:   tariffs,
		ledger:    ledger,
		referrals: referrals,
		durations: durations,
		settings:  settings,
		state:     NewStateManager(),
	}
}

func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	b.log.Info("telegram bot started")

	for {
		select {
		case update := <-updates:
			if update.Message != nil {
				b.handleMessage(ctx, update.Message)
			} else if update.CallbackQuery != nil {
				b.handleCallback(ctx, update.CallbackQuery)
			}
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	user, err := b.ensureUser(ctx, msg)
	if err != nil {
		b.log.Error("ensure user", "err", err)
		return
	}
	if user.IsBanned && !b.users.IsOwner(user.ID) {
		b.sendText(msg.Chat.ID, "Вы заблокированы.")
		return
	}

	if msg.IsCommand() {
		b.state.Reset(msg.Chat.ID)
		b.handleCommand(ctx, msg, user)
		return
	}

	session := b.state.Get(msg.Chat.ID)
	switch session.State {
	case StateAwaitingPhone:
		b.handlePhoneMessage(ctx, msg, user, session)
	case StateAwaitingWithdrawAmount:
		b.handleWithdrawAmount(ctx, msg, session)
	case StateAwaitingWithdrawDetails:
		b.handleWithdrawDetails(ctx, msg, user, session)
	default:
		b.sendText(msg.Chat.ID, "Используйте /tariffs, чтобы сдать номер, или /help для списка команд.")
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message, user *models.User) {
	switch msg.Command() {
	case "start":
		b.handleStart(ctx, msg, user)
	case "help":
		b.sendText(msg.Chat.ID, helpText)
	case "profile":
		b.handleProfile(ctx, msg, user)
	case "tariffs":
		b.handleTariffs(ctx, msg)
	case "queue":
		b.handleQueue(ctx, msg, user)
	case "archive":
		b.handleArchive(ctx, msg, user)
	case "referral":
		b.handleReferral(ctx, msg, user)
	case "withdraw":
		b.handleWithdrawStart(ctx, msg, user)
	case "number":
		b.handleNextNumber(ctx, msg, user)
	case "cancel":
		b.sendText(msg.Chat.ID, "Действие отменено.")
	default:
		b.sendText(msg.Chat.ID, "Неизвестная команда. Используйте /help.")
	}
}

const helpText = `Команды:
/tariffs — сдать номер
/queue — позиция в очереди
/profile — баланс и статистика
/archive — история номеров
/referral — реферальная программа
/withdraw — вывод средств
/cancel — отменить текущее действие`

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message, user *models.User) {
	text := fmt.Sprintf("Привет, %s!\n\nЗдесь можно сдать номер на отстой и получить оплату по тарифу.\n\n%s", displayName(user), helpText)
	if sys, err := b.settings.SystemMessage(ctx); err == nil && sys != "" {
		text = sys + "\n\n" + text
	}
	b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleProfile(ctx context.Context, msg *tgbotapi.Message, user *models.User) {
	balance, err := b.ledger.Balance(ctx, user.ID)
	if err != nil {
		b.log.Error("get balance", "err", err)
		b.sendText(msg.Chat.ID, "Не удалось получить профиль, попробуйте позже.")
		return
	}
	text := fmt.Sprintf("Профиль %s\n\nБаланс: %s$\nСдано номеров: %d", displayName(user), balance.StringFixed(2), user.TotalNumbers)
	b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleTariffs(ctx context.Context, msg *tgbotapi.Message) {
	reason, err := b.numbers.ClosedReason(ctx)
	if err != nil {
		b.log.Error("check schedule", "err", err)
		b.sendText(msg.Chat.ID, "Попробуйте позже.")
		return
	}
	if reason != service.ClosureNone {
		b.sendText(msg.Chat.ID, closureText(reason))
		return
	}

	tariffs, err := b.tariffs.Active(ctx)
	if err != nil {
		b.log.Error("list tariffs", "err", err)
		b.sendText(msg.Chat.ID, "Не удалось загрузить тарифы, попробуйте позже.")
		return
	}
	if len(tariffs) == 0 {
		b.sendText(msg.Chat.ID, "Сейчас нет доступных тарифов.")
		return
	}

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(tariffs))
	for _, t := range tariffs {
		label := fmt.Sprintf("%s — %s$ / %d мин", t.Name, t.Price.StringFixed(2), t.DurationMin)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, "tariff:"+strconv.FormatInt(t.ID, 10)),
		))
	}
	out := tgbotapi.NewMessage(msg.Chat.ID, "Выберите тариф:")
	out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	if _, err := b.api.Send(out); err != nil {
		b.log.Error("send tariffs", "err", err)
	}
}

func (b *Bot) handleQueue(ctx context.Context, msg *tgbotapi.Message, user *models.User) {
	total, err := b.queue.DisplayedCount(ctx)
	if err != nil {
		b.log.Error("queue count", "err", err)
		b.sendText(msg.Chat.ID, "Не удалось получить очередь, попробуйте позже.")
		return
	}
	position, err := b.queue.PositionOf(ctx, user.ID)
	if err != nil {
		if errors.Is(err, service.ErrNotInQueue) {
			b.sendText(msg.Chat.ID, fmt.Sprintf("Всего в очереди: %d\n\nУ вас нет номеров в очереди.", total))
			return
		}
		b.log.Error("queue position", "err", err)
		b.sendText(msg.Chat.ID, "Не удалось получить очередь, попробуйте позже.")
		return
	}
	b.sendText(msg.Chat.ID, fmt.Sprintf("Всего в очереди: %d\nВаша позиция: %d", total, position))
}

func (b *Bot) handleArchive(ctx context.Context, msg *tgbotapi.Message, user *models.User) {
	finished, err := b.numbers.ArchiveFor(ctx, user.ID, archivePageSize)
	if err != nil {
		b.log.Error("list archive", "err", err)
		b.sendText(msg.Chat.ID, "Не удалось получить архив, попробуйте позже.")
		return
	}
	if len(finished) == 0 {
		b.sendText(msg.Chat.ID, "Архив пуст.")
		return
	}
	var sb strings.Builder
	sb.WriteString("Ваши номера:\n")
	for _, n := range finished {
		sb.WriteString(fmt.Sprintf("\n%s — %s", n.Phone, statusText(n.Status)))
	}
	b.sendText(msg.Chat.ID, sb.String())
}

func (b *Bot) handleReferral(ctx context.Context, msg *tgbotapi.Message, user *models.User) {
	enabled, err := b.settings.ReferralEnabled(ctx)
	if err != nil {
		b.log.Error("referral toggle", "err", err)
		b.sendText(msg.Chat.ID, "Попробуйте позже.")
		return
	}
	if !enabled {
		b.sendText(msg.Chat.ID, "Реферальная программа временно отключена.")
		return
	}
	stats, err := b.referrals.StatsFor(ctx, user.ID)
	if err != nil {
		b.log.Error("referral stats", "err", err)
		b.sendText(msg.Chat.ID, "Попробуйте позже.")
		return
	}
	bonus, err := b.settings.ReferralBonus(ctx)
	if err != nil {
		b.log.Error("referral bonus", "err", err)
		b.sendText(msg.Chat.ID, "Попробуйте позже.")
		return
	}
	link := fmt.Sprintf("https://t.me/%s?start=ref%d", b.api.Self.UserName, user.ID)
	text := fmt.Sprintf("Реферальная программа\n\nВаша ссылка: %s\n\nБонус за реферала: %s$ (после первого отстоявшего номера)\nПриглашено: %d\nУспешных: %d\nЗаработано: %s$",
		link, bonus.StringFixed(2), stats.TotalReferred, stats.SuccessfulReferred, stats.Earned.StringFixed(2))
	b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleWithdrawStart(ctx context.Context, msg *tgbotapi.Message, user *models.User) {
	balance, err := b.ledger.Balance(ctx, user.ID)
	if err != nil {
		b.log.Error("get balance", "err", err)
		b.sendText(msg.Chat.ID, "Попробуйте позже.")
		return
	}
	min, err := b.settings.MinWithdrawal(ctx)
	if err != nil {
		b.log.Error("withdrawal minimum", "err", err)
		b.sendText(msg.Chat.ID, "Попробуйте позже.")
		return
	}
	if balance.LessThan(min) {
		b.sendText(msg.Chat.ID, fmt.Sprintf("Минимальная сумма вывода: %s$. Ваш баланс: %s$.", min.StringFixed(2), balance.StringFixed(2)))
		return
	}
	b.state.Set(msg.Chat.ID, &Session{State: StateAwaitingWithdrawAmount})
	b.sendText(msg.Chat.ID, fmt.Sprintf("Ваш баланс: %s$. Введите сумму вывода (минимум %s$):", balance.StringFixed(2), min.StringFixed(2)))
}

func (b *Bot) handleWithdrawAmount(ctx context.Context, msg *tgbotapi.Message, session *Session) {
	amount, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(msg.Text), ",", "."))
	if err != nil || !amount.IsPositive() {
		b.sendText(msg.Chat.ID, "Введите сумму числом, например 5 или 7.50.")
		return
	}

	methods, err := b.settings.PaymentMethods(ctx)
	if err != nil {
		b.log.Error("payout methods", "err", err)
		b.sendText(msg.Chat.ID, "Попробуйте позже.")
		return
	}
	session.State = StateAwaitingWithdrawDetails
	session.WithdrawAmount = amount
	b.state.Set(msg.Chat.ID, session)

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(methods))
	for _, m := range methods {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(m, "wmethod:"+m),
		))
	}
	out := tgbotapi.NewMessage(msg.Chat.ID, "Выберите способ выплаты:")
	out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	if _, err := b.api.Send(out); err != nil {
		b.log.Error("send payout methods", "err", err)
	}
}

func (b *Bot) handleWithdrawDetails(ctx context.Context, msg *tgbotapi.Message, user *models.User, session *Session) {
	if session.WithdrawMethod == "" {
		b.sendText(msg.Chat.ID, "Сначала выберите способ выплаты кнопкой выше.")
		return
	}
	details := strings.TrimSpace(msg.Text)
	if details == "" {
		b.sendText(msg.Chat.ID, "Отправьте реквизиты для выплаты.")
		return
	}

	w, err := b.ledger.RequestWithdrawal(ctx, user.ID, user.Username, session.WithdrawAmount, session.WithdrawMethod, details)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBelowMinimum):
			b.sendText(msg.Chat.ID, "Сумма меньше минимальной.")
		case errors.Is(err, service.ErrInsufficientFunds):
			b.sendText(msg.Chat.ID, "Недостаточно средств на балансе.")
		case errors.Is(err, service.ErrPendingExists):
			b.sendText(msg.Chat.ID, "У вас уже есть заявка на вывод в обработке.")
		default:
			b.log.Error("request withdrawal", "err", err)
			b.sendText(msg.Chat.ID, "Не удалось создать заявку, попробуйте позже.")
		}
		b.state.Reset(msg.Chat.ID)
		return
	}

	b.state.Reset(msg.Chat.ID)
	b.sendText(msg.Chat.ID, fmt.Sprintf("Заявка на вывод %s$ создана. Средства зарезервированы и будут выплачены после одобрения.", w.Amount.StringFixed(2)))
	b.notifyOwners(fmt.Sprintf("Новая заявка на вывод #%d\nПользователь: %s (%d)\nСумма: %s$\nСпособ: %s\nРеквизиты: %s",
		w.ID, user.Username, user.ID, w.Amount.StringFixed(2), w.PaymentMethod, w.PaymentDetails))
}

// handleNextNumber shows the operator the best queued number. The card is
// advisory: the take button is the real claim and may lose a race.
func (b *Bot) handleNextNumber(ctx context.Context, msg *tgbotapi.Message, user *models.User) {
	priv, err := b.users.PrivilegeOf(ctx, user.ID)
	if err != nil {
		b.log.Error("resolve privilege", "err", err)
		return
	}
	if priv < models.PrivilegeOperator {
		b.sendText(msg.Chat.ID, "Неизвестная команда. Используйте /help.")
		return
	}

	number, err := b.numbers.NextClaimable(ctx)
	if err != nil {
		b.log.Error("next claimable", "err", err)
		b.sendText(msg.Chat.ID, "Попробуйте позже.")
		return
	}
	if number == nil {
		b.sendText(msg.Chat.ID, "Очередь пуста.")
		return
	}

	text, err := b.numberCard(ctx, number, priv)
	if err != nil {
		b.log.Error("build number card", "err", err)
		b.sendText(msg.Chat.ID, "Попробуйте позже.")
		return
	}
	out := tgbotapi.NewMessage(msg.Chat.ID, text)
	out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Взять в работу", "take:"+strconv.FormatInt(number.ID, 10)),
		),
	)
	if _, err := b.api.Send(out); err != nil {
		b.log.Error("send number card", "err", err)
	}
}

func (b *Bot) numberCard(ctx context.Context, number *models.Number, priv models.Privilege) (string, error) {
	tariff, err := b.tariffs.GetByID(ctx, number.TariffID)
	if err != nil {
		return "", err
	}
	name := "?"
	if tariff != nil {
		name = tariff.Name
	}
	visible, err := b.durations.Visible(ctx, number.TariffID)
	if err != nil {
		return "", err
	}
	text := fmt.Sprintf("Номер: %s\nТариф: %s\nДержать: %d мин", number.Phone, name, visible)
	if number.IsPriority {
		priorityName, err := b.settings.PriorityName(ctx)
		if err != nil {
			return "", err
		}
		text += "\n" + priorityName
	}
	if priv == models.PrivilegeOwner {
		real, err := b.durations.Real(ctx, number.TariffID, priv)
		if err != nil {
			return "", err
		}
		if real != visible {
			text += fmt.Sprintf("\nФактически: %d мин", real)
		}
	}
	return text, nil
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID
	user, err := b.users.Ensure(ctx, cb.From.ID, cb.From.UserName, nil)
	if err != nil {
		b.log.Error("ensure user callback", "err", err)
		return
	}
	if user.IsBanned && !b.users.IsOwner(user.ID) {
		b.answerCallback(cb.ID, "Вы заблокированы.")
		return
	}

	action, arg, _ := strings.Cut(cb.Data, ":")
	switch action {
	case "tariff":
		b.handleTariffChosen(ctx, cb, chatID, arg)
	case "prio":
		b.handlePriorityChosen(ctx, cb, chatID, arg)
	case "wmethod":
		b.handleMethodChosen(cb, chatID, arg)
	case "take":
		b.handleTake(ctx, cb, chatID, user, arg)
	case "done":
		b.handleResolve(ctx, cb, chatID, user, arg)
	case "void":
		b.handleVoid(ctx, cb, chatID, user, arg)
	default:
		b.answerCallback(cb.ID, "Неизвестный выбор")
	}
}

func (b *Bot) handleTariffChosen(ctx context.Context, cb *tgbotapi.CallbackQuery, chatID int64, arg string) {
	tariffID, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		b.answerCallback(cb.ID, "Неизвестный тариф")
		return
	}
	tariff, err := b.tariffs.GetByID(ctx, tariffID)
	if err != nil || tariff == nil || !tariff.IsActive {
		b.answerCallback(cb.ID, "Тариф недоступен")
		return
	}
	b.state.Set(chatID, &Session{State: StateAwaitingPhone, TariffID: tariffID})
	b.answerCallback(cb.ID, "Тариф выбран")

	priorityName, err1 := b.settings.PriorityName(ctx)
	priorityPrice, err2 := b.settings.PriorityPrice(ctx)
	if err1 != nil || err2 != nil {
		b.sendText(chatID, "Отправьте номер телефона:")
		return
	}
	out := tgbotapi.NewMessage(chatID, fmt.Sprintf("Добавить %s за %s$? Номер встанет в начало очереди.", priorityName, priorityPrice.StringFixed(2)))
	out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Да", "prio:1"),
			tgbotapi.NewInlineKeyboardButtonData("Нет", "prio:0"),
		),
	)
	if _, err := b.api.Send(out); err != nil {
		b.log.Error("send priority offer", "err", err)
	}
}

func (b *Bot) handlePriorityChosen(ctx context.Context, cb *tgbotapi.CallbackQuery, chatID int64, arg string) {
	session := b.state.Get(chatID)
	if session.State != StateAwaitingPhone || session.TariffID == 0 {
		b.answerCallback(cb.ID, "Сначала выберите тариф: /tariffs")
		return
	}
	if arg == "1" {
		price, err := b.settings.PriorityPrice(ctx)
		if err != nil {
			b.log.Error("priority price", "err", err)
			b.answerCallback(cb.ID, "Попробуйте позже")
			return
		}
		balance, err := b.ledger.Balance(ctx, cb.From.ID)
		if err != nil {
			b.log.Error("get balance", "err", err)
			b.answerCallback(cb.ID, "Попробуйте позже")
			return
		}
		if balance.LessThan(price) {
			b.answerCallback(cb.ID, "Недостаточно средств")
			b.sendText(chatID, "Недостаточно средств для приоритета. Номер будет добавлен без него.\n\nОтправьте номер телефона:")
			return
		}
		session.IsPriority = true
	}
	b.state.Set(chatID, session)
	b.answerCallback(cb.ID, "Принято")
	b.sendText(chatID, "Отправьте номер телефона:")
}

func (b *Bot) handleMethodChosen(cb *tgbotapi.CallbackQuery, chatID int64, method string) {
	session := b.state.Get(chatID)
	if session.State != StateAwaitingWithdrawDetails {
		b.answerCallback(cb.ID, "Начните с /withdraw")
		return
	}
	session.WithdrawMethod = method
	b.state.Set(chatID, session)
	b.answerCallback(cb.ID, method)
	b.sendText(chatID, "Отправьте реквизиты для выплаты:")
}

func (b *Bot) handlePhoneMessage(ctx context.Context, msg *tgbotapi.Message, user *models.User, session *Session) {
	var priorityCharged decimal.Decimal
	if session.IsPriority {
		price, err := b.settings.PriorityPrice(ctx)
		if err != nil {
			b.log.Error("priority price", "err", err)
			b.sendText(msg.Chat.ID, "Попробуйте позже.")
			return
		}
		balance, err := b.ledger.Balance(ctx, user.ID)
		if err != nil {
			b.log.Error("get balance", "err", err)
			b.sendText(msg.Chat.ID, "Попробуйте позже.")
			return
		}
		if balance.LessThan(price) {
			session.IsPriority = false
			b.state.Set(msg.Chat.ID, session)
			b.sendText(msg.Chat.ID, "Недостаточно средств для приоритета. Номер будет добавлен без него.")
		} else {
			if _, err := b.ledger.Debit(ctx, user.ID, price); err != nil {
				b.log.Error("charge priority", "err", err)
				b.sendText(msg.Chat.ID, "Попробуйте позже.")
				return
			}
			priorityCharged = price
		}
	}

	number, err := b.numbers.Submit(ctx, user.ID, session.TariffID, msg.Text, session.IsPriority)
	if err != nil {
		if priorityCharged.IsPositive() {
			if _, refundErr := b.ledger.Credit(ctx, user.ID, priorityCharged); refundErr != nil {
				b.log.Error("refund priority charge", "err", refundErr)
			}
		}
		switch {
		case errors.Is(err, service.ErrInvalidPhone):
			b.sendText(msg.Chat.ID, "Неверный формат номера. Отправьте 11 цифр, например 77011234567.")
		case errors.Is(err, service.ErrDuplicateNumber):
			b.state.Reset(msg.Chat.ID)
			b.sendText(msg.Chat.ID, "Этот номер вы уже сдавали.")
		case errors.Is(err, service.ErrSystemClosed):
			b.state.Reset(msg.Chat.ID)
			b.sendText(msg.Chat.ID, "Прием номеров сейчас закрыт.")
		case errors.Is(err, service.ErrTariffUnavailable):
			b.state.Reset(msg.Chat.ID)
			b.sendText(msg.Chat.ID, "Тариф больше недоступен, выберите другой: /tariffs")
		default:
			b.log.Error("submit number", "err", err)
			b.sendText(msg.Chat.ID, "Не удалось добавить номер, попробуйте позже.")
		}
		return
	}

	b.state.Reset(msg.Chat.ID)
	position, err := b.queue.PositionOf(ctx, user.ID)
	if err != nil {
		b.log.Error("queue position", "err", err)
		b.sendText(msg.Chat.ID, fmt.Sprintf("Номер %s добавлен в очередь.", number.Phone))
		return
	}
	b.sendText(msg.Chat.ID, fmt.Sprintf("Номер %s добавлен в очередь.\nВаша позиция: %d", number.Phone, position))
}

func (b *Bot) handleTake(ctx context.Context, cb *tgbotapi.CallbackQuery, chatID int64, user *models.User, arg string) {
	priv, err := b.users.PrivilegeOf(ctx, user.ID)
	if err != nil || priv < models.PrivilegeOperator {
		b.answerCallback(cb.ID, "Недостаточно прав")
		return
	}
	numberID, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		b.answerCallback(cb.ID, "Неизвестный номер")
		return
	}

	number, err := b.numbers.Take(ctx, numberID)
	if err != nil {
		if errors.Is(err, service.ErrAlreadyTaken) {
			b.answerCallback(cb.ID, "Номер уже взят")
			b.sendText(chatID, "Номер уже взят другим оператором. Запросите следующий: /number")
			return
		}
		b.log.Error("take number", "err", err)
		b.answerCallback(cb.ID, "Ошибка")
		return
	}

	b.answerCallback(cb.ID, "Номер в работе")
	out := tgbotapi.NewMessage(chatID, fmt.Sprintf("Номер %s в работе.", number.Phone))
	out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Завершить", "done:"+arg),
			tgbotapi.NewInlineKeyboardButtonData("Ошибка номера", "void:"+arg),
		),
	)
	if _, err := b.api.Send(out); err != nil {
		b.log.Error("send in-work card", "err", err)
	}
	b.sendText(number.UserID, fmt.Sprintf("Ваш номер %s взят в работу.", number.Phone))
}

func (b *Bot) handleResolve(ctx context.Context, cb *tgbotapi.CallbackQuery, chatID int64, user *models.User, arg string) {
	priv, err := b.users.PrivilegeOf(ctx, user.ID)
	if err != nil || priv < models.PrivilegeOperator {
		b.answerCallback(cb.ID, "Недостаточно прав")
		return
	}
	numberID, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		b.answerCallback(cb.ID, "Неизвестный номер")
		return
	}

	result, err := b.numbers.Resolve(ctx, numberID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotInWork):
			b.answerCallback(cb.ID, "Номер уже завершен")
		case errors.Is(err, service.ErrNumberNotFound):
			b.answerCallback(cb.ID, "Номер не найден")
		default:
			b.log.Error("resolve number", "err", err)
			b.answerCallback(cb.ID, "Ошибка")
		}
		return
	}
	b.answerCallback(cb.ID, "Завершено")

	// Earnings follow the real outcome; the submitter sees the visible one.
	if result.Real == models.OutcomeHeld {
		if err := b.payForNumber(ctx, result.Number); err != nil {
			b.log.Error("credit earnings", "err", err)
		}
	}

	operatorText := fmt.Sprintf("Номер %s завершен: %s (%d мин).", result.Number.Phone, outcomeText(result.Visible), result.ElapsedMinutes)
	if priv == models.PrivilegeOwner && result.Real != result.Visible {
		operatorText += fmt.Sprintf("\nФактический результат: %s.", outcomeText(result.Real))
	}
	b.sendText(chatID, operatorText)

	if result.Visible == models.OutcomeHeld {
		b.sendText(result.Number.UserID, fmt.Sprintf("Ваш номер %s отстоял %d мин.", result.Number.Phone, result.ElapsedMinutes))
	} else {
		b.sendText(result.Number.UserID, fmt.Sprintf("Ваш номер %s слетел (%d мин).", result.Number.Phone, result.ElapsedMinutes))
	}

	if result.Award != nil {
		b.sendText(result.Award.ReferrerID, fmt.Sprintf("Ваш реферал сдал первый номер. Бонус %s$ зачислен на баланс.", result.Award.Bonus.StringFixed(2)))
	}
}

func (b *Bot) payForNumber(ctx context.Context, number *models.Number) error {
	tariff, err := b.tariffs.GetByID(ctx, number.TariffID)
	if err != nil {
		return err
	}
	if tariff == nil {
		return service.ErrTariffNotFound
	}
	_, err = b.ledger.Credit(ctx, number.UserID, tariff.Price)
	return err
}

func (b *Bot) handleVoid(ctx context.Context, cb *tgbotapi.CallbackQuery, chatID int64, user *models.User, arg string) {
	priv, err := b.users.PrivilegeOf(ctx, user.ID)
	if err != nil || priv < models.PrivilegeOperator {
		b.answerCallback(cb.ID, "Недостаточно прав")
		return
	}
	numberID, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		b.answerCallback(cb.ID, "Неизвестный номер")
		return
	}

	number, err := b.numbers.Void(ctx, numberID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAlreadyTaken):
			b.answerCallback(cb.ID, "Номер уже завершен")
		case errors.Is(err, service.ErrNumberNotFound):
			b.answerCallback(cb.ID, "Номер не найден")
		default:
			b.log.Error("void number", "err", err)
			b.answerCallback(cb.ID, "Ошибка")
		}
		return
	}
	b.answerCallback(cb.ID, "Номер снят")
	b.sendText(chatID, fmt.Sprintf("Номер %s снят как ошибочный.", number.Phone))
	b.sendText(number.UserID, fmt.Sprintf("Ваш номер %s снят оператором. Сдать его повторно нельзя.", number.Phone))
}

func (b *Bot) ensureUser(ctx context.Context, msg *tgbotapi.Message) (*models.User, error) {
	var referrerID *int64
	if msg.IsCommand() && msg.Command() == "start" {
		if payload := strings.TrimSpace(msg.CommandArguments()); strings.HasPrefix(payload, "ref") {
			if id, err := strconv.ParseInt(strings.TrimPrefix(payload, "ref"), 10, 64); err == nil && id > 0 {
				referrerID = &id
			}
		}
	}
	username := ""
	userID := msg.Chat.ID
	if msg.From != nil {
		username = msg.From.UserName
		userID = msg.From.ID
	}
	return b.users.Ensure(ctx, userID, username, referrerID)
}

// NotifyUser delivers a service message to a user. Best effort: a blocked
// bot or closed chat only logs.
func (b *Bot) NotifyUser(userID int64, text string) {
	b.sendText(userID, text)
}

func (b *Bot) notifyOwners(text string) {
	for _, id := range b.cfg.OwnerIDs {
		b.sendText(id, text)
	}
}

func (b *Bot) sendText(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send text", "chat_id", chatID, "err", err)
	}
}

func (b *Bot) answerCallback(id, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(id, text)); err != nil {
		b.log.Error("callback ack", "err", err)
	}
}

func displayName(user *models.User) string {
	if user.Username != "" {
		return "@" + user.Username
	}
	return strconv.FormatInt(user.ID, 10)
}

func statusText(status models.NumberStatus) string {
	switch status {
	case models.StatusQueued:
		return "в очереди"
	case models.StatusInWork:
		return "в работе"
	case models.StatusHeld:
		return "отстоял"
	case models.StatusDropped:
		return "слетел"
	case models.StatusRemoved:
		return "снят"
	default:
		return string(status)
	}
}

func closureText(reason service.ClosureReason) string {
	switch reason {
	case service.ClosureNight:
		return "Прием номеров закрыт на ночь. Возвращайтесь утром."
	case service.ClosureWeekend:
		return "Прием номеров закрыт на выходные."
	default:
		return "Прием номеров сейчас закрыт."
	}
}

func outcomeText(outcome models.Outcome) string {
	if outcome == models.OutcomeHeld {
		return "отстоял"
	}
	return "слетел"
}
