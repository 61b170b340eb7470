package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"

	"github.com/digkill/NumberHoldBot/internal/models"
	"github.com/digkill/NumberHoldBot/internal/service"
)

// ReportStorage mirrors CSV exports to durable storage. Optional: exports
// still work without it.
type ReportStorage interface {
	Store(ctx context.Context, name string, data []byte) (string, error)
}

type Server struct {
	addr      string
	username  string
	password  string
	log       *slog.Logger
	users     *service.UserService
	tariffs   *service.TariffService
	durations *service.DurationService
	settings  *service.SettingsService
	ledger    *service.LedgerService
	numbers   *service.NumberService
	referrals *service.ReferralService
	reports   ReportStorage
	bot       *tgbotapi.BotAPI
	router    *chi.Mux
}

func NewServer(addr, username, password string, log *slog.Logger, users *service.UserService, tariffs *service.TariffService, durations *service.DurationService, settings *service.SettingsService, ledger *service.LedgerService, numbers *service.NumberService, referrals *service.ReferralService, reports ReportStorage, bot *tgbotapi.BotAPI) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	s := &Server{
		addr:      addr,
		username:  username,
		password:  password,
		log:       log,
		users:     users,
		tariffs:   tariffs,
		durations: durations,
		settings:  settings,
		ledger:    ledger,
		numbers:   numbers,
		referrals: referrals,
		reports:   reports,
		bot:       bot,
		router:    r,
	}
	r.Group(func(protected chi.Router) {
		protected.Use(s.basicAuthMiddleware())
		protected.Post("/broadcast", s.handleBroadcast)
		protected.Route("/tariffs", func(r chi.Router) {
			r.Get("/", s.handleListTariffs)
			r.Post("/", s.handleCreateTariff)
			r.Put("/{id}", s.handleUpdateTariff)
			r.Post("/{id}/toggle", s.handleToggleTariff)
			r.Get("/{id}/extra-minutes", s.handleGetExtraMinutes)
			r.Put("/{id}/extra-minutes", s.handleSetExtraMinutes)
		})
		protected.Route("/settings", func(r chi.Router) {
			r.Get("/", s.handleListSettings)
			r.Put("/{key}", s.handleUpdateSetting)
		})
		protected.Route("/withdrawals", func(r chi.Router) {
			r.Get("/", s.handleListWithdrawals)
			r.Post("/{id}/resolve", s.handleResolveWithdrawal)
		})
		protected.Route("/users", func(r chi.Router) {
			r.Get("/", s.handleListUsers)
			r.Post("/{id}/ban", s.handleBanUser)
			r.Post("/{id}/unban", s.handleUnbanUser)
			r.Post("/{id}/role", s.handleSetRole)
			r.Post("/{id}/balance", s.handleSetBalance)
		})
		protected.Post("/queue/clear", s.handleClearQueue)
		protected.Route("/exports", func(r chi.Router) {
			r.Get("/numbers", s.handleExportNumbers)
			r.Get("/withdrawals", s.handleExportWithdrawals)
			r.Get("/referrals", s.handleExportReferrals)
		})
	})
	return s
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error("admin shutdown error", "err", err)
		}
	}()

	s.log.Info("admin panel listening", "addr", s.addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("admin listen: %w", err)
	}
	return nil
}

type broadcastRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		http.Error(w, "message required", http.StatusBadRequest)
		return
	}

	ids, err := s.users.AllIDs(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}

	count := 0
	for _, id := range ids {
		msg := tgbotapi.NewMessage(id, req.Message)
		if _, err := s.bot.Send(msg); err != nil {
			s.log.Error("send broadcast", "user", id, "err", err)
			continue
		}
		count++
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"sent":  count,
		"total": len(ids),
	})
}

type tariffRequest struct {
	Name        string `json:"name"`
	Price       string `json:"price"`
	DurationMin int    `json:"duration_min"`
}

func (s *Server) handleListTariffs(w http.ResponseWriter, r *http.Request) {
	tariffs, err := s.tariffs.All(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, tariffs)
}

func (s *Server) handleCreateTariff(w http.ResponseWriter, r *http.Request) {
	var req tariffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		http.Error(w, "invalid price", http.StatusBadRequest)
		return
	}
	tariff, err := s.tariffs.Create(r.Context(), req.Name, price, req.DurationMin)
	if err != nil {
		s.badRequest(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, tariff)
}

func (s *Server) handleUpdateTariff(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	var req tariffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		http.Error(w, "invalid price", http.StatusBadRequest)
		return
	}
	existing, err := s.tariffs.GetByID(r.Context(), id)
	if err != nil {
		s.internalError(w, err)
		return
	}
	if existing == nil {
		http.Error(w, "tariff not found", http.StatusNotFound)
		return
	}
	existing.Name = req.Name
	existing.Price = price
	existing.DurationMin = req.DurationMin
	tariff, err := s.tariffs.Update(r.Context(), existing)
	if err != nil {
		s.badRequest(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, tariff)
}

func (s *Server) handleToggleTariff(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	if err := s.tariffs.ToggleActive(r.Context(), id); err != nil {
		s.badRequest(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type extraMinutesRequest struct {
	Minutes int `json:"minutes"`
}

// The admin panel authenticates owners, so extra-minutes calls run at
// owner privilege.
func (s *Server) handleGetExtraMinutes(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	minutes, err := s.durations.Surcharge(r.Context(), id, models.PrivilegeOwner)
	if err != nil {
		s.badRequest(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"minutes": minutes})
}

func (s *Server) handleSetExtraMinutes(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	var req extraMinutesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := s.durations.SetSurcharge(r.Context(), id, req.Minutes, models.PrivilegeOwner); err != nil {
		s.badRequest(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	out := map[string]any{}

	if v, err := s.settings.PriorityPrice(ctx); err == nil {
		out[service.KeyPriorityPrice] = v.String()
	}
	if v, err := s.settings.PriorityName(ctx); err == nil {
		out[service.KeyPriorityName] = v
	}
	if v, err := s.settings.FakeQueue(ctx); err == nil {
		out[service.KeyFakeQueue] = v
	}
	if v, err := s.settings.NightMode(ctx); err == nil {
		out[service.KeyNightMode] = v
	}
	if v, err := s.settings.WeekendMode(ctx); err == nil {
		out[service.KeyWeekendMode] = v
	}
	if v, err := s.settings.SystemMessage(ctx); err == nil {
		out[service.KeySystemMessage] = v
	}
	if v, err := s.settings.MinWithdrawal(ctx); err == nil {
		out[service.KeyMinWithdrawal] = v.String()
	}
	if v, err := s.settings.PaymentMethods(ctx); err == nil {
		out[service.KeyPaymentMethods] = v
	}
	if v, err := s.settings.ReferralBonus(ctx); err == nil {
		out[service.KeyReferralBonus] = v.String()
	}
	if v, err := s.settings.ReferralEnabled(ctx); err == nil {
		out[service.KeyReferralEnabled] = v
	}
	s.writeJSON(w, http.StatusOK, out)
}

type settingRequest struct {
	Value string `json:"value"`
}

func (s *Server) handleUpdateSetting(w http.ResponseWriter, r *http.Request) {
	var req settingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	value := strings.TrimSpace(req.Value)

	var err error
	switch chi.URLParam(r, "key") {
	case service.KeyPriorityPrice:
		err = s.setDecimal(ctx, value, s.settings.SetPriorityPrice)
	case service.KeyPriorityName:
		err = s.settings.SetPriorityName(ctx, value)
	case service.KeyFakeQueue:
		err = s.setInt(ctx, value, s.settings.SetFakeQueue)
	case service.KeyNightMode:
		err = s.setBool(ctx, value, s.settings.SetNightMode)
	case service.KeyWeekendMode:
		err = s.setBool(ctx, value, s.settings.SetWeekendMode)
	case service.KeySystemMessage:
		err = s.settings.SetSystemMessage(ctx, req.Value)
	case service.KeyMinWithdrawal:
		err = s.setDecimal(ctx, value, s.settings.SetMinWithdrawal)
	case service.KeyPaymentMethods:
		err = s.settings.SetPaymentMethods(ctx, strings.Split(value, ","))
	case service.KeyReferralBonus:
		err = s.setDecimal(ctx, value, s.settings.SetReferralBonus)
	case service.KeyReferralEnabled:
		err = s.setBool(ctx, value, s.settings.SetReferralEnabled)
	default:
		http.Error(w, "unknown setting", http.StatusNotFound)
		return
	}
	if err != nil {
		s.badRequest(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) setDecimal(ctx context.Context, value string, set func(context.Context, decimal.Decimal) error) error {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return fmt.Errorf("invalid decimal value")
	}
	return set(ctx, d)
}

func (s *Server) setInt(ctx context.Context, value string, set func(context.Context, int) error) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid integer value")
	}
	return set(ctx, n)
}

func (s *Server) setBool(ctx context.Context, value string, set func(context.Context, bool) error) error {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid boolean value")
	}
	return set(ctx, b)
}

func (s *Server) handleListWithdrawals(w http.ResponseWriter, r *http.Request) {
	status := models.WithdrawalStatus(r.URL.Query().Get("status"))
	withdrawals, err := s.ledger.List(r.Context(), status)
	if err != nil {
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, withdrawals)
}

type resolveWithdrawalRequest struct {
	Decision string `json:"decision"`
	ActorID  int64  `json:"actor_id"`
	Comment  string `json:"comment"`
}

func (s *Server) handleResolveWithdrawal(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	var req resolveWithdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	var withdrawal *models.Withdrawal
	switch req.Decision {
	case "approved":
		withdrawal, err = s.ledger.Approve(r.Context(), id, req.ActorID, req.Comment)
	case "rejected":
		withdrawal, err = s.ledger.Reject(r.Context(), id, req.ActorID, req.Comment)
	default:
		http.Error(w, "decision must be approved or rejected", http.StatusBadRequest)
		return
	}
	if err != nil {
		switch {
		case errors.Is(err, service.ErrWithdrawalNotFound):
			http.Error(w, "withdrawal not found", http.StatusNotFound)
		case errors.Is(err, service.ErrAlreadyProcessed):
			http.Error(w, "withdrawal already processed", http.StatusConflict)
		default:
			s.internalError(w, err)
		}
		return
	}

	s.notifyWithdrawal(withdrawal)
	s.writeJSON(w, http.StatusOK, withdrawal)
}

func (s *Server) notifyWithdrawal(w *models.Withdrawal) {
	var text string
	if w.Status == models.WithdrawalApproved {
		text = fmt.Sprintf("Заявка на вывод %s$ одобрена.", w.Amount.StringFixed(2))
	} else {
		text = fmt.Sprintf("Заявка на вывод %s$ отклонена. Средства возвращены на баланс.", w.Amount.StringFixed(2))
		if w.Comment != "" {
			text += "\nКомментарий: " + w.Comment
		}
	}
	if _, err := s.bot.Send(tgbotapi.NewMessage(w.UserID, text)); err != nil {
		s.log.Error("notify withdrawal", "user", w.UserID, "err", err)
	}
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.users.All(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleBanUser(w http.ResponseWriter, r *http.Request) {
	s.setBanned(w, r, true)
}

func (s *Server) handleUnbanUser(w http.ResponseWriter, r *http.Request) {
	s.setBanned(w, r, false)
}

func (s *Server) setBanned(w http.ResponseWriter, r *http.Request, banned bool) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	if banned {
		err = s.users.Ban(r.Context(), id)
	} else {
		err = s.users.Unban(r.Context(), id)
	}
	if err != nil {
		s.internalError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type roleRequest struct {
	Role int `json:"role"`
}

func (s *Server) handleSetRole(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	var req roleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	role := models.Privilege(req.Role)
	if role < models.PrivilegeNone || role > models.PrivilegeOwner {
		http.Error(w, "invalid role", http.StatusBadRequest)
		return
	}
	if err := s.users.SetRole(r.Context(), id, role); err != nil {
		s.internalError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type balanceRequest struct {
	Amount string `json:"amount"`
	Mode   string `json:"mode"` // set, credit or debit
}

func (s *Server) handleSetBalance(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	var req balanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || amount.IsNegative() {
		http.Error(w, "invalid amount", http.StatusBadRequest)
		return
	}

	var balance decimal.Decimal
	switch req.Mode {
	case "credit":
		balance, err = s.ledger.Credit(r.Context(), id, amount)
	case "debit":
		balance, err = s.ledger.Debit(r.Context(), id, amount)
	case "set", "":
		balance, err = s.ledger.SetBalance(r.Context(), id, amount)
	default:
		http.Error(w, "mode must be set, credit or debit", http.StatusBadRequest)
		return
	}
	if err != nil {
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"balance": balance.String()})
}

func (s *Server) handleClearQueue(w http.ResponseWriter, r *http.Request) {
	voided, err := s.numbers.VoidAllQueued(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}
	for _, n := range voided {
		msg := tgbotapi.NewMessage(n.UserID, fmt.Sprintf("Ваш номер %s снят: очередь очищена.", n.Phone))
		if _, err := s.bot.Send(msg); err != nil {
			s.log.Error("notify queue clear", "user", n.UserID, "err", err)
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"removed": len(voided)})
}

func (s *Server) basicAuthMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok || user != s.username || pass != s.password {
				w.Header().Set("WWW-Authenticate", `Basic realm="numberhold"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) badRequest(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), http.StatusBadRequest)
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.log.Error("admin handler error", "err", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func parseID(value string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(value), 10, 64)
}
