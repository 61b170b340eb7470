package admin

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

func (s *Server) handleExportNumbers(w http.ResponseWriter, r *http.Request) {
	numbers, err := s.numbers.ListAll(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}
	records := [][]string{{"id", "user_id", "phone", "tariff_id", "status", "real_outcome", "is_priority", "created_at", "taken_at", "finished_at"}}
	for _, n := range numbers {
		records = append(records, []string{
			strconv.FormatInt(n.ID, 10),
			strconv.FormatInt(n.UserID, 10),
			n.Phone,
			strconv.FormatInt(n.TariffID, 10),
			string(n.Status),
			string(n.RealOutcome),
			strconv.FormatBool(n.IsPriority),
			formatTime(&n.CreatedAt),
			formatTime(n.TakenAt),
			formatTime(n.FinishedAt),
		})
	}
	s.serveCSV(w, r, "numbers", records)
}

func (s *Server) handleExportWithdrawals(w http.ResponseWriter, r *http.Request) {
	withdrawals, err := s.ledger.List(r.Context(), "")
	if err != nil {
		s.internalError(w, err)
		return
	}
	records := [][]string{{"id", "user_id", "username", "amount", "status", "payment_method", "payment_details", "created_at", "processed_at", "comment"}}
	for _, wd := range withdrawals {
		records = append(records, []string{
			strconv.FormatInt(wd.ID, 10),
			strconv.FormatInt(wd.UserID, 10),
			wd.Username,
			wd.Amount.StringFixed(2),
			string(wd.Status),
			wd.PaymentMethod,
			wd.PaymentDetails,
			formatTime(&wd.CreatedAt),
			formatTime(wd.ProcessedAt),
			wd.Comment,
		})
	}
	s.serveCSV(w, r, "withdrawals", records)
}

func (s *Server) handleExportReferrals(w http.ResponseWriter, r *http.Request) {
	referrals, err := s.referrals.ListAll(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}
	records := [][]string{{"id", "referrer_id", "referred_id", "first_completed", "bonus_paid", "created_at"}}
	for _, ref := range referrals {
		records = append(records, []string{
			strconv.FormatInt(ref.ID, 10),
			strconv.FormatInt(ref.ReferrerID, 10),
			strconv.FormatInt(ref.ReferredID, 10),
			strconv.FormatBool(ref.FirstCompleted),
			strconv.FormatBool(ref.BonusPaid),
			formatTime(&ref.CreatedAt),
		})
	}
	s.serveCSV(w, r, "referrals", records)
}

// serveCSV writes the report to the response and, when report storage is
// configured, mirrors a copy there. The mirror is best effort and never
// fails the request.
func (s *Server) serveCSV(w http.ResponseWriter, r *http.Request, name string, records [][]string) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.WriteAll(records); err != nil {
		s.internalError(w, err)
		return
	}

	if s.reports != nil {
		key, err := s.reports.Store(r.Context(), name, buf.Bytes())
		if err != nil {
			s.log.Error("mirror export", "report", name, "err", err)
		} else {
			w.Header().Set("X-Report-Key", key)
		}
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".csv"))
	_, _ = w.Write(buf.Bytes())
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
