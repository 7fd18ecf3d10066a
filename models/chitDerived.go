package models

import (
	"time"

	"github.com/mmdatafocus/jewelry_pos/utils"
	"github.com/shopspring/decimal"
)

const (
	ChitProgressNotStarted     = "not_started"
	ChitProgressInProgress     = "in_progress"
	ChitProgressAlmostComplete = "almost_complete"
	ChitProgressCompleted      = "completed"
)

// ChitSummary holds the figures derived from a chit's stored fields.
// Nothing here is persisted.
type ChitSummary struct {
	CompletionPercentage decimal.Decimal `json:"completion_percentage"`
	TotalPaidAmount      decimal.Decimal `json:"total_paid_amount"`
	RemainingAmount      decimal.Decimal `json:"remaining_amount"`
	GoldValue            decimal.Decimal `json:"gold_value"`
	SettlementGoldValue  decimal.Decimal `json:"settlement_gold_value"`
	IsOverdue            bool            `json:"is_overdue"`
	OverdueDays          int             `json:"overdue_days"`
	Progress             string          `json:"progress"`
}

type ChitWithSummary struct {
	*Chit
	Summary ChitSummary `json:"summary"`
}

type ScheduleEntry struct {
	InstallmentNumber int              `json:"installment_number"`
	DueDate           time.Time        `json:"due_date"`
	Amount            decimal.Decimal  `json:"amount"`
	IsPaid            bool             `json:"is_paid"`
	Payment           *ChitPaymentEntry `json:"payment,omitempty"`
}

var hundred = decimal.NewFromInt(100)

// Summarize derives the read-side figures at time now. goldRate values the
// accumulated gold; when zero the chit's last payment rate is used.
func (c *Chit) Summarize(now time.Time, goldRate decimal.Decimal) ChitSummary {
	var s ChitSummary

	if c.TotalInstallments > 0 {
		s.CompletionPercentage = decimal.NewFromInt(int64(c.PaidInstallments)).
			Mul(hundred).
			DivRound(decimal.NewFromInt(int64(c.TotalInstallments)), 2)
	}

	s.TotalPaidAmount = decimal.Zero
	for _, p := range c.PaymentHistory {
		s.TotalPaidAmount = s.TotalPaidAmount.Add(p.Amount)
	}
	s.RemainingAmount = c.ChitAmount.Sub(s.TotalPaidAmount)
	if s.RemainingAmount.IsNegative() {
		s.RemainingAmount = decimal.Zero
	}

	if !goldRate.IsPositive() {
		goldRate = c.CurrentGoldRate
	}
	s.GoldValue = c.GoldWeight.Mul(goldRate).Round(2)
	if c.SettlementGoldRate.IsPositive() {
		s.SettlementGoldValue = c.GoldWeight.Mul(c.SettlementGoldRate).Round(2)
	}

	if c.Status == ChitStatusActive && now.After(c.NextDueDate) {
		s.IsOverdue = true
		s.OverdueDays = int(now.Sub(c.NextDueDate).Hours() / 24)
	}

	switch {
	case c.PaidInstallments == 0:
		s.Progress = ChitProgressNotStarted
	case s.CompletionPercentage.GreaterThanOrEqual(hundred):
		s.Progress = ChitProgressCompleted
	case s.CompletionPercentage.GreaterThanOrEqual(decimal.NewFromInt(75)):
		s.Progress = ChitProgressAlmostComplete
	default:
		s.Progress = ChitProgressInProgress
	}
	return s
}

func (c *Chit) WithSummary(now time.Time, goldRate decimal.Decimal) ChitWithSummary {
	return ChitWithSummary{Chit: c, Summary: c.Summarize(now, goldRate)}
}

// Schedule lists every installment with its due date; installment n falls
// due n months after the start date.
func (c *Chit) Schedule() []ScheduleEntry {
	paid := make(map[int]ChitPaymentEntry, len(c.PaymentHistory))
	for _, p := range c.PaymentHistory {
		paid[p.InstallmentNumber] = p
	}
	entries := make([]ScheduleEntry, 0, c.TotalInstallments)
	for n := 1; n <= c.TotalInstallments; n++ {
		entry := ScheduleEntry{
			InstallmentNumber: n,
			DueDate:           utils.AddMonths(c.StartDate, n),
			Amount:            c.InstallmentAmount,
			IsPaid:            n <= c.PaidInstallments,
		}
		if p, ok := paid[n]; ok {
			p := p
			entry.Payment = &p
			entry.Amount = p.Amount
		}
		entries = append(entries, entry)
	}
	return entries
}
