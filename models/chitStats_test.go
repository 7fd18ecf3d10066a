package models_test

import (
	"testing"
	"time"

	"github.com/mmdatafocus/jewelry_pos/models"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

func TestChitSummaryStats(t *testing.T) {
	ctx := setupTestDB(t)
	customer := mustCreateCustomer(t, ctx, "Stats", 50)

	active := mustCreateChit(t, ctx, customer.ID, "11000", 11)
	mustPay(t, ctx, active.ID, "1000", "6000")
	mustPay(t, ctx, active.ID, "1000", "6000")

	done := mustCreateChit(t, ctx, customer.ID, "6000", 1)
	mustPay(t, ctx, done.ID, "6000", "6000")
	if _, err := models.SettleChit(ctx, done.ID, &models.NewChitSettlement{
		SettlementType:     models.SettlementTypeGold,
		SettlementGoldRate: decPtr("6500"),
	}); err != nil {
		t.Fatalf("SettleChit: %v", err)
	}

	dropped := mustCreateChit(t, ctx, customer.ID, "5500", 11)
	if _, err := models.UpdateChitStatus(ctx, dropped.ID, models.ChitStatusDefaulted); err != nil {
		t.Fatalf("UpdateChitStatus: %v", err)
	}

	now := time.Now()
	stats, err := models.ChitSummaryStats(ctx, now)
	if err != nil {
		t.Fatalf("ChitSummaryStats: %v", err)
	}
	if stats.TotalChits != 3 || stats.ActiveChits != 1 || stats.SettledChits != 1 || stats.DefaultedChits != 1 {
		t.Fatalf("unexpected counts %+v", stats)
	}
	if !stats.TotalChitAmount.Equal(dec("22500")) {
		t.Fatalf("expected total amount 22500, got %s", stats.TotalChitAmount)
	}
	if !stats.TotalCollected.Equal(dec("8000")) {
		t.Fatalf("expected collected 8000, got %s", stats.TotalCollected)
	}
	if !stats.TotalSettledAmount.Equal(dec("6500")) {
		t.Fatalf("expected settled 6500, got %s", stats.TotalSettledAmount)
	}
	if stats.OverdueChits != 1 {
		t.Fatalf("expected the active chit to be overdue, got %d", stats.OverdueChits)
	}
	if len(stats.MonthlyCollections) != 12 {
		t.Fatalf("expected 12 months, got %d", len(stats.MonthlyCollections))
	}
	last := stats.MonthlyCollections[11]
	if last.Month != now.Format("2006-01") || last.PaymentCount != 3 || !last.Amount.Equal(dec("8000")) {
		t.Fatalf("unexpected current month %+v", last)
	}
}

func TestChitSummaryStatsEmptyBook(t *testing.T) {
	ctx := setupTestDB(t)
	stats, err := models.ChitSummaryStats(ctx, time.Now())
	if err != nil {
		t.Fatalf("ChitSummaryStats: %v", err)
	}
	if stats.TotalChits != 0 || !stats.TotalCollected.IsZero() || !stats.TotalGoldWeight.IsZero() {
		t.Fatalf("expected zeroed stats, got %+v", stats)
	}
}

func TestSummarizeDerivedFigures(t *testing.T) {
	start := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	chit := &models.Chit{
		ChitAmount:        dec("12000"),
		TotalInstallments: 12,
		InstallmentAmount: dec("1000"),
		PaidInstallments:  9,
		StartDate:         start,
		NextDueDate:       start.AddDate(0, 10, 0),
		GoldWeight:        dec("1.5"),
		CurrentGoldRate:   dec("6000"),
		Status:            models.ChitStatusActive,
	}
	for i := 1; i <= 9; i++ {
		chit.PaymentHistory = append(chit.PaymentHistory, models.ChitPaymentEntry{InstallmentNumber: i, Amount: dec("1000")})
	}

	now := chit.NextDueDate.Add(72 * time.Hour)
	s := chit.Summarize(now, decimal.Zero)
	if !s.CompletionPercentage.Equal(dec("75")) || s.Progress != models.ChitProgressAlmostComplete {
		t.Fatalf("unexpected progress %s %s", s.CompletionPercentage, s.Progress)
	}
	if !s.RemainingAmount.Equal(dec("3000")) {
		t.Fatalf("expected remaining 3000, got %s", s.RemainingAmount)
	}
	if !s.GoldValue.Equal(dec("9000")) {
		t.Fatalf("expected gold value at the chit's rate, got %s", s.GoldValue)
	}
	if !s.IsOverdue || s.OverdueDays != 3 {
		t.Fatalf("expected 3 days overdue, got %v %d", s.IsOverdue, s.OverdueDays)
	}

	s = chit.Summarize(start, dec("7000"))
	if !s.GoldValue.Equal(dec("10500")) || s.IsOverdue {
		t.Fatalf("unexpected valuation %s overdue=%v", s.GoldValue, s.IsOverdue)
	}

	chit.Status = models.ChitStatusCompleted
	if chit.Summarize(now, decimal.Zero).IsOverdue {
		t.Fatalf("only active chits can be overdue")
	}

	fresh := &models.Chit{ChitAmount: dec("1000"), TotalInstallments: 10, Status: models.ChitStatusActive, NextDueDate: now.Add(time.Hour)}
	if p := fresh.Summarize(now, decimal.Zero).Progress; p != models.ChitProgressNotStarted {
		t.Fatalf("expected not_started, got %s", p)
	}
}

func TestScheduleMarksPaidInstallments(t *testing.T) {
	start := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	chit := &models.Chit{
		TotalInstallments: 3,
		InstallmentAmount: dec("1000"),
		PaidInstallments:  1,
		StartDate:         start,
		PaymentHistory: datatypes.JSONSlice[models.ChitPaymentEntry]{
			{InstallmentNumber: 1, Amount: dec("1000"), ReceiptNumber: "RC2025000001"},
		},
	}
	schedule := chit.Schedule()
	if len(schedule) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(schedule))
	}
	if !schedule[0].IsPaid || schedule[0].Payment == nil || schedule[0].Payment.ReceiptNumber != "RC2025000001" {
		t.Fatalf("first installment should be paid: %+v", schedule[0])
	}
	if schedule[1].IsPaid || schedule[1].Payment != nil {
		t.Fatalf("second installment should be open: %+v", schedule[1])
	}
	// Jan 31 + 3 months normalises past April 30
	if !schedule[2].DueDate.Equal(time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected third due date %s", schedule[2].DueDate)
	}
}
