package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/jewelry_pos/config"
	"github.com/mmdatafocus/jewelry_pos/utils"
	"github.com/shopspring/decimal"
)

type MonthlyCollection struct {
	Month        string          `json:"month"`
	Amount       decimal.Decimal `json:"amount"`
	PaymentCount int             `json:"payment_count"`
}

type ChitStats struct {
	TotalChits         int64               `json:"total_chits"`
	ActiveChits        int64               `json:"active_chits"`
	CompletedChits     int64               `json:"completed_chits"`
	SettledChits       int64               `json:"settled_chits"`
	DefaultedChits     int64               `json:"defaulted_chits"`
	CancelledChits     int64               `json:"cancelled_chits"`
	OverdueChits       int64               `json:"overdue_chits"`
	TotalChitAmount    decimal.Decimal     `json:"total_chit_amount"`
	TotalCollected     decimal.Decimal     `json:"total_collected"`
	TotalGoldWeight    decimal.Decimal     `json:"total_gold_weight"`
	TotalSettledAmount decimal.Decimal     `json:"total_settled_amount"`
	MonthlyCollections []MonthlyCollection `json:"monthly_collections"`
}

type statusCount struct {
	Status ChitStatus
	Count  int64
}

// ChitSummaryStats aggregates the chit book at time now. The monthly
// series covers the 12 calendar months ending with now's month.
func ChitSummaryStats(ctx context.Context, now time.Time) (*ChitStats, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.ErrBusinessIdRequired
	}
	db := config.GetDB().WithContext(ctx)
	stats := ChitStats{}

	var counts []statusCount
	err := db.Model(&Chit{}).
		Select("status, COUNT(*) AS count").
		Where("business_id = ?", businessId).
		Group("status").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	for _, c := range counts {
		stats.TotalChits += c.Count
		switch c.Status {
		case ChitStatusActive:
			stats.ActiveChits = c.Count
		case ChitStatusCompleted:
			stats.CompletedChits = c.Count
		case ChitStatusSettled:
			stats.SettledChits = c.Count
		case ChitStatusDefaulted:
			stats.DefaultedChits = c.Count
		case ChitStatusCancelled:
			stats.CancelledChits = c.Count
		}
	}

	err = db.Model(&Chit{}).
		Select("COALESCE(SUM(chit_amount), 0)").
		Where("business_id = ?", businessId).
		Scan(&stats.TotalChitAmount).Error
	if err != nil {
		return nil, err
	}
	err = db.Model(&Chit{}).
		Select("COALESCE(SUM(gold_weight), 0)").
		Where("business_id = ? AND status IN ?", businessId, []ChitStatus{ChitStatusActive, ChitStatusCompleted}).
		Scan(&stats.TotalGoldWeight).Error
	if err != nil {
		return nil, err
	}
	err = db.Model(&Chit{}).
		Select("COALESCE(SUM(settlement_amount), 0)").
		Where("business_id = ? AND status = ?", businessId, ChitStatusSettled).
		Scan(&stats.TotalSettledAmount).Error
	if err != nil {
		return nil, err
	}
	err = db.Model(&Chit{}).
		Where("business_id = ? AND status = ? AND next_due_date < ?", businessId, ChitStatusActive, now).
		Count(&stats.OverdueChits).Error
	if err != nil {
		return nil, err
	}
	if stats.TotalCollected, err = sumCompletedPayments(db, businessId); err != nil {
		return nil, err
	}

	if stats.MonthlyCollections, err = monthlyCollections(ctx, businessId, now); err != nil {
		return nil, err
	}
	return &stats, nil
}

// buckets are built in Go so the query stays portable across SQL engines
func monthlyCollections(ctx context.Context, businessId string, now time.Time) ([]MonthlyCollection, error) {
	first := utils.StartOfMonth(now).AddDate(0, -11, 0)

	var payments []*ChitPayment
	err := config.GetDB().WithContext(ctx).
		Select("amount", "payment_date").
		Where("business_id = ? AND status = ? AND payment_date >= ?", businessId, ChitPaymentStatusCompleted, first).
		Find(&payments).Error
	if err != nil {
		return nil, err
	}

	series := make([]MonthlyCollection, 12)
	index := make(map[string]int, 12)
	for i := 0; i < 12; i++ {
		month := first.AddDate(0, i, 0).Format("2006-01")
		series[i] = MonthlyCollection{Month: month, Amount: decimal.Zero}
		index[month] = i
	}
	for _, p := range payments {
		i, ok := index[p.PaymentDate.In(now.Location()).Format("2006-01")]
		if !ok {
			continue
		}
		series[i].Amount = series[i].Amount.Add(p.Amount)
		series[i].PaymentCount++
	}
	return series, nil
}
