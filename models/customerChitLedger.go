package models

import (
	"context"
	"sort"
	"time"

	"github.com/mmdatafocus/jewelry_pos/config"
	"github.com/mmdatafocus/jewelry_pos/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	LedgerMetricTotalChits      = "total_chits"
	LedgerMetricActiveChits     = "active_chits"
	LedgerMetricCompletedChits  = "completed_chits"
	LedgerMetricSettledChits    = "settled_chits"
	LedgerMetricTotalChitAmount = "total_chit_amount"
	LedgerMetricTotalChitPaid   = "total_chit_paid"
)

// CustomerChitLedger is append-only. A customer's chit figures are the sum
// of their rows per metric; nothing is ever updated in place.
type CustomerChitLedger struct {
	ID         int             `gorm:"primary_key" json:"id"`
	BusinessId string          `gorm:"size:64;not null;index:idx_ccl_business_customer,priority:1" json:"business_id"`
	CustomerId int             `gorm:"not null;index:idx_ccl_business_customer,priority:2" json:"customer_id"`
	ChitId     int             `gorm:"not null;index" json:"chit_id"`
	Metric     string          `gorm:"size:32;not null" json:"metric"`
	Delta      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"delta"`
	Reason     string          `gorm:"size:64;not null" json:"reason"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type CustomerChitStats struct {
	CustomerId      int             `json:"customer_id"`
	TotalChits      int64           `json:"total_chits"`
	ActiveChits     int64           `json:"active_chits"`
	CompletedChits  int64           `json:"completed_chits"`
	SettledChits    int64           `json:"settled_chits"`
	TotalChitAmount decimal.Decimal `json:"total_chit_amount"`
	TotalChitPaid   decimal.Decimal `json:"total_chit_paid"`
}

type ledgerDeltas map[string]decimal.Decimal

func appendLedger(tx *gorm.DB, businessId string, customerId int, chitId int, reason string, deltas ledgerDeltas) error {
	metrics := make([]string, 0, len(deltas))
	for metric, delta := range deltas {
		if !delta.IsZero() {
			metrics = append(metrics, metric)
		}
	}
	if len(metrics) == 0 {
		return nil
	}
	sort.Strings(metrics)

	rows := make([]CustomerChitLedger, 0, len(metrics))
	for _, metric := range metrics {
		rows = append(rows, CustomerChitLedger{
			BusinessId: businessId,
			CustomerId: customerId,
			ChitId:     chitId,
			Metric:     metric,
			Delta:      deltas[metric],
			Reason:     reason,
		})
	}
	return tx.Create(&rows).Error
}

type metricTotal struct {
	Metric string
	Total  decimal.Decimal
}

// reverseChitLedger appends rows cancelling the chit's net contribution.
func reverseChitLedger(tx *gorm.DB, businessId string, customerId int, chitId int, reason string) error {
	var totals []metricTotal
	err := tx.Model(&CustomerChitLedger{}).
		Select("metric, COALESCE(SUM(delta), 0) AS total").
		Where("business_id = ? AND chit_id = ?", businessId, chitId).
		Group("metric").
		Scan(&totals).Error
	if err != nil {
		return err
	}
	deltas := ledgerDeltas{}
	for _, t := range totals {
		deltas[t.Metric] = t.Total.Neg()
	}
	return appendLedger(tx, businessId, customerId, chitId, reason, deltas)
}

func GetCustomerChitStats(ctx context.Context, customerId int) (*CustomerChitStats, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.ErrBusinessIdRequired
	}
	if err := utils.ValidateResourceId[Customer](ctx, businessId, customerId); err != nil {
		return nil, err
	}

	var totals []metricTotal
	err := config.GetDB().WithContext(ctx).Model(&CustomerChitLedger{}).
		Select("metric, COALESCE(SUM(delta), 0) AS total").
		Where("business_id = ? AND customer_id = ?", businessId, customerId).
		Group("metric").
		Scan(&totals).Error
	if err != nil {
		return nil, err
	}

	stats := CustomerChitStats{CustomerId: customerId}
	for _, t := range totals {
		switch t.Metric {
		case LedgerMetricTotalChits:
			stats.TotalChits = t.Total.IntPart()
		case LedgerMetricActiveChits:
			stats.ActiveChits = t.Total.IntPart()
		case LedgerMetricCompletedChits:
			stats.CompletedChits = t.Total.IntPart()
		case LedgerMetricSettledChits:
			stats.SettledChits = t.Total.IntPart()
		case LedgerMetricTotalChitAmount:
			stats.TotalChitAmount = t.Total
		case LedgerMetricTotalChitPaid:
			stats.TotalChitPaid = t.Total
		}
	}
	return &stats, nil
}
