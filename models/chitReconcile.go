package models

import (
	"context"
	"fmt"
	"time"

	"github.com/mmdatafocus/jewelry_pos/config"
	"github.com/mmdatafocus/jewelry_pos/utils"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// ChitDrift describes a chit whose rollups disagree with its payment rows.
type ChitDrift struct {
	ChitId            int             `json:"chit_id"`
	ChitNumber        string          `json:"chit_number"`
	Status            ChitStatus      `json:"status"`
	TotalInstallments int             `json:"total_installments"`
	PaidInstallments  int             `json:"paid_installments"`
	PaymentCount      int             `json:"payment_count"`
	HistoryEntries    int             `json:"history_entries"`
	GoldWeight        decimal.Decimal `json:"gold_weight"`
	PaymentGoldWeight decimal.Decimal `json:"payment_gold_weight"`
	Repaired          bool            `json:"repaired"`
}

func (d ChitDrift) String() string {
	return fmt.Sprintf("%s: status=%s paid=%d/%d payments=%d history=%d gold=%s payments_gold=%s",
		d.ChitNumber, d.Status, d.PaidInstallments, d.TotalInstallments, d.PaymentCount, d.HistoryEntries, d.GoldWeight, d.PaymentGoldWeight)
}

// ReconcileChits compares every chit's paid count, gold weight, embedded
// history and active/completed status with its payment rows. Every recorded
// payment counts whatever its status. With repair set, drifted chits are
// rebuilt from their payments.
func ReconcileChits(ctx context.Context, repair bool) ([]ChitDrift, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.ErrBusinessIdRequired
	}
	db := config.GetDB()

	var chits []*Chit
	if err := db.WithContext(ctx).Where("business_id = ?", businessId).Order("id").Find(&chits).Error; err != nil {
		return nil, err
	}

	var drifts []ChitDrift
	for _, chit := range chits {
		var payments []*ChitPayment
		err := db.WithContext(ctx).
			Where("business_id = ? AND chit_id = ?", businessId, chit.ID).
			Order("installment_number").
			Find(&payments).Error
		if err != nil {
			return nil, err
		}

		weight := decimal.Zero
		for _, p := range payments {
			weight = weight.Add(p.GoldWeight)
		}
		if chit.PaidInstallments == len(payments) && len(chit.PaymentHistory) == len(payments) && chit.GoldWeight.Equal(weight) &&
			reconciledStatus(chit.Status, len(payments), chit.TotalInstallments) == chit.Status {
			continue
		}

		drift := ChitDrift{
			ChitId:            chit.ID,
			ChitNumber:        chit.ChitNumber,
			Status:            chit.Status,
			TotalInstallments: chit.TotalInstallments,
			PaidInstallments:  chit.PaidInstallments,
			PaymentCount:      len(payments),
			HistoryEntries:    len(chit.PaymentHistory),
			GoldWeight:        chit.GoldWeight,
			PaymentGoldWeight: weight,
		}
		if repair {
			if err := rebuildChitRollups(ctx, chit.ID, payments); err != nil {
				return drifts, err
			}
			drift.Repaired = true
		}
		drifts = append(drifts, drift)
	}
	return drifts, nil
}

// reconciledStatus moves an active chit with every installment paid to
// completed, and a completed chit missing payments back to active. Other
// statuses are left alone.
func reconciledStatus(status ChitStatus, paid, total int) ChitStatus {
	switch {
	case status == ChitStatusActive && paid >= total:
		return ChitStatusCompleted
	case status == ChitStatusCompleted && paid < total:
		return ChitStatusActive
	}
	return status
}

func rebuildChitRollups(ctx context.Context, chitId int, payments []*ChitPayment) error {
	businessId, _ := utils.GetBusinessIdFromContext(ctx)
	tx := config.GetDB().WithContext(ctx).Begin()

	chit, err := utils.FetchModelTx[Chit](tx, businessId, chitId)
	if err != nil {
		tx.Rollback()
		return err
	}
	before := *chit

	history := make(datatypes.JSONSlice[ChitPaymentEntry], 0, len(payments))
	weight := decimal.Zero
	for _, p := range payments {
		history = append(history, ChitPaymentEntry{
			InstallmentNumber: p.InstallmentNumber,
			PaymentDate:       p.PaymentDate,
			Amount:            p.Amount,
			GoldRate:          p.GoldRate,
			GoldWeight:        p.GoldWeight,
			ReceiptNumber:     p.ReceiptNumber,
		})
		weight = weight.Add(p.GoldWeight)
	}
	chit.PaymentHistory = history
	chit.PaidInstallments = len(payments)
	chit.GoldWeight = weight
	if n := len(payments); n > 0 {
		chit.CurrentGoldRate = payments[n-1].GoldRate
	}
	chit.NextDueDate = utils.AddMonths(chit.StartDate, chit.PaidInstallments+1)

	deltas := ledgerDeltas{}
	switch status := reconciledStatus(chit.Status, chit.PaidInstallments, chit.TotalInstallments); {
	case status == chit.Status:
	case status == ChitStatusCompleted:
		chit.Status = status
		chit.EndDate = time.Now().UTC()
		if n := len(payments); n > 0 {
			chit.EndDate = payments[n-1].PaymentDate
		}
		deltas[LedgerMetricActiveChits] = decimal.NewFromInt(-1)
		deltas[LedgerMetricCompletedChits] = decimal.NewFromInt(1)
	default:
		chit.Status = status
		chit.EndDate = utils.AddMonths(chit.StartDate, chit.TotalInstallments)
		deltas[LedgerMetricActiveChits] = decimal.NewFromInt(1)
		deltas[LedgerMetricCompletedChits] = decimal.NewFromInt(-1)
	}

	if err := saveChitVersioned(tx, chit); err != nil {
		tx.Rollback()
		return err
	}
	if err := appendLedger(tx, businessId, chit.CustomerId, chit.ID, EventChitStatusChanged, deltas); err != nil {
		tx.Rollback()
		return err
	}
	if before.Status != chit.Status {
		if err := enqueueEvent(tx, EventChitStatusChanged, AggregateChit, chit.ID, chit); err != nil {
			tx.Rollback()
			return err
		}
	}
	description := fmt.Sprintf("rollups of chit %s rebuilt from %d payments", chit.ChitNumber, len(payments))
	if err := createHistory(tx, HistoryActionUpdate, chit.ID, "chits", before, chit, description); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}
