package models

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/jewelry_pos/config"
	"github.com/mmdatafocus/jewelry_pos/utils"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type NewChitSettlement struct {
	SettlementType     SettlementType   `json:"settlement_type" binding:"required"`
	SettlementAmount   *decimal.Decimal `json:"settlement_amount"`
	SettlementGoldRate *decimal.Decimal `json:"settlement_gold_rate"`
	SettlementDate     *time.Time       `json:"settlement_date"`
	Notes              string           `json:"notes"`
}

type NewPurchaseSettlement struct {
	PurchaseAmount     decimal.Decimal  `json:"purchase_amount"`
	InvoiceNumber      string           `json:"invoice_number" binding:"required"`
	PurchasedItems     []PurchasedItem  `json:"purchased_items"`
	SettlementGoldRate *decimal.Decimal `json:"settlement_gold_rate"`
	SettlementDate     *time.Time       `json:"settlement_date"`
	Notes              string           `json:"notes"`
}

func (input *NewChitSettlement) validate() error {
	if !input.SettlementType.IsValid() {
		return utils.NewValidationError("invalid settlement type")
	}
	if input.SettlementType == SettlementTypePurchaseSettlement {
		return utils.NewValidationError("use the purchase settlement endpoint for purchase settlements")
	}
	if input.SettlementType.IsGoldBased() {
		if input.SettlementGoldRate == nil || !input.SettlementGoldRate.IsPositive() {
			return utils.NewValidationError("settlement gold rate is required for %s settlement", input.SettlementType)
		}
		return nil
	}
	if input.SettlementAmount == nil {
		return utils.NewValidationError("settlement amount is required for %s settlement", input.SettlementType)
	}
	if input.SettlementAmount.IsNegative() {
		return utils.NewValidationError("settlement amount cannot be negative")
	}
	return nil
}

func (input *NewPurchaseSettlement) validate() error {
	input.InvoiceNumber = strings.TrimSpace(input.InvoiceNumber)
	if input.InvoiceNumber == "" {
		return utils.NewValidationError("invoice number is required")
	}
	if !input.PurchaseAmount.IsPositive() {
		return utils.NewValidationError("purchase amount must be greater than 0")
	}
	for i, item := range input.PurchasedItems {
		if strings.TrimSpace(item.Name) == "" {
			return utils.NewValidationError("purchased item %d has no name", i+1)
		}
		if item.Quantity <= 0 {
			return utils.NewValidationError("purchased item %d quantity must be greater than 0", i+1)
		}
		if item.Price.IsNegative() {
			return utils.NewValidationError("purchased item %d price cannot be negative", i+1)
		}
	}
	if input.SettlementGoldRate != nil && input.SettlementGoldRate.IsNegative() {
		return utils.NewValidationError("settlement gold rate cannot be negative")
	}
	return nil
}

// SettleChit closes a completed chit for cash or gold. Gold-based
// settlements are valued at weight x settlement rate; any amount the
// caller sent is ignored.
func SettleChit(ctx context.Context, id int, input *NewChitSettlement) (*Chit, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	return settle(ctx, id, func(chit *Chit) {
		chit.SettlementType = &input.SettlementType
		if input.SettlementType.IsGoldBased() {
			chit.SettlementGoldRate = *input.SettlementGoldRate
			chit.SettlementAmount = chit.GoldWeight.Mul(*input.SettlementGoldRate).Round(2)
		} else {
			chit.SettlementAmount = *input.SettlementAmount
			if input.SettlementGoldRate != nil {
				chit.SettlementGoldRate = *input.SettlementGoldRate
			}
		}
		chit.SettlementDate = input.SettlementDate
		chit.Notes = appendNote(chit.Notes, input.Notes)
	})
}

// SettlePurchase closes a completed chit against a purchase invoice and
// keeps a snapshot of what was bought.
func SettlePurchase(ctx context.Context, id int, input *NewPurchaseSettlement) (*Chit, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	return settle(ctx, id, func(chit *Chit) {
		settlementType := SettlementTypePurchaseSettlement
		chit.SettlementType = &settlementType
		chit.SettlementAmount = input.PurchaseAmount
		if input.SettlementGoldRate != nil {
			chit.SettlementGoldRate = *input.SettlementGoldRate
		}
		chit.SettlementDate = input.SettlementDate
		chit.InvoiceNumber = input.InvoiceNumber
		chit.PurchasedItems = datatypes.JSONSlice[PurchasedItem](input.PurchasedItems)
		chit.Notes = appendNote(chit.Notes, input.Notes)
		chit.Notes = appendNote(chit.Notes, fmt.Sprintf("Settled against purchase invoice %s for %s", input.InvoiceNumber, input.PurchaseAmount.StringFixed(2)))
	})
}

func appendNote(notes string, line string) string {
	line = strings.TrimSpace(line)
	if line == "" {
		return notes
	}
	if strings.TrimSpace(notes) == "" {
		return line
	}
	return notes + "\n" + line
}

func settle(ctx context.Context, id int, apply func(chit *Chit)) (*Chit, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.ErrBusinessIdRequired
	}

	release, err := utils.ObtainChitLock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	chit, err := utils.FetchModelTx[Chit](tx, businessId, id)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if chit.Status != ChitStatusCompleted {
		tx.Rollback()
		return nil, utils.NewValidationError("only completed chits can be settled (status: %s)", chit.Status)
	}

	before := *chit
	apply(chit)
	if chit.SettlementDate == nil || chit.SettlementDate.IsZero() {
		now := time.Now().UTC()
		chit.SettlementDate = &now
	}
	settlementStatus := SettlementStatusCompleted
	chit.SettlementStatus = &settlementStatus
	chit.Status = ChitStatusSettled

	if err := saveChitVersioned(tx, chit); err != nil {
		tx.Rollback()
		return nil, err
	}
	err = appendLedger(tx, businessId, chit.CustomerId, chit.ID, EventChitSettled, ledgerDeltas{
		LedgerMetricCompletedChits: decimal.NewFromInt(-1),
		LedgerMetricSettledChits:   decimal.NewFromInt(1),
	})
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	description := fmt.Sprintf("chit %s settled (%s) for %s", chit.ChitNumber, *chit.SettlementType, chit.SettlementAmount.StringFixed(2))
	if err := createHistory(tx, HistoryActionUpdate, chit.ID, "chits", before, chit, description); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := enqueueEvent(tx, EventChitSettled, AggregateChit, chit.ID, chit); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return chit, nil
}

func UpdateSettlementStatus(ctx context.Context, id int, status SettlementStatus) (*Chit, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.ErrBusinessIdRequired
	}
	if !status.IsValid() {
		return nil, utils.NewValidationError("invalid settlement status")
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	chit, err := utils.FetchModelTx[Chit](tx, businessId, id)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if chit.Status != ChitStatusSettled {
		tx.Rollback()
		return nil, utils.NewValidationError("settlement status can only be changed on settled chits")
	}
	var from SettlementStatus
	if chit.SettlementStatus != nil {
		from = *chit.SettlementStatus
	}
	chit.SettlementStatus = &status
	if err := saveChitVersioned(tx, chit); err != nil {
		tx.Rollback()
		return nil, err
	}
	description := fmt.Sprintf("chit %s settlement status changed from %s to %s", chit.ChitNumber, from, status)
	if err := createHistory(tx, HistoryActionUpdate, chit.ID, "chits", map[string]SettlementStatus{"settlement_status": from}, map[string]SettlementStatus{"settlement_status": status}, description); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return chit, nil
}
