package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/jewelry_pos/config"
	"github.com/mmdatafocus/jewelry_pos/utils"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	DefaultTotalInstallments = 11
	MaxTotalInstallments     = 360
)

// ChitPaymentEntry is the copy of a payment kept on the chit row.
type ChitPaymentEntry struct {
	InstallmentNumber int             `json:"installment_number"`
	PaymentDate       time.Time       `json:"payment_date"`
	Amount            decimal.Decimal `json:"amount"`
	GoldRate          decimal.Decimal `json:"gold_rate"`
	GoldWeight        decimal.Decimal `json:"gold_weight"`
	ReceiptNumber     string          `json:"receipt_number"`
}

// PurchasedItem is the snapshot of goods a purchase settlement paid for.
type PurchasedItem struct {
	ProductId int             `json:"product_id,omitempty"`
	Name      string          `json:"name" binding:"required"`
	Sku       string          `json:"sku"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

type Chit struct {
	ID                    int                                  `gorm:"primary_key" json:"id"`
	BusinessId            string                               `gorm:"size:64;not null;uniqueIndex:idx_chit_business_number,priority:1" json:"business_id"`
	ChitNumber            string                               `gorm:"size:32;not null;uniqueIndex:idx_chit_business_number,priority:2" json:"chit_number"`
	CustomerId            int                                  `gorm:"not null;index" json:"customer_id"`
	CustomerName          string                               `gorm:"size:255" json:"customer_name"`
	CustomerPhone         string                               `gorm:"size:20" json:"customer_phone"`
	ChitAmount            decimal.Decimal                      `gorm:"type:decimal(20,4);default:0" json:"chit_amount"`
	TotalInstallments     int                                  `gorm:"not null" json:"total_installments"`
	InstallmentAmount     decimal.Decimal                      `gorm:"type:decimal(20,4);default:0" json:"installment_amount"`
	PaidInstallments      int                                  `gorm:"not null;default:0" json:"paid_installments"`
	RemainingInstallments int                                  `gorm:"not null;default:0" json:"remaining_installments"`
	StartDate             time.Time                            `gorm:"not null" json:"start_date"`
	EndDate               time.Time                            `gorm:"not null" json:"end_date"`
	NextDueDate           time.Time                            `gorm:"not null;index" json:"next_due_date"`
	PaymentMethod         ChitPaymentMethod                    `gorm:"size:10" json:"payment_method"`
	GoldWeight            decimal.Decimal                      `gorm:"type:decimal(20,6);default:0" json:"gold_weight"`
	GoldPerInstallment    decimal.Decimal                      `gorm:"type:decimal(20,6);default:0" json:"gold_per_installment"`
	CurrentGoldRate       decimal.Decimal                      `gorm:"type:decimal(20,4);default:0" json:"current_gold_rate"`
	Purity                string                               `gorm:"size:10" json:"purity"`
	GoldLastUpdated       *time.Time                           `json:"gold_last_updated"`
	PaymentHistory        datatypes.JSONSlice[ChitPaymentEntry] `json:"payment_history"`
	Status                ChitStatus                           `gorm:"size:20;not null;default:'active';index" json:"status"`
	SettlementType        *SettlementType                      `gorm:"size:32" json:"settlement_type"`
	SettlementAmount      decimal.Decimal                      `gorm:"type:decimal(20,4);default:0" json:"settlement_amount"`
	SettlementDate        *time.Time                           `json:"settlement_date"`
	SettlementGoldRate    decimal.Decimal                      `gorm:"type:decimal(20,4);default:0" json:"settlement_gold_rate"`
	SettlementStatus      *SettlementStatus                    `gorm:"size:20" json:"settlement_status"`
	InvoiceNumber         string                               `gorm:"size:64" json:"invoice_number"`
	PurchasedItems        datatypes.JSONSlice[PurchasedItem]    `json:"purchased_items"`
	Notes                 string                               `gorm:"type:text" json:"notes"`
	Version               int                                  `gorm:"not null;default:1" json:"version"`
	CreatedBy             string                               `gorm:"size:100" json:"created_by"`
	CreatedAt             time.Time                            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time                            `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewChit struct {
	CustomerId        int             `json:"customer_id" binding:"required"`
	ChitNumber        *string         `json:"chit_number"`
	StartDate         time.Time       `json:"start_date" binding:"required"`
	EndDate           *time.Time      `json:"end_date"`
	ChitAmount        decimal.Decimal `json:"chit_amount"`
	TotalInstallments int             `json:"total_installments"`
	Purity            *string         `json:"purity"`
	Notes             string          `json:"notes"`
}

type UpdateChitInput struct {
	Notes   *string    `json:"notes"`
	Purity  *string    `json:"purity"`
	EndDate *time.Time `json:"end_date"`
}

type ChitFilter struct {
	Pagination
	Status      string `form:"status"`
	CustomerId  int    `form:"customer_id"`
	Search      string `form:"search"`
	OverdueOnly bool   `form:"overdue"`
}

// BeforeSave keeps remaining = total - paid on every write.
func (c *Chit) BeforeSave(tx *gorm.DB) error {
	c.syncRemaining()
	return nil
}

func (c *Chit) syncRemaining() {
	c.RemainingInstallments = c.TotalInstallments - c.PaidInstallments
	if c.RemainingInstallments < 0 {
		c.RemainingInstallments = 0
	}
}

// saveChitVersioned writes every column of chit if the row still carries
// the version it was read at. A lost race returns ErrConcurrentModification.
func saveChitVersioned(tx *gorm.DB, chit *Chit) error {
	prev := chit.Version
	chit.Version = prev + 1
	chit.syncRemaining()
	res := tx.Model(chit).
		Where("version = ?", prev).
		Select("*").
		Omit("id", "business_id", "chit_number", "created_at").
		Updates(chit)
	if res.Error != nil {
		chit.Version = prev
		return res.Error
	}
	if res.RowsAffected == 0 {
		chit.Version = prev
		return utils.ErrConcurrentModification
	}
	return nil
}

func (input *NewChit) validate(ctx context.Context, businessId string) error {
	if input.CustomerId <= 0 {
		return utils.NewValidationError("customer is required")
	}
	if input.StartDate.IsZero() {
		return utils.NewValidationError("start date is required")
	}
	if !input.ChitAmount.IsPositive() {
		return utils.NewValidationError("chit amount must be greater than 0")
	}
	if input.TotalInstallments == 0 {
		input.TotalInstallments = DefaultTotalInstallments
	}
	if input.TotalInstallments < 0 {
		return utils.NewValidationError("total installments must be greater than 0")
	}
	if input.TotalInstallments > MaxTotalInstallments {
		return utils.NewValidationError("total installments must not exceed %d", MaxTotalInstallments)
	}
	if input.EndDate != nil && input.EndDate.Before(input.StartDate) {
		return utils.NewValidationError("end date must be after start date")
	}
	if input.ChitNumber != nil {
		number := strings.TrimSpace(*input.ChitNumber)
		if number == "" {
			input.ChitNumber = nil
		} else {
			input.ChitNumber = &number
			if err := utils.ValidateUnique[Chit](ctx, businessId, "chit_number", number, 0); err != nil {
				return utils.NewValidationError("%s", err.Error())
			}
		}
	}
	return nil
}

func CreateChit(ctx context.Context, input *NewChit) (*Chit, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.ErrBusinessIdRequired
	}
	if err := input.validate(ctx, businessId); err != nil {
		return nil, err
	}
	customer, err := utils.FetchModel[Customer](ctx, businessId, input.CustomerId)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, utils.NewValidationError("customer not found")
		}
		return nil, err
	}
	goldRate, err := CurrentGoldRate(ctx, Purity22K)
	if err != nil {
		return nil, err
	}
	userName, _ := utils.GetUserNameFromContext(ctx)

	purity := Purity22K
	if input.Purity != nil && IsValidGoldPurity(strings.ToUpper(*input.Purity)) {
		purity = strings.ToUpper(*input.Purity)
	}
	installmentAmount := input.ChitAmount.Div(decimal.NewFromInt(int64(input.TotalInstallments))).Round(0)
	endDate := utils.AddMonths(input.StartDate, input.TotalInstallments)
	if input.EndDate != nil {
		endDate = *input.EndDate
	}

	chit := Chit{
		BusinessId:         businessId,
		CustomerId:         customer.ID,
		CustomerName:       customer.Name,
		CustomerPhone:      customer.Phone,
		ChitAmount:         input.ChitAmount,
		TotalInstallments:  input.TotalInstallments,
		InstallmentAmount:  installmentAmount,
		StartDate:          input.StartDate,
		EndDate:            endDate,
		NextDueDate:        utils.AddMonths(input.StartDate, 1),
		GoldWeight:         decimal.Zero,
		GoldPerInstallment: installmentAmount.DivRound(goldRate, 6),
		CurrentGoldRate:    goldRate,
		Purity:             purity,
		PaymentHistory:     datatypes.JSONSlice[ChitPaymentEntry]{},
		PurchasedItems:     datatypes.JSONSlice[PurchasedItem]{},
		Status:             ChitStatusActive,
		Notes:              input.Notes,
		Version:            1,
		CreatedBy:          userName,
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if input.ChitNumber != nil {
		chit.ChitNumber = *input.ChitNumber
	} else {
		chit.ChitNumber, err = nextChitNumber(tx, businessId, time.Now())
		if err != nil {
			tx.Rollback()
			return nil, err
		}
	}
	if err := tx.Create(&chit).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	err = appendLedger(tx, businessId, chit.CustomerId, chit.ID, EventChitCreated, ledgerDeltas{
		LedgerMetricTotalChits:      decimal.NewFromInt(1),
		LedgerMetricActiveChits:     decimal.NewFromInt(1),
		LedgerMetricTotalChitAmount: chit.ChitAmount,
	})
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := createHistory(tx, HistoryActionCreate, chit.ID, "chits", nil, chit, fmt.Sprintf("chit %s created for %s", chit.ChitNumber, chit.CustomerName)); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := enqueueEvent(tx, EventChitCreated, AggregateChit, chit.ID, chit); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &chit, nil
}

// UpdateChit changes the free fields only; the chit number, schedule and
// money fields are driven by payments and settlement.
func UpdateChit(ctx context.Context, id int, input *UpdateChitInput) (*Chit, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.ErrBusinessIdRequired
	}
	if input.Purity != nil && !IsValidGoldPurity(strings.ToUpper(*input.Purity)) {
		return nil, utils.NewValidationError("invalid purity")
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	chit, err := utils.FetchModelTx[Chit](tx, businessId, id)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	before := *chit
	if input.Notes != nil {
		chit.Notes = *input.Notes
	}
	if input.Purity != nil {
		chit.Purity = strings.ToUpper(*input.Purity)
	}
	if input.EndDate != nil {
		if input.EndDate.Before(chit.StartDate) {
			tx.Rollback()
			return nil, utils.NewValidationError("end date must be after start date")
		}
		chit.EndDate = *input.EndDate
	}
	if err := saveChitVersioned(tx, chit); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := createHistory(tx, HistoryActionUpdate, chit.ID, "chits", before, chit, fmt.Sprintf("chit %s updated", chit.ChitNumber)); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := enqueueEvent(tx, EventChitUpdated, AggregateChit, chit.ID, chit); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return chit, nil
}

func isAllowedLateralTransition(from, to ChitStatus) bool {
	switch {
	case from == to:
		return true
	case from == ChitStatusActive && (to == ChitStatusDefaulted || to == ChitStatusCancelled):
		return true
	case (from == ChitStatusDefaulted || from == ChitStatusCancelled) && to == ChitStatusActive:
		return true
	}
	return false
}

// UpdateChitStatus moves a chit between active and its lateral exits.
// completed and settled are reached through payments and settlement only.
func UpdateChitStatus(ctx context.Context, id int, status ChitStatus) (*Chit, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.ErrBusinessIdRequired
	}
	if !status.IsValid() {
		return nil, utils.NewValidationError("invalid status")
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	chit, err := utils.FetchModelTx[Chit](tx, businessId, id)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if chit.Status == status {
		tx.Rollback()
		return chit, nil
	}
	if !isAllowedLateralTransition(chit.Status, status) {
		tx.Rollback()
		return nil, utils.NewValidationError("cannot change chit status from %s to %s", chit.Status, status)
	}

	from := chit.Status
	chit.Status = status
	if err := saveChitVersioned(tx, chit); err != nil {
		tx.Rollback()
		return nil, err
	}

	activeDelta := decimal.NewFromInt(-1)
	if status == ChitStatusActive {
		activeDelta = decimal.NewFromInt(1)
	}
	if err := appendLedger(tx, businessId, chit.CustomerId, chit.ID, EventChitStatusChanged, ledgerDeltas{LedgerMetricActiveChits: activeDelta}); err != nil {
		tx.Rollback()
		return nil, err
	}
	description := fmt.Sprintf("chit %s status changed from %s to %s", chit.ChitNumber, from, status)
	if err := createHistory(tx, HistoryActionUpdate, chit.ID, "chits", map[string]ChitStatus{"status": from}, map[string]ChitStatus{"status": status}, description); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := enqueueEvent(tx, EventChitStatusChanged, AggregateChit, chit.ID, map[string]interface{}{"from": from, "to": status, "chit_number": chit.ChitNumber}); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return chit, nil
}

// DeleteChit removes the chit and its payments and appends ledger rows
// cancelling whatever the chit had contributed to the customer's figures.
func DeleteChit(ctx context.Context, id int) (*Chit, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.ErrBusinessIdRequired
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	chit, err := utils.FetchModelTx[Chit](tx, businessId, id)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	res := tx.Where("business_id = ? AND chit_id = ?", businessId, chit.ID).Delete(&ChitPayment{})
	if res.Error != nil {
		tx.Rollback()
		return nil, res.Error
	}
	deletedPayments := res.RowsAffected

	res = tx.Where("version = ?", chit.Version).Delete(chit)
	if res.Error != nil {
		tx.Rollback()
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		return nil, utils.ErrConcurrentModification
	}
	if err := reverseChitLedger(tx, businessId, chit.CustomerId, chit.ID, EventChitDeleted); err != nil {
		tx.Rollback()
		return nil, err
	}
	description := fmt.Sprintf("chit %s deleted with %d payments", chit.ChitNumber, deletedPayments)
	if err := createHistory(tx, HistoryActionDelete, chit.ID, "chits", chit, nil, description); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := enqueueEvent(tx, EventChitDeleted, AggregateChit, chit.ID, chit); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return chit, nil
}

func GetChit(ctx context.Context, id int) (*Chit, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.ErrBusinessIdRequired
	}
	return utils.FetchModel[Chit](ctx, businessId, id)
}

func chitListQuery(ctx context.Context, businessId string, filter ChitFilter) *gorm.DB {
	query := config.GetDB().WithContext(ctx).Model(&Chit{}).Where("business_id = ?", businessId)
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.CustomerId > 0 {
		query = query.Where("customer_id = ?", filter.CustomerId)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + search + "%"
		query = query.Where("chit_number LIKE ? OR customer_name LIKE ? OR customer_phone LIKE ?", like, like, like)
	}
	if filter.OverdueOnly {
		query = query.Where("status = ? AND next_due_date < ?", ChitStatusActive, time.Now().UTC())
	}
	return query
}

func GetChits(ctx context.Context, filter ChitFilter) ([]*Chit, PageInfo, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, PageInfo{}, utils.ErrBusinessIdRequired
	}
	query := chitListQuery(ctx, businessId, filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, PageInfo{}, err
	}
	var results []*Chit
	if err := filter.Pagination.scope(query).Order("id DESC").Find(&results).Error; err != nil {
		return nil, PageInfo{}, err
	}
	return results, filter.Pagination.pageInfo(total), nil
}

// AllChits returns every chit matching filter without paging (exports).
func AllChits(ctx context.Context, filter ChitFilter) ([]*Chit, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.ErrBusinessIdRequired
	}
	var results []*Chit
	if err := chitListQuery(ctx, businessId, filter).Order("id").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// GetOverdueChits lists active chits whose next due date has passed,
// most overdue first.
func GetOverdueChits(ctx context.Context) ([]*Chit, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.ErrBusinessIdRequired
	}
	var results []*Chit
	err := chitListQuery(ctx, businessId, ChitFilter{OverdueOnly: true}).
		Order("next_due_date").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func GetCustomerChits(ctx context.Context, customerId int) ([]*Chit, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.ErrBusinessIdRequired
	}
	if err := utils.ValidateResourceId[Customer](ctx, businessId, customerId); err != nil {
		return nil, err
	}
	var results []*Chit
	err := chitListQuery(ctx, businessId, ChitFilter{CustomerId: customerId}).
		Order("id DESC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
