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
	"gorm.io/gorm"
)

const maxChitPaymentAttempts = 3

// ChitPayment is one installment. Rows are never edited apart from status.
type ChitPayment struct {
	ID                int               `gorm:"primary_key" json:"id"`
	BusinessId        string            `gorm:"size:64;not null;uniqueIndex:idx_chit_payment_business_receipt,priority:1" json:"business_id"`
	ChitId            int               `gorm:"not null;index;uniqueIndex:idx_chit_payment_installment,priority:1" json:"chit_id"`
	CustomerId        int               `gorm:"not null;index" json:"customer_id"`
	ChitNumber        string            `gorm:"size:32" json:"chit_number"`
	CustomerName      string            `gorm:"size:255" json:"customer_name"`
	InstallmentNumber int               `gorm:"not null;uniqueIndex:idx_chit_payment_installment,priority:2" json:"installment_number"`
	Amount            decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"amount"`
	PaymentDate       time.Time         `gorm:"not null;index" json:"payment_date"`
	PaymentMethod     ChitPaymentMethod `gorm:"size:10;not null;index" json:"payment_method"`
	ReceiptNumber     string            `gorm:"size:32;not null;uniqueIndex:idx_chit_payment_business_receipt,priority:2" json:"receipt_number"`
	GoldRate          decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"gold_rate"`
	GoldWeight        decimal.Decimal   `gorm:"type:decimal(20,6);default:0" json:"gold_weight"`
	Purity            string            `gorm:"size:10" json:"purity"`
	CalculatedValue   decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"calculated_value"`
	Status            ChitPaymentStatus `gorm:"size:20;not null;default:'completed';index" json:"status"`
	Notes             string            `gorm:"type:text" json:"notes"`
	CollectedBy       string            `gorm:"size:100" json:"collected_by"`
	CreatedAt         time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewChitPayment struct {
	ChitId            int               `json:"chit_id"`
	Amount            decimal.Decimal   `json:"amount"`
	PaymentMethod     ChitPaymentMethod `json:"payment_method" binding:"required"`
	CurrentGoldRate   decimal.Decimal   `json:"current_gold_rate"`
	InstallmentNumber *int              `json:"installment_number"`
	ReceiptNumber     *string           `json:"receipt_number"`
	PaymentDate       *time.Time        `json:"payment_date"`
	Notes             string            `json:"notes"`
}

type ChitPaymentResult struct {
	Payment *ChitPayment `json:"payment"`
	Chit    *Chit        `json:"chit"`
}

type ChitPaymentFilter struct {
	Pagination
	ChitId        int
	PaymentMethod string
	Status        string
	FromDate      *time.Time
	ToDate        *time.Time
}

func (input *NewChitPayment) validate(ctx context.Context, businessId string) error {
	if !input.Amount.IsPositive() {
		return utils.NewValidationError("amount must be greater than 0")
	}
	if !input.PaymentMethod.IsValid() {
		return utils.NewValidationError("invalid payment method")
	}
	if !input.CurrentGoldRate.IsPositive() {
		return utils.NewValidationError("current gold rate must be greater than 0")
	}
	if input.InstallmentNumber != nil && *input.InstallmentNumber <= 0 {
		return utils.NewValidationError("installment number must be greater than 0")
	}
	if input.ReceiptNumber != nil {
		receipt := strings.TrimSpace(*input.ReceiptNumber)
		if receipt == "" {
			input.ReceiptNumber = nil
			return nil
		}
		input.ReceiptNumber = &receipt
		if err := utils.ValidateUnique[ChitPayment](ctx, businessId, "receipt_number", receipt, 0); err != nil {
			return utils.NewValidationError("%s", err.Error())
		}
	}
	return nil
}

// RecordChitPayment records the next installment of an active chit.
// The chit update and the payment insert commit together; if another
// writer bumped the chit's version in between, the whole attempt is
// rolled back and replayed against the fresh row.
func RecordChitPayment(ctx context.Context, chitId int, input *NewChitPayment) (*ChitPaymentResult, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.ErrBusinessIdRequired
	}
	if err := input.validate(ctx, businessId); err != nil {
		return nil, err
	}

	release, err := utils.ObtainChitLock(ctx, chitId)
	if err != nil {
		return nil, err
	}
	defer release()

	for attempt := 1; attempt <= maxChitPaymentAttempts; attempt++ {
		result, err := recordChitPaymentOnce(ctx, businessId, chitId, input)
		if errors.Is(err, utils.ErrConcurrentModification) {
			config.GetLogger().WithFields(map[string]interface{}{
				"module":  "ChitPayment",
				"chit_id": chitId,
				"attempt": attempt,
			}).Warn("chit version conflict, retrying payment")
			continue
		}
		return result, err
	}
	return nil, utils.ErrConcurrentModification
}

func recordChitPaymentOnce(ctx context.Context, businessId string, chitId int, input *NewChitPayment) (*ChitPaymentResult, error) {
	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()

	chit, err := utils.FetchModelTx[Chit](tx, businessId, chitId)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if chit.Status != ChitStatusActive {
		tx.Rollback()
		return nil, utils.NewValidationError("chit is not active (status: %s)", chit.Status)
	}
	if chit.PaidInstallments >= chit.TotalInstallments {
		tx.Rollback()
		return nil, utils.NewValidationError("all installments are already paid")
	}
	installment := chit.PaidInstallments + 1
	if input.InstallmentNumber != nil && *input.InstallmentNumber != installment {
		tx.Rollback()
		return nil, utils.NewValidationError("invalid installment number: expected %d, got %d", installment, *input.InstallmentNumber)
	}

	now := time.Now().UTC()
	paymentDate := now
	if input.PaymentDate != nil && !input.PaymentDate.IsZero() {
		paymentDate = *input.PaymentDate
	}
	goldWeight := input.Amount.DivRound(input.CurrentGoldRate, 6)

	receipt := ""
	if input.ReceiptNumber != nil {
		receipt = *input.ReceiptNumber
	} else {
		receipt, err = nextReceiptNumber(tx, businessId, now)
		if err != nil {
			tx.Rollback()
			return nil, err
		}
	}
	collectedBy, _ := utils.GetUserNameFromContext(ctx)

	payment := ChitPayment{
		BusinessId:        businessId,
		ChitId:            chit.ID,
		CustomerId:        chit.CustomerId,
		ChitNumber:        chit.ChitNumber,
		CustomerName:      chit.CustomerName,
		InstallmentNumber: installment,
		Amount:            input.Amount,
		PaymentDate:       paymentDate,
		PaymentMethod:     input.PaymentMethod,
		ReceiptNumber:     receipt,
		GoldRate:          input.CurrentGoldRate,
		GoldWeight:        goldWeight,
		Purity:            chit.Purity,
		CalculatedValue:   input.Amount,
		Status:            ChitPaymentStatusCompleted,
		Notes:             input.Notes,
		CollectedBy:       collectedBy,
	}
	before := *chit
	chit.PaidInstallments = installment
	chit.PaymentMethod = input.PaymentMethod
	chit.GoldWeight = chit.GoldWeight.Add(goldWeight)
	chit.CurrentGoldRate = input.CurrentGoldRate
	chit.GoldLastUpdated = &now
	chit.NextDueDate = utils.AddMonths(chit.NextDueDate, 1)
	chit.PaymentHistory = append(chit.PaymentHistory, ChitPaymentEntry{
		InstallmentNumber: installment,
		PaymentDate:       paymentDate,
		Amount:            input.Amount,
		GoldRate:          input.CurrentGoldRate,
		GoldWeight:        goldWeight,
		ReceiptNumber:     receipt,
	})
	completed := chit.PaidInstallments >= chit.TotalInstallments
	if completed {
		chit.Status = ChitStatusCompleted
		chit.EndDate = now
	}
	// versioned update first: a racing payment on this chit fails the CAS,
	// not the installment unique index
	if err := saveChitVersioned(tx, chit); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Create(&payment).Error; err != nil {
		tx.Rollback()
		if utils.IsDuplicateKeyErr(err) && input.ReceiptNumber == nil {
			return nil, utils.ErrConcurrentModification
		}
		return nil, err
	}

	deltas := ledgerDeltas{LedgerMetricTotalChitPaid: input.Amount}
	if completed {
		deltas[LedgerMetricActiveChits] = decimal.NewFromInt(-1)
		deltas[LedgerMetricCompletedChits] = decimal.NewFromInt(1)
	}
	if err := appendLedger(tx, businessId, chit.CustomerId, chit.ID, EventChitPaymentRecorded, deltas); err != nil {
		tx.Rollback()
		return nil, err
	}

	description := fmt.Sprintf("installment %d of chit %s paid, receipt %s", installment, chit.ChitNumber, receipt)
	if err := createHistory(tx, HistoryActionUpdate, chit.ID, "chits", before, chit, description); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := enqueueEvent(tx, EventChitPaymentRecorded, AggregateChit, chit.ID, payment); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &ChitPaymentResult{Payment: &payment, Chit: chit}, nil
}

func GetChitPayment(ctx context.Context, id int) (*ChitPayment, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.ErrBusinessIdRequired
	}
	return utils.FetchModel[ChitPayment](ctx, businessId, id)
}

func GetChitPaymentByReceipt(ctx context.Context, receiptNumber string) (*ChitPayment, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.ErrBusinessIdRequired
	}
	return utils.FetchModelBy[ChitPayment](ctx, businessId, "receipt_number", strings.TrimSpace(receiptNumber))
}

// GetChitPaymentsByChit pages through a chit's payments, newest installment first.
func GetChitPaymentsByChit(ctx context.Context, chitId int, page Pagination) ([]*ChitPayment, PageInfo, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, PageInfo{}, utils.ErrBusinessIdRequired
	}
	if err := utils.ValidateResourceId[Chit](ctx, businessId, chitId); err != nil {
		return nil, PageInfo{}, err
	}
	return listChitPayments(ctx, businessId, ChitPaymentFilter{Pagination: page, ChitId: chitId}, "installment_number DESC")
}

func GetChitPayments(ctx context.Context, filter ChitPaymentFilter) ([]*ChitPayment, PageInfo, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, PageInfo{}, utils.ErrBusinessIdRequired
	}
	return listChitPayments(ctx, businessId, filter, "payment_date DESC, id DESC")
}

// AllChitPayments returns every payment of a chit in installment order (exports).
func AllChitPayments(ctx context.Context, chitId int) ([]*ChitPayment, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.ErrBusinessIdRequired
	}
	var results []*ChitPayment
	err := config.GetDB().WithContext(ctx).
		Where("business_id = ? AND chit_id = ?", businessId, chitId).
		Order("installment_number").
		Find(&results).Error
	return results, err
}

func listChitPayments(ctx context.Context, businessId string, filter ChitPaymentFilter, order string) ([]*ChitPayment, PageInfo, error) {
	query := config.GetDB().WithContext(ctx).Model(&ChitPayment{}).Where("business_id = ?", businessId)
	if filter.ChitId > 0 {
		query = query.Where("chit_id = ?", filter.ChitId)
	}
	if filter.PaymentMethod != "" {
		query = query.Where("payment_method = ?", filter.PaymentMethod)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.FromDate != nil {
		query = query.Where("payment_date >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		query = query.Where("payment_date <= ?", *filter.ToDate)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, PageInfo{}, err
	}
	var results []*ChitPayment
	if err := filter.Pagination.scope(query).Order(order).Find(&results).Error; err != nil {
		return nil, PageInfo{}, err
	}
	return results, filter.Pagination.pageInfo(total), nil
}

// UpdateChitPaymentStatus marks a payment failed or refunded. The chit's
// counters and gold totals are left as they are.
func UpdateChitPaymentStatus(ctx context.Context, id int, status ChitPaymentStatus) (*ChitPayment, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.ErrBusinessIdRequired
	}
	if status != ChitPaymentStatusFailed && status != ChitPaymentStatusRefunded {
		return nil, utils.NewValidationError("payment status can only be changed to failed or refunded")
	}
	payment, err := utils.FetchModel[ChitPayment](ctx, businessId, id)
	if err != nil {
		return nil, err
	}
	if payment.Status == status {
		return payment, nil
	}

	from := payment.Status
	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if err := tx.Model(payment).Update("status", status).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	description := fmt.Sprintf("payment %s status changed from %s to %s", payment.ReceiptNumber, from, status)
	if err := createHistory(tx, HistoryActionUpdate, payment.ID, "chit_payments", map[string]ChitPaymentStatus{"status": from}, map[string]ChitPaymentStatus{"status": status}, description); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	payment.Status = status
	return payment, nil
}

// sumCompletedPayments is shared by stats and the reconcile job.
func sumCompletedPayments(db *gorm.DB, businessId string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := db.Model(&ChitPayment{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("business_id = ? AND status = ?", businessId, ChitPaymentStatusCompleted).
		Scan(&total).Error
	return total, err
}
