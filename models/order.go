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

type Order struct {
	ID            int             `gorm:"primary_key" json:"id"`
	BusinessId    string          `gorm:"size:64;not null;uniqueIndex:idx_order_business_number,priority:1" json:"business_id"`
	OrderNumber   string          `gorm:"size:32;not null;uniqueIndex:idx_order_business_number,priority:2" json:"order_number"`
	InvoiceNumber string          `gorm:"size:32;not null;index" json:"invoice_number"`
	CustomerId    int             `gorm:"index;not null;default:0" json:"customer_id"`
	CustomerName  string          `gorm:"size:255" json:"customer_name"`
	Items         []OrderItem     `gorm:"foreignKey:OrderId" json:"items"`
	Payments      []OrderPayment  `gorm:"foreignKey:OrderId" json:"payments"`
	Subtotal      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"subtotal"`
	Discount      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"discount"`
	Total         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total"`
	PaidAmount    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"paid_amount"`
	Balance       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"balance"`
	Status        OrderStatus     `gorm:"size:20;not null;default:'pending';index" json:"status"`
	Notes         string          `gorm:"type:text" json:"notes"`
	CreatedBy     string          `gorm:"size:100" json:"created_by"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type OrderItem struct {
	ID          int             `gorm:"primary_key" json:"id"`
	BusinessId  string          `gorm:"size:64;not null;index" json:"business_id"`
	OrderId     int             `gorm:"index;not null" json:"order_id"`
	ProductId   int             `gorm:"index;not null" json:"product_id"`
	ProductName string          `gorm:"size:255" json:"product_name"`
	Sku         string          `gorm:"size:100" json:"sku"`
	Metal       Metal           `gorm:"size:10" json:"metal"`
	Purity      string          `gorm:"size:10" json:"purity"`
	Weight      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"weight"`
	Rate        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"rate"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_price"`
	LineTotal   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"line_total"`
}

type OrderPayment struct {
	ID         int                `gorm:"primary_key" json:"id"`
	BusinessId string             `gorm:"size:64;not null;index" json:"business_id"`
	OrderId    int                `gorm:"index;not null" json:"order_id"`
	Method     OrderPaymentMethod `gorm:"size:20;not null" json:"method"`
	Amount     decimal.Decimal    `gorm:"type:decimal(20,4);default:0" json:"amount"`
	Reference  string             `gorm:"size:100" json:"reference"`
	// gold exchange
	ExchangeWeight   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"exchange_weight"`
	ExchangePurity   string          `gorm:"size:10" json:"exchange_purity"`
	ExchangeRate     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"exchange_rate"`
	DeductionPercent decimal.Decimal `gorm:"type:decimal(10,4);default:0" json:"deduction_percent"`
	ExchangeValue    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"exchange_value"`
	// chit settlement
	ChitId         int             `gorm:"index;not null;default:0" json:"chit_id"`
	ChitNumber     string          `gorm:"size:32" json:"chit_number"`
	ChitGoldWeight decimal.Decimal `gorm:"type:decimal(20,6);default:0" json:"chit_gold_weight"`
	ChitGoldRate   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"chit_gold_rate"`
	ChitGoldValue  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"chit_gold_value"`
	ExtraAmount    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"extra_amount"`
}

type NewOrder struct {
	CustomerId int               `json:"customer_id"`
	Items      []NewOrderItem    `json:"items" binding:"required"`
	Discount   decimal.Decimal   `json:"discount"`
	Payments   []NewOrderPayment `json:"payments"`
	Notes      string            `json:"notes"`
}

type NewOrderItem struct {
	ProductId int `json:"product_id" binding:"required"`
	Quantity  int `json:"quantity"`
}

type NewGoldExchange struct {
	Weight           decimal.Decimal  `json:"weight"`
	Purity           *string          `json:"purity"`
	Rate             *decimal.Decimal `json:"rate"`
	DeductionPercent decimal.Decimal  `json:"deduction_percent"`
}

type NewOrderPayment struct {
	Method       OrderPaymentMethod `json:"method" binding:"required"`
	Amount       *decimal.Decimal   `json:"amount"`
	Reference    string             `json:"reference"`
	GoldExchange *NewGoldExchange   `json:"gold_exchange"`
	ChitId       int                `json:"chit_id"`
	GoldRate     *decimal.Decimal   `json:"gold_rate"`
}

type OrderFilter struct {
	Pagination
	Status     string `form:"status"`
	CustomerId int    `form:"customer_id"`
	Search     string `form:"search"`
}

// GoldExchangeValue = weight x rate x (1 - deduction%/100)
func GoldExchangeValue(weight, rate, deductionPercent decimal.Decimal) decimal.Decimal {
	factor := decimal.NewFromInt(1).Sub(deductionPercent.Div(hundred))
	return weight.Mul(rate).Mul(factor).Round(2)
}

// ChitSettlementValue values a chit's accumulated gold for an order
// payment. extra is the part of amount the gold does not cover.
func ChitSettlementValue(goldWeight, goldRate, amount decimal.Decimal) (goldValue decimal.Decimal, extra decimal.Decimal) {
	goldValue = goldWeight.Mul(goldRate).Round(2)
	extra = amount.Sub(goldValue)
	if extra.IsNegative() {
		extra = decimal.Zero
	}
	return goldValue, extra
}

func OrderStatusFor(total, paid decimal.Decimal) OrderStatus {
	switch {
	case paid.GreaterThanOrEqual(total):
		return OrderStatusPaid
	case paid.IsPositive():
		return OrderStatusPartial
	}
	return OrderStatusPending
}

func (input *NewOrder) buildItems(ctx context.Context, businessId string) ([]OrderItem, decimal.Decimal, error) {
	if len(input.Items) == 0 {
		return nil, decimal.Zero, utils.NewValidationError("order must have at least one item")
	}
	db := config.GetDB().WithContext(ctx)
	requested := map[int]int{}
	items := make([]OrderItem, 0, len(input.Items))
	subtotal := decimal.Zero
	for _, it := range input.Items {
		if it.Quantity <= 0 {
			return nil, decimal.Zero, utils.NewValidationError("quantity must be greater than 0")
		}
		product, err := utils.FetchModel[Product](ctx, businessId, it.ProductId)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				return nil, decimal.Zero, utils.NewValidationError("product %d not found", it.ProductId)
			}
			return nil, decimal.Zero, err
		}
		if product.IsActive != nil && !*product.IsActive {
			return nil, decimal.Zero, utils.NewValidationError("product %s is not active", product.Sku)
		}
		requested[product.ID] += it.Quantity
		if requested[product.ID] > product.StockQuantity {
			return nil, decimal.Zero, utils.NewValidationError("insufficient stock for %s", product.Sku)
		}
		rate, err := currentMetalRate(db, businessId, product.Metal, product.Purity)
		if err != nil {
			return nil, decimal.Zero, err
		}
		qty := decimal.NewFromInt(int64(it.Quantity))
		lineTotal := product.SalePrice.Mul(qty)
		items = append(items, OrderItem{
			BusinessId:  businessId,
			ProductId:   product.ID,
			ProductName: product.Name,
			Sku:         product.Sku,
			Metal:       product.Metal,
			Purity:      product.Purity,
			Weight:      product.Weight.Mul(qty),
			Rate:        rate,
			Quantity:    it.Quantity,
			UnitPrice:   product.SalePrice,
			LineTotal:   lineTotal,
		})
		subtotal = subtotal.Add(lineTotal)
	}
	return items, subtotal, nil
}

// chitRedeemedByOrder returns the number of a live order already paid
// with the chit, or "" when it is free. Cancelled orders release it.
func chitRedeemedByOrder(db *gorm.DB, businessId string, chitId int) (string, error) {
	var numbers []string
	err := db.Model(&OrderPayment{}).
		Joins("JOIN orders ON orders.id = order_payments.order_id").
		Where("order_payments.business_id = ? AND order_payments.chit_id = ? AND orders.status <> ?", businessId, chitId, OrderStatusCancelled).
		Limit(1).
		Pluck("orders.order_number", &numbers).Error
	if err != nil || len(numbers) == 0 {
		return "", err
	}
	return numbers[0], nil
}

func buildOrderPayment(ctx context.Context, businessId string, in NewOrderPayment) (*OrderPayment, error) {
	if !in.Method.IsValid() {
		return nil, utils.NewValidationError("invalid payment method %s", in.Method)
	}
	if in.Amount != nil && in.Amount.IsNegative() {
		return nil, utils.NewValidationError("payment amount cannot be negative")
	}
	db := config.GetDB().WithContext(ctx)
	payment := OrderPayment{
		BusinessId: businessId,
		Method:     in.Method,
		Reference:  in.Reference,
	}

	switch in.Method {
	case OrderPaymentMethodGoldExchange:
		ge := in.GoldExchange
		if ge == nil || !ge.Weight.IsPositive() {
			return nil, utils.NewValidationError("gold exchange weight must be greater than 0")
		}
		if ge.DeductionPercent.IsNegative() || ge.DeductionPercent.GreaterThan(hundred) {
			return nil, utils.NewValidationError("deduction percent must be between 0 and 100")
		}
		purity := NormalizePurity(MetalGold, ge.Purity)
		rate := decimal.Zero
		if ge.Rate != nil && ge.Rate.IsPositive() {
			rate = *ge.Rate
		} else {
			var err error
			if rate, err = currentMetalRate(db, businessId, MetalGold, purity); err != nil {
				return nil, err
			}
		}
		payment.ExchangeWeight = ge.Weight
		payment.ExchangePurity = purity
		payment.ExchangeRate = rate
		payment.DeductionPercent = ge.DeductionPercent
		payment.ExchangeValue = GoldExchangeValue(ge.Weight, rate, ge.DeductionPercent)
		payment.Amount = payment.ExchangeValue
		if in.Amount != nil {
			payment.Amount = *in.Amount
		}

	case OrderPaymentMethodChitSettlement:
		if in.ChitId <= 0 {
			return nil, utils.NewValidationError("chit is required for chit settlement")
		}
		chit, err := utils.FetchModel[Chit](ctx, businessId, in.ChitId)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				return nil, utils.NewValidationError("chit %d not found", in.ChitId)
			}
			return nil, err
		}
		if chit.Status != ChitStatusCompleted {
			return nil, utils.NewValidationError("chit %s is not completed (status: %s)", chit.ChitNumber, chit.Status)
		}
		redeemed, err := chitRedeemedByOrder(db, businessId, chit.ID)
		if err != nil {
			return nil, err
		}
		if redeemed != "" {
			return nil, utils.NewValidationError("chit %s is already used by order %s", chit.ChitNumber, redeemed)
		}
		rate := decimal.Zero
		if in.GoldRate != nil && in.GoldRate.IsPositive() {
			rate = *in.GoldRate
		} else if rate, err = currentMetalRate(db, businessId, MetalGold, Purity22K); err != nil {
			return nil, err
		}
		amount := chit.GoldWeight.Mul(rate).Round(2)
		if in.Amount != nil {
			amount = *in.Amount
		}
		goldValue, extra := ChitSettlementValue(chit.GoldWeight, rate, amount)
		payment.Amount = amount
		payment.ChitId = chit.ID
		payment.ChitNumber = chit.ChitNumber
		payment.ChitGoldWeight = chit.GoldWeight
		payment.ChitGoldRate = rate
		payment.ChitGoldValue = goldValue
		payment.ExtraAmount = extra

	default:
		if in.Amount == nil {
			return nil, utils.NewValidationError("amount is required for %s payments", in.Method)
		}
		payment.Amount = *in.Amount
	}
	return &payment, nil
}

// CreateOrder prices the items from the catalog, values the payments and
// takes stock. A chit used as payment must be completed and not already
// used by a live order; it is only read, settling it is a separate call.
func CreateOrder(ctx context.Context, input *NewOrder) (*Order, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.ErrBusinessIdRequired
	}
	userName, _ := utils.GetUserNameFromContext(ctx)

	order := Order{
		BusinessId: businessId,
		Notes:      input.Notes,
		CreatedBy:  userName,
	}
	if input.CustomerId > 0 {
		customer, err := utils.FetchModel[Customer](ctx, businessId, input.CustomerId)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				return nil, utils.NewValidationError("customer not found")
			}
			return nil, err
		}
		order.CustomerId = customer.ID
		order.CustomerName = customer.Name
	}

	items, subtotal, err := input.buildItems(ctx, businessId)
	if err != nil {
		return nil, err
	}
	if input.Discount.IsNegative() || input.Discount.GreaterThan(subtotal) {
		return nil, utils.NewValidationError("discount must be between 0 and the subtotal")
	}
	order.Items = items
	order.Subtotal = subtotal
	order.Discount = input.Discount
	order.Total = subtotal.Sub(input.Discount)

	paid := decimal.Zero
	chits := map[int]bool{}
	for _, in := range input.Payments {
		if in.Method == OrderPaymentMethodChitSettlement && in.ChitId > 0 {
			if chits[in.ChitId] {
				return nil, utils.NewValidationError("chit %d is used more than once", in.ChitId)
			}
			chits[in.ChitId] = true
			release, err := utils.ObtainChitLock(ctx, in.ChitId)
			if err != nil {
				return nil, err
			}
			defer release()
		}
		payment, err := buildOrderPayment(ctx, businessId, in)
		if err != nil {
			return nil, err
		}
		order.Payments = append(order.Payments, *payment)
		paid = paid.Add(payment.Amount)
	}
	order.PaidAmount = paid
	order.Balance = order.Total.Sub(paid)
	if order.Balance.IsNegative() {
		order.Balance = decimal.Zero
	}
	order.Status = OrderStatusFor(order.Total, paid)

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	now := time.Now()
	if order.OrderNumber, err = nextDocumentNumber(tx, businessId, "ORD", "-", now); err != nil {
		tx.Rollback()
		return nil, err
	}
	if order.InvoiceNumber, err = nextDocumentNumber(tx, businessId, "INV", "-", now); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Create(&order).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	for _, item := range order.Items {
		if err := takeStock(tx, item.ProductId, item.Quantity); err != nil {
			tx.Rollback()
			return nil, err
		}
	}
	description := fmt.Sprintf("order %s created for %s", order.OrderNumber, order.Total.StringFixed(2))
	if err := createHistory(tx, HistoryActionCreate, order.ID, "orders", nil, order, description); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := enqueueEvent(tx, EventOrderCreated, AggregateOrder, order.ID, order); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func CancelOrder(ctx context.Context, id int) (*Order, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.ErrBusinessIdRequired
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	order, err := utils.FetchModelTx[Order](tx, businessId, id, "Items", "Payments")
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if order.Status == OrderStatusCancelled {
		tx.Rollback()
		return nil, utils.NewValidationError("order %s is already cancelled", order.OrderNumber)
	}
	for _, item := range order.Items {
		if err := returnStock(tx, item.ProductId, item.Quantity); err != nil {
			tx.Rollback()
			return nil, err
		}
	}
	from := order.Status
	if err := tx.Model(order).Update("status", OrderStatusCancelled).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	order.Status = OrderStatusCancelled
	description := fmt.Sprintf("order %s cancelled", order.OrderNumber)
	if err := createHistory(tx, HistoryActionUpdate, order.ID, "orders", map[string]OrderStatus{"status": from}, map[string]OrderStatus{"status": order.Status}, description); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := enqueueEvent(tx, EventOrderCancelled, AggregateOrder, order.ID, order); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return order, nil
}

func GetOrder(ctx context.Context, id int) (*Order, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.ErrBusinessIdRequired
	}
	return utils.FetchModel[Order](ctx, businessId, id, "Items", "Payments")
}

func GetOrders(ctx context.Context, filter OrderFilter) ([]*Order, PageInfo, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, PageInfo{}, utils.ErrBusinessIdRequired
	}
	query := config.GetDB().WithContext(ctx).Model(&Order{}).Where("business_id = ?", businessId)
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.CustomerId > 0 {
		query = query.Where("customer_id = ?", filter.CustomerId)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + search + "%"
		query = query.Where("order_number LIKE ? OR invoice_number LIKE ? OR customer_name LIKE ?", like, like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, PageInfo{}, err
	}
	var results []*Order
	if err := filter.Pagination.scope(query).Preload("Items").Preload("Payments").Order("id DESC").Find(&results).Error; err != nil {
		return nil, PageInfo{}, err
	}
	return results, filter.Pagination.pageInfo(total), nil
}
