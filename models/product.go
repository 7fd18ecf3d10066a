package models

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/jewelry_pos/config"
	"github.com/mmdatafocus/jewelry_pos/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Product struct {
	ID             int             `gorm:"primary_key" json:"id"`
	BusinessId     string          `gorm:"size:64;not null;uniqueIndex:idx_product_business_sku,priority:1" json:"business_id"`
	Name           string          `gorm:"size:255;not null" json:"name"`
	Sku            string          `gorm:"size:100;not null;uniqueIndex:idx_product_business_sku,priority:2" json:"sku"`
	Category       string          `gorm:"size:100;index" json:"category"`
	Metal          Metal           `gorm:"size:10;not null;index" json:"metal"`
	Purity         string          `gorm:"size:10" json:"purity"`
	Weight         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"weight"`
	WastagePercent decimal.Decimal `gorm:"type:decimal(10,4);default:0" json:"wastage_percent"`
	MakingCharges  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"making_charges"`
	StonePrice     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"stone_price"`
	SalePrice      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"sale_price"`
	StockQuantity  int             `gorm:"not null;default:0" json:"stock_quantity"`
	Description    string          `gorm:"type:text" json:"description"`
	IsActive       *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProduct struct {
	Name           string           `json:"name" binding:"required"`
	Sku            string           `json:"sku" binding:"required"`
	Category       string           `json:"category"`
	Metal          Metal            `json:"metal" binding:"required"`
	Purity         *string          `json:"purity"`
	Weight         decimal.Decimal  `json:"weight"`
	WastagePercent decimal.Decimal  `json:"wastage_percent"`
	MakingCharges  decimal.Decimal  `json:"making_charges"`
	StonePrice     decimal.Decimal  `json:"stone_price"`
	SalePrice      *decimal.Decimal `json:"sale_price"`
	StockQuantity  int              `json:"stock_quantity"`
	Description    string           `json:"description"`
	IsActive       *bool            `json:"is_active"`
}

type ProductFilter struct {
	Pagination
	Search   string `form:"search"`
	Category string `form:"category"`
	Metal    string `form:"metal"`
	InStock  bool   `form:"in_stock"`
}

func (input *NewProduct) validate(ctx context.Context, businessId string, id int) error {
	if id > 0 {
		if err := utils.ValidateResourceId[Product](ctx, businessId, id); err != nil {
			return err
		}
	}
	input.Sku = strings.TrimSpace(input.Sku)
	if err := utils.ValidateUnique[Product](ctx, businessId, "sku", input.Sku, id); err != nil {
		return utils.NewValidationError("%s", err.Error())
	}
	if !input.Metal.IsValid() {
		return utils.NewValidationError("invalid metal")
	}
	if !input.Weight.IsPositive() {
		return utils.NewValidationError("weight must be greater than 0")
	}
	if input.WastagePercent.IsNegative() || input.MakingCharges.IsNegative() || input.StonePrice.IsNegative() {
		return utils.NewValidationError("charges cannot be negative")
	}
	if input.SalePrice != nil && input.SalePrice.IsNegative() {
		return utils.NewValidationError("sale price cannot be negative")
	}
	if input.StockQuantity < 0 {
		return utils.NewValidationError("stock quantity cannot be negative")
	}
	return nil
}

func (input *NewProduct) salePrice(ctx context.Context, businessId string, purity string) (decimal.Decimal, error) {
	if input.SalePrice != nil {
		return *input.SalePrice, nil
	}
	rate, err := currentMetalRate(config.GetDB().WithContext(ctx), businessId, input.Metal, purity)
	if err != nil {
		return decimal.Zero, err
	}
	return ComputeSalePrice(input.Weight, rate, input.WastagePercent, input.MakingCharges, input.StonePrice), nil
}

func CreateProduct(ctx context.Context, input *NewProduct) (*Product, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.ErrBusinessIdRequired
	}
	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}
	purity := NormalizePurity(input.Metal, input.Purity)
	salePrice, err := input.salePrice(ctx, businessId, purity)
	if err != nil {
		return nil, err
	}

	product := Product{
		BusinessId:     businessId,
		Name:           input.Name,
		Sku:            input.Sku,
		Category:       input.Category,
		Metal:          input.Metal,
		Purity:         purity,
		Weight:         input.Weight,
		WastagePercent: input.WastagePercent,
		MakingCharges:  input.MakingCharges,
		StonePrice:     input.StonePrice,
		SalePrice:      salePrice,
		StockQuantity:  input.StockQuantity,
		Description:    input.Description,
		IsActive:       utils.NewTrue(),
	}
	if input.IsActive != nil {
		product.IsActive = input.IsActive
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if err := tx.Create(&product).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := createHistory(tx, HistoryActionCreate, product.ID, "products", nil, product, fmt.Sprintf("product %s created", product.Sku)); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func UpdateProduct(ctx context.Context, id int, input *NewProduct) (*Product, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.ErrBusinessIdRequired
	}
	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}
	oldProduct, err := utils.FetchModel[Product](ctx, businessId, id)
	if err != nil {
		return nil, err
	}
	purity := NormalizePurity(input.Metal, input.Purity)
	salePrice, err := input.salePrice(ctx, businessId, purity)
	if err != nil {
		return nil, err
	}

	product := *oldProduct
	product.Name = input.Name
	product.Sku = input.Sku
	product.Category = input.Category
	product.Metal = input.Metal
	product.Purity = purity
	product.Weight = input.Weight
	product.WastagePercent = input.WastagePercent
	product.MakingCharges = input.MakingCharges
	product.StonePrice = input.StonePrice
	product.SalePrice = salePrice
	product.StockQuantity = input.StockQuantity
	product.Description = input.Description
	if input.IsActive != nil {
		product.IsActive = input.IsActive
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if err := tx.Save(&product).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := createHistory(tx, HistoryActionUpdate, product.ID, "products", oldProduct, product, fmt.Sprintf("product %s updated", product.Sku)); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func DeleteProduct(ctx context.Context, id int) (*Product, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.ErrBusinessIdRequired
	}
	result, err := utils.FetchModel[Product](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if err := tx.Delete(result).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := createHistory(tx, HistoryActionDelete, result.ID, "products", result, nil, fmt.Sprintf("product %s deleted", result.Sku)); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return result, nil
}

func GetProduct(ctx context.Context, id int) (*Product, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.ErrBusinessIdRequired
	}
	return utils.FetchModel[Product](ctx, businessId, id)
}

func GetProducts(ctx context.Context, filter ProductFilter) ([]*Product, PageInfo, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, PageInfo{}, utils.ErrBusinessIdRequired
	}

	db := config.GetDB()
	query := db.WithContext(ctx).Model(&Product{}).Where("business_id = ?", businessId)
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + search + "%"
		query = query.Where("name LIKE ? OR sku LIKE ?", like, like)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.Metal != "" {
		query = query.Where("metal = ?", filter.Metal)
	}
	if filter.InStock {
		query = query.Where("stock_quantity > 0")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, PageInfo{}, err
	}
	var results []*Product
	if err := filter.Pagination.scope(query).Order("id DESC").Find(&results).Error; err != nil {
		return nil, PageInfo{}, err
	}
	return results, filter.Pagination.pageInfo(total), nil
}

// GetProductsByIds serves the product loader; ids not found are absent.
func GetProductsByIds(ctx context.Context, ids []int) ([]*Product, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.ErrBusinessIdRequired
	}
	var results []*Product
	err := config.GetDB().WithContext(ctx).Where("business_id = ? AND id IN ?", businessId, ids).Find(&results).Error
	return results, err
}

// takeStock decrements stock only while enough remains.
func takeStock(tx *gorm.DB, productId int, quantity int) error {
	res := tx.Model(&Product{}).
		Where("id = ? AND stock_quantity >= ?", productId, quantity).
		UpdateColumn("stock_quantity", gorm.Expr("stock_quantity - ?", quantity))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.NewValidationError("insufficient stock for product %d", productId)
	}
	return nil
}

func returnStock(tx *gorm.DB, productId int, quantity int) error {
	return tx.Model(&Product{}).
		Where("id = ?", productId).
		UpdateColumn("stock_quantity", gorm.Expr("stock_quantity + ?", quantity)).Error
}
