package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/jewelry_pos/config"
	"github.com/mmdatafocus/jewelry_pos/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Rate is the current price per gram for a (metal, purity) pair.
// Silver has no purity; it is stored as "" and rendered as null.
type Rate struct {
	ID         int             `gorm:"primary_key" json:"id"`
	BusinessId string          `gorm:"size:64;not null;uniqueIndex:idx_rate_business_metal_purity,priority:1" json:"business_id"`
	Metal      Metal           `gorm:"size:10;not null;uniqueIndex:idx_rate_business_metal_purity,priority:2" json:"metal"`
	Purity     string          `gorm:"size:10;not null;default:'';uniqueIndex:idx_rate_business_metal_purity,priority:3" json:"purity"`
	Price      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"price"`
	UpdatedBy  string          `gorm:"size:100" json:"updated_by"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (r Rate) MarshalJSON() ([]byte, error) {
	type rateAlias Rate
	var purity *string
	if r.Purity != "" {
		purity = &r.Purity
	}
	return json.Marshal(struct {
		rateAlias
		Purity *string `json:"purity"`
	}{rateAlias(r), purity})
}

type NewRate struct {
	Metal  Metal           `json:"metal" binding:"required"`
	Purity *string         `json:"purity"`
	Price  decimal.Decimal `json:"price"`
}

type SetRateResult struct {
	Rate            *Rate `json:"rate"`
	UpdatedProducts int64 `json:"updated_products"`
}

/*
caches:
	Rate:$businessId
*/

func rateCacheKey(businessId string) string {
	return "Rate:" + businessId
}

// NormalizePurity maps the requested purity onto the stored value:
// silver has none, gold falls back to 22K.
func NormalizePurity(metal Metal, purity *string) string {
	if metal == MetalSilver {
		return ""
	}
	if purity == nil {
		return Purity22K
	}
	p := strings.ToUpper(strings.TrimSpace(*purity))
	if !IsValidGoldPurity(p) {
		return Purity22K
	}
	return p
}

// ComputeSalePrice = round(w*p + w*p*wastage/100 + making + stone)
func ComputeSalePrice(weight, rate, wastagePercent, makingCharges, stonePrice decimal.Decimal) decimal.Decimal {
	metalValue := weight.Mul(rate)
	wastage := metalValue.Mul(wastagePercent).Div(decimal.NewFromInt(100))
	return metalValue.Add(wastage).Add(makingCharges).Add(stonePrice).Round(0)
}

func (input *NewRate) validate() error {
	if !input.Metal.IsValid() {
		return utils.NewValidationError("invalid metal")
	}
	if !input.Price.IsPositive() {
		return utils.NewValidationError("price must be greater than 0")
	}
	return nil
}

// SetRate upserts the rate and reprices every active product of that
// metal/purity in the same transaction.
func SetRate(ctx context.Context, input *NewRate) (*SetRateResult, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.ErrBusinessIdRequired
	}
	if err := input.validate(); err != nil {
		return nil, err
	}
	userName, _ := utils.GetUserNameFromContext(ctx)
	purity := NormalizePurity(input.Metal, input.Purity)

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()

	rate := Rate{
		BusinessId: businessId,
		Metal:      input.Metal,
		Purity:     purity,
		Price:      input.Price,
		UpdatedBy:  userName,
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "business_id"}, {Name: "metal"}, {Name: "purity"}},
		DoUpdates: clause.AssignmentColumns([]string{"price", "updated_by", "updated_at"}),
	}).Create(&rate).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	// the conflict path leaves rate.ID unreliable on some drivers
	saved, err := findRate(tx, businessId, input.Metal, purity)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	rate = *saved

	updated, err := repriceProducts(tx, businessId, input.Metal, purity, input.Price)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	description := fmt.Sprintf("%s %s rate set to %s, %d products repriced", input.Metal, purity, input.Price.String(), updated)
	if err := createHistory(tx, HistoryActionUpdate, rate.ID, "rates", nil, rate, description); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := enqueueEvent(tx, EventRateUpdated, AggregateRate, rate.ID, rate); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	if err := config.RemoveRedisKey(ctx, rateCacheKey(businessId)); err != nil {
		config.LogError(config.GetLogger(), "Rate", "SetRate", "clear rate cache", businessId, err)
	}
	return &SetRateResult{Rate: &rate, UpdatedProducts: updated}, nil
}

func repriceProducts(tx *gorm.DB, businessId string, metal Metal, purity string, price decimal.Decimal) (int64, error) {
	var products []*Product
	query := tx.Where("business_id = ? AND metal = ? AND is_active = ?", businessId, metal, true)
	if metal == MetalGold {
		query = query.Where("purity = ?", purity)
	}
	if err := query.Find(&products).Error; err != nil {
		return 0, err
	}

	var updated int64
	for _, p := range products {
		salePrice := ComputeSalePrice(p.Weight, price, p.WastagePercent, p.MakingCharges, p.StonePrice)
		if salePrice.Equal(p.SalePrice) {
			continue
		}
		if err := tx.Model(&Product{}).Where("id = ?", p.ID).Update("sale_price", salePrice).Error; err != nil {
			return 0, err
		}
		updated++
	}
	return updated, nil
}

func GetRates(ctx context.Context) ([]*Rate, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.ErrBusinessIdRequired
	}

	var results []*Rate
	exists, err := config.GetRedisObject(ctx, rateCacheKey(businessId), &results)
	if err != nil {
		config.LogError(config.GetLogger(), "Rate", "GetRates", "read rate cache", businessId, err)
	}
	if exists {
		return results, nil
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Where("business_id = ?", businessId).Order("metal, purity desc").Find(&results).Error; err != nil {
		return nil, err
	}
	if err := config.SetRedisObject(ctx, rateCacheKey(businessId), results, time.Hour); err != nil {
		config.LogError(config.GetLogger(), "Rate", "GetRates", "write rate cache", businessId, err)
	}
	return results, nil
}

func GetRate(ctx context.Context, metal Metal, purity *string) (*Rate, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.ErrBusinessIdRequired
	}
	if !metal.IsValid() {
		return nil, utils.NewValidationError("invalid metal")
	}
	return findRate(config.GetDB().WithContext(ctx), businessId, metal, NormalizePurity(metal, purity))
}

func findRate(tx *gorm.DB, businessId string, metal Metal, purity string) (*Rate, error) {
	var rate Rate
	err := tx.Where("business_id = ? AND metal = ? AND purity = ?", businessId, metal, purity).First(&rate).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rate, nil
}

// CurrentGoldRate reads the board for the purity, falling back to
// DEFAULT_GOLD_RATE when nothing is on file.
func CurrentGoldRate(ctx context.Context, purity string) (decimal.Decimal, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return decimal.Zero, utils.ErrBusinessIdRequired
	}
	return currentMetalRate(config.GetDB().WithContext(ctx), businessId, MetalGold, NormalizePurity(MetalGold, &purity))
}

func currentMetalRate(tx *gorm.DB, businessId string, metal Metal, purity string) (decimal.Decimal, error) {
	rate, err := findRate(tx, businessId, metal, purity)
	if errors.Is(err, utils.ErrorRecordNotFound) {
		if metal == MetalGold {
			return config.DefaultGoldRate(), nil
		}
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return rate.Price, nil
}
