package models

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/jewelry_pos/config"
	"github.com/mmdatafocus/jewelry_pos/utils"
	"gorm.io/gorm"
)

type Customer struct {
	ID         int       `gorm:"primary_key" json:"id"`
	BusinessId string    `gorm:"size:64;not null;uniqueIndex:idx_customer_business_phone,priority:1" json:"business_id"`
	Name       string    `gorm:"size:255;not null;index" json:"name"`
	Phone      string    `gorm:"size:20;not null;uniqueIndex:idx_customer_business_phone,priority:2" json:"phone"`
	Email      string    `gorm:"size:100" json:"email"`
	Address    string    `gorm:"type:text" json:"address"`
	Notes      string    `gorm:"type:text" json:"notes"`
	IsActive   *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCustomer struct {
	Name     string `json:"name" binding:"required"`
	Phone    string `json:"phone" binding:"required"`
	Email    string `json:"email"`
	Address  string `json:"address"`
	Notes    string `json:"notes"`
	IsActive *bool  `json:"is_active"`
}

type CustomerFilter struct {
	Pagination
	Search string `form:"search"`
}

func (input *NewCustomer) validate(ctx context.Context, businessId string, id int) error {
	if id > 0 {
		if err := utils.ValidateResourceId[Customer](ctx, businessId, id); err != nil {
			return err
		}
	}
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return utils.NewValidationError("name is required")
	}
	phone, err := utils.NormalizePhone(input.Phone, config.PhoneRegion())
	if err != nil {
		return utils.NewValidationError("invalid phone number")
	}
	input.Phone = phone
	if err := utils.ValidateUnique[Customer](ctx, businessId, "phone", input.Phone, id); err != nil {
		return utils.NewValidationError("%s", err.Error())
	}
	if input.Email != "" && !utils.IsValidEmail(input.Email) {
		return utils.NewValidationError("invalid email")
	}
	return nil
}

func CreateCustomer(ctx context.Context, input *NewCustomer) (*Customer, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.ErrBusinessIdRequired
	}
	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	customer := Customer{
		BusinessId: businessId,
		Name:       input.Name,
		Phone:      input.Phone,
		Email:      input.Email,
		Address:    input.Address,
		Notes:      input.Notes,
		IsActive:   utils.NewTrue(),
	}
	if input.IsActive != nil {
		customer.IsActive = input.IsActive
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if err := tx.Create(&customer).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := createHistory(tx, HistoryActionCreate, customer.ID, "customers", nil, customer, fmt.Sprintf("customer %s created", customer.Name)); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

// UpdateCustomer also rewrites the name/phone copies held on the
// customer's chits and chit payments.
func UpdateCustomer(ctx context.Context, id int, input *NewCustomer) (*Customer, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.ErrBusinessIdRequired
	}
	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}
	oldCustomer, err := utils.FetchModel[Customer](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	customer := *oldCustomer
	customer.Name = input.Name
	customer.Phone = input.Phone
	customer.Email = input.Email
	customer.Address = input.Address
	customer.Notes = input.Notes
	if input.IsActive != nil {
		customer.IsActive = input.IsActive
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if err := tx.Save(&customer).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if oldCustomer.Name != customer.Name || oldCustomer.Phone != customer.Phone {
		synced, err := SyncChitCustomerSnapshot(tx, &customer)
		if err != nil {
			tx.Rollback()
			return nil, err
		}
		description := fmt.Sprintf("customer %s updated, %d chits resynced", customer.Name, synced)
		if err := createHistory(tx, HistoryActionUpdate, customer.ID, "customers", oldCustomer, customer, description); err != nil {
			tx.Rollback()
			return nil, err
		}
	} else {
		if err := createHistory(tx, HistoryActionUpdate, customer.ID, "customers", oldCustomer, customer, fmt.Sprintf("customer %s updated", customer.Name)); err != nil {
			tx.Rollback()
			return nil, err
		}
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

// SyncChitCustomerSnapshot copies the customer's current name/phone onto
// every chit they own (bumping the chit version) and onto their chit
// payments. Returns the number of chits touched.
func SyncChitCustomerSnapshot(tx *gorm.DB, customer *Customer) (int64, error) {
	res := tx.Model(&Chit{}).
		Where("business_id = ? AND customer_id = ?", customer.BusinessId, customer.ID).
		UpdateColumns(map[string]interface{}{
			"customer_name":  customer.Name,
			"customer_phone": customer.Phone,
			"version":        gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	err := tx.Model(&ChitPayment{}).
		Where("business_id = ? AND customer_id = ?", customer.BusinessId, customer.ID).
		UpdateColumn("customer_name", customer.Name).Error
	if err != nil {
		return 0, err
	}
	return res.RowsAffected, nil
}

func DeleteCustomer(ctx context.Context, id int) (*Customer, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.ErrBusinessIdRequired
	}
	result, err := utils.FetchModel[Customer](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	count, err := utils.ResourceCountWhere[Chit](ctx, businessId, "customer_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, utils.NewValidationError("customer has %d chits and cannot be deleted", count)
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if err := tx.Delete(result).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := createHistory(tx, HistoryActionDelete, result.ID, "customers", result, nil, fmt.Sprintf("customer %s deleted", result.Name)); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return result, nil
}

func GetCustomer(ctx context.Context, id int) (*Customer, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.ErrBusinessIdRequired
	}
	return utils.FetchModel[Customer](ctx, businessId, id)
}

func GetCustomers(ctx context.Context, filter CustomerFilter) ([]*Customer, PageInfo, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, PageInfo{}, utils.ErrBusinessIdRequired
	}

	db := config.GetDB()
	query := db.WithContext(ctx).Model(&Customer{}).Where("business_id = ?", businessId)
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + search + "%"
		query = query.Where("name LIKE ? OR phone LIKE ? OR email LIKE ?", like, like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, PageInfo{}, err
	}
	var results []*Customer
	if err := filter.Pagination.scope(query).Order("name").Find(&results).Error; err != nil {
		return nil, PageInfo{}, err
	}
	return results, filter.Pagination.pageInfo(total), nil
}

// GetCustomersByIds serves the customer loader; ids not found are absent.
func GetCustomersByIds(ctx context.Context, ids []int) ([]*Customer, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.ErrBusinessIdRequired
	}
	var results []*Customer
	err := config.GetDB().WithContext(ctx).Where("business_id = ? AND id IN ?", businessId, ids).Find(&results).Error
	return results, err
}
