package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SequenceCounter struct {
	ID           int       `gorm:"primary_key" json:"id"`
	BusinessId   string    `gorm:"size:64;not null;uniqueIndex:idx_sequence_business_name,priority:1" json:"business_id"`
	Name         string    `gorm:"size:100;not null;uniqueIndex:idx_sequence_business_name,priority:2" json:"name"`
	CurrentValue int64     `gorm:"not null;default:0" json:"current_value"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// NextSequenceValue increments the (business, name) counter and returns the
// new value. The upsert takes the row lock, so the read that follows inside
// the same transaction sees this caller's increment only.
func NextSequenceValue(tx *gorm.DB, businessId string, name string) (int64, error) {
	counter := SequenceCounter{
		BusinessId:   businessId,
		Name:         name,
		CurrentValue: 1,
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "business_id"}, {Name: "name"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"current_value": gorm.Expr("current_value + 1")}),
	}).Create(&counter).Error
	if err != nil {
		return 0, err
	}

	var value int64
	err = tx.Model(&SequenceCounter{}).
		Where("business_id = ? AND name = ?", businessId, name).
		Select("current_value").
		Scan(&value).Error
	if err != nil {
		return 0, err
	}
	return value, nil
}

// CHIT20250001
func nextChitNumber(tx *gorm.DB, businessId string, now time.Time) (string, error) {
	year := now.Year()
	seq, err := NextSequenceValue(tx, businessId, fmt.Sprintf("chit:%d", year))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("CHIT%d%04d", year, seq), nil
}

// RC2025000012
func nextReceiptNumber(tx *gorm.DB, businessId string, now time.Time) (string, error) {
	year := now.Year()
	seq, err := NextSequenceValue(tx, businessId, fmt.Sprintf("receipt:%d", year))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("RC%d%06d", year, seq), nil
}

// ORD-2025-0001, INV-2025-0001
func nextDocumentNumber(tx *gorm.DB, businessId string, prefix string, sep string, now time.Time) (string, error) {
	year := now.Year()
	seq, err := NextSequenceValue(tx, businessId, fmt.Sprintf("%s:%d", prefix, year))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%s%d%s%04d", prefix, sep, year, sep, seq), nil
}
