package models

import (
	"encoding/json"
	"errors"
)

type ChitStatus string

const (
	ChitStatusActive    ChitStatus = "active"
	ChitStatusCompleted ChitStatus = "completed"
	ChitStatusDefaulted ChitStatus = "defaulted"
	ChitStatusCancelled ChitStatus = "cancelled"
	ChitStatusSettled   ChitStatus = "settled"
)

func (s ChitStatus) IsValid() bool {
	switch s {
	case ChitStatusActive, ChitStatusCompleted, ChitStatusDefaulted, ChitStatusCancelled, ChitStatusSettled:
		return true
	}
	return false
}

type SettlementType string

const (
	SettlementTypeCash               SettlementType = "cash"
	SettlementTypeGold               SettlementType = "gold"
	SettlementTypePartialGold        SettlementType = "partial_gold"
	SettlementTypePurchaseSettlement SettlementType = "purchase_settlement"
	SettlementTypeChitSettlement     SettlementType = "chit_settlement"
)

func (t SettlementType) IsValid() bool {
	switch t {
	case SettlementTypeCash, SettlementTypeGold, SettlementTypePartialGold, SettlementTypePurchaseSettlement, SettlementTypeChitSettlement:
		return true
	}
	return false
}

// gold-based settlements derive the amount from weight x rate
func (t SettlementType) IsGoldBased() bool {
	return t == SettlementTypeGold || t == SettlementTypePartialGold
}

type SettlementStatus string

const (
	SettlementStatusPending   SettlementStatus = "pending"
	SettlementStatusCompleted SettlementStatus = "completed"
	SettlementStatusDisputed  SettlementStatus = "disputed"
)

func (s SettlementStatus) IsValid() bool {
	switch s {
	case SettlementStatusPending, SettlementStatusCompleted, SettlementStatusDisputed:
		return true
	}
	return false
}

type ChitPaymentMethod string

const (
	ChitPaymentMethodCash ChitPaymentMethod = "cash"
	ChitPaymentMethodBank ChitPaymentMethod = "bank"
	ChitPaymentMethodUpi  ChitPaymentMethod = "upi"
	ChitPaymentMethodGold ChitPaymentMethod = "gold"
)

func (m ChitPaymentMethod) IsValid() bool {
	switch m {
	case ChitPaymentMethodCash, ChitPaymentMethodBank, ChitPaymentMethodUpi, ChitPaymentMethodGold:
		return true
	}
	return false
}

type ChitPaymentStatus string

const (
	ChitPaymentStatusPending   ChitPaymentStatus = "pending"
	ChitPaymentStatusCompleted ChitPaymentStatus = "completed"
	ChitPaymentStatusFailed    ChitPaymentStatus = "failed"
	ChitPaymentStatusRefunded  ChitPaymentStatus = "refunded"
)

func (s ChitPaymentStatus) IsValid() bool {
	switch s {
	case ChitPaymentStatusPending, ChitPaymentStatusCompleted, ChitPaymentStatusFailed, ChitPaymentStatusRefunded:
		return true
	}
	return false
}

type Metal string

const (
	MetalGold   Metal = "gold"
	MetalSilver Metal = "silver"
)

// convert input to enum type
func (m *Metal) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("metal must be string")
	}
	switch str {
	case "gold", "Gold", "GOLD":
		*m = MetalGold
	case "silver", "Silver", "SILVER":
		*m = MetalSilver
	default:
		return errors.New("invalid metal")
	}
	return nil
}

func (m Metal) IsValid() bool {
	return m == MetalGold || m == MetalSilver
}

const (
	Purity24K = "24K"
	Purity22K = "22K"
	Purity18K = "18K"
	Purity14K = "14K"
)

func IsValidGoldPurity(purity string) bool {
	switch purity {
	case Purity24K, Purity22K, Purity18K, Purity14K:
		return true
	}
	return false
}

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPartial   OrderStatus = "partial"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusCancelled OrderStatus = "cancelled"
)

type OrderPaymentMethod string

const (
	OrderPaymentMethodCash           OrderPaymentMethod = "cash"
	OrderPaymentMethodCard           OrderPaymentMethod = "card"
	OrderPaymentMethodUpi            OrderPaymentMethod = "upi"
	OrderPaymentMethodBank           OrderPaymentMethod = "bank"
	OrderPaymentMethodGoldExchange   OrderPaymentMethod = "gold_exchange"
	OrderPaymentMethodChitSettlement OrderPaymentMethod = "chit_settlement"
)

func (m OrderPaymentMethod) IsValid() bool {
	switch m {
	case OrderPaymentMethodCash, OrderPaymentMethodCard, OrderPaymentMethodUpi, OrderPaymentMethodBank,
		OrderPaymentMethodGoldExchange, OrderPaymentMethodChitSettlement:
		return true
	}
	return false
}

type UserRole string

const (
	UserRoleAdmin UserRole = "admin"
	UserRoleStaff UserRole = "staff"
)
