package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultGoldRate is used when no gold rate exists on the board.
//
// Set via env:
// - DEFAULT_GOLD_RATE=6000
func DefaultGoldRate() decimal.Decimal {
	v := strings.TrimSpace(os.Getenv("DEFAULT_GOLD_RATE"))
	if v != "" {
		if d, err := decimal.NewFromString(v); err == nil && d.IsPositive() {
			return d
		}
	}
	return decimal.NewFromInt(6000)
}

// PhoneRegion is the default region used when a phone number has no
// country prefix.
func PhoneRegion() string {
	v := strings.ToUpper(strings.TrimSpace(os.Getenv("PHONE_REGION")))
	if v == "" {
		return "IN"
	}
	return v
}

// ChitPaymentLockEnabled toggles the redis lock taken around chit payments.
// The version check on the chit row stays in force either way.
//
// Set via env:
// - CHIT_PAYMENT_LOCK=false
func ChitPaymentLockEnabled() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("CHIT_PAYMENT_LOCK")))
	return !(v == "0" || v == "false" || v == "no" || v == "n")
}

// TokenLifespan is how long a login token stays valid (TOKEN_HOUR_LIFESPAN, default 24).
func TokenLifespan() time.Duration {
	hours, err := strconv.Atoi(strings.TrimSpace(os.Getenv("TOKEN_HOUR_LIFESPAN")))
	if err != nil || hours <= 0 {
		hours = 24
	}
	return time.Duration(hours) * time.Hour
}
