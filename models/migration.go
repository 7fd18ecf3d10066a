package models

import (
	"log"

	"github.com/mmdatafocus/jewelry_pos/config"
)

// AllModels lists every table owned by this service.
func AllModels() []interface{} {
	return []interface{}{
		&User{}, &History{}, &OutboxRecord{}, &SequenceCounter{},
		&Rate{}, &Product{},
		&Customer{}, &CustomerChitLedger{},
		&Chit{}, &ChitPayment{},
		&Order{}, &OrderItem{}, &OrderPayment{},
	}
}

func MigrateTable() {
	db := config.GetDB()

	if err := db.AutoMigrate(AllModels()...); err != nil {
		log.Fatal(err)
	}
}
