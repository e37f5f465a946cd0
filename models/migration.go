package models

import (
	"log"

	"github.com/sruthreads/storefront_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Store{}, &StoreClient{}, &StoreSequence{},
		&User{}, &Address{},
		&Category{}, &Tag{}, &Product{},
		&CartLine{},
		&InventoryMovement{},
		&Coupon{}, &CouponUsage{},
		&Order{}, &OrderLineItem{}, &OrderTimeline{},
		&Payment{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
