package models

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StoreSequence holds one monotonically increasing counter per (store, kind).
// Rows are provisioned when the store is onboarded; callers lock the row so
// two concurrent transactions can never observe the same value.
type StoreSequence struct {
	ID        uint   `gorm:"primary_key" json:"id"`
	StoreId   string `gorm:"size:36;uniqueIndex:idx_store_sequence_kind;not null" json:"store_id"`
	Kind      string `gorm:"size:20;uniqueIndex:idx_store_sequence_kind;not null" json:"kind"`
	LastValue uint64 `gorm:"not null;default:0" json:"last_value"`
}

// NextSequence increments and returns the counter for (storeId, kind) inside
// the caller's transaction. The SELECT ... FOR UPDATE holds the row until the
// surrounding transaction commits or rolls back, so a rollback returns the
// value to the pool and committed values are gapless per store.
func NextSequence(tx *gorm.DB, storeId string, kind SequenceKind) (uint64, error) {
	var seq StoreSequence
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("store_id = ? AND kind = ?", storeId, string(kind)).
		First(&seq).Error
	if err == gorm.ErrRecordNotFound {
		seq = StoreSequence{StoreId: storeId, Kind: string(kind), LastValue: 0}
		if err := tx.Create(&seq).Error; err != nil {
			return 0, err
		}
	} else if err != nil {
		return 0, err
	}

	seq.LastValue++
	if err := tx.Model(&StoreSequence{}).Where("id = ?", seq.ID).
		Update("last_value", seq.LastValue).Error; err != nil {
		return 0, err
	}
	return seq.LastValue, nil
}

// FormatOrderNumber renders a human-facing order number, e.g. ORD-SRU-000123.
func FormatOrderNumber(storeCode string, n uint64) string {
	return fmt.Sprintf("ORD-%s-%06d", storeCode, n)
}

// FormatProductCode renders a generated product code, e.g. PRD-000042.
func FormatProductCode(prefix string, n uint64) string {
	if prefix == "" {
		prefix = "PRD"
	}
	return fmt.Sprintf("%s-%06d", prefix, n)
}
