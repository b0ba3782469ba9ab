package postgres

import (
	"fmt"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// KVRecord is the single backing table row. Values are JSON blobs keyed by
// the same namespaced keys the SQLite backend uses.
type KVRecord struct {
	Key            string `gorm:"column:key;primaryKey"`
	Value          []byte `gorm:"column:value;not null"`
	UpdatedAtEpoch int64  `gorm:"column:updated_at_epoch;not null;index"`
}

// TableName overrides the GORM default pluralization.
func (KVRecord) TableName() string {
	return "kv"
}

// runMigrations runs all database migrations using gormigrate.
func runMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "001_kv_table",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&KVRecord{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("kv")
			},
		},
	})

	if err := m.Migrate(); err != nil {
		return fmt.Errorf("run gormigrate migrations: %w", err)
	}

	return nil
}
