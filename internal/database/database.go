package database

import (
	"github.com/ksred/paper-exchange/internal/ledger"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDatabase initializes and returns a new GORM DB connection with the
// audit schema migrated.
func NewDatabase(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	err = db.AutoMigrate(
		&ledger.OrderRecord{},
		&ledger.TransactionRecord{},
	)
	if err != nil {
		return nil, err
	}

	return db, nil
}
