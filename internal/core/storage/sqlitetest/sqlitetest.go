// Package sqlitetest opens throwaway in-memory databases carrying the gorm
// models, for repository and handler tests.
package sqlitetest

import (
	"fmt"

	inventoryDatamodel "github.com/frahmantamala/inventory-checkout/internal/core/datamodel/inventory"
	orderDatamodel "github.com/frahmantamala/inventory-checkout/internal/core/datamodel/order"
	rbacDatamodel "github.com/frahmantamala/inventory-checkout/internal/core/datamodel/rbac"
	userDatamodel "github.com/frahmantamala/inventory-checkout/internal/core/datamodel/user"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open returns a fresh database. The pool is pinned to one connection because
// every sqlite :memory: connection is a separate database.
func Open() (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open("file::memory:?_foreign_keys=on"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&rbacDatamodel.Role{},
		&rbacDatamodel.Permission{},
		&rbacDatamodel.RolePermission{},
		&userDatamodel.User{},
		&inventoryDatamodel.Item{},
		&orderDatamodel.Order{},
		&orderDatamodel.OrderItem{},
	); err != nil {
		return nil, fmt.Errorf("automigrate: %w", err)
	}
	return db, nil
}
