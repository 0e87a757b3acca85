package store

import (
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/go-realmgate/realmgate/internal/models"
)

// Store wraps the persistence engine. All queries in this package are
// single-row, independent transactions; no cross-entity atomicity is
// required beyond what each method does itself.
type Store struct {
	db *gorm.DB
}

func New(driver, dsn string) (*Store, error) {
	dialector, err := openDialector(driver, dsn)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	// Auto migrate
	if err := db.AutoMigrate(
		&models.Realm{},
		&models.User{},
		&models.CustomProfileField{},
		&models.CustomProfileValue{},
		&models.Confirmation{},
		&models.MultiuseInvite{},
	); err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Health verifies database connectivity.
func (s *Store) Health() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
