package database

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"rentahome/config"
	"rentahome/models"
)

// Database представляет подключение к базе данных
type Database struct {
	DB *gorm.DB
}

// Close закрывает подключение к базе данных
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Connect устанавливает соединение с базой данных и выполняет миграции
func Connect(cfg *config.Config) (*Database, error) {
	// SQL миграции идут до открытия пула: схема и частичные индексы задаются только ими
	if err := runMigrations(cfg); err != nil {
		return nil, fmt.Errorf("ошибка выполнения SQL миграций: %w", err)
	}

	// Медленные запросы и ошибки пишем в stderr, отсутствие строки ошибкой не считаем
	gormLogger := logger.New(
		log.New(os.Stderr, "[gorm] ", log.LstdFlags),
		logger.Config{
			SlowThreshold:             cfg.DB.SlowQuery,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)

	// TranslateError превращает нарушения уникальных индексов в gorm.ErrDuplicatedKey
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к базе данных: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("ошибка получения пула соединений: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)

	if err := autoMigrate(db); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ошибка автоматической миграции моделей: %w", err)
	}

	return &Database{DB: db}, nil
}

// runMigrations выполняет SQL миграции
func runMigrations(cfg *config.Config) error {
	m, err := migrate.New(cfg.DB.Migrations, cfg.MigrationURL())
	if err != nil {
		return fmt.Errorf("источник миграций %s: %w", cfg.DB.Migrations, err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	version, dirty, err := m.Version()
	if err == nil {
		log.Printf("Схема базы данных: версия %d, dirty=%v", version, dirty)
	}
	return nil
}

// autoMigrate досоздает колонки, которых нет в SQL миграциях
func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Property{},
		&models.Reservation{},
		&models.MonthlyPayment{},
	)
}
