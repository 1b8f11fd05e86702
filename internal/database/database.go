package database

import (
	"fmt"
	"log"

	"prediction-settlement/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Connect establishes a connection to the PostgreSQL database
func Connect(dsn string) error {
	var err error

	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Error),
		DisableForeignKeyConstraintWhenMigrating: true,
	})

	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Println("Database connection established successfully")
	return nil
}

// AutoMigrate runs automatic migrations for all models
func AutoMigrate() error {
	// Migrate ledger models first
	ledgerModels := []interface{}{
		&models.Account{},
		&models.Transaction{},
	}

	for _, model := range ledgerModels {
		if err := DB.AutoMigrate(model); err != nil {
			log.Printf("Warning: migration issue for %T: %v", model, err)
		}
	}

	// Migrate game and settlement models
	gameModels := []interface{}{
		&models.PredictionGame{},
		&models.Wager{},
		&models.SettlementRecord{},
	}

	for _, model := range gameModels {
		if err := DB.AutoMigrate(model); err != nil {
			log.Printf("Warning: migration issue for %T: %v", model, err)
		}
	}

	// Migrate pool snapshot models
	poolModels := []interface{}{
		&models.HourlyCategoryAllocation{},
		&models.GamePoolSnapshot{},
	}

	for _, model := range poolModels {
		if err := DB.AutoMigrate(model); err != nil {
			log.Printf("Warning: migration issue for %T: %v", model, err)
		}
	}

	// Migrate money-wave models
	waveModels := []interface{}{
		&models.MoneyWaveRecord{},
		&models.IssuanceRecord{},
		&models.RedistributionRecord{},
		&models.VentureRecord{},
		&models.OrgProfitReport{},
		&models.VentureProposal{},
	}

	for _, model := range waveModels {
		if err := DB.AutoMigrate(model); err != nil {
			log.Printf("Warning: migration issue for %T: %v", model, err)
		}
	}

	log.Println("Database migrations completed successfully")
	return nil
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}
