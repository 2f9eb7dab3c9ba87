package db

import (
	"log"

	"aimint-backend/internal/config"
	"aimint-backend/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func InitDB() {
	var err error

	if config.AppConfig == nil || config.AppConfig.Database.DSN == "" {
		log.Fatalf("Database DSN is required")
	}

	dsn := config.AppConfig.Database.DSN

	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		SkipDefaultTransaction:                   true,
		PrepareStmt:                              true,
		TranslateError:                           true,
		Logger:                                   logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}

	log.Println("✅ Database connected successfully")

	log.Println("🚀 Starting database schema migration with GORM AutoMigrate...")
	if err := DB.AutoMigrate(
		&models.MintRequest{},
		&models.ChainRegistration{},
		&models.MintedToken{},
		&models.ProcessedRequest{},
		&models.ChainCollection{},
		&models.PlatformStats{},
	); err != nil {
		log.Fatalf("AutoMigrate failed: %v", err)
	}

	initPlatformStats(DB)
	seedChains(DB)

	log.Println("✅ Database schema migrated successfully")
}

// initPlatformStats ensures the single stats row exists so that transition
// transactions can always increment it with a plain UPDATE.
func initPlatformStats(db *gorm.DB) {
	var stats models.PlatformStats
	if err := db.First(&stats, 1).Error; err != nil {
		stats = models.PlatformStats{ID: 1, TotalFeesCollected: "0", TotalFeesWithdrawn: "0"}
		if err := db.Create(&stats).Error; err != nil {
			log.Printf("⚠️ Failed to create platform stats row: %v", err)
		} else {
			log.Println("✅ Initialized platform stats row")
		}
	}
}

// seedChains registers the chains listed in config that are not yet known.
// Existing registrations are left untouched; admins manage them at runtime.
func seedChains(db *gorm.DB) {
	if config.AppConfig == nil {
		return
	}
	for _, c := range config.AppConfig.Chains {
		var existing models.ChainRegistration
		if err := db.First(&existing, "chain_id = ?", c.ChainID).Error; err == nil {
			continue
		}
		reg := models.ChainRegistration{
			ChainID:        c.ChainID,
			Name:           c.Name,
			MinterEndpoint: c.MinterEndpoint,
			Enabled:        c.Enabled,
		}
		if err := db.Create(&reg).Error; err != nil {
			log.Printf("⚠️ Failed to seed chain %d (%s): %v", c.ChainID, c.Name, err)
			continue
		}
		if c.Enabled {
			db.Model(&models.PlatformStats{}).Where("id = ?", 1).
				UpdateColumn("active_chains", gorm.Expr("active_chains + 1"))
		}
		log.Printf("✅ Seeded chain registration: %d (%s) -> %s", c.ChainID, c.Name, c.MinterEndpoint)
	}
}
