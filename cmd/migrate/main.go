package main

import (
	"log"
	"os"

	"ai-chatstream-be/internal/model"
	"ai-chatstream-be/pkg/database"

	"github.com/joho/godotenv"
)

func main() {
	// 1. Load Environment Variables
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}
	driver := os.Getenv("DB_DRIVER")

	// 2. Connect to Database using existing GORM helpers
	db, err := database.Open(driver, dsn)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	log.Printf("Step 1: Running AutoMigrate for %d Tables...", len(model.All()))

	if err := model.Migrate(db); err != nil {
		log.Fatalf("Error: AutoMigrate failed: %v", err)
	}

	// 3. Post-Migration: indexes AutoMigrate cannot express
	if driver == database.DriverPostgres || driver == "" {
		log.Println("Step 2: Creating Indexes...")

		postMigrationSQL := []string{
			`CREATE INDEX IF NOT EXISTS idx_chat_sessions_user_updated ON chat_sessions (user_id, updated_at DESC);`,
		}

		for _, sql := range postMigrationSQL {
			if err := db.Exec(sql).Error; err != nil {
				log.Printf("Warn: Failed to execute post-migration SQL: %v", err)
			}
		}
	}

	log.Println("Success: Database migration completed successfully via GORM.")
}
