package main

import (
	"context"
	"log"
	"os"
	"time"

	"brainlm/adapters/store"
	"brainlm/internal/migration"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	driver := os.Getenv("RESULTS_DRIVER")
	dsn := os.Getenv("RESULTS_DSN")
	if len(os.Args) == 3 {
		driver, dsn = os.Args[1], os.Args[2]
	}
	if driver == "" {
		driver = "sqlite"
	}
	if dsn == "" {
		log.Fatal("Usage: migrate <sqlite|postgres> <dsn> (or set RESULTS_DRIVER and RESULTS_DSN)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	log.Printf("Applying results schema %s to %s database", migration.NewRunner().Version(), driver)

	// Open applies the schema
	db, err := store.Open(ctx, driver, dsn)
	if err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	defer db.Close()

	log.Printf("Results schema is up to date")
}
