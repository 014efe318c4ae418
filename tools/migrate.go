package main

import (
	"fmt"
	"os"

	"classflow/database"
	"classflow/database/seeders"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage:")
		fmt.Println("  go run tools/migrate.go migrate - Run database migrations")
		fmt.Println("  go run tools/migrate.go seed    - Seed default locations and classes")
		return
	}

	command := os.Args[1]

	switch command {
	case "migrate":
		fmt.Println("🚀 Running database migrations...")
		if _, err := database.InitDB(); err != nil {
			fmt.Printf("❌ Migration failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("✅ Migration completed successfully!")

	case "seed":
		db, err := database.InitDB()
		if err != nil {
			fmt.Printf("❌ Failed to connect: %v\n", err)
			os.Exit(1)
		}
		seeders.SeedLocations(db)
		seeders.SeedClasses(db)
		fmt.Println("✅ Seeding completed successfully!")

	default:
		fmt.Printf("Unknown command: %s\n", command)
		fmt.Println("Available commands: migrate, seed")
	}
}
