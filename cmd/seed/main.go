// Command seed populates the database with demo FRA claims.
package main

import (
	"context"
	"flag"
	"log"

	"fraatlas/internal/config"
	"fraatlas/internal/database"
	"fraatlas/internal/seed"
)

func main() {
	citizens := flag.Int("citizens", 50, "Number of citizens to create")
	officials := flag.Int("officials", 3, "Number of officials to create")
	claimsPer := flag.Int("claims", 2, "Claims per citizen")
	maxDays := flag.Int("days", 365, "Spread submissions over this many days")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	s, err := seed.NewSeeder(db, seed.Options{
		Citizens:         *citizens,
		Officials:        *officials,
		ClaimsPerCitizen: *claimsPer,
		MaxDays:          *maxDays,
	})
	if err != nil {
		log.Fatalf("Seeder setup failed: %v", err)
	}

	ctx := context.Background()
	if *shouldClean {
		if err := s.ClearAll(ctx); err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
	}

	summary, err := s.Run(ctx)
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Seeded %d citizens, %d officials and %d claims", summary.Citizens, summary.Officials, summary.Claims)
	log.Printf("All seeded accounts use the password: %s", seed.DefaultPassword)
}
