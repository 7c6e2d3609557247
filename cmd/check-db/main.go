// Package main is a diagnostic tool for database connectivity. It connects
// with the server's configuration, prints row counts for each lifecycle
// table and the newest properties, and exits non-zero on any failure so it
// can gate a deployment step.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/propertydesk/propertydesk/internal/config"
	"github.com/propertydesk/propertydesk/internal/db"
)

var tables = []string{
	"users",
	"properties",
	"condition_reports",
	"inspections",
	"reviews",
	"maintenance_requests",
	"landlord_profiles",
	"audit_logs",
}

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	database, err := db.Connect(context.Background(), cfg.Database.GetDSN(), 1, 1)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer database.Close()

	fmt.Println("=== TABLES ===")
	for _, table := range tables {
		var n int
		// #nosec G202 -- table names come from the fixed list above
		if err := database.Get(&n, "SELECT COUNT(*) FROM "+table); err != nil {
			log.Fatalf("Count %s failed: %v", table, err)
		}
		fmt.Printf("%-22s %d\n", table, n)
	}

	fmt.Println("\n=== NEWEST PROPERTIES ===")
	var rows []struct {
		ID     string `db:"id"`
		Title  string `db:"title"`
		City   string `db:"city"`
		Status string `db:"status"`
	}
	if err := database.Select(&rows, "SELECT id, title, city, status FROM properties ORDER BY created_at DESC LIMIT 10"); err != nil {
		log.Fatalf("Query failed: %v", err)
	}
	if len(rows) == 0 {
		fmt.Println("No properties found!")
	}
	for _, r := range rows {
		fmt.Printf("Property: %s (%s, %s) ID: %s\n", r.Title, r.City, r.Status, r.ID)
	}
}
