package main

import (
	"context"
	"crowd-route-service/internal/adapters/importer"
	"crowd-route-service/internal/config"
	"crowd-route-service/internal/platform/db"
	"database/sql"
	"log"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	config.Load()

	databaseURL := config.Get("DATABASE_URL", "")
	if strings.TrimSpace(databaseURL) == "" {
		log.Fatal("DATABASE_URL is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	conn, err := db.Open(ctx, databaseURL, db.DefaultPool())
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	topologyPath := config.Get("TOPOLOGY_PATH", "data/topology.json")
	if err := initAndSeed(ctx, conn, topologyPath); err != nil {
		log.Fatal(err)
	}
}

func initAndSeed(ctx context.Context, conn *sql.DB, topologyPath string) error {
	log.Println("Initializing database schema...")
	if err := importer.InitSchema(ctx, conn); err != nil {
		return err
	}
	log.Println("Schema ready.")

	log.Printf("Seeding database from %s...", topologyPath)
	if err := importer.SeedFromJSON(ctx, conn, topologyPath); err != nil {
		return err
	}
	log.Println("Seeding complete.")

	return nil
}
