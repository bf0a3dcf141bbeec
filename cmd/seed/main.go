package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"storefront/config"
	"storefront/internal/models"
	"storefront/internal/store"
)

// Seeds the product catalog from a CSV export. Expected columns:
// id, name, price, image_url, category. Extra columns are ignored.

func main() {
	csvPath := flag.String("csv", "products.csv", "path to the product CSV")
	flag.Parse()

	cfg := config.Load()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	f, err := os.Open(*csvPath)
	if err != nil {
		log.Fatalf("Failed to open %s: %v", *csvPath, err)
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	count, err := seedProducts(ctx, db, f)
	if err != nil {
		log.Fatalf("Seed failed: %v", err)
	}
	log.Printf("Seeded %d products from %s", count, *csvPath)
}

func seedProducts(ctx context.Context, db *store.Store, r io.Reader) (int, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("failed to read CSV header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(strings.ToLower(name))] = i
	}
	for _, required := range []string{"id", "name", "price", "image_url", "category"} {
		if _, ok := cols[required]; !ok {
			return 0, fmt.Errorf("CSV is missing required column %q", required)
		}
	}

	count := 0
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return count, fmt.Errorf("failed to read CSV line %d: %w", line, err)
		}

		product, err := parseProduct(cols, record)
		if err != nil {
			return count, fmt.Errorf("line %d: %w", line, err)
		}
		if err := db.UpsertProduct(ctx, &product); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func parseProduct(cols map[string]int, record []string) (models.Product, error) {
	field := func(name string) string {
		i := cols[name]
		if i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	id := field("id")
	name := field("name")
	if id == "" || name == "" {
		return models.Product{}, fmt.Errorf("id and name are required")
	}

	// Exports carry thousands separators in the price column.
	raw := strings.ReplaceAll(field("price"), ",", "")
	price, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return models.Product{}, fmt.Errorf("invalid price %q: %w", field("price"), err)
	}
	if price < 0 {
		return models.Product{}, fmt.Errorf("negative price %q", field("price"))
	}

	return models.Product{
		ID:       id,
		Name:     name,
		Price:    price,
		Image:    field("image_url"),
		Category: field("category"),
	}, nil
}
