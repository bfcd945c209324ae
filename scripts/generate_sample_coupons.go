package main

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"storefront/internal/coupon"
)

// generateSampleCoupons writes gzipped JSONL coupon definition files for local runs.
// Point COUPON_SEED_FILES at the generated files, e.g.
// COUPON_SEED_FILES=data/coupons/seasonal.jsonl.gz,data/coupons/loyalty.jsonl.gz
// A code present in both files takes the definition from the later file.
func main() {
	dataDir := "data/coupons"

	// Create directory if it doesn't exist
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		log.Fatalf("Failed to create directory: %v", err)
	}

	now := time.Now().UTC().Truncate(24 * time.Hour)
	expired := now.AddDate(0, 0, -1)
	nextMonth := now.AddDate(0, 1, 0)
	nextWeek := now.AddDate(0, 0, 7)

	files := map[string][]coupon.Definition{
		"seasonal.jsonl.gz": {
			{Code: "FESTIVE10", DiscountType: coupon.DiscountPercentage, DiscountValue: 10, MaxDiscount: int64Ptr(50000), Active: true, ValidTo: &nextMonth},
			{Code: "FLAT200", DiscountType: coupon.DiscountFixed, DiscountValue: 20000, MinOrderValue: 100000, Active: true},
			{Code: "SUMMER2024", DiscountType: coupon.DiscountPercentage, DiscountValue: 15, Active: true, ValidTo: &expired},
			{Code: "LAUNCHSOON", DiscountType: coupon.DiscountPercentage, DiscountValue: 20, Active: true, ValidFrom: &nextWeek},
		},
		"loyalty.jsonl.gz": {
			{Code: "WELCOME50", DiscountType: coupon.DiscountFixed, DiscountValue: 5000, UsageLimit: intPtr(1000), Active: true},
			{Code: "VIPONLY", DiscountType: coupon.DiscountPercentage, DiscountValue: 25, UsageLimit: intPtr(1), Active: true},
			{Code: "FLAT200", DiscountType: coupon.DiscountFixed, DiscountValue: 25000, MinOrderValue: 150000, Active: true},
			{Code: "RETIRED", DiscountType: coupon.DiscountFixed, DiscountValue: 1000, Active: false},
		},
	}

	for filename, defs := range files {
		filePath := filepath.Join(dataDir, filename)

		if err := writeDefinitions(filePath, defs); err != nil {
			log.Fatalf("Failed to create %s: %v", filename, err)
		}

		fmt.Printf("Created %s with %d coupons\n", filePath, len(defs))
	}

	fmt.Println("\nSample coupon files created successfully!")
	fmt.Println("\nUsable codes:")
	fmt.Println("  - FESTIVE10  (10%, capped, expires in a month)")
	fmt.Println("  - FLAT200    (loyalty.jsonl.gz overrides seasonal.jsonl.gz when both are synced)")
	fmt.Println("  - WELCOME50  (fixed, 1000 uses)")
	fmt.Println("  - VIPONLY    (single use)")
	fmt.Println("\nRejected codes:")
	fmt.Println("  - SUMMER2024 (expired)")
	fmt.Println("  - LAUNCHSOON (not valid yet)")
	fmt.Println("  - RETIRED    (inactive)")
}

func writeDefinitions(filePath string, defs []coupon.Definition) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	gzipWriter := gzip.NewWriter(file)
	defer gzipWriter.Close()

	fmt.Fprintln(gzipWriter, "# code definitions, one JSON object per line")

	encoder := json.NewEncoder(gzipWriter)
	for _, def := range defs {
		if err := def.Validate(); err != nil {
			return fmt.Errorf("invalid coupon %s: %w", def.Code, err)
		}
		if err := encoder.Encode(def); err != nil {
			return fmt.Errorf("failed to write coupon: %w", err)
		}
	}

	return nil
}

func int64Ptr(v int64) *int64 { return &v }

func intPtr(v int) *int { return &v }
