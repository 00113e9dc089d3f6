package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"github.com/gunhoflash/Project-ComputerGraphics/internal/business/districtstats"
	"github.com/gunhoflash/Project-ComputerGraphics/internal/platform/bootstrap"
	"github.com/gunhoflash/Project-ComputerGraphics/internal/platform/config"
)

func main() {
	runs := flag.Int("runs", 5, "Number of recent refresh runs to show")
	district := flag.String("district", "", "Print the full record of one district")
	flag.Parse()

	ctx := context.Background()

	_ = godotenv.Load(".env.local", ".env")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.SnapshotStore == config.StoreMemory {
		log.Fatal("SNAPSHOT_STORE is memory, nothing to inspect")
	}

	stores, err := bootstrap.OpenStores(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open snapshot store: %v", err)
	}
	defer stores.Close()
	fmt.Printf("Store: %s\n\n", stores.Description)

	snap, err := stores.Snapshots.LatestSnapshot(ctx)
	switch {
	case errors.Is(err, districtstats.ErrNoSnapshot):
		fmt.Println("No snapshot saved yet")
	case err != nil:
		log.Fatalf("Failed to read latest snapshot: %v", err)
	default:
		fmt.Printf("Latest snapshot: %s\n", snap.ID)
		fmt.Printf("Computed at:     %s\n", snap.ComputedAt.Format("2006-01-02 15:04:05 MST"))
		fmt.Printf("Fingerprint:     %s\n", snap.Fingerprint)
		c := snap.Counters
		fmt.Printf("Districts:       %d\n", c.Districts)
		fmt.Printf("Cases:           %d (%d dropped)\n", c.Cases, c.DroppedCases)
		fmt.Printf("Population rows: %d (%d dropped)\n", c.PopulationRows, c.DroppedPopulationRows)
		fmt.Printf("Area rows:       %d (%d dropped)\n", c.AreaRows, c.DroppedAreaRows)
		for _, w := range snap.Warnings {
			fmt.Printf("Warning:         %s\n", w)
		}
	}

	if *district != "" && err == nil {
		d, ok := snap.Find(*district)
		if !ok {
			fmt.Printf("\nDistrict %s: DOES NOT EXIST in snapshot\n", *district)
		} else {
			data, err := json.MarshalIndent(d, "", "  ")
			if err != nil {
				log.Fatalf("Failed to marshal: %v", err)
			}
			fmt.Printf("\n%s\n", data)
		}
	}

	list, err := stores.Runs.ListRuns(ctx, *runs)
	if err != nil {
		log.Fatalf("Failed to list runs: %v", err)
	}
	fmt.Printf("\n=== Recent refresh runs ===\n")
	if len(list) == 0 {
		fmt.Println("none")
	}
	for _, r := range list {
		line := fmt.Sprintf("%s  %-8s %-9s %s", r.StartedAt.Format("2006-01-02 15:04:05"), r.Trigger, r.Status, r.RunID)
		if r.SnapshotID != "" {
			line += " -> " + r.SnapshotID
		}
		if r.Error != "" {
			line += "  error: " + r.Error
		}
		fmt.Println(line)
	}
}
