package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"

	"github.com/joho/godotenv"

	"github.com/gunhoflash/Project-ComputerGraphics/internal/business/districtstats"
	"github.com/gunhoflash/Project-ComputerGraphics/internal/export"
	"github.com/gunhoflash/Project-ComputerGraphics/internal/platform/bootstrap"
	"github.com/gunhoflash/Project-ComputerGraphics/internal/platform/config"
	"github.com/gunhoflash/Project-ComputerGraphics/pkg/model"
)

func main() {
	_ = godotenv.Load(".env.local", ".env")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	dataDir := flag.String("data-dir", cfg.DataDir, "Directory relative dataset paths are read from")
	boundaries := flag.String("boundaries", cfg.BoundariesSource, "Boundary GeoJSON path or URL")
	cases := flag.String("cases", cfg.CasesSource, "Case records JSON path or URL")
	population := flag.String("population", cfg.PopulationSource, "Population table path or URL")
	area := flag.String("area", cfg.AreaSource, "Area table path or URL")
	encoding := flag.String("encoding", cfg.TableEncoding, "Table text encoding (utf-8, euc-kr)")
	format := flag.String("format", "table", "Output format: table, json, csv, xlsx, parquet")
	out := flag.String("out", "", "Write output to this file instead of stdout")
	save := flag.Bool("save", false, "Persist the snapshot to SNAPSHOT_STORE")
	flag.Parse()

	cfg.DataDir = *dataDir
	cfg.BoundariesSource = *boundaries
	cfg.CasesSource = *cases
	cfg.PopulationSource = *population
	cfg.AreaSource = *area
	cfg.TableEncoding = *encoding

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var stores bootstrap.Stores
	if *save {
		stores, err = bootstrap.OpenStores(ctx, cfg)
		if err != nil {
			log.Fatalf("Failed to open snapshot store: %v", err)
		}
		defer stores.Close()
		log.Printf("Saving to %s", stores.Description)
	}

	svc := districtstats.NewService(bootstrap.NewLoader(cfg), stores.Snapshots, stores.Runs, func(msg string) { log.Print(msg) })
	if err := svc.Restore(ctx); err != nil && !errors.Is(err, districtstats.ErrNoSnapshot) {
		log.Printf("Failed to restore snapshot: %v", err)
	}

	snap, _, err := svc.Refresh(ctx, districtstats.TriggerManual)
	if err != nil {
		log.Fatalf("Failed to compute stats: %v", err)
	}

	w := io.Writer(os.Stdout)
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			log.Fatalf("Failed to create %s: %v", *out, err)
		}
		defer f.Close()
		w = f
	}

	if err := render(w, *format, snap); err != nil {
		log.Fatalf("Failed to write %s output: %v", *format, err)
	}
	if *out != "" {
		log.Printf("Wrote %d districts to %s", len(snap.Districts), *out)
	}
}

func render(w io.Writer, format string, snap model.Snapshot) error {
	switch format {
	case "table":
		return writeTable(w, snap)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	default:
		return export.Write(w, format, snap)
	}
}

func writeTable(w io.Writer, snap model.Snapshot) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "district\tconfirmed\tpopulation\tarea\tdensity\tratio\tadjusted\t")
	for _, d := range snap.Districts {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t%s\t\n",
			d.District, d.ConfirmedCount,
			strconv.FormatFloat(d.Population, 'f', -1, 64),
			strconv.FormatFloat(d.Area, 'f', -1, 64),
			ratioCell(d.Density, 1), ratioCell(d.ConfirmedRatio, 6), ratioCell(d.ConfirmedRatioAdjusted, 4))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	c := snap.Counters
	_, err := fmt.Fprintf(w, "\n%d districts, %d/%d cases matched, snapshot %s\n",
		c.Districts, c.Cases-c.DroppedCases, c.Cases, snap.ID)
	return err
}

func ratioCell(r model.Ratio, prec int) string {
	if !r.Defined() {
		return "-"
	}
	return strconv.FormatFloat(float64(r), 'f', prec, 64)
}
