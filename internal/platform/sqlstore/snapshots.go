package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/gunhoflash/Project-ComputerGraphics/internal/business/districtstats"
	"github.com/gunhoflash/Project-ComputerGraphics/pkg/model"
)

// SaveSnapshot writes the snapshot header and its district rows in one transaction.
func (s *Store) SaveSnapshot(ctx context.Context, snap model.Snapshot) (err error) {
	counters, err := json.Marshal(snap.Counters)
	if err != nil {
		return fmt.Errorf("encode counters: %w", err)
	}
	warnings := snap.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	warningsJSON, err := json.Marshal(warnings)
	if err != nil {
		return fmt.Errorf("encode warnings: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	header := fmt.Sprintf(`INSERT INTO snapshots (id, computed_at, fingerprint, min_ratio, max_ratio, counters, warnings)
		VALUES (%s)`, s.placeholders(1, 7))
	if _, err = tx.ExecContext(ctx, header,
		snap.ID, unixNanos(snap.ComputedAt), snap.Fingerprint,
		nullable(float64(snap.MinRatio)), nullable(float64(snap.MaxRatio)),
		string(counters), string(warningsJSON),
	); err != nil {
		return fmt.Errorf("insert snapshot %s: %w", snap.ID, err)
	}

	row := fmt.Sprintf(`INSERT INTO district_stats (snapshot_id, district, confirmed_count, population, area,
		density, confirmed_ratio, confirmed_ratio_adjusted) VALUES (%s)`, s.placeholders(1, 8))
	for _, d := range snap.Districts {
		if _, err = tx.ExecContext(ctx, row,
			snap.ID, d.District, int64(d.ConfirmedCount), d.Population, d.Area,
			nullable(float64(d.Density)), nullable(float64(d.ConfirmedRatio)),
			nullable(float64(d.ConfirmedRatioAdjusted)),
		); err != nil {
			return fmt.Errorf("insert district %s: %w", d.District, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot %s: %w", snap.ID, err)
	}
	return nil
}

// LatestSnapshot returns the most recently computed snapshot.
func (s *Store) LatestSnapshot(ctx context.Context) (model.Snapshot, error) {
	var (
		snap                 model.Snapshot
		computedAt           int64
		minRatio, maxRatio   sql.NullFloat64
		countersJSON, warnJS string
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, computed_at, fingerprint, min_ratio, max_ratio, counters, warnings
		FROM snapshots ORDER BY computed_at DESC LIMIT 1`).
		Scan(&snap.ID, &computedAt, &snap.Fingerprint, &minRatio, &maxRatio, &countersJSON, &warnJS)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Snapshot{}, districtstats.ErrNoSnapshot
	}
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("query latest snapshot: %w", err)
	}
	snap.ComputedAt = fromUnixNanos(computedAt)
	snap.MinRatio = model.Ratio(nanIfNull(minRatio))
	snap.MaxRatio = model.Ratio(nanIfNull(maxRatio))
	if err := json.Unmarshal([]byte(countersJSON), &snap.Counters); err != nil {
		return model.Snapshot{}, fmt.Errorf("decode counters of %s: %w", snap.ID, err)
	}
	if err := json.Unmarshal([]byte(warnJS), &snap.Warnings); err != nil {
		return model.Snapshot{}, fmt.Errorf("decode warnings of %s: %w", snap.ID, err)
	}
	if len(snap.Warnings) == 0 {
		snap.Warnings = nil
	}

	districts, err := s.districts(ctx, snap.ID)
	if err != nil {
		return model.Snapshot{}, err
	}
	snap.Districts = districts
	return snap, nil
}

func (s *Store) districts(ctx context.Context, snapshotID string) ([]model.DistrictStats, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT district, confirmed_count, population, area,
		density, confirmed_ratio, confirmed_ratio_adjusted
		FROM district_stats WHERE snapshot_id = %s`, s.ph(1)), snapshotID)
	if err != nil {
		return nil, fmt.Errorf("query districts of %s: %w", snapshotID, err)
	}
	defer rows.Close()

	out := []model.DistrictStats{}
	for rows.Next() {
		var (
			d                        model.DistrictStats
			count                    int64
			density, ratio, adjusted sql.NullFloat64
		)
		if err := rows.Scan(&d.District, &count, &d.Population, &d.Area, &density, &ratio, &adjusted); err != nil {
			return nil, fmt.Errorf("scan district of %s: %w", snapshotID, err)
		}
		d.ConfirmedCount = int(count)
		d.Density = model.Ratio(nanIfNull(density))
		d.ConfirmedRatio = model.Ratio(nanIfNull(ratio))
		d.ConfirmedRatioAdjusted = model.Ratio(nanIfNull(adjusted))
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate districts of %s: %w", snapshotID, err)
	}
	// byte order, independent of the database collation
	sort.Slice(out, func(i, j int) bool { return out[i].District < out[j].District })
	return out, nil
}
