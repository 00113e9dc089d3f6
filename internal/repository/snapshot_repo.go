package repository

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/gunhoflash/Project-ComputerGraphics/internal/business/districtstats"
	firestoreclient "github.com/gunhoflash/Project-ComputerGraphics/internal/platform/firestore"
	"github.com/gunhoflash/Project-ComputerGraphics/pkg/model"
	"github.com/gunhoflash/Project-ComputerGraphics/pkg/util"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	snapshotsCollection = "snapshots"
	districtsCollection = "districts"
)

// SnapshotRepository stores snapshots as snapshots/{id} with a districts
// subcollection, plus a system/latest_snapshot pointer document.
type SnapshotRepository struct {
	client *firestore.Client
}

func NewSnapshotRepository(client *firestore.Client) *SnapshotRepository {
	return &SnapshotRepository{client: client}
}

type snapshotHeader struct {
	ID          string                 `firestore:"id"`
	ComputedAt  time.Time              `firestore:"computedAt"`
	Fingerprint string                 `firestore:"fingerprint"`
	MinRatio    model.Ratio            `firestore:"minRatio"`
	MaxRatio    model.Ratio            `firestore:"maxRatio"`
	Counters    model.SnapshotCounters `firestore:"counters"`
	Warnings    []string               `firestore:"warnings,omitempty"`
}

type latestPointer struct {
	SnapshotID string    `firestore:"snapshotId"`
	ComputedAt time.Time `firestore:"computedAt"`
}

// SaveSnapshot writes districts in batches, then the header and the latest
// pointer, so a reader following the pointer always finds complete data.
func (r *SnapshotRepository) SaveSnapshot(ctx context.Context, snap model.Snapshot) error {
	if snap.ID == "" {
		return fmt.Errorf("snapshot id is required")
	}
	ref := r.client.Collection(snapshotsCollection).Doc(snap.ID)

	const batchSize = 400
	for start := 0; start < len(snap.Districts); start += batchSize {
		end := start + batchSize
		if end > len(snap.Districts) {
			end = len(snap.Districts)
		}
		batch := r.client.Batch()
		for _, d := range snap.Districts[start:end] {
			batch.Set(ref.Collection(districtsCollection).Doc(districtDocID(d.District)), d)
		}
		if _, err := batch.Commit(ctx); err != nil {
			return fmt.Errorf("commit districts of %s [%d:%d]: %w", snap.ID, start, end, err)
		}
	}

	batch := r.client.Batch()
	batch.Set(ref, snapshotHeader{
		ID:          snap.ID,
		ComputedAt:  snap.ComputedAt,
		Fingerprint: snap.Fingerprint,
		MinRatio:    snap.MinRatio,
		MaxRatio:    snap.MaxRatio,
		Counters:    snap.Counters,
		Warnings:    snap.Warnings,
	})
	batch.Set(r.client.Doc(firestoreclient.LatestSnapshotDoc), latestPointer{
		SnapshotID: snap.ID,
		ComputedAt: snap.ComputedAt,
	})
	if _, err := batch.Commit(ctx); err != nil {
		return fmt.Errorf("save snapshot %s: %w", snap.ID, err)
	}
	return nil
}

// LatestSnapshot follows the latest pointer and loads the full snapshot.
func (r *SnapshotRepository) LatestSnapshot(ctx context.Context) (model.Snapshot, error) {
	doc, err := r.client.Doc(firestoreclient.LatestSnapshotDoc).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return model.Snapshot{}, districtstats.ErrNoSnapshot
	}
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("get latest snapshot pointer: %w", err)
	}
	var ptr latestPointer
	if err := doc.DataTo(&ptr); err != nil {
		return model.Snapshot{}, fmt.Errorf("decode latest snapshot pointer: %w", err)
	}
	return r.GetSnapshot(ctx, ptr.SnapshotID)
}

// GetSnapshot loads one snapshot by ID.
func (r *SnapshotRepository) GetSnapshot(ctx context.Context, id string) (model.Snapshot, error) {
	ref := r.client.Collection(snapshotsCollection).Doc(id)
	doc, err := ref.Get(ctx)
	if status.Code(err) == codes.NotFound {
		return model.Snapshot{}, fmt.Errorf("%w: %s", districtstats.ErrNoSnapshot, id)
	}
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("get snapshot %s: %w", id, err)
	}
	var h snapshotHeader
	if err := doc.DataTo(&h); err != nil {
		return model.Snapshot{}, fmt.Errorf("decode snapshot %s: %w", id, err)
	}

	snap := model.Snapshot{
		ID:          h.ID,
		ComputedAt:  h.ComputedAt,
		Fingerprint: h.Fingerprint,
		MinRatio:    h.MinRatio,
		MaxRatio:    h.MaxRatio,
		Counters:    h.Counters,
		Warnings:    h.Warnings,
		Districts:   []model.DistrictStats{},
	}
	iter := ref.Collection(districtsCollection).OrderBy("district", firestore.Asc).Documents(ctx)
	defer iter.Stop()
	for {
		d, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return model.Snapshot{}, fmt.Errorf("iterate districts of %s: %w", id, err)
		}
		var stats model.DistrictStats
		if err := d.DataTo(&stats); err != nil {
			return model.Snapshot{}, fmt.Errorf("decode district %s of %s: %w", d.Ref.ID, id, err)
		}
		snap.Districts = append(snap.Districts, stats)
	}
	return snap, nil
}

// districtDocID derives a document ID from the exact district name. Names may
// contain "/" or whitespace, so the ID is a hash; the name itself is stored in
// the document's district field.
func districtDocID(name string) string {
	return util.HashString(name)
}
