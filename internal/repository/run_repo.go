package repository

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/gunhoflash/Project-ComputerGraphics/pkg/model"
	"google.golang.org/api/iterator"
)

// RunRepository manages refresh run lifecycle records.
type RunRepository struct {
	client *firestore.Client
}

func NewRunRepository(client *firestore.Client) *RunRepository {
	return &RunRepository{client: client}
}

func (r *RunRepository) CreateRun(ctx context.Context, run model.RefreshRun) error {
	if run.RunID == "" {
		return fmt.Errorf("runId is required")
	}
	ref := r.client.Collection("refresh_runs").Doc(run.RunID)
	if _, err := ref.Set(ctx, run); err != nil {
		return fmt.Errorf("create run %s: %w", run.RunID, err)
	}
	return nil
}

func (r *RunRepository) UpdateRun(ctx context.Context, run model.RefreshRun) error {
	if run.RunID == "" {
		return fmt.Errorf("runId is required")
	}
	ref := r.client.Collection("refresh_runs").Doc(run.RunID)
	if _, err := ref.Set(ctx, run); err != nil {
		return fmt.Errorf("update run %s: %w", run.RunID, err)
	}
	return nil
}

// ListRuns returns the latest runs ordered by start time, newest first.
func (r *RunRepository) ListRuns(ctx context.Context, limit int) ([]model.RefreshRun, error) {
	if limit <= 0 {
		limit = 20
	}
	iter := r.client.Collection("refresh_runs").
		OrderBy("startedAt", firestore.Desc).
		Limit(limit).
		Documents(ctx)
	defer iter.Stop()

	runs := []model.RefreshRun{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterate runs: %w", err)
		}
		var run model.RefreshRun
		if err := doc.DataTo(&run); err != nil {
			return nil, fmt.Errorf("decode run %s: %w", doc.Ref.ID, err)
		}
		if run.RunID == "" {
			run.RunID = doc.Ref.ID
		}
		runs = append(runs, run)
	}
	return runs, nil
}
