package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/gunhoflash/Project-ComputerGraphics/internal/platform/config"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// LatestSnapshotDoc points at the most recently saved snapshot.
const LatestSnapshotDoc = "system/latest_snapshot"

// PingError reports a snapshot store that could not be read at startup.
type PingError struct {
	ProjectID string
	Err       error
}

func (e *PingError) Error() string {
	return fmt.Sprintf("firestore project %s not reachable: %v", e.ProjectID, e.Err)
}

func (e *PingError) Unwrap() error { return e.Err }

// Connect opens a client with the credentials from cfg and checks that the
// snapshot pointer can be read. The returned string names the credential
// source ("base64" or "file").
func Connect(ctx context.Context, cfg config.Config) (*firestore.Client, string, error) {
	creds, source, err := cfg.FirebaseCredentialsJSON()
	if err != nil {
		return nil, "", err
	}

	client, err := firestore.NewClient(ctx, cfg.FirebaseProjectID, option.WithCredentialsJSON(creds))
	if err != nil {
		return nil, "", fmt.Errorf("init firestore client: %w", err)
	}
	if err := Ping(ctx, client); err != nil {
		client.Close()
		return nil, "", &PingError{ProjectID: cfg.FirebaseProjectID, Err: err}
	}
	return client, source, nil
}

// Ping reads the latest snapshot pointer. A missing pointer is fine: nothing
// has been saved yet.
func Ping(ctx context.Context, client *firestore.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := client.Doc(LatestSnapshotDoc).Get(ctx)
	if err == nil || status.Code(err) == codes.NotFound {
		return nil
	}
	return err
}
