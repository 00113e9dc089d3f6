package firestore

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/gunhoflash/Project-ComputerGraphics/internal/platform/config"
)

func TestPingErrorWraps(t *testing.T) {
	err := error(&PingError{ProjectID: "district-stats", Err: context.DeadlineExceeded})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("errors.Is(DeadlineExceeded) = false")
	}
	var pe *PingError
	if !errors.As(err, &pe) || pe.ProjectID != "district-stats" {
		t.Errorf("errors.As = %+v", pe)
	}
	if !strings.Contains(err.Error(), "district-stats") {
		t.Errorf("message = %q", err.Error())
	}
}

func TestConnectRequiresCredentials(t *testing.T) {
	_, _, err := Connect(context.Background(), config.Config{FirebaseProjectID: "district-stats"})
	if err == nil {
		t.Fatalf("expected credentials error")
	}
	var pe *PingError
	if errors.As(err, &pe) {
		t.Errorf("credential failure reported as ping error: %v", err)
	}
}
