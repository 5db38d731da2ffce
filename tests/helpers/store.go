package helpers

import (
	"testing"
	"time"

	"github.com/a2alab/agentbridge/directory"
)

func NewTestSQLiteStore(t *testing.T, staleAfter time.Duration) *directory.SQLiteStore {
	t.Helper()

	s, err := directory.NewSQLiteStore(":memory:", staleAfter)
	if err != nil {
		t.Fatalf("failed to create sqlite store: %v", err)
	}

	t.Cleanup(func() {
		_ = s.Close()
	})

	return s
}
