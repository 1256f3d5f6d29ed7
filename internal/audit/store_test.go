package audit

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	s, err := NewStore(filepath.Join(t.TempDir(), "audit.db"), logger)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	s.Record(ctx, Entry{EventIdentity: "Ev1", Persona: "jack", ChannelID: "C1", Action: ActionGenerate, OK: true})
	s.Record(ctx, Entry{EventIdentity: "Ev1", Persona: "jack", ChannelID: "C1", Action: ActionPost, OK: false, Detail: "channel_not_found"})

	got, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}
	// Newest first.
	if got[0].Action != ActionPost || got[0].OK {
		t.Errorf("expected failed post first, got %+v", got[0])
	}
	if got[0].Detail != "channel_not_found" {
		t.Errorf("expected failure detail preserved, got %q", got[0].Detail)
	}
	if got[1].Action != ActionGenerate || !got[1].OK {
		t.Errorf("expected successful generate second, got %+v", got[1])
	}
}

func TestRecent_Empty(t *testing.T) {
	s := testStore(t)
	got, err := s.Recent(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("expected no rows, got %d", len(got))
	}
}
