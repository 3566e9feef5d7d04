package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/zeto-space/exoclassify/internal/schema"
	"github.com/zeto-space/exoclassify/internal/verdict"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveAndGet(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	rec, _ := schema.FromValues([schema.Size]float64{1, 100, 3.5, 1.2, 1, 288, 5778, 4.5, 1})
	a := &Analysis{
		Kind:       KindSingle,
		Summary:    verdict.Summary{Total: 1, Confirmed: 1},
		Verdicts:   []verdict.Verdict{{Category: verdict.Confirmed, Confidence: 90, Title: "t", Description: "d"}},
		Parameters: []schema.Record{rec},
	}
	if err := s.Save(ctx, a); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := uuid.Parse(a.ID); err != nil {
		t.Errorf("Expected uuid ID, got %q", a.ID)
	}
	if a.Records != 1 {
		t.Errorf("Expected Records 1, got %d", a.Records)
	}

	got, err := s.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if diff := cmp.Diff(*a, got, cmp.Comparer(func(x, y time.Time) bool { return x.Equal(y) })); diff != "" {
		t.Errorf("Analysis mismatch (-want +got):\n%s", diff)
	}
}

func TestGetNotFound(t *testing.T) {
	s := openTemp(t)
	if _, err := s.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestListNewestFirst(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		a := &Analysis{
			Kind:      KindBatch,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
			Records:   i + 1,
		}
		if err := s.Save(ctx, a); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	list, err := s.List(ctx, 2)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("Expected 2 analyses, got %d", len(list))
	}
	if list[0].Records != 3 || list[1].Records != 2 {
		t.Errorf("Unexpected order: %d, %d", list[0].Records, list[1].Records)
	}
}

func TestOpenMemory(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	if err := s.Save(context.Background(), &Analysis{Kind: KindSingle}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	list, err := s.List(context.Background(), 0)
	if err != nil || len(list) != 1 {
		t.Errorf("Expected one analysis, got %d (%v)", len(list), err)
	}
}
