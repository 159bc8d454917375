package share

import (
	"strings"
	"testing"
)

func TestProgressSnapshot(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if got := s.Progress(); len(got) != 0 {
		t.Fatalf("idle store reports %d transfers", len(got))
	}

	// Two partial uploads, distinct files.
	if _, err := s.StoreChunk("b.bin", "u", 0, 4, strings.NewReader("xxxx")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.StoreChunk("b.bin", "u", 1, 4, strings.NewReader("xxxx")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.StoreChunk("a.bin", "u", 0, 2, strings.NewReader("yy")); err != nil {
		t.Fatal(err)
	}

	got := s.Progress()
	if len(got) != 2 {
		t.Fatalf("got %d rows, want 2", len(got))
	}
	// Sorted by filename for stable rendering.
	if got[0].Filename != "a.bin" || got[1].Filename != "b.bin" {
		t.Errorf("order = %s, %s", got[0].Filename, got[1].Filename)
	}
	if got[0].Percent != 50 {
		t.Errorf("a.bin percent = %v, want 50", got[0].Percent)
	}
	if got[1].Percent != 50 || got[1].Received != 2 || got[1].Total != 4 {
		t.Errorf("b.bin row = %+v", got[1])
	}
	if got[1].Speed < 0 {
		t.Errorf("negative speed %v", got[1].Speed)
	}
}

func TestProgressClearsAfterCompletion(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.StoreChunk("done.txt", "u", 0, 1, strings.NewReader("all")); err != nil {
		t.Fatal(err)
	}
	if got := s.Progress(); len(got) != 0 {
		t.Errorf("completed transfer still visible: %+v", got)
	}
}
