package share

import (
	"bytes"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
)

// splitIntoChunks cuts data into n roughly equal pieces.
func splitIntoChunks(data []byte, n int) [][]byte {
	chunkLen := (len(data) + n - 1) / n
	var out [][]byte
	for i := 0; i < n; i++ {
		lo := i * chunkLen
		hi := lo + chunkLen
		if hi > len(data) {
			hi = len(data)
		}
		out = append(out, data[lo:hi])
	}
	return out
}

// TestAssemblyOrderIndependentReceipt verifies the core invariant: for
// any arrival permutation of chunk indices, the assembled file is the
// exact concatenation in index order.
func TestAssemblyOrderIndependentReceipt(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 5; trial++ {
		s, err := NewStore(t.TempDir())
		if err != nil {
			t.Fatal(err)
		}

		data := make([]byte, 10_000+trial*777)
		rng.Read(data)
		total := 7
		chunks := splitIntoChunks(data, total)

		order := rng.Perm(total)
		var last *ChunkResult
		for _, idx := range order {
			res, err := s.StoreChunk("blob.bin", "alice", idx, total, bytes.NewReader(chunks[idx]))
			if err != nil {
				t.Fatalf("StoreChunk(%d): %v", idx, err)
			}
			last = res
		}

		if last == nil || !last.Completed {
			t.Fatalf("final chunk did not complete the transfer (order %v)", order)
		}
		if last.Size != int64(len(data)) {
			t.Errorf("completed size = %d, want %d", last.Size, len(data))
		}

		got, err := os.ReadFile(s.FilePath("blob.bin"))
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, data) {
			t.Fatalf("assembled bytes differ from original (order %v)", order)
		}
		t.Logf("✓ arrival order %v assembled correctly (%d bytes)", order, len(data))
	}
}

func TestStoreChunkProgressBeforeCompletion(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	res, err := s.StoreChunk("part.bin", "bob", 2, 4, strings.NewReader("cccc"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Completed {
		t.Error("transfer reported complete after one of four chunks")
	}
	if res.Received != 1 || res.Total != 4 {
		t.Errorf("progress = %d/%d, want 1/4", res.Received, res.Total)
	}

	// Re-sending the same chunk must not inflate the receipt count.
	res, err = s.StoreChunk("part.bin", "bob", 2, 4, strings.NewReader("cccc"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Received != 1 {
		t.Errorf("duplicate chunk counted twice: received = %d", res.Received)
	}
	t.Logf("✓ duplicate chunk receipt deduplicated")
}

func TestStoreChunkRejectsBadIndex(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		index, total int
	}{
		{5, 5},  // index == totalChunks
		{-1, 5}, // negative index
		{0, 0},  // zero totalChunks
	}
	for _, c := range cases {
		_, err := s.StoreChunk("x.bin", "u", c.index, c.total, strings.NewReader("x"))
		if !errors.Is(err, ErrInvalidChunk) {
			t.Errorf("index %d of %d: err = %v, want ErrInvalidChunk", c.index, c.total, err)
		}
	}
}

// TestDuplicateChunkAfterCompletion replays a chunk once the transfer has
// completed. The replay must open a fresh transfer, not re-trigger
// assembly of the file already on disk.
func TestDuplicateChunkAfterCompletion(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.StoreChunk("v.bin", "u", 0, 2, strings.NewReader("head")); err != nil {
		t.Fatal(err)
	}
	res, err := s.StoreChunk("v.bin", "u", 1, 2, strings.NewReader("tail"))
	if err != nil {
		t.Fatal(err)
	}
	if !res.Completed {
		t.Fatal("transfer did not complete")
	}

	replay, err := s.StoreChunk("v.bin", "u", 0, 2, strings.NewReader("HEAD"))
	if err != nil {
		t.Fatal(err)
	}
	if replay.Completed {
		t.Error("replayed chunk reported completion")
	}
	if replay.Received != 1 {
		t.Errorf("replay received = %d, want 1 (fresh transfer)", replay.Received)
	}

	got, err := os.ReadFile(s.FilePath("v.bin"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "headtail" {
		t.Errorf("file after replay = %q, want %q", got, "headtail")
	}
	if s.State("v.bin") != StateReady {
		t.Error("completed file left ready state")
	}
	t.Logf("✓ post-completion duplicate opened a fresh transfer")
}

// TestConcurrentDuplicateChunkSingleAssembly races the completing chunk
// against a duplicate of an earlier one. Exactly one caller may observe
// completion and assemble; the served bytes must stay the index-order
// concatenation on every interleaving.
func TestConcurrentDuplicateChunkSingleAssembly(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	head := strings.Repeat("h", 8192)
	tail := strings.Repeat("t", 8192)

	for trial := 0; trial < 25; trial++ {
		name := fmt.Sprintf("race_%d.bin", trial)
		if _, err := s.StoreChunk(name, "u", 0, 2, strings.NewReader(head)); err != nil {
			t.Fatal(err)
		}

		var wg sync.WaitGroup
		var finalRes, dupRes *ChunkResult
		var finalErr, dupErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			finalRes, finalErr = s.StoreChunk(name, "u", 1, 2, strings.NewReader(tail))
		}()
		go func() {
			defer wg.Done()
			dupRes, dupErr = s.StoreChunk(name, "u", 0, 2, strings.NewReader(head))
		}()
		wg.Wait()

		if finalErr != nil || dupErr != nil {
			t.Fatalf("trial %d: finalErr=%v dupErr=%v", trial, finalErr, dupErr)
		}
		if !finalRes.Completed {
			t.Fatalf("trial %d: completing chunk did not complete", trial)
		}
		if dupRes.Completed {
			t.Fatalf("trial %d: duplicate also observed completion", trial)
		}

		got, err := os.ReadFile(s.FilePath(name))
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != head+tail {
			t.Fatalf("trial %d: served file corrupt, len=%d", trial, len(got))
		}
	}
	t.Logf("✓ 25 racing duplicates, single assembly each time")
}

// TestAssemblyFailureCleansUp deletes a stored temp chunk behind the
// store's back, then delivers the final chunk. Assembly must fail, leave
// no partial file, and evict the transfer so a full re-upload works.
func TestAssemblyFailureCleansUp(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s.StoreChunk("victim.bin", "u", 0, 2, strings.NewReader("first")); err != nil {
		t.Fatal(err)
	}

	// Sabotage: remove chunk 0 from the temp dir.
	id := transferID("victim.bin")
	if err := os.Remove(filepath.Join(dir, ".temp", fmt.Sprintf("%s_chunk_0", id))); err != nil {
		t.Fatal(err)
	}

	if _, err := s.StoreChunk("victim.bin", "u", 1, 2, strings.NewReader("second")); err == nil {
		t.Fatal("assembly succeeded despite missing chunk")
	}

	if _, err := os.Stat(s.FilePath("victim.bin")); !os.IsNotExist(err) {
		t.Error("partial final file left behind after failed assembly")
	}
	if s.State("victim.bin") != StateAbsent {
		t.Errorf("state after failure = %v, want StateAbsent", s.State("victim.bin"))
	}

	// The transfer record must be gone: re-uploading from chunk 0 works.
	if _, err := s.StoreChunk("victim.bin", "u", 0, 2, strings.NewReader("first")); err != nil {
		t.Fatal(err)
	}
	res, err := s.StoreChunk("victim.bin", "u", 1, 2, strings.NewReader("second"))
	if err != nil {
		t.Fatal(err)
	}
	if !res.Completed {
		t.Error("re-upload after failure did not complete")
	}
	got, _ := os.ReadFile(s.FilePath("victim.bin"))
	if string(got) != "firstsecond" {
		t.Errorf("re-uploaded content = %q", got)
	}
	t.Logf("✓ failed assembly cleaned up; restart from chunk 0 succeeded")
}

// TestAssemblingStateGatesDownloads checks the file lifecycle: a name is
// never ready and assembling at once, and leaves assembling only when the
// final file exists or assembly failed.
func TestAssemblingStateGatesDownloads(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if s.State("f.bin") != StateAbsent {
		t.Error("unknown file not absent")
	}

	s.setAssembling("f.bin", true)
	if s.State("f.bin") != StateAssembling {
		t.Error("assembling file not reported as assembling")
	}
	if got := s.Assembling(); len(got) != 1 || got[0] != "f.bin" {
		t.Errorf("Assembling() = %v", got)
	}

	s.setAssembling("f.bin", false)
	if s.State("f.bin") != StateAbsent {
		t.Error("cleared file should be absent until it exists on disk")
	}

	if _, err := s.SaveDirect("f.bin", "u", strings.NewReader("data")); err != nil {
		t.Fatal(err)
	}
	if s.State("f.bin") != StateReady {
		t.Error("stored file not ready")
	}
	t.Logf("✓ lifecycle absent → assembling → ready holds")
}

func TestSaveDirectWritesMetadata(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	size, err := s.SaveDirect("doc.txt", "carol", strings.NewReader("hello world"))
	if err != nil {
		t.Fatal(err)
	}
	if size != 11 {
		t.Errorf("size = %d, want 11", size)
	}

	meta := s.Meta().Load("doc.txt")
	if meta.UploadedBy != "carol" || meta.FileSize != 11 {
		t.Errorf("metadata = %+v", meta)
	}

	if err := s.Meta().AddDownload("doc.txt", "dave"); err != nil {
		t.Fatal(err)
	}
	meta = s.Meta().Load("doc.txt")
	if len(meta.Downloads) != 1 || meta.Downloads[0].Username != "dave" {
		t.Errorf("downloads = %+v", meta.Downloads)
	}
	t.Logf("✓ sidecar metadata written and download recorded")
}

func TestListSkipsInternalDirs(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	s.SaveDirect("visible.txt", "u", strings.NewReader("x"))

	files := s.List()
	if len(files) != 1 || files[0] != "visible.txt" {
		t.Errorf("List() = %v, want [visible.txt]", files)
	}
}

func TestDeleteRemovesFileAndSidecar(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	s.SaveDirect("gone.txt", "u", strings.NewReader("x"))
	if err := s.Delete("gone.txt"); err != nil {
		t.Fatal(err)
	}
	if s.State("gone.txt") != StateAbsent {
		t.Error("deleted file still present")
	}
	if meta := s.Meta().Load("gone.txt"); meta.UploadedBy != "Unknown" {
		t.Error("sidecar survived delete")
	}
}

func TestCleanFilename(t *testing.T) {
	cases := []struct{ in, want string }{
		{"report.pdf", "report.pdf"},
		{"dir/report.pdf", "report.pdf"},
		{"..\\..\\evil.exe", "evil.exe"},
		{"../../../etc/passwd", "passwd"},
		{".hidden", ""},
		{"", ""},
		{"..", ""},
	}
	for _, c := range cases {
		if got := CleanFilename(c.in); got != c.want {
			t.Errorf("CleanFilename(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
