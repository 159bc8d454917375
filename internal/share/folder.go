package share

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var ErrUnknownFolder = errors.New("unknown folder upload")

// Folder finalize statuses. A status transitions out of processing
// exactly once.
const (
	FolderProcessing = "processing"
	FolderComplete   = "complete"
	FolderError      = "error"
)

// FolderStatus is the poll result for an archive job.
type FolderStatus struct {
	Status   string  `json:"status"`
	Percent  float64 `json:"progress_percent"`
	Filename string  `json:"filename,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// folderUpload tracks one client folder-upload session. Files inside are
// keyed by relative path and independently chunked, mirroring the
// single-file transfer bookkeeping at file granularity.
type folderUpload struct {
	id         string
	name       string
	owner      string
	tempDir    string // <tempDir>/folder_<id>
	totalFiles int
	totalSize  int64
	startTime  time.Time

	mu            sync.Mutex
	files         map[string]*transfer // by relative path
	receivedFiles int
	receivedBytes int64
}

// cleanRelPath normalizes a client-supplied relative path and rejects
// traversal outside the folder tree.
func cleanRelPath(rel string) (string, error) {
	rel = strings.ReplaceAll(rel, "\\", "/")
	rel = filepath.ToSlash(filepath.Clean(rel))
	if rel == "" || rel == "." || strings.HasPrefix(rel, "/") || strings.HasPrefix(rel, "..") {
		return "", errors.Errorf("unsafe relative path %q", rel)
	}
	return rel, nil
}

// StartFolder opens a folder-upload session and returns its id.
func (s *Store) StartFolder(folderName, owner string, totalFiles int, totalSize int64) (string, error) {
	folderName = CleanFilename(folderName)
	if folderName == "" {
		return "", errors.New("invalid folder name")
	}
	if totalFiles <= 0 {
		return "", errors.New("folder must contain at least one file")
	}

	f := &folderUpload{
		id:         uuid.NewString(),
		name:       folderName,
		owner:      owner,
		totalFiles: totalFiles,
		totalSize:  totalSize,
		startTime:  time.Now(),
		files:      make(map[string]*transfer),
	}
	f.tempDir = filepath.Join(s.tempDir, "folder_"+f.id)
	if err := os.MkdirAll(filepath.Join(f.tempDir, "tree"), 0755); err != nil {
		return "", errors.Wrap(err, "create folder temp dir")
	}

	s.fmu.Lock()
	s.folders[f.id] = f
	s.fmu.Unlock()
	return f.id, nil
}

func (s *Store) folder(id string) (*folderUpload, bool) {
	s.fmu.Lock()
	defer s.fmu.Unlock()
	f, ok := s.folders[id]
	return f, ok
}

// StoreFolderChunk persists one chunk of one file inside a folder session.
// When a file's chunks are all present it is assembled into the session's
// temp tree at its relative path. Returns whether that file completed.
func (s *Store) StoreFolderChunk(folderID, relPath string, index, totalChunks int, chunk io.Reader) (bool, error) {
	f, ok := s.folder(folderID)
	if !ok {
		return false, ErrUnknownFolder
	}
	rel, err := cleanRelPath(relPath)
	if err != nil {
		return false, err
	}
	if totalChunks <= 0 || index < 0 || index >= totalChunks {
		return false, errors.Wrapf(ErrInvalidChunk, "chunk index %d with %d total", index, totalChunks)
	}

	id := transferID(folderID + ":" + rel)
	chunkPath := filepath.Join(f.tempDir, fmt.Sprintf("%s_chunk_%d", id, index))
	written, err := writeFileFrom(chunkPath, chunk)
	if err != nil {
		return false, errors.Wrapf(err, "write chunk %d of %s", index, rel)
	}

	f.mu.Lock()
	t, ok := f.files[rel]
	if !ok {
		t = &transfer{
			filename:    rel,
			totalChunks: totalChunks,
			received:    make(map[int]struct{}),
			chunkSizes:  make(map[int]int64),
			startTime:   time.Now(),
		}
		f.files[rel] = t
	}
	if _, dup := t.received[index]; !dup {
		t.received[index] = struct{}{}
		f.receivedBytes += written
	}
	t.chunkSizes[index] = written
	complete := len(t.received) == t.totalChunks
	f.mu.Unlock()

	if !complete {
		return false, nil
	}

	dest := filepath.Join(f.tempDir, "tree", filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return false, errors.Wrap(err, "create tree dir")
	}
	if err := assemblePaths(dest, func(i int) string {
		return filepath.Join(f.tempDir, fmt.Sprintf("%s_chunk_%d", id, i))
	}, totalChunks); err != nil {
		return false, err
	}

	f.mu.Lock()
	f.receivedFiles++
	f.mu.Unlock()
	return true, nil
}

// FinalizeFolder kicks off the background archive job for a completed
// session. Every announced file must have finished its chunks; archiving
// a partial tree would report a complete archive that is missing files.
// The triggering request returns immediately; completion is observed only
// by polling FolderStatusFor.
func (s *Store) FinalizeFolder(folderID string) error {
	f, ok := s.folder(folderID)
	if !ok {
		return ErrUnknownFolder
	}

	f.mu.Lock()
	got, want := f.receivedFiles, f.totalFiles
	f.mu.Unlock()
	if got < want {
		return errors.Errorf("folder incomplete: %d of %d files received", got, want)
	}

	s.smu.Lock()
	if st, exists := s.statuses[folderID]; exists && st.Status == FolderProcessing {
		s.smu.Unlock()
		return errors.New("finalize already in progress")
	}
	s.statuses[folderID] = &FolderStatus{Status: FolderProcessing}
	s.smu.Unlock()

	go s.zipFolder(f)
	return nil
}

// FolderStatusFor reports the archive job state for a session.
func (s *Store) FolderStatusFor(folderID string) (FolderStatus, bool) {
	s.smu.Lock()
	defer s.smu.Unlock()
	st, ok := s.statuses[folderID]
	if !ok {
		return FolderStatus{}, false
	}
	return *st, true
}

func (s *Store) setFolderStatus(folderID string, update func(*FolderStatus)) {
	s.smu.Lock()
	if st, ok := s.statuses[folderID]; ok {
		update(st)
	}
	s.smu.Unlock()
}

// writeFileFrom streams r into path via a rename, so a rewrite of an
// existing chunk never truncates a file a concurrent reader has open.
func writeFileFrom(path string, r io.Reader) (int64, error) {
	tmp := path + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp, path)
	}
	if err != nil {
		os.Remove(tmp)
		return 0, err
	}
	return n, nil
}

// assemblePaths concatenates total chunk files in index order into dest,
// deleting each chunk after it is consumed.
func assemblePaths(dest string, chunkPath func(int) string, total int) error {
	out, err := os.Create(dest)
	if err != nil {
		return errors.Wrap(err, "create assembled file")
	}
	for i := 0; i < total; i++ {
		in, err := os.Open(chunkPath(i))
		if err != nil {
			out.Close()
			os.Remove(dest)
			return errors.Wrapf(err, "missing chunk %d", i)
		}
		_, err = io.Copy(out, in)
		in.Close()
		if err != nil {
			out.Close()
			os.Remove(dest)
			return errors.Wrapf(err, "copy chunk %d", i)
		}
		os.Remove(chunkPath(i))
	}
	if err := out.Close(); err != nil {
		os.Remove(dest)
		return err
	}
	return nil
}
