// Package share implements the file-sharing core: chunked upload
// assembly, folder archiving, byte-range downloads, and the per-file
// metadata sidecars.
package share

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// DownloadBlockSize is the read granularity for streaming downloads.
const DownloadBlockSize = 2 * 1024 * 1024 // 2MB

// FileState is the per-file lifecycle: absent -> assembling -> ready.
// Downloads only succeed in StateReady.
type FileState int

const (
	StateAbsent FileState = iota
	StateAssembling
	StateReady
)

var (
	ErrNotFound     = errors.New("file not found")
	ErrAssembling   = errors.New("file is still being assembled")
	ErrInvalidChunk = errors.New("chunk index out of range")
)

// transfer tracks one in-flight chunked upload.
type transfer struct {
	filename    string
	totalChunks int
	received    map[int]struct{}
	chunkSizes  map[int]int64
	totalBytes  int64
	startTime   time.Time
}

// ChunkResult reports what StoreChunk did with a chunk.
type ChunkResult struct {
	Completed bool
	Received  int
	Total     int
	// Set only when Completed: final size and average speed in MB/s.
	Size      int64
	SpeedMBps float64
}

// Store owns the shared-files directory tree: final files at the root,
// temp chunks under .temp, sidecars under .metadata. Each shared map has
// its own lock; no operation holds two at once.
type Store struct {
	uploadDir string
	tempDir   string
	meta      *MetadataStore

	tmu       sync.Mutex
	transfers map[string]*transfer

	amu        sync.Mutex
	assembling map[string]struct{}

	fmu     sync.Mutex
	folders map[string]*folderUpload

	smu      sync.Mutex
	statuses map[string]*FolderStatus

	// notify posts a system chat message; wired by the server, optional.
	notify func(text string)
}

func NewStore(uploadDir string) (*Store, error) {
	tempDir := filepath.Join(uploadDir, ".temp")
	metaDir := filepath.Join(uploadDir, ".metadata")
	for _, dir := range []string{uploadDir, tempDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrapf(err, "create %s", dir)
		}
	}
	meta, err := NewMetadataStore(metaDir)
	if err != nil {
		return nil, err
	}
	return &Store{
		uploadDir:  uploadDir,
		tempDir:    tempDir,
		meta:       meta,
		transfers:  make(map[string]*transfer),
		assembling: make(map[string]struct{}),
		folders:    make(map[string]*folderUpload),
		statuses:   make(map[string]*FolderStatus),
	}, nil
}

// SetNotify wires the system-message hook used for upload announcements.
func (s *Store) SetNotify(fn func(text string)) { s.notify = fn }

// Meta exposes the sidecar store.
func (s *Store) Meta() *MetadataStore { return s.meta }

func (s *Store) notifySystem(text string) {
	if s.notify != nil {
		s.notify(text)
	}
}

// CleanFilename strips any path components from a client-supplied name.
// Empty and dot-prefixed results are rejected so clients cannot reach the
// .temp or .metadata trees.
func CleanFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(filepath.Clean("/" + name))
	if name == "/" || name == "." || strings.HasPrefix(name, ".") {
		return ""
	}
	return name
}

// transferID derives the upload key from the target filename, so parallel
// streams uploading the same file land in one transfer.
func transferID(filename string) string {
	sum := sha256.Sum256([]byte(filename))
	return hex.EncodeToString(sum[:])
}

func (s *Store) chunkPath(id string, index int) string {
	return filepath.Join(s.tempDir, fmt.Sprintf("%s_chunk_%d", id, index))
}

// FilePath returns the on-disk location of a shared file.
func (s *Store) FilePath(filename string) string {
	return filepath.Join(s.uploadDir, filename)
}

// StoreChunk persists one chunk of a transfer. Chunks may arrive in any
// order and from parallel streams; when the count of distinct indices
// reaches totalChunks the file is assembled in index order. Exactly one
// caller observes completion: the transfer record is claimed inside the
// critical section, so a duplicate chunk arriving during assembly opens a
// fresh transfer instead of assembling the same file twice. On assembly
// failure everything is cleaned up and the upload must restart at chunk 0.
func (s *Store) StoreChunk(filename, uploader string, index, totalChunks int, chunk io.Reader) (*ChunkResult, error) {
	if totalChunks <= 0 || index < 0 || index >= totalChunks {
		return nil, errors.Wrapf(ErrInvalidChunk, "chunk index %d with %d total", index, totalChunks)
	}
	id := transferID(filename)

	written, err := s.writeChunk(id, index, chunk)
	if err != nil {
		return nil, err
	}

	s.tmu.Lock()
	t, ok := s.transfers[id]
	if !ok {
		t = &transfer{
			filename:    filename,
			totalChunks: totalChunks,
			received:    make(map[int]struct{}),
			chunkSizes:  make(map[int]int64),
			startTime:   time.Now(),
		}
		s.transfers[id] = t
	}
	if _, dup := t.received[index]; !dup {
		t.received[index] = struct{}{}
		t.totalBytes += written
	}
	t.chunkSizes[index] = written
	received := len(t.received)
	complete := received == t.totalChunks
	var sizes map[int]int64
	var start time.Time
	if complete {
		sizes = make(map[int]int64, len(t.chunkSizes))
		for i, sz := range t.chunkSizes {
			sizes[i] = sz
		}
		start = t.startTime
		// Claim the completion while still holding the lock. Dropping the
		// record here means a late duplicate cannot re-observe
		// received == totalChunks and race a second assembly of the same
		// final path.
		delete(s.transfers, id)
	}
	s.tmu.Unlock()

	if !complete {
		return &ChunkResult{Received: received, Total: totalChunks}, nil
	}

	// Gate downloads before the first byte of the final file exists.
	s.setAssembling(filename, true)

	finalSize, err := s.assemble(id, filename, totalChunks)
	if err != nil {
		s.setAssembling(filename, false)
		s.evictTransfer(id, filename, totalChunks)
		return nil, err
	}

	var expected int64
	for _, sz := range sizes {
		expected += sz
	}
	if finalSize != expected {
		// Lenient on purpose: the assembled file is still served.
		log.Printf("WARNING: size mismatch for %s: assembled %d bytes, expected %d", filename, finalSize, expected)
	}

	elapsed := time.Since(start).Seconds()
	speed := 0.0
	if elapsed > 0 {
		speed = float64(finalSize) / elapsed / (1024 * 1024)
	}

	if err := s.meta.Save(&Metadata{
		Filename:   filename,
		UploadedBy: uploader,
		UploadTime: time.Now().Format(timeFormat),
		FileSize:   finalSize,
		Downloads:  []DownloadRecord{},
	}); err != nil {
		log.Printf("ERROR saving metadata for %s: %v", filename, err)
	}

	s.setAssembling(filename, false)

	return &ChunkResult{
		Completed: true,
		Received:  received,
		Total:     totalChunks,
		Size:      finalSize,
		SpeedMBps: speed,
	}, nil
}

func (s *Store) writeChunk(id string, index int, chunk io.Reader) (int64, error) {
	written, err := writeFileFrom(s.chunkPath(id, index), chunk)
	if err != nil {
		return 0, errors.Wrapf(err, "write chunk %d", index)
	}
	return written, nil
}

// assemble concatenates chunks 0..total-1 in index order into the final
// file, deleting each temp chunk after it is consumed. Any failure removes
// the partial final file; the caller purges the remaining chunks.
func (s *Store) assemble(id, filename string, total int) (int64, error) {
	finalPath := s.FilePath(filename)
	err := assemblePaths(finalPath, func(i int) string { return s.chunkPath(id, i) }, total)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(finalPath)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// evictTransfer purges a failed transfer: remaining temp chunks go away
// and the record is dropped, so the client restarts from chunk 0.
func (s *Store) evictTransfer(id, filename string, total int) {
	for i := 0; i < total; i++ {
		os.Remove(s.chunkPath(id, i))
	}
	s.tmu.Lock()
	delete(s.transfers, id)
	s.tmu.Unlock()
}

func (s *Store) setAssembling(filename string, on bool) {
	s.amu.Lock()
	if on {
		s.assembling[filename] = struct{}{}
	} else {
		delete(s.assembling, filename)
	}
	s.amu.Unlock()
}

// State reports where a file is in the absent/assembling/ready lifecycle.
func (s *Store) State(filename string) FileState {
	s.amu.Lock()
	_, busy := s.assembling[filename]
	s.amu.Unlock()
	if busy {
		return StateAssembling
	}
	if _, err := os.Stat(s.FilePath(filename)); err == nil {
		return StateReady
	}
	return StateAbsent
}

// Assembling lists the filenames currently being written.
func (s *Store) Assembling() []string {
	s.amu.Lock()
	defer s.amu.Unlock()
	out := make([]string, 0, len(s.assembling))
	for name := range s.assembling {
		out = append(out, name)
	}
	return out
}

// SaveDirect stores a whole file in one shot (the non-chunked fallback).
// The name is gated while the bytes stream in, the same as assembly, so a
// concurrent download cannot read a half-written file.
func (s *Store) SaveDirect(filename, uploader string, r io.Reader) (int64, error) {
	s.setAssembling(filename, true)
	defer s.setAssembling(filename, false)

	path := s.FilePath(filename)
	f, err := os.Create(path)
	if err != nil {
		return 0, errors.Wrap(err, "create file")
	}
	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return 0, errors.Wrap(err, "write file")
	}
	if err := s.meta.Save(&Metadata{
		Filename:   filename,
		UploadedBy: uploader,
		UploadTime: time.Now().Format(timeFormat),
		FileSize:   size,
		Downloads:  []DownloadRecord{},
	}); err != nil {
		log.Printf("ERROR saving metadata for %s: %v", filename, err)
	}
	return size, nil
}

// List returns the shared filenames, skipping the dot-prefixed internals.
func (s *Store) List() []string {
	entries, err := os.ReadDir(s.uploadDir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		out = append(out, e.Name())
	}
	return out
}

// Delete removes a shared file and its sidecar.
func (s *Store) Delete(filename string) error {
	if err := os.Remove(s.FilePath(filename)); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove file")
	}
	return s.meta.Delete(filename)
}
