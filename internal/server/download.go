package server

import (
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/Patel-Priyank-1602/File-Transfer/internal/session"
	"github.com/Patel-Priyank-1602/File-Transfer/internal/share"
)

// handleDownload serves a stored file, honoring a single byte-range so
// clients can resume or parallelize. Files mid-assembly get 425 so the
// client can retry rather than receive truncated data.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	filename := share.CleanFilename(mux.Vars(r)["filename"])
	if filename == "" {
		writeError(w, http.StatusBadRequest, "invalid filename")
		return
	}

	switch s.store.State(filename) {
	case share.StateAssembling:
		writeJSON(w, http.StatusTooEarly, map[string]any{
			"error":      "file is still being assembled, please wait",
			"assembling": true,
		})
		return
	case share.StateAbsent:
		writeError(w, http.StatusNotFound, "file not found")
		return
	}

	path := s.store.FilePath(filename)
	f, err := os.Open(path)
	if err != nil {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	size := info.Size()

	rng, err := share.ParseRange(r.Header.Get("Range"), size)
	if err != nil {
		writeError(w, http.StatusRequestedRangeNotSatisfiable, "invalid range")
		return
	}

	// One history entry per logical download: the whole-file request or
	// the range that starts it.
	if rng == nil || rng.Start == 0 {
		if err := s.store.Meta().AddDownload(filename, sess.Username); err != nil {
			log.Printf("ERROR recording download of %s: %v", filename, err)
		}
	}

	ctype := mime.TypeByExtension(filepath.Ext(filename))
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ctype)
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Cache-Control", "no-cache")

	if rng != nil {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", rng.Start, rng.End, size))
		w.Header().Set("Content-Length", strconv.FormatInt(rng.Length, 10))
		w.WriteHeader(http.StatusPartialContent)
		if _, err := f.Seek(rng.Start, io.SeekStart); err != nil {
			return
		}
		streamBlocks(w, f, rng.Length)
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	streamBlocks(w, f, size)
}

// streamBlocks copies exactly n bytes in fixed-size blocks.
func streamBlocks(w io.Writer, f io.Reader, n int64) {
	buf := make([]byte, share.DownloadBlockSize)
	remaining := n
	for remaining > 0 {
		block := int64(len(buf))
		if remaining < block {
			block = remaining
		}
		read, err := f.Read(buf[:block])
		if read > 0 {
			if _, werr := w.Write(buf[:read]); werr != nil {
				return
			}
			remaining -= int64(read)
		}
		if err != nil {
			return
		}
	}
}

func (s *Server) handleFileInfo(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	filename := share.CleanFilename(mux.Vars(r)["filename"])
	if filename == "" {
		writeError(w, http.StatusBadRequest, "invalid filename")
		return
	}
	writeJSON(w, http.StatusOK, s.store.Meta().Load(filename))
}

func (s *Server) handleFileStatus(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	assembling := s.store.Assembling()
	if assembling == nil {
		assembling = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"assembling": assembling})
}

// handleListFiles returns every ready or assembling file with its
// metadata, for the file listing pages.
func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	type fileEntry struct {
		Filename   string `json:"filename"`
		UploadedBy string `json:"uploaded_by"`
		UploadTime string `json:"upload_time"`
		FileSize   int64  `json:"file_size"`
		Downloads  int    `json:"downloads"`
		Assembling bool   `json:"assembling"`
	}

	entries := []fileEntry{}
	for _, name := range s.store.List() {
		meta := s.store.Meta().Load(name)
		entries = append(entries, fileEntry{
			Filename:   name,
			UploadedBy: meta.UploadedBy,
			UploadTime: meta.UploadTime,
			FileSize:   meta.FileSize,
			Downloads:  len(meta.Downloads),
			Assembling: s.store.State(name) == share.StateAssembling,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": entries})
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	filename := share.CleanFilename(mux.Vars(r)["filename"])
	if filename == "" {
		writeError(w, http.StatusBadRequest, "invalid filename")
		return
	}
	if err := s.store.Delete(filename); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.chat.System(fmt.Sprintf("%s deleted %s", sess.Username, filename))
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
