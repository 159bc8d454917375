package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"github.com/Patel-Priyank-1602/File-Transfer/internal/session"
	"github.com/Patel-Priyank-1602/File-Transfer/internal/share"
)

// multipartMemory caps how much of a multipart body is buffered in memory
// before spilling to disk.
const multipartMemory = 32 << 20

// handleUploadChunk receives one chunk of a chunked upload. The last
// chunk triggers assembly; the response then carries the final size and
// average speed.
func (s *Server) handleUploadChunk(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "malformed multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	chunkIndex, err := strconv.Atoi(r.FormValue("chunkIndex"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid chunkIndex")
		return
	}
	totalChunks, err := strconv.Atoi(r.FormValue("totalChunks"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid totalChunks")
		return
	}
	filename := share.CleanFilename(r.FormValue("filename"))
	if filename == "" {
		writeError(w, http.StatusBadRequest, "invalid filename")
		return
	}

	chunk, _, err := r.FormFile("chunk")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing chunk")
		return
	}
	defer chunk.Close()

	res, err := s.store.StoreChunk(filename, sess.Username, chunkIndex, totalChunks, chunk)
	if err != nil {
		// Bad chunk parameters are the client's fault; everything else is
		// a disk or assembly failure.
		status := http.StatusInternalServerError
		if errors.Is(err, share.ErrInvalidChunk) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}

	if !res.Completed {
		writeJSON(w, http.StatusOK, map[string]any{
			"success":   true,
			"completed": false,
			"received":  res.Received,
			"total":     res.Total,
		})
		return
	}

	s.chat.System(fmt.Sprintf("%s uploaded %s (%s)",
		sess.Username, filename, humanize.IBytes(uint64(res.Size))))

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"completed": true,
		"speed":     res.SpeedMBps,
		"size":      res.Size,
	})
}

// handleUploadParallel is the single-shot fallback for clients that do
// not chunk.
func (s *Server) handleUploadParallel(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "malformed multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file")
		return
	}
	defer file.Close()

	filename := share.CleanFilename(header.Filename)
	if filename == "" {
		writeError(w, http.StatusBadRequest, "invalid filename")
		return
	}

	if _, err := s.store.SaveDirect(filename, sess.Username, file); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.chat.System(fmt.Sprintf("%s uploaded %s", sess.Username, filename))

	http.Redirect(w, r, "/files", http.StatusSeeOther)
}

// handleUploadProgress is the server-push progress feed: a snapshot of
// every active transfer every 500ms, empty array included, until the
// client goes away.
func (s *Server) handleUploadProgress(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(progressFeedInterval * time.Millisecond)
	defer ticker.Stop()

	for {
		snapshot := s.store.Progress()
		if snapshot == nil {
			snapshot = []share.TransferProgress{}
		}
		data, err := json.Marshal(snapshot)
		if err != nil {
			return
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return
		}
		flusher.Flush()

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
