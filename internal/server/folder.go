package server

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/Patel-Priyank-1602/File-Transfer/internal/session"
	"github.com/Patel-Priyank-1602/File-Transfer/internal/share"
)

// handleFolderStart opens a folder-upload session.
func (s *Server) handleFolderStart(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req struct {
		FolderName string `json:"folderName"`
		TotalFiles int    `json:"totalFiles"`
		TotalSize  int64  `json:"totalSize"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request")
		return
	}

	id, err := s.store.StartFolder(req.FolderName, sess.Username, req.TotalFiles, req.TotalSize)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "folderId": id})
}

// handleFolderFile receives one chunk of one file inside a folder session.
func (s *Server) handleFolderFile(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "malformed multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	folderID := r.FormValue("folderId")
	relPath := r.FormValue("relativePath")
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

	chunk, _, err := r.FormFile("chunk")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing chunk")
		return
	}
	defer chunk.Close()

	fileComplete, err := s.store.StoreFolderChunk(folderID, relPath, chunkIndex, totalChunks, chunk)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, share.ErrUnknownFolder):
			status = http.StatusNotFound
		case errors.Is(err, share.ErrInvalidChunk):
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "fileComplete": fileComplete})
}

// handleFolderFinalize starts the background archive job; the response
// returns immediately and the client polls the status endpoint.
func (s *Server) handleFolderFinalize(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req struct {
		FolderID string `json:"folderId"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request")
		return
	}

	if err := s.store.FinalizeFolder(req.FolderID); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, share.ErrUnknownFolder) {
			status = http.StatusNotFound
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "status": share.FolderProcessing})
}

func (s *Server) handleFolderStatus(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	st, ok := s.store.FolderStatusFor(mux.Vars(r)["folderId"])
	if !ok {
		writeError(w, http.StatusNotFound, "unknown folder")
		return
	}
	writeJSON(w, http.StatusOK, st)
}
