// Package server wires the sharing core to its HTTP surface: session
// auth, chunked uploads, range downloads, folder archiving, the join
// gate, presence, and chat.
package server

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Patel-Priyank-1602/File-Transfer/internal/chat"
	"github.com/Patel-Priyank-1602/File-Transfer/internal/config"
	"github.com/Patel-Priyank-1602/File-Transfer/internal/join"
	"github.com/Patel-Priyank-1602/File-Transfer/internal/presence"
	"github.com/Patel-Priyank-1602/File-Transfer/internal/session"
	"github.com/Patel-Priyank-1602/File-Transfer/internal/share"
)

// Feed tick intervals; long-lived streaming endpoints poll shared state
// on a fixed interval rather than being woken by events.
const (
	chatFeedInterval     = 300 // milliseconds
	progressFeedInterval = 500 // milliseconds
)

type Server struct {
	cfg      *config.Config
	store    *share.Store
	sessions *session.Store
	presence *presence.Registry
	gate     *join.Gate
	chat     *chat.Log
}

func New(cfg *config.Config) (*Server, error) {
	store, err := share.NewStore(cfg.UploadDir)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:      cfg,
		store:    store,
		sessions: session.NewStore(),
		presence: presence.NewRegistry(cfg.UserTimeout),
		chat:     chat.NewLog(),
	}
	s.gate = join.NewGate(cfg.JoinTTL, s.presence.Unban)
	store.SetNotify(s.chat.System)
	return s, nil
}

// Store exposes the sharing core, mainly for the shutdown flush.
func (s *Server) Store() *share.Store { return s.store }

// Chat exposes the message log, mainly for the shutdown flush.
func (s *Server) Chat() *chat.Log { return s.chat }

// Router builds the full route table.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	// Unauthenticated: login and the join flow.
	r.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/join", s.handleJoinInfo).Methods(http.MethodGet)
	r.HandleFunc("/join/request", s.handleJoinRequest).Methods(http.MethodPost)
	r.HandleFunc("/join/status/{id}", s.handleJoinStatus).Methods(http.MethodGet)

	// Authenticated.
	r.HandleFunc("/logout", s.auth(s.handleLogout)).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/check_username", s.auth(s.handleCheckUsername)).Methods(http.MethodGet)

	r.HandleFunc("/upload_chunk", s.auth(s.handleUploadChunk)).Methods(http.MethodPost)
	r.HandleFunc("/upload_parallel", s.auth(s.handleUploadParallel)).Methods(http.MethodPost)
	r.HandleFunc("/upload_progress", s.auth(s.handleUploadProgress)).Methods(http.MethodGet)
	r.HandleFunc("/download_parallel/{filename}", s.auth(s.handleDownload)).Methods(http.MethodGet)

	r.HandleFunc("/upload_folder_start", s.auth(s.handleFolderStart)).Methods(http.MethodPost)
	r.HandleFunc("/upload_folder_file", s.auth(s.handleFolderFile)).Methods(http.MethodPost)
	r.HandleFunc("/upload_folder_finalize", s.auth(s.handleFolderFinalize)).Methods(http.MethodPost)
	r.HandleFunc("/upload_folder_finalize_status/{folderId}", s.auth(s.handleFolderStatus)).Methods(http.MethodGet)

	r.HandleFunc("/file_info/{filename}", s.auth(s.handleFileInfo)).Methods(http.MethodGet)
	r.HandleFunc("/file_status", s.auth(s.handleFileStatus)).Methods(http.MethodGet)
	r.HandleFunc("/api/files", s.auth(s.handleListFiles)).Methods(http.MethodGet)
	r.HandleFunc("/delete_file/{filename}", s.auth(s.hostOnly(s.handleDeleteFile))).Methods(http.MethodPost)

	r.HandleFunc("/online_users", s.auth(s.handleOnlineUsers)).Methods(http.MethodGet)
	r.HandleFunc("/admin/kick_user", s.auth(s.hostOnly(s.handleKickUser))).Methods(http.MethodPost)

	r.HandleFunc("/chat/send", s.auth(s.handleChatSend)).Methods(http.MethodPost)
	r.HandleFunc("/chat/messages", s.auth(s.handleChatFeed)).Methods(http.MethodGet)
	r.HandleFunc("/chat/history", s.auth(s.handleChatHistory)).Methods(http.MethodGet)
	r.HandleFunc("/chat/set_username", s.auth(s.handleSetUsername)).Methods(http.MethodPost)

	r.HandleFunc("/join/respond", s.auth(s.hostOnly(s.handleJoinRespond))).Methods(http.MethodPost)
	r.HandleFunc("/join/pending", s.auth(s.hostOnly(s.handleJoinPending))).Methods(http.MethodGet)
	r.HandleFunc("/api/history", s.auth(s.hostOnly(s.handleJoinHistory))).Methods(http.MethodGet)

	return r
}
