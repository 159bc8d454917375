package share

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
)

// timeFormat is the wall-clock format used in sidecars and the activity log.
const timeFormat = "2006-01-02 15:04:05"

// DownloadRecord is one entry in a file's download history.
type DownloadRecord struct {
	Username  string `json:"username"`
	Timestamp string `json:"timestamp"`
}

// Metadata is the JSON sidecar kept for every shared file.
type Metadata struct {
	Filename   string           `json:"filename"`
	UploadedBy string           `json:"uploaded_by"`
	UploadTime string           `json:"upload_time"`
	FileSize   int64            `json:"file_size"`
	Downloads  []DownloadRecord `json:"downloads"`
	FromFolder bool             `json:"from_folder,omitempty"`
	FileCount  int              `json:"file_count,omitempty"`
}

// MetadataStore persists one sidecar per file under the metadata dir.
type MetadataStore struct {
	dir string
	mu  sync.Mutex
}

func NewMetadataStore(dir string) (*MetadataStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, "create metadata dir")
	}
	return &MetadataStore{dir: dir}, nil
}

func (m *MetadataStore) path(filename string) string {
	return filepath.Join(m.dir, filename+".json")
}

// Save writes the sidecar for a file, replacing any previous one.
func (m *MetadataStore) Save(meta *Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return os.WriteFile(m.path(meta.Filename), data, 0644)
}

// Load reads the sidecar for a file. A missing or unreadable sidecar
// yields a placeholder record rather than an error, matching how file
// listings tolerate files that predate metadata tracking.
func (m *MetadataStore) Load(filename string) *Metadata {
	m.mu.Lock()
	data, err := os.ReadFile(m.path(filename))
	m.mu.Unlock()
	if err == nil {
		var meta Metadata
		if json.Unmarshal(data, &meta) == nil {
			return &meta
		}
	}
	return &Metadata{
		Filename:   filename,
		UploadedBy: "Unknown",
		UploadTime: "Unknown",
		Downloads:  []DownloadRecord{},
	}
}

// AddDownload appends a download record to a file's history.
func (m *MetadataStore) AddDownload(filename, username string) error {
	meta := m.Load(filename)
	meta.Downloads = append(meta.Downloads, DownloadRecord{
		Username:  username,
		Timestamp: time.Now().Format(timeFormat),
	})
	return m.Save(meta)
}

// Delete removes a file's sidecar. Missing sidecars are not an error.
func (m *MetadataStore) Delete(filename string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	err := os.Remove(m.path(filename))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// ActivityMessage is the slice of chat history the activity log needs.
// Declared here so the log writer does not import the chat package.
type ActivityMessage struct {
	Username  string
	Message   string
	Timestamp string
}

// WriteActivityLog writes the human-readable end-of-run report: every
// shared file with its upload and download history, followed by the chat
// transcript. Returns the log filename.
func (s *Store) WriteActivityLog(messages []ActivityMessage) (string, error) {
	name := fmt.Sprintf("transfer_log_%s.txt", time.Now().Format("2006-01-02_15-04-05"))

	var b strings.Builder
	rule := strings.Repeat("=", 80)
	sep := strings.Repeat("-", 80)

	b.WriteString(rule + "\n")
	b.WriteString("FILE TRANSFER SERVER - ACTIVITY LOG\n")
	b.WriteString("Generated: " + time.Now().Format(timeFormat) + "\n")
	b.WriteString(rule + "\n\n")

	files := s.List()
	sort.Strings(files)
	if len(files) == 0 {
		b.WriteString("No files were uploaded during this session.\n\n")
	} else {
		fmt.Fprintf(&b, "TOTAL FILES: %d\n%s\n\n", len(files), sep)
		for _, filename := range files {
			meta := s.meta.Load(filename)
			fmt.Fprintf(&b, "FILE: %s\n", filename)
			fmt.Fprintf(&b, "  Uploaded by: %s\n", meta.UploadedBy)
			fmt.Fprintf(&b, "  Upload time: %s\n", meta.UploadTime)
			if info, err := os.Stat(s.FilePath(filename)); err == nil {
				fmt.Fprintf(&b, "  File size: %s\n", humanize.IBytes(uint64(info.Size())))
			} else {
				b.WriteString("  File size: file not found\n")
			}
			fmt.Fprintf(&b, "  Total downloads: %d\n", len(meta.Downloads))
			if len(meta.Downloads) > 0 {
				b.WriteString("  Download history:\n")
				for i, d := range meta.Downloads {
					fmt.Fprintf(&b, "    %d. %s - %s\n", i+1, d.Username, d.Timestamp)
				}
			}
			b.WriteString("\n" + sep + "\n\n")
		}
	}

	b.WriteString("\n" + rule + "\n")
	b.WriteString("CHAT MESSAGES SUMMARY\n")
	b.WriteString(rule + "\n\n")
	if len(messages) == 0 {
		b.WriteString("No chat messages during this session.\n")
	} else {
		fmt.Fprintf(&b, "TOTAL MESSAGES: %d\n%s\n\n", len(messages), sep)
		for _, msg := range messages {
			fmt.Fprintf(&b, "[%s] %s: %s\n", msg.Timestamp, msg.Username, msg.Message)
		}
	}
	b.WriteString("\n" + rule + "\nEND OF LOG\n" + rule + "\n")

	if err := os.WriteFile(name, []byte(b.String()), 0644); err != nil {
		return "", errors.Wrap(err, "write activity log")
	}
	return name, nil
}
