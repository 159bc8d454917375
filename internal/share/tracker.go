package share

import (
	"math"
	"sort"
	"time"
)

// TransferProgress is one row in the live progress feed. Observability
// only: the snapshot is rebuilt from the transfer registry on every poll
// and nothing here survives a restart.
type TransferProgress struct {
	Filename string  `json:"filename"`
	Percent  float64 `json:"percent"`
	Speed    float64 `json:"speed"` // MB/s
	Received int     `json:"received"`
	Total    int     `json:"total"`
}

// Progress returns a snapshot of every in-flight chunked upload, sorted
// by filename so successive polls render stably.
func (s *Store) Progress() []TransferProgress {
	now := time.Now()
	s.tmu.Lock()
	out := make([]TransferProgress, 0, len(s.transfers))
	for _, t := range s.transfers {
		received := len(t.received)
		percent := 0.0
		if t.totalChunks > 0 {
			percent = float64(received) / float64(t.totalChunks) * 100
		}
		elapsed := now.Sub(t.startTime).Seconds()
		speed := 0.0
		if elapsed > 0 {
			speed = float64(t.totalBytes) / elapsed / (1024 * 1024)
		}
		out = append(out, TransferProgress{
			Filename: t.filename,
			Percent:  math.Round(percent*10) / 10,
			Speed:    math.Round(speed*100) / 100,
			Received: received,
			Total:    t.totalChunks,
		})
	}
	s.tmu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Filename < out[j].Filename })
	return out
}
