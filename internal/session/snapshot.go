package session

import (
	"time"

	"github.com/seventv/image-resizer/internal/scheduler"
	"github.com/seventv/image-resizer/task"
)

type PayloadInfo struct {
	Format     task.Format `json:"format"`
	Quality    float64     `json:"quality"`
	Width      int         `json:"width"`
	Height     int         `json:"height"`
	Size       int         `json:"size"`
	MIME       string      `json:"mime"`
	SHA3       string      `json:"sha3"`
	Generation uint64      `json:"generation"`
}

type Snapshot struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	MIME          string          `json:"mime"`
	Original      task.Dimensions `json:"original"`
	OriginalBytes int64           `json:"original_bytes"`
	CreatedAt     time.Time       `json:"created_at"`

	Options    task.Options  `json:"options"`
	Estimate   task.Estimate `json:"estimate"`
	Payload    *PayloadInfo  `json:"payload,omitempty"`
	Filename   string        `json:"filename"`
	Busy       bool          `json:"busy"`
	State      string        `json:"state"`
	Generation uint64        `json:"generation"`
	Result     string        `json:"result,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// Snapshot returns a consistent copy of everything a caller displays. Edits
// request runs while holding the session lock, so the generation read here
// always belongs to the options read here.
func (s *Session) Snapshot() Snapshot {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	state := s.sched.State()
	generation := s.sched.Generation()
	filename := s.filenameLocked()

	snap := Snapshot{
		ID:            s.ID,
		Name:          s.Name,
		MIME:          s.MIME,
		Original:      s.Original,
		OriginalBytes: s.OriginalBytes,
		CreatedAt:     s.CreatedAt,

		Options:    s.options,
		Estimate:   s.estimate,
		Filename:   filename,
		Busy:       state != scheduler.StateIdle,
		State:      state.String(),
		Generation: generation,
	}

	if s.payload != nil {
		snap.Payload = &PayloadInfo{
			Format:     s.payload.Format,
			Quality:    s.payload.Quality,
			Width:      s.payload.Width,
			Height:     s.payload.Height,
			Size:       s.payload.Len(),
			MIME:       s.payload.MIME(),
			SHA3:       s.payload.SHA3(),
			Generation: s.payloadAt,
		}
	}

	switch {
	case s.lastErr != nil:
		snap.Result = task.ResultStateFailed.String()
		snap.Error = s.lastErr.Error()
	case s.payload != nil:
		snap.Result = task.ResultStateSuccess.String()
	}

	return snap
}
