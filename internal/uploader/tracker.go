package uploader

import (
	"sync"

	"go-omegaloops/internal/models"
)

// ProgressFunc receives a copy of the upload state after every change.
type ProgressFunc func(models.UploadState)

// Tracker owns the UploadState of one upload. Progress never decreases,
// nothing is emitted after a terminal state, and nothing at all after
// Dispose, so a result that arrives for a torn-down flow is dropped.
type Tracker struct {
	emitMu     sync.Mutex // serializes transition+callback pairs
	mu         sync.Mutex // guards state and disposed
	state      models.UploadState
	disposed   bool
	onProgress ProgressFunc
}

// NewTracker returns a tracker in the pending state.
func NewTracker(onProgress ProgressFunc) *Tracker {
	return &Tracker{
		state:      models.UploadState{Status: models.StatusPending},
		onProgress: onProgress,
	}
}

// State returns a snapshot of the current state.
func (t *Tracker) State() models.UploadState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Dispose detaches the tracker from its consumer. Safe to call repeatedly
// and from any goroutine.
func (t *Tracker) Dispose() {
	t.mu.Lock()
	t.disposed = true
	t.mu.Unlock()
}

// Disposed reports whether Dispose was called.
func (t *Tracker) Disposed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.disposed
}

// transition applies fn to the state and emits the result when fn reports a
// change. It returns false when the update was dropped.
func (t *Tracker) transition(fn func(s *models.UploadState) bool) bool {
	t.emitMu.Lock()
	defer t.emitMu.Unlock()

	t.mu.Lock()
	if t.disposed || t.state.Terminal() {
		t.mu.Unlock()
		return false
	}
	next := t.state
	changed := fn(&next)
	if changed {
		t.state = next
	}
	t.mu.Unlock()

	if changed && t.onProgress != nil {
		t.onProgress(next)
	}
	return changed
}

func (t *Tracker) start() bool {
	return t.transition(func(s *models.UploadState) bool {
		if s.Status != models.StatusPending {
			return false
		}
		s.Status = models.StatusUploading
		s.Progress = 0
		s.Message = "Starting upload..."
		return true
	})
}

func (t *Tracker) advance(progress int, message string) bool {
	if progress > 99 {
		progress = 99 // only completion may claim 100
	}
	return t.transition(func(s *models.UploadState) bool {
		if progress <= s.Progress && s.Status == models.StatusUploading && message == s.Message {
			return false
		}
		s.Status = models.StatusUploading
		if progress > s.Progress {
			s.Progress = progress
		}
		s.Message = message
		return true
	})
}

func (t *Tracker) complete(cid string) bool {
	return t.transition(func(s *models.UploadState) bool {
		s.Status = models.StatusCompleted
		s.Progress = 100
		s.CID = cid
		s.Message = "Upload completed successfully!"
		return true
	})
}

func (t *Tracker) fail(kind, message string) bool {
	return t.transition(func(s *models.UploadState) bool {
		s.Status = models.StatusFailed
		s.ErrorKind = kind
		s.Message = message
		return true
	})
}
