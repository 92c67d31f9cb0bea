package workflow

import (
	"github.com/desertthunder/signx/internal/labels"
	"github.com/desertthunder/signx/internal/models"
)

// Snapshot is an immutable view of a session, safe to read from any goroutine.
type Snapshot struct {
	Version    uint64 // increases with every published change
	Session    string
	Phase      Phase
	Expected   *labels.Set
	Candidate  string // name of the chosen file, if any
	Artifact   *models.Artifact
	Reference  string // playback reference of Artifact
	Progress   int
	Status     string
	Downloaded string
	LastError  string
	Err        error
	Closed     bool
}

// Comparison compares the snapshot's expected labels with the artifact's detected labels.
func (s Snapshot) Comparison() labels.Comparison {
	return labels.Compare(s.Expected, s.Artifact.Detected())
}

func (m *Machine) snapshotLocked() Snapshot {
	s := Snapshot{
		Version:    m.version,
		Session:    m.id,
		Phase:      m.phase,
		Expected:   m.expectedLocked().Clone(),
		Progress:   m.progress,
		Status:     m.status,
		Downloaded: m.downloaded,
		Err:        m.lastErr,
		Closed:     m.closed,
	}
	if m.candidate != nil {
		s.Candidate = m.candidate.Name()
	}
	if m.artifact != nil {
		a := *m.artifact
		a.DetectedLabels = m.artifact.Detected().Clone()
		s.Artifact = &a
		s.Reference = m.retriever.PlaybackReference(a.ID)
	}
	if m.lastErr != nil {
		s.LastError = m.lastErr.Error()
	}
	return s
}
