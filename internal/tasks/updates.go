package tasks

import (
	"fmt"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Percent returns Step as a fraction of Total in [0, 1].
func (u ProgressUpdate) Percent() float64 {
	if u.Total <= 0 {
		return 0
	}
	return min(float64(u.Step)/float64(u.Total), 1)
}

// Operation phase enumeration
type Phase int

const (
	Processing Phase = iota
	Finished
	FetchListing
	DownloadArtifact
)

func (p Phase) String() string {
	switch p {
	case Processing:
		return "processing"
	case Finished:
		return "finished"
	case FetchListing:
		return "fetch_listing"
	case DownloadArtifact:
		return "download_artifact"
	default:
		return ""
	}
}

// StatusText describes processing at percent.
func StatusText(percent int) string {
	switch {
	case percent < 30:
		return "Initializing processing..."
	case percent < 60:
		return "Processing video..."
	case percent < 90:
		return "Analyzing results..."
	default:
		return "Finalizing..."
	}
}

func processingUpdate(percent int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Processing,
		Step:    percent,
		Total:   100,
		Message: StatusText(percent),
	}
}

func finishedUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   Finished,
		Step:    100,
		Total:   100,
		Message: "Processing complete",
	}
}

func queuedDownloadsUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchListing,
		Step:    0,
		Total:   total,
		Message: fmt.Sprintf("Queued %d processed videos...", total),
	}
}

func downloadingUpdate(step, total int, id string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   DownloadArtifact,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Downloading: %s...", step, total, id),
	}
}

func downloadCompletedUpdate(step, total int, res ArtifactDownloadResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   DownloadArtifact,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s", step, total, res.ArtifactID),
		Data:    res,
	}
}

func downloadFailedUpdate(step, total int, res ArtifactDownloadResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   DownloadArtifact,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, res.ArtifactID, res.Error),
		Data:    res,
	}
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
		// Channel full, skip this update
	}
}
