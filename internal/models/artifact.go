package models

import (
	"github.com/desertthunder/signx/internal/labels"
)

// Artifact is a processed video held by the remote service.
type Artifact struct {
	ID             string      `json:"filename"`
	URL            string      `json:"video_url,omitempty"`
	DetectedLabels *labels.Set `json:"detected_labels"`
}

// Detected returns the detected labels, never nil.
func (a *Artifact) Detected() *labels.Set {
	if a == nil || a.DetectedLabels == nil {
		return labels.NewSet()
	}
	return a.DetectedLabels
}

// Acknowledgment is the service's reply to an accepted submission.
type Acknowledgment struct {
	Success        bool        `json:"success"`
	Error          string      `json:"error,omitempty"`
	Filename       string      `json:"filename"`
	VideoURL       string      `json:"video_url,omitempty"`
	VideoNumber    int         `json:"video_number,omitempty"`
	DetectedLabels *labels.Set `json:"detected_labels,omitempty"`
}

// Artifact converts the acknowledgment into the artifact it describes.
func (a *Acknowledgment) Artifact() *Artifact {
	detected := labels.NewSet()
	if a.DetectedLabels != nil {
		detected = a.DetectedLabels.Clone()
	}
	return &Artifact{ID: a.Filename, URL: a.VideoURL, DetectedLabels: detected}
}
