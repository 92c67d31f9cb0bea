package models

import (
	"fmt"
	"time"

	"github.com/desertthunder/signx/internal/labels"
	"github.com/desertthunder/signx/internal/shared"
)

// Run is a completed submission kept in the history database.
type Run struct {
	id         string
	sequence   int
	artifactID string
	sourceName string
	expected   *labels.Set
	detected   *labels.Set
	createdAt  time.Time
	updatedAt  time.Time
	deletedAt  *time.Time
}

// NewRun records the outcome of one submission.
func NewRun(artifactID, sourceName string, expected, detected *labels.Set) *Run {
	now := time.Now()
	return &Run{
		artifactID: artifactID,
		sourceName: sourceName,
		expected:   expected.Clone(),
		detected:   detected.Clone(),
		createdAt:  now,
		updatedAt:  now,
	}
}

func (r *Run) ID() string            { return r.id }
func (r *Run) Sequence() int         { return r.sequence }
func (r *Run) ArtifactID() string    { return r.artifactID }
func (r *Run) SourceName() string    { return r.sourceName }
func (r *Run) Expected() *labels.Set { return r.expected }
func (r *Run) Detected() *labels.Set { return r.detected }
func (r *Run) CreatedAt() time.Time  { return r.createdAt }
func (r *Run) UpdatedAt() time.Time  { return r.updatedAt }
func (r *Run) DeletedAt() *time.Time { return r.deletedAt }

func (r *Run) SetID(id string)           { r.id = id }
func (r *Run) SetSequence(seq int)       { r.sequence = seq }
func (r *Run) SetCreatedAt(t time.Time)  { r.createdAt = t }
func (r *Run) SetUpdatedAt(t time.Time)  { r.updatedAt = t }
func (r *Run) SetDeletedAt(t *time.Time) { r.deletedAt = t }

// Comparison compares the run's expected and detected labels.
func (r *Run) Comparison() labels.Comparison {
	return labels.Compare(r.expected, r.detected)
}

// Validate checks required fields.
func (r *Run) Validate() error {
	if r.artifactID == "" {
		return fmt.Errorf("%w: artifact id is required", shared.ErrValidation)
	}
	if r.expected.Len() == 0 {
		return fmt.Errorf("%w: at least one expected label is required", shared.ErrValidation)
	}
	return nil
}
