package models

import "time"

// Model is a persistent record: a UUID, a per-table sequence number for display, and soft delete.
type Model interface {
	ID() string
	Sequence() int
	CreatedAt() time.Time
	UpdatedAt() time.Time
	DeletedAt() *time.Time // nil while the record is live
	Validate() error
}

// Repository is the storage contract for a [Model].
//
// Delete is a soft delete; Get and List never return deleted records.
type Repository[T Model] interface {
	Create(model T) error
	Get(id string) (T, error)
	Delete(id string) error
	List(criteria map[string]any) ([]T, error) // criteria keys are repository specific, e.g. "artifact_id"
}

var _ Model = (*Run)(nil)
