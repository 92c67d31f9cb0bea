package repositories

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/signx/internal/labels"
	"github.com/desertthunder/signx/internal/models"
	"github.com/desertthunder/signx/internal/shared"
)

// ErrRunNotFound is returned when no live run matches a lookup.
var ErrRunNotFound = errors.New("run not found")

// RunRepository implements [models.Repository] for [models.Run] persistence.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new [RunRepository] with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

const runColumns = `id, sequence, artifact_id, source_name, expected_labels, detected_labels, created_at, updated_at, deleted_at`

// Create inserts a new run into the database with generated ID and sequence
func (r *RunRepository) Create(run *models.Run) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	expected, err := json.Marshal(run.Expected())
	if err != nil {
		return fmt.Errorf("failed to encode expected labels: %w", err)
	}
	detected, err := json.Marshal(run.Detected())
	if err != nil {
		return fmt.Errorf("failed to encode detected labels: %w", err)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	sequence, err := NextSequence(tx, "runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	cmp := run.Comparison()

	query := `
		INSERT INTO runs (id, sequence, artifact_id, source_name, expected_labels, detected_labels, matched, missed, unexpected, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = tx.Exec(query,
		id, sequence, run.ArtifactID(), run.SourceName(), string(expected), string(detected),
		len(cmp.Matched()), len(cmp.Missed()), len(cmp.Unexpected()),
		run.CreatedAt(), run.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}

	run.SetID(id)
	run.SetSequence(sequence)
	return nil
}

// Record stores a run for the workflow's silent history.
func (r *RunRepository) Record(run *models.Run) error {
	return r.Create(run)
}

// Get retrieves a run by ID, excluding soft-deleted runs
func (r *RunRepository) Get(id string) (*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = ? AND deleted_at IS NULL`

	run, err := scanRun(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	return run, nil
}

// LatestFor returns the most recent live run that produced artifactID.
func (r *RunRepository) LatestFor(artifactID string) (*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE artifact_id = ? AND deleted_at IS NULL ORDER BY sequence DESC LIMIT 1`

	run, err := scanRun(r.db.QueryRow(query, artifactID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: artifact %s", ErrRunNotFound, artifactID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	return run, nil
}

// Delete soft-deletes a run by ID
func (r *RunRepository) Delete(id string) error {
	now := time.Now()

	query := `
		UPDATE runs
		SET deleted_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, now, now, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w or already deleted: %s", ErrRunNotFound, id)
	}

	return nil
}

// List retrieves runs matching the given criteria, newest first, excluding soft-deleted runs.
//
// Supported criteria: "artifact_id" (string), "with_missed" (bool, runs where an expected label
// was not detected) and "limit" (int).
func (r *RunRepository) List(criteria map[string]any) ([]*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE deleted_at IS NULL`
	args := []any{}

	if artifactID, ok := criteria["artifact_id"].(string); ok && artifactID != "" {
		query += " AND artifact_id = ?"
		args = append(args, artifactID)
	}

	if withMissed, ok := criteria["with_missed"].(bool); ok && withMissed {
		query += " AND missed > 0"
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*models.Run, error) {
	var (
		id         string
		sequence   int
		artifactID string
		sourceName string
		expected   string
		detected   string
		createdAt  time.Time
		updatedAt  time.Time
		deletedAt  sql.NullTime
	)

	if err := row.Scan(&id, &sequence, &artifactID, &sourceName, &expected, &detected, &createdAt, &updatedAt, &deletedAt); err != nil {
		return nil, err
	}

	var expectedSet, detectedSet labels.Set
	if err := json.Unmarshal([]byte(expected), &expectedSet); err != nil {
		return nil, fmt.Errorf("invalid expected labels for run %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(detected), &detectedSet); err != nil {
		return nil, fmt.Errorf("invalid detected labels for run %s: %w", id, err)
	}

	run := models.NewRun(artifactID, sourceName, &expectedSet, &detectedSet)
	run.SetID(id)
	run.SetSequence(sequence)
	run.SetCreatedAt(createdAt)
	run.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		run.SetDeletedAt(&deletedAt.Time)
	}
	return run, nil
}

var _ models.Repository[*models.Run] = (*RunRepository)(nil)
