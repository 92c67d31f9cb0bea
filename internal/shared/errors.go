package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")
	ErrNoMigrations  = fmt.Errorf("no migrations to roll back")

	// Workflow errors
	ErrValidation         = fmt.Errorf("validation failed")
	ErrInvalidTransition  = fmt.Errorf("invalid transition")
	ErrSubmissionInFlight = fmt.Errorf("a submission is already in progress")
	ErrSessionClosed      = fmt.Errorf("session closed")
	ErrNoArtifact         = fmt.Errorf("no processed artifact available")

	// Remote service errors
	ErrTransport          = fmt.Errorf("transport error")
	ErrApplication        = fmt.Errorf("processing service error")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
