package workflow

// Phase is the position of a session in the workflow.
type Phase int

const (
	SelectingLabels Phase = iota
	SelectingFile
	Submitting
	AwaitingCompletion
	Completed
	Failed
)

func (p Phase) String() string {
	switch p {
	case SelectingLabels:
		return "selecting_labels"
	case SelectingFile:
		return "selecting_file"
	case Submitting:
		return "submitting"
	case AwaitingCompletion:
		return "awaiting_completion"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return ""
	}
}

// InFlight reports whether a submission is outstanding.
func (p Phase) InFlight() bool {
	return p == Submitting || p == AwaitingCompletion
}
