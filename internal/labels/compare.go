package labels

// Status classifies one label of a [Comparison].
type Status int

const (
	Both         Status = iota // expected and detected
	ExpectedOnly               // expected but not detected
	DetectedOnly               // detected without being expected
)

func (s Status) String() string {
	switch s {
	case Both:
		return "both"
	case ExpectedOnly:
		return "expected_only"
	case DetectedOnly:
		return "detected_only"
	default:
		return ""
	}
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Entry is one label of a comparison.
type Entry struct {
	Label      string `json:"label"`
	Status     Status `json:"status"`
	InExpected bool   `json:"in_expected"`
	InDetected bool   `json:"in_detected"`
}

// Comparison is the union of an expected and a detected set, one entry per label.
type Comparison struct {
	Entries []Entry `json:"entries"`
}

// Compare builds the comparison of expected against detected.
//
// Expected labels come first in their own order, then detected-only labels in detected order.
// Neither input is modified.
func Compare(expected, detected *Set) Comparison {
	entries := make([]Entry, 0, expected.Len()+detected.Len())

	for _, l := range expected.Labels() {
		e := Entry{Label: l, InExpected: true, Status: ExpectedOnly}
		if detected.Has(l) {
			e.InDetected = true
			e.Status = Both
		}
		entries = append(entries, e)
	}

	for _, l := range detected.Labels() {
		if expected.Has(l) {
			continue
		}
		entries = append(entries, Entry{Label: l, InDetected: true, Status: DetectedOnly})
	}

	return Comparison{Entries: entries}
}

func (c Comparison) filter(s Status) []string {
	out := []string{}
	for _, e := range c.Entries {
		if e.Status == s {
			out = append(out, e.Label)
		}
	}
	return out
}

// Matched returns labels that were expected and detected.
func (c Comparison) Matched() []string { return c.filter(Both) }

// Missed returns labels that were expected but not detected.
func (c Comparison) Missed() []string { return c.filter(ExpectedOnly) }

// Unexpected returns labels that were detected but not expected.
func (c Comparison) Unexpected() []string { return c.filter(DetectedOnly) }

// Empty reports whether neither side had any labels.
func (c Comparison) Empty() bool { return len(c.Entries) == 0 }
