// package formatter renders label comparisons and artifact listings as CSV, Markdown, plain text or JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/desertthunder/signx/internal/labels"
	"github.com/desertthunder/signx/internal/models"
	"github.com/desertthunder/signx/internal/shared"
)

// Supported output formats.
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatCSV      = "csv"
	FormatJSON     = "json"
)

// Report is a comparison of one artifact's labels against what the user expected.
type Report struct {
	ArtifactID string            `json:"artifact_id"`
	Reference  string            `json:"playback_reference,omitempty"`
	Source     string            `json:"source,omitempty"`
	Expected   *labels.Set       `json:"expected"`
	Detected   *labels.Set       `json:"detected"`
	Comparison labels.Comparison `json:"comparison"`
	Summary    ComparisonSummary `json:"summary"`
}

// ComparisonSummary counts the entries of a comparison by status.
type ComparisonSummary struct {
	Matched    int `json:"matched"`
	Missed     int `json:"missed"`
	Unexpected int `json:"unexpected"`
}

// NewReport compares expected with detected for artifactID.
func NewReport(artifactID string, expected, detected *labels.Set) *Report {
	cmp := labels.Compare(expected, detected)
	return &Report{
		ArtifactID: artifactID,
		Expected:   expected.Clone(),
		Detected:   detected.Clone(),
		Comparison: cmp,
		Summary: ComparisonSummary{
			Matched:    len(cmp.Matched()),
			Missed:     len(cmp.Missed()),
			Unexpected: len(cmp.Unexpected()),
		},
	}
}

// ValidFormat reports whether name is a supported output format.
func ValidFormat(name string) bool {
	switch name {
	case FormatText, FormatMarkdown, FormatCSV, FormatJSON:
		return true
	}
	return false
}

// Extension returns the file extension used when writing format.
func Extension(format string) string {
	switch format {
	case FormatMarkdown:
		return ".md"
	case FormatCSV:
		return ".csv"
	case FormatJSON:
		return ".json"
	default:
		return ".txt"
	}
}

// Render encodes the report in the given format.
func Render(report *Report, format string) ([]byte, error) {
	switch format {
	case FormatCSV:
		return ComparisonToCSV(report.Comparison)
	case FormatMarkdown:
		return ReportToMarkdown(report)
	case FormatJSON:
		return shared.MarshalJSON(report, true)
	case FormatText, "":
		return ReportToText(report)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, format)
	}
}

func mark(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// ComparisonToCSV writes one row per label with columns: Label, Status, Expected, Detected
func ComparisonToCSV(cmp labels.Comparison) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"Label", "Status", "Expected", "Detected"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, e := range cmp.Entries {
		record := []string{e.Label, e.Status.String(), strconv.FormatBool(e.InExpected), strconv.FormatBool(e.InDetected)}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ReportToMarkdown renders the report as a heading, summary and comparison table
func ReportToMarkdown(report *Report) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# %s\n\n", report.ArtifactID))
	if report.Reference != "" {
		buf.WriteString(fmt.Sprintf("**Video**: [%s](%s)\n", report.ArtifactID, report.Reference))
	}
	if report.Source != "" {
		buf.WriteString(fmt.Sprintf("**Source**: %s\n", report.Source))
	}
	buf.WriteString(fmt.Sprintf("**Matched**: %d\n", report.Summary.Matched))
	buf.WriteString(fmt.Sprintf("**Missed**: %d\n", report.Summary.Missed))
	buf.WriteString(fmt.Sprintf("**Unexpected**: %d\n\n", report.Summary.Unexpected))

	buf.WriteString("## Labels\n\n")
	if report.Comparison.Empty() {
		buf.WriteString("_No labels expected or detected._\n")
		return buf.Bytes(), nil
	}

	buf.WriteString("| Label | Expected | Detected |\n")
	buf.WriteString("| --- | --- | --- |\n")
	for _, e := range report.Comparison.Entries {
		buf.WriteString(fmt.Sprintf("| %s | %s | %s |\n", e.Label, mark(e.InExpected), mark(e.InDetected)))
	}

	return buf.Bytes(), nil
}

// ReportToText renders the report as aligned plain text
func ReportToText(report *Report) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Artifact: %s\n", report.ArtifactID))
	if report.Reference != "" {
		buf.WriteString(fmt.Sprintf("Video: %s\n", report.Reference))
	}
	buf.WriteString(fmt.Sprintf("Matched: %d  Missed: %d  Unexpected: %d\n\n",
		report.Summary.Matched, report.Summary.Missed, report.Summary.Unexpected))

	width := len("Label")
	for _, e := range report.Comparison.Entries {
		width = max(width, len(e.Label))
	}

	buf.WriteString(fmt.Sprintf("%-*s  %-8s  %-8s\n", width, "Label", "Expected", "Detected"))
	for _, e := range report.Comparison.Entries {
		buf.WriteString(fmt.Sprintf("%-*s  %-8s  %-8s\n", width, e.Label, mark(e.InExpected), mark(e.InDetected)))
	}

	return buf.Bytes(), nil
}

// WriteReport renders the report and writes it into dir as {artifact}_labels{ext}.
func WriteReport(report *Report, format, dir string) (string, error) {
	data, err := Render(report, format)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(report.ArtifactID), filepath.Ext(report.ArtifactID))
	path := filepath.Join(dir, base+"_labels"+Extension(format))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}

// ArtifactsToCSV lists artifacts with columns: Filename, Video, Detected
func ArtifactsToCSV(artifacts []*models.Artifact) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"Filename", "Video", "Detected"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, a := range artifacts {
		if err := writer.Write([]string{a.ID, a.URL, strings.Join(a.Detected().Labels(), "; ")}); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// ArtifactsToText lists artifacts one per line with their detected labels
func ArtifactsToText(artifacts []*models.Artifact) ([]byte, error) {
	var buf bytes.Buffer
	for i, a := range artifacts {
		detected := a.Detected().String()
		if detected == "" {
			detected = "(none)"
		}
		buf.WriteString(fmt.Sprintf("%d. %s [%s]\n", i+1, a.ID, detected))
	}
	return buf.Bytes(), nil
}

// ArtifactsToMarkdown lists artifacts as a table
func ArtifactsToMarkdown(artifacts []*models.Artifact) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("# Processed videos\n\n**Total**: %d\n\n", len(artifacts)))
	buf.WriteString("| # | Filename | Detected |\n")
	buf.WriteString("| --- | --- | --- |\n")
	for i, a := range artifacts {
		buf.WriteString(fmt.Sprintf("| %d | %s | %s |\n", i+1, a.ID, a.Detected().String()))
	}
	return buf.Bytes(), nil
}

// RenderArtifacts encodes an artifact listing in the given format.
func RenderArtifacts(artifacts []*models.Artifact, format string) ([]byte, error) {
	switch format {
	case FormatCSV:
		return ArtifactsToCSV(artifacts)
	case FormatMarkdown:
		return ArtifactsToMarkdown(artifacts)
	case FormatJSON:
		return shared.MarshalJSON(artifacts, true)
	case FormatText, "":
		return ArtifactsToText(artifacts)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, format)
	}
}

// WriteManifest writes v as indented JSON to path.
func WriteManifest(v any, path string) error {
	data, err := shared.MarshalJSON(v, true)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
