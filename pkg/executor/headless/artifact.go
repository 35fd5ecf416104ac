package headless

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ArtifactWriter handles writing run artifacts
type ArtifactWriter struct {
	outputDir string
}

// NewArtifactWriter creates a new artifact writer
func NewArtifactWriter(outputDir string) *ArtifactWriter {
	return &ArtifactWriter{
		outputDir: outputDir,
	}
}

// WriteAll writes the JSON report and the markdown summary and returns the
// paths written
func (w *ArtifactWriter) WriteAll(summary *ExecutionSummary) ([]string, error) {
	if err := os.MkdirAll(w.outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	jsonPath, err := w.WriteExecutionJSON(summary)
	if err != nil {
		return nil, err
	}

	mdPath, err := w.WriteSummaryMarkdown(summary)
	if err != nil {
		return []string{jsonPath}, err
	}

	return []string{jsonPath, mdPath}, nil
}

// WriteExecutionJSON writes the full run summary as JSON
func (w *ArtifactWriter) WriteExecutionJSON(summary *ExecutionSummary) (string, error) {
	path := filepath.Join(w.outputDir, "execution.json")

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal execution summary: %w", err)
	}

	if writeErr := os.WriteFile(path, data, 0600); writeErr != nil {
		return "", fmt.Errorf("failed to write execution JSON: %w", writeErr)
	}

	return path, nil
}

// WriteSummaryMarkdown writes a human-readable markdown summary
func (w *ArtifactWriter) WriteSummaryMarkdown(summary *ExecutionSummary) (string, error) {
	path := filepath.Join(w.outputDir, "summary.md")

	var md strings.Builder

	md.WriteString("# Login Run Summary\n\n")
	md.WriteString(fmt.Sprintf("**Target:** %s\n\n", summary.Target))
	md.WriteString(fmt.Sprintf("**Status:** %s\n\n", summary.Status))
	md.WriteString(fmt.Sprintf("**Started:** %s\n\n", summary.StartTime.Format(time.RFC3339)))
	md.WriteString(fmt.Sprintf("**Completed:** %s\n\n", summary.EndTime.Format(time.RFC3339)))
	md.WriteString(fmt.Sprintf("**Duration:** %s\n\n", summary.Duration))

	md.WriteString("## Result\n\n")
	switch {
	case summary.Error != "":
		md.WriteString(fmt.Sprintf("❌ **Error:** %s\n\n", summary.Error))
	case summary.Status == statusLoggedIn:
		md.WriteString("✅ **Logged in**\n\n")
	default:
		md.WriteString("⚠️ **Login status unclear**\n\n")
	}

	if summary.FinalURL != "" {
		md.WriteString(fmt.Sprintf("- **Current URL:** %s\n", summary.FinalURL))
		md.WriteString(fmt.Sprintf("- **Page title:** %s\n", summary.Title))
	}
	if summary.LastStep != "" {
		md.WriteString(fmt.Sprintf("- **Last step:** %s\n", summary.LastStep))
	}

	if len(summary.Warnings) > 0 {
		md.WriteString("\n## Warnings\n\n")
		for _, warning := range summary.Warnings {
			md.WriteString(fmt.Sprintf("- %s\n", warning))
		}
	}

	if writeErr := os.WriteFile(path, []byte(md.String()), 0600); writeErr != nil {
		return "", fmt.Errorf("failed to write summary markdown: %w", writeErr)
	}

	return path, nil
}

// WriteScreenshot saves a PNG capture of the final page
func (w *ArtifactWriter) WriteScreenshot(png []byte) (string, error) {
	if err := os.MkdirAll(w.outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(w.outputDir, "final-page.png")
	if err := os.WriteFile(path, png, 0600); err != nil {
		return "", fmt.Errorf("failed to write screenshot: %w", err)
	}
	return path, nil
}

// ExecutionSummary describes one terminal login run. It never holds the
// password or the one-time code.
type ExecutionSummary struct {
	Target    string        `json:"target"`
	Username  string        `json:"username,omitempty"`
	Status    string        `json:"status"`
	Error     string        `json:"error,omitempty"`
	LastStep  string        `json:"last_step,omitempty"`
	FinalURL  string        `json:"final_url,omitempty"`
	Title     string        `json:"title,omitempty"`
	Warnings  []string      `json:"warnings,omitempty"`
	Artifacts []string      `json:"artifacts,omitempty"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
}
