package reporter

import (
	"fmt"
	"strings"
)

// TerminalReporter outputs the summary in a human-readable terminal format
type TerminalReporter struct{}

// Report generates terminal output for the given summary
func (r *TerminalReporter) Report(s *Summary) ([]byte, error) {
	var sb strings.Builder

	sb.WriteString("\nDETECT RESULTS\n")
	sb.WriteString(strings.Repeat("=", 60) + "\n\n")
	sb.WriteString(fmt.Sprintf("Project: %s %s\n", s.ProjectName, s.ProjectVersion))
	sb.WriteString(fmt.Sprintf("Source:  %s\n\n", s.SourcePath))

	if len(s.Ecosystems) == 0 {
		sb.WriteString("No applicable package managers found.\n")
	} else {
		sb.WriteString(fmt.Sprintf("%-10s %10s %10s %10s %10s\n", "TYPE", "APPLICABLE", "EXTRACTED", "SUCCEEDED", "FAILED"))
		for _, e := range s.Ecosystems {
			status := "SUCCESS"
			if e.Succeeded == 0 && e.Failed > 0 {
				status = "FAILURE"
			}
			sb.WriteString(fmt.Sprintf("%-10s %10d %10d %10d %10d  %s\n",
				e.Type, e.Applicable, e.Extracted, e.Succeeded, e.Failed, status))
		}
	}
	sb.WriteString("\n")

	if len(s.FailedEcosystems) > 0 {
		sb.WriteString(fmt.Sprintf("Failed package managers: %s\n", strings.Join(s.FailedEcosystems, ", ")))
	}
	for _, e := range s.SearchErrors {
		sb.WriteString(fmt.Sprintf("Search failed: %s\n", e))
	}

	if len(s.CodeLocations) > 0 {
		sb.WriteString(fmt.Sprintf("\nCode locations (%d):\n", len(s.CodeLocations)))
		for _, name := range s.CodeLocations {
			sb.WriteString(fmt.Sprintf("  %s\n", name))
		}
	}
	if len(s.Files) > 0 {
		sb.WriteString(fmt.Sprintf("\nFiles written (%d):\n", len(s.Files)))
		for _, f := range s.Files {
			sb.WriteString(fmt.Sprintf("  %s\n", f))
		}
	}
	if s.SignatureScan != "" {
		sb.WriteString(fmt.Sprintf("\nSignature scan required (%s): %s\n", s.SignatureScan, s.SourcePath))
	}

	sb.WriteString("\n" + strings.Repeat("-", 60) + "\n")
	sb.WriteString(fmt.Sprintf("Overall status: %s (%d)\n", s.Status, s.ExitCode))

	return []byte(sb.String()), nil
}
