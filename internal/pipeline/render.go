package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
)

// RenderJSON writes the run result artifact.
func RenderJSON(result *RunResult, path string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}

// RenderSummary prints the user-facing run report: per-connector
// attempted/succeeded/failed counts, stage counts, and the first fatal
// error verbatim. Partial connector failure is a normal outcome here.
func RenderSummary(result *RunResult) {
	fmt.Printf("Run %s (lens %s, contract %.12s)\n", result.RunID, result.Lens, result.ContractHash)
	fmt.Printf("Query: %s\n", result.Query)

	if result.EmptyPlan {
		fmt.Println("No connector matched the query; nothing to do.")
		return
	}

	fmt.Println("\nConnectors:")
	for _, s := range result.Connectors {
		line := fmt.Sprintf("  %-16s attempted=%d succeeded=%d failed=%d", s.ConnectorID, s.Attempted, s.Succeeded, s.Failed)
		if s.Skipped > 0 {
			line += fmt.Sprintf(" skipped=%d", s.Skipped)
		}
		fmt.Println(line)
	}

	fmt.Printf("\nEntities: extracted=%d merged=%d persisted=%d\n", result.Extracted, result.Merged, result.Persisted)
	for _, e := range result.Entities {
		fmt.Printf("  %s  (%s, sources: %d)\n", e.Slug, e.Class, len(e.Provenance.Sources))
	}

	if len(result.BoundaryViolations) > 0 {
		fmt.Fprintf(os.Stderr, "\n%d extraction boundary violation(s), extractor defect:\n", len(result.BoundaryViolations))
		for _, v := range result.BoundaryViolations {
			fmt.Fprintf(os.Stderr, "  %s\n", v)
		}
	}
	if result.FirstError != "" {
		fmt.Fprintf(os.Stderr, "\nFirst error: %s\n", result.FirstError)
	}
	fmt.Printf("\nDone in %s\n", result.Duration)
}
