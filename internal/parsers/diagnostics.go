package parsers

import "fmt"

// Diagnostic records a line the extractor dropped or only partly understood
type Diagnostic struct {
	Page   int    `json:"page"`
	Line   int    `json:"line"`
	Text   string `json:"text"`
	Reason string `json:"reason"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("page %d line %d: %s (%q)", d.Page, d.Line, d.Reason, d.Text)
}

// ParseStats holds counters about an extraction run
type ParseStats struct {
	Pages       int `json:"pages"`
	TotalLines  int `json:"totalLines"`
	Headers     int `json:"headers"`
	Candidates  int `json:"candidates"`
	Duplicates  int `json:"duplicates"`
	Recovered   int `json:"recovered"`
	Dropped     int `json:"dropped"`
	UnknownDate int `json:"unknownDate"`
}

// String returns a human-readable summary of the statistics
func (ps *ParseStats) String() string {
	return fmt.Sprintf("Read %d pages, %d lines: %d rows (%d recovered, %d duplicates), %d dropped, %d without date",
		ps.Pages, ps.TotalLines, ps.Candidates, ps.Recovered, ps.Duplicates, ps.Dropped, ps.UnknownDate)
}

// SampleDiagnostics returns up to max diagnostics rendered as strings
func SampleDiagnostics(diags []Diagnostic, max int) []string {
	limit := len(diags)
	if max > 0 && max < limit {
		limit = max
	}
	out := make([]string, 0, limit)
	for _, d := range diags[:limit] {
		out = append(out, d.String())
	}
	return out
}
