// Package result holds the structured outcome of one analysis run: an
// ordered set of per-sheet analyses keyed by named text sections.
package result

import (
	"encoding/json"
	"fmt"
)

// Well-known section keys every sheet analysis is expected to carry.
const (
	SectionPsychometric = "Psychometric Analysis"
	SectionItem         = "Item Analysis"
)

// WellKnownSections lists the section keys a complete sheet analysis exposes.
var WellKnownSections = []string{SectionPsychometric, SectionItem}

// SheetAnalysis is the analysis produced for a single spreadsheet sheet.
// Sections maps section name to markdown-capable free text.
type SheetAnalysis struct {
	SheetName string            `json:"sheet_name"`
	Sections  map[string]string `json:"analysis"`
}

// Section returns the named section content and whether it is present.
func (s SheetAnalysis) Section(name string) (string, bool) {
	text, ok := s.Sections[name]
	return text, ok
}

// AnalysisResult is an ordered collection of sheet analyses. Sheet order
// mirrors the input spreadsheet and is preserved into generated documents.
type AnalysisResult struct {
	Sheets []SheetAnalysis `json:"analyses"`
}

// Decode parses the analysis service's success payload.
func Decode(raw []byte) (AnalysisResult, error) {
	var res AnalysisResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return AnalysisResult{}, fmt.Errorf("decode analysis result: %w", err)
	}
	return res, nil
}

// Validate reports data-quality problems without dropping anything: sheets
// missing a well-known section, empty sheet names, and duplicate names.
func (r AnalysisResult) Validate() []error {
	var problems []error
	seen := make(map[string]struct{}, len(r.Sheets))
	for i, sheet := range r.Sheets {
		if sheet.SheetName == "" {
			problems = append(problems, fmt.Errorf("sheet %d has no name", i))
		}
		if _, dup := seen[sheet.SheetName]; dup {
			problems = append(problems, fmt.Errorf("duplicate sheet name %q", sheet.SheetName))
		}
		seen[sheet.SheetName] = struct{}{}
		for _, key := range WellKnownSections {
			if _, ok := sheet.Sections[key]; !ok {
				problems = append(problems, fmt.Errorf("sheet %q is missing section %q", sheet.SheetName, key))
			}
		}
	}
	return problems
}
