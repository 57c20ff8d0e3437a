// Package report merges completed analysis results into DOCX documents.
// Two generation policies exist: one document per sheet, or a single
// document iterating all sheets in order.
package report

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"psycho-client/internal/result"
	"psycho-client/internal/shared/util"
)

// Template tokens bound per sheet.
const (
	TokenSheetName    = "{{SHEET_NAME}}"
	TokenPsychometric = "{{PSYCHOMETRIC_ANALYSIS}}"
	TokenItem         = "{{ITEM_ANALYSIS}}"
)

// sheetsLoop names the combined-mode loop block: the template region
// between {{#SHEETS}} and {{/SHEETS}} repeats once per sheet.
const sheetsLoop = "SHEETS"

// CombinedArtifactName is the fixed output name in combined mode.
const CombinedArtifactName = "all_analyses.docx"

// Artifact is one rendered document ready to hand to a save action.
type Artifact struct {
	Name string
	Data []byte
}

// SheetError records a per-sheet render failure in per-sheet mode.
type SheetError struct {
	SheetName string
	Err       error
}

func (e SheetError) Error() string {
	return fmt.Sprintf("sheet %q: %v", e.SheetName, e.Err)
}

// PerSheetArtifactName derives the output file name for one sheet.
func PerSheetArtifactName(sheetName string) string {
	token := util.PathSafeToken(sheetName)
	if token == "" {
		token = "sheet"
	}
	return "analysis-" + token + ".docx"
}

// ComposePerSheet renders one document per sheet. A failing sheet does not
// stop the rest; failures come back as a list alongside the artifacts that
// did render, both in input sheet order.
func ComposePerSheet(template []byte, res result.AnalysisResult) ([]Artifact, []SheetError) {
	artifacts := make([]*Artifact, len(res.Sheets))
	failures := make([]*SheetError, len(res.Sheets))

	g := new(errgroup.Group)
	g.SetLimit(4)
	for i, sheet := range res.Sheets {
		i, sheet := i, sheet
		g.Go(func() error {
			data, err := renderSheetDocument(template, sheet)
			if err != nil {
				failures[i] = &SheetError{SheetName: sheet.SheetName, Err: err}
				return nil
			}
			artifacts[i] = &Artifact{Name: PerSheetArtifactName(sheet.SheetName), Data: data}
			return nil
		})
	}
	_ = g.Wait()

	var outArtifacts []Artifact
	var outFailures []SheetError
	for i := range res.Sheets {
		if artifacts[i] != nil {
			outArtifacts = append(outArtifacts, *artifacts[i])
		}
		if failures[i] != nil {
			outFailures = append(outFailures, *failures[i])
		}
	}
	return outArtifacts, outFailures
}

// ComposeCombined renders a single document whose sheet loop iterates the
// result in order. Combined mode is fail-fast: any render problem aborts
// the whole composition.
func ComposeCombined(template []byte, res result.AnalysisResult) (Artifact, error) {
	data, err := renderDocx(template, func(root *xmlNode) error {
		body := findBodyNode(root)
		return expandLoop(body, sheetsLoop, len(res.Sheets), func(block []*xmlNode, idx int) ([]*xmlNode, error) {
			nodes := cloneNodes(block)
			tmp := &xmlNode{Children: nodes}
			replaceTokensInNode(tmp, sheetContext(res.Sheets[idx]))
			return tmp.Children, nil
		})
	})
	if err != nil {
		return Artifact{}, err
	}
	return Artifact{Name: CombinedArtifactName, Data: data}, nil
}

func renderSheetDocument(template []byte, sheet result.SheetAnalysis) ([]byte, error) {
	return renderDocx(template, func(root *xmlNode) error {
		replaceTokensInNode(root, sheetContext(sheet))
		return nil
	})
}

// sheetContext binds the tokens a sheet can satisfy. A section absent from
// the data leaves its token unresolved, which the renderer reports as a
// RenderError rather than silently emitting an empty value.
func sheetContext(sheet result.SheetAnalysis) map[string]string {
	ctx := map[string]string{
		TokenSheetName: sheet.SheetName,
	}
	if text, ok := sheet.Section(result.SectionPsychometric); ok {
		ctx[TokenPsychometric] = text
	}
	if text, ok := sheet.Section(result.SectionItem); ok {
		ctx[TokenItem] = text
	}
	return ctx
}
