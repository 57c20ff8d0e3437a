package progress

// Stage identifiers emitted by the analysis service. The set is open:
// identifiers not listed here are surfaced as an unknown stage, never
// rejected.
const (
	StageInitializing = "initializing"
	StagePreprocess   = "preprocessing"
	StagePsychometric = "psychometric_analysis"
	StageCheckMissing = "check_missing"
	StageJudge        = "judge_analysis"
	StageCorrelated   = "correlated_analysis"
	StageCheckBias    = "check_bias"
	StageItem         = "item_analysis"
	StageComplete     = "complete"
	StageError        = "error"
	StageTest         = "test"
)

var stageLabels = map[string]string{
	StageInitializing: "Initializing",
	StagePreprocess:   "Processing uploaded files",
	StagePsychometric: "Psychometric analysis",
	StageCheckMissing: "Completeness check",
	StageJudge:        "Quality judgement",
	StageCorrelated:   "Correlated-domain analysis",
	StageCheckBias:    "Bias check",
	StageItem:         "Item analysis",
	StageComplete:     "Complete",
	StageError:        "Error",
	StageTest:         "Test",
}

// KnownStage reports whether the stage identifier is one the client
// recognizes.
func KnownStage(stage string) bool {
	_, ok := stageLabels[stage]
	return ok
}

// StageLabel returns a human-facing name for a stage identifier.
// Unrecognized identifiers map to "Unknown stage".
func StageLabel(stage string) string {
	if label, ok := stageLabels[stage]; ok {
		return label
	}
	return "Unknown stage"
}
