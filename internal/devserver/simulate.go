package devserver

import (
	"time"

	"psycho-client/internal/progress"
)

// stageStep is one entry of the simulated analysis script.
type stageStep struct {
	stage   string
	message string
	percent float64
}

// analysisScript mirrors the stage sequence of a real analysis run.
var analysisScript = []stageStep{
	{progress.StagePsychometric, "Starting analysis...", 10},
	{progress.StagePsychometric, "Analyzing psychometric data...", 20},
	{progress.StagePsychometric, "Processing initial results...", 30},
	{progress.StageCheckMissing, "Checking for missing information...", 40},
	{progress.StageJudge, "Evaluating analysis quality...", 50},
	{progress.StageCorrelated, "Analyzing correlated domains...", 60},
	{progress.StageCheckBias, "Checking for response bias...", 70},
	{progress.StageItem, "Performing item-level analysis...", 80},
	{progress.StageItem, "Finalizing analysis...", 90},
	{progress.StageComplete, "Analysis complete!", 100},
}

// runScript plays the stage script for a session, one step per delay tick.
func (s *Server) runScript(sessionID, sheetName string) {
	for _, step := range analysisScript {
		if s.stepDelay > 0 {
			time.Sleep(s.stepDelay)
		}
		s.status.Update(sessionID, step.stage, sheetName, step.message, step.percent)
	}
}
