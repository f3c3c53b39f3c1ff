// Package pipeline contains the run controller: the client-side state
// machine that drives one build pipeline run, consumes step events from a
// live stream or a local synthetic source, supports the mid-pipeline review
// gate, and persists terminal outcomes to the run history.
package pipeline

import "github.com/ideaforge/ideaforge/internal/protocol"

// stepWeights maps each step to its cumulative progress weight out of 100.
var stepWeights = map[protocol.Step]int{
	protocol.StepEnhanceIdea:     16,
	protocol.StepGeneratePRD:     33,
	protocol.StepCreateRepo:      50,
	protocol.StepExtractFeatures: 66,
	protocol.StepImplement:       83,
	protocol.StepPublish:         95,
	protocol.StepPipeline:        100,
}

// inProgressLag is subtracted from a step's weight while it is still in
// progress, to visually distinguish "starting" from "done".
const inProgressLag = 10

// stepOrder is the six UI step slots in pipeline order. The synthetic
// pipeline event has no slot of its own.
var stepOrder = []protocol.Step{
	protocol.StepEnhanceIdea,
	protocol.StepGeneratePRD,
	protocol.StepCreateRepo,
	protocol.StepExtractFeatures,
	protocol.StepImplement,
	protocol.StepPublish,
}

// Steps returns the UI step slots in pipeline order.
func Steps() []protocol.Step {
	out := make([]protocol.Step, len(stepOrder))
	copy(out, stepOrder)
	return out
}

// Weight returns the cumulative progress weight for a step. Unknown step
// identifiers return false so backend-added steps are ignored rather than
// crashing older clients.
func Weight(step protocol.Step) (int, bool) {
	w, ok := stepWeights[step]
	return w, ok
}

// ProgressFor returns the overall progress to display for an event. A step
// in progress shows its weight minus a fixed lag, floored at zero.
func ProgressFor(step protocol.Step, status protocol.StepStatus) (int, bool) {
	w, ok := stepWeights[step]
	if !ok {
		return 0, false
	}
	if status == protocol.StatusInProgress {
		w -= inProgressLag
		if w < 0 {
			w = 0
		}
	}
	return w, true
}
