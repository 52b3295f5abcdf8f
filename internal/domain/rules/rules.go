// Package rules implements the offside and handball evaluators.
package rules

import (
	"github.com/offsidezero/varcore/internal/domain/model"
	"github.com/offsidezero/varcore/internal/domain/types"
)

// Margin units carried on assessments and explanation steps.
const (
	UnitMeters = "m"
	UnitRatio  = "ratio"
	UnitCount  = "count"
	UnitFrame  = "frame"
)

// Assessment is an evaluator's raw finding for one DecisionEvent, before
// confidence composition. Margin is the strength of the verdict in
// MarginUnit units: how far past the deciding boundary the measurement
// landed, never negative. Inconclusive verdicts carry a zero margin and a
// step naming the missing evidence.
type Assessment struct {
	EventID    string                  `json:"event_id"`
	Type       types.EventType         `json:"type"`
	Verdict    types.Verdict           `json:"verdict"`
	Margin     float64                 `json:"margin"`
	MarginUnit string                  `json:"margin_unit"`
	Steps      []model.ExplanationStep `json:"steps"`
	Artifacts  []model.Artifact        `json:"artifacts,omitempty"`
}

// inconclusive downgrades the assessment, recording the missing evidence as
// an explanation step. The pipeline never aborts on data quality; it rules
// inconclusive and says why.
func (a *Assessment) inconclusive(claim string, measurement float64, unit string) *Assessment {
	a.Verdict = types.VerdictInconclusive
	a.Margin = 0
	a.Steps = append(a.Steps, model.ExplanationStep{
		Claim:       claim,
		Measurement: measurement,
		Unit:        unit,
		Weight:      1,
		Reliability: 1,
	})
	return a
}

func findTrack(tracks []*model.Track, id string) *model.Track {
	for _, t := range tracks {
		if t.ID == id {
			return t
		}
	}
	return nil
}
