package simclip

import (
	"fmt"
	"log"

	"github.com/offsidezero/varcore/internal/app"
	"github.com/offsidezero/varcore/internal/domain/model"
	"github.com/offsidezero/varcore/internal/domain/types"
)

// verifyResult checks one scenario result against the scripted ground truth
// and the pipeline's structural guarantees. It returns every problem found.
func verifyResult(s *Scenario, result *app.Result) []string {
	log.Printf("🔍 Verifying scenario %s...", s.Name)

	var problems []string
	problems = append(problems, checkExpectation(s, result)...)
	for _, ruling := range result.Rulings {
		problems = append(problems, checkRuling(ruling)...)
	}
	for _, set := range result.Overlays {
		problems = append(problems, checkOverlaySet(set)...)
	}

	if len(problems) == 0 {
		log.Printf("✅ Scenario %s verified (%d rulings, %d overlay sets)",
			s.Name, len(result.Rulings), len(result.Overlays))
	} else {
		for _, p := range problems {
			log.Printf("⚠️  %s: %s", s.Name, p)
		}
	}
	return problems
}

// checkExpectation verifies the scripted outcome is present in the result.
func checkExpectation(s *Scenario, result *app.Result) []string {
	var problems []string

	if len(result.Rulings) == 0 {
		return append(problems, "no rulings produced")
	}

	if s.ExpectSegmentFailure {
		for _, ruling := range result.Rulings {
			if ruling.Verdict != types.VerdictInconclusive {
				problems = append(problems, fmt.Sprintf(
					"expected inconclusive segment ruling, got %s for %s", ruling.Verdict, ruling.EventID))
			}
		}
		if len(result.Overlays) != 0 {
			problems = append(problems, fmt.Sprintf(
				"segment failure should render nothing, got %d overlay sets", len(result.Overlays)))
		}
		return problems
	}

	found := false
	for _, ruling := range result.Rulings {
		if ruling.Type == s.ExpectType && ruling.Verdict == s.ExpectVerdict {
			found = true
			break
		}
	}
	if !found {
		problems = append(problems, fmt.Sprintf(
			"no %s ruling with verdict %s", s.ExpectType, s.ExpectVerdict))
	}
	return problems
}

// checkRuling verifies the structural invariants every ruling carries:
// bounded confidence, at least one explanation step, and confidence never
// above the least reliable step it rests on.
func checkRuling(ruling *model.Ruling) []string {
	var problems []string

	if ruling.Confidence < 0 || ruling.Confidence > 1 {
		problems = append(problems, fmt.Sprintf(
			"ruling %s confidence %.3f outside [0,1]", ruling.EventID, ruling.Confidence))
	}
	if len(ruling.Explanation) == 0 {
		problems = append(problems, fmt.Sprintf(
			"ruling %s has no explanation steps", ruling.EventID))
	}

	minReliability := 1.0
	bounded := false
	for _, step := range ruling.Explanation {
		if step.Reliability > 0 && step.Reliability < minReliability {
			minReliability = step.Reliability
			bounded = true
		}
	}
	if bounded && ruling.Confidence > minReliability+floatTolerance {
		problems = append(problems, fmt.Sprintf(
			"ruling %s confidence %.3f exceeds weakest step reliability %.3f",
			ruling.EventID, ruling.Confidence, minReliability))
	}
	return problems
}

// checkOverlaySet verifies rendered replay windows: contiguous ascending
// frames, monotone presentation timestamps and exactly one key instant.
func checkOverlaySet(set app.OverlaySet) []string {
	var problems []string

	if len(set.Frames) == 0 {
		return append(problems, fmt.Sprintf("overlay set %s is empty", set.EventID))
	}

	keyInstants := 0
	for i, frame := range set.Frames {
		if frame.IsKeyInstant {
			keyInstants++
		}
		if i == 0 {
			continue
		}
		prev := set.Frames[i-1]
		if frame.FrameIndex != prev.FrameIndex+1 {
			problems = append(problems, fmt.Sprintf(
				"overlay set %s frames not contiguous at index %d", set.EventID, frame.FrameIndex))
		}
		if frame.Presentation <= prev.Presentation {
			problems = append(problems, fmt.Sprintf(
				"overlay set %s presentation not increasing at index %d", set.EventID, frame.FrameIndex))
		}
	}
	if keyInstants != 1 {
		problems = append(problems, fmt.Sprintf(
			"overlay set %s has %d key instants, want exactly 1", set.EventID, keyInstants))
	}
	return problems
}

const floatTolerance = 1e-9
