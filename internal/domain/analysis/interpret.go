package analysis

import (
	"github.com/prasdika/temukan/internal/domain/cases"
)

// Interpret normalizes a decoded engine payload into an Outcome and derives the
// next case status. Pure function: same payload in, same outcome out.
//
// topN bounds the match list; the engine already caps it, this guards against
// an engine that does not honor the parameter. topN <= 0 keeps whatever came.
//
// A payload with zero matches keeps the case ANALYZING ("still searching"),
// it does not revert to PENDING.
func Interpret(res Result, topN int) Outcome {
	matches := res.Matches
	if matches == nil {
		matches = []Match{}
	}
	if topN > 0 && len(matches) > topN {
		matches = matches[:topN]
	}

	out := Outcome{
		Matches:    matches,
		Statistics: res.Statistics,
		NextStatus: cases.StatusAnalyzing,
	}
	if len(matches) > 0 {
		out.TopMatchConfidence = matches[0].Confidence
		out.NextStatus = cases.StatusSolved
	}
	return out
}
