// Package engagement turns a token's raw signal log into a single
// confidence score and open decision.
package engagement

import (
	"database/sql"
	"time"

	"github.com/ignite/outreach-engine/internal/store"
	"github.com/ignite/outreach-engine/internal/tracking"
)

// signalWeights rank signal types by how hard they are to trip
// accidentally. Interactive and browser views require a human.
var signalWeights = map[string]float64{
	tracking.SignalPrimary:     0.4,
	tracking.SignalSecondary:   0.5,
	tracking.SignalContent:     0.5,
	tracking.SignalInteractive: 0.8,
	tracking.SignalJavascript:  0.7,
	tracking.SignalViewBrowser: 0.9,
}

const defaultSignalWeight = 0.1

// openMethodRank picks the label reported for how the open was
// detected, strongest vector first.
var openMethodRank = []string{
	tracking.SignalViewBrowser,
	tracking.SignalInteractive,
	tracking.SignalJavascript,
	tracking.SignalSecondary,
	tracking.SignalContent,
	tracking.SignalPrimary,
}

// Analyzer computes engagement snapshots. It is pure: the same signal
// log always yields the same snapshot, so recomputes are idempotent.
type Analyzer struct {
	openThreshold float64
}

// NewAnalyzer creates an analyzer. openThreshold is the score above
// which a message counts as opened.
func NewAnalyzer(openThreshold float64) *Analyzer {
	return &Analyzer{openThreshold: openThreshold}
}

// Score aggregates per-signal confidences into one 0..1 score. Each
// signal contributes its confidence times its type weight, damped for
// prefetch timing; the mean is then penalized by the prefetch ratio
// and boosted for signal-type diversity.
func (a *Analyzer) Score(signals []store.Signal) float64 {
	if len(signals) == 0 {
		return 0.0
	}

	total := 0.0
	prefetchIndicators := 0
	types := map[string]bool{}

	for _, sig := range signals {
		weight, ok := signalWeights[sig.SignalType]
		if !ok {
			weight = defaultSignalWeight
		}
		score := sig.Confidence * weight

		timingPrefetch, timingConfidence := tracking.AnalyzeDelay(
			time.Duration(sig.DelaySeconds * float64(time.Second)))
		if timingPrefetch {
			prefetchIndicators++
			score *= 0.3
		} else {
			score *= timingConfidence
		}

		total += score
		types[sig.SignalType] = true
	}

	base := total / float64(len(signals))

	prefetchRatio := float64(prefetchIndicators) / float64(len(signals))
	prefetchPenalty := 1.0 - (prefetchRatio * 0.7)

	diversityBonus := float64(len(types)) * 0.1
	if diversityBonus > 0.3 {
		diversityBonus = 0.3
	}

	final := (base * prefetchPenalty) + diversityBonus
	if final < 0.0 {
		final = 0.0
	}
	if final > 1.0 {
		final = 1.0
	}
	return final
}

// Analyze builds the full snapshot for a signal log.
func (a *Analyzer) Analyze(signals []store.Signal) *store.OpenAnalysis {
	if len(signals) == 0 {
		return &store.OpenAnalysis{Analysis: "No tracking signals detected"}
	}

	score := a.Score(signals)

	ips := map[string]bool{}
	prefetchCount := 0
	humanCount := 0
	first := signals[0].RecordedAt
	last := signals[0].RecordedAt
	present := map[string]bool{}

	for _, sig := range signals {
		ips[sig.IPAddress] = true
		if sig.Confidence < 0.3 {
			prefetchCount++
		}
		if sig.Confidence > 0.7 {
			humanCount++
		}
		if sig.RecordedAt.Before(first) {
			first = sig.RecordedAt
		}
		if sig.RecordedAt.After(last) {
			last = sig.RecordedAt
		}
		present[sig.SignalType] = true
	}

	method := ""
	for _, candidate := range openMethodRank {
		if present[candidate] {
			method = candidate
			break
		}
	}

	return &store.OpenAnalysis{
		TotalSignals:    len(signals),
		ConfidenceScore: score,
		IsOpened:        score > a.openThreshold,
		OpenMethod:      method,
		FirstSignalAt:   sql.NullTime{Time: first, Valid: true},
		LastSignalAt:    sql.NullTime{Time: last, Valid: true},
		UniqueIPCount:   len(ips),
		PrefetchSignals: prefetchCount,
		HumanSignals:    humanCount,
		Analysis:        analysisText(score),
	}
}

func analysisText(score float64) string {
	switch {
	case score > 0.8:
		return "High confidence: Multiple indicators suggest genuine human engagement"
	case score > 0.5:
		return "Moderate confidence: Likely opened by human user"
	case score > 0.3:
		return "Low confidence: Possible automated prefetch or brief glimpse"
	default:
		return "Very low confidence: Likely automated system or mail scanner"
	}
}
