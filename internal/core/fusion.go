package core

import (
	"math"
)

// Fusion weights. These are fixed design constants; changing them breaks
// comparability with historical assessments.
const (
	weightClassifier = 0.55
	weightReputation = 0.35
	weightContext    = 0.10
)

// PhishingThreshold is the final-score cutoff at or above which an
// assessment is treated as phishing.
const PhishingThreshold = 50

// Fuse combines the three normalized agent scores into an integer final
// score in [0,100] and its threat tier. Pure function, no I/O.
func Fuse(phishScore, vtScore, contextScore float64) (int, ThreatLevel) {
	raw := weightClassifier*phishScore + weightReputation*vtScore + weightContext*contextScore
	if raw < 0 {
		raw = 0
	} else if raw > 1 {
		raw = 1
	}
	final := int(math.Round(raw * 100))
	return final, TierFor(final)
}

// TierFor maps a final score onto its threat tier. Half-open intervals,
// no gaps, no overlaps.
func TierFor(finalScore int) ThreatLevel {
	switch {
	case finalScore < 30:
		return ThreatNone
	case finalScore < 40:
		return ThreatLow
	case finalScore < 60:
		return ThreatMedium
	case finalScore < 80:
		return ThreatHigh
	default:
		return ThreatCritical
	}
}

// verdict severity order, worst first
var verdictRank = map[Verdict]int{
	VerdictMalicious:  3,
	VerdictSuspicious: 2,
	VerdictError:      1,
	VerdictClean:      0,
}

// verdict→score mapping, a design constant shared with historical data
var verdictScore = map[Verdict]float64{
	VerdictMalicious:  1.0,
	VerdictSuspicious: 0.6,
	VerdictError:      0.2,
	VerdictClean:      0.0,
}

// AggregateVerdicts returns the worst verdict present. An empty input
// aggregates to CLEAN.
func AggregateVerdicts(verdicts []Verdict) Verdict {
	worst := VerdictClean
	for _, v := range verdicts {
		if verdictRank[v] > verdictRank[worst] {
			worst = v
		}
	}
	return worst
}

// VerdictScore maps a verdict onto the [0,1] reputation score scale
func VerdictScore(v Verdict) float64 {
	return verdictScore[v]
}
