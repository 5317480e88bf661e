// Package analysis implements the closed-form attacker success
// probability from section 11 of the Bitcoin whitepaper, alongside the
// bookkeeping needed to compare it against simulated double-spend
// attempts.
package analysis

import "math"

// AttackerSuccessProbability returns the probability that an attacker
// controlling hash-power fraction q eventually catches up from z blocks
// behind, following Nakamoto's Poisson race derivation. q >= 0.5 returns
// 1.0 (the attacker is not actually behind in the long run); z == 0
// returns 1.0 (nothing to catch up from).
func AttackerSuccessProbability(q float64, z int) float64 {
	if q >= 0.5 {
		return 1.0
	}
	if z == 0 {
		return 1.0
	}

	p := 1 - q
	lambda := float64(z) * (q / p)
	sum := 1.0
	poisson := math.Exp(-lambda)

	for k := 0; k <= z; k++ {
		if k > 0 {
			poisson *= lambda / float64(k)
		}
		catchUpProb := 1 - math.Pow(q/p, float64(z-k))
		sum -= poisson * catchUpProb
	}
	if sum < 0 {
		// Cancellation in 1 - sum can leave a tiny negative residue for
		// small q and large z; a probability is never below 0.
		return 0
	}
	return sum
}

// maxConfirmationSearch bounds the linear search in RequiredConfirmations;
// beyond this many blocks the required confirmation count is reported as
// not found rather than searching indefinitely for vanishingly small q.
const maxConfirmationSearch = 1000

// RequiredConfirmations returns the smallest z such that
// AttackerSuccessProbability(q, z) <= targetProbability, and whether such
// a z was found within maxConfirmationSearch. The search is linear
// because the probability curve is not generally monotonic in closed
// form-friendly ways at small z, matching the reference implementation's
// approach.
func RequiredConfirmations(q, targetProbability float64) (int, bool) {
	for z := 0; z <= maxConfirmationSearch; z++ {
		if AttackerSuccessProbability(q, z) <= targetProbability {
			return z, true
		}
	}
	return maxConfirmationSearch, false
}

// WhitepaperReport tabulates AttackerSuccessProbability across a q range
// for a fixed set of confirmation depths, mirroring Table 1 of the
// Bitcoin whitepaper.
type WhitepaperReport struct {
	Confirmations []int
	QValues       []float64
	// Probabilities[i][j] is the probability for QValues[i] at
	// Confirmations[j] blocks.
	Probabilities [][]float64
}

// GenerateWhitepaperComparisonReport reproduces the whitepaper's Table 1
// shape for arbitrary confirmation depths and q values, so a caller can
// sanity-check AttackerSuccessProbability against known published values.
func GenerateWhitepaperComparisonReport(qValues []float64, confirmations []int) WhitepaperReport {
	report := WhitepaperReport{
		Confirmations: confirmations,
		QValues:       qValues,
		Probabilities: make([][]float64, len(qValues)),
	}
	for i, q := range qValues {
		row := make([]float64, len(confirmations))
		for j, z := range confirmations {
			row[j] = AttackerSuccessProbability(q, z)
		}
		report.Probabilities[i] = row
	}
	return report
}

// SimulationComparison holds the theoretical and observed success rate
// for one (q, confirmations) configuration, plus their absolute
// difference for quick eyeballing.
type SimulationComparison struct {
	Q                     float64
	Confirmations         int
	TheoreticalProbability float64
	ObservedSuccessRate   float64
	AbsoluteDifference    float64
}

// CompareWithSimulation packages a MetricsCollector's observed success
// rate against the closed-form prediction for the same (q, confirmations)
// pair.
func CompareWithSimulation(q float64, confirmations int, observedSuccessRate float64) SimulationComparison {
	theoretical := AttackerSuccessProbability(q, confirmations)
	return SimulationComparison{
		Q:                      q,
		Confirmations:          confirmations,
		TheoreticalProbability: theoretical,
		ObservedSuccessRate:    observedSuccessRate,
		AbsoluteDifference:     math.Abs(theoretical - observedSuccessRate),
	}
}
