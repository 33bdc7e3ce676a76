package eval

import "github.com/opsline-ai/incident-agent/incident"

// Metrics is the deterministic (non-LM) scorecard computed from a replay,
// per spec.md §4.6 and §8.
type Metrics struct {
	// ExpectationPassRate is met expectations / total expectations, across
	// every run of every turn.
	ExpectationPassRate float64
	// PositiveRecall is met positive expectations / total positive
	// expectations: how often a suggestion the scenario says should fire
	// actually fired.
	PositiveRecall float64
	// PrecisionProxy is suggestions whose action family some positive
	// expectation named / all suggestions fired, approximating how often a
	// fired suggestion was one the scenario actually wanted.
	PrecisionProxy float64
	// FalseResolvedRate is the fraction of runs that proposed
	// update_status(resolved) when no expectation in that turn positively
	// called for it.
	FalseResolvedRate float64
	// DuplicateSuggestionRate is the fraction of suggestions, across all
	// runs, that share a duplicateSignature with another suggestion already
	// seen earlier in the same run.
	DuplicateSuggestionRate float64
	// FirstStatusPageCompliance is the fraction of first-ever
	// add_status_page_update suggestions (no prior affection in the turn's
	// context) that carried affectionStatus=investigating, a title, and at
	// least one service.
	FirstStatusPageCompliance float64
}

// ComputeMetrics folds every run of every turn in captures into a single
// Metrics scorecard.
func ComputeMetrics(captures []ScenarioCapture) Metrics {
	var (
		totalExpectations, metExpectations          int
		totalPositive, metPositive                  int
		totalRuns, falseResolvedRuns                int
		totalSuggestions, duplicateSuggestions      int
		wantedFamilySuggestions                     int
		firstStatusPageAttempts, compliantAttempts  int
	)

	for _, sc := range captures {
		for _, tc := range sc.Turns {
			positiveActions := make(map[incident.TargetKind]bool)
			wantsResolved := false
			for _, exp := range tc.Turn.Expectations {
				if !exp.Positive {
					continue
				}
				positiveActions[exp.Action] = true
				if exp.Action == incident.TargetUpdateStatus && exp.Constraint == "resolved" {
					wantsResolved = true
				}
			}

			for _, run := range tc.Runs {
				if run.Err != nil {
					continue
				}
				totalRuns++

				for i, exp := range tc.Turn.Expectations {
					totalExpectations++
					hit := i < len(run.ExpectationHit) && run.ExpectationHit[i]
					if hit {
						metExpectations++
					}
					if exp.Positive {
						totalPositive++
						if hit {
							metPositive++
						}
					}
				}

				resolvedFired := false
				seenSignatures := make(map[string]bool)
				for _, s := range run.Suggestions {
					totalSuggestions++
					sig := duplicateSignature(s)
					if seenSignatures[sig] {
						duplicateSuggestions++
					}
					seenSignatures[sig] = true

					if positiveActions[s.Kind()] {
						wantedFamilySuggestions++
					}

					if v, ok := s.(incident.UpdateStatusSuggestion); ok && v.Status == incident.StatusResolved {
						resolvedFired = true
					}

					if v, ok := s.(incident.AddStatusPageUpdateSuggestion); ok && !tc.Turn.Context.Affection.HasAffection {
						firstStatusPageAttempts++
						if v.AffectionStatus != nil && *v.AffectionStatus == incident.AffectionInvestigating &&
							v.Title != "" && len(v.Services) > 0 {
							compliantAttempts++
						}
					}
				}

				if resolvedFired && !wantsResolved {
					falseResolvedRuns++
				}
			}
		}
	}

	return Metrics{
		ExpectationPassRate:       ratio(metExpectations, totalExpectations),
		PositiveRecall:            ratio(metPositive, totalPositive),
		PrecisionProxy:            ratio(wantedFamilySuggestions, totalSuggestions),
		FalseResolvedRate:         ratio(falseResolvedRuns, totalRuns),
		DuplicateSuggestionRate:   ratio(duplicateSuggestions, totalSuggestions),
		FirstStatusPageCompliance: ratio(compliantAttempts, firstStatusPageAttempts),
	}
}

func ratio(numerator, denominator int) float64 {
	if denominator == 0 {
		return 0
	}
	return float64(numerator) / float64(denominator)
}
