package query

// Weights of the composite retrieval score. Match quality dominates;
// confidence, relationship strength, and currency break ties between
// comparable matches.
const (
	weightSimilarity = 0.5
	weightConfidence = 0.2
	weightStrength   = 0.2
	weightCurrency   = 0.1
)

// CompositeScore is the single ranking function of the search engine.
// All inputs are in [0, 1]; the result is in [0, 1]. Every ranked result,
// whichever funnel produced it, is scored here and nowhere else.
func CompositeScore(similarity, confidence, strength, currency float64) float64 {
	return weightSimilarity*clamp01(similarity) +
		weightConfidence*clamp01(confidence) +
		weightStrength*clamp01(strength) +
		weightCurrency*clamp01(currency)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
