package orchestrator

// TokensPerTask is the planning estimate for one worker invocation.
const TokensPerTask = 15_000

// MinRecommendedRounds leaves room for the longest dependency chain plus
// stragglers when fitting a budget.
const MinRecommendedRounds = 8

// Fallback limits used when no budget is set or the budget is too tight.
var (
	UnlimitedLimits    = Limits{MaxRounds: 10, BatchSize: 5}
	ConservativeLimits = Limits{MaxRounds: 26, BatchSize: 1}
)

// EstimateTokens is the worst-case token usage of a run: every round fills
// every role's batch.
func EstimateTokens(maxRounds, batchSize, roles int) int {
	if maxRounds <= 0 || batchSize <= 0 || roles <= 0 {
		return 0
	}
	return maxRounds * batchSize * roles * TokensPerTask
}

// EstimateCost converts tokens to dollars at usdPerMillion.
func EstimateCost(tokens int, usdPerMillion float64) float64 {
	return float64(tokens) / 1_000_000 * usdPerMillion
}

// RecommendLimits picks limits that fit budget tokens across roles. The
// smallest batch size giving at least eight rounds wins. A budget <= 0 means
// unlimited. The bool is false when nothing fits and the conservative
// fallback was returned.
func RecommendLimits(budget, roles int) (Limits, bool) {
	if budget <= 0 {
		return UnlimitedLimits, true
	}
	if roles <= 0 {
		roles = 1
	}
	for _, batch := range []int{1, 2, 3, 5} {
		perRound := batch * roles * TokensPerTask
		rounds := budget / perRound
		if rounds >= MinRecommendedRounds {
			return Limits{MaxRounds: rounds, BatchSize: batch}, true
		}
	}
	return ConservativeLimits, false
}
