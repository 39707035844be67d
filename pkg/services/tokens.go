package services

// estimateTokens approximates the token cost of a text as one token per four
// characters, rounded up. The same estimator is applied on both sides of the
// budget comparison, so only relative consistency matters.
func estimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	return (len(text) + 3) / 4
}
