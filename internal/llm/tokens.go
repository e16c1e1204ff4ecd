// Token estimation utilities for LLM context management.
package llm

// EstimateTokens provides a heuristic-based token count estimate for text.
// Uses the common approximation of ~4 characters per token, rounded up.
func EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	return (len(text) + 3) / 4
}

// EstimateBudgetChars converts a token budget to approximate character limit.
func EstimateBudgetChars(tokens int) int {
	return tokens * 4
}

// TrimToBudget keeps the newest texts whose combined estimate fits in budget
// tokens. Order is preserved; a zero or negative budget keeps everything.
func TrimToBudget(texts []string, budget int) []string {
	if budget <= 0 {
		return texts
	}
	used := 0
	start := len(texts)
	for i := len(texts) - 1; i >= 0; i-- {
		cost := EstimateTokens(texts[i])
		if used+cost > budget {
			break
		}
		used += cost
		start = i
	}
	return texts[start:]
}
