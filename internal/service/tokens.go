package service

// charsPerToken is the fixed English-text heuristic: 1 token is roughly
// 4 characters. All token budgeting in the pipeline uses this estimate.
const charsPerToken = 4

// EstimateTokens approximates the token count of text.
func EstimateTokens(text string) int {
	return len(text) / charsPerToken
}

// TruncateToTokens cuts text down to at most maxTokens estimated tokens.
// Text already under the budget is returned unchanged.
func TruncateToTokens(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	maxChars := maxTokens * charsPerToken
	if len(text) <= maxChars {
		return text
	}
	return text[:maxChars]
}
