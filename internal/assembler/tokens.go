package assembler

// truncateToTokens cuts text down to approximately the given token budget.
// Two runes per token is a conservative estimate that holds for both
// English (~4 chars/token) and denser scripts.
func truncateToTokens(text string, tokens int) string {
	if tokens <= 0 {
		return ""
	}
	maxRunes := tokens * 2
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}
	return string(runes[:maxRunes])
}
