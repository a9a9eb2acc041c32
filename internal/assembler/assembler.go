// Package assembler turns retrieved passages, the query, and structured
// clinical context into a bounded prompt.
package assembler

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/akaclinicalco/jtskb/internal/domain"
)

const (
	contextPreamble = "You are an experienced trauma provider giving quick, direct advice. " +
		"Be concise but conversational. Give actionable answers in 1-2 sentences."

	contextStart = "[CONTEXT START]"
	contextEnd   = "[CONTEXT END]"
	answerCue    = "Answer with direct, actionable advice:"
)

// Assemble packs passages in descending relevance order under tokenBudget,
// measured by estimated token count rather than passage count. Structured
// fields are always included verbatim; they take priority over retrieved
// passages. A passage that would overflow the budget is truncated rather
// than dropped once at least one passage made it in. Conversation history
// is appended most-recent-first and is the first thing sacrificed under
// budget pressure.
//
// An empty retrieval result produces a no-context prompt so downstream
// generation answers from general knowledge or declines.
func Assemble(qc domain.QueryContext, rr domain.RetrievalResult, tokenBudget int) string {
	// Budget accounting runs in runes (2 runes ~ 1 token) so the final
	// estimate can never round past the budget.
	budgetRunes := tokenBudget * 2

	base := basePrompt(qc)
	remaining := budgetRunes - utf8.RuneCountInString(base) - utf8.RuneCountInString(questionBlock(qc))

	contextBlock, remaining := packPassages(rr, remaining)
	historyBlock := packHistory(qc.History, remaining)

	var b strings.Builder
	b.WriteString(base)
	if contextBlock != "" {
		b.WriteString("\n\n")
		b.WriteString(contextBlock)
	}
	if historyBlock != "" {
		b.WriteString("\n\n")
		b.WriteString(historyBlock)
	}
	b.WriteString(questionBlock(qc))
	return b.String()
}

func basePrompt(qc domain.QueryContext) string {
	var b strings.Builder
	b.WriteString(contextPreamble)

	if len(qc.StructuredFields) > 0 {
		b.WriteString("\n\nPatient parameters:")
		keys := make([]string, 0, len(qc.StructuredFields))
		for k := range qc.StructuredFields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.WriteString("\n- ")
			b.WriteString(k)
			b.WriteString(": ")
			b.WriteString(qc.StructuredFields[k])
		}
	}
	return b.String()
}

func questionBlock(qc domain.QueryContext) string {
	return "\n\nQuestion: " + qc.RawQuery + "\n\n" + answerCue
}

// packPassages greedily fills the context block in relevance order and
// returns the block plus the unspent rune budget.
func packPassages(rr domain.RetrievalResult, remaining int) (string, int) {
	if len(rr) == 0 || remaining <= 0 {
		return "", remaining
	}

	// Frame cost: the two inner newlines plus the blank line joining the
	// block into the prompt.
	frame := utf8.RuneCountInString(contextStart) + utf8.RuneCountInString(contextEnd) + 4
	if remaining <= frame {
		return "", remaining
	}
	remaining -= frame

	var included []string
	for _, sp := range rr {
		cost := utf8.RuneCountInString(sp.Passage.Text)
		if len(included) > 0 {
			cost += 2 // separator
		}
		if cost <= remaining {
			included = append(included, sp.Passage.Text)
			remaining -= cost
			continue
		}

		// Overflow: keep what fits of this passage instead of dropping
		// it outright.
		sep := 0
		if len(included) > 0 {
			sep = 2
		}
		room := remaining - sep
		if room > 1 {
			truncated := truncateToTokens(sp.Passage.Text, room/2)
			if truncated != "" {
				included = append(included, truncated)
				remaining -= sep + utf8.RuneCountInString(truncated)
			}
		}
		break
	}

	if len(included) == 0 {
		return "", remaining + frame
	}
	return contextStart + "\n" + strings.Join(included, "\n\n") + "\n" + contextEnd, remaining
}

// packHistory appends prior exchanges most-recent-first until the budget
// runs out.
func packHistory(history []domain.Exchange, remaining int) string {
	if len(history) == 0 || remaining <= 0 {
		return ""
	}

	header := "Previous exchanges:"
	remaining -= utf8.RuneCountInString(header) + 2 // header plus joining blank line

	var lines []string
	for i := len(history) - 1; i >= 0; i-- {
		line := "Q: " + history[i].Question + "\nA: " + history[i].Answer
		cost := utf8.RuneCountInString(line) + 1 // newline
		if cost > remaining {
			break
		}
		lines = append(lines, line)
		remaining -= cost
	}

	if len(lines) == 0 {
		return ""
	}
	return header + "\n" + strings.Join(lines, "\n")
}
