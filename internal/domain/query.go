package domain

// Exchange is one prior question/answer pair in a conversation.
type Exchange struct {
	Question string
	Answer   string
}

// QueryContext carries everything known about a single interaction: the raw
// query, structured clinical parameters extracted from or supplied with it,
// and a bounded window of prior exchanges.
type QueryContext struct {
	RawQuery         string
	StructuredFields map[string]string
	History          []Exchange
}

// ScoredPassage pairs a retrieved passage with its relevance score.
type ScoredPassage struct {
	Passage Passage
	Score   float32
}

// RetrievalResult is an ordered sequence of scored passages, descending by
// score with ties broken by ascending passage ID. An empty result is valid
// and signals "no sufficiently relevant context".
type RetrievalResult []ScoredPassage

// GenerationRequest is the ephemeral request handed to a generation tier.
type GenerationRequest struct {
	Prompt      string
	MaxTokens   int
	Temperature float32
	TierHint    string
}
