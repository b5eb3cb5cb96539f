package providers

// EstimateTokens returns an approximate token count using the ~4 chars/token heuristic.
func EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	return (len(text) + 3) / 4
}

// EstimateMessagesTokens estimates the total token count for a set of chat messages.
// Accounts for role overhead (~4 tokens per message for role, separators).
func EstimateMessagesTokens(messages []Message) int {
	total := 0
	for _, msg := range messages {
		total += 4
		total += EstimateTokens(msg.Content)
	}
	return total
}

// Fit drops the oldest history messages until the request fits in
// contextTokens minus the completion reserve. The system prompt and the
// user prompt are always kept. History is dropped in user/assistant pairs
// so the remaining conversation never starts with an assistant turn.
func (r Request) Fit(contextTokens, reserve int) Request {
	if contextTokens <= 0 {
		return r
	}
	budget := contextTokens - reserve
	history := r.History
	for len(history) > 0 && EstimateMessagesTokens(Request{System: r.System, History: history, Prompt: r.Prompt}.Messages()) > budget {
		drop := 1
		if len(history) > 1 && history[0].Role == RoleUser && history[1].Role == RoleAssistant {
			drop = 2
		}
		history = history[drop:]
	}
	r.History = history
	return r
}
