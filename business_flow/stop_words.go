package businessflow

import "strings"

// stopWords is the fixed opt-out vocabulary. A message counts as a stop
// request when one of these appears as a standalone word.
var stopWords = map[string]struct{}{
	"stop":        {},
	"unsubscribe": {},
	"no":          {},
	"quit":        {},
	"end":         {},
	"block":       {},
}

// IsStopRequest reports whether the message is an opt-out request.
// Matching is case-insensitive on whole space-delimited tokens, so
// "hey STOP" matches while "nonstop" does not.
func IsStopRequest(text string) bool {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return false
	}

	if _, ok := stopWords[normalized]; ok {
		return true
	}

	for _, token := range strings.Fields(normalized) {
		if _, ok := stopWords[token]; ok {
			return true
		}
	}

	return false
}
