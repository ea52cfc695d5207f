package businessflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsStopRequest(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		expected bool
	}{
		{"BareStopWord", "stop", true},
		{"UppercaseStopWord", "STOP", true},
		{"MixedCaseStopWord", "StOp", true},
		{"Unsubscribe", "unsubscribe", true},
		{"No", "no", true},
		{"Quit", "quit", true},
		{"End", "end", true},
		{"Block", "block", true},
		{"TrailingToken", "hey STOP", true},
		{"LeadingToken", "stop messaging me", true},
		{"MiddleToken", "please stop now", true},
		{"SurroundingWhitespace", "  stop  ", true},
		{"Substring", "nonstop", false},
		{"SubstringEnd", "endless", false},
		{"SubstringBlock", "blockchain is cool", false},
		{"Unrelated", "hello there", false},
		{"Empty", "", false},
		{"WhitespaceOnly", "   ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsStopRequest(tt.message))
		})
	}
}
