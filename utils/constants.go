package utils

import (
	"time"
)

// Token and session time constants
const (
	// AccessTokenTTL is the time-to-live for access tokens (24 hours)
	AccessTokenTTL = 24 * time.Hour

	// RefreshTokenTTL is the time-to-live for refresh tokens (7 days)
	RefreshTokenTTL = 7 * 24 * time.Hour
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

// Fan-facing reply texts. These are fixed by policy: the blocked and flagged
// notices must never reveal which rule matched.
const (
	// StopAcknowledgmentText is returned after a stop request is honored.
	StopAcknowledgmentText = "You've been unsubscribed and won't receive any more messages. You can opt back in at any time from your account settings."

	// ConsentPromptText is returned instead of a persona reply when the fan
	// has not affirmed age and romantic-content consent.
	ConsentPromptText = "Before we continue, please confirm that you are 18 or older and that you consent to receiving romantic content. You can do this from your account settings."

	// BlockedNoticeText is returned when a message is blocked by policy.
	BlockedNoticeText = "Your message couldn't be delivered because it doesn't meet our community guidelines."

	// ReviewNoticeText is returned for messages held for review and for
	// escalations. Intentionally generic.
	ReviewNoticeText = "Your message has been flagged for review by our team."

	// FallbackReplyText is sent when the responder fails or times out.
	FallbackReplyText = "I'm sorry, I got a little distracted just now. Could you say that again?"
)

// Pipeline constants
const (
	// MinClassifiableLength is the minimum trimmed message length the pattern
	// classifier inspects; anything shorter is allowed with low confidence.
	MinClassifiableLength = 3

	// RecentMessageWindow is how many prior messages are handed to the responder.
	RecentMessageWindow = 10

	// ReplyGenerationTimeout bounds one responder call. Expiry is retried once,
	// then the fallback reply is used.
	ReplyGenerationTimeout = 20 * time.Second
)
