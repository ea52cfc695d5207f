package businessflow

import (
	"regexp"
	"strings"

	"github.com/kitsune-chat/Kitsune/models"
	"github.com/kitsune-chat/Kitsune/utils"
)

// Classifier actions
const (
	ActionAllow    = "allow"
	ActionReview   = "review"
	ActionBlock    = "block"
	ActionEscalate = "escalate"
)

// Verdict is the outcome of classifying one inbound message
type Verdict struct {
	Action     string
	Reason     string
	Severity   string
	Confidence float64
}

// patternRule is one named predicate inside a tier. The reason is reported
// from the first matching rule; the action and severity come from the tier.
type patternRule struct {
	reason  string
	pattern *regexp.Regexp
}

// PatternClassifier evaluates messages against three ordered tiers.
// Escalation always wins over block, block over review, so the most
// dangerous category can never be downgraded by rule ordering.
type PatternClassifier struct {
	escalateRules []patternRule
	blockRules    []patternRule
	reviewRules   []patternRule
}

// NewPatternClassifier compiles all tier patterns once
func NewPatternClassifier() *PatternClassifier {
	return &PatternClassifier{
		escalateRules: []patternRule{
			{models.FlagReasonMinorSafety, regexp.MustCompile(`(?i)\b(?:i'?m|i\s+am)\s+(?:only\s+)?1[0-7]\b|\bunder\s*(?:age|18)\b|\bminor\b|\bschool\s*(?:girl|boy)\b|\bbarely\s+legal\b`)},
			{models.FlagReasonSelfHarmThreat, regexp.MustCompile(`(?i)\bkill\s+(?:myself|yourself|you)\b|\bsuicid\w*\b|\bself[\s-]?harm\b|\bend\s+my\s+life\b|\bcut\s+myself\b|\bhurt\s+(?:myself|you)\b`)},
			{models.FlagReasonDoxxingStalking, regexp.MustCompile(`(?i)\b(?:your|ur)\s+(?:home\s+)?address\b|\bwhere\s+do\s+you\s+live\b|\bi\s+know\s+where\s+you\s+live\b|\bfollow(?:ing|ed)?\s+you\s+home\b|\btrack\s+you\s+down\b|\bfind\s+your\s+house\b`)},
		},
		blockRules: []patternRule{
			{models.FlagReasonProfanity, regexp.MustCompile(`(?i)\bfuck\w*\b|\bshit\w*\b|\bcunt\b|\bbitch\w*\b|\bwhore\b|\bslut\b`)},
			{models.FlagReasonMeetupSolicitation, regexp.MustCompile(`(?i)\bmeet\s+(?:up|me|at|in\s+person)\b|\bin\s+person\b|\bmy\s+(?:hotel|place|apartment|house)\b|\bcome\s+over\b|\bhotel\s+room\b|\bpick\s+you\s+up\b`)},
			{models.FlagReasonAgeAdjacent, regexp.MustCompile(`(?i)\bteen\w*\b|\bjailbait\b|\blittle\s+girl\b|\blittle\s+boy\b|\bdaddy'?s\s+little\b|\byoung\s+enough\b`)},
			{models.FlagReasonViolence, regexp.MustCompile(`(?i)\bviolen\w*\b|\bmurder\w*\b|\bbeat\s+(?:you|her|him)\s+up\b|\bshoot\w*\b|\bstab\w*\b|\bweapon\b`)},
			{models.FlagReasonIllegalSubstance, regexp.MustCompile(`(?i)\bcocaine\b|\bheroin\b|\bmeth\b|\bfentanyl\b|\bdrug\s+deal\w*\b|\bbuy\s+drugs\b|\bsell\s+(?:you\s+)?drugs\b`)},
		},
		reviewRules: []patternRule{
			{models.FlagReasonAgePlay, regexp.MustCompile(`(?i)\bage\s*play\b|\bpretend\s+(?:you'?re|to\s+be)\s+young\w*\b|\bcall\s+me\s+daddy\b|\bbaby\s*girl\s+roleplay\b`)},
			{models.FlagReasonNonConsent, regexp.MustCompile(`(?i)\bnon[\s-]?consen\w*\b|\bagainst\s+(?:your|her|his)\s+will\b|\bforce\s+(?:you|me)\b|\bmake\s+you\s+do\s+it\b|\bdon'?t\s+want\s+to\s+but\b`)},
			{models.FlagReasonFreeContentDemand, regexp.MustCompile(`(?i)\bfree\s+(?:pics?|photos?|videos?|content)\b|\bsend\s+(?:me\s+)?(?:pics?|photos?)\s+for\s+free\b|\bwithout\s+paying\b`)},
			{models.FlagReasonOffPlatformPayment, regexp.MustCompile(`(?i)\bvenmo\b|\bpaypal\b|\bcash\s*app\b|\bzelle\b|\bcrypto\s+wallet\b|\bbitcoin\s+address\b|\bpay\s+you\s+(?:directly|outside)\b`)},
		},
	}
}

// Classify evaluates the message and returns a verdict. Tiers are checked
// in descending severity and the first match wins.
func (c *PatternClassifier) Classify(text string) Verdict {
	trimmed := strings.TrimSpace(text)

	// Too short to carry classifiable intent
	if len(trimmed) < utils.MinClassifiableLength {
		return Verdict{Action: ActionAllow, Severity: models.SeverityLow, Confidence: 0.5}
	}

	if reason, ok := firstMatch(c.escalateRules, trimmed); ok {
		return Verdict{Action: ActionEscalate, Reason: reason, Severity: models.SeverityCritical, Confidence: 0.95}
	}

	if reason, ok := firstMatch(c.blockRules, trimmed); ok {
		return Verdict{Action: ActionBlock, Reason: reason, Severity: models.SeverityHigh, Confidence: 0.9}
	}

	if reason, ok := firstMatch(c.reviewRules, trimmed); ok {
		return Verdict{Action: ActionReview, Reason: reason, Severity: models.SeverityMedium, Confidence: 0.7}
	}

	return Verdict{Action: ActionAllow, Severity: models.SeverityLow, Confidence: 0.95}
}

func firstMatch(rules []patternRule, text string) (string, bool) {
	for _, rule := range rules {
		if rule.pattern.MatchString(text) {
			return rule.reason, true
		}
	}
	return "", false
}

// IsAllowed reports whether the verdict lets the message continue down the pipeline
func (v Verdict) IsAllowed() bool {
	return v.Action == ActionAllow
}
