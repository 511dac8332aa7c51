// Package analysis holds the deterministic classification heuristics the
// pipeline applies to raw feedback text. Everything here is a pure
// function of its input so stages can be re-run safely after a crash.
package analysis

import (
	"strings"

	"feedbackd/internal/inference"
)

const (
	CategoryBug            = "Bug"
	CategoryFeatureRequest = "Feature Request"
	CategoryDocumentation  = "Documentation"
	CategoryPerformance    = "Performance"
	CategoryOther          = "Other"
)

const (
	UrgencyCritical = "critical"
	UrgencyHigh     = "high"
	UrgencyMedium   = "medium"
	UrgencyLow      = "low"
)

const (
	summaryMaxLen   = 100
	summaryCutLen   = 97
	summaryEllipsis = "..."
)

// categoryBuckets are checked in order; the first bucket with a matching
// keyword wins, and text matching nothing lands in Other.
var categoryBuckets = []struct {
	label    string
	keywords []string
}{
	{CategoryBug, []string{"bug", "broken", "crash", "error", "doesn't work", "does not work", "not working", "fails", "failure"}},
	{CategoryFeatureRequest, []string{"feature", "request", "would be nice", "wish", "suggest", "add support", "please add"}},
	{CategoryDocumentation, []string{"docs", "documentation", "tutorial", "guide", "readme", "unclear", "example"}},
	{CategoryPerformance, []string{"slow", "performance", "lag", "latency", "timeout", "memory", "speed"}},
}

// urgencyBuckets are checked most-severe first; unmatched text is low.
var urgencyBuckets = []struct {
	label    string
	keywords []string
}{
	{UrgencyCritical, []string{"broken", "crash", "urgent", "critical", "down", "data loss", "security", "outage", "cannot", "can't"}},
	{UrgencyHigh, []string{"error", "fail", "bug", "important", "blocked", "asap", "major"}},
	{UrgencyMedium, []string{"slow", "improve", "issue", "confusing", "annoying", "minor"}},
}

// tagVocabulary buckets are independent; every matching topic applies.
var tagVocabulary = map[string][]string{
	"ui":          {"ui", "design", "layout", "button", "screen", "theme"},
	"auth":        {"login", "log in", "password", "auth", "sign in", "signup", "account"},
	"performance": {"slow", "fast", "performance", "lag", "speed", "latency"},
	"billing":     {"price", "billing", "payment", "subscription", "charge", "refund"},
	"mobile":      {"mobile", "ios", "android", "phone", "tablet"},
	"api":         {"api", "endpoint", "integration", "webhook", "sdk"},
}

var sentimentLexicon = map[string][]string{
	inference.SentimentPositive: {"love", "great", "awesome", "amazing", "excellent", "thanks", "thank you", "perfect", "helpful"},
	inference.SentimentNegative: {"broken", "hate", "terrible", "awful", "bad", "bug", "crash", "annoying", "disappointed", "error", "fail", "useless", "frustrating"},
}

// Result is the deterministic half of an item's annotations; sentiment is
// derived separately because it normally comes from the inference provider.
type Result struct {
	Category string
	Urgency  string
	Summary  string
	Tags     []string
}

func Classify(text string) Result {
	lowered := strings.ToLower(text)

	return Result{
		Category: classifyCategory(lowered),
		Urgency:  classifyUrgency(lowered),
		Summary:  Summarize(text),
		Tags:     deriveTags(lowered),
	}
}

func classifyCategory(lowered string) string {
	for _, bucket := range categoryBuckets {
		if containsAny(lowered, bucket.keywords) {
			return bucket.label
		}
	}
	return CategoryOther
}

func classifyUrgency(lowered string) string {
	for _, bucket := range urgencyBuckets {
		if containsAny(lowered, bucket.keywords) {
			return bucket.label
		}
	}
	return UrgencyLow
}

func deriveTags(lowered string) []string {
	var tags []string
	// fixed iteration order keeps re-runs byte-identical
	for _, tag := range []string{"api", "auth", "billing", "mobile", "performance", "ui"} {
		if containsAny(lowered, tagVocabulary[tag]) {
			tags = append(tags, tag)
		}
	}
	if tags == nil {
		tags = []string{}
	}
	return tags
}

// Summarize keeps text up to 100 characters verbatim; anything longer is
// cut to the first 97 characters plus an ellipsis.
func Summarize(text string) string {
	runes := []rune(text)
	if len(runes) <= summaryMaxLen {
		return text
	}
	return string(runes[:summaryCutLen]) + summaryEllipsis
}

// FallbackSentiment is a lexicon heuristic used when the inference
// provider is unavailable, so classification can still complete.
func FallbackSentiment(text string) string {
	lowered := strings.ToLower(text)

	positive := countMatches(lowered, sentimentLexicon[inference.SentimentPositive])
	negative := countMatches(lowered, sentimentLexicon[inference.SentimentNegative])

	switch {
	case negative > positive:
		return inference.SentimentNegative
	case positive > negative:
		return inference.SentimentPositive
	default:
		return inference.SentimentNeutral
	}
}

func containsAny(lowered string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

func countMatches(lowered string, keywords []string) int {
	count := 0
	for _, kw := range keywords {
		if strings.Contains(lowered, kw) {
			count++
		}
	}
	return count
}
