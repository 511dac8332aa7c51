package search

import (
	"fmt"
	"math"
	"strings"
)

type Mode string

const (
	ModeVector  Mode = "vector"
	ModeKeyword Mode = "keyword"
)

// keywordFloor is the minimum keyword-mode score: anything that reached
// scoring already matched the query, so it is never labeled below 20%.
const keywordFloor = 20

// Relevance is the per-result score attached to a search hit. It is
// recomputed on every query and never persisted.
type Relevance struct {
	Score       int    `json:"score"`
	Explanation string `json:"explanation"`
}

// ScoreVector converts a cosine similarity in [0,1] into a 0-100 score.
func ScoreVector(similarity float64) int {
	score := int(math.Round(similarity * 100))
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// ScoreKeyword scores by query-word overlap: round(100*matched/total),
// floor-clamped at keywordFloor.
func ScoreKeyword(query, text string) int {
	words := queryWords(query)
	if len(words) == 0 {
		return keywordFloor
	}

	matched := len(matchedWords(query, text))
	score := int(math.Round(100 * float64(matched) / float64(len(words))))
	if score < keywordFloor {
		return keywordFloor
	}
	return score
}

// Relevance builds the score plus explanation for one candidate.
// rawSignal is cosine similarity for vector mode and ignored for keyword
// mode, where the overlap ratio is recomputed from the texts.
func ScoreResult(mode Mode, rawSignal float64, query, text string) Relevance {
	var score int
	if mode == ModeVector {
		score = ScoreVector(rawSignal)
	} else {
		score = ScoreKeyword(query, text)
	}

	return Relevance{
		Score:       score,
		Explanation: explain(mode, score, query, text),
	}
}

func explain(mode Mode, score int, query, text string) string {
	signal := "keyword overlap"
	if mode == ModeVector {
		signal = "semantic similarity"
	}

	switch {
	case score > 80:
		explanation := fmt.Sprintf("Very strong match (%d%% %s)", score, signal)
		if matched := matchedWords(query, text); len(matched) > 0 {
			if len(matched) > 3 {
				matched = matched[:3]
			}
			explanation += "; matched keywords: " + strings.Join(matched, ", ")
		}
		return explanation
	case score > 60:
		return fmt.Sprintf("Good match (%d%% %s)", score, signal)
	case score > 40:
		return fmt.Sprintf("Moderate relevance (%d%% %s)", score, signal)
	default:
		return fmt.Sprintf("Weak/related match (%d%% %s)", score, signal)
	}
}

// queryWords tokenizes a query: case-insensitive, whitespace-split,
// empty tokens dropped.
func queryWords(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// matchedWords returns the query words present in text, in query order.
func matchedWords(query, text string) []string {
	lowered := strings.ToLower(text)

	var matched []string
	for _, word := range queryWords(query) {
		if strings.Contains(lowered, word) {
			matched = append(matched, word)
		}
	}
	return matched
}
