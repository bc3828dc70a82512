package narrative

import (
	"math"
	"strings"
	"unicode"

	"Naly/pkg/util"
)

const wordsPerMinute = 200

var (
	positiveTerms = toSet(
		"gain", "gains", "rise", "rose", "rising", "rally", "rallied", "growth", "strong", "stronger",
		"beat", "bullish", "upside", "surge", "surged", "record", "improve", "improved", "optimism",
		"positive", "higher", "outperform", "profit", "recovery", "upgrade",
	)
	negativeTerms = toSet(
		"fall", "fell", "falling", "drop", "dropped", "decline", "declined", "loss", "losses", "weak",
		"weaker", "miss", "bearish", "downside", "plunge", "plunged", "concern", "concerns", "lower",
		"slump", "negative", "selloff", "underperform", "downgrade", "uncertainty",
	)
	financeTerms = []string{
		"earnings", "revenue", "guidance", "volatility", "volume", "dividend", "merger", "acquisition",
		"inflation", "interest rates", "federal reserve", "sentiment", "momentum", "valuation",
		"regulation", "sector", "analyst", "buyback", "options", "liquidity",
	}
)

func toSet(words ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		out[w] = struct{}{}
	}
	return out
}

// Words splits text into lower-cased words without surrounding punctuation.
func Words(text string) []string {
	var out []string
	for _, f := range strings.Fields(text) {
		w := strings.TrimFunc(strings.ToLower(f), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}

// CountSentences counts runs of terminal punctuation. Non-empty text without
// any counts as one sentence.
func CountSentences(text string) int {
	n := 0
	inRun := false
	for _, r := range text {
		switch r {
		case '.', '!', '?':
			if !inRun {
				n++
			}
			inRun = true
		default:
			inRun = false
		}
	}
	if n == 0 && strings.TrimSpace(text) != "" {
		return 1
	}
	return n
}

// CountSyllables estimates syllables in a word from its vowel groups.
func CountSyllables(word string) int {
	word = strings.ToLower(word)
	count := 0
	prevVowel := false
	for _, r := range word {
		v := strings.ContainsRune("aeiouy", r)
		if v && !prevVowel {
			count++
		}
		prevVowel = v
	}
	if count > 1 && strings.HasSuffix(word, "e") && !strings.HasSuffix(word, "le") {
		count--
	}
	if count == 0 {
		return 1
	}
	return count
}

// FleschReadingEase scores text from 0 (hard) to 100 (easy).
func FleschReadingEase(text string) float64 {
	words := Words(text)
	if len(words) == 0 {
		return 0
	}
	syllables := 0
	for _, w := range words {
		syllables += CountSyllables(w)
	}
	wps := float64(len(words)) / float64(CountSentences(text))
	spw := float64(syllables) / float64(len(words))
	return util.Clamp(206.835-1.015*wps-84.6*spw, 0, 100)
}

// Sentiment is (positive hits - negative hits) / words, in [-1, 1].
func Sentiment(text string) float64 {
	words := Words(text)
	if len(words) == 0 {
		return 0
	}
	var pos, neg int
	for _, w := range words {
		if _, ok := positiveTerms[w]; ok {
			pos++
		}
		if _, ok := negativeTerms[w]; ok {
			neg++
		}
	}
	return util.Clamp(float64(pos-neg)/float64(len(words)), -1, 1)
}

// ReadingTime is the reading time in whole minutes, rounded up.
func ReadingTime(text string) int {
	return int(math.Ceil(float64(len(Words(text))) / wordsPerMinute))
}

// ComplexityLevel buckets a reading ease score.
func ComplexityLevel(ease float64) string {
	switch {
	case ease >= 60:
		return "simple"
	case ease >= 30:
		return "moderate"
	default:
		return "detailed"
	}
}

// ExtractTags returns the seed tags followed by finance terms found in text,
// de-duplicated and capped at limit.
func ExtractTags(text string, limit int, seed ...string) []string {
	seen := map[string]bool{}
	var out []string
	add := func(tag string) {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" || seen[tag] || len(out) >= limit {
			return
		}
		seen[tag] = true
		out = append(out, tag)
	}
	for _, s := range seed {
		add(s)
	}
	lower := strings.ToLower(text)
	for _, term := range financeTerms {
		if strings.Contains(lower, term) {
			add(term)
		}
	}
	return out
}
