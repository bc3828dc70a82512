package narrative

import (
	"math"
	"strings"
	"testing"
)

func TestCountSyllables(t *testing.T) {
	cases := map[string]int{
		"stock":   1,
		"rose":    1,
		"demand":  2,
		"market":  2,
		"table":   2,
		"company": 3,
		"a":       1,
		"rhythm":  1,
		"":        1,
	}
	for word, want := range cases {
		if got := CountSyllables(word); got != want {
			t.Fatalf("%q: got %d want %d", word, got, want)
		}
	}
}

func TestCountSentences(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"", 0},
		{"no terminator", 1},
		{"One. Two! Three?", 3},
		{"Wait... what?!", 2},
	}
	for _, tc := range cases {
		if got := CountSentences(tc.text); got != tc.want {
			t.Fatalf("%q: got %d want %d", tc.text, got, tc.want)
		}
	}
}

func TestReadingTime(t *testing.T) {
	if got := ReadingTime(strings.Repeat("word ", 200)); got != 1 {
		t.Fatalf("200 words: got %d", got)
	}
	if got := ReadingTime(strings.Repeat("word ", 201)); got != 2 {
		t.Fatalf("201 words: got %d", got)
	}
	if got := ReadingTime(""); got != 0 {
		t.Fatalf("empty text: got %d", got)
	}
}

func TestSentiment(t *testing.T) {
	if got := Sentiment("Shares rose on strong earnings."); math.Abs(got-0.4) > 1e-9 {
		t.Fatalf("positive text: got %v", got)
	}
	if got := Sentiment("Shares fell."); math.Abs(got+0.5) > 1e-9 {
		t.Fatalf("negative text: got %v", got)
	}
	if got := Sentiment("Shares rose then fell."); got != 0 {
		t.Fatalf("balanced text: got %v", got)
	}
	if Sentiment("") != 0 {
		t.Fatalf("empty text should be neutral")
	}
}

func TestFleschReadingEase(t *testing.T) {
	easy := FleschReadingEase("The cat sat. The dog ran.")
	hard := FleschReadingEase("Institutional accumulation notwithstanding, macroeconomic considerations substantially complicate valuation methodologies")
	if easy <= hard {
		t.Fatalf("short words should read easier: easy=%v hard=%v", easy, hard)
	}
	if easy > 100 || hard < 0 {
		t.Fatalf("scores out of range: %v %v", easy, hard)
	}
	if ComplexityLevel(easy) != "simple" || ComplexityLevel(hard) != "detailed" {
		t.Fatalf("unexpected levels %s %s", ComplexityLevel(easy), ComplexityLevel(hard))
	}
}

func TestExtractTags(t *testing.T) {
	got := ExtractTags("Earnings beat and Volume surged while the Federal Reserve held.", 10, "AAPL", "price spike", "aapl")
	want := []string{"aapl", "price spike", "earnings", "volume", "federal reserve"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("got %v want %v", got, want)
	}

	all := strings.Join(financeTerms, " ")
	if got := ExtractTags(all, 10, "x"); len(got) != 10 {
		t.Fatalf("tags should be capped at 10, got %d", len(got))
	}
}
