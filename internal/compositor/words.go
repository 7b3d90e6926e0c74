package compositor

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ivlev/talkreel/internal/model"
)

// WordPhase is where a word sits relative to playback.
type WordPhase string

const (
	WordPast   WordPhase = "past"
	WordActive WordPhase = "active"
	WordFuture WordPhase = "future"
)

// SplitWords splits caption text on whitespace.
func SplitWords(text string) []string {
	return strings.Fields(text)
}

// ActiveWordIndex returns the index of the word being spoken at instant.
// Real word timings are used when their count matches the word count;
// otherwise the caption duration is shared out by character length.
// It returns -1 for an empty caption.
func ActiveWordIndex(c model.Caption, instant float64) int {
	words := SplitWords(c.Text)
	n := len(words)
	if n == 0 {
		return -1
	}

	if len(c.Words) == n {
		idx := 0
		for i, w := range c.Words {
			if w.Start <= instant {
				idx = i
			}
		}
		return idx
	}

	total := 0
	for _, w := range words {
		total += utf8.RuneCountInString(w)
	}
	progress := c.Progress(instant)

	crossed := 0
	cumulative := 0
	for _, w := range words {
		cumulative += utf8.RuneCountInString(w)
		if float64(cumulative)/float64(total) <= progress {
			crossed++
		}
	}
	if crossed > n-1 {
		crossed = n - 1
	}
	return crossed
}

// IsDuplicateLabel reports whether label repeats text, ignoring case and whitespace.
func IsDuplicateLabel(label, text string) bool {
	if strings.TrimSpace(label) == "" {
		return false
	}
	return normalizeText(label) == normalizeText(text)
}

func normalizeText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// isEmphasis reports whether word matches one of the emphasis keywords.
func isEmphasis(word string, emphasis []string) bool {
	if len(emphasis) == 0 {
		return false
	}
	w := bareWord(word)
	if w == "" {
		return false
	}
	for _, e := range emphasis {
		if bareWord(e) == w {
			return true
		}
	}
	return false
}

func bareWord(s string) string {
	return strings.ToLower(strings.TrimFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}))
}
