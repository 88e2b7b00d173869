package textx

import (
	"math"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	slugMaxLen     = 50
	excerptMaxLen  = 150
	wordsPerMinute = 200
)

var foldMarks = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify lowercases s, folds accents, and joins alphanumeric runs with
// single hyphens. The result is at most 50 bytes long.
func Slugify(s string) string {
	folded, _, err := transform.String(foldMarks, s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(folded) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}
	out := b.String()
	if len(out) > slugMaxLen {
		out = strings.TrimRight(out[:slugMaxLen], "-")
	}
	return out
}

// WordCount counts whitespace separated words.
func WordCount(s string) int { return len(strings.Fields(s)) }

// ReadTime estimates reading minutes at 200 words per minute, minimum 1.
func ReadTime(content string) int {
	minutes := int(math.Ceil(float64(WordCount(content)) / wordsPerMinute))
	if minutes < 1 {
		return 1
	}
	return minutes
}

// Excerpt returns the first 150 runes of content with whitespace collapsed.
func Excerpt(content string) string {
	collapsed := strings.Join(strings.Fields(content), " ")
	r := []rune(collapsed)
	if len(r) <= excerptMaxLen {
		return collapsed
	}
	return strings.TrimSpace(string(r[:excerptMaxLen]))
}
