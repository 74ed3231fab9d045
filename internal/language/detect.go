// Package language provides Unicode-range language detection for user
// input. It detects script, not grammar: any code point inside a known
// block decides the tag, and plain ASCII falls back to English.
package language

// Tag is a short language code such as "en", "ta", or "hi".
type Tag string

const (
	English   Tag = "en"
	Tamil     Tag = "ta"
	Telugu    Tag = "te"
	Kannada   Tag = "kn"
	Malayalam Tag = "ml"
	Hindi     Tag = "hi"
	Gujarati  Tag = "gu"
	Punjabi   Tag = "pa"
	Bengali   Tag = "bn"
)

// block is one contiguous Unicode range mapped to a language tag.
type block struct {
	lo, hi rune
	tag    Tag
}

// blocks is scanned in order; the first block containing any rune of the
// input wins. The ranges are disjoint, so order only matters when input
// mixes scripts.
var blocks = []block{
	{0x0B80, 0x0BFF, Tamil},
	{0x0C00, 0x0C7F, Telugu},
	{0x0C80, 0x0CFF, Kannada},
	{0x0D00, 0x0D7F, Malayalam},
	{0x0900, 0x097F, Hindi}, // Devanagari
	{0x0A80, 0x0AFF, Gujarati},
	{0x0A00, 0x0A7F, Punjabi}, // Gurmukhi
	{0x0980, 0x09FF, Bengali},
}

// Detect returns the language tag for text. Deterministic: the first
// configured block with at least one matching code point wins; text with
// no match is English.
func Detect(text string) Tag {
	for _, b := range blocks {
		for _, r := range text {
			if r >= b.lo && r <= b.hi {
				return b.tag
			}
		}
	}
	return English
}

var names = map[Tag]string{
	English:   "English",
	Tamil:     "Tamil",
	Telugu:    "Telugu",
	Kannada:   "Kannada",
	Malayalam: "Malayalam",
	Hindi:     "Hindi",
	Gujarati:  "Gujarati",
	Punjabi:   "Punjabi",
	Bengali:   "Bengali",
}

// Name returns the display name for a tag, defaulting to English for
// unknown tags.
func Name(tag Tag) string {
	if n, ok := names[tag]; ok {
		return n
	}
	return names[English]
}

// Known reports whether tag is one of the configured languages.
func Known(tag Tag) bool {
	_, ok := names[tag]
	return ok
}
