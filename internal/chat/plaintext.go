package chat

import (
	"regexp"
	"strings"
)

var (
	boldRe     = regexp.MustCompile(`\*\*`)
	italicRe   = regexp.MustCompile(`\*`)
	backtickRe = regexp.MustCompile("`")
	bracketRe  = regexp.MustCompile(`[\[\]]`)
	newlineRe  = regexp.MustCompile(`[\r\n]+`)
	spaceRe    = regexp.MustCompile(`\s+`)
	multiDotRe = regexp.MustCompile(`\.{2,}`)
)

// SpeechText projects rendered reply markup down to a plain sentence
// suitable for speech synthesis. Transformations apply in order: strip
// bold and italic markers, backticks and square brackets, turn line
// breaks into sentence breaks, collapse whitespace and repeated
// periods, trim.
func SpeechText(s string) string {
	out := boldRe.ReplaceAllString(s, "")
	out = italicRe.ReplaceAllString(out, "")
	out = backtickRe.ReplaceAllString(out, "")
	out = bracketRe.ReplaceAllString(out, "")
	out = newlineRe.ReplaceAllString(out, ". ")
	out = spaceRe.ReplaceAllString(out, " ")
	out = multiDotRe.ReplaceAllString(out, ".")
	return strings.TrimSpace(out)
}
