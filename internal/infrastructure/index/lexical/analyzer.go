package lexical

import (
	"strings"
	"unicode"
)

// analyze splits text into index terms. Runs of the same script form one
// token, Latin is lowercased, and Hangul runs additionally emit character
// bigrams so that particle-inflected forms still share terms with the
// query ("예산안을" and "예산" overlap on "예산").
func analyze(text string) []string {
	runs := splitScriptRuns(text)
	out := make([]string, 0, len(runs)*2)
	for _, run := range runs {
		out = append(out, run)
		runes := []rune(run)
		if !isHangulRune(runes[0]) || len(runes) < 3 {
			continue
		}
		for i := 0; i+2 <= len(runes); i++ {
			out = append(out, string(runes[i:i+2]))
		}
	}
	return out
}

func splitScriptRuns(text string) []string {
	var out []string
	var b strings.Builder
	current := scriptNone

	flush := func() {
		if b.Len() > 0 {
			out = append(out, b.String())
			b.Reset()
		}
	}

	for _, r := range text {
		class := classifyRune(r)
		if class == scriptNone {
			flush()
			current = scriptNone
			continue
		}
		if class != current {
			flush()
			current = class
		}
		if class == scriptLatin {
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	flush()
	return out
}

type scriptClass int

const (
	scriptNone scriptClass = iota
	scriptHangul
	scriptLatin
	scriptHan
	scriptDigit
)

func classifyRune(r rune) scriptClass {
	switch {
	case isHangulRune(r):
		return scriptHangul
	case unicode.Is(unicode.Latin, r):
		return scriptLatin
	case unicode.Is(unicode.Han, r):
		return scriptHan
	case unicode.IsDigit(r):
		return scriptDigit
	default:
		return scriptNone
	}
}

func isHangulRune(r rune) bool {
	return unicode.Is(unicode.Hangul, r)
}
