package usecase

import (
	"math"
	"strings"
	"unicode"
)

// ContentWordConfig holds every threshold and closed set used by the
// statistical content-word extractor. There is no domain vocabulary here:
// the closed sets cover only grammatical function words and noun-forming
// final syllables.
type ContentWordConfig struct {
	// MinAcceptLen: tokens at least this long (in runes) are accepted
	// outright unless a rejection heuristic fires.
	MinAcceptLen int
	// Connectives rejected at exactly three runes.
	Connectives map[string]struct{}
	// NounEndings: final runes that admit a two-rune token.
	NounEndings map[rune]struct{}
	// ParticleSuffixes stripped before length checks (josa).
	ParticleSuffixes []string
	// EntropyFloor: minimum character entropy (bits) for tokens at
	// MinAcceptLen or longer.
	EntropyFloor float64
	// DiversityFloor: minimum distinct-rune ratio.
	DiversityFloor float64
}

func DefaultContentWordConfig() ContentWordConfig {
	return ContentWordConfig{
		MinAcceptLen: 4,
		Connectives: toSet(
			"그리고", "그래서", "하지만", "그러나", "그런데", "따라서",
			"그러면", "아니면", "그러므로", "및", "또는", "혹은",
		),
		NounEndings: toRuneSet("촌", "청", "원", "부", "소", "서", "관", "국",
			"법", "제", "시", "군", "구", "면", "동", "장", "안", "금",
			"료", "증", "표", "책", "도", "항", "조", "씨", "업", "학"),
		ParticleSuffixes: []string{
			"은", "는", "이", "가", "을", "를", "의", "에", "에서",
			"으로", "로", "와", "과", "도", "만", "까지", "부터", "에게",
		},
		EntropyFloor:   0.8,
		DiversityFloor: 0.4,
	}
}

func toSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func toRuneSet(words ...string) map[rune]struct{} {
	set := make(map[rune]struct{}, len(words))
	for _, w := range words {
		for _, r := range w {
			set[r] = struct{}{}
		}
	}
	return set
}

// charEntropy is the Shannon entropy (bits) of the rune distribution.
func charEntropy(s string) float64 {
	runes := []rune(s)
	if len(runes) == 0 {
		return 0
	}
	freq := make(map[rune]int, len(runes))
	for _, r := range runes {
		freq[r]++
	}
	total := float64(len(runes))
	entropy := 0.0
	for _, n := range freq {
		p := float64(n) / total
		entropy -= p * math.Log2(p)
	}
	return entropy
}

// charDiversity is the ratio of distinct runes to total runes.
func charDiversity(s string) float64 {
	runes := []rune(s)
	if len(runes) == 0 {
		return 0
	}
	distinct := make(map[rune]struct{}, len(runes))
	for _, r := range runes {
		distinct[r] = struct{}{}
	}
	return float64(len(distinct)) / float64(len(runes))
}

// hasRepeatedSuffix reports whether the token ends in the same short
// substring repeated back to back, the signature of verb and adjective
// inflections rather than nouns.
func hasRepeatedSuffix(token string) bool {
	runes := []rune(token)
	n := len(runes)
	for size := 1; size <= 3 && 2*size <= n; size++ {
		tail := string(runes[n-size:])
		prev := string(runes[n-2*size : n-size])
		if tail == prev {
			return true
		}
	}
	return false
}

// charBigrams returns the set of adjacent rune pairs in s.
func charBigrams(s string) map[string]struct{} {
	runes := []rune(s)
	if len(runes) < 2 {
		return nil
	}
	out := make(map[string]struct{}, len(runes)-1)
	for i := 0; i+1 < len(runes); i++ {
		out[string(runes[i:i+2])] = struct{}{}
	}
	return out
}

// bigramJaccard is the Jaccard overlap of character bigrams between two
// strings. Returns 0 when either side has no bigrams.
func bigramJaccard(a, b string) float64 {
	ba := charBigrams(a)
	bb := charBigrams(b)
	if len(ba) == 0 || len(bb) == 0 {
		return 0
	}
	inter := 0
	for g := range ba {
		if _, ok := bb[g]; ok {
			inter++
		}
	}
	union := len(ba) + len(bb) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// stripParticle removes one trailing particle suffix when the remainder
// stays at least two runes long. Longest suffix wins.
func stripParticle(token string, suffixes []string) string {
	runes := []rune(token)
	best := ""
	for _, suffix := range suffixes {
		if len(suffix) <= len(best) {
			continue
		}
		if !strings.HasSuffix(token, suffix) {
			continue
		}
		remainder := len(runes) - len([]rune(suffix))
		if remainder >= 2 {
			best = suffix
		}
	}
	if best == "" {
		return token
	}
	return string(runes[:len(runes)-len([]rune(best))])
}

// splitScriptTokens splits text on whitespace, punctuation and script
// boundaries (Hangul / Latin / Han / digits each form their own runs).
// Latin is lowercased.
func splitScriptTokens(text string) []string {
	if text == "" {
		return nil
	}
	type script int
	const (
		scriptNone script = iota
		scriptHangul
		scriptLatin
		scriptHan
		scriptDigit
	)
	classify := func(r rune) script {
		switch {
		case unicode.Is(unicode.Hangul, r):
			return scriptHangul
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			return scriptLatin
		case unicode.Is(unicode.Han, r):
			return scriptHan
		case r >= '0' && r <= '9':
			return scriptDigit
		default:
			return scriptNone
		}
	}

	out := make([]string, 0, 16)
	var b strings.Builder
	current := scriptNone
	flush := func() {
		if b.Len() > 0 {
			out = append(out, b.String())
			b.Reset()
		}
	}
	for _, r := range text {
		cls := classify(r)
		if cls == scriptNone {
			flush()
			current = scriptNone
			continue
		}
		if cls != current {
			flush()
			current = cls
		}
		if cls == scriptLatin {
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	flush()
	return out
}

// isContentWord applies the statistical acceptance rule to one token.
func isContentWord(token string, cfg ContentWordConfig) bool {
	runes := []rune(token)
	n := len(runes)
	if n < 2 {
		return false
	}
	if hasRepeatedSuffix(token) {
		return false
	}
	if n >= cfg.MinAcceptLen {
		return charEntropy(token) >= cfg.EntropyFloor && charDiversity(token) >= cfg.DiversityFloor
	}
	if n == 3 {
		_, connective := cfg.Connectives[token]
		return !connective
	}
	// Two-rune tokens need a noun-forming final syllable.
	_, nounish := cfg.NounEndings[runes[n-1]]
	return nounish
}

// extractContentWords tokenizes text and keeps content words by the
// purely statistical rule set: long tokens pass an entropy/diversity
// check, three-rune tokens are kept unless they are closed-class
// connectives, two-rune tokens need a noun-forming ending, and inflected
// (suffix-repeating) tokens are dropped. Particles are stripped first.
// Order is preserved and duplicates removed.
func extractContentWords(text string, cfg ContentWordConfig) []string {
	tokens := splitScriptTokens(text)
	if len(tokens) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, token := range tokens {
		stripped := stripParticle(token, cfg.ParticleSuffixes)
		candidate := ""
		switch {
		case isContentWord(stripped, cfg):
			candidate = stripped
		case stripped != token && isContentWord(token, cfg):
			candidate = token
		}
		if candidate == "" {
			continue
		}
		if _, dup := seen[candidate]; dup {
			continue
		}
		seen[candidate] = struct{}{}
		out = append(out, candidate)
	}
	return out
}
