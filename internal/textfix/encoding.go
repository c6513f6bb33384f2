// Package textfix provides best-effort repair of mislabeled byte encodings
// and malformed homepage URLs found in crowd-sourced station metadata. All
// functions are total: on ambiguity they return their input unchanged and
// they never panic on malformed input.
package textfix

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Tunable heuristics for the encoding repair. Kept as named constants so the
// thresholds stay testable in isolation.
const (
	// corruptionDensityThreshold is the fraction of characters matching known
	// corruption patterns above which the substitution table is applied.
	corruptionDensityThreshold = 0.20

	// scoreImprovementMargin is how much better (relative) a repaired
	// candidate must score before it replaces the original text.
	scoreImprovementMargin = 0.20

	// Penalties charged per occurrence by the quality score.
	replacementPenalty = 3.0
	corruptionPenalty  = 2.0
	controlPenalty     = 2.0

	// maxRepairPasses bounds the fixpoint loop. Each pass undoes one layer
	// of mis-decoding; text mangled more than a few times over is not worth
	// chasing, and the cap rules out any pathological oscillation.
	maxRepairPasses = 4
)

// mojibakeTable maps byte sequences produced by decoding UTF-8 encoded
// Cyrillic as a single-byte charset back to the intended characters. Only the
// artifacts that actually show up in directory submissions are listed.
var mojibakeTable = []struct{ bad, good string }{
	// Two-byte artifacts first: a bare prefix entry would otherwise eat the
	// first character of a longer sequence.
	{"Ð°", "а"}, {"Ð±", "б"}, {"Ð²", "в"}, {"Ð³", "г"}, {"Ð´", "д"},
	{"Ðµ", "е"}, {"Ð¶", "ж"}, {"Ð·", "з"}, {"Ð¸", "и"}, {"Ð¹", "й"},
	{"Ðº", "к"}, {"Ð»", "л"}, {"Ð¼", "м"}, {"Ð½", "н"}, {"Ð¾", "о"},
	{"Ð¿", "п"}, {"Ñ€", "р"}, {"Ñ‚", "т"}, {"Ñƒ", "у"}, {"Ñ„", "ф"},
	{"Ñ…", "х"}, {"Ñ†", "ц"}, {"Ñ‡", "ч"}, {"Ñˆ", "ш"}, {"Ñ‰", "щ"},
	{"ÑŒ", "ь"}, {"Ñ‹", "ы"}, {"ÑŠ", "ъ"}, {"ÑŽ", "ю"},
	{"Ð‘", "Б"}, {"Ð’", "В"}, {"Ð“", "Г"}, {"Ð”", "Д"}, {"Ð•", "Е"},
	{"Ð–", "Ж"}, {"Ð—", "З"}, {"Ð˜", "И"}, {"Ð™", "Й"}, {"Ðš", "К"},
	// "Р" (U+0420) encodes to D0 A0, so its artifact is Ð plus a no-break
	// space, not a regular one.
	{"Ð›", "Л"}, {"Ðœ", "М"}, {"Ðž", "О"}, {"ÐŸ", "П"}, {"Ð ", "Р"},
	{"Ð¡", "С"}, {"Ð¢", "Т"}, {"Ð£", "У"},
	{"Ñ", "я"}, {"Ð", "А"},
}

// corruptionMarkers are short sequences that almost never appear in clean
// text but are typical of double-decoded UTF-8.
var corruptionMarkers = []string{"Ð", "Ñ", "Â", "Ã", "â€", "�"}

// RepairEncoding attempts to undo byte-level mojibake in s. The repaired text
// is returned only when it scores measurably better than the input; otherwise
// the input survives. The result is always sanitized (whitespace collapsed,
// characters outside the allow list removed), and the function is idempotent.
func RepairEncoding(s string) string {
	if s == "" {
		return s
	}

	// Text decoded with the wrong charset more than once carries one mojibake
	// layer per mistake, and a repair pass peels exactly one. Iterate to the
	// fixpoint so the result of a repair is itself fully repaired.
	best := s
	for i := 0; i < maxRepairPasses; i++ {
		next := repairPass(best)
		if next == best {
			break
		}
		best = next
	}

	return sanitize(best)
}

// repairPass undoes at most one layer of mojibake.
func repairPass(s string) string {
	best := s
	bestScore := qualityScore(s)

	// Byte reinterpretation is near-lossless, so it only has to not make
	// things worse: no new replacement markers and no score regression.
	if cand, ok := reinterpretAsUTF8(s); ok && cand != s {
		if replacementCount(cand) <= replacementCount(s) {
			if cs := qualityScore(cand); cs >= bestScore {
				best, bestScore = cand, cs
			}
		}
	}

	// The substitution table is aggressive guesswork; it must clear the
	// improvement margin before its output is trusted.
	if corruptionDensity(best) > corruptionDensityThreshold {
		cand := stripControlArtifacts(applySubstitutions(best))
		if cand != best {
			cs := qualityScore(cand)
			if cs > bestScore && (bestScore <= 0 || cs >= bestScore*(1+scoreImprovementMargin)) {
				best = cand
			}
		}
	}

	return best
}

// reinterpretAsUTF8 treats the char codes of s as raw Latin-1 bytes and
// redecodes them as UTF-8. This undoes the common "UTF-8 read as ISO-8859-1"
// corruption. Returns false when s contains runes outside Latin-1 or the
// resulting bytes are not valid UTF-8.
func reinterpretAsUTF8(s string) (string, bool) {
	raw, err := charmap.ISO8859_1.NewEncoder().String(s)
	if err != nil {
		return "", false
	}
	if !utf8.ValidString(raw) {
		return "", false
	}
	return raw, true
}

func applySubstitutions(s string) string {
	for _, sub := range mojibakeTable {
		s = strings.ReplaceAll(s, sub.bad, sub.good)
	}
	return s
}

func stripControlArtifacts(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '�' || (unicode.IsControl(r) && r != '\t') {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func replacementCount(s string) int {
	return strings.Count(s, "�")
}

// corruptionDensity is the fraction of characters belonging to a known
// corruption marker.
func corruptionDensity(s string) float64 {
	total := utf8.RuneCountInString(s)
	if total == 0 {
		return 0
	}
	marked := 0
	for _, m := range corruptionMarkers {
		marked += strings.Count(s, m) * utf8.RuneCountInString(m)
	}
	return float64(marked) / float64(total)
}

// qualityScore rates text readability: readable characters count positively,
// corruption markers, replacement characters, and control characters are
// penalized.
func qualityScore(s string) float64 {
	var readable int
	var control int
	for _, r := range s {
		switch {
		case unicode.IsControl(r) && r != '\t':
			control++
		case allowedRune(r):
			readable++
		}
	}
	score := float64(readable)
	score -= float64(replacementCount(s)) * replacementPenalty
	score -= corruptionOccurrences(s) * corruptionPenalty
	score -= float64(control) * controlPenalty
	return score
}

func corruptionOccurrences(s string) float64 {
	n := 0
	for _, m := range corruptionMarkers {
		if m == "�" {
			continue // counted separately
		}
		n += strings.Count(s, m)
	}
	return float64(n)
}

// allowedRune defines the character allow list for station text: ASCII,
// the Latin-1 supplement, the Cyrillic block, and common punctuation.
func allowedRune(r rune) bool {
	switch {
	case r >= 0x20 && r <= 0x7E: // printable ASCII
		return true
	case r == '\t':
		return true
	case r >= 0xA0 && r <= 0xFF: // Latin-1 supplement
		return true
	case r >= 0x0400 && r <= 0x04FF: // Cyrillic
		return true
	case r >= 0x2010 && r <= 0x2027: // dashes, quotes, ellipsis
		return true
	case r == '€': // euro sign
		return true
	}
	return false
}

// sanitize collapses runs of whitespace and drops characters outside the
// allow list.
func sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if !allowedRune(r) {
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}
