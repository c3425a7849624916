package matcher

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/fyrsmithlabs/patternd/internal/pattern"
)

const (
	// exactScore is the base confidence for a signature regex hit.
	exactScore = 0.8

	// fuzzyGate: the fuzzy fallback only runs when the base score after
	// the exact pass is below this.
	fuzzyGate = 0.5

	// fuzzyThreshold is the minimum normalized similarity for a fuzzy
	// candidate to count at all.
	fuzzyThreshold = 0.6

	// fuzzyDiscount scales fuzzy candidates relative to exact hits.
	fuzzyDiscount = 0.6

	// indicatorBonus is added per satisfied confidence indicator.
	// Accumulation is uncapped before the final clamp; see package doc.
	indicatorBonus = 0.15
)

// Score computes the match confidence in [0,1] for one pattern's signatures
// and indicators against the observed error text and diagnosis context.
//
// Returns an error when a signature is not a valid regular expression;
// callers scanning a corpus should skip such patterns rather than fail the
// whole query.
func Score(errorText string, signatures, indicators []string, c pattern.Context) (float64, error) {
	base := 0.0

	for _, sig := range signatures {
		re, err := regexp.Compile("(?i)" + sig)
		if err != nil {
			return 0, fmt.Errorf("signature %q: %w", sig, err)
		}
		if re.MatchString(errorText) {
			if exactScore > base {
				base = exactScore
			}
			break
		}
	}

	if base < fuzzyGate {
		// Maximum across all signatures, not first-above-threshold:
		// signature order must never change the score.
		best := 0.0
		for _, sig := range signatures {
			sim := similarity(errorText, sig)
			if sim <= fuzzyThreshold {
				continue
			}
			if candidate := sim * fuzzyDiscount; candidate > best {
				best = candidate
			}
		}
		if best > base {
			base = best
		}
	}

	bonus := 0.0
	for _, indicator := range indicators {
		if indicatorSatisfied(indicator, c) {
			bonus += indicatorBonus
		}
	}

	confidence := base + bonus
	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence, nil
}

// similarity is the normalized edit-distance similarity
// 1 - levenshtein(a, b) / max(len(a), len(b)), in [0,1].
// Two empty strings are degenerate and score 0.
func similarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	if maxLen == 0 {
		return 0
	}
	return 1 - float64(levenshtein(ra, rb))/float64(maxLen)
}

// levenshtein computes the edit distance with the two-row dynamic program,
// O(len(a)*len(b)) time and O(len(b)) space.
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = minInt(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func minInt(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

var portPattern = regexp.MustCompile(`\b\d{2,5}\b`)

// indicatorSatisfied evaluates one confidence indicator against the
// diagnosis context.
//
// An indicator is satisfied when any of these hold:
//   - the context holds the indicator verbatim as a true flag;
//   - the indicator mentions the name of a true boolean context flag
//     (e.g. indicator "react project detected" and context {"react": true});
//   - the indicator mentions a string context value
//     (e.g. indicator "npm workspace" and context {"package_manager": "npm"});
//   - the indicator mentions a port number present in the context's
//     "ports" list.
func indicatorSatisfied(indicator string, c pattern.Context) bool {
	if len(c) == 0 || indicator == "" {
		return false
	}
	if c.Bool(indicator) {
		return true
	}

	lowered := strings.ToLower(indicator)

	for key, value := range c {
		switch v := value.(type) {
		case bool:
			if v && mentions(lowered, key) {
				return true
			}
		case string:
			if v != "" && mentions(lowered, v) {
				return true
			}
		}
	}

	if ports := c.Ints("ports"); len(ports) > 0 {
		for _, raw := range portPattern.FindAllString(indicator, -1) {
			var n int
			fmt.Sscanf(raw, "%d", &n)
			for _, port := range ports {
				if port == n {
					return true
				}
			}
		}
	}

	return false
}

// mentions reports whether the lowered indicator text contains term as a
// case-insensitive substring. Terms shorter than two characters are ignored
// to avoid accidental single-letter hits.
func mentions(lowered, term string) bool {
	if utf8.RuneCountInString(term) < 2 {
		return false
	}
	return strings.Contains(lowered, strings.ToLower(term))
}
