// Package version implements the total order over free-form version
// strings extracted from plugin descriptions or file metadata, and the
// regex-based extraction of such strings from arbitrary text.
package version

import (
	"regexp"
	"strconv"
	"strings"
)

// extractors mirrors the seven ordered patterns in the original
// helpers.cpp version_checks array; the first to match wins. Patterns are
// anchored loosely on purpose — real plugin descriptions are free text.
//
// regex5 upstream carries a negative lookahead, (?!esp|esm), rejecting a
// bare trailing plugin-extension token. RE2 (Go's regexp engine) cannot
// express lookaheads, so that pattern is reproduced here without the
// assertion and the rejection is applied afterwards in Extract as a plain
// string check on the match — same outcome, no zero-width assertion.
var extractors = []*regexp.Regexp{
	regexp.MustCompile(`(?i)version[:]?\s*([\d.]+(?:\.[\d]+)*)`),
	regexp.MustCompile(`(?i)\bver(?:sion)?[:.]?\s*([\d.]+)`),
	regexp.MustCompile(`(?i)\bv[:.]?\s*([\d][\d.]*)`),
	regexp.MustCompile(`(?i)\bver\s+([\d][\d.]*)`),
	regexp.MustCompile(`(?i)\bv([\d][\d.]*)\b`), // regex5, lookahead removed; see filter below
	regexp.MustCompile(`(?i)updated[:]?\s*([\d.]+)`),
	regexp.MustCompile(`([\d]+(?:\.[\d]+){1,})`),
}

// Extract returns the version substring found in text by trying each
// extractor in order, or the empty string if none match.
func Extract(text string) string {
	for i, re := range extractors {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		candidate := m[1]
		if i == 4 && isPluginExtensionToken(text, m[0]) {
			// Reject a bare ".esp"/".esm" mention masquerading as a version,
			// reproducing the original's (?!esp|esm) lookahead by filtering
			// the match instead of asserting on it during the scan.
			continue
		}
		return candidate
	}
	return ""
}

func isPluginExtensionToken(text, matched string) bool {
	idx := strings.Index(text, matched)
	if idx < 0 {
		return false
	}
	rest := strings.ToLower(strings.TrimSpace(text[idx+len(matched):]))
	return strings.HasPrefix(rest, "esp") || strings.HasPrefix(rest, "esm")
}

var dottedIntegers = regexp.MustCompile(`^\d+(\.\d+)*$`)

// Compare defines a strict weak order over version strings. If both
// strings are pure dotted-integer forms, components are compared
// numerically left to right treating a missing component as zero.
// Otherwise the strings are natural-sort compared: maximal runs of digits
// compare numerically, maximal runs of non-digits compare lexicographically.
func Compare(a, b string) int {
	if dottedIntegers.MatchString(a) && dottedIntegers.MatchString(b) {
		return compareDotted(a, b)
	}
	return compareNatural(a, b)
}

func compareDotted(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	n := len(as)
	if len(bs) > n {
		n = len(bs)
	}
	for i := 0; i < n; i++ {
		av, bv := 0, 0
		if i < len(as) {
			av, _ = strconv.Atoi(as[i])
		}
		if i < len(bs) {
			bv, _ = strconv.Atoi(bs[i])
		}
		if av != bv {
			if av < bv {
				return -1
			}
			return 1
		}
	}
	return 0
}

type run struct {
	isDigit bool
	text    string
}

func lexRuns(s string) []run {
	var runs []run
	i := 0
	for i < len(s) {
		start := i
		isDigit := s[i] >= '0' && s[i] <= '9'
		for i < len(s) && (s[i] >= '0' && s[i] <= '9') == isDigit {
			i++
		}
		runs = append(runs, run{isDigit: isDigit, text: s[start:i]})
	}
	return runs
}

func compareNatural(a, b string) int {
	ar := lexRuns(a)
	br := lexRuns(b)
	n := len(ar)
	if len(br) > n {
		n = len(br)
	}
	for i := 0; i < n; i++ {
		if i >= len(ar) {
			return -1
		}
		if i >= len(br) {
			return 1
		}
		ra, rb := ar[i], br[i]
		if ra.isDigit && rb.isDigit {
			na, _ := strconv.Atoi(strings.TrimLeft(ra.text, "0"))
			nb, _ := strconv.Atoi(strings.TrimLeft(rb.text, "0"))
			if na != nb {
				if na < nb {
					return -1
				}
				return 1
			}
			continue
		}
		if ra.text != rb.text {
			if ra.text < rb.text {
				return -1
			}
			return 1
		}
	}
	return 0
}

// LessThan, Equal and the remaining comparators are thin wrappers over
// Compare for call sites that read better as predicates.
func LessThan(a, b string) bool    { return Compare(a, b) < 0 }
func Equal(a, b string) bool       { return Compare(a, b) == 0 }
func GreaterThan(a, b string) bool { return Compare(a, b) > 0 }
