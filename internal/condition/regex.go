package condition

import "regexp"

// compileFullMatch compiles pattern for a case-insensitive *full* match
// (the original grammar's regex_match, not regex_search): the pattern is
// anchored at both ends so a partial match does not count.
func compileFullMatch(pattern string) (*regexp.Regexp, error) {
	anchored := "(?i)^(?:" + pattern + ")$"
	return regexp.Compile(anchored)
}
