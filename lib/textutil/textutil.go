package textutil

import (
	"regexp"
	"strings"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// NormalizeName folds a free-text name into a canonical matching key:
// lowercased with all whitespace removed. "Science  8 " and "science 8"
// collapse to the same key.
func NormalizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.Trim(name, " \n\t")
	name = whitespaceRegex.ReplaceAllString(name, "")
	return name
}

// CollapseSpace trims a string and squeezes runs of inner whitespace down
// to single spaces, preserving word boundaries for display text.
func CollapseSpace(s string) string {
	s = strings.Trim(s, " \n\t")
	return whitespaceRegex.ReplaceAllString(s, " ")
}

// CourseKey builds the composite identity key for a course out of its
// name, schedule expression and term. The portal does not provide stable
// course identifiers, so this is the only identity we get.
func CourseKey(name, expression, term string) string {
	return NormalizeName(name) + "|" + NormalizeName(expression) + "|" + NormalizeName(term)
}

func MatchName(name string, matchers []string) bool {
	name = NormalizeName(name)
	for _, m := range matchers {
		if strings.Contains(name, m) {
			return true
		}
	}
	return false
}
