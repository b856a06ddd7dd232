package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// flairPrefix matches a leading emoji decoration: reddit-style ":name:" codes
// or unicode pictographs, followed by optional whitespace.
const flairPrefix = `(?:(?::[\w+-]+:)|[\p{So}\p{Sk}\x{FE0F}\x{200D}])+\s*`

var flairPrefixRe = regexp.MustCompile(`^\s*` + flairPrefix)

// flairPattern holds the compiled state for a single desired flair.
type flairPattern struct {
	text    string // lowercased configured flair
	pattern *regexp.Regexp
}

// FlairFilter decides whether a post's category tag is on the allow-list.
type FlairFilter struct {
	patterns []flairPattern
}

// NewFlairFilter compiles each desired flair once. Configured flairs are
// cleaned the same way post tags are; one that is blank after cleaning is an
// error. A filter with no flairs rejects every post.
func NewFlairFilter(desired []string) (*FlairFilter, error) {
	f := &FlairFilter{}
	for _, d := range desired {
		text := CleanFlair(d)
		if text == "" {
			return nil, fmt.Errorf("flair %q is empty once its emoji prefix is removed", d)
		}

		expr := `(?i)^\s*(?:` + flairPrefix + `)?` + regexp.QuoteMeta(text) + `(?:\s|$)`
		pattern, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("flair %q: compile pattern: %w", text, err)
		}

		f.patterns = append(f.patterns, flairPattern{
			text:    strings.ToLower(text),
			pattern: pattern,
		})
	}
	return f, nil
}

// Enabled reports whether any flair was configured.
func (f *FlairFilter) Enabled() bool {
	return len(f.patterns) > 0
}

// Matches reports whether tag equals one of the desired flairs once its
// emoji prefix is stripped. The regex search only narrows candidates; the
// cleaned, case-folded equality decides. An empty tag never matches.
func (f *FlairFilter) Matches(tag string) bool {
	cleaned := CleanFlair(tag)
	if cleaned == "" {
		return false
	}

	for _, p := range f.patterns {
		if !p.pattern.MatchString(tag) {
			continue
		}
		if strings.ToLower(cleaned) == p.text {
			return true
		}
	}
	return false
}

// AllowAllTags is a TagFilter that accepts every post. It stands in for the
// FlairFilter when flair filtering is switched off.
type AllowAllTags struct{}

func (AllowAllTags) Matches(string) bool { return true }

// CleanFlair strips any leading emoji decoration and surrounding whitespace.
func CleanFlair(tag string) string {
	return strings.TrimSpace(flairPrefixRe.ReplaceAllString(tag, ""))
}
