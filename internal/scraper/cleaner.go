package scraper

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// minLineRunes is the shortest line the cleaner keeps, exclusive.
const minLineRunes = 3

// boilerplatePatterns match whole lines of promotional or attribution text
// that aggregator sites inject into chapter prose. Order matters only for
// readability; any match drops the line.
var boilerplatePatterns = []string{
	`(?i)\bif you (?:find|want|like|enjoy)\b`,
	`(?i)\bplease (?:visit|support|read on|go to)\b`,
	`(?i)https?://\S+`,
	`(?i)\bwww\.[a-z0-9-]+\.[a-z]{2,}`,
	`(?i)\bnovel\s*full\b`,
	`(?i)\bnovel\s*bin\b`,
	`(?i)\b(?:light\s*)?novel\s*pub\b`,
	`(?i)\bmtl\s*novel\b`,
	`(?i)\bnovel\s*updates\b`,
	`(?i)\btranslat(?:ed|ion|or)s?\s*(?:by\b|:)`,
	`(?i)^\s*edit(?:ed|or)s?\s*(?:by\b|:)`,
	`(?i)\bchapter end\b`,
	`(?i)\[\s*T/?L.*?\]`,
	`^(?:\*\s*){3,}$`,
	`(?i)\bsponsored content\b`,
	`(?i)\badvertisements?\b`,
}

// Cleaner strips boilerplate lines from extracted chapter text.
type Cleaner struct {
	patterns []*regexp.Regexp
}

// NewCleaner creates a Cleaner with the built-in patterns plus any extra
// regular expressions. Invalid extra patterns panic, as they are static.
func NewCleaner(extra ...string) *Cleaner {
	c := &Cleaner{}
	for _, p := range boilerplatePatterns {
		c.patterns = append(c.patterns, regexp.MustCompile(p))
	}
	for _, p := range extra {
		c.patterns = append(c.patterns, regexp.MustCompile(p))
	}
	return c
}

// Clean splits raw into lines, drops empty, short and boilerplate lines, and
// rejoins the survivors with a blank line between each. Clean is idempotent.
func (c *Cleaner) Clean(raw string) string {
	lines := strings.Split(raw, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if utf8.RuneCountInString(line) <= minLineRunes {
			continue
		}
		if c.IsBoilerplate(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n\n")
}

// IsBoilerplate reports whether line matches any pattern.
func (c *Cleaner) IsBoilerplate(line string) bool {
	for _, re := range c.patterns {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}
