package scraper

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestCleanRemovesSolicitationKeepsNarrative(t *testing.T) {
	c := NewCleaner()
	raw := "The sword gleamed in the dark.\nPlease visit noveltranslations.com for more!\nHe stepped forward."

	got := c.Clean(raw)
	want := "The sword gleamed in the dark.\n\nHe stepped forward."
	if got != want {
		t.Errorf("Clean() = %q, want %q", got, want)
	}
}

func TestCleanDropsBoilerplate(t *testing.T) {
	c := NewCleaner()
	tests := []string{
		"If you enjoy this novel, leave a review",
		"please support the translator on patreon",
		"Read more at https://example.com/novel",
		"Find the latest chapters on www.somesite.net",
		"Read this on Novel Full",
		"You are reading on NovelBin",
		"Translated by: Lazy Translator",
		"Translator: Someone",
		"Editor: Someone Else",
		"~ Chapter End ~",
		"[TL Note: this is a pun]",
		"* * *",
		"*****",
		"Sponsored Content",
		"Advertisement",
	}
	for _, line := range tests {
		if got := c.Clean(line); got != "" {
			t.Errorf("Clean(%q) = %q, want empty", line, got)
		}
	}
}

func TestCleanDropsShortLines(t *testing.T) {
	c := NewCleaner()
	raw := "...\n!!\nOk.\nYes!\n\n   \nA full sentence here."
	got := c.Clean(raw)
	want := "Yes!\n\nA full sentence here."
	if got != want {
		t.Errorf("Clean() = %q, want %q", got, want)
	}
}

func TestCleanIdempotent(t *testing.T) {
	c := NewCleaner()
	inputs := []string{
		"",
		"one line only",
		"  indented line  \r\nwindows line ending\r\n\r\nthird line",
		"Chapter 12: The Return\n\nHe said, \"No.\"\nShe laughed.\nTranslated by X\n***\nThe end of the day came slowly.",
		"a\nbb\nccc\ndddd\neeeee",
	}
	for _, in := range inputs {
		once := c.Clean(in)
		twice := c.Clean(once)
		if once != twice {
			t.Errorf("Clean not idempotent for %q:\nonce:  %q\ntwice: %q", in, once, twice)
		}
	}
}

func TestCleanOutputInvariant(t *testing.T) {
	c := NewCleaner()
	raw := strings.Join([]string{
		"The rain fell on the old city.",
		"If you like this, please visit us",
		"xyz",
		"https://spam.example",
		"[ TL: hello ]",
		"She walked on, never looking back.",
		"***",
	}, "\n")

	out := c.Clean(raw)
	for _, line := range strings.Split(out, "\n\n") {
		if c.IsBoilerplate(line) {
			t.Errorf("output line matches a boilerplate pattern: %q", line)
		}
		if utf8.RuneCountInString(strings.TrimSpace(line)) <= minLineRunes {
			t.Errorf("output line too short: %q", line)
		}
	}
}

func TestCleanerExtraPatterns(t *testing.T) {
	c := NewCleaner(`(?i)join our discord`)
	if got := c.Clean("Join our Discord for updates"); got != "" {
		t.Errorf("expected extra pattern to drop line, got %q", got)
	}
}
