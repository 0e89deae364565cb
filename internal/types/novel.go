package types

import "strings"

// PlaceholderTitle is the chapter title used when a page has no heading.
const PlaceholderTitle = "Chapter"

// Chapter is one entry of a novel's reading order. Index is 0-based and
// increases in narrative order. Content stays empty until fetched.
type Chapter struct {
	Index   int    `json:"index"   bson:"index"`
	Title   string `json:"title"   bson:"title"`
	URL     string `json:"url"     bson:"url"`
	Content string `json:"content" bson:"content,omitempty"`
}

// HasContent reports whether the chapter body has been fetched.
func (c *Chapter) HasContent() bool {
	return strings.TrimSpace(c.Content) != ""
}

// NeedsTitle reports whether the title is missing or still the placeholder.
func (c *Chapter) NeedsTitle() bool {
	t := strings.TrimSpace(c.Title)
	return t == "" || t == PlaceholderTitle
}

// Novel is the result of scraping a novel landing page.
type Novel struct {
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	CoverURL    string     `json:"cover_url,omitempty"`
	Description string     `json:"description,omitempty"`
	Author      string     `json:"author,omitempty"`
	Chapters    []*Chapter `json:"chapters"`
}

// Chapter returns the chapter at position i, or nil when out of range.
func (n *Novel) Chapter(i int) *Chapter {
	if n == nil || i < 0 || i >= len(n.Chapters) {
		return nil
	}
	return n.Chapters[i]
}

// Range returns chapters [from, to] inclusive, clamped to the list bounds.
func (n *Novel) Range(from, to int) []*Chapter {
	if n == nil || len(n.Chapters) == 0 {
		return nil
	}
	if from < 0 {
		from = 0
	}
	if to >= len(n.Chapters) {
		to = len(n.Chapters) - 1
	}
	if from > to {
		return nil
	}
	return n.Chapters[from : to+1]
}

// SearchResult is one hit from a novel search.
type SearchResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	CoverURL    string `json:"cover_url,omitempty"`
	Description string `json:"desc,omitempty"`
	Source      string `json:"source,omitempty"`
}
