package scraper

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/NovelGoat/internal/types"
)

// chapterToken matches URL paths that look like a chapter page.
var chapterToken = regexp.MustCompile(`(?i)chapter|/ch[-_]?\d+|/c\d+(?:[/.?]|$)|/episode[-_/]?\d+`)

// coverAttrs are checked in order; lazy loaders park the real URL in data-*.
var coverAttrs = []string{"src", "data-src", "data-lazy-src", "data-original"}

// sharedTitle is tried after a family's own title selectors.
var sharedTitle = []string{".post-title h1", "h1.entry-title", "h1", "title"}

// Metadata is the novel-level information found on a landing page.
type Metadata struct {
	Title       string
	CoverURL    string
	Description string
	Author      string
}

// ExtractOptions tunes extraction.
type ExtractOptions struct {
	// DescriptionLimit truncates the description, in runes. 0 disables it.
	DescriptionLimit int
	// GenericMinLinks is the number of distinct chapter links a generic page
	// needs before it is treated as an index rather than a chapter.
	GenericMinLinks int
}

// strategy is the per-family extraction recipe.
type strategy struct {
	title       []string
	cover       []string
	description []string
	author      []string
	// chapters are anchor selectors tried in order; the first that yields
	// links wins.
	chapters []string
	// listClass, when set, is a fallback: anchors inside any ul whose class
	// matches.
	listClass *regexp.Regexp
	// newestFirst marks layouts that list the latest chapter first.
	newestFirst bool
	// scan walks every anchor on the page looking for chapter-like paths.
	scan bool
}

var listedStrategy = strategy{
	title:       []string{"h1.entry-title", ".novel-title", ".book-name"},
	cover:       []string{".nov-head img", ".book-img img", ".cover img"},
	description: []string{".desc", ".book-intro", ".description", ".entry-content"},
	author:      []string{"#author a", ".author a", ".author"},
	chapters:    []string{".ch-list a", ".chapter-list a", "#chapter-list a"},
	listClass:   chapterListUL,
}

var strategies = map[SiteFamily]strategy{
	FamilyMadara: {
		title:       []string{".post-title h1", ".post-title h3"},
		cover:       []string{".summary_image img"},
		description: []string{".description-summary", ".summary__content", ".manga-excerpt"},
		author:      []string{".author-content a"},
		chapters:    []string{".wp-manga-chapter a", ".listing-chapters_wrap a"},
		newestFirst: true,
	},
	FamilyNovelFull: {
		title:       []string{"h3.title", ".col-info-desc .title", ".desc h3"},
		cover:       []string{".book img", ".books .book img"},
		description: []string{".desc-text", ".desc"},
		author:      []string{".info a[href*='author']", "a[itemprop='author']"},
		chapters:    []string{"#list-chapter .list-chapter a", "ul.list-chapter a", "#chapter-archive a"},
	},
	FamilyNovelPub: {
		title:       []string{".novel-info .novel-title", "h1.novel-title"},
		cover:       []string{".fixed-img .cover img", "figure.cover img", ".cover img"},
		description: []string{".summary .content", ".summary"},
		author:      []string{".author [itemprop='author']", ".author a"},
		chapters:    []string{".chapter-list a", "ul.chapter-list a"},
	},
	FamilyMTLNovel: listedStrategy,
	FamilyListed:   listedStrategy,
	FamilyGeneric: {
		cover:       []string{".book-img img", ".novel-cover img", ".cover img"},
		description: []string{".entry-content", ".description", ".summary"},
		author:      []string{".author a", ".author"},
		scan:        true,
	},
}

// Extract pulls metadata and the ordered chapter list from an index page.
// An empty chapter list means the page is not an index.
func Extract(doc *goquery.Document, baseURL string, family SiteFamily, opts ExtractOptions) (Metadata, []*types.Chapter) {
	st, ok := strategies[family]
	if !ok {
		st = strategies[FamilyGeneric]
	}
	base, _ := url.Parse(baseURL)

	meta := Metadata{
		Title:       extractTitle(doc, st, baseURL),
		CoverURL:    extractCover(doc, st, base),
		Description: extractDescription(doc, st, opts.DescriptionLimit),
		Author:      firstText(doc, st.author),
	}

	var chapters []*types.Chapter
	if st.scan {
		chapters = scanChapterLinks(doc, base, baseURL)
		if len(chapters) < opts.GenericMinLinks {
			chapters = nil
		}
	} else {
		chapters = listChapters(doc, st, base)
	}

	if st.newestFirst {
		for i, j := 0, len(chapters)-1; i < j; i, j = i+1, j-1 {
			chapters[i], chapters[j] = chapters[j], chapters[i]
		}
	}
	for i, ch := range chapters {
		ch.Index = i
		if ch.Title == "" {
			ch.Title = "Chapter " + strconv.Itoa(i+1)
		}
	}

	return meta, chapters
}

func extractTitle(doc *goquery.Document, st strategy, baseURL string) string {
	if t := firstText(doc, st.title); t != "" {
		return t
	}
	if t := firstText(doc, sharedTitle); t != "" {
		return t
	}
	if t := metaContent(doc, "og:title"); t != "" {
		return t
	}
	return hostOf(baseURL)
}

func extractCover(doc *goquery.Document, st strategy, base *url.URL) string {
	for _, sel := range st.cover {
		img := doc.Find(sel).First()
		if img.Length() == 0 {
			continue
		}
		for _, attr := range coverAttrs {
			if src := resolveURL(base, img.AttrOr(attr, "")); src != "" {
				return src
			}
		}
	}
	return resolveURL(base, metaContent(doc, "og:image"))
}

func extractDescription(doc *goquery.Document, st strategy, limit int) string {
	desc := ""
	for _, sel := range st.description {
		s := doc.Find(sel).First()
		if s.Length() == 0 {
			continue
		}
		if desc = compactLines(nodeText(s)); desc != "" {
			break
		}
	}
	if desc == "" {
		desc = metaContent(doc, "description")
	}
	if desc == "" {
		desc = metaContent(doc, "og:description")
	}
	return truncateRunes(desc, limit)
}

// listChapters collects anchors for index-style layouts in document order.
func listChapters(doc *goquery.Document, st strategy, base *url.URL) []*types.Chapter {
	for _, sel := range st.chapters {
		if chapters := collectChapters(doc.Find(sel), base); len(chapters) > 0 {
			return chapters
		}
	}
	if st.listClass != nil {
		var chapters []*types.Chapter
		doc.Find("ul[class]").EachWithBreak(func(_ int, ul *goquery.Selection) bool {
			if !st.listClass.MatchString(ul.AttrOr("class", "")) {
				return true
			}
			chapters = collectChapters(ul.Find("a"), base)
			return len(chapters) == 0
		})
		return chapters
	}
	return nil
}

// scanChapterLinks walks every anchor and keeps chapter-like targets, first
// occurrence only, excluding the page itself.
func scanChapterLinks(doc *goquery.Document, base *url.URL, baseURL string) []*types.Chapter {
	self := canonicalURL(baseURL)
	var links []*goquery.Selection
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		abs := resolveURL(base, a.AttrOr("href", ""))
		if abs == "" || canonicalURL(abs) == self || !isChapterLike(abs) {
			return
		}
		links = append(links, a)
	})

	var chapters []*types.Chapter
	seen := make(urlSet)
	for _, a := range links {
		if ch := anchorChapter(a, base, seen); ch != nil {
			chapters = append(chapters, ch)
		}
	}
	return chapters
}

func collectChapters(anchors *goquery.Selection, base *url.URL) []*types.Chapter {
	var chapters []*types.Chapter
	seen := make(urlSet)
	anchors.Each(func(_ int, a *goquery.Selection) {
		if ch := anchorChapter(a, base, seen); ch != nil {
			chapters = append(chapters, ch)
		}
	})
	return chapters
}

// anchorChapter turns an anchor into a Chapter unless its target is empty
// or already in seen.
func anchorChapter(a *goquery.Selection, base *url.URL, seen urlSet) *types.Chapter {
	abs := resolveURL(base, a.AttrOr("href", ""))
	if abs == "" || seen.has(abs) {
		return nil
	}
	seen.add(abs)

	title := normalizeSpace(a.Text())
	if title == "" {
		title = normalizeSpace(a.AttrOr("title", ""))
	}
	return &types.Chapter{Title: title, URL: abs}
}

// isChapterLike reports whether the path or query of rawURL has a chapter token.
func isChapterLike(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	target := u.EscapedPath()
	if u.RawQuery != "" {
		target += "?" + u.RawQuery
	}
	return chapterToken.MatchString(target)
}

// firstText returns the normalized text of the first selector that matches
// a non-empty element.
func firstText(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		if t := normalizeSpace(doc.Find(sel).First().Text()); t != "" {
			return t
		}
	}
	return ""
}

// metaContent reads a <meta> tag by property or name.
func metaContent(doc *goquery.Document, key string) string {
	sel := doc.Find(`meta[property="` + key + `"], meta[name="` + key + `"]`).First()
	return strings.TrimSpace(sel.AttrOr("content", ""))
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// compactLines trims every line and drops the empty ones.
func compactLines(s string) string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:limit]))
}
