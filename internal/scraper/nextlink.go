package scraper

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
)

// forwardGlyphs mark "next" navigation links alongside the word itself.
var forwardGlyphs = []string{"→", "›", "»", ">"}

// nextLinkXPath selects every anchor with a target; text and href are
// checked in Go since XPath 1.0 has no case folding.
const nextLinkXPath = "//a[@href]"

// FindNextLink returns the absolute URL of the page's "next chapter" link,
// or "" if there is none. The link text must read as forward navigation and
// its target must look like a chapter.
func FindNextLink(doc *goquery.Document, pageURL string) string {
	if doc == nil || len(doc.Nodes) == 0 {
		return ""
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}

	anchors, err := htmlquery.QueryAll(doc.Nodes[0], nextLinkXPath)
	if err != nil {
		return ""
	}
	for _, a := range anchors {
		if !isForwardText(htmlquery.InnerText(a)) {
			continue
		}
		href := resolveURL(base, htmlquery.SelectAttr(a, "href"))
		if href == "" || !isChapterLike(href) {
			continue
		}
		return href
	}
	return ""
}

func isForwardText(text string) bool {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return false
	}
	if strings.Contains(text, "next") {
		return true
	}
	for _, g := range forwardGlyphs {
		if strings.Contains(text, g) {
			return true
		}
	}
	return false
}
