package scraper

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/IshaanNene/NovelGoat/internal/types"
)

// contentSelectors locate the reading region, most specific first.
var contentSelectors = []string{
	".reading-content",
	"#chapter-content",
	".entry-content",
	".chapter-content",
	"#chr-content",
	".chr-c",
	".text-left",
	"#content",
	"article",
}

// junkSelector matches nodes whose text must never reach the output.
const junkSelector = "script, style, iframe, ins, noscript, .ads, .ad, .adsbygoogle, .sharedaddy"

var chapterTitleSelectors = []string{".chapter-title", ".entry-title", "h1", "h2"}

// blockAtoms break lines around their content.
var blockAtoms = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Li: true, atom.Ul: true, atom.Ol: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Blockquote: true, atom.Section: true, atom.Article: true, atom.Pre: true,
	atom.Tr: true, atom.Table: true, atom.Hr: true, atom.Center: true,
	atom.Header: true, atom.Footer: true, atom.Dd: true, atom.Dt: true,
}

// ExtractContent returns the cleaned text of the first non-empty reading
// container, or "" when none matches.
func ExtractContent(doc *goquery.Document, cleaner *Cleaner) string {
	for _, sel := range contentSelectors {
		container := doc.Find(sel).First()
		if container.Length() == 0 || strings.TrimSpace(container.Text()) == "" {
			continue
		}
		// Work on a copy so the caller's document keeps its nodes.
		container = container.Clone()
		container.Find(junkSelector).Remove()
		if text := cleaner.Clean(nodeText(container)); text != "" {
			return text
		}
	}
	return ""
}

// ExtractChapterTitle returns the chapter heading or the placeholder title.
func ExtractChapterTitle(doc *goquery.Document) string {
	if t := firstText(doc, chapterTitleSelectors); t != "" {
		return t
	}
	return types.PlaceholderTitle
}

// readableContent runs go-readability over the raw page and cleans the
// article text. Used when no known container matched.
func readableContent(body string, pageURL string, cleaner *Cleaner) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	article, err := readability.FromReader(strings.NewReader(body), u)
	if err != nil {
		return ""
	}
	return cleaner.Clean(article.TextContent)
}

// nodeText renders the selection's text, emitting a newline around block
// elements and at <br>, and concatenating inline content.
func nodeText(sel *goquery.Selection) string {
	var b strings.Builder
	for _, n := range sel.Nodes {
		writeText(&b, n)
	}
	return b.String()
}

func writeText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(strings.ReplaceAll(n.Data, "\n", " "))
		return
	case html.ElementNode:
		if n.DataAtom == atom.Br {
			b.WriteByte('\n')
			return
		}
	case html.CommentNode:
		return
	}

	block := n.Type == html.ElementNode && blockAtoms[n.DataAtom]
	if block {
		b.WriteByte('\n')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(b, c)
	}
	if block {
		b.WriteByte('\n')
	}
}
