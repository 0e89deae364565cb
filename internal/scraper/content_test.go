package scraper

import (
	"strings"
	"testing"
)

func TestExtractContentStripsJunk(t *testing.T) {
	html := `<html><body><div class="reading-content">
<script>var ad = "script text";</script>
<p>It was a dark night.</p>
<div class="ads">Buy our premium plan today</div>
<p>Line one<br>Line two is here</p>
<ins class="adsbygoogle">inserted ad text</ins>
<p>Please visit site.com for more</p>
<style>.x { color: red }</style>
<iframe src="/ad">frame text</iframe>
</div></body></html>`

	doc := mustDoc(t, html)
	got := ExtractContent(doc, NewCleaner())
	want := "It was a dark night.\n\nLine one\n\nLine two is here"
	if got != want {
		t.Errorf("ExtractContent() = %q, want %q", got, want)
	}

	// The source document keeps its nodes.
	if doc.Find(".reading-content script").Length() != 1 {
		t.Error("extraction should not mutate the document")
	}
}

func TestExtractContentInlineElements(t *testing.T) {
	html := `<div id="chapter-content"><p>He said <em>hello</em> to <strong>her</strong>.</p></div>`
	got := ExtractContent(mustDoc(t, html), NewCleaner())
	if got != "He said hello to her." {
		t.Errorf("ExtractContent() = %q", got)
	}
}

func TestExtractContentSelectorPriority(t *testing.T) {
	html := `<html><body>
<div class="entry-content">   </div>
<article><p>Article text here.</p></article>
</body></html>`
	got := ExtractContent(mustDoc(t, html), NewCleaner())
	if got != "Article text here." {
		t.Errorf("ExtractContent() = %q", got)
	}

	// WordPress themes wrap the whole post in .entry-content.
	wp := `<html><body>
<div class="entry-content"><div class="chapter-content"><p>Inner text.</p></div><p>Closing words.</p></div>
</body></html>`
	got = ExtractContent(mustDoc(t, wp), NewCleaner())
	if got != "Inner text.\n\nClosing words." {
		t.Errorf("ExtractContent() = %q, want the .entry-content block", got)
	}
}

func TestExtractContentNoContainer(t *testing.T) {
	got := ExtractContent(mustDoc(t, `<html><body><div><p>Loose text only.</p></div></body></html>`), NewCleaner())
	if got != "" {
		t.Errorf("expected empty content, got %q", got)
	}
}

func TestExtractChapterTitle(t *testing.T) {
	tests := []struct {
		html string
		want string
	}{
		{`<h1>Novel</h1><div class="chapter-title">Chapter 7: Storm</div>`, "Chapter 7: Storm"},
		{`<h2>Sub</h2><h1 class="entry-title">Entry Title</h1>`, "Entry Title"},
		{`<h2>Only H2</h2>`, "Only H2"},
		{`<p>nothing</p>`, "Chapter"},
	}
	for _, tt := range tests {
		if got := ExtractChapterTitle(mustDoc(t, tt.html)); got != tt.want {
			t.Errorf("ExtractChapterTitle(%q) = %q, want %q", tt.html, got, tt.want)
		}
	}
}

func TestFindNextLink(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			"text and chapter href",
			`<a href="/novel/chapter-1">Prev</a><a href="/about">Next page</a><a href="/novel/chapter-3">Next Chapter →</a>`,
			"https://example.com/novel/chapter-3",
		},
		{
			"glyph only",
			`<a href="chapter-9">»</a>`,
			"https://example.com/novel/chapter-9",
		},
		{
			"case insensitive",
			`<a class="btn" href="/novel/chapter-4/"><span>NEXT</span></a>`,
			"https://example.com/novel/chapter-4/",
		},
		{
			"non chapter target",
			`<a href="/tags/next">Next</a>`,
			"",
		},
		{
			"no forward link",
			`<a href="/novel/chapter-1">Previous chapter</a>`,
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FindNextLink(mustDoc(t, "<html><body>"+tt.html+"</body></html>"), "https://example.com/novel/chapter-2")
			if got != tt.want {
				t.Errorf("FindNextLink() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNodeTextBreaks(t *testing.T) {
	doc := mustDoc(t, `<div id="x">a<br>b<p>c</p>d</div>`)
	got := strings.Fields(strings.ReplaceAll(nodeText(doc.Find("#x")), "\n", " | "))
	if strings.Join(got, " ") != "| a | b | c | d |" {
		t.Errorf("unexpected line structure %q", strings.Join(got, " "))
	}
}
