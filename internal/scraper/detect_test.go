package scraper

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return doc
}

const madaraMarkup = `<html><body><ul><li class="wp-manga-chapter"><a href="/c1">Chapter 1</a></li></ul></body></html>`

func TestDetectFamily(t *testing.T) {
	tests := []struct {
		name string
		url  string
		html string
		want SiteFamily
	}{
		{"novelfull host", "https://novelfull.com/some-novel.html", "<html></html>", FamilyNovelFull},
		{"readnovelfull host", "https://readnovelfull.com/x.html", "<html></html>", FamilyNovelFull},
		{"novelbin host", "https://www.novelbin.me/novel-book/x", "<html></html>", FamilyNovelFull},
		{"lightnovelpub host", "https://www.lightnovelpub.vip/novel/x", "<html></html>", FamilyNovelPub},
		{"mtlnovel host", "https://www.mtlnovel.com/x/", "<html></html>", FamilyMTLNovel},
		{"host beats markup", "https://novelfull.com/x.html", madaraMarkup, FamilyNovelFull},
		{"madara chapter class", "https://example.com/novel/x/", madaraMarkup, FamilyMadara},
		{"madara wrapper", "https://example.com/novel/x/", `<div class="listing-chapters_wrap"></div>`, FamilyMadara},
		{"madara themed div", "https://example.com/x/", `<div class="site-content madara-theme"></div>`, FamilyMadara},
		{"chapter-list class", "https://example.com/x/", `<div class="chapter-list"><a href="/a">A</a></div>`, FamilyListed},
		{"chapter-list id", "https://example.com/x/", `<div id="chapter-list"></div>`, FamilyListed},
		{"ul class pattern", "https://example.com/x/", `<ul class="main-chapters-list"><li><a href="/a">A</a></li></ul>`, FamilyListed},
		{"plain page", "https://example.com/x/", `<p>Hello</p><a href="/chapter-2">Next</a>`, FamilyGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectFamily(mustDoc(t, tt.html), tt.url)
			if got != tt.want {
				t.Errorf("DetectFamily() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSiteFamilyString(t *testing.T) {
	if FamilyMadara.String() != "madara" || FamilyGeneric.String() != "generic" {
		t.Error("unexpected family names")
	}
	if SiteFamily(99).String() != "generic" {
		t.Error("unknown families should print as generic")
	}
}
