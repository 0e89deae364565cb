package scraper

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// SiteFamily classifies a page layout and selects its extraction strategy.
type SiteFamily int

const (
	FamilyGeneric SiteFamily = iota
	// FamilyMadara is the themed WordPress layout shared by many aggregators.
	FamilyMadara
	// FamilyListed is any page with a recognisable chapter-list container.
	FamilyListed
	FamilyNovelFull
	FamilyNovelPub
	FamilyMTLNovel
)

func (f SiteFamily) String() string {
	switch f {
	case FamilyMadara:
		return "madara"
	case FamilyListed:
		return "listed"
	case FamilyNovelFull:
		return "novelfull"
	case FamilyNovelPub:
		return "novelpub"
	case FamilyMTLNovel:
		return "mtlnovel"
	default:
		return "generic"
	}
}

// hostFamilies maps host tokens to dedicated families. Checked in order.
var hostFamilies = []struct {
	token  string
	family SiteFamily
}{
	{"readnovelfull", FamilyNovelFull},
	{"novelfull", FamilyNovelFull},
	{"novelbin", FamilyNovelFull},
	{"lightnovelpub", FamilyNovelPub},
	{"lightnovelworld", FamilyNovelPub},
	{"novelpub", FamilyNovelPub},
	{"mtlnovel", FamilyMTLNovel},
}

var (
	madaraClass     = regexp.MustCompile(`(?i)madara`)
	chapterListUL   = regexp.MustCompile(`(?i)chapter.*list`)
	madaraSelectors = ".wp-manga-chapter, .listing-chapters_wrap"
	listedSelectors = ".chapter-list, #chapter-list"
)

// DetectFamily classifies doc. Host tokens win over structural markers,
// which can appear by coincidence on unrelated pages.
func DetectFamily(doc *goquery.Document, pageURL string) SiteFamily {
	host := hostOf(pageURL)
	for _, hf := range hostFamilies {
		if strings.Contains(host, hf.token) {
			return hf.family
		}
	}

	if doc == nil {
		return FamilyGeneric
	}

	if doc.Find(madaraSelectors).Length() > 0 || hasClassMatching(doc, "div", madaraClass) {
		return FamilyMadara
	}

	if doc.Find(listedSelectors).Length() > 0 || hasClassMatching(doc, "ul", chapterListUL) {
		return FamilyListed
	}

	return FamilyGeneric
}

// hasClassMatching reports whether any element named tag has a class
// attribute matching re.
func hasClassMatching(doc *goquery.Document, tag string, re *regexp.Regexp) bool {
	found := false
	doc.Find(tag + "[class]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if re.MatchString(s.AttrOr("class", "")) {
			found = true
			return false
		}
		return true
	})
	return found
}
