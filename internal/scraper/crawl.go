package scraper

import (
	"context"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/NovelGoat/internal/fetcher"
	"github.com/IshaanNene/NovelGoat/internal/types"
)

// crawlForward treats the start page as chapter 0 and follows "next" links,
// extracting each page as it goes. It stops when there is no next link, the
// link was already visited, the hop ceiling is reached, a fetch fails, or ctx
// is done. Whatever was collected is returned.
func (s *Scraper) crawlForward(ctx context.Context, sess fetcher.Fetcher, doc *goquery.Document, body, startURL string) []*types.Chapter {
	maxHops := s.cfg.Scraper.MaxCrawlHops
	visited := make(urlSet)
	visited.add(startURL)

	pageURL := startURL
	var chapters []*types.Chapter
	for hop := 0; hop < maxHops; hop++ {
		chapters = append(chapters, &types.Chapter{
			Index:   hop,
			Title:   ExtractChapterTitle(doc),
			URL:     pageURL,
			Content: s.pageContent(doc, body, pageURL),
		})
		if chapters[hop].HasContent() {
			s.metrics.RecordChapter()
		}

		if hop+1 >= maxHops {
			s.logger.Warn("crawl hop ceiling reached", "start", startURL, "hops", maxHops)
			break
		}

		next := FindNextLink(doc, pageURL)
		if next == "" {
			break
		}
		if visited.has(next) {
			s.logger.Debug("crawl cycle detected", "url", pageURL, "next", next)
			break
		}
		if ctx.Err() != nil {
			break
		}
		visited.add(next)

		nextBody, servedFrom := s.fetchPage(ctx, sess, next)
		if nextBody == "" {
			break
		}
		if canonicalURL(servedFrom) != canonicalURL(next) {
			if visited.has(servedFrom) {
				s.logger.Debug("crawl cycle detected", "url", next, "redirect", servedFrom)
				break
			}
			visited.add(servedFrom)
		}
		nextDoc, err := parseDocument(nextBody)
		if err != nil {
			break
		}
		doc, body, pageURL = nextDoc, nextBody, servedFrom
	}

	s.logger.Debug("crawl finished", "start", startURL, "chapters", len(chapters))
	return chapters
}
