package scraper

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/NovelGoat/internal/config"
	"github.com/IshaanNene/NovelGoat/internal/types"
)

// fallbackResultSelector is used when a source's own selector matches nothing.
const fallbackResultSelector = `a[href*="/novel/"]`

const (
	resultTitleSelector = ".novel-title, h3, h4, h2"
	resultDescSelector  = ".excerpt, .desc, .novel-desc, p"
)

// Search queries the configured sources in order and returns the results of
// the first source that yields any, capped at search.max_results. Sources
// are never merged.
func (s *Scraper) Search(ctx context.Context, query string) ([]types.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	sess, err := s.newFetcher()
	if err != nil {
		return nil, fmt.Errorf("open fetcher: %w", err)
	}
	defer sess.Close()

	s.metrics.RecordSearch()
	for _, src := range s.cfg.Search.Sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		searchURL := strings.ReplaceAll(src.URLTemplate, "{query}", url.QueryEscape(query))
		body, pageURL := s.fetchPage(ctx, sess, searchURL)
		if body == "" {
			continue
		}
		doc, err := parseDocument(body)
		if err != nil {
			continue
		}

		results := parseSearchResults(doc, pageURL, src, s.cfg.Search.PerSourceLimit)
		if len(results) == 0 {
			s.logger.Debug("no search results", "source", src.Name)
			continue
		}
		if len(results) > s.cfg.Search.MaxResults {
			results = results[:s.cfg.Search.MaxResults]
		}
		s.logger.Info("search complete", "query", query, "source", src.Name, "results", len(results))
		return results, nil
	}

	return nil, nil
}

// parseSearchResults reads up to limit result cards from a search page.
func parseSearchResults(doc *goquery.Document, pageURL string, src config.SearchSource, limit int) []types.SearchResult {
	base, _ := url.Parse(pageURL)

	cards := doc.Find(src.ResultSelector)
	if cards.Length() == 0 {
		cards = doc.Find(fallbackResultSelector)
	}

	var results []types.SearchResult
	seen := make(urlSet)
	cards.EachWithBreak(func(_ int, card *goquery.Selection) bool {
		link := card
		if goquery.NodeName(card) != "a" {
			link = card.Find("a[href]").First()
		}
		href := resolveURL(base, link.AttrOr("href", ""))
		if href == "" || seen.has(href) {
			return true
		}

		title := normalizeSpace(link.Text())
		if title == "" {
			title = normalizeSpace(link.AttrOr("title", ""))
		}
		if title == "" {
			title = normalizeSpace(card.Find(resultTitleSelector).First().Text())
		}
		if title == "" {
			return true
		}
		seen.add(href)

		res := types.SearchResult{
			Title:  title,
			URL:    href,
			Source: src.Name,
		}
		if src.ImageSelector != "" {
			img := card.Find(src.ImageSelector).First()
			for _, attr := range coverAttrs {
				if u := resolveURL(base, img.AttrOr(attr, "")); u != "" {
					res.CoverURL = u
					break
				}
			}
		}
		if goquery.NodeName(card) != "a" {
			res.Description = truncateRunes(normalizeSpace(card.Find(resultDescSelector).First().Text()), 300)
		}

		results = append(results, res)
		return len(results) < limit
	})

	return results
}
