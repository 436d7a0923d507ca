// Package enrich pulls organisation metadata (logo, description,
// contacts, social profiles) from official websites. Batches run with
// bounded concurrency and polite dispatch pacing; results are cached
// for a long time since this data rarely changes.
package enrich

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/semaphore"

	"github.com/scoutwork/harvest/config"
	"github.com/scoutwork/harvest/fetch"
	"github.com/scoutwork/harvest/models"
)

// Service enriches organisation websites. Safe for concurrent use.
type Service struct {
	cfg     config.EnrichConfig
	fetcher *fetch.Fetcher
	sem     *semaphore.Weighted

	mu    sync.RWMutex
	cache map[string]cachedEnrichment
}

type cachedEnrichment struct {
	enrichment models.Enrichment
	createdAt  time.Time
}

func NewService(cfg config.EnrichConfig, fetcher *fetch.Fetcher) *Service {
	return &Service{
		cfg:     cfg,
		fetcher: fetcher,
		sem:     semaphore.NewWeighted(int64(cfg.Concurrency)),
		cache:   make(map[string]cachedEnrichment),
	}
}

// EnrichBatch enriches the URLs with bounded concurrency, preserving
// input order in the result. A failing URL yields an Enrichment with
// its Error field set rather than failing the batch.
func (s *Service) EnrichBatch(ctx context.Context, urls []string, force bool) []models.Enrichment {
	results := make([]models.Enrichment, len(urls))
	var wg sync.WaitGroup

	for i, rawURL := range urls {
		if err := s.sem.Acquire(ctx, 1); err != nil {
			results[i] = models.Enrichment{WebsiteURL: rawURL, Error: "canceled"}
			continue
		}

		wg.Add(1)
		go func(i int, rawURL string) {
			defer wg.Done()
			defer s.sem.Release(1)
			results[i] = s.enrichOne(ctx, rawURL, force)
		}(i, rawURL)

		// Pace dispatches so a burst of acquisitions does not hammer
		// distinct sites at the exact same instant.
		if i < len(urls)-1 {
			select {
			case <-time.After(s.cfg.DispatchDelay):
			case <-ctx.Done():
			}
		}
	}

	wg.Wait()
	return results
}

func (s *Service) enrichOne(ctx context.Context, rawURL string, force bool) models.Enrichment {
	if !force {
		if cached, ok := s.cacheGet(rawURL); ok {
			return cached
		}
	}

	res, err := s.fetcher.Fetch(ctx, rawURL, false, "")
	if err != nil {
		slog.Warn("enrichment fetch failed", "url", rawURL, "error", err)
		return models.Enrichment{WebsiteURL: rawURL, Error: "fetch failed"}
	}

	enrichment := parsePage(rawURL, res.HTML)
	s.cacheSet(rawURL, enrichment)
	return enrichment
}

var emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

// parsePage extracts metadata from a homepage.
func parsePage(rawURL, markup string) models.Enrichment {
	e := models.Enrichment{WebsiteURL: rawURL}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		e.Error = "parse failed"
		return e
	}

	e.Description = firstAttr(doc, "content",
		`meta[name="description"]`, `meta[property="og:description"]`)
	e.LogoURL = firstAttr(doc, "content", `meta[property="og:image"]`)
	if e.LogoURL == "" {
		e.LogoURL = firstAttr(doc, "href",
			`link[rel="icon"]`, `link[rel="shortcut icon"]`, `link[rel="apple-touch-icon"]`)
	}

	if href, ok := doc.Find(`a[href^="mailto:"]`).First().Attr("href"); ok {
		e.Email = strings.TrimPrefix(href, "mailto:")
	} else if m := emailRe.FindString(doc.Text()); m != "" {
		e.Email = m
	}
	if href, ok := doc.Find(`a[href^="tel:"]`).First().Attr("href"); ok {
		e.Phone = strings.TrimPrefix(href, "tel:")
	}

	e.InstagramURL = socialLink(doc, "instagram.com")
	e.LinkedInURL = socialLink(doc, "linkedin.com")
	e.FacebookURL = socialLink(doc, "facebook.com")
	return e
}

// firstAttr returns the attribute value from the first selector that
// matches an element carrying it.
func firstAttr(doc *goquery.Document, attr string, selectors ...string) string {
	for _, sel := range selectors {
		if v, ok := doc.Find(sel).First().Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func socialLink(doc *goquery.Document, domain string) string {
	link := ""
	doc.Find(`a[href*="` + domain + `"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if href, ok := s.Attr("href"); ok && strings.Contains(href, domain) {
			link = href
			return false
		}
		return true
	})
	return link
}

func (s *Service) cacheGet(url string) (models.Enrichment, bool) {
	s.mu.RLock()
	c, ok := s.cache[url]
	s.mu.RUnlock()
	if !ok || time.Since(c.createdAt) > s.cfg.CacheTTL {
		return models.Enrichment{}, false
	}
	return c.enrichment, true
}

func (s *Service) cacheSet(url string, e models.Enrichment) {
	s.mu.Lock()
	s.cache[url] = cachedEnrichment{enrichment: e, createdAt: time.Now()}
	s.mu.Unlock()
}
