package rss

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"oasgo.dev/core/store"
	"oasgo.dev/core/types"
)

// Page is the result of fetching and saving one page of a feed: the items
// that were found and what happened trying to save each.
type Page struct {
	URL     *url.URL
	Watcher *Watcher
	Results []SaveResult
}

// Next describes what a Crawler wants to happen after a page: stop, or
// move on to another url (typically a pagination link pulled out of the
// just-fetched page).
type Next struct {
	Finished bool
	NextPage *url.URL
}

// Done is the Next value that ends a crawl.
func Done() Next { return Next{Finished: true} }

// GoTo is the Next value that continues a crawl at url.
func GoTo(u *url.URL) Next { return Next{NextPage: u} }

// Crawler knows how to find the next page of a paginated feed, and which
// domains it applies to. There is no fallback crawler: CrawlAndSave returns
// a MissingCrawlRuleError when no Crawler's domains match the url's host.
type Crawler interface {
	Next(page Page) (Next, error)
	Domains() []string
}

// CrawlOpts configures a crawl.
type CrawlOpts struct {
	URL      *url.URL
	Crawl    bool
	Update   bool
	MaxPages int // 0 means unbounded
}

// NewCrawlOpts builds CrawlOpts that crawl a feed forward without a page
// limit and stop on the first already-seen post.
func NewCrawlOpts(u *url.URL) CrawlOpts {
	return CrawlOpts{URL: u, Crawl: true}
}

// FetchOpts configures a single-page fetch.
type FetchOpts struct {
	URL    *url.URL
	Update bool
}

// MissingCrawlRuleError is returned when CrawlAndSave is asked to crawl a
// domain with no registered Crawler.
type MissingCrawlRuleError struct {
	Domain string
}

func (e *MissingCrawlRuleError) Error() string {
	return fmt.Sprintf("rss: no crawl rule for domain %q", e.Domain)
}

// CrawlAndSave dispatches a crawl to the registered Crawler whose domain
// list contains the url's host.
func CrawlAndSave(ctx context.Context, main *store.Store, opts CrawlOpts, crawlers []Crawler) error {
	domain := opts.URL.Hostname()
	if domain == "" {
		return &MissingCrawlRuleError{Domain: opts.URL.String()}
	}
	for _, crawler := range crawlers {
		for _, d := range crawler.Domains() {
			if d == domain {
				return CrawlerLoop(ctx, main, opts, crawler)
			}
		}
	}
	return &MissingCrawlRuleError{Domain: domain}
}

// CrawlerLoop fetches and saves pages starting at opts.URL, following
// crawler's pagination decisions until it reports Finished, opts.MaxPages
// pages have been fetched, or (when opts.Update is false) a page's save
// results show a post that already existed, which signals the crawl has
// caught up with previously ingested content.
func CrawlerLoop(ctx context.Context, main *store.Store, opts CrawlOpts, crawler Crawler) error {
	current := opts.URL
	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = int(^uint(0) >> 1)
	}
	total := 0
	start := time.Now()
	client := &http.Client{Timeout: 30 * time.Second}

	for i := 0; i < maxPages; i++ {
		watcher, err := NewWithClient(client, current.String(), types.DefaultFeedSettings())
		if err != nil {
			return err
		}
		if err := watcher.Load(ctx); err != nil {
			return err
		}
		results, _, err := watcher.Save(ctx, main, opts.Update)
		if err != nil {
			return err
		}
		page := Page{URL: current, Watcher: watcher, Results: results}

		if !opts.Update && containsConflict(results) {
			break
		}

		total += len(results)

		next, err := crawler.Next(page)
		if err != nil {
			return err
		}
		if next.Finished || next.NextPage == nil {
			break
		}
		current = next.NextPage
	}

	duration := time.Since(start)
	perSecond := float64(total) / duration.Seconds()
	logrus.WithFields(logrus.Fields{
		"items":    total,
		"duration": duration,
		"perSec":   perSecond,
		"url":      current.String(),
	}).Info("rss crawl finished")
	return nil
}

func containsConflict(results []SaveResult) bool {
	for _, r := range results {
		if r.Err != nil {
			if _, ok := r.Err.(*store.ConflictError); ok {
				return true
			}
		}
	}
	return false
}
