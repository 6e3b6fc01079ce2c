package types

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"oasgo.dev/core/record"
)

// Feed is a subscribed RSS/Atom source: its url, how often to poll it, and
// where the crawler left off.
type Feed struct {
	URL      string          `json:"url"`
	Mapping  json.RawMessage `json:"mapping,omitempty"`
	Settings *FeedSettings   `json:"settings,omitempty"`
	State    *FeedState      `json:"state,omitempty"`
}

// FeedSettings controls how the watcher polls a feed.
type FeedSettings struct {
	CheckInterval   time.Duration `json:"checkInterval"`
	CrawlBackwards  bool          `json:"crawlBackwards"`
}

// DefaultFeedSettings returns the settings a feed gets when none are given
// explicitly: poll once a minute, crawl forwards only.
func DefaultFeedSettings() FeedSettings {
	return FeedSettings{CheckInterval: 60 * time.Second, CrawlBackwards: false}
}

// FeedState is the watcher's progress bookkeeping for a feed.
type FeedState struct {
	CrawlFinished   bool           `json:"crawlFinished"`
	CrawlLastOffset int            `json:"crawlLastOffset"`
	LastCheck       FeedCheckState `json:"lastCheck"`
}

// FeedCheckState records when a feed was last polled and the newest item
// guid seen, so the crawler can tell whether a subsequent poll found
// anything new.
type FeedCheckState struct {
	Timestamp  int64  `json:"timestamp"`
	LatestGuid string `json:"latestGuid"`
}

// NewFeed builds a Feed pointed at the given url with default settings.
func NewFeed(feedURL string) Feed {
	settings := DefaultFeedSettings()
	return Feed{URL: feedURL, Settings: &settings}
}

// Validate checks that the feed's url is well-formed and absolute (a
// scheme and a host, not a bare path or relative reference).
func (f Feed) Validate() error {
	if f.URL == "" {
		return fmt.Errorf("types: invalid feed url %q: must not be empty", f.URL)
	}
	parsed, err := url.ParseRequestURI(f.URL)
	if err != nil {
		return fmt.Errorf("types: invalid feed url %q: %w", f.URL, err)
	}
	if parsed.Host == "" {
		return fmt.Errorf("types: invalid feed url %q: must be absolute", f.URL)
	}
	return nil
}

// FeedTypeName is the registry discriminator for Feed records.
const FeedTypeName = "feed"

// FeedIndexMapping is the Elasticsearch field mapping for a Feed document.
var FeedIndexMapping = map[string]any{
	"url":   map[string]any{"type": "keyword"},
	"state": map[string]any{"type": "object", "enabled": false},
}

func init() {
	record.Register(FeedTypeName, record.TypeInfo{
		Decode: func(raw json.RawMessage) (any, error) {
			var f Feed
			if err := json.Unmarshal(raw, &f); err != nil {
				return nil, err
			}
			return f, nil
		},
		Validate: func(value any) error {
			f := value.(Feed)
			return f.Validate()
		},
		IndexMapping: FeedIndexMapping,
		ExtractRefs: func(value any) []record.Guid {
			return nil
		},
		ResolveRefs: func(ctx context.Context, value any, resolve record.ResolveFunc) error {
			return nil
		},
	})
}
