// Package rss ingests RSS/Atom feeds into posts and media: it maps each
// feed item onto a Post record (and, when the item carries an audio or
// video enclosure, an embedded Media), and can poll a feed on an interval
// or crawl it page by page following site-specific pagination rules.
package rss

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/mmcdole/gofeed"

	"oasgo.dev/core/record"
	"oasgo.dev/core/reference"
	"oasgo.dev/core/store"
	"oasgo.dev/core/types"
)

// ErrNoChannel is returned by operations that need a loaded feed before
// Load has been called at least once.
var ErrNoChannel = errors.New("rss: feed not loaded")

// Watcher polls a single feed and turns its items into records.
type Watcher struct {
	url      *url.URL
	client   *http.Client
	parser   *gofeed.Parser
	settings types.FeedSettings
	feed     *gofeed.Feed
}

// New builds a Watcher for feedURL using http.DefaultClient. settings
// controls the poll interval used by Watch; a zero value falls back to
// types.DefaultFeedSettings.
func New(feedURL string, settings types.FeedSettings) (*Watcher, error) {
	return NewWithClient(http.DefaultClient, feedURL, settings)
}

// NewWithClient builds a Watcher using a caller-supplied http.Client,
// letting callers share connection pooling or inject a client with
// per-request timeouts and tracing.
func NewWithClient(client *http.Client, feedURL string, settings types.FeedSettings) (*Watcher, error) {
	parsed, err := url.Parse(feedURL)
	if err != nil {
		return nil, fmt.Errorf("rss: invalid feed url %q: %w", feedURL, err)
	}
	if settings == (types.FeedSettings{}) {
		settings = types.DefaultFeedSettings()
	}
	parser := gofeed.NewParser()
	parser.Client = client
	return &Watcher{url: parsed, client: client, parser: parser, settings: settings}, nil
}

// URL returns the feed's url.
func (w *Watcher) URL() *url.URL { return w.url }

// Load fetches and parses the feed, replacing any previously loaded
// content.
func (w *Watcher) Load(ctx context.Context) error {
	feed, err := w.parser.ParseURLWithContext(w.url.String(), ctx)
	if err != nil {
		return fmt.Errorf("rss: fetching %s: %w", w.url, err)
	}
	w.feed = feed
	return nil
}

// ToPosts converts every item of the most recently loaded feed into a
// Post record. Items without a guid are skipped: there is nothing stable
// to derive an id from, and re-ingesting them on every poll would create
// duplicates.
func (w *Watcher) ToPosts() ([]record.TypedRecord[types.Post], error) {
	if w.feed == nil {
		return nil, ErrNoChannel
	}
	out := make([]record.TypedRecord[types.Post], 0, len(w.feed.Items))
	for _, item := range w.feed.Items {
		rec, ok := itemIntoPost(item)
		if !ok {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// ToMedias converts every item's enclosure, if any, into a standalone
// Media record.
func (w *Watcher) ToMedias() ([]record.TypedRecord[types.Media], error) {
	if w.feed == nil {
		return nil, ErrNoChannel
	}
	out := make([]record.TypedRecord[types.Media], 0, len(w.feed.Items))
	for _, item := range w.feed.Items {
		rec, ok := itemIntoMedia(item)
		if !ok {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// SaveResult is the outcome of writing a single post to the store.
type SaveResult struct {
	Guid record.Guid
	Err  error
}

// Save converts the loaded feed's items to posts and writes them to main.
// When update is false, an item whose id already exists is left untouched
// (its SaveResult carries the store's conflict error); when true, existing
// posts are overwritten with the freshly fetched content.
func (w *Watcher) Save(ctx context.Context, main *store.Store, update bool) ([]SaveResult, []record.UntypedRecord, error) {
	posts, err := w.ToPosts()
	if err != nil {
		return nil, nil, err
	}
	results := make([]SaveResult, 0, len(posts))
	saved := make([]record.UntypedRecord, 0, len(posts))
	for _, post := range posts {
		untyped, err := post.IntoUntyped()
		if err != nil {
			results = append(results, SaveResult{Guid: post.Guid(), Err: err})
			continue
		}
		if !update {
			if _, err := main.GetOne(ctx, post.Guid()); err == nil {
				results = append(results, SaveResult{Guid: post.Guid(), Err: &store.ConflictError{Guid: post.Guid()}})
				continue
			}
		}
		if _, err := main.PutOne(ctx, untyped); err != nil {
			results = append(results, SaveResult{Guid: post.Guid(), Err: err})
			continue
		}
		results = append(results, SaveResult{Guid: post.Guid()})
		saved = append(saved, untyped)
	}
	return results, saved, nil
}

// Watch polls the feed on its configured interval until ctx is cancelled,
// saving newly discovered items on each tick.
func (w *Watcher) Watch(ctx context.Context, main *store.Store) error {
	ticker := time.NewTicker(w.settings.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Load(ctx); err != nil {
				continue
			}
			if _, _, err := w.Save(ctx, main, false); err != nil {
				continue
			}
		}
	}
}

func itemIntoPost(item *gofeed.Item) (record.TypedRecord[types.Post], bool) {
	if item.GUID == "" {
		return record.TypedRecord[types.Post]{}, false
	}

	var media []reference.Reference[types.Media]
	if len(item.Enclosures) > 0 {
		enclosure := item.Enclosures[0]
		mediaValue := types.Media{ContentURL: enclosure.URL, EncodingFormat: enclosure.Type}
		mediaID := record.IDFromHashedString(mediaValue.ContentURL)
		mediaRec, err := record.FromIDAndValue(types.MediaTypeName, mediaID, mediaValue)
		if err == nil {
			media = append(media, reference.NewReferenceResolved(mediaRec))
		}
	}

	post := types.Post{
		Headline:   item.Title,
		URL:        item.Link,
		Identifier: item.GUID,
		Media:      media,
	}
	if item.PublishedParsed != nil {
		post.DatePublished = item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		post.DateModified = item.UpdatedParsed
	}

	id := record.IDFromHashedString(item.GUID)
	rec, err := record.FromIDAndValue(types.PostTypeName, id, post)
	if err != nil {
		return record.TypedRecord[types.Post]{}, false
	}
	return rec, true
}

func itemIntoMedia(item *gofeed.Item) (record.TypedRecord[types.Media], bool) {
	if item.GUID == "" || len(item.Enclosures) == 0 {
		return record.TypedRecord[types.Media]{}, false
	}
	enclosure := item.Enclosures[0]
	media := types.Media{ContentURL: enclosure.URL, EncodingFormat: enclosure.Type}

	id := record.IDFromHashedString(enclosure.URL)
	rec, err := record.FromIDAndValue(types.MediaTypeName, id, media)
	if err != nil {
		return record.TypedRecord[types.Media]{}, false
	}
	return rec, true
}
