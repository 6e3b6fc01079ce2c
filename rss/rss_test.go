package rss

import (
	"net/url"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oasgo.dev/core/record"
	"oasgo.dev/core/types"
)

func TestItemIntoPostSkipsItemsWithoutGuid(t *testing.T) {
	_, ok := itemIntoPost(&gofeed.Item{Title: "no guid"})
	assert.False(t, ok)
}

func TestItemIntoPostEmbedsEnclosureAsResolvedMedia(t *testing.T) {
	item := &gofeed.Item{
		GUID:  "episode-1",
		Title: "Episode One",
		Link:  "https://example.org/episode-1",
		Enclosures: []*gofeed.Enclosure{
			{URL: "https://example.org/episode-1.mp3", Type: "audio/mpeg"},
		},
	}

	rec, ok := itemIntoPost(item)
	require.True(t, ok)
	assert.Equal(t, types.PostTypeName, rec.Type())
	assert.Equal(t, "episode-1", rec.Value.Identifier)
	require.Len(t, rec.Value.Media, 1)
	assert.True(t, rec.Value.Media[0].Resolved())

	mediaRec, ok := rec.Value.Media[0].Record()
	require.True(t, ok)
	assert.Equal(t, "https://example.org/episode-1.mp3", mediaRec.Value.ContentURL)
}

func TestItemIntoPostIsDeterministic(t *testing.T) {
	item := &gofeed.Item{GUID: "stable-guid", Title: "A"}
	first, ok := itemIntoPost(item)
	require.True(t, ok)
	second, ok := itemIntoPost(item)
	require.True(t, ok)
	assert.Equal(t, first.Guid(), second.Guid())
	assert.Equal(t, record.IDFromHashedString("stable-guid"), first.ID())
}

func TestItemIntoMediaRequiresEnclosure(t *testing.T) {
	_, ok := itemIntoMedia(&gofeed.Item{GUID: "g1"})
	assert.False(t, ok)

	withEnclosure := &gofeed.Item{
		GUID:       "g2",
		Enclosures: []*gofeed.Enclosure{{URL: "https://example.org/a.mp3", Type: "audio/mpeg"}},
	}
	rec, ok := itemIntoMedia(withEnclosure)
	require.True(t, ok)
	assert.Equal(t, "https://example.org/a.mp3", rec.Value.ContentURL)
}

func TestFrnCrawlerAdvancesStartParam(t *testing.T) {
	u := mustParseURL(t, "https://www.freie-radios.net/portal/podcast.php?start=0")
	c := frnCrawler{}
	page := Page{URL: u, Results: make([]SaveResult, 5)}

	next, err := c.Next(page)
	require.NoError(t, err)
	require.NotNil(t, next.NextPage)
	assert.Equal(t, "5", next.NextPage.Query().Get("start"))
}

func TestFrnCrawlerFinishesOnEmptyPage(t *testing.T) {
	u := mustParseURL(t, "https://www.freie-radios.net/portal/podcast.php")
	c := frnCrawler{}
	next, err := c.Next(Page{URL: u})
	require.NoError(t, err)
	assert.True(t, next.Finished)
}

func TestCbaCrawlerAdvancesOffsetParam(t *testing.T) {
	u := mustParseURL(t, "https://cba.media/feed?offset=10")
	c := cbaCrawler{}
	page := Page{URL: u, Results: make([]SaveResult, 3)}

	next, err := c.Next(page)
	require.NoError(t, err)
	require.NotNil(t, next.NextPage)
	assert.Equal(t, "13", next.NextPage.Query().Get("offset"))
}

func TestNewRejectsGarbageURL(t *testing.T) {
	_, err := New("http://example.org/%zz", types.DefaultFeedSettings())
	assert.Error(t, err)
}

func TestDefaultFeedSettingsAppliedWhenZero(t *testing.T) {
	w, err := New("https://example.org/feed.xml", types.FeedSettings{})
	require.NoError(t, err)
	assert.Equal(t, 60*time.Second, w.settings.CheckInterval)
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}
