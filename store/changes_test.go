package store

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRow struct {
	id      string
	deleted bool
	seq     string
	doc     string
}

type fakeRows struct {
	rows []fakeRow
	pos  int
	err  error
}

func (f *fakeRows) Next() bool {
	if f.pos >= len(f.rows) {
		return false
	}
	f.pos++
	return true
}
func (f *fakeRows) Err() error        { return f.err }
func (f *fakeRows) Changes() []string { return nil }
func (f *fakeRows) ID() string        { return f.rows[f.pos-1].id }
func (f *fakeRows) Deleted() bool     { return f.rows[f.pos-1].deleted }
func (f *fakeRows) Seq() string       { return f.rows[f.pos-1].seq }
func (f *fakeRows) Close() error      { return nil }

func (f *fakeRows) ScanDoc(dest interface{}) error {
	raw, ok := dest.(*json.RawMessage)
	if !ok {
		return errors.New("unexpected scan target")
	}
	*raw = json.RawMessage(f.rows[f.pos-1].doc)
	return nil
}

func TestChangesFeedSkipsMalformedGuids(t *testing.T) {
	feed := &ChangesFeed{rows: &fakeRows{rows: []fakeRow{
		{id: "_design/main", seq: "1"},
		{id: "post_abc123", seq: "2", doc: `{"$meta":{"guid":"post_abc123","type":"post","id":"abc123"},"headline":"hi"}`},
	}}}

	change, ok := feed.Next()
	require.True(t, ok)
	assert.Equal(t, "post_abc123", string(change.Guid))
	assert.Equal(t, "2", change.Seq)
	assert.False(t, change.Deleted)

	_, ok = feed.Next()
	assert.False(t, ok)
	assert.NoError(t, feed.Err())
}

func TestChangesFeedReportsDeletion(t *testing.T) {
	feed := &ChangesFeed{rows: &fakeRows{rows: []fakeRow{
		{id: "media_xyz", seq: "5", deleted: true},
	}}}

	change, ok := feed.Next()
	require.True(t, ok)
	assert.True(t, change.Deleted)
	assert.Equal(t, "media_xyz", string(change.Guid))
}

func TestChangesFeedPropagatesTransportError(t *testing.T) {
	wantErr := errors.New("boom")
	feed := &ChangesFeed{rows: &fakeRows{err: wantErr}}

	_, ok := feed.Next()
	assert.False(t, ok)
	err := feed.Err()
	require.Error(t, err)
	assert.ErrorIs(t, err, wantErr)
}
