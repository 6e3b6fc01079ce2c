package types

import (
	"context"
	"encoding/json"
	"time"

	"oasgo.dev/core/record"
	"oasgo.dev/core/reference"
	"oasgo.dev/core/resolver"
)

// Post is an episode or article: the metadata schema.org's PodcastEpisode
// and NewsArticle types share, plus the media assets and feed it came from.
type Post struct {
	Identifier    string                       `json:"identifier,omitempty"`
	Headline      string                       `json:"headline,omitempty"`
	Abstract      string                       `json:"abstract,omitempty"`
	Description   string                       `json:"description,omitempty"`
	InLanguage    string                       `json:"inLanguage,omitempty"`
	Licence       string                       `json:"licence,omitempty"`
	URL           string                       `json:"url,omitempty"`
	DatePublished *time.Time                   `json:"datePublished,omitempty"`
	DateModified  *time.Time                   `json:"dateModified,omitempty"`
	Contributor   []string                     `json:"contributor,omitempty"`
	Publisher     string                       `json:"publisher,omitempty"`
	Genre         []string                     `json:"genre,omitempty"`
	Creator       []string                     `json:"creator,omitempty"`
	Media         []reference.Reference[Media] `json:"media,omitempty"`
	Feeds         []reference.Reference[Feed]  `json:"feeds,omitempty"`
	Transcript    string                       `json:"transcript,omitempty"`
	NLP           json.RawMessage              `json:"nlp,omitempty"`
	Tasks         PostTasks                    `json:"tasks"`
	Other         map[string]json.RawMessage   `json:"-"`
}

// PostTasks tracks the background tasks that run against a Post: natural
// language processing of its (and its media's) transcript.
type PostTasks struct {
	NLP TaskState `json:"nlp"`
}

type postWire struct {
	Identifier    string                       `json:"identifier,omitempty"`
	Headline      string                       `json:"headline,omitempty"`
	Abstract      string                       `json:"abstract,omitempty"`
	Description   string                       `json:"description,omitempty"`
	InLanguage    string                       `json:"inLanguage,omitempty"`
	Licence       string                       `json:"licence,omitempty"`
	URL           string                       `json:"url,omitempty"`
	DatePublished *time.Time                   `json:"datePublished,omitempty"`
	DateModified  *time.Time                   `json:"dateModified,omitempty"`
	Contributor   []string                     `json:"contributor,omitempty"`
	Publisher     string                       `json:"publisher,omitempty"`
	Genre         []string                     `json:"genre,omitempty"`
	Creator       []string                     `json:"creator,omitempty"`
	Media         []reference.Reference[Media] `json:"media,omitempty"`
	Feeds         []reference.Reference[Feed]  `json:"feeds,omitempty"`
	Transcript    string                       `json:"transcript,omitempty"`
	NLP           json.RawMessage              `json:"nlp,omitempty"`
	Tasks         PostTasks                    `json:"tasks"`
}

// MarshalJSON merges Other back in alongside the struct's own fields.
func (p Post) MarshalJSON() ([]byte, error) {
	wire := postWire{
		Identifier: p.Identifier, Headline: p.Headline, Abstract: p.Abstract,
		Description: p.Description, InLanguage: p.InLanguage, Licence: p.Licence,
		URL: p.URL, DatePublished: p.DatePublished, DateModified: p.DateModified,
		Contributor: p.Contributor, Publisher: p.Publisher, Genre: p.Genre,
		Creator: p.Creator, Media: p.Media, Feeds: p.Feeds,
		Transcript: p.Transcript, NLP: p.NLP, Tasks: p.Tasks,
	}
	raw, err := json.Marshal(wire)
	if err != nil {
		return nil, err
	}
	return mergeOther(raw, p.Other)
}

var postKnownFields = []string{
	"identifier", "headline", "abstract", "description", "inLanguage", "licence",
	"url", "datePublished", "dateModified", "contributor", "publisher", "genre",
	"creator", "media", "feeds", "transcript", "nlp", "tasks",
}

// UnmarshalJSON decodes a Post, collecting unrecognized top-level fields
// into Other.
func (p *Post) UnmarshalJSON(data []byte) error {
	var wire postWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*p = Post{
		Identifier: wire.Identifier, Headline: wire.Headline, Abstract: wire.Abstract,
		Description: wire.Description, InLanguage: wire.InLanguage, Licence: wire.Licence,
		URL: wire.URL, DatePublished: wire.DatePublished, DateModified: wire.DateModified,
		Contributor: wire.Contributor, Publisher: wire.Publisher, Genre: wire.Genre,
		Creator: wire.Creator, Media: wire.Media, Feeds: wire.Feeds,
		Transcript: wire.Transcript, NLP: wire.NLP, Tasks: wire.Tasks,
	}
	p.Other = extractOther(data, postKnownFields)
	return nil
}

// PostTypeName is the registry discriminator for Post records.
const PostTypeName = "post"

// PostIndexMapping is the Elasticsearch field mapping for a Post document,
// nesting the Media mapping under "media" so that each attached media's
// transcript and metadata remain independently queryable.
var PostIndexMapping = map[string]any{
	"tasks": map[string]any{"type": "object", "enabled": false},
	"media": map[string]any{
		"type":            "nested",
		"include_in_parent": true,
		"properties":      MediaIndexMapping,
	},
	"transcript": map[string]any{
		"type":       "text",
		"term_vector": "with_positions_payloads",
		"analyzer":   "payload_delimiter",
	},
	"datePublished": map[string]any{"type": "date"},
	"dateModified":  map[string]any{"type": "date"},
	"abstract":      map[string]any{"type": "text"},
	"contentUrl": map[string]any{
		"type":   "text",
		"fields": map[string]any{"keyword": map[string]any{"type": "keyword", "ignore_above": 256}},
	},
	"contributor": map[string]any{
		"properties": map[string]any{
			"name": map[string]any{
				"type":   "text",
				"fields": map[string]any{"keyword": map[string]any{"type": "keyword", "ignore_above": 256}},
			},
		},
	},
	"creator": map[string]any{
		"type":   "text",
		"fields": map[string]any{"keyword": map[string]any{"type": "keyword", "ignore_above": 256}},
	},
	"description": map[string]any{
		"type":   "text",
		"fields": map[string]any{"keyword": map[string]any{"type": "keyword", "ignore_above": 256}},
	},
	"genre": map[string]any{
		"type":   "text",
		"fields": map[string]any{"keyword": map[string]any{"type": "keyword", "ignore_above": 256}},
	},
	"headline": map[string]any{
		"type":   "text",
		"fields": map[string]any{"keyword": map[string]any{"type": "keyword", "ignore_above": 256}},
	},
	"identifier": map[string]any{"type": "keyword"},
	"inLanguage": map[string]any{
		"type":   "text",
		"fields": map[string]any{"keyword": map[string]any{"type": "keyword", "ignore_above": 256}},
	},
	"licence": map[string]any{
		"type":   "text",
		"fields": map[string]any{"keyword": map[string]any{"type": "keyword", "ignore_above": 256}},
	},
	"publisher": map[string]any{
		"type":   "text",
		"fields": map[string]any{"keyword": map[string]any{"type": "keyword", "ignore_above": 256}},
	},
	"url": map[string]any{
		"type":   "text",
		"fields": map[string]any{"keyword": map[string]any{"type": "keyword", "ignore_above": 256}},
	},
	"feeds": map[string]any{"type": "keyword"},
}

func init() {
	record.Register(PostTypeName, record.TypeInfo{
		Decode: func(raw json.RawMessage) (any, error) {
			var p Post
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, err
			}
			return p, nil
		},
		IndexMapping: PostIndexMapping,
		ExtractRefs: func(value any) []record.Guid {
			p := value.(Post)
			guids := make([]record.Guid, 0, len(p.Media))
			for _, r := range p.Media {
				guids = append(guids, r.Guid())
			}
			return guids
		},
		ResolveRefs: func(ctx context.Context, value any, resolve record.ResolveFunc) error {
			p := value.(Post)
			if err := resolver.ResolveAll(ctx, reference.ResolverFunc(resolve), p.Media); err != nil {
				return err
			}
			return nil
		},
	})
}
