package types

import (
	"context"
	"encoding/json"

	"oasgo.dev/core/record"
	"oasgo.dev/core/reference"
)

// Media is an audio (or video) asset: a download URL, whatever transcript
// and nlp output has been attached to it, and back-references to the posts
// and feeds it was discovered through.
type Media struct {
	ContentURL     string            `json:"contentUrl"`
	ContentSize    *int64            `json:"contentSize,omitempty"`
	EncodingFormat string            `json:"encodingFormat,omitempty"`
	Duration       *Duration         `json:"duration,omitempty"`
	Transcript     *Transcript       `json:"transcript,omitempty"`
	NLP            json.RawMessage   `json:"nlp,omitempty"`
	Tasks          MediaTasks        `json:"tasks"`
	Feeds          []reference.Reference[Feed] `json:"feeds,omitempty"`
	Posts          []reference.Reference[Post] `json:"posts,omitempty"`
	Other          map[string]json.RawMessage  `json:"-"`
}

// MediaTasks tracks the background tasks that run against a Media: the
// download of the raw asset and the speech-to-text transcription.
type MediaTasks struct {
	Download TaskState `json:"download"`
	ASR      TaskState `json:"asr"`
}

// Transcript is the speech-to-text output attached to a Media.
type Transcript struct {
	Text  string           `json:"text"`
	Parts []TranscriptPart `json:"parts"`
}

// TranscriptPart is a single word (or token) of a Transcript, with its
// confidence score and timing.
type TranscriptPart struct {
	Conf  float32 `json:"conf"`
	Start float32 `json:"start"`
	End   float32 `json:"end"`
	Word  string  `json:"word"`
}

// Duration returns the part's duration in seconds.
func (p TranscriptPart) Duration() float32 {
	return p.End - p.Start
}

// mediaWire is Media's literal wire shape, used to implement custom
// marshaling without recursing back into Media's own methods.
type mediaWire struct {
	ContentURL     string                       `json:"contentUrl"`
	ContentSize    *int64                       `json:"contentSize,omitempty"`
	EncodingFormat string                       `json:"encodingFormat,omitempty"`
	Duration       json.RawMessage              `json:"duration,omitempty"`
	Transcript     *Transcript                  `json:"transcript,omitempty"`
	NLP            json.RawMessage              `json:"nlp,omitempty"`
	Tasks          MediaTasks                   `json:"tasks"`
	Feeds          []reference.Reference[Feed]  `json:"feeds,omitempty"`
	Posts          []reference.Reference[Post]  `json:"posts,omitempty"`
}

// MarshalJSON flattens Other alongside the struct's own fields, and merges
// any fields the type doesn't know about back in, the way the original
// "flatten" field behaved.
func (m Media) MarshalJSON() ([]byte, error) {
	wire := mediaWire{
		ContentURL:     m.ContentURL,
		ContentSize:    m.ContentSize,
		EncodingFormat: m.EncodingFormat,
		Transcript:     m.Transcript,
		NLP:            m.NLP,
		Tasks:          m.Tasks,
		Feeds:          m.Feeds,
		Posts:          m.Posts,
	}
	if m.Duration != nil {
		raw, err := json.Marshal(float64(*m.Duration))
		if err != nil {
			return nil, err
		}
		wire.Duration = raw
	}
	raw, err := json.Marshal(wire)
	if err != nil {
		return nil, err
	}
	return mergeOther(raw, m.Other)
}

// UnmarshalJSON decodes a Media, accepting any of the duration shapes
// ParseDurationString understands and collecting unrecognized top-level
// fields into Other.
func (m *Media) UnmarshalJSON(data []byte) error {
	var wire mediaWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	duration, err := UnmarshalDuration(wire.Duration)
	if err != nil {
		return err
	}
	*m = Media{
		ContentURL:     wire.ContentURL,
		ContentSize:    wire.ContentSize,
		EncodingFormat: wire.EncodingFormat,
		Duration:       duration,
		Transcript:     wire.Transcript,
		NLP:            wire.NLP,
		Tasks:          wire.Tasks,
		Feeds:          wire.Feeds,
		Posts:          wire.Posts,
	}
	known := []string{"contentUrl", "contentSize", "encodingFormat", "duration", "transcript", "nlp", "tasks", "feeds", "posts"}
	m.Other = extractOther(data, known)
	return nil
}

// MediaTypeName is the registry discriminator for Media records.
const MediaTypeName = "media"

// MediaIndexMapping is the Elasticsearch field mapping for a Media
// sub-document, nested under "media" in PostIndexMapping. Media records are
// not indexed as top-level documents.
var MediaIndexMapping = map[string]any{
	"tasks":          map[string]any{"type": "object", "enabled": false},
	"transcript":     map[string]any{"type": "object", "enabled": false},
	"contentUrl":     map[string]any{"type": "text"},
	"duration":       map[string]any{"type": "float"},
	"contentSize":    map[string]any{"type": "float"},
	"encodingFormat": map[string]any{"type": "keyword"},
	"nlp":            map[string]any{"type": "object"},
	"posts":          map[string]any{"type": "keyword"},
	"feeds":          map[string]any{"type": "keyword"},
}

func init() {
	record.Register(MediaTypeName, record.TypeInfo{
		Decode: func(raw json.RawMessage) (any, error) {
			var m Media
			if err := json.Unmarshal(raw, &m); err != nil {
				return nil, err
			}
			return m, nil
		},
		IndexMapping: MediaIndexMapping,
		ExtractRefs: func(value any) []record.Guid {
			m := value.(Media)
			guids := make([]record.Guid, 0, len(m.Feeds)+len(m.Posts))
			for _, r := range m.Feeds {
				guids = append(guids, r.Guid())
			}
			for _, r := range m.Posts {
				guids = append(guids, r.Guid())
			}
			return guids
		},
		ResolveRefs: func(ctx context.Context, value any, resolve record.ResolveFunc) error {
			// Media's feeds/posts are back-references kept for display only;
			// nothing in the core needs them resolved eagerly.
			return nil
		},
	})
}
