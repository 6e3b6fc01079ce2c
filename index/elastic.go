// Package index keeps an Elasticsearch index of every record, wired so
// that a Post's embedded media stay queryable as nested documents and a
// later patch to a Media (a finished transcript, say) updates every Post
// that embeds it without a full re-index.
package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/elastic/go-elasticsearch/v7"

	"oasgo.dev/core/record"
)

// Client wraps a single Elasticsearch index: the HTTP client, the index
// name, and the field mapping it was created with. It is stateless beyond
// that, the same way the teacher's document-store client is.
type Client struct {
	es     *elasticsearch.Client
	index  string
	fields map[string]any
}

// Config names the Elasticsearch server and index a Client operates on.
type Config struct {
	Addresses []string
	Username  string
	Password  string
	Index     string
}

// New builds a Client connected to the given Elasticsearch server, bound to
// a single index. fields is merged into the index's "properties" mapping
// when EnsureIndex creates it.
func New(cfg Config, fields map[string]any) (*Client, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("index: building elasticsearch client: %w", err)
	}
	return &Client{es: es, index: cfg.Index, fields: fields}, nil
}

// Index returns the name of the index the client operates on.
func (c *Client) Index() string { return c.index }

// indexSettings is the payload used to create the index: the field
// mapping, plus the custom analyzer used for transcript term-vector
// payloads (word|start:end:conf:media_index tokens, see
// transcriptTokenString).
func (c *Client) indexSettings() map[string]any {
	return map[string]any{
		"mappings": map[string]any{"properties": c.fields},
		"settings": map[string]any{
			"analysis": map[string]any{
				"analyzer": map[string]any{
					"payload_delimiter": map[string]any{
						"tokenizer": "whitespace",
						"filter":    []string{"lowercase", "oas_stemmer", "payload_delimiter_filter"},
					},
				},
				"filter": map[string]any{
					"oas_stemmer": map[string]any{
						"type":     "stemmer",
						"language": "light_german",
					},
					"payload_delimiter_filter": map[string]any{
						"type":     "delimited_payload",
						"delimiter": "|",
						"encoding":  "identity",
					},
				},
			},
		},
	}
}

// EnsureIndex creates the index with its mapping if it doesn't already
// exist. If deleteFirst is set, an existing index is dropped and recreated
// unconditionally; orchestrator.New calls it with deleteFirst false.
func (c *Client) EnsureIndex(ctx context.Context, deleteFirst bool) error {
	existsRes, err := c.es.Indices.Exists([]string{c.index}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("index: checking index existence: %w", err)
	}
	defer existsRes.Body.Close()
	exists := existsRes.StatusCode == 200

	if exists && deleteFirst {
		delRes, err := c.es.Indices.Delete([]string{c.index}, c.es.Indices.Delete.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("index: deleting index: %w", err)
		}
		delRes.Body.Close()
		exists = false
	}

	if exists {
		return nil
	}

	body, err := json.Marshal(c.indexSettings())
	if err != nil {
		return err
	}
	createRes, err := c.es.Indices.Create(c.index,
		c.es.Indices.Create.WithBody(bytes.NewReader(body)),
		c.es.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("index: creating index: %w", err)
	}
	defer createRes.Body.Close()
	if createRes.IsError() {
		return fmt.Errorf("index: creating index: %s", createRes.String())
	}
	return nil
}

// setRefreshInterval toggles the index's refresh interval, used to disable
// refreshing (and its associated cost) around a bulk write and restore the
// default afterwards.
func (c *Client) setRefreshInterval(ctx context.Context, interval string) error {
	body, _ := json.Marshal(map[string]any{
		"index": map[string]any{"refresh_interval": interval},
	})
	res, err := c.es.Indices.PutSettings(bytes.NewReader(body),
		c.es.Indices.PutSettings.WithIndex(c.index),
		c.es.Indices.PutSettings.WithContext(ctx),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	return nil
}

// BulkStats summarizes the outcome of a PutMany call.
type BulkStats struct {
	Took    int
	Errors  bool
	Created int
	Updated int
	Deleted int
	Failed  int
}

// PutMany indexes a batch of records in a single Elasticsearch bulk
// request. The index's refresh interval is disabled for the duration of
// the write and restored to the default afterwards, since bulk-indexing
// with refreshing enabled is dramatically slower.
func (c *Client) PutMany(ctx context.Context, recs []record.UntypedRecord) (BulkStats, error) {
	if len(recs) == 0 {
		return BulkStats{}, nil
	}

	if err := c.setRefreshInterval(ctx, "-1"); err != nil {
		return BulkStats{}, fmt.Errorf("index: disabling refresh: %w", err)
	}
	defer c.setRefreshInterval(ctx, "null")

	var buf bytes.Buffer
	for _, rec := range recs {
		id := string(rec.Guid())
		meta, _ := json.Marshal(map[string]any{
			"index": map[string]any{"_index": c.index, "_id": id, "routing": id},
		})
		doc, err := rec.IntoJSONObject()
		if err != nil {
			continue
		}
		body, err := json.Marshal(doc)
		if err != nil {
			continue
		}
		buf.Write(meta)
		buf.WriteByte('\n')
		buf.Write(body)
		buf.WriteByte('\n')
	}

	res, err := c.es.Bulk(bytes.NewReader(buf.Bytes()),
		c.es.Bulk.WithIndex(c.index),
		c.es.Bulk.WithContext(ctx),
	)
	if err != nil {
		return BulkStats{}, fmt.Errorf("index: bulk request: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return BulkStats{}, fmt.Errorf("index: bulk request failed: %s", res.String())
	}

	var parsed struct {
		Took   int  `json:"took"`
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			Result string `json:"result"`
			Status int    `json:"status"`
			Error  *struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return BulkStats{}, fmt.Errorf("index: decoding bulk response: %w", err)
	}

	stats := BulkStats{Took: parsed.Took, Errors: parsed.Errors}
	for _, item := range parsed.Items {
		for _, action := range item {
			switch {
			case action.Error != nil:
				stats.Failed++
			case action.Result == "created":
				stats.Created++
			case action.Result == "updated":
				stats.Updated++
			case action.Result == "deleted":
				stats.Deleted++
			}
		}
	}
	return stats, nil
}

// UpdateNested patches every nested document under field whose embedded
// "$meta.guid" matches rec's guid, across every document in the index. It
// is how a Post that embeds a Media picks up that Media's finished
// transcript without the Post itself being re-indexed wholesale.
func (c *Client) UpdateNested(ctx context.Context, field string, rec record.UntypedRecord) error {
	doc, err := rec.IntoJSONObject()
	if err != nil {
		return err
	}
	const script = `
def nested_docs = ctx._source[params.field].findAll(nested_doc -> nested_doc['$meta'].guid == params.guid);
for (nested_doc in nested_docs) {
    for (change in params.changes.entrySet()) {
        nested_doc[change.getKey()] = change.getValue()
    }
}`
	body, err := json.Marshal(map[string]any{
		"query": map[string]any{
			"match": map[string]any{field + ".$meta.guid": string(rec.Guid())},
		},
		"script": map[string]any{
			"source": script,
			"params": map[string]any{
				"field":   field,
				"guid":    string(rec.Guid()),
				"changes": doc,
			},
		},
	})
	if err != nil {
		return err
	}

	res, err := c.es.UpdateByQuery([]string{c.index},
		c.es.UpdateByQuery.WithBody(bytes.NewReader(body)),
		c.es.UpdateByQuery.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("index: update_by_query: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index: update_by_query failed: %s", res.String())
	}
	return nil
}

// Search runs a raw query DSL body against the index and returns the
// matching records' untyped documents.
func (c *Client) Search(ctx context.Context, query map[string]any) ([]record.UntypedRecord, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}
	res, err := c.es.Search(
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(bytes.NewReader(body)),
		c.es.Search.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("index: search failed: %s", res.String())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source json.RawMessage `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("index: decoding search response: %w", err)
	}

	out := make([]record.UntypedRecord, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		rec, err := record.UntypedRecordFromJSONObject(hit.Source)
		if err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// FindWithTextQuery runs a simple query_string search against the index.
func (c *Client) FindWithTextQuery(ctx context.Context, query string) ([]record.UntypedRecord, error) {
	return c.Search(ctx, map[string]any{
		"query": map[string]any{"query_string": map[string]any{"query": strings.TrimSpace(query)}},
	})
}
