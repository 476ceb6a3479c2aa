package es

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ProDevCodePoland/ringrtc/internal/sim/spec"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esutil"
	"github.com/elastic/go-elasticsearch/v8/typedapi/types"
	"github.com/elastic/go-elasticsearch/v8/typedapi/types/enums/sortorder"
	"github.com/google/uuid"
)

// Document is the indexed form of a run result. Only the flat fields are
// searchable; the full result travels unindexed.
type Document struct {
	ID        string          `json:"id"`
	TestSet   string          `json:"test_set"`
	Group     string          `json:"group"`
	TestCase  string          `json:"test_case"`
	Profile   string          `json:"profile"`
	StartedAt time.Time       `json:"started_at"`
	Succeeded bool            `json:"succeeded"`
	Mos       *float64        `json:"mos,omitempty"`
	Result    json.RawMessage `json:"result"`
	IndexedAt time.Time       `json:"indexed_at"`
}

type Storer struct {
	client    *elasticsearch.TypedClient
	indexName string
}

func NewStorer(ctx context.Context, config ClientConfig) (*Storer, error) {
	if config.IndexName == "" {
		config.IndexName = DefaultIndexName
	}
	client, err := newClient(config)
	if err != nil {
		return nil, err
	}
	s := &Storer{
		client:    client,
		indexName: config.IndexName,
	}

	if err := s.EnsureIndex(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure index exists: %w", err)
	}
	return s, nil
}

func (s *Storer) Save(ctx context.Context, results []spec.RunResult) error {
	if len(results) == 0 {
		return nil
	}

	bi, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Index:      s.indexName,
		Client:     s.client,
		NumWorkers: 2,
		Refresh:    "wait_for",
	})
	if err != nil {
		return fmt.Errorf("failed to create bulk indexer: %w", err)
	}

	var failed atomic.Int64
	for _, r := range results {
		doc, err := toDocument(r)
		if err != nil {
			slog.Error("Failed to convert result", "error", err, "run", r.Key())
			failed.Add(1)
			continue
		}
		body, err := json.Marshal(doc)
		if err != nil {
			slog.Error("Failed to marshal document", "error", err, "id", doc.ID)
			failed.Add(1)
			continue
		}

		err = bi.Add(ctx, esutil.BulkIndexerItem{
			Action:     "index",
			DocumentID: doc.ID,
			Body:       bytes.NewReader(body),
			OnFailure: func(ctx context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
				failed.Add(1)
				if err != nil {
					slog.Error("Bulk index error", "error", err, "id", item.DocumentID)
				} else {
					slog.Error("Bulk index error", "status", res.Status, "error", res.Error.Type, "reason", res.Error.Reason, "id", item.DocumentID)
				}
			},
		})
		if err != nil {
			failed.Add(1)
			slog.Error("Failed to add document to bulk indexer", "error", err, "id", doc.ID)
		}
	}

	if err := bi.Close(ctx); err != nil {
		return fmt.Errorf("failed to close bulk indexer: %w", err)
	}

	stats := bi.Stats()
	slog.Info("Results stored", "storage", "es", "indexed", stats.NumIndexed, "failed", failed.Load(), "index", s.indexName)

	if n := failed.Load(); n > 0 {
		return fmt.Errorf("failed to index %d out of %d results", n, len(results))
	}
	return nil
}

// List returns stored results in start order.
func (s *Storer) List(ctx context.Context, testSet string) ([]spec.RunResult, error) {
	query := &types.Query{MatchAll: &types.MatchAllQuery{}}
	if testSet != "" {
		query = &types.Query{Term: map[string]types.TermQuery{"test_set": {Value: testSet}}}
	}

	asc := sortorder.Asc
	res, err := s.client.Search().
		Index(s.indexName).
		Query(query).
		Sort(&types.SortOptions{SortOptions: map[string]types.FieldSort{"started_at": {Order: &asc}}}).
		Size(10000).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to execute search: %w", err)
	}

	out := make([]spec.RunResult, 0, len(res.Hits.Hits))
	for _, hit := range res.Hits.Hits {
		var doc Document
		if err := json.Unmarshal(hit.Source_, &doc); err != nil {
			return nil, fmt.Errorf("failed to unmarshal document: %w", err)
		}
		var r spec.RunResult
		if err := json.Unmarshal(doc.Result, &r); err != nil {
			return nil, fmt.Errorf("failed to unmarshal result %s: %w", doc.ID, err)
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Storer) EnsureIndex(ctx context.Context) error {
	exists, err := s.client.Indices.Exists(s.indexName).Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to check if index exists: %w", err)
	}
	if exists {
		slog.Debug("Index already exists", "index", s.indexName)
		return nil
	}

	disabled := false
	result := types.NewObjectProperty()
	result.Enabled = &disabled

	mappings := types.TypeMapping{
		Properties: map[string]types.Property{
			"id":         types.NewKeywordProperty(),
			"test_set":   types.NewKeywordProperty(),
			"group":      types.NewKeywordProperty(),
			"test_case":  types.NewKeywordProperty(),
			"profile":    types.NewKeywordProperty(),
			"started_at": types.NewDateProperty(),
			"succeeded":  types.NewBooleanProperty(),
			"mos":        types.NewDoubleNumberProperty(),
			"result":     result,
			"indexed_at": types.NewDateProperty(),
		},
	}

	createRes, err := s.client.Indices.Create(s.indexName).
		Mappings(&mappings).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	if !createRes.Acknowledged {
		return fmt.Errorf("index creation was not acknowledged")
	}

	slog.Info("Index created successfully", "index", s.indexName)
	return nil
}

func toDocument(r spec.RunResult) (Document, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	payload, err := json.Marshal(r)
	if err != nil {
		return Document{}, err
	}
	doc := Document{
		ID:        r.ID,
		TestSet:   r.TestSet,
		Group:     r.Group,
		TestCase:  r.TestCase,
		Profile:   r.Profile,
		StartedAt: r.StartedAt,
		Succeeded: r.Succeeded,
		Result:    payload,
		IndexedAt: time.Now(),
	}
	if v, ok := r.Metrics[spec.MetricMos]; ok {
		doc.Mos = &v
	}
	return doc, nil
}
