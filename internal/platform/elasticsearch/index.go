package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/elastic/go-elasticsearch/v8/esutil"
	"go.uber.org/zap"
)

const ReportsIndexName = "reports"

// GeoPoint is an Elasticsearch geo_point.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// ReportDocument is the searchable projection of a report.
type ReportDocument struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	Coordinates *GeoPoint `json:"coordinates,omitempty"`
	Category    string    `json:"category"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func reportsMapping() string {
	mapping := map[string]interface{}{
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"id":          map[string]interface{}{"type": "keyword"},
				"user_id":     map[string]interface{}{"type": "keyword"},
				"title":       map[string]interface{}{"type": "text"},
				"description": map[string]interface{}{"type": "text"},
				"location":    map[string]interface{}{"type": "text"},
				"coordinates": map[string]interface{}{"type": "geo_point"},
				"category":    map[string]interface{}{"type": "keyword"},
				"status":      map[string]interface{}{"type": "keyword"},
				"created_at":  map[string]interface{}{"type": "date"},
				"updated_at":  map[string]interface{}{"type": "date"},
			},
		},
	}
	b, _ := json.Marshal(mapping)
	return string(b)
}

// ReportIndex reads and writes the reports index.
type ReportIndex struct {
	client *ESClientWrapper
	index  string
	logger *zap.Logger
}

// NewReportIndex returns nil when no client is configured.
func NewReportIndex(client *ESClientWrapper, logger *zap.Logger) *ReportIndex {
	if client == nil {
		return nil
	}
	return &ReportIndex{client: client, index: ReportsIndexName, logger: logger.Named("ReportIndex")}
}

// EnsureIndex creates the reports index with its mapping if it does not already exist.
func (i *ReportIndex) EnsureIndex(ctx context.Context) error {
	res, err := esapi.IndicesExistsRequest{Index: []string{i.index}}.Do(ctx, i.client.Client)
	if err != nil {
		return fmt.Errorf("error checking if reports index exists: %w", err)
	}
	res.Body.Close()

	if res.StatusCode == http.StatusOK {
		i.logger.Info("Reports index already exists", zap.String("index_name", i.index))
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("error checking if reports index exists: status %s", res.Status())
	}

	createRes, err := esapi.IndicesCreateRequest{
		Index: i.index,
		Body:  strings.NewReader(reportsMapping()),
	}.Do(ctx, i.client.Client)
	if err != nil {
		return fmt.Errorf("error creating reports index %s: %w", i.index, err)
	}
	defer createRes.Body.Close()
	if createRes.IsError() {
		return responseError("create reports index", createRes)
	}

	i.logger.Info("Reports index created", zap.String("index_name", i.index))
	return nil
}

// Index upserts one document.
func (i *ReportIndex) Index(ctx context.Context, doc ReportDocument) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("error marshalling report %s for ES: %w", doc.ID, err)
	}
	res, err := esapi.IndexRequest{
		Index:      i.index,
		DocumentID: doc.ID,
		Body:       bytes.NewReader(body),
	}.Do(ctx, i.client.Client)
	if err != nil {
		return fmt.Errorf("indexing report %s: %w", doc.ID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("index report "+doc.ID, res)
	}
	return nil
}

// Delete removes one document. A missing document is not an error.
func (i *ReportIndex) Delete(ctx context.Context, id string) error {
	res, err := esapi.DeleteRequest{Index: i.index, DocumentID: id}.Do(ctx, i.client.Client)
	if err != nil {
		return fmt.Errorf("deleting report %s from index: %w", id, err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return responseError("delete report "+id, res)
	}
	return nil
}

// Search runs a multi_match query and returns matching report ids in score order.
func (i *ReportIndex) Search(ctx context.Context, q string, from, size int) ([]string, int64, error) {
	query := map[string]interface{}{
		"from": from,
		"size": size,
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":     q,
				"fields":    []string{"title^3", "description", "location^2", "category^2"},
				"fuzziness": "AUTO",
			},
		},
		"_source": false,
	}
	body, err := json.Marshal(query)
	if err != nil {
		return nil, 0, err
	}

	res, err := i.client.Search(
		i.client.Search.WithContext(ctx),
		i.client.Search.WithIndex(i.index),
		i.client.Search.WithBody(bytes.NewReader(body)),
		i.client.Search.WithTrackTotalHits(true),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("searching reports: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, 0, responseError("search reports", res)
	}

	var parsed struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				ID string `json:"_id"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, 0, fmt.Errorf("decoding search response: %w", err)
	}
	ids := make([]string, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		ids = append(ids, h.ID)
	}
	return ids, parsed.Hits.Total.Value, nil
}

// BulkWriter streams documents through esutil.BulkIndexer.
type BulkWriter struct {
	indexer esutil.BulkIndexer
	logger  *zap.Logger
}

// NewBulkWriter starts a bulk indexer flushing every flushBytes.
func (i *ReportIndex) NewBulkWriter(workers, flushBytes int) (*BulkWriter, error) {
	indexer, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Index:         i.index,
		Client:        i.client.Client,
		NumWorkers:    workers,
		FlushBytes:    flushBytes,
		FlushInterval: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("creating bulk indexer: %w", err)
	}
	return &BulkWriter{indexer: indexer, logger: i.logger}, nil
}

func (w *BulkWriter) Add(ctx context.Context, doc ReportDocument) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return w.indexer.Add(ctx, esutil.BulkIndexerItem{
		Action:     "index",
		DocumentID: doc.ID,
		Body:       bytes.NewReader(body),
		OnFailure: func(_ context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
			if err != nil {
				w.logger.Error("Bulk index failed", zap.String("id", item.DocumentID), zap.Error(err))
				return
			}
			w.logger.Error("Bulk index rejected",
				zap.String("id", item.DocumentID),
				zap.String("type", res.Error.Type),
				zap.String("reason", res.Error.Reason))
		},
	})
}

// Close flushes pending items and reports how many were indexed and how many failed.
func (w *BulkWriter) Close(ctx context.Context) (indexed, failed uint64, err error) {
	if err := w.indexer.Close(ctx); err != nil {
		return 0, 0, err
	}
	stats := w.indexer.Stats()
	return stats.NumIndexed, stats.NumFailed, nil
}
