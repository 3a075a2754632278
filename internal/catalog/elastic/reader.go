package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/dungeun/e-market-search/internal/catalog"
	"github.com/dungeun/e-market-search/internal/domain"
)

// DefaultIndexName is the index used when none is configured.
const DefaultIndexName = "emarket_products"

// Reader implements catalog.Reader against an Elasticsearch index. The text
// containment predicate of the relational reader maps onto a multi_match
// query here; everything else stays behind the same Reader contract.
type Reader struct {
	client    *elasticsearch.Client
	indexName string
	logger    *slog.Logger
}

type esSearchResponse struct {
	Took int `json:"took"`
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source domain.Product `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

type esErrorResponse struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
	Status int `json:"status"`
}

// New creates a new Elasticsearch-backed catalog reader.
func New(esURL, indexName string, logger *slog.Logger) (*Reader, error) {
	if indexName == "" {
		indexName = DefaultIndexName
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{esURL},
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: failed to create client: %w", err)
	}

	return &Reader{
		client:    client,
		indexName: indexName,
		logger:    logger,
	}, nil
}

// Ping checks whether the Elasticsearch cluster is reachable.
func (r *Reader) Ping(ctx context.Context) error {
	res, err := r.client.Ping(r.client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch ping: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping: unexpected status %s", res.Status())
	}
	return nil
}

// Find returns products matching the filter in the given order.
func (r *Reader) Find(ctx context.Context, f catalog.Filter, order catalog.Order, limit, offset int) ([]domain.Product, error) {
	esQuery := map[string]interface{}{
		"query":            boolQuery(f),
		"from":             offset,
		"size":             limit,
		"sort":             sortClause(order),
		"track_total_hits": true,
	}

	data, err := json.Marshal(esQuery)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch find: marshal query: %w", err)
	}

	res, err := r.client.Search(
		r.client.Search.WithIndex(r.indexName),
		r.client.Search.WithBody(bytes.NewReader(data)),
		r.client.Search.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch find: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return nil, decodeError("elasticsearch find", res.Body, res.Status())
	}

	var esResp esSearchResponse
	if err := json.NewDecoder(res.Body).Decode(&esResp); err != nil {
		return nil, fmt.Errorf("elasticsearch find: decode response: %w", err)
	}

	products := make([]domain.Product, 0, len(esResp.Hits.Hits))
	for _, hit := range esResp.Hits.Hits {
		products = append(products, hit.Source)
	}
	return products, nil
}

// Count returns the number of products matching the filter.
func (r *Reader) Count(ctx context.Context, f catalog.Filter) (int, error) {
	data, err := json.Marshal(map[string]interface{}{"query": boolQuery(f)})
	if err != nil {
		return 0, fmt.Errorf("elasticsearch count: marshal query: %w", err)
	}

	res, err := r.client.Count(
		r.client.Count.WithIndex(r.indexName),
		r.client.Count.WithBody(bytes.NewReader(data)),
		r.client.Count.WithContext(ctx),
	)
	if err != nil {
		return 0, fmt.Errorf("elasticsearch count: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return 0, decodeError("elasticsearch count", res.Body, res.Status())
	}

	var countResp struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&countResp); err != nil {
		return 0, fmt.Errorf("elasticsearch count: decode response: %w", err)
	}
	return countResp.Count, nil
}

// Aggregate groups the filtered set by category or tag using a terms
// aggregation ordered by count descending then key ascending.
func (r *Reader) Aggregate(ctx context.Context, f catalog.Filter, groupBy catalog.GroupBy) ([]domain.FacetBucket, error) {
	var field string
	switch groupBy {
	case catalog.GroupByCategory:
		field = "category_id"
	case catalog.GroupByTag:
		field = "tags"
	default:
		return nil, fmt.Errorf("elasticsearch aggregate: unknown dimension %q", groupBy)
	}

	esQuery := map[string]interface{}{
		"query": boolQuery(f),
		"size":  0,
		"aggs": map[string]interface{}{
			"buckets": map[string]interface{}{
				"terms": map[string]interface{}{
					"field": field,
					"size":  100,
					"order": []interface{}{
						map[string]interface{}{"_count": "desc"},
						map[string]interface{}{"_key": "asc"},
					},
				},
				"aggs": map[string]interface{}{
					"label": map[string]interface{}{
						"terms": map[string]interface{}{"field": "category_name", "size": 1},
					},
				},
			},
		},
	}

	data, err := json.Marshal(esQuery)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch aggregate: marshal query: %w", err)
	}

	res, err := r.client.Search(
		r.client.Search.WithIndex(r.indexName),
		r.client.Search.WithBody(bytes.NewReader(data)),
		r.client.Search.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch aggregate: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return nil, decodeError("elasticsearch aggregate", res.Body, res.Status())
	}

	var aggResp struct {
		Aggregations struct {
			Buckets struct {
				Buckets []struct {
					Key      string `json:"key"`
					DocCount int    `json:"doc_count"`
					Label    struct {
						Buckets []struct {
							Key string `json:"key"`
						} `json:"buckets"`
					} `json:"label"`
				} `json:"buckets"`
			} `json:"buckets"`
		} `json:"aggregations"`
	}
	if err := json.NewDecoder(res.Body).Decode(&aggResp); err != nil {
		return nil, fmt.Errorf("elasticsearch aggregate: decode response: %w", err)
	}

	buckets := make([]domain.FacetBucket, 0, len(aggResp.Aggregations.Buckets.Buckets))
	for _, b := range aggResp.Aggregations.Buckets.Buckets {
		fb := domain.FacetBucket{Label: b.Key, Count: b.DocCount}
		if groupBy == catalog.GroupByCategory {
			fb.ID = b.Key
			if len(b.Label.Buckets) > 0 {
				fb.Label = b.Label.Buckets[0].Key
			}
		}
		buckets = append(buckets, fb)
	}
	return buckets, nil
}

// PriceHistogram computes equal-width price buckets via a stats aggregation
// followed by a range aggregation over the generated boundaries.
func (r *Reader) PriceHistogram(ctx context.Context, f catalog.Filter, n int) ([]domain.PriceBucket, error) {
	min, max, found, err := r.priceStats(ctx, f)
	if err != nil {
		return nil, err
	}
	if !found {
		return []domain.PriceBucket{}, nil
	}

	buckets := catalog.SplitPriceRange(min, max, n)

	ranges := make([]interface{}, len(buckets))
	for i, b := range buckets {
		to := b.To
		if i == len(buckets)-1 {
			// Range aggregations exclude "to"; stretch the last bucket by one
			// minor unit so products priced exactly at max are counted.
			to++
		}
		ranges[i] = map[string]interface{}{"from": b.From, "to": to}
	}

	esQuery := map[string]interface{}{
		"query": boolQuery(f),
		"size":  0,
		"aggs": map[string]interface{}{
			"prices": map[string]interface{}{
				"range": map[string]interface{}{
					"field":  "price",
					"ranges": ranges,
				},
			},
		},
	}

	data, err := json.Marshal(esQuery)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch price histogram: marshal query: %w", err)
	}

	res, err := r.client.Search(
		r.client.Search.WithIndex(r.indexName),
		r.client.Search.WithBody(bytes.NewReader(data)),
		r.client.Search.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch price histogram: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return nil, decodeError("elasticsearch price histogram", res.Body, res.Status())
	}

	var histResp struct {
		Aggregations struct {
			Prices struct {
				Buckets []struct {
					DocCount int `json:"doc_count"`
				} `json:"buckets"`
			} `json:"prices"`
		} `json:"aggregations"`
	}
	if err := json.NewDecoder(res.Body).Decode(&histResp); err != nil {
		return nil, fmt.Errorf("elasticsearch price histogram: decode response: %w", err)
	}

	for i, b := range histResp.Aggregations.Prices.Buckets {
		if i < len(buckets) {
			buckets[i].Count = b.DocCount
		}
	}
	return buckets, nil
}

// priceStats returns the min/max price over the filtered set.
func (r *Reader) priceStats(ctx context.Context, f catalog.Filter) (min, max int64, found bool, err error) {
	esQuery := map[string]interface{}{
		"query": boolQuery(f),
		"size":  0,
		"aggs": map[string]interface{}{
			"price_stats": map[string]interface{}{
				"stats": map[string]interface{}{"field": "price"},
			},
		},
	}

	data, err := json.Marshal(esQuery)
	if err != nil {
		return 0, 0, false, fmt.Errorf("elasticsearch price stats: marshal query: %w", err)
	}

	res, err := r.client.Search(
		r.client.Search.WithIndex(r.indexName),
		r.client.Search.WithBody(bytes.NewReader(data)),
		r.client.Search.WithContext(ctx),
	)
	if err != nil {
		return 0, 0, false, fmt.Errorf("elasticsearch price stats: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return 0, 0, false, decodeError("elasticsearch price stats", res.Body, res.Status())
	}

	var statsResp struct {
		Aggregations struct {
			PriceStats struct {
				Count int      `json:"count"`
				Min   *float64 `json:"min"`
				Max   *float64 `json:"max"`
			} `json:"price_stats"`
		} `json:"aggregations"`
	}
	if err := json.NewDecoder(res.Body).Decode(&statsResp); err != nil {
		return 0, 0, false, fmt.Errorf("elasticsearch price stats: decode response: %w", err)
	}

	stats := statsResp.Aggregations.PriceStats
	if stats.Count == 0 || stats.Min == nil || stats.Max == nil {
		return 0, 0, false, nil
	}
	return int64(*stats.Min), int64(*stats.Max), true, nil
}

// boolQuery translates a catalog.Filter into an Elasticsearch bool query.
func boolQuery(f catalog.Filter) map[string]interface{} {
	var must interface{}
	if f.Text != "" {
		must = map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  f.Text,
				"fields": []string{"name^3", "description"},
				"type":   "best_fields",
			},
		}
	} else {
		must = map[string]interface{}{"match_all": map[string]interface{}{}}
	}

	var filters []interface{}
	if f.CategoryID != "" {
		filters = append(filters, map[string]interface{}{
			"term": map[string]interface{}{"category_id": f.CategoryID},
		})
	}
	if f.Status != "" {
		filters = append(filters, map[string]interface{}{
			"term": map[string]interface{}{"status": f.Status},
		})
	}
	if f.InStock {
		filters = append(filters, map[string]interface{}{
			"range": map[string]interface{}{"stock": map[string]interface{}{"gt": 0}},
		})
	}
	if f.MinRating > 0 {
		filters = append(filters, map[string]interface{}{
			"range": map[string]interface{}{"rating_avg": map[string]interface{}{"gte": f.MinRating}},
		})
	}
	if len(f.Tags) > 0 {
		// terms = any-match over the tag set.
		filters = append(filters, map[string]interface{}{
			"terms": map[string]interface{}{"tags": f.Tags},
		})
	}
	if f.MinPrice != nil || f.MaxPrice != nil {
		rangeFilter := map[string]interface{}{}
		if f.MinPrice != nil {
			rangeFilter["gte"] = *f.MinPrice
		}
		if f.MaxPrice != nil {
			rangeFilter["lte"] = *f.MaxPrice
		}
		filters = append(filters, map[string]interface{}{
			"range": map[string]interface{}{"price": rangeFilter},
		})
	}

	bq := map[string]interface{}{
		"must": []interface{}{must},
	}
	if len(filters) > 0 {
		bq["filter"] = filters
	}
	return map[string]interface{}{"bool": bq}
}

// sortClause maps a catalog order onto an ES sort with an id tiebreak.
func sortClause(order catalog.Order) []interface{} {
	var primary map[string]interface{}
	switch order {
	case catalog.OrderPriceAsc:
		primary = map[string]interface{}{"price": "asc"}
	case catalog.OrderPriceDesc:
		primary = map[string]interface{}{"price": "desc"}
	case catalog.OrderRating:
		primary = map[string]interface{}{"rating_avg": "desc"}
	default:
		primary = map[string]interface{}{"created_at": "desc"}
	}
	return []interface{}{primary, map[string]interface{}{"id": "asc"}}
}

func decodeError(op string, body io.Reader, status string) error {
	var errResp esErrorResponse
	if decErr := json.NewDecoder(body).Decode(&errResp); decErr == nil && errResp.Error.Type != "" {
		return fmt.Errorf("%s: %s: %s", op, errResp.Error.Type, errResp.Error.Reason)
	}
	return fmt.Errorf("%s: unexpected status %s", op, status)
}
