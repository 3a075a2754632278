package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dungeun/e-market-search/internal/catalog"
	"github.com/dungeun/e-market-search/internal/domain"
)

var productRowColumns = []string{
	"id", "name", "description", "price", "stock", "status",
	"category_id", "category_name", "tags", "image_url",
	"order_count", "review_count", "wishlist_count", "rating_avg",
	"created_at", "updated_at",
}

func newMock(t *testing.T) (pgxmock.PgxPoolIface, *Reader) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewReader(mock)
}

func sampleRow(rows *pgxmock.Rows, id string) *pgxmock.Rows {
	now := time.Now()
	return rows.AddRow(
		id, "Blue Cotton Shirt", "Soft everyday shirt", int64(2500), 10, "active",
		"apparel", "Apparel", []string{"cotton"}, "https://img/p.jpg",
		40, 10, 5, 4.5,
		now, now,
	)
}

func TestFind_TextAndStatusFilter(t *testing.T) {
	mock, reader := newMock(t)

	mock.ExpectQuery(`SELECT .+ FROM products p\s+LEFT JOIN categories c`).
		WithArgs("%shirt%", "active", 20, 0).
		WillReturnRows(sampleRow(pgxmock.NewRows(productRowColumns), "p1"))

	products, err := reader.Find(context.Background(), catalog.Filter{
		Text:   "shirt",
		Status: domain.ProductStatusActive,
	}, catalog.OrderNewest, 20, 0)

	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "p1", products[0].ID)
	assert.Equal(t, []string{"cotton"}, products[0].Tags)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFind_TagOverlapAndPriceRange(t *testing.T) {
	mock, reader := newMock(t)

	minPrice, maxPrice := int64(1000), int64(5000)

	mock.ExpectQuery(`SELECT .+ FROM products p`).
		WithArgs(minPrice, maxPrice, []string{"cotton", "summer"}, 10, 20).
		WillReturnRows(pgxmock.NewRows(productRowColumns))

	products, err := reader.Find(context.Background(), catalog.Filter{
		MinPrice: &minPrice,
		MaxPrice: &maxPrice,
		Tags:     []string{"cotton", "summer"},
	}, catalog.OrderPriceAsc, 10, 20)

	require.NoError(t, err)
	assert.Empty(t, products)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCount(t *testing.T) {
	mock, reader := newMock(t)

	mock.ExpectQuery(`SELECT count\(\*\) FROM products p`).
		WithArgs("%shirt%").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(7))

	n, err := reader.Count(context.Background(), catalog.Filter{Text: "shirt"})
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAggregate_ByCategory(t *testing.T) {
	mock, reader := newMock(t)

	mock.ExpectQuery(`GROUP BY p\.category_id, c\.name`).
		WithArgs("active").
		WillReturnRows(pgxmock.NewRows([]string{"category_id", "name", "count"}).
			AddRow("apparel", "Apparel", 12).
			AddRow("footwear", "Footwear", 4))

	buckets, err := reader.Aggregate(context.Background(), catalog.Filter{
		Status: domain.ProductStatusActive,
	}, catalog.GroupByCategory)

	require.NoError(t, err)
	require.Len(t, buckets, 2)
	assert.Equal(t, domain.FacetBucket{ID: "apparel", Label: "Apparel", Count: 12}, buckets[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAggregate_ByTag(t *testing.T) {
	mock, reader := newMock(t)

	mock.ExpectQuery(`unnest\(p\.tags\) AS t\(tag\)`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "tag", "count"}).
			AddRow("", "cotton", 9))

	buckets, err := reader.Aggregate(context.Background(), catalog.Filter{}, catalog.GroupByTag)

	require.NoError(t, err)
	require.Len(t, buckets, 1)
	assert.Equal(t, "cotton", buckets[0].Label)
	assert.Empty(t, buckets[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPriceHistogram(t *testing.T) {
	mock, reader := newMock(t)

	minPrice, maxPrice := int64(100), int64(500)
	mock.ExpectQuery(`SELECT min\(p\.price\), max\(p\.price\) FROM products p`).
		WillReturnRows(pgxmock.NewRows([]string{"min", "max"}).AddRow(&minPrice, &maxPrice))

	mock.ExpectQuery(`count\(\*\) FILTER \(WHERE p\.price >= 100 AND p\.price < 180\)`).
		WillReturnRows(pgxmock.NewRows([]string{"b1", "b2", "b3", "b4", "b5"}).
			AddRow(3, 0, 1, 0, 2))

	buckets, err := reader.PriceHistogram(context.Background(), catalog.Filter{}, 5)
	require.NoError(t, err)
	require.Len(t, buckets, 5)

	assert.Equal(t, domain.PriceBucket{From: 100, To: 180, Count: 3}, buckets[0])
	assert.Equal(t, domain.PriceBucket{From: 260, To: 340, Count: 1}, buckets[2])
	assert.Equal(t, domain.PriceBucket{From: 420, To: 500, Count: 2}, buckets[4])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPriceHistogram_EmptySet(t *testing.T) {
	mock, reader := newMock(t)

	mock.ExpectQuery(`SELECT min\(p\.price\), max\(p\.price\) FROM products p`).
		WithArgs("%nothing%").
		WillReturnRows(pgxmock.NewRows([]string{"min", "max"}).AddRow(nil, nil))

	buckets, err := reader.PriceHistogram(context.Background(), catalog.Filter{Text: "nothing"}, 5)
	require.NoError(t, err)
	assert.Empty(t, buckets)
	assert.NoError(t, mock.ExpectationsWereMet())
}
