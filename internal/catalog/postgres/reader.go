package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/dungeun/e-market-search/internal/catalog"
	"github.com/dungeun/e-market-search/internal/domain"
)

// Querier is the subset of pgxpool.Pool used by the reader. Satisfied by
// *pgxpool.Pool and by pgxmock in tests.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Reader implements catalog.Reader against PostgreSQL. Tags are stored as a
// text[] column; any-match tag filtering uses the array overlap operator.
type Reader struct {
	db Querier
}

// NewReader creates a new PostgreSQL-backed catalog reader.
func NewReader(db Querier) *Reader {
	return &Reader{db: db}
}

const productColumns = `p.id, p.name, p.description, p.price, p.stock, p.status,
		p.category_id, coalesce(c.name, ''), p.tags, coalesce(p.image_url, ''),
		p.order_count, p.review_count, p.wishlist_count, p.rating_avg,
		p.created_at, p.updated_at`

// buildWhere translates a catalog.Filter into SQL conditions and args.
func buildWhere(f catalog.Filter) (string, []any) {
	var (
		conditions []string
		args       []any
	)

	next := func() int { return len(args) + 1 }

	if f.Text != "" {
		conditions = append(conditions, fmt.Sprintf("(p.name ILIKE $%d OR p.description ILIKE $%d)", next(), next()))
		args = append(args, "%"+f.Text+"%")
	}
	if f.CategoryID != "" {
		conditions = append(conditions, fmt.Sprintf("p.category_id = $%d", next()))
		args = append(args, f.CategoryID)
	}
	if f.MinPrice != nil {
		conditions = append(conditions, fmt.Sprintf("p.price >= $%d", next()))
		args = append(args, *f.MinPrice)
	}
	if f.MaxPrice != nil {
		conditions = append(conditions, fmt.Sprintf("p.price <= $%d", next()))
		args = append(args, *f.MaxPrice)
	}
	if f.InStock {
		conditions = append(conditions, "p.stock > 0")
	}
	if f.MinRating > 0 {
		conditions = append(conditions, fmt.Sprintf("p.rating_avg >= $%d", next()))
		args = append(args, f.MinRating)
	}
	if len(f.Tags) > 0 {
		conditions = append(conditions, fmt.Sprintf("p.tags && $%d", next()))
		args = append(args, f.Tags)
	}
	if f.Status != "" {
		conditions = append(conditions, fmt.Sprintf("p.status = $%d", next()))
		args = append(args, f.Status)
	}

	if len(conditions) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

func orderClause(order catalog.Order) string {
	switch order {
	case catalog.OrderPriceAsc:
		return "ORDER BY p.price ASC, p.id ASC"
	case catalog.OrderPriceDesc:
		return "ORDER BY p.price DESC, p.id ASC"
	case catalog.OrderRating:
		return "ORDER BY p.rating_avg DESC, p.id ASC"
	default:
		return "ORDER BY p.created_at DESC, p.id ASC"
	}
}

// Find returns products matching the filter in the given order.
func (r *Reader) Find(ctx context.Context, f catalog.Filter, order catalog.Order, limit, offset int) ([]domain.Product, error) {
	where, args := buildWhere(f)

	query := fmt.Sprintf(`
		SELECT %s
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		%s
		%s
		LIMIT $%d OFFSET $%d`,
		productColumns, where, orderClause(order), len(args)+1, len(args)+2,
	)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find products: %w", err)
	}
	defer rows.Close()

	products := []domain.Product{}
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(
			&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.Status,
			&p.CategoryID, &p.CategoryName, &p.Tags, &p.ImageURL,
			&p.OrderCount, &p.ReviewCount, &p.WishlistCount, &p.RatingAvg,
			&p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}

	return products, nil
}

// Count returns the number of products matching the filter.
func (r *Reader) Count(ctx context.Context, f catalog.Filter) (int, error) {
	where, args := buildWhere(f)

	query := fmt.Sprintf("SELECT count(*) FROM products p %s", where)

	var n int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

// Aggregate groups the filtered set by category or tag.
func (r *Reader) Aggregate(ctx context.Context, f catalog.Filter, groupBy catalog.GroupBy) ([]domain.FacetBucket, error) {
	where, args := buildWhere(f)

	var query string
	switch groupBy {
	case catalog.GroupByCategory:
		query = fmt.Sprintf(`
			SELECT p.category_id, coalesce(c.name, ''), count(*)
			FROM products p
			LEFT JOIN categories c ON c.id = p.category_id
			%s
			GROUP BY p.category_id, c.name
			ORDER BY count(*) DESC, coalesce(c.name, '') ASC`, where)
	case catalog.GroupByTag:
		query = fmt.Sprintf(`
			SELECT '', t.tag, count(*)
			FROM products p, unnest(p.tags) AS t(tag)
			%s
			GROUP BY t.tag
			ORDER BY count(*) DESC, t.tag ASC`, where)
	default:
		return nil, fmt.Errorf("aggregate products: unknown dimension %q", groupBy)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("aggregate products by %s: %w", groupBy, err)
	}
	defer rows.Close()

	buckets := []domain.FacetBucket{}
	for rows.Next() {
		var b domain.FacetBucket
		if err := rows.Scan(&b.ID, &b.Label, &b.Count); err != nil {
			return nil, fmt.Errorf("scan facet bucket: %w", err)
		}
		buckets = append(buckets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate facet buckets: %w", err)
	}

	return buckets, nil
}

// PriceHistogram computes equal-width price buckets with accurate counts in
// two round trips: min/max over the filtered set, then one aggregate with a
// FILTER clause per bucket.
func (r *Reader) PriceHistogram(ctx context.Context, f catalog.Filter, n int) ([]domain.PriceBucket, error) {
	where, args := buildWhere(f)

	var min, max *int64
	rangeQuery := fmt.Sprintf("SELECT min(p.price), max(p.price) FROM products p %s", where)
	if err := r.db.QueryRow(ctx, rangeQuery, args...).Scan(&min, &max); err != nil {
		return nil, fmt.Errorf("price range: %w", err)
	}
	if min == nil || max == nil {
		// Empty filtered set.
		return []domain.PriceBucket{}, nil
	}

	buckets := catalog.SplitPriceRange(*min, *max, n)

	selects := make([]string, len(buckets))
	for i, b := range buckets {
		cmp := "<"
		if i == len(buckets)-1 {
			cmp = "<="
		}
		selects[i] = fmt.Sprintf("count(*) FILTER (WHERE p.price >= %d AND p.price %s %d)", b.From, cmp, b.To)
	}

	countQuery := fmt.Sprintf("SELECT %s FROM products p %s", strings.Join(selects, ", "), where)

	dests := make([]any, len(buckets))
	for i := range buckets {
		dests[i] = &buckets[i].Count
	}
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(dests...); err != nil {
		return nil, fmt.Errorf("price histogram: %w", err)
	}

	return buckets, nil
}
