package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/gktp0528-oss/europe-market-sub001/app/feed"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const postColumns = `id, category, title, COALESCE(description, ''), COALESCE(location, ''),
		COALESCE(country_code, ''), price, COALESCE(currency, ''), image_urls, tags,
		author_id, view_count, like_count, created_at`

var queryableTables = map[string]bool{
	feed.PostsTable: true,
}

// PostRepository reads listings from the remote Postgres store.
type PostRepository struct {
	db *DB
}

func NewPostRepository(db *DB) *PostRepository {
	return &PostRepository{db: db}
}

// Query returns the posts in the inclusive range [start, end] of the filtered
// feed, newest first.
func (r *PostRepository) Query(ctx context.Context, table string, filters feed.Filters, start, end int) ([]feed.Post, error) {
	query, args, err := buildPostQuery(table, filters, start, end)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}
	defer rows.Close()

	posts := make([]feed.Post, 0, end-start+1)
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post row: %w", err)
		}
		posts = append(posts, post)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating post rows: %w", err)
	}

	return posts, nil
}

// GetPost returns nil, nil when no post has the given id.
func (r *PostRepository) GetPost(ctx context.Context, id uuid.UUID) (*feed.Post, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id)

	post, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}

	return &post, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (feed.Post, error) {
	var (
		post     feed.Post
		category string
		price    sql.NullFloat64
		authorID uuid.NullUUID
	)

	err := row.Scan(
		&post.ID, &category, &post.Title, &post.Description, &post.Location,
		&post.CountryCode, &price, &post.Currency, pq.Array(&post.ImageURLs), pq.Array(&post.Tags),
		&authorID, &post.ViewCount, &post.LikeCount, &post.CreatedAt,
	)
	if err != nil {
		return feed.Post{}, err
	}

	post.Category = feed.Category(category)
	if price.Valid {
		post.Price = &price.Float64
	}
	if authorID.Valid {
		post.AuthorID = authorID.UUID
	}

	return post, nil
}

func buildPostQuery(table string, filters feed.Filters, start, end int) (string, []any, error) {
	if !queryableTables[table] {
		return "", nil, fmt.Errorf("table %q is not queryable", table)
	}
	if start < 0 || end < start {
		return "", nil, fmt.Errorf("invalid range [%d, %d]", start, end)
	}

	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filters.Category != "" {
		where = append(where, "category = "+arg(string(filters.Category)))
	}
	if filters.CountryCode != "" {
		where = append(where, "country_code = "+arg(filters.CountryCode))
	}
	if filters.Search != "" {
		p := arg("%" + escapeLike(filters.Search) + "%")
		where = append(where, fmt.Sprintf(
			`(title ILIKE %[1]s ESCAPE '\' OR description ILIKE %[1]s ESCAPE '\' OR location ILIKE %[1]s ESCAPE '\')`, p))
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(postColumns)
	b.WriteString(" FROM ")
	b.WriteString(pq.QuoteIdentifier(table))
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY created_at DESC, id DESC")
	b.WriteString(" LIMIT " + arg(end-start+1))
	b.WriteString(" OFFSET " + arg(start))

	return b.String(), args, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
