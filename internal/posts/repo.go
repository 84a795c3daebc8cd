package posts

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/2beens/boardposts/internal/db"
	"github.com/2beens/boardposts/internal/telemetry/tracing"
)

var _ postsRepo = (*Repo)(nil)

// Repo runs every operation on its own connection, acquired from the provider
// and released before returning.
type Repo struct {
	provider db.Provider
}

func NewRepo(provider db.Provider) *Repo {
	return &Repo{
		provider: provider,
	}
}

func (r *Repo) withConn(
	ctx context.Context,
	op string,
	fn func(ctx context.Context, conn db.Conn) error,
	attrs ...attribute.KeyValue,
) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "postsRepo."+op, trace.WithAttributes(attrs...))
	defer span.End()

	conn, err := r.provider.Acquire(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	defer func() {
		if err := conn.Release(ctx); err != nil {
			log.Warnf("posts repo %s, release db connection: %s", op, err)
		}
	}()

	if err := fn(ctx, conn); err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return err
	}
	return nil
}

func (r *Repo) List(ctx context.Context) ([]Post, error) {
	var posts []Post
	err := r.withConn(ctx, "List", func(ctx context.Context, conn db.Conn) error {
		rows, err := conn.Query(ctx, `SELECT id, title, content FROM posts ORDER BY id DESC;`)
		if err != nil {
			return fmt.Errorf("query posts: %w", err)
		}
		defer rows.Close()

		posts, err = rows2posts(rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	return posts, nil
}

// Add inserts the post and sets its database generated ID.
func (r *Repo) Add(ctx context.Context, post *Post) error {
	return r.withConn(ctx, "Add", func(ctx context.Context, conn db.Conn) error {
		var id int
		if err := conn.QueryRow(
			ctx,
			`INSERT INTO posts (title, content) VALUES ($1, $2) RETURNING id;`,
			post.Title, post.Content,
		).Scan(&id); err != nil {
			return fmt.Errorf("insert post: %w", err)
		}
		post.ID = id
		return nil
	})
}

// Update overwrites title and content. Updating a missing post is not an error.
// The id is compared as bigint, so ids beyond the serial range just match nothing.
func (r *Repo) Update(ctx context.Context, id int64, title, content string) error {
	return r.withConn(ctx, "Update", func(ctx context.Context, conn db.Conn) error {
		tag, err := conn.Exec(
			ctx,
			`UPDATE posts SET title = $1, content = $2 WHERE id = $3::bigint;`,
			title, content, id,
		)
		if err != nil {
			return fmt.Errorf("update post %d: %w", id, err)
		}
		if tag.RowsAffected() == 0 {
			log.Tracef("post %d not updated, no such post", id)
		}
		return nil
	}, idAttr(id))
}

// Delete removes the post. Deleting a missing post is not an error.
func (r *Repo) Delete(ctx context.Context, id int64) error {
	return r.withConn(ctx, "Delete", func(ctx context.Context, conn db.Conn) error {
		tag, err := conn.Exec(ctx, `DELETE FROM posts WHERE id = $1::bigint;`, id)
		if err != nil {
			return fmt.Errorf("delete post %d: %w", id, err)
		}
		if tag.RowsAffected() == 0 {
			log.Tracef("post %d not deleted, no such post", id)
		}
		return nil
	}, idAttr(id))
}

func rows2posts(rows pgx.Rows) ([]Post, error) {
	posts := []Post{}
	for rows.Next() {
		var post Post
		if err := rows.Scan(&post.ID, &post.Title, &post.Content); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return posts, nil
}

func idAttr(id int64) attribute.KeyValue {
	return attribute.Int64("post.id", id)
}
