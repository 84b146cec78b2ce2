package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/itchan-dev/blog/shared/domain"
	internal_errors "github.com/itchan-dev/blog/shared/errors"
	sharedpg "github.com/itchan-dev/blog/shared/storage/pg"
)

const postColumns = `
	id,
	title,
	body,
	created_at,
	updated_at,
	image_file_name,
	image_original_name,
	image_size_bytes`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*domain.Post, error) {
	var (
		post         domain.Post
		fileName     sql.NullString
		originalName sql.NullString
		size         sql.NullInt64
	)
	if err := row.Scan(&post.Id, &post.Title, &post.Body, &post.CreatedAt, &post.UpdatedAt, &fileName, &originalName, &size); err != nil {
		return nil, err
	}
	if fileName.Valid {
		post.Image = &domain.PostImageMetadata{
			PostId:           post.Id,
			StoredFileName:   fileName.String,
			OriginalFileName: originalName.String,
			SizeBytes:        size.Int64,
		}
	}
	return &post, nil
}

func (s *Storage) CreatePost(ctx context.Context, title domain.PostTitle, body domain.PostBody) (domain.PostId, error) {
	var id domain.PostId
	createdTs := time.Now().UTC().Round(time.Microsecond) // database anyway round to microsecond
	err := s.db.QueryRowContext(ctx, `
	INSERT INTO posts(title, body, created_at, updated_at)
	VALUES($1, $2, $3, $3)
	RETURNING id`, title, body, createdTs).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert post: %w", err)
	}
	return id, nil
}

func (s *Storage) GetPost(ctx context.Context, id domain.PostId) (*domain.Post, error) {
	row := s.db.QueryRowContext(ctx, `SELECT`+postColumns+`
	FROM posts
	WHERE id = $1`, id)
	post, err := scanPost(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, internal_errors.ErrPostNotFound
		}
		return nil, fmt.Errorf("failed to get post %d: %w", id, err)
	}
	return post, nil
}

// ListPosts returns posts newest first and the total number of posts.
// Both are read from one snapshot so the total matches the page.
func (s *Storage) ListPosts(ctx context.Context, limit, offset int) ([]*domain.Post, int, error) {
	var (
		total int
		posts []*domain.Post
	)
	opts := &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	err := sharedpg.WithTx(ctx, s.db, opts, func(tx *sql.Tx) error {
		var err error
		if total, err = countPosts(ctx, tx); err != nil {
			return err
		}
		posts, err = listPosts(ctx, tx, limit, offset)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

func countPosts(ctx context.Context, q sharedpg.Querier) (int, error) {
	var total int
	if err := q.QueryRowContext(ctx, `SELECT count(*) FROM posts`).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count posts: %w", err)
	}
	return total, nil
}

func listPosts(ctx context.Context, q sharedpg.Querier, limit, offset int) ([]*domain.Post, error) {
	rows, err := q.QueryContext(ctx, `SELECT`+postColumns+`
	FROM posts
	ORDER BY created_at DESC, id DESC
	LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	posts := make([]*domain.Post, 0, limit)
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post row: %w", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate post rows: %w", err)
	}
	return posts, nil
}

func (s *Storage) DeletePost(ctx context.Context, id domain.PostId) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete post %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return internal_errors.ErrPostNotFound
	}
	return nil
}
