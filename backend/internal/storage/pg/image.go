package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/itchan-dev/blog/shared/domain"
	internal_errors "github.com/itchan-dev/blog/shared/errors"
)

func (s *Storage) PostExists(ctx context.Context, id domain.PostId) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM posts WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check post %d: %w", id, err)
	}
	return exists, nil
}

// GetImageFileName returns the stored file name of the post image.
// ok is false when the post has no image; a missing post is ErrPostNotFound.
func (s *Storage) GetImageFileName(ctx context.Context, id domain.PostId) (string, bool, error) {
	var fileName sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT image_file_name FROM posts WHERE id = $1`, id).Scan(&fileName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, internal_errors.ErrPostNotFound
		}
		return "", false, fmt.Errorf("failed to get image of post %d: %w", id, err)
	}
	return fileName.String, fileName.Valid, nil
}

func (s *Storage) UpdateImageMetadata(ctx context.Context, meta domain.PostImageMetadata) error {
	result, err := s.db.ExecContext(ctx, `
	UPDATE posts
	SET image_file_name = $1, image_original_name = $2, image_size_bytes = $3, updated_at = $4
	WHERE id = $5`,
		meta.StoredFileName, meta.OriginalFileName, meta.SizeBytes, time.Now().UTC(), meta.PostId)
	if err != nil {
		return fmt.Errorf("failed to update image of post %d: %w", meta.PostId, err)
	}
	return requireAffected(result)
}

func (s *Storage) ClearImageMetadata(ctx context.Context, id domain.PostId) error {
	result, err := s.db.ExecContext(ctx, `
	UPDATE posts
	SET image_file_name = NULL, image_original_name = NULL, image_size_bytes = NULL, updated_at = $1
	WHERE id = $2`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to clear image of post %d: %w", id, err)
	}
	return requireAffected(result)
}

// GetAllImagePaths lists every referenced image file, used by the media sweep.
func (s *Storage) GetAllImagePaths(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT image_file_name FROM posts WHERE image_file_name IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("failed to query image paths: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, fmt.Errorf("failed to scan image path: %w", err)
		}
		paths = append(paths, path)
	}
	return paths, rows.Err()
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return internal_errors.ErrPostNotFound
	}
	return nil
}
