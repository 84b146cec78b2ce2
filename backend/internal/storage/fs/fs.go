package fs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/itchan-dev/blog/shared/config"
	"github.com/itchan-dev/blog/shared/domain"
	internal_errors "github.com/itchan-dev/blog/shared/errors"
	"github.com/itchan-dev/blog/shared/logger"
	"github.com/itchan-dev/blog/shared/validation"
)

// saveAttempts bounds regeneration of a name that already exists on disk.
const saveAttempts = 5

// Storage keeps post images under <root>/<postId>/<generated name>.
// Every path it touches goes through the resolver.
type Storage struct {
	resolver     *PathResolver
	names        *FileNameGenerator
	allowedMimes map[string]bool
}

func New(cfg config.Upload, opts ...FileNameOption) (*Storage, error) {
	cfg = cfg.WithDefaults()

	resolver, err := NewPathResolver(cfg.Root)
	if err != nil {
		return nil, err
	}

	if cfg.AutoCreate {
		// 0755 is masked by umask
		if err := os.MkdirAll(resolver.Root(), 0755); err != nil {
			return nil, fmt.Errorf("failed to create root storage directory %s: %w", resolver.Root(), err)
		}
	} else if info, err := os.Stat(resolver.Root()); err != nil {
		return nil, fmt.Errorf("upload root %s is not accessible: %w", resolver.Root(), err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("upload root %s is not a directory", resolver.Root())
	}

	return &Storage{
		resolver:     resolver,
		names:        NewFileNameGenerator(cfg.AllowedExtensions, cfg.DefaultExtension, opts...),
		allowedMimes: validation.BuildAllowedMimeMap(cfg.AllowedMimeTypes),
	}, nil
}

// Root returns the canonical upload root.
func (s *Storage) Root() string {
	return s.resolver.Root()
}

// Save writes the payload to a freshly named file in the post directory and
// returns its path relative to the root, slash separated.
func (s *Storage) Save(postId domain.PostId, payload *domain.ImagePayload) (string, error) {
	if payload == nil {
		return "", &internal_errors.ValidationError{Message: "image file is empty"}
	}
	postDir, err := s.postDirectory(postId)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(postDir, 0755); err != nil {
		return "", &internal_errors.StorageError{Op: "create post directory", Err: err}
	}

	for attempt := 0; attempt < saveAttempts; attempt++ {
		name := s.names.Generate(payload.Filename)
		fullPath, err := s.resolver.ResolveIn(postDir, name)
		if err != nil {
			return "", err
		}

		err = writeNewFile(fullPath, payload.Data)
		if errors.Is(err, fs.ErrExist) {
			logger.Log.Debug("generated image name already taken, retrying", "post_id", postId, "name", name)
			continue
		}
		if err != nil {
			return "", &internal_errors.StorageError{Op: "write image", Err: err}
		}

		return relativePath(postId, name), nil
	}

	return "", &internal_errors.StorageError{Op: "write image", Err: fmt.Errorf("no free file name after %d attempts", saveAttempts)}
}

// writeNewFile creates path exclusively and removes it again on any failure,
// so a returned nil means the whole payload is on disk.
func writeNewFile(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path) // best effort
		return fmt.Errorf("failed to write file data: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("failed to sync file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("failed to close file: %w", err)
	}
	return nil
}

// Load reads the whole file at a root-relative path.
func (s *Storage) Load(relPath string) ([]byte, error) {
	fullPath, err := s.resolver.Resolve(relPath)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Log.Debug("image file not found", "path", relPath)
			return nil, internal_errors.ErrImageFileMissing
		}
		return nil, &internal_errors.StorageError{Op: "read image", Err: err}
	}
	return data, nil
}

// Delete removes a single file. A file that is already gone is not an error.
func (s *Storage) Delete(relPath string) error {
	fullPath, err := s.resolver.Resolve(relPath)
	if err != nil {
		return err
	}
	if fullPath == s.resolver.Root() {
		return &internal_errors.SecurityError{Path: relPath}
	}

	if err := os.Remove(fullPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &internal_errors.StorageError{Op: "delete image", Err: err}
	}
	return nil
}

// DeletePostDirectory removes everything stored for a post. Missing directory is a no-op.
func (s *Storage) DeletePostDirectory(postId domain.PostId) error {
	postDir, err := s.postDirectory(postId)
	if err != nil {
		return err
	}
	// postDirectory already resolved it, check again right before the recursive delete
	if postDir == s.resolver.Root() || !within(s.resolver.Root(), postDir) {
		return &internal_errors.SecurityError{Path: postDir}
	}

	if err := os.RemoveAll(postDir); err != nil {
		return &internal_errors.StorageError{Op: "delete post directory", Err: err}
	}
	return nil
}

// Ping reports whether the upload root is still present and a directory.
func (s *Storage) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info, err := os.Stat(s.resolver.Root())
	if err != nil {
		return &internal_errors.StorageError{Op: "stat upload root", Err: err}
	}
	if !info.IsDir() {
		return &internal_errors.StorageError{Op: "stat upload root", Err: fmt.Errorf("%s is not a directory", s.resolver.Root())}
	}
	return nil
}

// IsValidImageType checks the declared MIME type against the upload allow-list.
func (s *Storage) IsValidImageType(payload *domain.ImagePayload) bool {
	if payload == nil {
		return false
	}
	return validation.IsAllowedMimeType(s.allowedMimes, payload.ContentType)
}

// Exists reports whether a regular file is present at the root-relative path.
func (s *Storage) Exists(relPath string) (bool, error) {
	fullPath, err := s.resolver.Resolve(relPath)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, &internal_errors.StorageError{Op: "stat image", Err: err}
	}
	return info.Mode().IsRegular(), nil
}

// WalkFiles lists every regular file under the root as slash separated relative paths.
func (s *Storage) WalkFiles() ([]string, error) {
	root := s.resolver.Root()
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, &internal_errors.StorageError{Op: "walk upload root", Err: err}
	}
	return files, nil
}

// GetFileModTime returns the modification time of a root-relative file.
func (s *Storage) GetFileModTime(relPath string) (time.Time, error) {
	fullPath, err := s.resolver.Resolve(relPath)
	if err != nil {
		return time.Time{}, err
	}
	info, err := os.Stat(fullPath)
	if err != nil {
		return time.Time{}, &internal_errors.StorageError{Op: "stat image", Err: err}
	}
	return info.ModTime(), nil
}

func (s *Storage) postDirectory(postId domain.PostId) (string, error) {
	if postId <= 0 {
		return "", &internal_errors.ValidationError{Message: fmt.Sprintf("invalid post id %d", postId)}
	}
	return s.resolver.Resolve(strconv.FormatInt(postId, 10))
}

func relativePath(postId domain.PostId, name string) string {
	return strconv.FormatInt(postId, 10) + "/" + name
}
