package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/itchan-dev/blog/backend/internal/storage/fs"
	"github.com/itchan-dev/blog/shared/config"
	"github.com/itchan-dev/blog/shared/domain"
	internal_errors "github.com/itchan-dev/blog/shared/errors"
	"github.com/itchan-dev/blog/shared/validation"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jpegPayload(n int) *domain.ImagePayload {
	data := make([]byte, n)
	copy(data, []byte{0xFF, 0xD8, 0xFF})
	for i := 3; i < n; i++ {
		data[i] = byte(i)
	}
	return &domain.ImagePayload{Filename: "photo.jpg", ContentType: "image/jpeg", Data: data}
}

func pngPayload() *domain.ImagePayload {
	return &domain.ImagePayload{
		Filename:    "diagram.png",
		ContentType: "image/png",
		Data:        []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x01},
	}
}

func newValidator() *validation.ImageValidator {
	return validation.NewImageValidator(config.DefaultAllowedMimeTypes, 1<<20)
}

// setupImageService wires the service to an in-memory post table and a real upload tree.
func setupImageService(t *testing.T) (*Image, *MemPostStorage, *fs.Storage) {
	t.Helper()
	media, err := fs.New(config.Upload{Root: t.TempDir(), AutoCreate: true})
	require.NoError(t, err)
	posts := NewMemPostStorage()
	svc := NewImage(posts, media, newValidator(), validation.NewContentTypeDetector(), NewPostLocker())
	return svc, posts, media
}

func fileExists(t *testing.T, media *fs.Storage, relPath string) bool {
	t.Helper()
	exists, err := media.Exists(relPath)
	require.NoError(t, err)
	return exists
}

func TestUpdatePostImage(t *testing.T) {
	ctx := context.Background()

	t.Run("first upload then read back", func(t *testing.T) {
		svc, posts, _ := setupImageService(t)
		posts.addPost(1)
		payload := jpegPayload(10)

		meta, err := svc.UpdatePostImage(ctx, 1, payload)

		require.NoError(t, err)
		assert.Equal(t, domain.PostId(1), meta.PostId)
		assert.Equal(t, int64(10), meta.SizeBytes)
		assert.Equal(t, "photo.jpg", meta.OriginalFileName)
		assert.Regexp(t, `^1/\d+_\d{4}\.jpg$`, meta.StoredFileName)

		content, err := svc.GetPostImage(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, payload.Data, content.Data)
		assert.Equal(t, string(validation.ContentTypeJPEG), content.ContentType)
	})

	t.Run("replace leaves exactly one live file", func(t *testing.T) {
		svc, posts, media := setupImageService(t)
		posts.addPost(7)

		first, err := svc.UpdatePostImage(ctx, 7, jpegPayload(16))
		require.NoError(t, err)
		second, err := svc.UpdatePostImage(ctx, 7, pngPayload())
		require.NoError(t, err)

		assert.NotEqual(t, first.StoredFileName, second.StoredFileName)
		assert.False(t, fileExists(t, media, first.StoredFileName))
		assert.True(t, fileExists(t, media, second.StoredFileName))

		files, err := media.WalkFiles()
		require.NoError(t, err)
		assert.Equal(t, []string{second.StoredFileName}, files)

		content, err := svc.GetPostImage(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, pngPayload().Data, content.Data)
		assert.Equal(t, string(validation.ContentTypePNG), content.ContentType)
	})

	t.Run("archive name falls back to default extension", func(t *testing.T) {
		svc, posts, _ := setupImageService(t)
		posts.addPost(3)
		payload := jpegPayload(8)
		payload.Filename = "archive.tar.gz"

		meta, err := svc.UpdatePostImage(ctx, 3, payload)

		require.NoError(t, err)
		assert.Equal(t, ".jpg", filepath.Ext(meta.StoredFileName))
		assert.Equal(t, "archive.tar.gz", meta.OriginalFileName)
	})

	t.Run("original name is reduced to a clean base name", func(t *testing.T) {
		svc, posts, _ := setupImageService(t)
		posts.addPost(4)
		payload := jpegPayload(8)
		payload.Filename = `..\..\<b>evil</b>.jpg`

		meta, err := svc.UpdatePostImage(ctx, 4, payload)

		require.NoError(t, err)
		assert.Equal(t, "evil.jpg", meta.OriginalFileName)
	})

	t.Run("validation failures have no side effects", func(t *testing.T) {
		testCases := []struct {
			name    string
			postId  domain.PostId
			payload *domain.ImagePayload
		}{
			{name: "zero id", postId: 0, payload: jpegPayload(4)},
			{name: "negative id", postId: -5, payload: jpegPayload(4)},
			{name: "nil payload", postId: 1, payload: nil},
			{name: "empty data", postId: 1, payload: &domain.ImagePayload{Filename: "a.jpg", ContentType: "image/jpeg"}},
			{name: "missing name", postId: 1, payload: &domain.ImagePayload{ContentType: "image/jpeg", Data: []byte{1}}},
			{name: "disallowed type", postId: 1, payload: &domain.ImagePayload{Filename: "a.gif", ContentType: "image/gif", Data: []byte{1}}},
			{name: "too large", postId: 1, payload: jpegPayload(1<<20 + 1)},
		}
		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				svc, posts, media := setupImageService(t)
				posts.addPost(1)

				_, err := svc.UpdatePostImage(ctx, tc.postId, tc.payload)

				assert.True(t, internal_errors.Is[*internal_errors.ValidationError](err), "got %v", err)
				assert.Zero(t, posts.updateImageCalls)
				files, err := media.WalkFiles()
				require.NoError(t, err)
				assert.Empty(t, files)
			})
		}
	})

	t.Run("missing post", func(t *testing.T) {
		svc, posts, media := setupImageService(t)

		_, err := svc.UpdatePostImage(ctx, 99, jpegPayload(4))

		assert.ErrorIs(t, err, internal_errors.ErrPostNotFound)
		assert.Zero(t, posts.updateImageCalls)
		files, err := media.WalkFiles()
		require.NoError(t, err)
		assert.Empty(t, files)
	})

	t.Run("save failure keeps old reference", func(t *testing.T) {
		posts := NewMemPostStorage()
		posts.addPost(1)
		require.NoError(t, posts.UpdateImageMetadata(ctx, domain.PostImageMetadata{PostId: 1, StoredFileName: "1/old.jpg"}))
		saveErr := &internal_errors.StorageError{Op: "write", Err: errors.New("disk full")}
		media := &MockMediaStorage{
			saveFunc: func(domain.PostId, *domain.ImagePayload) (string, error) { return "", saveErr },
		}
		svc := NewImage(posts, media, newValidator(), validation.NewContentTypeDetector(), NewPostLocker())

		_, err := svc.UpdatePostImage(ctx, 1, jpegPayload(4))

		assert.ErrorIs(t, err, saveErr)
		assert.Equal(t, "1/old.jpg", posts.image(1).StoredFileName)
		assert.Empty(t, media.deleteCalls)
	})

	t.Run("metadata failure removes the new file", func(t *testing.T) {
		svc, posts, media := setupImageService(t)
		posts.addPost(1)
		old, err := svc.UpdatePostImage(ctx, 1, jpegPayload(4))
		require.NoError(t, err)
		dbErr := errors.New("connection reset")
		posts.updateImageErr = dbErr

		_, err = svc.UpdatePostImage(ctx, 1, pngPayload())

		assert.ErrorIs(t, err, dbErr)
		assert.Equal(t, old.StoredFileName, posts.image(1).StoredFileName)
		files, err := media.WalkFiles()
		require.NoError(t, err)
		assert.Equal(t, []string{old.StoredFileName}, files, "old file intact, new file removed")
	})

	t.Run("old file cleanup failure is not an error", func(t *testing.T) {
		posts := NewMemPostStorage()
		posts.addPost(1)
		require.NoError(t, posts.UpdateImageMetadata(ctx, domain.PostImageMetadata{PostId: 1, StoredFileName: "1/old.jpg"}))
		media := &MockMediaStorage{
			saveFunc:   func(domain.PostId, *domain.ImagePayload) (string, error) { return "1/new.jpg", nil },
			deleteFunc: func(string) error { return &internal_errors.StorageError{Op: "remove", Err: os.ErrPermission} },
		}
		svc := NewImage(posts, media, newValidator(), validation.NewContentTypeDetector(), NewPostLocker())
		failuresBefore := testutil.ToFloat64(imageCleanupFailuresTotal.WithLabelValues(cleanupOpReplace))

		meta, err := svc.UpdatePostImage(ctx, 1, jpegPayload(4))

		require.NoError(t, err)
		assert.Equal(t, "1/new.jpg", meta.StoredFileName)
		assert.Equal(t, "1/new.jpg", posts.image(1).StoredFileName)
		assert.Equal(t, []string{"1/old.jpg"}, media.deleteCalls)
		assert.Equal(t, failuresBefore+1, testutil.ToFloat64(imageCleanupFailuresTotal.WithLabelValues(cleanupOpReplace)))
	})

	t.Run("cancelled context after save still commits", func(t *testing.T) {
		posts := NewMemPostStorage()
		posts.addPost(1)
		cancelCtx, cancel := context.WithCancel(ctx)
		media := &MockMediaStorage{
			saveFunc: func(domain.PostId, *domain.ImagePayload) (string, error) {
				cancel()
				return "1/new.jpg", nil
			},
		}
		svc := NewImage(posts, media, newValidator(), validation.NewContentTypeDetector(), NewPostLocker())

		_, err := svc.UpdatePostImage(cancelCtx, 1, jpegPayload(4))

		require.NoError(t, err)
		assert.Equal(t, "1/new.jpg", posts.image(1).StoredFileName)
	})
}

func TestUpdatePostImage_ConcurrentSamePost(t *testing.T) {
	svc, posts, media := setupImageService(t)
	posts.addPost(1)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.UpdatePostImage(ctx, 1, jpegPayload(4+i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	files, err := media.WalkFiles()
	require.NoError(t, err)
	require.Len(t, files, 1, "serialized replaces leave no orphans")
	assert.Equal(t, posts.image(1).StoredFileName, files[0])
	assert.Zero(t, svc.locker.held())
}

func TestGetPostImage(t *testing.T) {
	ctx := context.Background()

	t.Run("post without image", func(t *testing.T) {
		svc, posts, _ := setupImageService(t)
		posts.addPost(42)

		_, err := svc.GetPostImage(ctx, 42)

		assert.ErrorIs(t, err, internal_errors.ErrNoImage)
		assert.NotErrorIs(t, err, internal_errors.ErrPostNotFound)
	})

	t.Run("missing post", func(t *testing.T) {
		svc, _, _ := setupImageService(t)

		_, err := svc.GetPostImage(ctx, 42)

		assert.ErrorIs(t, err, internal_errors.ErrPostNotFound)
	})

	t.Run("invalid id", func(t *testing.T) {
		svc, _, _ := setupImageService(t)

		_, err := svc.GetPostImage(ctx, 0)

		assert.True(t, internal_errors.Is[*internal_errors.ValidationError](err))
	})

	t.Run("file missing on disk", func(t *testing.T) {
		svc, posts, media := setupImageService(t)
		posts.addPost(5)
		meta, err := svc.UpdatePostImage(ctx, 5, jpegPayload(4))
		require.NoError(t, err)
		require.NoError(t, media.Delete(meta.StoredFileName))

		_, err = svc.GetPostImage(ctx, 5)

		assert.ErrorIs(t, err, internal_errors.ErrImageFileMissing)
		assert.NotErrorIs(t, err, internal_errors.ErrNoImage)
		assert.NotContains(t, err.Error(), meta.StoredFileName, "stored name stays internal")
	})

	t.Run("unknown content is served as binary", func(t *testing.T) {
		posts := NewMemPostStorage()
		posts.addPost(1)
		require.NoError(t, posts.UpdateImageMetadata(ctx, domain.PostImageMetadata{PostId: 1, StoredFileName: "1/x.jpg"}))
		media := &MockMediaStorage{
			loadFunc: func(string) ([]byte, error) { return []byte("GIF89a"), nil },
		}
		svc := NewImage(posts, media, newValidator(), validation.NewContentTypeDetector(), NewPostLocker())

		content, err := svc.GetPostImage(ctx, 1)

		require.NoError(t, err)
		assert.Equal(t, string(validation.ContentTypeUnknown), content.ContentType)
	})

	t.Run("traversal in stored reference", func(t *testing.T) {
		svc, posts, _ := setupImageService(t)
		posts.addPost(1)
		require.NoError(t, posts.UpdateImageMetadata(ctx, domain.PostImageMetadata{PostId: 1, StoredFileName: "../../etc/passwd"}))

		_, err := svc.GetPostImage(ctx, 1)

		assert.True(t, internal_errors.Is[*internal_errors.SecurityError](err))
	})
}

// blockingMedia holds the first Load until release is closed.
type blockingMedia struct {
	*fs.Storage
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (m *blockingMedia) Load(relPath string) ([]byte, error) {
	m.once.Do(func() {
		close(m.entered)
		<-m.release
	})
	return m.Storage.Load(relPath)
}

func TestGetPostImage_ReplaceDuringRead(t *testing.T) {
	ctx := context.Background()
	storage, err := fs.New(config.Upload{Root: t.TempDir(), AutoCreate: true})
	require.NoError(t, err)
	media := &blockingMedia{Storage: storage, entered: make(chan struct{}), release: make(chan struct{})}
	posts := NewMemPostStorage()
	posts.addPost(1)
	svc := NewImage(posts, media, newValidator(), validation.NewContentTypeDetector(), NewPostLocker())

	first := jpegPayload(10)
	_, err = svc.UpdatePostImage(ctx, 1, first)
	require.NoError(t, err)

	type result struct {
		content *domain.ImageContent
		err     error
	}
	read := make(chan result, 1)
	go func() {
		content, err := svc.GetPostImage(ctx, 1)
		read <- result{content, err}
	}()
	<-media.entered

	replaced := make(chan error, 1)
	go func() {
		_, err := svc.UpdatePostImage(ctx, 1, pngPayload())
		replaced <- err
	}()

	select {
	case <-replaced:
		t.Fatal("replace finished while a read of the same post was in progress")
	case <-time.After(50 * time.Millisecond):
	}
	close(media.release)

	got := <-read
	require.NoError(t, got.err)
	assert.Equal(t, first.Data, got.content.Data)
	assert.Equal(t, string(validation.ContentTypeJPEG), got.content.ContentType)

	require.NoError(t, <-replaced)
	content, err := svc.GetPostImage(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, string(validation.ContentTypePNG), content.ContentType)
	assert.Zero(t, svc.locker.held())
}

func TestDeletePostImage(t *testing.T) {
	ctx := context.Background()

	t.Run("detaches and removes file", func(t *testing.T) {
		svc, posts, media := setupImageService(t)
		posts.addPost(1)
		meta, err := svc.UpdatePostImage(ctx, 1, jpegPayload(4))
		require.NoError(t, err)

		require.NoError(t, svc.DeletePostImage(ctx, 1))

		assert.Nil(t, posts.image(1))
		assert.False(t, fileExists(t, media, meta.StoredFileName))
		_, err = svc.GetPostImage(ctx, 1)
		assert.ErrorIs(t, err, internal_errors.ErrNoImage)
	})

	t.Run("no image", func(t *testing.T) {
		svc, posts, _ := setupImageService(t)
		posts.addPost(1)

		assert.ErrorIs(t, svc.DeletePostImage(ctx, 1), internal_errors.ErrNoImage)
	})

	t.Run("missing post", func(t *testing.T) {
		svc, _, _ := setupImageService(t)

		assert.ErrorIs(t, svc.DeletePostImage(ctx, 8), internal_errors.ErrPostNotFound)
	})

	t.Run("file cleanup failure is not an error", func(t *testing.T) {
		posts := NewMemPostStorage()
		posts.addPost(1)
		require.NoError(t, posts.UpdateImageMetadata(ctx, domain.PostImageMetadata{PostId: 1, StoredFileName: "1/old.jpg"}))
		media := &MockMediaStorage{deleteFunc: func(string) error { return errors.New("busy") }}
		svc := NewImage(posts, media, newValidator(), validation.NewContentTypeDetector(), NewPostLocker())

		require.NoError(t, svc.DeletePostImage(ctx, 1))
		assert.Nil(t, posts.image(1))
	})
}
