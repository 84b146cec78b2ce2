package service

import (
	"context"
	"path"
	"strings"

	"github.com/itchan-dev/blog/shared/domain"
	internal_errors "github.com/itchan-dev/blog/shared/errors"
	"github.com/itchan-dev/blog/shared/logger"
	"github.com/itchan-dev/blog/shared/validation"
	"github.com/microcosm-cc/bluemonday"
)

type ImageService interface {
	UpdatePostImage(ctx context.Context, postId domain.PostId, payload *domain.ImagePayload) (*domain.PostImageMetadata, error)
	GetPostImage(ctx context.Context, postId domain.PostId) (*domain.ImageContent, error)
	DeletePostImage(ctx context.Context, postId domain.PostId) error
}

type Image struct {
	storage   ImageStorage
	media     MediaStorage
	validator ImageValidator
	detector  ContentTypeDetector
	locker    *PostLocker
	names     *bluemonday.Policy
}

type ImageStorage interface {
	PostExists(ctx context.Context, id domain.PostId) (bool, error)
	GetImageFileName(ctx context.Context, id domain.PostId) (string, bool, error)
	UpdateImageMetadata(ctx context.Context, meta domain.PostImageMetadata) error
	ClearImageMetadata(ctx context.Context, id domain.PostId) error
}

// MediaStorage is the upload tree. All paths are relative to its root.
type MediaStorage interface {
	Save(postId domain.PostId, payload *domain.ImagePayload) (string, error)
	Load(relPath string) ([]byte, error)
	Delete(relPath string) error
	DeletePostDirectory(postId domain.PostId) error
}

type ImageValidator interface {
	ValidatePostId(id domain.PostId) error
	ValidateImageUpdate(id domain.PostId, payload *domain.ImagePayload) error
}

type ContentTypeDetector interface {
	Detect(data []byte) (validation.ContentType, error)
}

func NewImage(storage ImageStorage, media MediaStorage, validator ImageValidator, detector ContentTypeDetector, locker *PostLocker) *Image {
	return &Image{
		storage:   storage,
		media:     media,
		validator: validator,
		detector:  detector,
		locker:    locker,
		names:     bluemonday.StrictPolicy(),
	}
}

// UpdatePostImage stores the new file, points the post at it and then removes
// the previous file. The file is written before the row changes, so a failure
// at any step never leaves the post referencing a missing file.
func (s *Image) UpdatePostImage(ctx context.Context, postId domain.PostId, payload *domain.ImagePayload) (*domain.PostImageMetadata, error) {
	if err := s.validator.ValidateImageUpdate(postId, payload); err != nil {
		return nil, err
	}

	unlock := s.locker.Lock(postId)
	defer unlock()

	if err := s.requirePost(ctx, postId); err != nil {
		return nil, err
	}
	oldName, hadImage, err := s.storage.GetImageFileName(ctx, postId)
	if err != nil {
		return nil, err
	}

	// Past this point the sequence must finish even if the caller goes away.
	ctx = context.WithoutCancel(ctx)

	newName, err := s.media.Save(postId, payload)
	if err != nil {
		imageUpdatesTotal.WithLabelValues(resultFailure).Inc()
		return nil, err
	}

	meta := domain.PostImageMetadata{
		PostId:           postId,
		StoredFileName:   newName,
		OriginalFileName: s.originalFileName(payload.Filename),
		SizeBytes:        payload.Size(),
	}
	if err := s.storage.UpdateImageMetadata(ctx, meta); err != nil {
		imageUpdatesTotal.WithLabelValues(resultFailure).Inc()
		if delErr := s.media.Delete(newName); delErr != nil {
			imageCleanupFailuresTotal.WithLabelValues(cleanupOpReplace).Inc()
			logger.Log.Warn("failed to remove unreferenced image after metadata update failure",
				"post_id", postId, "path", newName, "error", delErr)
		}
		return nil, err
	}
	imageUpdatesTotal.WithLabelValues(resultSuccess).Inc()

	if hadImage && oldName != newName {
		if err := s.media.Delete(oldName); err != nil {
			imageCleanupFailuresTotal.WithLabelValues(cleanupOpReplace).Inc()
			logger.Log.Warn("failed to remove superseded image",
				"post_id", postId, "path", oldName, "error", err)
		}
	}

	logger.Log.Info("post image updated", "post_id", postId, "path", newName, "size", meta.SizeBytes)
	return &meta, nil
}

func (s *Image) GetPostImage(ctx context.Context, postId domain.PostId) (*domain.ImageContent, error) {
	if err := s.validator.ValidatePostId(postId); err != nil {
		return nil, err
	}
	// A replace deletes the superseded file, so the name and the bytes
	// must be read without one finishing in between.
	unlock := s.locker.Lock(postId)
	defer unlock()

	if err := s.requirePost(ctx, postId); err != nil {
		return nil, err
	}

	name, ok, err := s.storage.GetImageFileName(ctx, postId)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, internal_errors.ErrNoImage
	}

	data, err := s.media.Load(name)
	if err != nil {
		if internal_errors.Is[*internal_errors.NotFoundError](err) {
			logger.Log.Warn("image reference points to a missing file", "post_id", postId, "path", name)
		}
		return nil, err
	}

	contentType, err := s.detector.Detect(data)
	if err != nil {
		// An empty file on disk is a broken reference, not a caller mistake.
		logger.Log.Warn("stored image is empty", "post_id", postId, "path", name)
		return nil, internal_errors.ErrImageFileMissing
	}

	return &domain.ImageContent{Data: data, ContentType: string(contentType)}, nil
}

// DeletePostImage detaches the image from the post and removes its file.
func (s *Image) DeletePostImage(ctx context.Context, postId domain.PostId) error {
	if err := s.validator.ValidatePostId(postId); err != nil {
		return err
	}

	unlock := s.locker.Lock(postId)
	defer unlock()

	name, ok, err := s.storage.GetImageFileName(ctx, postId)
	if err != nil {
		return err
	}
	if !ok {
		return internal_errors.ErrNoImage
	}

	ctx = context.WithoutCancel(ctx)
	if err := s.storage.ClearImageMetadata(ctx, postId); err != nil {
		return err
	}
	if err := s.media.Delete(name); err != nil {
		imageCleanupFailuresTotal.WithLabelValues(cleanupOpDelete).Inc()
		logger.Log.Warn("failed to remove detached image", "post_id", postId, "path", name, "error", err)
	}

	logger.Log.Info("post image deleted", "post_id", postId, "path", name)
	return nil
}

func (s *Image) requirePost(ctx context.Context, postId domain.PostId) error {
	exists, err := s.storage.PostExists(ctx, postId)
	if err != nil {
		return err
	}
	if !exists {
		return internal_errors.ErrPostNotFound
	}
	return nil
}

// originalFileName keeps only the base name, stripped of markup, for display.
func (s *Image) originalFileName(name string) string {
	name = s.names.Sanitize(strings.ReplaceAll(name, "\\", "/"))
	name = strings.TrimSpace(path.Base(name))
	if name == "" || name == "." || name == "/" {
		return "image"
	}
	return name
}
