package service

import (
	"bytes"
	"context"
	"strings"

	"github.com/itchan-dev/blog/shared/domain"
	internal_errors "github.com/itchan-dev/blog/shared/errors"
	"github.com/itchan-dev/blog/shared/logger"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

type PostService interface {
	Create(ctx context.Context, title domain.PostTitle, body domain.PostBody) (domain.PostId, error)
	Get(ctx context.Context, id domain.PostId) (*domain.Post, error)
	List(ctx context.Context, page int) (*domain.PostPage, error)
	Delete(ctx context.Context, id domain.PostId) error
}

type Post struct {
	storage      PostStorage
	media        MediaStorage
	validator    PostValidator
	locker       *PostLocker
	postsPerPage int

	md     goldmark.Markdown
	strict *bluemonday.Policy
	ugc    *bluemonday.Policy
}

type PostStorage interface {
	CreatePost(ctx context.Context, title domain.PostTitle, body domain.PostBody) (domain.PostId, error)
	GetPost(ctx context.Context, id domain.PostId) (*domain.Post, error)
	ListPosts(ctx context.Context, limit, offset int) ([]*domain.Post, int, error)
	DeletePost(ctx context.Context, id domain.PostId) error
}

type PostValidator interface {
	Title(title domain.PostTitle) error
	Body(body domain.PostBody) error
}

func NewPost(storage PostStorage, media MediaStorage, validator PostValidator, locker *PostLocker, postsPerPage int) *Post {
	return &Post{
		storage:      storage,
		media:        media,
		validator:    validator,
		locker:       locker,
		postsPerPage: postsPerPage,
		md:           goldmark.New(goldmark.WithExtensions(extension.GFM)),
		strict:       bluemonday.StrictPolicy(),
		ugc:          bluemonday.UGCPolicy(),
	}
}

// Create stores the post with markup stripped from the title.
// The body is kept as markdown source and rendered on read.
func (s *Post) Create(ctx context.Context, title domain.PostTitle, body domain.PostBody) (domain.PostId, error) {
	title = strings.TrimSpace(s.strict.Sanitize(title))
	if err := s.validator.Title(title); err != nil {
		return 0, err
	}
	if err := s.validator.Body(body); err != nil {
		return 0, err
	}

	id, err := s.storage.CreatePost(ctx, title, body)
	if err != nil {
		return 0, err
	}
	logger.Log.Info("post created", "post_id", id)
	return id, nil
}

func (s *Post) Get(ctx context.Context, id domain.PostId) (*domain.Post, error) {
	if id <= 0 {
		return nil, internal_errors.ErrPostNotFound
	}
	post, err := s.storage.GetPost(ctx, id)
	if err != nil {
		return nil, err
	}
	post.BodyHTML = s.render(post.Body)
	return post, nil
}

// List returns page (1-based) of posts, newest first. Bodies are not rendered.
func (s *Post) List(ctx context.Context, page int) (*domain.PostPage, error) {
	if page < 1 {
		return nil, &internal_errors.ValidationError{Message: "page must be a positive number"}
	}
	posts, total, err := s.storage.ListPosts(ctx, s.postsPerPage, (page-1)*s.postsPerPage)
	if err != nil {
		return nil, err
	}
	return &domain.PostPage{Posts: posts, Page: page, Total: total}, nil
}

// Delete removes the post and then its upload directory. A leftover
// directory is logged and picked up by the media sweep.
func (s *Post) Delete(ctx context.Context, id domain.PostId) error {
	if id <= 0 {
		return internal_errors.ErrPostNotFound
	}

	unlock := s.locker.Lock(id)
	defer unlock()

	if err := s.storage.DeletePost(ctx, id); err != nil {
		return err
	}
	if err := s.media.DeletePostDirectory(id); err != nil {
		imageCleanupFailuresTotal.WithLabelValues(cleanupOpDirectory).Inc()
		logger.Log.Warn("failed to remove post upload directory", "post_id", id, "error", err)
	}
	logger.Log.Info("post deleted", "post_id", id)
	return nil
}

func (s *Post) render(body domain.PostBody) string {
	var buf bytes.Buffer
	if err := s.md.Convert([]byte(body), &buf); err != nil {
		logger.Log.Warn("failed to render markdown, serving escaped text", "error", err)
		return s.strict.Sanitize(body)
	}
	return s.ugc.Sanitize(buf.String())
}
