package api

import "github.com/itchan-dev/blog/shared/domain"

// Request DTOs

type CreatePostRequest struct {
	Title string `json:"title" validate:"required"`
	Body  string `json:"body" validate:"required"`
}

// Response DTOs

type CreatePostResponse struct {
	Id domain.PostId `json:"id"`
}

type PostResponse struct {
	domain.Post
}

type PostListResponse struct {
	domain.PostPage
}

// ImageResponse describes the image now attached to a post.
// The stored file name is internal and not exposed.
type ImageResponse struct {
	PostId           domain.PostId `json:"post_id"`
	OriginalFileName string        `json:"original_file_name"`
	SizeBytes        int64         `json:"size_bytes"`
	Url              string        `json:"url"`
}
