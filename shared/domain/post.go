package domain

import "time"

type Post struct {
	Id        PostId             `json:"id"`
	Title     PostTitle          `json:"title"`
	Body      PostBody           `json:"body"`
	BodyHTML  string             `json:"body_html,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
	Image     *PostImageMetadata `json:"image,omitempty"`
}

// PostPage is one page of posts, newest first.
type PostPage struct {
	Posts []*Post `json:"posts"`
	Page  int     `json:"page"`
	Total int     `json:"total"`
}
