package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/itchan-dev/blog/shared/domain"
	internal_errors "github.com/itchan-dev/blog/shared/errors"
)

const (
	MaxTitleLen = 200
	MaxBodyLen  = 50000
)

type PostValidator struct{}

func NewPostValidator() *PostValidator {
	return &PostValidator{}
}

func (v *PostValidator) Title(title domain.PostTitle) error {
	if strings.TrimSpace(title) == "" {
		return &internal_errors.ValidationError{Message: "title is empty"}
	}
	if utf8.RuneCountInString(title) > MaxTitleLen {
		return &internal_errors.ValidationError{Message: fmt.Sprintf("title is longer than %d characters", MaxTitleLen)}
	}
	return nil
}

func (v *PostValidator) Body(body domain.PostBody) error {
	if strings.TrimSpace(body) == "" {
		return &internal_errors.ValidationError{Message: "body is empty"}
	}
	if utf8.RuneCountInString(body) > MaxBodyLen {
		return &internal_errors.ValidationError{Message: fmt.Sprintf("body is longer than %d characters", MaxBodyLen)}
	}
	return nil
}
