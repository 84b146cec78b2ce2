package validation

import (
	"fmt"
	"mime"
	"strings"

	"github.com/itchan-dev/blog/shared/domain"
	internal_errors "github.com/itchan-dev/blog/shared/errors"
)

// ImageValidator rejects uploads before anything touches disk or database.
// It trusts the declared MIME type; content sniffing happens on read.
type ImageValidator struct {
	allowedMimes map[string]bool
	maxSize      int64
}

// NewImageValidator builds a validator. maxSize <= 0 disables the size check.
func NewImageValidator(allowedMimes []string, maxSize int64) *ImageValidator {
	return &ImageValidator{
		allowedMimes: BuildAllowedMimeMap(allowedMimes),
		maxSize:      maxSize,
	}
}

func (v *ImageValidator) ValidatePostId(id domain.PostId) error {
	if id <= 0 {
		return &internal_errors.ValidationError{Message: fmt.Sprintf("invalid post id %d", id)}
	}
	return nil
}

func (v *ImageValidator) ValidateImageUpdate(id domain.PostId, payload *domain.ImagePayload) error {
	if err := v.ValidatePostId(id); err != nil {
		return err
	}
	if payload == nil || len(payload.Data) == 0 {
		return &internal_errors.ValidationError{Message: "image file is empty"}
	}
	if strings.TrimSpace(payload.Filename) == "" {
		return &internal_errors.ValidationError{Message: "image file name is missing"}
	}
	if v.maxSize > 0 && payload.Size() > v.maxSize {
		return &internal_errors.ValidationError{Message: fmt.Sprintf("image exceeds the limit of %.0f MB", FormatSizeMB(v.maxSize))}
	}
	if !IsAllowedMimeType(v.allowedMimes, payload.ContentType) {
		return &internal_errors.ValidationError{Message: fmt.Sprintf("image type %q is not allowed", payload.ContentType)}
	}
	return nil
}

// BuildAllowedMimeMap normalizes an allow-list into a lookup set.
func BuildAllowedMimeMap(mimes []string) map[string]bool {
	allowed := make(map[string]bool, len(mimes))
	for _, m := range mimes {
		allowed[NormalizeMimeType(m)] = true
	}
	return allowed
}

// IsAllowedMimeType reports whether the declared type is in the set.
func IsAllowedMimeType(allowed map[string]bool, declared string) bool {
	normalized := NormalizeMimeType(declared)
	return normalized != "" && allowed[normalized]
}

// NormalizeMimeType lower-cases and drops parameters: "Image/PNG; q=1" -> "image/png".
func NormalizeMimeType(declared string) string {
	declared = strings.TrimSpace(declared)
	if declared == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(declared)
	if err != nil {
		mediaType, _, _ = strings.Cut(declared, ";")
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}
