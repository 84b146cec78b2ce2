package validation

import (
	"bytes"

	internal_errors "github.com/itchan-dev/blog/shared/errors"
)

type ContentType string

const (
	ContentTypeJPEG    ContentType = "image/jpeg"
	ContentTypePNG     ContentType = "image/png"
	ContentTypeUnknown ContentType = "application/octet-stream"
)

var (
	// Start-Of-Image marker followed by the first marker prefix. Only the prefix is checked, no JFIF parse.
	jpegSignature = []byte{0xFF, 0xD8, 0xFF}
	pngSignature  = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
)

// ContentTypeDetector classifies image bytes by their leading signature,
// independent of any declared file name or MIME type.
type ContentTypeDetector struct{}

func NewContentTypeDetector() *ContentTypeDetector {
	return &ContentTypeDetector{}
}

// Detect returns the sniffed type. Empty input is a caller error, not unknown content.
func (d *ContentTypeDetector) Detect(data []byte) (ContentType, error) {
	if len(data) == 0 {
		return "", &internal_errors.ValidationError{Message: "image content is empty"}
	}

	// JPEG is checked first and wins even if a PNG signature appears later
	if bytes.HasPrefix(data, jpegSignature) {
		return ContentTypeJPEG, nil
	}
	if bytes.HasPrefix(data, pngSignature) {
		return ContentTypePNG, nil
	}
	return ContentTypeUnknown, nil
}
