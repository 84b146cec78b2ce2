package validation

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/itchan-dev/blog/shared/domain"
	internal_errors "github.com/itchan-dev/blog/shared/errors"
)

// multipartOverhead is added on top of the image limit for form fields and boundaries.
const multipartOverhead = 1 << 20

// ValidateAndParseMultipart limits the request body and parses the multipart form.
// When the limit is hit the server stops reading and the client may see a connection reset.
func ValidateAndParseMultipart(r *http.Request, w http.ResponseWriter, maxSize int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			return fmt.Errorf("%w: request exceeds %.1f MB", ErrPayloadTooLarge, FormatSizeMB(maxSize))
		}
		return &internal_errors.ValidationError{Message: "malformed multipart form"}
	}

	return nil
}

// CalculateMaxRequestSize returns the maximum request size including overhead buffer.
func CalculateMaxRequestSize(maxAttachmentSize int64, bufferSize int64) int64 {
	return maxAttachmentSize + bufferSize
}

// FormatSizeMB converts bytes to megabytes for user-friendly error messages.
func FormatSizeMB(bytes int64) float64 {
	return float64(bytes) / (1024 * 1024)
}

// ReadImageFromForm parses the request and reads the single file in field into memory.
// A missing field yields a nil payload, which the image validator rejects as empty.
func ReadImageFromForm(w http.ResponseWriter, r *http.Request, field string, maxImageSize int64) (*domain.ImagePayload, error) {
	if err := ValidateAndParseMultipart(r, w, CalculateMaxRequestSize(maxImageSize, multipartOverhead)); err != nil {
		return nil, err
	}

	file, header, err := r.FormFile(field)
	if err != nil {
		if err == http.ErrMissingFile {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read uploaded file: %w", err)
	}

	return &domain.ImagePayload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
