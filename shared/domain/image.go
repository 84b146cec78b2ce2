package domain

// PostImageMetadata is stored on the post row. A post has at most one current image.
type PostImageMetadata struct {
	PostId           PostId `json:"post_id"`
	StoredFileName   string `json:"stored_file_name"` // "<postId>/<generated name>", relative to the upload root
	OriginalFileName string `json:"original_file_name"`
	SizeBytes        int64  `json:"size_bytes"`
}

// ImagePayload is a decoded upload as handed over by the HTTP layer.
type ImagePayload struct {
	Filename    string // as submitted by the client, descriptive only
	ContentType string // declared MIME type
	Data        []byte
}

func (p *ImagePayload) Size() int64 {
	if p == nil {
		return 0
	}
	return int64(len(p.Data))
}

// ImageContent is what a read returns: bytes plus their sniffed type.
type ImageContent struct {
	Data        []byte
	ContentType string
}
