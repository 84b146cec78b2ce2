package handler

import (
	"net/http"
	"strconv"

	"github.com/itchan-dev/blog/shared/api"
	"github.com/itchan-dev/blog/shared/utils"
	"github.com/itchan-dev/blog/shared/validation"
)

// imageFormField is the multipart field carrying the upload.
const imageFormField = "image"

func (h *Handler) UpdatePostImage(w http.ResponseWriter, r *http.Request) {
	id, err := postIdParam(r)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	payload, err := validation.ReadImageFromForm(w, r, imageFormField, h.cfg.Public.Upload.MaxSizeBytes)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	meta, err := h.images.UpdatePostImage(r.Context(), id, payload)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, api.ImageResponse{
		PostId:           meta.PostId,
		OriginalFileName: meta.OriginalFileName,
		SizeBytes:        meta.SizeBytes,
		Url:              imageURL(meta.PostId),
	})
}

// GetPostImage serves the stored bytes with the sniffed content type,
// never the one declared at upload time.
func (h *Handler) GetPostImage(w http.ResponseWriter, r *http.Request) {
	id, err := postIdParam(r)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	image, err := h.images.GetPostImage(r.Context(), id)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	w.Header().Set("Content-Type", image.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(image.Data)))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	w.Write(image.Data)
}

func (h *Handler) DeletePostImage(w http.ResponseWriter, r *http.Request) {
	id, err := postIdParam(r)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	if err := h.images.DeletePostImage(r.Context(), id); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
