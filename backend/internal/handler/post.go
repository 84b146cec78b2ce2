package handler

import (
	"net/http"

	"github.com/itchan-dev/blog/shared/api"
	"github.com/itchan-dev/blog/shared/utils"
)

func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	page, err := pageParam(r)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	posts, err := h.posts.List(r.Context(), page)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, api.PostListResponse{PostPage: *posts})
}

func (h *Handler) GetPost(w http.ResponseWriter, r *http.Request) {
	id, err := postIdParam(r)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	post, err := h.posts.Get(r.Context(), id)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, api.PostResponse{Post: *post})
}

func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	var body api.CreatePostRequest
	if err := utils.DecodeValidate(r.Body, &body); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	id, err := h.posts.Create(r.Context(), body.Title, body.Body)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, api.CreatePostResponse{Id: id})
}

func (h *Handler) DeletePost(w http.ResponseWriter, r *http.Request) {
	id, err := postIdParam(r)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	if err := h.posts.Delete(r.Context(), id); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
