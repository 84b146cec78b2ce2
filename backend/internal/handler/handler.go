package handler

import (
	"github.com/itchan-dev/blog/backend/internal/service"
	"github.com/itchan-dev/blog/shared/config"
)

type Handler struct {
	auth   service.AuthService
	posts  service.PostService
	images service.ImageService
	checks []DependencyCheck
	cfg    *config.Config
}

func New(auth service.AuthService, posts service.PostService, images service.ImageService, cfg *config.Config, checks ...DependencyCheck) *Handler {
	return &Handler{auth: auth, posts: posts, images: images, checks: checks, cfg: cfg}
}
