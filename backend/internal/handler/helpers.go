package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/itchan-dev/blog/shared/domain"
	internal_errors "github.com/itchan-dev/blog/shared/errors"
)

const defaultPage = 1

// parseIntParam parses an integer parameter from a string and returns a meaningful error
func parseIntParam(param string, paramName string) (int, error) {
	val, err := strconv.Atoi(param)
	if err != nil {
		return 0, &internal_errors.ValidationError{Message: fmt.Sprintf("invalid %s: must be an integer", paramName)}
	}
	return val, nil
}

// postIdParam reads the {id} route parameter. Non-numeric ids are answered
// as a missing post, the same way an unknown numeric id is.
func postIdParam(r *http.Request) (domain.PostId, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, internal_errors.ErrPostNotFound
	}
	return id, nil
}

func pageParam(r *http.Request) (int, error) {
	q := r.URL.Query().Get("page")
	if q == "" {
		return defaultPage, nil
	}
	return parseIntParam(q, "page")
}

func imageURL(id domain.PostId) string {
	return fmt.Sprintf("/v1/posts/%d/image", id)
}
