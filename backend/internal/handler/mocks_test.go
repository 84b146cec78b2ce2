package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/itchan-dev/blog/shared/config"
	"github.com/itchan-dev/blog/shared/domain"
)

type MockAuthService struct {
	MockLogin func(password string) (string, error)
}

func (m *MockAuthService) Login(password string) (string, error) {
	if m.MockLogin != nil {
		return m.MockLogin(password)
	}
	return "", nil
}

type MockPostService struct {
	MockCreate func(ctx context.Context, title, body string) (domain.PostId, error)
	MockGet    func(ctx context.Context, id domain.PostId) (*domain.Post, error)
	MockList   func(ctx context.Context, page int) (*domain.PostPage, error)
	MockDelete func(ctx context.Context, id domain.PostId) error
}

func (m *MockPostService) Create(ctx context.Context, title, body string) (domain.PostId, error) {
	if m.MockCreate != nil {
		return m.MockCreate(ctx, title, body)
	}
	return 1, nil
}

func (m *MockPostService) Get(ctx context.Context, id domain.PostId) (*domain.Post, error) {
	if m.MockGet != nil {
		return m.MockGet(ctx, id)
	}
	return &domain.Post{Id: id}, nil
}

func (m *MockPostService) List(ctx context.Context, page int) (*domain.PostPage, error) {
	if m.MockList != nil {
		return m.MockList(ctx, page)
	}
	return &domain.PostPage{Page: page, Posts: []*domain.Post{}}, nil
}

func (m *MockPostService) Delete(ctx context.Context, id domain.PostId) error {
	if m.MockDelete != nil {
		return m.MockDelete(ctx, id)
	}
	return nil
}

type MockImageService struct {
	MockUpdate func(ctx context.Context, id domain.PostId, payload *domain.ImagePayload) (*domain.PostImageMetadata, error)
	MockGet    func(ctx context.Context, id domain.PostId) (*domain.ImageContent, error)
	MockDelete func(ctx context.Context, id domain.PostId) error
}

func (m *MockImageService) UpdatePostImage(ctx context.Context, id domain.PostId, payload *domain.ImagePayload) (*domain.PostImageMetadata, error) {
	if m.MockUpdate != nil {
		return m.MockUpdate(ctx, id, payload)
	}
	return &domain.PostImageMetadata{PostId: id}, nil
}

func (m *MockImageService) GetPostImage(ctx context.Context, id domain.PostId) (*domain.ImageContent, error) {
	if m.MockGet != nil {
		return m.MockGet(ctx, id)
	}
	return &domain.ImageContent{}, nil
}

func (m *MockImageService) DeletePostImage(ctx context.Context, id domain.PostId) error {
	if m.MockDelete != nil {
		return m.MockDelete(ctx, id)
	}
	return nil
}

func testConfig() *config.Config {
	return &config.Config{Public: config.Public{
		JwtTTL: 3600_000_000_000,
		Upload: config.Upload{MaxSizeBytes: 1 << 20},
	}}
}

func newTestHandler(auth *MockAuthService, posts *MockPostService, images *MockImageService) *Handler {
	if auth == nil {
		auth = &MockAuthService{}
	}
	if posts == nil {
		posts = &MockPostService{}
	}
	if images == nil {
		images = &MockImageService{}
	}
	return New(auth, posts, images, testConfig(), DependencyCheck{Name: "database", Checker: &MockHealthChecker{}})
}

// serve routes the request through chi so that URL params are populated.
func serve(t *testing.T, method, pattern string, handler http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	router := chi.NewRouter()
	router.MethodFunc(method, pattern, handler)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func createRequest(t *testing.T, method, url string, body []byte, cookies ...*http.Cookie) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, url, bytes.NewBuffer(body))
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return req
}
