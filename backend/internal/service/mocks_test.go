package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/itchan-dev/blog/shared/domain"
	internal_errors "github.com/itchan-dev/blog/shared/errors"
)

// --- In-memory post table ---

type MemPostStorage struct {
	mu     sync.Mutex
	nextId domain.PostId
	posts  map[domain.PostId]*domain.Post

	// Optional failure hooks, checked before the in-memory behaviour.
	postExistsErr     error
	getImageErr       error
	updateImageErr    error
	clearImageErr     error
	deletePostErr     error
	getAllImagesErr   error
	updateImageCalls  int
	getAllImagesCalls int
}

func NewMemPostStorage() *MemPostStorage {
	return &MemPostStorage{nextId: 1, posts: make(map[domain.PostId]*domain.Post)}
}

func (m *MemPostStorage) addPost(id domain.PostId) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	m.posts[id] = &domain.Post{Id: id, Title: "title", Body: "body", CreatedAt: now, UpdatedAt: now}
	if id >= m.nextId {
		m.nextId = id + 1
	}
}

func (m *MemPostStorage) image(id domain.PostId) *domain.PostImageMetadata {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.posts[id]; ok && p.Image != nil {
		meta := *p.Image
		return &meta
	}
	return nil
}

func (m *MemPostStorage) CreatePost(ctx context.Context, title domain.PostTitle, body domain.PostBody) (domain.PostId, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextId
	m.nextId++
	// strictly increasing timestamps keep ListPosts ordering deterministic
	created := time.Unix(int64(id), 0)
	m.posts[id] = &domain.Post{Id: id, Title: title, Body: body, CreatedAt: created, UpdatedAt: created}
	return id, nil
}

func (m *MemPostStorage) GetPost(ctx context.Context, id domain.PostId) (*domain.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return nil, internal_errors.ErrPostNotFound
	}
	copied := *p
	return &copied, nil
}

func (m *MemPostStorage) ListPosts(ctx context.Context, limit, offset int) ([]*domain.Post, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := make([]*domain.Post, 0, len(m.posts))
	for _, p := range m.posts {
		copied := *p
		all = append(all, &copied)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Id > all[j].Id })
	if offset >= len(all) {
		return []*domain.Post{}, len(all), nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], len(all), nil
}

func (m *MemPostStorage) DeletePost(ctx context.Context, id domain.PostId) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deletePostErr != nil {
		return m.deletePostErr
	}
	if _, ok := m.posts[id]; !ok {
		return internal_errors.ErrPostNotFound
	}
	delete(m.posts, id)
	return nil
}

func (m *MemPostStorage) PostExists(ctx context.Context, id domain.PostId) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.postExistsErr != nil {
		return false, m.postExistsErr
	}
	_, ok := m.posts[id]
	return ok, nil
}

func (m *MemPostStorage) GetImageFileName(ctx context.Context, id domain.PostId) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getImageErr != nil {
		return "", false, m.getImageErr
	}
	p, ok := m.posts[id]
	if !ok {
		return "", false, internal_errors.ErrPostNotFound
	}
	if p.Image == nil {
		return "", false, nil
	}
	return p.Image.StoredFileName, true, nil
}

func (m *MemPostStorage) UpdateImageMetadata(ctx context.Context, meta domain.PostImageMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateImageCalls++
	if m.updateImageErr != nil {
		return m.updateImageErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	p, ok := m.posts[meta.PostId]
	if !ok {
		return internal_errors.ErrPostNotFound
	}
	p.Image = &meta
	return nil
}

func (m *MemPostStorage) ClearImageMetadata(ctx context.Context, id domain.PostId) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.clearImageErr != nil {
		return m.clearImageErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	p, ok := m.posts[id]
	if !ok {
		return internal_errors.ErrPostNotFound
	}
	p.Image = nil
	return nil
}

func (m *MemPostStorage) GetAllImagePaths(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getAllImagesCalls++
	if m.getAllImagesErr != nil {
		return nil, m.getAllImagesErr
	}
	var paths []string
	for _, p := range m.posts {
		if p.Image != nil {
			paths = append(paths, p.Image.StoredFileName)
		}
	}
	return paths, nil
}

// --- Media storage with overridable behaviour ---

type MockMediaStorage struct {
	mu                      sync.Mutex
	saveFunc                func(postId domain.PostId, payload *domain.ImagePayload) (string, error)
	loadFunc                func(relPath string) ([]byte, error)
	deleteFunc              func(relPath string) error
	deletePostDirectoryFunc func(postId domain.PostId) error
	deleteCalls             []string
	deletedDirectories      []domain.PostId
}

func (m *MockMediaStorage) Save(postId domain.PostId, payload *domain.ImagePayload) (string, error) {
	if m.saveFunc != nil {
		return m.saveFunc(postId, payload)
	}
	return "", nil
}

func (m *MockMediaStorage) Load(relPath string) ([]byte, error) {
	if m.loadFunc != nil {
		return m.loadFunc(relPath)
	}
	return nil, nil
}

func (m *MockMediaStorage) Delete(relPath string) error {
	m.mu.Lock()
	m.deleteCalls = append(m.deleteCalls, relPath)
	m.mu.Unlock()
	if m.deleteFunc != nil {
		return m.deleteFunc(relPath)
	}
	return nil
}

func (m *MockMediaStorage) DeletePostDirectory(postId domain.PostId) error {
	m.mu.Lock()
	m.deletedDirectories = append(m.deletedDirectories, postId)
	m.mu.Unlock()
	if m.deletePostDirectoryFunc != nil {
		return m.deletePostDirectoryFunc(postId)
	}
	return nil
}
