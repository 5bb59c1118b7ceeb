package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"alcyxob/fitness-assessment/internal/analysis"
	"alcyxob/fitness-assessment/internal/domain"
	"alcyxob/fitness-assessment/internal/repository"
	"alcyxob/fitness-assessment/internal/storage"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fakeUserRepo struct {
	users map[primitive.ObjectID]domain.User
}

func newFakeUserRepo(users ...domain.User) *fakeUserRepo {
	r := &fakeUserRepo{users: map[primitive.ObjectID]domain.User{}}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeUserRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

type fakeMediaRepo struct {
	mu        sync.Mutex
	items     map[primitive.ObjectID]domain.Media
	createErr error
}

func newFakeMediaRepo() *fakeMediaRepo {
	return &fakeMediaRepo{items: map[primitive.ObjectID]domain.Media{}}
}

func (r *fakeMediaRepo) Create(_ context.Context, m *domain.Media) (primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return primitive.NilObjectID, r.createErr
	}
	m.ID = primitive.NewObjectID()
	for i := range m.Items {
		if m.Items[i].ID == primitive.NilObjectID {
			m.Items[i].ID = primitive.NewObjectID()
		}
	}
	m.CreatedAt = time.Now()
	stored := *m
	stored.Items = append([]domain.MediaItem(nil), m.Items...)
	r.items[m.ID] = stored
	return m.ID, nil
}

func (r *fakeMediaRepo) GetByUserID(_ context.Context, userID primitive.ObjectID) ([]domain.Media, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Media{}
	for _, m := range r.items {
		if m.UserID == userID {
			m.Items = append([]domain.MediaItem(nil), m.Items...)
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Hex() < out[j].ID.Hex() })
	return out, nil
}

func (r *fakeMediaRepo) GetByIDForUser(_ context.Context, id, userID primitive.ObjectID) (*domain.Media, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.items[id]
	if !ok || m.UserID != userID {
		return nil, repository.ErrNotFound
	}
	m.Items = append([]domain.MediaItem(nil), m.Items...)
	return &m, nil
}

func (r *fakeMediaRepo) PullItem(_ context.Context, id, userID, itemID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.items[id]
	if !ok || m.UserID != userID {
		return repository.ErrNotFound
	}
	kept := m.Items[:0:0]
	for _, it := range m.Items {
		if it.ID != itemID {
			kept = append(kept, it)
		}
	}
	if len(kept) == len(m.Items) {
		return repository.ErrNotFound
	}
	m.Items = kept
	r.items[id] = m
	return nil
}

func (r *fakeMediaRepo) Delete(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *fakeMediaRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

type fakeAssessmentRepo struct {
	mu        sync.Mutex
	items     []domain.Assessment
	createErr error
}

func (r *fakeAssessmentRepo) Create(_ context.Context, a *domain.Assessment) (primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return primitive.NilObjectID, r.createErr
	}
	a.ID = primitive.NewObjectID()
	r.items = append(r.items, *a)
	return a.ID, nil
}

func (r *fakeAssessmentRepo) GetByUserID(_ context.Context, userID primitive.ObjectID) ([]domain.Assessment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Assessment{}
	for i := len(r.items) - 1; i >= 0; i-- {
		if r.items[i].UserID == userID {
			out = append(out, r.items[i])
		}
	}
	return out, nil
}

func (r *fakeAssessmentRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	signs   int
	putErr  error
	signErr error
	deleted []string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: map[string][]byte{}}
}

func (s *fakeStorage) PutObject(_ context.Context, key, _ string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	s.objects[key] = data
	return nil
}

// GeneratePresignedDownloadURL returns a different signature on every call.
func (s *fakeStorage) GeneratePresignedDownloadURL(_ context.Context, key string, expires time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.signErr != nil {
		return "", s.signErr
	}
	s.signs++
	return fmt.Sprintf("https://blob.test/%s?expires=%d&sig=%d", key, int(expires.Seconds()), s.signs), nil
}

func (s *fakeStorage) DeleteObject(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; !ok {
		return storage.ErrObjectNotFound
	}
	delete(s.objects, key)
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *fakeStorage) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

type fakeEngine struct {
	mu       sync.Mutex
	result   *analysis.Result
	err      error
	requests []analysis.Request
	final    json.RawMessage
}

func (e *fakeEngine) Analyze(_ context.Context, req analysis.Request) (*analysis.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.requests = append(e.requests, req)
	if e.err != nil {
		return nil, e.err
	}
	return e.result, nil
}

func (e *fakeEngine) FinalResult(_ context.Context, userID string) (json.RawMessage, error) {
	if e.err != nil {
		return nil, e.err
	}
	if e.final == nil {
		return nil, errors.New("no final result")
	}
	return e.final, nil
}

func (e *fakeEngine) Health(context.Context) (json.RawMessage, error) {
	if e.err != nil {
		return nil, e.err
	}
	return json.RawMessage(`{"status":"ok"}`), nil
}
