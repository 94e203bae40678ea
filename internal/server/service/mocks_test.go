package service

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"filevault/internal/server/database"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type mockFileRepo struct {
	mock.Mock
}

func (m *mockFileRepo) CreateBatch(ctx context.Context, files []*database.File) error {
	return m.Called(ctx, files).Error(0)
}

func (m *mockFileRepo) GetByID(ctx context.Context, id uuid.UUID) (*database.File, error) {
	args := m.Called(ctx, id)
	f, _ := args.Get(0).(*database.File)
	return f, args.Error(1)
}

func (m *mockFileRepo) GetByShareID(ctx context.Context, shareID uuid.UUID) (*database.File, error) {
	args := m.Called(ctx, shareID)
	f, _ := args.Get(0).(*database.File)
	return f, args.Error(1)
}

func (m *mockFileRepo) List(ctx context.Context, filter database.FileFilter) ([]*database.File, int64, error) {
	args := m.Called(ctx, filter)
	files, _ := args.Get(0).([]*database.File)
	return files, args.Get(1).(int64), args.Error(2)
}

func (m *mockFileRepo) UpdateSettings(ctx context.Context, id uuid.UUID, upd database.FileSettingsUpdate) error {
	return m.Called(ctx, id, upd).Error(0)
}

func (m *mockFileRepo) IncrementDownload(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockFileRepo) IncrementView(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockFileRepo) SoftDeleteOwner(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *mockFileRepo) SoftDeleteAdmin(ctx context.Context, id, adminID uuid.UUID) (bool, error) {
	args := m.Called(ctx, id, adminID)
	return args.Bool(0), args.Error(1)
}

func (m *mockFileRepo) DeletePermanent(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockFileRepo) GetStats(ctx context.Context) (*database.Stats, error) {
	args := m.Called(ctx)
	st, _ := args.Get(0).(*database.Stats)
	return st, args.Error(1)
}

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*database.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*database.User)
	return u, args.Error(1)
}

func (m *mockUserRepo) List(ctx context.Context, filter database.UserFilter) ([]*database.User, int64, error) {
	args := m.Called(ctx, filter)
	users, _ := args.Get(0).([]*database.User)
	return users, args.Get(1).(int64), args.Error(2)
}

func (m *mockUserRepo) Update(ctx context.Context, id uuid.UUID, upd database.UserUpdate) (*database.User, error) {
	args := m.Called(ctx, id, upd)
	u, _ := args.Get(0).(*database.User)
	return u, args.Error(1)
}

// fakeStore is an in-memory Store for tests that never need real paths.
type fakeStore struct {
	objects map[string][]byte
	deleted []string
	saveErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte)}
}

func (f *fakeStore) EnsureDirs() error { return nil }

func (f *fakeStore) Save(filename string, data io.Reader) (int64, error) {
	if f.saveErr != nil {
		return 0, f.saveErr
	}
	var buf bytes.Buffer
	n, err := io.Copy(&buf, data)
	if err != nil {
		return 0, err
	}
	f.objects[filename] = buf.Bytes()
	return n, nil
}

func (f *fakeStore) Path(filename string) (string, error) {
	if _, ok := f.objects[filename]; !ok {
		return "", fmt.Errorf("object %s not found in store", filename)
	}
	return "/fake/" + filename, nil
}

func (f *fakeStore) Delete(filename string) error {
	delete(f.objects, filename)
	f.deleted = append(f.deleted, filename)
	return nil
}

func (f *fakeStore) ThumbPath(filename string) (string, error) {
	return "", fmt.Errorf("no derivative for %s", filename)
}

func (f *fakeStore) ThumbTarget(filename string) string {
	return "/fake/thumbnails/thumb_" + filename
}

func (f *fakeStore) DeleteThumb(filename string) error {
	f.deleted = append(f.deleted, "thumb_"+filename)
	return nil
}

// fakeQueue records enqueued derivative jobs.
type fakeQueue struct {
	enqueued []string
}

func (q *fakeQueue) Enqueue(filename string) {
	q.enqueued = append(q.enqueued, filename)
}
