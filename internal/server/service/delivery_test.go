package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"filevault/internal/server/database"
	"filevault/internal/server/storage"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// writeObject puts content into a real store under a temp dir and returns
// the store.
func writeObject(t *testing.T, filename string, content []byte) storage.Store {
	t.Helper()
	store := storage.NewFileSystemStore(t.TempDir())
	require.NoError(t, store.EnsureDirs())
	_, err := store.Save(filename, bytes.NewReader(content))
	require.NoError(t, err)
	return store
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDownload(t *testing.T) {
	ctx := context.Background()
	owner := Identity{UserID: uuid.New(), Role: RoleUser}
	fileID := uuid.New()
	filename := fileID.String() + ".txt"

	record := func() *database.File {
		return &database.File{
			ID:           fileID,
			OwnerID:      owner.UserID,
			OriginalName: "notes.txt",
			Filename:     filename,
			Mimetype:     "text/plain",
			IsActive:     true,
		}
	}

	t.Run("serves the object and commits the counter", func(t *testing.T) {
		store := writeObject(t, filename, []byte("hello"))

		files := &mockFileRepo{}
		files.On("GetByID", mock.Anything, fileID).Return(record(), nil)
		files.On("IncrementDownload", mock.Anything, fileID).Return(nil).Once()

		svc := NewFileService(files, &mockUserRepo{}, store, &fakeQueue{}, testConfig())
		content, err := svc.Download(ctx, owner, fileID, "")
		require.NoError(t, err)

		assert.Equal(t, "notes.txt", content.Name)
		assert.Equal(t, "text/plain", content.Mimetype)
		data, err := os.ReadFile(content.Path)
		require.NoError(t, err)
		assert.Equal(t, []byte("hello"), data)
		files.AssertExpectations(t)
	})

	t.Run("counter failure does not block delivery", func(t *testing.T) {
		store := writeObject(t, filename, []byte("hello"))

		files := &mockFileRepo{}
		files.On("GetByID", mock.Anything, fileID).Return(record(), nil)
		files.On("IncrementDownload", mock.Anything, fileID).Return(assert.AnError)

		svc := NewFileService(files, &mockUserRepo{}, store, &fakeQueue{}, testConfig())
		content, err := svc.Download(ctx, owner, fileID, "")
		require.NoError(t, err)
		assert.NotEmpty(t, content.Path)
	})

	t.Run("gate runs before the counter", func(t *testing.T) {
		store := writeObject(t, filename, []byte("hello"))

		f := record()
		f.PasswordHash = hashOf(t, "secret")
		files := &mockFileRepo{}
		files.On("GetByID", mock.Anything, fileID).Return(f, nil)

		svc := NewFileService(files, &mockUserRepo{}, store, &fakeQueue{}, testConfig())
		_, err := svc.Download(ctx, owner, fileID, "wrong")
		require.ErrorIs(t, err, ErrUnauthorized)
		files.AssertNotCalled(t, "IncrementDownload", mock.Anything, mock.Anything)
	})

	t.Run("live record with missing bytes is an inconsistency", func(t *testing.T) {
		store := storage.NewFileSystemStore(t.TempDir())
		require.NoError(t, store.EnsureDirs())

		files := &mockFileRepo{}
		files.On("GetByID", mock.Anything, fileID).Return(record(), nil)

		svc := NewFileService(files, &mockUserRepo{}, store, &fakeQueue{}, testConfig())
		_, err := svc.Download(ctx, owner, fileID, "")
		require.ErrorIs(t, err, ErrStorageInconsistency)
		files.AssertNotCalled(t, "IncrementDownload", mock.Anything, mock.Anything)
	})
}

func TestDownloadShared(t *testing.T) {
	ctx := context.Background()
	shareID := uuid.New()
	fileID := uuid.New()
	filename := fileID.String() + ".txt"

	store := writeObject(t, filename, []byte("shared"))

	files := &mockFileRepo{}
	files.On("GetByShareID", mock.Anything, shareID).Return(&database.File{
		ID:           fileID,
		ShareID:      shareID,
		OwnerID:      uuid.New(),
		OriginalName: "notes.txt",
		Filename:     filename,
		Mimetype:     "text/plain",
		IsActive:     true,
		IsPublic:     false, // token possession suffices
	}, nil)
	files.On("IncrementDownload", mock.Anything, fileID).Return(nil)

	svc := NewFileService(files, &mockUserRepo{}, store, &fakeQueue{}, testConfig())
	content, err := svc.DownloadShared(ctx, shareID, "")
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", content.Name)
}

func TestResolveShared(t *testing.T) {
	ctx := context.Background()
	shareID := uuid.New()
	fileID := uuid.New()

	record := func() *database.File {
		return &database.File{
			ID:           fileID,
			ShareID:      shareID,
			OwnerID:      uuid.New(),
			OriginalName: "report.pdf",
			Mimetype:     "application/pdf",
			Size:         2048,
			ViewCount:    4,
			IsActive:     true,
			PasswordHash: hashOf(t, "secret"),
		}
	}

	t.Run("returns metadata with protection as a boolean", func(t *testing.T) {
		files := &mockFileRepo{}
		files.On("GetByShareID", mock.Anything, shareID).Return(record(), nil)
		files.On("IncrementView", mock.Anything, fileID).Return(nil)

		svc := NewFileService(files, &mockUserRepo{}, newFakeStore(), &fakeQueue{}, testConfig())
		info, err := svc.ResolveShared(ctx, shareID)
		require.NoError(t, err)

		assert.Equal(t, "report.pdf", info.OriginalName)
		assert.True(t, info.HasPassword)
		assert.Equal(t, "2.0 KB", info.SizeFormatted)
		assert.Equal(t, 5, info.ViewCount)
	})

	t.Run("view counter failure leaves the count as read", func(t *testing.T) {
		files := &mockFileRepo{}
		files.On("GetByShareID", mock.Anything, shareID).Return(record(), nil)
		files.On("IncrementView", mock.Anything, fileID).Return(assert.AnError)

		svc := NewFileService(files, &mockUserRepo{}, newFakeStore(), &fakeQueue{}, testConfig())
		info, err := svc.ResolveShared(ctx, shareID)
		require.NoError(t, err)
		assert.Equal(t, 4, info.ViewCount)
	})

	t.Run("unknown token reads as not found", func(t *testing.T) {
		files := &mockFileRepo{}
		files.On("GetByShareID", mock.Anything, shareID).Return(nil, database.ErrFileNotFound)

		svc := NewFileService(files, &mockUserRepo{}, newFakeStore(), &fakeQueue{}, testConfig())
		_, err := svc.ResolveShared(ctx, shareID)
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestPreview(t *testing.T) {
	ctx := context.Background()
	owner := Identity{UserID: uuid.New(), Role: RoleUser}
	fileID := uuid.New()

	t.Run("rejects non-previewable types", func(t *testing.T) {
		files := &mockFileRepo{}
		files.On("GetByID", mock.Anything, fileID).Return(&database.File{
			ID:       fileID,
			OwnerID:  owner.UserID,
			Mimetype: "application/zip",
			IsActive: true,
		}, nil)

		svc := NewFileService(files, &mockUserRepo{}, newFakeStore(), &fakeQueue{}, testConfig())
		_, err := svc.Preview(ctx, owner, fileID, "")
		require.ErrorIs(t, err, ErrUnsupportedPreview)
	})

	t.Run("re-encodes large images to a capped jpeg", func(t *testing.T) {
		filename := fileID.String() + ".png"
		store := writeObject(t, filename, pngBytes(t, 1600, 1200))

		files := &mockFileRepo{}
		files.On("GetByID", mock.Anything, fileID).Return(&database.File{
			ID:           fileID,
			OwnerID:      owner.UserID,
			OriginalName: "photo.png",
			Filename:     filename,
			Mimetype:     "image/png",
			IsActive:     true,
		}, nil)
		files.On("IncrementView", mock.Anything, fileID).Return(nil)

		svc := NewFileService(files, &mockUserRepo{}, store, &fakeQueue{}, testConfig())
		content, err := svc.Preview(ctx, owner, fileID, "")
		require.NoError(t, err)

		require.NotNil(t, content.Bytes)
		assert.Equal(t, "image/jpeg", content.Mimetype)

		img, format, err := image.Decode(bytes.NewReader(content.Bytes))
		require.NoError(t, err)
		assert.Equal(t, "jpeg", format)
		assert.LessOrEqual(t, img.Bounds().Dx(), 800)
		assert.LessOrEqual(t, img.Bounds().Dy(), 800)
	})

	t.Run("corrupt image falls back to the original bytes", func(t *testing.T) {
		filename := fileID.String() + ".png"
		store := writeObject(t, filename, []byte("not an image"))

		files := &mockFileRepo{}
		files.On("GetByID", mock.Anything, fileID).Return(&database.File{
			ID:           fileID,
			OwnerID:      owner.UserID,
			OriginalName: "broken.png",
			Filename:     filename,
			Mimetype:     "image/png",
			IsActive:     true,
		}, nil)
		files.On("IncrementView", mock.Anything, fileID).Return(nil)

		svc := NewFileService(files, &mockUserRepo{}, store, &fakeQueue{}, testConfig())
		content, err := svc.Preview(ctx, owner, fileID, "")
		require.NoError(t, err)
		assert.Nil(t, content.Bytes)
		assert.NotEmpty(t, content.Path)
		assert.Equal(t, "image/png", content.Mimetype)
	})

	t.Run("svg is served verbatim", func(t *testing.T) {
		filename := fileID.String() + ".svg"
		svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg"/>`)
		store := writeObject(t, filename, svg)

		files := &mockFileRepo{}
		files.On("GetByID", mock.Anything, fileID).Return(&database.File{
			ID:           fileID,
			OwnerID:      owner.UserID,
			OriginalName: "icon.svg",
			Filename:     filename,
			Mimetype:     "image/svg+xml",
			IsActive:     true,
		}, nil)
		files.On("IncrementView", mock.Anything, fileID).Return(nil)

		svc := NewFileService(files, &mockUserRepo{}, store, &fakeQueue{}, testConfig())
		content, err := svc.Preview(ctx, owner, fileID, "")
		require.NoError(t, err)
		assert.Nil(t, content.Bytes)
		assert.Equal(t, filepath.Base(content.Path), filename)
		assert.Equal(t, "image/svg+xml", content.Mimetype)
	})

	t.Run("protected preview requires the password", func(t *testing.T) {
		files := &mockFileRepo{}
		files.On("GetByID", mock.Anything, fileID).Return(&database.File{
			ID:           fileID,
			OwnerID:      owner.UserID,
			Mimetype:     "image/png",
			IsActive:     true,
			PasswordHash: hashOf(t, "secret"),
		}, nil)

		svc := NewFileService(files, &mockUserRepo{}, newFakeStore(), &fakeQueue{}, testConfig())
		_, err := svc.Preview(ctx, owner, fileID, "")
		require.ErrorIs(t, err, ErrUnauthorized)
	})
}
