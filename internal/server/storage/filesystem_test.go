package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileSystemStore_Save(t *testing.T) {
	t.Run("saves object to disk", func(t *testing.T) {
		dir := t.TempDir()
		store := NewFileSystemStore(dir)

		data := bytes.NewReader([]byte("test content"))
		n, err := store.Save("abc123.txt", data)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if n != 12 {
			t.Errorf("expected 12 bytes written, got %d", n)
		}

		// Verify file exists on disk
		content, err := os.ReadFile(filepath.Join(dir, "abc123.txt"))
		if err != nil {
			t.Fatalf("failed to read saved file: %v", err)
		}
		if string(content) != "test content" {
			t.Errorf("expected 'test content', got %q", content)
		}
	})

	t.Run("saves large content", func(t *testing.T) {
		dir := t.TempDir()
		store := NewFileSystemStore(dir)

		largeContent := strings.Repeat("x", 1024*1024) // 1MB
		data := bytes.NewReader([]byte(largeContent))
		n, err := store.Save("large.bin", data)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if n != int64(len(largeContent)) {
			t.Errorf("expected %d bytes, got %d", len(largeContent), n)
		}
	})
}

func TestFileSystemStore_Path(t *testing.T) {
	t.Run("returns path for existing object", func(t *testing.T) {
		dir := t.TempDir()
		store := NewFileSystemStore(dir)

		filePath := filepath.Join(dir, "test123.txt")
		if err := os.WriteFile(filePath, []byte("data"), 0644); err != nil {
			t.Fatalf("failed to seed file: %v", err)
		}

		got, err := store.Path("test123.txt")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != filePath {
			t.Errorf("expected %s, got %s", filePath, got)
		}
	})

	t.Run("errors for missing object", func(t *testing.T) {
		store := NewFileSystemStore(t.TempDir())

		if _, err := store.Path("nonexistent.txt"); err == nil {
			t.Error("expected error for missing object")
		}
	})
}

func TestFileSystemStore_Delete(t *testing.T) {
	t.Run("removes object from disk", func(t *testing.T) {
		dir := t.TempDir()
		store := NewFileSystemStore(dir)

		filePath := filepath.Join(dir, "doomed.txt")
		if err := os.WriteFile(filePath, []byte("data"), 0644); err != nil {
			t.Fatalf("failed to seed file: %v", err)
		}

		if err := store.Delete("doomed.txt"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := os.Stat(filePath); !os.IsNotExist(err) {
			t.Error("expected file to be removed")
		}
	})

	t.Run("missing object is not an error", func(t *testing.T) {
		store := NewFileSystemStore(t.TempDir())

		if err := store.Delete("never-existed.txt"); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestFileSystemStore_EnsureDirs(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "uploads")
	store := NewFileSystemStore(dir)

	if err := store.EnsureDirs(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, p := range []string{dir, filepath.Join(dir, "thumbnails")} {
		info, err := os.Stat(p)
		if err != nil {
			t.Fatalf("expected directory %s: %v", p, err)
		}
		if !info.IsDir() {
			t.Errorf("expected %s to be a directory", p)
		}
	}
}

func TestFileSystemStore_Thumbs(t *testing.T) {
	dir := t.TempDir()
	store := NewFileSystemStore(dir)
	if err := store.EnsureDirs(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Run("target uses the thumbnails dir and prefix", func(t *testing.T) {
		got := store.ThumbTarget("abc.jpg")
		want := filepath.Join(dir, "thumbnails", "thumb_abc.jpg")
		if got != want {
			t.Errorf("expected %s, got %s", want, got)
		}
	})

	t.Run("path errors before generation, resolves after", func(t *testing.T) {
		if _, err := store.ThumbPath("abc.jpg"); err == nil {
			t.Error("expected error before derivative exists")
		}

		if err := os.WriteFile(store.ThumbTarget("abc.jpg"), []byte("jpeg"), 0644); err != nil {
			t.Fatalf("failed to seed derivative: %v", err)
		}

		got, err := store.ThumbPath("abc.jpg")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != store.ThumbTarget("abc.jpg") {
			t.Errorf("unexpected path %s", got)
		}
	})

	t.Run("delete removes the derivative only", func(t *testing.T) {
		objPath := filepath.Join(dir, "abc.jpg")
		if err := os.WriteFile(objPath, []byte("original"), 0644); err != nil {
			t.Fatalf("failed to seed object: %v", err)
		}

		if err := store.DeleteThumb("abc.jpg"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := store.ThumbPath("abc.jpg"); err == nil {
			t.Error("expected derivative to be gone")
		}
		if _, err := os.Stat(objPath); err != nil {
			t.Errorf("original object should survive: %v", err)
		}
	})

	t.Run("deleting a missing derivative is not an error", func(t *testing.T) {
		if err := store.DeleteThumb("never.jpg"); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}
