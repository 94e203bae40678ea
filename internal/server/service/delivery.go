package service

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"filevault/internal/server/database"
	"filevault/internal/server/storage"

	"github.com/google/uuid"
)

// previewableTypes is the fixed allow-list of MIME types served inline.
var previewableTypes = map[string]bool{
	"image/jpeg": true, "image/jpg": true, "image/png": true,
	"image/gif": true, "image/webp": true, "image/svg+xml": true,
	"application/pdf": true,
	"text/plain":      true, "text/html": true, "text/css": true,
	"text/javascript": true, "application/json": true,
}

// Content is a gate-approved byte payload ready for delivery. Exactly one
// of Path and Bytes is set: Path streams straight from the store, Bytes
// carries a re-encoded variant produced at request time.
type Content struct {
	Path     string
	Bytes    []byte
	Mimetype string
	Name     string // download filename (the original client name)
}

// Download serves an owner's file as an attachment. The gate runs first;
// the download counter is committed once the stream is about to begin, so
// a client abort mid-stream does not roll it back.
func (s *FileService) Download(ctx context.Context, who Identity, fileID uuid.UUID, password string) (*Content, error) {
	f, err := s.lookupByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if err := authorize(f, ownerPath, who.UserID, contentRead, password); err != nil {
		return nil, err
	}
	return s.deliver(ctx, f)
}

// DownloadShared serves a file to an anonymous holder of its share token.
func (s *FileService) DownloadShared(ctx context.Context, shareID uuid.UUID, password string) (*Content, error) {
	f, err := s.lookupByShareID(ctx, shareID)
	if err != nil {
		return nil, err
	}
	if err := authorize(f, publicPath, uuid.Nil, contentRead, password); err != nil {
		return nil, err
	}
	return s.deliver(ctx, f)
}

// ResolveShared returns the anonymous share-page metadata and counts the
// visit as a view.
func (s *FileService) ResolveShared(ctx context.Context, shareID uuid.UUID) (*SharedFileInfo, error) {
	f, err := s.lookupByShareID(ctx, shareID)
	if err != nil {
		return nil, err
	}
	if err := authorize(f, publicPath, uuid.Nil, metadataRead, ""); err != nil {
		return nil, err
	}

	if err := s.files.IncrementView(ctx, f.ID); err != nil {
		slog.Error("failed to increment view count", "file", f.ID, "error", err)
	} else {
		f.ViewCount++
	}
	return sharedInfo(f), nil
}

// Preview serves an owner's file inline. Images (except SVG) are
// re-encoded to a size-capped JPEG, falling back to the original bytes
// when re-encoding fails at request time; other previewable types are
// served as-is.
func (s *FileService) Preview(ctx context.Context, who Identity, fileID uuid.UUID, password string) (*Content, error) {
	f, err := s.lookupByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if err := authorize(f, ownerPath, who.UserID, contentRead, password); err != nil {
		return nil, err
	}
	if !previewableTypes[f.Mimetype] {
		return nil, ErrUnsupportedPreview
	}

	path, err := s.objectPath(f)
	if err != nil {
		return nil, err
	}

	if err := s.files.IncrementView(ctx, f.ID); err != nil {
		slog.Error("failed to increment view count", "file", f.ID, "error", err)
	}

	if isThumbnailable(f.Mimetype) {
		if rendered, err := storage.RenderPreview(path, s.cfg.PreviewMaxDim); err == nil {
			return &Content{Bytes: rendered, Mimetype: "image/jpeg", Name: f.OriginalName}, nil
		} else {
			slog.Warn("preview re-encode failed, serving original", "file", f.ID, "error", err)
		}
	}

	return &Content{Path: path, Mimetype: f.Mimetype, Name: f.OriginalName}, nil
}

// deliver resolves the backing object and commits the download counter.
func (s *FileService) deliver(ctx context.Context, f *database.File) (*Content, error) {
	path, err := s.objectPath(f)
	if err != nil {
		return nil, err
	}

	// Best-effort: a failed increment must not block the download.
	if err := s.files.IncrementDownload(ctx, f.ID); err != nil {
		slog.Error("failed to increment download count", "file", f.ID, "error", err)
	}

	return &Content{Path: path, Mimetype: f.Mimetype, Name: f.OriginalName}, nil
}

// objectPath resolves a live record's bytes. A miss here is a
// data-integrity fault, not a legitimate absence.
func (s *FileService) objectPath(f *database.File) (string, error) {
	path, err := s.store.Path(f.Filename)
	if err != nil {
		slog.Error("storage inconsistency: live record with missing bytes",
			"file", f.ID, "filename", f.Filename, "error", err)
		return "", ErrStorageInconsistency
	}
	if _, err := os.Stat(path); err != nil {
		slog.Error("storage inconsistency: object unreadable",
			"file", f.ID, "filename", f.Filename, "error", err)
		return "", ErrStorageInconsistency
	}
	return path, nil
}

// isThumbnailable reports whether the derivative generator can process the
// type. SVG is previewable but served verbatim.
func isThumbnailable(mimetype string) bool {
	return strings.HasPrefix(mimetype, "image/") && mimetype != "image/svg+xml"
}
