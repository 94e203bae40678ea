package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"filevault/internal/server/database"
	"filevault/internal/server/service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Handler contains the HTTP handlers for the FileVault API.
type Handler struct {
	files *service.FileService
	admin *service.AdminService
	db    *database.DB
}

// NewHandler creates a new handler with the given service dependencies.
func NewHandler(files *service.FileService, admin *service.AdminService, db *database.DB) *Handler {
	return &Handler{files: files, admin: admin, db: db}
}

// HandleUpload handles POST /api/files/upload.
// Accepts a multipart form with one or more "files" parts and an optional
// "folderId" field.
func (h *Handler) HandleUpload(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"success": false,
			"message": "multipart form required (use form field 'files')",
			"code":    "invalid_input",
		})
	}

	headers := form.File["files"]
	if len(headers) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"success": false,
			"message": "no files uploaded",
			"code":    "invalid_input",
		})
	}

	var folderID *uuid.UUID
	if v := c.FormValue("folderId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{
				"success": false,
				"message": "invalid folderId",
				"code":    "invalid_input",
			})
		}
		folderID = &id
	}

	parts := make([]service.UploadPart, 0, len(headers))
	for _, fh := range headers {
		src, err := fh.Open()
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{
				"success": false,
				"message": "failed to read uploaded file",
				"code":    "internal",
			})
		}
		defer src.Close()

		parts = append(parts, service.UploadPart{
			Name:     fh.Filename,
			Mimetype: fh.Header.Get("Content-Type"),
			Size:     fh.Size,
			Data:     src,
		})
	}

	created, err := h.files.Upload(c.Request().Context(), identityFrom(c), folderID, parts)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"success": true,
		"message": fmt.Sprintf("%d file(s) uploaded successfully", len(created)),
		"files":   created,
	})
}

// HandleMyFiles handles GET /api/files/my-files.
func (h *Handler) HandleMyFiles(c echo.Context) error {
	list, err := h.files.ListFiles(c.Request().Context(), identityFrom(c), listOptions(c))
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success":    true,
		"files":      list.Files,
		"pagination": list.Pagination,
	})
}

// HandleGetFile handles GET /api/files/:id.
func (h *Handler) HandleGetFile(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return mapServiceError(c, err)
	}

	file, err := h.files.GetFile(c.Request().Context(), identityFrom(c), id)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"file":    file,
	})
}

// HandlePreview handles GET /api/files/preview/:id.
// Serves previewable types inline; images are re-encoded to a size-capped
// JPEG when possible. Accepts an optional "password" query param for
// protected files.
func (h *Handler) HandlePreview(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return mapServiceError(c, err)
	}

	content, err := h.files.Preview(c.Request().Context(), identityFrom(c), id, c.QueryParam("password"))
	if err != nil {
		return mapServiceError(c, err)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, "inline")
	c.Response().Header().Set("Cache-Control", "public, max-age=3600")

	if content.Bytes != nil {
		return c.Blob(http.StatusOK, content.Mimetype, content.Bytes)
	}
	c.Response().Header().Set(echo.HeaderContentType, content.Mimetype)
	return c.File(content.Path)
}

// HandleDownload handles POST /api/files/download/:id.
// Body: {"password": "..."} for protected files. Serves the file as an
// attachment under its original name.
func (h *Handler) HandleDownload(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return mapServiceError(c, err)
	}

	content, err := h.files.Download(c.Request().Context(), identityFrom(c), id, bindPassword(c))
	if err != nil {
		return mapServiceError(c, err)
	}

	c.Response().Header().Set(echo.HeaderContentType, content.Mimetype)
	return c.Attachment(content.Path, content.Name)
}

// HandleSharedInfo handles GET /api/files/shared/:shareId (public).
// Returns share-page metadata; the secret is never included, only its
// presence.
func (h *Handler) HandleSharedInfo(c echo.Context) error {
	shareID, err := parseID(c, "shareId")
	if err != nil {
		return mapServiceError(c, err)
	}

	info, err := h.files.ResolveShared(c.Request().Context(), shareID)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"file":    info,
	})
}

// HandleSharedDownload handles POST /api/files/shared/:shareId/download (public).
func (h *Handler) HandleSharedDownload(c echo.Context) error {
	shareID, err := parseID(c, "shareId")
	if err != nil {
		return mapServiceError(c, err)
	}

	content, err := h.files.DownloadShared(c.Request().Context(), shareID, bindPassword(c))
	if err != nil {
		return mapServiceError(c, err)
	}

	c.Response().Header().Set(echo.HeaderContentType, content.Mimetype)
	return c.Attachment(content.Path, content.Name)
}

// updateFileRequest is the wire shape of PUT /api/files/:id. Pointer
// fields distinguish absent from provided; expiresAt additionally
// distinguishes explicit null (clear) from absent (unchanged).
type updateFileRequest struct {
	IsPublic    *bool                `json:"isPublic"`
	Password    *string              `json:"password"`
	ExpiresAt   service.OptionalTime `json:"expiresAt"`
	Description *string              `json:"description"`
	Tags        []string             `json:"tags"`
}

// HandleUpdateFile handles PUT /api/files/:id.
func (h *Handler) HandleUpdateFile(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return mapServiceError(c, err)
	}

	var req updateFileRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"success": false,
			"message": "invalid request body",
			"code":    "invalid_input",
		})
	}

	settings, err := h.files.UpdateFile(c.Request().Context(), identityFrom(c), id, service.UpdateRequest{
		IsPublic:    req.IsPublic,
		Password:    req.Password,
		ExpiresAt:   req.ExpiresAt,
		Description: req.Description,
		Tags:        req.Tags,
	})
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "File updated successfully",
		"file":    settings,
	})
}

// HandleDeleteFile handles DELETE /api/files/:id (owner soft delete).
func (h *Handler) HandleDeleteFile(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return mapServiceError(c, err)
	}

	if err := h.files.DeleteFile(c.Request().Context(), identityFrom(c), id); err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "File deleted successfully",
	})
}

// HandleHealth handles GET /health.
func (h *Handler) HandleHealth(c echo.Context) error {
	status := "healthy"
	dbStatus := "connected"

	if err := h.db.HealthCheck(c.Request().Context()); err != nil {
		status = "degraded"
		dbStatus = fmt.Sprintf("error: %v", err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"status":   status,
		"database": dbStatus,
	})
}

// --- Helpers ---

func parseID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, service.ErrNotFound
	}
	return id, nil
}

// bindPassword reads the optional password from a JSON body. Bodies that
// fail to parse are treated as no password supplied; the gate rejects
// protected reads either way.
func bindPassword(c echo.Context) string {
	var body struct {
		Password string `json:"password"`
	}
	if err := c.Bind(&body); err != nil {
		return ""
	}
	return body.Password
}

func listOptions(c echo.Context) service.ListOptions {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	return service.ListOptions{
		Page:      page,
		Limit:     limit,
		Search:    c.QueryParam("search"),
		Category:  c.QueryParam("category"),
		SortBy:    c.QueryParam("sortBy"),
		SortOrder: c.QueryParam("sortOrder"),
	}
}

// mapServiceError translates service-layer errors into the wire contract.
// NotFound and Gone stay distinguishable; password failures are generic and
// never reveal whether protection exists.
func mapServiceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return errorJSON(c, http.StatusNotFound, "File not found", "not_found")
	case errors.Is(err, service.ErrUserNotFound):
		return errorJSON(c, http.StatusNotFound, "User not found", "not_found")
	case errors.Is(err, service.ErrGone):
		return errorJSON(c, http.StatusGone, "File is no longer available", "gone")
	case errors.Is(err, service.ErrUnauthorized):
		return errorJSON(c, http.StatusUnauthorized, "Incorrect password", "unauthorized")
	case errors.Is(err, service.ErrForbidden):
		return errorJSON(c, http.StatusForbidden, "Admin access required", "forbidden")
	case errors.Is(err, service.ErrQuotaExceeded):
		return errorJSON(c, http.StatusBadRequest, "Upload would exceed storage limit", "quota_exceeded")
	case errors.Is(err, service.ErrInvalidFileType):
		return errorJSON(c, http.StatusBadRequest, err.Error(), "invalid_file_type")
	case errors.Is(err, service.ErrFileTooLarge):
		return errorJSON(c, http.StatusRequestEntityTooLarge, "File exceeds maximum allowed size", "file_too_large")
	case errors.Is(err, service.ErrInvalidInput):
		return errorJSON(c, http.StatusBadRequest, err.Error(), "invalid_input")
	case errors.Is(err, service.ErrUnsupportedPreview):
		return errorJSON(c, http.StatusUnsupportedMediaType, "File type not supported for preview", "unsupported_preview")
	case errors.Is(err, service.ErrStorageInconsistency):
		return errorJSON(c, http.StatusNotFound, "File not found on disk", "storage_inconsistency")
	default:
		return errorJSON(c, http.StatusInternalServerError, "Internal server error", "internal")
	}
}

func errorJSON(c echo.Context, status int, message, code string) error {
	return c.JSON(status, echo.Map{
		"success": false,
		"message": message,
		"code":    code,
	})
}
