package api

import (
	"net/http"
	"strconv"

	"filevault/internal/server/service"

	"github.com/labstack/echo/v4"
)

// HandleAdminStats handles GET /api/admin/stats.
func (h *Handler) HandleAdminStats(c echo.Context) error {
	stats, err := h.admin.Stats(c.Request().Context())
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"stats":   stats,
	})
}

// HandleAdminFiles handles GET /api/admin/files. Unlike the owner listing
// this includes soft-deleted records.
func (h *Handler) HandleAdminFiles(c echo.Context) error {
	list, err := h.admin.ListFiles(c.Request().Context(), listOptions(c))
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success":    true,
		"files":      list.Files,
		"pagination": list.Pagination,
	})
}

// HandleAdminUsers handles GET /api/admin/users.
func (h *Handler) HandleAdminUsers(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	list, err := h.admin.ListUsers(c.Request().Context(), service.UserListOptions{
		Page:      page,
		Limit:     limit,
		Search:    c.QueryParam("search"),
		SortBy:    c.QueryParam("sortBy"),
		SortOrder: c.QueryParam("sortOrder"),
	})
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success":    true,
		"users":      list.Users,
		"pagination": list.Pagination,
	})
}

// HandleAdminUpdateUser handles PUT /api/admin/users/:id.
func (h *Handler) HandleAdminUpdateUser(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return errorJSON(c, http.StatusNotFound, "User not found", "not_found")
	}

	var req struct {
		Role       *string `json:"role"`
		IsActive   *bool   `json:"isActive"`
		MaxStorage *int64  `json:"maxStorage"`
	}
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body", "invalid_input")
	}

	user, err := h.admin.UpdateUser(c.Request().Context(), id, service.UserUpdateRequest{
		Role:       req.Role,
		IsActive:   req.IsActive,
		MaxStorage: req.MaxStorage,
	})
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "User updated successfully",
		"user":    user,
	})
}

// HandleAdminSoftDelete handles PUT /api/admin/files/:id/soft-delete.
func (h *Handler) HandleAdminSoftDelete(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return mapServiceError(c, err)
	}

	if err := h.admin.SoftDeleteFile(c.Request().Context(), identityFrom(c), id); err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "File deleted successfully",
	})
}

// HandleAdminPermanentDelete handles DELETE /api/admin/files/:id/permanent.
func (h *Handler) HandleAdminPermanentDelete(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return mapServiceError(c, err)
	}

	if err := h.admin.PermanentDeleteFile(c.Request().Context(), identityFrom(c), id); err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "File permanently deleted",
	})
}
