package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ngx-workshop/user-metadata-api/internal/auth"
	"github.com/ngx-workshop/user-metadata-api/internal/usermeta"
	"go.uber.org/zap"
)

type recordPayload struct {
	UUID        string    `json:"uuid"`
	Role        string    `json:"role"`
	FirstName   string    `json:"firstName,omitempty"`
	LastName    string    `json:"lastName,omitempty"`
	Email       string    `json:"email,omitempty"`
	AvatarURL   string    `json:"avatarUrl,omitempty"`
	Description string    `json:"description"`
	LastUpdated time.Time `json:"lastUpdated"`
	Version     int64     `json:"version"`
}

func toRecordPayload(record usermeta.Record) recordPayload {
	return recordPayload{
		UUID:        record.UUID,
		Role:        record.Role.String(),
		FirstName:   record.FirstName,
		LastName:    record.LastName,
		Email:       record.Email,
		AvatarURL:   record.AvatarURL,
		Description: record.Description,
		LastUpdated: record.LastUpdated,
		Version:     record.Version,
	}
}

type pagePayload struct {
	Data       []recordPayload `json:"data"`
	Total      int64           `json:"total"`
	Page       int             `json:"page"`
	Limit      int             `json:"limit"`
	TotalPages int64           `json:"totalPages"`
}

type createRequestPayload struct {
	UUID        string `json:"uuid" binding:"required"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	AvatarURL   string `json:"avatarUrl"`
	Description string `json:"description"`
}

type updateRequestPayload struct {
	FirstName   *string `json:"firstName"`
	LastName    *string `json:"lastName"`
	Email       *string `json:"email"`
	AvatarURL   *string `json:"avatarUrl"`
	Description *string `json:"description"`
}

type updateRolePayload struct {
	Role string `json:"role" binding:"required"`
}

// handleUpsert provisions or refreshes the caller's own record on contact.
func (h *httpHandler) handleUpsert(c *gin.Context) {
	claims, ok := claimsFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	record, err := h.records.UpsertByUUID(c.Request.Context(), claims.Subject, usermeta.ProfileHints{
		Email: claims.Email,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toRecordPayload(record))
}

// handleFind reads the caller's record, lazily provisioning on first contact.
func (h *httpHandler) handleFind(c *gin.Context) {
	claims, ok := claimsFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	record, err := h.records.FindByUUID(c.Request.Context(), claims.Subject)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toRecordPayload(record))
}

func (h *httpHandler) handleCreate(c *gin.Context) {
	var request createRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	record, err := h.records.Create(c.Request.Context(), usermeta.CreateInput{
		UUID:        request.UUID,
		FirstName:   request.FirstName,
		LastName:    request.LastName,
		Email:       request.Email,
		AvatarURL:   request.AvatarURL,
		Description: request.Description,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toRecordPayload(record))
}

func (h *httpHandler) handleUpdate(c *gin.Context) {
	claims, ok := claimsFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var request updateRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	record, err := h.records.Update(c.Request.Context(), claims.Subject, usermeta.UpdateInput{
		FirstName:   request.FirstName,
		LastName:    request.LastName,
		Email:       request.Email,
		AvatarURL:   request.AvatarURL,
		Description: request.Description,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toRecordPayload(record))
}

func (h *httpHandler) handleList(c *gin.Context) {
	request := usermeta.PageRequest{
		Page:  usermeta.DefaultPage,
		Limit: usermeta.DefaultLimit,
		Query: strings.TrimSpace(c.Query("query")),
	}

	if raw := c.Query("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_page"})
			return
		}
		request.Page = page
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_limit"})
			return
		}
		request.Limit = limit
	}
	if raw := c.Query("role"); raw != "" {
		role, err := usermeta.ParseRole(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_role"})
			return
		}
		request.Role = role
	}

	result, err := h.records.ListPaginated(c.Request.Context(), request)
	if err != nil {
		h.writeError(c, err)
		return
	}

	payload := pagePayload{
		Data:       make([]recordPayload, 0, len(result.Data)),
		Total:      result.Total,
		Page:       result.Page,
		Limit:      result.Limit,
		TotalPages: result.TotalPages,
	}
	for _, record := range result.Data {
		payload.Data = append(payload.Data, toRecordPayload(record))
	}
	c.JSON(http.StatusOK, payload)
}

// handleUpdateRole runs the dual-write protocol: commit locally, then hand
// the caller's token to the synchronizer for detached propagation.
func (h *httpHandler) handleUpdateRole(c *gin.Context) {
	var request updateRolePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	role, err := usermeta.ParseRole(request.Role)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_role"})
		return
	}

	// The raw token is forwarded, not re-issued; extraction may come up
	// empty, in which case propagation fails Unauthorized out-of-band while
	// the local commit still stands.
	token, err := auth.ExtractBearerToken(c.Request.Header, c.Request.Cookies(), h.validator.CookieName())
	if err != nil {
		token = ""
	}

	record, err := h.roleSync.UpdateRole(c.Request.Context(), c.Param("userId"), role, token)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toRecordPayload(record))
}

func (h *httpHandler) handleRemove(c *gin.Context) {
	if err := h.records.Remove(c.Request.Context(), c.Param("userId")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, usermeta.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	case errors.Is(err, usermeta.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "conflict"})
	case errors.Is(err, usermeta.ErrInvalidUUID), errors.Is(err, usermeta.ErrInvalidRole):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
	default:
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
	}
}
