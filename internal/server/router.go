package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/ngx-workshop/user-metadata-api/internal/auth"
	"github.com/ngx-workshop/user-metadata-api/internal/usermeta"
	"go.uber.org/zap"
)

const claimsContextKey = "usermeta_access_claims"

var (
	errMissingValidator = errors.New("access validator dependency required")
	errMissingRecords   = errors.New("record service dependency required")
	errMissingRoleSync  = errors.New("role synchronizer dependency required")
)

// AccessValidator authenticates inbound requests.
type AccessValidator interface {
	ValidateRequest(r *http.Request) (auth.AccessClaims, error)
	CookieName() string
}

// RoleSynchronizer is the dual-write role protocol consumed by the router.
type RoleSynchronizer interface {
	UpdateRole(ctx context.Context, uuid string, role usermeta.Role, token string) (usermeta.Record, error)
}

// Dependencies wires the HTTP surface to the core services.
type Dependencies struct {
	Validator AccessValidator
	Records   *usermeta.Service
	RoleSync  RoleSynchronizer
	Logger    *zap.Logger
}

// NewHTTPHandler assembles the gin router.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Validator == nil {
		return nil, errMissingValidator
	}
	if deps.Records == nil {
		return nil, errMissingRecords
	}
	if deps.RoleSync == nil {
		return nil, errMissingRoleSync
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		validator: deps.Validator,
		records:   deps.Records,
		roleSync:  deps.RoleSync,
		logger:    logger,
	}

	group := router.Group("/user-metadata")
	group.Use(handler.authenticate)
	group.PUT("", handler.handleUpsert)
	group.GET("", handler.handleFind)
	group.POST("", handler.handleCreate)
	group.PATCH("", handler.handleUpdate)
	group.DELETE("/:userId", handler.handleRemove)

	admin := group.Group("")
	admin.Use(handler.requireAdmin)
	admin.GET("/all", handler.handleList)
	admin.PATCH("/:userId/role", handler.handleUpdateRole)

	return router, nil
}

type httpHandler struct {
	validator AccessValidator
	records   *usermeta.Service
	roleSync  RoleSynchronizer
	logger    *zap.Logger
}

func (h *httpHandler) authenticate(c *gin.Context) {
	claims, err := h.validator.ValidateRequest(c.Request)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(claimsContextKey, claims)
	c.Next()
}

func (h *httpHandler) requireAdmin(c *gin.Context) {
	claims, ok := claimsFrom(c)
	if !ok || !claims.HasRole(usermeta.RoleAdmin.String()) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	c.Next()
}

func claimsFrom(c *gin.Context) (auth.AccessClaims, bool) {
	value, exists := c.Get(claimsContextKey)
	if !exists {
		return auth.AccessClaims{}, false
	}
	claims, ok := value.(auth.AccessClaims)
	return claims, ok
}
