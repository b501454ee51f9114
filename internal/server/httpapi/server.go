// Package httpapi exposes the entitlement ledger over a JSON HTTP API.
// Callers authenticate with HMAC-signed service tokens; role tiers are
// enforced per route group.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"keygate/internal/logging"
	"keygate/internal/server/services"
)

// Services bundles the business-logic collaborators the handlers delegate
// to.
type Services struct {
	Keys   *services.KeyService
	Users  *services.UserService
	Roles  *services.RoleService
	Access *services.AccessService
	Status *services.StatusService
}

// Server wires gin routing, middleware, and the HTTP listener.
type Server struct {
	engine        *gin.Engine
	server        *http.Server
	log           logging.Logger
	svcs          Services
	secretKey     []byte
	tokenValidity time.Duration
	healthCheck   func(ctx context.Context) error
}

// NewServer builds the router with all middleware and routes registered.
// tokenValidity bounds the lifetime of service tokens minted over the API;
// healthCheck is consulted by /healthz and should verify storage
// reachability and schema shape.
func NewServer(addr string, secretKey []byte, tokenValidity time.Duration, svcs Services, healthCheck func(ctx context.Context) error, log logging.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.RedirectTrailingSlash = true

	s := &Server{
		engine:        engine,
		log:           log,
		svcs:          svcs,
		secretKey:     secretKey,
		tokenValidity: tokenValidity,
		healthCheck:   healthCheck,
	}

	engine.Use(
		requestID(),
		requestLogger(log),
		gin.Recovery(),
	)

	engine.GET("/healthz", s.healthz)

	api := engine.Group("/api", s.authenticate())
	{
		api.POST("/keys/redeem", s.redeemKey)
		api.GET("/profile", s.profile)
		api.GET("/status", s.getStatus)
		api.POST("/authorize", s.authorize)
		api.GET("/capabilities", s.listCapabilities)
	}

	staff := api.Group("", s.requireStaff())
	{
		staff.POST("/keys", s.createKey)
		staff.GET("/keys", s.listKeys)
		staff.GET("/users", s.listUsers)
		staff.GET("/stats", s.stats)
		staff.GET("/staff", s.listStaff)
		staff.GET("/admins", s.listAdmins)
	}

	admin := api.Group("", s.requireAdmin())
	{
		admin.PATCH("/users/:id", s.patchUser)
		admin.POST("/users/:id/extend", s.extendUser)
		admin.DELETE("/users/:id", s.deleteUser)
		admin.POST("/staff", s.addStaff)
		admin.DELETE("/staff/:id", s.removeStaff)
		admin.PUT("/status", s.setStatus)
	}

	super := api.Group("", s.requireSuperAdmin())
	{
		super.POST("/admins", s.addAdmin)
		super.DELETE("/admins/:id", s.removeAdmin)
		super.POST("/tokens", s.createToken)
	}

	s.server = &http.Server{
		Addr:         addr,
		Handler:      engine,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start blocks on ListenAndServe until the server is shut down.
func (s *Server) Start() error {
	s.log.Info(context.Background(), "http server starting", "addr", s.server.Addr)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen and serve: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info(ctx, "http server shutting down")
	return s.server.Shutdown(ctx)
}

// Handler exposes the underlying router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}
