package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"keygate/internal/common"
	"keygate/internal/server/auth"
	"keygate/internal/server/models"
	"keygate/internal/server/services"
)

// statusFromError maps domain sentinels onto HTTP status codes.
func statusFromError(err error) int {
	switch {
	case errors.Is(err, common.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrInvalidToken), errors.Is(err, common.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrKeyAlreadyUsed), errors.Is(err, common.ErrAlreadyEnrolled), errors.Is(err, common.ErrDuplicateKey):
		return http.StatusConflict
	case errors.Is(err, common.ErrKeyExpired), errors.Is(err, common.ErrAccessExpired):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	status := statusFromError(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		// driver errors stay in the logs, not in responses
		msg = "internal error"
	}
	c.JSON(status, gin.H{"error": msg})
}

func limitQuery(c *gin.Context) int {
	limit := 0
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	return limit
}

type keyResponse struct {
	Key                string     `json:"key"`
	CreatedBy          string     `json:"created_by"`
	MaxDurationSeconds int        `json:"max_duration_seconds"`
	ConcurrencyQuota   int        `json:"concurrency_quota"`
	VIP                bool       `json:"vip"`
	ExpiresAt          *time.Time `json:"expires_at,omitempty"`
	UsedBy             *string    `json:"used_by,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

func toKeyResponse(k *models.Key) keyResponse {
	return keyResponse{
		Key:                k.ID,
		CreatedBy:          k.CreatedBy,
		MaxDurationSeconds: k.MaxDurationSeconds,
		ConcurrencyQuota:   k.ConcurrencyQuota,
		VIP:                k.VIP,
		ExpiresAt:          k.ExpiresAt,
		UsedBy:             k.UsedBy,
		CreatedAt:          k.CreatedAt,
	}
}

type userResponse struct {
	UserID             string     `json:"user_id"`
	KeyUsed            string     `json:"key_used"`
	VIP                bool       `json:"vip"`
	MaxDurationSeconds int        `json:"max_duration_seconds"`
	ConcurrencyQuota   int        `json:"concurrency_quota"`
	ExpiresAt          *time.Time `json:"expires_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

func toUserResponse(u *models.User) userResponse {
	return userResponse{
		UserID:             u.ID,
		KeyUsed:            u.KeyUsed,
		VIP:                u.VIP,
		MaxDurationSeconds: u.MaxDurationSeconds,
		ConcurrencyQuota:   u.ConcurrencyQuota,
		ExpiresAt:          u.ExpiresAt,
		CreatedAt:          u.CreatedAt,
	}
}

type createKeyRequest struct {
	MaxDurationSeconds int  `json:"max_duration_seconds"`
	ConcurrencyQuota   int  `json:"concurrency_quota"`
	VIP                bool `json:"vip"`
	ExpiresInDays      int  `json:"expires_in_days"`
}

func (s *Server) createKey(c *gin.Context) {
	var req createKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
		return
	}

	key, err := s.svcs.Keys.Generate(c.Request.Context(), services.GenerateParams{
		CreatedBy:          actorID(c),
		MaxDurationSeconds: req.MaxDurationSeconds,
		ConcurrencyQuota:   req.ConcurrencyQuota,
		VIP:                req.VIP,
		ExpiresInDays:      req.ExpiresInDays,
	})
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, toKeyResponse(key))
}

func (s *Server) listKeys(c *gin.Context) {
	keys, err := s.svcs.Keys.ListKeys(c.Request.Context(), limitQuery(c))
	if err != nil {
		fail(c, err)
		return
	}

	items := make([]keyResponse, 0, len(keys))
	for i := range keys {
		items = append(items, toKeyResponse(&keys[i]))
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

type redeemRequest struct {
	Key string `json:"key"`
}

func (s *Server) redeemKey(c *gin.Context) {
	var req redeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
		return
	}

	user, err := s.svcs.Keys.Redeem(c.Request.Context(), req.Key, actorID(c))
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, toUserResponse(user))
}

// profile returns the acting identity's own entitlement record. No tier
// requirement; any authenticated caller can read their own access.
func (s *Server) profile(c *gin.Context) {
	user, err := s.svcs.Users.Get(c.Request.Context(), actorID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toUserResponse(user))
}

func (s *Server) listUsers(c *gin.Context) {
	users, err := s.svcs.Users.List(c.Request.Context(), limitQuery(c))
	if err != nil {
		fail(c, err)
		return
	}

	items := make([]userResponse, 0, len(users))
	for i := range users {
		items = append(items, toUserResponse(&users[i]))
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

type patchUserRequest struct {
	VIP                *bool `json:"vip"`
	MaxDurationSeconds *int  `json:"max_duration_seconds"`
	ConcurrencyQuota   *int  `json:"concurrency_quota"`
}

func (s *Server) patchUser(c *gin.Context) {
	var req patchUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
		return
	}
	if req.VIP == nil && req.MaxDurationSeconds == nil && req.ConcurrencyQuota == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no attributes to update"})
		return
	}

	ctx := c.Request.Context()
	id := c.Param("id")

	if req.VIP != nil {
		if err := s.svcs.Users.SetVIP(ctx, id, *req.VIP); err != nil {
			fail(c, err)
			return
		}
	}
	if req.MaxDurationSeconds != nil {
		if err := s.svcs.Users.SetMaxDuration(ctx, id, *req.MaxDurationSeconds); err != nil {
			fail(c, err)
			return
		}
	}
	if req.ConcurrencyQuota != nil {
		if err := s.svcs.Users.SetConcurrency(ctx, id, *req.ConcurrencyQuota); err != nil {
			fail(c, err)
			return
		}
	}

	user, err := s.svcs.Users.Get(ctx, id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toUserResponse(user))
}

type extendRequest struct {
	Days int `json:"days"`
}

func (s *Server) extendUser(c *gin.Context) {
	var req extendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
		return
	}

	user, err := s.svcs.Keys.Extend(c.Request.Context(), c.Param("id"), req.Days)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, toUserResponse(user))
}

func (s *Server) deleteUser(c *gin.Context) {
	if err := s.svcs.Keys.Revoke(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type memberRequest struct {
	UserID string `json:"user_id"`
}

func (s *Server) addStaff(c *gin.Context) {
	var req memberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
		return
	}

	if err := s.svcs.Roles.AddStaff(c.Request.Context(), req.UserID, actorID(c)); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

func (s *Server) removeStaff(c *gin.Context) {
	if err := s.svcs.Roles.RemoveStaff(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listStaff(c *gin.Context) {
	s.listMembers(c, s.svcs.Roles.ListStaff)
}

func (s *Server) addAdmin(c *gin.Context) {
	var req memberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
		return
	}

	if err := s.svcs.Roles.AddAdmin(c.Request.Context(), req.UserID, actorID(c)); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

func (s *Server) removeAdmin(c *gin.Context) {
	if err := s.svcs.Roles.RemoveAdmin(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listAdmins(c *gin.Context) {
	s.listMembers(c, s.svcs.Roles.ListAdmins)
}

func (s *Server) listMembers(c *gin.Context, list func(ctx context.Context) ([]models.Membership, error)) {
	members, err := list(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}

	items := make([]gin.H, 0, len(members))
	for _, m := range members {
		items = append(items, gin.H{
			"user_id":    m.UserID,
			"added_by":   m.AddedBy,
			"created_at": m.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

type createTokenRequest struct {
	UserID string `json:"user_id"`
}

// createToken mints a service token for the given identity, valid for the
// configured token lifetime. Super admin only.
func (s *Server) createToken(c *gin.Context) {
	var req createTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
		return
	}
	if req.UserID == "" {
		fail(c, fmt.Errorf("%w: user identity required", common.ErrValidation))
		return
	}

	token, err := auth.GenerateToken(req.UserID, s.secretKey, s.tokenValidity)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"token":      token,
		"expires_at": time.Now().Add(s.tokenValidity),
	})
}

type setStatusRequest struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	ETA     string `json:"eta"`
}

func (s *Server) setStatus(c *gin.Context) {
	var req setStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
		return
	}

	rec, err := s.svcs.Status.Set(c.Request.Context(), models.Status(req.Status), req.Message, req.ETA, actorID(c))
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, statusResponse(rec))
}

func (s *Server) getStatus(c *gin.Context) {
	rec, err := s.svcs.Status.Get(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, statusResponse(rec))
}

func statusResponse(rec *models.StatusRecord) gin.H {
	return gin.H{
		"status":     rec.Status,
		"message":    rec.Message,
		"eta":        rec.ETA,
		"updated_by": rec.UpdatedBy,
		"updated_at": rec.UpdatedAt,
	}
}

type authorizeRequest struct {
	Capability      string `json:"capability"`
	DurationSeconds int    `json:"duration_seconds"`
}

func (s *Server) authorize(c *gin.Context) {
	var req authorizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
		return
	}

	decision, err := s.svcs.Access.Authorize(c.Request.Context(), actorID(c), services.AccessRequest{
		Capability:      req.Capability,
		DurationSeconds: req.DurationSeconds,
	})
	if err != nil {
		fail(c, err)
		return
	}

	resp := gin.H{"allowed": decision.Allowed}
	if !decision.Allowed {
		resp["reason"] = decision.Reason
	}
	if decision.Capability != nil {
		resp["capability"] = decision.Capability.Name
		resp["endpoint"] = decision.Capability.Endpoint
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) listCapabilities(c *gin.Context) {
	var vip bool
	user, err := s.svcs.Users.Get(c.Request.Context(), actorID(c))
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		fail(c, err)
		return
	}
	if err == nil {
		vip = user.VIP && !user.Expired(time.Now())
	}

	items := make([]gin.H, 0)
	for _, d := range s.svcs.Access.Capabilities() {
		items = append(items, gin.H{
			"name":   d.Name,
			"vip":    d.VIP,
			"locked": d.VIP && !vip,
		})
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (s *Server) stats(c *gin.Context) {
	st, err := s.svcs.Users.Stats(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total_users":    st.TotalUsers,
		"vip_users":      st.VIPUsers,
		"total_keys":     st.TotalKeys,
		"used_keys":      st.UsedKeys,
		"available_keys": st.AvailableKeys,
		"staff_count":    st.StaffCount,
		"admin_count":    st.AdminCount,
	})
}

func (s *Server) healthz(c *gin.Context) {
	if err := s.healthCheck(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
