package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"keygate/internal/common"
	"keygate/internal/server/capabilities"
	"keygate/internal/server/models"
	"keygate/internal/server/repositories/repomanager"
)

// DenyReason is the machine-readable cause attached to a denied decision.
type DenyReason string

const (
	DenyNone              DenyReason = ""
	DenyNoEntitlement     DenyReason = "no_entitlement"
	DenyExpired           DenyReason = "expired"
	DenyUnknownCapability DenyReason = "unknown_capability"
	DenyInsufficientTier  DenyReason = "insufficient_tier"
	DenyQuotaExceeded     DenyReason = "quota_exceeded"
)

// AccessRequest carries the attributes of a dispatch attempt the guard must
// evaluate. DurationSeconds of 0 skips the duration check (the request names
// no duration).
type AccessRequest struct {
	Capability      string
	DurationSeconds int
}

// Decision is the guard's verdict. The guard only decides; executing the
// gated action is the caller's business, and a later dispatch failure does
// not retroactively invalidate an allow.
type Decision struct {
	Allowed bool
	Reason  DenyReason
	// User is the entitlement snapshot evaluated, present when the user
	// record exists.
	User *models.User
	// Capability is the resolved descriptor, present when the request named
	// a known capability.
	Capability *capabilities.Descriptor
}

func deny(reason DenyReason, user *models.User) *Decision {
	return &Decision{Allowed: false, Reason: reason, User: user}
}

// AccessService is the entitlement guard. It combines entitlement existence,
// expiry, and attribute checks into one authorization decision.
type AccessService struct {
	db       *sql.DB
	repos    repomanager.RepositoryManager
	registry *capabilities.Registry
}

// NewAccessService constructs the guard over the pooled handle and the
// validated capability registry.
func NewAccessService(db *sql.DB, m repomanager.RepositoryManager, registry *capabilities.Registry) *AccessService {
	return &AccessService{db: db, repos: m, registry: registry}
}

// Authorize runs the ordered precondition chain for userID:
//
//  1. an entitlement record must exist,
//  2. the entitlement must not have expired,
//  3. a VIP-gated capability requires a VIP entitlement,
//  4. the requested duration must fit within the user's maximum.
//
// The error return is reserved for store failures; every policy outcome is a
// Decision.
func (s *AccessService) Authorize(ctx context.Context, userID string, req AccessRequest) (*Decision, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user identity required", common.ErrValidation)
	}

	user, err := s.repos.Users(s.db).Get(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return deny(DenyNoEntitlement, nil), nil
		}
		return nil, err
	}

	if user.Expired(time.Now()) {
		return deny(DenyExpired, user), nil
	}

	var capability *capabilities.Descriptor
	if req.Capability != "" {
		d, ok := s.registry.Get(req.Capability)
		if !ok {
			return deny(DenyUnknownCapability, user), nil
		}
		capability = &d

		if d.VIP && !user.VIP {
			return deny(DenyInsufficientTier, user), nil
		}
	}

	if req.DurationSeconds > user.MaxDurationSeconds {
		return deny(DenyQuotaExceeded, user), nil
	}

	return &Decision{Allowed: true, User: user, Capability: capability}, nil
}

// Capabilities lists the descriptors visible to userID: every capability,
// with VIP-gated entries included whether or not the user holds VIP, so the
// transport can render locked entries distinctly.
func (s *AccessService) Capabilities() []capabilities.Descriptor {
	return s.registry.List()
}
