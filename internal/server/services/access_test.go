package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"keygate/internal/common"
	"keygate/internal/server/capabilities"
	"keygate/internal/server/models"
)

func testRegistry(t *testing.T) *capabilities.Registry {
	t.Helper()
	reg, err := capabilities.Load([]capabilities.Descriptor{
		{Name: "basic", Endpoint: "http://dispatch/basic?h={host}&p={port}&t={time}"},
		{Name: "premium", Endpoint: "http://dispatch/premium?h={host}&p={port}&t={time}", VIP: true},
	})
	if err != nil {
		t.Fatalf("capabilities.Load: %v", err)
	}
	return reg
}

func TestAccessServiceAuthorize(t *testing.T) {
	db, _ := newTxDB(t)
	ctx := context.Background()

	newGuard := func(users ...*models.User) (*AccessService, *fakeManager) {
		m := newFakeManager()
		for _, u := range users {
			m.users.byID[u.ID] = u
		}
		return NewAccessService(db, m, testRegistry(t)), m
	}

	t.Run("allows an entitled user within limits", func(t *testing.T) {
		svc, _ := newGuard(&models.User{ID: "u1", MaxDurationSeconds: 60, ConcurrencyQuota: 1})

		d, err := svc.Authorize(ctx, "u1", AccessRequest{Capability: "basic", DurationSeconds: 60})
		if err != nil {
			t.Fatalf("Authorize: %v", err)
		}
		if !d.Allowed || d.Reason != DenyNone {
			t.Fatalf("decision = %+v, want allow", d)
		}
		if d.User == nil || d.User.ID != "u1" {
			t.Error("decision missing the evaluated user")
		}
		if d.Capability == nil || d.Capability.Name != "basic" {
			t.Error("decision missing the resolved capability")
		}
	})

	t.Run("capability names are case-insensitive", func(t *testing.T) {
		svc, _ := newGuard(&models.User{ID: "u1", MaxDurationSeconds: 60})

		d, err := svc.Authorize(ctx, "u1", AccessRequest{Capability: "BaSiC", DurationSeconds: 10})
		if err != nil || !d.Allowed {
			t.Errorf("decision = %+v, %v, want allow", d, err)
		}
	})

	t.Run("unknown identity", func(t *testing.T) {
		svc, _ := newGuard()

		d, err := svc.Authorize(ctx, "ghost", AccessRequest{Capability: "basic"})
		if err != nil {
			t.Fatalf("Authorize: %v", err)
		}
		if d.Allowed || d.Reason != DenyNoEntitlement {
			t.Errorf("decision = %+v, want deny no_entitlement", d)
		}
	})

	t.Run("expired entitlement wins over every later check", func(t *testing.T) {
		past := time.Now().Add(-time.Minute)
		svc, _ := newGuard(&models.User{ID: "u1", VIP: true, MaxDurationSeconds: 600, ExpiresAt: &past})

		// Request that would pass every other check.
		d, err := svc.Authorize(ctx, "u1", AccessRequest{Capability: "premium", DurationSeconds: 60})
		if err != nil {
			t.Fatalf("Authorize: %v", err)
		}
		if d.Allowed || d.Reason != DenyExpired {
			t.Errorf("decision = %+v, want deny expired", d)
		}
	})

	t.Run("unknown capability", func(t *testing.T) {
		svc, _ := newGuard(&models.User{ID: "u1", MaxDurationSeconds: 60})

		d, err := svc.Authorize(ctx, "u1", AccessRequest{Capability: "laser"})
		if err != nil {
			t.Fatalf("Authorize: %v", err)
		}
		if d.Allowed || d.Reason != DenyUnknownCapability {
			t.Errorf("decision = %+v, want deny unknown_capability", d)
		}
	})

	t.Run("vip gate", func(t *testing.T) {
		svc, _ := newGuard(
			&models.User{ID: "plain", MaxDurationSeconds: 60},
			&models.User{ID: "vip", VIP: true, MaxDurationSeconds: 60},
		)

		d, err := svc.Authorize(ctx, "plain", AccessRequest{Capability: "premium", DurationSeconds: 30})
		if err != nil {
			t.Fatalf("Authorize: %v", err)
		}
		if d.Allowed || d.Reason != DenyInsufficientTier {
			t.Errorf("plain user: decision = %+v, want deny insufficient_tier", d)
		}

		d, err = svc.Authorize(ctx, "vip", AccessRequest{Capability: "premium", DurationSeconds: 30})
		if err != nil || !d.Allowed {
			t.Errorf("vip user: decision = %+v, %v, want allow", d, err)
		}
	})

	t.Run("duration cap", func(t *testing.T) {
		svc, _ := newGuard(&models.User{ID: "u1", MaxDurationSeconds: 60})

		d, err := svc.Authorize(ctx, "u1", AccessRequest{Capability: "basic", DurationSeconds: 61})
		if err != nil {
			t.Fatalf("Authorize: %v", err)
		}
		if d.Allowed || d.Reason != DenyQuotaExceeded {
			t.Errorf("decision = %+v, want deny quota_exceeded", d)
		}

		// The cap is inclusive.
		d, err = svc.Authorize(ctx, "u1", AccessRequest{Capability: "basic", DurationSeconds: 60})
		if err != nil || !d.Allowed {
			t.Errorf("at the cap: decision = %+v, %v, want allow", d, err)
		}
	})

	t.Run("no capability named checks only the entitlement", func(t *testing.T) {
		svc, _ := newGuard(&models.User{ID: "u1", MaxDurationSeconds: 60})

		d, err := svc.Authorize(ctx, "u1", AccessRequest{})
		if err != nil || !d.Allowed {
			t.Errorf("decision = %+v, %v, want allow", d, err)
		}
		if d.Capability != nil {
			t.Error("no capability was requested, none should resolve")
		}
	})

	t.Run("store failure surfaces as an error, not a deny", func(t *testing.T) {
		svc, m := newGuard()
		m.users.getErr = errors.New("db error: connection reset")

		d, err := svc.Authorize(ctx, "u1", AccessRequest{Capability: "basic"})
		if err == nil || d != nil {
			t.Errorf("got %+v, %v, want error", d, err)
		}
	})

	t.Run("empty identity", func(t *testing.T) {
		svc, _ := newGuard()
		if _, err := svc.Authorize(ctx, "", AccessRequest{}); !errors.Is(err, common.ErrValidation) {
			t.Errorf("got %v, want ErrValidation", err)
		}
	})
}

func TestAccessServiceCapabilities(t *testing.T) {
	db, _ := newTxDB(t)
	svc := NewAccessService(db, newFakeManager(), testRegistry(t))

	got := svc.Capabilities()
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	// VIP-gated entries stay visible so the caller can render them locked.
	if got[0].Name != "basic" || got[1].Name != "premium" || !got[1].VIP {
		t.Errorf("unexpected listing: %+v", got)
	}
}
