package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/courseforge-backend/internal/platform/logger"
	"github.com/yungbote/courseforge-backend/internal/types"
)

type fakeKeyRepo struct {
	byHash  map[string]*types.APIKey
	created []*types.APIKey
}

func newFakeKeyRepo() *fakeKeyRepo {
	return &fakeKeyRepo{byHash: map[string]*types.APIKey{}}
}

func (r *fakeKeyRepo) Create(ctx context.Context, key *types.APIKey) error {
	if key.ID == uuid.Nil {
		key.ID = uuid.New()
	}
	r.created = append(r.created, key)
	r.byHash[key.KeyHash] = key
	return nil
}

func (r *fakeKeyRepo) GetActiveByHash(ctx context.Context, keyHash string) (*types.APIKey, error) {
	key, ok := r.byHash[keyHash]
	if !ok || !key.Active {
		return nil, gorm.ErrRecordNotFound
	}
	return key, nil
}

func (r *fakeKeyRepo) Deactivate(ctx context.Context, id uuid.UUID) error {
	for _, key := range r.byHash {
		if key.ID == id {
			key.Active = false
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func TestCreateKeyShapeAndStorage(t *testing.T) {
	repo := newFakeKeyRepo()
	svc := NewAuthService(testLogger(t), repo)
	tenantID := uuid.New()

	plaintext, key, err := svc.CreateKey(context.Background(), tenantID, "ci", "live",
		[]string{types.ScopePrep, types.ScopeCheck}, 0, 0)
	if err != nil {
		t.Fatalf("CreateKey: %v", err)
	}

	if !regexp.MustCompile(`^cs_live_[0-9a-f]{32}$`).MatchString(plaintext) {
		t.Fatalf("plaintext %q does not match cs_live_<32 hex>", plaintext)
	}
	if key.KeyHash == plaintext || strings.Contains(key.KeyHash, plaintext) {
		t.Fatal("plaintext leaked into stored hash")
	}
	if key.KeyHash != HashAPIKey(plaintext) {
		t.Fatal("stored hash is not the SHA-256 of the plaintext")
	}
	if key.KeyPrefix != plaintext[:12] {
		t.Fatalf("prefix = %q, want first 12 chars of plaintext", key.KeyPrefix)
	}
	if key.RateLimitPrep != 60 || key.RateLimitCheck != 120 {
		t.Fatalf("default limits = %d/%d, want 60/120", key.RateLimitPrep, key.RateLimitCheck)
	}
}

func TestCreateKeyRejectsBadInput(t *testing.T) {
	svc := NewAuthService(testLogger(t), newFakeKeyRepo())
	tenantID := uuid.New()

	if _, _, err := svc.CreateKey(context.Background(), tenantID, "x", "prod", []string{types.ScopePrep}, 0, 0); err == nil {
		t.Error("unknown environment accepted")
	}
	if _, _, err := svc.CreateKey(context.Background(), tenantID, "x", "test", []string{"admin"}, 0, 0); err == nil {
		t.Error("unknown scope accepted")
	}
}

func TestAuthenticateRoundTrip(t *testing.T) {
	repo := newFakeKeyRepo()
	svc := NewAuthService(testLogger(t), repo)
	tenantID := uuid.New()

	plaintext, key, err := svc.CreateKey(context.Background(), tenantID, "ci", "test",
		[]string{types.ScopePrep}, 10, 20)
	if err != nil {
		t.Fatalf("CreateKey: %v", err)
	}
	key.Tenant = &types.Tenant{ID: tenantID, Name: "acme", Active: true}

	tc, err := svc.Authenticate(context.Background(), plaintext)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if tc.TenantID != tenantID || tc.TenantName != "acme" {
		t.Fatalf("tenant context %+v, want tenant %s/acme", tc, tenantID)
	}
	if !tc.HasScope(types.ScopePrep) || tc.HasScope(types.ScopeCheck) {
		t.Fatalf("scopes %v, want prep only", tc.Scopes)
	}
	if tc.LimitForScope(types.ScopePrep) != 10 || tc.LimitForScope(types.ScopeCheck) != 20 {
		t.Fatalf("limits %d/%d, want 10/20", tc.LimitForScope(types.ScopePrep), tc.LimitForScope(types.ScopeCheck))
	}
	if tc.LimitForScope("admin") != 0 {
		t.Error("unknown scope should have zero budget")
	}
}

func TestAuthenticateRejections(t *testing.T) {
	repo := newFakeKeyRepo()
	svc := NewAuthService(testLogger(t), repo)

	if _, err := svc.Authenticate(context.Background(), ""); !errors.Is(err, ErrInvalidAPIKey) {
		t.Errorf("empty key: err = %v, want ErrInvalidAPIKey", err)
	}
	if _, err := svc.Authenticate(context.Background(), "cs_test_deadbeef"); !errors.Is(err, ErrInvalidAPIKey) {
		t.Errorf("unknown key: err = %v, want ErrInvalidAPIKey", err)
	}

	plaintext, key, err := svc.CreateKey(context.Background(), uuid.New(), "old", "test", nil, 0, 0)
	if err != nil {
		t.Fatalf("CreateKey: %v", err)
	}
	key.Tenant = &types.Tenant{ID: key.TenantID, Name: "acme", Active: true}
	past := time.Now().Add(-time.Hour)
	key.ExpiresAt = &past
	if _, err := svc.Authenticate(context.Background(), plaintext); !errors.Is(err, ErrExpiredAPIKey) {
		t.Errorf("expired key: err = %v, want ErrExpiredAPIKey", err)
	}

	if err := repo.Deactivate(context.Background(), key.ID); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	key.ExpiresAt = nil
	if _, err := svc.Authenticate(context.Background(), plaintext); !errors.Is(err, ErrInvalidAPIKey) {
		t.Errorf("deactivated key: err = %v, want ErrInvalidAPIKey", err)
	}
}
