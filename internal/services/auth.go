package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/courseforge-backend/internal/data/repos"
	"github.com/yungbote/courseforge-backend/internal/platform/logger"
	"github.com/yungbote/courseforge-backend/internal/types"
)

var (
	ErrInvalidAPIKey = errors.New("invalid API key")
	ErrExpiredAPIKey = errors.New("expired API key")
)

const keyPrefixLen = 12

// TenantContext is the per-request identity minted by authentication. It is
// the only way handlers and repositories learn which tenant is calling.
type TenantContext struct {
	TenantID       uuid.UUID
	TenantName     string
	Scopes         []string
	RateLimitPrep  int
	RateLimitCheck int
	KeyPrefix      string
}

func (tc *TenantContext) HasScope(scope string) bool {
	for _, s := range tc.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// LimitForScope returns the per-minute budget for a scope.
func (tc *TenantContext) LimitForScope(scope string) int {
	switch scope {
	case types.ScopePrep:
		return tc.RateLimitPrep
	case types.ScopeCheck:
		return tc.RateLimitCheck
	default:
		return 0
	}
}

type AuthService interface {
	// Authenticate resolves a plaintext API key into a tenant context.
	Authenticate(ctx context.Context, plaintext string) (*TenantContext, error)
	// CreateKey mints a new key. The plaintext is returned exactly once and
	// never persisted.
	CreateKey(ctx context.Context, tenantID uuid.UUID, label, env string, scopes []string, limitPrep, limitCheck int) (string, *types.APIKey, error)
}

type authService struct {
	log  *logger.Logger
	keys repos.APIKeyRepo
}

func NewAuthService(log *logger.Logger, keys repos.APIKeyRepo) AuthService {
	return &authService{log: log.With("service", "Auth"), keys: keys}
}

func (s *authService) Authenticate(ctx context.Context, plaintext string) (*TenantContext, error) {
	if plaintext == "" {
		return nil, ErrInvalidAPIKey
	}
	key, err := s.keys.GetActiveByHash(ctx, HashAPIKey(plaintext))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidAPIKey
		}
		return nil, err
	}
	if key.ExpiresAt != nil && key.ExpiresAt.Before(time.Now()) {
		return nil, ErrExpiredAPIKey
	}
	return &TenantContext{
		TenantID:       key.TenantID,
		TenantName:     key.Tenant.Name,
		Scopes:         key.ScopeList(),
		RateLimitPrep:  key.RateLimitPrep,
		RateLimitCheck: key.RateLimitCheck,
		KeyPrefix:      key.KeyPrefix,
	}, nil
}

func (s *authService) CreateKey(ctx context.Context, tenantID uuid.UUID, label, env string, scopes []string, limitPrep, limitCheck int) (string, *types.APIKey, error) {
	if env != "live" && env != "test" {
		return "", nil, fmt.Errorf("key environment must be live or test, got %q", env)
	}
	for _, scope := range scopes {
		if scope != types.ScopePrep && scope != types.ScopeCheck {
			return "", nil, fmt.Errorf("unknown scope %q", scope)
		}
	}
	if limitPrep <= 0 {
		limitPrep = 60
	}
	if limitCheck <= 0 {
		limitCheck = 120
	}

	plaintext, err := GenerateAPIKey(env)
	if err != nil {
		return "", nil, err
	}
	key := &types.APIKey{
		TenantID:       tenantID,
		KeyHash:        HashAPIKey(plaintext),
		KeyPrefix:      plaintext[:keyPrefixLen],
		Label:          label,
		Scopes:         types.ScopesJSON(scopes...),
		RateLimitPrep:  limitPrep,
		RateLimitCheck: limitCheck,
		Active:         true,
	}
	if err := s.keys.Create(ctx, key); err != nil {
		return "", nil, err
	}
	s.log.Info("api key created", "key_prefix", key.KeyPrefix, "tenant_id", tenantID.String(), "label", label)
	return plaintext, key, nil
}

// GenerateAPIKey mints a plaintext of the shape cs_<env>_<32 hex>.
func GenerateAPIKey(env string) (string, error) {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("generate key material: %w", err)
	}
	return fmt.Sprintf("cs_%s_%s", env, hex.EncodeToString(buf[:])), nil
}

// HashAPIKey is the stored representation of a key.
func HashAPIKey(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}
