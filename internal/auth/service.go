package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"flowbit.dev/internal/audit"
	"flowbit.dev/internal/ids"
	"flowbit.dev/internal/obs"
)

// Service runs the account lifecycle: login, refresh, logout and the
// per-request liveness check behind authentication.
type Service struct {
	users      UserStore
	tokens     *TokenService
	sink       audit.Sink
	bcryptCost int
	now        func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithAuditSink routes login and logout events to sink.
func WithAuditSink(sink audit.Sink) ServiceOption {
	return func(s *Service) error {
		if sink != nil {
			s.sink = sink
		}
		return nil
	}
}

// WithBcryptCost sets the cost used when hashing new passwords.
func WithBcryptCost(cost int) ServiceOption {
	return func(s *Service) error {
		if cost < 0 {
			return fmt.Errorf("auth: bcrypt cost %d is negative", cost)
		}
		s.bcryptCost = cost
		return nil
	}
}

// WithServiceClock overrides time source (useful for tests).
func WithServiceClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// NewService constructs Service with optional configuration.
func NewService(users UserStore, tokens *TokenService, opts ...ServiceOption) (*Service, error) {
	if users == nil {
		return nil, errors.New("auth: user store is required")
	}
	if tokens == nil {
		return nil, errors.New("auth: token service is required")
	}
	svc := &Service{
		users:  users,
		tokens: tokens,
		sink:   discardSink{},
		now:    time.Now,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// Tokens exposes the token service used for signing.
func (s *Service) Tokens() *TokenService { return s.tokens }

// RequestMeta carries the client attributes copied into audit events.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Tokens TokenPair
	User   *User
}

// Login checks credentials within one tenant and issues a token pair.
// Unknown email, wrong password and dead accounts are indistinguishable.
func (s *Service) Login(ctx context.Context, tenantID, email, password string, meta RequestMeta) (LoginResult, error) {
	tenantID = strings.TrimSpace(tenantID)
	email = NormalizeEmail(email)
	if tenantID == "" || email == "" || password == "" {
		return LoginResult{}, ErrInvalidCredentials
	}
	user, err := s.users.FindByEmail(ctx, tenantID, email, ExcludeDeleted)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, fmt.Errorf("auth: find user: %w", err)
	}
	if !user.Live() {
		return LoginResult{}, ErrInvalidCredentials
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	pair, err := s.tokens.IssueTokenPair(user.Identity())
	if err != nil {
		return LoginResult{}, err
	}

	now := s.now().UTC()
	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		obs.Logger().Warn().Err(err).Str("user_id", user.ID).Msg("update last login failed")
	} else {
		user.LastLogin = &now
	}

	s.sink.Record(ctx, audit.Event{
		TenantID:     user.TenantID,
		UserID:       user.ID,
		Action:       audit.ActionLogin,
		ResourceType: "User",
		ResourceID:   user.ID,
		Details:      map[string]any{"email": user.Email, "role": string(user.Role)},
		IPAddress:    meta.IPAddress,
		UserAgent:    meta.UserAgent,
	})
	return LoginResult{Tokens: pair, User: user}, nil
}

// Refresh exchanges a refresh token for a new access token. The new token
// carries the stored account's current role, not the one in the refresh token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, int64, error) {
	claims, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return "", 0, err
	}
	if !ValidateClaimsShape(claims) {
		return "", 0, ErrClaimsInvalidShape
	}
	user, err := s.liveUser(ctx, claims)
	if err != nil {
		return "", 0, err
	}
	access, err := s.tokens.IssueAccessToken(user.Identity())
	if err != nil {
		return "", 0, err
	}
	return access, s.tokens.ExpiresIn(access), nil
}

// Authenticate verifies an access token and confirms the account behind it
// is still live. It runs on every authenticated request.
func (s *Service) Authenticate(ctx context.Context, token string) (Principal, error) {
	claims, err := s.tokens.VerifyAccessToken(token)
	if err != nil {
		return Principal{}, err
	}
	if !ValidateClaimsShape(claims) {
		return Principal{}, ErrClaimsInvalidShape
	}
	if _, err := s.liveUser(ctx, claims); err != nil {
		return Principal{}, err
	}
	return PrincipalFromClaims(claims), nil
}

// Logout records a best-effort LOGOUT event. Tokens are stateless, so the
// token is decoded without verification and only used for attribution.
func (s *Service) Logout(ctx context.Context, token string, meta RequestMeta) {
	claims := DecodeUnsafe(token)
	if claims == nil || claims.TenantID == "" || claims.UserID == "" {
		return
	}
	s.sink.Record(ctx, audit.Event{
		TenantID:     claims.TenantID,
		UserID:       claims.UserID,
		Action:       audit.ActionLogout,
		ResourceType: "User",
		ResourceID:   claims.UserID,
		Details:      map[string]any{"email": claims.Email},
		IPAddress:    meta.IPAddress,
		UserAgent:    meta.UserAgent,
	})
}

// NewUser is the input for account creation.
type NewUser struct {
	TenantID  string
	Email     string
	Password  string
	Role      Role
	FirstName string
	LastName  string
}

// CreateUser hashes the password and stores a new active account.
func (s *Service) CreateUser(ctx context.Context, in NewUser) (*User, error) {
	in.TenantID = strings.TrimSpace(in.TenantID)
	in.Email = NormalizeEmail(in.Email)
	if in.TenantID == "" || in.Email == "" {
		return nil, fmt.Errorf("%w: tenant and email are required", ErrInvalidInput)
	}
	if len(in.Password) < MinPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, MinPasswordLength)
	}
	if in.Role == "" {
		in.Role = RoleUser
	}
	if !in.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, in.Role)
	}
	hash, err := HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	u := &User{
		ID:           ids.New(),
		TenantID:     in.TenantID,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
		Profile:      Profile{FirstName: strings.TrimSpace(in.FirstName), LastName: strings.TrimSpace(in.LastName)},
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// liveUser loads the account named by claims. A missing, inactive, deleted
// or re-tenanted account is reported as ErrAccountInactive.
func (s *Service) liveUser(ctx context.Context, claims *Claims) (*User, error) {
	user, err := s.users.FindByID(ctx, claims.UserID, ExcludeDeleted)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrAccountInactive
		}
		return nil, fmt.Errorf("auth: load user: %w", err)
	}
	if !user.Live() || user.TenantID != claims.TenantID {
		return nil, ErrAccountInactive
	}
	return user, nil
}

// NormalizeEmail lower-cases and trims an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type discardSink struct{}

func (discardSink) Record(context.Context, audit.Event) {}
