package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/auth-service/internal/auth"
	"github.com/spec-kit/auth-service/internal/config"
	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/internal/events"
	"github.com/spec-kit/auth-service/internal/repository"
	"github.com/spec-kit/auth-service/pkg/util"
)

// Response messages mirror the public API contract.
const (
	msgRegistered     = "User registered successfully"
	msgLoginOK        = "Login successful"
	msgRefreshOK      = "Access token refreshed successfully"
	msgBadCredentials = "Invalid username or password"
	msgBadRefresh     = "Invalid or expired refresh token"
	msgTooManyTries   = "Too many failed signin attempts, try again later"
)

// AuthResult is the outcome of SignUp and SignIn. SignUp issues no
// tokens: access is only granted via a subsequent signin, so ExpiresIn
// is zero and the token fields stay empty.
type AuthResult struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    int64
	Message      string
}

// RefreshResult is the outcome of RefreshToken. Refresh tokens are not
// rotated; only a new access token is returned.
type RefreshResult struct {
	AccessToken string
	ExpiresIn   int64
	Message     string
}

// SigninLimiter throttles repeated failed signins. Implementations must
// fail open: a limiter outage never blocks authentication.
type SigninLimiter interface {
	Allow(ctx context.Context, username string) (bool, error)
	RecordFailure(ctx context.Context, username string) error
	Reset(ctx context.Context, username string) error
}

// AuthService owns the authentication business policy: signup, signin
// and refresh orchestration over the credential store, the password
// verifier and the token provider.
type AuthService struct {
	users       repository.UserRepository
	roles       repository.RoleRepository
	tokens      *auth.TokenProvider
	limiter     SigninLimiter
	dispatcher  events.Dispatcher
	logger      *zap.Logger
	bcryptCost  int
	accessTTL   time.Duration
	refreshTTL  time.Duration
	defaultRole string
}

// AuthDependencies encapsulates collaborator requirements for the service.
type AuthDependencies struct {
	Users      repository.UserRepository
	Roles      repository.RoleRepository
	Tokens     *auth.TokenProvider
	Limiter    SigninLimiter
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:       deps.Users,
		roles:       deps.Roles,
		tokens:      deps.Tokens,
		limiter:     deps.Limiter,
		dispatcher:  deps.Dispatcher,
		logger:      logger,
		bcryptCost:  cfg.BcryptCost,
		accessTTL:   cfg.AccessTokenTTL,
		refreshTTL:  cfg.RefreshTokenTTL,
		defaultRole: cfg.DefaultRole,
	}
}

// SignUp registers a new account holding exactly the default role. The
// username and email checks run independently so the caller learns
// which field collided.
func (s *AuthService) SignUp(ctx context.Context, username, email, password string) (*AuthResult, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	if taken, err := s.users.ExistsByUsername(ctx, username); err != nil {
		return nil, err
	} else if taken {
		return nil, util.NewConflict("Username already taken", map[string]any{"field": "username"})
	}
	if taken, err := s.users.ExistsByEmail(ctx, email); err != nil {
		return nil, err
	} else if taken {
		return nil, util.NewConflict("Email already registered", map[string]any{"field": "email"})
	}

	role, err := s.roles.GetByName(ctx, s.defaultRole)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Error("default role missing from store", zap.String("role", s.defaultRole))
			return nil, util.NewRoleNotFound(s.defaultRole)
		}
		return nil, err
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Roles:        []domain.Role{*role},
	}
	if err := s.users.Create(ctx, user); err != nil {
		// A concurrent signup can win the race past the exists checks;
		// the store's uniqueness constraint is authoritative.
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, util.NewConflict("Username or email already registered", nil)
		}
		return nil, err
	}

	s.logger.Info("user registered", zap.String("username", username))
	s.publish(ctx, events.New(events.EventUserRegistered, username, events.UserRegisteredPayload{
		UserID: user.ID,
		Email:  email,
		Roles:  []string{role.Name},
	}))

	return &AuthResult{
		TokenType: s.tokens.Scheme(),
		ExpiresIn: 0,
		Message:   msgRegistered,
	}, nil
}

// SignIn authenticates a username/password pair and issues an access
// and refresh token pair carrying one claims snapshot.
func (s *AuthService) SignIn(ctx context.Context, username, password string) (*AuthResult, error) {
	username = strings.TrimSpace(username)

	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, username)
		if err != nil {
			s.logger.Warn("signin limiter unavailable", zap.Error(err))
		} else if !allowed {
			s.publish(ctx, events.New(events.EventSigninRateLimited, username, nil))
			return nil, util.NewRateLimited(msgTooManyTries)
		}
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.recordFailure(ctx, username)
			return nil, util.NewAuthFailed(msgBadCredentials)
		}
		return nil, err
	}

	if !auth.CheckPassword(user.PasswordHash, password) {
		s.recordFailure(ctx, username)
		return nil, util.NewAuthFailed(msgBadCredentials)
	}

	if s.limiter != nil {
		if err := s.limiter.Reset(ctx, username); err != nil {
			s.logger.Warn("signin limiter reset failed", zap.Error(err))
		}
	}

	claims := auth.DeriveClaims(user)

	accessToken, err := s.tokens.Issue(user.Username, claims, s.accessTTL)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.tokens.Issue(user.Username, claims, s.refreshTTL)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user signed in", zap.String("username", username))
	s.publish(ctx, events.New(events.EventUserSignedIn, username, events.UserSignedInPayload{
		UserID: user.ID,
		Roles:  claims.Roles,
		Scopes: claims.Scopes,
	}))

	return &AuthResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    s.tokens.Scheme(),
		ExpiresIn:    int64(s.accessTTL.Seconds()),
		Message:      msgLoginOK,
	}, nil
}

// RefreshToken mints a new access token from a valid refresh token.
// Only the subject is trusted from the token: claims are re-derived
// from the store so role revocation takes effect on the next refresh.
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	if !s.tokens.Validate(refreshToken) {
		return nil, util.NewAuthFailed(msgBadRefresh)
	}

	principal, err := s.tokens.Parse(refreshToken)
	if err != nil {
		return nil, util.NewAuthFailed(msgBadRefresh)
	}

	user, err := s.users.GetByUsername(ctx, principal.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, util.NewAuthFailed("User not found")
		}
		return nil, err
	}

	claims := auth.DeriveClaims(user)
	accessToken, err := s.tokens.Issue(user.Username, claims, s.accessTTL)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.New(events.EventTokenRefreshed, user.Username, events.TokenRefreshedPayload{UserID: user.ID}))

	return &RefreshResult{
		AccessToken: accessToken,
		ExpiresIn:   int64(s.accessTTL.Seconds()),
		Message:     msgRefreshOK,
	}, nil
}

func (s *AuthService) recordFailure(ctx context.Context, username string) {
	if s.limiter == nil {
		return
	}
	if err := s.limiter.RecordFailure(ctx, username); err != nil {
		s.logger.Warn("signin limiter record failed", zap.Error(err))
	}
}

func (s *AuthService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event publish failed", zap.String("event", string(event.Type)), zap.Error(err))
	}
}
