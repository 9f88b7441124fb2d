package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/auth-service/internal/auth"
	"github.com/spec-kit/auth-service/internal/config"
	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/internal/events"
	"github.com/spec-kit/auth-service/internal/repository"
	"github.com/spec-kit/auth-service/pkg/util"
)

type fakeUserRepo struct {
	mu        sync.Mutex
	users     map[string]*domain.User // by username
	createErr error
	lookups   int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*domain.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	if _, ok := r.users[user.Username]; ok {
		return repository.ErrDuplicate
	}
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return repository.ErrDuplicate
		}
	}
	copied := *user
	r.users[user.Username] = &copied
	return nil
}

func (r *fakeUserRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups++
	user, ok := r.users[username]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (r *fakeUserRepo) ExistsByUsername(_ context.Context, username string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.users[username]
	return ok, nil
}

func (r *fakeUserRepo) ExistsByEmail(_ context.Context, email string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeUserRepo) setRoles(username string, roles []domain.Role) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user, ok := r.users[username]; ok {
		user.Roles = roles
	}
}

func (r *fakeUserRepo) delete(username string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, username)
}

type fakeRoleRepo struct {
	roles map[string]*domain.Role
}

func (r *fakeRoleRepo) GetByName(_ context.Context, name string) (*domain.Role, error) {
	role, ok := r.roles[name]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return role, nil
}

type fakeLimiter struct {
	allowed  bool
	failures int
	resets   int
}

func (l *fakeLimiter) Allow(context.Context, string) (bool, error) { return l.allowed, nil }
func (l *fakeLimiter) RecordFailure(context.Context, string) error { l.failures++; return nil }
func (l *fakeLimiter) Reset(context.Context, string) error         { l.resets++; return nil }

func testConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:       "test-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: time.Hour,
		DefaultRole:     domain.DefaultRoleName,
		BcryptCost:      bcrypt.MinCost,
	}
}

func defaultRoles() map[string]*domain.Role {
	return map[string]*domain.Role{
		domain.DefaultRoleName: {
			Name:   domain.DefaultRoleName,
			Scopes: []string{"profile:read", "profile:write"},
		},
	}
}

func newTestService(users *fakeUserRepo, roles map[string]*domain.Role, limiter SigninLimiter) *AuthService {
	return NewAuthService(testConfig(), AuthDependencies{
		Users:   users,
		Roles:   &fakeRoleRepo{roles: roles},
		Tokens:  auth.NewTokenProvider("test-secret"),
		Limiter: limiter,
	})
}

func TestSignUp_Success(t *testing.T) {
	t.Parallel()

	users := newFakeUserRepo()
	svc := newTestService(users, defaultRoles(), nil)

	result, err := svc.SignUp(context.Background(), "alice", "Alice@Example.COM ", "s3cret")
	require.NoError(t, err)
	assert.Empty(t, result.AccessToken)
	assert.Empty(t, result.RefreshToken)
	assert.Equal(t, "Bearer", result.TokenType)
	assert.Zero(t, result.ExpiresIn)
	assert.Equal(t, "User registered successfully", result.Message)

	stored, err := users.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", stored.Email)
	assert.True(t, auth.CheckPassword(stored.PasswordHash, "s3cret"))
	require.Len(t, stored.Roles, 1)
	assert.Equal(t, domain.DefaultRoleName, stored.Roles[0].Name)
}

func TestSignUp_DuplicateUsername(t *testing.T) {
	t.Parallel()

	users := newFakeUserRepo()
	svc := newTestService(users, defaultRoles(), nil)

	_, err := svc.SignUp(context.Background(), "alice", "alice@example.com", "s3cret")
	require.NoError(t, err)

	_, err = svc.SignUp(context.Background(), "alice", "other@example.com", "s3cret")
	require.Error(t, err)
	assert.True(t, util.HasCode(err, util.CodeConflict))
	assert.EqualError(t, err, "Username already taken")
}

func TestSignUp_DuplicateEmail(t *testing.T) {
	t.Parallel()

	users := newFakeUserRepo()
	svc := newTestService(users, defaultRoles(), nil)

	_, err := svc.SignUp(context.Background(), "alice", "alice@example.com", "s3cret")
	require.NoError(t, err)

	_, err = svc.SignUp(context.Background(), "bob", "ALICE@example.com", "s3cret")
	require.Error(t, err)
	assert.True(t, util.HasCode(err, util.CodeConflict))
	assert.EqualError(t, err, "Email already registered")
}

func TestSignUp_DefaultRoleMissing(t *testing.T) {
	t.Parallel()

	users := newFakeUserRepo()
	svc := newTestService(users, map[string]*domain.Role{}, nil)

	_, err := svc.SignUp(context.Background(), "alice", "alice@example.com", "s3cret")
	require.Error(t, err)
	assert.True(t, util.HasCode(err, util.CodeRoleNotFound))

	exists, err := users.ExistsByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.False(t, exists, "no user may be persisted when the default role is missing")
}

func TestSignUp_StoreWinsUniquenessRace(t *testing.T) {
	t.Parallel()

	users := newFakeUserRepo()
	users.createErr = repository.ErrDuplicate
	svc := newTestService(users, defaultRoles(), nil)

	_, err := svc.SignUp(context.Background(), "alice", "alice@example.com", "s3cret")
	require.Error(t, err)
	assert.True(t, util.HasCode(err, util.CodeConflict))
}

func TestSignIn_Success(t *testing.T) {
	t.Parallel()

	users := newFakeUserRepo()
	limiter := &fakeLimiter{allowed: true}
	svc := newTestService(users, defaultRoles(), limiter)

	_, err := svc.SignUp(context.Background(), "alice", "alice@example.com", "s3cret")
	require.NoError(t, err)

	result, err := svc.SignIn(context.Background(), "alice", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "Bearer", result.TokenType)
	assert.Equal(t, int64(900), result.ExpiresIn)
	assert.Equal(t, "Login successful", result.Message)
	assert.NotEmpty(t, result.AccessToken)
	assert.NotEmpty(t, result.RefreshToken)
	assert.Equal(t, 1, limiter.resets)

	// Both tokens carry the same claims snapshot and subject.
	tp := auth.NewTokenProvider("test-secret")
	accessPrincipal, err := tp.Parse(result.AccessToken)
	require.NoError(t, err)
	refreshPrincipal, err := tp.Parse(result.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "alice", accessPrincipal.Subject)
	assert.Equal(t, accessPrincipal.Subject, refreshPrincipal.Subject)
	assert.Equal(t, accessPrincipal.Claims, refreshPrincipal.Claims)
	assert.Equal(t, []string{domain.DefaultRoleName}, accessPrincipal.Claims.Roles)
	assert.ElementsMatch(t, []string{"profile:read", "profile:write"}, accessPrincipal.Claims.Scopes)
}

func TestSignIn_BadCredentialsIndistinguishable(t *testing.T) {
	t.Parallel()

	users := newFakeUserRepo()
	limiter := &fakeLimiter{allowed: true}
	svc := newTestService(users, defaultRoles(), limiter)

	_, err := svc.SignUp(context.Background(), "alice", "alice@example.com", "s3cret")
	require.NoError(t, err)

	_, wrongPassErr := svc.SignIn(context.Background(), "alice", "nope")
	require.Error(t, wrongPassErr)
	assert.True(t, util.HasCode(wrongPassErr, util.CodeAuthFailed))

	_, unknownUserErr := svc.SignIn(context.Background(), "mallory", "nope")
	require.Error(t, unknownUserErr)
	assert.True(t, util.HasCode(unknownUserErr, util.CodeAuthFailed))

	assert.Equal(t, wrongPassErr.Error(), unknownUserErr.Error())
	assert.Equal(t, 2, limiter.failures)
}

func TestSignIn_RateLimited(t *testing.T) {
	t.Parallel()

	users := newFakeUserRepo()
	svc := newTestService(users, defaultRoles(), &fakeLimiter{allowed: false})

	_, err := svc.SignIn(context.Background(), "alice", "s3cret")
	require.Error(t, err)
	assert.True(t, util.HasCode(err, util.CodeRateLimited))
	assert.Zero(t, users.lookups, "throttled signins must not hit the store")
}

func TestRefreshToken_IssuesNewAccessToken(t *testing.T) {
	t.Parallel()

	users := newFakeUserRepo()
	svc := newTestService(users, defaultRoles(), nil)

	_, err := svc.SignUp(context.Background(), "alice", "alice@example.com", "s3cret")
	require.NoError(t, err)
	signin, err := svc.SignIn(context.Background(), "alice", "s3cret")
	require.NoError(t, err)

	result, err := svc.RefreshToken(context.Background(), signin.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, int64(900), result.ExpiresIn)
	assert.Equal(t, "Access token refreshed successfully", result.Message)
	assert.NotEmpty(t, result.AccessToken)

	principal, err := auth.NewTokenProvider("test-secret").Parse(result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice", principal.Subject)
}

func TestRefreshToken_ReflectsCurrentRoles(t *testing.T) {
	t.Parallel()

	users := newFakeUserRepo()
	svc := newTestService(users, defaultRoles(), nil)

	_, err := svc.SignUp(context.Background(), "alice", "alice@example.com", "s3cret")
	require.NoError(t, err)
	signin, err := svc.SignIn(context.Background(), "alice", "s3cret")
	require.NoError(t, err)

	// Revoke the default role and grant a different one after signin.
	users.setRoles("alice", []domain.Role{{Name: "ROLE_AUDITOR", Scopes: []string{"audit:read"}}})

	result, err := svc.RefreshToken(context.Background(), signin.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, signin.AccessToken, result.AccessToken)

	principal, err := auth.NewTokenProvider("test-secret").Parse(result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, []string{"ROLE_AUDITOR"}, principal.Claims.Roles)
	assert.Equal(t, []string{"audit:read"}, principal.Claims.Scopes)
}

func TestRefreshToken_InvalidInputs(t *testing.T) {
	t.Parallel()

	users := newFakeUserRepo()
	svc := newTestService(users, defaultRoles(), nil)

	_, err := svc.RefreshToken(context.Background(), "garbage")
	require.Error(t, err)
	assert.True(t, util.HasCode(err, util.CodeAuthFailed))

	foreign, err := auth.NewTokenProvider("other-secret").Issue("alice", auth.Claims{UID: "u-1"}, time.Hour)
	require.NoError(t, err)
	_, err = svc.RefreshToken(context.Background(), foreign)
	require.Error(t, err)
	assert.True(t, util.HasCode(err, util.CodeAuthFailed))

	expired, err := auth.NewTokenProvider("test-secret").Issue("alice", auth.Claims{UID: "u-1"}, time.Millisecond)
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	_, err = svc.RefreshToken(context.Background(), expired)
	require.Error(t, err)
	assert.True(t, util.HasCode(err, util.CodeAuthFailed))
}

func TestRefreshToken_VanishedUser(t *testing.T) {
	t.Parallel()

	users := newFakeUserRepo()
	svc := newTestService(users, defaultRoles(), nil)

	_, err := svc.SignUp(context.Background(), "alice", "alice@example.com", "s3cret")
	require.NoError(t, err)
	signin, err := svc.SignIn(context.Background(), "alice", "s3cret")
	require.NoError(t, err)

	users.delete("alice")

	_, err = svc.RefreshToken(context.Background(), signin.RefreshToken)
	require.Error(t, err)
	assert.True(t, util.HasCode(err, util.CodeAuthFailed))
}

func TestSignUp_PublishesRegisteredEvent(t *testing.T) {
	t.Parallel()

	users := newFakeUserRepo()
	dispatcher := events.NewInMemoryDispatcher()

	received := make(chan events.Event, 1)
	dispatcher.Subscribe(events.EventUserRegistered, func(_ context.Context, event events.Event) error {
		received <- event
		return nil
	})

	svc := NewAuthService(testConfig(), AuthDependencies{
		Users:      users,
		Roles:      &fakeRoleRepo{roles: defaultRoles()},
		Tokens:     auth.NewTokenProvider("test-secret"),
		Dispatcher: dispatcher,
	})

	_, err := svc.SignUp(context.Background(), "alice", "alice@example.com", "s3cret")
	require.NoError(t, err)

	select {
	case event := <-received:
		assert.Equal(t, "alice", event.Username)
	default:
		t.Fatal("expected a user_registered event")
	}
}
