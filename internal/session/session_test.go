package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/workflow-service/internal/auth"
	"github.com/spec-kit/workflow-service/internal/domain"
	"github.com/spec-kit/workflow-service/internal/repository"
	apperrors "github.com/spec-kit/workflow-service/pkg/util/errorutil"
)

type fixture struct {
	provider    *auth.Provider
	users       repository.UserRepository
	revocations *auth.MemoryRevocations
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	users := repository.NewMemory().Users()
	revocations := auth.NewMemoryRevocations()
	provider := auth.NewProvider(auth.ProviderDependencies{
		Users:       users,
		Tokens:      auth.NewTokenManager("secret", 15),
		Revocations: revocations,
		BcryptCost:  bcrypt.MinCost,
	})
	_, err := provider.SignUp(context.Background(), auth.SignUpInput{
		Name: "Ana Lopez", Email: "ana@example.com", Password: "secret1",
		Role: domain.RoleAdmin, Department: "Sales",
	})
	require.NoError(t, err)
	return fixture{provider: provider, users: users, revocations: revocations}
}

func TestSession_SignInStoresIdentity(t *testing.T) {
	f := newFixture(t)
	s := New(f.provider, nil)

	var seen []*domain.Identity
	s.OnChange(func(id *domain.Identity) { seen = append(seen, id) })

	identity, tok, err := s.SignIn(context.Background(), "ana@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, identity.Role)
	assert.Equal(t, "Sales", identity.DepartmentName())
	assert.NotEmpty(t, tok.Value)

	got, ok := s.Identity()
	require.True(t, ok)
	assert.Equal(t, identity, got)
	require.Len(t, seen, 1)
	assert.Equal(t, identity.ID, seen[0].ID)
}

func TestSession_InvalidCredentials(t *testing.T) {
	f := newFixture(t)
	s := New(f.provider, nil)

	_, _, err := s.SignIn(context.Background(), "ana@example.com", "nope")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidCredentials))
	_, ok := s.Identity()
	assert.False(t, ok)
}

func TestSession_DisabledAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user, err := f.users.GetByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	require.NoError(t, f.users.SetActive(ctx, user.ID, false))

	s := New(f.provider, nil)
	_, _, err = s.SignIn(ctx, "ana@example.com", "secret1")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeAccountDisabled))

	_, _, err = s.SignIn(ctx, "ana@example.com", "wrong")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidCredentials))
}

func TestSession_SignOutClearsAndRevokes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := New(f.provider, nil)
	_, tok, err := s.SignIn(ctx, "ana@example.com", "secret1")
	require.NoError(t, err)

	var signedOut bool
	s.OnChange(func(id *domain.Identity) { signedOut = id == nil })
	s.SignOut(ctx)

	_, ok := s.Identity()
	assert.False(t, ok)
	assert.True(t, signedOut)
	revoked, err := f.revocations.IsRevoked(ctx, tok.ID)
	require.NoError(t, err)
	assert.True(t, revoked)
}
