package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/workflow-service/internal/domain"
	"github.com/spec-kit/workflow-service/internal/repository"
	apperrors "github.com/spec-kit/workflow-service/pkg/util/errorutil"
)

func newTestProvider() (*Provider, repository.UserRepository) {
	users := repository.NewMemory().Users()
	return NewProvider(ProviderDependencies{
		Users:       users,
		Tokens:      NewTokenManager("secret", 15),
		Revocations: NewMemoryRevocations(),
		BcryptCost:  bcrypt.MinCost,
	}), users
}

func TestProvider_SignUpAndAuthenticate(t *testing.T) {
	p, _ := newTestProvider()
	ctx := context.Background()

	user, err := p.SignUp(ctx, SignUpInput{
		Name: "Ana Lopez", Email: "Ana@Example.com", Password: "secret1",
		Role: domain.RoleEmployee, Department: "Sales",
	})
	require.NoError(t, err)
	assert.True(t, user.Active)
	assert.Equal(t, "ana@example.com", user.Email)
	require.NotNil(t, user.Department)
	assert.Equal(t, "Sales", *user.Department)

	got, err := p.Authenticate(ctx, "ana@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = p.Authenticate(ctx, "ana@example.com", "wrong")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidCredentials))

	_, err = p.Authenticate(ctx, "nobody@example.com", "secret1")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidCredentials))
}

func TestProvider_SignUpValidation(t *testing.T) {
	p, _ := newTestProvider()
	ctx := context.Background()

	tests := []struct {
		name  string
		input SignUpInput
		field string
	}{
		{"missing name", SignUpInput{Email: "a@b.co", Password: "secret1", Role: domain.RoleAdmin, Department: "Ops"}, "name"},
		{"bad email", SignUpInput{Name: "A", Email: "nope", Password: "secret1", Role: domain.RoleAdmin, Department: "Ops"}, "email"},
		{"short password", SignUpInput{Name: "A", Email: "a@b.co", Password: "123", Role: domain.RoleAdmin, Department: "Ops"}, "password"},
		{"unknown role", SignUpInput{Name: "A", Email: "a@b.co", Password: "secret1", Role: "OWNER", Department: "Ops"}, "role"},
		{"department required", SignUpInput{Name: "A", Email: "a@b.co", Password: "secret1", Role: domain.RoleEmployee}, "department"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.SignUp(ctx, tt.input)
			require.Error(t, err)
			derr := apperrors.ToDomainError(err)
			assert.Equal(t, apperrors.CodeValidation, derr.Code)
			assert.Contains(t, derr.Details, tt.field)
		})
	}
}

func TestProvider_SignUpDuplicateEmail(t *testing.T) {
	p, _ := newTestProvider()
	ctx := context.Background()
	in := SignUpInput{Name: "A", Email: "a@b.co", Password: "secret1", Role: domain.RoleAdmin, Department: "Ops"}

	_, err := p.SignUp(ctx, in)
	require.NoError(t, err)
	_, err = p.SignUp(ctx, in)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeConflict))
}

func TestProvider_BootstrapSuperAdminOnce(t *testing.T) {
	p, users := newTestProvider()
	ctx := context.Background()

	created, err := p.BootstrapSuperAdmin(ctx, "", "root@example.com", "rootpass")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = p.BootstrapSuperAdmin(ctx, "", "root@example.com", "rootpass")
	require.NoError(t, err)
	assert.False(t, created)

	root, err := users.GetByEmail(ctx, "root@example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleSuperAdmin, root.Role)
	assert.Nil(t, root.Department)
}
