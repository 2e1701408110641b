package auth

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/workflow-service/internal/domain"
	"github.com/spec-kit/workflow-service/internal/repository"
	apperrors "github.com/spec-kit/workflow-service/pkg/util/errorutil"
)

// Provider authenticates users, registers accounts and revokes tokens.
type Provider struct {
	users       repository.UserRepository
	tokens      *TokenManager
	revocations Revocations
	bcryptCost  int
	logger      *zap.Logger
}

// ProviderDependencies bundles what the provider needs.
type ProviderDependencies struct {
	Users       repository.UserRepository
	Tokens      *TokenManager
	Revocations Revocations
	BcryptCost  int
	Logger      *zap.Logger
}

// NewProvider builds the auth provider.
func NewProvider(deps ProviderDependencies) *Provider {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		users:       deps.Users,
		tokens:      deps.Tokens,
		revocations: deps.Revocations,
		bcryptCost:  deps.BcryptCost,
		logger:      logger,
	}
}

// Authenticate checks credentials. It does not look at the active flag.
func (p *Provider) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := p.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewInvalidCredentials()
		}
		return nil, apperrors.NewBackendError(err)
	}
	if err := ComparePassword(user.PasswordHash, password); err != nil {
		return nil, apperrors.NewInvalidCredentials()
	}
	return user, nil
}

// IssueToken signs an access token for the user.
func (p *Provider) IssueToken(user domain.User) (Token, error) {
	tok, err := p.tokens.GenerateToken(user)
	if err != nil {
		return Token{}, apperrors.NewInternalError(err)
	}
	return tok, nil
}

// Revoke invalidates a token until it expires.
func (p *Provider) Revoke(ctx context.Context, tok Token) error {
	if tok.ID == "" {
		return nil
	}
	if err := p.revocations.Revoke(ctx, tok.ID, tok.ExpiresAt); err != nil {
		return apperrors.NewBackendError(err)
	}
	return nil
}

// SignUpInput describes a new account.
type SignUpInput struct {
	Name       string
	Email      string
	Password   string
	Role       domain.Role
	Department string
}

// SignUp creates an active user. Department is required for Admins and
// Employees and ignored for SuperAdmins.
func (p *Provider) SignUp(ctx context.Context, in SignUpInput) (*domain.User, error) {
	details := map[string]any{}
	name := strings.TrimSpace(in.Name)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	dept := strings.TrimSpace(in.Department)

	if name == "" {
		details["name"] = "required"
	}
	if _, err := mail.ParseAddress(email); err != nil {
		details["email"] = "invalid email"
	}
	if len(in.Password) < MinPasswordLength {
		details["password"] = "too short"
	}
	if !in.Role.Valid() {
		details["role"] = "unknown role"
	}
	if in.Role != domain.RoleSuperAdmin && dept == "" {
		details["department"] = "required"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid user", details)
	}

	hash, err := HashPassword(in.Password, p.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         in.Role,
		Active:       true,
	}
	if in.Role != domain.RoleSuperAdmin {
		user.Department = &dept
	}
	if err := p.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, apperrors.NewConflict("email already registered", map[string]any{"email": email})
		}
		return nil, apperrors.NewBackendError(err)
	}
	return user, nil
}

// BootstrapSuperAdmin creates the first SuperAdmin when no users exist. It
// reports whether an account was created.
func (p *Provider) BootstrapSuperAdmin(ctx context.Context, name, email, password string) (bool, error) {
	if email == "" || password == "" {
		return false, nil
	}
	count, err := p.users.Count(ctx)
	if err != nil {
		return false, apperrors.NewBackendError(err)
	}
	if count > 0 {
		return false, nil
	}
	if name == "" {
		name = "Super Admin"
	}
	user, err := p.SignUp(ctx, SignUpInput{Name: name, Email: email, Password: password, Role: domain.RoleSuperAdmin})
	if err != nil {
		return false, err
	}
	p.logger.Info("bootstrapped super admin", zap.String("user_id", user.ID), zap.String("email", user.Email))
	return true, nil
}
