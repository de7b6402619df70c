package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/smaite/weser/internal/users"
	pkgauth "github.com/smaite/weser/pkg/auth"
	"github.com/smaite/weser/pkg/config"
	"github.com/smaite/weser/pkg/db"
	"github.com/smaite/weser/pkg/db/models"
	"github.com/smaite/weser/pkg/enums"
	pkgerrors "github.com/smaite/weser/pkg/errors"
	"github.com/smaite/weser/pkg/security"
)

type userRepository interface {
	Create(ctx context.Context, dto users.CreateUserDTO) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Service exposes account registration and session issuance.
type Service interface {
	Register(ctx context.Context, input RegisterInput) (*SessionResponse, error)
	Login(ctx context.Context, input LoginInput) (*SessionResponse, error)
	Me(ctx context.Context, userID uuid.UUID) (*users.UserDTO, error)
}

// RegisterInput carries the validated signup payload.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Phone    *string
	Address  *string
}

// LoginInput carries the login payload.
type LoginInput struct {
	Email    string
	Password string
}

// SessionResponse bundles the minted token with the account it belongs to.
type SessionResponse struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	User      *users.UserDTO `json:"user"`
}

type service struct {
	repo        userRepository
	jwtConfig   config.JWTConfig
	passwordCfg config.PasswordConfig
	now         func() time.Time
}

// NewService constructs the auth service.
func NewService(repo userRepository, jwtConfig config.JWTConfig, passwordCfg config.PasswordConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("user repository required")
	}
	if jwtConfig.Secret == "" {
		return nil, fmt.Errorf("jwt secret required")
	}
	return &service{
		repo:        repo,
		jwtConfig:   jwtConfig,
		passwordCfg: passwordCfg,
		now:         time.Now,
	}, nil
}

// Register creates a new account and signs it in.
func (s *service) Register(ctx context.Context, input RegisterInput) (*SessionResponse, error) {
	if err := validateRegisterInput(input); err != nil {
		return nil, err
	}

	hash, err := security.HashPassword(input.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	user, err := s.repo.Create(ctx, users.CreateUserDTO{
		Name:         strings.TrimSpace(input.Name),
		Email:        input.Email,
		PasswordHash: hash,
		Phone:        input.Phone,
		Address:      input.Address,
		Role:         enums.UserRoleUser,
	})
	if err != nil {
		if db.IsUniqueViolation(err, "idx_users_email") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert user")
	}

	return s.issueSession(user)
}

// Login verifies credentials and mints a session token. Unknown emails
// and wrong passwords share one response, so the endpoint does not leak
// which accounts exist.
func (s *service) Login(ctx context.Context, input LoginInput) (*SessionResponse, error) {
	if input.Email == "" || input.Password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email and password required")
	}

	user, err := s.repo.FindByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invalidCredentials()
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load user")
	}

	ok, err := security.VerifyPassword(input.Password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !ok {
		return nil, invalidCredentials()
	}

	return s.issueSession(user)
}

// Me loads the signed-in account.
func (s *service) Me(ctx context.Context, userID uuid.UUID) (*users.UserDTO, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load user")
	}
	return users.FromModel(user), nil
}

func (s *service) issueSession(user *models.User) (*SessionResponse, error) {
	now := s.now().UTC()
	token, err := pkgauth.MintAccessToken(s.jwtConfig, now, pkgauth.AccessTokenPayload{
		UserID: user.ID,
		Role:   user.Role,
		JTI:    uuid.NewString(),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint access token")
	}
	return &SessionResponse{
		Token:     token,
		ExpiresAt: now.Add(time.Duration(s.jwtConfig.ExpirationMinutes) * time.Minute),
		User:      users.FromModel(user),
	}, nil
}

func validateRegisterInput(input RegisterInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "name required")
	}
	if !strings.Contains(input.Email, "@") {
		return pkgerrors.New(pkgerrors.CodeValidation, "valid email required")
	}
	if len(input.Password) < 8 {
		return pkgerrors.New(pkgerrors.CodeValidation, "password must be at least 8 characters")
	}
	return nil
}

func invalidCredentials() error {
	return pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid email or password")
}
