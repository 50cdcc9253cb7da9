// Package services contains server-side business logic. This file implements
// UserService, which handles registration, login and identity lookups.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jmoiron/sqlx"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
)

// DefaultStoreTimeout bounds a single store operation when none is configured.
const DefaultStoreTimeout = 5 * time.Second

// Token is the result of a successful login.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// UserService provides authentication-related operations:
//   - Register: create users
//   - Login: verify credentials and mint an access token
//   - ResolveToken / GetByID / GetByEmail: identify callers
type UserService struct {
	db           *sqlx.DB
	repomanager  repomanager.RepositoryManager
	hasher       *auth.PasswordHasher
	issuer       *auth.Issuer
	logger       logging.Logger
	storeTimeout time.Duration

	// verified against when the email is unknown so login timing is uniform
	dummyHash string
}

// NewUserService wires a UserService. storeTimeout <= 0 means DefaultStoreTimeout.
func NewUserService(
	db *sqlx.DB,
	m repomanager.RepositoryManager,
	hasher *auth.PasswordHasher,
	issuer *auth.Issuer,
	logger logging.Logger,
	storeTimeout time.Duration,
) (*UserService, error) {
	if storeTimeout <= 0 {
		storeTimeout = DefaultStoreTimeout
	}

	dummy, err := hasher.Hash("authkeeper-dummy-password")
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}

	return &UserService{
		db:           db,
		repomanager:  m,
		hasher:       hasher,
		issuer:       issuer,
		logger:       logger.With("module", "user_service"),
		storeTimeout: storeTimeout,
		dummyHash:    dummy,
	}, nil
}

type registerInput struct {
	Email    string
	Password string
}

func (r registerInput) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

// Register creates a user with the given credentials. An empty role means
// student. The returned record carries no password hash.
func (s *UserService) Register(ctx context.Context, email, password, role string) (*models.User, error) {
	if err := (registerInput{Email: email, Password: password}).Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrValidation, err)
	}

	r, err := models.ParseRole(role)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrValidation, err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) || errors.Is(err, auth.ErrEmptyPassword) {
			return nil, fmt.Errorf("%w: %v", common.ErrValidation, err)
		}
		return nil, fmt.Errorf("hash password: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	var created *models.User
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)

		_, err := repo.GetUserByEmail(ctx, email)
		switch {
		case err == nil:
			return common.ErrDuplicateEmail
		case !errors.Is(err, common.ErrNotFound):
			return err
		}

		created, err = repo.Create(ctx, &models.User{Email: email, PasswordHash: hash, Role: r})
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrDuplicateEmail) {
			return nil, common.ErrDuplicateEmail
		}
		return nil, s.storeFailure(ctx, "register", err)
	}

	s.logger.Info(ctx, "user registered", "user_id", created.ID, "role", created.Role)
	return created.Redacted(), nil
}

// Login checks email and password and returns a fresh access token. Unknown
// email and wrong password are both reported as common.ErrInvalidCredentials.
func (s *UserService) Login(ctx context.Context, email, password string) (*Token, error) {
	user, err := s.lookup(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			_, _ = s.hasher.Verify(password, s.dummyHash)
			return nil, common.ErrInvalidCredentials
		}
		return nil, s.storeFailure(ctx, "login", err)
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		s.logger.Error(ctx, "stored password hash is unusable", "user_id", user.ID, "error", err)
		return nil, common.ErrInvalidCredentials
	}
	if !ok {
		return nil, common.ErrInvalidCredentials
	}

	access, err := s.issuer.Issue(auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: user.Email},
		Role:             user.Role,
		UserID:           user.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	return &Token{AccessToken: access, TokenType: common.TokenTypeBearer}, nil
}

// ResolveToken validates a bearer token. It performs no I/O.
func (s *UserService) ResolveToken(token string) (*auth.Claims, error) {
	return s.issuer.Resolve(strings.TrimSpace(token))
}

// GetByID returns the user with the given id or common.ErrNotFound.
func (s *UserService) GetByID(ctx context.Context, id int64) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	user, err := s.repomanager.Users(s.db).GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
		return nil, s.storeFailure(ctx, "get user by id", err)
	}
	return user.Redacted(), nil
}

// GetByEmail returns the user with the given email or common.ErrNotFound.
func (s *UserService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := s.lookup(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
		return nil, s.storeFailure(ctx, "get user by email", err)
	}
	return user.Redacted(), nil
}

// CurrentUser loads the account a resolved token was issued for.
func (s *UserService) CurrentUser(ctx context.Context, claims *auth.Claims) (*models.User, error) {
	if claims == nil {
		return nil, common.ErrInvalidToken
	}
	return s.GetByEmail(ctx, claims.Subject)
}

func (s *UserService) lookup(ctx context.Context, email string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	return s.repomanager.Users(s.db).GetUserByEmail(ctx, email)
}

// storeFailure logs err and makes sure it matches common.ErrStoreUnavailable.
func (s *UserService) storeFailure(ctx context.Context, op string, err error) error {
	s.logger.Error(ctx, "store operation failed", "op", op, "error", err)
	if errors.Is(err, common.ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, common.ErrStoreUnavailable, err)
}
