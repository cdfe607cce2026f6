package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"capturesque/internal/app/throttle"
	"capturesque/internal/common"
	"capturesque/internal/common/security"
	"capturesque/internal/domain/model"
	"capturesque/internal/domain/repository"
)

// TokenIssuer is satisfied by *security.TokenManager.
type TokenIssuer interface {
	Mint(id model.Identity) (string, error)
	Verify(raw string) (model.Identity, error)
}

type AuthService struct {
	userRepo   repository.UserRepository
	hasher     security.PasswordHasher
	tokens     TokenIssuer
	throttle   throttle.LoginThrottle
	adminEmail string
	log        *slog.Logger
}

func NewAuthService(
	userRepo repository.UserRepository,
	hasher security.PasswordHasher,
	tokens TokenIssuer,
	loginThrottle throttle.LoginThrottle,
	adminEmail string,
	log *slog.Logger,
) *AuthService {
	if loginThrottle == nil {
		loginThrottle = throttle.Noop{}
	}
	return &AuthService{
		userRepo:   userRepo,
		hasher:     hasher,
		tokens:     tokens,
		throttle:   loginThrottle,
		adminEmail: adminEmail,
		log:        log,
	}
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token string         `json:"token"`
	User  model.Identity `json:"user"`
}

// Register creates a user and logs them in. A failure to mint the token is
// logged and yields an empty token; the account exists either way.
func (s *AuthService) Register(ctx context.Context, req Credentials) (*AuthResponse, error) {
	email := model.NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, common.Errorf("email and password are required: %w", common.ErrInvalidInput)
	}

	hashedPassword, err := s.hasher.Hash(req.Password)
	if errors.Is(err, common.ErrInvalidInput) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{Email: email, HashedPassword: hashedPassword}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	s.log.InfoContext(ctx, "user registered", "user_id", user.ID)

	token, identity, err := s.Mint(user)
	if err != nil {
		s.log.WarnContext(ctx, "auto-login token not issued", "user_id", user.ID, "error", err)
		token = ""
	}
	return &AuthResponse{Token: token, User: identity}, nil
}

// Login checks the password and returns a fresh token. Unknown email and
// wrong password produce the same error.
func (s *AuthService) Login(ctx context.Context, req Credentials) (*AuthResponse, error) {
	email := model.NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, common.Errorf("email and password are required: %w", common.ErrInvalidInput)
	}

	if err := s.throttle.Check(ctx, email); err != nil {
		if errors.Is(err, common.ErrTooManyRequests) {
			return nil, err
		}
		s.log.WarnContext(ctx, "login throttle unavailable", "error", err)
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.recordFailure(ctx, email)
			return nil, common.Errorf("invalid email or password: %w", common.ErrUnauthorized)
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	ok, err := s.hasher.Verify(req.Password, user.HashedPassword)
	if err != nil {
		s.log.ErrorContext(ctx, "stored password hash unreadable", "user_id", user.ID, "error", err)
	}
	if !ok {
		s.recordFailure(ctx, email)
		return nil, common.Errorf("invalid email or password: %w", common.ErrUnauthorized)
	}

	if err := s.throttle.Reset(ctx, email); err != nil {
		s.log.WarnContext(ctx, "login throttle reset failed", "error", err)
	}

	token, identity, err := s.Mint(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return &AuthResponse{Token: token, User: identity}, nil
}

// Verify is stateless: the user store is not consulted.
func (s *AuthService) Verify(raw string) (model.Identity, error) {
	return s.tokens.Verify(raw)
}

// Mint derives the identity claim of user and signs it. The identity is
// returned even when signing fails.
func (s *AuthService) Mint(user *model.User) (string, model.Identity, error) {
	identity := model.NewIdentity(user, s.adminEmail)
	token, err := s.tokens.Mint(identity)
	if err != nil {
		return "", identity, err
	}
	return token, identity, nil
}

func (s *AuthService) recordFailure(ctx context.Context, email string) {
	if err := s.throttle.RecordFailure(ctx, email); err != nil {
		s.log.WarnContext(ctx, "login failure not recorded", "error", err)
	}
}
