package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/somnuslabs/somnus/internal/sleep/domain"
	"github.com/somnuslabs/somnus/internal/sleep/store"
	"github.com/somnuslabs/somnus/pkg/cryptox"
	"github.com/somnuslabs/somnus/pkg/idx"
	"github.com/somnuslabs/somnus/pkg/jwtx"
	"github.com/somnuslabs/somnus/pkg/slogx"
)

const minPasswordLength = 8

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrEmailTaken         = errors.New("email_taken")
	ErrWeakPassword       = errors.New("weak_password")
	ErrInvalidEmail       = errors.New("invalid_email")
)

// UserService handles registration and login and mints the app's own access
// tokens. Provider credentials are a separate concern (TokenLifecycle).
type UserService struct {
	Store    store.Store
	Signer   *jwtx.Signer
	Issuer   string
	Audience []string

	AccessTTL time.Duration // defaults to jwtx.DefaultAccessTokenTTL
}

func (s *UserService) accessTTL() time.Duration {
	if s.AccessTTL > 0 {
		return s.AccessTTL
	}
	return jwtx.DefaultAccessTokenTTL
}

// Register creates a user with the default role.
func (s *UserService) Register(ctx context.Context, email, displayName, password string) (domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return domain.User{}, ErrInvalidEmail
	}
	if len(password) < minPasswordLength {
		return domain.User{}, ErrWeakPassword
	}
	if displayName = strings.TrimSpace(displayName); displayName == "" {
		displayName = email[:strings.Index(email, "@")]
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return domain.User{}, err
	}

	role, err := s.Store.Roles().GetRoleByName(ctx, domain.RoleUser)
	if err != nil {
		return domain.User{}, err
	}

	user := domain.User{
		ID:           idx.New().String(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: hash,
		RoleID:       role.ID,
	}
	if err := s.Store.Users().CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, ErrEmailTaken
		}
		return domain.User{}, err
	}

	slogx.FromContext(ctx).Info("user registered", "user_id", user.ID)
	return user, nil
}

// Login verifies credentials and returns a signed access token. Lookup and
// verification failures collapse into one error so the response does not
// leak which emails exist.
func (s *UserService) Login(ctx context.Context, email, password string) (string, domain.User, error) {
	user, err := s.Store.Users().GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", domain.User{}, ErrInvalidCredentials
		}
		return "", domain.User{}, err
	}

	if err := cryptox.VerifyPassword(password, user.PasswordHash); err != nil {
		return "", domain.User{}, ErrInvalidCredentials
	}

	role, err := s.Store.Roles().GetRoleByID(ctx, user.RoleID)
	if err != nil {
		return "", domain.User{}, err
	}

	claims := jwtx.NewAccessClaims(
		user.ID, role.Scopes, s.accessTTL(),
		s.Issuer, s.Audience,
		user.Email, user.DisplayName,
		time.Now(),
	)
	token, err := s.Signer.Sign(claims)
	if err != nil {
		return "", domain.User{}, err
	}

	return token, user, nil
}
