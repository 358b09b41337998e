package internal

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/lychee-technology/tabula"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9]{3,30}$`)
	passwordPattern = regexp.MustCompile(`^[a-zA-Z0-9]{3,30}$`)
)

// SessionClaims is the payload of an admin session token.
type SessionClaims struct {
	jwt.RegisteredClaims
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type sessionAuthenticator struct {
	users  AdminUserRepository
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionAuthenticator issues and verifies HS256 admin session tokens.
func NewSessionAuthenticator(users AdminUserRepository, config tabula.AuthConfig) (tabula.Authenticator, error) {
	if config.JWTSecret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	ttl := config.TokenTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &sessionAuthenticator{
		users:  users,
		secret: []byte(config.JWTSecret),
		issuer: config.Issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// ValidateCredentials checks the shape of a login attempt before any lookup.
func ValidateCredentials(username, password string) error {
	if !usernamePattern.MatchString(username) {
		return tabula.NewValidationError("username", "Invalid input: username must be 3-30 alphanumeric characters")
	}
	if !passwordPattern.MatchString(password) {
		return tabula.NewValidationError("password", "Invalid input: password must be 3-30 alphanumeric characters")
	}
	return nil
}

func (a *sessionAuthenticator) Login(ctx context.Context, username, password string) (*tabula.Principal, string, error) {
	if err := ValidateCredentials(username, password); err != nil {
		return nil, "", err
	}

	user, err := a.users.GetAdminUser(ctx, username)
	if err != nil {
		if tabula.IsNotFound(err) {
			zap.S().Infow("login rejected", "username", username, "reason", "unknown user")
			return nil, "", invalidCredentials()
		}
		return nil, "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		zap.S().Infow("login rejected", "username", username, "reason", "password mismatch")
		return nil, "", invalidCredentials()
	}

	principal := &tabula.Principal{UserID: user.ID.String(), Username: user.Username}
	token, err := a.issue(principal)
	if err != nil {
		return nil, "", err
	}
	zap.S().Infow("login succeeded", "username", username)
	return principal, token, nil
}

func (a *sessionAuthenticator) Verify(ctx context.Context, tokenString string) (*tabula.Principal, error) {
	if tokenString == "" {
		return nil, tabula.NewUnauthorizedError("Not authenticated")
	}
	token, err := jwt.ParseWithClaims(
		tokenString,
		&SessionClaims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return a.secret, nil
		},
		jwt.WithTimeFunc(a.now),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		zap.S().Debugw("session token rejected", "error", err)
		return nil, tabula.NewUnauthorizedError("Not authenticated").WithCause(err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, tabula.NewUnauthorizedError("Not authenticated")
	}
	return &tabula.Principal{UserID: claims.UserID, Username: claims.Username}, nil
}

func (a *sessionAuthenticator) issue(principal *tabula.Principal) (string, error) {
	now := a.now()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    a.issuer,
			Subject:   principal.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
		UserID:   principal.UserID,
		Username: principal.Username,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

func invalidCredentials() error {
	return tabula.NewError(tabula.ErrorTypeUnauthorized, tabula.ErrCodeInvalidCredentials, "Invalid credentials")
}
