package internal

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/lychee-technology/tabula"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type stubUsers struct {
	users map[string]*AdminUser
}

func (s *stubUsers) GetAdminUser(ctx context.Context, username string) (*AdminUser, error) {
	u, ok := s.users[username]
	if !ok {
		return nil, tabula.NewNotFoundError(tabula.ErrCodeInvalidCredentials, "admin user", username)
	}
	return u, nil
}

func (s *stubUsers) InsertAdminUser(ctx context.Context, user *AdminUser) error {
	s.users[user.Username] = user
	return nil
}

func newTestAuthenticator(t *testing.T) (*sessionAuthenticator, *stubUsers) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.MinCost)
	require.NoError(t, err)
	users := &stubUsers{users: map[string]*AdminUser{
		"admin": {ID: uuid.MustParse("11111111-1111-1111-1111-111111111111"), Username: "admin", PasswordHash: string(hash)},
	}}

	cfg := tabula.DefaultConfig().Auth
	cfg.JWTSecret = "test-secret"
	auth, err := NewSessionAuthenticator(users, cfg)
	require.NoError(t, err)
	return auth.(*sessionAuthenticator), users
}

func TestSessionLoginAndVerify(t *testing.T) {
	auth, _ := newTestAuthenticator(t)
	ctx := context.Background()

	principal, token, err := auth.Login(ctx, "admin", "admin123")
	require.NoError(t, err)
	assert.Equal(t, "admin", principal.Username)
	assert.Equal(t, "11111111-1111-1111-1111-111111111111", principal.UserID)
	assert.NotEmpty(t, token)

	verified, err := auth.Verify(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, principal, verified)
}

func TestSessionLoginRejects(t *testing.T) {
	auth, _ := newTestAuthenticator(t)

	tests := []struct {
		name     string
		username string
		password string
		errType  tabula.ErrorType
	}{
		{name: "wrong password", username: "admin", password: "wrong123", errType: tabula.ErrorTypeUnauthorized},
		{name: "unknown user", username: "ghost", password: "admin123", errType: tabula.ErrorTypeUnauthorized},
		{name: "short username", username: "ad", password: "admin123", errType: tabula.ErrorTypeInvalidInput},
		{name: "non alphanumeric username", username: "ad-min", password: "admin123", errType: tabula.ErrorTypeInvalidInput},
		{name: "password with symbols", username: "admin", password: "admin!23", errType: tabula.ErrorTypeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := auth.Login(context.Background(), tt.username, tt.password)
			require.Error(t, err)
			assert.Equal(t, tt.errType, tabula.ErrorTypeOf(err))
		})
	}
}

func TestSessionInvalidCredentialsMessage(t *testing.T) {
	auth, _ := newTestAuthenticator(t)

	_, _, err := auth.Login(context.Background(), "admin", "nope123")
	var typed *tabula.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, "Invalid credentials", typed.Message)
	assert.Equal(t, tabula.ErrCodeInvalidCredentials, typed.Code)
}

func TestSessionVerifyRejects(t *testing.T) {
	auth, _ := newTestAuthenticator(t)
	ctx := context.Background()

	_, token, err := auth.Login(ctx, "admin", "admin123")
	require.NoError(t, err)

	other, _ := newTestAuthenticator(t)
	other.secret = []byte("another-secret")

	expired, _ := newTestAuthenticator(t)
	expired.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		Username:         "admin",
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		auth  *sessionAuthenticator
		token string
	}{
		{name: "empty", auth: auth, token: ""},
		{name: "garbage", auth: auth, token: "not-a-token"},
		{name: "wrong secret", auth: other, token: token},
		{name: "expired", auth: expired, token: token},
		{name: "alg none", auth: auth, token: noneToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.auth.Verify(ctx, tt.token)
			require.Error(t, err)
			assert.Equal(t, tabula.ErrorTypeUnauthorized, tabula.ErrorTypeOf(err))
		})
	}
}

func TestSessionTokenExpiresAfterTTL(t *testing.T) {
	auth, _ := newTestAuthenticator(t)
	fixed := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	auth.now = func() time.Time { return fixed }

	_, token, err := auth.Login(context.Background(), "admin", "admin123")
	require.NoError(t, err)

	claims := &SessionClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(token, claims)
	require.NoError(t, err)
	assert.Equal(t, fixed.Add(time.Hour), claims.ExpiresAt.Time.UTC())
	assert.Equal(t, "tabula", claims.Issuer)
}

func TestNewSessionAuthenticatorRequiresSecret(t *testing.T) {
	_, err := NewSessionAuthenticator(&stubUsers{}, tabula.AuthConfig{})
	assert.Error(t, err)
}

func TestAdminUserRepositoryWithMockPool(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresAdminUserRepository(mock, testTables)
	user, err := NewAdminUser("admin", "admin123")
	require.NoError(t, err)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("admin123")))

	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("^" + regexp.QuoteMeta(`INSERT INTO "admin_users" (id, username, password_hash)`)).
		WithArgs(user.ID, "admin", user.PasswordHash).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(user.ID, created))
	require.NoError(t, repo.InsertAdminUser(context.Background(), user))
	assert.Equal(t, created, user.CreatedAt)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM "admin_users" WHERE username = $1`)).
		WithArgs("admin").
		WillReturnRows(pgxmock.NewRows([]string{"id", "username", "password_hash", "created_at"}).
			AddRow(user.ID, "admin", user.PasswordHash, created))
	got, err := repo.GetAdminUser(context.Background(), "admin")
	require.NoError(t, err)
	assert.Equal(t, user.PasswordHash, got.PasswordHash)

	require.NoError(t, mock.ExpectationsWereMet())
}
