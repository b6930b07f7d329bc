package testserver

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/kazi/core/user"
)

const (
	tokenExpirationDelta = 30 * time.Minute
	contextTokenKey      = "userToken"
)

// account is a registered user plus their password hash; only the user.User
// part ever leaves the server.
type account struct {
	user.User
	passwordHash []byte
}

func (a *account) setPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return errors.Wrap(err, "hashing password")
	}
	a.passwordHash = hash
	return nil
}

func (a *account) checkPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(a.passwordHash, []byte(pwd))
}

// Claims represents the authorization claims transmitted via a JWT,
// shaped like the real service's tokens: user ID as subject plus the role.
type Claims struct {
	jwt.StandardClaims
	Role string `json:"role"`
}

func (s *Server) jwtConfig() middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    s.opts.SecretKey,
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        new(Claims),
	}
}

// TokenFor mints a signed token for usr, as the real service would.
// Handy for seeding a stored-credential scenario in tests.
func (s *Server) TokenFor(usr user.User) (string, error) {
	return s.tokenWithExpiry(usr, time.Now().Add(tokenExpirationDelta))
}

// ExpiredTokenFor mints a token that is already expired.
func (s *Server) ExpiredTokenFor(usr user.User) (string, error) {
	return s.tokenWithExpiry(usr, time.Now().Add(-time.Minute))
}

func (s *Server) tokenWithExpiry(usr user.User, expiresAt time.Time) (string, error) {
	claims := &Claims{
		StandardClaims: jwt.StandardClaims{
			Subject:   usr.ID,
			ExpiresAt: expiresAt.Unix(),
			IssuedAt:  time.Now().Unix(),
		},
		Role: usr.Role,
	}
	token := jwt.NewWithClaims(jwt.GetSigningMethod(middleware.AlgorithmHS256), claims)

	ss, err := token.SignedString(s.opts.SecretKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func (s *Server) contextUser(ctx echo.Context) (user.User, error) {
	token, ok := ctx.Get(contextTokenKey).(*jwt.Token)
	if !ok {
		return user.User{}, errUnauthorized
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return user.User{}, errUnauthorized
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()
	acct, ok := s.accounts[claims.Subject]
	if !ok {
		return user.User{}, errUnauthorized
	}
	return acct.User, nil
}
