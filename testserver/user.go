package testserver

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core/user"
)

// AddUser registers an account directly, bypassing the signup endpoint.
func (s *Server) AddUser(name, username, password, role string) (user.User, error) {
	acct := &account{
		User: user.User{
			ID:       uuid.New().String(),
			Name:     name,
			Username: username,
			Role:     role,
		},
	}
	if err := acct.setPassword(password); err != nil {
		return user.User{}, err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.findAccountLocked(username) != nil {
		return user.User{}, errors.New("a user with this username already exists")
	}
	s.accounts[acct.ID] = acct
	return acct.User, nil
}

func (s *Server) findAccountLocked(username string) *account {
	for _, acct := range s.accounts {
		if acct.Username == username {
			return acct
		}
	}
	return nil
}

// Handlers

func (s *Server) signup(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	if err := data.Validate(s.validate, s.translator); err != nil {
		return err
	}

	acct := &account{
		User: user.User{
			ID:       uuid.New().String(),
			Name:     data.Name,
			Username: data.Username,
			Role:     data.Role,
		},
	}
	if err := acct.setPassword(data.Password); err != nil {
		return err
	}

	s.mutex.Lock()
	if s.findAccountLocked(data.Username) != nil {
		s.mutex.Unlock()
		return echo.NewHTTPError(http.StatusBadRequest, "Username already exists")
	}
	s.accounts[acct.ID] = acct
	s.mutex.Unlock()

	return ctx.JSON(http.StatusOK, acct.User)
}

func (s *Server) token(ctx echo.Context) error {
	if ctx.FormValue("grant_type") != "password" {
		return echo.NewHTTPError(http.StatusBadRequest, "Unsupported grant type")
	}
	username := ctx.FormValue("username")
	password := ctx.FormValue("password")

	s.mutex.RLock()
	acct := s.findAccountLocked(username)
	s.mutex.RUnlock()
	if acct == nil {
		return errBadLogin
	}
	if err := acct.checkPassword(password); err != nil {
		return errBadLogin
	}

	token, err := s.TokenFor(acct.User)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, user.Token{AccessToken: token, TokenType: "bearer"})
}

func (s *Server) me(ctx echo.Context) error {
	usr, err := s.contextUser(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (s *Server) retrieveUser(ctx echo.Context) error {
	if _, err := s.contextUser(ctx); err != nil {
		return err
	}

	s.mutex.RLock()
	acct, ok := s.accounts[ctx.Param("id")]
	s.mutex.RUnlock()
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "User not found")
	}
	return ctx.JSON(http.StatusOK, acct.User)
}
