package testserver

import (
	"net/http"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core"
)

var (
	errUnauthorized = echo.NewHTTPError(http.StatusUnauthorized, "Invalid authentication credentials")
	errBadLogin     = echo.NewHTTPError(http.StatusUnauthorized, "Incorrect username or password")
)

// newAppHTTPErrorHandler returns an echo.HTTPErrorHandler that reports every
// error the way the real service does: a JSON body with a single `detail`
// message.
func newAppHTTPErrorHandler(translator ut.Translator) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var detail string

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				detail = "Not authenticated"
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			if msg, ok := origErr.Message.(string); ok {
				detail = msg
			} else {
				detail = http.StatusText(code)
			}
		case validator.ValidationErrors:
			code = http.StatusBadRequest
			msgs := make([]string, 0, len(origErr))
			for _, vErr := range origErr {
				msgs = append(msgs, vErr.Field()+": "+vErr.Translate(translator))
			}
			detail = strings.Join(msgs, "; ")
		case *core.ValidationError:
			code = http.StatusBadRequest
			if origErr.Fields != nil {
				msgs := make([]string, 0, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					msgs = append(msgs, fErr.Field+": "+fErr.Error)
				}
				detail = strings.Join(msgs, "; ")
			} else {
				detail = origErr.Error()
			}
		default:
			code = http.StatusInternalServerError
			detail = http.StatusText(code)
		}

		if !ctx.Response().Committed {
			if sendErr := ctx.JSON(code, echo.Map{"detail": detail}); sendErr != nil {
				ctx.Echo().Logger.Error(sendErr)
			}
		}
	}
}
