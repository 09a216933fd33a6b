package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/postroom/postroom/auth"
	"github.com/postroom/postroom/service"
	"github.com/postroom/postroom/store"

	"github.com/labstack/echo/v4"
)

type GenericError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type GenericStatus struct {
	Daemon  string `json:"daemon"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// classifyError maps an error to a status code and a body safe to show to
// callers. Anything not recognized is an internal error with no detail.
func classifyError(err error) (int, GenericError) {
	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized, GenericError{"Unauthorized", auth.ErrUnauthorized.Error()}
	case errors.Is(err, auth.ErrInvalidEmailOrPassword):
		return http.StatusUnauthorized, GenericError{"InvalidCredentials", auth.ErrInvalidEmailOrPassword.Error()}
	case errors.Is(err, service.ErrPostNotFoundOrNotOwned):
		return http.StatusNotFound, GenericError{"PostNotFound", service.ErrPostNotFoundOrNotOwned.Error()}
	case errors.Is(err, store.ErrOwnerNotFound):
		return http.StatusNotFound, GenericError{"OwnerNotFound", store.ErrOwnerNotFound.Error()}
	case errors.Is(err, store.ErrAccountNotFound):
		return http.StatusNotFound, GenericError{"AccountNotFound", store.ErrAccountNotFound.Error()}
	case errors.Is(err, store.ErrEmailTaken):
		return http.StatusBadRequest, GenericError{"EmailTaken", store.ErrEmailTaken.Error()}
	case errors.Is(err, ErrValidationFailed):
		return http.StatusUnprocessableEntity, GenericError{"ValidationFailed", err.Error()}
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		name := strings.ReplaceAll(http.StatusText(he.Code), " ", "")
		if name == "" {
			name = "Error"
		}
		return he.Code, GenericError{name, fmt.Sprintf("%v", he.Message)}
	}

	return http.StatusInternalServerError, GenericError{"InternalError", "internal server error"}
}

func (srv *Server) errorHandler(err error, c echo.Context) {
	code, body := classifyError(err)
	if code >= 500 {
		srv.logger.Warn("postroom-http-internal-error", "err", err, "path", c.Path())
	}
	if c.Response().Committed {
		return
	}
	if code == http.StatusUnauthorized && c.Response().Header().Get(echo.HeaderWWWAuthenticate) == "" {
		c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
	}
	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, body)
	}
	if err != nil {
		srv.logger.Warn("failed to write error response", "err", err)
	}
}
