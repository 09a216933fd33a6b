package auth

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/postroom/postroom/models"

	"github.com/labstack/echo/v4"
)

// ErrUnauthorized is the only failure the gate reports to callers. The
// underlying cause is logged, never returned.
var ErrUnauthorized = errors.New("could not validate credentials")

// Gate turns a bearer credential into a verified owner id.
type Gate struct {
	Codec *TokenCodec

	log *slog.Logger
}

func NewGate(codec *TokenCodec, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		Codec: codec,
		log:   logger.With("system", "auth"),
	}
}

func (g *Gate) Authenticate(credential string) (models.Uid, error) {
	if credential == "" {
		return 0, ErrUnauthorized
	}
	claim, err := g.Codec.Verify(credential)
	if err != nil {
		g.log.Debug("rejected credential", "err", err)
		return 0, ErrUnauthorized
	}
	return claim.OwnerID, nil
}

// AuthenticateOptional is Authenticate with the failure folded into "no
// identity".
func (g *Gate) AuthenticateOptional(credential string) (models.Uid, bool) {
	owner, err := g.Authenticate(credential)
	if err != nil {
		return 0, false
	}
	return owner, true
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(hdr string) (string, bool) {
	parts := strings.Split(hdr, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// Middleware rejects requests without a valid bearer token before the
// handler runs; the verified owner is attached to the request context.
func (g *Gate) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tok, ok := BearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return ErrUnauthorized
			}
			owner, err := g.Authenticate(tok)
			if err != nil {
				return err
			}
			c.SetRequest(c.Request().WithContext(withOwner(c.Request().Context(), owner)))
			return next(c)
		}
	}
}

// OptionalMiddleware attaches an owner when a valid token is present and
// otherwise lets the request through anonymously.
func (g *Gate) OptionalMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tok, _ := BearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if owner, ok := g.AuthenticateOptional(tok); ok {
				c.SetRequest(c.Request().WithContext(withOwner(c.Request().Context(), owner)))
			}
			return next(c)
		}
	}
}

// AdminMiddleware is HTTP Basic auth with the username "admin". Several
// passwords may be configured at once to make rotation easier.
func AdminMiddleware(adminPasswords []string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			username, password, ok := c.Request().BasicAuth()
			if ok && username == "admin" {
				for _, pw := range adminPasswords {
					if pw != "" && subtle.ConstantTimeCompare([]byte(pw), []byte(password)) == 1 {
						return next(c)
					}
				}
			}
			c.Response().Header().Set(echo.HeaderWWWAuthenticate, `Basic realm="admin", charset="UTF-8"`)
			return echo.NewHTTPError(http.StatusUnauthorized, "admin authentication required")
		}
	}
}
