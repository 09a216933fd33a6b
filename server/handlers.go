package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/postroom/postroom/auth"
	"github.com/postroom/postroom/models"

	"github.com/labstack/echo/v4"
)

type signupInput struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=100,password"`
}

type loginInput struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,max=100"`
}

func (in *signupInput) normalize() { in.Email = strings.TrimSpace(in.Email) }
func (in *loginInput) normalize()  { in.Email = strings.TrimSpace(in.Email) }

type createPostInput struct {
	Text string `json:"text" validate:"required,maxbytes=1048576"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type DeletePostResponse struct {
	Message string `json:"message"`
	PostID  uint64 `json:"post_id"`
}

type DeleteAccountResponse struct {
	Message string     `json:"message"`
	OwnerID models.Uid `json:"user_id"`
}

type HomeResponse struct {
	Service string `json:"service"`
	Version string `json:"version,omitempty"`
	Message string `json:"message"`
}

// bindValid decodes the request body into v and validates it. Decoding
// problems are validation failures too. Inputs with a normalize method are
// cleaned up before validation.
func bindValid(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return fmt.Errorf("%w: malformed request body", ErrValidationFailed)
	}
	if n, ok := v.(interface{ normalize() }); ok {
		n.normalize()
	}
	return c.Validate(v)
}

func requestOwner(c echo.Context) (models.Uid, error) {
	owner, ok := auth.OwnerFromContext(c.Request().Context())
	if !ok {
		return 0, auth.ErrUnauthorized
	}
	return owner, nil
}

func parseID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", ErrValidationFailed, name)
	}
	return id, nil
}

func (srv *Server) WebHome(c echo.Context) error {
	return c.JSON(http.StatusOK, HomeResponse{
		Service: "postroom",
		Version: srv.version,
		Message: "post service with per-owner cached listings; see /auth and /posts",
	})
}

func (srv *Server) HandleHealthCheck(c echo.Context) error {
	if srv.db != nil {
		if err := srv.db.Ping(c.Request().Context()); err != nil {
			srv.logger.Error("healthcheck can't connect to database", "err", err)
			return c.JSON(http.StatusInternalServerError, GenericStatus{Status: "error", Daemon: "postroom", Message: "can't connect to database"})
		}
	}
	return c.JSON(http.StatusOK, GenericStatus{Status: "ok", Daemon: "postroom"})
}

func (srv *Server) HandleSignup(c echo.Context) error {
	var in signupInput
	if err := bindValid(c, &in); err != nil {
		return err
	}
	tok, err := srv.accounts.Signup(c.Request().Context(), in.Email, in.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, TokenResponse{AccessToken: tok, TokenType: "bearer"})
}

func (srv *Server) HandleLogin(c echo.Context) error {
	var in loginInput
	if err := bindValid(c, &in); err != nil {
		return err
	}
	tok, err := srv.accounts.Login(c.Request().Context(), in.Email, in.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, TokenResponse{AccessToken: tok, TokenType: "bearer"})
}

func (srv *Server) HandleCreatePost(c echo.Context) error {
	owner, err := requestOwner(c)
	if err != nil {
		return err
	}
	var in createPostInput
	if err := bindValid(c, &in); err != nil {
		return err
	}
	post, err := srv.posts.CreatePost(c.Request().Context(), owner, in.Text)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, post)
}

func (srv *Server) HandleListPosts(c echo.Context) error {
	owner, err := requestOwner(c)
	if err != nil {
		return err
	}
	posts, err := srv.posts.ListPosts(c.Request().Context(), owner)
	if err != nil {
		return err
	}
	if posts == nil {
		posts = []models.Post{}
	}
	return c.JSON(http.StatusOK, posts)
}

func (srv *Server) HandleDeletePost(c echo.Context) error {
	owner, err := requestOwner(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := srv.posts.DeletePost(c.Request().Context(), id, owner); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, DeletePostResponse{Message: "Post deleted successfully", PostID: id})
}

func (srv *Server) HandlePostStats(c echo.Context) error {
	owner, err := requestOwner(c)
	if err != nil {
		return err
	}
	st, err := srv.posts.Stats(c.Request().Context(), owner)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, st)
}

func (srv *Server) HandleAdminDeleteAccount(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	owner := models.Uid(id)
	if err := srv.accounts.DeleteAccount(c.Request().Context(), owner); err != nil {
		return err
	}
	srv.logger.Info("admin deleted account", "owner", owner)
	return c.JSON(http.StatusOK, DeleteAccountResponse{Message: "Account deleted", OwnerID: owner})
}

func (srv *Server) HandleAdminPurgeCache(c echo.Context) error {
	srv.posts.PurgeCache()
	return c.JSON(http.StatusOK, GenericStatus{Status: "ok", Daemon: "postroom", Message: "cache purged"})
}
