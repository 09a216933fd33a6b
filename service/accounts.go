package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/postroom/postroom/auth"
	"github.com/postroom/postroom/models"
	"github.com/postroom/postroom/postcache"
	"github.com/postroom/postroom/store"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type AccountService struct {
	accounts store.AccountRepository
	cache    *postcache.Cache
	codec    *auth.TokenCodec

	log *slog.Logger
}

func NewAccountService(accounts store.AccountRepository, cache *postcache.Cache, codec *auth.TokenCodec, logger *slog.Logger) *AccountService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountService{
		accounts: accounts,
		cache:    cache,
		codec:    codec,
		log:      logger.With("system", "accounts"),
	}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Signup creates an account and returns an access token for it.
func (s *AccountService) Signup(ctx context.Context, email, password string) (string, error) {
	ctx, span := tracer.Start(ctx, "Signup")
	defer span.End()

	email = NormalizeEmail(email)
	hash, err := auth.HashPassword(password)
	if err != nil {
		return "", err
	}

	acct, err := s.accounts.CreateAccount(ctx, email, hash)
	if err != nil {
		return "", err
	}
	accountsCreated.Inc()
	s.log.Info("account created", "owner", acct.ID)

	return s.codec.Issue(acct.ID, acct.Email)
}

// Login returns auth.ErrInvalidEmailOrPassword for both an unknown email and
// a wrong password.
func (s *AccountService) Login(ctx context.Context, email, password string) (string, error) {
	ctx, span := tracer.Start(ctx, "Login")
	defer span.End()

	acct, err := s.accounts.AccountByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return "", auth.ErrInvalidEmailOrPassword
		}
		failSpan(span, err)
		return "", fmt.Errorf("looking up account: %w", err)
	}

	if !auth.VerifyPassword(password, acct.Password) {
		return "", auth.ErrInvalidEmailOrPassword
	}

	return s.codec.Issue(acct.ID, acct.Email)
}

// DeleteAccount removes the account with all of its posts.
func (s *AccountService) DeleteAccount(ctx context.Context, owner models.Uid) error {
	ctx, span := tracer.Start(ctx, "DeleteAccount", trace.WithAttributes(attribute.Int64("owner", int64(owner))))
	defer span.End()

	if err := s.accounts.DeleteAccount(ctx, owner); err != nil {
		failSpan(span, err)
		return err
	}

	s.cache.Invalidate(owner)
	s.log.Info("account deleted", "owner", owner)
	return nil
}
