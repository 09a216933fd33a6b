package fakedata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/postroom/postroom/client"
	"github.com/postroom/postroom/models"
)

func log() *slog.Logger {
	return slog.Default().With("system", "fakedata")
}

// AccountCatalog is the list of generated accounts, stored as JSON lines.
type AccountCatalog struct {
	Accounts []AccountContext
}

type AccountContext struct {
	// 0-based index; should match position in the catalog
	Index    int        `json:"index"`
	OwnerID  models.Uid `json:"user_id,omitempty"`
	Email    string     `json:"email"`
	Password string     `json:"password"`
	Token    string     `json:"access_token,omitempty"`
}

func ReadAccountCatalog(path string) (*AccountCatalog, error) {
	catFile, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer catFile.Close()
	return DecodeAccountCatalog(catFile)
}

func DecodeAccountCatalog(r io.Reader) (*AccountCatalog, error) {
	catalog := &AccountCatalog{}
	decoder := json.NewDecoder(r)
	for decoder.More() {
		var usr AccountContext
		if err := decoder.Decode(&usr); err != nil {
			return nil, fmt.Errorf("parse AccountContext: %w", err)
		}
		catalog.Accounts = append(catalog.Accounts, usr)
	}
	// validate index numbers
	for i, u := range catalog.Accounts {
		if i != u.Index {
			return nil, fmt.Errorf("account index didn't match: %d != %d", i, u.Index)
		}
	}
	log().Info("loaded account catalog", "accounts", len(catalog.Accounts))
	return catalog, nil
}

// AccountClient returns a client logged in as the catalog account.
func AccountClient(ctx context.Context, host string, ac *AccountContext) (*client.Client, error) {
	c := client.New(host)
	if err := c.Login(ctx, ac.Email, ac.Password); err != nil {
		return nil, fmt.Errorf("login %s: %w", ac.Email, err)
	}
	return c, nil
}
