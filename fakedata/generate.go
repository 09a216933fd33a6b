package fakedata

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/postroom/postroom/client"

	"github.com/brianvoe/gofakeit/v6"
)

func MeasureIterations(name string) func(int) {
	start := time.Now()
	return func(count int) {
		if count == 0 {
			return
		}
		total := time.Since(start)
		log().Info("wall runtime", "name", name, "count", count, "total", total, "rate", fmt.Sprintf("%.2f/s", float64(count)/total.Seconds()))
	}
}

// GenPassword returns a random password that satisfies the signup rules.
func GenPassword() string {
	return gofakeit.Password(true, true, true, false, false, 16) + "Q7"
}

// GenAccount signs up a fresh random account through c, which keeps the
// returned token.
func GenAccount(ctx context.Context, c *client.Client, index int) (*AccountContext, error) {
	prefix := gofakeit.Username()
	if len(prefix) > 10 {
		prefix = prefix[0:10]
	}
	email := fmt.Sprintf("%s%d@%s", prefix, index, gofakeit.DomainName())
	password := GenPassword()

	if err := c.Signup(ctx, email, password); err != nil {
		return nil, err
	}
	st, err := c.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return &AccountContext{
		Index:    index,
		OwnerID:  st.OwnerID,
		Email:    email,
		Password: password,
		Token:    c.Token,
	}, nil
}

// GenPosts creates between one and maxPosts posts as the client's account.
func GenPosts(ctx context.Context, c *client.Client, maxPosts int) (int, error) {
	if maxPosts <= 0 {
		return 0, nil
	}
	count := rand.Intn(maxPosts) + 1
	for i := 0; i < count; i++ {
		text := gofakeit.Sentence(10)
		if len(text) > 200 {
			text = text[0:200]
		}
		if _, err := c.CreatePost(ctx, text); err != nil {
			return i, err
		}
	}
	return count, nil
}
