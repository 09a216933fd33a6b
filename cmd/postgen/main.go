// Tool to generate fake accounts and posts against a running postroom
// daemon, and to walk through the API end to end. Intended for development
// and benchmarking.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/postroom/postroom/client"
	"github.com/postroom/postroom/fakedata"
	"github.com/postroom/postroom/util/cliutil"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
	_ "go.uber.org/automaxprocs"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "postgen",
		Usage:   "postroom fake account/post generator",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "host",
			Usage:   "method, hostname, and port of postroom daemon",
			Value:   "http://localhost:8000",
			EnvVars: []string{"POSTROOM_HOST"},
		},
		&cli.IntFlag{
			Name:    "jobs",
			Aliases: []string{"j"},
			Usage:   "number of parallel threads to use",
			Value:   runtime.NumCPU(),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "log verbosity level (eg: warn, info, debug)",
			EnvVars: []string{"POSTGEN_LOG_LEVEL", "LOG_LEVEL"},
		},
	}
	app.Before = func(cctx *cli.Context) error {
		_, err := cliutil.SetupSlog(cliutil.LogOptions{LogLevel: cctx.String("log-level"), LogFormat: "text"})
		return err
	}
	app.Commands = []*cli.Command{
		&cli.Command{
			Name:   "gen-accounts",
			Usage:  "sign up accounts, printing a JSON line catalog to stdout",
			Action: genAccounts,
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:    "count",
					Aliases: []string{"n"},
					Usage:   "total number of accounts to create",
					Value:   100,
				},
			},
		},
		&cli.Command{
			Name:   "gen-posts",
			Usage:  "creates posts for accounts in a catalog",
			Action: genPosts,
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "catalog",
					Usage: "file path of account catalog JSON file",
					Value: "data/postgen/accounts.json",
				},
				&cli.IntFlag{
					Name:  "max-posts",
					Usage: "create up to this many posts for each account",
					Value: 10,
				},
			},
		},
		&cli.Command{
			Name:   "run-browsing",
			Usage:  "creates read load on listings, which should mostly be cache hits",
			Action: runBrowsing,
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "catalog",
					Usage: "file path of account catalog JSON file",
					Value: "data/postgen/accounts.json",
				},
				&cli.IntFlag{
					Name:  "reads",
					Usage: "listing requests per account",
					Value: 20,
				},
			},
		},
		&cli.Command{
			Name:   "demo",
			Usage:  "walk through signup, posting, listing, stats and deletion",
			Action: runDemo,
		},
	}
	all := fakedata.MeasureIterations("entire command")
	err := app.Run(args)
	all(1)
	return err
}

// signs up fake accounts and spits out JSON-lines to stdout with auth info
func genAccounts(cctx *cli.Context) error {
	ctx := cctx.Context
	host := cctx.String("host")
	count := cctx.Int("count")

	t1 := fakedata.MeasureIterations("register accounts")
	for i := 0; i < count; i++ {
		usr, err := fakedata.GenAccount(ctx, client.New(host), i)
		if err != nil {
			return err
		}
		// compact single-line JSON by default
		line, err := json.Marshal(usr)
		if err != nil {
			return err
		}
		fmt.Println(string(line))
	}
	t1(count)
	return nil
}

// forEachAccount runs fn for every catalog account on a pool of "jobs"
// workers, each with a client logged in as that account.
func forEachAccount(cctx *cli.Context, fn func(ctx context.Context, c *client.Client) error) error {
	catalog, err := fakedata.ReadAccountCatalog(cctx.String("catalog"))
	if err != nil {
		return err
	}

	host := cctx.String("host")
	jobs := cctx.Int("jobs")

	accChan := make(chan fakedata.AccountContext, len(catalog.Accounts))
	eg, ctx := errgroup.WithContext(cctx.Context)
	for i := 0; i < jobs; i++ {
		eg.Go(func() error {
			for acc := range accChan {
				c, err := fakedata.AccountClient(ctx, host, &acc)
				if err != nil {
					return err
				}
				if err := fn(ctx, c); err != nil {
					return err
				}
			}
			return nil
		})
	}

	for _, acc := range catalog.Accounts {
		accChan <- acc
	}
	close(accChan)
	return eg.Wait()
}

func genPosts(cctx *cli.Context) error {
	maxPosts := cctx.Int("max-posts")

	var total atomic.Int64
	t1 := fakedata.MeasureIterations("create posts")
	err := forEachAccount(cctx, func(ctx context.Context, c *client.Client) error {
		n, err := fakedata.GenPosts(ctx, c, maxPosts)
		total.Add(int64(n))
		return err
	})
	t1(int(total.Load()))
	return err
}

func runBrowsing(cctx *cli.Context) error {
	reads := cctx.Int("reads")

	var total atomic.Int64
	t1 := fakedata.MeasureIterations("list posts")
	err := forEachAccount(cctx, func(ctx context.Context, c *client.Client) error {
		for i := 0; i < reads; i++ {
			if _, err := c.ListPosts(ctx); err != nil {
				return err
			}
			total.Add(1)
		}
		return nil
	})
	t1(int(total.Load()))
	return err
}

func runDemo(cctx *cli.Context) error {
	ctx := cctx.Context
	c := client.New(cctx.String("host"))

	if err := c.Health(ctx); err != nil {
		return fmt.Errorf("daemon not healthy: %w", err)
	}

	email := fmt.Sprintf("demo-%d@example.com", time.Now().UnixNano())
	password := fakedata.GenPassword()
	if err := c.Signup(ctx, email, password); err != nil {
		return err
	}
	fmt.Printf("signed up %s\n", email)

	for _, text := range []string{"first post", "second post"} {
		p, err := c.CreatePost(ctx, text)
		if err != nil {
			return err
		}
		fmt.Printf("created post %d: %q\n", p.ID, p.Text)
	}

	// first listing is a miss, the second should be served from the cache
	for i := 0; i < 2; i++ {
		start := time.Now()
		posts, err := c.ListPosts(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("listed %d posts in %s\n", len(posts), time.Since(start))
	}

	st, err := c.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("stats: user_id=%d total_posts=%d cache size=%d/%d hits=%d misses=%d\n",
		st.OwnerID, st.TotalPosts, st.CacheInfo.Size, st.CacheInfo.MaxSize, st.CacheInfo.Hits, st.CacheInfo.Misses)

	posts, err := c.ListPosts(ctx)
	if err != nil {
		return err
	}
	if len(posts) > 0 {
		if err := c.DeletePost(ctx, posts[0].ID); err != nil {
			return err
		}
		fmt.Printf("deleted post %d\n", posts[0].ID)
	}

	posts, err = c.ListPosts(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%d posts remain\n", len(posts))
	return nil
}
