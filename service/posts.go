package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/postroom/postroom/models"
	"github.com/postroom/postroom/postcache"
	"github.com/postroom/postroom/store"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

var tracer = otel.Tracer("service")

// ErrPostNotFoundOrNotOwned covers both a missing post and a post owned by
// another account; callers can not tell the two apart.
var ErrPostNotFoundOrNotOwned = errors.New("post not found or not owned by caller")

type PostStats struct {
	OwnerID    models.Uid      `json:"user_id"`
	TotalPosts int64           `json:"total_posts"`
	CacheInfo  postcache.Stats `json:"cache_info"`
}

// PostService serves an owner's posts through the shared listing cache.
// Every method takes an owner id that was already verified by the caller.
type PostService struct {
	posts    store.PostRepository
	accounts store.AccountRepository
	cache    *postcache.Cache

	lists singleflight.Group

	log *slog.Logger
}

func failSpan(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func NewPostService(posts store.PostRepository, accounts store.AccountRepository, cache *postcache.Cache, logger *slog.Logger) *PostService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostService{
		posts:    posts,
		accounts: accounts,
		cache:    cache,
		log:      logger.With("system", "posts"),
	}
}

// ListPosts returns owner's posts, most recent first. A cache hit never
// reaches the repository.
func (s *PostService) ListPosts(ctx context.Context, owner models.Uid) ([]models.Post, error) {
	ctx, span := tracer.Start(ctx, "ListPosts", trace.WithAttributes(attribute.Int64("owner", int64(owner))))
	defer span.End()

	if posts, ok := s.cache.Get(owner); ok {
		span.SetAttributes(attribute.Bool("cached", true))
		return posts, nil
	}

	// the ticket has to predate the repository read
	tk := s.cache.Ticket(owner)
	key := fmt.Sprintf("%d/%s", owner, tk)

	leader := false
	v, err, shared := s.lists.Do(key, func() (any, error) {
		leader = true
		// one caller giving up must not fail the others waiting on this read
		posts, err := s.posts.ListByOwner(context.WithoutCancel(ctx), owner)
		if err != nil {
			return nil, err
		}
		s.cache.SetIfCurrent(owner, tk, posts)
		return posts, nil
	})
	if err != nil {
		failSpan(span, err)
		return nil, fmt.Errorf("listing posts for %d: %w", owner, err)
	}

	posts := v.([]models.Post)
	if shared {
		// the leader sees shared too; only count callers that joined
		if !leader {
			listsCoalesced.Inc()
		}
		posts = slices.Clone(posts)
	}
	return posts, nil
}

// CreatePost stores a new post and drops the owner's cached listing so the
// next read goes to the repository.
func (s *PostService) CreatePost(ctx context.Context, owner models.Uid, text string) (*models.Post, error) {
	ctx, span := tracer.Start(ctx, "CreatePost", trace.WithAttributes(
		attribute.Int64("owner", int64(owner)),
		attribute.Int("size", len(text)),
	))
	defer span.End()

	exists, err := s.accounts.AccountExists(ctx, owner)
	if err != nil {
		failSpan(span, err)
		return nil, fmt.Errorf("checking owner %d: %w", owner, err)
	}
	if !exists {
		return nil, store.ErrOwnerNotFound
	}

	post, err := s.posts.Insert(ctx, owner, text)
	if err != nil {
		failSpan(span, err)
		return nil, fmt.Errorf("inserting post: %w", err)
	}

	s.cache.Invalidate(owner)
	postsCreated.Inc()
	s.log.Debug("created post", "owner", owner, "post", post.ID)
	return post, nil
}

func (s *PostService) DeletePost(ctx context.Context, postID uint64, owner models.Uid) error {
	ctx, span := tracer.Start(ctx, "DeletePost", trace.WithAttributes(
		attribute.Int64("owner", int64(owner)),
		attribute.Int64("post", int64(postID)),
	))
	defer span.End()

	removed, err := s.posts.DeleteByIDAndOwner(ctx, postID, owner)
	if err != nil {
		failSpan(span, err)
		return fmt.Errorf("deleting post %d: %w", postID, err)
	}
	if !removed {
		return ErrPostNotFoundOrNotOwned
	}

	s.cache.Invalidate(owner)
	postsDeleted.Inc()
	s.log.Debug("deleted post", "owner", owner, "post", postID)
	return nil
}

// Stats counts straight from the repository and leaves the owner's cache
// entry alone.
func (s *PostService) Stats(ctx context.Context, owner models.Uid) (*PostStats, error) {
	ctx, span := tracer.Start(ctx, "PostStats", trace.WithAttributes(attribute.Int64("owner", int64(owner))))
	defer span.End()

	total, err := s.posts.CountByOwner(ctx, owner)
	if err != nil {
		failSpan(span, err)
		return nil, fmt.Errorf("counting posts for %d: %w", owner, err)
	}

	return &PostStats{
		OwnerID:    owner,
		TotalPosts: total,
		CacheInfo:  s.cache.Stats(),
	}, nil
}

// PurgeCache drops every cached listing.
func (s *PostService) PurgeCache() {
	s.cache.Purge()
}
