package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ysrcpconnect/connect/internal/api"
	"github.com/ysrcpconnect/connect/internal/cache"
	"github.com/ysrcpconnect/connect/internal/config"
	"github.com/ysrcpconnect/connect/internal/debuglog"
	"github.com/ysrcpconnect/connect/internal/model"
)

// ErrInFlight is returned when an identical fetch is already running. The
// caller should wait for the first one to settle instead of stacking
// duplicate requests for the same page.
var ErrInFlight = errors.New("request already in flight")

// Coordinator sequences cache, container and remote calls for the feed. It
// is the only writer that crosses the cache/container ownership boundary.
type Coordinator struct {
	client    *api.Client
	store     *cache.Store
	container *Container
	cfg       *config.Config

	mu       sync.Mutex
	inflight map[string]struct{}
}

func NewCoordinator(client *api.Client, store *cache.Store, cfg *config.Config) *Coordinator {
	return &Coordinator{
		client:    client,
		store:     store,
		container: NewContainer(),
		cfg:       cfg,
		inflight:  make(map[string]struct{}),
	}
}

// Container exposes the feed state container for reads and optimistic
// item setters.
func (c *Coordinator) Container() *Container {
	return c.container
}

func (c *Coordinator) acquire(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inflight[key]; busy {
		return false
	}
	c.inflight[key] = struct{}{}
	return true
}

func (c *Coordinator) release(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, key)
}

// Fetch loads one feed page. Page 1 without refresh is served from the
// cache when fresh, issuing no remote call and leaving the container's
// fetch time untouched. A remote page 1 result also rewrites the cache
// entry with a new timestamp.
func (c *Coordinator) Fetch(ctx context.Context, page, limit int, refresh bool) ([]model.Post, error) {
	if page < 1 {
		return nil, fmt.Errorf("invalid page %d", page)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("invalid limit %d", limit)
	}

	if !refresh && page == 1 {
		var cached []model.Post
		if c.store.GetCache(cache.KindFeed, cache.KindFeed.MaxAge(), &cached) {
			debuglog.Debugf("feed: page 1 served from cache (%d posts)", len(cached))
			return cached, nil
		}
	}

	key := fmt.Sprintf("fetch:%d", page)
	if !c.acquire(key) {
		return nil, ErrInFlight
	}
	defer c.release(key)

	c.container.begin(refresh)

	resp, err := c.client.GetFeed(ctx, page, limit)
	if err != nil {
		c.container.fail(err)
		return nil, fmt.Errorf("fetching feed: %w", err)
	}

	c.container.applyPage(page, resp.Posts, limit)

	if page == 1 {
		c.store.SetCache(cache.KindFeed, resp.Posts)
	}

	return resp.Posts, nil
}

// Refresh re-fetches page 1 from the remote API, bypassing the cache.
func (c *Coordinator) Refresh(ctx context.Context) ([]model.Post, error) {
	return c.Fetch(ctx, 1, c.cfg.Feed.PageSize, true)
}

// LoadMore fetches the next page. It is a no-op when the feed is exhausted
// or a load is already running.
func (c *Coordinator) LoadMore(ctx context.Context) error {
	state := c.container.State()
	if !state.HasMore || state.Loading {
		return nil
	}
	_, err := c.Fetch(ctx, state.CurrentPage+1, c.cfg.Feed.PageSize, false)
	if errors.Is(err, ErrInFlight) {
		return nil
	}
	return err
}

// Like applies an optimistic like, confirms it with the server and merges
// the authoritative count. On failure the pre-mutation snapshot is restored
// verbatim. An id absent from the container still issues the remote call;
// the server is authoritative.
func (c *Coordinator) Like(ctx context.Context, postID string) error {
	prev, present := c.container.Post(postID)
	if present {
		c.container.UpdatePost(postID, func(p *model.Post) {
			if !p.IsLiked {
				p.IsLiked = true
				p.LikeCount++
			}
		})
	}

	resp, err := c.client.LikePost(ctx, postID)
	if err != nil {
		if present {
			c.container.SetPost(prev)
		}
		return fmt.Errorf("liking post: %w", err)
	}

	c.container.UpdatePost(postID, func(p *model.Post) {
		p.IsLiked = resp.Liked
		p.LikeCount = resp.LikeCount
	})
	return nil
}

func (c *Coordinator) Unlike(ctx context.Context, postID string) error {
	prev, present := c.container.Post(postID)
	if present {
		c.container.UpdatePost(postID, func(p *model.Post) {
			if p.IsLiked {
				p.IsLiked = false
				if p.LikeCount > 0 {
					p.LikeCount--
				}
			}
		})
	}

	resp, err := c.client.UnlikePost(ctx, postID)
	if err != nil {
		if present {
			c.container.SetPost(prev)
		}
		return fmt.Errorf("unliking post: %w", err)
	}

	c.container.UpdatePost(postID, func(p *model.Post) {
		p.IsLiked = resp.Liked
		p.LikeCount = resp.LikeCount
	})
	return nil
}

func (c *Coordinator) Share(ctx context.Context, postID string) error {
	prev, present := c.container.Post(postID)
	if present {
		c.container.UpdatePost(postID, func(p *model.Post) {
			p.ShareCount++
		})
	}

	resp, err := c.client.SharePost(ctx, postID)
	if err != nil {
		if present {
			c.container.SetPost(prev)
		}
		return fmt.Errorf("sharing post: %w", err)
	}

	c.container.UpdatePost(postID, func(p *model.Post) {
		p.ShareCount = resp.ShareCount
	})
	return nil
}

// Report forwards a report to the server; nothing changes locally.
func (c *Coordinator) Report(ctx context.Context, postID, reason, description string) error {
	if err := c.client.ReportPost(ctx, postID, reason, description); err != nil {
		return fmt.Errorf("reporting post: %w", err)
	}
	return nil
}

// Create publishes a draft, prepends the server's post and invalidates the
// cached page-1 snapshot, which is now stale.
func (c *Coordinator) Create(ctx context.Context, draft model.PostDraft) (model.Post, error) {
	resp, err := c.client.CreatePost(ctx, draft)
	if err != nil {
		return model.Post{}, fmt.Errorf("creating post: %w", err)
	}

	c.container.Prepend(resp.Post)
	c.store.Invalidate(cache.KindFeed)
	return resp.Post, nil
}

// Delete removes a post remotely, drops it from the container and
// invalidates the feed cache so the next page-1 fetch hits the remote API.
func (c *Coordinator) Delete(ctx context.Context, postID string) error {
	if err := c.client.DeletePost(ctx, postID); err != nil {
		return fmt.Errorf("deleting post: %w", err)
	}

	c.container.RemovePost(postID)
	c.store.Invalidate(cache.KindFeed)
	return nil
}

// Broadcasts fetches the broadcast-only stream; it does not touch the feed
// container or cache.
func (c *Coordinator) Broadcasts(ctx context.Context, page, limit int) ([]model.Post, error) {
	resp, err := c.client.GetBroadcasts(ctx, page, limit)
	if err != nil {
		return nil, fmt.Errorf("fetching broadcasts: %w", err)
	}
	return resp.Posts, nil
}

// Stale reports whether the feed should be proactively refreshed on focus.
// The decision is left to the caller.
func (c *Coordinator) Stale() bool {
	return c.container.Stale(c.cfg.Feed.StaleAfter)
}

// Clear drops the in-memory feed and its cache entry, e.g. on logout.
func (c *Coordinator) Clear() {
	c.container.Clear()
	c.store.Invalidate(cache.KindFeed)
}
