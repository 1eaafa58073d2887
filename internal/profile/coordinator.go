package profile

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

var ErrInFlight = errors.New("request already in flight")

// Coordinator orchestrates profile reads, edits, follow toggles and the
// viewed user's post pagination.
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

// Get loads a profile. The cached snapshot only counts as a hit when it
// belongs to the requested user; a hit skips the remote call entirely.
func (c *Coordinator) Get(ctx context.Context, userID string, refresh bool) (*model.User, error) {
	if userID == "" {
		return nil, fmt.Errorf("empty user id")
	}

	if !refresh {
		var cached model.User
		if c.store.GetCache(cache.KindProfile, cache.KindProfile.MaxAge(), &cached) && cached.ID == userID {
			debuglog.Debugf("profile: %s served from cache", userID)
			return &cached, nil
		}
	}

	key := "get:" + userID
	if !c.acquire(key) {
		return nil, ErrInFlight
	}
	defer c.release(key)

	c.container.begin()

	resp, err := c.client.GetUser(ctx, userID)
	if err != nil {
		c.container.fail(err)
		return nil, fmt.Errorf("fetching profile: %w", err)
	}

	c.container.setProfile(resp.User, resp.IsFollowing)
	c.store.SetCache(cache.KindProfile, resp.User)

	user := resp.User
	return &user, nil
}

// Update edits the signed-in user's profile and rewrites the cached copy.
func (c *Coordinator) Update(ctx context.Context, update model.ProfileUpdate) (*model.User, error) {
	c.container.begin()

	resp, err := c.client.UpdateProfile(ctx, update)
	if err != nil {
		c.container.fail(err)
		return nil, fmt.Errorf("updating profile: %w", err)
	}

	c.container.mergeProfile(resp.User)
	c.store.SetCache(cache.KindProfile, resp.User)

	user := resp.User
	return &user, nil
}

// ToggleFollow follows or unfollows based on the current state, never both.
// The follower count moves by exactly one optimistically, is reconciled
// with the server-reported count on success, and the whole pre-toggle state
// is restored on failure.
func (c *Coordinator) ToggleFollow(ctx context.Context, userID string) error {
	wasFollowing, prevCount := c.container.followState()

	if wasFollowing {
		c.container.setFollowState(false, prevCount-1)
	} else {
		c.container.setFollowState(true, prevCount+1)
	}

	var (
		resp *api.FollowResponse
		err  error
	)
	if wasFollowing {
		resp, err = c.client.UnfollowUser(ctx, userID)
	} else {
		resp, err = c.client.FollowUser(ctx, userID)
	}

	if err != nil {
		c.container.setFollowState(wasFollowing, prevCount)
		if wasFollowing {
			return fmt.Errorf("unfollowing user: %w", err)
		}
		return fmt.Errorf("following user: %w", err)
	}

	c.container.setFollowState(!wasFollowing, resp.FollowersCount)
	return nil
}

// Posts fetches one page of the viewed user's posts.
func (c *Coordinator) Posts(ctx context.Context, userID string, page, limit int) ([]model.Post, error) {
	if page < 1 {
		return nil, fmt.Errorf("invalid page %d", page)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("invalid limit %d", limit)
	}

	key := fmt.Sprintf("posts:%s:%d", userID, page)
	if !c.acquire(key) {
		return nil, ErrInFlight
	}
	defer c.release(key)

	c.container.begin()

	resp, err := c.client.GetUserPosts(ctx, userID, page, limit)
	if err != nil {
		c.container.fail(err)
		return nil, fmt.Errorf("fetching user posts: %w", err)
	}

	c.container.applyPostPage(page, resp.Posts, limit)
	return resp.Posts, nil
}

// MorePosts fetches the next page of the viewed user's posts when available.
func (c *Coordinator) MorePosts(ctx context.Context, userID string) error {
	state := c.container.State()
	if !state.HasMorePosts || state.Loading {
		return nil
	}
	_, err := c.Posts(ctx, userID, state.CurrentPostPage+1, c.cfg.Feed.PageSize)
	if errors.Is(err, ErrInFlight) {
		return nil
	}
	return err
}

// EnableOfficialTab switches the profile into official mode.
func (c *Coordinator) EnableOfficialTab(ctx context.Context) error {
	c.container.begin()

	resp, err := c.client.EnableOfficialTab(ctx)
	if err != nil {
		c.container.fail(err)
		return fmt.Errorf("enabling official tab: %w", err)
	}

	c.container.setOfficialTab(resp.OfficialTitle, resp.Constituency)
	return nil
}

// Search queries users by name; results go straight to the caller.
func (c *Coordinator) Search(ctx context.Context, query string, limit int) ([]model.UserSummary, error) {
	resp, err := c.client.SearchUsers(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("searching users: %w", err)
	}
	return resp.Users, nil
}

// Clear drops the viewed profile and its cache entry.
func (c *Coordinator) Clear() {
	c.container.Clear()
	c.store.Invalidate(cache.KindProfile)
}
