package feed

import (
	"sync"
	"time"

	"github.com/ysrcpconnect/connect/internal/model"
)

// Container is the single source of truth for the in-memory feed: the
// ordered post sequence, pagination cursor and request flags. All mutation
// goes through the coordinator or the exported item setters; screens only
// ever see copies via State.
type Container struct {
	mu          sync.Mutex
	posts       []model.Post
	currentPage int
	hasMore     bool
	loading     bool
	refreshing  bool
	lastErr     string
	lastFetch   time.Time
}

// State is a point-in-time copy of the container.
type State struct {
	Posts       []model.Post
	CurrentPage int
	HasMore     bool
	Loading     bool
	Refreshing  bool
	Err         string
	LastFetch   time.Time
}

func NewContainer() *Container {
	return &Container{currentPage: 1, hasMore: true}
}

func (c *Container) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	posts := make([]model.Post, len(c.posts))
	copy(posts, c.posts)
	return State{
		Posts:       posts,
		CurrentPage: c.currentPage,
		HasMore:     c.hasMore,
		Loading:     c.loading,
		Refreshing:  c.refreshing,
		Err:         c.lastErr,
		LastFetch:   c.lastFetch,
	}
}

// begin flags the start of a fetch. A refresh trigger sets refreshing,
// anything else sets loading; never both for the same trigger.
func (c *Container) begin(refresh bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if refresh {
		c.refreshing = true
	} else {
		c.loading = true
	}
	c.lastErr = ""
}

func (c *Container) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = false
	c.refreshing = false
	c.lastErr = err.Error()
}

// applyPage commits a successful fetch. Page 1 replaces the sequence, later
// pages append; appended items already present by id are skipped so the
// sequence stays unique. hasMore is the page-full heuristic: a final page
// that exactly fills the limit costs one extra empty fetch.
func (c *Container) applyPage(page int, posts []model.Post, limit int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if page == 1 {
		c.posts = append([]model.Post(nil), posts...)
	} else {
		seen := make(map[string]struct{}, len(c.posts))
		for _, p := range c.posts {
			seen[p.ID] = struct{}{}
		}
		for _, p := range posts {
			if _, dup := seen[p.ID]; dup {
				continue
			}
			c.posts = append(c.posts, p)
		}
	}

	c.currentPage = page
	c.hasMore = len(posts) == limit
	c.loading = false
	c.refreshing = false
	c.lastErr = ""
	c.lastFetch = time.Now()
}

// Post returns a copy of the post with the given id.
func (c *Container) Post(id string) (model.Post, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.posts {
		if p.ID == id {
			return p, true
		}
	}
	return model.Post{}, false
}

// UpdatePost applies change to the post with the given id and reports
// whether the post was present. Absent ids are a no-op.
func (c *Container) UpdatePost(id string, change func(*model.Post)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.posts {
		if c.posts[i].ID == id {
			change(&c.posts[i])
			return true
		}
	}
	return false
}

// SetPost overwrites the stored post with the given id.
func (c *Container) SetPost(post model.Post) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.posts {
		if c.posts[i].ID == post.ID {
			c.posts[i] = post
			return true
		}
	}
	return false
}

func (c *Container) RemovePost(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.posts {
		if c.posts[i].ID == id {
			c.posts = append(c.posts[:i], c.posts[i+1:]...)
			return true
		}
	}
	return false
}

// Prepend puts a newly created post at the head of the sequence.
func (c *Container) Prepend(post model.Post) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.posts = append([]model.Post{post}, c.posts...)
}

func (c *Container) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.posts = nil
	c.currentPage = 1
	c.hasMore = true
	c.loading = false
	c.refreshing = false
	c.lastErr = ""
	c.lastFetch = time.Time{}
}

// Stale reports whether the last successful fetch is unset or older than
// window. Used to decide whether to proactively refresh on screen focus.
func (c *Container) Stale(window time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastFetch.IsZero() {
		return true
	}
	return time.Since(c.lastFetch) > window
}
