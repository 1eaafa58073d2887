package profile

import (
	"sync"

	"github.com/ysrcpconnect/connect/internal/model"
)

// Container holds the viewed profile, its post sequence and the follow
// relationship as the client currently believes it to be.
type Container struct {
	mu                 sync.Mutex
	profile            *model.User
	posts              []model.Post
	currentPostPage    int
	hasMorePosts       bool
	isFollowing        bool
	followersCount     int
	followingCount     int
	postsCount         int
	officialTabEnabled bool
	loading            bool
	lastErr            string
}

type State struct {
	Profile            *model.User
	Posts              []model.Post
	CurrentPostPage    int
	HasMorePosts       bool
	IsFollowing        bool
	FollowersCount     int
	FollowingCount     int
	PostsCount         int
	OfficialTabEnabled bool
	Loading            bool
	Err                string
}

func NewContainer() *Container {
	return &Container{currentPostPage: 1, hasMorePosts: true}
}

func (c *Container) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	var profile *model.User
	if c.profile != nil {
		copied := *c.profile
		profile = &copied
	}
	posts := make([]model.Post, len(c.posts))
	copy(posts, c.posts)

	return State{
		Profile:            profile,
		Posts:              posts,
		CurrentPostPage:    c.currentPostPage,
		HasMorePosts:       c.hasMorePosts,
		IsFollowing:        c.isFollowing,
		FollowersCount:     c.followersCount,
		FollowingCount:     c.followingCount,
		PostsCount:         c.postsCount,
		OfficialTabEnabled: c.officialTabEnabled,
		Loading:            c.loading,
		Err:                c.lastErr,
	}
}

func (c *Container) begin() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = true
	c.lastErr = ""
}

func (c *Container) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = false
	c.lastErr = err.Error()
}

// setProfile commits a fetched profile; the server-reported counts and
// follow flag are authoritative.
func (c *Container) setProfile(user model.User, isFollowing bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	copied := user
	c.profile = &copied
	c.isFollowing = isFollowing
	c.followersCount = user.FollowerCount
	c.followingCount = user.FollowingCount
	c.postsCount = user.PostCount
	c.officialTabEnabled = user.OfficialTabEnabled
	c.loading = false
	c.lastErr = ""
}

// mergeProfile overlays updated fields onto the current profile.
func (c *Container) mergeProfile(user model.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	copied := user
	c.profile = &copied
	c.loading = false
	c.lastErr = ""
}

// followState returns the current follow flag and follower count together,
// as the snapshot for an optimistic toggle.
func (c *Container) followState() (bool, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isFollowing, c.followersCount
}

// setFollowState applies an optimistic toggle or a revert: the follower
// count moves with the flag and never goes negative.
func (c *Container) setFollowState(following bool, followersCount int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if followersCount < 0 {
		followersCount = 0
	}
	c.isFollowing = following
	c.followersCount = followersCount
	if c.profile != nil {
		c.profile.IsFollowing = following
		c.profile.FollowerCount = followersCount
	}
}

func (c *Container) applyPostPage(page int, posts []model.Post, limit int) {
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

	c.currentPostPage = page
	c.hasMorePosts = len(posts) == limit
	c.loading = false
	c.lastErr = ""
}

func (c *Container) setOfficialTab(title, constituency string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.officialTabEnabled = true
	if c.profile != nil {
		c.profile.OfficialTabEnabled = true
		c.profile.OfficialTitle = title
		c.profile.Constituency = constituency
	}
	c.loading = false
	c.lastErr = ""
}

func (c *Container) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.profile = nil
	c.posts = nil
	c.currentPostPage = 1
	c.hasMorePosts = true
	c.isFollowing = false
	c.followersCount = 0
	c.followingCount = 0
	c.postsCount = 0
	c.officialTabEnabled = false
	c.loading = false
	c.lastErr = ""
}
