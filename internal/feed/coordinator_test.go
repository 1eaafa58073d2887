package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ysrcpconnect/connect/internal/api"
	"github.com/ysrcpconnect/connect/internal/cache"
	"github.com/ysrcpconnect/connect/internal/config"
	"github.com/ysrcpconnect/connect/internal/model"
)

func newTestCoordinator(t *testing.T, handler http.Handler) (*Coordinator, *cache.Store) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	store, err := cache.NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := config.TestConfig()
	client := api.NewClient(srv.URL, 5*time.Second, "connect-test/1.0", nil)
	return NewCoordinator(client, store, cfg), store
}

func writeFeed(w http.ResponseWriter, posts []model.Post) {
	json.NewEncoder(w).Encode(map[string]any{"posts": posts})
}

func TestCoordinator_FetchPopulatesContainerAndCachesPage1(t *testing.T) {
	var calls atomic.Int64
	coord, _ := newTestCoordinator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeFeed(w, makePosts("a", "b"))
	}))

	posts, err := coord.Fetch(context.Background(), 1, 2, false)
	require.NoError(t, err)
	assert.Len(t, posts, 2)
	assert.Equal(t, int64(1), calls.Load())

	state := coord.Container().State()
	assert.Equal(t, []string{"a", "b"}, postIDs(state.Posts))
	assert.True(t, state.HasMore, "full page implies more")

	// fresh cache entry, no second remote call
	posts, err = coord.Fetch(context.Background(), 1, 2, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, postIDs(posts))
	assert.Equal(t, int64(1), calls.Load())
}

func TestCoordinator_RefreshBypassesCache(t *testing.T) {
	var calls atomic.Int64
	coord, _ := newTestCoordinator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeFeed(w, makePosts("a"))
	}))

	_, err := coord.Fetch(context.Background(), 1, 20, false)
	require.NoError(t, err)

	_, err = coord.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), calls.Load())
}

func TestCoordinator_LoadMoreAppendsWithoutDuplicates(t *testing.T) {
	pages := map[string][]model.Post{
		"1": makePosts("a", "b"),
		"2": makePosts("b", "c"),
		"3": nil,
	}
	coord, _ := newTestCoordinator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeFeed(w, pages[r.URL.Query().Get("page")])
	}))

	coord.cfg.Feed.PageSize = 2
	_, err := coord.Fetch(context.Background(), 1, 2, true)
	require.NoError(t, err)

	require.NoError(t, coord.LoadMore(context.Background()))
	state := coord.Container().State()
	assert.Equal(t, []string{"a", "b", "c"}, postIDs(state.Posts))
	assert.Equal(t, 2, state.CurrentPage)
	assert.True(t, state.HasMore)

	require.NoError(t, coord.LoadMore(context.Background()))
	state = coord.Container().State()
	assert.Equal(t, []string{"a", "b", "c"}, postIDs(state.Posts))
	assert.False(t, state.HasMore)

	// exhausted feed, LoadMore is a no-op
	require.NoError(t, coord.LoadMore(context.Background()))
	assert.Equal(t, 3, coord.Container().State().CurrentPage)
}

func TestCoordinator_FetchRejectsBadArguments(t *testing.T) {
	coord, _ := newTestCoordinator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}))

	_, err := coord.Fetch(context.Background(), 0, 20, false)
	assert.Error(t, err)
	_, err = coord.Fetch(context.Background(), 1, 0, false)
	assert.Error(t, err)
}

func TestCoordinator_FetchErrorRecordsFailure(t *testing.T) {
	coord, _ := newTestCoordinator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"message": "feed unavailable"})
	}))

	_, err := coord.Fetch(context.Background(), 1, 20, true)
	require.Error(t, err)

	state := coord.Container().State()
	assert.Contains(t, state.Err, "feed unavailable")
	assert.False(t, state.Loading)
	assert.False(t, state.Refreshing)
}

func TestCoordinator_DuplicateFetchReturnsErrInFlight(t *testing.T) {
	entered := make(chan struct{})
	proceed := make(chan struct{})
	coord, _ := newTestCoordinator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-proceed
		writeFeed(w, makePosts("a"))
	}))

	done := make(chan error, 1)
	go func() {
		_, err := coord.Fetch(context.Background(), 1, 20, true)
		done <- err
	}()

	<-entered
	_, err := coord.Fetch(context.Background(), 1, 20, true)
	assert.ErrorIs(t, err, ErrInFlight)

	close(proceed)
	require.NoError(t, <-done)
}

func TestCoordinator_LikeMergesServerCount(t *testing.T) {
	coord, _ := newTestCoordinator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/posts/p1/like":
			json.NewEncoder(w).Encode(map[string]any{"liked": true, "likeCount": 6})
		default:
			writeFeed(w, []model.Post{{ID: "p1", LikeCount: 5}})
		}
	}))

	_, err := coord.Fetch(context.Background(), 1, 20, true)
	require.NoError(t, err)

	require.NoError(t, coord.Like(context.Background(), "p1"))

	post, ok := coord.Container().Post("p1")
	require.True(t, ok)
	assert.True(t, post.IsLiked)
	assert.Equal(t, 6, post.LikeCount, "server count wins, no double increment")
}

func TestCoordinator_LikeFailureRestoresSnapshot(t *testing.T) {
	coord, _ := newTestCoordinator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/posts/p1/like":
			w.WriteHeader(http.StatusBadGateway)
		default:
			writeFeed(w, []model.Post{{ID: "p1", LikeCount: 5}})
		}
	}))

	_, err := coord.Fetch(context.Background(), 1, 20, true)
	require.NoError(t, err)

	require.Error(t, coord.Like(context.Background(), "p1"))

	post, ok := coord.Container().Post("p1")
	require.True(t, ok)
	assert.False(t, post.IsLiked)
	assert.Equal(t, 5, post.LikeCount)
}

func TestCoordinator_UnlikeFailureRestoresSnapshot(t *testing.T) {
	coord, _ := newTestCoordinator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodDelete && r.URL.Path == "/posts/p1/like":
			w.WriteHeader(http.StatusBadGateway)
		default:
			writeFeed(w, []model.Post{{ID: "p1", IsLiked: true, LikeCount: 5}})
		}
	}))

	_, err := coord.Fetch(context.Background(), 1, 20, true)
	require.NoError(t, err)

	require.Error(t, coord.Unlike(context.Background(), "p1"))

	post, ok := coord.Container().Post("p1")
	require.True(t, ok)
	assert.True(t, post.IsLiked)
	assert.Equal(t, 5, post.LikeCount)
}

func TestCoordinator_ShareMergesServerCount(t *testing.T) {
	coord, _ := newTestCoordinator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/posts/p1/share":
			json.NewEncoder(w).Encode(map[string]any{"shareCount": 9})
		default:
			writeFeed(w, []model.Post{{ID: "p1", ShareCount: 2}})
		}
	}))

	_, err := coord.Fetch(context.Background(), 1, 20, true)
	require.NoError(t, err)

	require.NoError(t, coord.Share(context.Background(), "p1"))

	post, _ := coord.Container().Post("p1")
	assert.Equal(t, 9, post.ShareCount)
}

func TestCoordinator_LikeAbsentPostStillCallsRemote(t *testing.T) {
	var liked atomic.Bool
	coord, _ := newTestCoordinator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		liked.Store(true)
		json.NewEncoder(w).Encode(map[string]any{"liked": true, "likeCount": 1})
	}))

	require.NoError(t, coord.Like(context.Background(), "ghost"))
	assert.True(t, liked.Load())
	assert.Empty(t, coord.Container().State().Posts)
}

func TestCoordinator_DeleteInvalidatesCache(t *testing.T) {
	var calls atomic.Int64
	coord, _ := newTestCoordinator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		calls.Add(1)
		writeFeed(w, makePosts("a", "b"))
	}))

	_, err := coord.Fetch(context.Background(), 1, 20, false)
	require.NoError(t, err)
	require.NoError(t, coord.Delete(context.Background(), "a"))

	assert.Equal(t, []string{"b"}, postIDs(coord.Container().State().Posts))

	// cache was dropped, so this page-1 fetch must go remote again
	_, err = coord.Fetch(context.Background(), 1, 20, false)
	require.NoError(t, err)
	assert.Equal(t, int64(2), calls.Load())
}

func TestCoordinator_CreatePrependsAndInvalidates(t *testing.T) {
	var calls atomic.Int64
	coord, _ := newTestCoordinator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/posts" {
			json.NewEncoder(w).Encode(map[string]any{"post": model.Post{ID: "new", Content: "hello"}})
			return
		}
		calls.Add(1)
		writeFeed(w, makePosts("a"))
	}))

	_, err := coord.Fetch(context.Background(), 1, 20, false)
	require.NoError(t, err)

	post, err := coord.Create(context.Background(), model.PostDraft{Content: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "new", post.ID)
	assert.Equal(t, []string{"new", "a"}, postIDs(coord.Container().State().Posts))

	_, err = coord.Fetch(context.Background(), 1, 20, false)
	require.NoError(t, err)
	assert.Equal(t, int64(2), calls.Load())
}

func TestCoordinator_BroadcastsLeaveContainerAlone(t *testing.T) {
	coord, _ := newTestCoordinator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/feed/broadcasts", r.URL.Path)
		writeFeed(w, makePosts("b1"))
	}))

	posts, err := coord.Broadcasts(context.Background(), 1, 20)
	require.NoError(t, err)
	assert.Len(t, posts, 1)
	assert.Empty(t, coord.Container().State().Posts)
}

func TestCoordinator_ClearDropsStateAndCache(t *testing.T) {
	var calls atomic.Int64
	coord, _ := newTestCoordinator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeFeed(w, makePosts("a"))
	}))

	_, err := coord.Fetch(context.Background(), 1, 20, false)
	require.NoError(t, err)

	coord.Clear()
	assert.Empty(t, coord.Container().State().Posts)
	assert.True(t, coord.Stale())

	_, err = coord.Fetch(context.Background(), 1, 20, false)
	require.NoError(t, err)
	assert.Equal(t, int64(2), calls.Load())
}
