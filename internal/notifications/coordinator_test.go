package notifications

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

	client := api.NewClient(srv.URL, 5*time.Second, "connect-test/1.0", nil)
	return NewCoordinator(client, store, config.TestConfig()), store
}

func makeNotifications(unread int, ids ...string) []model.Notification {
	items := make([]model.Notification, 0, len(ids))
	for i, id := range ids {
		items = append(items, model.Notification{
			ID:     id,
			Type:   model.NotificationLike,
			IsRead: i >= unread,
		})
	}
	return items
}

func writePage(w http.ResponseWriter, items []model.Notification, unread int) {
	json.NewEncoder(w).Encode(map[string]any{
		"notifications": items,
		"unreadCount":   unread,
	})
}

func TestCoordinator_FetchTakesServerUnreadCount(t *testing.T) {
	var calls atomic.Int64
	coord, _ := newTestCoordinator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writePage(w, makeNotifications(2, "n1", "n2", "n3"), 2)
	}))

	items, err := coord.Fetch(context.Background(), 1, 20, false)
	require.NoError(t, err)
	assert.Len(t, items, 3)

	state := coord.Container().State()
	assert.Equal(t, 2, state.UnreadCount)
	assert.False(t, state.HasMore, "short page ends pagination")

	// fresh cache entry answers the second page-1 fetch
	_, err = coord.Fetch(context.Background(), 1, 20, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), calls.Load())
}

func TestCoordinator_LoadMoreAppends(t *testing.T) {
	pages := map[string][]model.Notification{
		"1": makeNotifications(1, "n1", "n2"),
		"2": makeNotifications(0, "n2", "n3"),
	}
	coord, _ := newTestCoordinator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writePage(w, pages[r.URL.Query().Get("page")], 1)
	}))
	coord.cfg.Feed.PageSize = 2

	_, err := coord.Fetch(context.Background(), 1, 2, true)
	require.NoError(t, err)

	require.NoError(t, coord.LoadMore(context.Background()))

	state := coord.Container().State()
	require.Len(t, state.Notifications, 3, "duplicate id is skipped")
	assert.Equal(t, 2, state.CurrentPage)
}

func TestCoordinator_MarkReadIsIdempotent(t *testing.T) {
	coord, _ := newTestCoordinator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			assert.Equal(t, "/notifications/n1/read", r.URL.Path)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writePage(w, makeNotifications(2, "n1", "n2"), 2)
	}))

	_, err := coord.Fetch(context.Background(), 1, 20, true)
	require.NoError(t, err)

	require.NoError(t, coord.MarkRead(context.Background(), "n1"))
	assert.Equal(t, 1, coord.Container().State().UnreadCount)

	// a second read of the same notification changes nothing
	require.NoError(t, coord.MarkRead(context.Background(), "n1"))
	state := coord.Container().State()
	assert.Equal(t, 1, state.UnreadCount)
	assert.True(t, state.Notifications[0].IsRead)
}

func TestCoordinator_MarkAllReadIsIdempotent(t *testing.T) {
	coord, _ := newTestCoordinator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			assert.Equal(t, "/notifications/read-all", r.URL.Path)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writePage(w, makeNotifications(2, "n1", "n2"), 2)
	}))

	_, err := coord.Fetch(context.Background(), 1, 20, true)
	require.NoError(t, err)

	require.NoError(t, coord.MarkAllRead(context.Background()))
	state := coord.Container().State()
	assert.Equal(t, 0, state.UnreadCount)
	for _, n := range state.Notifications {
		assert.True(t, n.IsRead)
	}

	require.NoError(t, coord.MarkAllRead(context.Background()))
	assert.Equal(t, 0, coord.Container().State().UnreadCount)
}

func TestCoordinator_MarkReadFailureLeavesStateAlone(t *testing.T) {
	coord, _ := newTestCoordinator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writePage(w, makeNotifications(1, "n1"), 1)
	}))

	_, err := coord.Fetch(context.Background(), 1, 20, true)
	require.NoError(t, err)

	require.Error(t, coord.MarkRead(context.Background(), "n1"))

	state := coord.Container().State()
	assert.Equal(t, 1, state.UnreadCount)
	assert.False(t, state.Notifications[0].IsRead)
}

func TestCoordinator_DeleteUnreadDecrementsCount(t *testing.T) {
	coord, _ := newTestCoordinator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writePage(w, makeNotifications(1, "n1", "n2"), 1)
	}))

	_, err := coord.Fetch(context.Background(), 1, 20, true)
	require.NoError(t, err)

	require.NoError(t, coord.Delete(context.Background(), "n1"))

	state := coord.Container().State()
	require.Len(t, state.Notifications, 1)
	assert.Equal(t, "n2", state.Notifications[0].ID)
	assert.Equal(t, 0, state.UnreadCount)
}

func TestCoordinator_MutationInvalidatesCache(t *testing.T) {
	var fetches atomic.Int64
	coord, _ := newTestCoordinator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		fetches.Add(1)
		writePage(w, makeNotifications(1, "n1"), 1)
	}))

	_, err := coord.Fetch(context.Background(), 1, 20, false)
	require.NoError(t, err)
	require.NoError(t, coord.MarkAllRead(context.Background()))

	// the cached page is gone, so this goes remote again
	_, err = coord.Fetch(context.Background(), 1, 20, false)
	require.NoError(t, err)
	assert.Equal(t, int64(2), fetches.Load())
}

func TestCoordinator_UpdatePreferences(t *testing.T) {
	coord, _ := newTestCoordinator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/notifications/preferences", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))

	prefs := model.DefaultNotificationPreferences()
	prefs.PushNotifications = false

	require.NoError(t, coord.UpdatePreferences(context.Background(), prefs))
	assert.False(t, coord.Container().State().Preferences.PushNotifications)
}

func TestCoordinator_RegisterDeviceNeedsToken(t *testing.T) {
	coord, store := newTestCoordinator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/notifications/register-device", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "tok-123", body["device_token"])
		w.WriteHeader(http.StatusNoContent)
	}))

	err := coord.RegisterDevice(context.Background())
	assert.ErrorIs(t, err, ErrNoDeviceToken)

	require.NoError(t, store.SetDeviceToken("tok-123"))
	require.NoError(t, coord.RegisterDevice(context.Background()))
	assert.True(t, coord.Container().State().DeviceRegistered)
}

func TestContainer_PrependUnreadIncrementsCount(t *testing.T) {
	c := NewContainer()
	c.applyPage(1, makeNotifications(0, "n1"), 20, 0)

	c.Prepend(model.Notification{ID: "n2", Type: model.NotificationFollow})
	state := c.State()
	assert.Equal(t, "n2", state.Notifications[0].ID)
	assert.Equal(t, 1, state.UnreadCount)

	c.Prepend(model.Notification{ID: "n3", IsRead: true})
	assert.Equal(t, 1, c.State().UnreadCount, "read delivery leaves the count alone")
}

func TestCoordinator_ClearResetsState(t *testing.T) {
	coord, _ := newTestCoordinator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writePage(w, makeNotifications(1, "n1"), 1)
	}))

	_, err := coord.Fetch(context.Background(), 1, 20, true)
	require.NoError(t, err)

	coord.Clear()
	state := coord.Container().State()
	assert.Empty(t, state.Notifications)
	assert.Equal(t, 0, state.UnreadCount)
	assert.Equal(t, 1, state.CurrentPage)
	assert.True(t, state.HasMore)
}
