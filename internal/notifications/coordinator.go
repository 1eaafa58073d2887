package notifications

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

// ErrNoDeviceToken means device registration was attempted before the push
// layer handed the client a token.
var ErrNoDeviceToken = errors.New("no device token stored")

// Coordinator sequences the notification list, read-state mutations and
// device registration against the remote API and the local cache.
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

// cachedPage is the page-1 snapshot kept in the cache store; the unread
// count travels with the list so a cache hit can answer the badge too.
type cachedPage struct {
	Notifications []model.Notification `json:"notifications"`
	UnreadCount   int                  `json:"unread_count"`
}

// Fetch loads one page of notifications. Page 1 without refresh is served
// from the cache when fresh; a remote page-1 result rewrites the cache.
func (c *Coordinator) Fetch(ctx context.Context, page, limit int, refresh bool) ([]model.Notification, error) {
	if page < 1 {
		return nil, fmt.Errorf("invalid page %d", page)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("invalid limit %d", limit)
	}

	if !refresh && page == 1 {
		var cached cachedPage
		if c.store.GetCache(cache.KindNotifications, cache.KindNotifications.MaxAge(), &cached) {
			debuglog.Debugf("notifications: page 1 served from cache (%d items)", len(cached.Notifications))
			return cached.Notifications, nil
		}
	}

	key := fmt.Sprintf("fetch:%d", page)
	if !c.acquire(key) {
		return nil, ErrInFlight
	}
	defer c.release(key)

	c.container.begin()

	resp, err := c.client.GetNotifications(ctx, page, limit)
	if err != nil {
		c.container.fail(err)
		return nil, fmt.Errorf("fetching notifications: %w", err)
	}

	c.container.applyPage(page, resp.Notifications, limit, resp.UnreadCount)

	if page == 1 {
		c.store.SetCache(cache.KindNotifications, cachedPage{
			Notifications: resp.Notifications,
			UnreadCount:   resp.UnreadCount,
		})
	}

	return resp.Notifications, nil
}

// LoadMore fetches the next page when available.
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

// MarkRead confirms the read flip with the server before applying it
// locally; read never reverts to unread.
func (c *Coordinator) MarkRead(ctx context.Context, id string) error {
	if err := c.client.MarkNotificationRead(ctx, id); err != nil {
		return fmt.Errorf("marking notification read: %w", err)
	}
	c.container.markRead(id)
	c.store.Invalidate(cache.KindNotifications)
	return nil
}

// MarkAllRead is idempotent: repeated calls keep the unread count at zero.
func (c *Coordinator) MarkAllRead(ctx context.Context) error {
	if err := c.client.MarkAllNotificationsRead(ctx); err != nil {
		return fmt.Errorf("marking all notifications read: %w", err)
	}
	c.container.markAllRead()
	c.store.Invalidate(cache.KindNotifications)
	return nil
}

func (c *Coordinator) Delete(ctx context.Context, id string) error {
	if err := c.client.DeleteNotification(ctx, id); err != nil {
		return fmt.Errorf("deleting notification: %w", err)
	}
	c.container.remove(id)
	c.store.Invalidate(cache.KindNotifications)
	return nil
}

func (c *Coordinator) UpdatePreferences(ctx context.Context, prefs model.NotificationPreferences) error {
	if err := c.client.UpdateNotificationPreferences(ctx, prefs); err != nil {
		return fmt.Errorf("updating notification preferences: %w", err)
	}
	c.container.setPreferences(prefs)
	return nil
}

// RegisterDevice registers the persisted device token for push delivery.
// The push transport itself is an OS facility outside this layer.
func (c *Coordinator) RegisterDevice(ctx context.Context) error {
	token, err := c.store.DeviceToken()
	if err != nil {
		return fmt.Errorf("reading device token: %w", err)
	}
	if token == "" {
		return ErrNoDeviceToken
	}

	if err := c.client.RegisterDevice(ctx, token); err != nil {
		return fmt.Errorf("registering device: %w", err)
	}
	c.container.setDeviceRegistered(true)
	return nil
}

func (c *Coordinator) UnregisterDevice(ctx context.Context) error {
	token, err := c.store.DeviceToken()
	if err != nil {
		return fmt.Errorf("reading device token: %w", err)
	}
	if token == "" {
		return ErrNoDeviceToken
	}

	if err := c.client.UnregisterDevice(ctx, token); err != nil {
		return fmt.Errorf("unregistering device: %w", err)
	}
	c.container.setDeviceRegistered(false)
	return nil
}

// Clear drops the in-memory list and its cache entry, e.g. on logout.
func (c *Coordinator) Clear() {
	c.container.Clear()
	c.store.Invalidate(cache.KindNotifications)
}
