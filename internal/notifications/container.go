package notifications

import (
	"sync"

	"github.com/ysrcpconnect/connect/internal/model"
)

// Container holds the notification list and unread bookkeeping. A
// notification's read flag only ever moves false to true; the unread count
// is floored at zero.
type Container struct {
	mu               sync.Mutex
	notifications    []model.Notification
	unreadCount      int
	currentPage      int
	hasMore          bool
	loading          bool
	lastErr          string
	preferences      model.NotificationPreferences
	deviceRegistered bool
}

type State struct {
	Notifications    []model.Notification
	UnreadCount      int
	CurrentPage      int
	HasMore          bool
	Loading          bool
	Err              string
	Preferences      model.NotificationPreferences
	DeviceRegistered bool
}

func NewContainer() *Container {
	return &Container{
		currentPage: 1,
		hasMore:     true,
		preferences: model.DefaultNotificationPreferences(),
	}
}

func (c *Container) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	notifications := make([]model.Notification, len(c.notifications))
	copy(notifications, c.notifications)
	return State{
		Notifications:    notifications,
		UnreadCount:      c.unreadCount,
		CurrentPage:      c.currentPage,
		HasMore:          c.hasMore,
		Loading:          c.loading,
		Err:              c.lastErr,
		Preferences:      c.preferences,
		DeviceRegistered: c.deviceRegistered,
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

// applyPage commits a fetched page; the server's unread count is
// authoritative on fetch.
func (c *Container) applyPage(page int, notifications []model.Notification, limit, unreadCount int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if page == 1 {
		c.notifications = append([]model.Notification(nil), notifications...)
	} else {
		seen := make(map[string]struct{}, len(c.notifications))
		for _, n := range c.notifications {
			seen[n.ID] = struct{}{}
		}
		for _, n := range notifications {
			if _, dup := seen[n.ID]; dup {
				continue
			}
			c.notifications = append(c.notifications, n)
		}
	}

	c.currentPage = page
	c.hasMore = len(notifications) == limit
	if unreadCount < 0 {
		unreadCount = 0
	}
	c.unreadCount = unreadCount
	c.loading = false
	c.lastErr = ""
}

// markRead flips one notification to read. Already-read entries leave the
// unread count untouched, which makes the operation idempotent.
func (c *Container) markRead(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.notifications {
		if c.notifications[i].ID == id {
			if !c.notifications[i].IsRead {
				c.notifications[i].IsRead = true
				if c.unreadCount > 0 {
					c.unreadCount--
				}
			}
			return
		}
	}
}

func (c *Container) markAllRead() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.notifications {
		c.notifications[i].IsRead = true
	}
	c.unreadCount = 0
}

func (c *Container) remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.notifications {
		if c.notifications[i].ID == id {
			if !c.notifications[i].IsRead && c.unreadCount > 0 {
				c.unreadCount--
			}
			c.notifications = append(c.notifications[:i], c.notifications[i+1:]...)
			return
		}
	}
}

// Prepend pushes a newly delivered notification to the head of the list.
func (c *Container) Prepend(n model.Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifications = append([]model.Notification{n}, c.notifications...)
	if !n.IsRead {
		c.unreadCount++
	}
}

func (c *Container) setPreferences(prefs model.NotificationPreferences) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.preferences = prefs
}

func (c *Container) setDeviceRegistered(registered bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deviceRegistered = registered
}

func (c *Container) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifications = nil
	c.unreadCount = 0
	c.currentPage = 1
	c.hasMore = true
	c.loading = false
	c.lastErr = ""
	c.deviceRegistered = false
}
