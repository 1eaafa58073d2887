package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// TokenSource supplies the bearer token for authenticated requests. An empty
// string means the request goes out unauthenticated.
type TokenSource interface {
	Token() string
}

// Client is the typed REST client for the YSRCPConnect API. All methods take
// a context and return either a decoded response or an error; non-2xx
// responses decode into *APIError so callers can surface the server message
// unchanged.
type Client struct {
	http      *http.Client
	baseURL   string
	userAgent string
	tokens    TokenSource
}

func NewClient(baseURL string, timeout time.Duration, userAgent string, tokens TokenSource) *Client {
	return &Client{
		http:      &http.Client{Timeout: timeout},
		baseURL:   baseURL,
		userAgent: userAgent,
		tokens:    tokens,
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	if method != http.MethodGet {
		req.Header.Set("X-Request-ID", uuid.NewString())
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func pageQuery(page, limit int) url.Values {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	return q
}

// Feed and posts.

func (c *Client) GetFeed(ctx context.Context, page, limit int) (*FeedResponse, error) {
	var out FeedResponse
	if err := c.do(ctx, http.MethodGet, "/feed", pageQuery(page, limit), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetBroadcasts(ctx context.Context, page, limit int) (*FeedResponse, error) {
	var out FeedResponse
	if err := c.do(ctx, http.MethodGet, "/feed/broadcasts", pageQuery(page, limit), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) LikePost(ctx context.Context, postID string) (*LikeResponse, error) {
	var out LikeResponse
	if err := c.do(ctx, http.MethodPost, "/posts/"+postID+"/like", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UnlikePost(ctx context.Context, postID string) (*LikeResponse, error) {
	var out LikeResponse
	if err := c.do(ctx, http.MethodDelete, "/posts/"+postID+"/like", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SharePost(ctx context.Context, postID string) (*ShareResponse, error) {
	var out ShareResponse
	if err := c.do(ctx, http.MethodPost, "/posts/"+postID+"/share", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ReportPost(ctx context.Context, postID, reason, description string) error {
	body := map[string]string{"reason": reason, "description": description}
	return c.do(ctx, http.MethodPost, "/posts/"+postID+"/report", nil, body, nil)
}

func (c *Client) CreatePost(ctx context.Context, draft any) (*PostResponse, error) {
	var out PostResponse
	if err := c.do(ctx, http.MethodPost, "/posts", nil, draft, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetPost(ctx context.Context, postID string) (*PostResponse, error) {
	var out PostResponse
	if err := c.do(ctx, http.MethodGet, "/posts/"+postID, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeletePost(ctx context.Context, postID string) error {
	return c.do(ctx, http.MethodDelete, "/posts/"+postID, nil, nil, nil)
}

func (c *Client) GetUserPosts(ctx context.Context, userID string, page, limit int) (*FeedResponse, error) {
	var out FeedResponse
	if err := c.do(ctx, http.MethodGet, "/posts/user/"+userID, pageQuery(page, limit), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Users and profiles.

func (c *Client) GetUser(ctx context.Context, userID string) (*ProfileResponse, error) {
	var out ProfileResponse
	if err := c.do(ctx, http.MethodGet, "/users/"+userID, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateProfile(ctx context.Context, update any) (*ProfileResponse, error) {
	var out ProfileResponse
	if err := c.do(ctx, http.MethodPut, "/users/profile", nil, update, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) FollowUser(ctx context.Context, userID string) (*FollowResponse, error) {
	var out FollowResponse
	if err := c.do(ctx, http.MethodPost, "/users/follow/"+userID, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UnfollowUser(ctx context.Context, userID string) (*FollowResponse, error) {
	var out FollowResponse
	if err := c.do(ctx, http.MethodDelete, "/users/follow/"+userID, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SearchUsers(ctx context.Context, query string, limit int) (*UserListResponse, error) {
	q := url.Values{}
	q.Set("query", query)
	q.Set("limit", strconv.Itoa(limit))
	var out UserListResponse
	if err := c.do(ctx, http.MethodGet, "/users/search", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) EnableOfficialTab(ctx context.Context) (*OfficialTabResponse, error) {
	var out OfficialTabResponse
	if err := c.do(ctx, http.MethodPost, "/users/enable-official-tab", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Notifications.

func (c *Client) GetNotifications(ctx context.Context, page, limit int) (*NotificationsResponse, error) {
	var out NotificationsResponse
	if err := c.do(ctx, http.MethodGet, "/notifications", pageQuery(page, limit), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPut, "/notifications/"+id+"/read", nil, nil, nil)
}

func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	return c.do(ctx, http.MethodPut, "/notifications/read-all", nil, nil, nil)
}

func (c *Client) DeleteNotification(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/notifications/"+id, nil, nil, nil)
}

func (c *Client) UpdateNotificationPreferences(ctx context.Context, prefs any) error {
	return c.do(ctx, http.MethodPut, "/notifications/preferences", nil, prefs, nil)
}

func (c *Client) RegisterDevice(ctx context.Context, deviceToken string) error {
	body := map[string]string{"device_token": deviceToken}
	return c.do(ctx, http.MethodPost, "/notifications/register-device", nil, body, nil)
}

func (c *Client) UnregisterDevice(ctx context.Context, deviceToken string) error {
	body := map[string]string{"device_token": deviceToken}
	return c.do(ctx, http.MethodPost, "/notifications/unregister-device", nil, body, nil)
}

// Auth. Token exchange mechanics stay on the server; the client only
// consumes the resulting JSON shapes.

func (c *Client) GoogleLogin(ctx context.Context, code string) (*LoginResponse, error) {
	body := map[string]string{"code": code}
	var out LoginResponse
	if err := c.do(ctx, http.MethodPost, "/auth/google/callback", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SelectRole(ctx context.Context, role string) (*RoleResponse, error) {
	body := map[string]string{"role": role}
	var out RoleResponse
	if err := c.do(ctx, http.MethodPost, "/auth/select-role", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RequestVerification(ctx context.Context, documents []string, notes string) error {
	body := map[string]any{"documents": documents, "notes": notes}
	return c.do(ctx, http.MethodPost, "/auth/request-verification", nil, body, nil)
}

func (c *Client) VerificationStatus(ctx context.Context) (*VerificationResponse, error) {
	var out VerificationResponse
	if err := c.do(ctx, http.MethodGet, "/auth/verification-status", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil, nil)
}
