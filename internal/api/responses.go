package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ysrcpconnect/connect/internal/model"
)

// APIError carries the HTTP status and the server's human-readable message.
// The message is propagated to callers unchanged; there is no retry or
// backoff at this layer.
type APIError struct {
	Status  int    `json:"-"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("server error (HTTP %d)", e.Status)
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err == nil && len(body) > 0 {
		// Non-JSON bodies fall back to the generic message.
		_ = json.Unmarshal(body, apiErr)
	}
	return apiErr
}

// One response contract per endpoint family; fields outside these shapes are
// never trusted into the state containers.

type FeedResponse struct {
	Posts []model.Post `json:"posts"`
}

type PostResponse struct {
	Post model.Post `json:"post"`
}

type LikeResponse struct {
	Liked     bool `json:"liked"`
	LikeCount int  `json:"likeCount"`
}

type ShareResponse struct {
	ShareCount int `json:"shareCount"`
}

type ProfileResponse struct {
	User        model.User `json:"user"`
	IsFollowing bool       `json:"isFollowing"`
}

type FollowResponse struct {
	FollowersCount int `json:"followersCount"`
}

type UserListResponse struct {
	Users []model.UserSummary `json:"users"`
}

type OfficialTabResponse struct {
	OfficialTitle string `json:"officialTitle"`
	Constituency  string `json:"constituency"`
}

type NotificationsResponse struct {
	Notifications []model.Notification `json:"notifications"`
	UnreadCount   int                  `json:"unreadCount"`
}

type LoginResponse struct {
	User  model.User `json:"user"`
	Token string     `json:"token"`
}

type RoleResponse struct {
	Role model.Role `json:"role"`
}

type VerificationResponse struct {
	Status model.VerificationStatus `json:"status"`
}
