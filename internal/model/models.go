package model

import (
	"time"
)

// Role identifies the party role attached to an account.
type Role string

const (
	RoleWorker    Role = "worker"
	RoleCommittee Role = "committee"
	RoleAdmin     Role = "admin"
)

// VerificationStatus tracks the account verification workflow. The empty
// string means verification was never requested.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationApproved VerificationStatus = "approved"
	VerificationRejected VerificationStatus = "rejected"
)

// ContentType classifies the primary media of a post.
type ContentType string

const (
	ContentText  ContentType = "text"
	ContentImage ContentType = "image"
	ContentVideo ContentType = "video"
)

// UserSummary is the compact author/sender shape embedded in posts and
// notifications.
type UserSummary struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	ProfilePicURL string `json:"profile_pic_url"`
	Role          Role   `json:"role"`
	IsVerified    bool   `json:"is_verified"`
	IsFollowing   bool   `json:"is_following"`
}

// User is the full profile shape returned by the users endpoints.
type User struct {
	UserSummary
	Bio                string             `json:"bio"`
	Position           string             `json:"position"`
	CommitteeName      string             `json:"committee_name"`
	Constituency       string             `json:"constituency"`
	OfficialTitle      string             `json:"official_title"`
	FollowerCount      int                `json:"follower_count"`
	FollowingCount     int                `json:"following_count"`
	PostCount          int                `json:"post_count"`
	OfficialTabEnabled bool               `json:"official_tab_enabled"`
	VerificationStatus VerificationStatus `json:"verification_status"`
}

type Post struct {
	ID           string      `json:"id"`
	Author       UserSummary `json:"author"`
	Content      string      `json:"content"`
	FullContent  string      `json:"full_content,omitempty"`
	ContentType  ContentType `json:"content_type"`
	MediaURLs    []string    `json:"media_urls"`
	IsLiked      bool        `json:"is_liked"`
	LikeCount    int         `json:"like_count"`
	ShareCount   int         `json:"share_count"`
	CommentCount int         `json:"comment_count"`
	IsOfficial   bool        `json:"is_official"`
	IsBroadcast  bool        `json:"is_broadcast"`
	CreatedAt    time.Time   `json:"created_at"`
}

// NotificationType enumerates the notification payloads the client renders.
type NotificationType string

const (
	NotificationLike                 NotificationType = "like"
	NotificationComment              NotificationType = "comment"
	NotificationFollow               NotificationType = "follow"
	NotificationMention              NotificationType = "mention"
	NotificationPostApproved         NotificationType = "post_approved"
	NotificationPostRejected         NotificationType = "post_rejected"
	NotificationVerificationApproved NotificationType = "verification_approved"
	NotificationVerificationRejected NotificationType = "verification_rejected"
	NotificationOfficialPost         NotificationType = "official_post"
	NotificationBroadcast            NotificationType = "broadcast"
)

type Notification struct {
	ID        string           `json:"id"`
	Type      NotificationType `json:"type"`
	Sender    *UserSummary     `json:"sender,omitempty"`
	IsRead    bool             `json:"is_read"`
	CreatedAt time.Time        `json:"created_at"`
	// Data carries navigation hints such as post_id or user_id.
	Data map[string]string `json:"data,omitempty"`
}

// NotificationPreferences mirrors the server-side delivery settings.
type NotificationPreferences struct {
	PushNotifications  bool `json:"push_notifications"`
	EmailNotifications bool `json:"email_notifications"`
	NewFollowers       bool `json:"new_followers"`
	PostLikes          bool `json:"post_likes"`
	PostComments       bool `json:"post_comments"`
	Mentions           bool `json:"mentions"`
	OfficialPosts      bool `json:"official_posts"`
}

// DefaultNotificationPreferences matches the server defaults for a fresh
// account.
func DefaultNotificationPreferences() NotificationPreferences {
	return NotificationPreferences{
		PushNotifications: true,
		NewFollowers:      true,
		PostLikes:         true,
		PostComments:      true,
		Mentions:          true,
		OfficialPosts:     true,
	}
}

// AppSettings are the local client preferences persisted on device.
type AppSettings struct {
	Theme                string `json:"theme"`
	Language             string `json:"language"`
	PushNotifications    bool   `json:"push_notifications"`
	AutoPlayVideos       bool   `json:"auto_play_videos"`
	DataSaverMode        bool   `json:"data_saver_mode"`
	ShowSensitiveContent bool   `json:"show_sensitive_content"`
}

func DefaultAppSettings() AppSettings {
	return AppSettings{
		Theme:             "light",
		Language:          "en",
		PushNotifications: true,
		AutoPlayVideos:    true,
	}
}

// Session is the authenticated state persisted across launches.
type Session struct {
	User               User               `json:"user"`
	Token              string             `json:"token"`
	Role               Role               `json:"role"`
	VerificationStatus VerificationStatus `json:"verification_status"`
}

// PostDraft is the payload for creating a post.
type PostDraft struct {
	Content     string      `json:"content"`
	FullContent string      `json:"full_content,omitempty"`
	ContentType ContentType `json:"content_type"`
	MediaURLs   []string    `json:"media_urls,omitempty"`
}

// ProfileUpdate carries the editable profile fields; nil pointers are left
// untouched by the server.
type ProfileUpdate struct {
	Name          *string `json:"name,omitempty"`
	Bio           *string `json:"bio,omitempty"`
	Position      *string `json:"position,omitempty"`
	CommitteeName *string `json:"committee_name,omitempty"`
	ProfilePicURL *string `json:"profile_pic_url,omitempty"`
}
