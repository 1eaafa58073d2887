package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ysrcpconnect/connect/internal/model"
)

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login <code>",
		Short: "Sign in with an OAuth authorization code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			session, err := a.auth.Login(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Signed in as %s (%s)\n", session.User.Name, session.Role)
			return nil
		},
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear local state",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.auth.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("Signed out")
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			session := a.auth.Session()
			if session == nil {
				fmt.Println("Not signed in")
				return nil
			}

			fmt.Printf("User:         %s\n", session.User.Name)
			fmt.Printf("Role:         %s\n", session.Role)
			if session.VerificationStatus != "" {
				fmt.Printf("Verification: %s\n", session.VerificationStatus)
			}
			if id, err := a.store.InstallationID(); err == nil {
				fmt.Printf("Install:      %s\n", id)
			}
			if !a.auth.TokenValid() {
				fmt.Println("Token expired; sign in again")
			}
			return nil
		},
	}
}

func newRoleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "role <worker|committee|admin>",
		Short: "Select your party role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.auth.SelectRole(cmd.Context(), model.Role(args[0])); err != nil {
				return err
			}
			fmt.Printf("Role set to %s\n", args[0])
			return nil
		},
	}
}

func newVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Account verification workflow",
	}

	var (
		documents []string
		notes     string
	)
	request := &cobra.Command{
		Use:   "request",
		Short: "Submit documents for verification",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.auth.RequestVerification(cmd.Context(), documents, notes); err != nil {
				return err
			}
			fmt.Println("Verification requested")
			return nil
		},
	}
	request.Flags().StringSliceVar(&documents, "document", nil, "Document URLs")
	request.Flags().StringVar(&notes, "notes", "", "Notes for the reviewer")

	cmd.AddCommand(
		request,
		&cobra.Command{
			Use:   "status",
			Short: "Check verification status",
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := newApp()
				if err != nil {
					return err
				}
				defer a.close()

				status, err := a.auth.VerificationStatus(cmd.Context())
				if err != nil {
					return err
				}
				if status == "" {
					fmt.Println("Verification never requested")
				} else {
					fmt.Println(status)
				}
				return nil
			},
		},
	)

	return cmd
}

func newFeedCmd() *cobra.Command {
	var (
		page    int
		limit   int
		refresh bool
	)

	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Browse the feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if limit == 0 {
				limit = a.cfg.Feed.PageSize
			}
			posts, err := a.feed.Fetch(cmd.Context(), page, limit, refresh)
			if err != nil {
				return err
			}
			printPosts(posts)
			return nil
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "Page to fetch")
	cmd.Flags().IntVar(&limit, "limit", 0, "Page size (defaults to config)")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Bypass the cache")

	cmd.AddCommand(&cobra.Command{
		Use:   "broadcasts",
		Short: "Show broadcast posts",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			posts, err := a.feed.Broadcasts(cmd.Context(), 1, a.cfg.Feed.PageSize)
			if err != nil {
				return err
			}
			printPosts(posts)
			return nil
		},
	})

	return cmd
}

func newPostCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "post",
		Short: "Create and act on posts",
	}

	var (
		content     string
		fullContent string
		contentType string
		media       []string
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Publish a new post",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(content) == "" {
				return fmt.Errorf("post content must not be empty")
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			post, err := a.feed.Create(cmd.Context(), model.PostDraft{
				Content:     content,
				FullContent: fullContent,
				ContentType: model.ContentType(contentType),
				MediaURLs:   media,
			})
			if err != nil {
				return err
			}
			fmt.Printf("Created post %s\n", post.ID)
			return nil
		},
	}
	create.Flags().StringVar(&content, "content", "", "Post content")
	create.Flags().StringVar(&fullContent, "full-content", "", "Extended content")
	create.Flags().StringVar(&contentType, "type", string(model.ContentText), "Content type (text, image, video)")
	create.Flags().StringSliceVar(&media, "media", nil, "Media URLs")

	var (
		reason      string
		description string
	)
	report := &cobra.Command{
		Use:   "report <id>",
		Short: "Report a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()
			return a.feed.Report(cmd.Context(), args[0], reason, description)
		},
	}
	report.Flags().StringVar(&reason, "reason", "", "Report reason")
	report.Flags().StringVar(&description, "description", "", "Additional details")

	cmd.AddCommand(
		create,
		report,
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Delete a post",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := newApp()
				if err != nil {
					return err
				}
				defer a.close()
				return a.feed.Delete(cmd.Context(), args[0])
			},
		},
		&cobra.Command{
			Use:   "like <id>",
			Short: "Like a post",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := newApp()
				if err != nil {
					return err
				}
				defer a.close()
				return a.feed.Like(cmd.Context(), args[0])
			},
		},
		&cobra.Command{
			Use:   "unlike <id>",
			Short: "Remove a like",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := newApp()
				if err != nil {
					return err
				}
				defer a.close()
				return a.feed.Unlike(cmd.Context(), args[0])
			},
		},
		&cobra.Command{
			Use:   "share <id>",
			Short: "Share a post",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := newApp()
				if err != nil {
					return err
				}
				defer a.close()
				return a.feed.Share(cmd.Context(), args[0])
			},
		},
	)

	return cmd
}

func newProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "View and manage profiles",
	}

	var refresh bool
	show := &cobra.Command{
		Use:   "show <user-id>",
		Short: "Show a user profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			user, err := a.profile.Get(cmd.Context(), args[0], refresh)
			if err != nil {
				return err
			}

			fmt.Printf("%s (%s)\n", user.Name, user.Role)
			if user.Bio != "" {
				fmt.Println(user.Bio)
			}
			fmt.Printf("Followers: %d  Following: %d  Posts: %d\n",
				user.FollowerCount, user.FollowingCount, user.PostCount)
			return nil
		},
	}
	show.Flags().BoolVar(&refresh, "refresh", false, "Bypass the cache")

	var (
		name      string
		bio       string
		position  string
		committee string
		picURL    string
	)
	update := &cobra.Command{
		Use:   "update",
		Short: "Edit your profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			var change model.ProfileUpdate
			if cmd.Flags().Changed("name") {
				change.Name = &name
			}
			if cmd.Flags().Changed("bio") {
				change.Bio = &bio
			}
			if cmd.Flags().Changed("position") {
				change.Position = &position
			}
			if cmd.Flags().Changed("committee") {
				change.CommitteeName = &committee
			}
			if cmd.Flags().Changed("pic") {
				change.ProfilePicURL = &picURL
			}

			user, err := a.profile.Update(cmd.Context(), change)
			if err != nil {
				return err
			}
			fmt.Printf("Updated profile for %s\n", user.Name)
			return nil
		},
	}
	update.Flags().StringVar(&name, "name", "", "Display name")
	update.Flags().StringVar(&bio, "bio", "", "Bio")
	update.Flags().StringVar(&position, "position", "", "Party position")
	update.Flags().StringVar(&committee, "committee", "", "Committee name")
	update.Flags().StringVar(&picURL, "pic", "", "Profile picture URL")

	cmd.AddCommand(
		show,
		update,
		&cobra.Command{
			Use:   "search <query>",
			Short: "Search users by name",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := newApp()
				if err != nil {
					return err
				}
				defer a.close()

				users, err := a.profile.Search(cmd.Context(), strings.Join(args, " "), a.cfg.Feed.PageSize)
				if err != nil {
					return err
				}
				for _, u := range users {
					verified := ""
					if u.IsVerified {
						verified = " [verified]"
					}
					fmt.Printf("%-12s %s (%s)%s\n", u.ID, u.Name, u.Role, verified)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "official-tab",
			Short: "Enable the official posts tab",
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := newApp()
				if err != nil {
					return err
				}
				defer a.close()

				if err := a.profile.EnableOfficialTab(cmd.Context()); err != nil {
					return err
				}
				fmt.Println("Official tab enabled")
				return nil
			},
		},
		&cobra.Command{
			Use:   "follow <user-id>",
			Short: "Toggle following a user",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := newApp()
				if err != nil {
					return err
				}
				defer a.close()

				// Load current follow state before toggling.
				if _, err := a.profile.Get(cmd.Context(), args[0], false); err != nil {
					return err
				}
				return a.profile.ToggleFollow(cmd.Context(), args[0])
			},
		},
		&cobra.Command{
			Use:   "posts <user-id>",
			Short: "List a user's posts",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := newApp()
				if err != nil {
					return err
				}
				defer a.close()

				posts, err := a.profile.Posts(cmd.Context(), args[0], 1, a.cfg.Feed.PageSize)
				if err != nil {
					return err
				}
				printPosts(posts)
				return nil
			},
		},
	)

	return cmd
}

func newNotificationsCmd() *cobra.Command {
	var page int

	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "List notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			items, err := a.notifications.Fetch(cmd.Context(), page, a.cfg.Feed.PageSize, false)
			if err != nil {
				return err
			}
			for _, n := range items {
				marker := " "
				if !n.IsRead {
					marker = "*"
				}
				sender := ""
				if n.Sender != nil {
					sender = n.Sender.Name + " "
				}
				fmt.Printf("%s %-22s %s%s\n", marker, n.Type, sender, n.CreatedAt.Format("2006-01-02 15:04"))
			}
			state := a.notifications.Container().State()
			fmt.Printf("%d unread\n", state.UnreadCount)
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "Page to fetch")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "read <id>",
			Short: "Mark one notification as read",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := newApp()
				if err != nil {
					return err
				}
				defer a.close()
				return a.notifications.MarkRead(cmd.Context(), args[0])
			},
		},
		&cobra.Command{
			Use:   "read-all",
			Short: "Mark all notifications as read",
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := newApp()
				if err != nil {
					return err
				}
				defer a.close()
				return a.notifications.MarkAllRead(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Delete a notification",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := newApp()
				if err != nil {
					return err
				}
				defer a.close()
				return a.notifications.Delete(cmd.Context(), args[0])
			},
		},
		newNotificationPrefsCmd(),
		newDeviceCmd(),
	)

	return cmd
}

func newNotificationPrefsCmd() *cobra.Command {
	var (
		push     bool
		email    bool
		likes    bool
		comments bool
	)
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Update notification preferences",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			prefs := a.notifications.Container().State().Preferences
			if cmd.Flags().Changed("push") {
				prefs.PushNotifications = push
			}
			if cmd.Flags().Changed("email") {
				prefs.EmailNotifications = email
			}
			if cmd.Flags().Changed("likes") {
				prefs.PostLikes = likes
			}
			if cmd.Flags().Changed("comments") {
				prefs.PostComments = comments
			}

			if err := a.notifications.UpdatePreferences(cmd.Context(), prefs); err != nil {
				return err
			}
			fmt.Println("Preferences updated")
			return nil
		},
	}
	cmd.Flags().BoolVar(&push, "push", true, "Push notifications")
	cmd.Flags().BoolVar(&email, "email", false, "Email notifications")
	cmd.Flags().BoolVar(&likes, "likes", true, "Notify on post likes")
	cmd.Flags().BoolVar(&comments, "comments", true, "Notify on post comments")

	return cmd
}

func newDeviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "device",
		Short: "Manage push device registration",
	}

	var token string
	register := &cobra.Command{
		Use:   "register",
		Short: "Register this device for push delivery",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if token != "" {
				if err := a.store.SetDeviceToken(token); err != nil {
					return err
				}
			}
			return a.notifications.RegisterDevice(cmd.Context())
		},
	}
	register.Flags().StringVar(&token, "token", "", "Device push token")

	cmd.AddCommand(
		register,
		&cobra.Command{
			Use:   "unregister",
			Short: "Stop push delivery to this device",
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := newApp()
				if err != nil {
					return err
				}
				defer a.close()
				return a.notifications.UnregisterDevice(cmd.Context())
			},
		},
	)

	return cmd
}

func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show app settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			settings, err := a.store.Settings()
			if err != nil {
				return err
			}
			fmt.Printf("Theme:      %s\n", settings.Theme)
			fmt.Printf("Language:   %s\n", settings.Language)
			fmt.Printf("Push:       %t\n", settings.PushNotifications)
			fmt.Printf("Autoplay:   %t\n", settings.AutoPlayVideos)
			fmt.Printf("Data saver: %t\n", settings.DataSaverMode)
			return nil
		},
	}

	var (
		theme    string
		language string
		push     bool
	)
	set := &cobra.Command{
		Use:   "set",
		Short: "Change app settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			settings, err := a.store.Settings()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("theme") {
				settings.Theme = theme
			}
			if cmd.Flags().Changed("language") {
				settings.Language = language
			}
			if cmd.Flags().Changed("push") {
				settings.PushNotifications = push
			}

			if err := a.store.SaveSettings(settings); err != nil {
				return err
			}
			fmt.Println("Settings saved")
			return nil
		},
	}
	set.Flags().StringVar(&theme, "theme", "light", "UI theme (light, dark)")
	set.Flags().StringVar(&language, "language", "en", "Language code")
	set.Flags().BoolVar(&push, "push", true, "Push notifications")
	cmd.AddCommand(set)

	return cmd
}

func newSearchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search locally held posts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			// Make sure there is something to search.
			posts, err := a.feed.Fetch(cmd.Context(), 1, a.cfg.Feed.PageSize, false)
			if err != nil {
				return err
			}

			engine, err := newSearchEngine(a)
			if err != nil {
				return err
			}
			defer engine.Close()

			if err := engine.IndexPosts(posts); err != nil {
				return err
			}

			results, err := engine.Search(strings.Join(args, " "), limit)
			if err != nil {
				return err
			}
			for _, r := range results {
				fmt.Printf("%-12s %-20s %s\n", r.PostID, r.AuthorName, r.Snippet)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum results")

	return cmd
}

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the local cache",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "cleanup",
			Short: "Remove expired cache entries",
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := newApp()
				if err != nil {
					return err
				}
				defer a.close()
				a.store.CleanupExpired()
				fmt.Println("Expired cache entries removed")
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Remove all cached resource snapshots",
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := newApp()
				if err != nil {
					return err
				}
				defer a.close()
				a.store.ClearCache()
				fmt.Println("Cache cleared")
				return nil
			},
		},
	)

	return cmd
}

func printPosts(posts []model.Post) {
	for _, p := range posts {
		badge := ""
		if p.IsOfficial {
			badge = " [official]"
		}
		if p.IsBroadcast {
			badge += " [broadcast]"
		}
		fmt.Printf("%s %s%s\n", p.ID, p.Author.Name, badge)
		fmt.Printf("  %s\n", p.Content)
		fmt.Printf("  likes %d  shares %d  comments %d\n", p.LikeCount, p.ShareCount, p.CommentCount)
	}
}
