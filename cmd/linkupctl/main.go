// Command linkupctl drives the LinkUp API from a terminal.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/anonto42/linkup/backend/internal/client"
	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/pkg/clock"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type cli struct {
	baseURL string
	token   string
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "linkupctl",
		Short:         "Command line client for the LinkUp API",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&c.baseURL, "api", envOr("LINKUP_API_URL", "http://localhost:8080/api/v1"), "API base URL")
	root.PersistentFlags().StringVar(&c.token, "token", os.Getenv("LINKUP_TOKEN"), "bearer token")

	root.AddCommand(
		c.loginCmd(),
		c.feedCmd(),
		c.likeCmd(),
		c.commentCmd(),
		c.deleteCmd(),
		c.activeCmd(),
		c.notificationsCmd(),
	)
	return root
}

func (c *cli) client() *client.Client {
	return client.New(c.baseURL, client.WithToken(c.token))
}

func (c *cli) loginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and print a token for LINKUP_TOKEN",
		RunE: func(cmd *cobra.Command, _ []string) error {
			api := client.New(c.baseURL)
			user, err := api.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "logged in as @%s\n", user.Username)
			fmt.Fprintln(cmd.OutOrStdout(), api.Token())
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func (c *cli) feedCmd() *cobra.Command {
	var page, limit int
	cmd := &cobra.Command{
		Use:   "feed",
		Short: "List posts, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			posts, err := c.client().Feed(cmd.Context(), page, limit)
			if err != nil {
				return err
			}
			for _, p := range posts {
				liked := " "
				if p.IsLiked {
					liked = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s  @%-16s %3d likes %3d comments  %s\n",
					liked, p.ID.Hex(), p.Author.Username, p.LikesCount, p.CommentsCount, preview(p.Content))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&limit, "limit", 10, "posts per page")
	return cmd
}

// optimistic loads a post through a cached client and wraps it for an
// optimistic mutation.
func (c *cli) optimistic(ctx context.Context, id string) (*client.Client, *client.OptimisticPost, error) {
	api := client.New(c.baseURL, client.WithToken(c.token), client.WithCache(client.NewQueryCache()))
	me, err := api.Me(ctx)
	if err != nil {
		return nil, nil, err
	}
	post, err := api.Post(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return api, client.NewOptimisticPost(api, api.Cache(), me.ToCompact(), post, clock.NewRealClock()), nil
}

// settle waits for m and, once committed, refetches the post. The mutation
// invalidated its cache entry, so Post goes back to the server.
func settle(ctx context.Context, api *client.Client, post *client.OptimisticPost, id string, m *client.Mutation) error {
	if err := m.Wait(ctx); err != nil {
		return err
	}
	fresh, err := api.Post(ctx, id)
	if err != nil {
		return err
	}
	post.Reconcile(fresh)
	return nil
}

func (c *cli) likeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "like <post-id>",
		Short: "Toggle your like on a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, post, err := c.optimistic(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			m, err := post.ToggleLike(cmd.Context())
			if err != nil {
				return err
			}
			err = settle(cmd.Context(), api, post, args[0], m)
			state := post.State()
			fmt.Fprintf(cmd.OutOrStdout(), "%s: liked=%t likes=%d\n", m.State(), state.Liked, state.LikesCount)
			return err
		},
	}
}

func (c *cli) commentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "comment <post-id> <text>",
		Short: "Comment on a post",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, post, err := c.optimistic(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			m, err := post.SubmitComment(cmd.Context(), strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			err = settle(cmd.Context(), api, post, args[0], m)
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d comments\n", m.State(), len(post.State().Comments))
			return err
		},
	}
}

func (c *cli) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <post-id>",
		Short: "Delete one of your posts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.client().DeletePost(cmd.Context(), args[0])
		},
	}
}

func (c *cli) activeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "active",
		Short: "List users active in the last few minutes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			users, err := c.client().ActiveUsers(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, users)
		},
	}
}

func (c *cli) notificationsCmd() *cobra.Command {
	var filter string
	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "List notifications",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := client.ParseNotificationFilter(filter)
			if err != nil {
				return err
			}
			list, err := c.client().Notifications(cmd.Context())
			if err != nil {
				return err
			}
			for _, n := range client.FilterNotifications(list, f) {
				fmt.Fprintln(cmd.OutOrStdout(), describe(n))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&filter, "filter", "all", "all, unread, like, comment or connectionAccepted")

	var concurrency int
	markAll := &cobra.Command{
		Use:   "mark-all-read",
		Short: "Mark every unread notification as read",
		RunE: func(cmd *cobra.Command, _ []string) error {
			api := c.client()
			list, err := api.Notifications(cmd.Context())
			if err != nil {
				return err
			}
			result := client.MarkAllAsRead(cmd.Context(), api, list, concurrency)
			fmt.Fprintf(cmd.OutOrStdout(), "marked %d, failed %d\n", len(result.Succeeded()), len(result.Failed()))
			return result.Err()
		},
	}
	markAll.Flags().IntVar(&concurrency, "concurrency", 8, "requests in flight")
	cmd.AddCommand(markAll)
	return cmd
}

func describe(n models.NotificationView) string {
	who := "someone"
	if n.RelatedUser != nil {
		who = "@" + n.RelatedUser.Username
	}
	mark := " "
	if !n.Read {
		mark = "•"
	}
	var what string
	switch n.Type {
	case models.NotificationLike:
		what = "liked your post"
	case models.NotificationComment:
		what = "commented on your post"
	case models.NotificationConnectionAccepted:
		what = "accepted your connection request"
	default:
		what = string(n.Type)
	}
	return fmt.Sprintf("%s %s %s %s (%s)", mark, n.ID.Hex(), who, what, n.CreatedAt.Local().Format("Jan 2 15:04"))
}

func preview(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > 60 {
		return string(r[:57]) + "..."
	}
	return s
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
