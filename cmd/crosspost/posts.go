package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/WatchBeam/clock"
	"github.com/crosspostd/crosspost/server/config"
	"github.com/crosspostd/crosspost/server/crosspost"
	"github.com/crosspostd/crosspost/server/datastore/mysql"
	"github.com/crosspostd/crosspost/server/service"
	"github.com/spf13/cobra"
)

// createPostsCmd builds the administrative post commands. They talk directly
// to the database with the same service logic the pipeline uses, handy for
// operators and for development without the web application in front.
func createPostsCmd(configManager config.Manager) *cobra.Command {
	postsCmd := &cobra.Command{
		Use:   "posts",
		Short: "Schedule, cancel and list posts",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help() //nolint:errcheck
		},
	}

	newService := func() (*service.Service, *mysql.Datastore) {
		config := configManager.LoadConfig()
		logger := initLogger(config)
		ds, err := mysql.New(config.Mysql, mysql.Logger(logger), mysql.Clock(clock.C))
		if err != nil {
			initFatal(err, "initializing datastore")
		}
		return service.NewService(ds, logger, clock.C), ds
	}

	var (
		content      string
		channelID    string
		userID       string
		scheduledFor string
	)
	scheduleCmd := &cobra.Command{
		Use:   "schedule",
		Short: "Schedule a post for future publication",
		Run: func(cmd *cobra.Command, args []string) {
			when, err := time.Parse(time.RFC3339, scheduledFor)
			if err != nil {
				initFatal(err, "parsing --scheduled-for (expected RFC3339, e.g. 2026-09-15T18:00:00Z)")
			}

			svc, ds := newService()
			defer ds.Close()

			post, err := svc.SchedulePost(cmd.Context(), crosspost.SchedulePostPayload{
				Content:      content,
				ScheduledFor: when,
				ChannelID:    channelID,
				UserID:       userID,
			})
			if err != nil {
				initFatal(err, "scheduling post")
			}
			fmt.Printf("Scheduled post %s for %s\n", post.ID, post.ScheduledFor.Format(time.RFC3339))
		},
	}
	scheduleCmd.Flags().StringVar(&content, "content", "", "Content of the post")
	scheduleCmd.Flags().StringVar(&channelID, "channel-id", "", "Channel to publish to")
	scheduleCmd.Flags().StringVar(&userID, "user-id", "", "Owner of the post")
	scheduleCmd.Flags().StringVar(&scheduledFor, "scheduled-for", "", "Publication time (RFC3339)")

	cancelCmd := &cobra.Command{
		Use:   "cancel [post id]",
		Short: "Cancel a scheduled post",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			svc, ds := newService()
			defer ds.Close()

			if err := svc.CancelPost(cmd.Context(), args[0]); err != nil {
				initFatal(err, "cancelling post")
			}
			fmt.Printf("Cancelled post %s\n", args[0])
		},
	}

	var (
		listUserID string
		listStatus string
	)
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List a user's posts",
		Run: func(cmd *cobra.Command, args []string) {
			var status *crosspost.PostStatus
			if listStatus != "" {
				s := crosspost.PostStatus(listStatus)
				status = &s
			}

			svc, ds := newService()
			defer ds.Close()

			posts, err := svc.ListScheduledPosts(cmd.Context(), listUserID, status)
			if err != nil {
				initFatal(err, "listing posts")
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(posts); err != nil {
				initFatal(err, "encoding posts")
			}
		},
	}
	listCmd.Flags().StringVar(&listUserID, "user-id", "", "Owner of the posts")
	listCmd.Flags().StringVar(&listStatus, "status", "", "Restrict to a status (scheduled, published, failed, cancelled)")

	postsCmd.AddCommand(scheduleCmd, cancelCmd, listCmd)
	return postsCmd
}
