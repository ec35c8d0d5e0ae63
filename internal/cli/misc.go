package cli

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"north/internal/docs"
	"north/internal/format"
	"north/internal/service"
)

func newTagsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tags",
		Short: "Tag commands",
	}
	cmd.AddCommand(&cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List tags with their task counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, app, func(ctx context.Context, svc *service.Service) error {
				tags, err := svc.Tags(ctx)
				if err != nil {
					return err
				}
				return writeOut(cmd, app, tagList(tags))
			})
		},
	})
	return cmd
}

func newSettingsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change stored settings",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, app, func(ctx context.Context, svc *service.Service) error {
				s, err := svc.Settings(ctx)
				if err != nil {
					return err
				}
				return writeOut(cmd, app, s)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set-review-interval <days>",
		Short: "Set how many days pass before a task is due for review again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			days, err := strconv.Atoi(args[0])
			if err != nil {
				return writeErr(cmd, fmt.Errorf("invalid number of days: %q", args[0]))
			}
			return withService(cmd, app, func(ctx context.Context, svc *service.Service) error {
				s, err := svc.SetReviewInterval(ctx, days)
				if err != nil {
					return err
				}
				return writeOut(cmd, app, s)
			})
		},
	})
	return cmd
}

func newStatsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show created/completed counts for today and this week",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, app, func(ctx context.Context, svc *service.Service) error {
				s, err := svc.Stats(ctx)
				if err != nil {
					return err
				}
				return writeOut(cmd, app, s)
			})
		},
	}
}

func newDocsCmd(app *App) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "docs [topic]",
		Short: "Show reference pages",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				topics := docs.Topics()
				sort.Strings(topics)
				return writeOut(cmd, app, map[string]any{"topics": topics})
			}

			topic := args[0]
			body, ok := docs.Get(topic)
			if !ok {
				return writeErr(cmd, fmt.Errorf("unknown docs topic: %q (run `north docs` to list topics)", topic))
			}
			if strings.EqualFold(strings.TrimSpace(topic), "filter") {
				body = filterReference()
			}

			if raw {
				_, err := fmt.Fprint(cmd.OutOrStdout(), body)
				return err
			}
			if app.Format == "text" {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), format.RenderMarkdown(body, 80))
				return err
			}
			return writeOut(cmd, app, map[string]any{"topic": topic, "markdown": body})
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "Print raw markdown (no envelope)")
	return cmd
}
