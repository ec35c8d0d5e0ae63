package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"north/internal/model"
	"north/internal/service"
)

func newProjectsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "projects",
		Aliases: []string{"project", "p"},
		Short:   "Project commands",
	}
	cmd.AddCommand(newProjectsAddCmd(app))
	cmd.AddCommand(newProjectsListCmd(app))
	cmd.AddCommand(newProjectsEditCmd(app))
	cmd.AddCommand(newProjectsStatusCmd(app, "archive", "Archive a project (its tasks leave the default views)"))
	cmd.AddCommand(newProjectsStatusCmd(app, "unarchive", "Make an archived project active again"))
	cmd.AddCommand(newProjectsRemoveCmd(app))
	return cmd
}

func newProjectsAddCmd(app *App) *cobra.Command {
	var color string

	cmd := &cobra.Command{
		Use:   "add <title...>",
		Short: "Create a project",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, app, func(ctx context.Context, svc *service.Service) error {
				p, err := svc.CreateProject(ctx, strings.Join(args, " "), color)
				if err != nil {
					return err
				}
				return writeOut(cmd, app, projectList{{Project: p}})
			})
		},
	}

	cmd.Flags().StringVar(&color, "color", "", "Display color")
	return cmd
}

func newProjectsListCmd(app *App) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, app, func(ctx context.Context, svc *service.Service) error {
				ps, err := svc.Projects(ctx, all)
				if err != nil {
					return err
				}
				return writeOut(cmd, app, projectList(ps))
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Include archived projects")
	return cmd
}

func newProjectsEditCmd(app *App) *cobra.Command {
	var title, color string

	cmd := &cobra.Command{
		Use:   "edit <project>",
		Short: "Rename or recolor a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, app, func(ctx context.Context, svc *service.Service) error {
				p, err := svc.ResolveProject(ctx, args[0])
				if err != nil {
					return err
				}
				var tp, cp *string
				if cmd.Flags().Changed("title") {
					tp = &title
				}
				if cmd.Flags().Changed("color") {
					cp = &color
				}
				p, err = svc.UpdateProject(ctx, p.ID, tp, cp)
				if err != nil {
					return err
				}
				return writeOut(cmd, app, projectList{{Project: p}})
			})
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVar(&color, "color", "", "New color")
	return cmd
}

func newProjectsStatusCmd(app *App, use, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <project>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, app, func(ctx context.Context, svc *service.Service) error {
				p, err := svc.ResolveProject(ctx, args[0])
				if err != nil {
					return err
				}
				var out model.Project
				if use == "archive" {
					out, err = svc.ArchiveProject(ctx, p.ID)
				} else {
					out, err = svc.UnarchiveProject(ctx, p.ID)
				}
				if err != nil {
					return err
				}
				return writeOut(cmd, app, projectList{{Project: out}})
			})
		},
	}
}

func newProjectsRemoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <project>",
		Aliases: []string{"delete"},
		Short:   "Delete a project; its tasks move to the inbox",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, app, func(ctx context.Context, svc *service.Service) error {
				p, err := svc.ResolveProject(ctx, args[0])
				if err != nil {
					return err
				}
				moved, err := svc.DeleteProject(ctx, p.ID)
				if err != nil {
					return err
				}
				return writeOut(cmd, app, map[string]any{"deleted": p.ID, "movedToInbox": moved})
			})
		},
	}
}
