package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"north/internal/gitrepo"
	"north/internal/publish"
	"north/internal/service"
)

func newExportCmd(app *App) *cobra.Command {
	var to string
	var includeCompleted bool
	var overwrite bool
	var commit bool

	cmd := &cobra.Command{
		Use:   "export <project>",
		Short: "Write a project outline and its tasks as markdown files",
		Example: strings.TrimSpace(`
north export Errands --to ./notes
north export 3 --to ./notes --completed --overwrite

# Commit the written files when ./notes is inside a git repository
north export Errands --to ./notes --overwrite --commit
`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, app, func(ctx context.Context, svc *service.Service) error {
				res, err := publish.WriteProject(ctx, svc, args[0], to, publish.WriteOptions{
					IncludeCompleted: includeCompleted,
					Overwrite:        overwrite,
				})
				if err != nil {
					return err
				}
				if !commit {
					return writeOut(cmd, app, res)
				}
				cr, err := gitrepo.CommitPaths(ctx, to, res.Written, "north: export "+res.Project)
				if err != nil {
					return err
				}
				if !cr.IsRepo {
					app.log.WithField("dir", to).Warn("export directory is not in a git repository; nothing committed")
				}
				return writeOutMeta(cmd, app, res, map[string]any{"git": cr})
			})
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "Output directory")
	cmd.Flags().BoolVar(&includeCompleted, "completed", false, "Include completed tasks")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace existing files")
	cmd.Flags().BoolVar(&commit, "commit", false, "Commit the written files to the enclosing git repository")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}
