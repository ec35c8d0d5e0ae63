package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"north/internal/format"
	"north/internal/service"
	"north/internal/store"
)

type App struct {
	ConfigPath string
	DB         string
	Format     string
	PrettyJSON bool
	LogLevel   string

	cfg store.Config
	log *log.Logger
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "north",
		Short:        "north: outline tasks, filter them, review them",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Capture a task into a project with tags
  north tasks add "Buy milk @Errands #shop"

  # What can I do right now?
  north tasks ls --page today --actionable --format text

  # Query tasks
  north filter run "status = active AND due <= 2026-01-31 ORDER BY due ASC"

  # Direct task lookup (shortcut for: north tasks show <id>)
  north 42
`),
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return app.setup(cmd)
	}

	cmd.PersistentFlags().StringVar(&app.ConfigPath, "config", envOr("NORTH_CONFIG", ""), "Path to config.yaml (default ~/.north/config.yaml)")
	cmd.PersistentFlags().StringVar(&app.DB, "db", envOr("NORTH_DB", ""), "Path to the SQLite database (overrides the config file)")
	cmd.PersistentFlags().StringVar(&app.Format, "format", envOr("NORTH_FORMAT", "json"), "Output format (json|yaml|text)")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON output")
	cmd.PersistentFlags().StringVar(&app.LogLevel, "log-level", envOr("NORTH_LOG_LEVEL", ""), "Log level (debug|info|warn|error)")

	cmd.AddCommand(newTasksCmd(app))
	cmd.AddCommand(newProjectsCmd(app))
	cmd.AddCommand(newTagsCmd(app))
	cmd.AddCommand(newFilterCmd(app))
	cmd.AddCommand(newSettingsCmd(app))
	cmd.AddCommand(newStatsCmd(app))
	cmd.AddCommand(newDocsCmd(app))
	cmd.AddCommand(newExportCmd(app))
	cmd.AddCommand(newServeCmd(app))

	return cmd
}

// setup loads the config file and configures logging. Flags win over the file.
func (app *App) setup(cmd *cobra.Command) error {
	path := app.ConfigPath
	if path == "" {
		p, err := store.ConfigPath()
		if err != nil {
			return writeErr(cmd, err)
		}
		path = p
	}
	cfg, err := store.LoadConfig(path)
	if err != nil {
		return writeErr(cmd, err)
	}
	if app.DB != "" {
		cfg.DB = app.DB
	}
	app.cfg = *cfg

	logger := log.New()
	logger.SetOutput(cmd.ErrOrStderr())
	if cfg.LogFormat == "json" {
		logger.SetFormatter(&log.JSONFormatter{})
	} else {
		logger.SetFormatter(&log.TextFormatter{DisableTimestamp: true})
	}
	level := cfg.LogLevel
	if app.LogLevel != "" {
		level = app.LogLevel
	}
	if os.Getenv("DEBUG") == "1" {
		level = "debug"
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return writeErr(cmd, fmt.Errorf("invalid log level %q", level))
	}
	logger.SetLevel(lvl)
	app.log = logger
	return nil
}

// openService opens the database and returns a service plus its close func.
func openService(ctx context.Context, app *App) (*service.Service, func(), error) {
	st, err := store.Open(ctx, app.cfg.DB)
	if err != nil {
		return nil, func() {}, err
	}
	app.log.WithField("db", st.Path()).Debug("database opened")
	svc := service.New(st, service.Options{
		Logger:             app.log,
		ReviewIntervalDays: app.cfg.ReviewIntervalDays,
	})
	return svc, func() { _ = st.Close() }, nil
}

// withService runs fn against an open service and reports its error.
func withService(cmd *cobra.Command, app *App, fn func(ctx context.Context, svc *service.Service) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	svc, closeFn, err := openService(ctx, app)
	if err != nil {
		return writeErr(cmd, err)
	}
	defer closeFn()
	if err := fn(ctx, svc); err != nil {
		return writeErr(cmd, err)
	}
	return nil
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

// envelope is the JSON/YAML shape of every command's output.
type envelope struct {
	Data any            `json:"data"`
	Meta map[string]any `json:"meta,omitempty"`
}

// writeOut writes v in the envelope for json/yaml, and v itself for text.
func writeOut(cmd *cobra.Command, app *App, v any) error {
	return writeOutMeta(cmd, app, v, nil)
}

func writeOutMeta(cmd *cobra.Command, app *App, v any, meta map[string]any) error {
	if app.Format == "text" {
		return format.Write(cmd.OutOrStdout(), v, app.Format, app.PrettyJSON)
	}
	return format.Write(cmd.OutOrStdout(), envelope{Data: v, Meta: meta}, app.Format, app.PrettyJSON)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), describeErr(err))
	return err
}
