package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"north/internal/docs"
	"north/internal/filter"
	"north/internal/format"
	"north/internal/prompt"
	"north/internal/service"
)

func newFilterCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "filter",
		Aliases: []string{"f"},
		Short:   "Query tasks with the filter language (see: north filter help)",
	}
	cmd.AddCommand(newFilterRunCmd(app))
	cmd.AddCommand(newFilterCheckCmd(app))
	cmd.AddCommand(newFilterSuggestCmd(app))
	cmd.AddCommand(newFilterSaveCmd(app))
	cmd.AddCommand(newFilterEditCmd(app))
	cmd.AddCommand(newFilterListCmd(app))
	cmd.AddCommand(newFilterRemoveCmd(app))
	cmd.AddCommand(newFilterHelpCmd(app))
	cmd.AddCommand(newFilterPromptCmd(app))
	return cmd
}

// reportParseErr prints the query with the offending span marked.
func reportParseErr(cmd *cobra.Command, query string, err error) {
	var pe *filter.ParseError
	if errors.As(err, &pe) {
		fmt.Fprintln(cmd.ErrOrStderr(), caretLine(query, pe))
	}
}

func newFilterRunCmd(app *App) *cobra.Command {
	var saved string

	cmd := &cobra.Command{
		Use:   "run [<query...>]",
		Short: "Run a query (or a saved filter with --saved)",
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			if saved != "" && query != "" {
				return writeErr(cmd, errors.New("provide a query or --saved, not both"))
			}
			return withService(cmd, app, func(ctx context.Context, svc *service.Service) error {
				if saved != "" {
					f, tasks, err := svc.RunSavedFilter(ctx, saved)
					if err != nil {
						reportParseErr(cmd, f.Query, err)
						return err
					}
					return writeOutMeta(cmd, app, taskList(tasks), map[string]any{"filter": f.Title, "query": f.Query, "count": len(tasks)})
				}
				tasks, err := svc.RunFilter(ctx, query)
				if err != nil {
					reportParseErr(cmd, query, err)
					return err
				}
				return writeOutMeta(cmd, app, taskList(tasks), map[string]any{"query": query, "count": len(tasks)})
			})
		},
	}

	cmd.Flags().StringVar(&saved, "saved", "", "Saved filter id or title")
	return cmd
}

type checkResult struct {
	Valid     bool               `json:"valid"`
	Canonical string             `json:"canonical,omitempty"`
	Error     *filter.ParseError `json:"error,omitempty"`
}

func (r checkResult) Text() string {
	if r.Valid {
		return "ok: " + r.Canonical
	}
	return "invalid: " + r.Error.Message
}

func newFilterCheckCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "check <query...>",
		Short: "Validate a query and print its canonical form",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			q, err := filter.Parse(query)
			if err != nil {
				var pe *filter.ParseError
				if !errors.As(err, &pe) {
					return writeErr(cmd, err)
				}
				reportParseErr(cmd, query, err)
				if werr := writeOut(cmd, app, checkResult{Error: pe}); werr != nil {
					return werr
				}
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, checkResult{Valid: true, Canonical: q.String()})
		},
	}
}

type suggestionList []filter.Suggestion

func (suggestionList) Columns() []string { return []string{"VALUE", "KIND", "LABEL"} }

func (l suggestionList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, s := range l {
		rows = append(rows, []string{s.Value, string(s.Kind), s.Label})
	}
	return rows
}

func newFilterSuggestCmd(app *App) *cobra.Command {
	var cursor int

	cmd := &cobra.Command{
		Use:   "suggest <text>",
		Short: "Complete a partial query (cursor defaults to the end)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := ""
			if len(args) == 1 {
				text = args[0]
			}
			if !cmd.Flags().Changed("cursor") {
				cursor = utf8.RuneCountInString(text)
			}
			return withService(cmd, app, func(ctx context.Context, svc *service.Service) error {
				out, err := svc.SuggestFilter(ctx, text, cursor)
				if err != nil {
					return err
				}
				return writeOut(cmd, app, suggestionList(out))
			})
		},
	}

	cmd.Flags().IntVar(&cursor, "cursor", 0, "Cursor position (in characters)")
	return cmd
}

func newFilterSaveCmd(app *App) *cobra.Command {
	var title string

	cmd := &cobra.Command{
		Use:   "save <query...>",
		Short: "Save a query under a title",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return withService(cmd, app, func(ctx context.Context, svc *service.Service) error {
				f, err := svc.SaveFilter(ctx, title, query)
				if err != nil {
					reportParseErr(cmd, query, err)
					return err
				}
				return writeOut(cmd, app, filterList{f})
			})
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Filter title")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func newFilterEditCmd(app *App) *cobra.Command {
	var title, query string

	cmd := &cobra.Command{
		Use:   "edit <filter>",
		Short: "Rename a saved filter or replace its query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var tp, qp *string
			if cmd.Flags().Changed("title") {
				tp = &title
			}
			if cmd.Flags().Changed("query") {
				qp = &query
			}
			return withService(cmd, app, func(ctx context.Context, svc *service.Service) error {
				f, err := svc.UpdateFilter(ctx, args[0], tp, qp)
				if err != nil {
					reportParseErr(cmd, query, err)
					return err
				}
				return writeOut(cmd, app, filterList{f})
			})
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVar(&query, "query", "", "New query")
	return cmd
}

func newFilterListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List saved filters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, app, func(ctx context.Context, svc *service.Service) error {
				fs, err := svc.Filters(ctx)
				if err != nil {
					return err
				}
				return writeOut(cmd, app, filterList(fs))
			})
		},
	}
}

func newFilterRemoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <filter>",
		Aliases: []string{"delete"},
		Short:   "Delete a saved filter",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, app, func(ctx context.Context, svc *service.Service) error {
				if err := svc.DeleteFilter(ctx, args[0]); err != nil {
					return err
				}
				return writeOut(cmd, app, map[string]any{"deleted": args[0]})
			})
		},
	}
}

// filterReference is the filter docs page followed by the field registry.
func filterReference() string {
	body, _ := docs.Get("filter")
	var b strings.Builder
	b.WriteString(strings.TrimSpace(body))
	b.WriteString("\n\n## Field reference\n\n| field | aliases | operators | sortable |\n|---|---|---|---|\n")
	for _, d := range filter.Fields() {
		ops := make([]string, 0, len(d.Ops))
		for _, op := range d.Ops {
			ops = append(ops, "`"+string(op)+"`")
		}
		fmt.Fprintf(&b, "| `%s` | %s | %s | %s |\n",
			d.Name(), strings.Join(d.Names[1:], ", "), strings.Join(ops, " "), strconv.FormatBool(d.Sortable))
	}
	return b.String()
}

func newFilterHelpCmd(app *App) *cobra.Command {
	var raw bool
	var width int

	cmd := &cobra.Command{
		Use:   "help",
		Short: "Show the filter language reference",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			md := filterReference()
			if raw {
				_, err := fmt.Fprint(cmd.OutOrStdout(), md)
				return err
			}
			if app.Format == "json" || app.Format == "yaml" {
				return writeOut(cmd, app, map[string]any{"topic": "filter", "markdown": md})
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), format.RenderMarkdown(md, width))
			return err
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "Print raw markdown")
	cmd.Flags().IntVar(&width, "width", 80, "Wrap width")
	return cmd
}

func newFilterPromptCmd(app *App) *cobra.Command {
	var save string

	cmd := &cobra.Command{
		Use:   "prompt [<initial query...>]",
		Short: "Edit a query interactively, then run it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, app, func(ctx context.Context, svc *service.Service) error {
				vocab, err := svc.Vocabulary(ctx)
				if err != nil {
					return err
				}
				query, err := prompt.Run(ctx, strings.Join(args, " "), vocab, cmd.InOrStdin(), cmd.ErrOrStderr())
				if errors.Is(err, prompt.ErrCanceled) {
					return nil
				}
				if err != nil {
					return err
				}
				if save != "" {
					if _, err := svc.SaveFilter(ctx, save, query); err != nil {
						return err
					}
				}
				tasks, err := svc.RunFilter(ctx, query)
				if err != nil {
					return err
				}
				return writeOutMeta(cmd, app, taskList(tasks), map[string]any{"query": query, "count": len(tasks)})
			})
		},
	}

	cmd.Flags().StringVar(&save, "save", "", "Also save the query under this title")
	return cmd
}
