package format

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	xansi "github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
)

// Tabular values render as a table in text output.
type Tabular interface {
	Columns() []string
	Rows() [][]string
}

// Texter values render themselves in text output.
type Texter interface {
	Text() string
}

// MaxCellWidth caps table cells, in terminal cells.
const MaxCellWidth = 60

// Renderer returns a Lip Gloss renderer for w. NO_COLOR forces plain output; otherwise
// the profile follows termenv's environment detection (CLICOLOR, CLICOLOR_FORCE, tty).
func Renderer(w io.Writer) *lipgloss.Renderer {
	r := lipgloss.NewRenderer(w)
	if strings.TrimSpace(os.Getenv("NO_COLOR")) != "" {
		r.SetColorProfile(termenv.Ascii)
		return r
	}
	r.SetColorProfile(termenv.NewOutput(w).EnvColorProfile())
	return r
}

func WriteText(w io.Writer, v any) error {
	switch x := v.(type) {
	case Tabular:
		_, err := fmt.Fprintln(w, RenderTable(Renderer(w), x))
		return err
	case Texter:
		_, err := fmt.Fprintln(w, strings.TrimRight(x.Text(), "\n"))
		return err
	case string:
		_, err := fmt.Fprintln(w, x)
		return err
	default:
		return WriteYAML(w, v)
	}
}

// RenderTable draws t with a header row. Cells are truncated to MaxCellWidth.
func RenderTable(r *lipgloss.Renderer, t Tabular) string {
	header := r.NewStyle().Bold(true).Padding(0, 1)
	cell := r.NewStyle().Padding(0, 1)
	border := r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "250", Dark: "238"})

	rows := t.Rows()
	clipped := make([][]string, 0, len(rows))
	for _, row := range rows {
		out := make([]string, len(row))
		for i, c := range row {
			out[i] = Truncate(c, MaxCellWidth)
		}
		clipped = append(clipped, out)
	}

	tbl := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(border).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		}).
		Headers(t.Columns()...).
		Rows(clipped...)
	return tbl.String()
}

// Truncate shortens s to width terminal cells, ending in an ellipsis when cut.
func Truncate(s string, width int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if xansi.StringWidth(s) <= width {
		return s
	}
	return xansi.Truncate(s, width, "…")
}

var (
	mdRendererMu sync.Mutex
	// Keyed by wrap width. A fixed style avoids terminal background queries.
	mdRenderers = map[int]*glamour.TermRenderer{}
)

// RenderMarkdown renders md for the terminal. It falls back to the raw text when
// rendering fails. Plain (NO_COLOR) output uses glamour's notty style.
func RenderMarkdown(md string, width int) string {
	md = strings.TrimSpace(md)
	if md == "" {
		return ""
	}
	if width < 20 {
		width = 20
	}
	style := "dark"
	if strings.TrimSpace(os.Getenv("NO_COLOR")) != "" {
		style = "notty"
	}

	key := width
	if style == "notty" {
		key = -width
	}
	mdRendererMu.Lock()
	defer mdRendererMu.Unlock()
	r := mdRenderers[key]
	if r == nil {
		rr, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(style),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return md
		}
		mdRenderers[key] = rr
		r = rr
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}
