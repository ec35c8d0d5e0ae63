package web

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/yuin/goldmark"
	emoji "github.com/yuin/goldmark-emoji"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// bodyMarkdown converts task notes: GitHub-flavoured tables, task lists and
// autolinks, :shortcode: emoji, and single newlines kept as line breaks. Raw HTML in
// a body is dropped since html.WithUnsafe is not set.
var bodyMarkdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM, emoji.Emoji),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// bodyHTML fills the bodyHtml field of GET /api/tasks/:id. A blank body gives "";
// one goldmark rejects comes back escaped in a <pre> block.
func bodyHTML(body string) string {
	body = strings.TrimSpace(body)
	if body == "" {
		return ""
	}
	var out bytes.Buffer
	if err := bodyMarkdown.Convert([]byte(body), &out); err != nil {
		return "<pre>" + template.HTMLEscapeString(body) + "</pre>"
	}
	return out.String()
}
