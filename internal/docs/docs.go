// Package docs embeds the markdown help pages behind `north docs <topic>` and
// `north filter help`. Each content/<topic>.md file is one page.
package docs

import (
	"embed"
	"io/fs"
	"slices"
	"strings"
)

//go:embed content/*.md
var contentFS embed.FS

// Topics names every embedded page in alphabetical order.
func Topics() []string {
	entries, err := fs.ReadDir(contentFS, "content")
	if err != nil {
		return []string{}
	}
	topics := make([]string, 0, len(entries))
	for _, e := range entries {
		if name, ok := strings.CutSuffix(e.Name(), ".md"); ok && name != "" && !e.IsDir() {
			topics = append(topics, name)
		}
	}
	slices.Sort(topics)
	return topics
}

// Get looks a page up by topic, ignoring case and surrounding space. Anything that
// looks like a path is refused.
func Get(topic string) (string, bool) {
	topic = strings.ToLower(strings.TrimSpace(topic))
	if topic == "" || strings.ContainsAny(topic, `/\.`) {
		return "", false
	}
	page, err := contentFS.ReadFile("content/" + topic + ".md")
	if err != nil {
		return "", false
	}
	return string(page), true
}
